package model

type IngestStats struct {
	Indexed int `json:"indexed"`
	Files   int `json:"files"`
}

type UploadStats struct {
	Saved   int `json:"saved"`
	Indexed int `json:"indexed"`
	Files   int `json:"files"`
}

type Answer struct {
	Answer  string   `json:"answer"`
	Sources []string `json:"sources"`
}
