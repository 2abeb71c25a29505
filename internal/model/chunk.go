package model

const (
	MetadataSource = "source"
	UnknownSource  = "unknown"
)

type Chunk struct {
	ID        string            `json:"id"`
	Document  string            `json:"document"`
	Metadata  map[string]string `json:"metadata"`
	Embedding []float32         `json:"embedding"`
}

// Hit is one nearest-neighbor result, in rank order.
type Hit struct {
	Document string            `json:"document"`
	Metadata map[string]string `json:"metadata"`
}

func (h Hit) Source() string {
	if src, ok := h.Metadata[MetadataSource]; ok {
		return src
	}
	return UnknownSource
}
