package ai

import (
	"fmt"

	"google.golang.org/genai"
)

// EmbeddingShapeError reports an embedding response that does not follow
// {"embeddings": [{"values": [...]}, ...]} with one entry per input text.
type EmbeddingShapeError struct {
	Index  int
	Reason string
}

func (e *EmbeddingShapeError) Error() string {
	if e.Index < 0 {
		return "unexpected embedding response shape: " + e.Reason
	}
	return fmt.Sprintf("unexpected embedding response shape at index %d: %s", e.Index, e.Reason)
}

// NormalizeEmbeddings extracts one vector per input from an embedContent
// response. want is the number of texts that were sent.
func NormalizeEmbeddings(resp *genai.EmbedContentResponse, want int) ([][]float32, error) {
	if resp == nil || len(resp.Embeddings) == 0 {
		return nil, &EmbeddingShapeError{Index: -1, Reason: "no embeddings in response"}
	}
	if len(resp.Embeddings) != want {
		return nil, &EmbeddingShapeError{
			Index:  -1,
			Reason: fmt.Sprintf("got %d embeddings for %d inputs", len(resp.Embeddings), want),
		}
	}
	out := make([][]float32, 0, len(resp.Embeddings))
	for i, item := range resp.Embeddings {
		if item == nil || len(item.Values) == 0 {
			return nil, &EmbeddingShapeError{Index: i, Reason: "missing values"}
		}
		vec := make([]float32, len(item.Values))
		copy(vec, item.Values)
		out = append(out, vec)
	}
	return out, nil
}
