package ai

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestNormalizeEmbeddings_AttributeAndMappingFormsMatch(t *testing.T) {
	attribute := &genai.EmbedContentResponse{
		Embeddings: []*genai.ContentEmbedding{
			{Values: []float32{0.1, 0.2, 0.3}},
			{Values: []float32{0.4, 0.5, 0.6}},
		},
	}
	var mapping genai.EmbedContentResponse
	payload := `{"embeddings":[{"values":[0.1,0.2,0.3]},{"values":[0.4,0.5,0.6]}]}`
	require.NoError(t, json.Unmarshal([]byte(payload), &mapping))

	fromAttr, err := NormalizeEmbeddings(attribute, 2)
	require.NoError(t, err)
	fromMap, err := NormalizeEmbeddings(&mapping, 2)
	require.NoError(t, err)
	require.Equal(t, fromAttr, fromMap)
	require.Equal(t, [][]float32{{0.1, 0.2, 0.3}, {0.4, 0.5, 0.6}}, fromAttr)
}

func TestNormalizeEmbeddings_Errors(t *testing.T) {
	tests := []struct {
		name  string
		resp  *genai.EmbedContentResponse
		want  int
		index int
	}{
		{name: "nil response", resp: nil, want: 1, index: -1},
		{name: "no embeddings", resp: &genai.EmbedContentResponse{}, want: 1, index: -1},
		{
			name:  "count mismatch",
			resp:  &genai.EmbedContentResponse{Embeddings: []*genai.ContentEmbedding{{Values: []float32{1}}}},
			want:  2,
			index: -1,
		},
		{
			name: "missing values",
			resp: &genai.EmbedContentResponse{Embeddings: []*genai.ContentEmbedding{
				{Values: []float32{1}},
				{},
			}},
			want:  2,
			index: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NormalizeEmbeddings(tt.resp, tt.want)
			var shapeErr *EmbeddingShapeError
			require.True(t, errors.As(err, &shapeErr))
			require.Equal(t, tt.index, shapeErr.Index)
		})
	}
}

func TestNormalizeEmbeddings_CopiesValues(t *testing.T) {
	resp := &genai.EmbedContentResponse{Embeddings: []*genai.ContentEmbedding{{Values: []float32{1, 2}}}}
	out, err := NormalizeEmbeddings(resp, 1)
	require.NoError(t, err)
	resp.Embeddings[0].Values[0] = 9
	require.Equal(t, float32(1), out[0][0])
}
