package vectorstore

import (
	"math"
	"sort"

	"github.com/xxxsen/mrag/internal/model"
)

type scored struct {
	hit   model.Hit
	score float32
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

// topK ranks by descending score; ties keep insertion order.
func topK(items []scored, k int) []model.Hit {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].score > items[j].score
	})
	if k > len(items) {
		k = len(items)
	}
	hits := make([]model.Hit, 0, k)
	for i := 0; i < k; i++ {
		hits = append(hits, items[i].hit)
	}
	return hits
}

func cloneMetadata(md map[string]string) map[string]string {
	if md == nil {
		return nil
	}
	out := make(map[string]string, len(md))
	for k, v := range md {
		out[k] = v
	}
	return out
}
