package retrieval

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/autostreamhq/agent/internal/corpus"
)

// ScoredChunk pairs a corpus chunk with its query similarity.
type ScoredChunk struct {
	Chunk corpus.Chunk
	Score float64
}

// Retriever answers similarity queries over a fixed corpus. Chunk vectors
// are computed once at build time with the same embedder used for queries,
// keeping index-time and query-time metrics consistent.
type Retriever struct {
	embedder Embedder
	chunks   []corpus.Chunk
	vectors  [][]float32
	defaultK int
}

func NewRetriever(ctx context.Context, store *corpus.Store, embedder Embedder, defaultK int) (*Retriever, error) {
	if defaultK <= 0 {
		defaultK = 4
	}
	chunks := store.AllChunks()
	vectors := make([][]float32, 0, len(chunks))
	for _, c := range chunks {
		vec, err := embedder.Embed(ctx, c.Text)
		if err != nil {
			return nil, fmt.Errorf("embed chunk %s: %w", c.ID, err)
		}
		vectors = append(vectors, vec)
	}
	return &Retriever{
		embedder: embedder,
		chunks:   chunks,
		vectors:  vectors,
		defaultK: defaultK,
	}, nil
}

// Retrieve returns up to k chunks ordered by descending cosine similarity,
// ties broken by corpus insertion order. An empty corpus yields an empty
// result, never an error.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]ScoredChunk, error) {
	if k <= 0 {
		k = r.defaultK
	}
	if len(r.chunks) == 0 {
		return nil, nil
	}

	queryVec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	scored := make([]ScoredChunk, len(r.chunks))
	for i, c := range r.chunks {
		scored[i] = ScoredChunk{Chunk: c, Score: cosine(queryVec, r.vectors[i])}
	}
	// Stable sort preserves insertion order for equal scores.
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if k > len(scored) {
		k = len(scored)
	}
	return scored[:k], nil
}

func cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
