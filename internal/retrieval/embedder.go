package retrieval

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// Embedder turns text into a fixed-length vector. Implementations must be
// consistent: the same text embedded at index time and query time has to
// land in the same space.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Config controls embedder construction.
type Config struct {
	Mode   string
	URL    string
	APIKey string
	Model  string
	Dim    int
}

// NewEmbedder builds an embedder for the configured mode. "auto" prefers the
// HTTP provider when a URL is configured and falls back to the local hash
// embedder otherwise.
func NewEmbedder(cfg Config) Embedder {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	switch mode {
	case "http":
		return NewHTTPEmbedder(cfg.URL, cfg.APIKey, cfg.Model)
	case "local":
		return NewHashEmbedder(cfg.Dim)
	default:
		if strings.TrimSpace(cfg.URL) != "" {
			return NewHTTPEmbedder(cfg.URL, cfg.APIKey, cfg.Model)
		}
		return NewHashEmbedder(cfg.Dim)
	}
}

// HashEmbedder is a deterministic local embedder: a hashed bag-of-words
// vector, L2-normalized. It captures term overlap well enough for dev and
// test retrieval without any external service.
type HashEmbedder struct {
	dim int
}

func NewHashEmbedder(dim int) *HashEmbedder {
	if dim <= 0 {
		dim = 256
	}
	return &HashEmbedder{dim: dim}
}

func (e *HashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, e.dim)
	for _, token := range tokenize(text) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(token))
		vec[int(h.Sum32())%e.dim]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		inv := 1 / math.Sqrt(norm)
		for i := range vec {
			vec[i] = float32(float64(vec[i]) * inv)
		}
	}
	return vec, nil
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
