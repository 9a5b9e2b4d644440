package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/autostreamhq/agent/internal/corpus"
)

func testStore() *corpus.Store {
	docs := []corpus.Document{
		{SourceID: "pricing.md", Text: "The Basic plan costs $29 per month. The Pro plan costs $79 per month."},
		{SourceID: "features.md", Text: "AutoStream automatically edits your videos with AI scene detection."},
		{SourceID: "support.md", Text: "Support is available via chat around the clock."},
	}
	return corpus.Load(docs, 1000, 200)
}

func TestRetrieveRanksByTermOverlap(t *testing.T) {
	store := testStore()
	r, err := NewRetriever(context.Background(), store, NewHashEmbedder(256), 4)
	if err != nil {
		t.Fatalf("NewRetriever() error = %v", err)
	}

	got, err := r.Retrieve(context.Background(), "how much does the Pro plan cost per month", 2)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len(got) = %d, want 2", len(got))
	}
	if got[0].Chunk.SourceDocument != "pricing.md" {
		t.Fatalf("top chunk source = %q, want pricing.md", got[0].Chunk.SourceDocument)
	}
	if got[0].Score < got[1].Score {
		t.Fatalf("results not sorted: %.4f < %.4f", got[0].Score, got[1].Score)
	}
}

func TestRetrieveEmptyCorpus(t *testing.T) {
	store := corpus.Load(nil, 1000, 200)
	r, err := NewRetriever(context.Background(), store, NewHashEmbedder(64), 4)
	if err != nil {
		t.Fatalf("NewRetriever() error = %v", err)
	}
	got, err := r.Retrieve(context.Background(), "anything", 4)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("len(got) = %d, want 0", len(got))
	}
}

func TestRetrieveFewerChunksThanK(t *testing.T) {
	store := testStore()
	r, err := NewRetriever(context.Background(), store, NewHashEmbedder(256), 4)
	if err != nil {
		t.Fatalf("NewRetriever() error = %v", err)
	}
	got, err := r.Retrieve(context.Background(), "videos", 10)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(got) != store.Len() {
		t.Fatalf("len(got) = %d, want %d", len(got), store.Len())
	}
}

// constEmbedder forces identical scores so tie-breaking is observable.
type constEmbedder struct{}

func (constEmbedder) Embed(context.Context, string) ([]float32, error) {
	return []float32{1, 0}, nil
}

func TestRetrieveTiesKeepInsertionOrder(t *testing.T) {
	store := testStore()
	r, err := NewRetriever(context.Background(), store, constEmbedder{}, 4)
	if err != nil {
		t.Fatalf("NewRetriever() error = %v", err)
	}
	got, err := r.Retrieve(context.Background(), "query", 3)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	want := []string{"pricing.md", "features.md", "support.md"}
	for i, w := range want {
		if got[i].Chunk.SourceDocument != w {
			t.Fatalf("got[%d].SourceDocument = %q, want %q", i, got[i].Chunk.SourceDocument, w)
		}
	}
}

// failingEmbedder simulates an unavailable embedding provider.
type failingEmbedder struct{}

func (failingEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, errors.New("embedding service down")
}

func TestRetrieveSurfacesEmbeddingError(t *testing.T) {
	store := testStore()
	r, err := NewRetriever(context.Background(), store, NewHashEmbedder(64), 4)
	if err != nil {
		t.Fatalf("NewRetriever() error = %v", err)
	}
	r.embedder = failingEmbedder{}
	if _, err := r.Retrieve(context.Background(), "query", 4); err == nil {
		t.Fatalf("Retrieve() expected error from failing embedder")
	}
}

func TestHashEmbedderDeterministic(t *testing.T) {
	e := NewHashEmbedder(128)
	a, err := e.Embed(context.Background(), "pricing plans for creators")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	b, err := e.Embed(context.Background(), "pricing plans for creators")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(a) != 128 || len(b) != 128 {
		t.Fatalf("vector dims = %d/%d, want 128", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("vectors differ at %d: %v vs %v", i, a[i], b[i])
		}
	}
	if cosine(a, b) < 0.999 {
		t.Fatalf("self-similarity = %v, want ~1", cosine(a, b))
	}
}
