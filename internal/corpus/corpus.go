package corpus

import "fmt"

// Document is one raw source supplied by the loader at startup.
type Document struct {
	SourceID string
	Text     string
}

// Chunk is a fragment of a source document used as grounding context.
// Chunks are created once at load time and never mutated.
type Chunk struct {
	ID             string
	SourceDocument string
	Text           string
}

// Store holds the chunked corpus. It is read-only after Load, so concurrent
// readers need no locking.
type Store struct {
	chunks []Chunk
}

// Load chunks every document in order. Document order and intra-document
// chunk order define the corpus insertion order used for retrieval
// tie-breaking, so they must be deterministic.
func Load(documents []Document, chunkSize, chunkOverlap int) *Store {
	s := &Store{}
	for _, doc := range documents {
		parts := splitText(doc.Text, chunkSize, chunkOverlap)
		for i, part := range parts {
			s.chunks = append(s.chunks, Chunk{
				ID:             fmt.Sprintf("%s#%03d", doc.SourceID, i),
				SourceDocument: doc.SourceID,
				Text:           part,
			})
		}
	}
	return s
}

// AllChunks returns the chunks in insertion order. Callers must not modify
// the returned slice.
func (s *Store) AllChunks() []Chunk {
	return s.chunks
}

func (s *Store) Len() int {
	return len(s.chunks)
}
