package driven

import "github.com/arcastone/vault/internal/core/domain"

// Chunker splits extracted pages into embeddable chunks.
// Output must be reproducible for identical input text.
type Chunker interface {
	// Name returns the chunker identifier.
	Name() string

	// Chunk splits pages into chunks owned by documentID.
	Chunk(documentID string, pages []domain.Page) []domain.PageChunk
}
