package driven

import "context"

// IndexEntry links a PageChunk to its embedding.
type IndexEntry struct {
	ChunkID    string
	DocumentID string
	Vector     []float32
}

// VectorIndex is a rebuildable nearest-neighbour index over chunk embeddings.
// It is a cache of derived state; the manifest stays authoritative.
type VectorIndex interface {
	// Upsert inserts or replaces the vector for a chunk. A replaced
	// chunk keeps its original insertion order.
	Upsert(ctx context.Context, entries ...IndexEntry) error

	// Remove tombstones the given chunks.
	Remove(ctx context.Context, chunkIDs ...string) error

	// Query returns the k closest live entries, best first, ties broken
	// by insertion order.
	Query(ctx context.Context, vector []float32, k int) ([]VectorHit, error)

	// Len returns the number of live entries.
	Len() int

	// Compact purges tombstoned entries.
	Compact(ctx context.Context) error

	// Reset drops every entry.
	Reset(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// VectorHit represents a similarity search result.
type VectorHit struct {
	// ChunkID is the matched chunk.
	ChunkID string

	// DocumentID owns the chunk.
	DocumentID string

	// Similarity is the cosine similarity score.
	Similarity float64
}
