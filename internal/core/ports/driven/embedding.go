package driven

import "context"

// EmbeddingService generates vector embeddings from text.
// This is an optional service. When nil, documents stop at extracted.
//
// Implementations may include:
//   - the built-in offline hashing embedder
//   - Ollama (nomic-embed-text, all-minilm)
//   - OpenAI (text-embedding-3-small)
type EmbeddingService interface {
	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for texts, in order.
	// The result has exactly one vector per input text.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding vector size.
	Dimensions() int

	// ModelName returns the name of the embedding model being used.
	ModelName() string

	// Ping validates the service is reachable.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}
