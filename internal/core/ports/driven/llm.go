package driven

import (
	"context"

	"github.com/arcastone/vault/internal/core/domain"
)

// LLMService generates text for question answering.
// This is an optional service. When nil, answers are extractive.
type LLMService interface {
	// Generate produces text from a prompt.
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)

	// ModelName returns the name of the model being used.
	ModelName() string

	// Ping validates the service is reachable.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// GenerateOptions configures text generation.
type GenerateOptions struct {
	// MaxTokens limits the response length.
	MaxTokens int

	// Temperature controls randomness (0.0 = deterministic).
	Temperature float64

	// SystemPrompt sets the assistant's behaviour.
	SystemPrompt string
}

// AIConfigValidator checks provider settings by contacting the provider.
type AIConfigValidator interface {
	// ValidateEmbedding pings the configured embedding provider.
	ValidateEmbedding(settings *domain.EmbeddingSettings) error

	// ValidateLLM pings the configured LLM provider.
	ValidateLLM(settings *domain.LLMSettings) error
}
