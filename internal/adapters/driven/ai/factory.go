// Package ai provides factory functions for creating AI service adapters.
package ai

import (
	"context"
	"fmt"
	"time"

	localembed "github.com/arcastone/vault/internal/adapters/driven/embedding/local"
	ollamaembed "github.com/arcastone/vault/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/arcastone/vault/internal/adapters/driven/embedding/openai"
	anthropicllm "github.com/arcastone/vault/internal/adapters/driven/llm/anthropic"
	ollamallm "github.com/arcastone/vault/internal/adapters/driven/llm/ollama"
	openaillm "github.com/arcastone/vault/internal/adapters/driven/llm/openai"
	"github.com/arcastone/vault/internal/core/domain"
	"github.com/arcastone/vault/internal/core/ports/driven"
)

// pingTimeout is the maximum time to wait for service connectivity validation.
const pingTimeout = 5 * time.Second

// InitResult contains the result of AI service initialisation.
type InitResult struct {
	EmbeddingService driven.EmbeddingService
	LLMService       driven.LLMService
	Warnings         []string // Non-fatal issues.
	FellBack         bool     // True if the LLM was dropped and answers are retrieval-only.
}

// Close releases all resources held by InitResult.
func (r *InitResult) Close() {
	if r.EmbeddingService != nil {
		r.EmbeddingService.Close()
	}
	if r.LLMService != nil {
		r.LLMService.Close()
	}
}

// Init creates the embedding and LLM services described by settings.
//
// An unreachable embedding provider is kept with a warning: ingestion then
// leaves documents extracted and a later index run picks them up. An
// unreachable LLM is dropped so answers degrade to retrieval-only.
func Init(ctx context.Context, settings *domain.AppSettings) (*InitResult, error) {
	result := &InitResult{}

	embed, err := CreateEmbeddingService(&settings.Embedding)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err)
	}
	if embed != nil {
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		if err := embed.Ping(pingCtx); err != nil {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("embedding provider %s unreachable: %v", settings.Embedding.Provider, err))
		}
		cancel()
	}
	result.EmbeddingService = embed

	llm, err := CreateLLMService(&settings.LLM)
	if err != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("LLM disabled: %v", err))
		result.FellBack = true
		return result, nil
	}
	if llm != nil {
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		defer cancel()
		if err := llm.Ping(pingCtx); err != nil {
			llm.Close()
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("LLM provider %s unreachable: %v", settings.LLM.Provider, err))
			result.FellBack = true
			return result, nil
		}
	}
	result.LLMService = llm
	return result, nil
}

// ValidateEmbeddingConfig creates an embedding service and pings it.
func ValidateEmbeddingConfig(settings *domain.EmbeddingSettings) error {
	svc, err := CreateEmbeddingService(settings)
	if err != nil || svc == nil {
		return err
	}
	defer svc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	return svc.Ping(ctx)
}

// ValidateLLMConfig creates an LLM service and pings it.
func ValidateLLMConfig(settings *domain.LLMSettings) error {
	svc, err := CreateLLMService(settings)
	if err != nil || svc == nil {
		return err
	}
	defer svc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	return svc.Ping(ctx)
}

// CreateEmbeddingService creates the embedding service for settings.
// Returns nil if the provider is disabled.
func CreateEmbeddingService(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if settings == nil {
		return nil, nil
	}

	switch settings.Provider {
	case domain.AIProviderNone:
		return nil, nil

	case domain.AIProviderLocal:
		return localembed.NewEmbeddingService(settings.Dimensions), nil

	case domain.AIProviderOllama:
		return ollamaembed.NewEmbeddingService(ollamaembed.Config{
			BaseURL:    settings.BaseURL,
			Model:      settings.Model,
			Dimensions: settings.Dimensions,
		}), nil

	case domain.AIProviderOpenAI:
		return openaiembed.NewEmbeddingService(openaiembed.Config{
			APIKey:     settings.APIKey,
			BaseURL:    settings.BaseURL,
			Model:      settings.Model,
			Dimensions: settings.Dimensions,
		})

	case domain.AIProviderAnthropic:
		return nil, fmt.Errorf("anthropic does not support embeddings, use local, ollama or openai")

	default:
		return nil, fmt.Errorf("unsupported embedding provider: %q", settings.Provider)
	}
}

// CreateLLMService creates the LLM service for settings.
// Returns nil if no LLM is configured.
func CreateLLMService(settings *domain.LLMSettings) (driven.LLMService, error) {
	if settings == nil {
		return nil, nil
	}

	switch settings.Provider {
	case domain.AIProviderNone, domain.AIProviderLocal, "":
		return nil, nil

	case domain.AIProviderOllama:
		return ollamallm.NewLLMService(ollamallm.Config{
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		}), nil

	case domain.AIProviderOpenAI:
		return openaillm.NewLLMService(openaillm.Config{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		})

	case domain.AIProviderAnthropic:
		return anthropicllm.NewLLMService(anthropicllm.Config{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		})

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %q", settings.Provider)
	}
}
