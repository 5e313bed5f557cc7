package driving

import (
	"context"

	"github.com/arcastone/vault/internal/core/domain"
)

// SearchService provides semantic search to external actors.
type SearchService interface {
	// Search returns the top hits among indexed documents.
	// Identical query and state always produce identical ordered output.
	Search(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.SearchResult, error)
}

// AnswerService answers questions from retrieved passages.
type AnswerService interface {
	// Ask answers with the LLM when available, else extractively.
	Ask(ctx context.Context, question string, topK int) (*domain.Answer, error)

	// Retrieve builds a markdown answer from quoted passages only.
	Retrieve(ctx context.Context, query string, topK int) (*domain.Answer, error)
}
