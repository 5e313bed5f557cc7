package driving

import (
	"context"

	"github.com/arcastone/vault/internal/core/domain"
)

// DocumentService exposes the manifest catalog.
type DocumentService interface {
	// List returns every document in ingestion order.
	List(ctx context.Context) ([]domain.Document, error)

	// ListByStatus returns documents in the given state.
	ListByStatus(ctx context.Context, status domain.Status) ([]domain.Document, error)

	// Get returns the manifest entry for a document.
	Get(ctx context.Context, documentID string) (*domain.ManifestEntry, error)

	// GetContent returns the document's extracted text, page by page.
	GetContent(ctx context.Context, documentID string) (string, error)

	// Remove drops the document from the manifest and the index.
	Remove(ctx context.Context, documentID string) error

	// Sitemap renders a markdown index of all documents.
	Sitemap(ctx context.Context) (string, error)
}

// ExportService copies stored documents out of the vault.
type ExportService interface {
	// Export writes each document's bytes under its original filename.
	// Results are in input order; one failure never aborts the batch.
	Export(ctx context.Context, documentIDs []string, destination string) []domain.ExportResult
}
