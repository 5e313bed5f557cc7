package driving

import (
	"context"

	"github.com/arcastone/vault/internal/core/domain"
)

// IngestService turns dropped files into stored, searchable documents.
type IngestService interface {
	// IngestFile ingests one PDF from disk.
	IngestFile(ctx context.Context, path string) (*domain.Document, error)

	// IngestBytes ingests PDF bytes under a display name.
	IngestBytes(ctx context.Context, filename string, data []byte) (*domain.Document, error)

	// IngestPaths ingests files and directory trees concurrently.
	// Each file gets its own result; one failure never aborts the batch.
	IngestPaths(ctx context.Context, paths []string) []domain.IngestResult

	// IndexPending embeds every document left pending or extracted.
	IndexPending(ctx context.Context) (int, error)

	// Retry moves a failed document back to pending and reruns it.
	Retry(ctx context.Context, documentID string) (*domain.Document, error)
}
