package driven

import (
	"context"

	"github.com/arcastone/vault/internal/core/domain"
)

// ContentStore is append-only blob storage keyed by content hash.
// Identical bytes are stored once.
type ContentStore interface {
	// Put stores data if no blob with its hash exists and returns the
	// reference. Writes are atomic: temp file, fsync, rename.
	Put(ctx context.Context, data []byte) (domain.BlobRef, error)

	// Get returns the blob bytes after verifying their hash.
	// Fails with domain.ErrNotFound or domain.ErrCorrupt.
	Get(ctx context.Context, ref domain.BlobRef) ([]byte, error)

	// Has reports whether a blob with the given hash is stored.
	Has(ctx context.Context, ref domain.BlobRef) (bool, error)

	// List returns references to every stored blob, sorted by hash.
	List(ctx context.Context) ([]domain.BlobRef, error)

	// Delete removes a blob. Only manual garbage collection calls this.
	Delete(ctx context.Context, ref domain.BlobRef) error
}
