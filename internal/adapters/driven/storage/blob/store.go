// Package blob provides the filesystem content store.
//
// Blobs live at <root>/<hex[0:2]>/<hex>, keyed by the BLAKE3-256 digest of
// their bytes. Writes go to a temp file in the shard directory, are
// fsynced, then renamed into place, so a blob path either holds complete
// bytes or does not exist.
package blob

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/zeebo/blake3"
	"golang.org/x/sync/singleflight"

	"github.com/arcastone/vault/internal/core/domain"
	"github.com/arcastone/vault/internal/core/ports/driven"
	"github.com/arcastone/vault/internal/fsutil"
	"github.com/arcastone/vault/internal/logger"
)

var _ driven.ContentStore = (*Store)(nil)

// Store is a content-addressed blob store on the local filesystem.
type Store struct {
	root   string
	writes singleflight.Group
}

// NewStore creates the store directory if needed.
func NewStore(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o700); err != nil {
		return nil, fmt.Errorf("creating object directory: %w", err)
	}
	return &Store{root: root}, nil
}

// Root returns the object directory.
func (s *Store) Root() string {
	return s.root
}

// Hash returns the BlobRef for data without storing it.
func Hash(data []byte) domain.BlobRef {
	sum := blake3.Sum256(data)
	return domain.BlobRef{
		Hash: domain.HashPrefix + hex.EncodeToString(sum[:]),
		Size: int64(len(data)),
	}
}

// Put stores data unless a blob with the same hash already exists.
// Concurrent puts of the same bytes share one write.
func (s *Store) Put(ctx context.Context, data []byte) (domain.BlobRef, error) {
	if err := ctx.Err(); err != nil {
		return domain.BlobRef{}, err
	}
	ref := Hash(data)
	path, err := s.path(ref)
	if err != nil {
		return domain.BlobRef{}, err
	}

	_, err, _ = s.writes.Do(ref.Hash, func() (any, error) {
		if _, statErr := os.Stat(path); statErr == nil {
			logger.Debug("blob %s already stored", ref.Hash)
			return nil, nil
		}
		return nil, fsutil.WriteAtomic(path, data, 0o600)
	})
	if err != nil {
		return domain.BlobRef{}, fmt.Errorf("storing blob %s: %w", ref.Hash, err)
	}
	return ref, nil
}

// Get reads a blob and verifies its hash on every read.
func (s *Store) Get(ctx context.Context, ref domain.BlobRef) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := s.path(ref)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("blob %s: %w", ref.Hash, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("reading blob %s: %w", ref.Hash, err)
	}

	if got := Hash(data); got.Hash != ref.Hash {
		return nil, fmt.Errorf("blob %s hashes to %s: %w", ref.Hash, got.Hash, domain.ErrCorrupt)
	}
	return data, nil
}

// Has reports whether the blob file exists. It does not verify content.
func (s *Store) Has(_ context.Context, ref domain.BlobRef) (bool, error) {
	path, err := s.path(ref)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// List walks the shard directories. Leftover temp files are ignored.
func (s *Store) List(ctx context.Context) ([]domain.BlobRef, error) {
	var refs []domain.BlobRef
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), fsutil.TempPrefix) || !validHex(d.Name()) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		refs = append(refs, domain.BlobRef{Hash: domain.HashPrefix + d.Name(), Size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing blobs: %w", err)
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Hash < refs[j].Hash })
	return refs, nil
}

// Delete removes a blob file.
func (s *Store) Delete(_ context.Context, ref domain.BlobRef) error {
	path, err := s.path(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("blob %s: %w", ref.Hash, domain.ErrNotFound)
		}
		return fmt.Errorf("deleting blob %s: %w", ref.Hash, err)
	}
	return nil
}

// path maps a reference to its file, rejecting anything that is not a
// well-formed digest.
func (s *Store) path(ref domain.BlobRef) (string, error) {
	h := ref.Hex()
	if !strings.HasPrefix(ref.Hash, domain.HashPrefix) || !validHex(h) {
		return "", fmt.Errorf("blob hash %q: %w", ref.Hash, domain.ErrInvalidInput)
	}
	return filepath.Join(s.root, h[:2], h), nil
}

func validHex(s string) bool {
	if len(s) != 64 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
