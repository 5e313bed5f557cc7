package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/arcastone/vault/internal/core/domain"
	"github.com/arcastone/vault/internal/core/ports/driven"
	"github.com/arcastone/vault/internal/core/ports/driving"
	"github.com/arcastone/vault/internal/fsutil"
	"github.com/arcastone/vault/internal/logger"
)

// Ensure ExportService implements the interface.
var _ driving.ExportService = (*ExportService)(nil)

// exportPerm is the mode of exported files.
const exportPerm = 0o644

// ExportService copies stored documents out of the vault under their
// original filenames.
type ExportService struct {
	manifest *Manifest
	blobs    driven.ContentStore
}

// NewExportService creates a new export service.
func NewExportService(manifest *Manifest, blobs driven.ContentStore) *ExportService {
	return &ExportService{manifest: manifest, blobs: blobs}
}

// Export writes each document to destination. Every id gets a result in
// input order. Bytes are verified against the content hash before they
// are written, and each file is written atomically.
func (s *ExportService) Export(ctx context.Context, ids []string, destination string) []domain.ExportResult {
	results := make([]domain.ExportResult, len(ids))

	if err := probe(destination); err != nil {
		err = fmt.Errorf("%w: destination %s: %w", domain.ErrWriteFailed, destination, err)
		logger.Warn("export: %v", err)
		for i, id := range ids {
			results[i] = exportFailure(id, err)
		}
		return results
	}

	used := make(map[string]bool, len(ids))
	for i, id := range ids {
		results[i] = s.exportOne(ctx, id, destination, used)
	}
	return results
}

func (s *ExportService) exportOne(ctx context.Context, id, destination string, used map[string]bool) domain.ExportResult {
	if err := ctx.Err(); err != nil {
		return exportFailure(id, err)
	}

	doc, err := s.manifest.Document(id)
	if err != nil {
		return exportFailure(id, err)
	}

	data, err := s.blobs.Get(ctx, doc.Blob)
	if err != nil {
		return exportFailure(id, err)
	}

	path, err := uniqueName(destination, exportName(doc), used)
	if err != nil {
		return exportFailure(id, fmt.Errorf("%w: %w", domain.ErrWriteFailed, err))
	}
	if err := fsutil.WriteAtomic(path, data, exportPerm); err != nil {
		return exportFailure(id, fmt.Errorf("%w: %w", domain.ErrWriteFailed, err))
	}
	used[filepath.Base(path)] = true

	logger.Debug("exported %s to %s", id, path)
	return domain.ExportResult{
		DocumentID: id,
		Status:     domain.ExportOK,
		Path:       path,
		Bytes:      int64(len(data)),
	}
}

func exportFailure(id string, err error) domain.ExportResult {
	return domain.ExportResult{
		DocumentID: id,
		Status:     domain.ExportStatusFor(err),
		Error:      err.Error(),
		Err:        err,
	}
}

// probe creates destination if needed and checks it accepts new files.
func probe(destination string) error {
	if strings.TrimSpace(destination) == "" {
		return errors.New("no destination")
	}
	if err := os.MkdirAll(destination, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(destination, fsutil.TempPrefix+"probe-*")
	if err != nil {
		return err
	}
	name := f.Name()
	if err := f.Close(); err != nil {
		os.Remove(name)
		return err
	}
	return os.Remove(name)
}

// exportName is the document's base filename, or its hash when unusable.
func exportName(doc domain.Document) string {
	name := filepath.Base(strings.TrimSpace(doc.Filename))
	if name == "." || name == string(filepath.Separator) || name == "" || strings.HasPrefix(name, fsutil.TempPrefix) {
		return doc.Blob.Hex() + ".pdf"
	}
	return name
}

// uniqueName returns the first free path among name, name_1, name_2, ...
// A name is taken if it exists in dir or was produced earlier in the batch.
func uniqueName(dir, name string, used map[string]bool) (string, error) {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	candidate := name
	for n := 1; ; n++ {
		if !used[candidate] {
			_, err := os.Lstat(filepath.Join(dir, candidate))
			if errors.Is(err, os.ErrNotExist) {
				return filepath.Join(dir, candidate), nil
			}
			if err != nil {
				return "", err
			}
		}
		candidate = stem + "_" + strconv.Itoa(n) + ext
	}
}
