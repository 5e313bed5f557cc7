package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/arcastone/vault/internal/core/domain"
	"github.com/arcastone/vault/internal/core/ports/driven"
	"github.com/arcastone/vault/internal/core/ports/driving"
	"github.com/arcastone/vault/internal/fsutil"
	"github.com/arcastone/vault/internal/logger"
)

// Ensure MaintenanceService implements the interface.
var _ driving.MaintenanceService = (*MaintenanceService)(nil)

// MaintenanceService runs operator-initiated upkeep: checkpoints,
// integrity checks, index rebuilds, garbage collection and bundling.
// None of it runs automatically.
type MaintenanceService struct {
	root     string
	manifest *Manifest
	blobs    driven.ContentStore
	index    driven.VectorIndex
	ingest   *IngestService
}

// NewMaintenanceService creates a maintenance service for the vault at root.
func NewMaintenanceService(
	root string,
	manifest *Manifest,
	blobs driven.ContentStore,
	index driven.VectorIndex,
	ingest *IngestService,
) *MaintenanceService {
	return &MaintenanceService{
		root:     root,
		manifest: manifest,
		blobs:    blobs,
		index:    index,
		ingest:   ingest,
	}
}

// Checkpoint snapshots the manifest and prunes the log.
func (s *MaintenanceService) Checkpoint(_ context.Context) error {
	return s.manifest.Checkpoint()
}

// Verify re-reads every referenced blob, which re-hashes it.
func (s *MaintenanceService) Verify(ctx context.Context) (*domain.VerifyReport, error) {
	done := logger.Timed("verify")
	defer done()

	report := &domain.VerifyReport{}
	checked := make(map[string]error)
	for _, doc := range s.manifest.Documents() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		err, seen := checked[doc.Blob.Hash]
		if !seen {
			_, err = s.blobs.Get(ctx, doc.Blob)
			checked[doc.Blob.Hash] = err
			report.Checked++
		}
		if err == nil {
			continue
		}

		issue := domain.BlobIssue{
			DocumentID: doc.ID,
			Filename:   doc.Filename,
			Hash:       doc.Blob.Hash,
			Error:      err.Error(),
		}
		switch {
		case errors.Is(err, domain.ErrNotFound):
			report.Missing = append(report.Missing, issue)
		case errors.Is(err, domain.ErrCorrupt):
			report.Corrupt = append(report.Corrupt, issue)
		default:
			return nil, fmt.Errorf("verify %s: %w", doc.ID, err)
		}
	}

	if !report.Healthy() {
		logger.Warn("verify: %d missing, %d corrupt blobs", len(report.Missing), len(report.Corrupt))
	}
	return report, nil
}

// RebuildIndex drops the vector index and re-embeds every extracted or
// indexed document from the chunk texts held by the manifest.
func (s *MaintenanceService) RebuildIndex(ctx context.Context) (*domain.RebuildReport, error) {
	if s.ingest == nil || s.ingest.embedder == nil {
		return nil, fmt.Errorf("rebuild index: %w", domain.ErrEmbeddingUnavailable)
	}

	done := logger.Timed("rebuild index")
	defer done()

	if err := s.index.Reset(ctx); err != nil {
		return nil, fmt.Errorf("reset index: %w", err)
	}

	report := &domain.RebuildReport{}
	for _, doc := range s.manifest.Documents() {
		if doc.Status != domain.StatusExtracted && doc.Status != domain.StatusIndexed {
			continue
		}
		if err := ctx.Err(); err != nil {
			return report, err
		}

		report.Documents++
		if err := s.ingest.Reembed(ctx, doc.ID); err != nil {
			logger.Warn("rebuild %s: %v", doc.ID, err)
			report.Failed++
		}

		entry, err := s.manifest.Get(doc.ID)
		if err != nil {
			continue
		}
		report.Chunks += len(entry.Chunks)
		report.Embedded += len(entry.Chunks) - len(entry.Unembedded())
	}

	logger.Info("rebuilt index: %d documents, %d/%d chunks", report.Documents, report.Embedded, report.Chunks)
	return report, nil
}

// GC deletes blobs that no document references and purges index
// tombstones. It must not run while files are being ingested.
func (s *MaintenanceService) GC(ctx context.Context) (*domain.GCReport, error) {
	referenced := make(map[string]bool)
	for _, doc := range s.manifest.Documents() {
		referenced[doc.Blob.Hash] = true
	}

	refs, err := s.blobs.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list blobs: %w", err)
	}

	report := &domain.GCReport{Scanned: len(refs)}
	for _, ref := range refs {
		if referenced[ref.Hash] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return report, err
		}

		unlock := s.lock(ref.Hash)
		_, live := s.manifest.FindByHash(ref.Hash)
		if !live {
			err = s.blobs.Delete(ctx, ref)
		}
		unlock()

		if live {
			continue
		}
		if err != nil {
			return report, fmt.Errorf("delete blob %s: %w", ref.Hash, err)
		}
		report.Removed++
		report.Bytes += ref.Size
		logger.Debug("gc: deleted %s (%d bytes)", ref.Hash, ref.Size)
	}

	if err := s.index.Compact(ctx); err != nil {
		return report, fmt.Errorf("compact index: %w", err)
	}
	logger.Info("gc: removed %d of %d blobs", report.Removed, report.Scanned)
	return report, nil
}

// lock excludes ingestion of the same bytes while a blob is deleted.
func (s *MaintenanceService) lock(hash string) func() {
	return s.manifest.blobs.Lock(hash)
}

// Bundle checkpoints and copies the whole vault root to destination, which
// must be outside the root.
func (s *MaintenanceService) Bundle(ctx context.Context, destination string) error {
	if strings.TrimSpace(destination) == "" {
		return fmt.Errorf("bundle destination: %w", domain.ErrInvalidInput)
	}
	root, err := filepath.Abs(s.root)
	if err != nil {
		return err
	}
	dest, err := filepath.Abs(destination)
	if err != nil {
		return err
	}
	if rel, err := filepath.Rel(root, dest); err == nil && !strings.HasPrefix(rel, "..") {
		return fmt.Errorf("bundle destination %s is inside the vault: %w", dest, domain.ErrInvalidInput)
	}
	if entries, err := os.ReadDir(dest); err == nil && len(entries) > 0 {
		return fmt.Errorf("bundle destination %s is not empty: %w", dest, domain.ErrInvalidInput)
	}

	if err := s.Checkpoint(ctx); err != nil {
		return fmt.Errorf("checkpoint before bundle: %w", err)
	}

	done := logger.Timed("bundle to %s", dest)
	defer done()
	if err := fsutil.CopyTree(root, dest); err != nil {
		return fmt.Errorf("%w: bundle: %w", domain.ErrWriteFailed, err)
	}
	return nil
}

// Stats summarises vault contents.
func (s *MaintenanceService) Stats(ctx context.Context) (*domain.Stats, error) {
	snap := s.manifest.Snapshot()
	stats := &domain.Stats{
		Documents:    len(snap.Entries),
		ByStatus:     make(map[domain.Status]int),
		IndexEntries: s.index.Len(),
		LastSeq:      snap.LastSeq,
	}
	for i := range snap.Entries {
		stats.ByStatus[snap.Entries[i].Document.Status]++
		stats.Chunks += len(snap.Entries[i].Chunks)
	}

	refs, err := s.blobs.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list blobs: %w", err)
	}
	stats.Blobs = len(refs)
	for _, ref := range refs {
		stats.BlobBytes += ref.Size
	}
	return stats, nil
}
