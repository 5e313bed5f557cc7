package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/arcastone/vault/internal/core/domain"
	"github.com/arcastone/vault/internal/core/ports/driven"
	"github.com/arcastone/vault/internal/core/ports/driving"
	"github.com/arcastone/vault/internal/logger"
)

// Ensure DocumentService implements the interface.
var _ driving.DocumentService = (*DocumentService)(nil)

// DocumentService exposes the manifest catalog and document removal.
type DocumentService struct {
	manifest *Manifest
	index    driven.VectorIndex
}

// NewDocumentService creates a new document service.
func NewDocumentService(manifest *Manifest, index driven.VectorIndex) *DocumentService {
	return &DocumentService{manifest: manifest, index: index}
}

// List returns all documents in ingestion order.
func (s *DocumentService) List(_ context.Context) ([]domain.Document, error) {
	return s.manifest.Documents(), nil
}

// ListByStatus returns documents in the given state.
func (s *DocumentService) ListByStatus(_ context.Context, status domain.Status) ([]domain.Document, error) {
	if !status.IsValid() {
		return nil, fmt.Errorf("status %q: %w", status, domain.ErrInvalidInput)
	}
	var out []domain.Document
	for _, doc := range s.manifest.Documents() {
		if doc.Status == status {
			out = append(out, doc)
		}
	}
	return out, nil
}

// Get retrieves a document with its chunks.
func (s *DocumentService) Get(_ context.Context, documentID string) (*domain.ManifestEntry, error) {
	entry, err := s.manifest.Get(documentID)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// GetContent reassembles the extracted text page by page. Chunk overlaps
// are folded back using the chunk offsets.
func (s *DocumentService) GetContent(_ context.Context, documentID string) (string, error) {
	entry, err := s.manifest.Get(documentID)
	if err != nil {
		return "", err
	}

	var pages []int
	texts := make(map[int][]rune)
	for _, c := range entry.Chunks {
		page, ok := texts[c.Page]
		if !ok {
			pages = append(pages, c.Page)
		}
		if len(page) < c.End {
			page = append(page, make([]rune, c.End-len(page))...)
		}
		copy(page[c.Start:], []rune(c.Text))
		texts[c.Page] = page
	}
	sort.Ints(pages)

	var b strings.Builder
	for i, p := range pages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "--- Page %d ---\n%s", p, string(texts[p]))
	}
	return b.String(), nil
}

// Remove drops a document from the manifest and tombstones its index
// entries. The blob stays in the content store until GC.
func (s *DocumentService) Remove(ctx context.Context, documentID string) error {
	entry, err := s.manifest.Get(documentID)
	if err != nil {
		return err
	}

	// Wait out any ingestion, retry or re-embed of this document so its
	// index entries are all written before they are tombstoned.
	unlock := s.manifest.blobs.Lock(entry.Document.Blob.Hash)
	defer unlock()

	entry, err = s.manifest.Get(documentID)
	if err != nil {
		return err
	}
	if _, err := s.manifest.Commit(domain.TLogRecord{
		Type:       domain.RecordDocumentRemoved,
		DocumentID: documentID,
	}); err != nil {
		return fmt.Errorf("remove %s: %w", documentID, err)
	}
	logger.Info("removed %s (%s)", documentID, entry.Document.Filename)

	if len(entry.Chunks) == 0 || s.index == nil {
		return nil
	}
	ids := make([]string, len(entry.Chunks))
	for i := range entry.Chunks {
		ids[i] = entry.Chunks[i].ID
	}
	if err := s.index.Remove(ctx, ids...); err != nil {
		// Search ignores chunks of removed documents; compaction or a
		// rebuild clears the leftovers.
		logger.Warn("tombstone %d index entries of %s: %v", len(ids), documentID, err)
	}
	return nil
}

// Sitemap renders a markdown overview of every document with the opening
// of its first chunk.
func (s *DocumentService) Sitemap(_ context.Context) (string, error) {
	snap := s.manifest.Snapshot()
	entries := snap.Entries
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i].Document, entries[j].Document
		if a.Filename != b.Filename {
			return a.Filename < b.Filename
		}
		return a.ID < b.ID
	})

	var b strings.Builder
	b.WriteString("# Vault Sitemap\n\n")
	if len(entries) == 0 {
		b.WriteString("_No documents._\n")
		return b.String(), nil
	}
	for _, e := range entries {
		fmt.Fprintf(&b, "- **%s**  \n", e.Document.Title())
		if len(e.Chunks) == 0 {
			b.WriteString("  (empty)\n")
			continue
		}
		first := e.Chunks[0]
		fmt.Fprintf(&b, "  p.%d: %s\n", first.Page, domain.Snippet(first.Text, domain.DefaultSnippetLength))
	}
	return b.String(), nil
}
