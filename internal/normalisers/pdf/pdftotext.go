package pdf

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/arcastone/vault/internal/core/domain"
	"github.com/arcastone/vault/internal/core/ports/driven"
)

// Ensure PdftotextExtractor implements the interface.
var _ driven.TextExtractor = (*PdftotextExtractor)(nil)

const pdftotextTool = "pdftotext"

// ErrPDFToolNotFound indicates pdftotext is not installed.
var ErrPDFToolNotFound = errors.New("pdftotext not found in PATH")

// InstallInstructions returns platform hints for installing poppler.
func InstallInstructions() string {
	return `pdftotext is part of poppler:
  macOS:         brew install poppler
  Debian/Ubuntu: apt install poppler-utils
  Fedora:        dnf install poppler-utils`
}

// PdftotextExtractor shells out to poppler's pdftotext.
type PdftotextExtractor struct {
	runner driven.CommandRunner
	tmpDir string
}

// NewPdftotext creates a pdftotext extractor that stages input in tmpDir.
func NewPdftotext(runner driven.CommandRunner, tmpDir string) *PdftotextExtractor {
	return &PdftotextExtractor{runner: runner, tmpDir: tmpDir}
}

// Name identifies the backend.
func (e *PdftotextExtractor) Name() string {
	return pdftotextTool
}

// Available reports whether pdftotext is on PATH.
func (e *PdftotextExtractor) Available() bool {
	_, err := e.runner.LookPath(pdftotextTool)
	return err == nil
}

// Extract writes data to a staging file and splits pdftotext output on
// form feeds, one per page.
func (e *PdftotextExtractor) Extract(ctx context.Context, data []byte) ([]domain.Page, error) {
	if !e.Available() {
		return nil, fmt.Errorf("%w: %w", domain.ErrExtractorUnavailable, ErrPDFToolNotFound)
	}

	in, cleanup, err := stage(e.tmpDir, data)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	out, err := e.runner.Run(ctx, pdftotextTool, "-layout", "-enc", "UTF-8", in, "-")
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: pdftotext failed: %w", domain.ErrExtractionFailed, err)
	}
	return SplitPages(string(out)), nil
}

// SplitPages splits form-feed separated text into numbered pages.
// pdftotext terminates every page with a form feed, so a trailing empty
// segment is not a page.
func SplitPages(text string) []domain.Page {
	parts := strings.Split(text, "\f")
	if len(parts) > 0 && strings.TrimSpace(parts[len(parts)-1]) == "" {
		parts = parts[:len(parts)-1]
	}
	pages := make([]domain.Page, len(parts))
	for i, p := range parts {
		pages[i] = domain.Page{Number: i + 1, Text: strings.TrimSpace(p)}
	}
	return pages
}

// stage writes data to a temporary PDF file and returns its path.
func stage(dir string, data []byte) (string, func(), error) {
	if dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return "", nil, fmt.Errorf("create staging dir: %w", err)
		}
	}
	f, err := os.CreateTemp(dir, "extract-*.pdf")
	if err != nil {
		return "", nil, fmt.Errorf("create staging file: %w", err)
	}
	name := f.Name()
	cleanup := func() { _ = os.Remove(name) }

	if _, err := f.Write(data); err != nil {
		f.Close()
		cleanup()
		return "", nil, fmt.Errorf("write staging file: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("close staging file: %w", err)
	}
	return name, cleanup, nil
}
