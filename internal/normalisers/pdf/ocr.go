package pdf

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/arcastone/vault/internal/core/domain"
	"github.com/arcastone/vault/internal/core/ports/driven"
	"github.com/arcastone/vault/internal/logger"
)

// Ensure OCRExtractor implements the interface.
var _ driven.TextExtractor = (*OCRExtractor)(nil)

const (
	ocrTool = "ocrmypdf"

	// ocrSamplePages is how many leading pages decide whether a file is a scan.
	ocrSamplePages = 32

	// ocrEmptyRatio is the share of empty sampled pages that triggers OCR.
	ocrEmptyRatio = 0.8
)

// OCRExtractor re-extracts scanned PDFs after running ocrmypdf on them.
type OCRExtractor struct {
	inner  driven.TextExtractor
	runner driven.CommandRunner
	tmpDir string
}

// NewOCR wraps inner with an OCR pass.
func NewOCR(inner driven.TextExtractor, runner driven.CommandRunner, tmpDir string) *OCRExtractor {
	return &OCRExtractor{inner: inner, runner: runner, tmpDir: tmpDir}
}

// Name identifies the backend.
func (e *OCRExtractor) Name() string {
	return e.inner.Name() + "+ocr"
}

// Extract delegates to the inner extractor and falls back to OCR when the
// text layer is mostly empty. A missing ocrmypdf or a failed OCR run keeps
// the original pages.
func (e *OCRExtractor) Extract(ctx context.Context, data []byte) ([]domain.Page, error) {
	pages, err := e.inner.Extract(ctx, data)
	if err != nil {
		return nil, err
	}
	if !NeedsOCR(pages) {
		return pages, nil
	}
	if _, err := e.runner.LookPath(ocrTool); err != nil {
		logger.Warn("%d pages have no text layer and %s is not installed", len(pages), ocrTool)
		return pages, nil
	}

	ocred, err := e.ocr(ctx, data)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logger.Warn("OCR failed, keeping text layer: %v", err)
		return pages, nil
	}

	redone, err := e.inner.Extract(ctx, ocred)
	if err != nil {
		logger.Warn("extraction after OCR failed, keeping text layer: %v", err)
		return pages, nil
	}
	logger.Debug("OCR recovered text for %d pages", len(redone))
	return redone, nil
}

func (e *OCRExtractor) ocr(ctx context.Context, data []byte) ([]byte, error) {
	in, cleanup, err := stage(e.tmpDir, data)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	out := strings.TrimSuffix(in, ".pdf") + ".ocr.pdf"
	defer os.Remove(out)

	if _, err := e.runner.Run(ctx, ocrTool, "--skip-text", in, out); err != nil {
		return nil, err
	}
	result, err := os.ReadFile(out)
	if err != nil {
		return nil, fmt.Errorf("read OCR output: %w", err)
	}
	return result, nil
}

// NeedsOCR reports whether more than 80% of the first 32 pages are empty.
func NeedsOCR(pages []domain.Page) bool {
	sample := pages
	if len(sample) > ocrSamplePages {
		sample = sample[:ocrSamplePages]
	}
	if len(sample) == 0 {
		return false
	}
	empty := 0
	for _, p := range sample {
		if strings.TrimSpace(p.Text) == "" {
			empty++
		}
	}
	return float64(empty)/float64(len(sample)) > ocrEmptyRatio
}
