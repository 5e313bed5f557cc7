package pdf

import (
	"fmt"

	"github.com/arcastone/vault/internal/core/domain"
	"github.com/arcastone/vault/internal/core/ports/driven"
	"github.com/arcastone/vault/internal/logger"
)

// NewExtractor picks the extraction backend for settings. It is called
// once at startup so every document in a process uses the same backend.
func NewExtractor(settings domain.ExtractionSettings, runner driven.CommandRunner, tmpDir string) (driven.TextExtractor, error) {
	if runner == nil {
		runner = ExecRunner{}
	}

	var extractor driven.TextExtractor
	switch settings.Backend {
	case domain.ExtractionNative:
		extractor = NewNative()

	case domain.ExtractionPdftotext:
		p := NewPdftotext(runner, tmpDir)
		if !p.Available() {
			return nil, fmt.Errorf("%w: %w\n%s", domain.ErrExtractorUnavailable, ErrPDFToolNotFound, InstallInstructions())
		}
		extractor = p

	case domain.ExtractionAuto, "":
		if p := NewPdftotext(runner, tmpDir); p.Available() {
			extractor = p
		} else {
			extractor = NewNative()
		}

	default:
		return nil, fmt.Errorf("extraction backend %q: %w", settings.Backend, domain.ErrInvalidInput)
	}

	if settings.OCR {
		extractor = NewOCR(extractor, runner, tmpDir)
	}
	logger.Debug("text extraction backend: %s", extractor.Name())
	return extractor, nil
}
