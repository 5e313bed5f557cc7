package pdf

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/arcastone/vault/internal/core/domain"
	"github.com/arcastone/vault/internal/core/ports/driven"
)

// Ensure NativeExtractor implements the interface.
var _ driven.TextExtractor = (*NativeExtractor)(nil)

// NativeExtractor reads the PDF text layer in-process.
type NativeExtractor struct{}

// NewNative creates a native extractor.
func NewNative() *NativeExtractor {
	return &NativeExtractor{}
}

// Name identifies the backend.
func (e *NativeExtractor) Name() string {
	return "native"
}

// Extract returns one Page per PDF page, numbered from 1.
// The reader panics on some malformed files; that is reported as
// domain.ErrExtractionFailed like any other parse error.
func (e *NativeExtractor) Extract(ctx context.Context, data []byte) (pages []domain.Page, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("%w: malformed pdf: %v", domain.ErrExtractionFailed, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: open pdf: %w", domain.ErrExtractionFailed, err)
	}

	n := reader.NumPage()
	pages = make([]domain.Page, 0, n)
	for i := 1; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := domain.Page{Number: i}
		p := reader.Page(i)
		if !p.V.IsNull() {
			text, err := p.GetPlainText(nil)
			if err != nil {
				return nil, fmt.Errorf("%w: page %d: %w", domain.ErrExtractionFailed, i, err)
			}
			page.Text = strings.TrimSpace(text)
		}
		pages = append(pages, page)
	}
	return pages, nil
}
