package domain

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSnippet(t *testing.T) {
	assert.Equal(t, "short", Snippet("  short  ", 240))
	assert.Equal(t, "abc…", Snippet("abcdef", 3))
	assert.Equal(t, "abcdef", Snippet("abcdef", 0))

	long := strings.Repeat("é", 300)
	got := Snippet(long, DefaultSnippetLength)
	assert.Equal(t, DefaultSnippetLength+1, len([]rune(got)))
}

func TestCitation_String(t *testing.T) {
	c := Citation{Filename: "report.pdf", Page: 2}
	assert.Equal(t, "report.pdf (p.2)", c.String())
}

func TestExportStatusFor(t *testing.T) {
	assert.Equal(t, ExportOK, ExportStatusFor(nil))
	assert.Equal(t, ExportNotFound, ExportStatusFor(fmt.Errorf("blob: %w", ErrNotFound)))
	assert.Equal(t, ExportCorrupt, ExportStatusFor(fmt.Errorf("blob: %w", ErrCorrupt)))
	assert.Equal(t, ExportWriteFailed, ExportStatusFor(errors.New("disk full")))
}

func TestRecordType_String(t *testing.T) {
	assert.Equal(t, "document-added", RecordDocumentAdded.String())
	assert.Equal(t, "extraction-completed", RecordExtractionCompleted.String())
	assert.Equal(t, "index-updated", RecordIndexUpdated.String())
	assert.Equal(t, "document-removed", RecordDocumentRemoved.String())
	assert.Equal(t, "unknown", RecordType(99).String())
	assert.False(t, RecordType(0).IsValid())
	assert.True(t, RecordDocumentRetried.IsValid())
}

func TestSettings_IsConfigured(t *testing.T) {
	defaults := DefaultAppSettings()
	assert.True(t, defaults.Embedding.IsConfigured())
	assert.False(t, defaults.LLM.IsConfigured())

	openai := EmbeddingSettings{Provider: AIProviderOpenAI}
	assert.False(t, openai.IsConfigured())
	openai.APIKey = "sk-test"
	assert.True(t, openai.IsConfigured())

	assert.False(t, EmbeddingSettings{Provider: AIProviderAnthropic, APIKey: "k"}.IsConfigured())
	assert.True(t, LLMSettings{Provider: AIProviderOllama}.IsConfigured())
	assert.False(t, LLMSettings{Provider: AIProviderLocal}.IsConfigured())
}

func TestCompressionAndBackend_IsValid(t *testing.T) {
	assert.True(t, CompressionLZ4.IsValid())
	assert.False(t, Compression("gzip").IsValid())
	assert.True(t, ExtractionPdftotext.IsValid())
	assert.False(t, ExtractionBackend("tesseract").IsValid())
}
