package domain

import "errors"

// ExportStatus classifies the outcome of exporting one document.
type ExportStatus string

// Export outcomes.
const (
	ExportOK          ExportStatus = "ok"
	ExportNotFound    ExportStatus = "not_found"
	ExportCorrupt     ExportStatus = "corrupt"
	ExportWriteFailed ExportStatus = "write_failed"
)

// ExportResult is the per-document outcome of an export batch.
type ExportResult struct {
	DocumentID string       `json:"document_id"`
	Status     ExportStatus `json:"status"`
	Path       string       `json:"path,omitempty"`
	Bytes      int64        `json:"bytes,omitempty"`
	Error      string       `json:"error,omitempty"`

	// Err is the underlying error, matchable with errors.Is.
	Err error `json:"-"`
}

// OK returns true if the document was written.
func (r ExportResult) OK() bool {
	return r.Status == ExportOK
}

// ExportStatusFor maps an error to its export classification.
// Anything that is not a missing or corrupt blob is a write failure.
func ExportStatusFor(err error) ExportStatus {
	switch {
	case err == nil:
		return ExportOK
	case errors.Is(err, ErrNotFound):
		return ExportNotFound
	case errors.Is(err, ErrCorrupt):
		return ExportCorrupt
	default:
		return ExportWriteFailed
	}
}
