package domain

// BlobIssue describes a blob that failed verification.
type BlobIssue struct {
	DocumentID string `json:"document_id"`
	Filename   string `json:"filename"`
	Hash       string `json:"hash"`
	Error      string `json:"error"`
}

// VerifyReport summarises a full integrity check of referenced blobs.
type VerifyReport struct {
	Checked int         `json:"checked"`
	Missing []BlobIssue `json:"missing,omitempty"`
	Corrupt []BlobIssue `json:"corrupt,omitempty"`
}

// Healthy returns true if every referenced blob verified.
func (r VerifyReport) Healthy() bool {
	return len(r.Missing) == 0 && len(r.Corrupt) == 0
}

// GCReport summarises a garbage-collection pass over the content store.
type GCReport struct {
	Scanned int   `json:"scanned"`
	Removed int   `json:"removed"`
	Bytes   int64 `json:"bytes"`
}

// RebuildReport summarises a full vector index rebuild.
type RebuildReport struct {
	Documents int `json:"documents"`
	Chunks    int `json:"chunks"`
	Embedded  int `json:"embedded"`
	Failed    int `json:"failed"`
}

// Stats is a summary of vault contents.
type Stats struct {
	Documents    int            `json:"documents"`
	ByStatus     map[Status]int `json:"by_status"`
	Chunks       int            `json:"chunks"`
	Blobs        int            `json:"blobs"`
	BlobBytes    int64          `json:"blob_bytes"`
	IndexEntries int            `json:"index_entries"`
	LastSeq      uint64         `json:"last_seq"`
}
