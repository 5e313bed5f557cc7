package domain

import "time"

// RecordType identifies the manifest mutation carried by a TLogRecord.
type RecordType uint8

// Record types. Values are persisted; never renumber.
const (
	RecordDocumentAdded       RecordType = 1
	RecordExtractionCompleted RecordType = 2
	RecordIndexUpdated        RecordType = 3
	RecordDocumentRemoved     RecordType = 4
	RecordDocumentFailed      RecordType = 5
	RecordDocumentRetried     RecordType = 6
)

// IsValid returns true if the record type is recognised.
func (t RecordType) IsValid() bool {
	return t >= RecordDocumentAdded && t <= RecordDocumentRetried
}

// String returns the event name.
func (t RecordType) String() string {
	switch t {
	case RecordDocumentAdded:
		return "document-added"
	case RecordExtractionCompleted:
		return "extraction-completed"
	case RecordIndexUpdated:
		return "index-updated"
	case RecordDocumentRemoved:
		return "document-removed"
	case RecordDocumentFailed:
		return "document-failed"
	case RecordDocumentRetried:
		return "document-retried"
	default:
		return "unknown"
	}
}

// TLogRecord is one ordered, durable manifest mutation.
// Seq is assigned at commit time and is gapless across the log.
type TLogRecord struct {
	Seq        uint64     `json:"seq"`
	Type       RecordType `json:"type"`
	Time       time.Time  `json:"time"`
	DocumentID string     `json:"document_id"`

	// Document is the full pending document for document-added.
	Document *Document `json:"document,omitempty"`

	// PageCount and Chunks describe extraction-completed.
	PageCount int         `json:"page_count,omitempty"`
	Chunks    []PageChunk `json:"chunks,omitempty"`

	// ChunkIDs lists chunks that now have an IndexEntry (index-updated).
	// ResetEmbedded clears the previous set first, as a rebuild does.
	ChunkIDs      []string `json:"chunk_ids,omitempty"`
	ResetEmbedded bool     `json:"reset_embedded,omitempty"`

	// Reason explains document-failed.
	Reason string `json:"reason,omitempty"`
}

// SnapshotVersion is the current checkpoint format version.
const SnapshotVersion = 1

// Snapshot is a checkpoint of the manifest projection.
// Entries are kept in ingestion order.
type Snapshot struct {
	Version   int             `json:"version"`
	LastSeq   uint64          `json:"last_seq"`
	CreatedAt time.Time       `json:"created_at"`
	Entries   []ManifestEntry `json:"entries"`
}
