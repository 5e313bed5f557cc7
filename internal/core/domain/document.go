package domain

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// HashPrefix marks a BLAKE3-256 content digest.
const HashPrefix = "b3:"

// Status is the ingestion state of a Document.
type Status string

// Lifecycle states. Failed is absorbing until a manual retry.
const (
	StatusPending   Status = "pending"
	StatusExtracted Status = "extracted"
	StatusIndexed   Status = "indexed"
	StatusFailed    Status = "failed"
)

// IsValid returns true if the status is recognised.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusExtracted, StatusIndexed, StatusFailed:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (s Status) String() string {
	return string(s)
}

// CanTransition reports whether the lifecycle allows moving from s to next.
func (s Status) CanTransition(next Status) bool {
	if next == StatusFailed {
		return s != StatusFailed
	}
	switch s {
	case StatusPending:
		return next == StatusExtracted
	case StatusExtracted:
		return next == StatusIndexed || next == StatusExtracted
	case StatusIndexed:
		// Rebuilds re-embed already indexed documents.
		return next == StatusIndexed || next == StatusExtracted
	case StatusFailed:
		return next == StatusPending
	default:
		return false
	}
}

// BlobRef identifies stored bytes by content hash.
// Identity is the hash; the size is informational.
type BlobRef struct {
	// Hash is the prefixed digest, e.g. "b3:ab12...".
	Hash string `json:"hash"`

	// Size is the byte length of the blob.
	Size int64 `json:"size"`
}

// Hex returns the digest without its algorithm prefix.
func (b BlobRef) Hex() string {
	return strings.TrimPrefix(b.Hash, HashPrefix)
}

// IsZero returns true if the reference is unset.
func (b BlobRef) IsZero() bool {
	return b.Hash == ""
}

// Document is one ingested PDF.
// Its ID is generated at first ingestion and is independent of the hash.
type Document struct {
	// ID is the stable document identifier.
	ID string `json:"id"`

	// Blob references the stored bytes.
	Blob BlobRef `json:"blob"`

	// Filename is the original display name, base name only.
	Filename string `json:"filename"`

	// IngestedAt is when the document was first added.
	IngestedAt time.Time `json:"ingested_at"`

	// PageCount is set once extraction completes.
	PageCount int `json:"page_count"`

	// Status is the current lifecycle state.
	Status Status `json:"status"`

	// FailReason explains a failed status.
	FailReason string `json:"fail_reason,omitempty"`
}

// Title returns the filename, or the ID when no filename is known.
func (d Document) Title() string {
	if d.Filename != "" {
		return d.Filename
	}
	return d.ID
}

// Page is one page of extracted text, numbered from 1.
type Page struct {
	Number int
	Text   string
}

// PageChunk is an embeddable unit of extracted text within one Document.
// Start and End are rune offsets into the normalised page text.
type PageChunk struct {
	ID         string `json:"id"`
	DocumentID string `json:"document_id"`
	Page       int    `json:"page"`
	Index      int    `json:"index"`
	Start      int    `json:"start"`
	End        int    `json:"end"`
	Text       string `json:"text"`
}

// ChunkID builds the deterministic identifier of a chunk.
func ChunkID(documentID string, page, index int) string {
	return fmt.Sprintf("%s:%d:%d", documentID, page, index)
}

// ManifestEntry is the persisted projection of a Document, its chunks,
// and which chunks currently have an IndexEntry.
type ManifestEntry struct {
	Document Document        `json:"document"`
	Chunks   []PageChunk     `json:"chunks,omitempty"`
	Embedded map[string]bool `json:"embedded,omitempty"`
}

// FullyEmbedded returns true when every chunk has an IndexEntry.
func (e *ManifestEntry) FullyEmbedded() bool {
	for i := range e.Chunks {
		if !e.Embedded[e.Chunks[i].ID] {
			return false
		}
	}
	return true
}

// Unembedded returns the chunks still waiting for an IndexEntry, in order.
func (e *ManifestEntry) Unembedded() []PageChunk {
	var out []PageChunk
	for i := range e.Chunks {
		if !e.Embedded[e.Chunks[i].ID] {
			out = append(out, e.Chunks[i])
		}
	}
	return out
}

// Chunk returns the chunk with the given ID.
func (e *ManifestEntry) Chunk(id string) (PageChunk, bool) {
	for i := range e.Chunks {
		if e.Chunks[i].ID == id {
			return e.Chunks[i], true
		}
	}
	return PageChunk{}, false
}

// Clone returns a deep copy safe to hand to readers. Empty collections
// come back nil so clones compare equal after a JSON round trip.
func (e *ManifestEntry) Clone() ManifestEntry {
	out := ManifestEntry{Document: e.Document}
	if len(e.Chunks) > 0 {
		out.Chunks = make([]PageChunk, len(e.Chunks))
		copy(out.Chunks, e.Chunks)
	}
	if len(e.Embedded) > 0 {
		out.Embedded = make(map[string]bool, len(e.Embedded))
		for k, v := range e.Embedded {
			out.Embedded[k] = v
		}
	}
	return out
}

// IngestResult reports the outcome of ingesting one file.
type IngestResult struct {
	// Path is the source path or display name.
	Path string

	// Document is set on success, including dedup hits.
	Document *Document

	// Deduplicated is true when the bytes were already known.
	Deduplicated bool

	// Err is set when the file could not be ingested.
	Err error
}

// pdfMagic opens every PDF file.
var pdfMagic = []byte("%PDF-")

// LooksLikePDF reports whether a file is a PDF by magic bytes or extension.
func LooksLikePDF(name string, head []byte) bool {
	if bytes.HasPrefix(head, pdfMagic) {
		return true
	}
	return strings.EqualFold(filepath.Ext(name), ".pdf")
}
