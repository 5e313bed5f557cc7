package services

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/arcastone/vault/internal/core/domain"
	"github.com/arcastone/vault/internal/core/ports/driven"
	"github.com/arcastone/vault/internal/logger"
)

// DefaultCheckpointEvery is the number of commits between automatic checkpoints.
const DefaultCheckpointEvery = 256

// Manifest is the authoritative catalog of documents.
//
// It is an in-memory projection of the transaction log. Every mutation is
// appended and synced to the log before it is applied, so readers never
// observe state that a crash could lose. A single mutex serialises commits,
// which keeps sequence numbers gapless and per-document records ordered.
type Manifest struct {
	mu         sync.RWMutex
	log        driven.TransactionLog
	checkpoint driven.CheckpointStore
	every      int
	now        func() time.Time

	lastSeq uint64
	since   int
	entries map[string]*domain.ManifestEntry
	order   []string
	byHash  map[string]string

	// blobs serialises the multi-step work on one document, keyed by the
	// hash of its bytes: ingestion, retry, removal and blob deletion.
	blobs *keyedMutex
}

// ManifestOption configures a Manifest.
type ManifestOption func(*Manifest)

// WithCheckpointEvery sets the automatic checkpoint interval. Zero disables it.
func WithCheckpointEvery(n int) ManifestOption {
	return func(m *Manifest) {
		if n >= 0 {
			m.every = n
		}
	}
}

// WithClock overrides the record timestamp source.
func WithClock(now func() time.Time) ManifestOption {
	return func(m *Manifest) {
		if now != nil {
			m.now = now
		}
	}
}

// OpenManifest recovers the manifest from the latest checkpoint plus the
// log records after it. A sequence gap or an inapplicable record fails
// with domain.ErrTlogCorrupt.
func OpenManifest(log driven.TransactionLog, checkpoint driven.CheckpointStore, opts ...ManifestOption) (*Manifest, error) {
	m := &Manifest{
		log:        log,
		checkpoint: checkpoint,
		every:      DefaultCheckpointEvery,
		now:        func() time.Time { return time.Now().UTC() },
		entries:    make(map[string]*domain.ManifestEntry),
		byHash:     make(map[string]string),
		blobs:      newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(m)
	}

	done := logger.Timed("manifest recovery")
	defer done()

	snap, err := checkpoint.Load()
	switch {
	case errors.Is(err, domain.ErrNotFound):
		logger.Debug("no checkpoint, replaying log from the start")
	case err != nil:
		return nil, fmt.Errorf("load checkpoint: %w", err)
	default:
		m.restore(snap)
		logger.Debug("checkpoint at seq %d with %d documents", snap.LastSeq, len(snap.Entries))
	}

	replayed := 0
	err = log.Replay(func(rec domain.TLogRecord) error {
		if rec.Seq <= m.lastSeq {
			// Left behind by a checkpoint whose prune did not finish.
			return nil
		}
		if rec.Seq != m.lastSeq+1 {
			return fmt.Errorf("%w: expected seq %d, found %d", domain.ErrTlogCorrupt, m.lastSeq+1, rec.Seq)
		}
		if err := m.validate(rec); err != nil {
			return fmt.Errorf("%w: seq %d (%s): %w", domain.ErrTlogCorrupt, rec.Seq, rec.Type, err)
		}
		m.apply(rec)
		m.lastSeq = rec.Seq
		m.since++
		replayed++
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("replay log: %w", err)
	}
	if replayed > 0 {
		logger.Info("replayed %d log records, manifest at seq %d", replayed, m.lastSeq)
	}
	return m, nil
}

// Commit assigns the next sequence number to rec, validates it against
// the current state, makes it durable and applies it. The committed record
// is returned.
func (m *Manifest) Commit(rec domain.TLogRecord) (domain.TLogRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !rec.Type.IsValid() {
		return rec, fmt.Errorf("record type %d: %w", rec.Type, domain.ErrInvalidInput)
	}
	if err := m.validate(rec); err != nil {
		return rec, err
	}

	rec.Seq = m.lastSeq + 1
	if rec.Time.IsZero() {
		rec.Time = m.now()
	}
	if err := m.log.Append(rec); err != nil {
		return rec, fmt.Errorf("append %s: %w", rec.Type, err)
	}
	m.apply(rec)
	m.lastSeq = rec.Seq
	m.since++
	logger.Debug("commit seq=%d %s doc=%s", rec.Seq, rec.Type, rec.DocumentID)

	if m.every > 0 && m.since >= m.every {
		if err := m.checkpointLocked(); err != nil {
			// The record is durable in the log; the checkpoint is retried later.
			logger.Warn("automatic checkpoint failed: %v", err)
		}
	}
	return rec, nil
}

// Checkpoint snapshots the projection and prunes the log up to it.
func (m *Manifest) Checkpoint() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.checkpointLocked()
}

func (m *Manifest) checkpointLocked() error {
	snap := m.snapshotLocked()
	if err := m.checkpoint.Save(snap); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	if err := m.log.Prune(snap.LastSeq); err != nil {
		return fmt.Errorf("prune log: %w", err)
	}
	m.since = 0
	logger.Debug("checkpoint written at seq %d", snap.LastSeq)
	return nil
}

// validate checks rec against current state without mutating it.
func (m *Manifest) validate(rec domain.TLogRecord) error {
	if rec.Type == domain.RecordDocumentAdded {
		doc := rec.Document
		switch {
		case doc == nil || doc.ID == "":
			return fmt.Errorf("document-added without document: %w", domain.ErrInvalidInput)
		case doc.ID != rec.DocumentID:
			return fmt.Errorf("document-added id mismatch: %w", domain.ErrInvalidInput)
		case doc.Blob.IsZero():
			return fmt.Errorf("document %s without blob: %w", doc.ID, domain.ErrInvalidInput)
		case doc.Status != domain.StatusPending:
			return fmt.Errorf("document %s added as %s: %w", doc.ID, doc.Status, domain.ErrInvalidTransition)
		}
		if _, exists := m.entries[doc.ID]; exists {
			return fmt.Errorf("document %s already exists: %w", doc.ID, domain.ErrInvalidInput)
		}
		return nil
	}

	entry, ok := m.entries[rec.DocumentID]
	if !ok {
		return fmt.Errorf("document %s: %w", rec.DocumentID, domain.ErrNotFound)
	}
	status := entry.Document.Status

	switch rec.Type {
	case domain.RecordExtractionCompleted:
		if status != domain.StatusPending {
			return fmt.Errorf("extraction of %s document: %w", status, domain.ErrInvalidTransition)
		}
		for _, c := range rec.Chunks {
			if c.DocumentID != rec.DocumentID {
				return fmt.Errorf("chunk %s owned by %s: %w", c.ID, c.DocumentID, domain.ErrInvalidInput)
			}
		}
	case domain.RecordIndexUpdated:
		if status != domain.StatusExtracted && status != domain.StatusIndexed {
			return fmt.Errorf("index update of %s document: %w", status, domain.ErrInvalidTransition)
		}
		for _, id := range rec.ChunkIDs {
			if _, ok := entry.Chunk(id); !ok {
				return fmt.Errorf("chunk %s: %w", id, domain.ErrNotFound)
			}
		}
	case domain.RecordDocumentFailed:
		if !status.CanTransition(domain.StatusFailed) {
			return fmt.Errorf("fail %s document: %w", status, domain.ErrInvalidTransition)
		}
	case domain.RecordDocumentRetried:
		if !status.CanTransition(domain.StatusPending) {
			return fmt.Errorf("retry %s document: %w", status, domain.ErrInvalidTransition)
		}
	case domain.RecordDocumentRemoved:
	}
	return nil
}

// apply mutates the projection. rec must already be validated.
func (m *Manifest) apply(rec domain.TLogRecord) {
	switch rec.Type {
	case domain.RecordDocumentAdded:
		doc := *rec.Document
		m.entries[doc.ID] = &domain.ManifestEntry{Document: doc}
		m.order = append(m.order, doc.ID)
		if _, ok := m.byHash[doc.Blob.Hash]; !ok {
			m.byHash[doc.Blob.Hash] = doc.ID
		}

	case domain.RecordExtractionCompleted:
		e := m.entries[rec.DocumentID]
		e.Document.PageCount = rec.PageCount
		e.Document.Status = domain.StatusExtracted
		e.Chunks = append([]domain.PageChunk(nil), rec.Chunks...)
		e.Embedded = make(map[string]bool, len(rec.Chunks))

	case domain.RecordIndexUpdated:
		e := m.entries[rec.DocumentID]
		if rec.ResetEmbedded || e.Embedded == nil {
			e.Embedded = make(map[string]bool, len(e.Chunks))
		}
		for _, id := range rec.ChunkIDs {
			e.Embedded[id] = true
		}
		if e.FullyEmbedded() {
			e.Document.Status = domain.StatusIndexed
		} else {
			e.Document.Status = domain.StatusExtracted
		}

	case domain.RecordDocumentFailed:
		e := m.entries[rec.DocumentID]
		e.Document.Status = domain.StatusFailed
		e.Document.FailReason = rec.Reason

	case domain.RecordDocumentRetried:
		e := m.entries[rec.DocumentID]
		e.Document.Status = domain.StatusPending
		e.Document.FailReason = ""
		e.Document.PageCount = 0
		e.Chunks = nil
		e.Embedded = nil

	case domain.RecordDocumentRemoved:
		m.remove(rec.DocumentID)
	}
}

func (m *Manifest) remove(id string) {
	e := m.entries[id]
	delete(m.entries, id)
	for i, oid := range m.order {
		if oid == id {
			m.order = append(m.order[:i:i], m.order[i+1:]...)
			break
		}
	}

	hash := e.Document.Blob.Hash
	if m.byHash[hash] != id {
		return
	}
	delete(m.byHash, hash)
	for _, oid := range m.order {
		if m.entries[oid].Document.Blob.Hash == hash {
			m.byHash[hash] = oid
			return
		}
	}
}

func (m *Manifest) restore(snap *domain.Snapshot) {
	for i := range snap.Entries {
		e := snap.Entries[i].Clone()
		id := e.Document.ID
		m.entries[id] = &e
		m.order = append(m.order, id)
		if _, ok := m.byHash[e.Document.Blob.Hash]; !ok {
			m.byHash[e.Document.Blob.Hash] = id
		}
	}
	m.lastSeq = snap.LastSeq
}

func (m *Manifest) snapshotLocked() *domain.Snapshot {
	snap := &domain.Snapshot{
		Version:   domain.SnapshotVersion,
		LastSeq:   m.lastSeq,
		CreatedAt: m.now(),
		Entries:   make([]domain.ManifestEntry, 0, len(m.order)),
	}
	for _, id := range m.order {
		snap.Entries = append(snap.Entries, m.entries[id].Clone())
	}
	return snap
}

// Snapshot returns a deep copy of the projection.
func (m *Manifest) Snapshot() *domain.Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked()
}

// Get returns a copy of the entry for a document.
func (m *Manifest) Get(id string) (domain.ManifestEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[id]
	if !ok {
		return domain.ManifestEntry{}, fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}
	return e.Clone(), nil
}

// Document returns a copy of a document.
func (m *Manifest) Document(id string) (domain.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[id]
	if !ok {
		return domain.Document{}, fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}
	return e.Document, nil
}

// FindByHash returns the first live document referencing the blob.
func (m *Manifest) FindByHash(hash string) (domain.Document, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byHash[hash]
	if !ok {
		return domain.Document{}, false
	}
	return m.entries[id].Document, true
}

// Documents returns every document in ingestion order.
func (m *Manifest) Documents() []domain.Document {
	m.mu.RLock()
	defer m.mu.RUnlock()

	docs := make([]domain.Document, 0, len(m.order))
	for _, id := range m.order {
		docs = append(docs, m.entries[id].Document)
	}
	return docs
}

// IndexedChunk resolves a chunk hit to its document and chunk. It reports
// false unless the document is indexed and the chunk still exists.
func (m *Manifest) IndexedChunk(documentID, chunkID string) (domain.Document, domain.PageChunk, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[documentID]
	if !ok || e.Document.Status != domain.StatusIndexed {
		return domain.Document{}, domain.PageChunk{}, false
	}
	c, ok := e.Chunk(chunkID)
	if !ok {
		return domain.Document{}, domain.PageChunk{}, false
	}
	return e.Document, c, true
}

// LastSeq returns the sequence number of the last committed record.
func (m *Manifest) LastSeq() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastSeq
}

// Len returns the number of documents.
func (m *Manifest) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.order)
}

// Close closes the transaction log.
func (m *Manifest) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.log.Close()
}
