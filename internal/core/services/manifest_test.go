package services

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcastone/vault/internal/adapters/driven/storage/memory"
	"github.com/arcastone/vault/internal/core/domain"
)

func pendingDoc(id, hash string) *domain.Document {
	return &domain.Document{
		ID:         id,
		Blob:       domain.BlobRef{Hash: hash, Size: 10},
		Filename:   id + ".pdf",
		IngestedAt: fixedClock(),
		Status:     domain.StatusPending,
	}
}

func addRecord(doc *domain.Document) domain.TLogRecord {
	return domain.TLogRecord{Type: domain.RecordDocumentAdded, DocumentID: doc.ID, Document: doc}
}

func openEmpty(t *testing.T) (*Manifest, *memory.TransactionLog) {
	t.Helper()
	log := memory.NewTransactionLog()
	m, err := OpenManifest(log, memory.NewCheckpointStore(), WithCheckpointEvery(0), WithClock(fixedClock))
	require.NoError(t, err)
	return m, log
}

func TestManifest_CommitAssignsGaplessSeq(t *testing.T) {
	m, log := openEmpty(t)

	for i, id := range []string{"a", "b", "c"} {
		rec, err := m.Commit(addRecord(pendingDoc(id, "b3:"+id)))
		require.NoError(t, err)
		assert.Equal(t, uint64(i+1), rec.Seq)
		assert.Equal(t, fixedClock(), rec.Time)
	}

	assert.Equal(t, uint64(3), m.LastSeq())
	assert.Equal(t, 3, m.Len())
	assert.Len(t, log.Records(), 3)

	docs := m.Documents()
	require.Len(t, docs, 3)
	assert.Equal(t, "a", docs[0].ID)
	assert.Equal(t, "c", docs[2].ID)
}

func TestManifest_CommitRejectsInvalid(t *testing.T) {
	m, log := openEmpty(t)
	_, err := m.Commit(addRecord(pendingDoc("a", "b3:a")))
	require.NoError(t, err)

	tests := []struct {
		name    string
		rec     domain.TLogRecord
		wantErr error
	}{
		{
			name:    "unknown type",
			rec:     domain.TLogRecord{Type: 99, DocumentID: "a"},
			wantErr: domain.ErrInvalidInput,
		},
		{
			name:    "duplicate add",
			rec:     addRecord(pendingDoc("a", "b3:other")),
			wantErr: domain.ErrInvalidInput,
		},
		{
			name:    "add without document",
			rec:     domain.TLogRecord{Type: domain.RecordDocumentAdded, DocumentID: "x"},
			wantErr: domain.ErrInvalidInput,
		},
		{
			name: "add as indexed",
			rec: func() domain.TLogRecord {
				d := pendingDoc("x", "b3:x")
				d.Status = domain.StatusIndexed
				return addRecord(d)
			}(),
			wantErr: domain.ErrInvalidTransition,
		},
		{
			name:    "unknown document",
			rec:     domain.TLogRecord{Type: domain.RecordDocumentFailed, DocumentID: "missing"},
			wantErr: domain.ErrNotFound,
		},
		{
			name:    "index before extraction",
			rec:     domain.TLogRecord{Type: domain.RecordIndexUpdated, DocumentID: "a"},
			wantErr: domain.ErrInvalidTransition,
		},
		{
			name:    "retry of pending",
			rec:     domain.TLogRecord{Type: domain.RecordDocumentRetried, DocumentID: "a"},
			wantErr: domain.ErrInvalidTransition,
		},
		{
			name: "foreign chunk",
			rec: domain.TLogRecord{
				Type:       domain.RecordExtractionCompleted,
				DocumentID: "a",
				Chunks:     []domain.PageChunk{{ID: "z:1:0", DocumentID: "z"}},
			},
			wantErr: domain.ErrInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Commit(tt.rec)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	// Rejected records never reach the log or the sequence.
	assert.Equal(t, uint64(1), m.LastSeq())
	assert.Len(t, log.Records(), 1)
}

func TestManifest_FailedAppendLeavesStateUntouched(t *testing.T) {
	m, log := openEmpty(t)
	log.FailAppend = errors.New("disk full")

	_, err := m.Commit(addRecord(pendingDoc("a", "b3:a")))
	require.Error(t, err)
	assert.Equal(t, 0, m.Len())
	assert.Equal(t, uint64(0), m.LastSeq())

	rec, err := m.Commit(addRecord(pendingDoc("a", "b3:a")))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), rec.Seq)
}

func TestManifest_Lifecycle(t *testing.T) {
	m, _ := openEmpty(t)
	_, err := m.Commit(addRecord(pendingDoc("a", "b3:a")))
	require.NoError(t, err)

	chunks := []domain.PageChunk{
		{ID: "a:1:0", DocumentID: "a", Page: 1, Text: "one"},
		{ID: "a:2:0", DocumentID: "a", Page: 2, Text: "two"},
	}
	_, err = m.Commit(domain.TLogRecord{Type: domain.RecordExtractionCompleted, DocumentID: "a", PageCount: 2, Chunks: chunks})
	require.NoError(t, err)

	doc, err := m.Document("a")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusExtracted, doc.Status)
	assert.Equal(t, 2, doc.PageCount)

	// Partial embedding keeps the document extracted.
	_, err = m.Commit(domain.TLogRecord{Type: domain.RecordIndexUpdated, DocumentID: "a", ChunkIDs: []string{"a:1:0"}})
	require.NoError(t, err)
	entry, err := m.Get("a")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusExtracted, entry.Document.Status)
	assert.Len(t, entry.Unembedded(), 1)

	_, _, ok := m.IndexedChunk("a", "a:1:0")
	assert.False(t, ok, "chunks of unindexed documents are not searchable")

	_, err = m.Commit(domain.TLogRecord{Type: domain.RecordIndexUpdated, DocumentID: "a", ChunkIDs: []string{"a:2:0"}})
	require.NoError(t, err)
	doc, _ = m.Document("a")
	assert.Equal(t, domain.StatusIndexed, doc.Status)

	_, chunk, ok := m.IndexedChunk("a", "a:2:0")
	require.True(t, ok)
	assert.Equal(t, "two", chunk.Text)

	_, err = m.Commit(domain.TLogRecord{Type: domain.RecordIndexUpdated, DocumentID: "a", ChunkIDs: []string{"a:9:0"}})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = m.Commit(domain.TLogRecord{Type: domain.RecordDocumentFailed, DocumentID: "a", Reason: "broken"})
	require.NoError(t, err)
	doc, _ = m.Document("a")
	assert.Equal(t, domain.StatusFailed, doc.Status)
	assert.Equal(t, "broken", doc.FailReason)

	_, err = m.Commit(domain.TLogRecord{Type: domain.RecordDocumentFailed, DocumentID: "a"})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = m.Commit(domain.TLogRecord{Type: domain.RecordDocumentRetried, DocumentID: "a"})
	require.NoError(t, err)
	entry, _ = m.Get("a")
	assert.Equal(t, domain.StatusPending, entry.Document.Status)
	assert.Empty(t, entry.Document.FailReason)
	assert.Empty(t, entry.Chunks)
}

func TestManifest_RemoveReassignsHash(t *testing.T) {
	m, _ := openEmpty(t)
	for _, id := range []string{"a", "b"} {
		_, err := m.Commit(addRecord(pendingDoc(id, "b3:same")))
		require.NoError(t, err)
	}

	doc, ok := m.FindByHash("b3:same")
	require.True(t, ok)
	assert.Equal(t, "a", doc.ID)

	_, err := m.Commit(domain.TLogRecord{Type: domain.RecordDocumentRemoved, DocumentID: "a"})
	require.NoError(t, err)

	doc, ok = m.FindByHash("b3:same")
	require.True(t, ok)
	assert.Equal(t, "b", doc.ID)

	_, err = m.Commit(domain.TLogRecord{Type: domain.RecordDocumentRemoved, DocumentID: "b"})
	require.NoError(t, err)
	_, ok = m.FindByHash("b3:same")
	assert.False(t, ok)

	_, err = m.Get("a")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestManifest_RecoveryReproducesState(t *testing.T) {
	v := newTestVault(t)
	v.add(t, "alpha.pdf", "Alpha page", "more alpha")
	v.add(t, "beta.pdf", "Beta")
	failed := v.add(t, "broken.pdf", "Broken")
	_, err := v.manifest.Commit(domain.TLogRecord{Type: domain.RecordDocumentFailed, DocumentID: failed.ID, Reason: "bad"})
	require.NoError(t, err)

	want := v.manifest.Snapshot()
	got := v.reopen(t).Snapshot()

	assert.Equal(t, want.LastSeq, got.LastSeq)
	assert.Equal(t, want.Entries, got.Entries)
}

func TestManifest_RecoveryFromCheckpoint(t *testing.T) {
	v := newTestVault(t, withCheckpointEvery(4))
	v.add(t, "a.pdf", "Alpha")
	v.add(t, "b.pdf", "Beta")
	v.add(t, "c.pdf", "Gamma")

	_, err := v.checkpoint.Load()
	require.NoError(t, err, "a checkpoint was written automatically")
	assert.Less(t, len(v.log.Records()), int(v.manifest.LastSeq()), "the log was pruned")

	want := v.manifest.Snapshot()
	got := v.reopen(t).Snapshot()
	assert.Equal(t, want.LastSeq, got.LastSeq)
	assert.Equal(t, want.Entries, got.Entries)
}

func TestManifest_RecoveryAfterInterruptedPrune(t *testing.T) {
	v := newTestVault(t)
	v.add(t, "a.pdf", "Alpha")

	// Checkpoint saved but the log never pruned.
	require.NoError(t, v.checkpoint.Save(v.manifest.Snapshot()))
	v.add(t, "b.pdf", "Beta")

	want := v.manifest.Snapshot()
	got := v.reopen(t).Snapshot()
	assert.Equal(t, want.LastSeq, got.LastSeq)
	assert.Equal(t, want.Entries, got.Entries)
}

func TestManifest_ExplicitCheckpoint(t *testing.T) {
	v := newTestVault(t)
	v.add(t, "a.pdf", "Alpha")

	require.NoError(t, v.manifest.Checkpoint())
	assert.Empty(t, v.log.Records())

	snap, err := v.checkpoint.Load()
	require.NoError(t, err)
	assert.Equal(t, v.manifest.LastSeq(), snap.LastSeq)
	assert.Equal(t, domain.SnapshotVersion, snap.Version)

	v.add(t, "b.pdf", "Beta")
	got := v.reopen(t)
	assert.Equal(t, 2, got.Len())
}

func TestManifest_GapIsCorrupt(t *testing.T) {
	v := newTestVault(t)
	v.add(t, "a.pdf", "Alpha")
	v.add(t, "b.pdf", "Beta")

	require.NoError(t, v.log.Filter(func(rec domain.TLogRecord) bool { return rec.Seq != 2 }))

	_, err := OpenManifest(v.log, v.checkpoint)
	assert.ErrorIs(t, err, domain.ErrTlogCorrupt)
}

func TestManifest_InapplicableRecordIsCorrupt(t *testing.T) {
	log := memory.NewTransactionLog()
	require.NoError(t, log.Append(domain.TLogRecord{Seq: 1, Type: domain.RecordDocumentFailed, DocumentID: "ghost"}))

	_, err := OpenManifest(log, memory.NewCheckpointStore())
	assert.ErrorIs(t, err, domain.ErrTlogCorrupt)
}
