package memory

import (
	"encoding/json"
	"sync"

	"github.com/arcastone/vault/internal/core/domain"
	"github.com/arcastone/vault/internal/core/ports/driven"
)

var (
	_ driven.TransactionLog  = (*TransactionLog)(nil)
	_ driven.CheckpointStore = (*CheckpointStore)(nil)
)

// TransactionLog is an in-memory driven.TransactionLog.
// Records are stored JSON-encoded so replay never aliases caller memory.
type TransactionLog struct {
	mu      sync.Mutex
	records [][]byte
	// FailAppend, when set, is returned by the next Append.
	FailAppend error
}

// NewTransactionLog creates an empty log.
func NewTransactionLog() *TransactionLog {
	return &TransactionLog{}
}

// Append stores the record.
func (l *TransactionLog) Append(rec domain.TLogRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.FailAppend; err != nil {
		l.FailAppend = nil
		return err
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	l.records = append(l.records, data)
	return nil
}

// Replay calls fn for every record in order.
func (l *TransactionLog) Replay(fn func(rec domain.TLogRecord) error) error {
	l.mu.Lock()
	records := append([][]byte(nil), l.records...)
	l.mu.Unlock()

	for _, data := range records {
		var rec domain.TLogRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return nil
}

// Prune drops records with Seq <= upTo.
func (l *TransactionLog) Prune(upTo uint64) error {
	return l.Filter(func(rec domain.TLogRecord) bool { return rec.Seq > upTo })
}

// Filter keeps only records for which keep returns true.
// Tests use it to fabricate gaps.
func (l *TransactionLog) Filter(keep func(rec domain.TLogRecord) bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	kept := l.records[:0]
	for _, data := range l.records {
		var rec domain.TLogRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return err
		}
		if keep(rec) {
			kept = append(kept, data)
		}
	}
	l.records = kept
	return nil
}

// Records returns a decoded copy of the log.
func (l *TransactionLog) Records() []domain.TLogRecord {
	var out []domain.TLogRecord
	_ = l.Replay(func(rec domain.TLogRecord) error {
		out = append(out, rec)
		return nil
	})
	return out
}

// Close is a no-op.
func (l *TransactionLog) Close() error {
	return nil
}

// CheckpointStore is an in-memory driven.CheckpointStore.
type CheckpointStore struct {
	mu   sync.Mutex
	data []byte
}

// NewCheckpointStore creates an empty checkpoint store.
func NewCheckpointStore() *CheckpointStore {
	return &CheckpointStore{}
}

// Load returns the saved snapshot or domain.ErrNotFound.
func (s *CheckpointStore) Load() (*domain.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil {
		return nil, domain.ErrNotFound
	}
	var snap domain.Snapshot
	if err := json.Unmarshal(s.data, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Save replaces the snapshot.
func (s *CheckpointStore) Save(snap *domain.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = data
	return nil
}
