package driven

import "github.com/arcastone/vault/internal/core/domain"

// TransactionLog is the durable, ordered log of manifest mutations.
// Append is the single global serialization point; callers hold the
// manifest commit lock.
type TransactionLog interface {
	// Append writes the record and syncs it to stable storage before
	// returning. The record's Seq must already be assigned.
	Append(rec domain.TLogRecord) error

	// Replay calls fn for every record in log order.
	// A malformed complete record fails with domain.ErrTlogCorrupt.
	Replay(fn func(rec domain.TLogRecord) error) error

	// Prune drops every record with Seq <= upTo.
	Prune(upTo uint64) error

	// Close releases the log file.
	Close() error
}

// CheckpointStore persists manifest snapshots.
type CheckpointStore interface {
	// Load returns the latest snapshot, or domain.ErrNotFound if none exists.
	Load() (*domain.Snapshot, error)

	// Save atomically replaces the latest snapshot.
	Save(snap *domain.Snapshot) error
}
