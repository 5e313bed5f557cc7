// Package tlog provides the file-backed transaction log.
//
// The log is a single file: an 8-byte header followed by CRC-framed
// records, each synced to disk before Append returns. Each frame header
// carries its own checksum. On open, a record cut short by a crash is
// truncated away; a header or complete record that fails its checksum is
// reported as domain.ErrTlogCorrupt and never skipped.
package tlog

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/arcastone/vault/internal/core/domain"
	"github.com/arcastone/vault/internal/core/ports/driven"
	"github.com/arcastone/vault/internal/fsutil"
	"github.com/arcastone/vault/internal/logger"
)

var _ driven.TransactionLog = (*Log)(nil)

// errLogFailed marks a log whose file may hold a rejected record. Every
// operation fails until the log is reopened, which truncates or reports it.
var errLogFailed = errors.New("tlog unusable after failed rollback")

// Log is an append-only record file.
type Log struct {
	mu     sync.Mutex
	path   string
	f      *os.File
	size   int64
	failed error
}

// Open opens or creates the log at path, truncating a torn tail.
func Open(path string) (*Log, error) {
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if err := fsutil.WriteAtomic(path, fileHeader(), 0o600); err != nil {
			return nil, fmt.Errorf("creating tlog: %w", err)
		}
		data = fileHeader()
	case err != nil:
		return nil, fmt.Errorf("reading tlog: %w", err)
	}

	if err := checkHeader(data); err != nil {
		return nil, err
	}

	end, err := scan(data, nil)
	if err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening tlog: %w", err)
	}

	if end < len(data) {
		logger.Warn("tlog: truncating %d byte torn tail at offset %d", len(data)-end, end)
		if err := f.Truncate(int64(end)); err != nil {
			f.Close()
			return nil, fmt.Errorf("truncating torn tlog tail: %w", err)
		}
		if err := f.Sync(); err != nil {
			f.Close()
			return nil, fmt.Errorf("syncing tlog: %w", err)
		}
	}

	if _, err := f.Seek(int64(end), io.SeekStart); err != nil {
		f.Close()
		return nil, fmt.Errorf("seeking tlog: %w", err)
	}

	return &Log{path: path, f: f, size: int64(end)}, nil
}

// scan decodes every complete record after the header, calling fn for
// each, and returns the offset where valid data ends.
func scan(data []byte, fn func(domain.TLogRecord) error) (int, error) {
	off := fileHeaderSize
	for off < len(data) {
		rec, n, err := decodeRecord(data[off:])
		if errors.Is(err, errShortRecord) {
			return off, nil
		}
		if err != nil {
			return off, fmt.Errorf("tlog offset %d: %w", off, err)
		}
		if fn != nil {
			if err := fn(rec); err != nil {
				return off, err
			}
		}
		off += n
	}
	return off, nil
}

// Path returns the log file path.
func (l *Log) Path() string {
	return l.path
}

// Append writes the record and fsyncs before returning. A failed write is
// rolled back so the file never keeps a partial record.
func (l *Log) Append(rec domain.TLogRecord) error {
	buf, err := encodeRecord(rec)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.usable(); err != nil {
		return err
	}

	if _, err := l.f.Write(buf); err != nil {
		l.rollback()
		return fmt.Errorf("appending tlog record %d: %w", rec.Seq, err)
	}
	if err := l.f.Sync(); err != nil {
		l.rollback()
		return fmt.Errorf("syncing tlog record %d: %w", rec.Seq, err)
	}
	l.size += int64(len(buf))
	return nil
}

// rollback cuts the file back to the last acknowledged record. If that
// fails the log refuses further work, so a later record can never reuse
// the sequence number of one left behind in the file.
func (l *Log) rollback() {
	if err := l.f.Truncate(l.size); err != nil {
		logger.Error("tlog: rollback to %d failed: %v", l.size, err)
		l.failed = fmt.Errorf("%w: truncate: %v", errLogFailed, err)
		return
	}
	if _, err := l.f.Seek(l.size, io.SeekStart); err != nil {
		logger.Error("tlog: seek after rollback failed: %v", err)
		l.failed = fmt.Errorf("%w: seek: %v", errLogFailed, err)
	}
}

// usable reports why the log cannot be used; caller holds the lock.
func (l *Log) usable() error {
	if l.f == nil {
		return domain.ErrClosed
	}
	return l.failed
}

// Replay calls fn for every record in file order.
func (l *Log) Replay(fn func(rec domain.TLogRecord) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.usable(); err != nil {
		return err
	}

	data, err := l.read()
	if err != nil {
		return err
	}
	end, err := scan(data, fn)
	if err != nil {
		return err
	}
	if end != len(data) {
		return fmt.Errorf("tlog has %d undecodable trailing bytes: %w", len(data)-end, domain.ErrTlogCorrupt)
	}
	return nil
}

// Prune rewrites the log without records at or below upTo.
// The rewrite is atomic; a crash leaves either the old or the new file.
func (l *Log) Prune(upTo uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.usable(); err != nil {
		return err
	}

	data, err := l.read()
	if err != nil {
		return err
	}

	var kept bytes.Buffer
	kept.Write(fileHeader())
	dropped := 0
	_, err = scan(data, func(rec domain.TLogRecord) error {
		if rec.Seq <= upTo {
			dropped++
			return nil
		}
		buf, err := encodeRecord(rec)
		if err != nil {
			return err
		}
		kept.Write(buf)
		return nil
	})
	if err != nil {
		return err
	}
	if dropped == 0 {
		return nil
	}

	if err := fsutil.WriteAtomic(l.path, kept.Bytes(), 0o600); err != nil {
		return fmt.Errorf("rewriting tlog: %w", err)
	}

	// The old handle points at the replaced inode.
	l.f.Close()
	f, err := os.OpenFile(l.path, os.O_RDWR, 0o600)
	if err != nil {
		l.f = nil
		return fmt.Errorf("reopening tlog: %w", err)
	}
	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		f.Close()
		l.f = nil
		return fmt.Errorf("seeking tlog: %w", err)
	}
	l.f = f
	l.size = int64(kept.Len())
	logger.Debug("tlog: pruned %d records up to seq %d", dropped, upTo)
	return nil
}

// read returns the whole file; caller holds the lock.
func (l *Log) read() ([]byte, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("reading tlog: %w", err)
	}
	if err := checkHeader(data); err != nil {
		return nil, err
	}
	return data, nil
}

// Close releases the log file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return nil
	}
	err := l.f.Close()
	l.f = nil
	return err
}
