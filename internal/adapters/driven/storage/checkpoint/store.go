// Package checkpoint persists manifest snapshots.
//
// A checkpoint file is an 8-byte header (7 magic bytes plus a codec byte)
// followed by the snapshot as JSON, compressed with the codec. Saves
// replace the file atomically.
package checkpoint

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/arcastone/vault/internal/core/domain"
	"github.com/arcastone/vault/internal/core/ports/driven"
	"github.com/arcastone/vault/internal/fsutil"
)

var magic = [7]byte{'A', 'R', 'C', 'C', 'K', 'P', 'T'}

const headerSize = 8

// Codec bytes stored in the header.
const (
	codecNone byte = 0
	codecZstd byte = 1
	codecLZ4  byte = 2
)

var _ driven.CheckpointStore = (*Store)(nil)

// Store reads and writes the checkpoint file.
type Store struct {
	path  string
	codec byte
}

// NewStore creates a checkpoint store writing with the given compression.
// Any codec can be read regardless of the one used for writing.
func NewStore(path string, compression domain.Compression) (*Store, error) {
	s := &Store{path: path}
	switch compression {
	case domain.CompressionZstd, "":
		s.codec = codecZstd
	case domain.CompressionLZ4:
		s.codec = codecLZ4
	case domain.CompressionNone:
		s.codec = codecNone
	default:
		return nil, fmt.Errorf("checkpoint compression %q: %w", compression, domain.ErrInvalidInput)
	}
	return s, nil
}

// Path returns the checkpoint file path.
func (s *Store) Path() string {
	return s.path
}

// Save atomically replaces the checkpoint.
func (s *Store) Save(snap *domain.Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encoding checkpoint: %w", err)
	}

	body, err := compress(s.codec, raw)
	if err != nil {
		return fmt.Errorf("compressing checkpoint: %w", err)
	}

	out := make([]byte, 0, headerSize+len(body))
	out = append(out, magic[:]...)
	out = append(out, s.codec)
	out = append(out, body...)

	if err := fsutil.WriteAtomic(s.path, out, 0o600); err != nil {
		return fmt.Errorf("writing checkpoint: %w", err)
	}
	return nil
}

// Load returns the latest snapshot or domain.ErrNotFound.
// A damaged checkpoint is domain.ErrCorrupt.
func (s *Store) Load() (*domain.Snapshot, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("reading checkpoint: %w", err)
	}

	if len(data) < headerSize || [7]byte(data[:7]) != magic {
		return nil, fmt.Errorf("checkpoint header: %w", domain.ErrCorrupt)
	}

	raw, err := decompress(data[7], data[headerSize:])
	if err != nil {
		return nil, fmt.Errorf("decompressing checkpoint: %v: %w", err, domain.ErrCorrupt)
	}

	var snap domain.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("decoding checkpoint: %v: %w", err, domain.ErrCorrupt)
	}
	if snap.Version != domain.SnapshotVersion {
		return nil, fmt.Errorf("checkpoint version %d: %w", snap.Version, domain.ErrCorrupt)
	}
	return &snap, nil
}

func compress(codec byte, raw []byte) ([]byte, error) {
	switch codec {
	case codecZstd:
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, err
		}
		defer enc.Close()
		return enc.EncodeAll(raw, nil), nil
	case codecLZ4:
		var buf bytes.Buffer
		w := lz4.NewWriter(&buf)
		if _, err := w.Write(raw); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return raw, nil
	}
}

func decompress(codec byte, body []byte) ([]byte, error) {
	switch codec {
	case codecNone:
		return body, nil
	case codecZstd:
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		return dec.DecodeAll(body, nil)
	case codecLZ4:
		return io.ReadAll(lz4.NewReader(bytes.NewReader(body)))
	default:
		return nil, fmt.Errorf("unknown codec %d", codec)
	}
}
