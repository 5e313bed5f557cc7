package tlog

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"hash/crc32"

	"github.com/arcastone/vault/internal/core/domain"
)

// File header: 7 magic bytes and a version byte.
var fileMagic = [7]byte{'A', 'R', 'C', 'T', 'L', 'O', 'G'}

const (
	fileVersion    = 2
	fileHeaderSize = 8

	// Record header: HeaderCRC (4) + Type (1) + Seq (8) + Length (4) + PayloadCRC (4).
	recordHeaderSize = 21

	// maxPayload bounds a single record; larger lengths mean corruption.
	maxPayload = 64 << 20
)

var (
	// errShortRecord marks a record cut off by the end of the file.
	errShortRecord = errors.New("short tlog record")

	errInvalidCRC = errors.New("invalid tlog record checksum")
)

func fileHeader() []byte {
	h := make([]byte, fileHeaderSize)
	copy(h, fileMagic[:])
	h[7] = fileVersion
	return h
}

func checkHeader(b []byte) error {
	if len(b) < fileHeaderSize {
		return fmt.Errorf("tlog header truncated: %w", domain.ErrTlogCorrupt)
	}
	if [7]byte(b[:7]) != fileMagic {
		return fmt.Errorf("tlog magic mismatch: %w", domain.ErrTlogCorrupt)
	}
	if b[7] != fileVersion {
		return fmt.Errorf("tlog version %d unsupported: %w", b[7], domain.ErrTlogCorrupt)
	}
	return nil
}

// encodeRecord frames rec as
// [HeaderCRC: 4] [Type: 1] [Seq: 8] [Length: 4] [PayloadCRC: 4] [Payload]
// The header CRC covers the next 17 bytes, so a damaged length field is
// caught before it is trusted.
func encodeRecord(rec domain.TLogRecord) ([]byte, error) {
	payload, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encoding tlog payload: %w", err)
	}
	if len(payload) > maxPayload {
		return nil, fmt.Errorf("tlog record of %d bytes: %w", len(payload), domain.ErrInvalidInput)
	}

	buf := make([]byte, recordHeaderSize+len(payload))
	buf[4] = byte(rec.Type)
	binary.LittleEndian.PutUint64(buf[5:], rec.Seq)
	binary.LittleEndian.PutUint32(buf[13:], uint32(len(payload)))
	binary.LittleEndian.PutUint32(buf[17:], crc32.ChecksumIEEE(payload))
	binary.LittleEndian.PutUint32(buf[0:], crc32.ChecksumIEEE(buf[4:recordHeaderSize]))
	copy(buf[recordHeaderSize:], payload)
	return buf, nil
}

// decodeRecord reads one record from the front of b and returns it with
// the number of bytes consumed. errShortRecord means b ends mid-record:
// either fewer bytes than a header remain, the rest of b is zero fill, or
// a verified header announces more payload than b holds.
func decodeRecord(b []byte) (domain.TLogRecord, int, error) {
	var rec domain.TLogRecord
	if len(b) < recordHeaderSize {
		return rec, 0, errShortRecord
	}

	if binary.LittleEndian.Uint32(b[0:]) != crc32.ChecksumIEEE(b[4:recordHeaderSize]) {
		if isZero(b) {
			return rec, 0, errShortRecord
		}
		return rec, 0, fmt.Errorf("%w: header: %w", errInvalidCRC, domain.ErrTlogCorrupt)
	}

	typ := domain.RecordType(b[4])
	seq := binary.LittleEndian.Uint64(b[5:])
	length := binary.LittleEndian.Uint32(b[13:])
	if length > maxPayload {
		return rec, 0, fmt.Errorf("tlog record %d length %d: %w", seq, length, domain.ErrTlogCorrupt)
	}
	total := recordHeaderSize + int(length)
	if len(b) < total {
		return rec, 0, errShortRecord
	}

	payload := b[recordHeaderSize:total]
	if binary.LittleEndian.Uint32(b[17:]) != crc32.ChecksumIEEE(payload) {
		return rec, 0, fmt.Errorf("%w: record %d payload: %w", errInvalidCRC, seq, domain.ErrTlogCorrupt)
	}
	if !typ.IsValid() {
		return rec, 0, fmt.Errorf("tlog record %d has type %d: %w", seq, typ, domain.ErrTlogCorrupt)
	}
	if err := json.Unmarshal(payload, &rec); err != nil {
		return rec, 0, fmt.Errorf("tlog record %d payload: %v: %w", seq, err, domain.ErrTlogCorrupt)
	}
	if rec.Seq != seq || rec.Type != typ {
		return rec, 0, fmt.Errorf("tlog record %d header disagrees with payload: %w", seq, domain.ErrTlogCorrupt)
	}
	return rec, total, nil
}

// isZero reports whether b holds only zero bytes, as a filesystem leaves
// behind for blocks allocated but never written before a crash.
func isZero(b []byte) bool {
	return len(bytes.TrimLeft(b, "\x00")) == 0
}
