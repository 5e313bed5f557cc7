package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/arcastone/vault/internal/core/domain"
	"github.com/arcastone/vault/internal/core/ports/driven"
	"github.com/arcastone/vault/internal/logger"
)

const metaDimensions = "dimensions"

// cachedEntry mirrors one row of the entries table.
type cachedEntry struct {
	seq        uint32
	chunkID    string
	documentID string
	vector     []float32
	norm       float64
}

// VectorIndex is a SQLite-persisted brute-force cosine index.
// The whole index is held in memory; SQLite provides durability and the
// insertion order that breaks score ties.
type VectorIndex struct {
	store *Store

	mu         sync.RWMutex
	entries    []*cachedEntry // ascending seq
	byChunk    map[string]*cachedEntry
	tombstones *roaring.Bitmap
	dims       int
}

var _ driven.VectorIndex = (*VectorIndex)(nil)

// VectorIndex loads the persisted index into memory.
func (s *Store) VectorIndex(ctx context.Context) (*VectorIndex, error) {
	v := &VectorIndex{store: s}
	if err := v.load(ctx); err != nil {
		return nil, err
	}
	return v, nil
}

func (v *VectorIndex) load(ctx context.Context) error {
	v.entries = nil
	v.byChunk = make(map[string]*cachedEntry)
	v.tombstones = roaring.New()
	v.dims = 0

	var dims string
	err := v.store.db.QueryRowContext(ctx, "SELECT value FROM meta WHERE key = ?", metaDimensions).Scan(&dims)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return fmt.Errorf("reading index dimensions: %w", err)
	default:
		if v.dims, err = strconv.Atoi(dims); err != nil {
			return fmt.Errorf("parsing index dimensions %q: %w", dims, err)
		}
	}

	rows, err := v.store.db.QueryContext(ctx, `
		SELECT e.seq, e.chunk_id, e.document_id, e.vector, t.seq IS NOT NULL
		FROM entries e LEFT JOIN tombstones t ON t.seq = e.seq
		ORDER BY e.seq
	`)
	if err != nil {
		return fmt.Errorf("querying index entries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			seq       int64
			e         cachedEntry
			blob      []byte
			tombstone bool
		)
		if err := rows.Scan(&seq, &e.chunkID, &e.documentID, &blob, &tombstone); err != nil {
			return fmt.Errorf("scanning index entry: %w", err)
		}
		e.seq = uint32(seq)
		e.vector = bytesToFloat32Slice(blob)
		e.norm = norm(e.vector)
		v.entries = append(v.entries, &e)
		v.byChunk[e.chunkID] = &e
		if tombstone {
			v.tombstones.Add(e.seq)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating index entries: %w", err)
	}

	logger.Debug("vector index: loaded %d entries (%d tombstoned, dims=%d)",
		len(v.entries), v.tombstones.GetCardinality(), v.dims)
	return nil
}

// Upsert inserts or replaces vectors. A replaced chunk keeps its seq and
// loses any tombstone.
func (v *VectorIndex) Upsert(ctx context.Context, entries ...driven.IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	dims := v.dims
	for _, e := range entries {
		if e.ChunkID == "" || len(e.Vector) == 0 {
			return fmt.Errorf("index entry %q: empty chunk id or vector: %w", e.ChunkID, domain.ErrInvalidInput)
		}
		if dims == 0 {
			dims = len(e.Vector)
		}
		if len(e.Vector) != dims {
			return fmt.Errorf("index entry %s has %d dimensions, index has %d: %w",
				e.ChunkID, len(e.Vector), dims, domain.ErrInvalidInput)
		}
	}

	tx, err := v.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if v.dims == 0 {
		if _, err := tx.ExecContext(ctx,
			"INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)", metaDimensions, strconv.Itoa(dims)); err != nil {
			return fmt.Errorf("saving index dimensions: %w", err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO entries (chunk_id, document_id, vector)
		VALUES (?, ?, ?)
		ON CONFLICT(chunk_id) DO UPDATE SET
			document_id = excluded.document_id,
			vector = excluded.vector,
			updated_at = CURRENT_TIMESTAMP
		RETURNING seq
	`)
	if err != nil {
		return fmt.Errorf("preparing upsert: %w", err)
	}
	defer stmt.Close()

	seqs := make([]int64, len(entries))
	for i, e := range entries {
		if err := stmt.QueryRowContext(ctx, e.ChunkID, e.DocumentID, float32SliceToBytes(e.Vector)).Scan(&seqs[i]); err != nil {
			return fmt.Errorf("upserting %s: %w", e.ChunkID, err)
		}
		if seqs[i] > math.MaxUint32 {
			return fmt.Errorf("index sequence %d overflows: %w", seqs[i], domain.ErrInvalidInput)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM tombstones WHERE seq = ?", seqs[i]); err != nil {
			return fmt.Errorf("clearing tombstone for %s: %w", e.ChunkID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing upsert: %w", err)
	}

	v.dims = dims
	for i, e := range entries {
		vec := make([]float32, len(e.Vector))
		copy(vec, e.Vector)
		seq := uint32(seqs[i])
		if existing, ok := v.byChunk[e.ChunkID]; ok {
			existing.documentID = e.DocumentID
			existing.vector = vec
			existing.norm = norm(vec)
		} else {
			ce := &cachedEntry{seq: seq, chunkID: e.ChunkID, documentID: e.DocumentID, vector: vec, norm: norm(vec)}
			v.entries = append(v.entries, ce)
			v.byChunk[e.ChunkID] = ce
		}
		v.tombstones.Remove(seq)
	}
	return nil
}

// Remove tombstones chunks. Unknown chunk IDs are ignored.
func (v *VectorIndex) Remove(ctx context.Context, chunkIDs ...string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	var seqs []uint32
	for _, id := range chunkIDs {
		if e, ok := v.byChunk[id]; ok && !v.tombstones.Contains(e.seq) {
			seqs = append(seqs, e.seq)
		}
	}
	if len(seqs) == 0 {
		return nil
	}

	tx, err := v.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	for _, seq := range seqs {
		if _, err := tx.ExecContext(ctx, "INSERT OR IGNORE INTO tombstones (seq) VALUES (?)", int64(seq)); err != nil {
			return fmt.Errorf("tombstoning seq %d: %w", seq, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing remove: %w", err)
	}

	v.tombstones.AddMany(seqs)
	return nil
}

// Query returns the k most similar live entries. Scores are cosine
// similarity; equal scores keep ascending insertion order.
func (v *VectorIndex) Query(ctx context.Context, vector []float32, k int) ([]driven.VectorHit, error) {
	if k <= 0 {
		return nil, nil
	}

	v.mu.RLock()
	defer v.mu.RUnlock()

	if len(v.entries) == 0 {
		return nil, nil
	}
	if len(vector) != v.dims {
		return nil, fmt.Errorf("query has %d dimensions, index has %d: %w", len(vector), v.dims, domain.ErrInvalidInput)
	}

	qn := norm(vector)
	hits := make([]scored, 0, len(v.entries))
	for i, e := range v.entries {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if v.tombstones.Contains(e.seq) {
			continue
		}
		hits = append(hits, scored{entry: e, score: cosine(vector, qn, e.vector, e.norm)})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].entry.seq < hits[j].entry.seq
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	out := make([]driven.VectorHit, len(hits))
	for i, h := range hits {
		out[i] = driven.VectorHit{ChunkID: h.entry.chunkID, DocumentID: h.entry.documentID, Similarity: h.score}
	}
	return out, nil
}

type scored struct {
	entry *cachedEntry
	score float64
}

// Len returns the number of live entries.
func (v *VectorIndex) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.entries) - int(v.tombstones.GetCardinality())
}

// Compact deletes tombstoned rows.
func (v *VectorIndex) Compact(ctx context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.tombstones.IsEmpty() {
		return nil
	}
	if _, err := v.store.db.ExecContext(ctx,
		"DELETE FROM entries WHERE seq IN (SELECT seq FROM tombstones)"); err != nil {
		return fmt.Errorf("compacting index: %w", err)
	}

	kept := v.entries[:0]
	for _, e := range v.entries {
		if v.tombstones.Contains(e.seq) {
			delete(v.byChunk, e.chunkID)
			continue
		}
		kept = append(kept, e)
	}
	logger.Debug("vector index: compacted %d tombstones", v.tombstones.GetCardinality())
	v.entries = kept
	v.tombstones.Clear()
	return nil
}

// Reset drops every entry and forgets the dimension.
func (v *VectorIndex) Reset(ctx context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	tx, err := v.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	for _, q := range []string{
		"DELETE FROM tombstones",
		"DELETE FROM entries",
		"DELETE FROM meta WHERE key = '" + metaDimensions + "'",
	} {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("resetting index: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing reset: %w", err)
	}

	v.entries = nil
	v.byChunk = make(map[string]*cachedEntry)
	v.tombstones.Clear()
	v.dims = 0
	return nil
}

// Close closes the underlying store.
func (v *VectorIndex) Close() error {
	return v.store.Close()
}

func norm(vec []float32) float64 {
	var sum float64
	for _, x := range vec {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func cosine(a []float32, an float64, b []float32, bn float64) float64 {
	if an == 0 || bn == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (an * bn)
}
