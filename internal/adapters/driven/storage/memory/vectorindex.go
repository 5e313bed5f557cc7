package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/arcastone/vault/internal/core/domain"
	"github.com/arcastone/vault/internal/core/ports/driven"
)

var _ driven.VectorIndex = (*VectorIndex)(nil)

type vectorEntry struct {
	seq     int
	entry   driven.IndexEntry
	removed bool
}

// VectorIndex is an in-memory brute-force cosine index.
type VectorIndex struct {
	mu      sync.RWMutex
	entries map[string]*vectorEntry
	next    int
}

// NewVectorIndex creates an empty index.
func NewVectorIndex() *VectorIndex {
	return &VectorIndex{entries: make(map[string]*vectorEntry)}
}

// Upsert inserts or replaces vectors, keeping the original order of replaced chunks.
func (v *VectorIndex) Upsert(_ context.Context, entries ...driven.IndexEntry) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, e := range entries {
		if e.ChunkID == "" || len(e.Vector) == 0 {
			return fmt.Errorf("index entry %q: %w", e.ChunkID, domain.ErrInvalidInput)
		}
		e.Vector = append([]float32(nil), e.Vector...)
		if existing, ok := v.entries[e.ChunkID]; ok {
			existing.entry = e
			existing.removed = false
			continue
		}
		v.next++
		v.entries[e.ChunkID] = &vectorEntry{seq: v.next, entry: e}
	}
	return nil
}

// Remove tombstones chunks.
func (v *VectorIndex) Remove(_ context.Context, chunkIDs ...string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, id := range chunkIDs {
		if e, ok := v.entries[id]; ok {
			e.removed = true
		}
	}
	return nil
}

// Query ranks live entries by cosine similarity, then insertion order.
func (v *VectorIndex) Query(_ context.Context, vector []float32, k int) ([]driven.VectorHit, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	type hit struct {
		seq int
		driven.VectorHit
	}
	var hits []hit
	for _, e := range v.entries {
		if e.removed || len(e.entry.Vector) != len(vector) {
			continue
		}
		hits = append(hits, hit{seq: e.seq, VectorHit: driven.VectorHit{
			ChunkID:    e.entry.ChunkID,
			DocumentID: e.entry.DocumentID,
			Similarity: cosine(vector, e.entry.Vector),
		}})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		return hits[i].seq < hits[j].seq
	})
	if k < len(hits) {
		hits = hits[:max(k, 0)]
	}
	out := make([]driven.VectorHit, len(hits))
	for i := range hits {
		out[i] = hits[i].VectorHit
	}
	return out, nil
}

// Len returns the number of live entries.
func (v *VectorIndex) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	n := 0
	for _, e := range v.entries {
		if !e.removed {
			n++
		}
	}
	return n
}

// Has reports whether a live entry exists for the chunk.
func (v *VectorIndex) Has(chunkID string) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	e, ok := v.entries[chunkID]
	return ok && !e.removed
}

// Compact drops tombstoned entries.
func (v *VectorIndex) Compact(_ context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	for id, e := range v.entries {
		if e.removed {
			delete(v.entries, id)
		}
	}
	return nil
}

// Reset drops every entry.
func (v *VectorIndex) Reset(_ context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.entries = make(map[string]*vectorEntry)
	return nil
}

// Close is a no-op.
func (v *VectorIndex) Close() error {
	return nil
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
