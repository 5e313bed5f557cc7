package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/arcastone/vault/internal/adapters/driven/storage/blob"
	"github.com/arcastone/vault/internal/core/domain"
	"github.com/arcastone/vault/internal/core/ports/driven"
)

// Ensure ContentStore implements the interface.
var _ driven.ContentStore = (*ContentStore)(nil)

// ContentStore is an in-memory implementation of driven.ContentStore.
type ContentStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
	puts  int
}

// NewContentStore creates a new in-memory content store.
func NewContentStore() *ContentStore {
	return &ContentStore{blobs: make(map[string][]byte)}
}

// Put stores a copy of data under its hash.
func (s *ContentStore) Put(_ context.Context, data []byte) (domain.BlobRef, error) {
	ref := blob.Hash(data)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blobs[ref.Hash]; !ok {
		s.blobs[ref.Hash] = append([]byte(nil), data...)
		s.puts++
	}
	return ref, nil
}

// Get returns a copy of the blob after verifying its hash.
func (s *ContentStore) Get(_ context.Context, ref domain.BlobRef) ([]byte, error) {
	s.mu.RLock()
	data, ok := s.blobs[ref.Hash]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("blob %s: %w", ref.Hash, domain.ErrNotFound)
	}
	if blob.Hash(data).Hash != ref.Hash {
		return nil, fmt.Errorf("blob %s: %w", ref.Hash, domain.ErrCorrupt)
	}
	return append([]byte(nil), data...), nil
}

// Has reports whether the blob is stored.
func (s *ContentStore) Has(_ context.Context, ref domain.BlobRef) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.blobs[ref.Hash]
	return ok, nil
}

// List returns every stored blob sorted by hash.
func (s *ContentStore) List(_ context.Context) ([]domain.BlobRef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	refs := make([]domain.BlobRef, 0, len(s.blobs))
	for h, data := range s.blobs {
		refs = append(refs, domain.BlobRef{Hash: h, Size: int64(len(data))})
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Hash < refs[j].Hash })
	return refs, nil
}

// Delete removes a blob.
func (s *ContentStore) Delete(_ context.Context, ref domain.BlobRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blobs[ref.Hash]; !ok {
		return fmt.Errorf("blob %s: %w", ref.Hash, domain.ErrNotFound)
	}
	delete(s.blobs, ref.Hash)
	return nil
}

// Writes returns how many distinct blobs were written.
func (s *ContentStore) Writes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.puts
}

// Tamper overwrites stored bytes without updating the key.
func (s *ContentStore) Tamper(ref domain.BlobRef, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[ref.Hash] = data
}
