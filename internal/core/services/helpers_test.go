package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/require"

	"github.com/arcastone/vault/internal/adapters/driven/embedding/local"
	"github.com/arcastone/vault/internal/adapters/driven/storage/memory"
	"github.com/arcastone/vault/internal/core/domain"
	"github.com/arcastone/vault/internal/core/ports/driven"
	"github.com/arcastone/vault/internal/postprocessors/chunker"
)

// fakePDF builds bytes the stub extractor understands: a PDF header
// followed by page texts separated by form feeds.
func fakePDF(pages ...string) []byte {
	return []byte("%PDF-1.4\n" + strings.Join(pages, "\f"))
}

// stubExtractor decodes fakePDF output.
type stubExtractor struct {
	mu       sync.Mutex
	err      error
	failures int // fail this many calls before succeeding
	calls    atomic.Int32
	delay    time.Duration
}

func (s *stubExtractor) Name() string { return "stub" }

func (s *stubExtractor) Extract(ctx context.Context, data []byte) ([]domain.Page, error) {
	s.calls.Add(1)
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	s.mu.Lock()
	if s.failures > 0 {
		s.failures--
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: transient", domain.ErrExtractionFailed)
	}
	err := s.err
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	body, ok := strings.CutPrefix(string(data), "%PDF-1.4\n")
	if !ok {
		return nil, fmt.Errorf("%w: bad header", domain.ErrExtractionFailed)
	}
	var pages []domain.Page
	for i, text := range strings.Split(body, "\f") {
		pages = append(pages, domain.Page{Number: i + 1, Text: text})
	}
	return pages, nil
}

// flakyEmbedder wraps the local embedder with injectable failures.
type flakyEmbedder struct {
	*local.EmbeddingService
	mu       sync.Mutex
	err      error
	failures int
	calls    atomic.Int32
}

func (f *flakyEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls.Add(1)
	f.mu.Lock()
	if f.failures > 0 {
		f.failures--
		f.mu.Unlock()
		return nil, errors.New("transient provider error")
	}
	err := f.err
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return f.EmbeddingService.EmbedBatch(ctx, texts)
}

func (f *flakyEmbedder) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

// gatedEmbedder blocks its first EmbedBatch call until release is closed.
type gatedEmbedder struct {
	*local.EmbeddingService
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func newGatedEmbedder() *gatedEmbedder {
	return &gatedEmbedder{
		EmbeddingService: local.NewEmbeddingService(0),
		entered:          make(chan struct{}),
		release:          make(chan struct{}),
	}
}

func (g *gatedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	first := false
	g.once.Do(func() { first = true })
	if first {
		close(g.entered)
		<-g.release
	}
	return g.EmbeddingService.EmbedBatch(ctx, texts)
}

// ingestWithGate starts ingesting fakePDF(pages...) through a gated
// embedder and returns once the first batch is blocked in it.
func (v *testVault) ingestWithGate(t *testing.T, pages ...string) (*gatedEmbedder, <-chan error) {
	t.Helper()
	gate := newGatedEmbedder()
	svc := NewIngestService(v.manifest, v.blobs, v.extractor, chunker.New(), gate, v.index,
		WithBackOff(func() backoff.BackOff { return &backoff.ZeroBackOff{} }),
		WithIDGenerator(func() string { return fmt.Sprintf("doc-%02d", v.ids.Add(1)) }),
	)
	done := make(chan error, 1)
	go func() {
		_, err := svc.IngestBytes(context.Background(), "gated.pdf", fakePDF(pages...))
		done <- err
	}()
	select {
	case <-gate.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("embedder was never called")
	}
	return gate, done
}

// testVault wires services over in-memory adapters.
type testVault struct {
	log        *memory.TransactionLog
	checkpoint *memory.CheckpointStore
	blobs      *memory.ContentStore
	index      *memory.VectorIndex
	extractor  *stubExtractor
	embedder   *flakyEmbedder
	manifest   *Manifest
	ingest     *IngestService
	ids        atomic.Int32
}

type vaultOption func(*vaultConfig)

type vaultConfig struct {
	noEmbedder      bool
	checkpointEvery int
}

func withoutEmbedder() vaultOption {
	return func(c *vaultConfig) { c.noEmbedder = true }
}

func withCheckpointEvery(n int) vaultOption {
	return func(c *vaultConfig) { c.checkpointEvery = n }
}

func newTestVault(t *testing.T, opts ...vaultOption) *testVault {
	t.Helper()
	cfg := vaultConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	v := &testVault{
		log:        memory.NewTransactionLog(),
		checkpoint: memory.NewCheckpointStore(),
		blobs:      memory.NewContentStore(),
		index:      memory.NewVectorIndex(),
		extractor:  &stubExtractor{},
		embedder:   &flakyEmbedder{EmbeddingService: local.NewEmbeddingService(0)},
	}

	m, err := OpenManifest(v.log, v.checkpoint, WithCheckpointEvery(cfg.checkpointEvery), WithClock(fixedClock))
	require.NoError(t, err)
	v.manifest = m
	v.ingest = v.newIngest(cfg)
	return v
}

func (v *testVault) newIngest(cfg vaultConfig, extra ...IngestOption) *IngestService {
	var embedder driven.EmbeddingService = v.embedder
	if cfg.noEmbedder {
		embedder = nil
	}
	opts := append([]IngestOption{
		WithIngestSettings(domain.IngestSettings{Workers: 4, MaxRetries: 2, CallTimeout: time.Second}),
		WithBackOff(func() backoff.BackOff { return &backoff.ZeroBackOff{} }),
		WithIDGenerator(func() string { return fmt.Sprintf("doc-%02d", v.ids.Add(1)) }),
	}, extra...)
	return NewIngestService(v.manifest, v.blobs, v.extractor, chunker.New(), embedder, v.index, opts...)
}

// reopen recovers a fresh manifest from the same log and checkpoint.
func (v *testVault) reopen(t *testing.T) *Manifest {
	t.Helper()
	m, err := OpenManifest(v.log, v.checkpoint, WithCheckpointEvery(0), WithClock(fixedClock))
	require.NoError(t, err)
	return m
}

func (v *testVault) add(t *testing.T, name string, pages ...string) *domain.Document {
	t.Helper()
	doc, err := v.ingest.IngestBytes(context.Background(), name, fakePDF(pages...))
	require.NoError(t, err)
	require.NotNil(t, doc)
	return doc
}

func fixedClock() time.Time {
	return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
}

// countRecords returns how many log records of the given type exist.
func countRecords(log *memory.TransactionLog, typ domain.RecordType) int {
	n := 0
	for _, rec := range log.Records() {
		if rec.Type == typ {
			n++
		}
	}
	return n
}
