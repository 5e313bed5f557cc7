package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/arcastone/vault/internal/core/domain"
	"github.com/arcastone/vault/internal/core/ports/driven"
	"github.com/arcastone/vault/internal/core/ports/driving"
	"github.com/arcastone/vault/internal/logger"
)

// Ensure IngestService implements the interface.
var _ driving.IngestService = (*IngestService)(nil)

// Default pipeline tuning.
const (
	DefaultWorkers     = 4
	DefaultMaxRetries  = 3
	DefaultCallTimeout = 60 * time.Second
	DefaultBatchSize   = 16
)

// IngestService runs the ingestion pipeline:
// store blob, add document, extract pages, chunk, embed.
//
// It is the only writer of the content store and the manifest. Work on
// the same content hash is serialised; distinct files run in parallel on
// a bounded pool.
type IngestService struct {
	manifest  *Manifest
	blobs     driven.ContentStore
	extractor driven.TextExtractor
	chunker   driven.Chunker
	embedder  driven.EmbeddingService
	index     driven.VectorIndex

	workers     int
	maxRetries  int
	callTimeout time.Duration
	batchSize   int
	limiter     *rate.Limiter
	newBackOff  func() backoff.BackOff
	newID       func() string
	now         func() time.Time

	locks *keyedMutex
}

// IngestOption configures an IngestService.
type IngestOption func(*IngestService)

// WithIngestSettings applies worker, retry and timeout settings.
func WithIngestSettings(s domain.IngestSettings) IngestOption {
	return func(svc *IngestService) {
		if s.Workers > 0 {
			svc.workers = s.Workers
		}
		if s.MaxRetries >= 0 {
			svc.maxRetries = s.MaxRetries
		}
		if s.CallTimeout > 0 {
			svc.callTimeout = s.CallTimeout
		}
	}
}

// WithEmbeddingBatch sets the batch size and the request rate limit
// (requests per second, zero for unlimited).
func WithEmbeddingBatch(size int, perSecond float64) IngestOption {
	return func(svc *IngestService) {
		if size > 0 {
			svc.batchSize = size
		}
		if perSecond > 0 {
			svc.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		} else {
			svc.limiter = rate.NewLimiter(rate.Inf, 0)
		}
	}
}

// WithBackOff overrides the retry policy between failed provider calls.
func WithBackOff(newBackOff func() backoff.BackOff) IngestOption {
	return func(svc *IngestService) {
		if newBackOff != nil {
			svc.newBackOff = newBackOff
		}
	}
}

// WithIDGenerator overrides document id generation.
func WithIDGenerator(newID func() string) IngestOption {
	return func(svc *IngestService) {
		if newID != nil {
			svc.newID = newID
		}
	}
}

// NewIngestService creates an ingestion pipeline. embedder may be nil, in
// which case documents stop at extracted until IndexPending runs with one.
func NewIngestService(
	manifest *Manifest,
	blobs driven.ContentStore,
	extractor driven.TextExtractor,
	chunker driven.Chunker,
	embedder driven.EmbeddingService,
	index driven.VectorIndex,
	opts ...IngestOption,
) *IngestService {
	svc := &IngestService{
		manifest:    manifest,
		blobs:       blobs,
		extractor:   extractor,
		chunker:     chunker,
		embedder:    embedder,
		index:       index,
		workers:     DefaultWorkers,
		maxRetries:  DefaultMaxRetries,
		callTimeout: DefaultCallTimeout,
		batchSize:   DefaultBatchSize,
		limiter:     rate.NewLimiter(rate.Inf, 0),
		newBackOff:  func() backoff.BackOff { return backoff.NewExponentialBackOff() },
		newID:       uuid.NewString,
		now:         func() time.Time { return time.Now().UTC() },
		locks:       manifest.blobs,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// IngestFile reads a PDF from disk and ingests it under its base name.
func (s *IngestService) IngestFile(ctx context.Context, path string) (*domain.Document, error) {
	res := s.ingestFile(ctx, path)
	return res.Document, res.Err
}

// IngestBytes ingests PDF bytes under a display name.
func (s *IngestService) IngestBytes(ctx context.Context, filename string, data []byte) (*domain.Document, error) {
	res := s.ingest(ctx, filename, data)
	return res.Document, res.Err
}

// IngestPaths ingests files and directory trees on the worker pool.
// Directories contribute every PDF below them in lexical order. Results
// are returned in that same order.
func (s *IngestService) IngestPaths(ctx context.Context, paths []string) []domain.IngestResult {
	files, results := collectPDFs(paths)

	offset := len(results)
	results = append(results, make([]domain.IngestResult, len(files))...)

	var g errgroup.Group
	g.SetLimit(s.workers)
	for i, path := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[offset+i] = domain.IngestResult{Path: path, Err: err}
				return nil
			}
			results[offset+i] = s.ingestFile(ctx, path)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// collectPDFs expands directories. Problems with explicit paths are
// returned as results so the batch carries on.
func collectPDFs(paths []string) ([]string, []domain.IngestResult) {
	var files []string
	var failed []domain.IngestResult

	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil {
			failed = append(failed, domain.IngestResult{Path: root, Err: err})
			continue
		}
		if !info.IsDir() {
			files = append(files, root)
			continue
		}
		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				failed = append(failed, domain.IngestResult{Path: path, Err: err})
				if d != nil && d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
			if !d.Type().IsRegular() {
				return nil
			}
			if ok, err := sniffPDF(path); err != nil {
				failed = append(failed, domain.IngestResult{Path: path, Err: err})
			} else if ok {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			failed = append(failed, domain.IngestResult{Path: root, Err: err})
		}
	}
	return files, failed
}

func sniffPDF(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	head := make([]byte, 8)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return false, err
	}
	return domain.LooksLikePDF(path, head[:n]), nil
}

func (s *IngestService) ingestFile(ctx context.Context, path string) domain.IngestResult {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.IngestResult{Path: path, Err: fmt.Errorf("read %s: %w", path, err)}
	}
	res := s.ingest(ctx, filepath.Base(path), data)
	res.Path = path
	return res
}

// ingest runs the whole pipeline for one file.
func (s *IngestService) ingest(ctx context.Context, filename string, data []byte) domain.IngestResult {
	res := domain.IngestResult{Path: filename}
	filename = filepath.Base(filename)

	switch {
	case len(data) == 0:
		res.Err = fmt.Errorf("%s is empty: %w", filename, domain.ErrInvalidInput)
		return res
	case !domain.LooksLikePDF(filename, data):
		res.Err = fmt.Errorf("%s: %w", filename, domain.ErrNotPDF)
		return res
	}

	ref, err := s.blobs.Put(ctx, data)
	if err != nil {
		res.Err = fmt.Errorf("store %s: %w", filename, err)
		return res
	}

	unlock := s.locks.Lock(ref.Hash)
	defer unlock()

	if doc, ok := s.manifest.FindByHash(ref.Hash); ok {
		res.Deduplicated = true
		logger.Debug("%s matches %s (%s, %s)", filename, doc.ID, doc.Filename, doc.Status)
		if doc.Status == domain.StatusIndexed || doc.Status == domain.StatusFailed {
			res.Document = &doc
			return res
		}
		res.Document, res.Err = s.process(ctx, doc.ID)
		return res
	}

	doc := domain.Document{
		ID:         s.newID(),
		Blob:       ref,
		Filename:   filename,
		IngestedAt: s.now(),
		Status:     domain.StatusPending,
	}
	if _, err := s.manifest.Commit(domain.TLogRecord{
		Type:       domain.RecordDocumentAdded,
		DocumentID: doc.ID,
		Document:   &doc,
	}); err != nil {
		res.Err = fmt.Errorf("add %s: %w", filename, err)
		return res
	}
	logger.Info("added %s as %s", filename, doc.ID)

	res.Document, res.Err = s.process(ctx, doc.ID)
	return res
}

// process advances a document from its current state as far as it can.
// The caller holds the document's hash lock.
func (s *IngestService) process(ctx context.Context, id string) (*domain.Document, error) {
	entry, err := s.manifest.Get(id)
	if err != nil {
		return nil, err
	}

	if entry.Document.Status == domain.StatusPending {
		if err := s.extract(ctx, entry.Document); err != nil {
			return s.current(id), err
		}
	}

	if err := s.embed(ctx, id, false); err != nil {
		return s.current(id), err
	}
	return s.current(id), nil
}

func (s *IngestService) current(id string) *domain.Document {
	doc, err := s.manifest.Document(id)
	if err != nil {
		return nil
	}
	return &doc
}

// extract reads the blob, extracts and chunks pages and commits
// extraction-completed. Unrecoverable failures mark the document failed.
func (s *IngestService) extract(ctx context.Context, doc domain.Document) error {
	done := logger.Timed("extract %s", doc.ID)
	defer done()

	data, err := s.blobs.Get(ctx, doc.Blob)
	if err != nil {
		return s.fail(ctx, doc.ID, fmt.Errorf("read blob: %w", err))
	}

	var pages []domain.Page
	err = s.retry(ctx, "extract "+doc.Filename, func(callCtx context.Context) error {
		var err error
		pages, err = s.extractor.Extract(callCtx, data)
		return err
	})
	if err != nil {
		if !errors.Is(err, domain.ErrExtractionFailed) && ctx.Err() == nil {
			err = fmt.Errorf("%w: %w", domain.ErrExtractionFailed, err)
		}
		return s.fail(ctx, doc.ID, err)
	}

	chunks := s.chunker.Chunk(doc.ID, pages)
	if _, err := s.manifest.Commit(domain.TLogRecord{
		Type:       domain.RecordExtractionCompleted,
		DocumentID: doc.ID,
		PageCount:  len(pages),
		Chunks:     chunks,
	}); err != nil {
		return fmt.Errorf("commit extraction of %s: %w", doc.ID, err)
	}
	logger.Debug("%s: %d pages, %d chunks", doc.ID, len(pages), len(chunks))
	return nil
}

// embed creates IndexEntries for the document's chunks and commits the
// ids that succeeded. With reset, every chunk is re-embedded and the
// record replaces the previous embedded set.
//
// Batches that fail leave their chunks unembedded and the document
// extracted. If nothing at all could be embedded and the provider was
// reachable, the document is marked failed.
func (s *IngestService) embed(ctx context.Context, id string, reset bool) error {
	entry, err := s.manifest.Get(id)
	if err != nil {
		return err
	}
	status := entry.Document.Status
	if status != domain.StatusExtracted && status != domain.StatusIndexed {
		return nil
	}

	todo := entry.Unembedded()
	if reset {
		todo = entry.Chunks
	}
	if len(todo) == 0 && !reset {
		if status == domain.StatusIndexed {
			return nil
		}
		// Nothing to embed, e.g. a document with no text layer.
		return s.commitEmbedded(id, nil, false)
	}
	if s.embedder == nil {
		logger.Debug("%s: no embedding provider, leaving extracted", id)
		return nil
	}

	done := logger.Timed("embed %s (%d chunks)", id, len(todo))
	defer done()

	var embedded []string
	var firstErr error
	for start := 0; start < len(todo); start += s.batchSize {
		batch := todo[start:min(start+s.batchSize, len(todo))]
		if err := s.limiter.Wait(ctx); err != nil {
			firstErr = err
			break
		}
		ids, err := s.embedBatch(ctx, batch)
		if err != nil {
			logger.Warn("%s: embedding batch at chunk %d failed: %v", id, start, err)
			if firstErr == nil {
				firstErr = err
			}
			if ctx.Err() != nil {
				break
			}
			continue
		}
		embedded = append(embedded, ids...)
	}

	if len(embedded) > 0 || reset {
		if err := s.commitEmbedded(id, embedded, reset); err != nil {
			if errors.Is(err, domain.ErrNotFound) && len(embedded) > 0 {
				// The document is gone; its fresh entries must not stay live.
				if rmErr := s.index.Remove(context.WithoutCancel(ctx), embedded...); rmErr != nil {
					logger.Warn("tombstone %d orphaned index entries of %s: %v", len(embedded), id, rmErr)
				}
			}
			return err
		}
	}
	if firstErr == nil {
		return nil
	}
	if len(embedded) == 0 && ctx.Err() == nil && !errors.Is(firstErr, domain.ErrEmbeddingUnavailable) {
		return s.fail(ctx, id, firstErr)
	}
	return fmt.Errorf("%s: %d of %d chunks embedded: %w", id, len(embedded), len(todo), firstErr)
}

func (s *IngestService) embedBatch(ctx context.Context, batch []domain.PageChunk) ([]string, error) {
	texts := make([]string, len(batch))
	for i := range batch {
		texts[i] = batch[i].Text
	}

	var vectors [][]float32
	err := s.retry(ctx, "embed batch", func(callCtx context.Context) error {
		var err error
		vectors, err = s.embedder.EmbedBatch(callCtx, texts)
		return err
	})
	if err != nil {
		if !errors.Is(err, domain.ErrEmbeddingUnavailable) && !errors.Is(err, domain.ErrEmbeddingFailed) && ctx.Err() == nil {
			err = fmt.Errorf("%w: %w", domain.ErrEmbeddingFailed, err)
		}
		return nil, err
	}
	if len(vectors) != len(batch) {
		return nil, fmt.Errorf("%w: got %d vectors for %d chunks", domain.ErrEmbeddingFailed, len(vectors), len(batch))
	}

	entries := make([]driven.IndexEntry, len(batch))
	ids := make([]string, len(batch))
	for i := range batch {
		if len(vectors[i]) == 0 {
			return nil, fmt.Errorf("%w: empty vector for %s", domain.ErrEmbeddingFailed, batch[i].ID)
		}
		entries[i] = driven.IndexEntry{ChunkID: batch[i].ID, DocumentID: batch[i].DocumentID, Vector: vectors[i]}
		ids[i] = batch[i].ID
	}
	if err := s.index.Upsert(ctx, entries...); err != nil {
		return nil, fmt.Errorf("%w: index upsert: %w", domain.ErrEmbeddingFailed, err)
	}
	return ids, nil
}

func (s *IngestService) commitEmbedded(id string, chunkIDs []string, reset bool) error {
	rec, err := s.manifest.Commit(domain.TLogRecord{
		Type:          domain.RecordIndexUpdated,
		DocumentID:    id,
		ChunkIDs:      chunkIDs,
		ResetEmbedded: reset,
	})
	if err != nil {
		return fmt.Errorf("commit index update of %s: %w", id, err)
	}
	logger.Debug("%s: %d chunks embedded (seq %d)", id, len(chunkIDs), rec.Seq)
	return nil
}

// fail records cause as the document's failure reason. Cancellation is
// not a failure: the document keeps its recoverable intermediate state.
func (s *IngestService) fail(ctx context.Context, id string, cause error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if _, err := s.manifest.Commit(domain.TLogRecord{
		Type:       domain.RecordDocumentFailed,
		DocumentID: id,
		Reason:     cause.Error(),
	}); err != nil {
		return fmt.Errorf("%w (recording failure: %w)", cause, err)
	}
	logger.Warn("%s failed: %v", id, cause)
	return cause
}

// retry runs fn with a per-call timeout and bounded exponential backoff.
// Invalid input, missing tools and cancellation are not retried.
func (s *IngestService) retry(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	policy := backoff.WithContext(backoff.WithMaxRetries(s.newBackOff(), uint64(s.maxRetries)), ctx)

	return backoff.RetryNotify(func() error {
		callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
		defer cancel()

		err := fn(callCtx)
		switch {
		case err == nil:
			return nil
		case ctx.Err() != nil:
			return backoff.Permanent(ctx.Err())
		case errors.Is(err, domain.ErrInvalidInput),
			errors.Is(err, domain.ErrExtractorUnavailable),
			errors.Is(err, domain.ErrNotPDF):
			return backoff.Permanent(err)
		case errors.Is(callCtx.Err(), context.DeadlineExceeded):
			return fmt.Errorf("timed out after %s: %w", s.callTimeout, err)
		default:
			return err
		}
	}, policy, func(err error, wait time.Duration) {
		logger.Info("%s: %v (retrying in %s)", op, err, wait.Round(time.Millisecond))
	})
}

// IndexPending resumes every pending document and embeds every extracted
// one. It returns how many documents ended up indexed.
func (s *IngestService) IndexPending(ctx context.Context) (int, error) {
	var todo []domain.Document
	for _, doc := range s.manifest.Documents() {
		if doc.Status == domain.StatusPending || doc.Status == domain.StatusExtracted {
			todo = append(todo, doc)
		}
	}
	if len(todo) == 0 {
		return 0, nil
	}
	logger.Info("indexing %d pending documents", len(todo))

	indexed := make([]bool, len(todo))
	errs := make([]error, len(todo))
	var g errgroup.Group
	g.SetLimit(s.workers)
	for i, doc := range todo {
		g.Go(func() error {
			unlock := s.locks.Lock(doc.Blob.Hash)
			defer unlock()

			cur, err := s.process(ctx, doc.ID)
			errs[i] = err
			indexed[i] = cur != nil && cur.Status == domain.StatusIndexed
			return nil
		})
	}
	_ = g.Wait()

	count := 0
	for _, ok := range indexed {
		if ok {
			count++
		}
	}
	if err := ctx.Err(); err != nil {
		return count, err
	}
	return count, errors.Join(errs...)
}

// Retry moves a failed document back to pending and reruns the pipeline.
func (s *IngestService) Retry(ctx context.Context, id string) (*domain.Document, error) {
	doc, err := s.manifest.Document(id)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(doc.Blob.Hash)
	defer unlock()

	if _, err := s.manifest.Commit(domain.TLogRecord{
		Type:       domain.RecordDocumentRetried,
		DocumentID: id,
	}); err != nil {
		return nil, err
	}
	logger.Info("retrying %s", id)
	return s.process(ctx, id)
}

// Reembed replaces every IndexEntry of a document. Used by index rebuilds.
func (s *IngestService) Reembed(ctx context.Context, id string) error {
	doc, err := s.manifest.Document(id)
	if err != nil {
		return err
	}
	unlock := s.locks.Lock(doc.Blob.Hash)
	defer unlock()
	return s.embed(ctx, id, true)
}
