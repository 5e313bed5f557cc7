// Package watch ingests PDFs dropped into an inbox directory.
//
// The watcher listens for create and write events with fsnotify, waits for
// a file to settle, then hands it to the ingestion service. Results are
// streamed on a channel that closes when the context is cancelled.
package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/arcastone/vault/internal/core/domain"
	"github.com/arcastone/vault/internal/core/ports/driving"
	"github.com/arcastone/vault/internal/logger"
)

// DefaultDebounce is how long a file must be quiet before it is ingested.
const DefaultDebounce = 500 * time.Millisecond

// ErrClosed is returned by Watch after Close.
var ErrClosed = errors.New("watcher closed")

// Watcher feeds files from an inbox directory into ingestion.
type Watcher struct {
	dir      string
	ingest   driving.IngestService
	debounce time.Duration

	mu     sync.Mutex
	closed bool
	fsw    *fsnotify.Watcher
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the settle time before a changed file is ingested.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// New creates a watcher for dir.
func New(dir string, ingest driving.IngestService, opts ...Option) *Watcher {
	w := &Watcher{
		dir:      dir,
		ingest:   ingest,
		debounce: DefaultDebounce,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Dir returns the watched directory.
func (w *Watcher) Dir() string {
	return w.dir
}

// Watch starts watching the inbox. Every settled file produces one result;
// the channel closes when ctx is cancelled or the watcher is closed.
func (w *Watcher) Watch(ctx context.Context) (<-chan domain.IngestResult, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil, ErrClosed
	}

	info, err := os.Stat(w.dir)
	if err != nil {
		return nil, fmt.Errorf("inbox %s: %w", w.dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("inbox %s is not a directory: %w", w.dir, domain.ErrInvalidInput)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fsw.Add(w.dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", w.dir, err)
	}
	w.fsw = fsw

	out := make(chan domain.IngestResult)
	go w.loop(ctx, fsw, out)

	logger.Info("watching inbox %s", w.dir)
	return out, nil
}

func (w *Watcher) loop(ctx context.Context, fsw *fsnotify.Watcher, out chan<- domain.IngestResult) {
	defer close(out)
	defer fsw.Close()

	pending := newDebouncer(w.debounce)
	defer pending.stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			if path := w.handleEvent(event); path != "" {
				pending.touch(path)
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			logger.Warn("inbox watcher: %v", err)

		case path := <-pending.ready:
			pending.fired(path)
			for _, res := range w.ingest.IngestPaths(ctx, []string{path}) {
				select {
				case out <- res:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

// debouncer delivers a path on ready once no event has touched it for the
// delay. It is owned by a single goroutine.
type debouncer struct {
	delay  time.Duration
	ready  chan string
	done   chan struct{}
	timers map[string]*time.Timer
}

func newDebouncer(delay time.Duration) *debouncer {
	return &debouncer{
		delay:  delay,
		ready:  make(chan string),
		done:   make(chan struct{}),
		timers: make(map[string]*time.Timer),
	}
}

// touch starts or restarts the quiet period for path. A timer that has
// already fired is left alone: its delivery is still waiting to be read,
// and the file is read only after that.
func (d *debouncer) touch(path string) {
	if t, ok := d.timers[path]; ok {
		if t.Stop() {
			t.Reset(d.delay)
		}
		return
	}
	d.timers[path] = time.AfterFunc(d.delay, func() {
		select {
		case d.ready <- path:
		case <-d.done:
		}
	})
}

// fired forgets path after its delivery was read from ready.
func (d *debouncer) fired(path string) {
	delete(d.timers, path)
}

func (d *debouncer) stop() {
	close(d.done)
	for _, t := range d.timers {
		t.Stop()
	}
}

// handleEvent returns the path to ingest for an event, or "" to skip it.
// Only creates and writes of visible regular files count.
func (w *Watcher) handleEvent(event fsnotify.Event) string {
	if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) {
		return ""
	}

	base := filepath.Base(event.Name)
	if strings.HasPrefix(base, ".") {
		return ""
	}

	info, err := os.Stat(event.Name)
	if err != nil || !info.Mode().IsRegular() {
		return ""
	}

	if !strings.EqualFold(filepath.Ext(base), ".pdf") {
		head, err := readHead(event.Name)
		if err != nil || !domain.LooksLikePDF(base, head) {
			logger.Debug("inbox: skipping %s", base)
			return ""
		}
	}
	return event.Name
}

func readHead(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	head := make([]byte, 8)
	n, err := f.Read(head)
	if n == 0 {
		return nil, err
	}
	return head[:n], nil
}

// Close stops the watcher. It is safe to call more than once.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	if w.fsw != nil {
		return w.fsw.Close()
	}
	return nil
}
