package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/require"

	"github.com/arcastone/vault/internal/adapters/driven/config/file"
	"github.com/arcastone/vault/internal/adapters/driven/embedding/local"
	"github.com/arcastone/vault/internal/adapters/driven/storage/memory"
	"github.com/arcastone/vault/internal/core/domain"
	"github.com/arcastone/vault/internal/core/services"
	"github.com/arcastone/vault/internal/postprocessors/chunker"
)

// fakePDF builds bytes stubExtractor understands: a PDF header followed
// by page texts separated by form feeds.
func fakePDF(pages ...string) []byte {
	return []byte("%PDF-1.4\n" + strings.Join(pages, "\f"))
}

// stubExtractor decodes fakePDF output.
type stubExtractor struct{}

func (stubExtractor) Name() string { return "stub" }

func (stubExtractor) Extract(_ context.Context, data []byte) ([]domain.Page, error) {
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

// testEnv is a vault wired over in-memory adapters.
type testEnv struct {
	root     string
	blobs    *memory.ContentStore
	index    *memory.VectorIndex
	manifest *services.Manifest
	ingest   *services.IngestService
	settings *services.SettingsService
	services *Services
}

// setupTestServices wires real services into the package and resets the
// command state when the test ends.
func setupTestServices(t *testing.T) *testEnv {
	t.Helper()

	manifest, err := services.OpenManifest(memory.NewTransactionLog(), memory.NewCheckpointStore(),
		services.WithCheckpointEvery(0))
	require.NoError(t, err)

	var ids atomic.Int32
	env := &testEnv{
		root:     t.TempDir(),
		blobs:    memory.NewContentStore(),
		index:    memory.NewVectorIndex(),
		manifest: manifest,
	}
	embedder := local.NewEmbeddingService(0)
	env.ingest = services.NewIngestService(manifest, env.blobs, stubExtractor{}, chunker.New(), embedder, env.index,
		services.WithIngestSettings(domain.IngestSettings{Workers: 2, MaxRetries: 1, CallTimeout: time.Second}),
		services.WithBackOff(func() backoff.BackOff { return &backoff.ZeroBackOff{} }),
		services.WithIDGenerator(func() string { return fmt.Sprintf("doc-%02d", ids.Add(1)) }),
	)

	config, err := file.NewConfigStore(env.root)
	require.NoError(t, err)
	env.settings = services.NewSettingsService(config, nil)

	search := services.NewSearchService(manifest, env.index, embedder)
	env.services = &Services{
		Ingest:      env.ingest,
		Search:      search,
		Answer:      services.NewAnswerService(search, nil, nil),
		Document:    services.NewDocumentService(manifest, env.index),
		Export:      services.NewExportService(manifest, env.blobs),
		Maintenance: services.NewMaintenanceService(env.root, manifest, env.blobs, env.index, env.ingest),
		Settings:    env.settings,
	}
	SetServices(env.services)

	prevOpener := opener
	opener = nil
	t.Cleanup(func() {
		opener = prevOpener
		SetServices(&Services{})
		resetFlags()
	})
	return env
}

// add ingests a fake PDF and returns its document.
func (e *testEnv) add(t *testing.T, name string, pages ...string) *domain.Document {
	t.Helper()
	doc, err := e.ingest.IngestBytes(context.Background(), name, fakePDF(pages...))
	require.NoError(t, err)
	return doc
}

// writePDF writes a fake PDF into dir and returns its path.
func writePDF(t *testing.T, dir, name string, pages ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, fakePDF(pages...), 0o600))
	return path
}

// execute runs the root command with args and returns everything it printed.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return executeWithInput(t, "", args...)
}

// executeWithInput is execute with stdin reading from input.
func executeWithInput(t *testing.T, input string, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetIn(strings.NewReader(input))
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetIn(nil)
	}()

	err := Execute()
	return buf.String(), err
}

// resetFlags puts package flag variables back to their defaults, since
// cobra keeps parsed values between executions.
func resetFlags() {
	rootDir = ""
	verbose = false
	searchLimit = 10
	searchJSON = false
	askTopK = 5
	askRetrieve = false
	askJSON = false
	exportTo = ""
	exportAll = false
	listStatus = ""
	listFormat = "table"
	statsJSON = false
	sitemapHTML = false
	sitemapOutput = ""
}
