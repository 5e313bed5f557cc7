package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcastone/vault/internal/adapters/driven/config/file"
	"github.com/arcastone/vault/internal/adapters/driving/cli"
	"github.com/arcastone/vault/internal/core/domain"
	"github.com/arcastone/vault/internal/core/services"
	"github.com/arcastone/vault/internal/normalisers/pdf/pdftest"
)

// newTestRoot returns a vault root configured for the native extractor and
// no automatic checkpoints, so the test controls when one is taken.
func newTestRoot(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	config, err := file.NewConfigStore(root)
	require.NoError(t, err)
	require.NoError(t, config.Set(services.KeyExtractionBackend, string(domain.ExtractionNative)))
	require.NoError(t, config.Set(services.KeyCheckpointEvery, 0))
	return root
}

func openTestVault(t *testing.T, root string) *vault {
	t.Helper()
	v, err := openRoot(context.Background(), root, cli.OpenFull)
	require.NoError(t, err)
	return v
}

func addPDF(t *testing.T, v *vault, dir, name string, pages ...string) *domain.Document {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, pdftest.Build(pages...), 0o600))
	doc, err := v.svc.Ingest.IngestFile(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, domain.StatusIndexed, doc.Status)
	return doc
}

// state is the part of a snapshot that must survive a restart.
func state(t *testing.T, v *vault) (uint64, string) {
	t.Helper()
	snap := v.manifest.Snapshot()
	entries, err := json.Marshal(snap.Entries)
	require.NoError(t, err)
	return snap.LastSeq, string(entries)
}

func TestOpenVault_RecoversAcrossRestarts(t *testing.T) {
	root := newTestRoot(t)
	inbox := t.TempDir()
	ctx := context.Background()

	v := openTestVault(t, root)
	first := addPDF(t, v, inbox, "letters.pdf", "Dear Ada", "Yours, Charles")
	seq, entries := state(t, v)
	require.NoError(t, v.svc.Close())

	v = openTestVault(t, root)
	gotSeq, gotEntries := state(t, v)
	assert.Equal(t, seq, gotSeq)
	assert.Equal(t, entries, gotEntries)

	results, err := v.svc.Search.Search(ctx, "Dear Ada", domain.SearchOptions{Limit: 5})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, first.ID, results[0].Document.ID)

	// Checkpoint, then write more records on top of it.
	require.NoError(t, v.svc.Maintenance.Checkpoint(ctx))
	addPDF(t, v, inbox, "notes.pdf", "Analytical engine notes")
	seq, entries = state(t, v)
	require.NoError(t, v.svc.Close())

	v = openTestVault(t, root)
	defer v.svc.Close()
	gotSeq, gotEntries = state(t, v)
	assert.Equal(t, seq, gotSeq)
	assert.Equal(t, entries, gotEntries)
	assert.Equal(t, 2, v.manifest.Len())
}

func TestOpenVault_CorruptTlogBlocksStartup(t *testing.T) {
	root := newTestRoot(t)

	v := openTestVault(t, root)
	addPDF(t, v, t.TempDir(), "letters.pdf", "Dear Ada")
	require.NoError(t, v.svc.Close())

	path := filepath.Join(root, tlogFile)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	// Flip a byte inside the payload of the first record.
	data[40] ^= 0xFF
	require.NoError(t, os.WriteFile(path, data, 0o600))

	_, err = openVault(context.Background(), root, cli.OpenFull)
	assert.ErrorIs(t, err, domain.ErrTlogCorrupt)

	// Settings stay reachable on a damaged vault.
	svc, err := openVault(context.Background(), root, cli.OpenSettings)
	require.NoError(t, err)
	assert.NotNil(t, svc.Settings)
	assert.Nil(t, svc.Search)
}
