package cli

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcastone/vault/internal/core/domain"
)

func TestCheckpointCmd(t *testing.T) {
	env := setupTestServices(t)
	env.add(t, "a.pdf", "Alpha")

	out, err := execute(t, "checkpoint")

	require.NoError(t, err)
	assert.Contains(t, out, "Checkpoint written.")
}

func TestVerifyCmd_Healthy(t *testing.T) {
	env := setupTestServices(t)
	env.add(t, "a.pdf", "Alpha")
	env.add(t, "b.pdf", "Beta")

	out, err := execute(t, "verify")

	require.NoError(t, err)
	assert.Contains(t, out, "All 2 documents verified.")
}

func TestVerifyCmd_ReportsDamage(t *testing.T) {
	env := setupTestServices(t)
	missing := env.add(t, "missing.pdf", "Alpha")
	corrupt := env.add(t, "corrupt.pdf", "Beta")
	require.NoError(t, env.blobs.Delete(context.Background(), missing.Blob))
	env.blobs.Tamper(corrupt.Blob, []byte("flipped"))

	out, err := execute(t, "verify")

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrCorrupt)
	assert.Contains(t, out, "missing  missing.pdf")
	assert.Contains(t, out, "corrupt  corrupt.pdf")
	assert.Contains(t, out, "Checked 2 documents: 1 missing, 1 corrupt.")
}

func TestRebuildIndexCmd(t *testing.T) {
	env := setupTestServices(t)
	env.add(t, "a.pdf", "Alpha text", "Beta text")
	require.NoError(t, env.index.Reset(context.Background()))

	out, err := execute(t, "rebuild-index")

	require.NoError(t, err)
	assert.Contains(t, out, "Rebuilt index: 1 documents, 2 of 2 chunks embedded, 0 documents failed.")
	assert.Equal(t, 2, env.index.Len())
}

func TestGCCmd(t *testing.T) {
	env := setupTestServices(t)
	env.add(t, "kept.pdf", "Alpha")
	removed := env.add(t, "removed.pdf", "Beta")

	_, err := execute(t, "document", "remove", removed.ID)
	require.NoError(t, err)

	out, err := execute(t, "gc")

	require.NoError(t, err)
	assert.Contains(t, out, "Scanned 2 blobs, removed 1")
	has, err := env.blobs.Has(context.Background(), removed.Blob)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestBundleCmd(t *testing.T) {
	env := setupTestServices(t)
	env.add(t, "a.pdf", "Alpha")
	dest := filepath.Join(t.TempDir(), "copy")

	out, err := execute(t, "bundle", dest)

	require.NoError(t, err)
	assert.Contains(t, out, "Vault bundled to "+dest)
	assert.DirExists(t, dest)
}

func TestBundleCmd_InsideVault(t *testing.T) {
	env := setupTestServices(t)

	_, err := execute(t, "bundle", filepath.Join(env.root, "nested"))

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestStatsCmd(t *testing.T) {
	env := setupTestServices(t)
	env.add(t, "a.pdf", "Alpha", "Beta")

	out, err := execute(t, "stats")

	require.NoError(t, err)
	assert.Contains(t, out, "Documents:      1")
	assert.Contains(t, out, "Chunks:         2")
	assert.Contains(t, out, "Index entries:  2")
}

func TestStatsCmd_JSON(t *testing.T) {
	env := setupTestServices(t)
	env.add(t, "a.pdf", "Alpha", "Beta")
	env.add(t, "b.pdf", "Gamma")

	out, err := execute(t, "stats", "--json")
	require.NoError(t, err)

	var stats domain.Stats
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, 2, stats.Documents)
	assert.Equal(t, 2, stats.ByStatus[domain.StatusIndexed])
	assert.Equal(t, 3, stats.Chunks)
	assert.Equal(t, 2, stats.Blobs)
}

func TestMaintenanceCmds_NoService(t *testing.T) {
	for _, name := range []string{"checkpoint", "verify", "rebuild-index", "gc", "stats"} {
		t.Run(name, func(t *testing.T) {
			setupTestServices(t)
			maintenanceService = nil

			_, err := execute(t, name)

			assert.Error(t, err)
			assert.Contains(t, err.Error(), "maintenance service not configured")
		})
	}
}
