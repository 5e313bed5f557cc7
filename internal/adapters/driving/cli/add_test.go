package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcastone/vault/internal/core/domain"
)

func TestAddCmd_Use(t *testing.T) {
	assert.Equal(t, "add [path...]", addCmd.Use)
}

func TestAddCmd_RequiresPath(t *testing.T) {
	setupTestServices(t)

	_, err := execute(t, "add")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "requires at least 1 arg(s)")
}

func TestAddCmd_Directory(t *testing.T) {
	env := setupTestServices(t)
	dir := t.TempDir()
	writePDF(t, dir, "a.pdf", "Alpha text")
	writePDF(t, dir, "b.pdf", "Beta text")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("plain"), 0o600))

	out, err := execute(t, "add", dir)

	require.NoError(t, err)
	assert.Contains(t, out, "added    a.pdf")
	assert.Contains(t, out, "added    b.pdf")
	assert.NotContains(t, out, "notes.txt")
	assert.Contains(t, out, "Added 2, already stored 0, failed 0.")

	docs := env.manifest.Documents()
	require.Len(t, docs, 2)
	for _, doc := range docs {
		assert.Equal(t, domain.StatusIndexed, doc.Status)
	}
}

func TestAddCmd_Deduplicates(t *testing.T) {
	setupTestServices(t)
	path := writePDF(t, t.TempDir(), "a.pdf", "Alpha text")

	_, err := execute(t, "add", path)
	require.NoError(t, err)

	copyPath := writePDF(t, t.TempDir(), "copy.pdf", "Alpha text")
	out, err := execute(t, "add", copyPath)

	require.NoError(t, err)
	assert.Contains(t, out, "stored ")
	assert.Contains(t, out, "doc-01")
	assert.Contains(t, out, "Added 0, already stored 1, failed 0.")
}

func TestAddCmd_BadFileDoesNotStopOthers(t *testing.T) {
	setupTestServices(t)
	dir := t.TempDir()
	good := writePDF(t, dir, "good.pdf", "Alpha text")
	bad := filepath.Join(dir, "bad.pdf")
	require.NoError(t, os.WriteFile(bad, []byte("not a pdf at all"), 0o600))
	missing := filepath.Join(dir, "missing.pdf")

	out, err := execute(t, "add", good, bad, missing)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 of 3 files failed")
	assert.Contains(t, out, "added    good.pdf")
	assert.Contains(t, out, "Added 1, already stored 0, failed 2.")
}

func TestAddCmd_EmptyDirectory(t *testing.T) {
	setupTestServices(t)

	out, err := execute(t, "add", t.TempDir())

	require.NoError(t, err)
	assert.Contains(t, out, "No PDF files found.")
}

func TestIndexCmd(t *testing.T) {
	setupTestServices(t)

	out, err := execute(t, "index")

	require.NoError(t, err)
	assert.Contains(t, out, "Indexed 0 documents.")
}
