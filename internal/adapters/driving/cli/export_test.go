package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportCmd_Flags(t *testing.T) {
	flag := exportCmd.Flags().Lookup("to")
	require.NotNil(t, flag)
	assert.Equal(t, "o", flag.Shorthand)
	assert.NotNil(t, exportCmd.Flags().Lookup("all"))
}

func TestExportCmd_CollisionsGetSuffix(t *testing.T) {
	env := setupTestServices(t)
	first := env.add(t, "report.pdf", "First")
	second := env.add(t, "report.pdf", "Second")
	dest := t.TempDir()

	out, err := execute(t, "export", "--to", dest, first.ID, second.ID)

	require.NoError(t, err)
	assert.Contains(t, out, "Exported 2 of 2 documents to "+dest)

	data, err := os.ReadFile(filepath.Join(dest, "report.pdf"))
	require.NoError(t, err)
	assert.Equal(t, fakePDF("First"), data)
	data, err = os.ReadFile(filepath.Join(dest, "report_1.pdf"))
	require.NoError(t, err)
	assert.Equal(t, fakePDF("Second"), data)
}

func TestExportCmd_PartialFailure(t *testing.T) {
	env := setupTestServices(t)
	doc := env.add(t, "kept.pdf", "Alpha")
	dest := t.TempDir()

	out, err := execute(t, "export", "-o", dest, doc.ID, "missing")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 documents could not be exported")
	assert.Contains(t, out, "not_found")
	assert.Contains(t, out, "Exported 1 of 2 documents")
	assert.FileExists(t, filepath.Join(dest, "kept.pdf"))
}

func TestExportCmd_All(t *testing.T) {
	env := setupTestServices(t)
	env.add(t, "a.pdf", "Alpha")
	env.add(t, "b.pdf", "Beta")
	dest := t.TempDir()

	out, err := execute(t, "export", "--all", "--to", dest)

	require.NoError(t, err)
	assert.Contains(t, out, "Exported 2 of 2 documents")
	assert.FileExists(t, filepath.Join(dest, "a.pdf"))
	assert.FileExists(t, filepath.Join(dest, "b.pdf"))
}

func TestExportCmd_AllRejectsIDs(t *testing.T) {
	setupTestServices(t)

	_, err := execute(t, "export", "--all", "--to", t.TempDir(), "doc-01")

	assert.Error(t, err)
}

func TestExportCmd_AllEmptyVault(t *testing.T) {
	setupTestServices(t)

	out, err := execute(t, "export", "--all", "--to", t.TempDir())

	require.NoError(t, err)
	assert.Contains(t, out, "No documents to export.")
}
