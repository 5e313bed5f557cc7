package cli

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/arcastone/vault/internal/core/domain"
)

func TestDocumentCmd_Use(t *testing.T) {
	assert.Equal(t, "document", documentCmd.Use)
	assert.Contains(t, documentCmd.Aliases, "doc")
}

func TestDocumentCmd_HasSubcommands(t *testing.T) {
	names := make([]string, 0, len(documentCmd.Commands()))
	for _, c := range documentCmd.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"list", "get", "content", "remove", "retry"}, names)
}

func TestDocumentListCmd_Table(t *testing.T) {
	env := setupTestServices(t)
	env.add(t, "alpha.pdf", "Alpha text")
	env.add(t, "beta.pdf", "Beta text", "More")

	out, err := execute(t, "document", "list")

	require.NoError(t, err)
	assert.Contains(t, out, "alpha.pdf")
	assert.Contains(t, out, "beta.pdf")
	assert.Contains(t, out, "indexed")
	assert.Contains(t, out, "Total: 2 documents")
}

func TestDocumentListCmd_Empty(t *testing.T) {
	setupTestServices(t)

	out, err := execute(t, "doc", "list")

	require.NoError(t, err)
	assert.Contains(t, out, "No documents found.")
}

func TestDocumentListCmd_StatusFilter(t *testing.T) {
	env := setupTestServices(t)
	env.add(t, "ok.pdf", "Alpha")
	bad := env.add(t, "bad.pdf", "Beta")
	_, err := env.manifest.Commit(domain.TLogRecord{
		Type: domain.RecordDocumentFailed, DocumentID: bad.ID, Reason: "broken",
	})
	require.NoError(t, err)

	out, err := execute(t, "document", "list", "--status", "failed")

	require.NoError(t, err)
	assert.Contains(t, out, "bad.pdf")
	assert.NotContains(t, out, "ok.pdf")
	assert.Contains(t, out, "Total: 1 documents")
}

func TestDocumentListCmd_BadStatus(t *testing.T) {
	setupTestServices(t)

	_, err := execute(t, "document", "list", "--status", "bogus")

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestDocumentListCmd_JSON(t *testing.T) {
	env := setupTestServices(t)
	doc := env.add(t, "alpha.pdf", "Alpha text")

	out, err := execute(t, "document", "list", "--format", "json")
	require.NoError(t, err)

	var rows []documentRow
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, doc.ID, rows[0].ID)
	assert.Equal(t, "indexed", rows[0].Status)
	assert.Equal(t, 1, rows[0].Pages)
	assert.Equal(t, doc.Blob.Hash, rows[0].Hash)
}

func TestDocumentListCmd_YAML(t *testing.T) {
	env := setupTestServices(t)
	env.add(t, "alpha.pdf", "Alpha text")

	out, err := execute(t, "document", "list", "-f", "yaml")
	require.NoError(t, err)

	var rows []documentRow
	require.NoError(t, yaml.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "alpha.pdf", rows[0].Filename)
}

func TestDocumentListCmd_UnknownFormat(t *testing.T) {
	setupTestServices(t)

	_, err := execute(t, "document", "list", "--format", "xml")

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestDocumentGetCmd(t *testing.T) {
	env := setupTestServices(t)
	doc := env.add(t, "alpha.pdf", "Alpha text", "Beta text")

	out, err := execute(t, "document", "get", doc.ID)

	require.NoError(t, err)
	assert.Contains(t, out, "Document: "+doc.ID)
	assert.Contains(t, out, "alpha.pdf")
	assert.Contains(t, out, doc.Blob.Hash)
	assert.Contains(t, out, "Pages:     2")
	assert.Contains(t, out, "Chunks:    2 (2 embedded)")
}

func TestDocumentGetCmd_NotFound(t *testing.T) {
	setupTestServices(t)

	_, err := execute(t, "document", "get", "missing")

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDocumentContentCmd(t *testing.T) {
	env := setupTestServices(t)
	doc := env.add(t, "alpha.pdf", "Alpha text", "Beta text")

	out, err := execute(t, "document", "content", doc.ID)

	require.NoError(t, err)
	assert.Equal(t, "--- Page 1 ---\nAlpha text\n\n--- Page 2 ---\nBeta text\n", out)
}

func TestDocumentRemoveCmd(t *testing.T) {
	env := setupTestServices(t)
	doc := env.add(t, "alpha.pdf", "Alpha text")

	out, err := execute(t, "document", "remove", doc.ID)

	require.NoError(t, err)
	assert.Contains(t, out, "Document "+doc.ID+" removed.")
	_, err = env.manifest.Get(doc.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Zero(t, env.index.Len())

	has, err := env.blobs.Has(context.Background(), doc.Blob)
	require.NoError(t, err)
	assert.True(t, has, "bytes stay until gc")
}

func TestDocumentRetryCmd(t *testing.T) {
	env := setupTestServices(t)
	doc := env.add(t, "alpha.pdf", "Alpha text")
	_, err := env.manifest.Commit(domain.TLogRecord{
		Type: domain.RecordDocumentFailed, DocumentID: doc.ID, Reason: "transient",
	})
	require.NoError(t, err)

	out, err := execute(t, "document", "retry", doc.ID)

	require.NoError(t, err)
	assert.Contains(t, out, "Retrying document "+doc.ID)
	assert.Contains(t, out, "is now indexed")

	got, err := env.manifest.Document(doc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusIndexed, got.Status)
}

func TestDocumentRetryCmd_NotFound(t *testing.T) {
	setupTestServices(t)

	_, err := execute(t, "document", "retry", "missing")

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDocumentCmd_NoService(t *testing.T) {
	setupTestServices(t)
	documentService = nil

	_, err := execute(t, "document", "list")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "document service not configured")
}
