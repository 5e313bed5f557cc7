package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcastone/vault/internal/core/domain"
)

func newSearch(v *testVault) *SearchService {
	return NewSearchService(v.manifest, v.index, v.embedder)
}

func TestSearch_TopHitIsMatchingPage(t *testing.T) {
	v := newTestVault(t)
	doc := v.add(t, "letters.pdf", "Alpha text", "Beta text", "Gamma text")

	results, err := newSearch(v).Search(context.Background(), "Alpha", domain.SearchOptions{Limit: 1})
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, doc.ID, results[0].Document.ID)
	assert.Equal(t, 1, results[0].Chunk.Page)
	assert.Equal(t, "Alpha text", results[0].Snippet)
	assert.Greater(t, results[0].Score, 0.5)
}

func TestSearch_Deterministic(t *testing.T) {
	v := newTestVault(t)
	v.add(t, "a.pdf", "Alpha text", "Beta text", "Gamma text")
	v.add(t, "b.pdf", "Beta text again", "Delta text")
	svc := newSearch(v)

	first, err := svc.Search(context.Background(), "text", domain.SearchOptions{Limit: 5})
	require.NoError(t, err)
	second, err := svc.Search(context.Background(), "text", domain.SearchOptions{Limit: 5})
	require.NoError(t, err)

	require.Len(t, first, 5)
	assert.Equal(t, first, second)
}

func TestSearch_DefaultLimit(t *testing.T) {
	v := newTestVault(t)
	pages := make([]string, 15)
	for i := range pages {
		pages[i] = fmt.Sprintf("page %d", i+1)
	}
	v.add(t, "long.pdf", pages...)

	results, err := newSearch(v).Search(context.Background(), "page", domain.SearchOptions{})
	require.NoError(t, err)
	assert.Len(t, results, DefaultSearchLimit)
}

func TestSearch_OnlyIndexedDocuments(t *testing.T) {
	v := newTestVault(t)
	kept := v.add(t, "kept.pdf", "Alpha kept")
	failed := v.add(t, "failed.pdf", "Alpha failed")
	_, err := v.manifest.Commit(domain.TLogRecord{Type: domain.RecordDocumentFailed, DocumentID: failed.ID, Reason: "manual"})
	require.NoError(t, err)

	results, err := newSearch(v).Search(context.Background(), "Alpha", domain.SearchOptions{Limit: 10})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, kept.ID, results[0].Document.ID)
}

func TestSearch_WidensPastStaleHits(t *testing.T) {
	v := newTestVault(t)

	// More stale chunks than the first candidate window, all scoring
	// higher than the live one.
	pages := make([]string, 40)
	for i := range pages {
		pages[i] = fmt.Sprintf("Alpha %d", i+1)
	}
	stale := v.add(t, "stale.pdf", pages...)
	keep := v.add(t, "keep.pdf", "Alpha zzz unrelated words")
	_, err := v.manifest.Commit(domain.TLogRecord{Type: domain.RecordDocumentFailed, DocumentID: stale.ID})
	require.NoError(t, err)

	results, err := newSearch(v).Search(context.Background(), "Alpha", domain.SearchOptions{Limit: 1})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, keep.ID, results[0].Document.ID)
}

func TestSearch_EmptyQuery(t *testing.T) {
	v := newTestVault(t)
	v.add(t, "a.pdf", "Alpha")

	results, err := newSearch(v).Search(context.Background(), "   ", domain.SearchOptions{})
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestSearch_EmptyVault(t *testing.T) {
	v := newTestVault(t)

	results, err := newSearch(v).Search(context.Background(), "Alpha", domain.SearchOptions{})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearch_WithoutEmbedder(t *testing.T) {
	v := newTestVault(t)
	svc := NewSearchService(v.manifest, v.index, nil)

	_, err := svc.Search(context.Background(), "Alpha", domain.SearchOptions{})
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
}

func TestSearch_EmbedderError(t *testing.T) {
	v := newTestVault(t)
	v.embedder.setErr(nil)
	v.add(t, "a.pdf", "Alpha")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newSearch(v).Search(ctx, "Alpha", domain.SearchOptions{})
	assert.ErrorIs(t, err, context.Canceled)
}
