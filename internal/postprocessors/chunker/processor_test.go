package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcastone/vault/internal/core/domain"
)

func TestNew(t *testing.T) {
	t.Run("default values", func(t *testing.T) {
		p := New()
		assert.Equal(t, DefaultChunkSize, p.chunkSize)
		assert.Equal(t, DefaultChunkOverlap, p.overlap)
	})

	t.Run("custom values", func(t *testing.T) {
		p := New(WithChunkSize(500), WithOverlap(50))
		assert.Equal(t, 500, p.chunkSize)
		assert.Equal(t, 50, p.overlap)
	})

	t.Run("overlap exceeds chunk size", func(t *testing.T) {
		p := New(WithChunkSize(100), WithOverlap(150))
		assert.Less(t, p.overlap, p.chunkSize)
	})

	t.Run("invalid values ignored", func(t *testing.T) {
		p := New(WithChunkSize(0), WithOverlap(-1))
		assert.Equal(t, DefaultChunkSize, p.chunkSize)
		assert.Equal(t, DefaultChunkOverlap, p.overlap)
	})
}

func TestProcessor_Name(t *testing.T) {
	assert.Equal(t, "chunker", New().Name())
}

func TestChunk_ShortPagesProduceOneChunkEach(t *testing.T) {
	p := New()
	pages := []domain.Page{
		{Number: 1, Text: "Alpha text"},
		{Number: 2, Text: "Beta   text\n"},
		{Number: 3, Text: "Gamma text"},
	}

	chunks := p.Chunk("doc", pages)

	require.Len(t, chunks, 3)
	assert.Equal(t, "doc:1:0", chunks[0].ID)
	assert.Equal(t, "Alpha text", chunks[0].Text)
	assert.Equal(t, 1, chunks[0].Page)
	assert.Equal(t, "Beta text", chunks[1].Text)
	assert.Equal(t, 0, chunks[1].Start)
	assert.Equal(t, 9, chunks[1].End)
	assert.Equal(t, "doc", chunks[2].DocumentID)
}

func TestChunk_EmptyPagesSkipped(t *testing.T) {
	chunks := New().Chunk("doc", []domain.Page{{Number: 1, Text: "  \n\t "}, {Number: 2, Text: "x"}})
	require.Len(t, chunks, 1)
	assert.Equal(t, 2, chunks[0].Page)
}

func TestChunk_LongPageOverlaps(t *testing.T) {
	p := New(WithChunkSize(10), WithOverlap(3))
	text := "abcdefghijklmnopqrstuvwxyz"

	chunks := p.Chunk("doc", []domain.Page{{Number: 1, Text: text}})

	require.Len(t, chunks, 4)
	assert.Equal(t, "abcdefghij", chunks[0].Text)
	assert.Equal(t, "hijklmnopq", chunks[1].Text)
	assert.Equal(t, "opqrstuvwx", chunks[2].Text)
	assert.Equal(t, "vwxyz", chunks[3].Text)
	assert.Equal(t, 21, chunks[3].Start)
	assert.Equal(t, 26, chunks[3].End)
	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
	}
}

func TestChunk_Deterministic(t *testing.T) {
	p := New(WithChunkSize(50), WithOverlap(5))
	pages := []domain.Page{{Number: 1, Text: strings.Repeat("lorem ipsum ", 40)}}

	assert.Equal(t, p.Chunk("d", pages), p.Chunk("d", pages))
}

func TestChunk_CountsRunes(t *testing.T) {
	p := New(WithChunkSize(4), WithOverlap(1))
	chunks := p.Chunk("d", []domain.Page{{Number: 1, Text: "ééééééé"}})

	require.Len(t, chunks, 2)
	assert.Equal(t, "éééé", chunks[0].Text)
	assert.Equal(t, "éééé", chunks[1].Text)
}

func TestNormalise(t *testing.T) {
	assert.Equal(t, "a b c", Normalise("  a \n\n b\t c "))
	assert.Equal(t, "", Normalise("   "))
}
