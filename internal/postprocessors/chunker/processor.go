// Package chunker splits extracted page text into overlapping windows.
package chunker

import (
	"strings"

	"github.com/arcastone/vault/internal/core/domain"
	"github.com/arcastone/vault/internal/core/ports/driven"
)

// DefaultChunkSize is the default maximum number of runes per chunk.
const DefaultChunkSize = 1200

// DefaultChunkOverlap is the default number of runes shared by neighbours.
const DefaultChunkOverlap = 120

var _ driven.Chunker = (*Processor)(nil)

// Processor splits pages into fixed-size chunks with overlap.
// Boundaries depend only on the page text, so re-extraction of identical
// bytes reproduces identical chunks and chunk IDs.
type Processor struct {
	chunkSize int
	overlap   int
}

// Option configures the chunker processor.
type Option func(*Processor)

// WithChunkSize sets the chunk size in runes.
func WithChunkSize(size int) Option {
	return func(p *Processor) {
		if size > 0 {
			p.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between chunks in runes.
func WithOverlap(overlap int) Option {
	return func(p *Processor) {
		if overlap >= 0 {
			p.overlap = overlap
		}
	}
}

// New creates a new chunker processor with the given options.
func New(opts ...Option) *Processor {
	p := &Processor{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
	}

	for _, opt := range opts {
		opt(p)
	}

	// Overlap must leave room to advance.
	if p.overlap >= p.chunkSize {
		p.overlap = p.chunkSize / 4
	}

	return p
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "chunker"
}

// Chunk normalises each page's whitespace and splits it into windows.
// Empty pages produce no chunks.
func (p *Processor) Chunk(documentID string, pages []domain.Page) []domain.PageChunk {
	var chunks []domain.PageChunk
	for _, page := range pages {
		text := []rune(Normalise(page.Text))
		if len(text) == 0 {
			continue
		}
		for i, span := range p.windows(len(text)) {
			chunks = append(chunks, domain.PageChunk{
				ID:         domain.ChunkID(documentID, page.Number, i),
				DocumentID: documentID,
				Page:       page.Number,
				Index:      i,
				Start:      span[0],
				End:        span[1],
				Text:       string(text[span[0]:span[1]]),
			})
		}
	}
	return chunks
}

// windows returns [start, end) rune ranges covering n runes.
func (p *Processor) windows(n int) [][2]int {
	if n <= p.chunkSize {
		return [][2]int{{0, n}}
	}
	spans := make([][2]int, 0, n/(p.chunkSize-p.overlap)+1)
	start := 0
	for start < n {
		end := start + p.chunkSize
		if end > n {
			end = n
		}
		spans = append(spans, [2]int{start, end})
		if end == n {
			break
		}
		start = end - p.overlap
	}
	return spans
}

// Normalise collapses whitespace runs to single spaces and trims the ends.
func Normalise(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
