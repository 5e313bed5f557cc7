package domain

import (
	"fmt"
	"strings"
)

// DefaultSnippetLength is the rune length of result snippets.
const DefaultSnippetLength = 240

// SearchOptions configures search behaviour.
type SearchOptions struct {
	// Limit is the maximum number of hits to return.
	Limit int
}

// SearchResult is a chunk hit joined with its document.
type SearchResult struct {
	Document Document  `json:"document"`
	Chunk    PageChunk `json:"chunk"`
	Score    float64   `json:"score"`
	Snippet  string    `json:"snippet"`
}

// Snippet shortens text to at most max runes, marking a cut with an ellipsis.
func Snippet(text string, max int) string {
	text = strings.TrimSpace(text)
	r := []rune(text)
	if max <= 0 || len(r) <= max {
		return text
	}
	return strings.TrimSpace(string(r[:max])) + "…"
}

// Citation points at a page of a document used to answer a question.
type Citation struct {
	DocumentID string `json:"document_id"`
	Filename   string `json:"filename"`
	Page       int    `json:"page"`
}

// String renders the citation as "file (p.N)".
func (c Citation) String() string {
	return fmt.Sprintf("%s (p.%d)", c.Filename, c.Page)
}

// Answer is the response to a natural-language question.
type Answer struct {
	// Text is the answer, generated or extractive.
	Text string `json:"text"`

	// Sources lists the passages the answer was built from.
	Sources []Citation `json:"sources"`

	// Generated is true when an LLM produced Text.
	Generated bool `json:"generated"`
}
