package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/arcastone/vault/internal/core/domain"
	"github.com/arcastone/vault/internal/core/ports/driven"
	"github.com/arcastone/vault/internal/core/ports/driving"
	"github.com/arcastone/vault/internal/logger"
)

// Ensure SearchService implements the interface.
var _ driving.SearchService = (*SearchService)(nil)

// DefaultSearchLimit is used when no limit is requested.
const DefaultSearchLimit = 10

// minCandidates is the smallest index query issued per search.
const minCandidates = 32

// SearchService answers semantic queries over indexed documents.
type SearchService struct {
	manifest *Manifest
	index    driven.VectorIndex
	embedder driven.EmbeddingService
}

// NewSearchService creates a new search service.
// The embedder is optional; without it every search fails with
// domain.ErrEmbeddingUnavailable.
func NewSearchService(manifest *Manifest, index driven.VectorIndex, embedder driven.EmbeddingService) *SearchService {
	return &SearchService{
		manifest: manifest,
		index:    index,
		embedder: embedder,
	}
}

// Search embeds the query and returns the closest chunks of indexed
// documents, best first. Hits on pending, extracted, failed or removed
// documents are dropped, and the index is queried again with a wider
// window until enough hits survive or the index is exhausted.
func (s *SearchService) Search(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.SearchResult, error) {
	logger.Section("Search")
	logger.Debug("Query: %q", query)

	query = strings.TrimSpace(query)
	if query == "" {
		logger.Debug("Empty query, returning no results")
		return []domain.SearchResult{}, nil
	}
	if s.embedder == nil {
		return nil, fmt.Errorf("search: %w", domain.ErrEmbeddingUnavailable)
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	fetch := max(limit*4, minCandidates)
	for {
		hits, err := s.index.Query(ctx, vec, fetch)
		if err != nil {
			return nil, fmt.Errorf("query index: %w", err)
		}

		results := s.hydrate(hits, limit)
		logger.Debug("fetched %d candidates, %d usable", len(hits), len(results))
		if len(results) >= limit || len(hits) < fetch {
			logger.Info("Search %q: %d results", query, len(results))
			return results, nil
		}
		fetch *= 2
	}
}

// hydrate joins hits with the manifest, keeping at most limit results.
func (s *SearchService) hydrate(hits []driven.VectorHit, limit int) []domain.SearchResult {
	results := make([]domain.SearchResult, 0, min(limit, len(hits)))
	for _, hit := range hits {
		doc, chunk, ok := s.manifest.IndexedChunk(hit.DocumentID, hit.ChunkID)
		if !ok {
			continue
		}
		results = append(results, domain.SearchResult{
			Document: doc,
			Chunk:    chunk,
			Score:    hit.Similarity,
			Snippet:  domain.Snippet(chunk.Text, domain.DefaultSnippetLength),
		})
		if len(results) == limit {
			break
		}
	}
	return results
}
