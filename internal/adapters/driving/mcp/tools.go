package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/arcastone/vault/internal/core/domain"
)

const defaultToolLimit = 10

// SearchInput is the input schema for the search tool.
type SearchInput struct {
	Query string `json:"query" jsonschema:"the search query to find passages"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of results to return (default 10)"`
}

// SearchOutput is the output schema for the search tool.
type SearchOutput struct {
	Results []SearchResultOutput `json:"results"`
	Count   int                  `json:"count"`
}

// SearchResultOutput represents a single search hit.
type SearchResultOutput struct {
	DocumentID string  `json:"document_id"`
	Filename   string  `json:"filename"`
	ChunkID    string  `json:"chunk_id"`
	Page       int     `json:"page"`
	Score      float64 `json:"score"`
	Snippet    string  `json:"snippet"`
	URI        string  `json:"uri"`
}

// AskInput is the input schema for the ask tool.
type AskInput struct {
	Question     string `json:"question" jsonschema:"the question to answer from stored documents"`
	TopK         int    `json:"top_k,omitempty" jsonschema:"number of passages to use as context (default 5)"`
	RetrieveOnly bool   `json:"retrieve_only,omitempty" jsonschema:"return quoted passages instead of a generated answer"`
}

// AskOutput is the output schema for the ask tool.
type AskOutput struct {
	Answer    string           `json:"answer"`
	Generated bool             `json:"generated"`
	Sources   []CitationOutput `json:"sources"`
}

// CitationOutput is a page cited by an answer.
type CitationOutput struct {
	DocumentID string `json:"document_id"`
	Filename   string `json:"filename"`
	Page       int    `json:"page"`
}

// ListDocumentsInput is the input schema for the list_documents tool.
type ListDocumentsInput struct {
	Status string `json:"status,omitempty" jsonschema:"only list documents in this state: pending, extracted, indexed or failed"`
}

// ListDocumentsOutput is the output schema for the list_documents tool.
type ListDocumentsOutput struct {
	Documents []DocumentOutput `json:"documents"`
	Count     int              `json:"count"`
}

// DocumentOutput summarises one stored document.
type DocumentOutput struct {
	ID         string `json:"id"`
	Filename   string `json:"filename"`
	Status     string `json:"status"`
	Pages      int    `json:"pages"`
	Hash       string `json:"hash"`
	IngestedAt string `json:"ingested_at"`
	URI        string `json:"uri"`
}

// ExportInput is the input schema for the export tool.
type ExportInput struct {
	DocumentIDs []string `json:"document_ids" jsonschema:"ids of the documents to export"`
	Destination string   `json:"destination" jsonschema:"directory to write the PDFs into"`
}

// ExportOutput is the output schema for the export tool.
type ExportOutput struct {
	Results  []ExportResultOutput `json:"results"`
	Exported int                  `json:"exported"`
}

// ExportResultOutput is the outcome for one exported document.
type ExportResultOutput struct {
	DocumentID string `json:"document_id"`
	Status     string `json:"status"`
	Path       string `json:"path,omitempty"`
	Error      string `json:"error,omitempty"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search",
		Description: "Semantic search across all indexed PDF pages",
	}, s.handleSearch)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ask",
		Description: "Answer a question using passages from stored documents, with page citations",
	}, s.handleAsk)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_documents",
		Description: "List documents stored in the vault",
	}, s.handleListDocuments)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "export",
		Description: "Copy stored PDFs to a directory under their original filenames",
	}, s.handleExport)
}

// handleSearch handles the search tool invocation.
func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = defaultToolLimit
	}

	opts := domain.SearchOptions{Limit: limit}
	results, err := s.ports.Search.Search(ctx, input.Query, opts)
	if err != nil {
		return nil, SearchOutput{}, err
	}

	output := SearchOutput{
		Results: make([]SearchResultOutput, len(results)),
		Count:   len(results),
	}

	for i := range results {
		output.Results[i] = SearchResultOutput{
			DocumentID: results[i].Document.ID,
			Filename:   results[i].Document.Title(),
			ChunkID:    results[i].Chunk.ID,
			Page:       results[i].Chunk.Page,
			Score:      results[i].Score,
			Snippet:    results[i].Snippet,
			URI:        documentURI(results[i].Document.ID),
		}
	}

	return nil, output, nil
}

// handleAsk handles the ask tool invocation.
func (s *Server) handleAsk(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AskInput,
) (*mcp.CallToolResult, AskOutput, error) {
	if s.ports.Answer == nil {
		return nil, AskOutput{}, fmt.Errorf("ask: %w", ErrServiceUnavailable)
	}

	var (
		answer *domain.Answer
		err    error
	)
	if input.RetrieveOnly {
		answer, err = s.ports.Answer.Retrieve(ctx, input.Question, input.TopK)
	} else {
		answer, err = s.ports.Answer.Ask(ctx, input.Question, input.TopK)
	}
	if err != nil {
		return nil, AskOutput{}, err
	}

	output := AskOutput{
		Answer:    answer.Text,
		Generated: answer.Generated,
		Sources:   make([]CitationOutput, len(answer.Sources)),
	}
	for i, c := range answer.Sources {
		output.Sources[i] = CitationOutput{DocumentID: c.DocumentID, Filename: c.Filename, Page: c.Page}
	}

	return nil, output, nil
}

// handleListDocuments handles the list_documents tool invocation.
func (s *Server) handleListDocuments(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ListDocumentsInput,
) (*mcp.CallToolResult, ListDocumentsOutput, error) {
	if s.ports.Document == nil {
		return nil, ListDocumentsOutput{}, fmt.Errorf("list_documents: %w", ErrServiceUnavailable)
	}

	var (
		docs []domain.Document
		err  error
	)
	if status := strings.TrimSpace(input.Status); status != "" {
		docs, err = s.ports.Document.ListByStatus(ctx, domain.Status(status))
	} else {
		docs, err = s.ports.Document.List(ctx)
	}
	if err != nil {
		return nil, ListDocumentsOutput{}, err
	}

	output := ListDocumentsOutput{
		Documents: make([]DocumentOutput, len(docs)),
		Count:     len(docs),
	}
	for i := range docs {
		output.Documents[i] = documentOutput(docs[i])
	}

	return nil, output, nil
}

// handleExport handles the export tool invocation.
func (s *Server) handleExport(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ExportInput,
) (*mcp.CallToolResult, ExportOutput, error) {
	if s.ports.Export == nil {
		return nil, ExportOutput{}, fmt.Errorf("export: %w", ErrServiceUnavailable)
	}
	if strings.TrimSpace(input.Destination) == "" {
		return nil, ExportOutput{}, fmt.Errorf("export: destination is required: %w", domain.ErrInvalidInput)
	}

	results := s.ports.Export.Export(ctx, input.DocumentIDs, input.Destination)

	output := ExportOutput{Results: make([]ExportResultOutput, len(results))}
	for i, r := range results {
		output.Results[i] = ExportResultOutput{
			DocumentID: r.DocumentID,
			Status:     string(r.Status),
			Path:       r.Path,
			Error:      r.Error,
		}
		if r.OK() {
			output.Exported++
		}
	}

	return nil, output, nil
}

func documentOutput(doc domain.Document) DocumentOutput {
	out := DocumentOutput{
		ID:       doc.ID,
		Filename: doc.Filename,
		Status:   doc.Status.String(),
		Pages:    doc.PageCount,
		Hash:     doc.Blob.Hash,
		URI:      documentURI(doc.ID),
	}
	if !doc.IngestedAt.IsZero() {
		out.IngestedAt = doc.IngestedAt.UTC().Format(time.RFC3339)
	}
	return out
}
