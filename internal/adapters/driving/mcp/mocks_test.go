package mcp

import (
	"context"

	"github.com/arcastone/vault/internal/core/domain"
)

// mockSearchService is a mock implementation of driving.SearchService.
type mockSearchService struct {
	results []domain.SearchResult
	err     error
	opts    domain.SearchOptions
}

func (m *mockSearchService) Search(
	_ context.Context,
	_ string,
	opts domain.SearchOptions,
) ([]domain.SearchResult, error) {
	m.opts = opts
	return m.results, m.err
}

// mockAnswerService is a mock implementation of driving.AnswerService.
type mockAnswerService struct {
	answer    *domain.Answer
	err       error
	retrieved bool
	asked     bool
}

func (m *mockAnswerService) Ask(_ context.Context, _ string, _ int) (*domain.Answer, error) {
	m.asked = true
	return m.answer, m.err
}

func (m *mockAnswerService) Retrieve(_ context.Context, _ string, _ int) (*domain.Answer, error) {
	m.retrieved = true
	return m.answer, m.err
}

// mockDocumentService is a mock implementation of driving.DocumentService.
type mockDocumentService struct {
	documents []domain.Document
	entry     *domain.ManifestEntry
	content   string
	sitemap   string
	status    domain.Status
	err       error
}

func (m *mockDocumentService) List(_ context.Context) ([]domain.Document, error) {
	return m.documents, m.err
}

func (m *mockDocumentService) ListByStatus(_ context.Context, status domain.Status) ([]domain.Document, error) {
	m.status = status
	return m.documents, m.err
}

func (m *mockDocumentService) Get(_ context.Context, _ string) (*domain.ManifestEntry, error) {
	return m.entry, m.err
}

func (m *mockDocumentService) GetContent(_ context.Context, _ string) (string, error) {
	return m.content, m.err
}

func (m *mockDocumentService) Remove(_ context.Context, _ string) error {
	return m.err
}

func (m *mockDocumentService) Sitemap(_ context.Context) (string, error) {
	return m.sitemap, m.err
}

// mockExportService is a mock implementation of driving.ExportService.
type mockExportService struct {
	results     []domain.ExportResult
	ids         []string
	destination string
}

func (m *mockExportService) Export(_ context.Context, ids []string, destination string) []domain.ExportResult {
	m.ids = ids
	m.destination = destination
	return m.results
}
