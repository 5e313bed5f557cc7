package mcp

import (
	"github.com/arcastone/vault/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Search provides semantic search.
	Search driving.SearchService

	// Answer answers questions from retrieved passages.
	Answer driving.AnswerService

	// Document exposes the manifest catalog.
	Document driving.DocumentService

	// Export copies documents out of the vault.
	Export driving.ExportService
}

// Validate ensures all required ports are set.
// Returns an error if any required port is nil.
func (p *Ports) Validate() error {
	if p.Search == nil {
		return ErrMissingSearchService
	}
	// The remaining ports are optional; their tools report unavailability.
	return nil
}
