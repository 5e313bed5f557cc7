// Package mcp provides an MCP (Model Context Protocol) server adapter for the vault.
// It lets AI assistants search, question and export locally stored PDFs.
package mcp

import "errors"

// ErrMissingSearchService is returned when the search service is not provided.
var ErrMissingSearchService = errors.New("mcp: search service is required")

// ErrServiceUnavailable is returned by tools whose backing port was not provided.
var ErrServiceUnavailable = errors.New("mcp: service not configured")
