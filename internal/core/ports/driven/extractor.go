package driven

import (
	"context"

	"github.com/arcastone/vault/internal/core/domain"
)

// TextExtractor turns PDF bytes into ordered page texts.
// Failures wrap domain.ErrExtractionFailed.
type TextExtractor interface {
	// Name identifies the backend for logs.
	Name() string

	// Extract returns pages numbered from 1, in order.
	Extract(ctx context.Context, data []byte) ([]domain.Page, error)
}

// CommandRunner executes external programs.
// Abstracted so extractors that shell out can be tested.
type CommandRunner interface {
	// Run executes name with args and returns its standard output.
	Run(ctx context.Context, name string, args ...string) ([]byte, error)

	// LookPath reports whether name is an executable in PATH.
	LookPath(name string) (string, error)
}
