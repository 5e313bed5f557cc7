package driving

import (
	"context"

	"github.com/arcastone/vault/internal/core/domain"
)

// MaintenanceService runs operator-initiated upkeep.
type MaintenanceService interface {
	// Checkpoint snapshots the manifest and prunes the log.
	Checkpoint(ctx context.Context) error

	// Verify re-hashes every referenced blob.
	Verify(ctx context.Context) (*domain.VerifyReport, error)

	// RebuildIndex re-embeds every extracted or indexed document.
	RebuildIndex(ctx context.Context) (*domain.RebuildReport, error)

	// GC deletes blobs no document references.
	GC(ctx context.Context) (*domain.GCReport, error)

	// Bundle copies the whole vault root to destination.
	Bundle(ctx context.Context, destination string) error

	// Stats summarises vault contents.
	Stats(ctx context.Context) (*domain.Stats, error)
}

// SettingsService manages application settings.
type SettingsService interface {
	// Get returns current settings with defaults applied.
	Get() (*domain.AppSettings, error)

	// Set validates and persists one dotted key.
	Set(key, value string) error

	// Keys lists every settable key.
	Keys() []string

	// Value renders one key's effective value, secrets masked.
	Value(key string) (string, error)

	// IsSecret reports whether a key holds a credential.
	IsSecret(key string) bool

	// Validate checks settings for consistency.
	Validate(settings *domain.AppSettings) error

	// CheckProviders pings the configured embedding and LLM providers.
	CheckProviders() (embedErr, llmErr error)
}
