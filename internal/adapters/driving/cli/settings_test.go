package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcastone/vault/internal/core/domain"
	"github.com/arcastone/vault/internal/core/services"
)

func TestSettingsCmd_Use(t *testing.T) {
	assert.Equal(t, "settings", settingsCmd.Use)
}

func TestSettingsCmd_OpensConfigOnly(t *testing.T) {
	for _, c := range append(settingsCmd.Commands(), settingsCmd) {
		assert.Equal(t, openSettings, c.Annotations[annotationOpen], c.Name())
	}
}

func TestSettingsShowCmd(t *testing.T) {
	setupTestServices(t)

	out, err := execute(t, "settings")

	require.NoError(t, err)
	assert.Contains(t, out, "Current Settings")
	assert.Contains(t, out, "[embedding]")
	assert.Contains(t, out, "[ingest]")
	assert.Contains(t, out, "provider")
	assert.Contains(t, out, "Embedding:")
	assert.Contains(t, out, "LLM:")
}

func TestSettingsGetCmd(t *testing.T) {
	setupTestServices(t)

	out, err := execute(t, "settings", "get", services.KeyIngestWorkers)

	require.NoError(t, err)
	assert.Equal(t, "4\n", out)
}

func TestSettingsGetCmd_UnknownKey(t *testing.T) {
	setupTestServices(t)

	_, err := execute(t, "settings", "get", "nope.key")

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSettingsSetCmd(t *testing.T) {
	env := setupTestServices(t)

	out, err := execute(t, "settings", "set", services.KeyIngestWorkers, "8")

	require.NoError(t, err)
	assert.Contains(t, out, "ingest.workers = 8")

	got, err := env.settings.Get()
	require.NoError(t, err)
	assert.Equal(t, 8, got.Ingest.Workers)
}

func TestSettingsSetCmd_RejectsInvalid(t *testing.T) {
	env := setupTestServices(t)

	_, err := execute(t, "settings", "set", services.KeyIngestWorkers, "0")

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	v, err := env.settings.Value(services.KeyIngestWorkers)
	require.NoError(t, err)
	assert.Equal(t, "4", v, "previous value kept")
}

func TestSettingsSetCmd_PromptsForSecret(t *testing.T) {
	env := setupTestServices(t)

	out, err := executeWithInput(t, "sk-1234567890abcd\n", "settings", "set", services.KeyLLMAPIKey)

	require.NoError(t, err)
	assert.Contains(t, out, "Enter llm.api_key:")
	assert.Contains(t, out, "llm.api_key = sk-1…abcd")
	assert.NotContains(t, out, "sk-1234567890abcd")

	got, err := env.settings.Get()
	require.NoError(t, err)
	assert.Equal(t, "sk-1234567890abcd", got.LLM.APIKey)
}

func TestSettingsSetCmd_ValueRequired(t *testing.T) {
	setupTestServices(t)

	_, err := execute(t, "settings", "set", services.KeyLLMModel)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "a value is required")
}

func TestSettingsCheckCmd(t *testing.T) {
	setupTestServices(t)

	out, err := execute(t, "settings", "check")

	require.NoError(t, err)
	assert.Contains(t, out, "embedding")
	assert.Contains(t, out, "OK")
}

func TestSettingsCmd_NoService(t *testing.T) {
	setupTestServices(t)
	settingsService = nil

	_, err := execute(t, "settings", "show")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "settings service not configured")
}
