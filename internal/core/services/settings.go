package services

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/arcastone/vault/internal/core/domain"
	"github.com/arcastone/vault/internal/core/ports/driven"
	"github.com/arcastone/vault/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	KeyEmbedProvider      = "embedding.provider"
	KeyEmbedModel         = "embedding.model"
	KeyEmbedBaseURL       = "embedding.base_url"
	KeyEmbedAPIKey        = "embedding.api_key"
	KeyEmbedDimensions    = "embedding.dimensions"
	KeyEmbedBatchSize     = "embedding.batch_size"
	KeyEmbedRateLimit     = "embedding.rate_limit"
	KeyLLMProvider        = "llm.provider"
	KeyLLMModel           = "llm.model"
	KeyLLMBaseURL         = "llm.base_url"
	KeyLLMAPIKey          = "llm.api_key"
	KeyIngestWorkers      = "ingest.workers"
	KeyIngestMaxRetries   = "ingest.max_retries"
	KeyIngestCallTimeout  = "ingest.call_timeout_seconds"
	KeyChunkMaxChars      = "chunk.max_chars"
	KeyChunkOverlap       = "chunk.overlap"
	KeyExtractionBackend  = "extraction.backend"
	KeyExtractionOCR      = "extraction.ocr"
	KeyCheckpointEvery    = "manifest.checkpoint_every"
	KeyCheckpointCompress = "manifest.checkpoint_compression"
)

// Environment fallbacks for API keys.
//
//nolint:gosec // G101: environment variable names.
const (
	EnvOpenAIKey    = "OPENAI_API_KEY"
	EnvAnthropicKey = "ANTHROPIC_API_KEY"
)

type valueKind int

const (
	kindString valueKind = iota
	kindInt
	kindFloat
	kindBool
)

// settingKeys lists every settable key with its value type, in display order.
var settingKeys = []struct {
	key    string
	kind   valueKind
	secret bool
}{
	{KeyEmbedProvider, kindString, false},
	{KeyEmbedModel, kindString, false},
	{KeyEmbedBaseURL, kindString, false},
	{KeyEmbedAPIKey, kindString, true},
	{KeyEmbedDimensions, kindInt, false},
	{KeyEmbedBatchSize, kindInt, false},
	{KeyEmbedRateLimit, kindFloat, false},
	{KeyLLMProvider, kindString, false},
	{KeyLLMModel, kindString, false},
	{KeyLLMBaseURL, kindString, false},
	{KeyLLMAPIKey, kindString, true},
	{KeyIngestWorkers, kindInt, false},
	{KeyIngestMaxRetries, kindInt, false},
	{KeyIngestCallTimeout, kindInt, false},
	{KeyChunkMaxChars, kindInt, false},
	{KeyChunkOverlap, kindInt, false},
	{KeyExtractionBackend, kindString, false},
	{KeyExtractionOCR, kindBool, false},
	{KeyCheckpointEvery, kindInt, false},
	{KeyCheckpointCompress, kindString, false},
}

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
	aiValidator driven.AIConfigValidator
	getenv      func(string) string
}

// NewSettingsService creates a new settings service.
// aiValidator is optional and only used by CheckProviders.
func NewSettingsService(configStore driven.ConfigStore, aiValidator driven.AIConfigValidator) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		aiValidator: aiValidator,
		getenv:      os.Getenv,
	}
}

// Get retrieves current application settings with defaults applied.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	d := domain.DefaultAppSettings()

	embedProvider := s.getProvider(KeyEmbedProvider, d.Embedding.Provider)
	embedDims := 0
	if embedProvider == domain.AIProviderLocal {
		embedDims = d.Embedding.Dimensions
	}
	llmProvider := s.getProvider(KeyLLMProvider, d.LLM.Provider)

	settings := &domain.AppSettings{
		Embedding: domain.EmbeddingSettings{
			Provider:   embedProvider,
			Model:      s.getString(KeyEmbedModel, domain.DefaultModel(embedProvider, true)),
			BaseURL:    s.configStore.GetString(KeyEmbedBaseURL), // Empty means the provider default.
			APIKey:     s.apiKey(KeyEmbedAPIKey, embedProvider),
			Dimensions: s.getInt(KeyEmbedDimensions, embedDims),
			BatchSize:  s.getInt(KeyEmbedBatchSize, d.Embedding.BatchSize),
			RateLimit:  s.getFloat(KeyEmbedRateLimit, d.Embedding.RateLimit),
		},
		LLM: domain.LLMSettings{
			Provider: llmProvider,
			Model:    s.getString(KeyLLMModel, domain.DefaultModel(llmProvider, false)),
			BaseURL:  s.configStore.GetString(KeyLLMBaseURL),
			APIKey:   s.apiKey(KeyLLMAPIKey, llmProvider),
		},
		Ingest: domain.IngestSettings{
			Workers:     s.getInt(KeyIngestWorkers, d.Ingest.Workers),
			MaxRetries:  s.getInt(KeyIngestMaxRetries, d.Ingest.MaxRetries),
			CallTimeout: time.Duration(s.getInt(KeyIngestCallTimeout, int(d.Ingest.CallTimeout/time.Second))) * time.Second,
		},
		Chunk: domain.ChunkSettings{
			MaxChars: s.getInt(KeyChunkMaxChars, d.Chunk.MaxChars),
			Overlap:  s.getInt(KeyChunkOverlap, d.Chunk.Overlap),
		},
		Extraction: domain.ExtractionSettings{
			Backend: domain.ExtractionBackend(s.getString(KeyExtractionBackend, string(d.Extraction.Backend))),
			OCR:     s.getBool(KeyExtractionOCR, d.Extraction.OCR),
		},
		Manifest: domain.ManifestSettings{
			CheckpointEvery: s.getInt(KeyCheckpointEvery, d.Manifest.CheckpointEvery),
			Compression:     domain.Compression(s.getString(KeyCheckpointCompress, string(d.Manifest.Compression))),
		},
	}

	return settings, nil
}

// Set parses, validates and persists one key. The whole configuration
// must stay valid; otherwise the previous value is restored.
func (s *SettingsService) Set(key, value string) error {
	kind, ok := keyKind(key)
	if !ok {
		return fmt.Errorf("unknown setting %q: %w", key, domain.ErrInvalidInput)
	}

	parsed, err := parseValue(kind, strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("setting %s: %w: %w", key, domain.ErrInvalidInput, err)
	}

	prev, hadPrev := s.configStore.Get(key)
	if err := s.configStore.Set(key, parsed); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}

	settings, err := s.Get()
	if err == nil {
		err = s.Validate(settings)
	}
	if err != nil {
		if hadPrev {
			_ = s.configStore.Set(key, prev)
		} else {
			_ = s.configStore.Delete(key)
		}
		return err
	}
	return nil
}

// Keys lists every settable key.
func (s *SettingsService) Keys() []string {
	keys := make([]string, len(settingKeys))
	for i, k := range settingKeys {
		keys[i] = k.key
	}
	return keys
}

// Value renders the effective value of key. Secrets are masked.
func (s *SettingsService) Value(key string) (string, error) {
	settings, err := s.Get()
	if err != nil {
		return "", err
	}

	var v string
	switch key {
	case KeyEmbedProvider:
		v = settings.Embedding.Provider.String()
	case KeyEmbedModel:
		v = settings.Embedding.Model
	case KeyEmbedBaseURL:
		v = settings.Embedding.BaseURL
	case KeyEmbedAPIKey:
		v = maskSecret(settings.Embedding.APIKey)
	case KeyEmbedDimensions:
		v = strconv.Itoa(settings.Embedding.Dimensions)
	case KeyEmbedBatchSize:
		v = strconv.Itoa(settings.Embedding.BatchSize)
	case KeyEmbedRateLimit:
		v = strconv.FormatFloat(settings.Embedding.RateLimit, 'g', -1, 64)
	case KeyLLMProvider:
		v = settings.LLM.Provider.String()
	case KeyLLMModel:
		v = settings.LLM.Model
	case KeyLLMBaseURL:
		v = settings.LLM.BaseURL
	case KeyLLMAPIKey:
		v = maskSecret(settings.LLM.APIKey)
	case KeyIngestWorkers:
		v = strconv.Itoa(settings.Ingest.Workers)
	case KeyIngestMaxRetries:
		v = strconv.Itoa(settings.Ingest.MaxRetries)
	case KeyIngestCallTimeout:
		v = strconv.Itoa(int(settings.Ingest.CallTimeout / time.Second))
	case KeyChunkMaxChars:
		v = strconv.Itoa(settings.Chunk.MaxChars)
	case KeyChunkOverlap:
		v = strconv.Itoa(settings.Chunk.Overlap)
	case KeyExtractionBackend:
		v = string(settings.Extraction.Backend)
	case KeyExtractionOCR:
		v = strconv.FormatBool(settings.Extraction.OCR)
	case KeyCheckpointEvery:
		v = strconv.Itoa(settings.Manifest.CheckpointEvery)
	case KeyCheckpointCompress:
		v = string(settings.Manifest.Compression)
	default:
		return "", fmt.Errorf("unknown setting %q: %w", key, domain.ErrInvalidInput)
	}
	return v, nil
}

// IsSecret reports whether key holds a credential.
func (s *SettingsService) IsSecret(key string) bool {
	for _, k := range settingKeys {
		if k.key == key {
			return k.secret
		}
	}
	return false
}

// Validate checks settings for consistency.
func (s *SettingsService) Validate(settings *domain.AppSettings) error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	e := settings.Embedding
	check(e.Provider.IsValid(), "unknown embedding provider %q", e.Provider)
	check(e.Provider != domain.AIProviderAnthropic, "anthropic does not provide embeddings")
	check(!e.Provider.RequiresAPIKey() || e.APIKey != "", "embedding provider %s requires an API key", e.Provider)
	check(e.Dimensions >= 0, "embedding dimensions must not be negative")
	check(e.BatchSize > 0, "embedding batch size must be positive")
	check(e.RateLimit >= 0, "embedding rate limit must not be negative")

	l := settings.LLM
	check(l.Provider.IsValid(), "unknown LLM provider %q", l.Provider)
	check(!l.Provider.RequiresAPIKey() || l.APIKey != "", "LLM provider %s requires an API key", l.Provider)

	check(settings.Ingest.Workers > 0, "ingest workers must be positive")
	check(settings.Ingest.MaxRetries >= 0, "ingest retries must not be negative")
	check(settings.Ingest.CallTimeout > 0, "ingest call timeout must be positive")

	check(settings.Chunk.MaxChars > 0, "chunk size must be positive")
	check(settings.Chunk.Overlap >= 0 && settings.Chunk.Overlap < settings.Chunk.MaxChars,
		"chunk overlap must be between 0 and the chunk size")

	check(settings.Extraction.Backend.IsValid(), "unknown extraction backend %q", settings.Extraction.Backend)
	check(settings.Manifest.CheckpointEvery >= 0, "checkpoint interval must not be negative")
	check(settings.Manifest.Compression.IsValid(), "unknown checkpoint compression %q", settings.Manifest.Compression)

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", domain.ErrInvalidInput, errors.Join(errs...))
}

// CheckProviders contacts the configured AI providers.
func (s *SettingsService) CheckProviders() (embedErr, llmErr error) {
	if s.aiValidator == nil {
		return nil, nil
	}
	settings, err := s.Get()
	if err != nil {
		return err, err
	}
	if settings.Embedding.IsConfigured() {
		embedErr = s.aiValidator.ValidateEmbedding(&settings.Embedding)
	}
	if settings.LLM.IsConfigured() {
		llmErr = s.aiValidator.ValidateLLM(&settings.LLM)
	}
	return embedErr, llmErr
}

// Helper methods for reading config with defaults.

func (s *SettingsService) getString(key, defaultVal string) string {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetInt(key)
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetFloat(key)
}

func (s *SettingsService) getBool(key string, defaultVal bool) bool {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetBool(key)
}

func (s *SettingsService) getProvider(key string, defaultVal domain.AIProvider) domain.AIProvider {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return domain.AIProvider(val)
}

// apiKey returns the stored key, falling back to the provider's
// environment variable.
func (s *SettingsService) apiKey(key string, provider domain.AIProvider) string {
	if v := s.configStore.GetString(key); v != "" {
		return v
	}
	switch provider {
	case domain.AIProviderOpenAI:
		return s.getenv(EnvOpenAIKey)
	case domain.AIProviderAnthropic:
		return s.getenv(EnvAnthropicKey)
	default:
		return ""
	}
}

func keyKind(key string) (valueKind, bool) {
	for _, k := range settingKeys {
		if k.key == key {
			return k.kind, true
		}
	}
	return 0, false
}

func parseValue(kind valueKind, value string) (any, error) {
	switch kind {
	case kindInt:
		n, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("%q is not an integer", value)
		}
		return n, nil
	case kindFloat:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not a number", value)
		}
		return f, nil
	case kindBool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("%q is not a boolean", value)
		}
		return b, nil
	default:
		return value, nil
	}
}

func maskSecret(v string) string {
	if v == "" {
		return ""
	}
	if len(v) <= 8 {
		return "********"
	}
	return v[:4] + "…" + v[len(v)-4:]
}
