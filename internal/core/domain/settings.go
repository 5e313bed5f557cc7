package domain

import "time"

const unknownDescription = "Unknown"

// AIProvider identifies an AI service provider for embeddings or LLM.
type AIProvider string

// Available AI providers.
const (
	// AIProviderLocal is the built-in offline hashing embedder.
	// It has no LLM counterpart.
	AIProviderLocal AIProvider = "local"

	// AIProviderOllama is local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is OpenAI cloud API.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderAnthropic is Anthropic cloud API.
	AIProviderAnthropic AIProvider = "anthropic"

	// AIProviderNone disables the service.
	AIProviderNone AIProvider = "none"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderLocal, AIProviderOllama, AIProviderOpenAI, AIProviderAnthropic, AIProviderNone:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI || p == AIProviderAnthropic
}

// IsLocal returns true if this provider runs on this machine.
func (p AIProvider) IsLocal() bool {
	return p == AIProviderOllama || p == AIProviderLocal
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderLocal:
		return "Built-in (offline hashing)"
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	case AIProviderAnthropic:
		return "Anthropic (cloud)"
	case AIProviderNone:
		return "Disabled"
	default:
		return unknownDescription
	}
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	Provider   AIProvider
	Model      string
	BaseURL    string
	APIKey     string
	Dimensions int

	// BatchSize is the number of chunks sent per embedding request.
	BatchSize int

	// RateLimit caps embedding requests per second. Zero is unlimited.
	RateLimit float64
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.IsValid() || e.Provider == AIProviderNone || e.Provider == AIProviderAnthropic {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// LLMSettings holds LLM provider configuration.
type LLMSettings struct {
	Provider AIProvider
	Model    string
	BaseURL  string
	APIKey   string
}

// IsConfigured returns true if the LLM provider is set up.
func (l LLMSettings) IsConfigured() bool {
	if !l.Provider.IsValid() || l.Provider == AIProviderNone || l.Provider == AIProviderLocal {
		return false
	}
	if l.Provider.RequiresAPIKey() && l.APIKey == "" {
		return false
	}
	return true
}

// IngestSettings tunes the ingestion pipeline.
type IngestSettings struct {
	Workers     int
	MaxRetries  int
	CallTimeout time.Duration
}

// ChunkSettings is the page chunking policy.
type ChunkSettings struct {
	MaxChars int
	Overlap  int
}

// ExtractionBackend selects the text extraction collaborator.
type ExtractionBackend string

// Available extraction backends.
const (
	// ExtractionAuto prefers pdftotext when installed, else the native reader.
	ExtractionAuto      ExtractionBackend = "auto"
	ExtractionNative    ExtractionBackend = "native"
	ExtractionPdftotext ExtractionBackend = "pdftotext"
)

// IsValid returns true if the backend is recognised.
func (b ExtractionBackend) IsValid() bool {
	switch b {
	case ExtractionAuto, ExtractionNative, ExtractionPdftotext:
		return true
	default:
		return false
	}
}

// ExtractionSettings configures text extraction.
type ExtractionSettings struct {
	Backend ExtractionBackend

	// OCR runs ocrmypdf on documents whose text layer is mostly empty.
	OCR bool
}

// Compression names a checkpoint compression codec.
type Compression string

// Available checkpoint codecs.
const (
	CompressionZstd Compression = "zstd"
	CompressionLZ4  Compression = "lz4"
	CompressionNone Compression = "none"
)

// IsValid returns true if the codec is recognised.
func (c Compression) IsValid() bool {
	return c == CompressionZstd || c == CompressionLZ4 || c == CompressionNone
}

// ManifestSettings configures checkpointing.
type ManifestSettings struct {
	// CheckpointEvery triggers a checkpoint after this many commits. Zero disables.
	CheckpointEvery int
	Compression     Compression
}

// AppSettings aggregates all application settings.
type AppSettings struct {
	Embedding  EmbeddingSettings
	LLM        LLMSettings
	Ingest     IngestSettings
	Chunk      ChunkSettings
	Extraction ExtractionSettings
	Manifest   ManifestSettings
}

// DefaultAppSettings returns settings for a fully offline vault.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Embedding: EmbeddingSettings{
			Provider:   AIProviderLocal,
			Model:      "hash-384",
			Dimensions: 384,
			BatchSize:  16,
		},
		LLM: LLMSettings{
			Provider: AIProviderNone,
		},
		Ingest: IngestSettings{
			Workers:     4,
			MaxRetries:  3,
			CallTimeout: 60 * time.Second,
		},
		Chunk: ChunkSettings{
			MaxChars: 1200,
			Overlap:  120,
		},
		Extraction: ExtractionSettings{
			Backend: ExtractionAuto,
		},
		Manifest: ManifestSettings{
			CheckpointEvery: 256,
			Compression:     CompressionZstd,
		},
	}
}

// DefaultModel returns the default model for a provider.
func DefaultModel(p AIProvider, embedding bool) string {
	switch p {
	case AIProviderOllama:
		if embedding {
			return "nomic-embed-text"
		}
		return "llama3.2"
	case AIProviderOpenAI:
		if embedding {
			return "text-embedding-3-small"
		}
		return "gpt-4o-mini"
	case AIProviderAnthropic:
		return "claude-3-5-haiku-latest"
	case AIProviderLocal:
		return "hash-384"
	default:
		return ""
	}
}
