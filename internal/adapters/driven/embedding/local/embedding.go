// Package local provides an offline embedding service based on feature hashing.
//
// Every lowercase word and word bigram is hashed into a fixed number of
// buckets with a signed weight, and the result is L2-normalised. The
// vectors carry no semantics beyond shared vocabulary, but they are
// deterministic, need no model files and keep the vault usable offline.
package local

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/arcastone/vault/internal/core/domain"
	"github.com/arcastone/vault/internal/core/ports/driven"
)

// Ensure EmbeddingService implements the interface.
var _ driven.EmbeddingService = (*EmbeddingService)(nil)

// Default configuration values.
const (
	DefaultModel      = "hash-384"
	DefaultDimensions = 384
)

// EmbeddingService hashes text into dense vectors.
type EmbeddingService struct {
	dimensions int
	model      string
}

// NewEmbeddingService creates a hashing embedder. Non-positive dimensions
// fall back to DefaultDimensions.
func NewEmbeddingService(dimensions int) *EmbeddingService {
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}
	model := DefaultModel
	if dimensions != DefaultDimensions {
		model = fmt.Sprintf("hash-%d", dimensions)
	}
	return &EmbeddingService{dimensions: dimensions, model: model}
}

// Embed generates a vector for text.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vec := make([]float64, s.dimensions)
	tokens := Tokenise(text)
	for i, tok := range tokens {
		s.add(vec, tok, 1)
		if i > 0 {
			s.add(vec, tokens[i-1]+" "+tok, 0.5)
		}
	}

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	out := make([]float32, s.dimensions)
	if norm == 0 {
		return out, nil
	}
	norm = math.Sqrt(norm)
	for i, v := range vec {
		out[i] = float32(v / norm)
	}
	return out, nil
}

// EmbedBatch embeds each text in order.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := s.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embed text %d: %w", i, err)
		}
		out[i] = vec
	}
	return out, nil
}

func (s *EmbeddingService) add(vec []float64, token string, weight float64) {
	sum := sha256.Sum256([]byte(token))
	bucket := binary.BigEndian.Uint32(sum[:4]) % uint32(s.dimensions)
	if sum[4]&1 == 1 {
		weight = -weight
	}
	vec[bucket] += weight
}

// Dimensions returns the embedding vector size.
func (s *EmbeddingService) Dimensions() int {
	return s.dimensions
}

// ModelName returns the model identifier.
func (s *EmbeddingService) ModelName() string {
	return s.model
}

// Ping always succeeds.
func (s *EmbeddingService) Ping(_ context.Context) error {
	return nil
}

// Close releases resources.
func (s *EmbeddingService) Close() error {
	return nil
}

// Tokenise lowercases text and splits it on anything that is not a letter or digit.
func Tokenise(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// Settings returns embedding settings describing this service.
func Settings(dimensions int) domain.EmbeddingSettings {
	s := NewEmbeddingService(dimensions)
	return domain.EmbeddingSettings{
		Provider:   domain.AIProviderLocal,
		Model:      s.ModelName(),
		Dimensions: s.Dimensions(),
	}
}
