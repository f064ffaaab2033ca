package rag

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// Embedder maps text to fixed-dimension vectors. Implementations must be
// deterministic for a fixed model version, and EmbedBatch must return one
// vector per input in input order.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float64, error)
	Dimension() int
}

// LocalEmbedder embeds text without a model server: tokens are hashed into a
// fixed number of buckets with sign splitting and the result is L2-normalized.
// It is deterministic and cheap, which keeps ingestion and retrieval usable
// when no embedding endpoint is configured.
type LocalEmbedder struct {
	dimension int
}

var _ Embedder = (*LocalEmbedder)(nil)

// NewLocalEmbedder creates a hashed bag-of-words embedder with the given
// vector width.
func NewLocalEmbedder(dimension int) (*LocalEmbedder, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("embedding dimension must be greater than zero, got %d", dimension)
	}
	return &LocalEmbedder{dimension: dimension}, nil
}

// Dimension returns the vector width.
func (e *LocalEmbedder) Dimension() int { return e.dimension }

// Embed hashes the text's tokens into the vector and normalizes it. Text with
// no tokens yields the zero vector.
func (e *LocalEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	vec := make([]float64, e.dimension)
	for _, token := range tokenize(text) {
		h := fnv.New64a()
		h.Write([]byte(token))
		sum := h.Sum64()
		bucket := int(sum % uint64(e.dimension))
		if sum&(1<<63) != 0 {
			vec[bucket]--
		} else {
			vec[bucket]++
		}
	}
	normalize(vec)
	return vec, nil
}

// EmbedBatch embeds each text in order.
func (e *LocalEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	vectors := make([][]float64, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		vectors[i] = vec
	}
	return vectors, nil
}

// tokenize lowercases the text and splits it into letter/digit runs.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func normalize(vec []float64) {
	norm := 0.0
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		return
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] /= norm
	}
}
