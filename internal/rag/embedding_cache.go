package rag

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CachedEmbedder wraps another Embedder with an LRU cache keyed by text. The
// query path embeds the same strings repeatedly across a conversation, so a
// small cache saves round trips against a remote backend.
type CachedEmbedder struct {
	inner Embedder
	cache *lru.Cache[string, []float64]
}

var _ Embedder = (*CachedEmbedder)(nil)

// NewCachedEmbedder wraps inner with a cache of the given size.
func NewCachedEmbedder(inner Embedder, size int) (*CachedEmbedder, error) {
	if inner == nil {
		return nil, fmt.Errorf("cached embedder requires an inner embedder")
	}
	cache, err := lru.New[string, []float64](size)
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}
	return &CachedEmbedder{inner: inner, cache: cache}, nil
}

// Dimension returns the inner embedder's vector width.
func (e *CachedEmbedder) Dimension() int { return e.inner.Dimension() }

// Embed returns the cached vector when present, otherwise delegates and
// caches the result.
func (e *CachedEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	if vec, ok := e.cache.Get(text); ok {
		return vec, nil
	}
	vec, err := e.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	e.cache.Add(text, vec)
	return vec, nil
}

// EmbedBatch embeds only the texts missing from the cache, preserving input
// order in the result.
func (e *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	vectors := make([][]float64, len(texts))
	var missing []string
	var missingIdx []int
	for i, text := range texts {
		if vec, ok := e.cache.Get(text); ok {
			vectors[i] = vec
			continue
		}
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}
	if len(missing) == 0 {
		return vectors, nil
	}

	embedded, err := e.inner.EmbedBatch(ctx, missing)
	if err != nil {
		return nil, err
	}
	if len(embedded) != len(missing) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(embedded), len(missing))
	}
	for j, vec := range embedded {
		vectors[missingIdx[j]] = vec
		e.cache.Add(missing[j], vec)
	}
	return vectors, nil
}
