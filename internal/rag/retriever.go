package rag

import (
	"context"
	"fmt"
	"strings"
)

// Retriever answers similarity queries against an in-memory index.
type Retriever struct {
	embedder Embedder
	index    *MemoryIndex
}

// NewRetriever wires an embedder to a populated index.
func NewRetriever(embedder Embedder, index *MemoryIndex) (*Retriever, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if index == nil {
		return nil, fmt.Errorf("index is required")
	}
	return &Retriever{embedder: embedder, index: index}, nil
}

// Index exposes the underlying index.
func (r *Retriever) Index() *MemoryIndex { return r.index }

// Retrieve embeds the query and returns the top k scored chunks. An empty or
// whitespace query and an empty index both yield no results without error.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]RetrievedChunk, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	if r.index.Len() == 0 {
		return nil, nil
	}
	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return r.index.Query(vector, k)
}
