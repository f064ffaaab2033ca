package rag

import (
	"context"
	"testing"
)

func buildTestIndex(t *testing.T, embedder Embedder, texts map[string]string) *MemoryIndex {
	t.Helper()
	index := NewMemoryIndex(SimilarityCosine)
	for source, text := range texts {
		vec, err := embedder.Embed(context.Background(), text)
		if err != nil {
			t.Fatalf("Embed: %v", err)
		}
		index.Upsert(IndexEntry{
			ChunkID:   source + ":0",
			Source:    source,
			Text:      text,
			Embedding: vec,
		})
	}
	return index
}

func TestRetrieverFindsRelevantChunk(t *testing.T) {
	embedder, err := NewLocalEmbedder(128)
	if err != nil {
		t.Fatalf("NewLocalEmbedder: %v", err)
	}
	index := buildTestIndex(t, embedder, map[string]string{
		"shipping.txt": "orders ship within two business days via standard carriers",
		"returns.txt":  "items can be returned for a full refund within thirty days",
		"hours.txt":    "support hours are nine to five on weekdays",
	})
	retriever, err := NewRetriever(embedder, index)
	if err != nil {
		t.Fatalf("NewRetriever: %v", err)
	}

	results, err := retriever.Retrieve(context.Background(), "how do I get a refund for returned items", 1)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Entry.Source != "returns.txt" {
		t.Fatalf("expected returns.txt, got %s", results[0].Entry.Source)
	}
}

func TestRetrieverEmptyQuery(t *testing.T) {
	embedder, err := NewLocalEmbedder(32)
	if err != nil {
		t.Fatalf("NewLocalEmbedder: %v", err)
	}
	index := buildTestIndex(t, embedder, map[string]string{"a.txt": "content"})
	retriever, err := NewRetriever(embedder, index)
	if err != nil {
		t.Fatalf("NewRetriever: %v", err)
	}

	results, err := retriever.Retrieve(context.Background(), "   ", 3)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if results != nil {
		t.Fatalf("expected no results for blank query, got %d", len(results))
	}
}

func TestRetrieverEmptyIndex(t *testing.T) {
	embedder, err := NewLocalEmbedder(32)
	if err != nil {
		t.Fatalf("NewLocalEmbedder: %v", err)
	}
	retriever, err := NewRetriever(embedder, NewMemoryIndex(SimilarityCosine))
	if err != nil {
		t.Fatalf("NewRetriever: %v", err)
	}

	results, err := retriever.Retrieve(context.Background(), "anything", 3)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if results != nil {
		t.Fatalf("expected no results from empty index, got %d", len(results))
	}
}

func TestNewRetrieverValidates(t *testing.T) {
	embedder, err := NewLocalEmbedder(16)
	if err != nil {
		t.Fatalf("NewLocalEmbedder: %v", err)
	}
	if _, err := NewRetriever(nil, NewMemoryIndex(SimilarityCosine)); err == nil {
		t.Fatalf("expected error for nil embedder")
	}
	if _, err := NewRetriever(embedder, nil); err == nil {
		t.Fatalf("expected error for nil index")
	}
}
