package rag

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
)

// Similarity selects the scoring function an index uses. It is fixed per
// index instance.
type Similarity string

const (
	// SimilarityCosine scores by cosine similarity.
	SimilarityCosine Similarity = "cosine"
	// SimilarityDot scores by inner product.
	SimilarityDot Similarity = "dot"
)

// ParseSimilarity maps a config value onto a Similarity, defaulting to cosine.
func ParseSimilarity(value string) (Similarity, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", string(SimilarityCosine):
		return SimilarityCosine, nil
	case string(SimilarityDot), "inner-product":
		return SimilarityDot, nil
	default:
		return "", fmt.Errorf("unknown similarity %q", value)
	}
}

// MemoryIndex is the in-memory vector index. Entries keep insertion order,
// which breaks score ties deterministically (earlier entry wins). Upserting an
// existing chunk id replaces the entry in place without changing its position.
type MemoryIndex struct {
	mu         sync.RWMutex
	similarity Similarity
	entries    []IndexEntry
	byID       map[string]int
}

// NewMemoryIndex creates an empty index with the given similarity metric.
func NewMemoryIndex(similarity Similarity) *MemoryIndex {
	if similarity == "" {
		similarity = SimilarityCosine
	}
	return &MemoryIndex{
		similarity: similarity,
		byID:       make(map[string]int),
	}
}

// NewMemoryIndexFromEntries rebuilds an index from persisted entries,
// preserving their order.
func NewMemoryIndexFromEntries(similarity Similarity, entries []IndexEntry) *MemoryIndex {
	ix := NewMemoryIndex(similarity)
	for _, entry := range entries {
		ix.Upsert(entry)
	}
	return ix
}

// Upsert stores or replaces the entry keyed by its chunk id.
func (ix *MemoryIndex) Upsert(entry IndexEntry) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if pos, ok := ix.byID[entry.ChunkID]; ok {
		ix.entries[pos] = entry
		return
	}
	ix.byID[entry.ChunkID] = len(ix.entries)
	ix.entries = append(ix.entries, entry)
}

// Query returns the k entries most similar to the query vector, ordered by
// score descending. Ties keep insertion order. k greater than the index size
// is clamped; k <= 0 is ErrInvalidQuery. An empty index returns no results.
func (ix *MemoryIndex) Query(vector []float64, k int) ([]RetrievedChunk, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be greater than zero, got %d", ErrInvalidQuery, k)
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if len(ix.entries) == 0 {
		return nil, nil
	}

	scored := ix.scoreEntries(vector)
	if k > len(scored) {
		k = len(scored)
	}
	return scored[:k], nil
}

// scoreEntries scores every entry against the query vector, skipping entries
// whose dimension does not match. Caller holds the read lock.
func (ix *MemoryIndex) scoreEntries(vector []float64) []RetrievedChunk {
	chunks := make([]RetrievedChunk, 0, len(ix.entries))
	queryNorm := vectorNorm(vector)
	for _, entry := range ix.entries {
		if len(entry.Embedding) != len(vector) {
			continue
		}
		var score float64
		switch ix.similarity {
		case SimilarityDot:
			score = dotProduct(vector, entry.Embedding)
		default:
			score = cosineSimilarity(vector, entry.Embedding, queryNorm)
		}
		chunks = append(chunks, RetrievedChunk{
			Entry: entry,
			Score: score,
		})
	}

	sort.SliceStable(chunks, func(i, j int) bool {
		return chunks[i].Score > chunks[j].Score
	})

	return chunks
}

// Len returns the number of stored entries.
func (ix *MemoryIndex) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.entries)
}

// Entries returns a copy of the stored entries in insertion order, for
// persistence.
func (ix *MemoryIndex) Entries() []IndexEntry {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	out := make([]IndexEntry, len(ix.entries))
	copy(out, ix.entries)
	return out
}

func cosineSimilarity(a, b []float64, normA float64) float64 {
	if normA == 0 {
		return 0
	}
	normB := vectorNorm(b)
	if normB == 0 {
		return 0
	}
	return dotProduct(a, b) / (normA * normB)
}

func dotProduct(a, b []float64) float64 {
	dot := 0.0
	for i := range a {
		dot += a[i] * b[i]
	}
	return dot
}

func vectorNorm(v []float64) float64 {
	sum := 0.0
	for _, val := range v {
		sum += val * val
	}
	return math.Sqrt(sum)
}
