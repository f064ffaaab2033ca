package rag

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/fsnotify/fsnotify"

	"github.com/mwiater/noesis/internal/appconfig"
)

func writeCorpusFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func testPipeline(t *testing.T, docDir, indexPath string, dimension int) *Pipeline {
	t.Helper()
	cfg := &appconfig.Config{
		DocumentDir:       docDir,
		ChunkSize:         200,
		ChunkOverlap:      20,
		AllowedExtensions: []string{".txt", ".md"},
		Similarity:        "cosine",
	}
	embedder, err := NewLocalEmbedder(dimension)
	if err != nil {
		t.Fatalf("NewLocalEmbedder: %v", err)
	}
	store, err := NewJSONLStore(indexPath)
	if err != nil {
		t.Fatalf("NewJSONLStore: %v", err)
	}
	pipeline, err := NewPipeline(cfg, embedder, store, nil, nil)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	return pipeline
}

func TestPipelineIngest(t *testing.T) {
	docDir := t.TempDir()
	writeCorpusFile(t, docDir, "shipping.txt", "Orders ship within two business days.")
	writeCorpusFile(t, docDir, "returns.md", "Returns are accepted within thirty days of delivery.")

	indexPath := filepath.Join(t.TempDir(), "index.jsonl")
	pipeline := testPipeline(t, docDir, indexPath, 64)

	index, summary, err := pipeline.Ingest(context.Background())
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if summary.Files != 2 {
		t.Fatalf("expected 2 files ingested, got %d", summary.Files)
	}
	if summary.Chunks != index.Len() {
		t.Fatalf("summary chunks %d does not match index %d", summary.Chunks, index.Len())
	}
	if summary.Reused {
		t.Fatalf("fresh ingest should not be marked reused")
	}
	if !pipeline.Store().Exists() {
		t.Fatalf("expected persisted index at %s", indexPath)
	}

	embedder, _ := NewLocalEmbedder(64)
	retriever, err := NewRetriever(embedder, index)
	if err != nil {
		t.Fatalf("NewRetriever: %v", err)
	}
	results, err := retriever.Retrieve(context.Background(), "when do orders ship", 1)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(results) != 1 || results[0].Entry.Source != "shipping.txt" {
		t.Fatalf("expected shipping.txt to be retrieved, got %+v", results)
	}
}

func TestPipelineIngestDeterministicIDs(t *testing.T) {
	docDir := t.TempDir()
	writeCorpusFile(t, docDir, "doc.txt", "Some content that fits one chunk.")

	first := testPipeline(t, docDir, filepath.Join(t.TempDir(), "a.jsonl"), 32)
	second := testPipeline(t, docDir, filepath.Join(t.TempDir(), "b.jsonl"), 32)

	indexA, _, err := first.Ingest(context.Background())
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	indexB, _, err := second.Ingest(context.Background())
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	a, b := indexA.Entries(), indexB.Entries()
	if len(a) != len(b) {
		t.Fatalf("entry counts differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].ChunkID != b[i].ChunkID {
			t.Fatalf("chunk ids differ at %d: %s vs %s", i, a[i].ChunkID, b[i].ChunkID)
		}
	}
}

func TestPipelineSkipsDisallowedAndExcluded(t *testing.T) {
	docDir := t.TempDir()
	writeCorpusFile(t, docDir, "keep.txt", "This file should be indexed.")
	writeCorpusFile(t, docDir, "skip.log", "Log files are not corpus documents.")
	writeCorpusFile(t, docDir, "drafts/wip.txt", "Draft content that is excluded.")

	cfg := &appconfig.Config{
		DocumentDir:       docDir,
		ChunkSize:         200,
		ChunkOverlap:      20,
		AllowedExtensions: []string{".txt"},
		ExcludeGlobs:      []string{"**/drafts/**"},
	}
	embedder, err := NewLocalEmbedder(32)
	if err != nil {
		t.Fatalf("NewLocalEmbedder: %v", err)
	}
	store, err := NewJSONLStore(filepath.Join(t.TempDir(), "index.jsonl"))
	if err != nil {
		t.Fatalf("NewJSONLStore: %v", err)
	}
	pipeline, err := NewPipeline(cfg, embedder, store, nil, nil)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}

	index, summary, err := pipeline.Ingest(context.Background())
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if summary.Files != 1 {
		t.Fatalf("expected 1 file ingested, got %d", summary.Files)
	}
	for _, entry := range index.Entries() {
		if entry.Source != "keep.txt" {
			t.Fatalf("unexpected source indexed: %s", entry.Source)
		}
	}
}

func TestPipelineEmptyCorpus(t *testing.T) {
	pipeline := testPipeline(t, t.TempDir(), filepath.Join(t.TempDir(), "index.jsonl"), 32)
	if _, _, err := pipeline.Ingest(context.Background()); !errors.Is(err, ErrEmptyCorpus) {
		t.Fatalf("expected ErrEmptyCorpus, got %v", err)
	}
}

func TestEnsureIndexReusesExisting(t *testing.T) {
	docDir := t.TempDir()
	writeCorpusFile(t, docDir, "a.txt", "Reusable corpus content.")
	indexPath := filepath.Join(t.TempDir(), "index.jsonl")

	pipeline := testPipeline(t, docDir, indexPath, 32)
	_, first, err := pipeline.Ingest(context.Background())
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	index, second, err := pipeline.EnsureIndex(context.Background())
	if err != nil {
		t.Fatalf("EnsureIndex: %v", err)
	}
	if !second.Reused {
		t.Fatalf("expected existing index to be reused")
	}
	if second.Chunks != first.Chunks {
		t.Fatalf("reused chunk count %d differs from ingested %d", second.Chunks, first.Chunks)
	}
	if index.Len() != first.Chunks {
		t.Fatalf("loaded index has %d entries, expected %d", index.Len(), first.Chunks)
	}
}

func TestEnsureIndexReingestsCorrupt(t *testing.T) {
	docDir := t.TempDir()
	writeCorpusFile(t, docDir, "a.txt", "Content behind a corrupt index.")
	indexPath := filepath.Join(t.TempDir(), "index.jsonl")
	if err := os.WriteFile(indexPath, []byte("this is not jsonl\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	pipeline := testPipeline(t, docDir, indexPath, 32)
	index, summary, err := pipeline.EnsureIndex(context.Background())
	if err != nil {
		t.Fatalf("EnsureIndex: %v", err)
	}
	if summary.Reused {
		t.Fatalf("corrupt index must not be reused")
	}
	if index.Len() == 0 {
		t.Fatalf("expected re-ingested index to have entries")
	}
}

func TestEnsureIndexReingestsOnDimensionChange(t *testing.T) {
	docDir := t.TempDir()
	writeCorpusFile(t, docDir, "a.txt", "Content embedded at one width.")
	indexPath := filepath.Join(t.TempDir(), "index.jsonl")

	narrow := testPipeline(t, docDir, indexPath, 16)
	if _, _, err := narrow.Ingest(context.Background()); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	wide := testPipeline(t, docDir, indexPath, 32)
	index, summary, err := wide.EnsureIndex(context.Background())
	if err != nil {
		t.Fatalf("EnsureIndex: %v", err)
	}
	if summary.Reused {
		t.Fatalf("stale-dimension index must not be reused")
	}
	entries := index.Entries()
	if len(entries) == 0 || len(entries[0].Embedding) != 32 {
		t.Fatalf("expected re-ingested 32-wide embeddings")
	}
}

func TestNewPipelineValidates(t *testing.T) {
	embedder, err := NewLocalEmbedder(16)
	if err != nil {
		t.Fatalf("NewLocalEmbedder: %v", err)
	}
	store, err := NewJSONLStore(filepath.Join(t.TempDir(), "index.jsonl"))
	if err != nil {
		t.Fatalf("NewJSONLStore: %v", err)
	}

	cases := []struct {
		name string
		cfg  *appconfig.Config
	}{
		{"nil config", nil},
		{"missing documentDir", &appconfig.Config{ChunkSize: 100}},
		{"zero chunkSize", &appconfig.Config{DocumentDir: "docs"}},
		{"negative overlap", &appconfig.Config{DocumentDir: "docs", ChunkSize: 100, ChunkOverlap: -1}},
		{"overlap too large", &appconfig.Config{DocumentDir: "docs", ChunkSize: 100, ChunkOverlap: 100}},
		{"bad similarity", &appconfig.Config{DocumentDir: "docs", ChunkSize: 100, Similarity: "euclidean"}},
	}
	for _, tc := range cases {
		if _, err := NewPipeline(tc.cfg, embedder, store, nil, nil); err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}

	valid := &appconfig.Config{DocumentDir: "docs", ChunkSize: 100, ChunkOverlap: 10}
	if _, err := NewPipeline(valid, nil, store, nil, nil); err == nil {
		t.Fatalf("expected error for nil embedder")
	}
	if _, err := NewPipeline(valid, embedder, nil, nil, nil); err == nil {
		t.Fatalf("expected error for nil store")
	}
}

func TestRelevantEventFiltering(t *testing.T) {
	pipeline := testPipeline(t, t.TempDir(), filepath.Join(t.TempDir(), "index.jsonl"), 16)

	if !pipeline.relevantEvent(fsnotify.Event{Name: "docs/new.txt", Op: fsnotify.Create}) {
		t.Fatalf("expected .txt create to be relevant")
	}
	if pipeline.relevantEvent(fsnotify.Event{Name: "docs/cache.log", Op: fsnotify.Write}) {
		t.Fatalf("expected .log write to be ignored")
	}
	if pipeline.relevantEvent(fsnotify.Event{Name: "docs/new.txt", Op: fsnotify.Chmod}) {
		t.Fatalf("expected chmod to be ignored")
	}
	if !pipeline.relevantEvent(fsnotify.Event{Name: "docs/subdir", Op: fsnotify.Create}) {
		t.Fatalf("expected directory create to be relevant")
	}
	if !pipeline.relevantEvent(fsnotify.Event{Name: "docs/old.md", Op: fsnotify.Remove}) {
		t.Fatalf("expected .md remove to be relevant")
	}
}
