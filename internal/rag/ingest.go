package rag

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mwiater/noesis/internal/appconfig"
	"github.com/mwiater/noesis/internal/logging"
)

// IngestSummary reports what a pipeline run produced or reused.
type IngestSummary struct {
	Files     int
	Chunks    int
	Reused    bool
	Elapsed   time.Duration
	IndexPath string
}

// Pipeline turns a document directory into a persisted, queryable index.
type Pipeline struct {
	cfg        *appconfig.Config
	embedder   Embedder
	store      Store
	similarity Similarity
	logger     *logging.Logger
	out        io.Writer
}

// NewPipeline validates the ingestion settings and wires the pipeline parts
// together. A nil logger or writer disables that output channel.
func NewPipeline(cfg *appconfig.Config, embedder Embedder, store Store, logger *logging.Logger, out io.Writer) (*Pipeline, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	if strings.TrimSpace(cfg.DocumentDir) == "" {
		return nil, fmt.Errorf("documentDir is required")
	}
	if cfg.ChunkSize <= 0 {
		return nil, fmt.Errorf("chunkSize must be greater than zero")
	}
	if cfg.ChunkOverlap < 0 {
		return nil, fmt.Errorf("chunkOverlap must be zero or greater")
	}
	if cfg.ChunkOverlap >= cfg.ChunkSize {
		return nil, fmt.Errorf("chunkOverlap must be smaller than chunkSize")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	similarity, err := ParseSimilarity(cfg.Similarity)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.Nop()
	}
	if out == nil {
		out = io.Discard
	}
	return &Pipeline{
		cfg:        cfg,
		embedder:   embedder,
		store:      store,
		similarity: similarity,
		logger:     logger,
		out:        out,
	}, nil
}

// Store exposes the pipeline's persistence backend.
func (p *Pipeline) Store() Store { return p.store }

// Embedder exposes the pipeline's embedding backend so retrieval can share it.
func (p *Pipeline) Embedder() Embedder { return p.embedder }

// Ingest discovers, chunks, embeds, and persists the corpus, replacing any
// existing index. The returned index is ready to query.
func (p *Pipeline) Ingest(ctx context.Context) (*MemoryIndex, IngestSummary, error) {
	start := time.Now()
	status := func(format string, args ...any) {
		elapsed := time.Since(start).Truncate(time.Millisecond)
		msg := fmt.Sprintf("[%s] %s", elapsed, fmt.Sprintf(format, args...))
		fmt.Fprintln(p.out, msg)
		p.logger.Event("%s", msg)
	}
	status("[ingest] Document directory: %s", p.cfg.DocumentDir)
	status("[ingest] Index output: %s", p.store.Path())
	status("[ingest] Chunk size: %d chars, overlap: %d chars", p.cfg.ChunkSize, p.cfg.ChunkOverlap)

	files, err := discoverCorpusFiles(p.cfg.DocumentDir, p.cfg.AllowedExtensions, p.cfg.ExcludeGlobs)
	if err != nil {
		return nil, IngestSummary{}, err
	}
	if len(files) == 0 {
		return nil, IngestSummary{}, fmt.Errorf("%w: no readable files under %s", ErrEmptyCorpus, p.cfg.DocumentDir)
	}
	status("[ingest] Discovered %d corpus files", len(files))

	var entries []IndexEntry
	fileCount := 0
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, IngestSummary{}, err
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, IngestSummary{}, fmt.Errorf("read corpus file %s: %w", path, err)
		}
		text := strings.TrimSpace(string(raw))
		if text == "" {
			status("[ingest] Skipping empty file: %s", path)
			continue
		}
		source := filepath.Base(path)
		chunks := ChunkDocument(Document{Source: source, Text: text}, p.cfg.ChunkSize, p.cfg.ChunkOverlap)
		if len(chunks) == 0 {
			continue
		}
		status("[ingest] Chunked %s into %d chunks", source, len(chunks))

		texts := make([]string, len(chunks))
		for i, chunk := range chunks {
			texts[i] = chunk.Text
		}
		fileStart := time.Now()
		vectors, err := p.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, IngestSummary{}, fmt.Errorf("embed %s: %w", source, err)
		}
		status("[ingest] Embedded %s in %s", source, time.Since(fileStart).Truncate(time.Millisecond))

		for i, chunk := range chunks {
			entries = append(entries, IndexEntry{
				ChunkID:     chunk.ID,
				Source:      chunk.Source,
				Text:        chunk.Text,
				StartOffset: chunk.StartOffset,
				EndOffset:   chunk.EndOffset,
				Embedding:   vectors[i],
			})
		}
		fileCount++
	}
	if len(entries) == 0 {
		return nil, IngestSummary{}, ErrEmptyCorpus
	}

	if err := p.store.Persist(entries); err != nil {
		return nil, IngestSummary{}, fmt.Errorf("persist index: %w", err)
	}
	status("[ingest] Index complete in %s (%d chunks from %d files)",
		time.Since(start).Truncate(time.Millisecond), len(entries), fileCount)

	summary := IngestSummary{
		Files:     fileCount,
		Chunks:    len(entries),
		Elapsed:   time.Since(start),
		IndexPath: p.store.Path(),
	}
	return NewMemoryIndexFromEntries(p.similarity, entries), summary, nil
}

// EnsureIndex loads a persisted index when one is usable and re-ingests
// otherwise. A corrupt or dimension-stale index is discarded, not an error.
func (p *Pipeline) EnsureIndex(ctx context.Context) (*MemoryIndex, IngestSummary, error) {
	if p.store.Exists() {
		entries, err := p.store.Load()
		switch {
		case err == nil:
			if stale, got := p.dimensionMismatch(entries); stale {
				p.logger.Warn("index at %s has dimension %d, embedder expects %d, re-ingesting",
					p.store.Path(), got, p.embedder.Dimension())
			} else {
				summary := IngestSummary{
					Files:     countSources(entries),
					Chunks:    len(entries),
					Reused:    true,
					IndexPath: p.store.Path(),
				}
				return NewMemoryIndexFromEntries(p.similarity, entries), summary, nil
			}
		case errors.Is(err, ErrIndexCorrupt):
			p.logger.Warn("discarding unreadable index at %s: %v", p.store.Path(), err)
		default:
			return nil, IngestSummary{}, err
		}
	}
	return p.Ingest(ctx)
}

func (p *Pipeline) dimensionMismatch(entries []IndexEntry) (bool, int) {
	want := p.embedder.Dimension()
	for _, entry := range entries {
		if got := len(entry.Embedding); got != want {
			return true, got
		}
	}
	return false, want
}

func countSources(entries []IndexEntry) int {
	seen := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		seen[entry.Source] = struct{}{}
	}
	return len(seen)
}

func discoverCorpusFiles(root string, allowed []string, exclude []string) ([]string, error) {
	var files []string
	allowedMap := make(map[string]struct{}, len(allowed))
	for _, ext := range allowed {
		allowedMap[strings.ToLower(ext)] = struct{}{}
	}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if shouldExclude(path, exclude) && path != root {
				return filepath.SkipDir
			}
			return nil
		}

		if shouldExclude(path, exclude) {
			return nil
		}

		if len(allowedMap) > 0 {
			ext := strings.ToLower(filepath.Ext(path))
			if _, ok := allowedMap[ext]; !ok {
				return nil
			}
		}

		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk document directory: %w", err)
	}

	return files, nil
}

func shouldExclude(path string, patterns []string) bool {
	normalized := filepath.ToSlash(path)
	for _, pattern := range patterns {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		pattern = filepath.ToSlash(pattern)
		if strings.Contains(pattern, "**") {
			trimmed := strings.ReplaceAll(pattern, "**", "")
			if trimmed != "" && strings.Contains(normalized, trimmed) {
				return true
			}
		}
		if ok, _ := filepath.Match(pattern, normalized); ok {
			return true
		}
	}
	return false
}
