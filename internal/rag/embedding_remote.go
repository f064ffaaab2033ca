package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mwiater/noesis/internal/appconfig"
	"github.com/mwiater/noesis/internal/logging"
)

// embedBatchConcurrency bounds how many embedding requests run at once during
// batch embedding.
const embedBatchConcurrency = 4

// RemoteEmbedder requests embeddings from an HTTP endpoint. Both the Ollama
// response dialect ({"embedding": [...]}) and the OpenAI dialect
// ({"data": [{"embedding": [...]}]}) are accepted.
type RemoteEmbedder struct {
	backend   appconfig.Backend
	client    *http.Client
	timeout   time.Duration
	dimension int
	logger    *logging.Logger
}

var _ Embedder = (*RemoteEmbedder)(nil)

type embeddingResponse struct {
	Embedding []float64 `json:"embedding"`
	Data      []struct {
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

// NewRemoteEmbedder creates an embedder against the backend's /api/embeddings
// endpoint. The declared dimension is used for index bookkeeping; vectors of a
// different width are skipped at query time rather than failing the query.
func NewRemoteEmbedder(backend appconfig.Backend, dimension int, logger *logging.Logger) (*RemoteEmbedder, error) {
	if strings.TrimSpace(backend.URL) == "" {
		return nil, fmt.Errorf("embedding backend URL is required for remote embedding")
	}
	if strings.TrimSpace(backend.Model) == "" {
		return nil, fmt.Errorf("embedding model is empty")
	}
	if dimension <= 0 {
		return nil, fmt.Errorf("embedding dimension must be greater than zero, got %d", dimension)
	}
	if logger == nil {
		logger = logging.Nop()
	}
	timeout := backend.RequestTimeout()
	return &RemoteEmbedder{
		backend:   backend,
		client:    &http.Client{Timeout: timeout},
		timeout:   timeout,
		dimension: dimension,
		logger:    logger,
	}, nil
}

// Dimension returns the declared vector width.
func (e *RemoteEmbedder) Dimension() int { return e.dimension }

// Embed requests a single embedding vector from the backend.
func (e *RemoteEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	payload := map[string]any{
		"model":  e.backend.Model,
		"prompt": text,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal embedding request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	e.logger.Debug("embedding request: model=%s chars=%d", e.backend.Model, len(text))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.backend.URL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if key := e.backend.APIKey(); key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("embedding request failed: %s: %s", resp.Status, strings.TrimSpace(string(raw)))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read embedding response: %w", err)
	}

	var parsed embeddingResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse embedding response: %w", err)
	}
	vector := parsed.Embedding
	if len(vector) == 0 && len(parsed.Data) > 0 {
		vector = parsed.Data[0].Embedding
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("embedding response returned empty vector")
	}

	return vector, nil
}

// EmbedBatch embeds all texts, fanning requests out with bounded concurrency.
// Results keep input order.
func (e *RemoteEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	vectors := make([][]float64, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(embedBatchConcurrency)
	for i, text := range texts {
		g.Go(func() error {
			vec, err := e.Embed(gctx, text)
			if err != nil {
				return fmt.Errorf("embed batch item %d: %w", i, err)
			}
			vectors[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}
