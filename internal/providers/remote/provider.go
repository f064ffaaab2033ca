// internal/providers/remote/provider.go
// Package remote provides a Generator backed by an HTTP completion endpoint.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"github.com/mwiater/noesis/internal/appconfig"
	"github.com/mwiater/noesis/internal/logging"
	"github.com/mwiater/noesis/internal/providers"
)

// Provider implements providers.Generator against a remote completion API.
type Provider struct {
	backend appconfig.Backend
	client  *http.Client
	timeout time.Duration
	logger  *logging.Logger
}

var (
	_ providers.Generator = (*Provider)(nil)
	_ providers.Pinger    = (*Provider)(nil)
)

// New constructs a Provider for the configured backend.
func New(backend appconfig.Backend, logger *logging.Logger) (*Provider, error) {
	if strings.TrimSpace(backend.URL) == "" {
		return nil, fmt.Errorf("remote generator requires a url")
	}
	if strings.TrimSpace(backend.Model) == "" {
		return nil, fmt.Errorf("remote generator requires a model")
	}
	if logger == nil {
		logger = logging.Nop()
	}
	timeout := backend.RequestTimeout()
	return &Provider{
		backend: backend,
		client: &http.Client{
			Timeout:   timeout,
			Transport: &http.Transport{ForceAttemptHTTP2: false},
		},
		timeout: timeout,
		logger:  logger,
	}, nil
}

// Name identifies the backend.
func (p *Provider) Name() string { return "remote" }

// Close releases any resources held by the provider.
func (p *Provider) Close() error { return nil }

type generationRequest struct {
	Prompt      string   `json:"prompt"`
	MaxTokens   int      `json:"max_tokens"`
	Temperature float64  `json:"temperature"`
	Model       string   `json:"model"`
	Stop        []string `json:"stop,omitempty"`
}

// Generate posts the prompt to the backend and decodes whichever response
// dialect the server speaks.
func (p *Provider) Generate(ctx context.Context, prompt string, opts providers.GenerateOptions) (string, error) {
	model := opts.Model
	if strings.TrimSpace(model) == "" {
		model = p.backend.Model
	}
	stop := opts.Stop
	if len(stop) == 0 {
		stop = p.backend.Stop
	}
	payload := generationRequest{
		Prompt:      prompt,
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
		Model:       model,
		Stop:        stop,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode generation request: %w", err)
	}
	p.logger.Request("NOESIS->LLM", p.backend.URL, model, body)

	reqCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, p.backend.URL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build generation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if key := p.backend.APIKey(); key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return "", &providers.RequestError{Endpoint: p.backend.URL, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &providers.RequestError{Endpoint: p.backend.URL, Err: err}
	}
	p.logger.Request("LLM->NOESIS", p.backend.URL, model, respBody)

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return "", &providers.RequestError{
			Endpoint:   p.backend.URL,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%s", strings.TrimSpace(string(respBody))),
		}
	}

	return decodeGeneration(respBody), nil
}

// Ping probes the backend endpoint. Any HTTP response counts as reachable;
// only transport failures are errors.
func (p *Provider) Ping(ctx context.Context) error {
	reqCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, p.backend.URL, nil)
	if err != nil {
		return fmt.Errorf("build ping request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return &providers.RequestError{Endpoint: p.backend.URL, Err: err}
	}
	resp.Body.Close()
	return nil
}

// generationShape is one known response dialect: a schema that identifies it
// and an extractor that pulls the completion text out.
type generationShape struct {
	name    string
	schema  map[string]any
	extract func(body []byte) (string, bool)
}

var generationShapes = []generationShape{
	{
		name: "openai_completion",
		schema: map[string]any{
			"type":     "object",
			"required": []any{"choices"},
			"properties": map[string]any{
				"choices": map[string]any{
					"type":     "array",
					"minItems": 1,
					"items": map[string]any{
						"type":     "object",
						"required": []any{"text"},
						"properties": map[string]any{
							"text": map[string]any{"type": "string"},
						},
					},
				},
			},
		},
		extract: func(body []byte) (string, bool) {
			var parsed struct {
				Choices []struct {
					Text string `json:"text"`
				} `json:"choices"`
			}
			if err := json.Unmarshal(body, &parsed); err != nil || len(parsed.Choices) == 0 {
				return "", false
			}
			return parsed.Choices[0].Text, true
		},
	},
	{
		name: "generation",
		schema: map[string]any{
			"type":     "object",
			"required": []any{"generation"},
			"properties": map[string]any{
				"generation": map[string]any{"type": "string"},
			},
		},
		extract: func(body []byte) (string, bool) {
			var parsed struct {
				Generation string `json:"generation"`
			}
			if err := json.Unmarshal(body, &parsed); err != nil {
				return "", false
			}
			return parsed.Generation, true
		},
	},
	{
		name: "response",
		schema: map[string]any{
			"type":     "object",
			"required": []any{"response"},
			"properties": map[string]any{
				"response": map[string]any{"type": "string"},
			},
		},
		extract: func(body []byte) (string, bool) {
			var parsed struct {
				Response string `json:"response"`
			}
			if err := json.Unmarshal(body, &parsed); err != nil {
				return "", false
			}
			return parsed.Response, true
		},
	},
}

// decodeGeneration matches the body against the known dialects in declaration
// order. An unrecognized body is returned as trimmed text, never an error.
func decodeGeneration(body []byte) string {
	document := gojsonschema.NewBytesLoader(body)
	for _, shape := range generationShapes {
		result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(shape.schema), document)
		if err != nil || !result.Valid() {
			continue
		}
		if text, ok := shape.extract(body); ok {
			return strings.TrimSpace(text)
		}
	}
	return strings.TrimSpace(string(body))
}
