// internal/providers/provider.go

// Package providers defines the generation backends the conversation engine
// drives. It provides a common abstraction for completing an assembled prompt,
// regardless of whether the backend is the in-process extractive model or a
// remote HTTP endpoint.
package providers

import (
	"context"
	"fmt"
	"strings"
)

// GenerateOptions carries the per-request sampling settings.
type GenerateOptions struct {
	MaxTokens   int
	Temperature float64
	Model       string
	Stop        []string
}

// Generator is the interface that all generation backends must implement.
type Generator interface {
	// Generate completes the prompt and returns whitespace-trimmed text.
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)
	// Name identifies the backend in logs and stats.
	Name() string
	// Close releases any resources held by the backend.
	Close() error
}

// Pinger is implemented by backends that can probe their endpoint before use.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RequestError reports a failed generation request against a backend
// endpoint. StatusCode is zero when the request never produced a response.
type RequestError struct {
	Endpoint   string
	StatusCode int
	Err        error
}

func (e *RequestError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("generation request to %s returned status %d: %v", e.Endpoint, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("generation request to %s failed: %v", e.Endpoint, e.Err)
}

func (e *RequestError) Unwrap() error { return e.Err }

// LastUserBlock extracts the text of the final user message from a ChatML
// prompt. It returns the whole prompt when the framing is absent, so plain
// prompts still work against every backend.
func LastUserBlock(prompt string) string {
	const userMark = "<|im_start|>user\n"
	idx := strings.LastIndex(prompt, userMark)
	if idx == -1 {
		return strings.TrimSpace(prompt)
	}
	rest := prompt[idx+len(userMark):]
	if end := strings.Index(rest, "<|im_end|>"); end != -1 {
		rest = rest[:end]
	}
	return strings.TrimSpace(rest)
}
