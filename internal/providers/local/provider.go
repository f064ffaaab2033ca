// internal/providers/local/provider.go
// Package local provides an in-process extractive generator. It answers by
// selecting the context sentences best supported by the question terms, so
// the engine stays usable with no model server at all.
package local

import (
	"context"
	"sort"
	"strings"
	"unicode"

	"github.com/mwiater/noesis/internal/providers"
)

// maxAnswerSentences bounds how many context sentences one answer may quote.
const maxAnswerSentences = 3

// fallbackAnswer is returned when no context sentence shares a term with the
// question.
const fallbackAnswer = "I don't have enough information to answer that."

// Provider implements providers.Generator without any network access.
type Provider struct{}

var _ providers.Generator = (*Provider)(nil)

// New constructs the extractive provider.
func New() *Provider {
	return &Provider{}
}

// Name identifies the backend.
func (p *Provider) Name() string { return "local" }

// Close releases no resources.
func (p *Provider) Close() error { return nil }

// Generate extracts the sentences of the prompt's system and context block
// that best match the final question. Output order follows the source text,
// not the score, so quoted material reads naturally.
func (p *Provider) Generate(ctx context.Context, prompt string, opts providers.GenerateOptions) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	question := providers.LastUserBlock(prompt)
	questionTerms := termSet(question)
	sentences := splitSentences(contextBody(prompt))
	if len(sentences) == 0 || len(questionTerms) == 0 {
		return fallbackAnswer, nil
	}

	type scored struct {
		index int
		score int
	}
	var candidates []scored
	for i, sentence := range sentences {
		score := overlap(questionTerms, termSet(sentence))
		if score > 0 {
			candidates = append(candidates, scored{index: i, score: score})
		}
	}
	if len(candidates) == 0 {
		return fallbackAnswer, nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	if len(candidates) > maxAnswerSentences {
		candidates = candidates[:maxAnswerSentences]
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].index < candidates[j].index
	})

	var selected []string
	budget := opts.MaxTokens
	used := 0
	for _, c := range candidates {
		words := len(strings.Fields(sentences[c.index]))
		if budget > 0 && len(selected) > 0 && used+words > budget {
			break
		}
		selected = append(selected, sentences[c.index])
		used += words
	}

	return strings.TrimSpace(strings.Join(selected, " ")), nil
}

// contextBody returns the system block of a ChatML prompt, which carries the
// instruction and any retrieved context. Without the framing the whole prompt
// is the body.
func contextBody(prompt string) string {
	const systemMark = "<|im_start|>system\n"
	idx := strings.Index(prompt, systemMark)
	if idx == -1 {
		return prompt
	}
	rest := prompt[idx+len(systemMark):]
	if end := strings.Index(rest, "<|im_end|>"); end != -1 {
		rest = rest[:end]
	}
	return rest
}

func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder
	runes := []rune(text)
	for i, r := range runes {
		current.WriteRune(r)
		boundary := r == '\n'
		if r == '.' || r == '!' || r == '?' {
			if i+1 >= len(runes) || unicode.IsSpace(runes[i+1]) {
				boundary = true
			}
		}
		if boundary {
			if s := strings.TrimSpace(current.String()); s != "" {
				sentences = append(sentences, s)
			}
			current.Reset()
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

// termSet lowercases and tokenizes text, dropping short function words.
func termSet(text string) map[string]struct{} {
	terms := make(map[string]struct{})
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, token := range tokens {
		if len(token) < 3 {
			continue
		}
		terms[token] = struct{}{}
	}
	return terms
}

func overlap(a, b map[string]struct{}) int {
	count := 0
	for term := range a {
		if _, ok := b[term]; ok {
			count++
		}
	}
	return count
}
