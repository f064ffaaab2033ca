package rag

import "strings"

// ContextText joins retrieved chunk texts into the block a prompt template
// wraps with its context prefix and suffix. Blank chunks are skipped.
func ContextText(chunks []RetrievedChunk) string {
	parts := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		text := strings.TrimSpace(chunk.Entry.Text)
		if text == "" {
			continue
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, "\n\n")
}

// Sources lists the distinct source names behind the chunks, first seen first.
func Sources(chunks []RetrievedChunk) []string {
	seen := make(map[string]struct{}, len(chunks))
	var sources []string
	for _, chunk := range chunks {
		source := chunk.Entry.Source
		if source == "" {
			continue
		}
		if _, ok := seen[source]; ok {
			continue
		}
		seen[source] = struct{}{}
		sources = append(sources, source)
	}
	return sources
}

// EstimateTokens approximates token counts by whitespace-delimited words.
func EstimateTokens(text string) int {
	return len(strings.Fields(text))
}
