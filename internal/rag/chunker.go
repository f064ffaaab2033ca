package rag

import (
	"fmt"
	"strings"
	"unicode"
)

// ChunkCorpus splits every document into overlapping chunks bounded by
// chunkSize characters, preserving document order. An empty document set is
// ErrEmptyCorpus, as is a set whose documents contain no text at all.
func ChunkCorpus(docs []Document, chunkSize, chunkOverlap int) ([]DocumentChunk, error) {
	if len(docs) == 0 {
		return nil, ErrEmptyCorpus
	}
	var chunks []DocumentChunk
	for _, doc := range docs {
		chunks = append(chunks, ChunkDocument(doc, chunkSize, chunkOverlap)...)
	}
	if len(chunks) == 0 {
		return nil, ErrEmptyCorpus
	}
	return chunks, nil
}

// ChunkDocument splits one document into chunks of at most chunkSize
// characters. Cuts prefer paragraph breaks, then sentence ends, then word
// boundaries, falling back to a hard cut when the budget holds no natural
// boundary. Consecutive chunks overlap by chunkOverlap characters best-effort,
// re-aligned forward to the next word start.
func ChunkDocument(doc Document, chunkSize, chunkOverlap int) []DocumentChunk {
	if chunkSize <= 0 {
		return nil
	}
	if chunkOverlap < 0 {
		chunkOverlap = 0
	}
	if chunkOverlap >= chunkSize {
		chunkOverlap = chunkSize - 1
	}
	if strings.TrimSpace(doc.Text) == "" {
		return nil
	}

	runes := []rune(doc.Text)
	var chunks []DocumentChunk
	start := 0
	for start < len(runes) {
		end := start + chunkSize
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = breakPoint(runes, start, end)
		}

		chunks = append(chunks, DocumentChunk{
			ID:          fmt.Sprintf("%s:%d", doc.Source, start),
			Source:      doc.Source,
			Text:        string(runes[start:end]),
			StartOffset: start,
			EndOffset:   end,
		})
		if end == len(runes) {
			break
		}

		next := end - chunkOverlap
		if next < 0 {
			next = 0
		}
		next = alignToWordStart(runes, next, end)
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks
}

// breakPoint picks the cut position for a chunk starting at start with a hard
// budget of limit. It returns the position after the best boundary found in
// (start, limit], preferring paragraph over sentence over word boundaries.
func breakPoint(runes []rune, start, limit int) int {
	// Paragraph: cut after a blank line.
	for i := limit; i > start+1; i-- {
		if runes[i-1] == '\n' && runes[i-2] == '\n' {
			return i
		}
	}
	// Sentence: cut after a newline, or after the whitespace that follows a
	// sentence-ending mark.
	for i := limit; i > start+1; i-- {
		if runes[i-1] == '\n' {
			return i
		}
		if unicode.IsSpace(runes[i-1]) && isSentenceEnd(runes[i-2]) {
			return i
		}
	}
	// Word: cut after the last whitespace in the budget.
	for i := limit; i > start+1; i-- {
		if unicode.IsSpace(runes[i-1]) {
			return i
		}
	}
	// No natural boundary; hard cut.
	return limit
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

// alignToWordStart nudges an overlap start position forward so a chunk does
// not begin mid-word. The position never moves past end, keeping consecutive
// chunks contiguous.
func alignToWordStart(runes []rune, pos, end int) int {
	if pos <= 0 || pos >= end {
		return pos
	}
	if !unicode.IsSpace(runes[pos-1]) && !unicode.IsSpace(runes[pos]) {
		for pos < end && !unicode.IsSpace(runes[pos]) {
			pos++
		}
	}
	for pos < end && unicode.IsSpace(runes[pos]) {
		pos++
	}
	return pos
}
