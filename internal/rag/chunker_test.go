package rag

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestChunkDocumentShortTextSingleChunk(t *testing.T) {
	doc := Document{Source: "short.txt", Text: "Just a short note."}
	chunks := ChunkDocument(doc, 1000, 100)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Text != doc.Text {
		t.Fatalf("expected chunk text %q, got %q", doc.Text, chunks[0].Text)
	}
	if chunks[0].ID != "short.txt:0" {
		t.Fatalf("expected chunk id short.txt:0, got %s", chunks[0].ID)
	}
	if chunks[0].StartOffset != 0 || chunks[0].EndOffset != len([]rune(doc.Text)) {
		t.Fatalf("unexpected offsets %d..%d", chunks[0].StartOffset, chunks[0].EndOffset)
	}
}

func TestChunkDocumentRespectsSizeBudget(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 200; i++ {
		fmt.Fprintf(&b, "Sentence number %d ends here. ", i)
	}
	doc := Document{Source: "doc.txt", Text: b.String()}

	chunks := ChunkDocument(doc, 100, 20)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for _, chunk := range chunks {
		if size := len([]rune(chunk.Text)); size > 100 {
			t.Fatalf("chunk %s has %d chars, budget is 100", chunk.ID, size)
		}
	}
}

func TestChunkDocumentCoversAllText(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 50; i++ {
		fmt.Fprintf(&b, "Fact %d is recorded in this line.\n", i)
	}
	text := strings.TrimSpace(b.String())
	doc := Document{Source: "facts.txt", Text: text}
	runes := []rune(text)

	chunks := ChunkDocument(doc, 120, 30)
	if len(chunks) == 0 {
		t.Fatalf("expected chunks")
	}

	// Every rune position must fall inside at least one chunk, and each
	// chunk's text must match its recorded offsets.
	coveredTo := 0
	for _, chunk := range chunks {
		if got := string(runes[chunk.StartOffset:chunk.EndOffset]); got != chunk.Text {
			t.Fatalf("chunk %s text does not match offsets", chunk.ID)
		}
		if chunk.StartOffset > coveredTo {
			t.Fatalf("gap before chunk %s: covered to %d, chunk starts at %d",
				chunk.ID, coveredTo, chunk.StartOffset)
		}
		if chunk.EndOffset > coveredTo {
			coveredTo = chunk.EndOffset
		}
	}
	if coveredTo != len(runes) {
		t.Fatalf("coverage stops at %d of %d runes", coveredTo, len(runes))
	}
}

func TestChunkDocumentPrefersParagraphBreak(t *testing.T) {
	first := "The first paragraph talks about shipping policies in detail."
	second := "The second paragraph covers refunds and returns instead."
	doc := Document{Source: "policy.txt", Text: first + "\n\n" + second}

	chunks := ChunkDocument(doc, len([]rune(first))+10, 0)
	if len(chunks) < 2 {
		t.Fatalf("expected at least 2 chunks, got %d", len(chunks))
	}
	if got := strings.TrimSpace(chunks[0].Text); got != first {
		t.Fatalf("expected first chunk to stop at the paragraph break, got %q", got)
	}
}

func TestChunkDocumentHardCutWithoutBoundaries(t *testing.T) {
	doc := Document{Source: "blob.txt", Text: strings.Repeat("x", 250)}
	chunks := ChunkDocument(doc, 100, 10)
	if len(chunks) == 0 {
		t.Fatalf("expected chunks")
	}
	for _, chunk := range chunks {
		if size := len([]rune(chunk.Text)); size > 100 {
			t.Fatalf("chunk %s exceeds budget with %d chars", chunk.ID, size)
		}
	}
	last := chunks[len(chunks)-1]
	if last.EndOffset != 250 {
		t.Fatalf("expected final chunk to reach offset 250, got %d", last.EndOffset)
	}
}

func TestChunkDocumentMultibyteRunes(t *testing.T) {
	doc := Document{Source: "notes.txt", Text: strings.Repeat("héllo wörld ", 30)}
	chunks := ChunkDocument(doc, 50, 10)
	for _, chunk := range chunks {
		if size := len([]rune(chunk.Text)); size > 50 {
			t.Fatalf("chunk %s has %d runes, budget is 50", chunk.ID, size)
		}
	}
}

func TestChunkDocumentDeterministicIDs(t *testing.T) {
	doc := Document{Source: "doc.md", Text: strings.Repeat("alpha beta gamma delta. ", 40)}
	first := ChunkDocument(doc, 80, 20)
	second := ChunkDocument(doc, 80, 20)
	if len(first) != len(second) {
		t.Fatalf("chunk counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Fatalf("chunk %d id changed between runs: %s vs %s", i, first[i].ID, second[i].ID)
		}
		want := fmt.Sprintf("doc.md:%d", first[i].StartOffset)
		if first[i].ID != want {
			t.Fatalf("expected id %s, got %s", want, first[i].ID)
		}
	}
}

func TestChunkDocumentInvalidSettings(t *testing.T) {
	doc := Document{Source: "a.txt", Text: "some text"}
	if chunks := ChunkDocument(doc, 0, 0); chunks != nil {
		t.Fatalf("expected nil chunks for zero chunk size")
	}
	// Overlap >= size is clamped rather than rejected.
	if chunks := ChunkDocument(doc, 5, 10); len(chunks) == 0 {
		t.Fatalf("expected chunks with clamped overlap")
	}
}

func TestChunkCorpusEmpty(t *testing.T) {
	if _, err := ChunkCorpus(nil, 100, 10); !errors.Is(err, ErrEmptyCorpus) {
		t.Fatalf("expected ErrEmptyCorpus, got %v", err)
	}
	docs := []Document{{Source: "blank.txt", Text: "   \n\t "}}
	if _, err := ChunkCorpus(docs, 100, 10); !errors.Is(err, ErrEmptyCorpus) {
		t.Fatalf("expected ErrEmptyCorpus for whitespace-only corpus, got %v", err)
	}
}

func TestChunkCorpusPreservesDocumentOrder(t *testing.T) {
	docs := []Document{
		{Source: "a.txt", Text: "alpha content"},
		{Source: "b.txt", Text: "beta content"},
	}
	chunks, err := ChunkCorpus(docs, 100, 10)
	if err != nil {
		t.Fatalf("ChunkCorpus: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[0].Source != "a.txt" || chunks[1].Source != "b.txt" {
		t.Fatalf("document order not preserved: %s, %s", chunks[0].Source, chunks[1].Source)
	}
}
