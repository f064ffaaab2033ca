package rag

import "testing"

func TestContextTextJoinsChunks(t *testing.T) {
	chunks := []RetrievedChunk{
		{Entry: IndexEntry{Source: "a.txt", Text: "first passage"}},
		{Entry: IndexEntry{Source: "b.txt", Text: "  second passage  "}},
		{Entry: IndexEntry{Source: "c.txt", Text: "   "}},
	}
	got := ContextText(chunks)
	want := "first passage\n\nsecond passage"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestContextTextEmpty(t *testing.T) {
	if got := ContextText(nil); got != "" {
		t.Fatalf("expected empty context, got %q", got)
	}
}

func TestSourcesFirstSeenOrder(t *testing.T) {
	chunks := []RetrievedChunk{
		{Entry: IndexEntry{Source: "faq.md"}},
		{Entry: IndexEntry{Source: "policy.txt"}},
		{Entry: IndexEntry{Source: "faq.md"}},
		{Entry: IndexEntry{Source: ""}},
	}
	got := Sources(chunks)
	if len(got) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(got))
	}
	if got[0] != "faq.md" || got[1] != "policy.txt" {
		t.Fatalf("unexpected source order: %v", got)
	}
}

func TestEstimateTokens(t *testing.T) {
	if got := EstimateTokens("three word phrase"); got != 3 {
		t.Fatalf("expected 3 tokens, got %d", got)
	}
	if got := EstimateTokens("   "); got != 0 {
		t.Fatalf("expected 0 tokens for whitespace, got %d", got)
	}
}
