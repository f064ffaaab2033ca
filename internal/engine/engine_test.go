package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/mwiater/noesis/internal/appconfig"
	"github.com/mwiater/noesis/internal/providers"
	"github.com/mwiater/noesis/internal/providers/local"
	"github.com/mwiater/noesis/internal/rag"
)

// failingGenerator always errors, driving the degradation path.
type failingGenerator struct{}

func (failingGenerator) Generate(context.Context, string, providers.GenerateOptions) (string, error) {
	return "", fmt.Errorf("backend unavailable")
}
func (failingGenerator) Name() string { return "failing" }
func (failingGenerator) Close() error { return nil }

// failingEmbedder errors on every call, driving the retrieval failure path.
type failingEmbedder struct{}

func (failingEmbedder) Embed(context.Context, string) ([]float64, error) {
	return nil, fmt.Errorf("embed endpoint down")
}
func (failingEmbedder) EmbedBatch(context.Context, []string) ([][]float64, error) {
	return nil, fmt.Errorf("embed endpoint down")
}
func (failingEmbedder) Dimension() int { return 64 }

// stateProbeGenerator records the engine state observed during generation.
type stateProbeGenerator struct {
	eng  *Engine
	seen State
}

func (g *stateProbeGenerator) Generate(context.Context, string, providers.GenerateOptions) (string, error) {
	g.seen = g.eng.State()
	return "probed answer", nil
}
func (g *stateProbeGenerator) Name() string { return "probe" }
func (g *stateProbeGenerator) Close() error { return nil }

func buildIndex(t *testing.T, embedder rag.Embedder, texts map[string]string) *rag.MemoryIndex {
	t.Helper()
	var entries []rag.IndexEntry
	for source, text := range texts {
		vec, err := embedder.Embed(context.Background(), text)
		if err != nil {
			t.Fatalf("Embed: %v", err)
		}
		entries = append(entries, rag.IndexEntry{
			ChunkID:   source + ":0",
			Source:    source,
			Text:      text,
			Embedding: vec,
		})
	}
	return rag.NewMemoryIndexFromEntries(rag.SimilarityCosine, entries)
}

func newTestRetriever(t *testing.T, texts map[string]string) *rag.Retriever {
	t.Helper()
	embedder, err := rag.NewLocalEmbedder(64)
	if err != nil {
		t.Fatalf("NewLocalEmbedder: %v", err)
	}
	retriever, err := rag.NewRetriever(embedder, buildIndex(t, embedder, texts))
	if err != nil {
		t.Fatalf("NewRetriever: %v", err)
	}
	return retriever
}

func newTestEngine(t *testing.T, texts map[string]string, generator providers.Generator) *Engine {
	t.Helper()
	cfg := appconfig.Default()
	eng, err := New(&cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := eng.Initialize(newTestRetriever(t, texts), generator); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	return eng
}

func TestQueryAnswersFromContext(t *testing.T) {
	eng := newTestEngine(t, map[string]string{
		"sky.txt":     "The sky is blue because of Rayleigh scattering.",
		"returns.txt": "Returns are shipped to the central warehouse.",
	}, local.New())

	result, err := eng.Query(context.Background(), "What color is the sky?")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if result.Failed {
		t.Fatalf("expected a successful result, got failure: %s", result.Reason)
	}
	if !strings.Contains(strings.ToLower(result.Answer), "blue") {
		t.Fatalf("expected answer about the sky, got %q", result.Answer)
	}
	if len(result.Sources) == 0 || result.Sources[0] != "sky.txt" {
		t.Fatalf("expected sky.txt as the top source, got %v", result.Sources)
	}
	if len(result.Chunks) == 0 {
		t.Fatalf("expected retrieved chunks on the result")
	}
	if result.Duration <= 0 {
		t.Fatalf("expected a positive duration, got %v", result.Duration)
	}
	if eng.State() != StateIdle {
		t.Fatalf("expected engine back at idle, got %s", eng.State())
	}
}

func TestQueryRecordsTurn(t *testing.T) {
	eng := newTestEngine(t, map[string]string{
		"sky.txt": "The sky is blue because of Rayleigh scattering.",
	}, local.New())

	result, err := eng.Query(context.Background(), "What color is the sky?")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}

	history := eng.Memory().History()
	if len(history) != 1 {
		t.Fatalf("expected one recorded turn, got %d", len(history))
	}
	turn := history[0]
	if turn.Question != "What color is the sky?" {
		t.Fatalf("unexpected recorded question: %q", turn.Question)
	}
	if turn.Answer != result.Answer {
		t.Fatalf("recorded answer %q differs from result %q", turn.Answer, result.Answer)
	}
	if len(turn.Sources) != 1 || turn.Sources[0] != "sky.txt" {
		t.Fatalf("expected sources on the turn, got %v", turn.Sources)
	}
}

func TestQueryBlankQuestion(t *testing.T) {
	eng := newTestEngine(t, map[string]string{"sky.txt": "The sky is blue."}, local.New())

	if _, err := eng.Query(context.Background(), "   "); err == nil {
		t.Fatalf("expected error for blank question")
	}
	if eng.Memory().Len() != 0 {
		t.Fatalf("blank question must not record a turn")
	}
}

func TestQueryBeforeInitialize(t *testing.T) {
	cfg := appconfig.Default()
	eng, err := New(&cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := eng.Query(context.Background(), "anything"); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
}

func TestQueryGenerationFailureDegrades(t *testing.T) {
	eng := newTestEngine(t, map[string]string{"sky.txt": "The sky is blue."}, failingGenerator{})

	result, err := eng.Query(context.Background(), "What color is the sky?")
	if err != nil {
		t.Fatalf("degraded query must not return an error, got %v", err)
	}
	if !result.Failed {
		t.Fatalf("expected failed result, got %+v", result)
	}
	if !strings.HasPrefix(result.Answer, "I'm sorry, I encountered an error:") {
		t.Fatalf("expected apologetic answer, got %q", result.Answer)
	}
	if result.Reason != "backend unavailable" {
		t.Fatalf("expected reason from the backend, got %q", result.Reason)
	}
	if len(result.Sources) != 0 {
		t.Fatalf("degraded result must not attribute sources, got %v", result.Sources)
	}
	if eng.Memory().Len() != 0 {
		t.Fatalf("failed turn must not be recorded")
	}
	if eng.State() != StateFailed {
		t.Fatalf("expected failed state, got %s", eng.State())
	}
}

func TestQueryRetrievalFailureDegrades(t *testing.T) {
	embedder, err := rag.NewLocalEmbedder(64)
	if err != nil {
		t.Fatalf("NewLocalEmbedder: %v", err)
	}
	index := buildIndex(t, embedder, map[string]string{"sky.txt": "The sky is blue."})
	retriever, err := rag.NewRetriever(failingEmbedder{}, index)
	if err != nil {
		t.Fatalf("NewRetriever: %v", err)
	}

	cfg := appconfig.Default()
	eng, err := New(&cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := eng.Initialize(retriever, local.New()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	result, err := eng.Query(context.Background(), "What color is the sky?")
	if err != nil {
		t.Fatalf("degraded query must not return an error, got %v", err)
	}
	if !result.Failed || !strings.Contains(result.Reason, "embed endpoint down") {
		t.Fatalf("expected retrieval failure in reason, got %+v", result)
	}
}

func TestQueryEmptyIndex(t *testing.T) {
	eng := newTestEngine(t, nil, local.New())

	result, err := eng.Query(context.Background(), "What color is the sky?")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if result.Failed {
		t.Fatalf("empty index must still answer, got failure: %s", result.Reason)
	}
	if len(result.Sources) != 0 || len(result.Chunks) != 0 {
		t.Fatalf("expected no sources without retrieval, got %v", result.Sources)
	}
	if result.Answer == "" {
		t.Fatalf("expected a generated answer even without context")
	}
}

func TestQueryStateTransitions(t *testing.T) {
	cfg := appconfig.Default()
	eng, err := New(&cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	probe := &stateProbeGenerator{eng: eng}
	if err := eng.Initialize(newTestRetriever(t, map[string]string{"sky.txt": "The sky is blue."}), probe); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	if eng.State() != StateIdle {
		t.Fatalf("expected idle before first query, got %s", eng.State())
	}
	if _, err := eng.Query(context.Background(), "What color is the sky?"); err != nil {
		t.Fatalf("Query: %v", err)
	}
	if probe.seen != StateGenerating {
		t.Fatalf("expected generating state during generation, got %s", probe.seen)
	}
	if eng.State() != StateIdle {
		t.Fatalf("expected idle after query, got %s", eng.State())
	}
}

func TestMemoryBounded(t *testing.T) {
	cfg := appconfig.Default()
	cfg.MemorySize = 1
	eng, err := New(&cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := eng.Initialize(newTestRetriever(t, map[string]string{"sky.txt": "The sky is blue."}), local.New()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	if _, err := eng.Query(context.Background(), "What color is the sky?"); err != nil {
		t.Fatalf("Query: %v", err)
	}
	if _, err := eng.Query(context.Background(), "Is the sky blue today?"); err != nil {
		t.Fatalf("Query: %v", err)
	}

	history := eng.Memory().History()
	if len(history) != 1 {
		t.Fatalf("expected history trimmed to one turn, got %d", len(history))
	}
	if history[0].Question != "Is the sky blue today?" {
		t.Fatalf("expected oldest turn evicted, got %q", history[0].Question)
	}
}

func TestClearEmptiesMemory(t *testing.T) {
	eng := newTestEngine(t, map[string]string{"sky.txt": "The sky is blue."}, local.New())

	if _, err := eng.Query(context.Background(), "What color is the sky?"); err != nil {
		t.Fatalf("Query: %v", err)
	}
	if eng.Memory().Len() != 1 {
		t.Fatalf("expected one turn before clear, got %d", eng.Memory().Len())
	}

	eng.Clear()
	if eng.Memory().Len() != 0 {
		t.Fatalf("expected empty memory after clear, got %d", eng.Memory().Len())
	}
}

func TestCustomTemplateOverride(t *testing.T) {
	cfg := appconfig.Default()
	cfg.Template = "pirate"
	cfg.CustomPrompts = map[string]appconfig.PromptOverride{
		"pirate": {SystemPrompt: "Answer like a pirate."},
	}

	eng, err := New(&cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if eng.Template().Name != "pirate" {
		t.Fatalf("expected custom template active, got %s", eng.Template().Name)
	}
	if eng.Template().SystemPrompt != "Answer like a pirate." {
		t.Fatalf("unexpected system prompt: %q", eng.Template().SystemPrompt)
	}
	if eng.Library().IsBuiltin("pirate") {
		t.Fatalf("custom template must not be reported as built-in")
	}
}

func TestCustomTemplateRejectsEmptyPrompt(t *testing.T) {
	cfg := appconfig.Default()
	cfg.CustomPrompts = map[string]appconfig.PromptOverride{
		"broken": {SystemPrompt: "   "},
	}

	if _, err := New(&cfg, nil); err == nil {
		t.Fatalf("expected error for custom template without system prompt")
	}
}

func TestGeneratorName(t *testing.T) {
	cfg := appconfig.Default()
	eng, err := New(&cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if eng.GeneratorName() != "none" {
		t.Fatalf("expected none before initialize, got %s", eng.GeneratorName())
	}
	if err := eng.Initialize(newTestRetriever(t, map[string]string{"sky.txt": "The sky is blue."}), local.New()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if eng.GeneratorName() != "local" {
		t.Fatalf("expected local generator, got %s", eng.GeneratorName())
	}
}

func TestAttributeSources(t *testing.T) {
	chunks := []rag.RetrievedChunk{
		{Entry: rag.IndexEntry{Source: "a.txt"}},
		{Entry: rag.IndexEntry{Source: "b.txt"}},
		{Entry: rag.IndexEntry{Source: "a.txt"}},
		{Entry: rag.IndexEntry{}},
	}

	sources := attributeSources(chunks)
	want := []string{"a.txt", "b.txt", "Unknown"}
	if len(sources) != len(want) {
		t.Fatalf("expected %v, got %v", want, sources)
	}
	for i := range want {
		if sources[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, sources)
		}
	}
}
