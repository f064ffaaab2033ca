// internal/engine/engine.go
// Package engine orchestrates one conversational query end to end: retrieve
// context, assemble the prompt, generate an answer, and record the turn.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mwiater/noesis/internal/appconfig"
	"github.com/mwiater/noesis/internal/logging"
	"github.com/mwiater/noesis/internal/memory"
	"github.com/mwiater/noesis/internal/prompt"
	"github.com/mwiater/noesis/internal/providers"
	"github.com/mwiater/noesis/internal/rag"
)

// State names the engine's position in the query lifecycle.
type State string

const (
	StateIdle       State = "idle"
	StateRetrieving State = "retrieving"
	StateAssembling State = "assembling"
	StateGenerating State = "generating"
	StateRecording  State = "recording"
	StateFailed     State = "failed"
)

// ErrNotInitialized is returned when Query is called before Initialize has
// wired a retriever and generator.
var ErrNotInitialized = errors.New("engine is not initialized")

// defaultNumResults is the retrieval depth applied when the config leaves it
// unset.
const defaultNumResults = 3

// unknownSource labels retrieved chunks whose origin was not recorded.
const unknownSource = "Unknown"

// Result is one answered query with attributed sources. Failed marks a
// degraded answer produced by the failure policy instead of the generator;
// Reason carries the underlying error text for logging.
type Result struct {
	Answer   string
	Sources  []string
	Chunks   []rag.RetrievedChunk
	Duration time.Duration
	Failed   bool
	Reason   string
}

// Engine drives the retrieve, assemble, generate, record loop. Construct it
// with New, then wire the heavy dependencies with Initialize once the index
// is ready.
type Engine struct {
	cfg      *appconfig.Config
	logger   *logging.Logger
	library  *prompt.Library
	template prompt.Template

	queryMu   sync.Mutex
	retriever *rag.Retriever
	generator providers.Generator
	history   *memory.Conversation

	stateMu sync.RWMutex
	state   State
}

// New creates an engine shell holding configuration and the prompt library.
// Custom templates from the config are registered before the default template
// is resolved.
func New(cfg *appconfig.Config, logger *logging.Logger) (*Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	if logger == nil {
		logger = logging.Nop()
	}

	library := prompt.NewLibrary(logger)
	for name, override := range cfg.CustomPrompts {
		err := library.Add(prompt.Template{
			Name:          name,
			SystemPrompt:  override.SystemPrompt,
			QueryPrefix:   override.QueryPrefix,
			QuerySuffix:   override.QuerySuffix,
			ContextPrefix: override.ContextPrefix,
			ContextSuffix: override.ContextSuffix,
		})
		if err != nil {
			return nil, fmt.Errorf("register custom template %q: %w", name, err)
		}
	}

	return &Engine{
		cfg:      cfg,
		logger:   logger,
		library:  library,
		template: library.Get(cfg.Template),
		state:    StateIdle,
	}, nil
}

// Initialize wires the retriever and generator and allocates conversation
// memory. It must run before the first Query.
func (e *Engine) Initialize(retriever *rag.Retriever, generator providers.Generator) error {
	if retriever == nil {
		return fmt.Errorf("retriever is required")
	}
	if generator == nil {
		return fmt.Errorf("generator is required")
	}
	size := e.cfg.MemorySize
	if size <= 0 {
		size = 5
	}
	history, err := memory.NewConversation(size)
	if err != nil {
		return err
	}

	e.queryMu.Lock()
	defer e.queryMu.Unlock()
	e.retriever = retriever
	e.generator = generator
	e.history = history
	return nil
}

// State reports the engine's current lifecycle position.
func (e *Engine) State() State {
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()
	return e.state
}

func (e *Engine) setState(s State) {
	e.stateMu.Lock()
	e.state = s
	e.stateMu.Unlock()
}

// Memory exposes the conversation history, for export and inspection. It is
// nil before Initialize.
func (e *Engine) Memory() *memory.Conversation {
	e.queryMu.Lock()
	defer e.queryMu.Unlock()
	return e.history
}

// Template returns the active prompt template.
func (e *Engine) Template() prompt.Template { return e.template }

// Library returns the engine's prompt library.
func (e *Engine) Library() *prompt.Library { return e.library }

// GeneratorName identifies the wired generation backend, or "none".
func (e *Engine) GeneratorName() string {
	e.queryMu.Lock()
	defer e.queryMu.Unlock()
	if e.generator == nil {
		return "none"
	}
	return e.generator.Name()
}

// Clear wipes the conversation memory. Persisted logs are untouched.
func (e *Engine) Clear() {
	e.queryMu.Lock()
	defer e.queryMu.Unlock()
	if e.history != nil {
		e.history.Clear()
	}
}

// Close releases the generator's resources.
func (e *Engine) Close() error {
	e.queryMu.Lock()
	defer e.queryMu.Unlock()
	if e.generator == nil {
		return nil
	}
	return e.generator.Close()
}

// Query answers one question. Internal failures degrade to an apologetic
// answer with no sources rather than an error; only an uninitialized engine
// or a blank question returns an error. Queries are serialized, and the
// conversation records a turn only after generation succeeds.
func (e *Engine) Query(ctx context.Context, question string) (Result, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Result{}, fmt.Errorf("question is required")
	}

	e.queryMu.Lock()
	defer e.queryMu.Unlock()
	if e.retriever == nil || e.generator == nil || e.history == nil {
		return Result{}, ErrNotInitialized
	}

	start := time.Now()

	e.setState(StateRetrieving)
	k := e.cfg.NumResults
	if k <= 0 {
		k = defaultNumResults
	}
	chunks, err := e.retriever.Retrieve(ctx, question, k)
	if err != nil {
		return e.fail("retrieval", err, start), nil
	}

	e.setState(StateAssembling)
	assembled := prompt.Assemble(e.template, question, rag.ContextText(chunks), e.history.History())

	e.setState(StateGenerating)
	answer, err := e.generator.Generate(ctx, assembled, providers.GenerateOptions{
		MaxTokens:   e.cfg.MaxTokens,
		Temperature: e.cfg.Temperature,
		Model:       e.cfg.Generator.Model,
		Stop:        e.cfg.Generator.Stop,
	})
	if err != nil {
		return e.fail("generation", err, start), nil
	}
	answer = strings.TrimSpace(answer)

	e.setState(StateRecording)
	sources := attributeSources(chunks)
	e.history.Append(memory.Turn{
		Question: question,
		Answer:   answer,
		Sources:  sources,
	})

	e.setState(StateIdle)
	return Result{
		Answer:   answer,
		Sources:  sources,
		Chunks:   chunks,
		Duration: time.Since(start),
	}, nil
}

// fail logs the step failure and produces the degraded answer.
func (e *Engine) fail(step string, err error, start time.Time) Result {
	e.setState(StateFailed)
	e.logger.Error("%s failed: %v", step, err)
	return Result{
		Answer:   fmt.Sprintf("I'm sorry, I encountered an error: %v", err),
		Duration: time.Since(start),
		Failed:   true,
		Reason:   err.Error(),
	}
}

// attributeSources lists the distinct chunk sources first seen first,
// labeling chunks without one as unknown.
func attributeSources(chunks []rag.RetrievedChunk) []string {
	seen := make(map[string]struct{}, len(chunks))
	var sources []string
	for _, chunk := range chunks {
		source := chunk.Entry.Source
		if source == "" {
			source = unknownSource
		}
		if _, ok := seen[source]; ok {
			continue
		}
		seen[source] = struct{}{}
		sources = append(sources, source)
	}
	return sources
}
