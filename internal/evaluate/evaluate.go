// internal/evaluate/evaluate.go
// Package evaluate runs a golden question suite through the conversation
// engine and reports which answers carry the expected content.
package evaluate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/mwiater/noesis/internal/engine"
	"github.com/mwiater/noesis/internal/logging"
	"github.com/mwiater/noesis/internal/monitor"
)

// resultsDir receives one JSONL results file per evaluated backend.
const resultsDir = "noesisData/evaluations"

var (
	passMark = color.New(color.FgGreen).SprintFunc()
	failMark = color.New(color.FgRed).SprintFunc()
)

// Case is one golden question: the answer must contain every expected
// fragment, compared case-insensitively.
type Case struct {
	ID             int      `json:"id,omitempty"`
	Question       string   `json:"question"`
	ExpectContains []string `json:"expect_contains"`
	ExpectSource   string   `json:"expect_source,omitempty"`
}

// CaseResult records one evaluated question.
type CaseResult struct {
	Timestamp      string   `json:"timestamp"`
	CaseID         int      `json:"caseId"`
	Question       string   `json:"question"`
	Answer         string   `json:"answer"`
	Sources        []string `json:"sources,omitempty"`
	Missing        []string `json:"missing,omitempty"`
	Passed         bool     `json:"passed"`
	ResponseTime   float64  `json:"response_time"`
	TokenCount     int      `json:"token_count"`
	Backend        string   `json:"backend"`
	MissingSources bool     `json:"missing_sources,omitempty"`
}

// Summary totals one suite run.
type Summary struct {
	Total    int
	Passed   int
	Failed   int
	PassRate float64
	Elapsed  time.Duration
}

// LoadSuite reads the golden cases from a JSON array file.
func LoadSuite(path string) ([]Case, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading evaluation suite: %w", err)
	}

	var cases []Case
	if err := json.Unmarshal(raw, &cases); err != nil {
		return nil, fmt.Errorf("error parsing evaluation suite: %w", err)
	}
	if len(cases) == 0 {
		return nil, fmt.Errorf("evaluation suite contains no cases")
	}
	for i, c := range cases {
		if strings.TrimSpace(c.Question) == "" {
			return nil, fmt.Errorf("evaluation case %d has an empty question", i+1)
		}
		if len(c.ExpectContains) == 0 && strings.TrimSpace(c.ExpectSource) == "" {
			return nil, fmt.Errorf("evaluation case %d expects nothing", i+1)
		}
	}
	return cases, nil
}

// Runner drives a suite through one engine.
type Runner struct {
	engine *engine.Engine
	out    io.Writer
	logger *logging.Logger
}

// NewRunner wires a runner to an initialized engine. A nil writer silences
// the per-case report.
func NewRunner(eng *engine.Engine, out io.Writer, logger *logging.Logger) (*Runner, error) {
	if eng == nil {
		return nil, fmt.Errorf("engine is required")
	}
	if out == nil {
		out = io.Discard
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Runner{engine: eng, out: out, logger: logger}, nil
}

// Run evaluates every case in order, clearing conversation memory between
// cases so answers stay independent. Results are appended to the backend's
// results file; a missing results directory disables persistence with a
// warning rather than failing the run.
func (r *Runner) Run(ctx context.Context, cases []Case) (Summary, []CaseResult, error) {
	if len(cases) == 0 {
		return Summary{}, nil, fmt.Errorf("no evaluation cases to run")
	}

	backend := r.engine.GeneratorName()
	persist := true
	if err := os.MkdirAll(resultsDir, 0o755); err != nil {
		r.logger.Warn("cannot create results directory %s: %v", resultsDir, err)
		persist = false
	}

	start := time.Now()
	total := len(cases)
	results := make([]CaseResult, 0, total)
	passed := 0

	for i, c := range cases {
		if err := ctx.Err(); err != nil {
			return Summary{}, results, err
		}
		r.engine.Clear()

		fmt.Fprintf(r.out, "[%d/%d] %s\n", i+1, total, c.Question)

		caseStart := time.Now()
		answer, sources, queryErr := r.ask(ctx, c.Question)
		elapsed := time.Since(caseStart)

		missing := missingFragments(answer, c.ExpectContains)
		missingSource := c.ExpectSource != "" && !hasSource(sources, c.ExpectSource)
		ok := queryErr == nil && len(missing) == 0 && !missingSource

		result := CaseResult{
			Timestamp:      time.Now().Format(time.RFC3339),
			CaseID:         c.ID,
			Question:       c.Question,
			Answer:         answer,
			Sources:        sources,
			Missing:        missing,
			Passed:         ok,
			ResponseTime:   elapsed.Seconds(),
			TokenCount:     monitor.TokenEstimate(answer),
			Backend:        backend,
			MissingSources: missingSource,
		}
		results = append(results, result)

		if ok {
			passed++
			fmt.Fprintf(r.out, "  %s (%.0fms)\n", passMark("PASS"), elapsed.Seconds()*1000)
		} else {
			fmt.Fprintf(r.out, "  %s (%.0fms)\n", failMark("FAIL"), elapsed.Seconds()*1000)
			for _, fragment := range missing {
				fmt.Fprintf(r.out, "    missing: %q\n", fragment)
			}
			if missingSource {
				fmt.Fprintf(r.out, "    missing source: %q (got %v)\n", c.ExpectSource, sources)
			}
			if queryErr != nil {
				fmt.Fprintf(r.out, "    error: %v\n", queryErr)
			}
		}

		if persist {
			if err := appendResult(backend, result); err != nil {
				r.logger.Error("error writing result for backend %s: %v", backend, err)
				persist = false
			}
		}
	}

	summary := Summary{
		Total:    total,
		Passed:   passed,
		Failed:   total - passed,
		PassRate: float64(passed) / float64(total),
		Elapsed:  time.Since(start),
	}

	fmt.Fprintf(r.out, "\n%d/%d passed (%.1f%%) in %s\n",
		summary.Passed, summary.Total, summary.PassRate*100, summary.Elapsed.Truncate(time.Millisecond))
	return summary, results, nil
}

// ask runs one question. The engine degrades internal failures into an
// apologetic answer, so only an uninitialized engine surfaces an error here.
func (r *Runner) ask(ctx context.Context, question string) (string, []string, error) {
	result, err := r.engine.Query(ctx, question)
	if err != nil {
		return "", nil, err
	}
	return result.Answer, result.Sources, nil
}

// missingFragments lists the expected fragments the answer does not contain,
// compared case-insensitively.
func missingFragments(answer string, expected []string) []string {
	lowered := strings.ToLower(answer)
	var missing []string
	for _, fragment := range expected {
		if !strings.Contains(lowered, strings.ToLower(fragment)) {
			missing = append(missing, fragment)
		}
	}
	return missing
}

func hasSource(sources []string, want string) bool {
	for _, source := range sources {
		if strings.EqualFold(source, want) {
			return true
		}
	}
	return false
}

// appendResult writes one result line to the backend's JSONL results file.
func appendResult(backend string, result CaseResult) error {
	fileName := fmt.Sprintf("%s.jsonl", slugify(backend))
	path := filepath.Join(resultsDir, fileName)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("error opening results file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	if err := encoder.Encode(result); err != nil {
		return fmt.Errorf("error writing results: %w", err)
	}
	return nil
}

// slugify converts a string into a filesystem-friendly slug.
func slugify(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, ":", "_")
	s = regexp.MustCompile(`[^a-z0-9_]+`).ReplaceAllString(s, "-")
	s = regexp.MustCompile(`-+`).ReplaceAllString(s, "-")
	return strings.Trim(s, "-_")
}
