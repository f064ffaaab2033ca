// internal/prompt/prompt.go
// Package prompt renders retrieval context and conversation history into the
// ChatML prompt a generator completes.
package prompt

import (
	"strings"

	"github.com/mwiater/noesis/internal/memory"
)

const (
	// DefaultContextPrefix introduces the retrieved context block.
	DefaultContextPrefix = "Relevant information:\n"
	// DefaultContextSuffix closes the retrieved context block.
	DefaultContextSuffix = "\n"
)

// Template shapes a prompt for one use case. The zero affixes mean "no
// wrapping"; context affixes default when a template is registered.
type Template struct {
	Name          string
	SystemPrompt  string
	QueryPrefix   string
	QuerySuffix   string
	ContextPrefix string
	ContextSuffix string
}

// Assemble renders the full prompt: system instruction, optional context
// block, prior turns oldest first, and the new question, framed as ChatML.
// The returned string ends with an open assistant block for the generator to
// complete.
func Assemble(t Template, question, contextText string, history []memory.Turn) string {
	var b strings.Builder
	b.WriteString("<|im_start|>system\n")
	b.WriteString(t.SystemPrompt)
	if contextText != "" {
		b.WriteString("\n\n")
		b.WriteString(t.ContextPrefix)
		b.WriteString(contextText)
		b.WriteString(t.ContextSuffix)
	}
	b.WriteString("<|im_end|>\n")

	for _, turn := range history {
		b.WriteString("<|im_start|>user\n")
		b.WriteString(turn.Question)
		b.WriteString("<|im_end|>\n")
		b.WriteString("<|im_start|>assistant\n")
		b.WriteString(turn.Answer)
		b.WriteString("<|im_end|>\n")
	}

	b.WriteString("<|im_start|>user\n")
	b.WriteString(t.QueryPrefix)
	b.WriteString(question)
	b.WriteString(t.QuerySuffix)
	b.WriteString("<|im_end|>\n")
	b.WriteString("<|im_start|>assistant\n")
	return b.String()
}
