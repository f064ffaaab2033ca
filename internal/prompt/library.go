package prompt

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/mwiater/noesis/internal/logging"
)

// DefaultTemplateName is the template used when a lookup misses.
const DefaultTemplateName = "customer_service"

// Library resolves templates by name. Built-ins are fixed at construction;
// user templates live in an overlay that shadows but never rewrites them.
type Library struct {
	builtins map[string]Template
	mu       sync.RWMutex
	overlay  map[string]Template
	logger   *logging.Logger
}

// NewLibrary builds a library seeded with the built-in templates.
func NewLibrary(logger *logging.Logger) *Library {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Library{
		builtins: builtinTemplates(),
		overlay:  make(map[string]Template),
		logger:   logger,
	}
}

// Add registers a user template in the overlay. Empty context affixes fall
// back to the defaults; the name and system prompt are required.
func (l *Library) Add(t Template) error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("template name is required")
	}
	if strings.TrimSpace(t.SystemPrompt) == "" {
		return fmt.Errorf("template %q has no system prompt", t.Name)
	}
	if t.ContextPrefix == "" {
		t.ContextPrefix = DefaultContextPrefix
	}
	if t.ContextSuffix == "" {
		t.ContextSuffix = DefaultContextSuffix
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.overlay[t.Name] = t
	return nil
}

// Get returns the named template, consulting the overlay first. An unknown
// name logs a warning and falls back to the default template.
func (l *Library) Get(name string) Template {
	l.mu.RLock()
	if t, ok := l.overlay[name]; ok {
		l.mu.RUnlock()
		return t
	}
	l.mu.RUnlock()
	if t, ok := l.builtins[name]; ok {
		return t
	}
	l.logger.Warn("template %q not found, using %q", name, DefaultTemplateName)
	return l.builtins[DefaultTemplateName]
}

// Names lists every resolvable template name, sorted.
func (l *Library) Names() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	seen := make(map[string]struct{}, len(l.builtins)+len(l.overlay))
	for name := range l.builtins {
		seen[name] = struct{}{}
	}
	for name := range l.overlay {
		seen[name] = struct{}{}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsBuiltin reports whether the name belongs to a built-in template.
func (l *Library) IsBuiltin(name string) bool {
	_, ok := l.builtins[name]
	return ok
}

func builtinTemplates() map[string]Template {
	templates := map[string]Template{
		"customer_service": {
			Name: "customer_service",
			SystemPrompt: "You are a helpful customer service AI assistant. " +
				"Answer questions based on the provided information. " +
				"Be concise, professional, and empathetic. " +
				"If you don't know the answer, say that you don't know and offer to escalate to a human agent.",
		},
		"technical_support": {
			Name: "technical_support",
			SystemPrompt: "You are a technical support AI assistant. " +
				"Provide clear, step-by-step solutions to technical problems based on the provided documentation. " +
				"Use technical terminology appropriately. " +
				"If the solution is not in the documentation, suggest troubleshooting steps and escalation paths.",
		},
		"faq": {
			Name: "faq",
			SystemPrompt: "You are an AI FAQ assistant. " +
				"Provide brief, direct answers to questions based on the provided FAQ information. " +
				"Keep responses concise and to the point. " +
				"If the question is not covered in the FAQs, politely state that and suggest related topics.",
		},
	}
	for name, t := range templates {
		t.ContextPrefix = DefaultContextPrefix
		t.ContextSuffix = DefaultContextSuffix
		templates[name] = t
	}
	return templates
}
