// internal/chat/chat.go
// Package chat provides the interactive terminal conversation over one
// engine instance.
package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mwiater/noesis/internal/appconfig"
	"github.com/mwiater/noesis/internal/engine"
	"github.com/mwiater/noesis/internal/logging"
	"github.com/mwiater/noesis/internal/monitor"
	"github.com/mwiater/noesis/internal/util"
)

// maxSourceFooter bounds the rendered length of one answer's source list.
const maxSourceFooter = 120

// entryKind tags what a transcript entry holds.
type entryKind int

const (
	entryExchange entryKind = iota
	entryNote
)

// entry is one block of the rendered transcript: a completed exchange or an
// informational note such as a stats report.
type entry struct {
	kind     entryKind
	question string
	answer   string
	sources  []string
	duration time.Duration
	failed   bool
	note     string
}

// answerMsg delivers one completed query result.
type answerMsg struct {
	question string
	result   engine.Result
}

// answerErr delivers a query that could not run at all.
type answerErr struct{ error }

// tickMsg drives the elapsed-time display while a query is in flight.
type tickMsg time.Time

// model is the Bubble Tea model for the chat session.
type model struct {
	ctx              context.Context
	cfg              *appconfig.Config
	engine           *engine.Engine
	monitor          *monitor.Monitor
	textArea         textarea.Model
	viewport         viewport.Model
	spinner          spinner.Model
	entries          []entry
	isLoading        bool
	err              error
	width, height    int
	requestStartTime time.Time
}

// initialModel creates and initializes the chat model with default values.
func initialModel(ctx context.Context, cfg *appconfig.Config, eng *engine.Engine, mon *monitor.Monitor) *model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	ta := textarea.New()
	ta.Placeholder = "Ask a question... (stats, clear, exit)"
	ta.Focus()
	ta.Prompt = "You: "
	ta.ShowLineNumbers = false
	ta.CharLimit = -1
	ta.SetHeight(1)
	ta.KeyMap.InsertNewline.SetEnabled(false)

	vp := viewport.New(100, 5)

	return &model{
		ctx:      ctx,
		cfg:      cfg,
		engine:   eng,
		monitor:  mon,
		spinner:  s,
		textArea: ta,
		viewport: vp,
	}
}

// answerCmd creates a Bubble Tea command that runs one query against the
// engine. Degraded answers still arrive as answerMsg; only an unusable
// engine produces answerErr.
func answerCmd(ctx context.Context, eng *engine.Engine, question string) tea.Cmd {
	return func() tea.Msg {
		result, err := eng.Query(ctx, question)
		if err != nil {
			return answerErr{error: err}
		}
		return answerMsg{question: question, result: result}
	}
}

// tickCmd creates a Bubble Tea command that sends a tickMsg at a regular interval.
func tickCmd() tea.Cmd {
	return tea.Tick(time.Millisecond*100, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Init starts the cursor blinking in the input area.
func (m *model) Init() tea.Cmd {
	return textarea.Blink
}

// Update is the central update function for the chat model.
func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		cmd  tea.Cmd
		cmds []tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "enter":
			if m.isLoading {
				return m, nil
			}
			input := strings.TrimSpace(m.textArea.Value())
			if input == "" {
				return m, nil
			}
			switch strings.ToLower(input) {
			case "exit", "quit":
				return m, tea.Quit
			case "stats":
				m.entries = append(m.entries, entry{kind: entryNote, note: renderStats(m.monitor.Stats())})
				m.textArea.Reset()
				m.viewport.GotoBottom()
				return m, nil
			case "clear":
				m.engine.Clear()
				m.entries = append(m.entries, entry{kind: entryNote, note: "Conversation memory cleared."})
				m.textArea.Reset()
				m.viewport.GotoBottom()
				return m, nil
			}

			m.textArea.Reset()
			m.isLoading = true
			m.err = nil
			m.requestStartTime = time.Now()
			cmds = append(cmds, m.spinner.Tick, answerCmd(m.ctx, m.engine, input), tickCmd())
			return m, tea.Batch(cmds...)
		}

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.textArea.SetWidth(msg.Width - 3)
		headerHeight := 3
		footerHeight := 4
		m.viewport.Width = msg.Width
		m.viewport.Height = msg.Height - headerHeight - footerHeight

	case answerMsg:
		m.isLoading = false
		m.entries = append(m.entries, entry{
			kind:     entryExchange,
			question: msg.question,
			answer:   msg.result.Answer,
			sources:  msg.result.Sources,
			duration: msg.result.Duration,
			failed:   msg.result.Failed,
		})
		m.logResult(msg.question, msg.result)
		m.textArea.Focus()
		m.viewport.GotoBottom()
		return m, nil

	case answerErr:
		m.isLoading = false
		m.err = msg.error
		m.textArea.Focus()
		return m, nil

	case tickMsg:
		if m.isLoading {
			return m, tickCmd()
		}
		return m, nil
	}

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	if !m.isLoading {
		m.textArea, cmd = m.textArea.Update(msg)
		cmds = append(cmds, cmd)
	}

	if m.isLoading {
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// logResult records one completed query with the session monitor.
func (m *model) logResult(question string, result engine.Result) {
	record := monitor.QueryRecord{
		Query:        question,
		ResponseTime: result.Duration.Seconds(),
		Success:      !result.Failed,
	}
	if result.Failed {
		record.Error = result.Reason
	} else {
		record.TokenCount = monitor.TokenEstimate(result.Answer)
		record.Metadata = map[string]any{"sources": result.Sources}
	}
	_ = m.monitor.LogQuery(record)
}

// View renders the chat UI.
func (m *model) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	var builder strings.Builder

	headerStyle := lipgloss.NewStyle().Background(lipgloss.Color("62")).Foreground(lipgloss.Color("230")).Padding(0, 1)
	labelStyle := lipgloss.NewStyle().Background(lipgloss.Color("0")).Foreground(lipgloss.Color("255")).Padding(0, 1)

	status := lipgloss.JoinHorizontal(lipgloss.Top,
		labelStyle.Render("noesis"),
		headerStyle.MarginLeft(1).Render(fmt.Sprintf("Template: %s", m.engine.Template().Name)),
		headerStyle.MarginLeft(1).Render(fmt.Sprintf("Generator: %s", m.engine.GeneratorName())),
		headerStyle.MarginLeft(1).Render(fmt.Sprintf("Top K: %d", m.cfg.NumResults)),
		headerStyle.MarginLeft(1).Render(fmt.Sprintf("Memory: %d turns", m.cfg.MemorySize)),
	)
	help := lipgloss.NewStyle().Faint(true).Render(" (esc to quit)")
	builder.WriteString(status + help + "\n\n")

	m.viewport.SetContent(m.transcript())
	builder.WriteString(m.viewport.View())

	if m.isLoading {
		timer := fmt.Sprintf("%.1f", time.Since(m.requestStartTime).Seconds())
		builder.WriteString("\n" + m.spinner.View() + fmt.Sprintf(" Assistant is thinking... %ss", timer))
	} else {
		builder.WriteString("\n" + m.textArea.View())
	}

	if m.err != nil {
		errorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
		builder.WriteString("\n" + errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
	}

	if m.cfg.Debug {
		builder.WriteString("\n" + m.debugLine())
	}

	return builder.String()
}

// transcript renders all completed entries for the viewport.
func (m *model) transcript() string {
	userStyle := lipgloss.NewStyle().Bold(true)
	assistantStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("5"))
	failedStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	sourceStyle := lipgloss.NewStyle().Faint(true)
	noteStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("6"))

	var builder strings.Builder
	for _, e := range m.entries {
		if e.kind == entryNote {
			builder.WriteString(noteStyle.Render(e.note) + "\n\n")
			continue
		}

		role := userStyle.Render("You: ")
		wrapped := lipgloss.NewStyle().Width(m.width - lipgloss.Width(role) - 2).Render(e.question)
		builder.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, role, wrapped) + "\n")

		role = assistantStyle.Render("Assistant: ")
		if e.failed {
			role = failedStyle.Render("Assistant: ")
		}
		wrapped = lipgloss.NewStyle().Width(m.width - lipgloss.Width(role) - 2).Render(e.answer)
		builder.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, role, wrapped) + "\n")

		if len(e.sources) > 0 {
			footer := util.TruncateRunes("Sources: "+strings.Join(e.sources, ", "), maxSourceFooter)
			builder.WriteString(sourceStyle.Render(footer) + "\n")
		}
		builder.WriteString("\n")
	}
	return builder.String()
}

// debugLine summarizes the last exchange and the engine state.
func (m *model) debugLine() string {
	style := lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	last := "none"
	for i := len(m.entries) - 1; i >= 0; i-- {
		if m.entries[i].kind == entryExchange {
			e := m.entries[i]
			last = fmt.Sprintf("%.1fs | ~%d tokens", e.duration.Seconds(), monitor.TokenEstimate(e.answer))
			break
		}
	}
	return style.Render(fmt.Sprintf("  >>> [Last Response: %s] [State: %s] [Session: %s]",
		last, m.engine.State(), m.monitor.SessionID()))
}

// renderStats formats session statistics for the transcript.
func renderStats(stats monitor.SessionStats) string {
	var builder strings.Builder
	builder.WriteString("=== Monitoring Statistics ===\n")
	builder.WriteString(fmt.Sprintf("Session ID: %s\n", stats.SessionID))
	builder.WriteString(fmt.Sprintf("Uptime: %.2f seconds\n", stats.UptimeSeconds))
	builder.WriteString(fmt.Sprintf("Queries: %d\n", stats.QueryCount))
	builder.WriteString(fmt.Sprintf("Errors: %d (%.2f%%)\n", stats.ErrorCount, stats.ErrorRate*100))
	builder.WriteString(fmt.Sprintf("Avg Response Time: %.2f ms\n", stats.AvgResponseTime*1000))
	builder.WriteString(fmt.Sprintf("Avg Tokens: %.2f", stats.AvgTokenCount))
	return builder.String()
}

// Start runs the interactive chat program until the user exits, then saves
// the conversation that remains in memory.
func Start(ctx context.Context, cfg *appconfig.Config, eng *engine.Engine, mon *monitor.Monitor, logger *logging.Logger) error {
	if cfg == nil {
		return fmt.Errorf("configuration is not loaded")
	}
	if eng == nil {
		return fmt.Errorf("engine is required")
	}
	if mon == nil {
		return fmt.Errorf("monitor is required")
	}
	if logger == nil {
		logger = logging.Nop()
	}

	m := initialModel(ctx, cfg, eng, mon)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running chat program: %w", err)
	}

	if turns := eng.Memory().History(); len(turns) > 0 {
		path, err := mon.ExportConversation(turns)
		if err != nil {
			logger.Warn("could not save conversation: %v", err)
			return nil
		}
		fmt.Printf("Conversation saved to %s\n", path)
	}
	return nil
}
