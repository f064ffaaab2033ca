// internal/logging/logging.go
// Package logging provides the application's logging handle. A Logger is
// constructed once at startup and passed to each component explicitly; there
// is no package-level logger to configure.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Logger writes structured application events to stdout and, when configured,
// an append-only log file.
type Logger struct {
	mu    sync.Mutex
	out   *log.Logger
	file  *os.File
	debug bool
}

// New creates a Logger that writes to stdout. When logPath is non-empty the
// same output is mirrored to that file, creating parent directories as needed.
func New(logPath string, debug bool) (*Logger, error) {
	writers := []io.Writer{os.Stdout}

	var file *os.File
	if logPath != "" {
		if dir := filepath.Dir(logPath); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, err
			}
		}
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, err
		}
		file = f
		writers = append(writers, f)
	}

	return &Logger{
		out:   log.New(io.MultiWriter(writers...), "", log.LstdFlags),
		file:  file,
		debug: debug,
	}, nil
}

// Nop returns a Logger that discards everything. Intended for tests and for
// components constructed before configuration is available.
func Nop() *Logger {
	return &Logger{out: log.New(io.Discard, "", 0)}
}

// Close releases the log file, if one was opened.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// Event logs a formatted application event.
func (l *Logger) Event(format string, args ...any) {
	l.out.Println(fmt.Sprintf(format, args...))
}

// Warn logs a formatted warning.
func (l *Logger) Warn(format string, args ...any) {
	l.out.Println("WARN " + fmt.Sprintf(format, args...))
}

// Error logs a formatted error.
func (l *Logger) Error(format string, args ...any) {
	l.out.Println("ERROR " + fmt.Sprintf(format, args...))
}

// Debug logs a formatted event only when debug mode is enabled.
func (l *Logger) Debug(format string, args ...any) {
	if !l.debug {
		return
	}
	l.out.Println("DEBUG " + fmt.Sprintf(format, args...))
}

// Request logs one side of a backend exchange with its payload.
func (l *Logger) Request(direction, endpoint, model string, payload any) {
	l.out.Println(buildRequestMessage(direction, endpoint, model, payload))
}

func buildRequestMessage(direction, endpoint, model string, payload any) string {
	dir := strings.TrimSpace(direction)
	if dir != "" {
		dir = strings.ToUpper(dir)
	}
	endpointValue := strings.TrimSpace(endpoint)
	if endpointValue == "" {
		endpointValue = "unknown"
	}
	modelValue := strings.TrimSpace(model)
	if modelValue == "" {
		modelValue = "unknown"
	}
	parts := []string{fmt.Sprintf("[%s]", dir)}
	parts = append(parts, fmt.Sprintf("endpoint=%s", endpointValue))
	parts = append(parts, fmt.Sprintf("model=%s", modelValue))
	parts = append(parts, fmt.Sprintf("payload=%s", formatPayload(payload)))
	return strings.Join(parts, " ")
}

func formatPayload(payload any) string {
	switch v := payload.(type) {
	case nil:
		return "null"
	case string:
		if strings.TrimSpace(v) == "" {
			return `""`
		}
		return v
	case []byte:
		if len(v) == 0 {
			return "[]"
		}
		return string(v)
	case fmt.Stringer:
		return v.String()
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}
