// internal/monitor/monitor.go
// Package monitor records per-session query logs and usage statistics. Each
// session writes an append-only NDJSON file, one complete JSON record per
// line, so the log is valid after every append.
package monitor

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mwiater/noesis/internal/logging"
	"github.com/mwiater/noesis/internal/memory"
)

// logFilePrefix and logFileExt frame the per-session log file name.
const (
	logFilePrefix = "chatbot_log_"
	logFileExt    = ".ndjson"
)

// tokensPerWord is the rough words-to-tokens ratio used when the backend does
// not report token counts.
const tokensPerWord = 1.3

// QueryRecord is one logged query.
type QueryRecord struct {
	Query        string         `json:"query"`
	Timestamp    string         `json:"timestamp"`
	ResponseTime float64        `json:"response_time"`
	TokenCount   int            `json:"token_count"`
	SessionID    string         `json:"session_id"`
	Success      bool           `json:"success"`
	Error        string         `json:"error,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// SessionStats is a point-in-time snapshot of one session's counters.
type SessionStats struct {
	SessionID       string  `json:"session_id"`
	UptimeSeconds   float64 `json:"uptime_seconds"`
	QueryCount      int     `json:"query_count"`
	ErrorCount      int     `json:"error_count"`
	ErrorRate       float64 `json:"error_rate"`
	AvgResponseTime float64 `json:"avg_response_time"`
	AvgTokenCount   float64 `json:"avg_token_count"`
}

// Monitor tracks one conversation session. All methods are safe for
// concurrent use; log appends are serialized by the monitor's mutex.
type Monitor struct {
	mu                sync.Mutex
	logDir            string
	conversationsDir  string
	logger            *logging.Logger
	sessionID         string
	logPath           string
	startTime         time.Time
	queryCount        int
	errorCount        int
	totalResponseTime float64
	totalTokenCount   int
	recent            []QueryRecord
}

// recentLimit bounds how many records Recent can serve from memory.
const recentLimit = 100

// New starts a monitoring session, creating the log directory as needed.
func New(logDir, conversationsDir string, logger *logging.Logger) (*Monitor, error) {
	if strings.TrimSpace(logDir) == "" {
		return nil, fmt.Errorf("logDir is required")
	}
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	if logger == nil {
		logger = logging.Nop()
	}

	m := &Monitor{
		logDir:           logDir,
		conversationsDir: conversationsDir,
		logger:           logger,
	}
	m.startSession()
	return m, nil
}

// startSession assigns a fresh session id and log file and zeroes counters.
// Callers hold the mutex or own the monitor exclusively.
func (m *Monitor) startSession() {
	m.sessionID = uuid.NewString()
	m.logPath = filepath.Join(m.logDir, logFilePrefix+m.sessionID+logFileExt)
	m.startTime = time.Now()
	m.queryCount = 0
	m.errorCount = 0
	m.totalResponseTime = 0
	m.totalTokenCount = 0
	m.recent = nil
	m.logger.Event("monitoring session started: %s", m.sessionID)
}

// SessionID returns the current session identifier.
func (m *Monitor) SessionID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessionID
}

// LogPath returns the current session's log file path.
func (m *Monitor) LogPath() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.logPath
}

// LogQuery appends one record to the session log and updates the counters.
// The session id and timestamp are filled in; callers supply the rest.
func (m *Monitor) LogQuery(record QueryRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	record.SessionID = m.sessionID
	if record.Timestamp == "" {
		record.Timestamp = time.Now().Format(time.RFC3339)
	}

	m.queryCount++
	m.totalResponseTime += record.ResponseTime
	m.totalTokenCount += record.TokenCount
	if !record.Success {
		m.errorCount++
	}
	m.recent = append(m.recent, record)
	if len(m.recent) > recentLimit {
		m.recent = m.recent[len(m.recent)-recentLimit:]
	}

	if err := m.appendRecord(record); err != nil {
		m.logger.Error("append query log: %v", err)
		return err
	}
	return nil
}

// appendRecord writes one NDJSON line. A partial line can only arise from a
// torn write of a single record; previously written lines stay parseable.
func (m *Monitor) appendRecord(record QueryRecord) error {
	file, err := os.OpenFile(m.logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open session log: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(record); err != nil {
		return fmt.Errorf("write session log record: %w", err)
	}
	return nil
}

// Recent returns up to count of the most recent records, oldest first.
func (m *Monitor) Recent(count int) []QueryRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	if count <= 0 || count > len(m.recent) {
		count = len(m.recent)
	}
	out := make([]QueryRecord, count)
	copy(out, m.recent[len(m.recent)-count:])
	return out
}

// Stats snapshots the session counters. Averages divide by at least one so an
// idle session reports zeros rather than NaN.
func (m *Monitor) Stats() SessionStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	divisor := float64(m.queryCount)
	if divisor < 1 {
		divisor = 1
	}
	return SessionStats{
		SessionID:       m.sessionID,
		UptimeSeconds:   time.Since(m.startTime).Seconds(),
		QueryCount:      m.queryCount,
		ErrorCount:      m.errorCount,
		ErrorRate:       float64(m.errorCount) / divisor,
		AvgResponseTime: m.totalResponseTime / divisor,
		AvgTokenCount:   float64(m.totalTokenCount) / divisor,
	}
}

// Reset zeroes the counters and rotates to a fresh session id and log file.
// Existing log files are left in place.
func (m *Monitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startSession()
}

// ExportConversation writes the retained history to a timestamped JSON file
// under the conversations directory and returns its path.
func (m *Monitor) ExportConversation(turns []memory.Turn) (string, error) {
	if len(turns) == 0 {
		return "", fmt.Errorf("conversation is empty")
	}
	dir := m.conversationsDir
	if strings.TrimSpace(dir) == "" {
		dir = "conversations"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create conversations directory: %w", err)
	}

	name := fmt.Sprintf("conversation_%s.json", time.Now().Format("20060102_150405"))
	path := filepath.Join(dir, name)
	data, err := json.MarshalIndent(turns, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode conversation: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write conversation: %w", err)
	}
	m.logger.Event("conversation saved to %s", path)
	return path, nil
}

// TokenEstimate approximates how many model tokens a text spans. The backend
// dialects this engine speaks do not all report usage, so accounting falls
// back to a words-times-ratio estimate.
func TokenEstimate(text string) int {
	return int(float64(len(strings.Fields(text))) * tokensPerWord)
}

// ReadLogs loads every session log under dir, oldest session first, records in
// file order. Unparseable lines are skipped, not fatal: a torn final line must
// not hide the rest of a session.
func ReadLogs(dir string) ([]QueryRecord, error) {
	pattern := filepath.Join(dir, logFilePrefix+"*"+logFileExt)
	paths, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("glob session logs: %w", err)
	}
	sort.Strings(paths)

	var records []QueryRecord
	for _, path := range paths {
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open session log %s: %w", path, err)
		}
		scanner := bufio.NewScanner(file)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			var record QueryRecord
			if err := json.Unmarshal([]byte(line), &record); err != nil {
				continue
			}
			records = append(records, record)
		}
		err = scanner.Err()
		file.Close()
		if err != nil {
			return nil, fmt.Errorf("read session log %s: %w", path, err)
		}
	}
	return records, nil
}

// AggregateStats folds a set of records into per-session statistics, sessions
// ordered by first appearance.
func AggregateStats(records []QueryRecord) []SessionStats {
	order := make([]string, 0)
	bySession := make(map[string]*SessionStats)
	totals := make(map[string]*struct {
		responseTime float64
		tokens       int
	})

	for _, record := range records {
		stats, ok := bySession[record.SessionID]
		if !ok {
			stats = &SessionStats{SessionID: record.SessionID}
			bySession[record.SessionID] = stats
			totals[record.SessionID] = &struct {
				responseTime float64
				tokens       int
			}{}
			order = append(order, record.SessionID)
		}
		stats.QueryCount++
		if !record.Success {
			stats.ErrorCount++
		}
		totals[record.SessionID].responseTime += record.ResponseTime
		totals[record.SessionID].tokens += record.TokenCount
	}

	out := make([]SessionStats, 0, len(order))
	for _, id := range order {
		stats := bySession[id]
		divisor := float64(stats.QueryCount)
		if divisor < 1 {
			divisor = 1
		}
		stats.ErrorRate = float64(stats.ErrorCount) / divisor
		stats.AvgResponseTime = totals[id].responseTime / divisor
		stats.AvgTokenCount = float64(totals[id].tokens) / divisor
		out = append(out, *stats)
	}
	return out
}
