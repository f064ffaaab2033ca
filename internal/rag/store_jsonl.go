package rag

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Store persists index entries durably. Load must return entries in the order
// they were persisted so query tie-breaking survives a round trip.
type Store interface {
	Persist(entries []IndexEntry) error
	Load() ([]IndexEntry, error)
	Exists() bool
	Delete() error
	Path() string
}

// JSONLStore writes the index as one JSON record per line.
type JSONLStore struct {
	path string
}

var _ Store = (*JSONLStore)(nil)

// NewJSONLStore creates a store backed by the given file path.
func NewJSONLStore(path string) (*JSONLStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("index path is required")
	}
	return &JSONLStore{path: path}, nil
}

// Path returns the index file path.
func (s *JSONLStore) Path() string { return s.path }

// Exists reports whether an index file is present.
func (s *JSONLStore) Exists() bool {
	info, err := os.Stat(s.path)
	return err == nil && !info.IsDir()
}

// Delete removes the index file. A missing file is not an error.
func (s *JSONLStore) Delete() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove index file: %w", err)
	}
	return nil
}

// Persist writes all entries, replacing any previous index file.
func (s *JSONLStore) Persist(entries []IndexEntry) error {
	if dir := filepath.Dir(s.path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create index directory: %w", err)
		}
	}
	out, err := os.Create(s.path)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	defer out.Close()

	writer := bufio.NewWriter(out)
	encoder := json.NewEncoder(writer)
	encoder.SetEscapeHTML(false)
	for _, entry := range entries {
		if err := encoder.Encode(entry); err != nil {
			return fmt.Errorf("write index entry: %w", err)
		}
	}
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush index: %w", err)
	}
	return nil
}

// Load reads all entries back in file order. Undecodable content reports
// ErrIndexCorrupt so the caller can fall back to re-ingestion.
func (s *JSONLStore) Load() ([]IndexEntry, error) {
	file, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 8*1024*1024)

	var entries []IndexEntry
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var entry IndexEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			return nil, fmt.Errorf("%w: parse line %d: %v", ErrIndexCorrupt, lineNo, err)
		}
		if strings.TrimSpace(entry.ChunkID) == "" {
			return nil, fmt.Errorf("%w: line %d has no chunk id", ErrIndexCorrupt, lineNo)
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: read index: %v", ErrIndexCorrupt, err)
	}

	return entries, nil
}
