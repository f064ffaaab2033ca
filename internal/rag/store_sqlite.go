package rag

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps the index in a single-file SQLite database.
type SQLiteStore struct {
	path string
}

var _ Store = (*SQLiteStore)(nil)

var sqliteMigrations = []string{
	`CREATE TABLE IF NOT EXISTS chunks (
		position INTEGER NOT NULL,
		chunk_id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		text TEXT NOT NULL,
		start_offset INTEGER NOT NULL,
		end_offset INTEGER NOT NULL,
		embedding TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_chunks_position ON chunks(position)`,
}

// NewSQLiteStore creates a store backed by the given database path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("index path is required")
	}
	return &SQLiteStore{path: path}, nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string { return s.path }

// Exists reports whether the database file is present.
func (s *SQLiteStore) Exists() bool {
	info, err := os.Stat(s.path)
	return err == nil && !info.IsDir()
}

// Delete removes the database file. A missing file is not an error.
func (s *SQLiteStore) Delete() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove index database: %w", err)
	}
	return nil
}

func (s *SQLiteStore) open() (*sql.DB, error) {
	if dir := filepath.Dir(s.path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create index directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", s.path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open index database: %w", err)
	}
	for _, stmt := range sqliteMigrations {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate index database: %w", err)
		}
	}
	return db, nil
}

// Persist replaces the stored index with the given entries in one transaction.
func (s *SQLiteStore) Persist(entries []IndexEntry) error {
	db, err := s.open()
	if err != nil {
		return err
	}
	defer db.Close()

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin index transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM chunks`); err != nil {
		return fmt.Errorf("clear index: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO chunks
		(position, chunk_id, source, text, start_offset, end_offset, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare index insert: %w", err)
	}
	defer stmt.Close()

	for position, entry := range entries {
		embedding, err := json.Marshal(entry.Embedding)
		if err != nil {
			return fmt.Errorf("encode embedding for %s: %w", entry.ChunkID, err)
		}
		if _, err := stmt.Exec(position, entry.ChunkID, entry.Source, entry.Text,
			entry.StartOffset, entry.EndOffset, string(embedding)); err != nil {
			return fmt.Errorf("insert chunk %s: %w", entry.ChunkID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit index transaction: %w", err)
	}
	return nil
}

// Load reads all entries back in persisted order. Unreadable rows report
// ErrIndexCorrupt so the caller can fall back to re-ingestion.
func (s *SQLiteStore) Load() ([]IndexEntry, error) {
	db, err := s.open()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIndexCorrupt, err)
	}
	defer db.Close()

	rows, err := db.Query(`SELECT chunk_id, source, text, start_offset, end_offset, embedding
		FROM chunks ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("%w: query chunks: %v", ErrIndexCorrupt, err)
	}
	defer rows.Close()

	var entries []IndexEntry
	for rows.Next() {
		var entry IndexEntry
		var embedding string
		if err := rows.Scan(&entry.ChunkID, &entry.Source, &entry.Text,
			&entry.StartOffset, &entry.EndOffset, &embedding); err != nil {
			return nil, fmt.Errorf("%w: scan chunk row: %v", ErrIndexCorrupt, err)
		}
		if err := json.Unmarshal([]byte(embedding), &entry.Embedding); err != nil {
			return nil, fmt.Errorf("%w: decode embedding for %s: %v", ErrIndexCorrupt, entry.ChunkID, err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate chunks: %v", ErrIndexCorrupt, err)
	}

	return entries, nil
}

// NewStore selects a store implementation from the configured kind.
func NewStore(kind, path string) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", "jsonl":
		return NewJSONLStore(path)
	case "sqlite":
		return NewSQLiteStore(path)
	default:
		return nil, fmt.Errorf("unknown index store %q (expected jsonl or sqlite)", kind)
	}
}
