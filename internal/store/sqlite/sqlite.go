// Package sqlite provides the durable store behind the learning core:
// correction events, learned preferences, action outcomes, expectations,
// and contradiction findings, all in one SQLite database.
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	_ "modernc.org/sqlite"
)

// Store is a SQLite-backed implementation of the learning core's store
// interfaces. One Store serves all of them; they share a single database
// handle and schema.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open opens (creating if necessary) the database at path and runs the
// schema migration. Use path ":memory:" for an ephemeral database.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// The driver serializes writes; a single connection avoids
	// SQLITE_BUSY under concurrent writers.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	s := &Store{db: db, logger: logger}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("database opened", zap.String("path", path))
	return s, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS correction_events (
		id TEXT PRIMARY KEY,
		conversation_id TEXT NOT NULL,
		trigger_message_id TEXT NOT NULL DEFAULT '',
		correction_message_id TEXT NOT NULL DEFAULT '',
		type TEXT NOT NULL,
		original_value TEXT NOT NULL DEFAULT '',
		corrected_value TEXT NOT NULL DEFAULT '',
		pattern_matched TEXT NOT NULL DEFAULT '',
		domain TEXT NOT NULL DEFAULT '',
		extracted_lesson TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_corrections_conversation
		ON correction_events(conversation_id);

	CREATE TABLE IF NOT EXISTS preferences (
		id TEXT PRIMARY KEY,
		category TEXT NOT NULL,
		key TEXT NOT NULL,
		value TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		confidence REAL NOT NULL,
		source_type TEXT NOT NULL,
		source_ids TEXT NOT NULL DEFAULT '[]',
		reinforcement_count INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		superseded_by TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_preferences_one_active
		ON preferences(category, key) WHERE status = 'active';
	CREATE INDEX IF NOT EXISTS idx_preferences_key
		ON preferences(category, key);

	CREATE TABLE IF NOT EXISTS action_outcomes (
		id TEXT PRIMARY KEY,
		action_type TEXT NOT NULL,
		action_id TEXT NOT NULL UNIQUE,
		conversation_id TEXT NOT NULL DEFAULT '',
		message_id TEXT NOT NULL DEFAULT '',
		original_value TEXT NOT NULL DEFAULT '',
		outcome TEXT NOT NULL DEFAULT '',
		modified_value TEXT NOT NULL DEFAULT '',
		was_modified_quickly INTEGER NOT NULL DEFAULT 0,
		was_deleted_quickly INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL,
		recorded_at TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS expectations (
		id TEXT PRIMARY KEY,
		subject TEXT NOT NULL,
		expected_value REAL NOT NULL,
		comparator TEXT NOT NULL,
		window_hours INTEGER NOT NULL,
		because_finding_id TEXT NOT NULL DEFAULT '',
		rationale TEXT NOT NULL DEFAULT '',
		context TEXT NOT NULL DEFAULT '{}',
		due_by TIMESTAMP NOT NULL,
		status TEXT NOT NULL,
		observed_value REAL,
		was_correct INTEGER,
		evaluated_at TIMESTAMP,
		created_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_expectations_status
		ON expectations(status);
	CREATE INDEX IF NOT EXISTS idx_expectations_due
		ON expectations(status, due_by);

	CREATE TABLE IF NOT EXISTS findings (
		id TEXT PRIMARY KEY,
		subject TEXT NOT NULL,
		predicate TEXT NOT NULL,
		object TEXT NOT NULL,
		rationale TEXT NOT NULL DEFAULT '',
		stats TEXT NOT NULL,
		strength REAL NOT NULL,
		evidence TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// isUniqueViolation reports whether err is a SQLite unique-constraint
// failure.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
