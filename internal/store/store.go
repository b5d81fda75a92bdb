// ABOUTME: SQLite store using modernc.org/sqlite with automatic schema creation
// ABOUTME: Holds usage accounting rows and the markov sentence corpus

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Store wraps the SQLite database.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// New opens (or creates) the database at path. Parent directories are
// created if needed and the schema is bootstrapped automatically.
func New(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "store")

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &Store{db: db, logger: logger}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS token_usage (
		id TEXT PRIMARY KEY,
		scope TEXT NOT NULL,
		model TEXT NOT NULL,
		prompt_tokens INTEGER NOT NULL,
		completion_tokens INTEGER NOT NULL,
		total_tokens INTEGER NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_token_usage_scope ON token_usage(scope);

	CREATE TABLE IF NOT EXISTS markov_sentences (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		sentence TEXT NOT NULL UNIQUE
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// SaveSentences adds sentences to the markov corpus, ignoring duplicates.
func (s *Store) SaveSentences(ctx context.Context, sentences []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO markov_sentences (sentence) VALUES (?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, sentence := range sentences {
		if sentence == "" {
			continue
		}
		if _, err := stmt.ExecContext(ctx, sentence); err != nil {
			return fmt.Errorf("inserting sentence: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing sentences: %w", err)
	}
	s.logger.Debug("sentences saved", "count", len(sentences))
	return nil
}

// Sentences returns up to limit corpus sentences, all of them when limit <= 0.
func (s *Store) Sentences(ctx context.Context, limit int) ([]string, error) {
	query := `SELECT sentence FROM markov_sentences ORDER BY id ASC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying sentences: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var sentences []string
	for rows.Next() {
		var sentence string
		if err := rows.Scan(&sentence); err != nil {
			return nil, fmt.Errorf("scanning sentence: %w", err)
		}
		sentences = append(sentences, sentence)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sentences: %w", err)
	}
	return sentences, nil
}
