// ABOUTME: Token usage accounting rows
// ABOUTME: One row per successful generation, keyed by scope and model

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Usage records the token cost of one successful generation.
type Usage struct {
	ID               string
	Scope            string
	Model            string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	CreatedAt        time.Time
}

// SaveUsage stores a usage record.
func (s *Store) SaveUsage(ctx context.Context, usage *Usage) error {
	query := `
		INSERT INTO token_usage (id, scope, model, prompt_tokens, completion_tokens, total_tokens, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		usage.ID,
		usage.Scope,
		usage.Model,
		usage.PromptTokens,
		usage.CompletionTokens,
		usage.TotalTokens,
		usage.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting usage: %w", err)
	}

	s.logger.Debug("saved token usage",
		"scope", usage.Scope,
		"model", usage.Model,
		"total_tokens", usage.TotalTokens,
	)
	return nil
}

// ScopeUsage retrieves all usage records for one scope, oldest first.
func (s *Store) ScopeUsage(ctx context.Context, scope string) ([]*Usage, error) {
	query := `
		SELECT id, scope, model, prompt_tokens, completion_tokens, total_tokens, created_at
		FROM token_usage
		WHERE scope = ?
		ORDER BY created_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, scope)
	if err != nil {
		return nil, fmt.Errorf("querying scope usage: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var usages []*Usage
	for rows.Next() {
		usage, err := scanUsage(rows)
		if err != nil {
			return nil, err
		}
		usages = append(usages, usage)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating usage rows: %w", err)
	}
	return usages, nil
}

// TotalTokens returns the all-time token total across every scope.
func (s *Store) TotalTokens(ctx context.Context) (int64, error) {
	var total sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT SUM(total_tokens) FROM token_usage`).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("summing usage: %w", err)
	}
	return total.Int64, nil
}

func scanUsage(rows *sql.Rows) (*Usage, error) {
	var usage Usage
	var createdAt string
	if err := rows.Scan(
		&usage.ID,
		&usage.Scope,
		&usage.Model,
		&usage.PromptTokens,
		&usage.CompletionTokens,
		&usage.TotalTokens,
		&createdAt,
	); err != nil {
		return nil, fmt.Errorf("scanning usage row: %w", err)
	}
	t, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing usage timestamp: %w", err)
	}
	usage.CreatedAt = t
	return &usage, nil
}
