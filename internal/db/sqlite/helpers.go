package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/GoSecreto/UniMem/pkg/models"
)

// execQuerier is satisfied by both *Store and *sql.Tx.
type execQuerier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// ensureSessionExists creates a placeholder active session when sessionID is unknown.
// Hook events can arrive before session-start, so writers that reference a
// session call this first.
func ensureSessionExists(ctx context.Context, q execQuerier, sessionID, project string, cli models.CLITool, now time.Time) error {
	const query = `
		INSERT OR IGNORE INTO sessions
		(session_id, project, cli_tool, status, created_at, created_at_epoch)
		VALUES (?, ?, ?, 'active', ?, ?)
	`
	if cli == "" {
		cli = models.CLIClaudeCode
	}
	_, err := q.ExecContext(ctx, query, sessionID, project, string(cli),
		now.UTC().Format(time.RFC3339), now.Unix())
	return err
}

func nullEpoch(v int64) sql.NullInt64 {
	return sql.NullInt64{Int64: v, Valid: v > 0}
}

func clampLimit(limit, def int) int {
	if limit <= 0 {
		return def
	}
	return limit
}

func scanNotFound[T any](v T, err error) (T, error) {
	var zero T
	if err == sql.ErrNoRows {
		return zero, nil
	}
	if err != nil {
		return zero, err
	}
	return v, nil
}
