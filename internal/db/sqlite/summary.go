package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/GoSecreto/UniMem/pkg/models"
)

const summaryColumns = `id, session_id, project, cli_tool, request, investigated, learned,
	completed, next_steps, notes, files_read, files_edited, discovery_tokens,
	created_at, created_at_epoch`

// SummaryStore provides summary-related database operations.
type SummaryStore struct {
	store *Store
	now   func() time.Time
}

// NewSummaryStore creates a new summary store.
func NewSummaryStore(store *Store) *SummaryStore {
	return &SummaryStore{store: store, now: time.Now}
}

// SaveSummary upserts the summary of a session and returns its row id.
func (s *SummaryStore) SaveSummary(ctx context.Context, sum *models.SessionSummary) (int64, error) {
	now := s.now()
	if sum.CreatedAtEpoch == 0 {
		sum.CreatedAt = now.UTC().Format(time.RFC3339)
		sum.CreatedAtEpoch = now.Unix()
	}
	if err := ensureSessionExists(ctx, s.store, sum.SessionID, sum.Project, sum.CLITool, now); err != nil {
		return 0, err
	}

	const query = `
		INSERT INTO session_summaries
		(session_id, project, cli_tool, request, investigated, learned, completed,
		 next_steps, notes, files_read, files_edited, discovery_tokens, created_at, created_at_epoch)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			project = excluded.project,
			cli_tool = excluded.cli_tool,
			request = excluded.request,
			investigated = excluded.investigated,
			learned = excluded.learned,
			completed = excluded.completed,
			next_steps = excluded.next_steps,
			notes = excluded.notes,
			files_read = excluded.files_read,
			files_edited = excluded.files_edited,
			discovery_tokens = excluded.discovery_tokens,
			created_at = excluded.created_at,
			created_at_epoch = excluded.created_at_epoch
		RETURNING id
	`
	err := s.store.QueryRowContext(ctx, query,
		sum.SessionID, sum.Project, string(sum.CLITool),
		sum.Request, sum.Investigated, sum.Learned, sum.Completed, sum.NextSteps, sum.Notes,
		sum.FilesRead, sum.FilesEdited, sum.DiscoveryTokens, sum.CreatedAt, sum.CreatedAtEpoch,
	).Scan(&sum.ID)
	return sum.ID, err
}

// GetSummary returns the summary of a session.
func (s *SummaryStore) GetSummary(ctx context.Context, sessionID string) (*models.SessionSummary, error) {
	const query = `SELECT ` + summaryColumns + ` FROM session_summaries WHERE session_id = ?`
	return scanNotFound(scanSummary(s.store.QueryRowContext(ctx, query, sessionID)))
}

// GetRecentSummaries returns up to limit summaries of a project, newest first.
func (s *SummaryStore) GetRecentSummaries(ctx context.Context, project string, limit int) ([]*models.SessionSummary, error) {
	const query = `SELECT ` + summaryColumns + ` FROM session_summaries
		WHERE project = ?
		ORDER BY created_at_epoch DESC, id DESC
		LIMIT ?`
	rows, err := s.store.QueryContext(ctx, query, project, clampLimit(limit, 3))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSummaryRows(rows)
}

// SearchSummaries matches query as a substring of the summary text fields.
// An empty query returns the most recent summaries.
func (s *SummaryStore) SearchSummaries(ctx context.Context, query, project string, limit int) ([]*models.SessionSummary, error) {
	limit = clampLimit(limit, 20)
	where := " WHERE 1=1"
	var args []interface{}
	if project != "" {
		where += " AND project = ?"
		args = append(args, project)
	}
	if q := strings.TrimSpace(query); q != "" {
		pattern := "%" + q + "%"
		where += ` AND (request LIKE ? OR investigated LIKE ? OR learned LIKE ?
			OR completed LIKE ? OR next_steps LIKE ?)`
		args = append(args, pattern, pattern, pattern, pattern, pattern)
	}
	sqlQuery := `SELECT ` + summaryColumns + ` FROM session_summaries` + where +
		` ORDER BY created_at_epoch DESC, id DESC LIMIT ?`
	rows, err := s.store.QueryContext(ctx, sqlQuery, append(args, limit)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSummaryRows(rows)
}

func scanSummary(scanner rowScanner) (*models.SessionSummary, error) {
	var sum models.SessionSummary
	var cli string
	if err := scanner.Scan(
		&sum.ID, &sum.SessionID, &sum.Project, &cli,
		&sum.Request, &sum.Investigated, &sum.Learned, &sum.Completed, &sum.NextSteps, &sum.Notes,
		&sum.FilesRead, &sum.FilesEdited, &sum.DiscoveryTokens, &sum.CreatedAt, &sum.CreatedAtEpoch,
	); err != nil {
		return nil, err
	}
	sum.CLITool = models.CLITool(cli)
	return &sum, nil
}

func scanSummaryRows(rows *sql.Rows) ([]*models.SessionSummary, error) {
	var summaries []*models.SessionSummary
	for rows.Next() {
		sum, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, sum)
	}
	return summaries, rows.Err()
}
