package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/GoSecreto/UniMem/pkg/models"
)

const sessionColumns = `id, session_id, project, cli_tool, cli_version, status, pause_reason,
	parent_session_id, user_prompt, created_at, created_at_epoch, updated_at_epoch, completed_at_epoch`

// SessionStore provides session-related database operations.
type SessionStore struct {
	store *Store
	now   func() time.Time
}

// NewSessionStore creates a new session store.
func NewSessionStore(store *Store) *SessionStore {
	return &SessionStore{store: store, now: time.Now}
}

// CreateSession inserts the session; re-inserting an existing session_id is a no-op.
func (s *SessionStore) CreateSession(ctx context.Context, sess *models.Session) error {
	if sess.CreatedAtEpoch == 0 {
		now := s.now()
		sess.CreatedAt = now.UTC().Format(time.RFC3339)
		sess.CreatedAtEpoch = now.Unix()
	}
	if sess.Status == "" {
		sess.Status = models.SessionStatusActive
	}

	const query = `
		INSERT OR IGNORE INTO sessions
		(session_id, project, cli_tool, cli_version, status, pause_reason,
		 parent_session_id, user_prompt, created_at, created_at_epoch)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := s.store.ExecContext(ctx, query,
		sess.SessionID, sess.Project, string(sess.CLITool), sess.CLIVersion,
		string(sess.Status), sess.PauseReason, sess.ParentSessionID, sess.UserPrompt,
		sess.CreatedAt, sess.CreatedAtEpoch,
	)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n > 0 {
		sess.ID, _ = result.LastInsertId()
	}
	return nil
}

// GetSession retrieves a session by its session_id.
func (s *SessionStore) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	const query = `SELECT ` + sessionColumns + ` FROM sessions WHERE session_id = ? LIMIT 1`
	return scanNotFound(scanSession(s.store.QueryRowContext(ctx, query, sessionID)))
}

// GetLastActiveSession returns the newest session of project, whatever its status.
func (s *SessionStore) GetLastActiveSession(ctx context.Context, project string) (*models.Session, error) {
	const query = `SELECT ` + sessionColumns + ` FROM sessions
		WHERE project = ?
		ORDER BY created_at_epoch DESC, id DESC
		LIMIT 1`
	return scanNotFound(scanSession(s.store.QueryRowContext(ctx, query, project)))
}

// GetRecentSessions returns up to limit sessions of project, newest first.
func (s *SessionStore) GetRecentSessions(ctx context.Context, project string, limit int) ([]*models.Session, error) {
	const query = `SELECT ` + sessionColumns + ` FROM sessions
		WHERE project = ?
		ORDER BY created_at_epoch DESC, id DESC
		LIMIT ?`
	rows, err := s.store.QueryContext(ctx, query, project, clampLimit(limit, 10))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSessionRows(rows)
}

// UpdateSessionStatus moves a session to status. completed_at_epoch is set on
// the first transition to completed, and a completed session is never changed.
func (s *SessionStore) UpdateSessionStatus(ctx context.Context, sessionID string, status models.SessionStatus, reason string) error {
	now := s.now().Unix()
	const query = `
		UPDATE sessions
		SET status = ?,
		    pause_reason = ?,
		    updated_at_epoch = ?,
		    completed_at_epoch = CASE
		        WHEN ? = 'completed' AND completed_at_epoch IS NULL THEN ?
		        ELSE completed_at_epoch
		    END
		WHERE session_id = ? AND status != 'completed'
	`
	_, err := s.store.ExecContext(ctx, query,
		string(status), models.NullString(reason), now,
		string(status), now, sessionID,
	)
	return err
}

// DetectRecentActivity returns the newest session of project created within
// the window, other than exceptSessionID.
func (s *SessionStore) DetectRecentActivity(ctx context.Context, project string, within time.Duration, exceptSessionID string) (*models.Session, error) {
	cutoff := s.now().Add(-within).Unix()
	const query = `SELECT ` + sessionColumns + ` FROM sessions
		WHERE project = ? AND created_at_epoch >= ? AND session_id != ?
		ORDER BY created_at_epoch DESC, id DESC
		LIMIT 1`
	return scanNotFound(scanSession(s.store.QueryRowContext(ctx, query, project, cutoff, exceptSessionID)))
}

// GetAllProjects returns every project seen in sessions or observations, sorted.
func (s *SessionStore) GetAllProjects(ctx context.Context) ([]string, error) {
	const query = `
		SELECT project FROM sessions WHERE project != ''
		UNION
		SELECT project FROM observations WHERE project != ''
		ORDER BY project
	`
	rows, err := s.store.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func scanSession(scanner rowScanner) (*models.Session, error) {
	var sess models.Session
	var cli, status string
	if err := scanner.Scan(
		&sess.ID, &sess.SessionID, &sess.Project, &cli, &sess.CLIVersion, &status,
		&sess.PauseReason, &sess.ParentSessionID, &sess.UserPrompt,
		&sess.CreatedAt, &sess.CreatedAtEpoch, &sess.UpdatedAtEpoch, &sess.CompletedAtEpoch,
	); err != nil {
		return nil, err
	}
	sess.CLITool = models.CLITool(cli)
	sess.Status = models.SessionStatus(status)
	return &sess, nil
}

func scanSessionRows(rows *sql.Rows) ([]*models.Session, error) {
	var sessions []*models.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}
