package gorm

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/GoSecreto/UniMem/pkg/models"
)

// SessionStore provides session-related database operations using GORM.
type SessionStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewSessionStore creates a new session store.
func NewSessionStore(store *Store) *SessionStore {
	return &SessionStore{db: store.DB, now: time.Now}
}

// ensureSessionExists creates a placeholder active session when sessionID is unknown.
func ensureSessionExists(ctx context.Context, db *gorm.DB, sessionID, project string, cli models.CLITool, now time.Time) error {
	if cli == "" {
		cli = models.CLIClaudeCode
	}
	sess := &Session{
		SessionID:      sessionID,
		Project:        project,
		CLITool:        string(cli),
		Status:         string(models.SessionStatusActive),
		CreatedAtEpoch: now.Unix(),
	}
	return db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(sess).Error
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
	row := &Session{
		SessionID:       sess.SessionID,
		Project:         sess.Project,
		CLITool:         string(sess.CLITool),
		CLIVersion:      sess.CLIVersion,
		Status:          string(sess.Status),
		PauseReason:     sess.PauseReason,
		ParentSessionID: sess.ParentSessionID,
		UserPrompt:      sess.UserPrompt,
		CreatedAt:       sess.CreatedAt,
		CreatedAtEpoch:  sess.CreatedAtEpoch,
	}
	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(row)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		sess.ID = row.ID
	}
	return nil
}

// GetSession retrieves a session by its session_id.
func (s *SessionStore) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	return s.first(s.db.WithContext(ctx).Where("session_id = ?", sessionID))
}

// GetLastActiveSession returns the newest session of project, whatever its status.
func (s *SessionStore) GetLastActiveSession(ctx context.Context, project string) (*models.Session, error) {
	return s.first(s.db.WithContext(ctx).
		Where("project = ?", project).
		Order("created_at_epoch DESC, id DESC"))
}

// GetRecentSessions returns up to limit sessions of project, newest first.
func (s *SessionStore) GetRecentSessions(ctx context.Context, project string, limit int) ([]*models.Session, error) {
	var rows []Session
	err := s.db.WithContext(ctx).
		Where("project = ?", project).
		Order("created_at_epoch DESC, id DESC").
		Limit(clampLimit(limit, 10)).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]*models.Session, 0, len(rows))
	for i := range rows {
		out = append(out, toModelSession(&rows[i]))
	}
	return out, nil
}

// UpdateSessionStatus moves a session to status. completed_at_epoch is set on
// the first transition to completed, and a completed session is never changed.
func (s *SessionStore) UpdateSessionStatus(ctx context.Context, sessionID string, status models.SessionStatus, reason string) error {
	now := s.now().Unix()
	updates := map[string]interface{}{
		"status":           string(status),
		"pause_reason":     models.NullString(reason),
		"updated_at_epoch": now,
	}
	if status == models.SessionStatusCompleted {
		updates["completed_at_epoch"] = gorm.Expr("COALESCE(completed_at_epoch, ?)", now)
	}
	return s.db.WithContext(ctx).
		Model(&Session{}).
		Where("session_id = ? AND status <> ?", sessionID, string(models.SessionStatusCompleted)).
		Updates(updates).Error
}

// DetectRecentActivity returns the newest session of project created within
// the window, other than exceptSessionID.
func (s *SessionStore) DetectRecentActivity(ctx context.Context, project string, within time.Duration, exceptSessionID string) (*models.Session, error) {
	cutoff := s.now().Add(-within).Unix()
	return s.first(s.db.WithContext(ctx).
		Where("project = ? AND created_at_epoch >= ? AND session_id <> ?", project, cutoff, exceptSessionID).
		Order("created_at_epoch DESC, id DESC"))
}

// GetAllProjects returns every project seen in sessions or observations, sorted.
func (s *SessionStore) GetAllProjects(ctx context.Context) ([]string, error) {
	var projects []string
	err := s.db.WithContext(ctx).Raw(`
		SELECT project FROM sessions WHERE project <> ''
		UNION
		SELECT project FROM observations WHERE project <> ''
		ORDER BY project
	`).Scan(&projects).Error
	return projects, err
}

func (s *SessionStore) first(q *gorm.DB) (*models.Session, error) {
	var row Session
	err := q.Limit(1).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return toModelSession(&row), nil
}
