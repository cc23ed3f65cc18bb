package gorm

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/GoSecreto/UniMem/pkg/models"
)

// SummaryStore provides summary-related database operations using GORM.
type SummaryStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewSummaryStore creates a new summary store.
func NewSummaryStore(store *Store) *SummaryStore {
	return &SummaryStore{db: store.DB, now: time.Now}
}

// SaveSummary upserts the summary of a session and returns its row id.
func (s *SummaryStore) SaveSummary(ctx context.Context, sum *models.SessionSummary) (int64, error) {
	now := s.now()
	if sum.CreatedAtEpoch == 0 {
		sum.CreatedAt = now.UTC().Format(time.RFC3339)
		sum.CreatedAtEpoch = now.Unix()
	}
	if err := ensureSessionExists(ctx, s.db, sum.SessionID, sum.Project, sum.CLITool, now); err != nil {
		return 0, err
	}

	row := &SessionSummary{
		SessionID:       sum.SessionID,
		Project:         sum.Project,
		CLITool:         string(sum.CLITool),
		Request:         sum.Request,
		Investigated:    sum.Investigated,
		Learned:         sum.Learned,
		Completed:       sum.Completed,
		NextSteps:       sum.NextSteps,
		Notes:           sum.Notes,
		FilesRead:       sum.FilesRead,
		FilesEdited:     sum.FilesEdited,
		DiscoveryTokens: sum.DiscoveryTokens,
		CreatedAt:       sum.CreatedAt,
		CreatedAtEpoch:  sum.CreatedAtEpoch,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "session_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"project", "cli_tool", "request", "investigated", "learned", "completed",
			"next_steps", "notes", "files_read", "files_edited", "discovery_tokens",
			"created_at", "created_at_epoch",
		}),
	}).Create(row).Error
	if err != nil {
		return 0, err
	}
	sum.ID = row.ID
	return row.ID, nil
}

// GetSummary returns the summary of a session, or nil when there is none.
func (s *SummaryStore) GetSummary(ctx context.Context, sessionID string) (*models.SessionSummary, error) {
	var row SessionSummary
	err := s.db.WithContext(ctx).Where("session_id = ?", sessionID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return toModelSummary(&row), nil
}

// GetRecentSummaries returns up to limit summaries of a project, newest first.
func (s *SummaryStore) GetRecentSummaries(ctx context.Context, project string, limit int) ([]*models.SessionSummary, error) {
	var rows []SessionSummary
	err := s.db.WithContext(ctx).
		Where("project = ?", project).
		Order("created_at_epoch DESC, id DESC").
		Limit(clampLimit(limit, 3)).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toModelSummaries(rows), nil
}

// SearchSummaries matches query case-insensitively against the summary text fields.
func (s *SummaryStore) SearchSummaries(ctx context.Context, query, project string, limit int) ([]*models.SessionSummary, error) {
	tx := s.db.WithContext(ctx).Model(&SessionSummary{})
	if project != "" {
		tx = tx.Where("project = ?", project)
	}
	if q := strings.TrimSpace(query); q != "" {
		p := "%" + escapeLike(q) + "%"
		tx = tx.Where("request ILIKE ? OR investigated ILIKE ? OR learned ILIKE ? OR completed ILIKE ? OR next_steps ILIKE ?",
			p, p, p, p, p)
	}
	var rows []SessionSummary
	if err := tx.Order("created_at_epoch DESC, id DESC").Limit(clampLimit(limit, 20)).Find(&rows).Error; err != nil {
		return nil, err
	}
	return toModelSummaries(rows), nil
}
