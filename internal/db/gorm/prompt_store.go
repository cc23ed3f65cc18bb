package gorm

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/GoSecreto/UniMem/pkg/models"
)

// PromptStore provides user prompt database operations using GORM.
type PromptStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewPromptStore creates a new prompt store.
func NewPromptStore(store *Store) *PromptStore {
	return &PromptStore{db: store.DB, now: time.Now}
}

// SaveUserPrompt stores a prompt, numbering it when PromptNumber is zero.
func (s *PromptStore) SaveUserPrompt(ctx context.Context, p *models.UserPrompt) (int64, error) {
	now := s.now()
	if p.CreatedAtEpoch == 0 {
		p.CreatedAtEpoch = now.Unix()
	}
	if err := ensureSessionExists(ctx, s.db, p.SessionID, p.Project, p.CLITool, now); err != nil {
		return 0, err
	}
	if p.PromptNumber == 0 {
		n, err := s.NextPromptNumber(ctx, p.SessionID)
		if err != nil {
			return 0, err
		}
		p.PromptNumber = n
	}

	row := &UserPrompt{
		SessionID:      p.SessionID,
		Project:        p.Project,
		CLITool:        string(p.CLITool),
		PromptNumber:   p.PromptNumber,
		PromptText:     p.PromptText,
		CreatedAtEpoch: p.CreatedAtEpoch,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_id"}, {Name: "prompt_number"}},
		DoUpdates: clause.AssignmentColumns([]string{"prompt_text"}),
	}).Create(row).Error
	if err != nil {
		return 0, err
	}
	p.ID = row.ID
	return row.ID, nil
}

// GetPromptsBySession returns the prompts of a session in order.
func (s *PromptStore) GetPromptsBySession(ctx context.Context, sessionID string) ([]*models.UserPrompt, error) {
	var rows []UserPrompt
	err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("prompt_number ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]*models.UserPrompt, 0, len(rows))
	for _, r := range rows {
		out = append(out, &models.UserPrompt{
			ID:             r.ID,
			SessionID:      r.SessionID,
			Project:        r.Project,
			CLITool:        models.CLITool(r.CLITool),
			PromptNumber:   r.PromptNumber,
			PromptText:     r.PromptText,
			CreatedAtEpoch: r.CreatedAtEpoch,
		})
	}
	return out, nil
}

// NextPromptNumber returns the number the next prompt of the session should use.
func (s *PromptStore) NextPromptNumber(ctx context.Context, sessionID string) (int, error) {
	var n int
	err := s.db.WithContext(ctx).Model(&UserPrompt{}).
		Select("COALESCE(MAX(prompt_number), 0) + 1").
		Where("session_id = ?", sessionID).
		Scan(&n).Error
	return n, err
}
