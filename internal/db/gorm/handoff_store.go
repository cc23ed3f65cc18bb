package gorm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/GoSecreto/UniMem/pkg/models"
)

const createHandoffAttempts = 3

// HandoffStore provides handoff-related database operations using GORM.
type HandoffStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewHandoffStore creates a new handoff store.
func NewHandoffStore(store *Store) *HandoffStore {
	return &HandoffStore{db: store.DB, now: time.Now}
}

// CreateHandoff inserts h and pauses its source session in one transaction.
// A handoff still pending for the project is superseded: it is marked as
// picked up by h's source session.
func (s *HandoffStore) CreateHandoff(ctx context.Context, h *models.Handoff) (int64, error) {
	if !h.Reason.Valid() {
		return 0, fmt.Errorf("invalid handoff reason %q", h.Reason)
	}

	var err error
	for attempt := 1; attempt <= createHandoffAttempts; attempt++ {
		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return s.createHandoffTx(ctx, tx, h)
		})
		if err == nil || !isUniqueViolation(err) {
			break
		}
		log.Debug().Int("attempt", attempt).Str("project", h.Project).Msg("Pending handoff race, retrying")
	}
	if err != nil {
		return 0, fmt.Errorf("create handoff: %w", err)
	}
	return h.ID, nil
}

func (s *HandoffStore) createHandoffTx(ctx context.Context, tx *gorm.DB, h *models.Handoff) error {
	now := s.now()
	if h.CreatedAtEpoch == 0 {
		h.CreatedAtEpoch = now.Unix()
	}

	if err := ensureSessionExists(ctx, tx, h.FromSessionID, h.Project, h.FromCLI, now); err != nil {
		return err
	}

	err := tx.Model(&Handoff{}).
		Where("project = ? AND picked_up_at_epoch IS NULL", h.Project).
		Updates(map[string]interface{}{
			"to_session_id":      h.FromSessionID,
			"to_cli":             string(h.FromCLI),
			"picked_up_at_epoch": now.Unix(),
		}).Error
	if err != nil {
		return err
	}

	row := &Handoff{
		Project:        h.Project,
		FromSessionID:  h.FromSessionID,
		FromCLI:        string(h.FromCLI),
		StateSnapshot:  h.StateSnapshot,
		Reason:         string(h.Reason),
		CreatedAtEpoch: h.CreatedAtEpoch,
	}
	if err := tx.Create(row).Error; err != nil {
		return err
	}
	h.ID = row.ID

	return tx.Model(&Session{}).
		Where("session_id = ? AND status <> ?", h.FromSessionID, string(models.SessionStatusCompleted)).
		Updates(map[string]interface{}{
			"status":           string(models.SessionStatusPaused),
			"pause_reason":     string(h.Reason),
			"updated_at_epoch": now.Unix(),
		}).Error
}

// GetPendingHandoff returns the newest handoff of project not yet picked up.
func (s *HandoffStore) GetPendingHandoff(ctx context.Context, project string) (*models.Handoff, error) {
	var row Handoff
	err := s.db.WithContext(ctx).
		Where("project = ? AND picked_up_at_epoch IS NULL", project).
		Order("created_at_epoch DESC, id DESC").
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return toModelHandoff(&row), nil
}

// MarkHandoffPickedUp records which session consumed the handoff.
func (s *HandoffStore) MarkHandoffPickedUp(ctx context.Context, id int64, toSessionID string, toCLI models.CLITool) error {
	return s.db.WithContext(ctx).Model(&Handoff{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"to_session_id":      toSessionID,
			"to_cli":             string(toCLI),
			"picked_up_at_epoch": s.now().Unix(),
		}).Error
}

// GetHandoffHistory returns up to limit handoffs of a project, newest first.
func (s *HandoffStore) GetHandoffHistory(ctx context.Context, project string, limit int) ([]*models.Handoff, error) {
	var rows []Handoff
	err := s.db.WithContext(ctx).
		Where("project = ?", project).
		Order("created_at_epoch DESC, id DESC").
		Limit(clampLimit(limit, 20)).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]*models.Handoff, 0, len(rows))
	for i := range rows {
		out = append(out, toModelHandoff(&rows[i]))
	}
	return out, nil
}
