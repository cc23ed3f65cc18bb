package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/GoSecreto/UniMem/pkg/models"
)

const handoffColumns = `id, project, from_session_id, from_cli, to_session_id, to_cli,
	state_snapshot, reason, created_at_epoch, picked_up_at_epoch`

const createHandoffAttempts = 3

// HandoffStore provides handoff-related database operations.
type HandoffStore struct {
	store *Store
	now   func() time.Time
}

// NewHandoffStore creates a new handoff store.
func NewHandoffStore(store *Store) *HandoffStore {
	return &HandoffStore{store: store, now: time.Now}
}

// CreateHandoff inserts h and pauses its source session in one transaction.
// Any handoff still pending for the project is marked as picked up by h's
// source session first, since that session is the one that continued the work.
func (s *HandoffStore) CreateHandoff(ctx context.Context, h *models.Handoff) (int64, error) {
	if !h.Reason.Valid() {
		return 0, fmt.Errorf("invalid handoff reason %q", h.Reason)
	}

	var err error
	for attempt := 1; attempt <= createHandoffAttempts; attempt++ {
		err = s.store.WithTx(ctx, func(tx *sql.Tx) error {
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

func (s *HandoffStore) createHandoffTx(ctx context.Context, tx *sql.Tx, h *models.Handoff) error {
	now := s.now()
	if h.CreatedAtEpoch == 0 {
		h.CreatedAtEpoch = now.Unix()
	}

	if err := ensureSessionExists(ctx, tx, h.FromSessionID, h.Project, h.FromCLI, now); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE handoffs
		SET to_session_id = ?, to_cli = ?, picked_up_at_epoch = ?
		WHERE project = ? AND picked_up_at_epoch IS NULL`,
		h.FromSessionID, string(h.FromCLI), now.Unix(), h.Project,
	); err != nil {
		return err
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO handoffs
		(project, from_session_id, from_cli, state_snapshot, reason, created_at_epoch)
		VALUES (?, ?, ?, ?, ?, ?)`,
		h.Project, h.FromSessionID, string(h.FromCLI), h.StateSnapshot, string(h.Reason), h.CreatedAtEpoch,
	)
	if err != nil {
		return err
	}
	if h.ID, err = result.LastInsertId(); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE sessions
		SET status = 'paused', pause_reason = ?, updated_at_epoch = ?
		WHERE session_id = ? AND status != 'completed'`,
		string(h.Reason), now.Unix(), h.FromSessionID,
	)
	return err
}

// GetPendingHandoff returns the newest handoff of project not yet picked up.
func (s *HandoffStore) GetPendingHandoff(ctx context.Context, project string) (*models.Handoff, error) {
	const query = `SELECT ` + handoffColumns + ` FROM handoffs
		WHERE project = ? AND picked_up_at_epoch IS NULL
		ORDER BY created_at_epoch DESC, id DESC
		LIMIT 1`
	return scanNotFound(scanHandoff(s.store.QueryRowContext(ctx, query, project)))
}

// MarkHandoffPickedUp records which session consumed the handoff.
func (s *HandoffStore) MarkHandoffPickedUp(ctx context.Context, id int64, toSessionID string, toCLI models.CLITool) error {
	const query = `
		UPDATE handoffs
		SET to_session_id = ?, to_cli = ?, picked_up_at_epoch = ?
		WHERE id = ?
	`
	_, err := s.store.ExecContext(ctx, query, toSessionID, string(toCLI), s.now().Unix(), id)
	return err
}

// GetHandoffHistory returns up to limit handoffs of a project, newest first.
func (s *HandoffStore) GetHandoffHistory(ctx context.Context, project string, limit int) ([]*models.Handoff, error) {
	const query = `SELECT ` + handoffColumns + ` FROM handoffs
		WHERE project = ?
		ORDER BY created_at_epoch DESC, id DESC
		LIMIT ?`
	rows, err := s.store.QueryContext(ctx, query, project, clampLimit(limit, 20))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var handoffs []*models.Handoff
	for rows.Next() {
		h, err := scanHandoff(rows)
		if err != nil {
			return nil, err
		}
		handoffs = append(handoffs, h)
	}
	return handoffs, rows.Err()
}

func scanHandoff(scanner rowScanner) (*models.Handoff, error) {
	var h models.Handoff
	var cli, reason string
	if err := scanner.Scan(
		&h.ID, &h.Project, &h.FromSessionID, &cli, &h.ToSessionID, &h.ToCLI,
		&h.StateSnapshot, &reason, &h.CreatedAtEpoch, &h.PickedUpAtEpoch,
	); err != nil {
		return nil, err
	}
	h.FromCLI = models.CLITool(cli)
	h.Reason = models.HandoffReason(reason)
	return &h, nil
}
