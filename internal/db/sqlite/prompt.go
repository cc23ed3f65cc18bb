package sqlite

import (
	"context"
	"time"

	"github.com/GoSecreto/UniMem/pkg/models"
)

// PromptStore provides user prompt database operations.
type PromptStore struct {
	store *Store
	now   func() time.Time
}

// NewPromptStore creates a new prompt store.
func NewPromptStore(store *Store) *PromptStore {
	return &PromptStore{store: store, now: time.Now}
}

// SaveUserPrompt stores a prompt. A zero PromptNumber is assigned the next
// number of the session.
func (s *PromptStore) SaveUserPrompt(ctx context.Context, p *models.UserPrompt) (int64, error) {
	now := s.now()
	if p.CreatedAtEpoch == 0 {
		p.CreatedAtEpoch = now.Unix()
	}
	if err := ensureSessionExists(ctx, s.store, p.SessionID, p.Project, p.CLITool, now); err != nil {
		return 0, err
	}
	if p.PromptNumber == 0 {
		n, err := s.NextPromptNumber(ctx, p.SessionID)
		if err != nil {
			return 0, err
		}
		p.PromptNumber = n
	}

	const query = `
		INSERT INTO user_prompts
		(session_id, project, cli_tool, prompt_number, prompt_text, created_at_epoch)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id, prompt_number) DO UPDATE SET prompt_text = excluded.prompt_text
		RETURNING id
	`
	err := s.store.QueryRowContext(ctx, query,
		p.SessionID, p.Project, string(p.CLITool), p.PromptNumber, p.PromptText, p.CreatedAtEpoch,
	).Scan(&p.ID)
	return p.ID, err
}

// GetPromptsBySession returns the prompts of a session in order.
func (s *PromptStore) GetPromptsBySession(ctx context.Context, sessionID string) ([]*models.UserPrompt, error) {
	const query = `
		SELECT id, session_id, project, cli_tool, prompt_number, prompt_text, created_at_epoch
		FROM user_prompts
		WHERE session_id = ?
		ORDER BY prompt_number ASC
	`
	rows, err := s.store.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var prompts []*models.UserPrompt
	for rows.Next() {
		var p models.UserPrompt
		var cli string
		if err := rows.Scan(&p.ID, &p.SessionID, &p.Project, &cli, &p.PromptNumber, &p.PromptText, &p.CreatedAtEpoch); err != nil {
			return nil, err
		}
		p.CLITool = models.CLITool(cli)
		prompts = append(prompts, &p)
	}
	return prompts, rows.Err()
}

// NextPromptNumber returns the number the next prompt of the session should use.
func (s *PromptStore) NextPromptNumber(ctx context.Context, sessionID string) (int, error) {
	const query = `SELECT COALESCE(MAX(prompt_number), 0) + 1 FROM user_prompts WHERE session_id = ?`
	var n int
	err := s.store.QueryRowContext(ctx, query, sessionID).Scan(&n)
	return n, err
}
