package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/GoSecreto/UniMem/internal/search"
	"github.com/GoSecreto/UniMem/pkg/models"
)

const observationColumns = `o.id, o.session_id, o.project, o.cli_tool, o.type, o.title, o.subtitle,
	o.narrative, o.facts, o.concepts, o.files_read, o.files_modified, o.prompt_number,
	o.discovery_tokens, o.created_at, o.created_at_epoch`

// ObservationStore provides observation-related database operations.
type ObservationStore struct {
	store *Store
	now   func() time.Time
}

// NewObservationStore creates a new observation store.
func NewObservationStore(store *Store) *ObservationStore {
	return &ObservationStore{store: store, now: time.Now}
}

// SaveObservation appends an observation and returns its id.
func (s *ObservationStore) SaveObservation(ctx context.Context, obs *models.Observation) (int64, error) {
	now := s.now()
	if obs.CreatedAtEpoch == 0 {
		obs.CreatedAt = now.UTC().Format(time.RFC3339)
		obs.CreatedAtEpoch = now.Unix()
	}
	if !obs.Type.Valid() {
		obs.Type = models.ObsTypeDiscovery
	}

	if err := ensureSessionExists(ctx, s.store, obs.SessionID, obs.Project, obs.CLITool, now); err != nil {
		return 0, err
	}

	const query = `
		INSERT INTO observations
		(session_id, project, cli_tool, type, title, subtitle, narrative, facts, concepts,
		 files_read, files_modified, prompt_number, discovery_tokens, created_at, created_at_epoch)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := s.store.ExecContext(ctx, query,
		obs.SessionID, obs.Project, string(obs.CLITool), string(obs.Type),
		obs.Title, obs.Subtitle, obs.Narrative,
		obs.Facts, obs.Concepts, obs.FilesRead, obs.FilesModified,
		obs.PromptNumber, obs.DiscoveryTokens, obs.CreatedAt, obs.CreatedAtEpoch,
	)
	if err != nil {
		return 0, err
	}
	obs.ID, err = result.LastInsertId()
	return obs.ID, err
}

// GetObservationsBySession returns up to limit observations of a session, newest first.
func (s *ObservationStore) GetObservationsBySession(ctx context.Context, sessionID string, limit int) ([]*models.Observation, error) {
	const query = `SELECT ` + observationColumns + ` FROM observations o
		WHERE o.session_id = ?
		ORDER BY o.created_at_epoch DESC, o.id DESC
		LIMIT ?`
	return s.query(ctx, query, sessionID, clampLimit(limit, 50))
}

// GetObservationsByProject returns up to limit observations of a project, newest first.
func (s *ObservationStore) GetObservationsByProject(ctx context.Context, project string, limit int) ([]*models.Observation, error) {
	const query = `SELECT ` + observationColumns + ` FROM observations o
		WHERE o.project = ?
		ORDER BY o.created_at_epoch DESC, o.id DESC
		LIMIT ?`
	return s.query(ctx, query, project, clampLimit(limit, 50))
}

// CountObservations returns the number of observations of a project.
func (s *ObservationStore) CountObservations(ctx context.Context, project string) (int64, error) {
	const query = `SELECT COUNT(*) FROM observations WHERE project = ?`
	var n int64
	err := s.store.QueryRowContext(ctx, query, project).Scan(&n)
	return n, err
}

// CountSessionObservations returns the number of observations of a session.
func (s *ObservationStore) CountSessionObservations(ctx context.Context, sessionID string) (int64, error) {
	const query = `SELECT COUNT(*) FROM observations WHERE session_id = ?`
	var n int64
	err := s.store.QueryRowContext(ctx, query, sessionID).Scan(&n)
	return n, err
}

// GetTimeline returns a chronological window around anchorID: up to before rows
// at or before the anchor (the anchor included) followed by up to after rows
// strictly after it.
func (s *ObservationStore) GetTimeline(ctx context.Context, project string, anchorID int64, before, after int) ([]*models.Observation, error) {
	var anchorEpoch int64
	err := s.store.QueryRowContext(ctx,
		`SELECT created_at_epoch FROM observations WHERE id = ? AND project = ?`,
		anchorID, project,
	).Scan(&anchorEpoch)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var window []*models.Observation
	if before > 0 {
		const beforeQuery = `SELECT ` + observationColumns + ` FROM observations o
			WHERE o.project = ?
			  AND (o.created_at_epoch < ? OR (o.created_at_epoch = ? AND o.id <= ?))
			ORDER BY o.created_at_epoch DESC, o.id DESC
			LIMIT ?`
		rows, err := s.query(ctx, beforeQuery, project, anchorEpoch, anchorEpoch, anchorID, before)
		if err != nil {
			return nil, err
		}
		for i := len(rows) - 1; i >= 0; i-- {
			window = append(window, rows[i])
		}
	}
	if after > 0 {
		const afterQuery = `SELECT ` + observationColumns + ` FROM observations o
			WHERE o.project = ?
			  AND (o.created_at_epoch > ? OR (o.created_at_epoch = ? AND o.id > ?))
			ORDER BY o.created_at_epoch ASC, o.id ASC
			LIMIT ?`
		rows, err := s.query(ctx, afterQuery, project, anchorEpoch, anchorEpoch, anchorID, after)
		if err != nil {
			return nil, err
		}
		window = append(window, rows...)
	}
	return window, nil
}

// SearchObservations runs a lexical search. An empty query returns the most
// recent observations. Index errors fall back to substring matching and are
// never returned to the caller.
func (s *ObservationStore) SearchObservations(ctx context.Context, q models.ObservationQuery) ([]*models.Observation, error) {
	limit := clampLimit(q.Limit, 20)
	filter, args := observationFilter(q)

	raw := strings.TrimSpace(q.Query)
	if raw == "" {
		query := `SELECT ` + observationColumns + ` FROM observations o WHERE 1=1` + filter +
			` ORDER BY o.created_at_epoch DESC, o.id DESC LIMIT ?`
		return s.query(ctx, query, append(args, limit)...)
	}

	if match := search.Sanitize(raw); match != "" {
		query := `SELECT ` + observationColumns + ` FROM observations o
			JOIN observations_fts ON o.id = observations_fts.rowid
			WHERE observations_fts MATCH ?` + filter + `
			ORDER BY observations_fts.rank, o.created_at_epoch DESC
			LIMIT ?`
		ftsArgs := append([]interface{}{match}, args...)
		results, err := s.query(ctx, query, append(ftsArgs, limit)...)
		if err == nil && len(results) > 0 {
			return results, nil
		}
		if err != nil {
			log.Debug().Err(err).Str("query", raw).Msg("FTS search failed, falling back to LIKE")
		}
	}

	return s.searchLike(ctx, raw, filter, args, limit)
}

func (s *ObservationStore) searchLike(ctx context.Context, raw, filter string, args []interface{}, limit int) ([]*models.Observation, error) {
	pattern := "%" + raw + "%"
	query := `SELECT ` + observationColumns + ` FROM observations o
		WHERE (o.title LIKE ? OR o.narrative LIKE ?)` + filter + `
		ORDER BY o.created_at_epoch DESC, o.id DESC
		LIMIT ?`
	likeArgs := append([]interface{}{pattern, pattern}, args...)
	return s.query(ctx, query, append(likeArgs, limit)...)
}

func observationFilter(q models.ObservationQuery) (string, []interface{}) {
	var b strings.Builder
	var args []interface{}
	if q.Project != "" {
		b.WriteString(" AND o.project = ?")
		args = append(args, q.Project)
	}
	if q.CLITool != "" {
		b.WriteString(" AND o.cli_tool = ?")
		args = append(args, string(q.CLITool))
	}
	return b.String(), args
}

func (s *ObservationStore) query(ctx context.Context, query string, args ...interface{}) ([]*models.Observation, error) {
	rows, err := s.store.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanObservationRows(rows)
}

func scanObservation(scanner rowScanner) (*models.Observation, error) {
	var obs models.Observation
	var cli, typ string
	if err := scanner.Scan(
		&obs.ID, &obs.SessionID, &obs.Project, &cli, &typ,
		&obs.Title, &obs.Subtitle, &obs.Narrative,
		&obs.Facts, &obs.Concepts, &obs.FilesRead, &obs.FilesModified,
		&obs.PromptNumber, &obs.DiscoveryTokens, &obs.CreatedAt, &obs.CreatedAtEpoch,
	); err != nil {
		return nil, err
	}
	obs.CLITool = models.CLITool(cli)
	obs.Type = models.ObservationType(typ)
	return &obs, nil
}

func scanObservationRows(rows *sql.Rows) ([]*models.Observation, error) {
	var observations []*models.Observation
	for rows.Next() {
		obs, err := scanObservation(rows)
		if err != nil {
			return nil, err
		}
		observations = append(observations, obs)
	}
	return observations, rows.Err()
}
