package gorm

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/GoSecreto/UniMem/internal/search"
	"github.com/GoSecreto/UniMem/pkg/models"
)

// ObservationStore provides observation-related database operations using GORM.
type ObservationStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewObservationStore creates a new observation store.
func NewObservationStore(store *Store) *ObservationStore {
	return &ObservationStore{db: store.DB, now: time.Now}
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
	if err := ensureSessionExists(ctx, s.db, obs.SessionID, obs.Project, obs.CLITool, now); err != nil {
		return 0, err
	}

	row := &Observation{
		SessionID:       obs.SessionID,
		Project:         obs.Project,
		CLITool:         string(obs.CLITool),
		Type:            string(obs.Type),
		Title:           obs.Title,
		Subtitle:        obs.Subtitle,
		Narrative:       obs.Narrative,
		Facts:           obs.Facts,
		Concepts:        obs.Concepts,
		FilesRead:       obs.FilesRead,
		FilesModified:   obs.FilesModified,
		PromptNumber:    obs.PromptNumber,
		DiscoveryTokens: obs.DiscoveryTokens,
		CreatedAt:       obs.CreatedAt,
		CreatedAtEpoch:  obs.CreatedAtEpoch,
	}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return 0, err
	}
	obs.ID = row.ID
	return row.ID, nil
}

// GetObservationsBySession returns up to limit observations of a session, newest first.
func (s *ObservationStore) GetObservationsBySession(ctx context.Context, sessionID string, limit int) ([]*models.Observation, error) {
	return s.find(s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at_epoch DESC, id DESC").
		Limit(clampLimit(limit, 50)))
}

// GetObservationsByProject returns up to limit observations of a project, newest first.
func (s *ObservationStore) GetObservationsByProject(ctx context.Context, project string, limit int) ([]*models.Observation, error) {
	return s.find(s.db.WithContext(ctx).
		Where("project = ?", project).
		Order("created_at_epoch DESC, id DESC").
		Limit(clampLimit(limit, 50)))
}

// CountObservations returns the number of observations of a project.
func (s *ObservationStore) CountObservations(ctx context.Context, project string) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&Observation{}).Where("project = ?", project).Count(&n).Error
	return n, err
}

// CountSessionObservations returns the number of observations of a session.
func (s *ObservationStore) CountSessionObservations(ctx context.Context, sessionID string) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&Observation{}).Where("session_id = ?", sessionID).Count(&n).Error
	return n, err
}

// GetTimeline returns a chronological window around anchorID.
func (s *ObservationStore) GetTimeline(ctx context.Context, project string, anchorID int64, before, after int) ([]*models.Observation, error) {
	var anchor Observation
	err := s.db.WithContext(ctx).Where("id = ? AND project = ?", anchorID, project).Take(&anchor).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	epoch := anchor.CreatedAtEpoch

	var window []*models.Observation
	if before > 0 {
		rows, err := s.find(s.db.WithContext(ctx).
			Where("project = ?", project).
			Where("created_at_epoch < ? OR (created_at_epoch = ? AND id <= ?)", epoch, epoch, anchorID).
			Order("created_at_epoch DESC, id DESC").
			Limit(before))
		if err != nil {
			return nil, err
		}
		for i := len(rows) - 1; i >= 0; i-- {
			window = append(window, rows[i])
		}
	}
	if after > 0 {
		rows, err := s.find(s.db.WithContext(ctx).
			Where("project = ?", project).
			Where("created_at_epoch > ? OR (created_at_epoch = ? AND id > ?)", epoch, epoch, anchorID).
			Order("created_at_epoch ASC, id ASC").
			Limit(after))
		if err != nil {
			return nil, err
		}
		window = append(window, rows...)
	}
	return window, nil
}

// SearchObservations runs a lexical search over title, subtitle and narrative.
// An empty query returns the most recent observations. Search errors fall back
// to ILIKE matching and are never returned to the caller.
func (s *ObservationStore) SearchObservations(ctx context.Context, q models.ObservationQuery) ([]*models.Observation, error) {
	limit := clampLimit(q.Limit, 20)
	base := func() *gorm.DB {
		tx := s.db.WithContext(ctx).Model(&Observation{})
		if q.Project != "" {
			tx = tx.Where("project = ?", q.Project)
		}
		if q.CLITool != "" {
			tx = tx.Where("cli_tool = ?", string(q.CLITool))
		}
		return tx.Limit(limit)
	}

	raw := strings.TrimSpace(q.Query)
	if raw == "" {
		return s.find(base().Order("created_at_epoch DESC, id DESC"))
	}

	if terms := search.Plain(raw); terms != "" {
		results, err := s.find(base().
			Where(searchVector+" @@ plainto_tsquery('simple', ?)", terms).
			Order(gorm.Expr("ts_rank("+searchVector+", plainto_tsquery('simple', ?)) DESC, created_at_epoch DESC", terms)))
		if err == nil && len(results) > 0 {
			return results, nil
		}
		if err != nil {
			log.Debug().Err(err).Str("query", raw).Msg("Full-text search failed, falling back to ILIKE")
		}
	}

	pattern := "%" + escapeLike(raw) + "%"
	return s.find(base().
		Where("title ILIKE ? OR narrative ILIKE ?", pattern, pattern).
		Order("created_at_epoch DESC, id DESC"))
}

func (s *ObservationStore) find(q *gorm.DB) ([]*models.Observation, error) {
	var rows []Observation
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return toModelObservations(rows), nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
