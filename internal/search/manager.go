package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/GoSecreto/UniMem/pkg/models"
)

// Source is the read side of the store that search needs.
type Source interface {
	SearchObservations(ctx context.Context, q models.ObservationQuery) ([]*models.Observation, error)
	SearchSummaries(ctx context.Context, query, project string, limit int) ([]*models.SessionSummary, error)
}

// Manager fuses lexical search over observations and session summaries.
type Manager struct {
	source Source
}

// NewManager creates a new search manager.
func NewManager(source Source) *Manager {
	return &Manager{source: source}
}

// SearchParams contains parameters for unified search.
type SearchParams struct {
	Query   string
	Project string
	CLITool models.CLITool
	// Type restricts results to "observations" or "summaries"; empty searches both.
	Type   string
	Format string
	Limit  int
}

// SearchResult represents a unified search result.
type SearchResult struct {
	Type      DocType        `json:"type"`
	Title     string         `json:"title,omitempty"`
	Content   string         `json:"content,omitempty"`
	Project   string         `json:"project"`
	CLITool   models.CLITool `json:"cli_tool"`
	SessionID string         `json:"session_id"`
	ObsType   string         `json:"obs_type,omitempty"`
	ID        int64          `json:"id"`
	CreatedAt int64          `json:"created_at_epoch"`
	Score     float64        `json:"score,omitempty"`
}

// UnifiedSearchResult contains the combined search results.
type UnifiedSearchResult struct {
	Query      string         `json:"query,omitempty"`
	Results    []SearchResult `json:"results"`
	TotalCount int            `json:"total_count"`
}

// UnifiedSearch runs the query against every document type and fuses the ranked lists.
func (m *Manager) UnifiedSearch(ctx context.Context, params SearchParams) (*UnifiedSearchResult, error) {
	if params.Limit <= 0 {
		params.Limit = 20
	}
	if params.Limit > 100 {
		params.Limit = 100
	}

	byKey := make(map[ScoredID]SearchResult)
	var lists [][]ScoredID

	if params.Type == "" || params.Type == "observations" {
		obs, err := m.source.SearchObservations(ctx, models.ObservationQuery{
			Query:   params.Query,
			Project: params.Project,
			CLITool: params.CLITool,
			Limit:   params.Limit,
		})
		if err != nil {
			return nil, fmt.Errorf("search observations: %w", err)
		}
		list := make([]ScoredID, 0, len(obs))
		for _, o := range obs {
			id := ScoredID{DocType: DocObservation, ID: o.ID}
			byKey[id] = observationToResult(o, params.Format)
			list = append(list, id)
		}
		lists = append(lists, list)
	}

	// SearchSummaries has no CLI filter; apply it here.
	if params.Type == "" || params.Type == "summaries" {
		sums, err := m.source.SearchSummaries(ctx, params.Query, params.Project, params.Limit)
		if err != nil {
			return nil, fmt.Errorf("search summaries: %w", err)
		}
		list := make([]ScoredID, 0, len(sums))
		for _, s := range sums {
			if params.CLITool != "" && s.CLITool != params.CLITool {
				continue
			}
			id := ScoredID{DocType: DocSummary, ID: s.ID}
			byKey[id] = summaryToResult(s, params.Format)
			list = append(list, id)
		}
		lists = append(lists, list)
	}

	fused := RRF(lists...)
	results := make([]SearchResult, 0, len(fused))
	for _, f := range fused {
		r := byKey[ScoredID{DocType: f.DocType, ID: f.ID}]
		r.Score = f.Score
		results = append(results, r)
	}
	if len(results) > params.Limit {
		results = results[:params.Limit]
	}

	return &UnifiedSearchResult{
		Query:      params.Query,
		Results:    results,
		TotalCount: len(results),
	}, nil
}

func observationToResult(obs *models.Observation, format string) SearchResult {
	result := SearchResult{
		Type:      DocObservation,
		ID:        obs.ID,
		Project:   obs.Project,
		CLITool:   obs.CLITool,
		SessionID: obs.SessionID,
		ObsType:   string(obs.Type),
		Title:     obs.Title.String,
		CreatedAt: obs.CreatedAtEpoch,
	}
	if format == "full" {
		result.Content = obs.Narrative.String
	} else {
		result.Content = truncate(obs.Narrative.String, 200)
	}
	return result
}

func summaryToResult(summary *models.SessionSummary, format string) SearchResult {
	result := SearchResult{
		Type:      DocSummary,
		ID:        summary.ID,
		Project:   summary.Project,
		CLITool:   summary.CLITool,
		SessionID: summary.SessionID,
		Title:     truncate(summary.Request.String, 100),
		CreatedAt: summary.CreatedAtEpoch,
	}
	content := summary.Completed.String
	if content == "" {
		content = summary.Investigated.String
	}
	if format != "full" {
		content = truncate(content, 200)
	}
	result.Content = content
	return result
}

func truncate(s string, maxLen int) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
