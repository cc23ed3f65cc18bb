package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

type migration struct {
	version int
	name    string
	stmts   []string
}

var migrations = []migration{
	{
		version: 1,
		name:    "core_tables",
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS sessions (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				session_id TEXT NOT NULL UNIQUE,
				project TEXT NOT NULL,
				cli_tool TEXT NOT NULL,
				cli_version TEXT,
				status TEXT NOT NULL DEFAULT 'active'
					CHECK (status IN ('active', 'paused', 'completed', 'rate_limited')),
				pause_reason TEXT,
				parent_session_id TEXT,
				user_prompt TEXT,
				created_at TEXT NOT NULL,
				created_at_epoch INTEGER NOT NULL,
				updated_at_epoch INTEGER,
				completed_at_epoch INTEGER
			)`,
			`CREATE INDEX IF NOT EXISTS idx_sessions_project_created ON sessions(project, created_at_epoch DESC)`,

			`CREATE TABLE IF NOT EXISTS observations (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				session_id TEXT NOT NULL REFERENCES sessions(session_id),
				project TEXT NOT NULL,
				cli_tool TEXT NOT NULL,
				type TEXT NOT NULL,
				title TEXT,
				subtitle TEXT,
				narrative TEXT,
				facts TEXT NOT NULL DEFAULT '[]',
				concepts TEXT NOT NULL DEFAULT '[]',
				files_read TEXT NOT NULL DEFAULT '[]',
				files_modified TEXT NOT NULL DEFAULT '[]',
				prompt_number INTEGER,
				discovery_tokens INTEGER NOT NULL DEFAULT 0,
				created_at TEXT NOT NULL,
				created_at_epoch INTEGER NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_observations_project_created ON observations(project, created_at_epoch DESC, id DESC)`,
			`CREATE INDEX IF NOT EXISTS idx_observations_session ON observations(session_id, created_at_epoch DESC)`,

			`CREATE TABLE IF NOT EXISTS session_summaries (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				session_id TEXT NOT NULL UNIQUE REFERENCES sessions(session_id),
				project TEXT NOT NULL,
				cli_tool TEXT NOT NULL,
				request TEXT,
				investigated TEXT,
				learned TEXT,
				completed TEXT,
				next_steps TEXT,
				notes TEXT,
				files_read TEXT NOT NULL DEFAULT '[]',
				files_edited TEXT NOT NULL DEFAULT '[]',
				discovery_tokens INTEGER NOT NULL DEFAULT 0,
				created_at TEXT NOT NULL,
				created_at_epoch INTEGER NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_summaries_project_created ON session_summaries(project, created_at_epoch DESC)`,

			`CREATE TABLE IF NOT EXISTS handoffs (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				project TEXT NOT NULL,
				from_session_id TEXT NOT NULL REFERENCES sessions(session_id),
				from_cli TEXT NOT NULL,
				to_session_id TEXT,
				to_cli TEXT,
				state_snapshot TEXT NOT NULL,
				reason TEXT NOT NULL
					CHECK (reason IN ('rate_limit', 'token_exhausted', 'preference', 'manual')),
				created_at_epoch INTEGER NOT NULL,
				picked_up_at_epoch INTEGER
			)`,
			`CREATE INDEX IF NOT EXISTS idx_handoffs_project_created ON handoffs(project, created_at_epoch DESC)`,

			`CREATE TABLE IF NOT EXISTS user_prompts (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				session_id TEXT NOT NULL REFERENCES sessions(session_id),
				project TEXT NOT NULL,
				cli_tool TEXT NOT NULL,
				prompt_number INTEGER NOT NULL,
				prompt_text TEXT NOT NULL,
				created_at_epoch INTEGER NOT NULL,
				UNIQUE (session_id, prompt_number)
			)`,
		},
	},
	{
		version: 2,
		name:    "observations_fts",
		stmts: []string{
			`CREATE VIRTUAL TABLE IF NOT EXISTS observations_fts USING fts5(
				title, subtitle, narrative,
				content='observations', content_rowid='id'
			)`,
			`CREATE TRIGGER IF NOT EXISTS observations_ai AFTER INSERT ON observations BEGIN
				INSERT INTO observations_fts(rowid, title, subtitle, narrative)
				VALUES (new.id, new.title, new.subtitle, new.narrative);
			END`,
			`CREATE TRIGGER IF NOT EXISTS observations_ad AFTER DELETE ON observations BEGIN
				INSERT INTO observations_fts(observations_fts, rowid, title, subtitle, narrative)
				VALUES ('delete', old.id, old.title, old.subtitle, old.narrative);
			END`,
			`CREATE TRIGGER IF NOT EXISTS observations_au AFTER UPDATE ON observations BEGIN
				INSERT INTO observations_fts(observations_fts, rowid, title, subtitle, narrative)
				VALUES ('delete', old.id, old.title, old.subtitle, old.narrative);
				INSERT INTO observations_fts(rowid, title, subtitle, narrative)
				VALUES (new.id, new.title, new.subtitle, new.narrative);
			END`,
		},
	},
	{
		version: 3,
		name:    "one_pending_handoff_per_project",
		stmts: []string{
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_handoffs_one_pending
				ON handoffs(project) WHERE picked_up_at_epoch IS NULL`,
		},
	},
}

// migrate applies every migration newer than the recorded schema version.
func migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at_epoch INTEGER NOT NULL
	)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	var current int
	if err := db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		for _, stmt := range m.stmts {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
			}
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO schema_migrations (version, name, applied_at_epoch) VALUES (?, ?, ?)`,
			m.version, m.name, time.Now().Unix(),
		); err != nil {
			_ = tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		log.Debug().Int("version", m.version).Str("name", m.name).Msg("Applied migration")
	}
	return nil
}
