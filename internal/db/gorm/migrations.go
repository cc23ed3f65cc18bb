package gorm

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// runMigrations runs all database migrations using gormigrate.
func runMigrations(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "001_core_tables",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&Session{}, &Observation{}, &SessionSummary{}, &Handoff{}, &UserPrompt{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("user_prompts", "handoffs", "session_summaries", "observations", "sessions")
			},
		},
		{
			ID: "002_pending_handoff_index",
			Migrate: func(tx *gorm.DB) error {
				return tx.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_handoffs_one_pending
					ON handoffs(project) WHERE picked_up_at_epoch IS NULL`).Error
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Exec(`DROP INDEX IF EXISTS idx_handoffs_one_pending`).Error
			},
		},
		{
			ID: "003_observations_search_index",
			Migrate: func(tx *gorm.DB) error {
				return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_observations_search
					ON observations USING GIN (` + searchVector + `)`).Error
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Exec(`DROP INDEX IF EXISTS idx_observations_search`).Error
			},
		},
	})
	return m.Migrate()
}

// searchVector is used verbatim by the GIN index and by search queries.
const searchVector = `to_tsvector('simple', coalesce(title, '') || ' ' || coalesce(subtitle, '') || ' ' || coalesce(narrative, ''))`
