package gorm

import (
	"context"
	"time"
)

// Memory bundles the per-entity GORM stores over one PostgreSQL connection.
type Memory struct {
	*SessionStore
	*ObservationStore
	*SummaryStore
	*HandoffStore
	*PromptStore
	db *Store
}

// Open connects to PostgreSQL and wires every per-entity store.
func Open(cfg Config) (*Memory, error) {
	store, err := NewStore(cfg)
	if err != nil {
		return nil, err
	}
	return NewMemory(store), nil
}

// NewMemory wires the per-entity stores to an open Store.
func NewMemory(store *Store) *Memory {
	return &Memory{
		SessionStore:     NewSessionStore(store),
		ObservationStore: NewObservationStore(store),
		SummaryStore:     NewSummaryStore(store),
		HandoffStore:     NewHandoffStore(store),
		PromptStore:      NewPromptStore(store),
		db:               store,
	}
}

// SetClock overrides the time source of every per-entity store.
func (m *Memory) SetClock(now func() time.Time) {
	m.SessionStore.now = now
	m.ObservationStore.now = now
	m.SummaryStore.now = now
	m.HandoffStore.now = now
	m.PromptStore.now = now
}

// Ping checks the database connection.
func (m *Memory) Ping(ctx context.Context) error {
	return m.db.Ping(ctx)
}

// Close closes the database.
func (m *Memory) Close() error {
	return m.db.Close()
}
