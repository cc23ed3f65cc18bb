// Package session tracks the CLI sessions the worker is currently serving.
package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/GoSecreto/UniMem/pkg/models"
)

// DefaultIdleTimeout is how long a session may stay silent before it is forgotten.
const DefaultIdleTimeout = 2 * time.Hour

// ActiveSession is the in-memory view of a session the worker has heard from.
type ActiveSession struct {
	SessionID string
	Project   string
	CLITool   models.CLITool
	StartTime time.Time

	lastActivity atomic.Int64
	observations atomic.Int64
	prompts      atomic.Int64
}

// LastActivity returns when the session last produced an event.
func (s *ActiveSession) LastActivity() time.Time {
	return time.Unix(s.lastActivity.Load(), 0)
}

// Observations returns the number of observations counted for the session.
func (s *ActiveSession) Observations() int64 {
	return s.observations.Load()
}

// Prompts returns the number of prompts counted for the session.
func (s *ActiveSession) Prompts() int64 {
	return s.prompts.Load()
}

// SeedObservations sets the observation counter, used when the worker picks
// up a session that already has stored observations.
func (s *ActiveSession) SeedObservations(n int64) {
	s.observations.Store(n)
}

// Manager owns the set of active sessions.
type Manager struct {
	ctx         context.Context
	sessions    map[string]*ActiveSession
	cancel      context.CancelFunc
	onCreated   func(sessionID string)
	onDeleted   func(sessionID string)
	now         func() time.Time
	idleTimeout time.Duration
	mu          sync.RWMutex
}

// NewManager creates a manager. A non-positive idleTimeout uses DefaultIdleTimeout.
func NewManager(idleTimeout time.Duration) *Manager {
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		ctx:         ctx,
		cancel:      cancel,
		sessions:    make(map[string]*ActiveSession),
		now:         time.Now,
		idleTimeout: idleTimeout,
	}
}

// SetOnSessionCreated registers a callback fired when a session is first seen.
func (m *Manager) SetOnSessionCreated(fn func(sessionID string)) {
	m.mu.Lock()
	m.onCreated = fn
	m.mu.Unlock()
}

// SetOnSessionDeleted registers a callback fired when a session is removed.
func (m *Manager) SetOnSessionDeleted(fn func(sessionID string)) {
	m.mu.Lock()
	m.onDeleted = fn
	m.mu.Unlock()
}

// Touch returns the session, creating it when unknown. created reports
// whether this call created it.
func (m *Manager) Touch(sessionID, project string, cli models.CLITool) (sess *ActiveSession, created bool) {
	now := m.now()

	m.mu.Lock()
	sess, ok := m.sessions[sessionID]
	if !ok {
		sess = &ActiveSession{
			SessionID: sessionID,
			Project:   project,
			CLITool:   cli,
			StartTime: now,
		}
		m.sessions[sessionID] = sess
	}
	onCreated := m.onCreated
	m.mu.Unlock()

	sess.lastActivity.Store(now.Unix())
	if !ok {
		log.Debug().Str("session", sessionID).Str("project", project).Str("cli", string(cli)).Msg("Session tracked")
		if onCreated != nil {
			onCreated(sessionID)
		}
	}
	return sess, !ok
}

// RecordObservation bumps the observation counter and returns the new value.
func (m *Manager) RecordObservation(sessionID, project string, cli models.CLITool) int64 {
	sess, _ := m.Touch(sessionID, project, cli)
	return sess.observations.Add(1)
}

// RecordPrompt bumps the prompt counter and returns the new value.
func (m *Manager) RecordPrompt(sessionID, project string, cli models.CLITool) int64 {
	sess, _ := m.Touch(sessionID, project, cli)
	return sess.prompts.Add(1)
}

// GetSession returns the tracked session or nil.
func (m *Manager) GetSession(sessionID string) *ActiveSession {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[sessionID]
}

// GetActiveSessionCount returns the number of tracked sessions.
func (m *Manager) GetActiveSessionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// GetAllSessions returns a snapshot of the tracked sessions.
func (m *Manager) GetAllSessions() []*ActiveSession {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*ActiveSession, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out
}

// GetProjectSessions returns the tracked sessions of project.
func (m *Manager) GetProjectSessions(project string) []*ActiveSession {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*ActiveSession
	for _, s := range m.sessions {
		if s.Project == project {
			out = append(out, s)
		}
	}
	return out
}

// DeleteSession forgets a session. Deleting an unknown session is a no-op.
func (m *Manager) DeleteSession(sessionID string) {
	m.mu.Lock()
	_, ok := m.sessions[sessionID]
	delete(m.sessions, sessionID)
	onDeleted := m.onDeleted
	m.mu.Unlock()

	if ok && onDeleted != nil {
		onDeleted(sessionID)
	}
}

// CleanupIdle forgets sessions that have been silent longer than the idle
// timeout and returns how many were removed.
func (m *Manager) CleanupIdle() int {
	cutoff := m.now().Add(-m.idleTimeout).Unix()

	m.mu.RLock()
	var stale []string
	for id, s := range m.sessions {
		if s.lastActivity.Load() < cutoff {
			stale = append(stale, id)
		}
	}
	m.mu.RUnlock()

	for _, id := range stale {
		m.DeleteSession(id)
	}
	if len(stale) > 0 {
		log.Info().Int("count", len(stale)).Msg("Forgot idle sessions")
	}
	return len(stale)
}

// Start runs the idle cleanup loop until Shutdown.
func (m *Manager) Start(interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-m.ctx.Done():
				return
			case <-ticker.C:
				m.CleanupIdle()
			}
		}
	}()
}

// Shutdown stops the cleanup loop.
func (m *Manager) Shutdown() {
	m.cancel()
}
