package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// testDB opens a fresh file-backed database in a temp dir.
func testDB(t *testing.T) (*sql.DB, string, func()) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := sql.Open("sqlite", DSN(path, true))
	require.NoError(t, err)
	db.SetMaxOpenConns(4)
	return db, path, func() { _ = db.Close() }
}

// createBaseTables applies every migration.
func createBaseTables(t *testing.T, db *sql.DB) {
	t.Helper()
	require.NoError(t, migrate(context.Background(), db))
}

func seedSession(t *testing.T, db *sql.DB, sessionID, project, cli string, epoch int64) {
	t.Helper()
	_, err := db.Exec(`INSERT INTO sessions (session_id, project, cli_tool, status, created_at, created_at_epoch)
		VALUES (?, ?, ?, 'active', ?, ?)`,
		sessionID, project, cli, time.Unix(epoch, 0).UTC().Format(time.RFC3339), epoch)
	require.NoError(t, err)
}

// testMemory returns a migrated Memory with a controllable clock.
func testMemory(t *testing.T) (*Memory, *fakeClock, func()) {
	t.Helper()
	db, _, cleanup := testDB(t)
	createBaseTables(t, db)
	mem := NewMemory(newStoreFromDB(db))
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	mem.SetClock(clock.Now)
	return mem, clock, cleanup
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }
