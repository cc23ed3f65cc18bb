package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// StoreSuite is a test suite for Store operations.
type StoreSuite struct {
	suite.Suite
	db      *sql.DB
	store   *Store
	cleanup func()
}

// SetupTest creates a fresh database before each test.
func (s *StoreSuite) SetupTest() {
	s.db, _, s.cleanup = testDB(s.T())
	createBaseTables(s.T(), s.db)
	s.store = newStoreFromDB(s.db)
}

// TearDownTest cleans up after each test.
func (s *StoreSuite) TearDownTest() {
	if s.cleanup != nil {
		s.cleanup()
	}
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreSuite))
}

// TestGetStmt tests prepared statement caching.
func (s *StoreSuite) TestGetStmt() {
	tests := []struct {
		name    string
		query   string
		wantErr bool
	}{
		{name: "valid simple query", query: "SELECT 1"},
		{name: "valid query with parameter", query: "SELECT * FROM sessions WHERE id = ?"},
		{name: "invalid query syntax", query: "SELECT * FROM nonexistent_table WHERE", wantErr: true},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			stmt, err := s.store.GetStmt(tt.query)
			if tt.wantErr {
				s.Error(err)
				s.Nil(stmt)
				return
			}
			s.NoError(err)
			s.NotNil(stmt)

			stmt2, err := s.store.GetStmt(tt.query)
			s.NoError(err)
			s.Same(stmt, stmt2)
		})
	}
}

func (s *StoreSuite) TestQueryRowContext() {
	ctx := context.Background()
	seedSession(s.T(), s.db, "claude-code-1", "project-a", "claude-code", 100)

	tests := []struct {
		name    string
		args    []interface{}
		wantErr bool
	}{
		{name: "existing session", args: []interface{}{"claude-code-1"}},
		{name: "missing session", args: []interface{}{"nope"}, wantErr: true},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			var id int64
			err := s.store.QueryRowContext(ctx, "SELECT id FROM sessions WHERE session_id = ?", tt.args...).Scan(&id)
			if tt.wantErr {
				s.ErrorIs(err, sql.ErrNoRows)
			} else {
				s.NoError(err)
				s.Greater(id, int64(0))
			}
		})
	}
}

func (s *StoreSuite) TestWithTx_RollsBackOnError() {
	ctx := context.Background()
	err := s.store.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO sessions (session_id, project, cli_tool, created_at, created_at_epoch)
			VALUES ('x', 'p', 'gemini', '', 1)`)
		s.Require().NoError(err)
		return errors.New("abort")
	})
	s.Error(err)

	var n int
	s.Require().NoError(s.db.QueryRow(`SELECT COUNT(*) FROM sessions`).Scan(&n))
	s.Zero(n)
}

func (s *StoreSuite) TestPing() {
	s.NoError(s.store.Ping())
}

func (s *StoreSuite) TestDB() {
	s.Same(s.db, s.store.DB())
}

func (s *StoreSuite) TestClose() {
	db, _, cleanup := testDB(s.T())
	defer cleanup()
	store := newStoreFromDB(db)

	_, err := store.GetStmt("SELECT 1")
	s.NoError(err)
	s.NoError(store.Close())
	s.Error(store.Ping())
}

func (s *StoreSuite) TestConcurrentStmtCache() {
	ctx := context.Background()
	queries := []string{
		"SELECT 1",
		"SELECT 2",
		"SELECT id FROM sessions",
		"SELECT project FROM sessions",
	}

	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		go func(i int) {
			_, _ = s.store.GetStmt(queries[i%len(queries)])
			_, _ = s.store.ExecContext(ctx, "SELECT 1")
			done <- struct{}{}
		}(i)
	}
	for i := 0; i < 10; i++ {
		<-done
	}
}

func (s *StoreSuite) TestMigrateIsIdempotent() {
	s.Require().NoError(migrate(context.Background(), s.db))
	var version int
	s.Require().NoError(s.db.QueryRow(`SELECT MAX(version) FROM schema_migrations`).Scan(&version))
	s.Equal(len(migrations), version)
}

func TestNewStore_OpensAndMigrates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "unimem.db")
	store, err := NewStore(StoreConfig{Path: path, MaxConns: 2, WALMode: true})
	require.NoError(t, err)
	defer store.Close()

	var mode string
	require.NoError(t, store.DB().QueryRow(`PRAGMA journal_mode`).Scan(&mode))
	assert.Equal(t, "wal", mode)

	var fk int
	require.NoError(t, store.DB().QueryRow(`PRAGMA foreign_keys`).Scan(&fk))
	assert.Equal(t, 1, fk)
}

func TestNewStore_EmptyPath(t *testing.T) {
	_, err := NewStore(StoreConfig{})
	assert.Error(t, err)
}
