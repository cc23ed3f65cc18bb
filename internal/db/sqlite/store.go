// Package sqlite provides the SQLite persistence backend for unimem.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// StoreConfig holds configuration for the SQLite store.
type StoreConfig struct {
	Path     string
	MaxConns int
	WALMode  bool
}

// Store wraps a database connection with a prepared statement cache.
type Store struct {
	db        *sql.DB
	stmtCache map[string]*sql.Stmt
	mu        sync.RWMutex
}

// connPragmas are applied by the driver to every pooled connection.
var connPragmas = []string{
	"busy_timeout(5000)",
	"foreign_keys(1)",
	"synchronous(NORMAL)",
	"temp_store(MEMORY)",
}

// DSN builds a modernc.org/sqlite DSN for path with the standard pragmas.
func DSN(path string, wal bool) string {
	v := url.Values{}
	for _, p := range connPragmas {
		v.Add("_pragma", p)
	}
	if wal {
		v.Add("_pragma", "journal_mode(WAL)")
	}
	v.Set("_txlock", "immediate")
	return "file:" + path + "?" + v.Encode()
}

// NewStore opens the database at cfg.Path, applies pragmas and runs migrations.
func NewStore(cfg StoreConfig) (*Store, error) {
	if cfg.Path == "" {
		return nil, errors.New("sqlite: empty database path")
	}
	if dir := filepath.Dir(cfg.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", DSN(cfg.Path, cfg.WALMode))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	maxConns := cfg.MaxConns
	if maxConns <= 0 {
		maxConns = 4
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if err := migrate(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, err
	}

	log.Debug().Str("path", cfg.Path).Bool("wal", cfg.WALMode).Msg("SQLite store opened")
	return newStoreFromDB(db), nil
}

func newStoreFromDB(db *sql.DB) *Store {
	return &Store{
		db:        db,
		stmtCache: make(map[string]*sql.Stmt),
	}
}

// GetStmt returns a cached prepared statement, preparing it on first use.
func (s *Store) GetStmt(query string) (*sql.Stmt, error) {
	s.mu.RLock()
	stmt, ok := s.stmtCache[query]
	s.mu.RUnlock()
	if ok {
		return stmt, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if stmt, ok := s.stmtCache[query]; ok {
		return stmt, nil
	}
	stmt, err := s.db.Prepare(query)
	if err != nil {
		return nil, err
	}
	s.stmtCache[query] = stmt
	return stmt, nil
}

// ExecContext executes a query through the statement cache.
func (s *Store) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	stmt, err := s.GetStmt(query)
	if err != nil {
		return nil, err
	}
	return stmt.ExecContext(ctx, args...)
}

// QueryContext runs a query through the statement cache.
func (s *Store) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	stmt, err := s.GetStmt(query)
	if err != nil {
		return nil, err
	}
	return stmt.QueryContext(ctx, args...)
}

// QueryRowContext runs a single-row query through the statement cache.
func (s *Store) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	stmt, err := s.GetStmt(query)
	if err != nil {
		// Let the error surface from Scan.
		return s.db.QueryRowContext(ctx, query, args...)
	}
	return stmt.QueryRowContext(ctx, args...)
}

// WithTx runs fn inside a transaction, rolling back on error.
func (s *Store) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Ping checks the database connection.
func (s *Store) Ping() error {
	return s.db.Ping()
}

// DB returns the underlying connection.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes cached statements and the connection.
func (s *Store) Close() error {
	s.mu.Lock()
	for q, stmt := range s.stmtCache {
		_ = stmt.Close()
		delete(s.stmtCache, q)
	}
	s.mu.Unlock()
	return s.db.Close()
}

// isUniqueViolation reports whether err is a UNIQUE constraint failure.
func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	return false
}
