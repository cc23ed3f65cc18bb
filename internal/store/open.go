package store

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm/logger"

	"github.com/GoSecreto/UniMem/internal/config"
	pgstore "github.com/GoSecreto/UniMem/internal/db/gorm"
	"github.com/GoSecreto/UniMem/internal/db/sqlite"
)

// ErrUnknownBackend is returned by Open for an unsupported backend name.
var ErrUnknownBackend = errors.New("unknown store backend")

// Open connects the backend selected by cfg.StoreBackend.
func Open(cfg *config.Config) (Store, error) {
	switch cfg.StoreBackend {
	case config.BackendSQLite, "":
		path := cfg.DBPath
		if path == "" {
			path = config.DBPath()
		}
		log.Info().Str("backend", "sqlite").Str("path", path).Msg("Opening store")
		mem, err := sqlite.Open(sqlite.StoreConfig{Path: path, MaxConns: cfg.MaxConns, WALMode: true})
		if err != nil {
			return nil, err
		}
		return mem, nil
	case config.BackendPostgres:
		log.Info().Str("backend", "postgres").Msg("Opening store")
		mem, err := pgstore.Open(pgstore.Config{DSN: cfg.PostgresDSN, MaxConns: cfg.MaxConns, LogLevel: logger.Silent})
		if err != nil {
			return nil, err
		}
		return mem, nil
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownBackend, cfg.StoreBackend)
	}
}
