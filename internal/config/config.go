// Package config provides configuration management for unimem.
package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/goccy/go-json"
	"github.com/gobwas/glob"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultWorkerPort is the port the worker listens on when nothing overrides it.
	DefaultWorkerPort = 37888

	DefaultContextMaxChars     = 8000
	DefaultContextObservations = 10
	DefaultHandoffDetectMins   = 30
	DefaultSummaryEvery        = 3
	DefaultMaxConns            = 4
	DefaultLogLevel            = "info"

	dataDirName      = ".unimem"
	settingsFileName = "settings.json"
)

// Backend names a persistence backend.
type Backend string

const (
	BackendSQLite   Backend = "sqlite"
	BackendPostgres Backend = "postgres"
)

// DefaultIgnoreFiles are never recorded as touched files.
var DefaultIgnoreFiles = []string{"**/node_modules/**", "**/.git/**", "**/*.lock"}

// Config holds every runtime setting of unimem.
type Config struct {
	StoreBackend        Backend  `json:"UNIMEM_STORE_BACKEND"`
	DBPath              string   `json:"UNIMEM_DB_PATH"`
	PostgresDSN         string   `json:"UNIMEM_POSTGRES_DSN"`
	LogLevel            string   `json:"UNIMEM_LOG_LEVEL"`
	IgnoreFiles         []string `json:"-"`
	WorkerPort          int      `json:"UNIMEM_WORKER_PORT"`
	MaxConns            int      `json:"UNIMEM_MAX_CONNS"`
	ContextMaxChars     int      `json:"UNIMEM_CONTEXT_MAX_CHARS"`
	ContextObservations int      `json:"UNIMEM_CONTEXT_OBSERVATIONS"`
	HandoffDetectMins   int      `json:"UNIMEM_HANDOFF_DETECT_MINUTES"`
	SummaryEvery        int      `json:"UNIMEM_SUMMARY_EVERY"`

	ignore []glob.Glob
}

var (
	global     *Config
	globalOnce sync.Once
)

// DataDir returns ~/.unimem, or UNIMEM_DATA_DIR when set.
func DataDir() string {
	if dir := os.Getenv("UNIMEM_DATA_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, dataDirName)
}

// DBPath returns the default SQLite database path.
func DBPath() string {
	return filepath.Join(DataDir(), "unimem.db")
}

// SettingsPath returns the settings file path.
func SettingsPath() string {
	return filepath.Join(DataDir(), settingsFileName)
}

// LogPath returns the worker log file path.
func LogPath() string {
	return filepath.Join(DataDir(), "logs", "worker.log")
}

// ExitPolicyPath returns the optional exit-reason policy override file.
func ExitPolicyPath() string {
	return filepath.Join(DataDir(), "exit-reasons.yaml")
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := &Config{
		WorkerPort:          DefaultWorkerPort,
		StoreBackend:        BackendSQLite,
		DBPath:              DBPath(),
		MaxConns:            DefaultMaxConns,
		ContextMaxChars:     DefaultContextMaxChars,
		ContextObservations: DefaultContextObservations,
		HandoffDetectMins:   DefaultHandoffDetectMins,
		SummaryEvery:        DefaultSummaryEvery,
		IgnoreFiles:         append([]string(nil), DefaultIgnoreFiles...),
		LogLevel:            DefaultLogLevel,
	}
	cfg.compileIgnore()
	return cfg
}

// settingsFile mirrors settings.json. Pointers distinguish unset keys from zero values.
type settingsFile struct {
	WorkerPort          *int    `json:"UNIMEM_WORKER_PORT"`
	StoreBackend        *string `json:"UNIMEM_STORE_BACKEND"`
	DBPath              *string `json:"UNIMEM_DB_PATH"`
	PostgresDSN         *string `json:"UNIMEM_POSTGRES_DSN"`
	MaxConns            *int    `json:"UNIMEM_MAX_CONNS"`
	ContextMaxChars     *int    `json:"UNIMEM_CONTEXT_MAX_CHARS"`
	ContextObservations *int    `json:"UNIMEM_CONTEXT_OBSERVATIONS"`
	HandoffDetectMins   *int    `json:"UNIMEM_HANDOFF_DETECT_MINUTES"`
	SummaryEvery        *int    `json:"UNIMEM_SUMMARY_EVERY"`
	IgnoreFiles         *string `json:"UNIMEM_IGNORE_FILES"`
	LogLevel            *string `json:"UNIMEM_LOG_LEVEL"`
}

// Load reads settings.json over the defaults and applies environment overrides.
// A missing or malformed settings file yields the defaults.
func Load() (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(SettingsPath())
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		var sf settingsFile
		if err := json.Unmarshal(data, &sf); err != nil {
			log.Warn().Err(err).Str("path", SettingsPath()).Msg("Ignoring malformed settings file")
		} else {
			cfg.apply(&sf)
		}
	}

	cfg.applyEnv()
	cfg.compileIgnore()
	return cfg, nil
}

func (c *Config) apply(sf *settingsFile) {
	setInt(&c.WorkerPort, sf.WorkerPort)
	setInt(&c.MaxConns, sf.MaxConns)
	setInt(&c.ContextMaxChars, sf.ContextMaxChars)
	setInt(&c.ContextObservations, sf.ContextObservations)
	setInt(&c.HandoffDetectMins, sf.HandoffDetectMins)
	setInt(&c.SummaryEvery, sf.SummaryEvery)
	if sf.StoreBackend != nil && *sf.StoreBackend != "" {
		c.StoreBackend = Backend(*sf.StoreBackend)
	}
	setString(&c.DBPath, sf.DBPath)
	setString(&c.PostgresDSN, sf.PostgresDSN)
	setString(&c.LogLevel, sf.LogLevel)
	if sf.IgnoreFiles != nil {
		c.IgnoreFiles = splitTrim(*sf.IgnoreFiles)
	}
}

func (c *Config) applyEnv() {
	if port, ok := envPort(); ok {
		c.WorkerPort = port
	}
	if v := os.Getenv("UNIMEM_STORE_BACKEND"); v != "" {
		c.StoreBackend = Backend(v)
	}
	if v := os.Getenv("UNIMEM_POSTGRES_DSN"); v != "" {
		c.PostgresDSN = v
	}
}

func (c *Config) compileIgnore() {
	c.ignore = c.ignore[:0]
	for _, pattern := range c.IgnoreFiles {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			log.Warn().Err(err).Str("pattern", pattern).Msg("Skipping invalid ignore pattern")
			continue
		}
		c.ignore = append(c.ignore, g)
	}
}

// Ignored reports whether path matches one of the ignore-file patterns.
func (c *Config) Ignored(path string) bool {
	path = filepath.ToSlash(path)
	for _, g := range c.ignore {
		if g.Match(path) {
			return true
		}
	}
	return false
}

// Get returns the process-wide configuration, loading it on first use.
func Get() *Config {
	globalOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			log.Warn().Err(err).Msg("Failed to load settings, using defaults")
			cfg = Default()
		}
		global = cfg
	})
	return global
}

// GetWorkerPort returns UNIMEM_WORKER_PORT when it is a valid port, else the configured port.
func GetWorkerPort() int {
	if port, ok := envPort(); ok {
		return port
	}
	return Get().WorkerPort
}

func envPort() (int, bool) {
	v := os.Getenv("UNIMEM_WORKER_PORT")
	if v == "" {
		return 0, false
	}
	port, err := strconv.Atoi(v)
	if err != nil || port <= 0 || port > 65535 {
		return 0, false
	}
	return port, true
}

// EnsureDataDir creates the data directory.
func EnsureDataDir() error {
	return os.MkdirAll(DataDir(), 0o750)
}

// EnsureSettings writes a default settings file when none exists.
func EnsureSettings() error {
	path := SettingsPath()
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	d := Default()
	data, err := json.MarshalIndent(map[string]interface{}{
		"UNIMEM_WORKER_PORT":            d.WorkerPort,
		"UNIMEM_STORE_BACKEND":          string(d.StoreBackend),
		"UNIMEM_CONTEXT_MAX_CHARS":      d.ContextMaxChars,
		"UNIMEM_CONTEXT_OBSERVATIONS":   d.ContextObservations,
		"UNIMEM_HANDOFF_DETECT_MINUTES": d.HandoffDetectMins,
		"UNIMEM_SUMMARY_EVERY":          d.SummaryEvery,
		"UNIMEM_IGNORE_FILES":           strings.Join(d.IgnoreFiles, ","),
		"UNIMEM_LOG_LEVEL":              d.LogLevel,
	}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// EnsureAll creates the data directory, its logs directory and the settings file.
func EnsureAll() error {
	if err := EnsureDataDir(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(LogPath()), 0o750); err != nil {
		return err
	}
	return EnsureSettings()
}

func setInt(dst *int, v *int) {
	if v != nil && *v > 0 {
		*dst = *v
	}
}

func setString(dst *string, v *string) {
	if v != nil && *v != "" {
		*dst = *v
	}
}

func splitTrim(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
