// Package app assembles the process-wide dependencies of unimem: config,
// store, exit-reason policy, continuity engine, resume builder and search.
// Every entry point (worker, MCP server, CLI) builds exactly one App.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/GoSecreto/UniMem/internal/config"
	"github.com/GoSecreto/UniMem/internal/continuity"
	"github.com/GoSecreto/UniMem/internal/policy"
	"github.com/GoSecreto/UniMem/internal/render"
	"github.com/GoSecreto/UniMem/internal/resume"
	"github.com/GoSecreto/UniMem/internal/search"
	"github.com/GoSecreto/UniMem/internal/store"
	"github.com/GoSecreto/UniMem/pkg/models"
)

// App holds the wired components of one process.
type App struct {
	Config  *config.Config
	Store   store.Store
	Policy  *policy.Table
	Engine  *continuity.Engine
	Builder *resume.Builder
	Search  *search.Manager
	now     func() time.Time
}

// Option configures an App.
type Option func(*App)

// WithClock overrides the time source of every component.
func WithClock(now func() time.Time) Option {
	return func(a *App) { a.now = now }
}

// New opens the configured store and wires the components around it.
func New(cfg *config.Config, opts ...Option) (*App, error) {
	st, err := store.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	a, err := NewWithStore(cfg, st, opts...)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	return a, nil
}

// NewWithStore wires the components around an already open store.
func NewWithStore(cfg *config.Config, st store.Store, opts ...Option) (*App, error) {
	a := &App{Config: cfg, Store: st, now: time.Now}
	for _, opt := range opts {
		opt(a)
	}

	table, err := policy.Load(config.ExitPolicyPath())
	if err != nil {
		return nil, fmt.Errorf("load exit-reason policy: %w", err)
	}
	a.Policy = table

	window := time.Duration(cfg.HandoffDetectMins) * time.Minute
	a.Engine = continuity.NewEngine(st, table,
		continuity.WithClock(a.now),
		continuity.WithDetectWindow(window),
		continuity.WithSummaryEvery(cfg.SummaryEvery),
	)
	a.Builder = resume.NewBuilder(st, window, a.now)
	a.Search = search.NewManager(st)
	return a, nil
}

// Now returns the current time of the App clock.
func (a *App) Now() time.Time {
	return a.now()
}

// Resume builds the resume context of project and renders it. A non-empty cli
// consumes a pending handoff.
func (a *App) Resume(ctx context.Context, project string, cli models.CLITool) (*models.ResumeContext, string, error) {
	return a.ResumeSession(ctx, project, cli, "")
}

// ResumeSession is Resume on behalf of a session that is already registered.
// That session does not count as recent activity of another CLI.
func (a *App) ResumeSession(ctx context.Context, project string, cli models.CLITool, sessionID string) (*models.ResumeContext, string, error) {
	rc, err := a.Builder.Build(ctx, project, cli, sessionID)
	if err != nil {
		return nil, "", fmt.Errorf("build resume context: %w", err)
	}
	md := render.Markdown(rc, render.Options{
		MaxChars:  a.Config.ContextMaxChars,
		MaxRecent: a.Config.ContextObservations,
		Now:       a.now(),
	})
	return rc, md, nil
}

// OpenSession returns the session new work should attach to: the project's
// last session unless it is completed, else a fresh id for cli. With sameCLI
// the last session is only reused when it belongs to cli.
func (a *App) OpenSession(ctx context.Context, project string, cli models.CLITool, sameCLI bool) (string, models.CLITool, error) {
	last, err := a.Store.GetLastActiveSession(ctx, project)
	if err != nil {
		return "", cli, err
	}
	if last != nil && last.Status != models.SessionStatusCompleted && (!sameCLI || last.CLITool == cli) {
		return last.SessionID, last.CLITool, nil
	}
	return models.NewSessionID(cli, a.now()), cli, nil
}

// Close releases the store.
func (a *App) Close() error {
	return a.Store.Close()
}

// SetupLogging configures the global zerolog logger. Console output goes to
// stderr since stdout carries hook and MCP protocol output. When file is
// non-empty, JSON lines are appended to it as well.
func SetupLogging(level string, debug bool, file string) io.Closer {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	if debug {
		lvl = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(lvl)

	console := zerolog.ConsoleWriter{Out: os.Stderr, NoColor: true, TimeFormat: time.RFC3339}
	if file == "" {
		log.Logger = log.Output(console)
		return io.NopCloser(nil)
	}

	if err := os.MkdirAll(filepath.Dir(file), 0o750); err != nil {
		log.Logger = log.Output(console)
		log.Warn().Err(err).Str("path", file).Msg("Log directory unavailable, logging to stderr only")
		return io.NopCloser(nil)
	}
	f, err := os.OpenFile(file, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600) // #nosec G304 -- path comes from config
	if err != nil {
		log.Logger = log.Output(console)
		log.Warn().Err(err).Str("path", file).Msg("Log file unavailable, logging to stderr only")
		return io.NopCloser(nil)
	}
	log.Logger = zerolog.New(zerolog.MultiLevelWriter(console, f)).With().Timestamp().Logger()
	return f
}
