// Package worker runs the long-lived unimem daemon: the hook receiver, the
// query API, the SSE stream and the dashboard, plus the gRPC health service
// on the same port.
package worker

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
	"github.com/soheilhy/cmux"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/GoSecreto/UniMem/internal/app"
	"github.com/GoSecreto/UniMem/internal/config"
	"github.com/GoSecreto/UniMem/internal/continuity"
	"github.com/GoSecreto/UniMem/internal/store"
	"github.com/GoSecreto/UniMem/internal/watcher"
	"github.com/GoSecreto/UniMem/internal/worker/session"
	"github.com/GoSecreto/UniMem/internal/worker/sse"
)

// ErrRestartRequested is returned by Run when a watched file changed and the
// process should exit so the next hook starts a worker with fresh state.
var ErrRestartRequested = errors.New("worker restart requested")

const (
	shutdownTimeout = 5 * time.Second
	cleanupInterval = 10 * time.Minute
)

// Service is the worker daemon.
type Service struct {
	version        string
	config         *config.Config
	app            *app.App
	store          store.Store
	engine         *continuity.Engine
	sessionManager *session.Manager
	sseBroadcaster *sse.Broadcaster
	metrics        *Metrics
	router         *chi.Mux

	server     *http.Server
	grpcServer *grpc.Server
	health     *health.Server
	listener   net.Listener
	watcher    *watcher.Watcher

	ctx       context.Context
	cancel    context.CancelFunc
	startTime time.Time
	ready     atomic.Bool
	restart   atomic.Bool
	stopOnce  sync.Once
}

// NewService wires a worker around a.
func NewService(a *app.App, version string) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		version:        version,
		config:         a.Config,
		app:            a,
		store:          a.Store,
		engine:         a.Engine,
		sessionManager: session.NewManager(session.DefaultIdleTimeout),
		sseBroadcaster: sse.NewBroadcaster(),
		metrics:        NewMetrics(),
		router:         chi.NewRouter(),
		grpcServer:     grpc.NewServer(),
		health:         health.NewServer(),
		ctx:            ctx,
		cancel:         cancel,
		startTime:      time.Now(),
	}
	healthpb.RegisterHealthServer(s.grpcServer, s.health)
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)

	s.sessionManager.SetOnSessionCreated(func(id string) {
		sess := s.sessionManager.GetSession(id)
		if sess == nil {
			return
		}
		s.sseBroadcaster.Publish(sse.Event{
			Type: sse.EventSessionStarted, Project: sess.Project, SessionID: id,
			Data: map[string]string{"cli_tool": string(sess.CLITool)},
		})
	})
	s.sessionManager.SetOnSessionDeleted(func(id string) {
		s.sseBroadcaster.Publish(sse.Event{Type: sse.EventSessionEnded, SessionID: id})
	})

	s.setupRoutes()
	return s
}

func (s *Service) setupRoutes() {
	r := s.router
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/api/health", s.handleHealth)
	r.Get("/api/version", s.handleVersion)
	r.Get("/api/ready", s.handleReady)
	r.Get("/", serveIndex)
	r.Get("/assets/*", serveAssets)

	r.Group(func(r chi.Router) {
		r.Use(s.requireReady)

		r.Post("/api/hooks/{hookType}", s.handleHook)

		r.Get("/api/search", s.handleSearch)
		r.Get("/api/projects", s.handleProjects)
		r.Get("/api/sessions", s.handleSessions)
		r.Get("/api/observations", s.handleObservations)
		r.Get("/api/timeline", s.handleTimeline)
		r.Get("/api/summaries", s.handleSummaries)
		r.Get("/api/handoffs", s.handleHandoffs)
		r.Post("/api/handoffs", s.handleCreateHandoff)
		r.Get("/api/handoffs/pending", s.handlePendingHandoff)
		r.Get("/api/resume", s.handleResume)
		r.Get("/api/status", s.handleStatus)
		r.Get("/api/events", s.sseBroadcaster.HandleSSE)
	})
}

// requireReady answers 503 until the service has finished starting.
func (s *Service) requireReady(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.ready.Load() {
			writeError(w, http.StatusServiceUnavailable, "service not ready")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}

// Start listens on 127.0.0.1 at the configured port and serves in the background.
func (s *Service) Start() error {
	addr := fmt.Sprintf("127.0.0.1:%d", s.config.WorkerPort)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(lis)
}

// Serve splits lis between gRPC (HTTP/2 with content-type application/grpc)
// and HTTP, then marks the service ready.
func (s *Service) Serve(lis net.Listener) error {
	s.listener = lis
	m := cmux.New(lis)
	grpcL := m.MatchWithWriters(cmux.HTTP2MatchHeaderFieldSendSettings("content-type", "application/grpc"))
	httpL := m.Match(cmux.Any())

	s.server = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.grpcServer.Serve(grpcL); err != nil && !isClosed(err) {
			log.Error().Err(err).Msg("gRPC server stopped")
		}
	}()
	go func() {
		if err := s.server.Serve(httpL); err != nil && !isClosed(err) {
			log.Error().Err(err).Msg("HTTP server stopped")
		}
	}()
	go func() {
		if err := m.Serve(); err != nil && !isClosed(err) {
			log.Error().Err(err).Msg("Connection multiplexer stopped")
		}
	}()

	s.sessionManager.Start(cleanupInterval)
	s.startWatcher()

	s.ready.Store(true)
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	log.Info().
		Str("addr", lis.Addr().String()).
		Str("version", s.version).
		Str("backend", string(s.config.StoreBackend)).
		Msg("Worker started")
	return nil
}

// Run starts the service and blocks until ctx is cancelled or a restart is
// requested, then shuts down.
func (s *Service) Run(ctx context.Context) error {
	if err := s.Start(); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
	case <-s.ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("Unclean shutdown")
	}
	if s.restart.Load() {
		return ErrRestartRequested
	}
	return nil
}

// Shutdown stops serving. It is safe to call more than once.
func (s *Service) Shutdown(ctx context.Context) error {
	var err error
	s.stopOnce.Do(func() {
		s.ready.Store(false)
		s.health.Shutdown()
		if s.watcher != nil {
			_ = s.watcher.Stop()
		}
		s.sessionManager.Shutdown()
		if s.server != nil {
			err = s.server.Shutdown(ctx)
		}
		s.grpcServer.Stop()
		if s.listener != nil {
			_ = s.listener.Close()
		}
		s.cancel()
		log.Info().Msg("Worker stopped")
	})
	return err
}

// requestRestart makes Run return ErrRestartRequested.
func (s *Service) requestRestart(reason string) {
	if s.restart.Swap(true) {
		return
	}
	log.Warn().Str("reason", reason).Msg("Restarting worker")
	s.cancel()
}

// startWatcher restarts the worker when settings or the exit-reason policy
// change, or when the SQLite database is deleted.
func (s *Service) startWatcher() {
	settings := config.SettingsPath()
	policyPath := config.ExitPolicyPath()
	var dbPath string
	if s.config.StoreBackend == config.BackendSQLite || s.config.StoreBackend == "" {
		dbPath = filepath.Clean(s.config.DBPath)
	}

	w, err := watcher.New(func(c watcher.Change) {
		if c.Path == dbPath && c.Kind != watcher.Removed {
			return
		}
		s.requestRestart(fmt.Sprintf("%s %s", c.Path, c.Kind))
	}, settings, policyPath, dbPath)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create file watcher")
		return
	}
	if err := w.Start(); err != nil {
		log.Warn().Err(err).Msg("Failed to start file watcher")
		return
	}
	s.watcher = w
}

func isClosed(err error) bool {
	return errors.Is(err, net.ErrClosed) ||
		errors.Is(err, http.ErrServerClosed) ||
		errors.Is(err, grpc.ErrServerStopped) ||
		errors.Is(err, cmux.ErrListenerClosed)
}
