// Package main provides the MCP server entry point for unimem.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/GoSecreto/UniMem/internal/app"
	"github.com/GoSecreto/UniMem/internal/config"
	"github.com/GoSecreto/UniMem/internal/mcp"
	"github.com/GoSecreto/UniMem/internal/watcher"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	project := flag.String("project", "", "Default project for tool calls that omit one")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	if err := config.EnsureAll(); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure data directories")
	}
	cfg, err := config.Load()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load config, using defaults")
		cfg = config.Default()
	}
	// stdout carries the MCP protocol.
	app.SetupLogging(cfg.LogLevel, *debug, "")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open store")
	}
	defer a.Close()

	w := watchSettings(cancel)
	if w != nil {
		defer w.Stop()
	}

	srv := mcp.New(a, Version, *project)
	log.Info().Str("project", *project).Str("version", Version).Str("backend", string(cfg.StoreBackend)).Msg("Starting MCP server")
	if err := mcp.Serve(ctx, srv, os.Stdin, os.Stdout); err != nil && ctx.Err() == nil {
		log.Error().Err(err).Msg("MCP server error")
		a.Close()
		os.Exit(1)
	}
}

// watchSettings stops the server when settings change so the host CLI
// restarts it with the new configuration.
func watchSettings(stop context.CancelFunc) *watcher.Watcher {
	path := config.SettingsPath()
	w, err := watcher.New(func(c watcher.Change) {
		log.Warn().Str("path", c.Path).Str("change", string(c.Kind)).Msg("Settings changed, exiting for restart")
		stop()
	}, path)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create settings watcher")
		return nil
	}
	if err := w.Start(); err != nil {
		log.Warn().Err(err).Msg("Failed to start settings watcher")
		return nil
	}
	return w
}
