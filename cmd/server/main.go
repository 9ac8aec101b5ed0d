// Package main is the entry point for the medbox server.
//
// main stays minimal: load configuration, build a logger, hand off to
// internal/server. Everything testable lives in the internal packages.
package main

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ofcardoso/medbox/internal/config"
	"github.com/ofcardoso/medbox/internal/server"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if cfg.GoogleClientID == "" || cfg.GoogleClientSecret == "" {
		logger.Warn("GOOGLE_CLIENT_ID / GOOGLE_CLIENT_SECRET not set — Google sign-in will fail")
	}

	// The database directory must exist before SQLite can create the file.
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		logger.Error("failed to create database directory",
			slog.String("dir", filepath.Dir(cfg.DBPath)),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Blocks until SIGINT/SIGTERM.
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
