// Package main is the entry point for the Photalabs server. It stays
// minimal: read configuration, build the logger, start the server. All
// actual logic lives in internal packages.
package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/martinbavio/photalabs/internal/config"
	"github.com/martinbavio/photalabs/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	logger := slog.New(handler)

	if dir := filepath.Dir(cfg.DBPath); dir != "." && cfg.DBPath != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.Error("failed to create database directory",
				slog.String("dir", dir),
				slog.String("error", err.Error()),
			)
			os.Exit(1)
		}
	}

	srv, err := server.New(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
