// Package main is the entry point for the Takagi OIDC bridge server.
package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/sakif/takagi/internal/config"
	"github.com/sakif/takagi/internal/server"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	port := 8080
	if portStr := os.Getenv("PORT"); portStr != "" {
		port, err = strconv.Atoi(portStr)
		if err != nil {
			logger.Error("invalid PORT value", slog.String("value", portStr))
			os.Exit(1)
		}
	}

	dataDir := os.Getenv("TAKAGI_DATA_DIR")
	if dataDir == "" {
		dataDir = "data/keys"
	}
	dataDir, _ = filepath.Abs(dataDir)

	srv, err := server.New(cfg, dataDir, port, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
