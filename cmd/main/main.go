package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/CTAG07/linetmpl/pkg/store"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	baseLogger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if err := run(baseLogger); err != nil {
		baseLogger.Error("An error occurred during server run, shutting down.", "error", err)
		os.Exit(1)
	}

	baseLogger.Info("linetmpl has shut down.")
}

func run(baseLogger *slog.Logger) error {

	config, err := LoadConfig("./config.json")
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	var logLevel slog.Level
	switch strings.ToLower(config.LogLevel) {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	logger.Info("Starting linetmpl...", "version", Version, "commit", Commit, "build_date", BuildDate)

	if err = os.MkdirAll(config.DataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}
	if err = os.MkdirAll(config.TemplateDir, 0755); err != nil {
		return fmt.Errorf("failed to create template dir: %w", err)
	}

	db, err := initDB(config.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer func() {
		_ = db.Close()
	}()

	if err = store.SetupSchema(db); err != nil {
		return fmt.Errorf("failed to setup template schema: %w", err)
	}

	st, err := store.NewStore(db, logger)
	if err != nil {
		return fmt.Errorf("failed to create template store: %w", err)
	}
	defer st.Close()

	lib, err := store.NewLibrary(logger, config.TemplateDir)
	if err != nil {
		return fmt.Errorf("failed to create template library: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err = lib.Watch(ctx); err != nil {
		// The library still works through manual refresh, so keep going.
		logger.Warn("Template hot-reload unavailable", "error", err)
	}

	server := NewServer(config, logger, st, lib)
	httpServer := &http.Server{Addr: config.ServerAddr, Handler: server.mux}

	go func() {
		logger.Info("Starting linetmpl server", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("OS signal received, initiating shutdown.")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err = httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed", "error", err)
	}

	return nil
}
