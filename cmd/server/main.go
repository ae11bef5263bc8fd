package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	h "github.com/veranemoloko/fetchd/internal/api/http"
	"github.com/veranemoloko/fetchd/internal/broadcast"
	cfgpkg "github.com/veranemoloko/fetchd/internal/config"
	"github.com/veranemoloko/fetchd/internal/repository"
	"github.com/veranemoloko/fetchd/internal/retry"
	svc "github.com/veranemoloko/fetchd/internal/service"
	"github.com/veranemoloko/fetchd/internal/storage"
	"github.com/veranemoloko/fetchd/internal/supervisor"
)

func main() {
	cfg, err := cfgpkg.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	cfgpkg.SetupLogger(cfg)
	slog.Info("configuration loaded successfully")

	routes, err := storage.LoadRoutes(cfg.RoutesFile)
	if err != nil {
		slog.Error("failed to load routing rules", "error", err)
		os.Exit(1)
	}

	history, err := repository.NewHistoryStore(cfg.HistoryFile)
	if err != nil {
		slog.Error("failed to initialize history store", "error", err)
		os.Exit(1)
	}

	snapshots := repository.NewSnapshotStore(cfg.StateFile)
	filer := storage.NewFileStorage(cfg.DownloadDir, routes, slog.Default())
	hub := broadcast.NewHub(slog.Default())
	runner := supervisor.NewExecRunner(cfg.DownloadDir, cfg.JobTimeout, slog.Default())
	policy := retry.DefaultPolicy(cfg.MaxRetries, cfg.RetryBackoff)

	engine, err := svc.NewEngine(cfg, policy, runner, snapshots, history, filer, hub, slog.Default())
	if err != nil {
		slog.Error("failed to start engine", "error", err)
		os.Exit(1)
	}

	router := h.NewRouter(engine, history, filer, cfg, slog.Default())
	// No WriteTimeout: /events holds its connection open indefinitely.
	server := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:     router,
		ReadTimeout: cfg.HTTPTimeout,
		IdleTimeout: cfg.HTTPTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("server starting", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown failed", "error", err)
	}

	if err := engine.Shutdown(shutdownCtx); err != nil {
		slog.Error("engine shutdown failed", "error", err)
	} else {
		slog.Info("server stopped gracefully")
	}
}
