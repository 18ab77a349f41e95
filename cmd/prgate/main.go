package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"prgate/internal/api"
	"prgate/internal/config"
	"prgate/internal/notify"
	"prgate/internal/service"
)

func main() {
	cfg := config.LoadFromEnv()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	logger.Info("application starting", "config", map[string]interface{}{
		"port":           cfg.Port,
		"storage_driver": cfg.StorageDriver,
		"log_level":      cfg.LogLevel.String(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	hub := notify.NewHub(logger)
	svc := service.NewService(repo, hub, logger)

	if cfg.BootstrapAdminEmail != "" {
		admin, err := svc.EnsureAdmin(ctx, cfg.BootstrapAdminEmail, cfg.BootstrapAdminName)
		if err != nil {
			logger.Error("failed to bootstrap admin", "error", err)
			os.Exit(1)
		}
		logger.Info("admin available", "user_id", admin.ID, "email", admin.Email)
	}

	h := api.NewHandler(svc, api.Options{
		GitHubWebhookSecret: cfg.GitHubWebhookSecret,
		GitLabWebhookSecret: cfg.GitLabWebhookSecret,
		SSEKeepAlive:        cfg.SSEKeepAlive,
	}, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      h.Router(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
		BaseContext:  func(_ net.Listener) context.Context { return ctx },
	}

	go func() {
		logger.Info("server starting", "port", cfg.Port, "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down", "timeout", cfg.ShutdownTimeout)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}
