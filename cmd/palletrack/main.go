package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"palletrack/frontend/settings"
	"palletrack/infrastructure/audit"
	"palletrack/infrastructure/cache"
	"palletrack/infrastructure/config"
	httpserver "palletrack/infrastructure/http"
	"palletrack/infrastructure/rbac"
	"palletrack/infrastructure/sqlite"
	"palletrack/infrastructure/vision"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	db, err := sqlite.OpenDB(cfg.SQLitePath)
	if err != nil {
		slog.Error("open db", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx := context.Background()
	if err := sqlite.ApplyMigrations(ctx, db, "infrastructure/sqlite/migrations"); err != nil {
		slog.Error("apply migrations", "error", err)
		os.Exit(1)
	}

	sessionCache := cache.NewUserSessionCache()
	userCache := cache.NewUserCache()
	rbacCache := cache.NewRbacRolesCache()
	rbacSvc := rbac.New(rbacCache)
	auditSvc := audit.NewService()

	settingsStore, err := settings.NewStore(ctx, db, cfg.CriticalDiffThreshold, cfg.ManualReviewConfidence)
	if err != nil {
		slog.Error("load settings", "error", err)
		os.Exit(1)
	}

	var analyzer vision.Analyzer = vision.Disabled{}
	if cfg.VisionURL != "" {
		analyzer = vision.NewHTTPAnalyzer(cfg.VisionURL)
	}

	server := httpserver.NewServer(cfg.Addr, db, sessionCache, userCache, rbacSvc, rbacCache, auditSvc, settingsStore, analyzer)
	if err := server.Start(); err != nil {
		slog.Error("start server", "error", err)
		os.Exit(1)
	}
	slog.Info("palletrack listening", "addr", cfg.Addr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	if err := server.Stop(); err != nil {
		slog.Error("graceful shutdown", "error", err)
	}
}
