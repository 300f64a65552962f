package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/otpower88/grabbot/internal/bridge"
	"github.com/otpower88/grabbot/internal/bus"
	"github.com/otpower88/grabbot/internal/config"
	"github.com/otpower88/grabbot/internal/executor"
	"github.com/otpower88/grabbot/internal/pipeline"
	"github.com/otpower88/grabbot/internal/session"
	"github.com/otpower88/grabbot/internal/store"
	"github.com/otpower88/grabbot/internal/store/file"
	"github.com/otpower88/grabbot/internal/store/sqlite"
)

func runService() {
	// Setup structured logging
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})))

	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	statsStore, err := openStatsStore(cfg)
	if err != nil {
		slog.Error("failed to open stats store", "error", err)
		os.Exit(1)
	}
	defer statsStore.Close()

	sess, err := session.Load(statsStore)
	if err != nil {
		slog.Error("failed to load session state", "error", err)
		os.Exit(1)
	}
	stats := sess.Stats()
	slog.Info("session loaded",
		"total_attempts", stats.TotalAttempts,
		"success_count", stats.SuccessCount,
	)

	msgBus := bus.New()
	bridgeSrv := bridge.New(cfg.Bridge, msgBus)
	exec := executor.New(bridgeSrv, sess, msgBus, slog.Default())
	pipe := pipeline.New(cfg, exec, sess, msgBus, statsStore, slog.Default())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return bridgeSrv.Start(ctx) })
	g.Go(func() error { return pipe.Run(ctx) })
	g.Go(func() error { return config.Watch(ctx, cfgPath, pipe.UpdateConfig) })
	if cfg.Report.Enabled && cfg.Report.Cron != "" {
		g.Go(func() error { return pipe.RunSummary(ctx, cfg.Report.Cron) })
	}

	slog.Info("grabbot started",
		"version", Version,
		"group", cfg.Watch.GroupName,
		"window", fmt.Sprintf("%02d:00-%02d:00", cfg.Watch.StartHour, cfg.Watch.EndHour),
	)

	if err := g.Wait(); err != nil {
		slog.Error("service error", "error", err)
	}

	// Flush on the way out; a pending scheduled task is abandoned.
	if err := sess.Flush(); err != nil {
		slog.Warn("final stats flush failed", "error", err)
	}
	slog.Info("grabbot stopped")
}

func openStatsStore(cfg *config.Config) (store.StatsStore, error) {
	path := config.ExpandHome(cfg.Stats.Path)
	switch cfg.Stats.Backend {
	case "", "file":
		return file.Open(path)
	case "sqlite":
		return sqlite.Open(path)
	default:
		return nil, fmt.Errorf("unknown stats backend %q", cfg.Stats.Backend)
	}
}
