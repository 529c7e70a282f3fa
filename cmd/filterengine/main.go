package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hybridguard/filterengine/api"
	"github.com/hybridguard/filterengine/api/handler"
	"github.com/hybridguard/filterengine/cleanup"
	"github.com/hybridguard/filterengine/config"
	"github.com/hybridguard/filterengine/coordinator"
	"github.com/hybridguard/filterengine/rulecache"
	"github.com/hybridguard/filterengine/rules"
	"github.com/hybridguard/filterengine/rulesource"
	"github.com/hybridguard/filterengine/stats"
	"github.com/hybridguard/filterengine/store"
	"github.com/hybridguard/filterengine/threat"
)

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg := config.Load()

	// ── 2. Initialise structured logging ────────────────────────────
	logger := initLogger(cfg.Log)
	slog.SetDefault(logger)
	logger.Info("filterengine starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
	)

	registry := cleanup.New(logger)

	// ── 3. Storage, rule sources, and the shared cache ──────────────
	backing := store.NewMemory()
	cache := rulecache.New(backing, logger)
	parser := rules.NewParser(logger)

	defaultSrc := rulesource.NewDefault(backing, cache, logger)
	customSrc := rulesource.NewCustom(backing, cache, parser, logger)

	var easylistSrc *rulesource.EasyListDom
	if cfg.RuleSources.EasyListResourceURL != "" {
		easylistSrc = rulesource.NewEasyListDom(cfg.RuleSources.EasyListResourceURL, cache, parser, logger)
	}

	statsStore := stats.New(context.Background(), backing, logger)
	registry.Register("stats", statsStore.Flush)

	analyzer := threat.New(cfg.Threat)

	coord := coordinator.New(defaultSrc, customSrc, easylistSrc, statsStore, logger)
	coord.SetYieldBudget(cfg.MutationWatcher.SelectorYieldBudget)

	// ── 4. Wire the admin API ────────────────────────────────────────
	app := &handler.App{
		Store:       backing,
		DefaultSrc:  defaultSrc,
		CustomSrc:   customSrc,
		StatsStore:  statsStore,
		Analyzer:    analyzer,
		Guardian:    nil, // wired by cmd/filterengine-live, which owns a live PromptUi/IpcChannel
		Coordinator: coord,
		Settings: func() coordinator.Settings {
			return coordinator.LoadSettings(context.Background(), backing)
		},
		StartTime: time.Now(),
		Version:   "dev",
		Logger:    logger,
	}

	router := api.NewRouter(app, cfg)

	// ── 5. Start HTTP server ─────────────────────────────────────────
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}
	registry.Register("http-server", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("HTTP server forced shutdown", "error", err)
		} else {
			logger.Info("HTTP server drained gracefully")
		}
	})

	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// ── 6. Graceful shutdown ──────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.Info("shutdown signal received", "signal", sig.String())

	registry.Cleanup()
	logger.Info("filterengine stopped")
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	if cfg.Format == "text" {
		h = slog.NewTextHandler(os.Stdout, opts)
	} else {
		h = slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.New(h)
}
