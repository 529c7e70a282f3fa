// Command filterengine-live drives a real headless browser through
// the cosmetic-filter pipeline instead of operating on posted HTML
// fixtures: one Harness-managed tab per target URL, continuously
// re-scanned and re-synced, with NavigationGuardian wired to the
// page's own window.open/location bridge instead of a test double.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hybridguard/filterengine/api"
	"github.com/hybridguard/filterengine/api/handler"
	"github.com/hybridguard/filterengine/browser"
	"github.com/hybridguard/filterengine/cleanup"
	"github.com/hybridguard/filterengine/config"
	"github.com/hybridguard/filterengine/coordinator"
	"github.com/hybridguard/filterengine/hybrid"
	"github.com/hybridguard/filterengine/models"
	"github.com/hybridguard/filterengine/navguard"
	"github.com/hybridguard/filterengine/rulecache"
	"github.com/hybridguard/filterengine/rules"
	"github.com/hybridguard/filterengine/rulesource"
	"github.com/hybridguard/filterengine/stats"
	"github.com/hybridguard/filterengine/store"
	"github.com/hybridguard/filterengine/threat"
)

func main() {
	targetsFlag := flag.String("targets", os.Getenv("FILTERENGINE_TARGETS"), "comma-separated URLs to hold open and continuously filter")
	flag.Parse()

	cfg := config.Load()
	logger := initLogger(cfg.Log)
	slog.SetDefault(logger)

	registry := cleanup.New(logger)

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

	isWhitelisted := func(host string) bool {
		return coordinator.LoadSettings(context.Background(), backing).IsWhitelisted(host)
	}

	prompt := &headlessPrompt{logger: logger}
	ipc := &loopbackIPC{analyzer: analyzer, prompt: prompt, logger: logger}
	guardian := navguard.New(analyzer, prompt, ipc, statsStore, isWhitelisted, logger)

	harness, err := browser.New(cfg.Browser, cfg.AdaptivePool, logger)
	if err != nil {
		logger.Error("filterengine-live: failed to start browser harness", "error", err)
		os.Exit(1)
	}
	registry.Register("browser-harness", harness.Close)

	app := &handler.App{
		Store:       backing,
		DefaultSrc:  defaultSrc,
		CustomSrc:   customSrc,
		StatsStore:  statsStore,
		Analyzer:    analyzer,
		Guardian:    guardian,
		Coordinator: coord,
		Settings: func() coordinator.Settings {
			return coordinator.LoadSettings(context.Background(), backing)
		},
		StartTime: time.Now(),
		Version:   "dev",
		Logger:    logger,
	}
	router := api.NewRouter(app, cfg)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: router}
	registry.Register("http-server", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	go func() {
		logger.Info("filterengine-live: admin API listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("filterengine-live: admin API error", "error", err)
		}
	}()

	runCtx, cancelRun := context.WithCancel(context.Background())
	registry.Register("tab-sessions", cancelRun)

	var targets []string
	for _, t := range strings.Split(*targetsFlag, ",") {
		if t = strings.TrimSpace(t); t != "" {
			targets = append(targets, t)
		}
	}
	for _, target := range targets {
		go runTabSession(runCtx, harness, guardian, coord, backing, target, logger)
	}
	if len(targets) == 0 {
		logger.Warn("filterengine-live: no targets configured, serving admin API only")
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.Info("filterengine-live: shutdown signal received", "signal", sig.String())
	registry.Cleanup()
}

// rescanInterval is how often a held-open tab is re-snapshotted and
// re-run through the coordinator between full mutation-driven drains.
// A real CDP MutationObserver bridge would drain on each DOM delta;
// this periodic poll is the coarser stand-in this harness offers
// until that bridge is wired.
const rescanInterval = 2 * time.Second

// runTabSession holds target open across one or more tabs, installing
// the navigation bridge and looping re-scans until ctx is cancelled.
// A tab that RecordScanOutcome reports as needing recycling (too many
// consecutive failed syncs, or otherwise aged out) is released and
// replaced with a freshly acquired tab rather than kept for the rest
// of the session.
func runTabSession(ctx context.Context, harness *browser.Harness, guardian *navguard.Guardian, coord *coordinator.Coordinator, backing store.Store, target string, logger *slog.Logger) {
	currentHost := hostOf(target)

	tab, err := acquireAndBridge(ctx, harness, guardian, target, currentHost, logger)
	if err != nil {
		logger.Error("filterengine-live: failed to acquire tab", "target", target, "error", err)
		return
	}

	ticker := time.NewTicker(rescanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			harness.Release(tab, true)
			return
		case <-ticker.C:
			synced, err := scanOnce(ctx, tab, coord, backing, target, currentHost, logger)
			if err != nil {
				logger.Warn("filterengine-live: scan pass failed", "target", target, "error", err)
			}
			if !tab.RecordScanOutcome(synced) {
				continue
			}
			logger.Warn("filterengine-live: recycling tab after repeated sync failures", "target", target)
			harness.Release(tab, false)
			tab, err = acquireAndBridge(ctx, harness, guardian, target, currentHost, logger)
			if err != nil {
				logger.Error("filterengine-live: failed to reacquire tab", "target", target, "error", err)
				return
			}
		}
	}
}

func acquireAndBridge(ctx context.Context, harness *browser.Harness, guardian *navguard.Guardian, target, currentHost string, logger *slog.Logger) (*browser.Tab, error) {
	tab, err := harness.Acquire(ctx, target)
	if err != nil {
		return nil, err
	}
	bridge := browser.NewNavBridge(tab.Page, logger)
	if err := bridge.Install(currentHost, guardian.HandleBridgeCall); err != nil {
		logger.Warn("filterengine-live: failed to install navigation bridge", "target", target, "error", err)
	}
	return tab, nil
}

// scanOnce runs one snapshot/coordinate/sync pass and reports whether
// the filtering output actually reached the live page.
func scanOnce(ctx context.Context, tab *browser.Tab, coord *coordinator.Coordinator, backing store.Store, target, currentHost string, logger *slog.Logger) (bool, error) {
	root, err := tab.Snapshot()
	if err != nil {
		return false, err
	}

	hybridExec := hybrid.New(root, target, logger)
	settings := coordinator.LoadSettings(ctx, backing)
	result := coord.Run(ctx, root, target, currentHost, settings, hybridExec)
	if result.Whitelisted || result.Inactive {
		return true, nil
	}

	if err := tab.Sync(root); err != nil {
		return false, err
	}
	return true, nil
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Hostname()
}

// headlessPrompt stands in for the interactive confirmation modal
// PromptUi normally drives: with nobody watching the tab, the safe
// default is to deny anything that reaches the prompt stage at all.
type headlessPrompt struct {
	logger *slog.Logger
}

func (p *headlessPrompt) Confirm(ctx context.Context, req navguard.ConfirmRequest) (bool, error) {
	p.logger.Info("filterengine-live: auto-denying unattended navigation prompt",
		"url", req.URL, "level", req.Threat.Level, "score", req.Threat.RiskScore)
	return false, nil
}

// loopbackIPC implements navguard.IpcChannel for the single-process
// harness: there is no separate content-context to message, so
// RequestDecision runs the same analyzer+prompt flow a content-context
// process would run before answering, and Guardian.arbitrateBridged
// trusts the result without re-scoring (see navguard.go's comment on
// that trust boundary).
type loopbackIPC struct {
	analyzer *threat.Analyzer
	prompt   navguard.PromptUi
	logger   *slog.Logger
}

func (l *loopbackIPC) RequestDecision(ctx context.Context, targetURL, navType string) (bool, error) {
	report := l.analyzer.AnalyzeThreats(targetURL, false)
	if report.Recommendation == models.RecommendationAllow && !report.IsPopUnder {
		return true, nil
	}
	return l.prompt.Confirm(ctx, navguard.ConfirmRequest{URL: targetURL, Threat: report})
}

func (l *loopbackIPC) NotifyError(err navguard.GuardianError) {
	l.logger.Warn("filterengine-live: navigation guardian error", "message", err.Message, "url", err.URL, "navType", err.NavType)
}

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
