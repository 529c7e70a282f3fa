// Package hybrid implements HybridExecutor (spec.md §4.8): the
// orchestration layer that wires StyleInjector, TokenIndexer,
// DomScanner, and MutationWatcher together for one document tree.
// Grounded on the teacher's scraper/page.go, which owns the same kind
// of "several subcomponents, one lifecycle" orchestration for a single
// page's scrape-and-clean pipeline.
package hybrid

import (
	"log/slog"

	"github.com/hybridguard/filterengine/dom"
	"github.com/hybridguard/filterengine/domscan"
	"github.com/hybridguard/filterengine/models"
	"github.com/hybridguard/filterengine/mutation"
	"github.com/hybridguard/filterengine/styleinjector"
	"github.com/hybridguard/filterengine/tokenindex"
	"golang.org/x/net/html"
)

// Counters accumulates what one Executor lifetime has done.
type Counters struct {
	Removed int64
	Hidden  int64
}

// Executor is HybridExecutor, scoped to one document tree.
type Executor struct {
	root        *html.Node
	documentURL string
	logger      *slog.Logger

	injector   *styleinjector.Injector
	index      *tokenindex.Index
	scanner    *domscan.Scanner
	watcher    *mutation.Watcher
	mutationCfg mutation.Config

	counters Counters
}

// New builds an Executor bound to root. documentURL is used by
// DomScanner's cross-origin iframe test.
func New(root *html.Node, documentURL string, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		root:        root,
		documentURL: documentURL,
		logger:      logger,
		injector:    styleinjector.New(root),
		index:       tokenindex.New(),
		mutationCfg: mutation.DefaultConfig(),
	}
}

// SetMutationConfig overrides the drain-cadence/structural-shift
// tuning the next mutation.Watcher is built with (config.MutationWatcherConfig's
// wiring point). Takes effect on the next Execute call.
func (e *Executor) SetMutationConfig(cfg mutation.Config) {
	e.mutationCfg = cfg
}

// Execute implements spec.md §4.8's execute(rules, domain, opts):
// filter rules to enabled && valid-selector, inject the consolidated
// stylesheet, build the token index, run a synchronous scan, and
// start a mutation watcher wired to the same scanner. Returns the
// running total of removed+hidden elements.
func (e *Executor) Execute(rules []models.Rule, currentDomain string, onDrain func(mutation.DeltaStats)) int {
	selectors := make([]string, 0, len(rules))
	for _, r := range rules {
		if !r.Enabled || r.Inert() {
			continue
		}
		if !r.Domains.Matches(currentDomain) {
			continue
		}
		if _, err := dom.Compile(r.Selector); err != nil {
			e.logger.Debug("hybrid: skipping rule with invalid selector", "rule_id", r.ID, "error", err)
			continue
		}
		selectors = append(selectors, r.Selector)
	}

	e.injector.Inject(selectors)
	e.index.Build(selectors)
	e.scanner = domscan.New(e.index, e.documentURL, e.logger)

	e.scanner.Scan(e.root)
	stats := e.scanner.Stats()
	e.counters.Removed += stats.Removed
	e.counters.Hidden += stats.Hidden

	if e.watcher != nil {
		e.watcher.Stop()
	}
	e.watcher = mutation.NewWithConfig(e.root, e.scanner, e.logger, func(d mutation.DeltaStats) {
		s := e.scanner.Stats()
		e.counters.Removed = s.Removed
		e.counters.Hidden = s.Hidden
		if onDrain != nil {
			onDrain(d)
		}
	}, e.mutationCfg)

	return int(e.counters.Removed + e.counters.Hidden)
}

// Rescan re-runs the scan step without rebuilding the stylesheet or
// token index (spec.md §4.8), e.g. after a navigation within the same
// SPA shell that doesn't warrant a full Execute.
func (e *Executor) Rescan() int {
	if e.scanner == nil {
		return 0
	}
	e.scanner.Scan(e.root)
	stats := e.scanner.Stats()
	e.counters.Removed = stats.Removed
	e.counters.Hidden = stats.Hidden
	return int(e.counters.Removed + e.counters.Hidden)
}

// Observe forwards a mutation record to the active watcher, if any.
func (e *Executor) Observe(rec mutation.Record) {
	if e.watcher != nil {
		e.watcher.Observe(rec)
	}
}

// Counters returns the executor's running totals.
func (e *Executor) Counters() Counters {
	return e.counters
}

// Cleanup tears everything down in reverse dependency order: watcher
// first (stop observing before the tree it watches goes away), then
// the stylesheet (spec.md §4.8).
func (e *Executor) Cleanup() {
	if e.watcher != nil {
		e.watcher.Stop()
		e.watcher = nil
	}
	e.injector.Cleanup()
}
