// Package selector implements SelectorExecutor (spec.md §4.9): the
// lightweight batch-removal path for default/custom rules, as opposed
// to hybrid's stylesheet-plus-mutation-watcher treatment. Grounded on
// the teacher's cleaner/selector.go, which runs a cascadia query and
// batch-applies one removal strategy to the whole result set.
package selector

import (
	"context"
	"log/slog"
	"time"

	"github.com/hybridguard/filterengine/dom"
	"github.com/hybridguard/filterengine/models"
	"golang.org/x/net/html"
)

// DefaultBudget is the per-slice cooperative yield budget
// (spec.md §4.9).
const DefaultBudget = 16 * time.Millisecond

// Yielder matches RuleCoordinator.yieldIfNeeded's contract: given when
// the current slice started and its budget, block until it is safe to
// continue and report the new slice start time.
type Yielder interface {
	YieldIfNeeded(ctx context.Context, startTime time.Time, budget time.Duration) time.Time
}

// Options configures one Execute call.
type Options struct {
	TimeSlicing bool
	Budget      time.Duration
	Yielder     Yielder
}

// Executor is SelectorExecutor.
type Executor struct {
	logger *slog.Logger
}

// New builds an Executor.
func New(logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{logger: logger}
}

// Execute iterates rules in input order, skips any whose DomainSpec
// does not match currentDomain, queries and batch-removes matches for
// the rest, and returns the total removed count. An invalid selector
// is skipped with a log line, never aborting the remaining rules.
func (e *Executor) Execute(ctx context.Context, root *html.Node, rules []models.Rule, currentDomain string, opts Options) int {
	budget := opts.Budget
	if budget <= 0 {
		budget = DefaultBudget
	}
	sliceStart := time.Now()
	removed := 0

	for _, rule := range rules {
		if !rule.Enabled || rule.Inert() {
			continue
		}
		if !rule.Domains.Matches(currentDomain) {
			continue
		}

		compiled, err := dom.Compile(rule.Selector)
		if err != nil {
			e.logger.Warn("selector: skipping invalid rule selector", "rule_id", rule.ID, "selector", rule.Selector, "error", err)
			continue
		}

		matches := compiled.QueryAll(root)
		for _, n := range matches {
			if dom.Connected(n, root) {
				dom.Remove(n)
				removed++
			}
		}

		if opts.TimeSlicing && opts.Yielder != nil {
			sliceStart = opts.Yielder.YieldIfNeeded(ctx, sliceStart, budget)
		}
	}

	return removed
}
