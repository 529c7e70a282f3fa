// Package coordinator implements RuleCoordinator (spec.md §4.10): the
// top-level composition point that reads a settings snapshot, checks
// the domain whitelist and master switch before anything else runs,
// composes the enabled RuleSource instances, routes their rules to
// the declared executor kind in a fixed order (Hybrid, then
// Selector), and reports aggregate counts to StatsStore. Grounded on
// the teacher's engine/dispatcher.go, which is the one place that
// composes several interchangeable strategies and runs them in a
// defined priority order.
package coordinator

import (
	"context"
	"log/slog"
	"time"

	"github.com/hybridguard/filterengine/hybrid"
	"github.com/hybridguard/filterengine/models"
	"github.com/hybridguard/filterengine/rulesource"
	"github.com/hybridguard/filterengine/selector"
	"github.com/hybridguard/filterengine/stats"
	"github.com/hybridguard/filterengine/store"
	"golang.org/x/net/html"
)

// Settings is the settings snapshot RuleCoordinator composes sources
// from (spec.md §4.10, §6's store keys).
type Settings struct {
	IsActive             bool
	DefaultRulesEnabled  bool // bundles EasyList, per spec.md §9's Open Question resolution
	CustomRulesEnabled   bool
	Whitelist            []string
}

// LoadSettings reads the settings snapshot from backing.
func LoadSettings(ctx context.Context, backing store.Store) Settings {
	s := Settings{IsActive: true, DefaultRulesEnabled: true, CustomRulesEnabled: true}

	var isActive bool
	if ok, err := backing.Get(ctx, store.KeyIsActive, &isActive); err == nil && ok {
		s.IsActive = isActive
	}
	var defaultEnabled bool
	if ok, err := backing.Get(ctx, store.KeyDefaultRulesEnabled, &defaultEnabled); err == nil && ok {
		s.DefaultRulesEnabled = defaultEnabled
	}
	var customEnabled bool
	if ok, err := backing.Get(ctx, store.KeyCustomRulesEnabled, &customEnabled); err == nil && ok {
		s.CustomRulesEnabled = customEnabled
	}
	var whitelist []string
	if ok, err := backing.Get(ctx, store.KeyWhitelist, &whitelist); err == nil && ok {
		s.Whitelist = whitelist
	}
	return s
}

// IsWhitelisted implements spec.md §7's "matched by the same rules as
// rule DomainSpec subdomain inclusion" whitelist semantics.
func (s Settings) IsWhitelisted(currentDomain string) bool {
	return models.NewDomainSpec(s.Whitelist...).Matches(currentDomain)
}

// Coordinator is RuleCoordinator, exclusively owning the RuleSource
// instances and the shared RuleCache (spec.md §3's ownership note).
type Coordinator struct {
	defaultSrc  *rulesource.Default
	customSrc   *rulesource.Custom
	easylistSrc *rulesource.EasyListDom
	selectorExe *selector.Executor
	statsStore  *stats.Store
	logger      *slog.Logger
	budget      time.Duration
}

// New builds a Coordinator over the given sources, yielding at
// selector.DefaultBudget. Use SetYieldBudget to override from
// config.MutationWatcherConfig's companion TokenIndex/Selector budget
// setting.
func New(defaultSrc *rulesource.Default, customSrc *rulesource.Custom, easylistSrc *rulesource.EasyListDom, statsStore *stats.Store, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		defaultSrc:  defaultSrc,
		customSrc:   customSrc,
		easylistSrc: easylistSrc,
		selectorExe: selector.New(logger),
		statsStore:  statsStore,
		logger:      logger,
		budget:      selector.DefaultBudget,
	}
}

// SetYieldBudget overrides the cooperative-yield slice used by
// SelectorExecutor's time-sliced pass.
func (c *Coordinator) SetYieldBudget(budget time.Duration) {
	if budget > 0 {
		c.budget = budget
	}
}

// Result is what Run reports back to the caller.
type Result struct {
	Whitelisted   bool
	Inactive      bool
	HybridBlocked int
	SelectorRemoved int
}

// Run implements spec.md §4.10's composition and ordering: whitelist
// and master-switch checks happen before any source is even fetched
// (spec.md §7: "take precedence over every other check"); enabled
// sources are routed to Hybrid (fast/broad) first, Selector
// (user-specific overrides) second.
func (c *Coordinator) Run(ctx context.Context, root *html.Node, documentURL, currentDomain string, settings Settings, hybridExec *hybrid.Executor) Result {
	if settings.IsWhitelisted(currentDomain) {
		return Result{Whitelisted: true}
	}
	if !settings.IsActive {
		return Result{Inactive: true}
	}

	hybridRules, selectorRules := c.composeRules(ctx, settings)

	result := Result{}
	if hybridExec != nil {
		result.HybridBlocked = hybridExec.Execute(hybridRules, currentDomain, nil)
	}

	result.SelectorRemoved = c.selectorExe.Execute(ctx, root, selectorRules, currentDomain, selector.Options{
		TimeSlicing: true,
		Budget:      c.budget,
		Yielder:     cooperativeYielder{},
	})

	if c.statsStore != nil {
		for i := 0; i < result.HybridBlocked; i++ {
			c.statsStore.IncrementDomain(currentDomain, stats.KindDefaultRules)
		}
		for i := 0; i < result.SelectorRemoved; i++ {
			c.statsStore.IncrementDomain(currentDomain, stats.KindCustomRules)
		}
	}

	return result
}

// composeRules fetches every enabled source and partitions its rules
// by declared executor kind (spec.md §4.10).
func (c *Coordinator) composeRules(ctx context.Context, settings Settings) (hybridRules, selectorRules []models.Rule) {
	var sources []rulesource.Source
	if settings.DefaultRulesEnabled {
		if c.defaultSrc != nil {
			sources = append(sources, c.defaultSrc)
		}
		if c.easylistSrc != nil {
			sources = append(sources, c.easylistSrc)
		}
	}
	if settings.CustomRulesEnabled && c.customSrc != nil {
		sources = append(sources, c.customSrc)
	}

	for _, src := range sources {
		rules, err := src.Fetch(ctx)
		if err != nil {
			c.logger.Warn("coordinator: source fetch failed, skipping", "source", src.Name(), "error", err)
			continue
		}
		switch src.ExecutorKind() {
		case rulesource.ExecutorHybrid:
			hybridRules = append(hybridRules, rules...)
		case rulesource.ExecutorSelector:
			selectorRules = append(selectorRules, rules...)
		}
	}
	return hybridRules, selectorRules
}

// cooperativeYielder implements selector.Yielder the way
// yieldIfNeeded is specified (spec.md §4.10): if elapsed since
// startTime is at least budget, defer briefly to the scheduler and
// reset the start time.
type cooperativeYielder struct{}

func (cooperativeYielder) YieldIfNeeded(ctx context.Context, startTime time.Time, budget time.Duration) time.Time {
	if time.Since(startTime) < budget {
		return startTime
	}
	select {
	case <-time.After(0):
	case <-ctx.Done():
	}
	return time.Now()
}
