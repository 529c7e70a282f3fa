// Package rulesource implements the RuleSource variants from spec.md
// §4.3: Default, Custom, and EasyListDom. Each owns its own TTL and
// invalidation policy against the shared rulecache.Cache.
package rulesource

import (
	"context"
	"log/slog"
	"time"

	"github.com/hybridguard/filterengine/models"
	"github.com/hybridguard/filterengine/rulecache"
	"github.com/hybridguard/filterengine/rules"
	"github.com/hybridguard/filterengine/store"
)

// ExecutorKind selects which executor a source's rules are routed
// through (spec.md §4.3, §4.10).
type ExecutorKind string

const (
	ExecutorHybrid   ExecutorKind = "Hybrid"
	ExecutorSelector ExecutorKind = "Selector"
)

// Source is the RuleSource contract.
type Source interface {
	Name() string
	ExecutorKind() ExecutorKind
	Fetch(ctx context.Context) ([]models.Rule, error)
	Invalidate(ctx context.Context)
}

// Default reads a fixed array from the store under defaultRules and
// memoizes it for rulecache.TTLDefault (spec.md §4.3).
type Default struct {
	st     store.Store
	cache  *rulecache.Cache
	logger *slog.Logger
}

func NewDefault(st store.Store, cache *rulecache.Cache, logger *slog.Logger) *Default {
	return &Default{st: st, cache: cache, logger: orDefault(logger)}
}

func (d *Default) Name() string               { return "default" }
func (d *Default) ExecutorKind() ExecutorKind  { return ExecutorHybrid }
func (d *Default) Invalidate(ctx context.Context) { d.cache.Invalidate(ctx, d.Name()) }

func (d *Default) Fetch(ctx context.Context) ([]models.Rule, error) {
	if entry, ok := d.cache.Get(ctx, d.Name(), rulecache.TTLDefault); ok {
		return entry.Rules, nil
	}

	var raw []models.Rule
	found, err := d.st.Get(ctx, store.KeyDefaultRules, &raw)
	if err != nil || !found {
		// fetch never throws (spec.md §4.3): serve the last-known cache
		// value even if stale, else empty.
		if entry, ok := d.cache.Get(ctx, d.Name(), 0); ok {
			d.logger.Warn("rulesource: default rules unavailable, serving stale cache", "error", err)
			return entry.Rules, nil
		}
		return nil, nil
	}

	d.cache.Put(d.Name(), models.CacheEntry{Rules: raw, LastFetched: time.Now(), Version: models.SchemaVersion})
	return raw, nil
}

// Custom reads customRules and memoizes for rulecache.TTLCustom —
// shorter than Default's because users edit custom rules frequently
// (spec.md §4.3).
type Custom struct {
	st     store.Store
	cache  *rulecache.Cache
	parser *rules.Parser
	logger *slog.Logger
}

func NewCustom(st store.Store, cache *rulecache.Cache, parser *rules.Parser, logger *slog.Logger) *Custom {
	return &Custom{st: st, cache: cache, parser: parser, logger: orDefault(logger)}
}

func (c *Custom) Name() string               { return "custom" }
func (c *Custom) ExecutorKind() ExecutorKind { return ExecutorSelector }
func (c *Custom) Invalidate(ctx context.Context) { c.cache.Invalidate(ctx, c.Name()) }

func (c *Custom) Fetch(ctx context.Context) ([]models.Rule, error) {
	if entry, ok := c.cache.Get(ctx, c.Name(), rulecache.TTLCustom); ok {
		return entry.Rules, nil
	}

	var raw []models.Rule
	found, err := c.st.Get(ctx, store.KeyCustomRules, &raw)
	if err != nil || !found {
		if entry, ok := c.cache.Get(ctx, c.Name(), 0); ok {
			c.logger.Warn("rulesource: custom rules unavailable, serving stale cache", "error", err)
			return entry.Rules, nil
		}
		return nil, nil
	}

	c.cache.Put(c.Name(), models.CacheEntry{Rules: raw, LastFetched: time.Now(), Version: models.SchemaVersion})
	return raw, nil
}

// AddCustomRule validates and appends a single user rule, persisting
// the updated list and invalidating the memoization so the next Fetch
// sees it immediately.
func (c *Custom) AddCustomRule(ctx context.Context, raw []byte) (*models.Rule, error) {
	rule, err := c.parser.ParseUserRule(raw)
	if err != nil {
		return nil, err
	}

	var existing []models.Rule
	_, _ = c.st.Get(ctx, store.KeyCustomRules, &existing)
	existing = append(existing, *rule)

	if err := c.st.Set(ctx, store.KeyCustomRules, existing); err != nil {
		return nil, models.NewFilterError(models.ErrCodeStoreWriteFailure, "persist custom rule", err)
	}
	c.Invalidate(ctx)
	return rule, nil
}

func orDefault(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}
