// Package rulecache implements RuleCache (spec.md §4.2): a versioned,
// TTL-bounded cache of parsed rule sets per source, backed by a
// store.Store and debounced the way the teacher's cache package
// debounces its scrape-response cache writes — except here the
// coalescing window and key bound are spec-mandated (500 ms, 100
// keys) rather than a pool-sizing knob.
package rulecache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hybridguard/filterengine/models"
	"github.com/hybridguard/filterengine/store"
)

// CoalesceWindow is the debounce window for writes to one key
// (spec.md §4.2).
const CoalesceWindow = 500 * time.Millisecond

// MaxPendingKeys bounds the number of distinct keys with a pending
// debounced write. Reaching the bound flushes the oldest pending write
// synchronously (spec.md §4.2) rather than growing unbounded.
const MaxPendingKeys = 100

// TTL defaults (spec.md §3).
const (
	TTLDefault  = 60 * time.Second
	TTLCustom   = 30 * time.Second
	TTLEasyList = 7 * 24 * time.Hour
)

type pendingWrite struct {
	source    string
	entry     models.CacheEntry
	queuedAt  time.Time
	timer     *time.Timer
}

// Cache is RuleCache. One Cache instance is shared across every
// RuleSource variant (spec.md §3's ownership note: RuleCoordinator
// exclusively owns the RuleSource instances and the shared RuleCache).
type Cache struct {
	backing store.Store
	logger  *slog.Logger

	mu      sync.Mutex
	pending map[string]*pendingWrite
	order   []string // insertion order of pending keys, oldest first
}

// New builds a Cache over backing.
func New(backing store.Store, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		backing: backing,
		logger:  logger,
		pending: make(map[string]*pendingWrite),
	}
}

func storeKey(source string) string {
	// The one wire-versioned entry lives at a fixed top-level key
	// (spec.md §6: easylistDomRules); other sources are addressed
	// under a cache-namespaced key so they don't collide with the
	// plain defaultRules/customRules lists the sources themselves own.
	if source == "easylist" {
		return store.KeyEasylistDomRules
	}
	return "ruleCache:" + source
}

// Get reads the cache entry for source. A read is a hit only when the
// entry is valid for ttl as of now (spec.md §3, §4.2).
func (c *Cache) Get(ctx context.Context, source string, ttl time.Duration) (models.CacheEntry, bool) {
	var entry models.CacheEntry
	ok, err := c.backing.Get(ctx, storeKey(source), &entry)
	if err != nil {
		c.logger.Warn("rulecache: read failed, treating as miss", "source", source, "error", err)
		return models.CacheEntry{}, false
	}
	if !ok {
		return models.CacheEntry{}, false
	}
	if !entry.Valid(ttl, time.Now()) {
		return entry, false
	}
	return entry, true
}

// Put schedules a debounced write of entry for source. Concurrent Puts
// for the same source within CoalesceWindow coalesce into a single
// backing write.
func (c *Cache) Put(source string, entry models.CacheEntry) {
	c.mu.Lock()

	if pw, ok := c.pending[source]; ok {
		pw.entry = entry
		pw.timer.Reset(CoalesceWindow)
		c.mu.Unlock()
		return
	}

	pw := &pendingWrite{source: source, entry: entry, queuedAt: time.Now()}
	pw.timer = time.AfterFunc(CoalesceWindow, func() { c.flush(source) })
	c.pending[source] = pw
	c.order = append(c.order, source)

	var oldest string
	var needsFlush bool
	if len(c.pending) > MaxPendingKeys {
		oldest = c.order[0]
		c.order = c.order[1:]
		if oldestPW, ok := c.pending[oldest]; ok {
			oldestPW.timer.Stop()
			needsFlush = true
			c.logger.Debug("rulecache: pending-key bound reached, flushing oldest synchronously",
				"bound", MaxPendingKeys, "flushed_source", oldest)
		}
	}
	c.mu.Unlock()

	if needsFlush {
		c.flush(oldest)
	}
}

// Invalidate drops both the pending write (if any) and the persisted
// entry for source.
func (c *Cache) Invalidate(ctx context.Context, source string) {
	c.mu.Lock()
	if pw, ok := c.pending[source]; ok {
		pw.timer.Stop()
		delete(c.pending, source)
		for i, s := range c.order {
			if s == source {
				c.order = append(c.order[:i], c.order[i+1:]...)
				break
			}
		}
	}
	c.mu.Unlock()

	if err := c.backing.Delete(ctx, storeKey(source)); err != nil {
		c.logger.Warn("rulecache: invalidate failed", "source", source, "error", err)
	}
}

func (c *Cache) flush(source string) {
	c.mu.Lock()
	pw, ok := c.pending[source]
	if ok {
		delete(c.pending, source)
		for i, s := range c.order {
			if s == source {
				c.order = append(c.order[:i], c.order[i+1:]...)
				break
			}
		}
	}
	c.mu.Unlock()
	if !ok {
		return
	}

	ctx := context.Background()
	if err := c.backing.Set(ctx, storeKey(source), pw.entry); err != nil {
		// Graceful degrade: the write failed, but RuleCache never
		// surfaces this to the caller beyond telemetry (spec.md §4.2).
		c.logger.Warn("rulecache: debounced write failed, degrading gracefully",
			"source", source, "error", err)
	}
}
