// Package stats implements StatsStore (spec.md §4.13): in-memory
// navigation and per-domain counters, debounced to persistent storage,
// with monotonic reads across coalesce boundaries. Grounded on the
// teacher's cache package debounce pattern (shared with rulecache),
// applied here to counter writes instead of rule-set writes.
package stats

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hybridguard/filterengine/models"
	"github.com/hybridguard/filterengine/store"
)

// CoalesceWindow mirrors rulecache's debounce window (spec.md §4.13:
// "coalesced (≈500 ms)").
const CoalesceWindow = 500 * time.Millisecond

// DomainKind distinguishes which rule source caused a removal, for
// incrementDomain (spec.md §4.13).
type DomainKind int

const (
	KindDefaultRules DomainKind = iota
	KindCustomRules
)

// Store is StatsStore.
type Store struct {
	backing store.Store
	logger  *slog.Logger

	mu     sync.Mutex
	nav    models.NavigationStats
	domain map[string]models.DomainStats
	timer  *time.Timer
	dirty  bool
}

// New builds a Store over backing, seeding counters from any
// previously persisted values.
func New(ctx context.Context, backing store.Store, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		backing: backing,
		logger:  logger,
		domain:  make(map[string]models.DomainStats),
	}

	var nav models.NavigationStats
	if ok, err := backing.Get(ctx, store.KeyNavigationStats, &nav); err == nil && ok {
		s.nav = nav
	}
	var domain map[string]models.DomainStats
	if ok, err := backing.Get(ctx, store.KeyDomainStats, &domain); err == nil && ok && domain != nil {
		s.domain = domain
	}
	return s
}

// IncrementNavigation bumps allowedCount or blockedCount by one.
func (s *Store) IncrementNavigation(allowed bool) {
	s.mu.Lock()
	if allowed {
		s.nav.AllowedCount++
	} else {
		s.nav.BlockedCount++
	}
	s.markDirty()
	s.mu.Unlock()
}

// IncrementDomain bumps host's removal counter for kind by one.
func (s *Store) IncrementDomain(host string, kind DomainKind) {
	s.mu.Lock()
	d := s.domain[host]
	switch kind {
	case KindDefaultRules:
		d.DefaultRulesRemoved++
	case KindCustomRules:
		d.CustomRulesRemoved++
	}
	s.domain[host] = d
	s.markDirty()
	s.mu.Unlock()
}

// ResetDomain clears host's counters — an explicit administrative
// action (spec.md §3: "resets are explicit administrative actions").
func (s *Store) ResetDomain(host string) {
	s.mu.Lock()
	delete(s.domain, host)
	s.markDirty()
	s.mu.Unlock()
}

// Navigation returns a monotonic snapshot of the navigation counters.
func (s *Store) Navigation() models.NavigationStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nav
}

// Domain returns a monotonic snapshot of host's counters.
func (s *Store) Domain(host string) models.DomainStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.domain[host]
}

// AllDomains returns a snapshot copy of every tracked domain's counters.
func (s *Store) AllDomains() map[string]models.DomainStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]models.DomainStats, len(s.domain))
	for k, v := range s.domain {
		out[k] = v
	}
	return out
}

// markDirty schedules a debounced flush. Caller must hold s.mu.
func (s *Store) markDirty() {
	s.dirty = true
	if s.timer == nil {
		s.timer = time.AfterFunc(CoalesceWindow, s.flush)
	} else {
		s.timer.Reset(CoalesceWindow)
	}
}

func (s *Store) flush() {
	s.mu.Lock()
	if !s.dirty {
		s.mu.Unlock()
		return
	}
	nav := s.nav
	domain := make(map[string]models.DomainStats, len(s.domain))
	for k, v := range s.domain {
		domain[k] = v
	}
	s.dirty = false
	s.mu.Unlock()

	ctx := context.Background()
	if err := s.backing.Set(ctx, store.KeyNavigationStats, nav); err != nil {
		s.logger.Warn("stats: debounced navigation write failed, degrading gracefully", "error", err)
	}
	if err := s.backing.Set(ctx, store.KeyDomainStats, domain); err != nil {
		s.logger.Warn("stats: debounced domain write failed, degrading gracefully", "error", err)
	}
}

// Flush forces an immediate write, bypassing the debounce window.
// Used by CleanupRegistry on teardown so in-flight increments aren't
// lost to an unfired timer (spec.md §4.13, §4.8's teardown ordering).
func (s *Store) Flush() {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.mu.Unlock()
	s.flush()
}
