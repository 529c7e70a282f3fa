package stats

import (
	"context"
	"testing"
	"time"

	"github.com/hybridguard/filterengine/models"
	"github.com/hybridguard/filterengine/store"
)

func TestIncrementNavigationIsMonotonicAcrossDebounce(t *testing.T) {
	backing := store.NewMemory()
	s := New(context.Background(), backing, nil)

	s.IncrementNavigation(true)
	s.IncrementNavigation(true)
	s.IncrementNavigation(false)

	nav := s.Navigation()
	if nav.AllowedCount != 2 || nav.BlockedCount != 1 {
		t.Fatalf("expected monotonic read before flush, got %+v", nav)
	}
}

func TestFlushPersistsToBackingStore(t *testing.T) {
	backing := store.NewMemory()
	s := New(context.Background(), backing, nil)
	s.IncrementNavigation(true)
	s.Flush()

	var persisted models.NavigationStats
	ok, err := backing.Get(context.Background(), store.KeyNavigationStats, &persisted)
	if err != nil || !ok {
		t.Fatalf("expected navigation stats persisted, ok=%v err=%v", ok, err)
	}
	if persisted.AllowedCount != 1 {
		t.Fatalf("expected persisted AllowedCount 1, got %d", persisted.AllowedCount)
	}
}

func TestIncrementDomainTracksPerHostCounters(t *testing.T) {
	backing := store.NewMemory()
	s := New(context.Background(), backing, nil)

	s.IncrementDomain("example.com", KindDefaultRules)
	s.IncrementDomain("example.com", KindCustomRules)
	s.IncrementDomain("example.com", KindDefaultRules)

	d := s.Domain("example.com")
	if d.DefaultRulesRemoved != 2 || d.CustomRulesRemoved != 1 {
		t.Fatalf("expected 2 default, 1 custom, got %+v", d)
	}
}

func TestResetDomainClearsCounters(t *testing.T) {
	backing := store.NewMemory()
	s := New(context.Background(), backing, nil)
	s.IncrementDomain("example.com", KindDefaultRules)
	s.ResetDomain("example.com")

	d := s.Domain("example.com")
	if d.DefaultRulesRemoved != 0 {
		t.Fatalf("expected counters cleared after reset, got %+v", d)
	}
}

func TestCoalescesRapidWritesIntoOneDebounceCycle(t *testing.T) {
	backing := store.NewMemory()
	s := New(context.Background(), backing, nil)

	for i := 0; i < 5; i++ {
		s.IncrementNavigation(true)
	}
	time.Sleep(CoalesceWindow + 100*time.Millisecond)

	var persisted models.NavigationStats
	ok, err := backing.Get(context.Background(), store.KeyNavigationStats, &persisted)
	if err != nil || !ok {
		t.Fatalf("expected eventual flush, ok=%v err=%v", ok, err)
	}
	if persisted.AllowedCount != 5 {
		t.Fatalf("expected coalesced count of 5, got %d", persisted.AllowedCount)
	}
}
