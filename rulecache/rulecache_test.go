package rulecache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/hybridguard/filterengine/models"
	"github.com/hybridguard/filterengine/store"
)

func TestGetMissWhenNothingStored(t *testing.T) {
	c := New(store.NewMemory(), nil)
	_, ok := c.Get(context.Background(), "custom", TTLCustom)
	if ok {
		t.Fatal("expected miss on empty store")
	}
}

func TestGetHitWithinTTL(t *testing.T) {
	backing := store.NewMemory()
	entry := models.CacheEntry{Version: models.SchemaVersion, LastFetched: time.Now()}
	if err := backing.Set(context.Background(), "ruleCache:custom", entry); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	c := New(backing, nil)
	got, ok := c.Get(context.Background(), "custom", TTLCustom)
	if !ok {
		t.Fatal("expected hit for fresh entry")
	}
	if got.Version != models.SchemaVersion {
		t.Fatalf("unexpected version %q", got.Version)
	}
}

func TestGetMissWhenExpired(t *testing.T) {
	backing := store.NewMemory()
	entry := models.CacheEntry{
		Version:     models.SchemaVersion,
		LastFetched: time.Now().Add(-2 * TTLCustom),
	}
	if err := backing.Set(context.Background(), "ruleCache:custom", entry); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	c := New(backing, nil)
	_, ok := c.Get(context.Background(), "custom", TTLCustom)
	if ok {
		t.Fatal("expected miss for expired entry")
	}
}

func TestGetMissOnSchemaMismatch(t *testing.T) {
	backing := store.NewMemory()
	entry := models.CacheEntry{Version: "0.9", LastFetched: time.Now()}
	if err := backing.Set(context.Background(), "ruleCache:custom", entry); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	c := New(backing, nil)
	_, ok := c.Get(context.Background(), "custom", TTLCustom)
	if ok {
		t.Fatal("expected miss on schema version mismatch")
	}
}

func TestEasylistSourceUsesFixedTopLevelKey(t *testing.T) {
	backing := store.NewMemory()
	entry := models.CacheEntry{Version: models.SchemaVersion, LastFetched: time.Now()}
	if err := backing.Set(context.Background(), store.KeyEasylistDomRules, entry); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	c := New(backing, nil)
	_, ok := c.Get(context.Background(), "easylist", TTLEasyList)
	if !ok {
		t.Fatal("expected easylist source to read from the fixed top-level key")
	}
}

func TestPutCoalescesRepeatedWrites(t *testing.T) {
	backing := store.NewMemory()
	c := New(backing, nil)

	c.Put("custom", models.CacheEntry{Version: models.SchemaVersion, LastFetched: time.Now()})
	c.Put("custom", models.CacheEntry{Version: models.SchemaVersion, RawLines: []string{"second"}, LastFetched: time.Now()})

	if found, _ := backing.Get(context.Background(), "ruleCache:custom", &models.CacheEntry{}); found {
		t.Fatal("expected write to still be pending before the coalesce window elapses")
	}

	time.Sleep(CoalesceWindow + 50*time.Millisecond)

	var got models.CacheEntry
	ok, err := backing.Get(context.Background(), "ruleCache:custom", &got)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected the coalesced write to land after the debounce window")
	}
	if len(got.RawLines) != 1 || got.RawLines[0] != "second" {
		t.Fatalf("expected the later Put's entry to win, got %+v", got)
	}
}

func TestPutFlushesSynchronouslyAtPendingKeyBound(t *testing.T) {
	backing := store.NewMemory()
	c := New(backing, nil)

	for i := 0; i < MaxPendingKeys; i++ {
		c.Put(fmt.Sprintf("source-%d", i), models.CacheEntry{Version: models.SchemaVersion, LastFetched: time.Now()})
	}

	// This Put pushes the pending set past MaxPendingKeys, which must
	// flush the oldest pending key (source-0) before Put returns.
	c.Put(fmt.Sprintf("source-%d", MaxPendingKeys), models.CacheEntry{Version: models.SchemaVersion, LastFetched: time.Now()})

	var got models.CacheEntry
	ok, err := backing.Get(context.Background(), "ruleCache:source-0", &got)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected the oldest pending write to be flushed synchronously once Put returns")
	}
}

func TestInvalidateDropsPendingAndPersistedEntry(t *testing.T) {
	backing := store.NewMemory()
	c := New(backing, nil)

	if err := backing.Set(context.Background(), "ruleCache:custom", models.CacheEntry{Version: models.SchemaVersion, LastFetched: time.Now()}); err != nil {
		t.Fatalf("seed store: %v", err)
	}
	c.Put("custom", models.CacheEntry{Version: models.SchemaVersion, RawLines: []string{"pending"}, LastFetched: time.Now()})

	c.Invalidate(context.Background(), "custom")

	if found, _ := backing.Get(context.Background(), "ruleCache:custom", &models.CacheEntry{}); found {
		t.Fatal("expected invalidate to remove the persisted entry")
	}

	time.Sleep(CoalesceWindow + 50*time.Millisecond)
	if found, _ := backing.Get(context.Background(), "ruleCache:custom", &models.CacheEntry{}); found {
		t.Fatal("expected the pending write's timer to have been stopped by Invalidate")
	}
}
