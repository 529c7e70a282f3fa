// Package store defines the persistent key/value contract the engine
// depends on (spec.md §1's "persistent key/value storage (abstracted
// as a Store)") and ships an in-memory reference implementation for
// tests and the admin API's default wiring. A real deployment backs
// this with whatever the host process already uses (file, Redis,
// browser.storage) — the engine never assumes a concrete backend.
package store

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/hybridguard/filterengine/models"
)

// Keys are the string-keyed KV entries the engine reads and writes
// (spec.md §6).
const (
	KeyIsActive                  = "isActive"
	KeyWhitelist                 = "whitelist"
	KeyDefaultRules              = "defaultRules"
	KeyCustomRules               = "customRules"
	KeyDefaultRulesEnabled       = "defaultRulesEnabled"
	KeyCustomRulesEnabled        = "customRulesEnabled"
	KeyNavigationGuardEnabled    = "navigationGuardEnabled"
	KeyDefaultBlockRequestEnabled = "defaultBlockRequestEnabled"
	KeyNavigationStats           = "navigationStats"
	KeyDomainStats               = "domainStats"
	KeyEasylistDomRules          = "easylistDomRules"
)

// Store is the minimal persistent KV contract. Values are
// JSON-serializable; Get unmarshals into out, Set marshals value.
// Implementations must tolerate concurrent use from multiple goroutines
// since the engine's components (RuleCache, StatsStore, RuleSource
// variants) all write through the same Store concurrently.
type Store interface {
	Get(ctx context.Context, key string, out interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}) error
	Delete(ctx context.Context, key string) error
	// OnChange registers a listener invoked after a successful Set or
	// Delete, mirroring the STORAGE_CHANGED inter-context message
	// (spec.md §6). Returns an unsubscribe function.
	OnChange(fn func(key string, newValue interface{})) (unsubscribe func())
}

// Memory is an in-memory Store, safe for concurrent use. Writes never
// fail (spec.md §4.2's "writes tolerate host-storage unavailability"
// is trivially true for an in-memory backend; a networked
// implementation would apply the same graceful-degrade policy at this
// seam).
type Memory struct {
	mu        sync.RWMutex
	data      map[string]json.RawMessage
	listeners []func(string, interface{})
}

// NewMemory builds an empty Memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string]json.RawMessage)}
}

func (m *Memory) Get(_ context.Context, key string, out interface{}) (bool, error) {
	m.mu.RLock()
	raw, ok := m.data[key]
	m.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, models.NewFilterError(models.ErrCodeStoreWriteFailure, "decode stored value for "+key, err)
	}
	return true, nil
}

func (m *Memory) Set(_ context.Context, key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return models.NewFilterError(models.ErrCodeStoreWriteFailure, "encode value for "+key, err)
	}
	m.mu.Lock()
	m.data[key] = raw
	listeners := append([]func(string, interface{}){}, m.listeners...)
	m.mu.Unlock()
	for _, fn := range listeners {
		fn(key, value)
	}
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.data, key)
	listeners := append([]func(string, interface{}){}, m.listeners...)
	m.mu.Unlock()
	for _, fn := range listeners {
		fn(key, nil)
	}
	return nil
}

func (m *Memory) OnChange(fn func(key string, newValue interface{})) func() {
	m.mu.Lock()
	m.listeners = append(m.listeners, fn)
	idx := len(m.listeners) - 1
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if idx < len(m.listeners) {
			m.listeners[idx] = nil
		}
	}
}
