package coordinator

import (
	"context"
	"testing"

	"github.com/hybridguard/filterengine/dom"
	"github.com/hybridguard/filterengine/hybrid"
	"github.com/hybridguard/filterengine/rulecache"
	"github.com/hybridguard/filterengine/rules"
	"github.com/hybridguard/filterengine/rulesource"
	"github.com/hybridguard/filterengine/store"
)

func TestRunSkipsWhitelistedDomain(t *testing.T) {
	backing := store.NewMemory()
	cache := rulecache.New(backing, nil)
	defaultSrc := rulesource.NewDefault(backing, cache, nil)
	customSrc := rulesource.NewCustom(backing, cache, rules.NewParser(nil), nil)
	co := New(defaultSrc, customSrc, nil, nil, nil)

	root, _ := dom.ParseFragment(`<div class="ad"></div>`)
	settings := Settings{IsActive: true, Whitelist: []string{"example.com"}}

	result := co.Run(context.Background(), root, "https://example.com", "example.com", settings, nil)
	if !result.Whitelisted {
		t.Fatal("expected whitelisted result")
	}
}

func TestRunSkipsWhenInactive(t *testing.T) {
	backing := store.NewMemory()
	cache := rulecache.New(backing, nil)
	defaultSrc := rulesource.NewDefault(backing, cache, nil)
	customSrc := rulesource.NewCustom(backing, cache, rules.NewParser(nil), nil)
	co := New(defaultSrc, customSrc, nil, nil, nil)

	root, _ := dom.ParseFragment(`<div class="ad"></div>`)
	settings := Settings{IsActive: false}

	result := co.Run(context.Background(), root, "https://example.com", "example.com", settings, nil)
	if !result.Inactive {
		t.Fatal("expected inactive result")
	}
}

func TestRunExecutesSelectorRulesForCustomSource(t *testing.T) {
	ctx := context.Background()
	backing := store.NewMemory()
	cache := rulecache.New(backing, nil)
	parser := rules.NewParser(nil)
	customSrc := rulesource.NewCustom(backing, cache, parser, nil)

	_, err := customSrc.AddCustomRule(ctx, []byte(`{"selector":".ad","domains":"all"}`))
	if err != nil {
		t.Fatalf("add custom rule: %v", err)
	}

	co := New(nil, customSrc, nil, nil, nil)
	root, _ := dom.ParseFragment(`<div class="ad"></div>`)
	settings := Settings{IsActive: true, CustomRulesEnabled: true}

	result := co.Run(ctx, root, "https://example.com", "example.com", settings, nil)
	if result.SelectorRemoved != 1 {
		t.Fatalf("expected 1 selector removal, got %d", result.SelectorRemoved)
	}
}

func TestRunRoutesHybridSourceThroughHybridExecutor(t *testing.T) {
	ctx := context.Background()
	backing := store.NewMemory()
	cache := rulecache.New(backing, nil)
	if err := backing.Set(ctx, store.KeyDefaultRules, []map[string]any{
		{"id": "d1", "selector": ".ad", "domains": map[string]any{"All": true}, "enabled": true},
	}); err != nil {
		t.Fatalf("seed default rules: %v", err)
	}
	defaultSrc := rulesource.NewDefault(backing, cache, nil)
	co := New(defaultSrc, nil, nil, nil, nil)

	root, _ := dom.ParseFragment(`<div class="ad"></div>`)
	hexec := hybrid.New(root, "https://example.com", nil)
	settings := Settings{IsActive: true, DefaultRulesEnabled: true}

	result := co.Run(ctx, root, "https://example.com", "example.com", settings, hexec)
	if result.HybridBlocked != 1 {
		t.Fatalf("expected 1 hybrid blocked element, got %d", result.HybridBlocked)
	}
}
