package hybrid

import (
	"testing"

	"github.com/hybridguard/filterengine/dom"
	"github.com/hybridguard/filterengine/models"
)

func TestExecuteInjectsAndScansMatchingRules(t *testing.T) {
	root, err := dom.ParseFragment(`<div class="ad-banner"></div><script class="tracker"></script>`)
	if err != nil {
		t.Fatalf("parse fragment: %v", err)
	}
	exec := New(root, "https://example.com", nil)

	rules := []models.Rule{
		{ID: "r1", Selector: ".ad-banner", Enabled: true, Domains: models.AllDomains()},
		{ID: "r2", Selector: "script.tracker", Enabled: true, Domains: models.AllDomains()},
	}
	total := exec.Execute(rules, "example.com", nil)
	if total != 2 {
		t.Fatalf("expected 2 total blocked, got %d", total)
	}
	if !exec.injector.IsInjected() {
		t.Fatal("expected stylesheet to be injected")
	}
}

func TestExecuteSkipsNonMatchingDomainRules(t *testing.T) {
	root, _ := dom.ParseFragment(`<div class="ad-banner"></div>`)
	exec := New(root, "https://example.com", nil)

	rules := []models.Rule{
		{ID: "r1", Selector: ".ad-banner", Enabled: true, Domains: models.NewDomainSpec("other.com")},
	}
	total := exec.Execute(rules, "example.com", nil)
	if total != 0 {
		t.Fatalf("expected 0 blocked for non-matching domain, got %d", total)
	}
}

func TestCleanupTearsDownWatcherAndStylesheet(t *testing.T) {
	root, _ := dom.ParseFragment(`<div class="ad-banner"></div>`)
	exec := New(root, "https://example.com", nil)
	exec.Execute([]models.Rule{{ID: "r1", Selector: ".ad-banner", Enabled: true, Domains: models.AllDomains()}}, "example.com", nil)

	exec.Cleanup()
	if exec.injector.IsInjected() {
		t.Fatal("expected stylesheet removed after Cleanup")
	}
	if exec.watcher != nil {
		t.Fatal("expected watcher cleared after Cleanup")
	}
}
