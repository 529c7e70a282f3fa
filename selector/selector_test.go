package selector

import (
	"context"
	"testing"

	"github.com/hybridguard/filterengine/dom"
	"github.com/hybridguard/filterengine/models"
)

func rule(id, sel, domain string) models.Rule {
	domains := models.AllDomains()
	if domain != "" {
		domains = models.NewDomainSpec(domain)
	}
	return models.Rule{ID: id, Selector: sel, Domains: domains, Enabled: true}
}

func TestExecuteRemovesMatchesForMatchingDomain(t *testing.T) {
	root, err := dom.ParseFragment(`<div class="ad"></div><div class="keep"></div>`)
	if err != nil {
		t.Fatalf("parse fragment: %v", err)
	}
	exec := New(nil)
	removed := exec.Execute(context.Background(), root, []models.Rule{rule("r1", ".ad", "")}, "example.com", Options{})
	if removed != 1 {
		t.Fatalf("expected 1 removal, got %d", removed)
	}
}

func TestExecuteSkipsNonMatchingDomain(t *testing.T) {
	root, _ := dom.ParseFragment(`<div class="ad"></div>`)
	exec := New(nil)
	removed := exec.Execute(context.Background(), root, []models.Rule{rule("r1", ".ad", "other.com")}, "example.com", Options{})
	if removed != 0 {
		t.Fatalf("expected 0 removals for non-matching domain, got %d", removed)
	}
}

func TestExecuteSkipsDisabledAndInertRules(t *testing.T) {
	root, _ := dom.ParseFragment(`<div class="ad"></div>`)
	exec := New(nil)
	disabled := rule("r1", ".ad", "")
	disabled.Enabled = false
	inert := models.Rule{ID: "r2", Selector: ".ad", Enabled: true}
	removed := exec.Execute(context.Background(), root, []models.Rule{disabled, inert}, "example.com", Options{})
	if removed != 0 {
		t.Fatalf("expected 0 removals, got %d", removed)
	}
}

func TestExecuteSkipsInvalidSelectorAndContinues(t *testing.T) {
	root, _ := dom.ParseFragment(`<div class="ad"></div>`)
	exec := New(nil)
	bad := rule("r1", ":has-text(foo)", "")
	good := rule("r2", ".ad", "")
	removed := exec.Execute(context.Background(), root, []models.Rule{bad, good}, "example.com", Options{})
	if removed != 1 {
		t.Fatalf("expected the valid rule after the invalid one to still run, got %d removals", removed)
	}
}
