package rules

import (
	"testing"

	"github.com/hybridguard/filterengine/models"
)

func TestParseCosmeticSkipsCommentsAndHeaders(t *testing.T) {
	p := NewParser(nil)
	rules := p.ParseCosmetic([]string{
		"! this is a comment",
		"[Adblock Plus 2.0]",
		"",
		"   ",
		"##.ad-banner",
	})

	if len(rules) != 1 {
		t.Fatalf("expected 1 rule, got %d: %+v", len(rules), rules)
	}
	if rules[0].Selector != ".ad-banner" {
		t.Fatalf("unexpected selector %q", rules[0].Selector)
	}
}

func TestParseCosmeticRequiresDoubleHash(t *testing.T) {
	p := NewParser(nil)
	rules := p.ParseCosmetic([]string{
		"example.com#@#.ad-banner",
		"||example.com/ads/*",
	})
	if len(rules) != 0 {
		t.Fatalf("expected no rules from non ## lines, got %+v", rules)
	}
}

func TestParseCosmeticRejectsProceduralTokens(t *testing.T) {
	p := NewParser(nil)
	lines := []string{
		"##div:has-text(Sponsored)",
		"##.ad:contains(advert)",
		"##div:xpath(//div)",
		"##.card:matches-css(display: none)",
		"##.x:min-text-length(10)",
		"##.y:watch-attr(class)",
		"##.z:-abp-properties(color: red)",
		"##.w:upward(div)",
		"##.v:remove()",
		"##.u:style(display:none)",
		"##.t:matches-path(/foo)",
		"##.s:matches-media(min-width: 100px)",
	}
	rules := p.ParseCosmetic(lines)
	if len(rules) != 0 {
		t.Fatalf("expected every procedural-selector line to be dropped, got %+v", rules)
	}
}

func TestParseCosmeticDropsUnparseableSelector(t *testing.T) {
	p := NewParser(nil)
	rules := p.ParseCosmetic([]string{"##div[unterminated"})
	if len(rules) != 0 {
		t.Fatalf("expected unparseable selector to be dropped, got %+v", rules)
	}
}

func TestParseCosmeticAssignsIncrementingIDs(t *testing.T) {
	p := NewParser(nil)
	rules := p.ParseCosmetic([]string{
		"##.one",
		"##.two",
	})
	if len(rules) != 2 {
		t.Fatalf("expected 2 rules, got %d", len(rules))
	}
	if rules[0].ID != "easylist-0" || rules[1].ID != "easylist-1" {
		t.Fatalf("unexpected IDs: %q, %q", rules[0].ID, rules[1].ID)
	}
	for _, r := range rules {
		if r.Source != models.SourceEasyList || r.Category != models.CategoryEasyList {
			t.Fatalf("unexpected source/category on %+v", r)
		}
		if !r.Domains.All {
			t.Fatalf("expected EasyList cosmetic rules to apply to all domains: %+v", r)
		}
	}
}

func TestParseUserRuleRejectsEmptySelector(t *testing.T) {
	p := NewParser(nil)
	_, err := p.ParseUserRule([]byte(`{"selector": "", "domains": "all"}`))
	if err == nil {
		t.Fatal("expected error for empty selector")
	}
	fe, ok := err.(*models.FilterError)
	if !ok || fe.Code != models.ErrCodeInvalidRule {
		t.Fatalf("expected FilterError with ErrCodeInvalidRule, got %v", err)
	}
}

func TestParseUserRuleRejectsProceduralSelector(t *testing.T) {
	p := NewParser(nil)
	_, err := p.ParseUserRule([]byte(`{"selector": "div:has-text(ad)", "domains": "all"}`))
	if err == nil {
		t.Fatal("expected error for procedural selector")
	}
}

func TestParseUserRuleAllDomains(t *testing.T) {
	p := NewParser(nil)
	rule, err := p.ParseUserRule([]byte(`{"selector": ".ad", "domains": "all"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !rule.Domains.All {
		t.Fatalf("expected domains=all, got %+v", rule.Domains)
	}
	if rule.Source != models.SourceCustom {
		t.Fatalf("expected custom source, got %q", rule.Source)
	}
	if rule.ID != "custom-.ad" {
		t.Fatalf("expected generated id, got %q", rule.ID)
	}
}

func TestParseUserRuleSingleDomainString(t *testing.T) {
	p := NewParser(nil)
	rule, err := p.ParseUserRule([]byte(`{"selector": ".ad", "domains": "example.com"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rule.Domains.All {
		t.Fatalf("expected non-wildcard domains, got %+v", rule.Domains)
	}
	if !rule.Domains.Matches("example.com") || !rule.Domains.Matches("shop.example.com") {
		t.Fatalf("expected host and subdomain match, got %+v", rule.Domains)
	}
	if rule.Domains.Matches("notexample.com") {
		t.Fatalf("bare suffix match must not count as a domain match")
	}
}

func TestParseUserRuleDomainList(t *testing.T) {
	p := NewParser(nil)
	rule, err := p.ParseUserRule([]byte(`{"selector": ".ad", "domains": ["a.com", "b.com"]}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !rule.Domains.Matches("a.com") || !rule.Domains.Matches("b.com") {
		t.Fatalf("expected both listed hosts to match, got %+v", rule.Domains)
	}
}

func TestParseUserRuleRejectsEmptyDomainList(t *testing.T) {
	p := NewParser(nil)
	_, err := p.ParseUserRule([]byte(`{"selector": ".ad", "domains": []}`))
	if err == nil {
		t.Fatal("expected error for empty domains list")
	}
}

func TestParseUserRuleRejectsMissingDomains(t *testing.T) {
	p := NewParser(nil)
	_, err := p.ParseUserRule([]byte(`{"selector": ".ad"}`))
	if err == nil {
		t.Fatal("expected error for missing domains field")
	}
}

func TestParseUserRuleDefaultsEnabledTrue(t *testing.T) {
	p := NewParser(nil)
	rule, err := p.ParseUserRule([]byte(`{"selector": ".ad", "domains": "all"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !rule.Enabled {
		t.Fatal("expected enabled to default true")
	}
}

func TestParseUserRuleHonorsExplicitDisabled(t *testing.T) {
	p := NewParser(nil)
	rule, err := p.ParseUserRule([]byte(`{"selector": ".ad", "domains": "all", "enabled": false}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rule.Enabled {
		t.Fatal("expected enabled=false to be honored")
	}
}
