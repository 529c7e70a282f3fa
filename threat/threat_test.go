package threat

import (
	"testing"

	"github.com/hybridguard/filterengine/models"
)

func TestUnsafeProtocolForcesBlock(t *testing.T) {
	a := New(DefaultConfig())
	report := a.AnalyzeThreats("javascript:alert(1)", true)
	if report.Recommendation != models.RecommendationBlock {
		t.Fatalf("expected BLOCK for javascript: protocol, got %s", report.Recommendation)
	}
}

func TestPopUnderWithoutGestureAddsScore(t *testing.T) {
	a := New(DefaultConfig())
	report := a.AnalyzeThreats("https://example.com/landing", false)
	if !report.IsPopUnder {
		t.Fatal("expected IsPopUnder true without a user gesture")
	}
	if report.RiskScore < DefaultConfig().PopUnderScore {
		t.Fatalf("expected pop-under score contribution, got %d", report.RiskScore)
	}
}

func TestCleanURLWithGestureIsAllowed(t *testing.T) {
	a := New(DefaultConfig())
	report := a.AnalyzeThreats("https://example.com/", true)
	if report.Recommendation != models.RecommendationAllow {
		t.Fatalf("expected ALLOW for a clean URL with a gesture, got %s", report.Recommendation)
	}
	if report.Level != models.ThreatLevelLow {
		t.Fatalf("expected LOW level, got %s", report.Level)
	}
}

func TestKnownBadDomainIncreasesScore(t *testing.T) {
	a := New(DefaultConfig())
	report := a.AnalyzeThreats("https://ads.doubleclick.net/track", true)
	found := false
	for _, sig := range report.Threats {
		if sig.Type == "KnownBadDomainPattern" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected KnownBadDomainPattern signal for a known-bad host")
	}
}

func TestThreatLevelThresholds(t *testing.T) {
	a := New(DefaultConfig())
	if a.GetThreatLevel(3) != models.ThreatLevelLow {
		t.Fatal("expected LOW below medium threshold")
	}
	if a.GetThreatLevel(4) != models.ThreatLevelMedium {
		t.Fatal("expected MEDIUM at medium threshold")
	}
	if a.GetThreatLevel(8) != models.ThreatLevelHigh {
		t.Fatal("expected HIGH at high threshold")
	}
}

func TestSuspiciousTLDAddsScore(t *testing.T) {
	a := New(DefaultConfig())
	report := a.AnalyzeThreats("https://free-prize.top/claim", true)
	found := false
	for _, sig := range report.Threats {
		if sig.Type == "SuspiciousTLD" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected SuspiciousTLD signal for a .top host")
	}
}
