// Package threat implements UrlThreatAnalyzer (spec.md §4.11): a
// pure, stateless heuristic URL-risk scorer. Grounded on the
// teacher's scraper/page_health.go, which runs the same shape of
// "classify this page/response by summing independent signal scores"
// logic (but for scrape-success heuristics rather than navigation
// risk).
package threat

import (
	"net/url"
	"strings"
	"unicode"

	"github.com/hybridguard/filterengine/models"
)

// Config is the single authoritative record of scoring weights and
// level thresholds (spec.md §9 Open Question: threat weights/
// thresholds are configuration, never hard-coded inline).
type Config struct {
	ProtocolScore      int
	HomographScore     int
	KnownBadScore      int
	PopUnderScore      int
	SuspiciousTLDScore int
	MediumThreshold    int
	HighThreshold      int
}

// DefaultConfig matches spec.md §4.11's literal point values and
// §4.11's LOW/MEDIUM/HIGH thresholds (4/8).
func DefaultConfig() Config {
	return Config{
		ProtocolScore:      10,
		HomographScore:     5,
		KnownBadScore:      7,
		PopUnderScore:      3,
		SuspiciousTLDScore: 2,
		MediumThreshold:    4,
		HighThreshold:      8,
	}
}

var unsafeProtocols = map[string]bool{
	"javascript:": true,
	"vbscript:":   true,
}

// knownBadSubstrings is a closed list of domain substrings associated
// with ad exchanges, cryptojacking, and telemetry collection
// (spec.md §4.11). Kept intentionally small and explicit rather than
// pulled from an external reputation feed — the core has no network
// dependency for navigation-time decisions.
var knownBadSubstrings = []string{
	"doubleclick",
	"adnxs",
	"coinhive",
	"cryptoloot",
	"taboola",
	"outbrain",
	"scorecardresearch",
	"quantserve",
}

var suspiciousTLDs = map[string]bool{
	".zip":    true,
	".mov":    true,
	".top":    true,
	".xyz":    true,
	".click":  true,
	".work":   true,
	".gq":     true,
	".tk":     true,
}

// Analyzer is UrlThreatAnalyzer.
type Analyzer struct {
	cfg Config
}

// New builds an Analyzer with cfg. A zero Config falls back to
// DefaultConfig.
func New(cfg Config) *Analyzer {
	if cfg == (Config{}) {
		cfg = DefaultConfig()
	}
	return &Analyzer{cfg: cfg}
}

// AnalyzeThreats scores rawURL per spec.md §4.11. hasUserGesture
// reflects the navigation call site's trust token; its absence
// contributes the pop-under signal.
func (a *Analyzer) AnalyzeThreats(rawURL string, hasUserGesture bool) models.ThreatReport {
	report := models.ThreatReport{URL: rawURL}

	u, err := url.Parse(rawURL)
	if err != nil {
		report.Threats = append(report.Threats, models.ThreatSignal{Type: "UnsafeProtocol", Score: a.cfg.ProtocolScore})
		report.RiskScore += a.cfg.ProtocolScore
		report.Level = a.level(report.RiskScore)
		report.Recommendation = models.RecommendationBlock
		return report
	}

	scheme := strings.ToLower(u.Scheme) + ":"
	if unsafeProtocols[scheme] || (scheme == "data:" && looksLikeScriptMime(rawURL)) {
		report.Threats = append(report.Threats, models.ThreatSignal{Type: "UnsafeProtocol", Score: a.cfg.ProtocolScore})
		report.RiskScore += a.cfg.ProtocolScore
	}

	if hasHomographRisk(u.Hostname()) {
		report.Threats = append(report.Threats, models.ThreatSignal{Type: "HomographSuspicion", Score: a.cfg.HomographScore})
		report.RiskScore += a.cfg.HomographScore
	}

	if matchesKnownBad(u.Hostname()) {
		report.Threats = append(report.Threats, models.ThreatSignal{Type: "KnownBadDomainPattern", Score: a.cfg.KnownBadScore})
		report.RiskScore += a.cfg.KnownBadScore
	}

	if !hasUserGesture {
		report.IsPopUnder = true
		report.Threats = append(report.Threats, models.ThreatSignal{Type: "PopUnder", Score: a.cfg.PopUnderScore})
		report.RiskScore += a.cfg.PopUnderScore
	}

	if hasSuspiciousTLD(u.Hostname()) {
		report.Threats = append(report.Threats, models.ThreatSignal{Type: "SuspiciousTLD", Score: a.cfg.SuspiciousTLDScore})
		report.RiskScore += a.cfg.SuspiciousTLDScore
	}

	report.Level = a.level(report.RiskScore)
	report.Recommendation = a.recommend(report)
	return report
}

// GetThreatLevel implements spec.md §4.11's getThreatLevel(score).
func (a *Analyzer) GetThreatLevel(score int) models.ThreatLevel {
	return a.level(score)
}

func (a *Analyzer) level(score int) models.ThreatLevel {
	switch {
	case score >= a.cfg.HighThreshold:
		return models.ThreatLevelHigh
	case score >= a.cfg.MediumThreshold:
		return models.ThreatLevelMedium
	default:
		return models.ThreatLevelLow
	}
}

// recommend implements the recommendation function: an unsafe
// protocol always forces BLOCK regardless of total score; otherwise
// HIGH/pop-under force PROMPT-or-BLOCK per level, LOW with no
// pop-under allows silently.
func (a *Analyzer) recommend(report models.ThreatReport) models.Recommendation {
	for _, t := range report.Threats {
		if t.Type == "UnsafeProtocol" {
			return models.RecommendationBlock
		}
	}
	switch report.Level {
	case models.ThreatLevelHigh:
		return models.RecommendationBlock
	case models.ThreatLevelMedium:
		return models.RecommendationPrompt
	default:
		if report.IsPopUnder {
			return models.RecommendationPrompt
		}
		return models.RecommendationAllow
	}
}

// GetSecurityAnalysis composes validation, analysis, level, and
// recommendation into one report (spec.md §4.11's
// getSecurityAnalysis(url)) — functionally identical to
// AnalyzeThreats; kept as a distinct name to mirror the two distinct
// entry points spec.md names.
func (a *Analyzer) GetSecurityAnalysis(rawURL string, hasUserGesture bool) models.ThreatReport {
	return a.AnalyzeThreats(rawURL, hasUserGesture)
}

func looksLikeScriptMime(rawURL string) bool {
	lower := strings.ToLower(rawURL)
	return strings.HasPrefix(lower, "data:text/html") || strings.HasPrefix(lower, "data:application/javascript") || strings.HasPrefix(lower, "data:text/javascript")
}

// hasHomographRisk reports whether host contains code points from
// script ranges commonly used in homograph attacks against Latin-
// script brand names (e.g. Cyrillic look-alikes of "a", "e", "o").
func hasHomographRisk(host string) bool {
	for _, r := range host {
		if r < unicode.MaxASCII {
			continue
		}
		if unicode.Is(unicode.Cyrillic, r) || unicode.Is(unicode.Greek, r) {
			return true
		}
	}
	return false
}

func matchesKnownBad(host string) bool {
	host = strings.ToLower(host)
	for _, bad := range knownBadSubstrings {
		if strings.Contains(host, bad) {
			return true
		}
	}
	return false
}

func hasSuspiciousTLD(host string) bool {
	host = strings.ToLower(host)
	for tld := range suspiciousTLDs {
		if strings.HasSuffix(host, tld) {
			return true
		}
	}
	return false
}
