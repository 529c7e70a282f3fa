package models

import "time"

// NavigationStats holds the two session-scoped navigation counters
// from spec.md §3. Counters are monotonically non-decreasing except
// for explicit administrative resets.
type NavigationStats struct {
	BlockedCount int64 `json:"blocked_count"`
	AllowedCount int64 `json:"allowed_count"`
}

// DomainStats tracks per-domain removal counts, split by which rule
// source caused the removal (spec.md §3, §6 domainStats key).
type DomainStats struct {
	DefaultRulesRemoved int64 `json:"default_rules_removed"`
	CustomRulesRemoved  int64 `json:"custom_rules_removed"`
}

// ErrorRecord is one entry in NavigationGuardian's bounded
// errorsByType[navType] ring buffer (spec.md §4.12: keep the last 10).
type ErrorRecord struct {
	Message    string    `json:"message"`
	URL        string    `json:"url"`
	NavType    string    `json:"nav_type"`
	IsHighRisk bool      `json:"is_high_risk"`
	At         time.Time `json:"at"`
}

// NavType enumerates the page-world navigation primitives the guardian
// intercepts (spec.md §4.12, §6).
const (
	NavTypeWindowOpen      = "window.open"
	NavTypeLocationAssign  = "location.assign"
	NavTypeLocationReplace = "location.replace"
	NavTypeLocationHrefSet = "location.href"
)
