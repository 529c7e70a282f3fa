package models

// HealthResponse is the response for GET /health.
type HealthResponse struct {
	Status  string `json:"status"` // "healthy" or "degraded"
	Uptime  string `json:"uptime"`
	Version string `json:"version"`
}

// RuleListResponse is the response for GET /rules.
type RuleListResponse struct {
	Rules   []Rule `json:"rules"`
	Version string `json:"version"`
	Count   int    `json:"count"`
}

// WhitelistResponse is the response for GET /whitelist.
type WhitelistResponse struct {
	Hosts []string `json:"hosts"`
}

// StatsResponse is the response for GET /stats.
type StatsResponse struct {
	Navigation NavigationStats          `json:"navigation"`
	Domains    map[string]DomainStats   `json:"domains"`
	Errors     map[string][]ErrorRecord `json:"errors_by_type"`
}

// ThreatAnalyzeResponse is the response for POST /threat/analyze.
type ThreatAnalyzeResponse struct {
	Report ThreatReport `json:"report"`
}

// ScanResponse is the response for POST /scan: applying the current
// rule set to a posted HTML document without a live browser.
type ScanResponse struct {
	Removed  int          `json:"removed"`
	Hidden   int          `json:"hidden"`
	Markers  []string     `json:"markers"` // descriptors of marked elements, for CI diffing
	Warnings []string     `json:"warnings,omitempty"`
	Error    *ErrorDetail `json:"error,omitempty"`
}

// APIResponse is the generic envelope used by mutating admin endpoints
// (rule upload, whitelist add/remove) that only need to report success.
type APIResponse struct {
	Success bool         `json:"success"`
	Error   *ErrorDetail `json:"error,omitempty"`
}
