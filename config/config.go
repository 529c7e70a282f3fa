// Package config loads application configuration from environment
// variables with sane defaults, exactly the teacher's envOr/envIntOr/
// envBoolOr/envFloatOr/envDurationOr/envSliceOr helper shape.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hybridguard/filterengine/mutation"
	"github.com/hybridguard/filterengine/threat"
)

// Config holds all application configuration.
type Config struct {
	Server          ServerConfig
	Auth            AuthConfig
	RateLimit       RateLimitConfig
	Log             LogConfig
	RuleSources     RuleSourcesConfig
	TokenIndex      TokenIndexConfig
	MutationWatcher MutationWatcherConfig
	Threat          ThreatConfig
	NavGuard        NavGuardConfig
	Webhook         WebhookConfig
	Browser         BrowserConfig
	AdaptivePool    AdaptivePoolConfig
}

// ServerConfig controls the admin/control HTTP API.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"
}

// AuthConfig controls API key authentication for the admin API.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: true

	// APIKeys is the list of valid API keys.
	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting on the admin API.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 // default: 5

	// Burst is the maximum burst size per API key.
	Burst int // default: 10
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// RuleSourcesConfig controls the RuleSource variants: which are
// enabled, the EasyListDom mirror, and its fetch-engine race tuning.
// The spec's bundling Open Question is resolved here:
// DefaultRulesEnabled bundles both the Default and EasyListDom
// sources, per SPEC_FULL.md's Open Question Resolutions.
type RuleSourcesConfig struct {
	// DefaultRulesEnabled toggles the bundled Default+EasyListDom pair.
	DefaultRulesEnabled bool // default: true

	// CustomRulesEnabled toggles the user-authored Custom source.
	CustomRulesEnabled bool // default: true

	// EasyListResourceURL is the EasyListDom mirror fetched by the
	// Chrome-TLS/plain fetch-engine race.
	EasyListResourceURL string

	// EasyListStaggerDelay is the head start given to the
	// previously-successful engine before the race's fallback engine
	// is dispatched (domain-memory shortcut). rulesource.EasyListDom
	// does not read this field; it uses a fixed 400ms head start.
	EasyListStaggerDelay time.Duration // default: 2s

	// FetchTimeout is a per-attempt bound for the fetch engines. The
	// engines do not read it; each uses a fixed 10s client timeout.
	FetchTimeout time.Duration // default: 10s

	// RetryDelays is a staged retry backoff for a failed EasyListDom
	// race. Nothing reads it: a failed race is not retried, and
	// EasyListDom serves its stale cache entry or an empty set instead.
	RetryDelays []time.Duration // default: [0s, 2s, 5s]
}

// TokenIndexConfig controls TokenIndexer candidate generation.
type TokenIndexConfig struct {
	// MinTokenLength is a minimum class/id token length for indexing.
	// tokenindex does not read it and indexes tokens of every length.
	MinTokenLength int // default: 1 (no filtering)
}

// MutationWatcherConfig controls MutationWatcher's drain cadence and
// structural-shift sensitivity, and SelectorExecutor's cooperative
// yield slice (mutation.Config's configuration-layer home).
// FrameInterval and StructuralShiftDistance reach a watcher only via
// ToMutationConfig and hybrid.Executor.SetMutationConfig, which the
// shipped commands do not call; SelectorYieldBudget is applied through
// coordinator.Coordinator.SetYieldBudget.
type MutationWatcherConfig struct {
	// FrameInterval approximates a requestAnimationFrame tick.
	FrameInterval time.Duration // default: 16ms

	// StructuralShiftDistance is the SimHash Hamming-distance
	// threshold above which a drain triggers a full rescan.
	StructuralShiftDistance int // default: 12

	// SelectorYieldBudget bounds SelectorExecutor's per-rule
	// cooperative-yield time slice.
	SelectorYieldBudget time.Duration // default: 16ms
}

// ToMutationConfig adapts this section into mutation.Config.
func (m MutationWatcherConfig) ToMutationConfig() mutation.Config {
	return mutation.Config{
		FrameInterval:           m.FrameInterval,
		StructuralShiftDistance: m.StructuralShiftDistance,
	}
}

// ThreatConfig is threat.Config's configuration-layer home (the
// weights/thresholds Open Question is resolved by making this a
// first-class config record; no component hard-codes these values
// outside this default).
type ThreatConfig = threat.Config

// NavGuardConfig controls NavigationGuardian's bridge-layer
// bounded wait.
type NavGuardConfig struct {
	// ArbitrationTimeout bounds how long the page-world bridge layer
	// waits on a permission decision before failing secure. navguard
	// does not read this field; it uses its own ArbitrationTimeout
	// constant (2s).
	ArbitrationTimeout time.Duration // default: 2s
}

// WebhookConfig controls optional external delivery of
// NAV_GUARDIAN_ERROR events and periodic stats snapshots.
type WebhookConfig struct {
	// URL is the operator-configured delivery endpoint. Empty disables
	// delivery entirely.
	URL string

	// Secret HMAC-signs the delivered payload when non-empty.
	Secret string
}

// BrowserConfig controls the live-harness Rod browser instance (the
// browser package's CDP-bridge page pool).
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// MaxPages is a page pool capacity setting (max concurrent tabs).
	// The browser package does not read it; the tab pool is sized by
	// AdaptivePoolConfig.
	MaxPages int // default: 10

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string
}

// AdaptivePoolConfig controls the live harness's adaptive page pool
// sizing, scaled by host memory pressure.
type AdaptivePoolConfig struct {
	// MinPages is the minimum number of pages kept in the pool.
	MinPages int // default: 3

	// HardMax is the absolute maximum number of pages.
	HardMax int // default: 20

	// MemThreshold is the heap memory fraction (0.0-1.0) above which the pool shrinks.
	MemThreshold float64 // default: 0.9

	// ScaleStep is the fraction of pool size to grow or shrink per interval.
	ScaleStep float64 // default: 0.05
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host: envOr("FILTERENGINE_HOST", "0.0.0.0"),
			Port: envIntOr("FILTERENGINE_PORT", 8080),
			Mode: envOr("FILTERENGINE_MODE", "release"),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("FILTERENGINE_AUTH_ENABLED", true),
			APIKeys: envSliceOr("FILTERENGINE_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("FILTERENGINE_RATE_RPS", 5.0),
			Burst:             envIntOr("FILTERENGINE_RATE_BURST", 10),
		},
		Log: LogConfig{
			Level:  envOr("FILTERENGINE_LOG_LEVEL", "info"),
			Format: envOr("FILTERENGINE_LOG_FORMAT", "json"),
		},
		RuleSources: RuleSourcesConfig{
			DefaultRulesEnabled:  envBoolOr("FILTERENGINE_DEFAULT_RULES_ENABLED", true),
			CustomRulesEnabled:   envBoolOr("FILTERENGINE_CUSTOM_RULES_ENABLED", true),
			EasyListResourceURL:  envOr("FILTERENGINE_EASYLIST_URL", "https://easylist.to/easylist/easylist.txt"),
			EasyListStaggerDelay: envDurationOr("FILTERENGINE_EASYLIST_STAGGER", 2*time.Second),
			FetchTimeout:         envDurationOr("FILTERENGINE_FETCH_TIMEOUT", 10*time.Second),
			RetryDelays:          envDurationSliceOr("FILTERENGINE_EASYLIST_RETRY_DELAYS", []time.Duration{0, 2 * time.Second, 5 * time.Second}),
		},
		TokenIndex: TokenIndexConfig{
			MinTokenLength: envIntOr("FILTERENGINE_MIN_TOKEN_LENGTH", 1),
		},
		MutationWatcher: MutationWatcherConfig{
			FrameInterval:           envDurationOr("FILTERENGINE_FRAME_INTERVAL", mutation.FrameInterval),
			StructuralShiftDistance: envIntOr("FILTERENGINE_STRUCTURAL_SHIFT_DISTANCE", mutation.StructuralShiftDistance),
			SelectorYieldBudget:     envDurationOr("FILTERENGINE_SELECTOR_YIELD_BUDGET", 16*time.Millisecond),
		},
		Threat: ThreatConfig{
			ProtocolScore:      envIntOr("FILTERENGINE_THREAT_PROTOCOL_SCORE", 10),
			HomographScore:     envIntOr("FILTERENGINE_THREAT_HOMOGRAPH_SCORE", 5),
			KnownBadScore:      envIntOr("FILTERENGINE_THREAT_KNOWN_BAD_SCORE", 7),
			PopUnderScore:      envIntOr("FILTERENGINE_THREAT_POPUNDER_SCORE", 3),
			SuspiciousTLDScore: envIntOr("FILTERENGINE_THREAT_TLD_SCORE", 2),
			MediumThreshold:    envIntOr("FILTERENGINE_THREAT_MEDIUM_THRESHOLD", 4),
			HighThreshold:      envIntOr("FILTERENGINE_THREAT_HIGH_THRESHOLD", 8),
		},
		NavGuard: NavGuardConfig{
			ArbitrationTimeout: envDurationOr("FILTERENGINE_ARBITRATION_TIMEOUT", 2*time.Second),
		},
		Webhook: WebhookConfig{
			URL:    os.Getenv("FILTERENGINE_WEBHOOK_URL"),
			Secret: os.Getenv("FILTERENGINE_WEBHOOK_SECRET"),
		},
		Browser: BrowserConfig{
			Headless:   envBoolOr("FILTERENGINE_HEADLESS", true),
			MaxPages:   envIntOr("FILTERENGINE_MAX_PAGES", 10),
			NoSandbox:  envBoolOr("FILTERENGINE_NO_SANDBOX", false),
			BrowserBin: os.Getenv("FILTERENGINE_BROWSER_BIN"),
		},
		AdaptivePool: AdaptivePoolConfig{
			MinPages:     envIntOr("FILTERENGINE_MIN_PAGES", 3),
			HardMax:      envIntOr("FILTERENGINE_HARD_MAX_PAGES", 20),
			MemThreshold: envFloatOr("FILTERENGINE_MEM_THRESHOLD", 0.9),
			ScaleStep:    envFloatOr("FILTERENGINE_SCALE_STEP", 0.05),
		},
	}
}

func envDurationSliceOr(key string, fallback []time.Duration) []time.Duration {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]time.Duration, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				if d, err := time.ParseDuration(trimmed); err == nil {
					result = append(result, d)
				}
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
