package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Server.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if !cfg.RuleSources.DefaultRulesEnabled {
		t.Error("expected DefaultRulesEnabled to default true")
	}
	if cfg.Threat.HighThreshold != 8 || cfg.Threat.MediumThreshold != 4 {
		t.Errorf("expected default threat thresholds 4/8, got %d/%d", cfg.Threat.MediumThreshold, cfg.Threat.HighThreshold)
	}
	if cfg.NavGuard.ArbitrationTimeout != 2*time.Second {
		t.Errorf("expected default arbitration timeout 2s, got %v", cfg.NavGuard.ArbitrationTimeout)
	}
	if len(cfg.RuleSources.RetryDelays) != 3 {
		t.Errorf("expected 3 default retry delays, got %d", len(cfg.RuleSources.RetryDelays))
	}
}

func TestLoadReadsOverridesFromEnv(t *testing.T) {
	t.Setenv("FILTERENGINE_PORT", "9090")
	t.Setenv("FILTERENGINE_THREAT_HIGH_THRESHOLD", "20")
	t.Setenv("FILTERENGINE_DEFAULT_RULES_ENABLED", "false")
	t.Setenv("FILTERENGINE_EASYLIST_RETRY_DELAYS", "1s,3s")

	cfg := Load()

	if cfg.Server.Port != 9090 {
		t.Errorf("expected overridden port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Threat.HighThreshold != 20 {
		t.Errorf("expected overridden high threshold 20, got %d", cfg.Threat.HighThreshold)
	}
	if cfg.RuleSources.DefaultRulesEnabled {
		t.Error("expected DefaultRulesEnabled override to false")
	}
	if len(cfg.RuleSources.RetryDelays) != 2 || cfg.RuleSources.RetryDelays[1] != 3*time.Second {
		t.Errorf("expected overridden retry delays [1s 3s], got %v", cfg.RuleSources.RetryDelays)
	}
}

func TestMutationWatcherConfigAdaptsToMutationConfig(t *testing.T) {
	m := MutationWatcherConfig{FrameInterval: 30 * time.Millisecond, StructuralShiftDistance: 5}
	mc := m.ToMutationConfig()
	if mc.FrameInterval != 30*time.Millisecond || mc.StructuralShiftDistance != 5 {
		t.Errorf("unexpected adapted mutation.Config: %+v", mc)
	}
}

func TestEnvIntOrIgnoresUnparsableValue(t *testing.T) {
	os.Setenv("FILTERENGINE_TEST_BAD_INT", "not-a-number")
	defer os.Unsetenv("FILTERENGINE_TEST_BAD_INT")
	if got := envIntOr("FILTERENGINE_TEST_BAD_INT", 42); got != 42 {
		t.Errorf("expected fallback 42 for unparsable int, got %d", got)
	}
}
