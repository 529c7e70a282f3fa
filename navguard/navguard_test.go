package navguard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hybridguard/filterengine/stats"
	"github.com/hybridguard/filterengine/store"
	"github.com/hybridguard/filterengine/threat"
)

type fakePrompt struct {
	allow bool
	err   error
	calls int
}

func (f *fakePrompt) Confirm(ctx context.Context, req ConfirmRequest) (bool, error) {
	f.calls++
	return f.allow, f.err
}

type fakeIPC struct {
	allow    bool
	err      error
	delay    time.Duration
	notified []GuardianError
}

func (f *fakeIPC) RequestDecision(ctx context.Context, url, navType string) (bool, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
	return f.allow, f.err
}

func (f *fakeIPC) NotifyError(e GuardianError) {
	f.notified = append(f.notified, e)
}

func newGuardian(prompt PromptUi, ipc IpcChannel, whitelisted map[string]bool) *Guardian {
	backing := store.NewMemory()
	st := stats.New(context.Background(), backing, nil)
	analyzer := threat.New(threat.DefaultConfig())
	return New(analyzer, prompt, ipc, st, func(h string) bool { return whitelisted[h] }, nil)
}

func TestWhitelistedHostAllowsSilently(t *testing.T) {
	g := newGuardian(&fakePrompt{allow: false}, nil, map[string]bool{"trusted.com": true})
	allow := g.HandleDOMEvent(context.Background(), "trusted.com", "https://evil.example/x", true)
	if !allow {
		t.Fatal("expected whitelisted host to allow silently regardless of prompt")
	}
}

func TestCleanURLAutoAllowsWithoutPrompting(t *testing.T) {
	prompt := &fakePrompt{allow: false}
	g := newGuardian(prompt, nil, nil)
	allow := g.HandleDOMEvent(context.Background(), "example.com", "https://example.com/page", true)
	if !allow {
		t.Fatal("expected clean URL to auto-allow")
	}
	if prompt.calls != 0 {
		t.Fatalf("expected no prompt for a clean URL, got %d calls", prompt.calls)
	}
}

func TestRiskyURLPromptsAndRespectsDenial(t *testing.T) {
	prompt := &fakePrompt{allow: false}
	g := newGuardian(prompt, nil, nil)
	allow := g.HandleDOMEvent(context.Background(), "example.com", "https://ads.doubleclick.net/x", true)
	if allow {
		t.Fatal("expected denial to be respected")
	}
	if prompt.calls != 1 {
		t.Fatalf("expected exactly one prompt call, got %d", prompt.calls)
	}
}

func TestBridgeCallFailsSecureWithNoIPC(t *testing.T) {
	g := newGuardian(nil, nil, nil)
	allow := g.HandleBridgeCall(context.Background(), "example.com", "https://example.com/x", "window.open", true)
	if allow {
		t.Fatal("expected fail-secure deny with no IpcChannel")
	}
	if len(g.ErrorsByType("window.open")) != 1 {
		t.Fatal("expected one recorded error for window.open")
	}
}

func TestBridgeCallFailsSecureOnIPCError(t *testing.T) {
	ipc := &fakeIPC{err: errors.New("channel closed")}
	g := newGuardian(nil, ipc, nil)
	allow := g.HandleBridgeCall(context.Background(), "example.com", "https://example.com/x", "location.assign", true)
	if allow {
		t.Fatal("expected fail-secure deny on IPC error")
	}
}

func TestBridgeCallFailsSecureOnTimeout(t *testing.T) {
	ipc := &fakeIPC{allow: true, delay: ArbitrationTimeout + 500*time.Millisecond}
	g := newGuardian(nil, ipc, nil)

	ctx, cancel := context.WithTimeout(context.Background(), ArbitrationTimeout+time.Second)
	defer cancel()
	allow := g.HandleBridgeCall(ctx, "example.com", "https://example.com/x", "location.replace", true)
	if allow {
		t.Fatal("expected fail-secure deny on arbitration timeout")
	}
	if len(ipc.notified) != 1 || !ipc.notified[0].IsHighRisk {
		t.Fatal("expected a high-risk NAV_GUARDIAN_ERROR notification on timeout")
	}
}

func TestBridgeCallAllowsOnSuccessfulDecision(t *testing.T) {
	ipc := &fakeIPC{allow: true}
	g := newGuardian(nil, ipc, nil)
	allow := g.HandleBridgeCall(context.Background(), "example.com", "https://example.com/x", "location.href", true)
	if !allow {
		t.Fatal("expected allow on successful bridge decision")
	}
}

func TestConcurrentArbitrationForDifferentURLDeniesSafety(t *testing.T) {
	prompt := &fakePrompt{allow: true}
	g := newGuardian(prompt, nil, nil)

	g.mu.Lock()
	g.activeURL = "https://already-in-flight.example/a"
	g.mu.Unlock()

	allow := g.HandleDOMEvent(context.Background(), "example.com", "https://different.example/b", true)
	if allow {
		t.Fatal("expected concurrent different-URL arbitration to deny for safety")
	}
}
