// Package navguard implements NavigationGuardian (spec.md §4.12): the
// DOM-event and page-world-bridge interception layers for cross-origin
// navigation, coordinating UrlThreatAnalyzer and PromptUi under a
// fail-secure arbitration policy. Grounded on the teacher's
// scraper/hijack.go, which intercepts and arbitrates over page
// requests (allow/block a resource load) the same way this package
// intercepts and arbitrates over navigation attempts — both sit
// between a page event and letting the original action through.
package navguard

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hybridguard/filterengine/models"
	"github.com/hybridguard/filterengine/stats"
	"github.com/hybridguard/filterengine/threat"
)

// maxErrorRecords bounds errorsByType[navType] (spec.md §4.12:
// "keeps the last 10 error records").
const maxErrorRecords = 10

// ArbitrationTimeout bounds how long the page-world bridge layer
// waits on the content-context's permission decision before treating
// the channel as unavailable (spec.md §4.12, §7's BridgeUnavailable/
// ArbitrationTimeout error kinds).
const ArbitrationTimeout = 2 * time.Second

// ConfirmRequest is what PromptUi.Confirm receives.
type ConfirmRequest struct {
	URL    string
	Threat models.ThreatReport
}

// PromptUi is the external confirmation-modal collaborator
// (spec.md §1: "specified only by the interfaces the core uses").
type PromptUi interface {
	Confirm(ctx context.Context, req ConfirmRequest) (bool, error)
}

// IpcChannel is the external inter-context message bus collaborator.
// The page-world bridge layer uses it to ask the content context for
// a permission decision with a bounded wait.
type IpcChannel interface {
	RequestDecision(ctx context.Context, url, navType string) (allow bool, err error)
	NotifyError(err GuardianError)
}

// GuardianError is the NAV_GUARDIAN_ERROR payload (spec.md §6).
type GuardianError struct {
	Message    string
	URL        string
	NavType    string
	IsHighRisk bool
	Stats      models.NavigationStats
}

// Guardian is NavigationGuardian.
type Guardian struct {
	analyzer      *threat.Analyzer
	prompt        PromptUi
	ipc           IpcChannel
	statsStore    *stats.Store
	isWhitelisted func(host string) bool
	logger        *slog.Logger

	mu           sync.Mutex
	activeURL    string
	waiters      []chan bool
	errorsByType map[string][]models.ErrorRecord
}

// New builds a Guardian. ipc may be nil if only the DOM-event layer
// (which never needs the bridge) is in use.
func New(analyzer *threat.Analyzer, prompt PromptUi, ipc IpcChannel, statsStore *stats.Store, isWhitelisted func(string) bool, logger *slog.Logger) *Guardian {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guardian{
		analyzer:      analyzer,
		prompt:        prompt,
		ipc:           ipc,
		statsStore:    statsStore,
		isWhitelisted: isWhitelisted,
		logger:        logger,
		errorsByType:  make(map[string][]models.ErrorRecord),
	}
}

// HandleDOMEvent runs the arbitration flow for a click/submit
// interception, per spec.md §4.12's DOM-event layer. currentHost is
// the host of the document the event occurred in.
func (g *Guardian) HandleDOMEvent(ctx context.Context, currentHost, targetURL string, hasUserGesture bool) bool {
	return g.arbitrate(ctx, currentHost, targetURL, models.NavTypeLocationAssign, hasUserGesture)
}

// HandleBridgeCall runs the arbitration flow for a page-world bridge
// override (window.open/location.*), with fail-secure handling: any
// error, timeout, or nil IpcChannel suppresses the call and records
// the failure; when an IpcChannel is present, the content context is
// also notified with isHighRisk=true (spec.md §4.12 point (d), §7).
func (g *Guardian) HandleBridgeCall(ctx context.Context, currentHost, targetURL, navType string, hasUserGesture bool) (allow bool) {
	if g.isWhitelisted(currentHost) {
		return true
	}

	if g.ipc == nil {
		g.failSecure(targetURL, navType, "navigation bridge unavailable")
		return false
	}

	bridgeCtx, cancel := context.WithTimeout(ctx, ArbitrationTimeout)
	defer cancel()

	done := make(chan struct{})
	var decided bool
	var decideErr error
	go func() {
		defer close(done)
		defer func() {
			if r := recover(); r != nil {
				decideErr = errRecovered(r)
			}
		}()
		decided, decideErr = g.arbitrateBridged(bridgeCtx, targetURL, navType, hasUserGesture)
	}()

	select {
	case <-done:
		if decideErr != nil {
			g.failSecure(targetURL, navType, decideErr.Error())
			return false
		}
		return decided
	case <-bridgeCtx.Done():
		g.failSecure(targetURL, navType, "navigation arbitration timed out")
		return false
	}
}

func (g *Guardian) arbitrateBridged(ctx context.Context, targetURL, navType string, hasUserGesture bool) (bool, error) {
	allow, err := g.ipc.RequestDecision(ctx, targetURL, navType)
	if err != nil {
		return false, err
	}
	if !allow {
		g.recordOutcome(false)
		return false, nil
	}
	// The content context already ran the scoring arbitration before
	// answering RequestDecision; the bridge layer trusts that answer
	// rather than re-scoring, since re-scoring twice would double
	// count the navigation in statsStore.
	g.recordOutcome(true)
	return true, nil
}

// arbitrate is the single-URL arbitration flow (spec.md §4.12):
// Idle → Analyzing → (AutoAllow | Prompting) → (Allowed | Denied) →
// Idle, with terminal states updating stats exactly once and
// deduplication across concurrent requests for the same URL.
func (g *Guardian) arbitrate(ctx context.Context, currentHost, targetURL, navType string, hasUserGesture bool) bool {
	if g.isWhitelisted(currentHost) {
		return true
	}

	g.mu.Lock()
	if g.activeURL == "" {
		g.activeURL = targetURL
		g.mu.Unlock()

		allow := g.runArbitration(ctx, targetURL, navType, hasUserGesture)

		g.mu.Lock()
		waiters := g.waiters
		g.activeURL = ""
		g.waiters = nil
		g.mu.Unlock()
		for _, ch := range waiters {
			ch <- allow
		}
		return allow
	}
	if g.activeURL == targetURL {
		ch := make(chan bool, 1)
		g.waiters = append(g.waiters, ch)
		g.mu.Unlock()
		select {
		case allow := <-ch:
			return allow
		case <-ctx.Done():
			return false
		}
	}
	g.mu.Unlock()
	// A different URL while one arbitration is active: deny for safety
	// (spec.md §4.12's dedup rule).
	return false
}

// runArbitration performs the Analyzing → (AutoAllow|Prompting) →
// (Allowed|Denied) transitions for one URL already claimed as active.
func (g *Guardian) runArbitration(ctx context.Context, targetURL, navType string, hasUserGesture bool) bool {
	report := g.analyzer.AnalyzeThreats(targetURL, hasUserGesture)

	if report.Recommendation == models.RecommendationAllow && !report.IsPopUnder {
		g.recordOutcome(true)
		return true
	}

	if g.prompt == nil {
		g.recordOutcome(false)
		return false
	}

	allow, err := g.prompt.Confirm(ctx, ConfirmRequest{URL: targetURL, Threat: report})
	if err != nil {
		g.logger.Warn("navguard: prompt confirmation failed, denying", "url", targetURL, "error", err)
		g.recordOutcome(false)
		return false
	}
	g.recordOutcome(allow)
	return allow
}

func (g *Guardian) recordOutcome(allow bool) {
	if g.statsStore != nil {
		g.statsStore.IncrementNavigation(allow)
	}
}

// failSecure implements spec.md §7's fail-secure policy: deny, record
// the failure under errorsByType[navType] bounded to the last 10, and
// notify the content context with isHighRisk=true.
func (g *Guardian) failSecure(targetURL, navType, message string) {
	g.mu.Lock()
	records := append(g.errorsByType[navType], models.ErrorRecord{
		Message:    message,
		URL:        targetURL,
		NavType:    navType,
		IsHighRisk: true,
	})
	if len(records) > maxErrorRecords {
		records = records[len(records)-maxErrorRecords:]
	}
	g.errorsByType[navType] = records
	g.mu.Unlock()

	g.recordOutcome(false)

	if g.ipc != nil {
		nav := models.NavigationStats{}
		if g.statsStore != nil {
			nav = g.statsStore.Navigation()
		}
		g.ipc.NotifyError(GuardianError{
			Message:    "Navigation blocked due to security check error",
			URL:        targetURL,
			NavType:    navType,
			IsHighRisk: true,
			Stats:      nav,
		})
	}
}

// ErrorsByType returns a snapshot of the bounded error ring buffer for
// navType.
func (g *Guardian) ErrorsByType(navType string) []models.ErrorRecord {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]models.ErrorRecord, len(g.errorsByType[navType]))
	copy(out, g.errorsByType[navType])
	return out
}

func errRecovered(r interface{}) error {
	return &recoveredPanic{v: r}
}

type recoveredPanic struct{ v interface{} }

func (e *recoveredPanic) Error() string {
	return "navguard: recovered panic during bridge arbitration"
}
