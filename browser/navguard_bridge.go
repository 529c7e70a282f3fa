package browser

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-rod/rod"
	"github.com/ysmood/gson"

	"github.com/hybridguard/filterengine/navguard"
)

// NavBridge installs page-world wrappers around window.open,
// location.assign and location.replace (spec.md §4.12's bridge layer;
// assignments to location.href are not intercepted) and routes each
// call through a Go-side decision before letting the original
// primitive run. Grounded on the teacher's scraper/hijack.go, which
// installs a single page-level interceptor the same way — one binding
// point between a page event and a Go-side decision.
type NavBridge struct {
	page   *rod.Page
	logger *slog.Logger
}

// NewNavBridge builds a NavBridge over page. Call Install before the
// page navigates to the site under observation, so the wrapper
// functions exist before any site script runs.
func NewNavBridge(page *rod.Page, logger *slog.Logger) *NavBridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &NavBridge{page: page, logger: logger}
}

// decisionWaiter mirrors Guardian.HandleBridgeCall's signature; the
// caller (cmd/filterengine-live) supplies a closure over its own
// Guardian instance rather than NavBridge owning one, since the
// Harness serves many tabs against a single shared Guardian.
type decisionWaiter func(ctx context.Context, currentHost, targetURL, navType string, hasUserGesture bool) bool

// Install binds window.open/location.assign/replace to a Go callback
// that arbitrates through decide before letting the navigation
// proceed. The location.href setter is not wrapped, so href
// assignments navigate without arbitration.
func (b *NavBridge) Install(currentHost string, decide decisionWaiter) error {
	const binding = "__filterengineArbitrate"

	_, err := b.page.Expose(binding, func(data gson.JSON) (interface{}, error) {
		targetURL := data.Get("url").Str()
		navType := data.Get("navType").Str()
		hasGesture := data.Get("hasUserGesture").Bool()

		ctx, cancel := context.WithTimeout(context.Background(), navguard.ArbitrationTimeout)
		defer cancel()
		allow := decide(ctx, currentHost, targetURL, navType, hasGesture)
		return map[string]interface{}{"allow": allow}, nil
	})
	if err != nil {
		return err
	}

	_, err = b.page.EvalOnNewDocument(navBridgeInstallJS(binding))
	return err
}

// navBridgeInstallJS wraps window.open, location.assign and
// location.replace (not the location.href setter) so each of those
// calls routes through the exposed binding before the original
// primitive runs, mirroring spec.md §4.12's page-world bridge layer.
func navBridgeInstallJS(binding string) string {
	return fmt.Sprintf(`() => {
		const ask = (url, navType) => window[%q]({url, navType, hasUserGesture: !!navigator.userActivation?.isActive});

		const origOpen = window.open;
		window.open = function(url, ...rest) {
			ask(url, 'window.open').then((res) => { if (res && res.allow) origOpen.call(window, url, ...rest); });
			return null;
		};

		const origAssign = window.location.assign.bind(window.location);
		window.location.assign = function(url) {
			ask(url, 'location.assign').then((res) => { if (res && res.allow) origAssign(url); });
		};

		const origReplace = window.location.replace.bind(window.location);
		window.location.replace = function(url) {
			ask(url, 'location.replace').then((res) => { if (res && res.allow) origReplace(url); });
		};
	}`, binding)
}
