package browser

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"golang.org/x/net/html"

	"github.com/hybridguard/filterengine/config"
	"github.com/hybridguard/filterengine/dom"
	"github.com/hybridguard/filterengine/models"
	"github.com/hybridguard/filterengine/styleinjector"
)

// Harness owns the live browser process and the TabPool of open tabs
// the cosmetic-filter pipeline runs against. Grounded on the teacher's
// Scraper: same launcher flags (stealth, sandboxing, automation-flag
// suppression), same page-pool-over-one-browser-process shape, but
// each tab here stays open for continuous filtering instead of being
// fetched once and discarded.
type Harness struct {
	browser *rod.Browser
	pool    *TabPool
	cfg     config.BrowserConfig
	logger  *slog.Logger

	mu     sync.Mutex
	pages  map[int64]*rod.Page
	nextID int64
}

// New launches a headless browser and initialises the tab pool.
func New(cfg config.BrowserConfig, poolCfg config.AdaptivePoolConfig, logger *slog.Logger) (*Harness, error) {
	if logger == nil {
		logger = slog.Default()
	}

	l := launcher.New().
		Headless(cfg.Headless).
		NoSandbox(cfg.NoSandbox)
	if cfg.BrowserBin != "" {
		l = l.Bin(cfg.BrowserBin)
	}

	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-popup-blocking"))
	l.Set(flags.Flag("disable-prompt-on-repost"))
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, models.NewFilterError(models.ErrCodeBridgeUnavailable, "failed to launch browser", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, models.NewFilterError(models.ErrCodeBridgeUnavailable, "failed to connect to browser", err)
	}

	h := &Harness{
		browser: browser,
		cfg:     cfg,
		logger:  logger,
		pages:   make(map[int64]*rod.Page),
	}

	pool, err := NewTabPool(poolCfg, h.openPage, h.closePage, logger)
	if err != nil {
		browser.MustClose()
		return nil, err
	}
	h.pool = pool

	return h, nil
}

func (h *Harness) openPage() (int64, error) {
	page, err := h.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return 0, err
	}
	if _, err := page.EvalOnNewDocument(stealth.JS); err != nil {
		h.logger.Warn("browser: failed to install stealth script on new tab", "error", err)
	}

	h.mu.Lock()
	h.nextID++
	id := h.nextID
	h.pages[id] = page
	h.mu.Unlock()
	return id, nil
}

func (h *Harness) closePage(id int64) {
	h.mu.Lock()
	page, ok := h.pages[id]
	delete(h.pages, id)
	h.mu.Unlock()
	if ok {
		_ = page.Close()
	}
}

// Tab is a checked-out browser tab paired with its pool handle.
type Tab struct {
	Page   *rod.Page
	handle *TabHandle
}

// Acquire checks out a tab and navigates it to targetURL.
func (h *Harness) Acquire(ctx context.Context, targetURL string) (*Tab, error) {
	handle, err := h.pool.Get()
	if err != nil {
		return nil, err
	}
	h.mu.Lock()
	page := h.pages[handle.ID]
	h.mu.Unlock()
	if page == nil {
		h.pool.Put(handle, false)
		return nil, models.NewFilterError(models.ErrCodeBridgeUnavailable, "tab handle has no backing page", nil)
	}

	page = page.Context(ctx)
	if err := page.Navigate(targetURL); err != nil {
		h.pool.Put(handle, false)
		return nil, models.NewFilterError(models.ErrCodeNetworkFailure, "navigation failed", err)
	}
	_ = page.WaitLoad()

	return &Tab{Page: page, handle: handle}, nil
}

// Release returns t's tab to the pool.
func (h *Harness) Release(t *Tab, success bool) {
	h.pool.Put(t.handle, success)
}

// RecordScanOutcome tracks whether t's most recent filtering pass
// (Snapshot+Sync) actually reached the page, and reports whether t has
// now accumulated enough consecutive sync failures (or otherwise aged
// out under TabPool's generic health rules) that the caller should
// release it and acquire a fresh tab before the next pass, rather than
// waiting for the tab to be returned to the pool the normal way.
func (t *Tab) RecordScanOutcome(synced bool) bool {
	t.handle.RecordSyncOutcome(synced)
	return t.handle.shouldRetire()
}

// frameworkMarkerScanJS walks every element in the live page and, for
// any carrying one of the private JS own-keys spec.md §4.6 treats as
// framework ownership, writes them onto dom.FrameworkMarkerAttr so the
// marker survives the HTML serialization Snapshot reads next. This is
// the mirroring step dom.IsFrameworkManaged's doc comment describes:
// golang.org/x/net/html has no notion of JS expando properties, so the
// live page is asked to surface them as a plain attribute first.
const frameworkMarkerScanJS = `() => {
	const candidateKeys = ['_reactRootContainer', '__vue__', '__vueParentComponent'];
	document.querySelectorAll('*').forEach((el) => {
		const keys = Object.keys(el).filter((k) =>
			candidateKeys.includes(k) || k.startsWith('__react') || k.startsWith('__ng'));
		if (keys.length > 0) {
			el.setAttribute(` + "`data-framework-marker`" + `, keys.join(','));
		}
	});
}`

// Snapshot fetches t's current rendered DOM, parsed into the same
// node tree hybrid.Executor and coordinator.Coordinator operate on.
// Mirrors framework-ownership markers onto the live DOM first so they
// survive the HTML round-trip (see frameworkMarkerScanJS).
func (t *Tab) Snapshot() (*html.Node, error) {
	if _, err := t.Page.Eval(frameworkMarkerScanJS); err != nil {
		return nil, models.NewFilterError(models.ErrCodeBridgeUnavailable, "failed to mirror framework markers", err)
	}

	outer, err := t.Page.HTML()
	if err != nil {
		return nil, models.NewFilterError(models.ErrCodeParseFailure, "failed to read live DOM", err)
	}
	return dom.Parse(strings.NewReader(outer))
}

// Sync pushes the consolidated stylesheet a completed Execute pass
// produced on root back onto the live tab, the same
// atomic-replace-by-id technique StyleInjector uses on an in-memory
// tree, issued here as a script evaluated in the page's own JS
// context. Blocked-marker attributes set on root are not copied to the
// live page.
func (t *Tab) Sync(root *html.Node) error {
	css := extractStyleText(root)
	if css == "" {
		return nil
	}
	script := fmt.Sprintf(`() => {
		let el = document.getElementById(%q);
		if (!el) {
			el = document.createElement('style');
			el.id = %q;
			document.head.appendChild(el);
		}
		el.textContent = %q;
	}`, styleinjector.StyleID, styleinjector.StyleID, css)
	_, err := t.Page.Eval(script)
	return err
}

// extractStyleText finds the StyleInjector-managed <style> element and
// returns its text content, or "" if none was injected.
func extractStyleText(root *html.Node) string {
	var out string
	dom.Walk(root, func(n *html.Node) bool {
		if out != "" {
			return false
		}
		if dom.TagName(n) == "style" {
			if id, _ := dom.Attr(n, "id"); id == styleinjector.StyleID {
				if n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
					out = n.FirstChild.Data
				}
				return false
			}
		}
		return true
	})
	return out
}

// Close stops the tab pool and the browser process.
func (h *Harness) Close() {
	h.logger.Info("browser: shutting down")
	h.pool.Stop()
	h.browser.MustClose()
}
