package domscan

import (
	"testing"

	"github.com/hybridguard/filterengine/dom"
	"github.com/hybridguard/filterengine/tokenindex"
	"golang.org/x/net/html"
)

func newScanner(t *testing.T, fragment string, selectors []string) (*Scanner, *html.Node) {
	t.Helper()
	root, err := dom.ParseFragment(fragment)
	if err != nil {
		t.Fatalf("parse fragment: %v", err)
	}
	idx := tokenindex.New()
	idx.Build(selectors)
	return New(idx, "https://example.com/page", nil), root
}

func TestScanRemovesScriptOnMatch(t *testing.T) {
	scanner, root := newScanner(t, `<script class="ad-script"></script>`, []string{"script.ad-script"})
	scanner.Scan(root)
	if scanner.Stats().Removed != 1 {
		t.Fatalf("expected 1 removal, got stats %+v", scanner.Stats())
	}
}

func TestScanHidesNonScriptMatch(t *testing.T) {
	scanner, root := newScanner(t, `<div class="ad-banner"></div>`, []string{".ad-banner"})
	scanner.Scan(root)
	stats := scanner.Stats()
	if stats.Hidden != 1 || stats.Removed != 0 {
		t.Fatalf("expected hide not remove, got stats %+v", stats)
	}
}

func TestScanIsIdempotentOnAlreadyMarked(t *testing.T) {
	scanner, root := newScanner(t, `<div class="ad-banner" data-content-blocked="true"></div>`, []string{".ad-banner"})
	scanner.Scan(root)
	stats := scanner.Stats()
	if stats.AlreadyMarked != 1 || stats.Hidden != 0 {
		t.Fatalf("expected already-marked short circuit, got stats %+v", stats)
	}
}

func TestScanRemovesCrossOriginIframeNotFrameworkManaged(t *testing.T) {
	scanner, root := newScanner(t, `<iframe class="ad-frame" src="https://evil.example/iframe"></iframe>`, []string{".ad-frame"})
	scanner.Scan(root)
	if scanner.Stats().Removed != 1 {
		t.Fatalf("expected cross-origin iframe removal, got stats %+v", scanner.Stats())
	}
}

func TestScanHidesFrameworkManagedCrossOriginIframe(t *testing.T) {
	scanner, root := newScanner(t,
		`<iframe class="ad-frame" src="https://evil.example/iframe" data-framework-marker="_reactRootContainer"></iframe>`,
		[]string{".ad-frame"})
	scanner.Scan(root)
	stats := scanner.Stats()
	if stats.Removed != 0 || stats.Hidden != 1 {
		t.Fatalf("expected framework-managed iframe to be hidden not removed, got stats %+v", stats)
	}
}

func TestScanElementSkipsDescendantsOfRemovedRoot(t *testing.T) {
	scanner, root := newScanner(t,
		`<script class="ad-wrap"><span class="inner"></span></script>`,
		[]string{"script.ad-wrap", ".inner"})
	scanner.Scan(root)
	stats := scanner.Stats()
	if stats.Removed != 1 {
		t.Fatalf("expected wrapper removal, got stats %+v", stats)
	}
	if stats.Hidden != 0 {
		t.Fatalf("expected inner span to never be scanned once parent was removed, got stats %+v", stats)
	}
}
