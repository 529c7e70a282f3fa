package styleinjector

import (
	"strings"
	"testing"

	"github.com/hybridguard/filterengine/dom"
)

func TestInjectBuildsConsolidatedSheetAndIsIdempotentOnReplace(t *testing.T) {
	root, err := dom.ParseFragment(`<div class="ad"></div>`)
	if err != nil {
		t.Fatalf("parse fragment: %v", err)
	}

	inj := New(root)
	n := inj.Inject([]string{".ad", "#tracker"})
	if n != 3 {
		t.Fatalf("expected 3 declarations (2 selectors + marker rule), got %d", n)
	}
	if !inj.IsInjected() {
		t.Fatal("expected sheet to be injected")
	}

	first := inj.styleEl
	n2 := inj.Inject([]string{".only-one"})
	if n2 != 2 {
		t.Fatalf("expected 2 declarations on replace, got %d", n2)
	}
	if inj.styleEl == first {
		t.Fatal("expected atomic swap to install a new style element")
	}
	if dom.Connected(first, root) {
		t.Fatal("expected previous style element to be detached after swap")
	}
}

func TestInjectContainsBlockedMarkerRule(t *testing.T) {
	root, _ := dom.ParseFragment(`<body></body>`)
	inj := New(root)
	inj.Inject([]string{".x"})

	var css strings.Builder
	for c := inj.styleEl.FirstChild; c != nil; c = c.NextSibling {
		css.WriteString(c.Data)
	}
	if !strings.Contains(css.String(), dom.BlockedMarkerAttr) {
		t.Fatal("expected stylesheet to contain the blocked-marker rule")
	}
}

func TestCleanupDetachesSheet(t *testing.T) {
	root, _ := dom.ParseFragment(`<body></body>`)
	inj := New(root)
	inj.Inject([]string{".x"})
	inj.Cleanup()
	if inj.IsInjected() {
		t.Fatal("expected IsInjected to be false after Cleanup")
	}
}
