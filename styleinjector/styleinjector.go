// Package styleinjector implements StyleInjector (spec.md §4.5): a
// single consolidated stylesheet that makes the declarative half of
// the hybrid execution model effective — every selector a rule set
// contributes gets one `display:none !important;` declaration, plus a
// universal rule for the blocked-marker attribute the procedural path
// (domscan) sets. Grounded on the teacher's atomic-replace style used
// for the single injected sheet in scraper/hijack.go, which swaps a
// page-level resource wholesale rather than patching it incrementally.
package styleinjector

import (
	"fmt"
	"strings"
	"sync"

	"github.com/hybridguard/filterengine/dom"
	"golang.org/x/net/html"
)

// StyleID is the stable element id the injected <style> tag carries,
// letting a later inject() call find and atomically replace the
// previous sheet instead of accumulating duplicates.
const StyleID = "filterengine-cosmetic-style"

// blockedMarkerRule hides and disables interaction with any element
// the procedural path has marked, regardless of which selector bucket
// it came from (spec.md §4.5).
const blockedMarkerRuleTemplate = `[%s="true"]{display:none!important;visibility:hidden!important;height:0!important;width:0!important;overflow:hidden!important;pointer-events:none!important;}`

// Injector is StyleInjector, scoped to one document tree.
type Injector struct {
	mu      sync.Mutex
	root    *html.Node
	styleEl *html.Node
}

// New builds an Injector targeting root's document tree. root should
// be (or contain) a <head> element; if none exists, the stylesheet is
// appended directly under root.
func New(root *html.Node) *Injector {
	return &Injector{root: root}
}

// Inject builds a single stylesheet from selectors and swaps it in
// atomically, replacing any sheet from a previous Inject call. Returns
// the number of declarations written (selectors + 1 for the marker rule).
func (inj *Injector) Inject(selectors []string) int {
	inj.mu.Lock()
	defer inj.mu.Unlock()

	var b strings.Builder
	for _, sel := range selectors {
		b.WriteString(sel)
		b.WriteString("{display:none!important;}")
	}
	b.WriteString(fmt.Sprintf(blockedMarkerRuleTemplate, dom.BlockedMarkerAttr))

	newStyle := &html.Node{
		Type: html.ElementNode,
		Data: "style",
		Attr: []html.Attribute{{Key: "id", Val: StyleID}},
	}
	newStyle.AppendChild(&html.Node{Type: html.TextNode, Data: b.String()})

	parent := inj.findHead()
	if inj.styleEl != nil {
		dom.Remove(inj.styleEl)
	}
	parent.AppendChild(newStyle)
	inj.styleEl = newStyle

	return len(selectors) + 1
}

// findHead returns the document's <head> element if one exists under
// root, else root itself.
func (inj *Injector) findHead() *html.Node {
	for _, n := range dom.Descendants(inj.root) {
		if dom.TagName(n) == "head" {
			return n
		}
	}
	return inj.root
}

// Cleanup removes the injected sheet, if any.
func (inj *Injector) Cleanup() {
	inj.mu.Lock()
	defer inj.mu.Unlock()
	if inj.styleEl != nil {
		dom.Remove(inj.styleEl)
		inj.styleEl = nil
	}
}

// IsInjected reports whether the sheet is still attached to the live
// document tree (spec.md §4.5) — distinct from merely having been
// injected once, since the host page's own script could in principle
// have detached it.
func (inj *Injector) IsInjected() bool {
	inj.mu.Lock()
	defer inj.mu.Unlock()
	if inj.styleEl == nil {
		return false
	}
	return dom.Connected(inj.styleEl, inj.root)
}
