package mutation

import (
	"testing"
	"time"

	"github.com/hybridguard/filterengine/dom"
	"github.com/hybridguard/filterengine/domscan"
	"github.com/hybridguard/filterengine/tokenindex"
	"golang.org/x/net/html"
)

func newWatcher(t *testing.T, fragment string, selectors []string) (*Watcher, *html.Node, *domscan.Scanner) {
	t.Helper()
	root, err := dom.ParseFragment(fragment)
	if err != nil {
		t.Fatalf("parse fragment: %v", err)
	}
	idx := tokenindex.New()
	idx.Build(selectors)
	scanner := domscan.New(idx, "https://example.com", nil)
	return New(root, scanner, nil, nil), root, scanner
}

func waitForDrain(t *testing.T, fn func() bool) {
	t.Helper()
	deadline := time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("timed out waiting for drain to take effect")
}

func TestObserveChildListDrainsAddedNode(t *testing.T) {
	w, root, scanner := newWatcher(t, `<div id="container"></div>`, []string{".ad-banner"})
	defer w.Stop()

	added := &html.Node{Type: html.ElementNode, Data: "div", Attr: []html.Attribute{{Key: "class", Val: "ad-banner"}}}
	root.FirstChild.AppendChild(added)

	w.Observe(Record{Kind: KindChildList, AddedNodes: []*html.Node{added}})

	waitForDrain(t, func() bool { return scanner.Stats().Hidden == 1 })
}

func TestObserveAttributesRescansTargetAlone(t *testing.T) {
	w, root, scanner := newWatcher(t, `<div id="x"></div>`, []string{".ad-banner"})
	defer w.Stop()

	target := root.FirstChild
	dom.SetAttr(target, "class", "ad-banner")

	w.Observe(Record{Kind: KindAttributes, Target: target})

	waitForDrain(t, func() bool { return scanner.Stats().Hidden == 1 })
}

func TestStopDropsPendingBuffer(t *testing.T) {
	w, _, scanner := newWatcher(t, `<div id="x"></div>`, []string{".ad-banner"})

	added := &html.Node{Type: html.ElementNode, Data: "div", Attr: []html.Attribute{{Key: "class", Val: "ad-banner"}}}
	w.Observe(Record{Kind: KindChildList, AddedNodes: []*html.Node{added}})
	w.Stop()

	time.Sleep(30 * time.Millisecond)
	if scanner.Stats().Hidden != 0 {
		t.Fatal("expected Stop to drop the pending buffer before it drained")
	}
}

func TestMarkProcessedDedupsRepeatedNode(t *testing.T) {
	w, _, _ := newWatcher(t, `<div id="x"></div>`, []string{".ad-banner"})
	n := &html.Node{Type: html.ElementNode, Data: "div"}
	if w.markProcessed(n) {
		t.Fatal("expected first markProcessed call to report unseen")
	}
	if !w.markProcessed(n) {
		t.Fatal("expected second markProcessed call to report already seen")
	}
}
