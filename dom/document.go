// Package dom provides the shared node-tree helpers every engine
// package builds on: parsing, selector compilation/matching, attribute
// access, and the framework-ownership probe used by the tiered removal
// policy. It is the one place that talks directly to
// golang.org/x/net/html and github.com/andybalholm/cascadia so the rest
// of the engine never imports them.
package dom

import (
	"io"
	"strings"

	"golang.org/x/net/html"
)

// Parse reads an HTML document and returns its root node. Grounded on
// the teacher's cleaner/selector.go, which parses raw HTML the same way
// before running a cascadia query against it.
func Parse(r io.Reader) (*html.Node, error) {
	return html.Parse(r)
}

// ParseFragment parses an HTML fragment in a generic <body> context,
// used by the admin API's /scan endpoint and by tests that build small
// DOM snippets without a full document wrapper.
func ParseFragment(s string) (*html.Node, error) {
	ctx := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: 0}
	nodes, err := html.ParseFragment(strings.NewReader(s), ctx)
	if err != nil {
		return nil, err
	}
	root := &html.Node{Type: html.ElementNode, Data: "body"}
	for _, n := range nodes {
		root.AppendChild(n)
	}
	return root, nil
}

// Render serializes a node subtree back to HTML.
func Render(w io.Writer, n *html.Node) error {
	return html.Render(w, n)
}

// Walk visits n and every descendant in document order, depth-first.
// visit returning false prunes that subtree (its children are skipped)
// but visiting continues with n's remaining siblings.
func Walk(n *html.Node, visit func(*html.Node) bool) {
	if n == nil {
		return
	}
	descend := visit(n)
	if !descend {
		return
	}
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		Walk(c, visit)
		c = next
	}
}

// Descendants returns every ElementNode under (and including) root, in
// document order.
func Descendants(root *html.Node) []*html.Node {
	var out []*html.Node
	Walk(root, func(n *html.Node) bool {
		if n.Type == html.ElementNode {
			out = append(out, n)
		}
		return true
	})
	return out
}

// Remove detaches n from its parent. A no-op if n has no parent
// (already detached, or is the document root).
func Remove(n *html.Node) {
	if n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}

// Connected reports whether n is still reachable from root by walking
// its parent chain. Used to implement DomScanner.scanElement's rule
// that descendants of a just-removed element are never visited.
func Connected(n, root *html.Node) bool {
	for cur := n; cur != nil; cur = cur.Parent {
		if cur == root {
			return true
		}
	}
	return false
}
