package dom

import (
	"strings"

	"golang.org/x/net/html"
)

// BlockedMarkerAttr is the single boolean marker attribute the engine
// is permitted to write (spec.md §6: "no other DOM writes").
const BlockedMarkerAttr = "data-content-blocked"

// Attr returns the value of attribute key on n and whether it is present.
func Attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// HasAttr reports whether n carries attribute key at all.
func HasAttr(n *html.Node, key string) bool {
	_, ok := Attr(n, key)
	return ok
}

// SetAttr sets key=value on n, replacing any existing value.
func SetAttr(n *html.Node, key, value string) {
	for i, a := range n.Attr {
		if a.Key == key {
			n.Attr[i].Val = value
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: value})
}

// MarkBlocked sets the blocked marker attribute idempotently.
func MarkBlocked(n *html.Node) {
	SetAttr(n, BlockedMarkerAttr, "true")
}

// IsBlocked reports whether n already carries the blocked marker
// (spec.md §4.6: processing an element is idempotent once marked).
func IsBlocked(n *html.Node) bool {
	v, ok := Attr(n, BlockedMarkerAttr)
	return ok && v == "true"
}

// TagName returns the lowercased tag name of an element node, or ""
// for non-element nodes.
func TagName(n *html.Node) string {
	if n.Type != html.ElementNode {
		return ""
	}
	return strings.ToLower(n.Data)
}

// ClassTokens splits the class attribute on whitespace. Case is
// preserved per spec.md §8 (only tag names are lowercased).
func ClassTokens(n *html.Node) []string {
	v, ok := Attr(n, "class")
	if !ok || strings.TrimSpace(v) == "" {
		return nil
	}
	return strings.Fields(v)
}

// IDToken returns the id attribute value, or "" if absent.
func IDToken(n *html.Node) string {
	v, _ := Attr(n, "id")
	return v
}

// HasIDOrClass reports whether n carries an id or any class, the
// membership test DomScanner.scan uses to select scan candidates
// (spec.md §4.6: "[id],[class]").
func HasIDOrClass(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	if HasAttr(n, "id") {
		return true
	}
	return len(ClassTokens(n)) > 0
}
