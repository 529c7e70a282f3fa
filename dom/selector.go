package dom

import (
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// Selector is a compiled CSS selector, opaque outside this package.
// Grounded on the teacher's cleaner/selector.go, which compiles with
// cascadia.Parse and queries with cascadia.QueryAll against the same
// golang.org/x/net/html tree this package parses.
type Selector struct {
	sel cascadia.Sel
	raw string
}

// Compile parses a selector string. It is the only place InvalidSelector
// can originate; callers are expected to treat a non-nil error as
// spec.md's "engine rejects matches" case: log once and skip the
// selector, never abort the caller's scan.
func Compile(selector string) (*Selector, error) {
	sel, err := cascadia.Parse(selector)
	if err != nil {
		return nil, err
	}
	return &Selector{sel: sel, raw: selector}, nil
}

// String returns the original selector text.
func (s *Selector) String() string {
	return s.raw
}

// Matches reports whether n satisfies the compiled selector. This is
// the literal "element matches selector" test spec.md §4.6 and §8
// require before any hide/remove decision is made.
func (s *Selector) Matches(n *html.Node) bool {
	return s.sel.Match(n)
}

// QueryAll returns every descendant of root (root itself included)
// satisfying the selector, in document order.
func (s *Selector) QueryAll(root *html.Node) []*html.Node {
	return cascadia.QueryAll(root, s.sel)
}

// QueryFirst returns the first matching node, or nil.
func (s *Selector) QueryFirst(root *html.Node) *html.Node {
	return cascadia.Query(root, s.sel)
}
