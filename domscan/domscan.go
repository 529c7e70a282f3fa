// Package domscan implements DomScanner (spec.md §4.6): the
// procedural half of hybrid execution, walking the live tree for
// elements carrying an id or class, testing them against the
// TokenIndexer's candidate selector buckets, and applying the tiered
// remove/hide policy on first match. Grounded on the teacher's
// cleaner/selector.go, which runs the same shape of
// query-then-classify loop (cascadia query, then branch on tag/
// attribute to decide what to do with a matched node).
package domscan

import (
	"log/slog"
	"sync/atomic"

	"github.com/hybridguard/filterengine/dom"
	"github.com/hybridguard/filterengine/tokenindex"
	"golang.org/x/net/html"
)

// scriptOrLinkTags are removed outright on match rather than hidden,
// because a hidden <script>/<link> still executes/loads (spec.md §4.6
// point 1).
var scriptOrLinkTags = map[string]bool{"script": true, "link": true}

// Stats accumulates what Scanner.Scan actually did, aggregated across
// every element processed including ones whose own selector match
// raised an error (spec.md §4.6: "statistics aggregate what
// succeeded").
type Stats struct {
	Removed       int64
	Hidden        int64
	AlreadyMarked int64
	SelectorErrs  int64
}

// Scanner is DomScanner, bound to one TokenIndex and one document's
// base URL (needed for cross-origin iframe comparison).
type Scanner struct {
	index       *tokenindex.Index
	compiled    map[string]*dom.Selector
	documentURL string
	logger      *slog.Logger

	loggedInvalid map[string]bool
	stats         Stats
}

// New builds a Scanner over index. documentURL is the host document's
// URL, used to decide whether an iframe's src is cross-origin.
func New(index *tokenindex.Index, documentURL string, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{
		index:         index,
		compiled:      make(map[string]*dom.Selector),
		documentURL:   documentURL,
		logger:        logger,
		loggedInvalid: make(map[string]bool),
	}
}

// Stats returns a snapshot of the scanner's accumulated counters.
func (s *Scanner) Stats() Stats {
	return Stats{
		Removed:       atomic.LoadInt64(&s.stats.Removed),
		Hidden:        atomic.LoadInt64(&s.stats.Hidden),
		AlreadyMarked: atomic.LoadInt64(&s.stats.AlreadyMarked),
		SelectorErrs:  atomic.LoadInt64(&s.stats.SelectorErrs),
	}
}

// Scan starts from the document tree root and queries every element
// carrying an id or class (spec.md §4.6: "[id],[class]").
func (s *Scanner) Scan(root *html.Node) {
	s.ScanElement(root, root)
}

// ScanElement processes n (if it carries an id or class) and, only if
// n was not removed, recurses into its element children — never into
// the children of a node this same call just removed (spec.md §4.6's
// scoping rule). A per-element panic or selector error is isolated and
// never propagates to the caller.
func (s *Scanner) ScanElement(n, treeRoot *html.Node) {
	if dom.HasIDOrClass(n) {
		if s.processOne(n) {
			return
		}
	}
	for _, child := range elementChildren(n) {
		if !dom.Connected(child, treeRoot) {
			// A sibling's removal detached this subtree already.
			continue
		}
		s.ScanElement(child, treeRoot)
	}
}

// ProcessSingle applies the match-then-tiered-policy sequence to n
// alone, without recursing into its children. Used by MutationWatcher
// to "rescan it alone" when an attributes record changes n's token set
// (spec.md §4.7), where re-walking descendants that didn't change
// would be wasted work.
func (s *Scanner) ProcessSingle(n *html.Node) (removed bool) {
	return s.processOne(n)
}

// elementChildren snapshots n's direct element children at call time,
// so mutating the tree mid-iteration (a removal) can't corrupt the
// sibling chain we're walking.
func elementChildren(n *html.Node) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			out = append(out, c)
		}
	}
	return out
}

// processOne applies the match-then-tiered-policy sequence to a
// single element and reports whether it was removed from the tree.
func (s *Scanner) processOne(n *html.Node) (removed bool) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("domscan: recovered panic processing element", "tag", dom.TagName(n), "panic", r)
		}
	}()

	if dom.IsBlocked(n) {
		atomic.AddInt64(&s.stats.AlreadyMarked, 1)
		return false
	}

	tokens := candidateTokens(n)
	candidates := s.index.CandidateSelectors(tokens)

	for _, selText := range candidates {
		sel, ok := s.compiled[selText]
		if !ok {
			compiled, err := dom.Compile(selText)
			if err != nil {
				if !s.loggedInvalid[selText] {
					s.logger.Warn("domscan: selector rejected by matcher, skipping", "selector", selText, "error", err)
					s.loggedInvalid[selText] = true
				}
				atomic.AddInt64(&s.stats.SelectorErrs, 1)
				s.compiled[selText] = nil
				continue
			}
			s.compiled[selText] = compiled
			sel = compiled
		}
		if sel == nil {
			continue
		}
		if !sel.Matches(n) {
			continue
		}

		// First actual match: apply the tiered policy and stop.
		if s.shouldRemove(n) {
			dom.Remove(n)
			atomic.AddInt64(&s.stats.Removed, 1)
			return true
		}
		dom.MarkBlocked(n)
		atomic.AddInt64(&s.stats.Hidden, 1)
		return false
	}
	return false
}

// shouldRemove implements spec.md §4.6 point 1's removal test.
func (s *Scanner) shouldRemove(n *html.Node) bool {
	tag := dom.TagName(n)
	if scriptOrLinkTags[tag] {
		return true
	}
	if tag != "iframe" {
		return false
	}
	src, ok := dom.IframeSrc(n)
	if !ok || src == "" {
		return false
	}
	if !dom.CrossOrigin(src, s.documentURL) {
		return false
	}
	return !dom.IsFrameworkManaged(n)
}

// candidateTokens returns the token set domscan tests an element
// against: its class tokens, its id token, and its tag name — mirrors
// TokenIndexer.Build's own extraction rules so a given token always
// means the same thing on both sides of the index.
func candidateTokens(n *html.Node) []string {
	tokens := dom.ClassTokens(n)
	if id := dom.IDToken(n); id != "" {
		tokens = append(tokens, id)
	}
	if tag := dom.TagName(n); tag != "" {
		tokens = append(tokens, tag)
	}
	return tokens
}
