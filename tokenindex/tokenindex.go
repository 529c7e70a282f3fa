// Package tokenindex implements TokenIndexer (spec.md §4.4): a
// deterministic inverted index from class/id/tag/attribute-literal
// tokens to the selectors that could plausibly match an element
// carrying them, letting DomScanner test only the selector buckets a
// given element's tokens touch instead of every selector in a rule
// set. Grounded on the teacher's preference for small, pure,
// regexp-driven extraction helpers (cleaner/filter.go) rather than a
// full CSS tokenizer dependency for this narrow extraction task.
package tokenindex

import "regexp"

var (
	classTokenRe = regexp.MustCompile(`\.([A-Za-z_][A-Za-z0-9_-]*)`)
	idTokenRe    = regexp.MustCompile(`#([A-Za-z_][A-Za-z0-9_-]*)`)
	leadingTagRe = regexp.MustCompile(`^([A-Za-z][A-Za-z0-9]*)`)
	attrLiteralRe = regexp.MustCompile(`\[(?:class|id|data-[A-Za-z0-9_-]+)[~|^$*]?="([^"]*)"\]`)
)

// Index is TokenIndexer. It is not safe for concurrent mutation; the
// owning HybridExecutor rebuilds a fresh Index per execute() and swaps
// it in atomically (spec.md §4.4's "rebuilds are atomic at the caller
// boundary"), so no internal locking is needed.
type Index struct {
	byToken   map[string][]string
	universal []string
	selectors map[string]struct{}
}

// New builds an empty Index.
func New() *Index {
	return &Index{
		byToken:   make(map[string][]string),
		selectors: make(map[string]struct{}),
	}
}

// Build clears prior state and indexes each selector in selectors.
// A selector whose token extraction yields nothing is placed in the
// universal fallback bucket and evaluated unconditionally during scan.
func (idx *Index) Build(selectors []string) {
	idx.byToken = make(map[string][]string)
	idx.universal = idx.universal[:0]
	idx.selectors = make(map[string]struct{}, len(selectors))

	for _, sel := range selectors {
		idx.selectors[sel] = struct{}{}
		tokens := extractTokens(sel)
		if len(tokens) == 0 {
			idx.universal = append(idx.universal, sel)
			continue
		}
		for _, tok := range tokens {
			idx.byToken[tok] = append(idx.byToken[tok], sel)
		}
	}
}

// extractTokens returns the deduplicated token set for one selector,
// per spec.md §4.4's four extraction rules.
func extractTokens(selector string) []string {
	seen := make(map[string]struct{})
	add := func(tok string) {
		if tok == "" {
			return
		}
		seen[tok] = struct{}{}
	}

	for _, m := range classTokenRe.FindAllStringSubmatch(selector, -1) {
		add(m[1])
	}
	for _, m := range idTokenRe.FindAllStringSubmatch(selector, -1) {
		add(m[1])
	}
	if m := leadingTagRe.FindStringSubmatch(selector); m != nil {
		add(lower(m[1]))
	}
	for _, m := range attrLiteralRe.FindAllStringSubmatch(selector, -1) {
		add(m[1])
	}

	out := make([]string, 0, len(seen))
	for tok := range seen {
		out = append(out, tok)
	}
	return out
}

func lower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// Has reports whether any selector is indexed under token.
func (idx *Index) Has(token string) bool {
	_, ok := idx.byToken[token]
	return ok
}

// Get returns the selector bucket for token, or nil if none.
func (idx *Index) Get(token string) []string {
	return idx.byToken[token]
}

// HasSelector reports whether selector was present in the most recent
// Build call, indexed or universal.
func (idx *Index) HasSelector(selector string) bool {
	_, ok := idx.selectors[selector]
	return ok
}

// Universal returns the selectors that produced no extractable token
// and must be evaluated against every candidate element.
func (idx *Index) Universal() []string {
	return idx.universal
}

// CandidateSelectors returns the deduplicated union of selector
// buckets for every token in tokens, plus the universal bucket — the
// full candidate set DomScanner should test against one element.
func (idx *Index) CandidateSelectors(tokens []string) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0, len(idx.universal))
	for _, sel := range idx.universal {
		if _, dup := seen[sel]; !dup {
			seen[sel] = struct{}{}
			out = append(out, sel)
		}
	}
	for _, tok := range tokens {
		for _, sel := range idx.byToken[tok] {
			if _, dup := seen[sel]; !dup {
				seen[sel] = struct{}{}
				out = append(out, sel)
			}
		}
	}
	return out
}
