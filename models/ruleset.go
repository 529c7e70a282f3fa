package models

// RuleSet is an ordered, deduplicated collection of Rule with a
// computed selector list (enabled rules only) and a version tag
// (spec.md §3). Two rules with identical (source, selector) merge;
// enabled=false suppresses a rule from the selector list without
// dropping it from the backing slice, matching the persistence
// semantics the spec requires.
type RuleSet struct {
	rules   []Rule
	index   map[string]int // Rule.Key() -> index in rules
	Version string
}

// NewRuleSet builds an empty, ready-to-use RuleSet.
func NewRuleSet(version string) *RuleSet {
	return &RuleSet{
		index:   make(map[string]int),
		Version: version,
	}
}

// Add inserts or merges a rule. A later Add with the same (source,
// selector) key overwrites the stored rule's mutable fields in place,
// preserving its position so ordering stays stable.
func (rs *RuleSet) Add(r Rule) {
	key := r.Key()
	if idx, ok := rs.index[key]; ok {
		rs.rules[idx] = r
		return
	}
	rs.index[key] = len(rs.rules)
	rs.rules = append(rs.rules, r)
}

// AddAll inserts a batch of rules.
func (rs *RuleSet) AddAll(list []Rule) {
	for _, r := range list {
		rs.Add(r)
	}
}

// All returns every rule, enabled or not, in insertion order.
func (rs *RuleSet) All() []Rule {
	out := make([]Rule, len(rs.rules))
	copy(out, rs.rules)
	return out
}

// Len reports the total number of distinct rules.
func (rs *RuleSet) Len() int {
	return len(rs.rules)
}

// SelectorList returns the selectors of enabled, non-inert rules, in
// insertion order. This is the computed field spec.md §3 requires.
func (rs *RuleSet) SelectorList() []string {
	out := make([]string, 0, len(rs.rules))
	for _, r := range rs.rules {
		if r.Enabled && !r.Inert() {
			out = append(out, r.Selector)
		}
	}
	return out
}

// Enabled returns the enabled, non-inert rules themselves (selector +
// domain scoping), used by SelectorExecutor which needs per-rule
// domain matching, not just the flat selector list.
func (rs *RuleSet) Enabled() []Rule {
	out := make([]Rule, 0, len(rs.rules))
	for _, r := range rs.rules {
		if r.Enabled && !r.Inert() {
			out = append(out, r)
		}
	}
	return out
}
