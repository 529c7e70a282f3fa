package models

import "golang.org/x/net/html"

// ElementSnapshot is the per-element working record used only by the
// procedural path (spec.md §3). It is transient: constructed fresh for
// each element visited during a scan frame and never stored beyond it.
type ElementSnapshot struct {
	Node           *html.Node
	TagName        string
	ClassTokens    []string
	IDToken        string
	HasBlockedMark bool
}
