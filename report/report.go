// Package report renders an operator-facing Markdown digest of what
// one document's filtering pass did and which navigation attempts
// NavigationGuardian denied. Never shown to the end user (spec.md §7:
// rule-execution failures stay invisible to the user) — this is
// support tooling for whoever operates the filter, grounded on the
// teacher's cleaner/markdown.go HTML-to-Markdown conversion pipeline.
package report

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"

	"github.com/hybridguard/filterengine/models"
)

// BlockedElement is one row of the "what was removed/hidden" section.
type BlockedElement struct {
	Selector string
	Tag      string
	Action   string // "removed" or "hidden"
}

// Digest renders a diagnostics snapshot to Markdown. Safe for
// concurrent use — the underlying converter is stateless per the
// teacher's own "reusable, goroutine-safe Converter" note.
type Digest struct {
	conv *converter.Converter
}

// New builds a Digest with the same plugin set as the teacher's
// newMarkdownConverter: base (strip script/style/iframe noise),
// commonmark (standard rendering), table (minimal cell padding).
func New() *Digest {
	return &Digest{
		conv: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(
					table.WithCellPaddingBehavior(table.CellPaddingBehaviorMinimal),
				),
			),
		),
	}
}

// Render builds a Markdown digest covering one document's blocked
// elements, NavigationGuardian's recent denials, and the session-wide
// navigation counters. documentURL resolves any relative links the
// Markdown conversion encounters.
func (d *Digest) Render(documentURL string, blocked []BlockedElement, denials []models.ErrorRecord, nav models.NavigationStats) (string, error) {
	var htmlBuf strings.Builder
	htmlBuf.WriteString("<h1>Filter Digest</h1>\n")
	fmt.Fprintf(&htmlBuf, "<p>Document: %s</p>\n", html.EscapeString(documentURL))

	htmlBuf.WriteString("<h2>Navigation</h2>\n")
	fmt.Fprintf(&htmlBuf, "<p>Allowed %d, blocked %d.</p>\n", nav.AllowedCount, nav.BlockedCount)

	htmlBuf.WriteString("<h2>Blocked Elements</h2>\n")
	if len(blocked) == 0 {
		htmlBuf.WriteString("<p>None.</p>\n")
	} else {
		htmlBuf.WriteString("<table><tr><th>Tag</th><th>Selector</th><th>Action</th></tr>\n")
		for _, b := range blocked {
			fmt.Fprintf(&htmlBuf, "<tr><td>%s</td><td>%s</td><td>%s</td></tr>\n",
				html.EscapeString(b.Tag), html.EscapeString(b.Selector), html.EscapeString(b.Action))
		}
		htmlBuf.WriteString("</table>\n")
	}

	htmlBuf.WriteString("<h2>Navigation Guardian Denials</h2>\n")
	if len(denials) == 0 {
		htmlBuf.WriteString("<p>None.</p>\n")
	} else {
		htmlBuf.WriteString("<table><tr><th>Nav Type</th><th>URL</th><th>High Risk</th><th>At</th><th>Message</th></tr>\n")
		for _, e := range denials {
			at := e.At.Format(time.RFC3339)
			fmt.Fprintf(&htmlBuf, "<tr><td>%s</td><td>%s</td><td>%t</td><td>%s</td><td>%s</td></tr>\n",
				html.EscapeString(e.NavType), html.EscapeString(e.URL), e.IsHighRisk, at, html.EscapeString(e.Message))
		}
		htmlBuf.WriteString("</table>\n")
	}

	return d.conv.ConvertString(htmlBuf.String(), converter.WithDomain(documentURL))
}
