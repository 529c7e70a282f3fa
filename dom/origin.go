package dom

import (
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// CrossOrigin reports whether src (an iframe's src attribute, possibly
// relative) resolves to a different host than documentURL. Grounded on
// the teacher's cleaner/extract.go, which resolves anchor/img URLs
// against a base URL and compares hosts the same way.
func CrossOrigin(src, documentURL string) bool {
	base, err := url.Parse(documentURL)
	if err != nil {
		return false
	}
	resolved, err := base.Parse(src)
	if err != nil {
		return false
	}
	return !strings.EqualFold(resolved.Host, base.Host)
}

// IframeSrc returns the src attribute of an iframe node.
func IframeSrc(n *html.Node) (string, bool) {
	return Attr(n, "src")
}
