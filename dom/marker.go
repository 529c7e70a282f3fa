package dom

import (
	"strings"

	"golang.org/x/net/html"
)

// FrameworkMarkerAttr is the portable, Go-side stand-in for the closed
// list of private JS own-keys spec.md §4.6 uses to detect framework
// ownership (_reactRootContainer, __react*, __vue__,
// __vueParentComponent, __ng*). A live DOM element carries these as
// JS expando properties, which golang.org/x/net/html has no concept
// of; the browser package's CDP bridge enumerates an element's own
// keys in the page's JS context and, when any match the closed list,
// mirrors the finding onto this attribute before handing the node to
// DomScanner. Unit tests set the attribute directly to simulate a
// framework-managed element.
const FrameworkMarkerAttr = "data-framework-marker"

var exactFrameworkMarkerKeys = []string{
	"_reactRootContainer",
	"__vue__",
	"__vueParentComponent",
}

// IsFrameworkManaged reports whether n is owned by a host framework,
// per the closed marker-key list in spec.md §4.6. The attribute value
// is a comma-separated list of own-key names observed on the element;
// a match is exact for "_reactRootContainer", "__vue__", and
// "__vueParentComponent", and a prefix match for "__react*" and "__ng*".
func IsFrameworkManaged(n *html.Node) bool {
	v, ok := Attr(n, FrameworkMarkerAttr)
	if !ok || v == "" {
		return false
	}
	for _, key := range strings.Split(v, ",") {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		if strings.HasPrefix(key, "__react") || strings.HasPrefix(key, "__ng") {
			return true
		}
		for _, marker := range exactFrameworkMarkerKeys {
			if key == marker {
				return true
			}
		}
	}
	return false
}
