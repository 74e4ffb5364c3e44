// Package pathutil holds URL path helpers shared by the SPA handler and the
// SEO accessors.
package pathutil

import "strings"

// HasDotSegments reports whether any path segment is "." or "..".
func HasDotSegments(p string) bool {
	for _, seg := range strings.Split(p, "/") {
		if seg == "." || seg == ".." {
			return true
		}
	}
	return false
}

// PagePath canonicalises a site page path: leading slash, no trailing
// slash except for the root. Blank input stays blank and paths with dot
// segments, backslashes or NUL bytes yield "".
func PagePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" || strings.ContainsAny(p, "\\\x00") {
		return ""
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if HasDotSegments(p) {
		return ""
	}
	for strings.Contains(p, "//") {
		p = strings.ReplaceAll(p, "//", "/")
	}
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
	}
	return p
}
