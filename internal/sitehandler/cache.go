package sitehandler

import (
	"path"
	"strings"
)

// cacheControlForFile: documents revalidate, fingerprinted build output is
// immutable, and everything else (portraits, favicon, robots.txt) gets a
// short shared cache since it is replaced in place.
func cacheControlForFile(name string, o *Options) string {
	ext := strings.ToLower(path.Ext(name))
	if ext == ".html" || ext == "" {
		return o.HTMLCacheControl
	}
	if strings.HasPrefix(name, o.ImmutableDir) && fingerprinted(path.Base(name), ext) {
		return o.AssetCacheControl
	}
	return o.OtherCacheControl
}

// fingerprinted matches bundler output like "index-BQ3k9xZa.js"
func fingerprinted(base, ext string) bool {
	stem := strings.TrimSuffix(base, base[len(base)-len(ext):])
	i := strings.LastIndexAny(stem, "-.")
	if i < 0 {
		return false
	}
	hash := stem[i+1:]
	if len(hash) < 8 {
		return false
	}
	for _, c := range hash {
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_') {
			return false
		}
	}
	return true
}
