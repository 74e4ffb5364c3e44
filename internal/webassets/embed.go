// Package webassets embeds the pages served when no SPA build is deployed
// (maintenance, 404) and a minimal shell for local development.
package webassets

import (
	"embed"
	"fmt"
	"io/fs"
)

//go:embed fallback seed
var embedded embed.FS

func FallbackFS() fs.FS {
	sub, err := fs.Sub(embedded, "fallback")
	if err != nil {
		panic(fmt.Errorf("webassets: fallback subfs: %w", err))
	}
	return sub
}

// SeedSiteFS is the development shell, used when -site-dir is unset.
func SeedSiteFS() fs.FS {
	sub, err := fs.Sub(embedded, "seed")
	if err != nil {
		panic(fmt.Errorf("webassets: seed subfs: %w", err))
	}
	return sub
}
