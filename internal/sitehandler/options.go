package sitehandler

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/prabhakardwivedi/corpsite/internal/log"
)

var ErrInvalidOptions = errors.New("sitehandler: invalid options")

// Source yields the built SPA. ok=false means nothing deployable is
// present and the maintenance page is served instead.
type Source interface {
	Site() (fs.FS, bool)
}

// DirSource serves a build output directory. It is re-checked per request so
// a deploy that swaps the directory contents needs no restart.
type DirSource string

func (d DirSource) Site() (fs.FS, bool) {
	if d == "" {
		return nil, false
	}
	fsys := os.DirFS(string(d))
	if !existsFile(fsys, "index.html") {
		return nil, false
	}
	return fsys, true
}

// FSSource serves an in-memory or embedded filesystem; nil is unavailable.
type FSSource struct{ FS fs.FS }

func (s FSSource) Site() (fs.FS, bool) {
	if s.FS == nil || !existsFile(s.FS, "index.html") {
		return nil, false
	}
	return s.FS, true
}

type Options struct {
	Logger     log.Logger
	Site       Source
	FallbackFS fs.FS

	// MaintenanceFile and Fallback404File live in FallbackFS; IndexFile and
	// Site404File in the site.
	MaintenanceFile string // default: "maintenance.html"
	Fallback404File string // default: "404.html"
	Site404File     string // default: "404.html"
	IndexFile       string // default: "index.html"

	// APIPrefixes answer unknown paths with a JSON 404 instead of the SPA.
	APIPrefixes []string // default: "/api/", "/admin/api/"

	HTMLCacheControl  string // default: "no-cache"
	AssetCacheControl string // default: "public, max-age=31536000, immutable"
	OtherCacheControl string // default: "public, max-age=3600"

	// ImmutableDir holds fingerprinted build output
	ImmutableDir string // default: "assets/"
}

func (o *Options) setDefaults() {
	if o.Logger == nil {
		o.Logger = log.Nop()
	}
	if o.MaintenanceFile == "" {
		o.MaintenanceFile = "maintenance.html"
	}
	if o.Fallback404File == "" {
		o.Fallback404File = "404.html"
	}
	if o.Site404File == "" {
		o.Site404File = "404.html"
	}
	if o.IndexFile == "" {
		o.IndexFile = "index.html"
	}
	if o.APIPrefixes == nil {
		o.APIPrefixes = []string{"/api/", "/admin/api/"}
	}
	if o.HTMLCacheControl == "" {
		o.HTMLCacheControl = "no-cache"
	}
	if o.AssetCacheControl == "" {
		o.AssetCacheControl = "public, max-age=31536000, immutable"
	}
	if o.ImmutableDir == "" {
		o.ImmutableDir = "assets/"
	}
	if o.OtherCacheControl == "" {
		o.OtherCacheControl = "public, max-age=3600"
	}
}

func (o *Options) validate() error {
	if o.Site == nil {
		return fmt.Errorf("%w: Site is nil", ErrInvalidOptions)
	}
	if o.FallbackFS == nil {
		return fmt.Errorf("%w: FallbackFS is nil", ErrInvalidOptions)
	}
	// fail fast on boot if mispackaged
	if _, err := fs.Stat(o.FallbackFS, o.MaintenanceFile); err != nil {
		return fmt.Errorf("%w: missing %q in fallback FS: %v", ErrInvalidOptions, o.MaintenanceFile, err)
	}
	return nil
}
