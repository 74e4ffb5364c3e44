package sitehandler

import (
	"io/fs"
	"path"
	"strings"

	"github.com/prabhakardwivedi/corpsite/internal/pathutil"
)

type outcome int

const (
	// serve file
	found outcome = iota
	// redirect to canonical slash form
	redirect
	// extension-less path owned by the client router
	clientRoute
	// missing file or unsafe path
	missing
)

type resolution struct {
	outcome outcome
	file    string
	target  string
}

// resolvePath maps a URL path onto the site FS. Paths with an extension are
// files; extension-less paths map to a prerendered <dir>/index.html when one
// exists and otherwise belong to the SPA router.
func resolvePath(urlPath string, fsys fs.FS) resolution {
	p := urlPath
	if p == "" {
		p = "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if strings.ContainsAny(p, "\x00\\") || strings.Contains(p, "..") || pathutil.HasDotSegments(p) {
		return resolution{outcome: missing}
	}

	trailingSlash := strings.HasSuffix(p, "/")
	clean := path.Clean(p)
	if clean == "/" {
		return resolution{outcome: clientRoute}
	}

	name := strings.TrimPrefix(clean, "/")
	if path.Ext(clean) != "" {
		if existsFile(fsys, name) {
			return resolution{outcome: found, file: name}
		}
		return resolution{outcome: missing}
	}

	dirIndex := name + "/index.html"
	if existsFile(fsys, dirIndex) {
		if trailingSlash {
			return resolution{outcome: found, file: dirIndex}
		}
		return resolution{outcome: redirect, target: clean + "/"}
	}
	return resolution{outcome: clientRoute}
}

func existsFile(fsys fs.FS, name string) bool {
	if name == "" || !fs.ValidPath(name) {
		return false
	}
	info, err := fs.Stat(fsys, name)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
