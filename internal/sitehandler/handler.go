package sitehandler

import (
	"io"
	"io/fs"
	"net/http"
	"strings"
)

// Handler serves the SPA build: hashed assets, prerendered pages and
// index.html for client-side routes.
type Handler struct {
	opts Options
}

func New(opts Options) (*Handler, error) {
	opts.setDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return &Handler{opts: opts}, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	if h.isAPI(r.URL.Path) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"not found"}` + "\n"))
		return
	}

	site, ok := h.opts.Site.Site()
	if !ok {
		h.serveMaintenance(w, r)
		return
	}

	res := resolvePath(r.URL.Path, site)
	switch res.outcome {
	case redirect:
		http.Redirect(w, r, res.target, http.StatusPermanentRedirect)
	case found:
		if cc := cacheControlForFile(res.file, &h.opts); cc != "" {
			w.Header().Set("Cache-Control", cc)
		}
		http.ServeFileFS(w, r, site, res.file)
	case clientRoute:
		h.serveIndex(w, r, site)
	default:
		h.serveNotFound(w, r, site)
	}
}

// ServeIndex writes the SPA shell. Gated admin screens call it once the
// session check passed.
func (h *Handler) ServeIndex(w http.ResponseWriter, r *http.Request) {
	site, ok := h.opts.Site.Site()
	if !ok {
		h.serveMaintenance(w, r)
		return
	}
	h.serveIndex(w, r, site)
}

func (h *Handler) serveIndex(w http.ResponseWriter, r *http.Request, site fs.FS) {
	if !existsFile(site, h.opts.IndexFile) {
		h.serveNotFound(w, r, site)
		return
	}
	w.Header().Set("Cache-Control", h.opts.HTMLCacheControl)
	// ServeFileFS redirects ".../index.html" requests; force status 200 on the
	// shell regardless of the request path.
	serveFileWithStatus(w, r, http.StatusOK, site, h.opts.IndexFile)
}

func (h *Handler) isAPI(p string) bool {
	for _, pre := range h.opts.APIPrefixes {
		if strings.HasPrefix(p, pre) || p+"/" == pre {
			return true
		}
	}
	return false
}

func (h *Handler) serveMaintenance(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Retry-After", "60")
	serveFileWithStatus(w, r, http.StatusServiceUnavailable, h.opts.FallbackFS, h.opts.MaintenanceFile)
}

func (h *Handler) serveNotFound(w http.ResponseWriter, r *http.Request, site fs.FS) {
	w.Header().Set("Cache-Control", "no-store")

	if existsFile(site, h.opts.Site404File) {
		serveFileWithStatus(w, r, http.StatusNotFound, site, h.opts.Site404File)
		return
	}
	if existsFile(h.opts.FallbackFS, h.opts.Fallback404File) {
		serveFileWithStatus(w, r, http.StatusNotFound, h.opts.FallbackFS, h.opts.Fallback404File)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	_, _ = w.Write([]byte("404 page not found"))
}

// statusOverrideWriter replaces the status of the first WriteHeader, letting
// ServeContent produce the body for a 404 or 503 page.
type statusOverrideWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusOverrideWriter) WriteHeader(code int) {
	if w.wroteHeader {
		w.ResponseWriter.WriteHeader(code)
		return
	}
	w.wroteHeader = true
	w.ResponseWriter.WriteHeader(w.status)
}

func (w *statusOverrideWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(w.status)
	}
	return w.ResponseWriter.Write(b)
}

func serveFileWithStatus(w http.ResponseWriter, r *http.Request, status int, fsys fs.FS, name string) {
	f, err := fsys.Open(name)
	if err != nil {
		http.Error(w, http.StatusText(status), status)
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		http.Error(w, http.StatusText(status), status)
		return
	}
	rs, ok := f.(io.ReadSeeker)
	if !ok {
		http.Error(w, http.StatusText(status), status)
		return
	}
	// conditional requests are ignored so error pages are never a 304
	r2 := r.Clone(r.Context())
	r2.Header.Del("If-Modified-Since")
	r2.Header.Del("If-None-Match")
	r2.Header.Del("Range")
	sw := &statusOverrideWriter{ResponseWriter: w, status: status}
	http.ServeContent(sw, r2, name, info.ModTime(), rs)
}
