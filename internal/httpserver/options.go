package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/prabhakardwivedi/corpsite/internal/httpmw"
	"github.com/prabhakardwivedi/corpsite/internal/log"
)

type Options struct {
	Logger log.Logger
	// Addr defaults to ":8080".
	Addr         string
	UseRecoverMW bool
	OnPanic      func()
	MetricsMW    func(http.Handler) http.Handler
	ClientIPOpts httpmw.ClientIPOptions
	// CSP overrides httpmw.DefaultCSP when non-empty.
	CSP string

	// Routes mounts the JSON APIs (site /api, admin /admin/api) and gated
	// admin screens. SiteHandler serves whatever the router does not match.
	Routes      []func(chi.Router)
	SiteHandler http.Handler
}
