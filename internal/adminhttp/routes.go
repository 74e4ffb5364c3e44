package adminhttp

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/prabhakardwivedi/corpsite/internal/content"
	"github.com/prabhakardwivedi/corpsite/internal/httpmw"
	"github.com/prabhakardwivedi/corpsite/internal/log"
	"github.com/prabhakardwivedi/corpsite/internal/session"
)

const (
	// DefaultResetRedirect is where password reset mails land
	DefaultResetRedirect = "/admin/update-password"

	maxAdminBody = 1 << 20
)

// Screens is the SPA shell served for gated admin pages
type Screens interface {
	ServeIndex(w http.ResponseWriter, r *http.Request)
}

// Content is the admin side of content.Service
type Content interface {
	GetContentBundle(ctx context.Context) (content.Bundle, error)
	SetContentField(ctx context.Context, section, field, value string) error
	SaveBundle(ctx context.Context, b content.Bundle) error

	GetSEO(ctx context.Context) (map[string]content.SEOEntry, error)
	SaveSEO(ctx context.Context, entries []content.SEOEntry) error

	ListLeads(ctx context.Context) ([]content.Lead, error)
	UpdateLeadStatus(ctx context.Context, id, status string) (content.Lead, error)
	DeleteLead(ctx context.Context, id string) error

	ListVentures(ctx context.Context) ([]content.Venture, error)
	CreateVenture(ctx context.Context, v content.Venture) (content.Venture, error)
	UpdateVenture(ctx context.Context, id string, v content.Venture) (content.Venture, error)
	DeleteVenture(ctx context.Context, id string) error
	UpsertVentures(ctx context.Context, items []content.Venture) ([]content.Venture, error)

	ListTimeline(ctx context.Context) ([]content.TimelineItem, error)
	NewTimelineItem(existing []content.TimelineItem) content.TimelineItem
	UpsertTimeline(ctx context.Context, items []content.TimelineItem) ([]content.TimelineItem, error)
	DeleteTimelineItem(ctx context.Context, id string) error

	GetStats(ctx context.Context) content.Stats
}

// Metrics counts live session sockets
type Metrics interface {
	WSConnected()
	WSDisconnected()
}

type Options struct {
	Logger  log.Logger
	Guard   *session.Guard
	Content Content
	Screens Screens
	Metrics Metrics

	// AuthLimit throttles login and password reset, nil disables it
	AuthLimit func(http.Handler) http.Handler
	// SecureCookie sets Secure on the session cookie regardless of scheme
	SecureCookie  bool
	ResetRedirect string
	// WSPingInterval keeps idle session sockets alive through proxies
	WSPingInterval time.Duration
}

type Routes struct {
	logger       log.Logger
	guard        *session.Guard
	content      Content
	screens      Screens
	metrics      Metrics
	authLimit    func(http.Handler) http.Handler
	secureCookie bool
	resetTo      string
	pingEvery    time.Duration
}

func New(opts Options) *Routes {
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}
	if opts.ResetRedirect == "" {
		opts.ResetRedirect = DefaultResetRedirect
	}
	if opts.WSPingInterval <= 0 {
		opts.WSPingInterval = defaultPingInterval
	}
	return &Routes{
		logger:       opts.Logger,
		guard:        opts.Guard,
		content:      opts.Content,
		screens:      opts.Screens,
		metrics:      opts.Metrics,
		authLimit:    opts.AuthLimit,
		secureCookie: opts.SecureCookie,
		resetTo:      opts.ResetRedirect,
		pingEvery:    opts.WSPingInterval,
	}
}

// gatedScreens are the admin pages that require a session. /admin/login
// stays public and is served by the SPA fallback.
var gatedScreens = []string{
	"/admin",
	"/admin/leads",
	"/admin/content",
	"/admin/timeline",
	"/admin/ventures",
	"/admin/seo",
	"/admin/update-password",
}

func (rt *Routes) Register(r chi.Router) {
	if rt.screens != nil {
		r.Group(func(r chi.Router) {
			r.Use(httpmw.NoStore, rt.requirePage)
			for _, p := range gatedScreens {
				r.Get(p, rt.screens.ServeIndex)
			}
		})
	}

	r.Route("/admin/api", func(r chi.Router) {
		r.Use(httpmw.NoStore, httpmw.SameOrigin, httpmw.MaxBody(maxAdminBody))

		r.Group(func(r chi.Router) {
			if rt.authLimit != nil {
				r.Use(rt.authLimit)
			}
			r.Post("/login", rt.login)
			r.Post("/password-reset", rt.passwordReset)
		})
		r.Post("/logout", rt.logout)
		r.Get("/session/ws", rt.sessionSocket)

		r.Group(func(r chi.Router) {
			r.Use(rt.requireAPI)

			r.Get("/session", rt.getSession)
			r.Post("/password", rt.setPassword)

			r.Get("/stats", rt.getStats)

			r.Get("/leads", rt.listLeads)
			r.Get("/leads.csv", rt.exportLeads)
			r.Patch("/leads/{id}", rt.updateLead)
			r.Delete("/leads/{id}", rt.deleteLead)

			r.Get("/content", rt.getContent)
			r.Put("/content", rt.saveContent)
			r.Put("/content/{section}/{field}", rt.setContentField)

			r.Get("/seo", rt.getSEO)
			r.Put("/seo", rt.saveSEO)

			r.Get("/ventures", rt.listVentures)
			r.Post("/ventures", rt.createVenture)
			r.Put("/ventures", rt.upsertVentures)
			r.Put("/ventures/{id}", rt.updateVenture)
			r.Delete("/ventures/{id}", rt.deleteVenture)

			r.Get("/timeline", rt.listTimeline)
			r.Put("/timeline", rt.upsertTimeline)
			r.Post("/timeline", rt.addTimelineItem)
			r.Delete("/timeline/{id}", rt.deleteTimelineItem)
		})
	})
}
