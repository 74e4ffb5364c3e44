package sitehttp

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/prabhakardwivedi/corpsite/internal/content"
	"github.com/prabhakardwivedi/corpsite/internal/httpmw"
	"github.com/prabhakardwivedi/corpsite/internal/log"
	"github.com/prabhakardwivedi/corpsite/internal/mediakit"
)

const (
	// DefaultReadMaxAge is how long shared caches may keep public reads
	DefaultReadMaxAge = 30 * time.Second

	maxLeadBody = 16 << 10
)

// Content is the read side of content.Service plus lead submission
type Content interface {
	GetContentBundle(ctx context.Context) (content.Bundle, error)
	GetSEO(ctx context.Context) (map[string]content.SEOEntry, error)
	ListVentures(ctx context.Context) ([]content.Venture, error)
	GetVentureBySlug(ctx context.Context, slug string) (content.Venture, error)
	ListTimeline(ctx context.Context) ([]content.TimelineItem, error)
	SubmitContact(ctx context.Context, f content.ContactForm) (content.Lead, error)
}

type Options struct {
	Logger  log.Logger
	Content Content
	// MediaKit is optional; without it the media-kit routes answer 404
	MediaKit *mediakit.Kit
	// LeadLimit throttles contact form submissions, nil disables it
	LeadLimit  func(http.Handler) http.Handler
	ReadMaxAge time.Duration
}

type Routes struct {
	logger     log.Logger
	content    Content
	kit        *mediakit.Kit
	leadLimit  func(http.Handler) http.Handler
	readMaxAge time.Duration
}

func New(opts Options) *Routes {
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}
	if opts.ReadMaxAge <= 0 {
		opts.ReadMaxAge = DefaultReadMaxAge
	}
	return &Routes{
		logger:     opts.Logger,
		content:    opts.Content,
		kit:        opts.MediaKit,
		leadLimit:  opts.LeadLimit,
		readMaxAge: opts.ReadMaxAge,
	}
}

// Register mounts the API under /api
func (rt *Routes) Register(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(httpmw.PublicCache(rt.readMaxAge))
			r.Get("/content", rt.getContent)
			r.Get("/seo", rt.getSEO)
			r.Get("/ventures", rt.listVentures)
			r.Get("/ventures/{slug}", rt.getVenture)
			r.Get("/timeline", rt.listTimeline)
			r.Get("/media-kit", rt.listMediaKit)
		})

		r.Group(func(r chi.Router) {
			r.Use(httpmw.NoStore)
			r.Get("/media-kit/"+mediakit.ProfileAsset, rt.profilePDF)
			r.Get("/media-kit/{asset}", rt.downloadAsset)
		})

		r.Group(func(r chi.Router) {
			r.Use(httpmw.NoStore, httpmw.SameOrigin)
			if rt.leadLimit != nil {
				r.Use(rt.leadLimit)
			}
			r.Use(httpmw.MaxBody(maxLeadBody))
			r.Post("/leads", rt.submitLead)
		})
	})
}
