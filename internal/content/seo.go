package content

import (
	"context"
	"strings"
	"time"

	"github.com/prabhakardwivedi/corpsite/internal/pathutil"
	"github.com/prabhakardwivedi/corpsite/internal/store"
	"github.com/prabhakardwivedi/corpsite/internal/xerrors"
)

// KnownPages are the public paths the SEO editor offers
var KnownPages = []string{"/", "/about", "/group-companies", "/contact", "/media-kit"}

type SEOEntry struct {
	PagePath    string    `json:"page_path"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func seoFromRow(r store.Row) SEOEntry {
	return SEOEntry{
		PagePath:    r.String("page_path"),
		Title:       r.String("title"),
		Description: r.String("description"),
		UpdatedAt:   r.Time("updated_at"),
	}
}

// GetSEO returns every stored entry keyed by page path
func (s *Service) GetSEO(ctx context.Context) (map[string]SEOEntry, error) {
	rows, err := s.db.Select(ctx, TableSEO, store.Query{})
	if err != nil {
		return nil, xerrors.Wrap(err, "load seo")
	}
	out := make(map[string]SEOEntry, len(rows))
	for _, r := range rows {
		e := seoFromRow(r)
		out[e.PagePath] = e
	}
	return out, nil
}

// UpsertSEO writes the entry for its page path
func (s *Service) UpsertSEO(ctx context.Context, e SEOEntry) (SEOEntry, error) {
	e.PagePath = pathutil.PagePath(e.PagePath)
	if e.PagePath == "" {
		return SEOEntry{}, invalid("page_path", "is required and must be a clean site path")
	}
	rows, err := s.db.Upsert(ctx, TableSEO, []store.Row{{
		"page_path":   e.PagePath,
		"title":       strings.TrimSpace(e.Title),
		"description": strings.TrimSpace(e.Description),
		"updated_at":  s.stamp(),
	}}, "page_path")
	s.countWrite("seo", err)
	if err != nil {
		return SEOEntry{}, xerrors.Wrapf(err, "save seo %s", e.PagePath)
	}
	return seoFromRow(rows[0]), nil
}

// SaveSEO writes every entry concurrently and reports failed paths
func (s *Service) SaveSEO(ctx context.Context, entries []SEOEntry) error {
	keys := make([]string, len(entries))
	for i, e := range entries {
		keys[i] = pathutil.PagePath(e.PagePath)
		if keys[i] == "" {
			return invalid("page_path", "is required")
		}
	}
	return s.bulk(ctx, keys, func(ctx context.Context, i int) error {
		_, err := s.UpsertSEO(ctx, entries[i])
		return err
	})
}
