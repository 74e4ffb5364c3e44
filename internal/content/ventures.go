package content

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/prabhakardwivedi/corpsite/internal/store"
	"github.com/prabhakardwivedi/corpsite/internal/xerrors"
)

// Venture verticals. VerticalAll is a read-side grouping and is never stored.
const (
	VerticalCore      = "CORE"
	VerticalTech      = "TECH"
	VerticalStrategic = "STRATEGIC"
	VerticalAll       = "ALL"
)

// Verticals is the closed set a venture may be saved with
var Verticals = []string{VerticalCore, VerticalTech, VerticalStrategic}

var verticalAliases = map[string]string{
	"ALL":                 VerticalAll,
	"EVERYTHING":          VerticalAll,
	"CORE":                VerticalCore,
	"CORE INFRASTRUCTURE": VerticalCore,
	"INFRASTRUCTURE":      VerticalCore,
	"TECH":                VerticalTech,
	"TECHNOLOGY":          VerticalTech,
	"IT":                  VerticalTech,
	"STRATEGIC":           VerticalStrategic,
	"CREATIVE":            VerticalStrategic,
}

// NormalizeVertical folds case and known aliases onto the vertical set.
// Unrecognized values come back trimmed and upper-cased.
func NormalizeVertical(v string) string {
	u := strings.ToUpper(strings.Join(strings.Fields(v), " "))
	if n, ok := verticalAliases[u]; ok {
		return n
	}
	return u
}

func storableVertical(v string) (string, bool) {
	n := NormalizeVertical(v)
	switch n {
	case VerticalCore, VerticalTech, VerticalStrategic:
		return n, true
	}
	return n, false
}

type Venture struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Slug        string   `json:"slug"`
	Vertical    string   `json:"vertical"`
	Summary     string   `json:"summary"`
	Features    []string `json:"features"`
	TrustPoints []string `json:"trust_points"`
	WebsiteURL  string   `json:"website_url,omitempty"`
	LogoURL     string   `json:"logo_url,omitempty"`
	SortOrder   int      `json:"sort_order"`
}

func ventureFromRow(r store.Row) Venture {
	return Venture{
		ID:          r.String("id"),
		Name:        r.String("name"),
		Slug:        r.String("slug"),
		Vertical:    NormalizeVertical(r.String("vertical")),
		Summary:     r.String("summary"),
		Features:    r.Strings("features"),
		TrustPoints: r.Strings("trust_points"),
		WebsiteURL:  r.String("website_url"),
		LogoURL:     r.String("logo_url"),
		SortOrder:   r.Int("sort_order"),
	}
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func (v Venture) row() store.Row {
	return store.Row{
		"name":         v.Name,
		"slug":         v.Slug,
		"vertical":     v.Vertical,
		"summary":      v.Summary,
		"features":     store.JSONList(cleanList(v.Features)),
		"trust_points": store.JSONList(cleanList(v.TrustPoints)),
		"website_url":  nullable(v.WebsiteURL),
		"logo_url":     nullable(v.LogoURL),
		"sort_order":   v.SortOrder,
	}
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lower-cases name and joins its alphanumeric runs with hyphens
func Slugify(name string) string {
	return strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(name), "-"), "-")
}

// prepare validates v for writing and fills the derived fields
func prepare(v Venture) (Venture, error) {
	v.Name = strings.TrimSpace(v.Name)
	if v.Name == "" {
		return v, invalid("name", "is required")
	}
	vert, ok := storableVertical(v.Vertical)
	if !ok {
		return v, invalid("vertical", "must be one of "+strings.Join(Verticals, ", "))
	}
	v.Vertical = vert
	v.Slug = Slugify(v.Slug)
	if v.Slug == "" {
		v.Slug = Slugify(v.Name)
	}
	if v.Slug == "" {
		return v, invalid("slug", "cannot be derived from name")
	}
	v.Summary = strings.TrimSpace(v.Summary)
	v.WebsiteURL = strings.TrimSpace(v.WebsiteURL)
	v.LogoURL = strings.TrimSpace(v.LogoURL)
	return v, nil
}

// ListVentures returns every venture ordered by sort order, ties by id
func (s *Service) ListVentures(ctx context.Context) ([]Venture, error) {
	rows, err := s.db.Select(ctx, TableVentures, store.Query{
		OrderBy: []store.Order{store.Asc("sort_order"), store.Asc("id")},
	})
	if err != nil {
		return nil, xerrors.Wrap(err, "list ventures")
	}
	out := make([]Venture, 0, len(rows))
	for _, r := range rows {
		out = append(out, ventureFromRow(r))
	}
	return out, nil
}

// GetVentureBySlug returns store.ErrNotFound when no venture has slug
func (s *Service) GetVentureBySlug(ctx context.Context, slug string) (Venture, error) {
	rows, err := s.db.Select(ctx, TableVentures, store.Query{
		Where: []store.Cond{store.Where("slug", store.Eq, strings.ToLower(strings.TrimSpace(slug)))},
		Limit: 1,
	})
	if err != nil {
		return Venture{}, xerrors.Wrapf(err, "get venture %s", slug)
	}
	if len(rows) == 0 {
		return Venture{}, store.ErrNotFound
	}
	return ventureFromRow(rows[0]), nil
}

func (s *Service) CreateVenture(ctx context.Context, v Venture) (Venture, error) {
	v, err := prepare(v)
	if err != nil {
		return Venture{}, err
	}
	r := v.row()
	r["id"] = ventureID(v.Slug)
	got, err := s.db.Insert(ctx, TableVentures, r)
	s.countWrite("venture", err)
	if err != nil {
		return Venture{}, xerrors.Wrapf(err, "create venture %s", v.Slug)
	}
	return ventureFromRow(got), nil
}

// UpdateVenture replaces the editable fields of the venture with id
func (s *Service) UpdateVenture(ctx context.Context, id string, v Venture) (Venture, error) {
	if strings.TrimSpace(id) == "" {
		return Venture{}, invalid("id", "is required")
	}
	v, err := prepare(v)
	if err != nil {
		return Venture{}, err
	}
	got, err := s.db.Update(ctx, TableVentures, id, v.row())
	s.countWrite("venture", err)
	if err != nil {
		return Venture{}, xerrors.Wrapf(err, "update venture %s", id)
	}
	return ventureFromRow(got), nil
}

func (s *Service) DeleteVenture(ctx context.Context, id string) error {
	err := s.db.Delete(ctx, TableVentures, id)
	s.countWrite("venture", err)
	if err != nil {
		return xerrors.Wrapf(err, "delete venture %s", id)
	}
	return nil
}

// UpsertVentures writes each item independently. Items with an id are keyed
// by id, so a new slug renames in place; items without one are keyed by
// slug. An item whose slug is taken by another venture fails with a
// *store.DuplicateKeyError; the other items are still written and returned.
func (s *Service) UpsertVentures(ctx context.Context, items []Venture) ([]Venture, error) {
	prepared := make([]Venture, len(items))
	for i, it := range items {
		v, err := prepare(it)
		if err != nil {
			return nil, err
		}
		prepared[i] = v
	}
	out := make([]Venture, 0, len(prepared))
	var errs []error
	for _, v := range prepared {
		r := v.row()
		key := "id"
		r["id"] = v.ID
		if v.ID == "" {
			key = "slug"
			r["id"] = ventureID(v.Slug)
		}
		got, err := s.db.Upsert(ctx, TableVentures, []store.Row{r}, key)
		s.countWrite("venture", err)
		if err != nil {
			errs = append(errs, xerrors.Wrapf(err, "upsert venture %s", v.Slug))
			continue
		}
		out = append(out, ventureFromRow(got[0]))
	}
	return out, errors.Join(errs...)
}

// FilterVentures keeps the ventures in vertical; ALL or "" keeps everything
func FilterVentures(vs []Venture, vertical string) []Venture {
	key := NormalizeVertical(vertical)
	if key == "" || key == VerticalAll {
		return vs
	}
	out := make([]Venture, 0, len(vs))
	for _, v := range vs {
		if NormalizeVertical(v.Vertical) == key {
			out = append(out, v)
		}
	}
	return out
}

// GroupByVertical buckets ventures for the tabbed listing. ALL holds every
// venture; ventures with an unrecognized vertical appear only under ALL.
func GroupByVertical(vs []Venture) map[string][]Venture {
	g := map[string][]Venture{
		VerticalAll:       make([]Venture, 0, len(vs)),
		VerticalCore:      {},
		VerticalTech:      {},
		VerticalStrategic: {},
	}
	for _, v := range vs {
		g[VerticalAll] = append(g[VerticalAll], v)
		if k := NormalizeVertical(v.Vertical); k != VerticalAll {
			if list, ok := g[k]; ok {
				g[k] = append(list, v)
			}
		}
	}
	return g
}
