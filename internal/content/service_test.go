package content

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prabhakardwivedi/corpsite/internal/store"
	"github.com/prabhakardwivedi/corpsite/internal/store/storetest"
)

// ---------------------------------------------------------------------------
// fixtures
// ---------------------------------------------------------------------------

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type recordingMetrics struct {
	mu            sync.Mutex
	statsFailures []string
	leads         []string
	writes        int
}

func (m *recordingMetrics) IncStatsFailure(metric string) {
	m.mu.Lock()
	m.statsFailures = append(m.statsFailures, metric)
	m.mu.Unlock()
}

func (m *recordingMetrics) IncLeadSubmitted(category string) {
	m.mu.Lock()
	m.leads = append(m.leads, category)
	m.mu.Unlock()
}

func (m *recordingMetrics) IncContentWrite(string, error) {
	m.mu.Lock()
	m.writes++
	m.mu.Unlock()
}

type fixture struct {
	svc     *Service
	db      *store.SQL
	clock   *clock
	metrics *recordingMetrics
}

func newFixture(t *testing.T, wrap func(store.Backend) store.Backend) *fixture {
	t.Helper()
	db := storetest.SQLite(t)
	var b store.Backend = db
	if wrap != nil {
		b = wrap(db)
	}
	c := &clock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	m := &recordingMetrics{}
	return &fixture{
		svc:     NewService(b, Options{Metrics: m, Now: c.Now}),
		db:      db,
		clock:   c,
		metrics: m,
	}
}

func (f *fixture) count(t *testing.T, table string, where ...store.Cond) int {
	t.Helper()
	n, err := f.db.Count(context.Background(), table, where...)
	if err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}

var errBoom = errors.New("boom")

// ---------------------------------------------------------------------------
// content
// ---------------------------------------------------------------------------

func TestGetContentBundle_EmptyStoreYieldsDefaults(t *testing.T) {
	f := newFixture(t, nil)
	b, err := f.svc.GetContentBundle(context.Background())
	if err != nil {
		t.Fatalf("GetContentBundle: %v", err)
	}
	for _, s := range DefaultSections() {
		if !reflect.DeepEqual(b[s.Name], s.Default) {
			t.Fatalf("section %s = %v, want %v", s.Name, b[s.Name], s.Default)
		}
	}
}

func TestSetContentField_UpsertsOneRowLastWriteWins(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	for _, v := range []string{"first", "second", "third"} {
		if err := f.svc.SetContentField(ctx, "hero", "headline", v); err != nil {
			t.Fatalf("SetContentField: %v", err)
		}
		f.clock.Advance(time.Second)
	}
	if n := f.count(t, TableContent); n != 1 {
		t.Fatalf("rows = %d, want 1", n)
	}
	b, err := f.svc.GetContentBundle(ctx)
	if err != nil {
		t.Fatalf("GetContentBundle: %v", err)
	}
	if b.Get("hero", "headline") != "third" {
		t.Fatalf("headline = %q", b.Get("hero", "headline"))
	}
	if _, ok := b["hero"]["subheadline"]; ok {
		t.Fatal("partial hero section should not be backfilled beyond required fields")
	}
}

func TestSetContentField_BlankHeadlineStoredButReadsDefault(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	if err := f.svc.SetContentField(ctx, "hero", "headline", "Builder"); err != nil {
		t.Fatalf("SetContentField: %v", err)
	}
	if err := f.svc.SetContentField(ctx, "hero", "headline", ""); err != nil {
		t.Fatalf("SetContentField blank: %v", err)
	}
	rows, err := f.db.Select(ctx, TableContent, store.Query{})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if len(rows) != 1 || rows[0].String("value") != "" {
		t.Fatalf("rows = %v, want one blank row", rows)
	}
	b, err := f.svc.GetContentBundle(ctx)
	if err != nil {
		t.Fatalf("GetContentBundle: %v", err)
	}
	if got := b.Get("hero", "headline"); got != "Er. Prabhakar Dwivedi" {
		t.Fatalf("headline = %q, want default", got)
	}
}

func TestSetContentField_DifferentFieldsDoNotConflict(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	var wg sync.WaitGroup
	for _, field := range []string{"headline", "subheadline", "ctaText", "ctaLink"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := f.svc.SetContentField(ctx, "hero", field, field+"-value"); err != nil {
				t.Errorf("SetContentField %s: %v", field, err)
			}
		}()
	}
	wg.Wait()
	b, _ := f.svc.GetContentBundle(ctx)
	if len(b["hero"]) != 4 || b.Get("hero", "ctaLink") != "ctaLink-value" {
		t.Fatalf("hero = %v", b["hero"])
	}
}

func TestSetContentField_ValidationBeforeStore(t *testing.T) {
	calls := 0
	f := newFixture(t, func(b store.Backend) store.Backend {
		return &storetest.Failing{Backend: b, Fail: func(string, string, store.Row) error {
			calls++
			return nil
		}}
	})
	tests := []struct{ section, field string }{
		{"", "headline"},
		{"hero", " "},
		{"sidebar", "x"},
	}
	for _, tt := range tests {
		err := f.svc.SetContentField(context.Background(), tt.section, tt.field, "v")
		if !IsValidation(err) {
			t.Fatalf("(%q,%q): expected ValidationError, got %v", tt.section, tt.field, err)
		}
	}
	if calls != 0 {
		t.Fatalf("store called %d times for invalid input", calls)
	}
}

func TestSaveBundle_PartialFailureKeepsOthers(t *testing.T) {
	f := newFixture(t, func(b store.Backend) store.Backend {
		return &storetest.Failing{Backend: b, Fail: func(op, _ string, r store.Row) error {
			if op == "upsert" && r["field"] == "bio" {
				return errBoom
			}
			return nil
		}}
	})
	ctx := context.Background()
	err := f.svc.SaveBundle(ctx, Bundle{
		"hero":   {"headline": "H", "ctaText": "C"},
		"about":  {"bio": "B", "leadershipThesis": "L"},
		"footer": {"email": "e@x.com"},
	})
	var se *SaveError
	if !errors.As(err, &se) {
		t.Fatalf("expected SaveError, got %v", err)
	}
	if !reflect.DeepEqual(se.Failed, []string{"about.bio"}) {
		t.Fatalf("failed = %v", se.Failed)
	}
	if !errors.Is(err, errBoom) {
		t.Fatal("cause not preserved")
	}
	if n := f.count(t, TableContent); n != 4 {
		t.Fatalf("rows = %d, want 4", n)
	}
}

func TestSaveBundle_UnknownSectionRejectedUpFront(t *testing.T) {
	f := newFixture(t, nil)
	err := f.svc.SaveBundle(context.Background(), Bundle{"hero": {"headline": "H"}, "nope": {"a": "b"}})
	if !IsValidation(err) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if n := f.count(t, TableContent); n != 0 {
		t.Fatalf("rows = %d, want 0", n)
	}
}

// ---------------------------------------------------------------------------
// seo
// ---------------------------------------------------------------------------

func TestSEO_UpsertByPath(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	if _, err := f.svc.UpsertSEO(ctx, SEOEntry{PagePath: "about/", Title: "About"}); err != nil {
		t.Fatalf("UpsertSEO: %v", err)
	}
	if _, err := f.svc.UpsertSEO(ctx, SEOEntry{PagePath: "/about", Title: "About Us", Description: "d"}); err != nil {
		t.Fatalf("UpsertSEO: %v", err)
	}
	if err := f.svc.SaveSEO(ctx, []SEOEntry{{PagePath: "/", Title: "Home"}, {PagePath: "/contact", Title: "Contact"}}); err != nil {
		t.Fatalf("SaveSEO: %v", err)
	}
	got, err := f.svc.GetSEO(ctx)
	if err != nil {
		t.Fatalf("GetSEO: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("entries = %v", got)
	}
	if e := got["/about"]; e.Title != "About Us" || e.Description != "d" {
		t.Fatalf("/about = %+v", e)
	}
	if _, err := f.svc.UpsertSEO(ctx, SEOEntry{}); !IsValidation(err) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// ventures
// ---------------------------------------------------------------------------

func TestNormalizeVertical(t *testing.T) {
	tests := map[string]string{
		"core":                VerticalCore,
		"CORE":                VerticalCore,
		"Core Infrastructure": VerticalCore,
		"infrastructure":      VerticalCore,
		"  tech ":             VerticalTech,
		"Technology":          VerticalTech,
		"it":                  VerticalTech,
		"creative":            VerticalStrategic,
		"Strategic":           VerticalStrategic,
		"all":                 VerticalAll,
		"foo":                 "FOO",
		"":                    "",
	}
	for in, want := range tests {
		if got := NormalizeVertical(in); got != want {
			t.Errorf("NormalizeVertical(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSlugify(t *testing.T) {
	tests := map[string]string{
		"Dwivedi Infra Pvt. Ltd.": "dwivedi-infra-pvt-ltd",
		"  Tech & Co  ":           "tech-co",
		"---":                     "",
	}
	for in, want := range tests {
		if got := Slugify(in); got != want {
			t.Errorf("Slugify(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestListVentures_OrderedBySortOrder(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	for _, v := range []Venture{
		{Name: "Gamma", Vertical: "tech", SortOrder: 2},
		{Name: "Alpha", Vertical: "CORE", SortOrder: 0},
		{Name: "Beta", Vertical: "strategic", SortOrder: 1},
	} {
		if _, err := f.svc.CreateVenture(ctx, v); err != nil {
			t.Fatalf("CreateVenture %s: %v", v.Name, err)
		}
	}
	first, err := f.svc.ListVentures(ctx)
	if err != nil {
		t.Fatalf("ListVentures: %v", err)
	}
	var names []string
	for _, v := range first {
		names = append(names, v.Name)
	}
	if strings.Join(names, ",") != "Alpha,Beta,Gamma" {
		t.Fatalf("order = %v", names)
	}
	second, _ := f.svc.ListVentures(ctx)
	if !reflect.DeepEqual(first, second) {
		t.Fatal("repeated reads of unchanged data differ")
	}
	if first[2].Vertical != VerticalTech || first[2].Slug != "gamma" {
		t.Fatalf("gamma = %+v", first[2])
	}
}

func TestListVentures_EmptyIsNonNil(t *testing.T) {
	f := newFixture(t, nil)
	vs, err := f.svc.ListVentures(context.Background())
	if err != nil || vs == nil || len(vs) != 0 {
		t.Fatalf("ventures = %v err = %v", vs, err)
	}
}

func TestListVentures_NormalizesStoredVertical(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	if _, err := f.db.Insert(ctx, TableVentures, store.Row{"id": "v1", "name": "Old", "slug": "old", "vertical": "Core Infrastructure"}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := f.db.Insert(ctx, TableVentures, store.Row{"id": "v2", "name": "Odd", "slug": "odd", "vertical": "foo"}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	vs, _ := f.svc.ListVentures(ctx)
	if vs[0].Vertical != VerticalCore || vs[1].Vertical != "FOO" {
		t.Fatalf("verticals = %v, %v", vs[0].Vertical, vs[1].Vertical)
	}
	g := GroupByVertical(vs)
	if len(g[VerticalAll]) != 2 || len(g[VerticalCore]) != 1 || len(g[VerticalTech]) != 0 {
		t.Fatalf("groups = %v", g)
	}
	if len(FilterVentures(vs, "infrastructure")) != 1 || len(FilterVentures(vs, "all")) != 2 {
		t.Fatal("FilterVentures mismatch")
	}
}

func TestCreateVenture_StrictVertical(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.svc.CreateVenture(context.Background(), Venture{Name: "X", Vertical: "foo"})
	if !IsValidation(err) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	_, err = f.svc.CreateVenture(context.Background(), Venture{Vertical: "core"})
	if !IsValidation(err) {
		t.Fatalf("expected ValidationError for missing name, got %v", err)
	}
}

func TestCreateVenture_DuplicateSlug(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	if _, err := f.svc.CreateVenture(ctx, Venture{Name: "Dwivedi Infra", Vertical: "core"}); err != nil {
		t.Fatalf("CreateVenture: %v", err)
	}
	_, err := f.svc.CreateVenture(ctx, Venture{Name: "dwivedi infra", Vertical: "tech"})
	if !store.IsDuplicate(err) {
		t.Fatalf("expected DuplicateKeyError, got %v", err)
	}
}

func TestUpsertVentures_IdempotentBySlug(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	item := Venture{Name: "Dwivedi Infra", Vertical: "core", Features: []string{"roads", " ", "bridges"}}
	for range 2 {
		if _, err := f.svc.UpsertVentures(ctx, []Venture{item}); err != nil {
			t.Fatalf("UpsertVentures: %v", err)
		}
	}
	if n := f.count(t, TableVentures); n != 1 {
		t.Fatalf("rows = %d, want 1", n)
	}
	v, err := f.svc.GetVentureBySlug(ctx, "dwivedi-infra")
	if err != nil {
		t.Fatalf("GetVentureBySlug: %v", err)
	}
	if !reflect.DeepEqual(v.Features, []string{"roads", "bridges"}) || len(v.TrustPoints) != 0 || v.TrustPoints == nil {
		t.Fatalf("venture = %+v", v)
	}
}

func TestUpsertVentures_IDStableAcrossUpsert(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	a, err := f.svc.CreateVenture(ctx, Venture{Name: "Alpha", Vertical: "core"})
	if err != nil {
		t.Fatalf("CreateVenture: %v", err)
	}

	// without an id the slug matches and the stored id is kept
	got, err := f.svc.UpsertVentures(ctx, []Venture{{Name: "Alpha", Vertical: "tech", SortOrder: 3}})
	if err != nil {
		t.Fatalf("UpsertVentures: %v", err)
	}
	if got[0].ID != a.ID || got[0].Vertical != "TECH" {
		t.Fatalf("upserted = %+v, want id %s", got[0], a.ID)
	}

	// a foreign id claiming the same slug is a collision, not a re-key
	_, err = f.svc.UpsertVentures(ctx, []Venture{{ID: "other-id", Name: "Alpha", Vertical: "core"}})
	var dup *store.DuplicateKeyError
	if !errors.As(err, &dup) {
		t.Fatalf("expected DuplicateKeyError, got %v", err)
	}
	v, err := f.svc.GetVentureBySlug(ctx, "alpha")
	if err != nil {
		t.Fatalf("GetVentureBySlug: %v", err)
	}
	if v.ID != a.ID {
		t.Fatalf("id = %s, want %s", v.ID, a.ID)
	}
	if _, err := f.svc.UpdateVenture(ctx, a.ID, Venture{Name: "Alpha", Vertical: "core"}); err != nil {
		t.Fatalf("UpdateVenture by original id: %v", err)
	}
	if n := f.count(t, TableVentures); n != 1 {
		t.Fatalf("rows = %d, want 1", n)
	}
}

func TestUpsertVentures_RenameUpdatesInPlace(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	a, err := f.svc.CreateVenture(ctx, Venture{Name: "Alpha", Vertical: "core"})
	if err != nil {
		t.Fatalf("CreateVenture: %v", err)
	}
	got, err := f.svc.UpsertVentures(ctx, []Venture{{ID: a.ID, Name: "Alpha Renamed", Vertical: "core"}})
	if err != nil {
		t.Fatalf("UpsertVentures: %v", err)
	}
	if len(got) != 1 || got[0].ID != a.ID || got[0].Slug != "alpha-renamed" {
		t.Fatalf("written = %+v", got)
	}
	if _, err := f.svc.GetVentureBySlug(ctx, "alpha"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("old slug: want ErrNotFound, got %v", err)
	}
	if n := f.count(t, TableVentures); n != 1 {
		t.Fatalf("rows = %d, want 1", n)
	}
}

func TestUpsertVentures_SlugCollisionIsDuplicateKey(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	a, err := f.svc.CreateVenture(ctx, Venture{Name: "Alpha", Vertical: "core"})
	if err != nil {
		t.Fatalf("CreateVenture: %v", err)
	}
	if _, err := f.svc.CreateVenture(ctx, Venture{Name: "Beta", Vertical: "tech"}); err != nil {
		t.Fatalf("CreateVenture: %v", err)
	}
	got, err := f.svc.UpsertVentures(ctx, []Venture{
		{ID: a.ID, Name: "Beta", Vertical: "tech"},
		{Name: "Gamma", Vertical: "strategic"},
	})
	var dup *store.DuplicateKeyError
	if !errors.As(err, &dup) {
		t.Fatalf("expected DuplicateKeyError, got %v", err)
	}
	if len(got) != 1 || got[0].Slug != "gamma" {
		t.Fatalf("written = %+v", got)
	}
	if n := f.count(t, TableVentures); n != 3 {
		t.Fatalf("rows = %d, want 3", n)
	}
}

func TestVenture_UpdateDeleteAndNotFound(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	v, err := f.svc.CreateVenture(ctx, Venture{Name: "Alpha", Vertical: "core", WebsiteURL: "https://alpha.example"})
	if err != nil {
		t.Fatalf("CreateVenture: %v", err)
	}
	v.Summary = "updated"
	v.WebsiteURL = ""
	up, err := f.svc.UpdateVenture(ctx, v.ID, v)
	if err != nil {
		t.Fatalf("UpdateVenture: %v", err)
	}
	if up.Summary != "updated" || up.WebsiteURL != "" {
		t.Fatalf("updated = %+v", up)
	}
	if _, err := f.svc.UpdateVenture(ctx, "missing", v); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := f.svc.DeleteVenture(ctx, v.ID); err != nil {
		t.Fatalf("DeleteVenture: %v", err)
	}
	if _, err := f.svc.GetVentureBySlug(ctx, "alpha"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// timeline
// ---------------------------------------------------------------------------

func TestTimeline_NewUpsertListDelete(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	first := f.svc.NewTimelineItem(nil)
	if first.Year != "2026" || first.Title != "New Milestone" || first.DisplayOrder != 0 || first.ID == "" {
		t.Fatalf("new item = %+v", first)
	}
	second := f.svc.NewTimelineItem([]TimelineItem{first})
	second.Title = "Founded group"
	second.Year = "2012"
	if second.DisplayOrder != 1 {
		t.Fatalf("display order = %d", second.DisplayOrder)
	}

	if _, err := f.svc.UpsertTimeline(ctx, []TimelineItem{second, first}); err != nil {
		t.Fatalf("UpsertTimeline: %v", err)
	}
	first.Description = "edited"
	if _, err := f.svc.UpsertTimeline(ctx, []TimelineItem{first}); err != nil {
		t.Fatalf("UpsertTimeline: %v", err)
	}
	items, err := f.svc.ListTimeline(ctx)
	if err != nil {
		t.Fatalf("ListTimeline: %v", err)
	}
	if len(items) != 2 || items[0].ID != first.ID || items[0].Description != "edited" || items[1].Title != "Founded group" {
		t.Fatalf("items = %+v", items)
	}

	if _, err := f.svc.UpsertTimeline(ctx, []TimelineItem{{Year: "2020"}}); !IsValidation(err) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if err := f.svc.DeleteTimelineItem(ctx, first.ID); err != nil {
		t.Fatalf("DeleteTimelineItem: %v", err)
	}
	if n := f.count(t, TableTimeline); n != 1 {
		t.Fatalf("rows = %d, want 1", n)
	}
}

// ---------------------------------------------------------------------------
// leads
// ---------------------------------------------------------------------------

func TestLeads_SubmitThenCloseTouchesOnlyStatus(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	other, err := f.svc.SubmitContact(ctx, ContactForm{Name: "B", Email: "b@b.com", Message: "other"})
	if err != nil {
		t.Fatalf("SubmitContact: %v", err)
	}
	f.clock.Advance(time.Minute)

	lead, err := f.svc.SubmitContact(ctx, ContactForm{Name: "A", Email: "a@b.com", Category: "business", Message: "hi"})
	if err != nil {
		t.Fatalf("SubmitContact: %v", err)
	}
	if n := f.count(t, TableLeads, store.Where("email", store.Eq, "a@b.com")); n != 1 {
		t.Fatalf("rows for a@b.com = %d, want 1", n)
	}
	if lead.Status != StatusNew || lead.Message != "hi" || lead.Category != "business" {
		t.Fatalf("lead = %+v", lead)
	}

	f.clock.Advance(time.Hour)
	closed, err := f.svc.UpdateLeadStatus(ctx, lead.ID, "Closed")
	if err != nil {
		t.Fatalf("UpdateLeadStatus: %v", err)
	}
	if closed.Status != StatusClosed {
		t.Fatalf("status = %q", closed.Status)
	}
	if !closed.CreatedAt.Equal(lead.CreatedAt) {
		t.Fatalf("created_at changed from %v to %v", lead.CreatedAt, closed.CreatedAt)
	}
	if closed.Name != lead.Name || closed.Message != lead.Message || closed.Email != lead.Email {
		t.Fatalf("other columns changed: %+v", closed)
	}

	leads, err := f.svc.ListLeads(ctx)
	if err != nil {
		t.Fatalf("ListLeads: %v", err)
	}
	if len(leads) != 2 || leads[0].ID != lead.ID || leads[1].ID != other.ID {
		t.Fatalf("leads not newest first: %+v", leads)
	}
	if leads[1].Status != StatusNew {
		t.Fatalf("other lead status = %q", leads[1].Status)
	}
	if !reflect.DeepEqual(f.metrics.leads, []string{"business", "business"}) {
		t.Fatalf("lead metrics = %v", f.metrics.leads)
	}
}

func TestSubmitContact_ComposesMessageAndValidates(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	lead, err := f.svc.SubmitContact(ctx, ContactForm{
		Name: "A", Email: "a@b.com", Subject: "Bid", Company: "Acme", Message: "details", Category: "Investment",
	})
	if err != nil {
		t.Fatalf("SubmitContact: %v", err)
	}
	if lead.Message != "Subject: Bid\n\nCompany: Acme\n\ndetails" || lead.Category != "investment" {
		t.Fatalf("lead = %+v", lead)
	}

	for _, form := range []ContactForm{
		{Email: "a@b.com", Message: "m"},
		{Name: "A", Message: "m"},
		{Name: "A", Email: "not-an-email", Message: "m"},
		{Name: "A", Email: "a@b.com"},
	} {
		if _, err := f.svc.SubmitContact(ctx, form); !IsValidation(err) {
			t.Fatalf("%+v: expected ValidationError, got %v", form, err)
		}
	}
	if n := f.count(t, TableLeads); n != 1 {
		t.Fatalf("rows = %d, want 1", n)
	}
}

func TestUpdateLeadStatus_Validation(t *testing.T) {
	f := newFixture(t, nil)
	if _, err := f.svc.UpdateLeadStatus(context.Background(), "x", "Archived"); !IsValidation(err) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if _, err := f.svc.UpdateLeadStatus(context.Background(), "missing", "in_progress"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFilterLeads(t *testing.T) {
	leads := []Lead{
		{Name: "Asha Rao", Email: "asha@corp.in", Status: StatusNew},
		{Name: "Vikram", Email: "vik@RAO.com", Status: StatusClosed},
		{Name: "Meera", Email: "m@x.com", Status: StatusInProgress},
	}
	if got := FilterLeads(leads, "rao", ""); len(got) != 2 {
		t.Fatalf("search rao = %v", got)
	}
	if got := FilterLeads(leads, "rao", "closed"); len(got) != 1 || got[0].Name != "Vikram" {
		t.Fatalf("search rao closed = %v", got)
	}
	if got := FilterLeads(leads, "", "In Progress"); len(got) != 1 || got[0].Name != "Meera" {
		t.Fatalf("in progress = %v", got)
	}
	if got := FilterLeads(leads, "", "All"); len(got) != 3 {
		t.Fatalf("all = %v", got)
	}
}

func TestWriteLeadsCSV(t *testing.T) {
	var buf bytes.Buffer
	created := time.Date(2026, 2, 1, 9, 30, 0, 0, time.UTC)
	err := WriteLeadsCSV(&buf, []Lead{{
		Name: "A", Email: "a@b.com", Category: "business", Message: "said \"hi\"\nthen left", Status: StatusNew, CreatedAt: created,
	}})
	if err != nil {
		t.Fatalf("WriteLeadsCSV: %v", err)
	}
	recs, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(recs) != 2 || !reflect.DeepEqual(recs[0], csvHeader) {
		t.Fatalf("records = %v", recs)
	}
	if recs[1][4] != "said \"hi\"\nthen left" || recs[1][6] != "2026-02-01T09:30:00Z" {
		t.Fatalf("row = %v", recs[1])
	}
}

// ---------------------------------------------------------------------------
// stats
// ---------------------------------------------------------------------------

func TestGetStats_Counts(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	if _, err := f.svc.SubmitContact(ctx, ContactForm{Name: "Old", Email: "o@x.com", Message: "m"}); err != nil {
		t.Fatalf("SubmitContact: %v", err)
	}
	f.clock.Advance(48 * time.Hour)
	if _, err := f.svc.SubmitContact(ctx, ContactForm{Name: "New", Email: "n@x.com", Message: "m"}); err != nil {
		t.Fatalf("SubmitContact: %v", err)
	}
	if _, err := f.svc.CreateVenture(ctx, Venture{Name: "V", Vertical: "core"}); err != nil {
		t.Fatalf("CreateVenture: %v", err)
	}
	got := f.svc.GetStats(ctx)
	want := Stats{Leads: 2, NewLeads: 1, Ventures: 1, Timeline: 0}
	if got != want {
		t.Fatalf("stats = %+v, want %+v", got, want)
	}
}

func TestGetStats_OneFailedCountReadsZero(t *testing.T) {
	f := newFixture(t, func(b store.Backend) store.Backend {
		return &storetest.Failing{Backend: b, Fail: func(op, table string, _ store.Row) error {
			if op == "count" && table == TableVentures {
				return errBoom
			}
			return nil
		}}
	})
	ctx := context.Background()
	if _, err := f.svc.SubmitContact(ctx, ContactForm{Name: "A", Email: "a@b.com", Message: "m"}); err != nil {
		t.Fatalf("SubmitContact: %v", err)
	}
	if _, err := f.svc.CreateVenture(ctx, Venture{Name: "V", Vertical: "core"}); err != nil {
		t.Fatalf("CreateVenture: %v", err)
	}
	if _, err := f.svc.UpsertTimeline(ctx, []TimelineItem{f.svc.NewTimelineItem(nil)}); err != nil {
		t.Fatalf("UpsertTimeline: %v", err)
	}

	got := f.svc.GetStats(ctx)
	want := Stats{Leads: 1, NewLeads: 1, Ventures: 0, Timeline: 1}
	if got != want {
		t.Fatalf("stats = %+v, want %+v", got, want)
	}
	if !reflect.DeepEqual(f.metrics.statsFailures, []string{"ventures"}) {
		t.Fatalf("failures = %v", f.metrics.statsFailures)
	}
}
