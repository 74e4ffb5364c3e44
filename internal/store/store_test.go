package store

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
)

// ---------------------------------------------------------------------------
// fixtures
// ---------------------------------------------------------------------------

func openSQLite(t *testing.T) *SQL {
	t.Helper()
	ctx := context.Background()
	db, err := Open(ctx, SQLite, ":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := Migrate(ctx, db, SQLite); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return New(db, SQLite)
}

type recordingObserver struct {
	ops []string
}

func (o *recordingObserver) ObserveStoreOp(table, op string, err error, _ time.Duration) {
	o.ops = append(o.ops, table+"."+op)
}

func venture(slug string, order int) Row {
	return Row{
		"id":         "id-" + slug,
		"name":       slug,
		"slug":       slug,
		"vertical":   "CORE",
		"sort_order": order,
	}
}

// ---------------------------------------------------------------------------
// sqlite behaviour
// ---------------------------------------------------------------------------

func TestMigrate_Idempotent(t *testing.T) {
	s := openSQLite(t)
	if err := Migrate(context.Background(), s.DB(), SQLite); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
	n, err := s.Count(context.Background(), migrationTable)
	if err != nil || n != 1 {
		t.Fatalf("schema_migrations rows = %d, %v", n, err)
	}
}

func TestInsertSelect_OrderAndFilter(t *testing.T) {
	s := openSQLite(t)
	ctx := context.Background()
	for _, r := range []Row{venture("b", 2), venture("a", 1), venture("c", 2)} {
		if _, err := s.Insert(ctx, "ventures", r); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	rows, err := s.Select(ctx, "ventures", Query{OrderBy: []Order{Asc("sort_order"), Asc("id")}})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	var got []string
	for _, r := range rows {
		got = append(got, r.String("slug"))
	}
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Fatalf("order = %v", got)
	}

	rows, err = s.Select(ctx, "ventures", Query{Where: []Cond{Where("sort_order", Gt, 1)}, Limit: 1})
	if err != nil || len(rows) != 1 {
		t.Fatalf("filtered select = %v, %v", rows, err)
	}
}

func TestSelect_EmptyIsNotNil(t *testing.T) {
	s := openSQLite(t)
	rows, err := s.Select(context.Background(), "timeline", Query{})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if rows == nil || len(rows) != 0 {
		t.Fatalf("want empty non-nil slice, got %#v", rows)
	}
}

func TestInsert_DuplicateSlug(t *testing.T) {
	s := openSQLite(t)
	ctx := context.Background()
	if _, err := s.Insert(ctx, "ventures", venture("acme", 1)); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	dup := venture("acme", 2)
	dup["id"] = "other"
	_, err := s.Insert(ctx, "ventures", dup)
	var d *DuplicateKeyError
	if !errors.As(err, &d) {
		t.Fatalf("want DuplicateKeyError, got %T %v", err, err)
	}
	if d.Table != "ventures" || d.Key != "ventures.slug" {
		t.Fatalf("dup = %+v", d)
	}
}

func TestUpsert_CompositeKeyNeverDuplicates(t *testing.T) {
	s := openSQLite(t)
	ctx := context.Background()
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	for i, v := range []string{"first", "second"} {
		_, err := s.Upsert(ctx, "site_content", []Row{{
			"section": "hero", "field": "headline", "value": v, "updated_at": now.Add(time.Duration(i) * time.Second),
		}}, "section", "field")
		if err != nil {
			t.Fatalf("Upsert: %v", err)
		}
	}
	rows, err := s.Select(ctx, "site_content", Query{})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if len(rows) != 1 || rows[0].String("value") != "second" {
		t.Fatalf("rows = %v", rows)
	}
	if got := rows[0].Time("updated_at"); !got.Equal(now.Add(time.Second)) {
		t.Fatalf("updated_at = %v", got)
	}
}

func TestUpsert_SecondaryKeyKeepsPrimaryKey(t *testing.T) {
	s := openSQLite(t)
	ctx := context.Background()
	if _, err := s.Insert(ctx, "ventures", venture("acme", 1)); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	again := venture("acme", 7)
	again["id"] = "other"
	got, err := s.Upsert(ctx, "ventures", []Row{again}, "slug")
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if got[0].String("id") != "id-acme" || got[0].Int("sort_order") != 7 {
		t.Fatalf("upserted = %v", got[0])
	}
	rows, err := s.Select(ctx, "ventures", Query{})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if len(rows) != 1 || rows[0].String("id") != "id-acme" {
		t.Fatalf("rows = %v", rows)
	}
}

func TestUpsert_MissingConflictColumn(t *testing.T) {
	s := openSQLite(t)
	_, err := s.Upsert(context.Background(), "ventures", []Row{{"name": "x"}}, "slug")
	var se *StoreError
	if !errors.As(err, &se) {
		t.Fatalf("want StoreError, got %v", err)
	}
}

func TestUpdate_NotFoundAndPatch(t *testing.T) {
	s := openSQLite(t)
	ctx := context.Background()
	if _, err := s.Update(ctx, "leads", "missing", Row{"status": "Closed"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}

	created := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	if _, err := s.Insert(ctx, "leads", Row{"id": "l1", "name": "A", "email": "a@b.com", "status": "New", "created_at": created}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	got, err := s.Update(ctx, "leads", "l1", Row{"status": "Closed"})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.String("status") != "Closed" || !got.Time("created_at").Equal(created) || got.String("phone") != "" {
		t.Fatalf("row = %v", got)
	}
}

func TestDelete_MissingIsNotError(t *testing.T) {
	s := openSQLite(t)
	if err := s.Delete(context.Background(), "timeline", "nope"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
}

func TestCount_TimeFilter(t *testing.T) {
	s := openSQLite(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, at := range []time.Time{base.Add(-48 * time.Hour), base.Add(-time.Hour), base} {
		row := Row{"id": string(rune('a' + i)), "name": "n", "email": "e", "created_at": at}
		if _, err := s.Insert(ctx, "leads", row); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}
	n, err := s.Count(ctx, "leads", Where("created_at", Gt, base.Add(-24*time.Hour)))
	if err != nil || n != 2 {
		t.Fatalf("Count = %d, %v", n, err)
	}
}

func TestInvalidIdentifierRejected(t *testing.T) {
	s := openSQLite(t)
	_, err := s.Select(context.Background(), `leads"; DROP TABLE leads; --`, Query{})
	var se *StoreError
	if !errors.As(err, &se) {
		t.Fatalf("want StoreError, got %v", err)
	}
}

func TestObserverSeesEveryOp(t *testing.T) {
	obs := &recordingObserver{}
	s := openSQLite(t)
	s.observer = obs
	ctx := context.Background()
	_, _ = s.Insert(ctx, "ventures", venture("x", 1))
	_, _ = s.Count(ctx, "ventures")
	_ = s.Delete(ctx, "ventures", "id-x")
	want := []string{"ventures.insert", "ventures.count", "ventures.delete"}
	if len(obs.ops) != len(want) {
		t.Fatalf("ops = %v", obs.ops)
	}
	for i := range want {
		if obs.ops[i] != want[i] {
			t.Fatalf("ops = %v", obs.ops)
		}
	}
}

// ---------------------------------------------------------------------------
// postgres dialect via sqlmock
// ---------------------------------------------------------------------------

func newMock(t *testing.T) (*SQL, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return New(db, Postgres), mock
}

func TestPostgres_UpsertStatement(t *testing.T) {
	s, mock := newMock(t)
	want := `INSERT INTO "seo_settings" ("description", "page_path", "title") VALUES ($1, $2, $3) ` +
		`ON CONFLICT ("page_path") DO UPDATE SET "description" = excluded."description", "title" = excluded."title" RETURNING *`
	mock.ExpectQuery(regexp.QuoteMeta(want)).
		WithArgs("d", "/about", "About").
		WillReturnRows(sqlmock.NewRows([]string{"page_path", "title", "description"}).AddRow("/about", "About", []byte("d")))

	rows, err := s.Upsert(context.Background(), "seo_settings",
		[]Row{{"page_path": "/about", "title": "About", "description": "d"}}, "page_path")
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if rows[0].String("description") != "d" {
		t.Fatalf("bytes should decode as text: %v", rows[0])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestPostgres_SelectStatement(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "leads" WHERE "status" = $1 ORDER BY "created_at" DESC LIMIT 5`)).
		WithArgs("New").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("l1"))

	rows, err := s.Select(context.Background(), "leads", Query{
		Where:   []Cond{Where("status", Eq, "New")},
		OrderBy: []Order{Desc("created_at")},
		Limit:   5,
	})
	if err != nil || len(rows) != 1 {
		t.Fatalf("Select = %v, %v", rows, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestPostgres_UniqueViolationMapsToDuplicate(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery(`INSERT INTO "ventures"`).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "ventures_slug_key"})

	_, err := s.Insert(context.Background(), "ventures", Row{"slug": "acme"})
	var d *DuplicateKeyError
	if !errors.As(err, &d) || d.Key != "ventures_slug_key" {
		t.Fatalf("want DuplicateKeyError, got %v", err)
	}
}

func TestPostgres_OtherErrorsAreStoreErrors(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery(`SELECT COUNT`).WillReturnError(errors.New("connection reset"))

	_, err := s.Count(context.Background(), "leads")
	var se *StoreError
	if !errors.As(err, &se) || se.Op != "count" || se.Table != "leads" {
		t.Fatalf("want StoreError, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// row decoding
// ---------------------------------------------------------------------------

func TestRowAccessors(t *testing.T) {
	r := Row{
		"n":    int64(7),
		"s":    []byte("x"),
		"list": `["a","b"]`,
		"bad":  `{"a":1}`,
		"t":    "2026-01-02T03:04:05.000000000Z",
	}
	if r.Int("n") != 7 || r.String("s") != "x" || r.String("missing") != "" {
		t.Fatalf("scalar accessors wrong")
	}
	if l := r.Strings("list"); len(l) != 2 || l[1] != "b" {
		t.Fatalf("Strings = %v", l)
	}
	if l := r.Strings("bad"); l == nil || len(l) != 0 {
		t.Fatalf("non-array should be empty list, got %v", l)
	}
	if r.Time("t").Year() != 2026 {
		t.Fatalf("Time = %v", r.Time("t"))
	}
	if JSONList(nil) != "[]" {
		t.Fatalf("JSONList(nil) = %s", JSONList(nil))
	}
}

func TestConstraintColumns(t *testing.T) {
	got := constraintColumns("constraint failed: UNIQUE constraint failed: ventures.slug (2067)")
	if got != "ventures.slug" {
		t.Fatalf("constraintColumns = %q", got)
	}
}

func TestDialectFor(t *testing.T) {
	if d, ok := DialectFor("sqlite"); !ok || d != SQLite {
		t.Fatalf("sqlite dialect")
	}
	if _, ok := DialectFor("mysql"); ok {
		t.Fatalf("mysql should be unsupported")
	}
}
