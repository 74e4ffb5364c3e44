package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/prabhakardwivedi/corpsite/internal/otelx"
)

// Observer receives one call per backend operation
type Observer interface {
	ObserveStoreOp(table, op string, err error, d time.Duration)
}

// SQL implements Backend over database/sql
type SQL struct {
	db       *sql.DB
	dialect  Dialect
	idColumn string
	observer Observer
	now      func() time.Time
}

type Option func(*SQL)

// WithObserver reports every operation to o
func WithObserver(o Observer) Option { return func(s *SQL) { s.observer = o } }

// WithIDColumn overrides the primary key column used by Update and Delete
func WithIDColumn(c string) Option { return func(s *SQL) { s.idColumn = c } }

func New(db *sql.DB, d Dialect, opts ...Option) *SQL {
	s := &SQL{db: db, dialect: d, idColumn: "id", now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// DB exposes the handle for health checks and migrations
func (s *SQL) DB() *sql.DB { return s.db }

func (s *SQL) Dialect() Dialect { return s.dialect }

var identRe = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)

func quote(ident string) (string, error) {
	if !identRe.MatchString(ident) {
		return "", fmt.Errorf("invalid identifier %q", ident)
	}
	return `"` + ident + `"`, nil
}

// builder accumulates SQL text and positional args for one statement
type builder struct {
	d    Dialect
	sb   strings.Builder
	args []any
	err  error
}

func (b *builder) raw(s string) *builder {
	b.sb.WriteString(s)
	return b
}

func (b *builder) ident(s string) *builder {
	q, err := quote(s)
	if err != nil && b.err == nil {
		b.err = err
	}
	b.sb.WriteString(q)
	return b
}

func (b *builder) arg(v any) *builder {
	b.args = append(b.args, b.d.Arg(v))
	b.sb.WriteString(b.d.Placeholder(len(b.args)))
	return b
}

func (b *builder) where(conds []Cond) *builder {
	for i, c := range conds {
		if i == 0 {
			b.raw(" WHERE ")
		} else {
			b.raw(" AND ")
		}
		switch c.Op {
		case Eq, Neq, Gt, Gte, Lt, Lte:
		default:
			if b.err == nil {
				b.err = fmt.Errorf("invalid operator %q", c.Op)
			}
		}
		b.ident(c.Column).raw(" " + string(c.Op) + " ").arg(c.Value)
	}
	return b
}

func sortedColumns(r Row) []string {
	cols := make([]string, 0, len(r))
	for k := range r {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}

func (b *builder) insert(table string, r Row) *builder {
	cols := sortedColumns(r)
	b.raw("INSERT INTO ").ident(table).raw(" (")
	for i, c := range cols {
		if i > 0 {
			b.raw(", ")
		}
		b.ident(c)
	}
	b.raw(") VALUES (")
	for i, c := range cols {
		if i > 0 {
			b.raw(", ")
		}
		b.arg(r[c])
	}
	return b.raw(")")
}

func (s *SQL) newBuilder() *builder { return &builder{d: s.dialect} }

// observe wraps one operation with a span and the observer callback
func (s *SQL) observe(ctx context.Context, table, op string, fn func(context.Context) error) error {
	ctx, span := otelx.Start(ctx, "store."+op,
		attribute.String("db.system", s.dialect.Name()),
		attribute.String("db.sql.table", table),
	)
	start := s.now()
	err := fn(ctx)
	otelx.End(span, err)
	if s.observer != nil {
		s.observer.ObserveStoreOp(table, op, err, s.now().Sub(start))
	}
	return err
}

// classify turns a driver error into the store taxonomy
func (s *SQL) classify(op, table string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) {
		return err
	}
	var dup *DuplicateKeyError
	if errors.As(err, &dup) {
		return err
	}
	if key, ok := s.dialect.DuplicateKey(err); ok {
		return &DuplicateKeyError{Table: table, Key: key, Err: err}
	}
	return &StoreError{Op: op, Table: table, Err: err}
}

func (s *SQL) Select(ctx context.Context, table string, q Query) ([]Row, error) {
	var out []Row
	err := s.observe(ctx, table, "select", func(ctx context.Context) error {
		b := s.newBuilder().raw("SELECT * FROM ").ident(table).where(q.Where)
		for i, o := range q.OrderBy {
			if i == 0 {
				b.raw(" ORDER BY ")
			} else {
				b.raw(", ")
			}
			b.ident(o.Column)
			if o.Desc {
				b.raw(" DESC")
			} else {
				b.raw(" ASC")
			}
		}
		if q.Limit > 0 {
			b.raw(" LIMIT " + strconv.Itoa(q.Limit))
		}
		if b.err != nil {
			return b.err
		}
		rows, err := s.db.QueryContext(ctx, b.sb.String(), b.args...)
		if err != nil {
			return err
		}
		out, err = scanRows(rows)
		return err
	})
	if err != nil {
		return nil, s.classify("select", table, err)
	}
	if out == nil {
		out = []Row{}
	}
	return out, nil
}

func (s *SQL) Count(ctx context.Context, table string, where ...Cond) (int, error) {
	var n int
	err := s.observe(ctx, table, "count", func(ctx context.Context) error {
		b := s.newBuilder().raw("SELECT COUNT(*) FROM ").ident(table).where(where)
		if b.err != nil {
			return b.err
		}
		return s.db.QueryRowContext(ctx, b.sb.String(), b.args...).Scan(&n)
	})
	if err != nil {
		return 0, s.classify("count", table, err)
	}
	return n, nil
}

// one runs a RETURNING * statement expected to yield a single row
func (s *SQL) one(ctx context.Context, b *builder) (Row, error) {
	if b.err != nil {
		return nil, b.err
	}
	rows, err := s.db.QueryContext(ctx, b.sb.String()+" RETURNING *", b.args...)
	if err != nil {
		return nil, err
	}
	got, err := scanRows(rows)
	if err != nil {
		return nil, err
	}
	if len(got) == 0 {
		return nil, ErrNotFound
	}
	return got[0], nil
}

func (s *SQL) Insert(ctx context.Context, table string, row Row) (Row, error) {
	if len(row) == 0 {
		return nil, &StoreError{Op: "insert", Table: table, Err: errors.New("empty row")}
	}
	var out Row
	err := s.observe(ctx, table, "insert", func(ctx context.Context) (err error) {
		out, err = s.one(ctx, s.newBuilder().insert(table, row))
		return err
	})
	if err != nil {
		return nil, s.classify("insert", table, err)
	}
	return out, nil
}

func (s *SQL) Update(ctx context.Context, table string, id any, patch Row) (Row, error) {
	if len(patch) == 0 {
		return nil, &StoreError{Op: "update", Table: table, Err: errors.New("empty patch")}
	}
	var out Row
	err := s.observe(ctx, table, "update", func(ctx context.Context) (err error) {
		b := s.newBuilder().raw("UPDATE ").ident(table).raw(" SET ")
		for i, c := range sortedColumns(patch) {
			if i > 0 {
				b.raw(", ")
			}
			b.ident(c).raw(" = ").arg(patch[c])
		}
		b.where([]Cond{Where(s.idColumn, Eq, id)})
		out, err = s.one(ctx, b)
		return err
	})
	if err != nil {
		return nil, s.classify("update", table, err)
	}
	return out, nil
}

// Delete removes the row with the given id. Deleting a missing row is not an error.
func (s *SQL) Delete(ctx context.Context, table string, id any) error {
	err := s.observe(ctx, table, "delete", func(ctx context.Context) error {
		b := s.newBuilder().raw("DELETE FROM ").ident(table).where([]Cond{Where(s.idColumn, Eq, id)})
		if b.err != nil {
			return b.err
		}
		_, err := s.db.ExecContext(ctx, b.sb.String(), b.args...)
		return err
	})
	return s.classify("delete", table, err)
}

// Upsert writes each row independently with INSERT .. ON CONFLICT DO UPDATE.
// The rows written before a failure are returned alongside the error.
func (s *SQL) Upsert(ctx context.Context, table string, rows []Row, conflictKey ...string) ([]Row, error) {
	if len(conflictKey) == 0 {
		conflictKey = []string{s.idColumn}
	}
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		var got Row
		err := s.observe(ctx, table, "upsert", func(ctx context.Context) (err error) {
			got, err = s.one(ctx, s.upsertStmt(table, r, conflictKey))
			return err
		})
		if err != nil {
			return out, s.classify("upsert", table, err)
		}
		out = append(out, got)
	}
	return out, nil
}

func (s *SQL) upsertStmt(table string, r Row, conflictKey []string) *builder {
	b := s.newBuilder()
	for _, k := range conflictKey {
		if _, ok := r[k]; !ok && b.err == nil {
			b.err = fmt.Errorf("upsert into %s: row is missing conflict column %q", table, k)
		}
	}
	b.insert(table, r).raw(" ON CONFLICT (")
	isKey := make(map[string]bool, len(conflictKey))
	for i, k := range conflictKey {
		isKey[k] = true
		if i > 0 {
			b.raw(", ")
		}
		b.ident(k)
	}
	b.raw(") DO UPDATE SET ")
	// the primary key is never rewritten when another column is the conflict target
	var set []string
	for _, c := range sortedColumns(r) {
		if !isKey[c] && c != s.idColumn {
			set = append(set, c)
		}
	}
	// a row made only of key columns still needs a SET so RETURNING yields it
	if len(set) == 0 {
		set = conflictKey[:1]
	}
	for i, c := range set {
		if i > 0 {
			b.raw(", ")
		}
		b.ident(c).raw(" = excluded.").ident(c)
	}
	return b
}

func scanRows(rows *sql.Rows) ([]Row, error) {
	defer rows.Close()
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []Row
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		r := make(Row, len(cols))
		for i, c := range cols {
			if b, ok := vals[i].([]byte); ok {
				r[c] = string(b)
			} else {
				r[c] = vals[i]
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

var _ Backend = (*SQL)(nil)
