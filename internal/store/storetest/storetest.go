// Package storetest provides migrated in-memory stores for tests.
package storetest

import (
	"context"
	"testing"

	"github.com/prabhakardwivedi/corpsite/internal/store"
)

// SQLite opens a fresh migrated in-memory database closed at test cleanup
func SQLite(t testing.TB, opts ...store.Option) *store.SQL {
	t.Helper()
	ctx := context.Background()
	db, err := store.Open(ctx, store.SQLite, ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := store.Migrate(ctx, db, store.SQLite); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	return store.New(db, store.SQLite, opts...)
}

// Failing wraps a backend and fails the calls selected by Fail
type Failing struct {
	store.Backend
	// Fail returns the error for an operation on table, nil to pass through.
	// row is the written row for insert and upsert, the patch for update.
	Fail func(op, table string, row store.Row) error
}

func (f *Failing) fail(op, table string, row store.Row) error {
	if f.Fail == nil {
		return nil
	}
	return f.Fail(op, table, row)
}

func (f *Failing) Select(ctx context.Context, table string, q store.Query) ([]store.Row, error) {
	if err := f.fail("select", table, nil); err != nil {
		return nil, err
	}
	return f.Backend.Select(ctx, table, q)
}

func (f *Failing) Count(ctx context.Context, table string, where ...store.Cond) (int, error) {
	if err := f.fail("count", table, nil); err != nil {
		return 0, err
	}
	return f.Backend.Count(ctx, table, where...)
}

func (f *Failing) Insert(ctx context.Context, table string, row store.Row) (store.Row, error) {
	if err := f.fail("insert", table, row); err != nil {
		return nil, err
	}
	return f.Backend.Insert(ctx, table, row)
}

func (f *Failing) Update(ctx context.Context, table string, id any, patch store.Row) (store.Row, error) {
	if err := f.fail("update", table, patch); err != nil {
		return nil, err
	}
	return f.Backend.Update(ctx, table, id, patch)
}

func (f *Failing) Delete(ctx context.Context, table string, id any) error {
	if err := f.fail("delete", table, nil); err != nil {
		return err
	}
	return f.Backend.Delete(ctx, table, id)
}

func (f *Failing) Upsert(ctx context.Context, table string, rows []store.Row, conflictKey ...string) ([]store.Row, error) {
	for _, r := range rows {
		if err := f.fail("upsert", table, r); err != nil {
			return nil, err
		}
	}
	return f.Backend.Upsert(ctx, table, rows, conflictKey...)
}
