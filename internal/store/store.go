// Package store is the relational backing store behind the content and
// admin layers. Every call is a single statement keyed by table name and a
// filter predicate; nothing spans rows in a transaction.
package store

import (
	"context"
	"errors"
	"fmt"
)

// Row is one record keyed by column name
type Row map[string]any

// Op is a comparison operator in a filter condition
type Op string

const (
	Eq  Op = "="
	Neq Op = "<>"
	Gt  Op = ">"
	Gte Op = ">="
	Lt  Op = "<"
	Lte Op = "<="
)

// Cond is one column comparison. Conditions in a filter are ANDed.
type Cond struct {
	Column string
	Op     Op
	Value  any
}

func Where(column string, op Op, value any) Cond { return Cond{Column: column, Op: op, Value: value} }

type Order struct {
	Column string
	Desc   bool
}

func Asc(column string) Order  { return Order{Column: column} }
func Desc(column string) Order { return Order{Column: column, Desc: true} }

type Query struct {
	Where   []Cond
	OrderBy []Order
	Limit   int
}

// Backend is the CRUD surface the rest of the service is written against
type Backend interface {
	Select(ctx context.Context, table string, q Query) ([]Row, error)
	Count(ctx context.Context, table string, where ...Cond) (int, error)
	Insert(ctx context.Context, table string, row Row) (Row, error)
	Update(ctx context.Context, table string, id any, patch Row) (Row, error)
	Delete(ctx context.Context, table string, id any) error
	Upsert(ctx context.Context, table string, rows []Row, conflictKey ...string) ([]Row, error)
}

// ErrNotFound is returned when an update or single-row read matches nothing
var ErrNotFound = errors.New("store: not found")

// StoreError is a backend failure on a CRUD call, carrying the provider message
type StoreError struct {
	Op    string
	Table string
	Err   error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store: %s %s: %v", e.Op, e.Table, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// DuplicateKeyError is a unique constraint violation on insert or update
type DuplicateKeyError struct {
	Table string
	Key   string
	Err   error
}

func (e *DuplicateKeyError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("store: duplicate %s in %s", e.Key, e.Table)
	}
	return fmt.Sprintf("store: duplicate key in %s", e.Table)
}

func (e *DuplicateKeyError) Unwrap() error { return e.Err }

// IsDuplicate reports whether err is, or wraps, a DuplicateKeyError
func IsDuplicate(err error) bool {
	var d *DuplicateKeyError
	return errors.As(err, &d)
}
