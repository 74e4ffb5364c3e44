package store

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// Dialect captures the differences between the supported SQL engines
type Dialect interface {
	Name() string
	Placeholder(n int) string
	// Arg converts a Go value into something the driver stores faithfully
	Arg(v any) any
	// DuplicateKey reports a unique violation and, when known, the constraint
	DuplicateKey(err error) (key string, ok bool)
}

// timeLayout sorts lexically in the same order as the instants it encodes
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type postgresDialect struct{}

// Postgres is the hosted backend (Supabase) dialect over lib/pq
var Postgres Dialect = postgresDialect{}

func (postgresDialect) Name() string             { return "postgres" }
func (postgresDialect) Placeholder(n int) string { return "$" + strconv.Itoa(n) }
func (postgresDialect) Arg(v any) any {
	if t, ok := v.(time.Time); ok {
		return t.UTC()
	}
	return v
}

func (postgresDialect) DuplicateKey(err error) (string, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return pqErr.Constraint, true
	}
	return "", false
}

type sqliteDialect struct{}

// SQLite is the embedded dialect over modernc.org/sqlite for local runs and tests
var SQLite Dialect = sqliteDialect{}

func (sqliteDialect) Name() string           { return "sqlite" }
func (sqliteDialect) Placeholder(int) string { return "?" }
func (sqliteDialect) Arg(v any) any {
	switch x := v.(type) {
	case time.Time:
		return x.UTC().Format(timeLayout)
	case bool:
		if x {
			return int64(1)
		}
		return int64(0)
	}
	return v
}

func (sqliteDialect) DuplicateKey(err error) (string, bool) {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return constraintColumns(err.Error()), true
		}
	}
	msg := err.Error()
	if strings.Contains(strings.ToLower(msg), "unique constraint failed") {
		return constraintColumns(msg), true
	}
	return "", false
}

// constraintColumns pulls "ventures.slug" out of
// "UNIQUE constraint failed: ventures.slug"
func constraintColumns(msg string) string {
	const marker = "constraint failed: "
	i := strings.LastIndex(strings.ToLower(msg), marker)
	if i < 0 {
		return ""
	}
	rest := msg[i+len(marker):]
	if j := strings.IndexAny(rest, " ()"); j >= 0 {
		rest = rest[:j]
	}
	return rest
}

// DialectFor maps a -db-driver value to its Dialect
func DialectFor(driver string) (Dialect, bool) {
	switch driver {
	case "postgres", "postgresql":
		return Postgres, true
	case "sqlite", "sqlite3":
		return SQLite, true
	}
	return nil, false
}
