package store

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/prabhakardwivedi/corpsite/internal/log"
	"github.com/prabhakardwivedi/corpsite/internal/xerrors"
)

// Open connects to the database for dialect d and waits for it to answer.
// For sqlite, dsn is a file path or ":memory:".
func Open(ctx context.Context, d Dialect, dsn string) (*sql.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, xerrors.New("database dsn is required")
	}
	driver := d.Name()
	switch d {
	case SQLite:
		if dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
			dsn = filepath.Clean(dsn)
		}
		if !strings.Contains(dsn, "?") {
			dsn += "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
		}
	case Postgres:
	default:
		return nil, fmt.Errorf("unsupported dialect %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, xerrors.Wrapf(err, "open %s db", driver)
	}
	if d == SQLite {
		// one writer keeps the single file and in-memory databases consistent
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetConnMaxIdleTime(5 * time.Minute)
	}

	L := log.FromContext(ctx)
	const attempts = 5
	for i := 1; ; i++ {
		pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = db.PingContext(pctx)
		cancel()
		if err == nil {
			return db, nil
		}
		if i == attempts || ctx.Err() != nil {
			_ = db.Close()
			return nil, xerrors.Wrapf(err, "ping %s db after %d attempts", driver, i)
		}
		L.Warn(ctx, "database not ready, retrying", "driver", driver, "attempt", i, "err", err)
		select {
		case <-ctx.Done():
		case <-time.After(2 * time.Second):
		}
	}
}
