package sqlite

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

const driverName = "sqlite"

// IsDSN reports whether dsn names a SQLite database rather than a server.
func IsDSN(dsn string) bool {
	return strings.HasPrefix(dsn, "sqlite://") || strings.HasPrefix(dsn, "file:") ||
		strings.HasSuffix(dsn, ".db") || strings.HasSuffix(dsn, ".sqlite")
}

// Path extracts the database file path from a sqlite:// or file: DSN.
func Path(dsn string) string {
	p := strings.TrimPrefix(dsn, "sqlite://")
	p = strings.TrimPrefix(p, "file:")
	if i := strings.IndexByte(p, '?'); i >= 0 {
		p = p[:i]
	}
	return p
}

// Open connects to the database at dsn in read-only mode. Writers holding a
// lock make readers wait up to busyTimeout before failing with SQLITE_BUSY.
func Open(ctx context.Context, dsn string, busyTimeout time.Duration) (*sqlx.DB, error) {
	q := url.Values{}
	q.Set("mode", "ro")
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", busyTimeout.Milliseconds()))
	q.Add("_pragma", "query_only(1)")

	db, err := sqlx.Open(driverName, "file:"+Path(dsn)+"?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", ClassifyError(err))
	}
	return db, nil
}
