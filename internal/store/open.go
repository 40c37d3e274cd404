package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// SQLite connection pragmas. The writer runs in WAL mode so the read pool
// sees committed state while a cycle transaction is open.
var (
	sqliteWritePragmas = []string{"foreign_keys(1)", "journal_mode(WAL)", "busy_timeout(5000)"}
	sqliteReadPragmas  = []string{"busy_timeout(5000)", "query_only(1)"}
)

// Open connects to the configured database, verifies the connection and
// returns the matching Store. driver is "postgres" or "sqlite".
func Open(ctx context.Context, driver, dsn string, maxOpenConns int) (*SQL, error) {
	switch driver {
	case "postgres":
		db, err := openPing(ctx, driver, dsn)
		if err != nil {
			return nil, err
		}
		db.SetMaxOpenConns(maxOpenConns)
		db.SetMaxIdleConns(2)
		db.SetConnMaxLifetime(30 * time.Minute)
		return NewPostgres(db), nil
	case "sqlite":
		return openSQLite(ctx, dsn, maxOpenConns)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

func openSQLite(ctx context.Context, dsn string, maxOpenConns int) (*SQL, error) {
	// One writer connection keeps the cycle transaction and pragmas consistent.
	db, err := openPing(ctx, "sqlite", withPragmas(dsn, sqliteWritePragmas))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	read, err := openPing(ctx, "sqlite", withPragmas(dsn, sqliteReadPragmas))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("read pool: %w", err)
	}
	read.SetMaxOpenConns(max(maxOpenConns, 1))
	return NewSQLite(db, read), nil
}

func openPing(ctx context.Context, driver, dsn string) (*sql.DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	return db, nil
}

// withPragmas appends modernc.org/sqlite _pragma parameters to dsn.
func withPragmas(dsn string, pragmas []string) string {
	var b strings.Builder
	b.WriteString(dsn)
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	for _, p := range pragmas {
		b.WriteString(sep)
		b.WriteString("_pragma=")
		b.WriteString(p)
		sep = "&"
	}
	return b.String()
}
