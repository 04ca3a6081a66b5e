package migrations

import (
	"context"
	"time"

	"pumpguard/internal/storage/sqlite"
)

// RunSqliteMigrations applies every embedded SQLite file not yet recorded.
func RunSqliteMigrations(ctx context.Context, db *sqlite.DB) error {
	migs, err := load(SqliteFS, "sqlite", false)
	if err != nil {
		return err
	}
	_, err = apply(ctx, sqliteLedger{db}, migs)
	return err
}

type sqliteLedger struct {
	db *sqlite.DB
}

func (l sqliteLedger) ensure(ctx context.Context) error {
	_, err := l.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version    TEXT PRIMARY KEY,
		applied_at INTEGER NOT NULL
	)`)
	return err
}

func (l sqliteLedger) applied(ctx context.Context) (map[string]bool, error) {
	rows, err := l.db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	done := make(map[string]bool)
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		done[v] = true
	}
	return done, rows.Err()
}

func (l sqliteLedger) exec(ctx context.Context, stmt string) error {
	_, err := l.db.ExecContext(ctx, stmt)
	return err
}

func (l sqliteLedger) record(ctx context.Context, version string) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO schema_migrations (version, applied_at) VALUES (?, ?)`,
		version, time.Now().UnixMilli())
	return err
}
