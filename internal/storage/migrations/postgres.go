package migrations

import (
	"context"

	"github.com/jackc/pgx/v5"

	"pumpguard/internal/storage/postgres"
)

// RunPostgresMigrations applies every embedded PostgreSQL file not yet recorded.
// Each file runs as one multi-statement Exec.
func RunPostgresMigrations(ctx context.Context, pool *postgres.Pool) error {
	migs, err := load(PostgresFS, "postgres", false)
	if err != nil {
		return err
	}
	_, err = apply(ctx, pgLedger{pool}, migs)
	return err
}

type pgLedger struct {
	pool *postgres.Pool
}

func (l pgLedger) ensure(ctx context.Context) error {
	_, err := l.pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version    TEXT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`)
	return err
}

func (l pgLedger) applied(ctx context.Context) (map[string]bool, error) {
	rows, err := l.pool.Query(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	versions, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}
	done := make(map[string]bool, len(versions))
	for _, v := range versions {
		done[v] = true
	}
	return done, nil
}

func (l pgLedger) exec(ctx context.Context, stmt string) error {
	_, err := l.pool.Exec(ctx, stmt)
	return err
}

func (l pgLedger) record(ctx context.Context, version string) error {
	_, err := l.pool.Exec(ctx, `INSERT INTO schema_migrations (version) VALUES ($1) ON CONFLICT DO NOTHING`, version)
	return err
}
