package migrations

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	chstore "pumpguard/internal/storage/clickhouse"
)

// RunClickhouseMigrations creates the DSN's database if needed, applies every
// embedded ClickHouse file not yet recorded and returns a connection to it.
func RunClickhouseMigrations(ctx context.Context, dsn string) (*chstore.Conn, error) {
	dbName, err := databaseFromDSN(dsn)
	if err != nil {
		return nil, err
	}
	// the driver has no multi-statement Exec
	migs, err := load(ClickhouseFS, "clickhouse", true)
	if err != nil {
		return nil, err
	}

	adminConn, err := chstore.NewConnWithDatabase(ctx, dsn, "")
	if err != nil {
		return nil, fmt.Errorf("connect clickhouse admin: %w", err)
	}
	if err := adminConn.Exec(ctx, fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", dbName)); err != nil {
		adminConn.Close()
		return nil, fmt.Errorf("create database %s: %w", dbName, err)
	}
	if err := adminConn.Close(); err != nil {
		return nil, fmt.Errorf("close admin connection: %w", err)
	}

	conn, err := chstore.NewConnWithDatabase(ctx, dsn, dbName)
	if err != nil {
		return nil, fmt.Errorf("connect clickhouse db: %w", err)
	}
	if _, err := apply(ctx, chLedger{conn}, migs); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

type chLedger struct {
	conn *chstore.Conn
}

func (l chLedger) ensure(ctx context.Context) error {
	return l.conn.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version    String,
		applied_at DateTime64(3) DEFAULT now64(3)
	) ENGINE = ReplacingMergeTree ORDER BY version`)
}

func (l chLedger) applied(ctx context.Context) (map[string]bool, error) {
	rows, err := l.conn.Query(ctx, `SELECT version FROM schema_migrations`)
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

func (l chLedger) exec(ctx context.Context, stmt string) error {
	return l.conn.Exec(ctx, stmt)
}

func (l chLedger) record(ctx context.Context, version string) error {
	return l.conn.Exec(ctx, `INSERT INTO schema_migrations (version) VALUES (?)`, version)
}

func databaseFromDSN(dsn string) (string, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("parse clickhouse dsn: %w", err)
	}
	db := strings.TrimPrefix(u.Path, "/")
	if db == "" {
		return "", fmt.Errorf("clickhouse dsn missing database")
	}
	return db, nil
}
