package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"pumpguard/internal/config"
	"pumpguard/internal/storage"
	chstore "pumpguard/internal/storage/clickhouse"
	"pumpguard/internal/storage/memory"
	"pumpguard/internal/storage/migrations"
	pgstore "pumpguard/internal/storage/postgres"
	"pumpguard/internal/storage/sqlite"
)

// openStores opens the configured backend and applies its migrations.
// With a ClickHouse DSN, movements and liquidity probes go to ClickHouse instead.
// The returned Stores always has a non-nil Close.
func openStores(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (storage.Stores, error) {
	var stores storage.Stores

	switch cfg.StorageBackend {
	case config.BackendMemory:
		stores = memory.NewStores()

	case config.BackendSQLite:
		db, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return storage.Stores{}, err
		}
		if err := migrations.RunSqliteMigrations(ctx, db); err != nil {
			db.Close()
			return storage.Stores{}, fmt.Errorf("sqlite migrations: %w", err)
		}
		stores = sqlite.NewStores(db)

	case config.BackendPostgres:
		pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return storage.Stores{}, err
		}
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			pool.Close()
			return storage.Stores{}, fmt.Errorf("postgres migrations: %w", err)
		}
		stores = pgstore.NewStores(pool)

	default:
		return storage.Stores{}, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}

	if stores.Close == nil {
		stores.Close = func() {}
	}

	if cfg.ClickHouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickHouseDSN)
		if err != nil {
			stores.Close()
			return storage.Stores{}, fmt.Errorf("clickhouse migrations: %w", err)
		}
		stores.Movements = chstore.NewMovementStore(conn)
		stores.Probes = chstore.NewLiquidityProbeStore(conn)

		closeBase := stores.Close
		stores.Close = func() {
			if err := conn.Close(); err != nil {
				logger.Warn().Err(err).Msg("close clickhouse")
			}
			closeBase()
		}
	}

	logger.Info().
		Str("backend", cfg.StorageBackend).
		Bool("clickhouse", cfg.ClickHouseDSN != "").
		Msg("storage ready")
	return stores, nil
}
