// Package sqlite provides an embedded single-file storage backend.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"pumpguard/internal/observability"
	"pumpguard/internal/storage"
)

// DB wraps a sqlite database handle.
type DB struct {
	*sql.DB
}

// Open opens (or creates) the database file in WAL mode.
func Open(ctx context.Context, path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one writer; WAL readers do not block it
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return &DB{DB: db}, nil
}

// NewStores returns every store backed by db.
func NewStores(db *DB) storage.Stores {
	return storage.Stores{
		Tokens:    &TokenStore{db: db},
		Movements: &MovementStore{db: db},
		Wallets:   &WalletStore{db: db},
		Alerts:    &AlertStore{db: db},
		Probes:    &LiquidityProbeStore{db: db},
		Close:     func() { db.Close() },
	}
}

func isDuplicateKeyError(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}

func observe(operation string, start time.Time, err *error) {
	observability.RecordDBQuery("sqlite", operation, time.Since(start).Seconds(), *err)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
