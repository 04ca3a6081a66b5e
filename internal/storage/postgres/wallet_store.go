package postgres

import (
	"context"
	"fmt"
	"time"

	"pumpguard/internal/domain"
	"pumpguard/internal/storage"
)

// WalletStore implements storage.WalletStore using PostgreSQL.
type WalletStore struct {
	pool *Pool
}

// NewWalletStore creates a new WalletStore.
func NewWalletStore(pool *Pool) *WalletStore {
	return &WalletStore{pool: pool}
}

// Compile-time interface check.
var _ storage.WalletStore = (*WalletStore)(nil)

// SaveWallet upserts a wallet. is_whale and first_seen never regress.
func (s *WalletStore) SaveWallet(ctx context.Context, w *domain.MonitoredWallet) (err error) {
	defer observe("save_wallet", time.Now(), &err)

	if w == nil || w.Address == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO wallets (address, label, total_volume, is_whale, first_seen, last_activity)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (address) DO UPDATE SET
			label         = EXCLUDED.label,
			total_volume  = EXCLUDED.total_volume,
			is_whale      = wallets.is_whale OR EXCLUDED.is_whale,
			first_seen    = LEAST(wallets.first_seen, EXCLUDED.first_seen),
			last_activity = GREATEST(wallets.last_activity, EXCLUDED.last_activity)
	`

	_, err = s.pool.Exec(ctx, query,
		w.Address,
		w.Label,
		w.TotalVolume,
		w.IsWhale,
		w.FirstSeen,
		w.LastActivity,
	)
	if err != nil {
		return fmt.Errorf("upsert wallet: %w", err)
	}
	return nil
}

// GetWhales returns every whale, highest volume first.
func (s *WalletStore) GetWhales(ctx context.Context) (_ []*domain.MonitoredWallet, err error) {
	defer observe("get_whales", time.Now(), &err)

	query := `
		SELECT address, label, total_volume, is_whale, first_seen, last_activity
		FROM wallets
		WHERE is_whale
		ORDER BY total_volume DESC, address ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get whales: %w", err)
	}
	defer rows.Close()

	var wallets []*domain.MonitoredWallet
	for rows.Next() {
		var w domain.MonitoredWallet
		if err := rows.Scan(&w.Address, &w.Label, &w.TotalVolume, &w.IsWhale, &w.FirstSeen, &w.LastActivity); err != nil {
			return nil, fmt.Errorf("scan wallet row: %w", err)
		}
		wallets = append(wallets, &w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate wallet rows: %w", err)
	}
	return wallets, nil
}
