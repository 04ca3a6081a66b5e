package postgres

import (
	"context"
	"fmt"
	"time"

	"pumpguard/internal/domain"
	"pumpguard/internal/storage"
)

// LiquidityProbeStore implements storage.LiquidityProbeStore using PostgreSQL.
type LiquidityProbeStore struct {
	pool *Pool
}

// NewLiquidityProbeStore creates a new LiquidityProbeStore.
func NewLiquidityProbeStore(pool *Pool) *LiquidityProbeStore {
	return &LiquidityProbeStore{pool: pool}
}

// Compile-time interface check.
var _ storage.LiquidityProbeStore = (*LiquidityProbeStore)(nil)

// InsertProbe appends a probe. Returns ErrDuplicateKey if (mint, observed_at) exists.
func (s *LiquidityProbeStore) InsertProbe(ctx context.Context, p *domain.LiquidityProbe) (err error) {
	defer observe("insert_probe", time.Now(), &err)

	if p == nil || p.Mint == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO liquidity_probes (mint, account, balance_sol, previous_sol, drop_percent, observed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err = s.pool.Exec(ctx, query, p.Mint, p.Account, p.BalanceSOL, p.PreviousSOL, p.DropPercent, p.ObservedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert liquidity probe: %w", err)
	}
	return nil
}

// GetByMint retrieves all probes for a mint, ordered by observed_at ASC.
func (s *LiquidityProbeStore) GetByMint(ctx context.Context, mint string) (_ []*domain.LiquidityProbe, err error) {
	defer observe("probes_by_mint", time.Now(), &err)

	query := `
		SELECT mint, account, balance_sol, previous_sol, drop_percent, observed_at
		FROM liquidity_probes
		WHERE mint = $1
		ORDER BY observed_at ASC
	`

	rows, err := s.pool.Query(ctx, query, mint)
	if err != nil {
		return nil, fmt.Errorf("get probes by mint: %w", err)
	}
	defer rows.Close()

	var probes []*domain.LiquidityProbe
	for rows.Next() {
		var p domain.LiquidityProbe
		if err := rows.Scan(&p.Mint, &p.Account, &p.BalanceSOL, &p.PreviousSOL, &p.DropPercent, &p.ObservedAt); err != nil {
			return nil, fmt.Errorf("scan probe row: %w", err)
		}
		probes = append(probes, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate probe rows: %w", err)
	}
	return probes, nil
}
