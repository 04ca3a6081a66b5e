package clickhouse

import (
	"context"
	"fmt"
	"time"

	"pumpguard/internal/domain"
	"pumpguard/internal/storage"
)

// LiquidityProbeStore implements storage.LiquidityProbeStore using ClickHouse.
type LiquidityProbeStore struct {
	conn *Conn
}

// NewLiquidityProbeStore creates a new LiquidityProbeStore.
func NewLiquidityProbeStore(conn *Conn) *LiquidityProbeStore {
	return &LiquidityProbeStore{conn: conn}
}

var _ storage.LiquidityProbeStore = (*LiquidityProbeStore)(nil)

// InsertProbe appends a probe. Returns ErrDuplicateKey if (mint, observed_at) exists.
func (s *LiquidityProbeStore) InsertProbe(ctx context.Context, p *domain.LiquidityProbe) (err error) {
	defer observe("insert_probe", time.Now(), &err)

	if p == nil || p.Mint == "" {
		return storage.ErrInvalidInput
	}

	var count uint64
	err = s.conn.QueryRow(ctx, `
		SELECT count(*) FROM liquidity_probes WHERE mint = ? AND observed_at = ?
	`, p.Mint, p.ObservedAt).Scan(&count)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if count > 0 {
		return storage.ErrDuplicateKey
	}

	err = s.conn.Exec(ctx, `
		INSERT INTO liquidity_probes (mint, account, balance_sol, previous_sol, drop_percent, observed_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, p.Mint, p.Account, p.BalanceSOL, p.PreviousSOL, p.DropPercent, p.ObservedAt)
	if err != nil {
		return fmt.Errorf("insert liquidity probe: %w", err)
	}
	return nil
}

// GetByMint returns all probes of mint ordered by observation time ASC.
func (s *LiquidityProbeStore) GetByMint(ctx context.Context, mint string) (_ []*domain.LiquidityProbe, err error) {
	defer observe("probes_by_mint", time.Now(), &err)

	rows, err := s.conn.Query(ctx, `
		SELECT mint, account, balance_sol, previous_sol, drop_percent, observed_at
		FROM liquidity_probes FINAL
		WHERE mint = ?
		ORDER BY observed_at ASC
	`, mint)
	if err != nil {
		return nil, fmt.Errorf("query probes by mint: %w", err)
	}
	defer rows.Close()

	var probes []*domain.LiquidityProbe
	for rows.Next() {
		var p domain.LiquidityProbe
		if err := rows.Scan(&p.Mint, &p.Account, &p.BalanceSOL, &p.PreviousSOL, &p.DropPercent, &p.ObservedAt); err != nil {
			return nil, fmt.Errorf("scan probe: %w", err)
		}
		probes = append(probes, &p)
	}
	return probes, rows.Err()
}
