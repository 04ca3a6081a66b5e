package clickhouse

import (
	"context"
	"fmt"
	"time"

	"pumpguard/internal/domain"
	"pumpguard/internal/storage"
)

// MovementStore implements storage.MovementStore using ClickHouse.
type MovementStore struct {
	conn *Conn
}

// NewMovementStore creates a new MovementStore.
func NewMovementStore(conn *Conn) *MovementStore {
	return &MovementStore{conn: conn}
}

var _ storage.MovementStore = (*MovementStore)(nil)

// SaveMovement appends a movement. Returns ErrDuplicateKey if the
// (signature, wallet, direction) row is already present.
func (s *MovementStore) SaveMovement(ctx context.Context, m *domain.Movement) (err error) {
	defer observe("save_movement", time.Now(), &err)

	if m == nil || m.Signature == "" || m.Mint == "" {
		return storage.ErrInvalidInput
	}
	return s.InsertBulk(ctx, []*domain.Movement{m})
}

// InsertBulk appends movements in one batch. Fails the entire batch on any duplicate.
func (s *MovementStore) InsertBulk(ctx context.Context, moves []*domain.Movement) error {
	if len(moves) == 0 {
		return nil
	}

	type key struct {
		signature, wallet string
		direction         domain.Direction
	}
	seen := make(map[key]struct{}, len(moves))
	for _, m := range moves {
		k := key{m.Signature, m.Wallet, m.Direction}
		if _, dup := seen[k]; dup {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}

		exists, err := s.exists(ctx, m)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO movements (signature, wallet, direction, mint, amount_native, amount_token, observed_at)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}
	for _, m := range moves {
		if err := batch.Append(
			m.Signature, m.Wallet, string(m.Direction), m.Mint, m.AmountNative, m.AmountToken, m.ObservedAt,
		); err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByMint returns every movement of mint ordered by observation time ASC.
func (s *MovementStore) GetByMint(ctx context.Context, mint string) (_ []*domain.Movement, err error) {
	defer observe("movements_by_mint", time.Now(), &err)

	rows, err := s.conn.Query(ctx, `
		SELECT signature, wallet, direction, mint, amount_native, amount_token, observed_at
		FROM movements FINAL
		WHERE mint = ?
		ORDER BY observed_at ASC, signature ASC
	`, mint)
	if err != nil {
		return nil, fmt.Errorf("query movements by mint: %w", err)
	}
	defer rows.Close()

	return scanMovements(rows)
}

func (s *MovementStore) exists(ctx context.Context, m *domain.Movement) (bool, error) {
	var count uint64
	err := s.conn.QueryRow(ctx, `
		SELECT count(*) FROM movements
		WHERE signature = ? AND wallet = ? AND direction = ?
	`, m.Signature, m.Wallet, string(m.Direction)).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func scanMovements(rows chRows) ([]*domain.Movement, error) {
	var moves []*domain.Movement
	for rows.Next() {
		var m domain.Movement
		var direction string
		if err := rows.Scan(&m.Signature, &m.Wallet, &direction, &m.Mint, &m.AmountNative, &m.AmountToken, &m.ObservedAt); err != nil {
			return nil, fmt.Errorf("scan movement: %w", err)
		}
		m.Direction = domain.Direction(direction)
		moves = append(moves, &m)
	}
	return moves, rows.Err()
}
