package postgres

import (
	"context"
	"fmt"
	"time"

	"pumpguard/internal/domain"
	"pumpguard/internal/storage"
)

// MovementStore implements storage.MovementStore using PostgreSQL.
type MovementStore struct {
	pool *Pool
}

// NewMovementStore creates a new MovementStore.
func NewMovementStore(pool *Pool) *MovementStore {
	return &MovementStore{pool: pool}
}

// Compile-time interface check.
var _ storage.MovementStore = (*MovementStore)(nil)

// SaveMovement appends a movement. Returns ErrDuplicateKey if it was saved before.
func (s *MovementStore) SaveMovement(ctx context.Context, m *domain.Movement) (err error) {
	defer observe("save_movement", time.Now(), &err)

	if m == nil || m.Signature == "" || m.Mint == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO movements (
			signature, wallet, direction, mint, amount_native, amount_token, observed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err = s.pool.Exec(ctx, query,
		m.Signature,
		m.Wallet,
		string(m.Direction),
		m.Mint,
		m.AmountNative,
		m.AmountToken,
		m.ObservedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert movement: %w", err)
	}
	return nil
}

// GetByMint retrieves all movements for a mint, ordered by observed_at ASC.
func (s *MovementStore) GetByMint(ctx context.Context, mint string) (_ []*domain.Movement, err error) {
	defer observe("movements_by_mint", time.Now(), &err)

	query := `
		SELECT signature, wallet, direction, mint, amount_native, amount_token, observed_at
		FROM movements
		WHERE mint = $1
		ORDER BY observed_at ASC, signature ASC
	`

	rows, err := s.pool.Query(ctx, query, mint)
	if err != nil {
		return nil, fmt.Errorf("get movements by mint: %w", err)
	}
	defer rows.Close()

	var moves []*domain.Movement
	for rows.Next() {
		var m domain.Movement
		var direction string
		if err := rows.Scan(
			&m.Signature,
			&m.Wallet,
			&direction,
			&m.Mint,
			&m.AmountNative,
			&m.AmountToken,
			&m.ObservedAt,
		); err != nil {
			return nil, fmt.Errorf("scan movement row: %w", err)
		}
		m.Direction = domain.Direction(direction)
		moves = append(moves, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate movement rows: %w", err)
	}
	return moves, nil
}
