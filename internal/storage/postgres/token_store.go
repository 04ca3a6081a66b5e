package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"pumpguard/internal/domain"
	"pumpguard/internal/storage"
)

// TokenStore implements storage.TokenStore using PostgreSQL.
type TokenStore struct {
	pool *Pool
}

// NewTokenStore creates a new TokenStore.
func NewTokenStore(pool *Pool) *TokenStore {
	return &TokenStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TokenStore = (*TokenStore)(nil)

const tokenColumns = `mint, name, symbol, creator, signature, initial_liquidity, total_supply,
	created_at, is_rugged, rug_reason, rugged_at`

// SaveToken inserts a detected token. Returns ErrDuplicateKey if the mint exists.
func (s *TokenStore) SaveToken(ctx context.Context, t *domain.TokenRecord) (err error) {
	defer observe("save_token", time.Now(), &err)

	if t == nil || t.Mint == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO tokens (` + tokenColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err = s.pool.Exec(ctx, query,
		t.Mint,
		t.Name,
		t.Symbol,
		t.Creator,
		t.Signature,
		t.InitialLiquidity,
		t.TotalSupply,
		t.CreatedAt,
		t.IsRugged,
		t.RugReason,
		t.RuggedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert token: %w", err)
	}
	return nil
}

// GetToken retrieves a token by mint. Returns ErrNotFound if not exists.
func (s *TokenStore) GetToken(ctx context.Context, mint string) (_ *domain.TokenRecord, err error) {
	defer observe("get_token", time.Now(), &err)

	query := `SELECT ` + tokenColumns + ` FROM tokens WHERE mint = $1`

	t, err := scanToken(s.pool.QueryRow(ctx, query, mint))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get token: %w", err)
	}
	return t, nil
}

// RecentTokens returns up to limit tokens, newest first.
func (s *TokenStore) RecentTokens(ctx context.Context, limit int) (_ []*domain.TokenRecord, err error) {
	defer observe("recent_tokens", time.Now(), &err)

	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT ` + tokenColumns + `
		FROM tokens
		ORDER BY created_at DESC, mint ASC
		LIMIT $1
	`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent tokens: %w", err)
	}
	defer rows.Close()

	var tokens []*domain.TokenRecord
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, fmt.Errorf("scan token row: %w", err)
		}
		tokens = append(tokens, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate token rows: %w", err)
	}
	return tokens, nil
}

// MarkRugged flags a token as rugged; the first reason is kept.
func (s *TokenStore) MarkRugged(ctx context.Context, mint, reason string, at int64) (err error) {
	defer observe("mark_rugged", time.Now(), &err)

	query := `
		UPDATE tokens
		SET is_rugged = TRUE, rug_reason = $2, rugged_at = $3
		WHERE mint = $1 AND NOT is_rugged
	`

	tag, err := s.pool.Exec(ctx, query, mint, reason, at)
	if err != nil {
		return fmt.Errorf("mark rugged: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	// nothing updated: either already rugged or unknown
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM tokens WHERE mint = $1)`, mint).Scan(&exists); err != nil {
		return fmt.Errorf("check token exists: %w", err)
	}
	if !exists {
		return storage.ErrNotFound
	}
	return nil
}

func scanToken(row pgx.Row) (*domain.TokenRecord, error) {
	var t domain.TokenRecord
	err := row.Scan(
		&t.Mint,
		&t.Name,
		&t.Symbol,
		&t.Creator,
		&t.Signature,
		&t.InitialLiquidity,
		&t.TotalSupply,
		&t.CreatedAt,
		&t.IsRugged,
		&t.RugReason,
		&t.RuggedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
