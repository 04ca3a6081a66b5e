package storage

import (
	"context"

	"pumpguard/internal/domain"
)

// TokenStore provides access to tokens storage.
type TokenStore interface {
	// SaveToken inserts a detected token. Returns ErrDuplicateKey if the mint exists.
	SaveToken(ctx context.Context, t *domain.TokenRecord) error

	// GetToken retrieves a token by mint. Returns ErrNotFound if not exists.
	GetToken(ctx context.Context, mint string) (*domain.TokenRecord, error)

	// RecentTokens returns up to limit tokens, newest CreatedAt first.
	RecentTokens(ctx context.Context, limit int) ([]*domain.TokenRecord, error)

	// MarkRugged flags a token as rugged. The first reason wins; repeated calls are no-ops.
	// Returns ErrNotFound if the mint was never saved.
	MarkRugged(ctx context.Context, mint, reason string, at int64) error
}

// MovementStore provides access to movements storage.
type MovementStore interface {
	// SaveMovement appends a movement. Returns ErrDuplicateKey if
	// (signature, wallet, direction) exists.
	SaveMovement(ctx context.Context, m *domain.Movement) error

	// GetByMint retrieves all movements for a mint, ordered by observed_at ASC.
	GetByMint(ctx context.Context, mint string) ([]*domain.Movement, error)
}

// WalletStore provides access to wallets storage.
type WalletStore interface {
	// SaveWallet upserts a wallet. IsWhale is never cleared by an update.
	SaveWallet(ctx context.Context, w *domain.MonitoredWallet) error

	// GetWhales returns every wallet flagged as whale, highest volume first.
	GetWhales(ctx context.Context) ([]*domain.MonitoredWallet, error)
}

// AlertStore provides access to alerts storage.
type AlertStore interface {
	// SaveAlert appends an alert. Returns ErrDuplicateKey if the id exists.
	SaveAlert(ctx context.Context, a *domain.Alert) error

	// Recent returns up to limit alerts, newest first.
	Recent(ctx context.Context, limit int) ([]*domain.Alert, error)
}

// LiquidityProbeStore provides access to liquidity probe history.
type LiquidityProbeStore interface {
	// InsertProbe appends a probe. Returns ErrDuplicateKey if (mint, observed_at) exists.
	InsertProbe(ctx context.Context, p *domain.LiquidityProbe) error

	// GetByMint retrieves all probes for a mint, ordered by observed_at ASC.
	GetByMint(ctx context.Context, mint string) ([]*domain.LiquidityProbe, error)
}

// Stores bundles the backends the engine writes to.
type Stores struct {
	Tokens    TokenStore
	Movements MovementStore
	Wallets   WalletStore
	Alerts    AlertStore
	Probes    LiquidityProbeStore

	// Close releases backend connections. May be nil.
	Close func()
}
