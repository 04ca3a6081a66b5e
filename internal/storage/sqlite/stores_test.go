package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pumpguard/internal/domain"
	"pumpguard/internal/storage"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	ctx := context.Background()

	db, err := Open(ctx, filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	schema, err := os.ReadFile(filepath.Join("..", "migrations", "sqlite", "001_init.sql"))
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, string(schema))
	require.NoError(t, err)
	return db
}

func TestTokenStore(t *testing.T) {
	ctx := context.Background()
	stores := NewStores(setupTestDB(t))

	tok := &domain.TokenRecord{
		Mint:             "MintA",
		Name:             "Alpha",
		Symbol:           "ALP",
		Creator:          "DevA",
		Signature:        "SigA",
		InitialLiquidity: 3.25,
		TotalSupply:      domain.DefaultTotalSupply,
		CreatedAt:        1700000000000,
	}
	require.NoError(t, stores.Tokens.SaveToken(ctx, tok))
	assert.ErrorIs(t, stores.Tokens.SaveToken(ctx, tok), storage.ErrDuplicateKey)
	assert.ErrorIs(t, stores.Tokens.SaveToken(ctx, &domain.TokenRecord{}), storage.ErrInvalidInput)

	got, err := stores.Tokens.GetToken(ctx, "MintA")
	require.NoError(t, err)
	assert.Equal(t, "ALP", got.Symbol)
	assert.Equal(t, 3.25, got.InitialLiquidity)
	assert.False(t, got.IsRugged)
	assert.Nil(t, got.RuggedAt)

	_, err = stores.Tokens.GetToken(ctx, "nope")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, stores.Tokens.MarkRugged(ctx, "MintA", "LP removed", 100))
	require.NoError(t, stores.Tokens.MarkRugged(ctx, "MintA", "later", 200))
	got, err = stores.Tokens.GetToken(ctx, "MintA")
	require.NoError(t, err)
	assert.True(t, got.IsRugged)
	assert.Equal(t, "LP removed", got.RugReason)
	require.NotNil(t, got.RuggedAt)
	assert.Equal(t, int64(100), *got.RuggedAt)
	assert.ErrorIs(t, stores.Tokens.MarkRugged(ctx, "ghost", "x", 1), storage.ErrNotFound)

	require.NoError(t, stores.Tokens.SaveToken(ctx, &domain.TokenRecord{Mint: "MintB", CreatedAt: 1800000000000}))
	recent, err := stores.Tokens.RecentTokens(ctx, 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "MintB", recent[0].Mint)
}

func TestMovementStore(t *testing.T) {
	ctx := context.Background()
	stores := NewStores(setupTestDB(t))

	m := &domain.Movement{Signature: "s2", Wallet: "w", Mint: "m", Direction: domain.DirectionSell, AmountNative: 1.5, ObservedAt: 2000}
	require.NoError(t, stores.Movements.SaveMovement(ctx, m))
	assert.ErrorIs(t, stores.Movements.SaveMovement(ctx, m), storage.ErrDuplicateKey)

	other := *m
	other.Direction = domain.DirectionBuy
	other.ObservedAt = 1000
	require.NoError(t, stores.Movements.SaveMovement(ctx, &other))

	got, err := stores.Movements.GetByMint(ctx, "m")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, domain.DirectionBuy, got[0].Direction)
	assert.Equal(t, 1.5, got[1].AmountNative)
}

func TestWalletStore_KeepsWhaleFlag(t *testing.T) {
	ctx := context.Background()
	stores := NewStores(setupTestDB(t))

	require.NoError(t, stores.Wallets.SaveWallet(ctx, &domain.MonitoredWallet{
		Address: "Whale1", IsWhale: true, TotalVolume: 75, FirstSeen: 10, LastActivity: 20,
	}))
	require.NoError(t, stores.Wallets.SaveWallet(ctx, &domain.MonitoredWallet{
		Address: "Whale1", Label: "known", TotalVolume: 90, FirstSeen: 30, LastActivity: 40,
	}))
	require.NoError(t, stores.Wallets.SaveWallet(ctx, &domain.MonitoredWallet{
		Address: "Minnow", TotalVolume: 1, FirstSeen: 1, LastActivity: 1,
	}))

	whales, err := stores.Wallets.GetWhales(ctx)
	require.NoError(t, err)
	require.Len(t, whales, 1)
	assert.Equal(t, "known", whales[0].Label)
	assert.Equal(t, 90.0, whales[0].TotalVolume)
	assert.Equal(t, int64(10), whales[0].FirstSeen)
	assert.Equal(t, int64(40), whales[0].LastActivity)
}

func TestAlertStore(t *testing.T) {
	ctx := context.Background()
	stores := NewStores(setupTestDB(t))

	for id := uint64(1); id <= 3; id++ {
		require.NoError(t, stores.Alerts.SaveAlert(ctx, &domain.Alert{
			ID:        id,
			Kind:      domain.AlertWhaleBuy,
			Signal:    domain.SignalWhale,
			Severity:  domain.SeverityMedium,
			Title:     "Whale ACCUMULATING",
			Wallet:    "W",
			Payload:   map[string]interface{}{"amount_sol": 75.5},
			CreatedAt: int64(id),
		}))
	}
	assert.ErrorIs(t, stores.Alerts.SaveAlert(ctx, &domain.Alert{ID: 1}), storage.ErrDuplicateKey)

	recent, err := stores.Alerts.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, uint64(3), recent[0].ID)
	assert.Equal(t, domain.AlertWhaleBuy, recent[0].Kind)
	assert.Equal(t, 75.5, recent[0].Payload["amount_sol"])
}

func TestLiquidityProbeStore(t *testing.T) {
	ctx := context.Background()
	stores := NewStores(setupTestDB(t))

	p := &domain.LiquidityProbe{Mint: "m", Account: "curve", BalanceSOL: 4, PreviousSOL: 10, DropPercent: 60, ObservedAt: 500}
	require.NoError(t, stores.Probes.InsertProbe(ctx, p))
	assert.ErrorIs(t, stores.Probes.InsertProbe(ctx, p), storage.ErrDuplicateKey)

	got, err := stores.Probes.GetByMint(ctx, "m")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 60.0, got[0].DropPercent)
}
