package memory

import (
	"context"
	"errors"
	"testing"

	"pumpguard/internal/domain"
	"pumpguard/internal/storage"
)

func TestTokenStore_SaveAndGet(t *testing.T) {
	store := NewTokenStore()
	ctx := context.Background()

	tok := &domain.TokenRecord{
		Mint:             "mint1",
		Name:             "Moon",
		Symbol:           "MOON",
		Creator:          "dev1",
		InitialLiquidity: 2.5,
		TotalSupply:      domain.DefaultTotalSupply,
		CreatedAt:        1704067200000,
	}
	if err := store.SaveToken(ctx, tok); err != nil {
		t.Fatalf("SaveToken failed: %v", err)
	}

	got, err := store.GetToken(ctx, "mint1")
	if err != nil {
		t.Fatalf("GetToken failed: %v", err)
	}
	if got.Symbol != "MOON" || got.InitialLiquidity != 2.5 {
		t.Errorf("unexpected token: %+v", got)
	}

	if err := store.SaveToken(ctx, tok); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
	if _, err := store.GetToken(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if err := store.SaveToken(ctx, &domain.TokenRecord{}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}

func TestTokenStore_RecentTokensNewestFirst(t *testing.T) {
	store := NewTokenStore()
	ctx := context.Background()

	for i, ts := range []int64{3000, 1000, 2000} {
		mint := string(rune('a' + i))
		if err := store.SaveToken(ctx, &domain.TokenRecord{Mint: mint, CreatedAt: ts}); err != nil {
			t.Fatalf("SaveToken failed: %v", err)
		}
	}

	result, err := store.RecentTokens(ctx, 2)
	if err != nil {
		t.Fatalf("RecentTokens failed: %v", err)
	}
	if len(result) != 2 {
		t.Fatalf("Expected 2 tokens, got %d", len(result))
	}
	if result[0].CreatedAt != 3000 || result[1].CreatedAt != 2000 {
		t.Errorf("Not newest first: %d, %d", result[0].CreatedAt, result[1].CreatedAt)
	}
}

func TestTokenStore_MarkRuggedKeepsFirstReason(t *testing.T) {
	store := NewTokenStore()
	ctx := context.Background()

	if err := store.SaveToken(ctx, &domain.TokenRecord{Mint: "m"}); err != nil {
		t.Fatalf("SaveToken failed: %v", err)
	}
	if err := store.MarkRugged(ctx, "m", "first", 10); err != nil {
		t.Fatalf("MarkRugged failed: %v", err)
	}
	if err := store.MarkRugged(ctx, "m", "second", 20); err != nil {
		t.Fatalf("MarkRugged (repeat) failed: %v", err)
	}

	got, _ := store.GetToken(ctx, "m")
	if !got.IsRugged || got.RugReason != "first" || got.RuggedAt == nil || *got.RuggedAt != 10 {
		t.Errorf("unexpected rug state: %+v", got)
	}

	if err := store.MarkRugged(ctx, "missing", "x", 1); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestMovementStore_DuplicateAndOrder(t *testing.T) {
	store := NewMovementStore()
	ctx := context.Background()

	moves := []*domain.Movement{
		{Signature: "s2", Wallet: "w", Mint: "m", Direction: domain.DirectionSell, ObservedAt: 2000},
		{Signature: "s1", Wallet: "w", Mint: "m", Direction: domain.DirectionBuy, ObservedAt: 1000},
		{Signature: "s3", Wallet: "w", Mint: "other", Direction: domain.DirectionBuy, ObservedAt: 1500},
	}
	for _, m := range moves {
		if err := store.SaveMovement(ctx, m); err != nil {
			t.Fatalf("SaveMovement failed: %v", err)
		}
	}

	if err := store.SaveMovement(ctx, moves[0]); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}

	// same signature, other direction is a distinct movement
	sameSig := *moves[0]
	sameSig.Direction = domain.DirectionBuy
	if err := store.SaveMovement(ctx, &sameSig); err != nil {
		t.Errorf("SaveMovement other direction failed: %v", err)
	}

	result, err := store.GetByMint(ctx, "m")
	if err != nil {
		t.Fatalf("GetByMint failed: %v", err)
	}
	if len(result) != 3 {
		t.Fatalf("Expected 3 movements, got %d", len(result))
	}
	for i := 1; i < len(result); i++ {
		if result[i].ObservedAt < result[i-1].ObservedAt {
			t.Errorf("Results not ordered: %d < %d", result[i].ObservedAt, result[i-1].ObservedAt)
		}
	}
}

func TestWalletStore_UpsertNeverClearsWhale(t *testing.T) {
	store := NewWalletStore()
	ctx := context.Background()

	if err := store.SaveWallet(ctx, &domain.MonitoredWallet{Address: "w1", IsWhale: true, TotalVolume: 60, FirstSeen: 100}); err != nil {
		t.Fatalf("SaveWallet failed: %v", err)
	}
	if err := store.SaveWallet(ctx, &domain.MonitoredWallet{Address: "w1", IsWhale: false, TotalVolume: 80, FirstSeen: 200}); err != nil {
		t.Fatalf("SaveWallet update failed: %v", err)
	}
	if err := store.SaveWallet(ctx, &domain.MonitoredWallet{Address: "w2", IsWhale: true, TotalVolume: 500}); err != nil {
		t.Fatalf("SaveWallet failed: %v", err)
	}
	if err := store.SaveWallet(ctx, &domain.MonitoredWallet{Address: "w3", TotalVolume: 1}); err != nil {
		t.Fatalf("SaveWallet failed: %v", err)
	}

	whales, err := store.GetWhales(ctx)
	if err != nil {
		t.Fatalf("GetWhales failed: %v", err)
	}
	if len(whales) != 2 {
		t.Fatalf("Expected 2 whales, got %d", len(whales))
	}
	if whales[0].Address != "w2" {
		t.Errorf("Expected highest volume first, got %s", whales[0].Address)
	}
	if whales[1].TotalVolume != 80 || whales[1].FirstSeen != 100 {
		t.Errorf("unexpected upsert result: %+v", whales[1])
	}
}

func TestAlertStore_RecentNewestFirst(t *testing.T) {
	store := NewAlertStore()
	ctx := context.Background()

	for id := uint64(1); id <= 5; id++ {
		if err := store.SaveAlert(ctx, &domain.Alert{ID: id, Kind: domain.AlertRug}); err != nil {
			t.Fatalf("SaveAlert failed: %v", err)
		}
	}
	if err := store.SaveAlert(ctx, &domain.Alert{ID: 3}); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
	if err := store.SaveAlert(ctx, &domain.Alert{}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}

	result, _ := store.Recent(ctx, 3)
	if len(result) != 3 || result[0].ID != 5 || result[2].ID != 3 {
		t.Errorf("unexpected recent alerts: %+v", result)
	}
}

func TestLiquidityProbeStore(t *testing.T) {
	store := NewLiquidityProbeStore()
	ctx := context.Background()

	probes := []*domain.LiquidityProbe{
		{Mint: "m", BalanceSOL: 10, ObservedAt: 2000},
		{Mint: "m", BalanceSOL: 20, ObservedAt: 1000},
	}
	for _, p := range probes {
		if err := store.InsertProbe(ctx, p); err != nil {
			t.Fatalf("InsertProbe failed: %v", err)
		}
	}
	if err := store.InsertProbe(ctx, probes[0]); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}

	result, _ := store.GetByMint(ctx, "m")
	if len(result) != 2 || result[0].ObservedAt != 1000 {
		t.Errorf("unexpected probes: %+v", result)
	}
}
