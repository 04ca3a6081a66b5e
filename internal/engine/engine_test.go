package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pumpguard/internal/config"
	"pumpguard/internal/discovery"
	"pumpguard/internal/domain"
	"pumpguard/internal/solana"
	"pumpguard/internal/solana/stub"
	"pumpguard/internal/storage"
	"pumpguard/internal/storage/memory"
)

const (
	creator = "Creator11111111111111111111111111111111111"
	trader  = "Trader111111111111111111111111111111111111"
	mint    = "Mint1111111111111111111111111111111111111pump"
)

func testConfig() *config.Config {
	return &config.Config{
		RPCURL:                  "http://rpc.invalid",
		WSURL:                   "ws://rpc.invalid",
		ProgramID:               solana.PumpProgramID,
		MinLiquiditySOL:         1,
		AlertNewTokens:          true,
		WhaleThresholdSOL:       50,
		AlertOnAccumulation:     true,
		AlertOnDump:             true,
		AccumulationWindow:      time.Hour,
		MinTxForPattern:         3,
		LPRemovalPercent:        50,
		SuspiciousSellPercent:   10,
		MaxDevSellPercent:       20,
		DevSellAlert:            true,
		HealthCheckInterval:     30 * time.Second,
		PatternAnalysisInterval: time.Minute,
		StorageBackend:          config.BackendMemory,
	}
}

type harness struct {
	engine *Engine
	rpc    *stub.RPCClient
	ws     *stub.WSClient
	stores storage.Stores
}

func newHarness(t *testing.T, mutate func(*Options)) *harness {
	t.Helper()
	h := &harness{
		rpc:    stub.NewRPCClient(),
		ws:     stub.NewWSClient(),
		stores: memory.NewStores(),
	}
	nop := zerolog.Nop()
	opts := Options{
		Config:            testConfig(),
		RPC:               h.rpc,
		WS:                h.ws,
		Stores:            h.stores,
		Logger:            &nop,
		TradeSettleDelay:  time.Millisecond,
		LaunchSettleDelay: time.Millisecond,
	}
	if mutate != nil {
		mutate(&opts)
	}
	e, err := New(context.Background(), opts)
	require.NoError(t, err)
	h.engine = e
	return h
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	require.NoError(t, h.engine.Start(context.Background()))
	t.Cleanup(h.engine.Stop)
	require.Eventually(t, h.ws.Active, time.Second, 5*time.Millisecond)
}

func (h *harness) push(t *testing.T, sig string, logs ...string) {
	t.Helper()
	require.True(t, h.ws.Push(solana.LogNotification{Signature: sig, Logs: logs}))
}

// walletTx builds a transaction signed by wallet with one fee-payer lamport move
// and one token balance change for mint.
func walletTx(sig, wallet string, preLamports, postLamports uint64, preAmount, postAmount string) *solana.Transaction {
	tx := &solana.Transaction{
		Signature: sig,
		Message: &solana.TransactionMessage{AccountKeys: []solana.AccountKey{
			{Pubkey: wallet, Signer: true, Writable: true},
			{Pubkey: "Curve111", Writable: true},
		}},
		Meta: &solana.TransactionMeta{
			PreBalances:  []uint64{preLamports, 0},
			PostBalances: []uint64{postLamports, 0},
		},
	}
	if preAmount != "" {
		tx.Meta.PreTokenBalances = []solana.TokenBalance{{AccountIndex: 2, Mint: mint, Owner: wallet, Amount: preAmount, Decimals: 6}}
	}
	if postAmount != "" {
		tx.Meta.PostTokenBalances = []solana.TokenBalance{{AccountIndex: 2, Mint: mint, Owner: wallet, Amount: postAmount, Decimals: 6}}
	}
	return tx
}

// launch pushes a 3 SOL create by creator and waits until the token is watched.
func (h *harness) launch(t *testing.T) {
	t.Helper()
	h.rpc.AddTransaction(walletTx("create1", creator, 10_000_000_000, 7_000_000_000, "", "1000000000000"))
	h.push(t, "create1",
		"Program log: Instruction: Create",
		"Program log: name: Moon Cat",
		"Program log: symbol: MCAT",
	)
	require.Eventually(t, func() bool {
		_, ok := h.engine.TokenDetails(mint)
		return ok
	}, time.Second, 5*time.Millisecond)
}

func signals(alerts []domain.Alert) []domain.Signal {
	out := make([]domain.Signal, 0, len(alerts))
	for _, a := range alerts {
		out = append(out, a.Signal)
	}
	return out
}

func TestEngine_LaunchIsAnnouncedPersistedAndWatched(t *testing.T) {
	h := newHarness(t, nil)
	h.start(t)
	h.launch(t)

	tok, _ := h.engine.TokenDetails(mint)
	assert.Equal(t, "MCAT", tok.Symbol)
	assert.Equal(t, creator, tok.CreatorWallet)
	assert.InDelta(t, 3.0, tok.InitialLiquidity, 1e-9)

	rec, err := h.stores.Tokens.GetToken(context.Background(), mint)
	require.NoError(t, err)
	assert.Equal(t, "Moon Cat", rec.Name)

	recent := h.engine.RecentTokens(10)
	require.Len(t, recent, 1)
	assert.Equal(t, mint, recent[0].Mint)

	alerts := h.engine.RecentAlerts(10)
	require.Len(t, alerts, 1)
	assert.Equal(t, domain.AlertNewToken, alerts[0].Kind)
	assert.Equal(t, uint64(1), alerts[0].ID)

	require.Eventually(t, func() bool {
		stored, _ := h.stores.Alerts.Recent(context.Background(), 10)
		return len(stored) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestEngine_DevDumpFromLiveSell(t *testing.T) {
	h := newHarness(t, nil)
	h.start(t)
	h.launch(t)

	// creator sells 250M of 1B supply for 1 SOL
	h.rpc.AddTransaction(walletTx("sell1", creator, 1_000_000_000, 2_000_000_000, "250000000000000", "0"))
	h.push(t, "sell1", "Program log: Instruction: Sell")

	require.Eventually(t, func() bool {
		for _, a := range h.engine.RecentAlerts(0) {
			if a.Signal == domain.SignalDevDump {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)

	tok, _ := h.engine.TokenDetails(mint)
	assert.GreaterOrEqual(t, tok.SuspicionScore, 50)
	assert.False(t, tok.IsRugged)
	assert.Len(t, tok.SellHistory, 1)

	moves, err := h.stores.Movements.GetByMint(context.Background(), mint)
	require.NoError(t, err)
	assert.Len(t, moves, 1)

	activity, ok := h.engine.WalletActivity(creator)
	require.True(t, ok)
	assert.InDelta(t, 1.0, activity.TotalVolume, 1e-9)

	flow, ok := h.engine.TokenFlow(mint)
	require.True(t, ok)
	assert.Len(t, flow.Sells, 1)
}

func TestEngine_WhaleBuyOnUnknownToken(t *testing.T) {
	h := newHarness(t, nil)
	h.start(t)

	h.rpc.AddTransaction(walletTx("buy1", trader, 80_000_000_000, 5_000_000_000, "", "5000000000"))
	h.push(t, "buy1", "Program log: Instruction: Buy")

	require.Eventually(t, func() bool { return len(h.engine.RecentAlerts(0)) == 1 }, time.Second, 5*time.Millisecond)
	a := h.engine.RecentAlerts(1)[0]
	assert.Equal(t, domain.AlertWhaleBuy, a.Kind)
	assert.Contains(t, a.Message, "UNKNOWN")

	whales := h.engine.Whales()
	require.Len(t, whales, 1)
	assert.Equal(t, trader, whales[0].Address)

	movers := h.engine.TopMovers(5)
	require.Len(t, movers, 1)
	assert.InDelta(t, 75.0, movers[0].NetFlow, 1e-9)

	stats := h.engine.Stats()
	assert.True(t, stats.Running)
	assert.Equal(t, uint64(1), stats.Whales.WhalesIdentified)
	assert.Equal(t, uint64(1), stats.AlertsPublished)
}

func TestEngine_LPRemovalRugsWatchedToken(t *testing.T) {
	h := newHarness(t, nil)
	h.start(t)
	h.launch(t)

	// fee payer pays 2 SOL against 3 SOL of liquidity
	h.rpc.AddTransaction(walletTx("lp1", trader, 10_000_000_000, 8_000_000_000, "10", ""))
	h.push(t, "lp1", "Program log: remove_liquidity")

	require.Eventually(t, func() bool {
		tok, _ := h.engine.TokenDetails(mint)
		return tok.IsRugged
	}, time.Second, 5*time.Millisecond)

	tok, _ := h.engine.TokenDetails(mint)
	assert.Equal(t, "LP removed: 2.00 SOL (66.7%)", tok.RugReason)
	assert.Contains(t, signals(h.engine.RecentAlerts(0)), domain.SignalLPRemoval)

	require.Eventually(t, func() bool {
		rec, err := h.stores.Tokens.GetToken(context.Background(), mint)
		return err == nil && rec.IsRugged
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, uint64(1), h.engine.Stats().Lifecycle.RugsDetected)
}

func TestEngine_AlertIDsContinueFromStore(t *testing.T) {
	stores := memory.NewStores()
	require.NoError(t, stores.Alerts.SaveAlert(context.Background(), &domain.Alert{ID: 41, Kind: domain.AlertRug}))

	h := newHarness(t, func(o *Options) { o.Stores = stores })
	a := h.engine.Bus().Publish(domain.Alert{Kind: domain.AlertSuspicious})
	assert.Equal(t, uint64(42), a.ID)
}

func TestEngine_WatchlistAppliedOnStart(t *testing.T) {
	wl := &config.Watchlist{
		Wallets:   []config.WatchedWallet{{Address: trader, Label: "fund"}},
		Blacklist: []string{creator},
	}
	h := newHarness(t, func(o *Options) { o.Watchlist = wl })
	h.start(t)

	w, ok := h.engine.WalletActivity(trader)
	require.True(t, ok)
	assert.Equal(t, "fund", w.Label)

	h.rpc.AddTransaction(walletTx("create1", creator, 10_000_000_000, 7_000_000_000, "", "1000000000000"))
	h.push(t, "create1", "Program log: Instruction: Create")

	require.Eventually(t, func() bool { return h.engine.Stats().Launches.TokensFiltered == 1 }, time.Second, 5*time.Millisecond)
	assert.Empty(t, h.engine.WatchedTokens())
	assert.Empty(t, h.engine.RecentAlerts(0))
}

func TestEngine_KnownWhalesRestored(t *testing.T) {
	stores := memory.NewStores()
	require.NoError(t, stores.Wallets.SaveWallet(context.Background(), &domain.MonitoredWallet{
		Address: trader, IsWhale: true, TotalVolume: 500, FirstSeen: 1, LastActivity: 2,
	}))

	h := newHarness(t, func(o *Options) { o.Stores = stores })
	h.start(t)

	whales := h.engine.Whales()
	require.Len(t, whales, 1)
	assert.Equal(t, 500.0, whales[0].TotalVolume)
}

func TestEngine_ControlSurface(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	require.NoError(t, h.stores.Tokens.SaveToken(ctx, &domain.TokenRecord{
		Mint: "StoredMint", Name: "Stored", Symbol: "STR", Creator: creator, InitialLiquidity: 4, TotalSupply: domain.DefaultTotalSupply,
	}))

	assert.True(t, h.engine.WatchToken(ctx, "StoredMint"))
	assert.False(t, h.engine.WatchToken(ctx, "StoredMint"))
	stored, ok := h.engine.TokenDetails("StoredMint")
	require.True(t, ok)
	assert.Equal(t, "STR", stored.Symbol)
	assert.Equal(t, 4.0, stored.CurrentLiquidity)

	assert.True(t, h.engine.WatchToken(ctx, "GhostMint"))
	ghost, _ := h.engine.TokenDetails("GhostMint")
	assert.Equal(t, "UNKNOWN", ghost.Symbol)

	assert.True(t, h.engine.TriggerRug(ctx, "StoredMint", "manual review"))
	assert.False(t, h.engine.TriggerRug(ctx, "StoredMint", "again"))

	assert.True(t, h.engine.UnwatchToken("GhostMint"))
	assert.False(t, h.engine.UnwatchToken("GhostMint"))
	assert.Len(t, h.engine.WatchedTokens(), 1)

	assert.True(t, h.engine.WatchWallet(ctx, trader, "desk"))
	assert.True(t, h.engine.UnwatchWallet(trader))
	assert.False(t, h.engine.UnwatchWallet(trader))

	require.NoError(t, h.engine.SetFilter(discovery.FilterMinLiquidity, 5))
	assert.ErrorIs(t, h.engine.SetFilter("max_holders", 1), discovery.ErrUnknownFilter)
}

func TestEngine_StartStop(t *testing.T) {
	h := newHarness(t, nil)
	assert.ErrorIs(t, h.engine.Wait(), ErrNotRunning)

	require.NoError(t, h.engine.Start(context.Background()))
	assert.ErrorIs(t, h.engine.Start(context.Background()), ErrAlreadyRunning)
	require.Eventually(t, h.ws.Active, time.Second, 5*time.Millisecond)

	require.Equal(t, []solana.LogsFilter{{Mentions: []string{solana.PumpProgramID}}}, h.ws.Filters())

	h.engine.Stop()
	assert.False(t, h.engine.Running())
	assert.Equal(t, 1, h.ws.Unsubscribes())
	assert.NoError(t, h.engine.Wait())

	h.engine.Stop()

	// restart opens a fresh subscription
	require.NoError(t, h.engine.Start(context.Background()))
	require.Eventually(t, h.ws.Active, time.Second, 5*time.Millisecond)
	h.engine.Stop()
	assert.Equal(t, 2, h.ws.Unsubscribes())
}

func TestEngine_SubscribeFailureSurfacesFromWait(t *testing.T) {
	h := newHarness(t, nil)
	h.ws.FailSubscribe(errors.New("handshake refused"))

	require.NoError(t, h.engine.Start(context.Background()))
	defer h.engine.Stop()

	err := h.engine.Wait()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "handshake refused")
}

func TestNew_Validates(t *testing.T) {
	_, err := New(context.Background(), Options{})
	assert.Error(t, err)

	_, err = New(context.Background(), Options{Config: testConfig(), RPC: stub.NewRPCClient(), WS: stub.NewWSClient()})
	assert.Error(t, err)
}
