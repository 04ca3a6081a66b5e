// Package whales tracks wallet activity: cumulative volume, whale status and
// the rolling per-mint buy/sell flow.
package whales

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"pumpguard/internal/alerts"
	"pumpguard/internal/domain"
	"pumpguard/internal/observability"
	"pumpguard/internal/storage"
)

const (
	recentCap  = 100
	recentKeep = 50
	maxWallets = 10_000

	// whalesRecentShown bounds RecentMovements in Whales results.
	whalesRecentShown = 10
)

// Config configures whale detection and the flow window.
type Config struct {
	WhaleThresholdSOL   float64
	AlertOnAccumulation bool
	AlertOnDump         bool
	WindowMs            int64 // flow window
	MinTxForPattern     int
}

// DefaultConfig returns the stock settings.
func DefaultConfig() Config {
	return Config{
		WhaleThresholdSOL:   50,
		AlertOnAccumulation: true,
		AlertOnDump:         true,
		WindowMs:            3_600_000,
		MinTxForPattern:     3,
	}
}

// Stats is a snapshot of tracker counters.
type Stats struct {
	WalletsTracked     uint64
	WhalesIdentified   uint64
	AccumulationAlerts uint64
	DumpAlerts         uint64
	TotalVolumeTracked float64 // SOL moved by whale-sized movements
	Wallets            int
	TokensTracked      int
}

type walletEntry struct {
	mu sync.Mutex
	w  domain.MonitoredWallet
}

// Tracker owns per-wallet activity and per-mint flow.
type Tracker struct {
	walletsMu sync.RWMutex
	wallets   map[string]*walletEntry

	flowsMu sync.RWMutex
	flows   map[string]*flowEntry

	cfgMu sync.RWMutex
	cfg   Config

	pub       alerts.Publisher
	tokens    storage.TokenStore
	walletDB  storage.WalletStore
	movements storage.MovementStore
	now       func() int64
	logger    zerolog.Logger

	walletsTracked     atomic.Uint64
	whalesIdentified   atomic.Uint64
	accumulationAlerts atomic.Uint64
	dumpAlerts         atomic.Uint64

	volumeMu    sync.Mutex
	totalVolume float64
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock overrides the millisecond clock.
func WithClock(now func() int64) Option {
	return func(t *Tracker) { t.now = now }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(t *Tracker) { t.logger = l }
}

// NewTracker creates a wallet activity tracker.
func NewTracker(cfg Config, pub alerts.Publisher, stores storage.Stores, opts ...Option) *Tracker {
	t := &Tracker{
		wallets:   make(map[string]*walletEntry),
		flows:     make(map[string]*flowEntry),
		cfg:       cfg,
		pub:       pub,
		tokens:    stores.Tokens,
		walletDB:  stores.Wallets,
		movements: stores.Movements,
		now:       func() int64 { return time.Now().UnixMilli() },
		logger:    log.Logger,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = t.logger.With().Str("component", "whales").Logger()
	return t
}

// SetConfig replaces the settings.
func (t *Tracker) SetConfig(cfg Config) {
	t.cfgMu.Lock()
	t.cfg = cfg
	t.cfgMu.Unlock()
}

func (t *Tracker) config() Config {
	t.cfgMu.RLock()
	defer t.cfgMu.RUnlock()
	return t.cfg
}

// lockWallet returns the locked entry for address, creating it if absent.
func (t *Tracker) lockWallet(address string, now int64) *walletEntry {
	t.walletsMu.RLock()
	if e, ok := t.wallets[address]; ok {
		e.mu.Lock()
		t.walletsMu.RUnlock()
		return e
	}
	t.walletsMu.RUnlock()

	t.walletsMu.Lock()
	defer t.walletsMu.Unlock()
	if e, ok := t.wallets[address]; ok {
		e.mu.Lock()
		return e
	}
	if len(t.wallets) >= maxWallets {
		t.evictWalletsLocked()
	}
	e := &walletEntry{w: domain.MonitoredWallet{Address: address, FirstSeen: now}}
	e.mu.Lock()
	t.wallets[address] = e
	t.walletsTracked.Add(1)
	observability.SetTrackedWallets(len(t.wallets))
	return e
}

// evictWalletsLocked drops the least recently active half of the ordinary
// wallets. Whales and labelled wallets are kept. Caller holds walletsMu.
func (t *Tracker) evictWalletsLocked() {
	type aged struct {
		address string
		last    int64
	}
	var candidates []aged
	for addr, e := range t.wallets {
		e.mu.Lock()
		if !e.w.IsWhale && e.w.Label == "" {
			candidates = append(candidates, aged{addr, e.w.LastActivity})
		}
		e.mu.Unlock()
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].last < candidates[j].last })

	n := len(t.wallets) / 2
	if n > len(candidates) {
		n = len(candidates)
	}
	for _, c := range candidates[:n] {
		delete(t.wallets, c.address)
	}
	t.logger.Info().Int("evicted", n).Int("remaining", len(t.wallets)).Msg("evicted inactive wallets")
}

// OnMovement records a movement against its wallet and its mint's flow.
func (t *Tracker) OnMovement(ctx context.Context, mv domain.Movement) {
	cfg := t.config()
	now := t.now()
	whaleSized := mv.AmountNative >= cfg.WhaleThresholdSOL

	e := t.lockWallet(mv.Wallet, now)
	w := &e.w
	promoted := false

	if whaleSized && !w.IsWhale {
		w.IsWhale = true
		promoted = true
		t.whalesIdentified.Add(1)
		t.logger.Info().Str("wallet", mv.Wallet).Msg("new whale identified: " + observability.Abbrev(mv.Wallet))
	}

	w.TotalVolume += mv.AmountNative
	w.LastActivity = now
	w.RecentMovements = append(w.RecentMovements, mv)
	if len(w.RecentMovements) > recentCap {
		w.RecentMovements = append([]domain.Movement(nil), w.RecentMovements[len(w.RecentMovements)-recentKeep:]...)
	}

	if !w.IsWhale && w.TotalVolume >= 2*cfg.WhaleThresholdSOL {
		w.IsWhale = true
		promoted = true
		t.whalesIdentified.Add(1)
		t.logger.Info().
			Str("wallet", mv.Wallet).
			Float64("volume", w.TotalVolume).
			Msg("wallet promoted to whale status")
	}

	var snapshot domain.MonitoredWallet
	if whaleSized || promoted {
		snapshot = w.Clone()
		snapshot.RecentMovements = nil
	}
	e.mu.Unlock()

	if whaleSized || promoted {
		t.saveWallet(ctx, &snapshot)
	}
	if whaleSized {
		t.onWhaleMovement(ctx, cfg, mv)
	}

	t.trackFlow(mv, now, cfg.WindowMs)
}

func (t *Tracker) onWhaleMovement(ctx context.Context, cfg Config, mv domain.Movement) {
	observability.RecordWhaleTransaction(string(mv.Direction), mv.AmountNative)
	t.volumeMu.Lock()
	t.totalVolume += mv.AmountNative
	t.volumeMu.Unlock()

	if t.movements != nil {
		if err := t.movements.SaveMovement(ctx, &mv); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
			t.logger.Error().Err(err).Str("sig", mv.Signature).Msg("persist whale movement")
		}
	}

	info := t.tokenInfo(ctx, mv.Mint)
	t.logger.Info().
		Str("wallet", mv.Wallet).
		Str("mint", mv.Mint).
		Str("direction", string(mv.Direction)).
		Float64("sol", mv.AmountNative).
		Msgf("whale %s: %.2f SOL of %s", mv.Direction, mv.AmountNative, info.Symbol)

	switch {
	case mv.Direction == domain.DirectionBuy && cfg.AlertOnAccumulation:
		t.accumulationAlerts.Add(1)
		t.pub.Publish(alerts.WhaleAlert(mv.Direction, mv.Wallet, info, mv.AmountNative, mv.AmountToken))
	case mv.Direction == domain.DirectionSell && cfg.AlertOnDump:
		t.dumpAlerts.Add(1)
		t.pub.Publish(alerts.WhaleAlert(mv.Direction, mv.Wallet, info, mv.AmountNative, mv.AmountToken))
	}
}

func (t *Tracker) saveWallet(ctx context.Context, w *domain.MonitoredWallet) {
	if t.walletDB == nil {
		return
	}
	if err := t.walletDB.SaveWallet(ctx, w); err != nil {
		t.logger.Error().Err(err).Str("wallet", w.Address).Msg("persist wallet")
	}
}

// tokenInfo resolves alert context for mint, falling back to UNKNOWN.
func (t *Tracker) tokenInfo(ctx context.Context, mint string) alerts.TokenInfo {
	if t.tokens == nil {
		return alerts.UnknownToken(mint)
	}
	rec, err := t.tokens.GetToken(ctx, mint)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			t.logger.Warn().Err(err).Str("mint", mint).Msg("token lookup")
		}
		return alerts.UnknownToken(mint)
	}
	initial := rec.InitialLiquidity
	return alerts.TokenInfo{
		Mint:             rec.Mint,
		Name:             rec.Name,
		Symbol:           rec.Symbol,
		Creator:          rec.Creator,
		InitialLiquidity: &initial,
	}
}

// WatchWallet adds a labelled wallet. An existing wallet only gets its label updated.
// Returns true when the wallet was not tracked before.
func (t *Tracker) WatchWallet(ctx context.Context, address, label string) bool {
	t.walletsMu.RLock()
	_, existed := t.wallets[address]
	t.walletsMu.RUnlock()

	e := t.lockWallet(address, t.now())
	if label != "" {
		e.w.Label = label
	}
	snapshot := e.w.Clone()
	snapshot.RecentMovements = nil
	e.mu.Unlock()

	t.saveWallet(ctx, &snapshot)
	name := label
	if name == "" {
		name = observability.Abbrev(address)
	}
	t.logger.Info().Str("wallet", address).Msg("now watching wallet: " + name)
	return !existed
}

// UnwatchWallet forgets a wallet. Returns false if it was not tracked.
func (t *Tracker) UnwatchWallet(address string) bool {
	t.walletsMu.Lock()
	defer t.walletsMu.Unlock()
	if _, ok := t.wallets[address]; !ok {
		return false
	}
	delete(t.wallets, address)
	observability.SetTrackedWallets(len(t.wallets))
	t.logger.Info().Str("wallet", address).Msg("stopped watching wallet")
	return true
}

// LoadKnownWhales seeds the tracker with every persisted whale.
func (t *Tracker) LoadKnownWhales(ctx context.Context) (int, error) {
	if t.walletDB == nil {
		return 0, nil
	}
	known, err := t.walletDB.GetWhales(ctx)
	if err != nil {
		return 0, err
	}

	for _, k := range known {
		e := t.lockWallet(k.Address, k.FirstSeen)
		e.w.IsWhale = true
		if k.Label != "" {
			e.w.Label = k.Label
		}
		if k.TotalVolume > e.w.TotalVolume {
			e.w.TotalVolume = k.TotalVolume
		}
		if k.LastActivity > e.w.LastActivity {
			e.w.LastActivity = k.LastActivity
		}
		e.mu.Unlock()
	}
	t.logger.Info().Int("count", len(known)).Msg("loaded known whales")
	return len(known), nil
}

func (t *Tracker) walletEntries() []*walletEntry {
	t.walletsMu.RLock()
	defer t.walletsMu.RUnlock()
	out := make([]*walletEntry, 0, len(t.wallets))
	for _, e := range t.wallets {
		out = append(out, e)
	}
	return out
}

// Whales returns every whale, highest volume first, with the last ten movements each.
func (t *Tracker) Whales() []domain.MonitoredWallet {
	var out []domain.MonitoredWallet
	for _, e := range t.walletEntries() {
		e.mu.Lock()
		if e.w.IsWhale {
			w := e.w.Clone()
			if n := len(w.RecentMovements); n > whalesRecentShown {
				w.RecentMovements = w.RecentMovements[n-whalesRecentShown:]
			}
			out = append(out, w)
		}
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalVolume != out[j].TotalVolume {
			return out[i].TotalVolume > out[j].TotalVolume
		}
		return out[i].Address < out[j].Address
	})
	return out
}

// WalletActivity returns a copy of one wallet.
func (t *Tracker) WalletActivity(address string) (domain.MonitoredWallet, bool) {
	t.walletsMu.RLock()
	e, ok := t.wallets[address]
	t.walletsMu.RUnlock()
	if !ok {
		return domain.MonitoredWallet{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.w.Clone(), true
}

// Stats returns tracker counters.
func (t *Tracker) Stats() Stats {
	t.walletsMu.RLock()
	wallets := len(t.wallets)
	t.walletsMu.RUnlock()
	t.flowsMu.RLock()
	flows := len(t.flows)
	t.flowsMu.RUnlock()
	t.volumeMu.Lock()
	volume := t.totalVolume
	t.volumeMu.Unlock()

	return Stats{
		WalletsTracked:     t.walletsTracked.Load(),
		WhalesIdentified:   t.whalesIdentified.Load(),
		AccumulationAlerts: t.accumulationAlerts.Load(),
		DumpAlerts:         t.dumpAlerts.Load(),
		TotalVolumeTracked: volume,
		Wallets:            wallets,
		TokensTracked:      flows,
	}
}
