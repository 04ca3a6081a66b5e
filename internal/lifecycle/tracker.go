// Package lifecycle tracks watched tokens from launch to rug: liquidity,
// suspicion score and the one-way rug transition.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
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
	maxWatched     = 1000
	sellHistoryCap = 100

	rapidWindowMs  = 60_000
	rapidMinSells  = 3
	rapidLiqShare  = 0.3
	rugScore       = 80
	recheckAfterMs = 25_000

	scoreDevDump = 50
	scoreDevSell = 20
	scoreRapid   = 30
	scoreLarge   = 15
)

// Rug triggers, used as metric labels.
const (
	TriggerScore     = "score"
	TriggerLiquidity = "liquidity_drop"
	TriggerLPRemoval = "lp_removal"
	TriggerManual    = "manual"
)

// Thresholds configures the detectors.
type Thresholds struct {
	LPRemovalPercent      float64 // probe drop or LP removal share that rugs a token
	SuspiciousSellPercent float64 // single sell share of current liquidity
	MaxDevSellPercent     float64 // creator sell share of supply counted as a dump
	DevSellAlert          bool    // alert on smaller creator sells
}

// DefaultThresholds returns the stock detector settings.
func DefaultThresholds() Thresholds {
	return Thresholds{
		LPRemovalPercent:      50,
		SuspiciousSellPercent: 10,
		MaxDevSellPercent:     20,
		DevSellAlert:          true,
	}
}

// Prober reads the current liquidity backing a token.
type Prober interface {
	Probe(ctx context.Context, mint string) (account string, balanceSOL float64, err error)
}

// Stats is a snapshot of tracker counters.
type Stats struct {
	TokensWatched uint64 // total Watch calls that added a token
	RugsDetected  uint64
	AlertsSent    uint64
	Watching      int
}

type entry struct {
	mu  sync.Mutex
	tok domain.MonitoredToken
}

// finding is one detector hit on a movement.
type finding struct {
	signal   domain.Signal
	severity domain.Severity
	reason   string
}

// Tracker owns per-token lifecycle state.
type Tracker struct {
	mu     sync.RWMutex
	tokens map[string]*entry

	thresholdsMu sync.RWMutex
	thresholds   Thresholds

	pub       alerts.Publisher
	tokenDB   storage.TokenStore
	movements storage.MovementStore
	probes    storage.LiquidityProbeStore
	prober    Prober
	now       func() int64
	logger    zerolog.Logger

	watched    atomic.Uint64
	rugs       atomic.Uint64
	alertsSent atomic.Uint64
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

// WithProber sets the liquidity prober used by SweepLiquidity.
func WithProber(p Prober) Option {
	return func(t *Tracker) { t.prober = p }
}

// WithProbeStore records every liquidity probe.
func WithProbeStore(s storage.LiquidityProbeStore) Option {
	return func(t *Tracker) { t.probes = s }
}

// NewTracker creates a lifecycle tracker.
func NewTracker(th Thresholds, pub alerts.Publisher, tokens storage.TokenStore, movements storage.MovementStore, opts ...Option) *Tracker {
	t := &Tracker{
		tokens:     make(map[string]*entry),
		thresholds: th,
		pub:        pub,
		tokenDB:    tokens,
		movements:  movements,
		now:        func() int64 { return time.Now().UnixMilli() },
		logger:     log.Logger,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = t.logger.With().Str("component", "lifecycle").Logger()
	return t
}

// SetThresholds replaces the detector settings.
func (t *Tracker) SetThresholds(th Thresholds) {
	t.thresholdsMu.Lock()
	t.thresholds = th
	t.thresholdsMu.Unlock()
}

func (t *Tracker) currentThresholds() Thresholds {
	t.thresholdsMu.RLock()
	defer t.thresholdsMu.RUnlock()
	return t.thresholds
}

// Watch starts tracking a launched token. Returns false if it is already watched.
func (t *Tracker) Watch(l domain.TokenLaunch) bool {
	now := t.now()
	supply := l.TotalSupply
	if supply <= 0 {
		supply = domain.DefaultTotalSupply
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.tokens[l.Mint]; ok {
		return false
	}
	t.tokens[l.Mint] = &entry{tok: domain.MonitoredToken{
		Mint:             l.Mint,
		Symbol:           l.Symbol,
		Name:             l.Name,
		CreatorWallet:    l.Creator,
		TotalSupply:      supply,
		InitialLiquidity: l.InitialLiquidity,
		CurrentLiquidity: l.InitialLiquidity,
		LastHealthCheck:  now,
		WatchedAt:        now,
		LastActivity:     now,
	}}
	t.watched.Add(1)

	if len(t.tokens) > maxWatched {
		t.evictLocked(l.Mint)
	}
	observability.SetTrackedTokens(len(t.tokens))

	t.logger.Info().Str("mint", l.Mint).Str("symbol", l.Symbol).Msg("now watching")
	return true
}

// evictLocked drops the least recently active half, never keep. Ties go to
// the earliest watched. Caller holds t.mu.
func (t *Tracker) evictLocked(keep string) {
	type aged struct {
		mint    string
		last    int64
		watched int64
	}
	all := make([]aged, 0, len(t.tokens))
	for mint, e := range t.tokens {
		if mint == keep {
			continue
		}
		e.mu.Lock()
		all = append(all, aged{mint, e.tok.LastActivity, e.tok.WatchedAt})
		e.mu.Unlock()
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].last != all[j].last {
			return all[i].last < all[j].last
		}
		if all[i].watched != all[j].watched {
			return all[i].watched < all[j].watched
		}
		return all[i].mint < all[j].mint
	})

	n := len(t.tokens) / 2
	for _, a := range all[:n] {
		delete(t.tokens, a.mint)
	}
	t.logger.Info().Int("evicted", n).Int("remaining", len(t.tokens)).Msg("evicted inactive tokens")
}

// Unwatch stops tracking mint. Returns false if it was not watched.
func (t *Tracker) Unwatch(mint string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.tokens[mint]; !ok {
		return false
	}
	delete(t.tokens, mint)
	observability.SetTrackedTokens(len(t.tokens))
	t.logger.Info().Str("mint", mint).Msg("stopped watching")
	return true
}

// Follow watches every launch received until ctx is done or launches closes.
func (t *Tracker) Follow(ctx context.Context, launches <-chan domain.TokenLaunch) {
	for {
		select {
		case <-ctx.Done():
			return
		case l, ok := <-launches:
			if !ok {
				return
			}
			t.Watch(l)
		}
	}
}

func (t *Tracker) get(mint string) *entry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.tokens[mint]
}

// OnMovement runs the sell detectors for a movement on a watched mint.
func (t *Tracker) OnMovement(ctx context.Context, mv domain.Movement) {
	e := t.get(mv.Mint)
	if e == nil {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	tok := &e.tok
	tok.LastActivity = t.now()

	if mv.Direction == domain.DirectionSell {
		tok.SellHistory = append(tok.SellHistory, mv)
		if len(tok.SellHistory) > sellHistoryCap {
			tok.SellHistory = tok.SellHistory[len(tok.SellHistory)-sellHistoryCap:]
		}
	}
	t.saveMovement(ctx, mv)

	if mv.Direction != domain.DirectionSell {
		return
	}

	th := t.currentThresholds()
	var found []finding

	if mv.Wallet == tok.CreatorWallet {
		pct := mv.AmountToken / tok.TotalSupply * 100
		if pct >= th.MaxDevSellPercent {
			tok.SuspicionScore += scoreDevDump
			found = append(found, finding{domain.SignalDevDump, domain.SeverityCritical,
				fmt.Sprintf("Developer sold %.2f%% of supply", pct)})
		} else if th.DevSellAlert {
			tok.SuspicionScore += scoreDevSell
			found = append(found, finding{domain.SignalDevSell, domain.SeverityMedium,
				fmt.Sprintf("Developer sold %.4f SOL worth", mv.AmountNative)})
		}
	}

	var recent int
	var recentSOL float64
	for _, s := range tok.SellHistory {
		if mv.ObservedAt-s.ObservedAt < rapidWindowMs {
			recent++
			recentSOL += s.AmountNative
		}
	}
	if recent >= rapidMinSells && recentSOL > tok.InitialLiquidity*rapidLiqShare {
		tok.SuspicionScore += scoreRapid
		found = append(found, finding{domain.SignalRapidSelling, domain.SeverityHigh,
			fmt.Sprintf("Rapid selling detected: %.2f SOL in %d txs", recentSOL, recent)})
	}

	if tok.CurrentLiquidity > 0 && mv.AmountNative > tok.CurrentLiquidity*th.SuspiciousSellPercent/100 {
		tok.SuspicionScore += scoreLarge
		found = append(found, finding{domain.SignalLargeSell, domain.SeverityMedium,
			fmt.Sprintf("Large sell: %.4f SOL (%.1f%% of liquidity)", mv.AmountNative, mv.AmountNative/tok.CurrentLiquidity*100)})
	}

	for _, f := range found {
		observability.RecordSuspicious(string(f.signal))
		t.logger.Warn().
			Str("mint", tok.Mint).
			Str("signal", string(f.signal)).
			Int("score", tok.SuspicionScore).
			Msg(f.reason)
		t.publish(alerts.SuspiciousAlert(tokenInfo(tok), f.reason, f.severity, f.signal))
	}

	if tok.SuspicionScore >= rugScore {
		t.rugLocked(ctx, tok, "High suspicion score reached", domain.SignalScore, TriggerScore)
	}
}

func (t *Tracker) saveMovement(ctx context.Context, mv domain.Movement) {
	if t.movements == nil {
		return
	}
	if err := t.movements.SaveMovement(ctx, &mv); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
		t.logger.Error().Err(err).Str("sig", mv.Signature).Msg("persist movement")
	}
}

// OnLiquidityProbe applies a liquidity reading taken outside the sweep.
func (t *Tracker) OnLiquidityProbe(ctx context.Context, mint string, balanceSOL float64) {
	e := t.get(mint)
	if e == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	t.applyProbeLocked(ctx, &e.tok, "", balanceSOL)
}

func (t *Tracker) applyProbeLocked(ctx context.Context, tok *domain.MonitoredToken, account string, balanceSOL float64) {
	now := t.now()
	previous := tok.CurrentLiquidity
	tok.CurrentLiquidity = balanceSOL
	tok.LastHealthCheck = now

	var drop float64
	if previous > 0 {
		drop = (previous - balanceSOL) / previous * 100
	}
	t.recordProbe(ctx, domain.LiquidityProbe{
		Mint:        tok.Mint,
		Account:     account,
		BalanceSOL:  balanceSOL,
		PreviousSOL: previous,
		DropPercent: max(drop, 0),
		ObservedAt:  now,
	})

	if previous > 0 && drop >= t.currentThresholds().LPRemovalPercent {
		t.rugLocked(ctx, tok, fmt.Sprintf("Liquidity dropped %.1f%%", drop), domain.SignalLiquidity, TriggerLiquidity)
	}
}

func (t *Tracker) recordProbe(ctx context.Context, p domain.LiquidityProbe) {
	if t.probes == nil {
		return
	}
	if err := t.probes.InsertProbe(ctx, &p); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
		t.logger.Warn().Err(err).Str("mint", p.Mint).Msg("record probe")
	}
}

// OnLiquidityChange rugs every watched mint of the change whose liquidity
// fell by more than the LP removal threshold.
func (t *Tracker) OnLiquidityChange(ctx context.Context, c domain.LiquidityChange) {
	pct := t.currentThresholds().LPRemovalPercent
	for _, mint := range c.Mints {
		e := t.get(mint)
		if e == nil {
			continue
		}

		e.mu.Lock()
		tok := &e.tok
		tok.LastActivity = t.now()
		if tok.CurrentLiquidity > 0 && c.NativeRemoved > tok.CurrentLiquidity*pct/100 {
			reason := fmt.Sprintf("LP removed: %.2f SOL (%.1f%%)", c.NativeRemoved, c.NativeRemoved/tok.CurrentLiquidity*100)
			t.rugLocked(ctx, tok, reason, domain.SignalLPRemoval, TriggerLPRemoval)
		}
		e.mu.Unlock()
	}
}

// TriggerRug marks mint as rugged. Returns false if it is not watched or already rugged.
func (t *Tracker) TriggerRug(ctx context.Context, mint, reason string) bool {
	e := t.get(mint)
	if e == nil {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return t.rugLocked(ctx, &e.tok, reason, domain.SignalManual, TriggerManual)
}

// rugLocked performs the one-way rug transition. Caller holds the entry lock.
func (t *Tracker) rugLocked(ctx context.Context, tok *domain.MonitoredToken, reason string, signal domain.Signal, trigger string) bool {
	if tok.IsRugged {
		return false
	}
	tok.IsRugged = true
	tok.RugReason = reason
	t.rugs.Add(1)
	observability.RecordRug(trigger)

	t.logger.Error().
		Str("mint", tok.Mint).
		Str("symbol", tok.Symbol).
		Int("score", tok.SuspicionScore).
		Msg("RUG DETECTED: " + reason)

	if t.tokenDB != nil {
		if err := t.tokenDB.MarkRugged(ctx, tok.Mint, reason, t.now()); err != nil {
			t.logger.Warn().Err(err).Str("mint", tok.Mint).Msg("persist rug")
		}
	}
	t.publish(alerts.RugAlert(tokenInfo(tok), reason, domain.SeverityCritical, signal))
	return true
}

func (t *Tracker) publish(a domain.Alert) {
	t.alertsSent.Add(1)
	t.pub.Publish(a)
}

// SweepLiquidity probes every unrugged token not checked in the last 25s.
// Probe failures are logged and swallowed.
func (t *Tracker) SweepLiquidity(ctx context.Context) {
	if t.prober == nil {
		return
	}

	t.mu.RLock()
	entries := make([]*entry, 0, len(t.tokens))
	for _, e := range t.tokens {
		entries = append(entries, e)
	}
	t.mu.RUnlock()

	var probed int
	for _, e := range entries {
		if ctx.Err() != nil {
			return
		}

		e.mu.Lock()
		mint := e.tok.Mint
		skip := e.tok.IsRugged || t.now()-e.tok.LastHealthCheck < recheckAfterMs
		e.mu.Unlock()
		if skip {
			continue
		}

		account, balance, err := t.prober.Probe(ctx, mint)

		e.mu.Lock()
		if err != nil {
			e.tok.LastHealthCheck = t.now()
			t.logger.Debug().Err(err).Str("mint", mint).Msg("liquidity probe failed")
		} else {
			t.applyProbeLocked(ctx, &e.tok, account, balance)
			probed++
		}
		e.mu.Unlock()
	}
	t.logger.Debug().Int("probed", probed).Int("watched", len(entries)).Msg("liquidity sweep done")
}

// WatchedTokens returns copies of every watched token, most recently watched first.
func (t *Tracker) WatchedTokens() []domain.MonitoredToken {
	t.mu.RLock()
	entries := make([]*entry, 0, len(t.tokens))
	for _, e := range t.tokens {
		entries = append(entries, e)
	}
	t.mu.RUnlock()

	out := make([]domain.MonitoredToken, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		out = append(out, e.tok.Clone())
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].WatchedAt != out[j].WatchedAt {
			return out[i].WatchedAt > out[j].WatchedAt
		}
		return out[i].Mint < out[j].Mint
	})
	return out
}

// TokenDetails returns a copy of one watched token.
func (t *Tracker) TokenDetails(mint string) (domain.MonitoredToken, bool) {
	e := t.get(mint)
	if e == nil {
		return domain.MonitoredToken{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tok.Clone(), true
}

// Stats returns tracker counters.
func (t *Tracker) Stats() Stats {
	t.mu.RLock()
	n := len(t.tokens)
	t.mu.RUnlock()
	return Stats{
		TokensWatched: t.watched.Load(),
		RugsDetected:  t.rugs.Load(),
		AlertsSent:    t.alertsSent.Load(),
		Watching:      n,
	}
}

func tokenInfo(tok *domain.MonitoredToken) alerts.TokenInfo {
	initial := tok.InitialLiquidity
	return alerts.TokenInfo{
		Mint:             tok.Mint,
		Name:             tok.Name,
		Symbol:           tok.Symbol,
		Creator:          tok.CreatorWallet,
		InitialLiquidity: &initial,
	}
}
