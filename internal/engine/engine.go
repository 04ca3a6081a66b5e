// Package engine assembles the detection pipeline and exposes its control and query surfaces.
// Flow: log subscription → classification → resolution → launch/lifecycle/whale trackers → alert bus → sinks
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"pumpguard/internal/alerts"
	"pumpguard/internal/config"
	"pumpguard/internal/discovery"
	"pumpguard/internal/domain"
	"pumpguard/internal/ingestion"
	"pumpguard/internal/lifecycle"
	"pumpguard/internal/solana"
	"pumpguard/internal/storage"
	"pumpguard/internal/whales"
)

const sinkBuffer = 256

var (
	// ErrAlreadyRunning is returned by Start on a running engine.
	ErrAlreadyRunning = errors.New("engine already running")

	// ErrNotRunning is returned by Wait before Start.
	ErrNotRunning = errors.New("engine not running")
)

// Options for creating an Engine.
type Options struct {
	// Required
	Config *config.Config
	RPC    solana.RPCClient
	WS     solana.WSClient
	Stores storage.Stores

	// Optional
	Telegram  alerts.MessageSender // nil disables chat delivery
	Watchlist *config.Watchlist
	Now       func() int64 // ms clock shared by every component
	Logger    *zerolog.Logger

	// Resolution tuning. Zero keeps the resolver defaults.
	TradeSettleDelay  time.Duration
	LaunchSettleDelay time.Duration
	Concurrency       int
}

// Stats aggregates every component's counters.
type Stats struct {
	Running         bool
	StartedAt       int64 // ms, 0 before the first Start
	AlertsPublished uint64
	Runner          ingestion.RunnerStats
	Launches        discovery.LaunchStats
	Lifecycle       lifecycle.Stats
	Whales          whales.Stats
}

// Engine wires the pipeline together.
type Engine struct {
	cfg       *config.Config
	stores    storage.Stores
	watchlist *config.Watchlist
	now       func() int64
	logger    zerolog.Logger

	bus       *alerts.Bus
	sinks     []alerts.Sink
	launches  *discovery.LaunchMonitor
	lifecycle *lifecycle.Tracker
	whales    *whales.Tracker
	runner    *ingestion.Runner

	mu        sync.Mutex
	cancel    context.CancelFunc
	scheduler *cron.Cron
	wg        sync.WaitGroup
	done      chan struct{}
	runErr    error

	running   atomic.Bool
	startedAt atomic.Int64
}

// New creates an engine. The alert bus continues numbering after the newest stored alert.
func New(ctx context.Context, opts Options) (*Engine, error) {
	if opts.Config == nil {
		return nil, errors.New("config is required")
	}
	if opts.RPC == nil || opts.WS == nil {
		return nil, errors.New("rpc and websocket clients are required")
	}
	if opts.Stores.Tokens == nil || opts.Stores.Movements == nil || opts.Stores.Wallets == nil || opts.Stores.Alerts == nil {
		return nil, errors.New("token, movement, wallet and alert stores are required")
	}

	cfg := opts.Config
	logger := log.Logger
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	now := opts.Now
	if now == nil {
		now = func() int64 { return time.Now().UnixMilli() }
	}

	e := &Engine{
		cfg:       cfg,
		stores:    opts.Stores,
		watchlist: opts.Watchlist,
		now:       now,
		logger:    logger.With().Str("component", "engine").Logger(),
	}

	var startID uint64
	last, err := opts.Stores.Alerts.Recent(ctx, 1)
	if err != nil {
		e.logger.Warn().Err(err).Msg("read last alert id, numbering from 1")
	} else if len(last) > 0 {
		startID = last[0].ID
	}
	e.bus = alerts.NewBus(alerts.WithStartID(startID), alerts.WithClock(now), alerts.WithBusLogger(logger))

	e.sinks = []alerts.Sink{alerts.NewStoreSink(opts.Stores.Alerts)}
	if opts.Telegram != nil {
		e.sinks = append(e.sinks, alerts.NewTelegramSink(opts.Telegram, cfg.TelegramChatID, cfg.MaxAlertsPerMinute))
	}

	e.launches = discovery.NewLaunchMonitor(discovery.LaunchConfig{
		MinLiquiditySOL: cfg.MinLiquiditySOL,
		MaxLiquiditySOL: cfg.MaxLiquiditySOL,
		AlertNewTokens:  cfg.AlertNewTokens,
	}, opts.Stores.Tokens, e.bus, discovery.WithLaunchLogger(logger))

	lifecycleOpts := []lifecycle.Option{
		lifecycle.WithClock(now),
		lifecycle.WithLogger(logger),
		lifecycle.WithProber(ingestion.NewCurveProber(opts.RPC, cfg.ProgramID)),
	}
	if opts.Stores.Probes != nil {
		lifecycleOpts = append(lifecycleOpts, lifecycle.WithProbeStore(opts.Stores.Probes))
	}
	e.lifecycle = lifecycle.NewTracker(thresholds(cfg), e.bus, opts.Stores.Tokens, opts.Stores.Movements, lifecycleOpts...)

	e.whales = whales.NewTracker(whaleConfig(cfg), e.bus, opts.Stores,
		whales.WithClock(now), whales.WithLogger(logger))

	resolverOpts := []ingestion.ResolverOption{
		ingestion.WithResolverClock(now),
		ingestion.WithResolverLogger(logger),
	}
	if opts.TradeSettleDelay > 0 || opts.LaunchSettleDelay > 0 {
		resolverOpts = append(resolverOpts, ingestion.WithSettleDelays(opts.TradeSettleDelay, opts.LaunchSettleDelay))
	}

	e.runner = ingestion.NewRunner(ingestion.RunnerOptions{
		WS:          opts.WS,
		ProgramID:   cfg.ProgramID,
		Resolver:    ingestion.NewResolver(opts.RPC, resolverOpts...),
		Launches:    e.launches,
		Movements:   []ingestion.MovementHandler{e.lifecycle, e.whales},
		Liquidity:   []ingestion.LiquidityHandler{e.lifecycle},
		Concurrency: opts.Concurrency,
		Logger:      &logger,
	})

	return e, nil
}

func thresholds(cfg *config.Config) lifecycle.Thresholds {
	return lifecycle.Thresholds{
		LPRemovalPercent:      cfg.LPRemovalPercent,
		SuspiciousSellPercent: cfg.SuspiciousSellPercent,
		MaxDevSellPercent:     cfg.MaxDevSellPercent,
		DevSellAlert:          cfg.DevSellAlert,
	}
}

func whaleConfig(cfg *config.Config) whales.Config {
	return whales.Config{
		WhaleThresholdSOL:   cfg.WhaleThresholdSOL,
		AlertOnAccumulation: cfg.AlertOnAccumulation,
		AlertOnDump:         cfg.AlertOnDump,
		WindowMs:            cfg.AccumulationWindow.Milliseconds(),
		MinTxForPattern:     cfg.MinTxForPattern,
	}
}

// Start loads persisted whales and the watchlist, starts the sinks, the
// launch follower, the periodic sweeps and the log subscription. It returns
// once everything is running.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running.Load() {
		return ErrAlreadyRunning
	}

	if n, err := e.whales.LoadKnownWhales(ctx); err != nil {
		e.logger.Warn().Err(err).Msg("load known whales")
	} else if n > 0 {
		e.logger.Info().Int("count", n).Msg("known whales restored")
	}
	e.applyWatchlist(ctx)

	runCtx, cancel := context.WithCancel(ctx)

	scheduler := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := scheduler.AddFunc(every(e.cfg.HealthCheckInterval), func() { e.lifecycle.SweepLiquidity(runCtx) }); err != nil {
		cancel()
		return fmt.Errorf("schedule liquidity sweep: %w", err)
	}
	if _, err := scheduler.AddFunc(every(e.cfg.PatternAnalysisInterval), func() { e.whales.AnalyzePatterns(runCtx) }); err != nil {
		cancel()
		return fmt.Errorf("schedule pattern analysis: %w", err)
	}

	for _, s := range e.sinks {
		done := alerts.StartSink(runCtx, e.bus, s, sinkBuffer, e.logger)
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			<-done
		}()
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.lifecycle.Follow(runCtx, e.launches.Launches())
	}()

	scheduler.Start()

	done := make(chan struct{})
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer close(done)
		err := e.runner.Run(runCtx)
		if err != nil {
			e.logger.Error().Err(err).Msg("ingestion stopped")
		}
		e.mu.Lock()
		e.runErr = err
		e.mu.Unlock()
	}()

	e.cancel = cancel
	e.scheduler = scheduler
	e.done = done
	e.runErr = nil
	e.running.Store(true)
	e.startedAt.Store(e.now())

	e.logger.Info().
		Str("program", e.cfg.ProgramID).
		Dur("health_interval", e.cfg.HealthCheckInterval).
		Dur("pattern_interval", e.cfg.PatternAnalysisInterval).
		Int("sinks", len(e.sinks)).
		Msg("engine started")
	return nil
}

func every(d time.Duration) string {
	return "@every " + d.String()
}

func (e *Engine) applyWatchlist(ctx context.Context) {
	if e.watchlist == nil {
		return
	}
	for _, w := range e.watchlist.Wallets {
		e.whales.WatchWallet(ctx, w.Address, w.Label)
	}
	for _, c := range e.watchlist.Blacklist {
		e.launches.BlacklistCreator(c)
	}
	for _, c := range e.watchlist.Whitelist {
		e.launches.WhitelistCreator(c)
	}
}

// Wait blocks until the log subscription ends and returns why.
// A nil error means the engine was stopped.
func (e *Engine) Wait() error {
	e.mu.Lock()
	done := e.done
	e.mu.Unlock()
	if done == nil {
		return ErrNotRunning
	}

	<-done
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.runErr
}

// Stop cancels the subscription and the sweeps and waits for the sinks and
// in-flight resolutions to finish. Safe to call more than once.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running.Load() {
		e.mu.Unlock()
		return
	}
	cancel, scheduler := e.cancel, e.scheduler
	e.mu.Unlock()

	cancel()
	<-scheduler.Stop().Done()
	e.wg.Wait()

	e.running.Store(false)
	e.logger.Info().Msg("engine stopped")
}

// Running reports whether Start succeeded and Stop has not been called.
func (e *Engine) Running() bool {
	return e.running.Load()
}

// Bus exposes the alert bus for additional subscribers.
func (e *Engine) Bus() *alerts.Bus {
	return e.bus
}

// Control surface

// WatchToken starts lifecycle tracking of mint outside the launch stream.
// Token details come from storage, then the recent-launch index; unknown
// mints are tracked with placeholder metadata.
func (e *Engine) WatchToken(ctx context.Context, mint string) bool {
	return e.lifecycle.Watch(e.launchFor(ctx, mint))
}

func (e *Engine) launchFor(ctx context.Context, mint string) domain.TokenLaunch {
	rec, err := e.stores.Tokens.GetToken(ctx, mint)
	if err == nil {
		return domain.TokenLaunch{
			Signature:        rec.Signature,
			Mint:             rec.Mint,
			Name:             rec.Name,
			Symbol:           rec.Symbol,
			Creator:          rec.Creator,
			InitialLiquidity: rec.InitialLiquidity,
			TotalSupply:      rec.TotalSupply,
			CreatedAt:        rec.CreatedAt,
		}
	}
	if !errors.Is(err, storage.ErrNotFound) {
		e.logger.Warn().Err(err).Str("mint", mint).Msg("get token")
	}

	if l, ok := e.launches.Token(mint); ok {
		return l
	}

	info := alerts.UnknownToken(mint)
	return domain.TokenLaunch{
		Mint:        mint,
		Name:        info.Name,
		Symbol:      info.Symbol,
		TotalSupply: domain.DefaultTotalSupply,
		CreatedAt:   e.now(),
	}
}

// UnwatchToken stops lifecycle tracking of mint.
func (e *Engine) UnwatchToken(mint string) bool {
	return e.lifecycle.Unwatch(mint)
}

// TriggerRug flags a watched token as rugged by hand.
func (e *Engine) TriggerRug(ctx context.Context, mint, reason string) bool {
	return e.lifecycle.TriggerRug(ctx, mint, reason)
}

// WatchWallet tracks a labelled wallet.
func (e *Engine) WatchWallet(ctx context.Context, address, label string) bool {
	return e.whales.WatchWallet(ctx, address, label)
}

// UnwatchWallet stops tracking a wallet.
func (e *Engine) UnwatchWallet(address string) bool {
	return e.whales.UnwatchWallet(address)
}

// SetFilter updates a launch filter.
func (e *Engine) SetFilter(key string, value float64) error {
	return e.launches.SetFilter(key, value)
}

// BlacklistCreator rejects future launches by address.
func (e *Engine) BlacklistCreator(address string) {
	e.launches.BlacklistCreator(address)
}

// WhitelistCreator restricts launches to whitelisted creators.
func (e *Engine) WhitelistCreator(address string) {
	e.launches.WhitelistCreator(address)
}

// Query surface

// Stats returns aggregated counters.
func (e *Engine) Stats() Stats {
	return Stats{
		Running:         e.running.Load(),
		StartedAt:       e.startedAt.Load(),
		AlertsPublished: e.bus.LastID(),
		Runner:          e.runner.Stats(),
		Launches:        e.launches.Stats(),
		Lifecycle:       e.lifecycle.Stats(),
		Whales:          e.whales.Stats(),
	}
}

// WatchedTokens returns snapshots of every watched token.
func (e *Engine) WatchedTokens() []domain.MonitoredToken {
	return e.lifecycle.WatchedTokens()
}

// TokenDetails returns the lifecycle state of mint.
func (e *Engine) TokenDetails(mint string) (domain.MonitoredToken, bool) {
	return e.lifecycle.TokenDetails(mint)
}

// RecentTokens returns accepted launches, newest first.
func (e *Engine) RecentTokens(limit int) []domain.TokenLaunch {
	return e.launches.RecentTokens(limit)
}

// Whales returns tracked whales.
func (e *Engine) Whales() []domain.MonitoredWallet {
	return e.whales.Whales()
}

// WalletActivity returns the activity of a tracked wallet.
func (e *Engine) WalletActivity(address string) (domain.MonitoredWallet, bool) {
	return e.whales.WalletActivity(address)
}

// TokenFlow returns the rolling flow of mint.
func (e *Engine) TokenFlow(mint string) (domain.TokenFlow, bool) {
	return e.whales.TokenFlow(mint)
}

// TopMovers returns the mints with the largest absolute net flow.
func (e *Engine) TopMovers(limit int) []domain.TopMover {
	return e.whales.TopMovers(limit)
}

// RecentAlerts returns published alerts, newest first.
func (e *Engine) RecentAlerts(limit int) []domain.Alert {
	return e.bus.Recent(limit)
}
