package discovery

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"pumpguard/internal/alerts"
	"pumpguard/internal/domain"
	"pumpguard/internal/observability"
	"pumpguard/internal/storage"
)

const recentCap = 1000

// Filter keys accepted by SetFilter.
const (
	FilterMinLiquidity = "min_liquidity_sol"
	FilterMaxLiquidity = "max_liquidity_sol"
)

// ErrUnknownFilter is returned by SetFilter for keys it does not recognize.
var ErrUnknownFilter = errors.New("unknown filter")

// LaunchConfig holds the launch filters.
type LaunchConfig struct {
	MinLiquiditySOL float64
	MaxLiquiditySOL float64 // 0 = no upper bound
	AlertNewTokens  bool
}

// LaunchStats is a snapshot of monitor counters.
type LaunchStats struct {
	TokensDetected uint64
	TokensFiltered uint64
	AlertsSent     uint64
	TokensTracked  int
}

// LaunchMonitor filters resolved launches, persists the accepted ones,
// announces them and hands them to the lifecycle tracker over a channel.
type LaunchMonitor struct {
	tokens storage.TokenStore
	alerts alerts.Publisher
	out    chan domain.TokenLaunch
	logger zerolog.Logger

	filterMu  sync.RWMutex
	cfg       LaunchConfig
	blacklist map[string]struct{}
	whitelist map[string]struct{}

	recentMu sync.RWMutex
	recent   map[string]domain.TokenLaunch

	detected   atomic.Uint64
	filtered   atomic.Uint64
	alertsSent atomic.Uint64
}

// LaunchOption configures a LaunchMonitor.
type LaunchOption func(*LaunchMonitor)

// WithLaunchLogger sets the logger.
func WithLaunchLogger(l zerolog.Logger) LaunchOption {
	return func(m *LaunchMonitor) { m.logger = l }
}

// WithLaunchBuffer sets the capacity of the accepted-launch channel.
func WithLaunchBuffer(n int) LaunchOption {
	return func(m *LaunchMonitor) { m.out = make(chan domain.TokenLaunch, n) }
}

// NewLaunchMonitor creates a monitor.
func NewLaunchMonitor(cfg LaunchConfig, tokens storage.TokenStore, pub alerts.Publisher, opts ...LaunchOption) *LaunchMonitor {
	m := &LaunchMonitor{
		tokens:    tokens,
		alerts:    pub,
		out:       make(chan domain.TokenLaunch, 100),
		logger:    log.Logger,
		cfg:       cfg,
		blacklist: make(map[string]struct{}),
		whitelist: make(map[string]struct{}),
		recent:    make(map[string]domain.TokenLaunch),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With().Str("component", "launch").Logger()
	return m
}

// Launches is the channel of accepted launches.
func (m *LaunchMonitor) Launches() <-chan domain.TokenLaunch {
	return m.out
}

// OnLaunch applies the filters to a resolved launch. Accepted launches are
// persisted, indexed, announced and published; it reports whether l was accepted.
// Publication blocks until the channel has room or ctx is done.
func (m *LaunchMonitor) OnLaunch(ctx context.Context, l domain.TokenLaunch) bool {
	if reason := m.reject(l); reason != "" {
		m.filtered.Add(1)
		observability.RecordTokenFiltered(reason)
		m.logger.Debug().Str("mint", l.Mint).Str("reason", reason).Msg("launch filtered")
		return false
	}

	m.recentMu.RLock()
	_, seen := m.recent[l.Mint]
	m.recentMu.RUnlock()
	if seen {
		return false
	}

	rec := domain.RecordFromLaunch(l)
	if err := m.tokens.SaveToken(ctx, &rec); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			m.logger.Debug().Str("mint", l.Mint).Msg("launch already stored")
			return false
		}
		m.logger.Error().Err(err).Str("mint", l.Mint).Msg("save token")
	}

	m.remember(l)
	m.detected.Add(1)
	observability.RecordTokenDetected()
	m.logger.Info().
		Str("mint", observability.Abbrev(l.Mint)).
		Str("creator", observability.Abbrev(l.Creator)).
		Str("symbol", l.Symbol).
		Float64("liquidity_sol", l.InitialLiquidity).
		Msgf("new token %s (%s)", l.Name, l.Symbol)

	m.filterMu.RLock()
	announce := m.cfg.AlertNewTokens
	m.filterMu.RUnlock()
	if announce {
		liq := l.InitialLiquidity
		m.alerts.Publish(alerts.NewTokenAlert(alerts.TokenInfo{
			Mint:             l.Mint,
			Name:             l.Name,
			Symbol:           l.Symbol,
			Creator:          l.Creator,
			InitialLiquidity: &liq,
		}))
		m.alertsSent.Add(1)
	}

	select {
	case m.out <- l:
	case <-ctx.Done():
		m.logger.Warn().Str("mint", l.Mint).Msg("launch not handed off, shutting down")
	}
	return true
}

func (m *LaunchMonitor) reject(l domain.TokenLaunch) string {
	m.filterMu.RLock()
	defer m.filterMu.RUnlock()

	if _, ok := m.blacklist[l.Creator]; ok {
		return "blacklist"
	}
	if len(m.whitelist) > 0 {
		if _, ok := m.whitelist[l.Creator]; !ok {
			return "whitelist"
		}
	}
	if l.InitialLiquidity < m.cfg.MinLiquiditySOL {
		return "min_liquidity"
	}
	if m.cfg.MaxLiquiditySOL > 0 && l.InitialLiquidity > m.cfg.MaxLiquiditySOL {
		return "max_liquidity"
	}
	return ""
}

// remember indexes l; beyond recentCap the oldest half is evicted.
func (m *LaunchMonitor) remember(l domain.TokenLaunch) {
	m.recentMu.Lock()
	defer m.recentMu.Unlock()

	m.recent[l.Mint] = l
	if len(m.recent) <= recentCap {
		return
	}

	all := make([]domain.TokenLaunch, 0, len(m.recent))
	for _, v := range m.recent {
		all = append(all, v)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt < all[j].CreatedAt })
	for _, v := range all[:len(all)/2] {
		delete(m.recent, v.Mint)
	}
}

// SetFilter updates a numeric filter.
func (m *LaunchMonitor) SetFilter(key string, value float64) error {
	m.filterMu.Lock()
	defer m.filterMu.Unlock()

	switch key {
	case FilterMinLiquidity:
		m.cfg.MinLiquiditySOL = value
	case FilterMaxLiquidity:
		m.cfg.MaxLiquiditySOL = value
	default:
		return fmt.Errorf("%w: %s", ErrUnknownFilter, key)
	}
	m.logger.Info().Str("key", key).Float64("value", value).Msg("filter updated")
	return nil
}

// BlacklistCreator rejects future launches by address.
func (m *LaunchMonitor) BlacklistCreator(address string) {
	m.filterMu.Lock()
	m.blacklist[address] = struct{}{}
	m.filterMu.Unlock()
	m.logger.Info().Str("creator", address).Msg("creator blacklisted")
}

// WhitelistCreator adds address to the whitelist. A non-empty whitelist
// rejects launches by every other creator.
func (m *LaunchMonitor) WhitelistCreator(address string) {
	m.filterMu.Lock()
	m.whitelist[address] = struct{}{}
	m.filterMu.Unlock()
	m.logger.Info().Str("creator", address).Msg("creator whitelisted")
}

// RecentTokens returns up to limit indexed launches, newest first.
func (m *LaunchMonitor) RecentTokens(limit int) []domain.TokenLaunch {
	m.recentMu.RLock()
	out := make([]domain.TokenLaunch, 0, len(m.recent))
	for _, v := range m.recent {
		out = append(out, v)
	}
	m.recentMu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt > out[j].CreatedAt
		}
		return out[i].Mint < out[j].Mint
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Token returns an indexed launch.
func (m *LaunchMonitor) Token(mint string) (domain.TokenLaunch, bool) {
	m.recentMu.RLock()
	defer m.recentMu.RUnlock()
	l, ok := m.recent[mint]
	return l, ok
}

// Stats returns a snapshot of the counters.
func (m *LaunchMonitor) Stats() LaunchStats {
	m.recentMu.RLock()
	tracked := len(m.recent)
	m.recentMu.RUnlock()

	return LaunchStats{
		TokensDetected: m.detected.Load(),
		TokensFiltered: m.filtered.Load(),
		AlertsSent:     m.alertsSent.Load(),
		TokensTracked:  tracked,
	}
}
