package whales

import (
	"context"
	"math"
	"sort"
	"sync"

	"pumpguard/internal/domain"
)

// PatternKind distinguishes accumulation from dump patterns.
type PatternKind string

// Pattern kinds
const (
	PatternAccumulation PatternKind = "accumulation"
	PatternDump         PatternKind = "dump"
)

// PatternSignal is a mint where whale-sized movements clustered in the window.
// Signals are logged, never alerted.
type PatternSignal struct {
	Mint     string
	Symbol   string
	Kind     PatternKind
	Count    int
	TotalSOL float64
}

type flowEntry struct {
	mu sync.Mutex
	f  *domain.TokenFlow
}

// lockFlow returns the locked flow for mint, creating it if absent.
func (t *Tracker) lockFlow(mint string) *flowEntry {
	t.flowsMu.RLock()
	if e, ok := t.flows[mint]; ok {
		e.mu.Lock()
		t.flowsMu.RUnlock()
		return e
	}
	t.flowsMu.RUnlock()

	t.flowsMu.Lock()
	defer t.flowsMu.Unlock()
	e, ok := t.flows[mint]
	if !ok {
		e = &flowEntry{f: domain.NewTokenFlow(mint)}
		t.flows[mint] = e
	}
	e.mu.Lock()
	return e
}

func (t *Tracker) trackFlow(mv domain.Movement, now, windowMs int64) {
	e := t.lockFlow(mv.Mint)
	defer e.mu.Unlock()

	f := e.f
	if mv.Direction == domain.DirectionBuy {
		f.Buys = append(f.Buys, mv)
		f.NetFlow += mv.AmountNative
		f.UniqueBuyers[mv.Wallet] = struct{}{}
	} else {
		f.Sells = append(f.Sells, mv)
		f.NetFlow -= mv.AmountNative
		f.UniqueSellers[mv.Wallet] = struct{}{}
	}
	prune(f, now-windowMs)
}

// prune keeps window entries observed strictly after cutoff.
func prune(f *domain.TokenFlow, cutoff int64) {
	f.Buys = keepAfter(f.Buys, cutoff)
	f.Sells = keepAfter(f.Sells, cutoff)
}

func keepAfter(ms []domain.Movement, cutoff int64) []domain.Movement {
	kept := ms[:0]
	for _, m := range ms {
		if m.ObservedAt > cutoff {
			kept = append(kept, m)
		}
	}
	return kept
}

func (t *Tracker) flowEntries() []*flowEntry {
	t.flowsMu.RLock()
	defer t.flowsMu.RUnlock()
	out := make([]*flowEntry, 0, len(t.flows))
	for _, e := range t.flows {
		out = append(out, e)
	}
	return out
}

// AnalyzePatterns prunes every flow, logs accumulation and dump patterns and
// drops flows left empty. It never publishes alerts.
func (t *Tracker) AnalyzePatterns(ctx context.Context) []PatternSignal {
	cfg := t.config()
	cutoff := t.now() - cfg.WindowMs

	var signals []PatternSignal
	var empty []string
	for _, e := range t.flowEntries() {
		e.mu.Lock()
		prune(e.f, cutoff)
		mint := e.f.Mint
		if e.f.Empty() {
			empty = append(empty, mint)
		}
		buyCount, buySOL := whaleSized(e.f.Buys, cfg.WhaleThresholdSOL)
		sellCount, sellSOL := whaleSized(e.f.Sells, cfg.WhaleThresholdSOL)
		e.mu.Unlock()

		if buyCount >= cfg.MinTxForPattern {
			signals = append(signals, PatternSignal{Mint: mint, Kind: PatternAccumulation, Count: buyCount, TotalSOL: buySOL})
		}
		if sellCount >= cfg.MinTxForPattern {
			signals = append(signals, PatternSignal{Mint: mint, Kind: PatternDump, Count: sellCount, TotalSOL: sellSOL})
		}
	}

	for i := range signals {
		s := &signals[i]
		s.Symbol = t.tokenInfo(ctx, s.Mint).Symbol
		ev := t.logger.Info()
		if s.Kind == PatternDump {
			ev = t.logger.Warn()
		}
		ev.Str("mint", s.Mint).
			Str("pattern", string(s.Kind)).
			Int("count", s.Count).
			Float64("total_sol", s.TotalSOL).
			Msgf("%s pattern detected for %s: %d whale movements totaling %.2f SOL", s.Kind, s.Symbol, s.Count, s.TotalSOL)
	}

	if len(empty) > 0 {
		t.flowsMu.Lock()
		for _, mint := range empty {
			if e, ok := t.flows[mint]; ok {
				e.mu.Lock()
				if e.f.Empty() {
					delete(t.flows, mint)
				}
				e.mu.Unlock()
			}
		}
		t.flowsMu.Unlock()
	}

	sort.Slice(signals, func(i, j int) bool {
		if signals[i].Mint != signals[j].Mint {
			return signals[i].Mint < signals[j].Mint
		}
		return signals[i].Kind < signals[j].Kind
	})
	return signals
}

func whaleSized(ms []domain.Movement, threshold float64) (int, float64) {
	var n int
	var sum float64
	for _, m := range ms {
		if m.AmountNative >= threshold {
			n++
			sum += m.AmountNative
		}
	}
	return n, sum
}

// TokenFlow returns a copy of mint's flow pruned to the current window.
func (t *Tracker) TokenFlow(mint string) (domain.TokenFlow, bool) {
	t.flowsMu.RLock()
	e, ok := t.flows[mint]
	t.flowsMu.RUnlock()
	if !ok {
		return domain.TokenFlow{}, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	prune(e.f, t.now()-t.config().WindowMs)
	return e.f.Clone(), true
}

// TopMovers ranks mints by absolute net flow. limit <= 0 returns all.
func (t *Tracker) TopMovers(limit int) []domain.TopMover {
	cutoff := t.now() - t.config().WindowMs

	var movers []domain.TopMover
	for _, e := range t.flowEntries() {
		e.mu.Lock()
		prune(e.f, cutoff)
		m := domain.TopMover{
			Mint:    e.f.Mint,
			NetFlow: e.f.NetFlow,
			Buyers:  len(e.f.UniqueBuyers),
			Sellers: len(e.f.UniqueSellers),
		}
		for _, b := range e.f.Buys {
			m.Volume += b.AmountNative
		}
		for _, s := range e.f.Sells {
			m.Volume += s.AmountNative
		}
		e.mu.Unlock()
		movers = append(movers, m)
	}

	sort.Slice(movers, func(i, j int) bool {
		ai, aj := math.Abs(movers[i].NetFlow), math.Abs(movers[j].NetFlow)
		if ai != aj {
			return ai > aj
		}
		return movers[i].Mint < movers[j].Mint
	})
	if limit > 0 && len(movers) > limit {
		movers = movers[:limit]
	}
	return movers
}
