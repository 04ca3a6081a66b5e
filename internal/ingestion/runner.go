package ingestion

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"pumpguard/internal/discovery"
	"pumpguard/internal/domain"
	"pumpguard/internal/observability"
	"pumpguard/internal/solana"
)

// ErrSubscriptionClosed is returned by Run when the log stream ends before ctx.
var ErrSubscriptionClosed = errors.New("log subscription closed")

// LaunchHandler consumes resolved token creations.
type LaunchHandler interface {
	OnLaunch(ctx context.Context, l domain.TokenLaunch) bool
}

// MovementHandler consumes resolved buys and sells.
type MovementHandler interface {
	OnMovement(ctx context.Context, m domain.Movement)
}

// LiquidityHandler consumes resolved liquidity withdrawals.
type LiquidityHandler interface {
	OnLiquidityChange(ctx context.Context, c domain.LiquidityChange)
}

// RunnerStats is a point-in-time copy of runner counters.
type RunnerStats struct {
	Received   uint64 // notifications received
	Failed     uint64 // notifications for failed transactions
	Unmatched  uint64 // notifications no rule matched
	Dispatched uint64 // resolutions started
	Running    bool
}

// Runner streams program logs, classifies them and dispatches resolutions.
type Runner struct {
	ws          solana.WSClient
	programID   string
	classifier  *discovery.Classifier
	resolver    *Resolver
	launches    LaunchHandler
	movements   []MovementHandler
	liquidity   []LiquidityHandler
	concurrency int
	stopTimeout time.Duration
	logger      zerolog.Logger

	received   atomic.Uint64
	failed     atomic.Uint64
	unmatched  atomic.Uint64
	dispatched atomic.Uint64
	running    atomic.Bool
}

// RunnerOptions contains configuration for creating a Runner.
type RunnerOptions struct {
	WS          solana.WSClient
	ProgramID   string
	Classifier  *discovery.Classifier // Default: discovery.NewClassifier()
	Resolver    *Resolver
	Launches    LaunchHandler
	Movements   []MovementHandler
	Liquidity   []LiquidityHandler
	Concurrency int           // Default: 32 in-flight resolutions
	StopTimeout time.Duration // Default: 5s for logsUnsubscribe
	Logger      *zerolog.Logger
}

// NewRunner creates a new ingestion runner.
func NewRunner(opts RunnerOptions) *Runner {
	classifier := opts.Classifier
	if classifier == nil {
		classifier = discovery.NewClassifier()
	}

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 32
	}

	stopTimeout := opts.StopTimeout
	if stopTimeout <= 0 {
		stopTimeout = 5 * time.Second
	}

	logger := log.Logger
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	return &Runner{
		ws:          opts.WS,
		programID:   opts.ProgramID,
		classifier:  classifier,
		resolver:    opts.Resolver,
		launches:    opts.Launches,
		movements:   opts.Movements,
		liquidity:   opts.Liquidity,
		concurrency: concurrency,
		stopTimeout: stopTimeout,
		logger:      logger.With().Str("component", "runner").Logger(),
	}
}

// Run subscribes to the program's logs and blocks until ctx is cancelled
// or the subscription ends. In-flight resolutions are awaited before return.
func (r *Runner) Run(ctx context.Context) error {
	sub, err := r.ws.SubscribeLogs(ctx, solana.LogsFilter{Mentions: []string{r.programID}})
	if err != nil {
		return fmt.Errorf("subscribe logs: %w", err)
	}

	r.running.Store(true)
	defer r.running.Store(false)
	r.logger.Info().Str("program", r.programID).Msg("subscribed to program logs")

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	var runErr error
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case n, ok := <-sub.C:
			if !ok {
				runErr = ErrSubscriptionClosed
				break loop
			}
			r.handle(gctx, g, n)
		}
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), r.stopTimeout)
	defer cancel()
	if err := sub.Unsubscribe(stopCtx); err != nil {
		r.logger.Warn().Err(err).Msg("unsubscribe logs")
	}

	_ = g.Wait()
	r.logger.Info().Msg("runner stopped")
	return runErr
}

// handle classifies a notification and schedules one resolution per matched kind.
// g.Go blocks while the limit is reached.
func (r *Runner) handle(ctx context.Context, g *errgroup.Group, n solana.LogNotification) {
	r.received.Add(1)
	observability.RecordEventSeen(time.Now().Unix())

	if n.Err != nil {
		r.failed.Add(1)
		return
	}

	kinds := r.classifier.Classify(n.Logs)
	if kinds.Empty() {
		r.unmatched.Add(1)
		return
	}

	for _, kind := range kinds.Kinds() {
		r.dispatched.Add(1)
		g.Go(func() error {
			r.resolve(ctx, kind, n)
			return nil
		})
	}
}

func (r *Runner) resolve(ctx context.Context, kind domain.EventKind, n solana.LogNotification) {
	switch kind {
	case domain.KindCreate:
		if r.launches == nil {
			return
		}
		if l := r.resolver.ResolveLaunch(ctx, n.Signature, n.Logs); l != nil {
			r.launches.OnLaunch(ctx, *l)
		}

	case domain.KindBuy, domain.KindSell:
		if len(r.movements) == 0 {
			return
		}
		dir := domain.DirectionBuy
		if kind == domain.KindSell {
			dir = domain.DirectionSell
		}
		if m := r.resolver.ResolveMovement(ctx, n.Signature, dir); m != nil {
			for _, h := range r.movements {
				h.OnMovement(ctx, *m)
			}
		}

	case domain.KindLiquidityChange:
		if len(r.liquidity) == 0 {
			return
		}
		if c := r.resolver.ResolveLiquidityChange(ctx, n.Signature); c != nil {
			for _, h := range r.liquidity {
				h.OnLiquidityChange(ctx, *c)
			}
		}
	}
}

// Stats returns runner counters.
func (r *Runner) Stats() RunnerStats {
	return RunnerStats{
		Received:   r.received.Load(),
		Failed:     r.failed.Load(),
		Unmatched:  r.unmatched.Load(),
		Dispatched: r.dispatched.Load(),
		Running:    r.running.Load(),
	}
}
