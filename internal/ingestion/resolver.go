package ingestion

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"pumpguard/internal/domain"
	"pumpguard/internal/observability"
	"pumpguard/internal/solana"
)

// Settle delays before a transaction is fetched.
const (
	DefaultTradeSettleDelay  = 300 * time.Millisecond
	DefaultLaunchSettleDelay = 500 * time.Millisecond
)

const (
	defaultName   = "Unknown"
	defaultSymbol = "UNK"
)

// Resolver turns classified signatures into movements, launches and liquidity changes.
// Every miss returns nil; nothing here is retried.
type Resolver struct {
	rpc         solana.RPCClient
	tradeDelay  time.Duration
	launchDelay time.Duration
	now         func() int64
	logger      zerolog.Logger
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithSettleDelays overrides the trade and launch settle delays.
func WithSettleDelays(trade, launch time.Duration) ResolverOption {
	return func(r *Resolver) {
		r.tradeDelay = trade
		r.launchDelay = launch
	}
}

// WithResolverClock overrides the millisecond clock used for observation times.
func WithResolverClock(now func() int64) ResolverOption {
	return func(r *Resolver) { r.now = now }
}

// WithResolverLogger sets the logger.
func WithResolverLogger(l zerolog.Logger) ResolverOption {
	return func(r *Resolver) { r.logger = l }
}

// NewResolver creates a resolver over rpc.
func NewResolver(rpc solana.RPCClient, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		rpc:         rpc,
		tradeDelay:  DefaultTradeSettleDelay,
		launchDelay: DefaultLaunchSettleDelay,
		now:         func() int64 { return time.Now().UnixMilli() },
		logger:      log.Logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With().Str("component", "resolver").Logger()
	return r
}

// ResolveMovement resolves a buy or sell. The mint comes from post balances
// for buys and pre balances for sells.
func (r *Resolver) ResolveMovement(ctx context.Context, signature string, direction domain.Direction) *domain.Movement {
	kind := domain.KindBuy
	if direction == domain.DirectionSell {
		kind = domain.KindSell
	}

	tx := r.fetch(ctx, signature, r.tradeDelay, kind)
	if tx == nil {
		return nil
	}

	wallet := tx.Message.FirstSigner()
	balances := tx.Meta.PostTokenBalances
	if direction == domain.DirectionSell {
		balances = tx.Meta.PreTokenBalances
	}
	mint := firstMint(balances)
	delta, ok := feePayerDelta(tx.Meta)
	if wallet == "" || mint == "" || !ok {
		r.miss(signature, kind, "missing wallet, mint or balances")
		return nil
	}

	return &domain.Movement{
		Signature:    signature,
		Wallet:       wallet,
		Mint:         mint,
		Direction:    direction,
		AmountNative: lamportsToSOL(abs64(delta)),
		AmountToken:  tokenDelta(tx.Meta, wallet, mint),
		ObservedAt:   r.now(),
	}
}

// ResolveLaunch resolves a token creation. Name and symbol come from the
// create logs, then from on-chain metadata, then default to Unknown/UNK.
func (r *Resolver) ResolveLaunch(ctx context.Context, signature string, logs []string) *domain.TokenLaunch {
	tx := r.fetch(ctx, signature, r.launchDelay, domain.KindCreate)
	if tx == nil {
		return nil
	}

	mint := firstMint(tx.Meta.PostTokenBalances)
	creator := tx.Message.FirstSigner()
	if mint == "" || creator == "" {
		r.miss(signature, domain.KindCreate, "missing mint or creator")
		return nil
	}

	name, symbol := nameAndSymbol(logs)
	if name == "" || symbol == "" {
		n, s := nameAndSymbol(tx.Meta.LogMessages)
		name, symbol = firstNonEmpty(name, n), firstNonEmpty(symbol, s)
	}
	if name == "" || symbol == "" {
		n, s := r.metadata(ctx, mint)
		name, symbol = firstNonEmpty(name, n), firstNonEmpty(symbol, s)
	}

	var liquidity float64
	if delta, ok := feePayerDelta(tx.Meta); ok {
		liquidity = lamportsToSOL(abs64(delta))
	}

	return &domain.TokenLaunch{
		Signature:        signature,
		Mint:             mint,
		Name:             firstNonEmpty(name, defaultName),
		Symbol:           firstNonEmpty(symbol, defaultSymbol),
		Creator:          creator,
		InitialLiquidity: liquidity,
		TotalSupply:      domain.DefaultTotalSupply,
		CreatedAt:        r.now(),
	}
}

// ResolveLiquidityChange resolves a liquidity withdrawal. NativeRemoved is
// signed: negative when the fee payer gained lamports.
func (r *Resolver) ResolveLiquidityChange(ctx context.Context, signature string) *domain.LiquidityChange {
	tx := r.fetch(ctx, signature, r.tradeDelay, domain.KindLiquidityChange)
	if tx == nil {
		return nil
	}

	mints := uniqueMints(tx.Meta.PreTokenBalances)
	delta, ok := feePayerDelta(tx.Meta)
	if len(mints) == 0 || !ok {
		r.miss(signature, domain.KindLiquidityChange, "no token balances")
		return nil
	}

	return &domain.LiquidityChange{
		Signature:     signature,
		Mints:         mints,
		NativeRemoved: lamportsToSOL(-delta),
		ObservedAt:    r.now(),
	}
}

// fetch waits the settle delay and fetches the transaction.
func (r *Resolver) fetch(ctx context.Context, signature string, delay time.Duration, kind domain.EventKind) *solana.Transaction {
	if delay > 0 {
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil
		case <-t.C:
		}
	}

	tx, err := r.rpc.GetTransaction(ctx, signature)
	if err != nil {
		r.logger.Debug().Err(err).Str("sig", signature).Msg("fetch transaction")
		observability.RecordResolutionMiss(kind.String())
		return nil
	}
	if tx == nil || tx.Meta == nil || tx.Message == nil {
		r.miss(signature, kind, "transaction not available")
		return nil
	}
	return tx
}

func (r *Resolver) miss(signature string, kind domain.EventKind, reason string) {
	r.logger.Debug().Str("sig", signature).Str("kind", kind.String()).Msg(reason)
	observability.RecordResolutionMiss(kind.String())
}

// metadata reads name and symbol from the Metaplex metadata account.
func (r *Resolver) metadata(ctx context.Context, mint string) (name, symbol string) {
	addr, err := solana.MetadataAddress(mint)
	if err != nil {
		return "", ""
	}
	info, err := r.rpc.GetAccountInfo(ctx, addr)
	if err != nil || info == nil {
		r.logger.Debug().Err(err).Str("mint", mint).Msg("metadata account unavailable")
		return "", ""
	}
	md, err := solana.ParseMetadata(info.Data)
	if err != nil {
		r.logger.Debug().Err(err).Str("mint", mint).Msg("parse metadata")
		return "", ""
	}
	return md.Name, md.Symbol
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
