package domain

// DefaultTotalSupply is the fixed pump.fun token supply in UI units.
const DefaultTotalSupply = 1_000_000_000

// TokenLaunch is a resolved token creation.
type TokenLaunch struct {
	Signature        string  // creation transaction signature
	Mint             string  // token mint address
	Name             string  // defaults to "Unknown"
	Symbol           string  // defaults to "UNK"
	Creator          string  // first signer of the create transaction
	InitialLiquidity float64 // SOL paid by the creator
	TotalSupply      float64 // UI units
	CreatedAt        int64   // Unix timestamp in milliseconds
}

// TokenRecord is the persisted form of a detected token.
// Corresponds to tokens table.
type TokenRecord struct {
	Mint             string
	Name             string
	Symbol           string
	Creator          string
	Signature        string
	InitialLiquidity float64
	TotalSupply      float64
	CreatedAt        int64  // launch time (ms)
	IsRugged         bool
	RugReason        string
	RuggedAt         *int64 // nullable, ms
}

// RecordFromLaunch converts a launch to its persisted form.
func RecordFromLaunch(l TokenLaunch) TokenRecord {
	return TokenRecord{
		Mint:             l.Mint,
		Name:             l.Name,
		Symbol:           l.Symbol,
		Creator:          l.Creator,
		Signature:        l.Signature,
		InitialLiquidity: l.InitialLiquidity,
		TotalSupply:      l.TotalSupply,
		CreatedAt:        l.CreatedAt,
	}
}

// MonitoredToken is the lifecycle state of a watched token.
type MonitoredToken struct {
	Mint             string
	Symbol           string
	Name             string
	CreatorWallet    string
	TotalSupply      float64
	InitialLiquidity float64 // SOL
	CurrentLiquidity float64 // SOL, last probe
	SuspicionScore   int     // never decreases
	SellHistory      []Movement
	IsRugged         bool // one-way
	RugReason        string
	LastHealthCheck  int64 // ms, last probe attempt
	WatchedAt        int64 // ms
	LastActivity     int64 // ms
}

// Clone returns a copy safe to hand out of the tracker.
func (t *MonitoredToken) Clone() MonitoredToken {
	c := *t
	c.SellHistory = append([]Movement(nil), t.SellHistory...)
	return c
}

// LiquidityChange is a resolved liquidity-withdrawal transaction.
type LiquidityChange struct {
	Signature     string
	Mints         []string // mints of the pre token balances
	NativeRemoved float64  // (pre[0]-post[0])/1e9, signed
	ObservedAt    int64    // ms
}

// LiquidityProbe is one bonding-curve balance reading.
// Corresponds to liquidity_probes table.
type LiquidityProbe struct {
	Mint        string
	Account     string  // probed bonding-curve address
	BalanceSOL  float64 // balance at probe time
	PreviousSOL float64 // tracker's liquidity before the probe
	DropPercent float64 // 0 when liquidity grew
	ObservedAt  int64   // ms
}
