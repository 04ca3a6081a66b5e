package domain

// AlertKind is the category of an alert.
type AlertKind string

// Alert kinds
const (
	AlertNewToken   AlertKind = "new_token"
	AlertRug        AlertKind = "rug"
	AlertWhaleBuy   AlertKind = "whale_buy"
	AlertWhaleSell  AlertKind = "whale_sell"
	AlertSuspicious AlertKind = "suspicious"
)

// Severity of an alert.
type Severity string

// Severity levels
const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Signal names the detector that produced an alert.
type Signal string

// Signals
const (
	SignalLaunch       Signal = "launch"
	SignalDevDump      Signal = "dev_dump"
	SignalDevSell      Signal = "dev_sell"
	SignalRapidSelling Signal = "rapid_selling"
	SignalLargeSell    Signal = "large_sell"
	SignalScore        Signal = "score_escalation"
	SignalLiquidity    Signal = "liquidity_drop"
	SignalLPRemoval    Signal = "lp_removal"
	SignalManual       Signal = "manual"
	SignalWhale        Signal = "whale"
)

// Alert is an emitted risk signal.
// Corresponds to alerts table.
type Alert struct {
	ID        uint64 // assigned by the bus, monotonic
	Kind      AlertKind
	Signal    Signal
	Severity  Severity
	Title     string
	Message   string
	Mint      string // empty when not token-scoped
	Wallet    string // empty when not wallet-scoped
	Payload   map[string]interface{}
	CreatedAt int64 // ms, assigned by the bus
}
