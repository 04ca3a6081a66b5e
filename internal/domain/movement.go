package domain

// Direction is the side of a movement relative to the wallet.
type Direction string

// Direction constants
const (
	DirectionBuy  Direction = "buy"
	DirectionSell Direction = "sell"
)

// Movement is a resolved buy or sell of a token by a wallet.
// Immutable once produced by the resolver.
type Movement struct {
	Signature    string    // transaction signature
	Wallet       string    // first signer of the transaction
	Mint         string    // token mint address
	Direction    Direction // buy | sell
	AmountNative float64   // SOL moved by the wallet
	AmountToken  float64   // token units moved (UI amount)
	ObservedAt   int64     // Unix timestamp in milliseconds
}
