package solana

import "context"

// LamportsPerSOL is the number of lamports in one SOL.
const LamportsPerSOL = 1_000_000_000

// RPCClient defines the Solana JSON-RPC calls used by the monitor.
type RPCClient interface {
	// GetTransaction retrieves a confirmed transaction by signature.
	// Returns nil, nil when the transaction is not (yet) available.
	GetTransaction(ctx context.Context, signature string) (*Transaction, error)

	// GetAccountInfo returns account info, or nil if the account does not exist.
	GetAccountInfo(ctx context.Context, pubkey string) (*AccountInfo, error)
}

// Transaction represents a Solana transaction with balance snapshots.
type Transaction struct {
	Slot      int64
	Signature string
	BlockTime int64 // Unix timestamp (seconds)
	Meta      *TransactionMeta
	Message   *TransactionMessage
}

// TransactionMeta contains transaction metadata.
type TransactionMeta struct {
	Err               interface{}
	LogMessages       []string
	PreBalances       []uint64 // lamports, indexed like Message.AccountKeys
	PostBalances      []uint64
	PreTokenBalances  []TokenBalance
	PostTokenBalances []TokenBalance
}

// TransactionMessage contains the resolved account list.
// Address-table lookups of v0 transactions are appended after the static keys.
type TransactionMessage struct {
	AccountKeys []AccountKey
}

// AccountKey is an account referenced by a transaction.
type AccountKey struct {
	Pubkey   string
	Signer   bool
	Writable bool
}

// TokenBalance is an SPL token balance snapshot for one token account.
type TokenBalance struct {
	AccountIndex int
	Mint         string
	Owner        string
	Amount       string // raw integer amount in base units
	Decimals     int
}

// FirstSigner returns the first account flagged as signer (the fee payer).
func (m *TransactionMessage) FirstSigner() string {
	if m == nil {
		return ""
	}
	for _, k := range m.AccountKeys {
		if k.Signer {
			return k.Pubkey
		}
	}
	return ""
}

// LamportDelta returns post-pre lamports for the account at index i.
// ok is false when either snapshot is missing.
func (m *TransactionMeta) LamportDelta(i int) (delta int64, ok bool) {
	if m == nil || i < 0 || i >= len(m.PreBalances) || i >= len(m.PostBalances) {
		return 0, false
	}
	return int64(m.PostBalances[i]) - int64(m.PreBalances[i]), true
}
