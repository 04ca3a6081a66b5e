package ingestion

import (
	"context"
	"errors"
	"fmt"

	"pumpguard/internal/solana"
)

// ErrCurveClosed is returned when a token's bonding-curve account no longer exists.
var ErrCurveClosed = errors.New("bonding curve account closed")

// CurveProber reads a token's bonding-curve balance.
type CurveProber struct {
	rpc       solana.RPCClient
	programID string
}

// NewCurveProber creates a prober for curves owned by programID.
func NewCurveProber(rpc solana.RPCClient, programID string) *CurveProber {
	return &CurveProber{rpc: rpc, programID: programID}
}

// Probe returns the curve account and its balance in SOL.
// A closed curve returns ErrCurveClosed, never a zero balance.
func (p *CurveProber) Probe(ctx context.Context, mint string) (string, float64, error) {
	account, err := solana.BondingCurveAddress(mint, p.programID)
	if err != nil {
		return "", 0, fmt.Errorf("derive bonding curve: %w", err)
	}
	info, err := p.rpc.GetAccountInfo(ctx, account)
	if err != nil {
		return account, 0, fmt.Errorf("get account info %s: %w", account, err)
	}
	if info == nil {
		return account, 0, fmt.Errorf("%s: %w", account, ErrCurveClosed)
	}
	return account, float64(info.Lamports) / solana.LamportsPerSOL, nil
}
