package ingestion

import (
	"strings"

	"github.com/shopspring/decimal"

	"pumpguard/internal/solana"
)

const (
	logNamePrefix   = "Program log: name: "
	logSymbolPrefix = "Program log: symbol: "
)

// lamportsToSOL converts an absolute or signed lamport amount to SOL.
func lamportsToSOL(lamports int64) float64 {
	return float64(lamports) / solana.LamportsPerSOL
}

// feePayerDelta returns post[0]-pre[0] in lamports.
func feePayerDelta(meta *solana.TransactionMeta) (int64, bool) {
	return meta.LamportDelta(0)
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

// firstMint returns the mint of the first balance record.
func firstMint(balances []solana.TokenBalance) string {
	for _, b := range balances {
		if b.Mint != "" {
			return b.Mint
		}
	}
	return ""
}

// uniqueMints lists balance mints in first-seen order.
func uniqueMints(balances []solana.TokenBalance) []string {
	seen := make(map[string]struct{}, len(balances))
	var out []string
	for _, b := range balances {
		if b.Mint == "" {
			continue
		}
		if _, ok := seen[b.Mint]; ok {
			continue
		}
		seen[b.Mint] = struct{}{}
		out = append(out, b.Mint)
	}
	return out
}

// ownerBalance sums the UI amount held by owner for mint.
// Unparseable amounts count as zero.
func ownerBalance(balances []solana.TokenBalance, owner, mint string) decimal.Decimal {
	total := decimal.Zero
	for _, b := range balances {
		if b.Owner != owner || b.Mint != mint {
			continue
		}
		raw, err := decimal.NewFromString(b.Amount)
		if err != nil {
			continue
		}
		total = total.Add(raw.Shift(int32(-b.Decimals)))
	}
	return total
}

// tokenDelta is |post-pre| of owner's mint balance in UI units.
func tokenDelta(meta *solana.TransactionMeta, owner, mint string) float64 {
	pre := ownerBalance(meta.PreTokenBalances, owner, mint)
	post := ownerBalance(meta.PostTokenBalances, owner, mint)
	f, _ := post.Sub(pre).Abs().Float64()
	return f
}

// nameAndSymbol scans program logs for the create instruction's name and symbol lines.
func nameAndSymbol(logs []string) (name, symbol string) {
	for _, line := range logs {
		if v, ok := strings.CutPrefix(line, logNamePrefix); ok {
			name = strings.TrimSpace(v)
		}
		if v, ok := strings.CutPrefix(line, logSymbolPrefix); ok {
			symbol = strings.TrimSpace(v)
		}
	}
	return name, symbol
}
