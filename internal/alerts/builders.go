package alerts

import (
	"fmt"
	"strings"

	"pumpguard/internal/domain"
)

// TokenInfo is the token context attached to alerts.
type TokenInfo struct {
	Mint             string
	Name             string
	Symbol           string
	Creator          string
	InitialLiquidity *float64 // nil when unknown
}

// UnknownToken is the fallback context for mints the system has not seen launch.
func UnknownToken(mint string) TokenInfo {
	return TokenInfo{Mint: mint, Name: "UNKNOWN", Symbol: "UNKNOWN"}
}

func (t TokenInfo) payload() map[string]interface{} {
	p := map[string]interface{}{
		"mint":    t.Mint,
		"name":    t.Name,
		"symbol":  t.Symbol,
		"creator": t.Creator,
	}
	if t.InitialLiquidity != nil {
		p["initial_liquidity"] = *t.InitialLiquidity
	}
	return p
}

// NewTokenAlert announces an accepted launch.
func NewTokenAlert(t TokenInfo) domain.Alert {
	liquidity := "Unknown"
	if t.InitialLiquidity != nil {
		liquidity = fmt.Sprintf("%.2f SOL", *t.InitialLiquidity)
	}
	return domain.Alert{
		Kind:     domain.AlertNewToken,
		Signal:   domain.SignalLaunch,
		Severity: domain.SeverityLow,
		Title:    "New Token Detected",
		Message: fmt.Sprintf("Token: %s (%s)\nMint: `%s`\nCreator: `%s`\nLiquidity: %s",
			t.Name, t.Symbol, t.Mint, t.Creator, liquidity),
		Mint:    t.Mint,
		Wallet:  t.Creator,
		Payload: t.payload(),
	}
}

// RugAlert reports a rug transition.
func RugAlert(t TokenInfo, reason string, severity domain.Severity, signal domain.Signal) domain.Alert {
	return domain.Alert{
		Kind:     domain.AlertRug,
		Signal:   signal,
		Severity: severity,
		Title:    "RUG PULL DETECTED - " + strings.ToUpper(string(severity)),
		Message:  tokenReasonMessage(t, reason),
		Mint:     t.Mint,
		Payload: map[string]interface{}{
			"token":    t.payload(),
			"reason":   reason,
			"severity": string(severity),
		},
	}
}

// SuspiciousAlert reports a scoring signal that did not by itself rug the token.
func SuspiciousAlert(t TokenInfo, reason string, severity domain.Severity, signal domain.Signal) domain.Alert {
	return domain.Alert{
		Kind:     domain.AlertSuspicious,
		Signal:   signal,
		Severity: severity,
		Title:    "Suspicious Activity",
		Message:  tokenReasonMessage(t, reason),
		Mint:     t.Mint,
		Payload: map[string]interface{}{
			"token":  t.payload(),
			"reason": reason,
		},
	}
}

// WhaleAlert reports a single movement at or above the whale threshold.
func WhaleAlert(direction domain.Direction, wallet string, t TokenInfo, amountSOL, amountToken float64) domain.Alert {
	kind, action := domain.AlertWhaleBuy, "ACCUMULATING"
	if direction == domain.DirectionSell {
		kind, action = domain.AlertWhaleSell, "DUMPING"
	}
	return domain.Alert{
		Kind:     kind,
		Signal:   domain.SignalWhale,
		Severity: domain.SeverityMedium,
		Title:    "Whale " + action,
		Message: fmt.Sprintf("Wallet: `%s`\nToken: %s\nAmount: %.2f SOL (%d tokens)",
			wallet, t.Symbol, amountSOL, int64(amountToken)),
		Mint:   t.Mint,
		Wallet: wallet,
		Payload: map[string]interface{}{
			"wallet":        wallet,
			"token":         t.payload(),
			"amount_sol":    amountSOL,
			"amount_tokens": amountToken,
			"type":          string(direction),
		},
	}
}

func tokenReasonMessage(t TokenInfo, reason string) string {
	return fmt.Sprintf("Token: %s\nMint: `%s`\nReason: %s", t.Symbol, t.Mint, reason)
}
