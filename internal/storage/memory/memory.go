// Package memory provides in-memory storage backends.
package memory

import "pumpguard/internal/storage"

// NewStores returns a full set of in-memory stores.
func NewStores() storage.Stores {
	return storage.Stores{
		Tokens:    NewTokenStore(),
		Movements: NewMovementStore(),
		Wallets:   NewWalletStore(),
		Alerts:    NewAlertStore(),
		Probes:    NewLiquidityProbeStore(),
	}
}
