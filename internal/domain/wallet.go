package domain

// MonitoredWallet is the activity state of a wallet.
// Corresponds to wallets table (RecentMovements is not persisted).
type MonitoredWallet struct {
	Address         string
	Label           string
	TotalVolume     float64 // SOL, every observed movement
	IsWhale         bool    // one-way
	RecentMovements []Movement
	LastActivity    int64 // ms
	FirstSeen       int64 // ms
}

// Clone returns a copy safe to hand out of the tracker.
func (w *MonitoredWallet) Clone() MonitoredWallet {
	c := *w
	c.RecentMovements = append([]Movement(nil), w.RecentMovements...)
	return c
}
