package memory

import (
	"context"
	"sort"
	"sync"

	"pumpguard/internal/domain"
	"pumpguard/internal/storage"
)

// WalletStore is an in-memory implementation of storage.WalletStore.
type WalletStore struct {
	mu   sync.RWMutex
	data map[string]*domain.MonitoredWallet // keyed by address
}

// NewWalletStore creates a new in-memory wallet store.
func NewWalletStore() *WalletStore {
	return &WalletStore{
		data: make(map[string]*domain.MonitoredWallet),
	}
}

// SaveWallet upserts a wallet without its recent movements.
func (s *WalletStore) SaveWallet(_ context.Context, w *domain.MonitoredWallet) error {
	if w == nil || w.Address == "" {
		return storage.ErrInvalidInput
	}

	copy := *w
	copy.RecentMovements = nil

	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.data[w.Address]; ok {
		copy.IsWhale = copy.IsWhale || prev.IsWhale
		if prev.FirstSeen != 0 && (copy.FirstSeen == 0 || prev.FirstSeen < copy.FirstSeen) {
			copy.FirstSeen = prev.FirstSeen
		}
	}
	s.data[w.Address] = &copy
	return nil
}

// GetWhales returns every whale, highest volume first.
func (s *WalletStore) GetWhales(_ context.Context) ([]*domain.MonitoredWallet, error) {
	s.mu.RLock()
	var result []*domain.MonitoredWallet
	for _, w := range s.data {
		if w.IsWhale {
			copy := *w
			result = append(result, &copy)
		}
	}
	s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if result[i].TotalVolume != result[j].TotalVolume {
			return result[i].TotalVolume > result[j].TotalVolume
		}
		return result[i].Address < result[j].Address
	})
	return result, nil
}

var _ storage.WalletStore = (*WalletStore)(nil)
