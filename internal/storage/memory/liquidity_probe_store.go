package memory

import (
	"context"
	"sort"
	"sync"

	"pumpguard/internal/domain"
	"pumpguard/internal/storage"
)

// LiquidityProbeStore is an in-memory implementation of storage.LiquidityProbeStore.
type LiquidityProbeStore struct {
	mu   sync.RWMutex
	data map[string]map[int64]*domain.LiquidityProbe // mint -> observed_at -> probe
}

// NewLiquidityProbeStore creates a new in-memory probe store.
func NewLiquidityProbeStore() *LiquidityProbeStore {
	return &LiquidityProbeStore{
		data: make(map[string]map[int64]*domain.LiquidityProbe),
	}
}

// InsertProbe appends a probe. Returns ErrDuplicateKey if (mint, observed_at) exists.
func (s *LiquidityProbeStore) InsertProbe(_ context.Context, p *domain.LiquidityProbe) error {
	if p == nil || p.Mint == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	byTime, ok := s.data[p.Mint]
	if !ok {
		byTime = make(map[int64]*domain.LiquidityProbe)
		s.data[p.Mint] = byTime
	}
	if _, exists := byTime[p.ObservedAt]; exists {
		return storage.ErrDuplicateKey
	}
	copy := *p
	byTime[p.ObservedAt] = &copy
	return nil
}

// GetByMint retrieves all probes for a mint, ordered by observed time ASC.
func (s *LiquidityProbeStore) GetByMint(_ context.Context, mint string) ([]*domain.LiquidityProbe, error) {
	s.mu.RLock()
	result := make([]*domain.LiquidityProbe, 0, len(s.data[mint]))
	for _, p := range s.data[mint] {
		copy := *p
		result = append(result, &copy)
	}
	s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		return result[i].ObservedAt < result[j].ObservedAt
	})
	return result, nil
}

var _ storage.LiquidityProbeStore = (*LiquidityProbeStore)(nil)
