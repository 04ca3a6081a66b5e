package memory

import (
	"context"
	"sort"
	"sync"

	"pumpguard/internal/domain"
	"pumpguard/internal/storage"
)

// MovementStore is an in-memory implementation of storage.MovementStore.
type MovementStore struct {
	mu   sync.RWMutex
	data map[string][]*domain.Movement // keyed by mint
	seen map[movementKey]struct{}
}

type movementKey struct {
	signature string
	wallet    string
	direction domain.Direction
}

// NewMovementStore creates a new in-memory movement store.
func NewMovementStore() *MovementStore {
	return &MovementStore{
		data: make(map[string][]*domain.Movement),
		seen: make(map[movementKey]struct{}),
	}
}

// SaveMovement appends a movement. Returns ErrDuplicateKey if it was saved before.
func (s *MovementStore) SaveMovement(_ context.Context, m *domain.Movement) error {
	if m == nil || m.Signature == "" || m.Mint == "" {
		return storage.ErrInvalidInput
	}

	key := movementKey{m.Signature, m.Wallet, m.Direction}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.seen[key]; exists {
		return storage.ErrDuplicateKey
	}
	s.seen[key] = struct{}{}

	copy := *m
	s.data[m.Mint] = append(s.data[m.Mint], &copy)
	return nil
}

// GetByMint retrieves all movements for a mint, ordered by observed time ASC.
func (s *MovementStore) GetByMint(_ context.Context, mint string) ([]*domain.Movement, error) {
	s.mu.RLock()
	src := s.data[mint]
	result := make([]*domain.Movement, len(src))
	for i, m := range src {
		copy := *m
		result[i] = &copy
	}
	s.mu.RUnlock()

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].ObservedAt < result[j].ObservedAt
	})
	return result, nil
}

var _ storage.MovementStore = (*MovementStore)(nil)
