package memory

import (
	"context"
	"sort"
	"sync"

	"pumpguard/internal/domain"
	"pumpguard/internal/storage"
)

// AlertStore is an in-memory implementation of storage.AlertStore.
type AlertStore struct {
	mu   sync.RWMutex
	data map[uint64]*domain.Alert
}

// NewAlertStore creates a new in-memory alert store.
func NewAlertStore() *AlertStore {
	return &AlertStore{
		data: make(map[uint64]*domain.Alert),
	}
}

// SaveAlert appends an alert. Returns ErrDuplicateKey if the id exists.
func (s *AlertStore) SaveAlert(_ context.Context, a *domain.Alert) error {
	if a == nil || a.ID == 0 {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[a.ID]; exists {
		return storage.ErrDuplicateKey
	}
	copy := *a
	s.data[a.ID] = &copy
	return nil
}

// Recent returns up to limit alerts, newest first.
func (s *AlertStore) Recent(_ context.Context, limit int) ([]*domain.Alert, error) {
	s.mu.RLock()
	result := make([]*domain.Alert, 0, len(s.data))
	for _, a := range s.data {
		copy := *a
		result = append(result, &copy)
	}
	s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		return result[i].ID > result[j].ID
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

var _ storage.AlertStore = (*AlertStore)(nil)
