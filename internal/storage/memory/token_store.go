package memory

import (
	"context"
	"sort"
	"sync"

	"pumpguard/internal/domain"
	"pumpguard/internal/storage"
)

// TokenStore is an in-memory implementation of storage.TokenStore.
type TokenStore struct {
	mu   sync.RWMutex
	data map[string]*domain.TokenRecord // keyed by mint
}

// NewTokenStore creates a new in-memory token store.
func NewTokenStore() *TokenStore {
	return &TokenStore{
		data: make(map[string]*domain.TokenRecord),
	}
}

// SaveToken inserts a token. Returns ErrDuplicateKey if the mint exists.
func (s *TokenStore) SaveToken(_ context.Context, t *domain.TokenRecord) error {
	if t == nil || t.Mint == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[t.Mint]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *t
	s.data[t.Mint] = &copy
	return nil
}

// GetToken retrieves a token by mint.
func (s *TokenStore) GetToken(_ context.Context, mint string) (*domain.TokenRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.data[mint]
	if !ok {
		return nil, storage.ErrNotFound
	}
	copy := *t
	return &copy, nil
}

// RecentTokens returns up to limit tokens, newest first.
func (s *TokenStore) RecentTokens(_ context.Context, limit int) ([]*domain.TokenRecord, error) {
	s.mu.RLock()
	result := make([]*domain.TokenRecord, 0, len(s.data))
	for _, t := range s.data {
		copy := *t
		result = append(result, &copy)
	}
	s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt != result[j].CreatedAt {
			return result[i].CreatedAt > result[j].CreatedAt
		}
		return result[i].Mint < result[j].Mint
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// MarkRugged flags a token as rugged; the first reason is kept.
func (s *TokenStore) MarkRugged(_ context.Context, mint, reason string, at int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.data[mint]
	if !ok {
		return storage.ErrNotFound
	}
	if t.IsRugged {
		return nil
	}
	t.IsRugged = true
	t.RugReason = reason
	t.RuggedAt = &at
	return nil
}

var _ storage.TokenStore = (*TokenStore)(nil)
