package storage

import (
	"sync"

	"github.com/feedapp/feedclient/internal/core/domain"
	"github.com/feedapp/feedclient/internal/core/ports"
)

// MemoryTokenStore holds the pair in memory only; sessions do not survive a
// restart. Useful for tests and throwaway environments.
type MemoryTokenStore struct {
	mu   sync.Mutex
	pair domain.TokenPair
}

func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{}
}

func (s *MemoryTokenStore) Load() (domain.TokenPair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pair, nil
}

func (s *MemoryTokenStore) Save(pair domain.TokenPair) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pair = pair
	return nil
}

func (s *MemoryTokenStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pair = domain.TokenPair{}
	return nil
}

var _ ports.TokenStore = (*MemoryTokenStore)(nil)
