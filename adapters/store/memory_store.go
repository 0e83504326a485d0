package store

import (
	"context"
	"sync"
	"time"

	"github.com/layer-3/ledgerlink/ports"
)

// MemoryStore is the single-process revocation list.
type MemoryStore struct {
	invalidated map[string]time.Time
	mu          sync.RWMutex
	now         func() time.Time
}

func NewMemoryStore() ports.Store {
	return &MemoryStore{
		invalidated: make(map[string]time.Time),
		now:         time.Now,
	}
}

// InvalidateToken marks a session token as invalidated until expiry elapses
func (s *MemoryStore) InvalidateToken(ctx context.Context, tokenID string, expiry time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.invalidated[tokenID] = now.Add(expiry)

	for id, until := range s.invalidated {
		if now.After(until) {
			delete(s.invalidated, id)
		}
	}

	return nil
}

func (s *MemoryStore) IsTokenInvalidated(ctx context.Context, tokenID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	until, exists := s.invalidated[tokenID]
	if !exists {
		return false, nil
	}

	return !s.now().After(until), nil
}
