package cache

import (
	"context"
	"sync"

	"github.com/mrlokans/favsync/internal/entities"
)

// MemoryStore keeps serialized copies in memory. Nothing survives the process.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (s *MemoryStore) Load(_ context.Context, scopeKey string) []entities.FavoriteEntry {
	s.mu.RLock()
	value, ok := s.values[scopeKey]
	s.mu.RUnlock()

	if !ok {
		return []entities.FavoriteEntry{}
	}
	entries, err := decodeEntries(value)
	if err != nil {
		return []entities.FavoriteEntry{}
	}
	return entities.CloneFavorites(entries)
}

func (s *MemoryStore) Save(_ context.Context, scopeKey string, entries []entities.FavoriteEntry) error {
	value, err := encodeEntries(entries)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[scopeKey] = value
	return nil
}

// Has reports whether anything was saved under scopeKey.
func (s *MemoryStore) Has(scopeKey string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.values[scopeKey]
	return ok
}
