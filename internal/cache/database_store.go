package cache

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	dbcache "github.com/mrlokans/favsync/internal/database/cache"
	"github.com/mrlokans/favsync/internal/entities"
)

// DatabaseStore keeps each scope's favorites as a JSON document in the
// cache_entries table.
type DatabaseStore struct {
	repo *dbcache.Repository
	log  zerolog.Logger
}

// NewDatabaseStore creates a store on top of the cache repository.
func NewDatabaseStore(repo *dbcache.Repository, log zerolog.Logger) *DatabaseStore {
	return &DatabaseStore{repo: repo, log: log}
}

func (s *DatabaseStore) Load(_ context.Context, scopeKey string) []entities.FavoriteEntry {
	value, found, err := s.repo.Get(scopeKey)
	if err != nil {
		s.log.Warn().Err(err).Str("scope", scopeKey).Msg("cache read failed, using empty favorites")
		return []entities.FavoriteEntry{}
	}
	if !found {
		return []entities.FavoriteEntry{}
	}

	entries, err := decodeEntries(value)
	if err != nil {
		s.log.Warn().Err(err).Str("scope", scopeKey).Msg("cache value corrupt, using empty favorites")
		return []entities.FavoriteEntry{}
	}
	return entities.CloneFavorites(entries)
}

func (s *DatabaseStore) Save(_ context.Context, scopeKey string, entries []entities.FavoriteEntry) error {
	value, err := encodeEntries(entries)
	if err != nil {
		return err
	}
	if err := s.repo.Put(scopeKey, value); err != nil {
		return fmt.Errorf("save favorites for %s: %w", scopeKey, err)
	}
	return nil
}
