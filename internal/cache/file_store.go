package cache

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog"

	"github.com/mrlokans/favsync/internal/entities"
)

// document is the on-disk layout of one scope's cache file.
type document struct {
	Scope     string                   `toml:"scope"`
	SavedAt   time.Time                `toml:"saved_at"`
	Favorites []entities.FavoriteEntry `toml:"favorites"`
}

// FileStore keeps one TOML document per scope inside dir.
type FileStore struct {
	dir string
	log zerolog.Logger
}

// NewFileStore creates dir if needed and returns a store rooted there.
func NewFileStore(dir string, log zerolog.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &FileStore{dir: dir, log: log}, nil
}

func (s *FileStore) Load(_ context.Context, scopeKey string) []entities.FavoriteEntry {
	data, err := os.ReadFile(s.path(scopeKey))
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.log.Warn().Err(err).Str("scope", scopeKey).Msg("cache file unreadable, using empty favorites")
		}
		return []entities.FavoriteEntry{}
	}

	var doc document
	if err := toml.Unmarshal(data, &doc); err != nil {
		s.log.Warn().Err(err).Str("scope", scopeKey).Msg("cache file corrupt, using empty favorites")
		return []entities.FavoriteEntry{}
	}
	return entities.CloneFavorites(doc.Favorites)
}

// Save writes to a temporary file in the same directory and renames it over
// the previous document, so readers see either the old or the new list.
func (s *FileStore) Save(_ context.Context, scopeKey string, entries []entities.FavoriteEntry) error {
	doc := document{
		Scope:     scopeKey,
		SavedAt:   time.Now().UTC(),
		Favorites: entities.CloneFavorites(entries),
	}

	data, err := toml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEncode, err)
	}

	tmp, err := os.CreateTemp(s.dir, ".favorites-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp cache file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write cache file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close cache file: %w", err)
	}

	if err := os.Rename(tmpName, s.path(scopeKey)); err != nil {
		return fmt.Errorf("replace cache file: %w", err)
	}
	return nil
}

// path escapes the scope key so distinct keys never share a file.
func (s *FileStore) path(scopeKey string) string {
	return filepath.Join(s.dir, url.QueryEscape(scopeKey)+".toml")
}
