// Package cache implements the local favorites cache: one serialized
// favorites list per identity scope, durable across restarts and unaware of
// the network.
//
// Load never fails. A missing key or an undecodable value reads as an empty
// list and the problem is logged. Save replaces the stored value for a scope
// as a whole.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mrlokans/favsync/internal/entities"
)

const (
	scopeKeyPrefix = "favorites:"
	anonymousScope = "anonymous"
)

// ErrEncode indicates the favorites list could not be serialized.
var ErrEncode = errors.New("encode favorites")

// Store persists one favorites list per scope key.
type Store interface {
	Load(ctx context.Context, scopeKey string) []entities.FavoriteEntry
	Save(ctx context.Context, scopeKey string, entries []entities.FavoriteEntry) error
}

// ScopeKey derives the storage key for a user. An empty userID maps to the
// shared anonymous key.
func ScopeKey(userID string) string {
	if userID == "" {
		return scopeKeyPrefix + anonymousScope
	}
	return scopeKeyPrefix + userID
}

func encodeEntries(entries []entities.FavoriteEntry) (string, error) {
	data, err := json.Marshal(entities.CloneFavorites(entries))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncode, err)
	}
	return string(data), nil
}

func decodeEntries(value string) ([]entities.FavoriteEntry, error) {
	var entries []entities.FavoriteEntry
	if err := json.Unmarshal([]byte(value), &entries); err != nil {
		return nil, fmt.Errorf("decode favorites: %w", err)
	}
	return entries, nil
}
