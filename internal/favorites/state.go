package favorites

import (
	"fmt"
	"strings"

	"github.com/mrlokans/favsync/internal/cache"
	"github.com/mrlokans/favsync/internal/entities"
)

// Status is the engine state for the active scope.
type Status int

const (
	// StatusUninitialized means no load has completed for the scope yet.
	StatusUninitialized Status = iota
	// StatusLocalOnly means the local cache is loaded but no remote
	// snapshot has been merged.
	StatusLocalOnly
	// StatusReconciled means a remote snapshot has been merged and persisted.
	StatusReconciled
)

func (s Status) String() string {
	switch s {
	case StatusUninitialized:
		return "uninitialized"
	case StatusLocalOnly:
		return "local_only"
	case StatusReconciled:
		return "reconciled"
	default:
		return "unknown"
	}
}

// MarshalText renders the status by name in JSON responses.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	switch string(text) {
	case "uninitialized":
		*s = StatusUninitialized
	case "local_only":
		*s = StatusLocalOnly
	case "reconciled":
		*s = StatusReconciled
	default:
		return fmt.Errorf("unknown favorites status %q", text)
	}
	return nil
}

// Scope identifies whose favorites are active. The zero value is the
// anonymous scope.
type Scope struct {
	UserID string
}

// UserScope returns the scope for userID; an empty id is anonymous.
func UserScope(userID string) Scope {
	return Scope{UserID: strings.TrimSpace(userID)}
}

// Anonymous reports whether the scope has no identity. Anonymous favorites
// live only in the local cache.
func (s Scope) Anonymous() bool {
	return s.UserID == ""
}

// Key is the cache key of the scope.
func (s Scope) Key() string {
	return cache.ScopeKey(s.UserID)
}

func (s Scope) String() string {
	return s.Key()
}

// State is an immutable snapshot published by the engine. A new State is
// built for every change, so holders of a pointer never observe it change.
// Callers must not modify Entries or IDs.
type State struct {
	Scope   Scope
	Status  Status
	Entries []entities.FavoriteEntry
	IDs     map[string]struct{}
	Loading bool
	// Version increases with every published state.
	Version uint64
}

// Has reports whether id is a favorite in this snapshot. Safe on a nil State.
func (s *State) Has(id string) bool {
	if s == nil {
		return false
	}
	_, ok := s.IDs[id]
	return ok
}

// Count returns the number of favorites in this snapshot.
func (s *State) Count() int {
	if s == nil {
		return 0
	}
	return len(s.Entries)
}

// indexEntries derives the id set from entries.
func indexEntries(entries []entities.FavoriteEntry) map[string]struct{} {
	ids := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		ids[e.ID] = struct{}{}
	}
	return ids
}

// dedupeEntries keeps the first occurrence of every id, preserving order,
// and drops entries without an id.
func dedupeEntries(entries []entities.FavoriteEntry) []entities.FavoriteEntry {
	seen := make(map[string]struct{}, len(entries))
	out := make([]entities.FavoriteEntry, 0, len(entries))
	for _, e := range entries {
		if e.ID == "" {
			continue
		}
		if _, dup := seen[e.ID]; dup {
			continue
		}
		seen[e.ID] = struct{}{}
		out = append(out, e)
	}
	return out
}
