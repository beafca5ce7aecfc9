// Package remote talks to the favorites backend: fetching the authoritative
// favorites snapshot of a user and mirroring single add/remove mutations.
package remote

import (
	"context"
	"time"
)

// Gateway is the backend contract consumed by the favorites engine.
// The user a call acts for travels in the context (see WithUser).
// Implementations own their timeouts.
type Gateway interface {
	FetchAll(ctx context.Context) ([]Favorite, error)
	Add(ctx context.Context, itemID string) error
	Remove(ctx context.Context, itemID string) error
}

// Favorite is the backend's representation of a favorited tour. It is richer
// and rawer than the cached entry; see Project.
type Favorite struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Image           string     `json:"image,omitempty"`
	Images          []string   `json:"images,omitempty"`
	Price           float64    `json:"price"`
	Currency        string     `json:"currency"`
	Rating          float64    `json:"rating"`
	ReviewCount     int        `json:"reviewCount"`
	Duration        string     `json:"duration,omitempty"`
	DurationMinutes int        `json:"durationMinutes,omitempty"`
	Location        string     `json:"location,omitempty"`
	City            string     `json:"city,omitempty"`
	Country         string     `json:"country,omitempty"`
	Company         *Company   `json:"company,omitempty"`
	FavoritedAt     *time.Time `json:"favoritedAt,omitempty"`
}

type Company struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

type userKey struct{}

// WithUser returns a context carrying the user remote calls act for.
func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userKey{}, userID)
}

// UserFrom extracts the user set by WithUser.
func UserFrom(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userKey{}).(string)
	return userID, ok && userID != ""
}
