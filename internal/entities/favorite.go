package entities

import "time"

// FavoriteEntry is a denormalized snapshot of a favorited tour, complete enough
// to render a card without fetching the tour again.
type FavoriteEntry struct {
	ID          string    `json:"id" toml:"id"`
	Title       string    `json:"title" toml:"title"`
	Image       string    `json:"image,omitempty" toml:"image,omitempty"`
	Price       float64   `json:"price" toml:"price"`
	Currency    string    `json:"currency" toml:"currency"`
	Rating      float64   `json:"rating" toml:"rating"`
	ReviewCount int       `json:"reviewCount" toml:"review_count"`
	Duration    string    `json:"duration" toml:"duration"`
	Location    string    `json:"location" toml:"location"`
	CompanyName string    `json:"companyName,omitempty" toml:"company_name,omitempty"`
	AddedAt     time.Time `json:"addedAt" toml:"added_at"`
}

// CloneFavorites returns an independent copy of entries. A nil or empty input
// yields an empty, non-nil slice so callers can tell "no favorites" from "unknown".
func CloneFavorites(entries []FavoriteEntry) []FavoriteEntry {
	dup := make([]FavoriteEntry, len(entries))
	copy(dup, entries)
	return dup
}
