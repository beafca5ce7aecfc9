package entities

import (
	"time"
)

// CacheEntry is one serialized value of the local cache, keyed by scope.
type CacheEntry struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Key       string    `gorm:"uniqueIndex;size:255" json:"key"`
	Value     string    `gorm:"type:text" json:"value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (CacheEntry) TableName() string {
	return "cache_entries"
}
