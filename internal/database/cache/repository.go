// Package cache provides database operations for the scope-keyed favorites cache.
//
// Each row holds the complete serialized favorites list of one scope, so a
// write replaces the value as a whole.
//
// # Usage
//
//	repo := cache.NewRepository(db)
//	value, found, err := repo.Get("favorites:u1")
package cache

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mrlokans/favsync/internal/entities"
)

// Repository handles all cache_entries database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new cache repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Get retrieves the raw value stored under key. found is false when no row exists.
func (r *Repository) Get(key string) (string, bool, error) {
	var entry entities.CacheEntry
	err := r.db.Where("key = ?", key).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return entry.Value, true, nil
}

// Put stores value under key in a single upsert statement.
func (r *Repository) Put(key, value string) error {
	entry := entities.CacheEntry{Key: key, Value: value}
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&entry).Error
}
