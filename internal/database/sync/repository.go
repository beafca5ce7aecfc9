// Package sync provides database operations for reconciliation run tracking.
//
// This package implements the ReconcileReporter interface used by the favorites engine.
//
// # Interface Implementation
//
//	var _ favorites.ReconcileReporter = (*Repository)(nil)
//
// # Usage
//
//	repo := sync.NewRepository(db)
//	err := repo.StartSync("favorites:u1")
package sync

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/mrlokans/favsync/internal/entities"
)

// Repository handles all sync progress database operations.
type Repository struct {
	db       *gorm.DB
	syncType entities.SyncType
}

// NewRepository creates a new sync repository for favorites reconciliation.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db, syncType: entities.SyncTypeReconcile}
}

// NewRepositoryWithType creates a sync repository for a specific sync type.
func NewRepositoryWithType(db *gorm.DB, syncType entities.SyncType) *Repository {
	return &Repository{db: db, syncType: syncType}
}

// GetSyncProgress retrieves the sync progress for the configured sync type.
func (r *Repository) GetSyncProgress() (*entities.SyncProgress, error) {
	var progress entities.SyncProgress
	err := r.db.Where("sync_type = ?", r.syncType).First(&progress).Error
	if err != nil {
		return nil, err
	}
	return &progress, nil
}

// StartSync creates or resets the progress record for a run against scope.
func (r *Repository) StartSync(scope string) error {
	var progress entities.SyncProgress
	result := r.db.Where("sync_type = ?", r.syncType).First(&progress)

	now := time.Now()
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		progress = entities.SyncProgress{
			SyncType:  r.syncType,
			Status:    entities.SyncStatusRunning,
			Scope:     scope,
			StartedAt: now,
			UpdatedAt: now,
		}
		return r.db.Create(&progress).Error
	} else if result.Error != nil {
		return result.Error
	}

	progress.Status = entities.SyncStatusRunning
	progress.Scope = scope
	progress.TotalItems = 0
	progress.Error = ""
	progress.StartedAt = now
	progress.UpdatedAt = now
	progress.CompletedAt = nil

	return r.db.Save(&progress).Error
}

// CompleteSync records the terminal status of the current run.
func (r *Repository) CompleteSync(status entities.SyncStatus, totalItems int, errorMsg string) error {
	now := time.Now()
	updates := map[string]any{
		"status":       status,
		"total_items":  totalItems,
		"error":        errorMsg,
		"updated_at":   now,
		"completed_at": now,
	}
	return r.db.Model(&entities.SyncProgress{}).
		Where("sync_type = ?", r.syncType).
		Updates(updates).Error
}

// IsSyncRunning checks if a run is currently in progress.
// A run is considered stale if not updated in 10 minutes.
func (r *Repository) IsSyncRunning() (bool, error) {
	var progress entities.SyncProgress
	err := r.db.Where("sync_type = ? AND status = ?", r.syncType, entities.SyncStatusRunning).First(&progress).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	staleThreshold := time.Now().Add(-10 * time.Minute)
	if progress.UpdatedAt.Before(staleThreshold) {
		_ = r.CompleteSync(entities.SyncStatusFailed, 0, "sync was interrupted")
		return false, nil
	}

	return true, nil
}
