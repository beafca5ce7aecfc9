package http

import (
	"context"
	"time"

	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/favsync/internal/entities"
	"github.com/mrlokans/favsync/internal/favorites"
)

// This file consolidates the interfaces HTTP controllers depend on.

// FavoritesService is the shared favorites contract, served by the
// distribution hub.
type FavoritesService interface {
	State() *favorites.State
	AddFavorite(ctx context.Context, entry entities.FavoriteEntry) error
	RemoveFavorite(ctx context.Context, id string) error
	ToggleFavorite(ctx context.Context, entry entities.FavoriteEntry) (bool, error)
	RefreshFavorites(ctx context.Context)
}

// SessionManager switches the identity the favorites are scoped to.
type SessionManager interface {
	Current() (string, bool)
	Login(userID string)
	Logout()
}

// SyncProgressReader provides the last reconciliation run.
type SyncProgressReader interface {
	GetSyncProgress() (*entities.SyncProgress, error)
}

// ScheduleStatus reports the periodic reconciliation schedule.
type ScheduleStatus interface {
	IsRunning() bool
	IsSyncing() bool
	NextRunTime() *time.Time
}

// TaskStatusReader looks up outbox tasks.
type TaskStatusReader interface {
	Status(ctx context.Context, taskID string) (backlite.TaskStatus, error)
}
