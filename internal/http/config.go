package http

import (
	"github.com/rs/zerolog"

	"github.com/mrlokans/favsync/internal/database"
)

// RouterConfig contains all dependencies and configuration needed
// to create the HTTP router.
type RouterConfig struct {
	// Core dependencies
	Favorites FavoritesService
	Session   SessionManager
	Database  *database.Database

	// Reconciliation run tracking
	SyncProgress SyncProgressReader

	// Periodic reconciliation, nil when no remote is configured
	Schedule ScheduleStatus

	// Outbox task status, nil when the outbox is disabled
	TaskStatus TaskStatusReader

	// Application info
	Version string

	Logger zerolog.Logger
}
