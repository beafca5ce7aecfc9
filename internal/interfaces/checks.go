package interfaces

// This file contains compile-time interface implementation checks.
// These ensure that concrete types satisfy their interfaces at compile time,
// catching missing methods before runtime.
//
// To verify all checks pass: go build ./internal/interfaces/...

import (
	"github.com/mrlokans/favsync/internal/cache"
	"github.com/mrlokans/favsync/internal/database/sync"
	"github.com/mrlokans/favsync/internal/distribution"
	"github.com/mrlokans/favsync/internal/favorites"
	"github.com/mrlokans/favsync/internal/http"
	"github.com/mrlokans/favsync/internal/identity"
	"github.com/mrlokans/favsync/internal/remote"
	"github.com/mrlokans/favsync/internal/scheduler"
	"github.com/mrlokans/favsync/internal/tasks"
)

// =============================================================================
// Local Cache
// =============================================================================

var _ cache.Store = (*cache.DatabaseStore)(nil)
var _ cache.Store = (*cache.FileStore)(nil)
var _ cache.Store = (*cache.MemoryStore)(nil)

// =============================================================================
// Remote Delivery
// =============================================================================

var _ remote.Gateway = (*remote.Client)(nil)

var _ favorites.Dispatcher = (*favorites.AsyncDispatcher)(nil)
var _ favorites.Dispatcher = (*tasks.OutboxDispatcher)(nil)

// =============================================================================
// Engine and Distribution
// =============================================================================

var _ distribution.Source = (*favorites.Engine)(nil)
var _ favorites.Activator = (*favorites.Engine)(nil)
var _ identity.Provider = (*identity.Session)(nil)

var _ http.FavoritesService = (*distribution.Hub)(nil)
var _ http.EngineStatus = (*distribution.Hub)(nil)
var _ http.SessionManager = (*identity.Session)(nil)
var _ http.TaskStatusReader = (*tasks.Client)(nil)

var _ scheduler.Refresher = (*distribution.Hub)(nil)
var _ http.ScheduleStatus = (*scheduler.ReconcileScheduler)(nil)

// =============================================================================
// Progress Tracking
// =============================================================================

var _ favorites.ReconcileReporter = (*sync.Repository)(nil)
var _ scheduler.RunGuard = (*sync.Repository)(nil)
var _ http.SyncProgressReader = (*sync.Repository)(nil)
