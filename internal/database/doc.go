// Package database provides the local persistence layer of the favorites engine.
//
// # Architecture
//
//	database/
//	├── database.go      # Connection setup and migrations
//	├── cache/           # Scope-keyed serialized favorites (cache_entries)
//	└── sync/            # Reconciliation run tracking (sync_progress)
//
// # Using Sub-packages
//
//	db, err := database.NewDatabase("./favsync.db")
//
//	cacheRepo := cache.NewRepository(db.DB)
//	syncRepo := sync.NewRepository(db.DB)
//
// # Interface Implementations
//
//   - cache.Repository: backs cache.DatabaseStore (the engine's local cache store)
//   - sync.Repository: implements favorites.ReconcileReporter
//
// Each sub-package carries a compile-time check in internal/interfaces.
package database
