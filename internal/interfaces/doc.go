// Package interfaces documents the core abstractions used throughout the application.
//
// This package consolidates interface documentation to help code agents understand
// extension points and how to implement new functionality.
//
// # Interface Categories
//
// ## Storage Interfaces
//
//   - cache.Store: per-scope favorites persistence (internal/cache/store.go)
//   - favorites.ReconcileReporter: reconciliation run tracking (internal/favorites/engine.go)
//
// ## Remote Interfaces
//
//   - remote.Gateway: the favorites backend (internal/remote/gateway.go)
//   - favorites.Dispatcher: delivery of remote add/remove calls (internal/favorites/dispatcher.go)
//
// ## Distribution Interfaces
//
//   - distribution.Source: what the hub binds to (internal/distribution/hub.go)
//   - identity.Provider: the signed-in user (internal/identity/identity.go)
//   - http.FavoritesService: what the HTTP layer serves (internal/http/stores.go)
//
// # Adding a New Cache Backend
//
//  1. Implement Store in internal/cache/
//
//     type RedisStore struct { client *redis.Client }
//
//     func (s *RedisStore) Load(ctx context.Context, scopeKey string) []entities.FavoriteEntry
//     func (s *RedisStore) Save(ctx context.Context, scopeKey string, entries []entities.FavoriteEntry) error
//
//     Load never fails: a missing or unreadable value is an empty list.
//     Save replaces the whole value atomically.
//
//  2. Add a CacheBackend constant in internal/config and select it in
//     entrypoint.NewStore
//
// # Adding a New Delivery Mode
//
// A Dispatcher receives each remote call after the local change is persisted.
// It must not block the caller and reports every failure as a favorites.Outcome:
//
//	type BatchDispatcher struct { ... }
//
//	func (d *BatchDispatcher) Dispatch(call favorites.RemoteCall)
//
//	var _ favorites.Dispatcher = (*BatchDispatcher)(nil)
//
// # Compile-Time Interface Checks
//
// All implementations should include compile-time checks to ensure they satisfy
// their interfaces. This catches missing methods at compile time rather than runtime:
//
//	var _ SomeInterface = (*MyImplementation)(nil)
//
// This pattern is used throughout the codebase. See checks.go for examples.
package interfaces
