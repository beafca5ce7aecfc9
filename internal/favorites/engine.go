// Package favorites implements the local-first favorites engine.
//
// The engine owns the in-memory favorites of the active scope. Reads are
// served from memory, mutations are applied in memory and persisted to the
// local cache before the remote backend is told about them, and remote
// snapshots are merged in the background when the scope has an identity.
//
// Remote failures never surface to callers. They are logged and reported
// as Outcome values to an optional Observer. Cache write failures do
// surface, as errors from the mutating call.
package favorites

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mrlokans/favsync/internal/cache"
	"github.com/mrlokans/favsync/internal/entities"
	"github.com/mrlokans/favsync/internal/remote"
)

// ErrInvalidEntry is returned for entries without an id.
var ErrInvalidEntry = errors.New("favorite entry has no id")

// ReconcileReporter records reconciliation runs.
type ReconcileReporter interface {
	StartSync(scope string) error
	CompleteSync(status entities.SyncStatus, totalItems int, errorMsg string) error
}

// Options configures an Engine. Everything is optional.
type Options struct {
	// Gateway enables reconciliation and remote mutations. Without it the
	// engine is purely local.
	Gateway remote.Gateway
	// Dispatcher delivers remote mutations. Defaults to an AsyncDispatcher
	// over Gateway, owned and closed by the engine.
	Dispatcher Dispatcher
	Reporter   ReconcileReporter
	Observer   Observer
	Logger     *zerolog.Logger
	Clock      func() time.Time
}

// Engine is safe for concurrent use. All state transitions are serialized
// by one lock, which mutations hold across the membership check, the
// in-memory change and the cache write.
type Engine struct {
	store      cache.Store
	gateway    remote.Gateway
	dispatcher Dispatcher
	owned      *AsyncDispatcher
	reporter   ReconcileReporter
	observer   Observer
	log        zerolog.Logger
	now        func() time.Time

	mu        sync.RWMutex
	state     *State
	epoch     uint64
	mutations uint64
	cancel    context.CancelFunc
	closed    bool
	listeners map[int]func(*State)
	nextID    int

	wg sync.WaitGroup
}

// NewEngine creates an engine in the Uninitialized state for the anonymous
// scope. Call Activate to load a scope.
func NewEngine(store cache.Store, opts Options) *Engine {
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}
	now := opts.Clock
	if now == nil {
		now = time.Now
	}

	e := &Engine{
		store:      store,
		gateway:    opts.Gateway,
		dispatcher: opts.Dispatcher,
		reporter:   opts.Reporter,
		observer:   opts.Observer,
		log:        log,
		now:        now,
		state:      &State{IDs: map[string]struct{}{}, Entries: []entities.FavoriteEntry{}},
		listeners:  make(map[int]func(*State)),
	}
	if e.dispatcher == nil && e.gateway != nil {
		e.owned = NewAsyncDispatcher(e.gateway, e.observer, log)
		e.dispatcher = e.owned
	}
	return e
}

// Activate makes scope the active scope: any reconciliation still running
// for the previous scope is cancelled, the local cache is loaded and
// published as LocalOnly, and, when the scope has an identity and a
// gateway is configured, a remote reconciliation starts in the background.
func (e *Engine) Activate(ctx context.Context, scope Scope) {
	run := e.activate(ctx, scope)
	if run == nil {
		return
	}
	go func() {
		defer e.wg.Done()
		run()
	}()
}

// RefreshFavorites reloads the active scope from the cache and reconciles
// it with the backend before returning. Remote failures leave the engine
// LocalOnly and are not returned.
func (e *Engine) RefreshFavorites(ctx context.Context) {
	e.mu.RLock()
	scope := e.state.Scope
	e.mu.RUnlock()

	run := e.activate(ctx, scope)
	if run == nil {
		return
	}
	defer e.wg.Done()
	run()
}

// activate loads scope under the lock and returns the reconciliation to
// run, if any. A non-nil result holds a wg slot the caller must release.
func (e *Engine) activate(ctx context.Context, scope Scope) func() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	e.epoch++
	epoch := e.epoch

	e.publishLocked(scope, StatusUninitialized, nil, true)

	entries := dedupeEntries(e.store.Load(ctx, scope.Key()))
	reconcile := e.gateway != nil && !scope.Anonymous()
	e.publishLocked(scope, StatusLocalOnly, entries, reconcile)

	e.log.Debug().
		Str("scope", scope.Key()).
		Int("count", len(entries)).
		Bool("reconcile", reconcile).
		Msg("Scope activated from local cache")

	if !reconcile {
		return nil
	}

	// Recorded under the lock so a superseded run never overwrites the
	// scope of a newer one.
	e.reportStart(scope)

	rctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	e.cancel = cancel
	seq := e.mutations
	e.wg.Add(1)
	return func() {
		defer cancel()
		e.reconcile(rctx, scope, epoch, seq)
	}
}

// reconcile fetches the remote snapshot and merges it, provided neither the
// scope nor the favorites changed while the fetch was in flight.
func (e *Engine) reconcile(ctx context.Context, scope Scope, epoch, seq uint64) {
	call := RemoteCall{Op: OpFetch, UserID: scope.UserID, IssuedAt: e.now()}

	remoteFavorites, err := e.gateway.FetchAll(remote.WithUser(ctx, scope.UserID))

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.epoch != epoch {
		e.log.Debug().Str("scope", scope.Key()).Msg("Discarding remote favorites for inactive scope")
		e.observer.notify(Outcome{Call: call, Err: err, Discarded: true})
		return
	}
	e.cancel = nil

	if err != nil {
		e.log.Warn().Err(err).Str("scope", scope.Key()).Msg("Remote favorites unavailable, staying local")
		e.publishLocked(scope, e.state.Status, e.state.Entries, false)
		e.observer.notify(Outcome{Call: call, Err: err, Discarded: true})
		e.reportComplete(entities.SyncStatusFailed, 0, err.Error())
		return
	}

	if e.mutations != seq {
		e.log.Info().
			Str("scope", scope.Key()).
			Uint64("mutations", e.mutations-seq).
			Msg("Discarding stale remote favorites, local changes happened during fetch")
		e.publishLocked(scope, e.state.Status, e.state.Entries, false)
		e.observer.notify(Outcome{Call: call, Discarded: true})
		e.reportComplete(entities.SyncStatusDiscarded, len(remoteFavorites), "local changes during fetch")
		return
	}

	merged := e.mergeRemote(e.state.Entries, remoteFavorites)
	if err := e.store.Save(ctx, scope.Key(), merged); err != nil {
		e.log.Error().Err(err).Str("scope", scope.Key()).Msg("Failed to persist reconciled favorites")
	}
	e.publishLocked(scope, StatusReconciled, merged, false)
	e.observer.notify(Outcome{Call: call})
	e.reportComplete(entities.SyncStatusCompleted, len(merged), "")

	e.log.Info().Str("scope", scope.Key()).Int("count", len(merged)).Msg("Favorites reconciled")
}

// mergeRemote builds the entry list from the remote snapshot. The remote
// decides membership and order. An entry the backend sends without a
// timestamp keeps its local AddedAt, or gets the current time if new.
func (e *Engine) mergeRemote(local []entities.FavoriteEntry, favorites []remote.Favorite) []entities.FavoriteEntry {
	localByID := make(map[string]entities.FavoriteEntry, len(local))
	for _, entry := range local {
		localByID[entry.ID] = entry
	}

	now := e.now().UTC()
	seen := make(map[string]struct{}, len(favorites))
	merged := make([]entities.FavoriteEntry, 0, len(favorites))
	for _, f := range favorites {
		if f.ID == "" {
			continue
		}
		if _, dup := seen[f.ID]; dup {
			continue
		}
		seen[f.ID] = struct{}{}

		entry := remote.Project(f)
		if entry.AddedAt.IsZero() {
			if prev, ok := localByID[f.ID]; ok && !prev.AddedAt.IsZero() {
				entry.AddedAt = prev.AddedAt
			} else {
				entry.AddedAt = now
			}
		}
		merged = append(merged, entry)
	}
	return merged
}

// IsFavorite reports whether id is a favorite in the active scope.
func (e *Engine) IsFavorite(id string) bool {
	return e.Snapshot().Has(id)
}

// Favorites returns a copy of the active favorites, newest first.
func (e *Engine) Favorites() []entities.FavoriteEntry {
	return entities.CloneFavorites(e.Snapshot().Entries)
}

// FavoriteIDs returns a copy of the active favorite id set.
func (e *Engine) FavoriteIDs() map[string]struct{} {
	ids := e.Snapshot().IDs
	out := make(map[string]struct{}, len(ids))
	for id := range ids {
		out[id] = struct{}{}
	}
	return out
}

func (e *Engine) FavoritesCount() int {
	return e.Snapshot().Count()
}

func (e *Engine) IsLoading() bool {
	return e.Snapshot().Loading
}

// Snapshot returns the current published state.
func (e *Engine) Snapshot() *State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// OnChange registers fn to receive every published state. fn runs with the
// engine lock held: it must not block or call back into the engine.
func (e *Engine) OnChange(fn func(*State)) (remove func()) {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := e.nextID
	e.nextID++
	e.listeners[id] = fn

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.listeners, id)
	}
}

// Wait blocks until background reconciliations started so far are done.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// Close cancels reconciliation, waits for it to finish and stops the
// engine's own dispatcher. Mutations after Close still apply locally.
func (e *Engine) Close() {
	e.mu.Lock()
	e.closed = true
	e.epoch++
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	e.mu.Unlock()

	e.wg.Wait()
	if e.owned != nil {
		e.owned.Close()
	}
}

// AddFavorite stores entry as the newest favorite of the active scope and
// persists the list. Adding an id that is already present is a no-op. The
// backend is told afterwards, without waiting, when the scope has an
// identity. Remote calls are dispatched in commit order.
//
// A cache write error is returned, but the in-memory change stays.
func (e *Engine) AddFavorite(ctx context.Context, entry entities.FavoriteEntry) error {
	if strings.TrimSpace(entry.ID) == "" {
		return ErrInvalidEntry
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	call, err := e.addLocked(ctx, entry)
	e.dispatchLocked(call)
	return err
}

// RemoveFavorite drops id from the active scope. Removing an absent id is a
// no-op.
func (e *Engine) RemoveFavorite(ctx context.Context, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	call, err := e.removeLocked(ctx, id)
	e.dispatchLocked(call)
	return err
}

// ToggleFavorite adds entry when it is not a favorite and removes it
// otherwise, reporting whether it is a favorite afterwards. Concurrent
// toggles of one id serialize: each sees the result of the previous one.
func (e *Engine) ToggleFavorite(ctx context.Context, entry entities.FavoriteEntry) (bool, error) {
	if strings.TrimSpace(entry.ID) == "" {
		return false, ErrInvalidEntry
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	var (
		call *RemoteCall
		err  error
	)
	if e.state.Has(entry.ID) {
		call, err = e.removeLocked(ctx, entry.ID)
	} else {
		call, err = e.addLocked(ctx, entry)
	}
	e.dispatchLocked(call)
	return e.state.Has(entry.ID), err
}

// addLocked returns the remote call to dispatch, nil when nothing changed
// or the change could not be persisted.
func (e *Engine) addLocked(ctx context.Context, entry entities.FavoriteEntry) (*RemoteCall, error) {
	current := e.state
	if current.Has(entry.ID) {
		return nil, nil
	}

	entry.AddedAt = e.now().UTC()
	if len(current.Entries) > 0 && entry.AddedAt.Before(current.Entries[0].AddedAt) {
		entry.AddedAt = current.Entries[0].AddedAt
	}

	entries := make([]entities.FavoriteEntry, 0, len(current.Entries)+1)
	entries = append(entries, entry)
	entries = append(entries, current.Entries...)

	return e.commitLocked(ctx, OpAdd, entry.ID, entries)
}

func (e *Engine) removeLocked(ctx context.Context, id string) (*RemoteCall, error) {
	current := e.state
	if !current.Has(id) {
		return nil, nil
	}

	entries := make([]entities.FavoriteEntry, 0, len(current.Entries)-1)
	for _, entry := range current.Entries {
		if entry.ID != id {
			entries = append(entries, entry)
		}
	}

	return e.commitLocked(ctx, OpRemove, id, entries)
}

func (e *Engine) commitLocked(ctx context.Context, op Op, id string, entries []entities.FavoriteEntry) (*RemoteCall, error) {
	scope := e.state.Scope
	e.mutations++
	e.publishLocked(scope, e.state.Status, entries, e.state.Loading)

	if err := e.store.Save(ctx, scope.Key(), entries); err != nil {
		e.log.Error().Err(err).Str("scope", scope.Key()).Str("op", string(op)).Str("item_id", id).
			Msg("Failed to persist favorites")
		return nil, fmt.Errorf("failed to persist favorites for %s: %w", scope.Key(), err)
	}

	if scope.Anonymous() || e.dispatcher == nil {
		return nil, nil
	}
	return &RemoteCall{Op: op, UserID: scope.UserID, ItemID: id, IssuedAt: e.now()}, nil
}

// dispatchLocked hands call over while the lock is held, so the dispatcher
// receives calls in the order their local changes were committed.
func (e *Engine) dispatchLocked(call *RemoteCall) {
	if call != nil {
		e.dispatcher.Dispatch(*call)
	}
}

// publishLocked replaces the current state with a fresh snapshot and
// notifies listeners.
func (e *Engine) publishLocked(scope Scope, status Status, entries []entities.FavoriteEntry, loading bool) {
	entries = entities.CloneFavorites(entries)
	next := &State{
		Scope:   scope,
		Status:  status,
		Entries: entries,
		IDs:     indexEntries(entries),
		Loading: loading,
		Version: e.state.Version + 1,
	}
	e.state = next

	for _, fn := range e.listeners {
		fn(next)
	}
}

func (e *Engine) reportStart(scope Scope) {
	if e.reporter == nil {
		return
	}
	if err := e.reporter.StartSync(scope.Key()); err != nil {
		e.log.Warn().Err(err).Msg("Failed to record reconciliation start")
	}
}

func (e *Engine) reportComplete(status entities.SyncStatus, total int, msg string) {
	if e.reporter == nil {
		return
	}
	if err := e.reporter.CompleteSync(status, total, msg); err != nil {
		e.log.Warn().Err(err).Msg("Failed to record reconciliation result")
	}
}
