// Package distribution shares one favorites state among any number of
// consumers. Consumers read through a Hub instead of holding the engine, so
// they all see the same snapshot and never trigger loads of their own.
package distribution

import (
	"context"
	"sync"

	"github.com/mrlokans/favsync/internal/entities"
	"github.com/mrlokans/favsync/internal/favorites"
)

const unboundMessage = "distribution: favorites hub used before Bind (or after Unbind); wire the engine with Hub.Bind first"

// Source is the engine a Hub distributes.
type Source interface {
	Snapshot() *favorites.State
	OnChange(fn func(*favorites.State)) (remove func())
	AddFavorite(ctx context.Context, entry entities.FavoriteEntry) error
	RemoveFavorite(ctx context.Context, id string) error
	ToggleFavorite(ctx context.Context, entry entities.FavoriteEntry) (bool, error)
	RefreshFavorites(ctx context.Context)
}

type binding struct {
	source Source
	detach func()
}

// Hub holds the latest state of the bound engine. Reads and mutations on
// an unbound Hub panic: that is a wiring bug, not a runtime condition.
type Hub struct {
	mu      sync.RWMutex
	binding *binding
	state   *favorites.State
	subs    map[int]chan *favorites.State
	nextSub int
}

func NewHub() *Hub {
	return &Hub{subs: make(map[int]chan *favorites.State)}
}

// Bind starts distributing source, replacing any previous binding.
func (h *Hub) Bind(source Source) {
	h.Unbind()

	b := &binding{source: source}
	initial := source.Snapshot()
	h.mu.Lock()
	h.binding = b
	h.state = initial
	for _, ch := range h.subs {
		offer(ch, initial)
	}
	h.mu.Unlock()

	// The engine calls listeners with its own lock held, so the hub lock
	// must not be held while registering.
	detach := source.OnChange(func(s *favorites.State) { h.publish(b, s) })
	h.publish(b, source.Snapshot())

	h.mu.Lock()
	if h.binding == b {
		b.detach = detach
		detach = nil
	}
	h.mu.Unlock()
	if detach != nil {
		detach()
	}
}

// Unbind stops distributing. Subscriptions stay open and resume on the
// next Bind.
func (h *Hub) Unbind() {
	h.mu.Lock()
	b := h.binding
	h.binding = nil
	h.state = nil
	h.mu.Unlock()

	if b != nil && b.detach != nil {
		b.detach()
	}
}

func (h *Hub) publish(b *binding, s *favorites.State) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.binding != b || s == nil {
		return
	}
	if h.state != nil && s.Version <= h.state.Version {
		return
	}
	h.state = s
	for _, ch := range h.subs {
		offer(ch, s)
	}
}

// offer replaces whatever ch holds with s without blocking.
func offer(ch chan *favorites.State, s *favorites.State) {
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- s:
	default:
	}
}

// Subscribe returns a channel that always holds the most recent state not
// yet received. Intermediate states may be skipped. The channel is closed
// by the returned cancel func.
func (h *Hub) Subscribe() (<-chan *favorites.State, func()) {
	ch := make(chan *favorites.State, 1)

	h.mu.Lock()
	id := h.nextSub
	h.nextSub++
	h.subs[id] = ch
	if h.state != nil {
		ch <- h.state
	}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(ch)
		})
	}
}

// State returns the shared snapshot. All callers get the same pointer
// until the engine publishes again.
func (h *Hub) State() *favorites.State {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.binding == nil {
		panic(unboundMessage)
	}
	return h.state
}

// TryState is State without the panic: ok is false when no engine is bound.
func (h *Hub) TryState() (state *favorites.State, ok bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.binding == nil {
		return nil, false
	}
	return h.state, true
}

func (h *Hub) source() Source {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.binding == nil {
		panic(unboundMessage)
	}
	return h.binding.source
}

func (h *Hub) Favorites() []entities.FavoriteEntry {
	return entities.CloneFavorites(h.State().Entries)
}

// FavoriteIDs returns a copy of the shared favorite id set.
func (h *Hub) FavoriteIDs() map[string]struct{} {
	ids := h.State().IDs
	out := make(map[string]struct{}, len(ids))
	for id := range ids {
		out[id] = struct{}{}
	}
	return out
}

func (h *Hub) FavoritesCount() int {
	return h.State().Count()
}

func (h *Hub) IsFavorite(id string) bool {
	return h.State().Has(id)
}

func (h *Hub) IsLoading() bool {
	return h.State().Loading
}

func (h *Hub) AddFavorite(ctx context.Context, entry entities.FavoriteEntry) error {
	return h.source().AddFavorite(ctx, entry)
}

func (h *Hub) RemoveFavorite(ctx context.Context, id string) error {
	return h.source().RemoveFavorite(ctx, id)
}

func (h *Hub) ToggleFavorite(ctx context.Context, entry entities.FavoriteEntry) (bool, error) {
	return h.source().ToggleFavorite(ctx, entry)
}

func (h *Hub) RefreshFavorites(ctx context.Context) {
	h.source().RefreshFavorites(ctx)
}
