package favorites

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mrlokans/favsync/internal/cache"
	"github.com/mrlokans/favsync/internal/entities"
	"github.com/mrlokans/favsync/internal/remote"
)

var errUnreachable = errors.New("backend unreachable")

// fakeGateway serves per-user snapshots. A gate for a user holds that
// user's FetchAll until the gate is closed or the context is cancelled.
type fakeGateway struct {
	mu        sync.Mutex
	favorites map[string][]remote.Favorite
	gates     map[string]chan struct{}
	fetchErr  error
	mutateErr error
	fetches   []string
	calls     []RemoteCall
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		favorites: make(map[string][]remote.Favorite),
		gates:     make(map[string]chan struct{}),
	}
}

func (g *fakeGateway) set(userID string, favorites ...remote.Favorite) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.favorites[userID] = favorites
}

func (g *fakeGateway) hold(userID string) (release func()) {
	gate := make(chan struct{})
	g.mu.Lock()
	g.gates[userID] = gate
	g.mu.Unlock()

	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

func (g *fakeGateway) failFetch(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fetchErr = err
}

func (g *fakeGateway) failMutations(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.mutateErr = err
}

func (g *fakeGateway) FetchAll(ctx context.Context) ([]remote.Favorite, error) {
	userID, _ := remote.UserFrom(ctx)

	g.mu.Lock()
	g.fetches = append(g.fetches, userID)
	gate := g.gates[userID]
	g.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fetchErr != nil {
		return nil, g.fetchErr
	}
	out := make([]remote.Favorite, len(g.favorites[userID]))
	copy(out, g.favorites[userID])
	return out, nil
}

func (g *fakeGateway) Add(ctx context.Context, itemID string) error {
	return g.record(ctx, OpAdd, itemID)
}

func (g *fakeGateway) Remove(ctx context.Context, itemID string) error {
	return g.record(ctx, OpRemove, itemID)
}

func (g *fakeGateway) record(ctx context.Context, op Op, itemID string) error {
	userID, _ := remote.UserFrom(ctx)
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, RemoteCall{Op: op, UserID: userID, ItemID: itemID})
	return g.mutateErr
}

func (g *fakeGateway) mutations() []RemoteCall {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]RemoteCall, len(g.calls))
	copy(out, g.calls)
	return out
}

func (g *fakeGateway) fetchCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.fetches)
}

// failingStore wraps a MemoryStore and fails every Save once broken.
type failingStore struct {
	*cache.MemoryStore
	mu     sync.Mutex
	broken bool
}

var errDiskFull = errors.New("disk full")

func (s *failingStore) breakSaves() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.broken = true
}

func (s *failingStore) Save(ctx context.Context, scopeKey string, entries []entities.FavoriteEntry) error {
	s.mu.Lock()
	broken := s.broken
	s.mu.Unlock()
	if broken {
		return errDiskFull
	}
	return s.MemoryStore.Save(ctx, scopeKey, entries)
}

type outcomeRecorder struct {
	mu       sync.Mutex
	outcomes []Outcome
}

func (r *outcomeRecorder) observe(o Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, o)
}

func (r *outcomeRecorder) byOp(op Op) []Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Outcome
	for _, o := range r.outcomes {
		if o.Call.Op == op {
			out = append(out, o)
		}
	}
	return out
}

// recordingDispatcher keeps dispatched calls in arrival order.
type recordingDispatcher struct {
	mu    sync.Mutex
	calls []RemoteCall
}

func (d *recordingDispatcher) Dispatch(call RemoteCall) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, call)
}

func (d *recordingDispatcher) ops() []Op {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Op, 0, len(d.calls))
	for _, c := range d.calls {
		out = append(out, c.Op)
	}
	return out
}

type fakeReporter struct {
	mu       sync.Mutex
	started  []string
	statuses []entities.SyncStatus
}

func (r *fakeReporter) StartSync(scope string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = append(r.started, scope)
	return nil
}

func (r *fakeReporter) CompleteSync(status entities.SyncStatus, _ int, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, status)
	return nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	engine   *Engine
	store    *failingStore
	gateway  *fakeGateway
	clock    *fakeClock
	outcomes *outcomeRecorder
	reporter *fakeReporter
}

// newHarness builds an engine over a memory store. withRemote=false leaves
// the engine without a gateway.
func newHarness(t *testing.T, withRemote bool) *harness {
	t.Helper()
	h := &harness{
		store:    &failingStore{MemoryStore: cache.NewMemoryStore()},
		gateway:  newFakeGateway(),
		clock:    newFakeClock(),
		outcomes: &outcomeRecorder{},
		reporter: &fakeReporter{},
	}

	opts := Options{
		Reporter: h.reporter,
		Observer: h.outcomes.observe,
		Clock:    h.clock.Now,
	}
	if withRemote {
		opts.Gateway = h.gateway
	}
	h.engine = NewEngine(h.store, opts)
	t.Cleanup(h.engine.Close)
	return h
}

// settle waits for reconciliation and queued remote mutations.
func (h *harness) settle() {
	h.engine.Wait()
	if h.engine.owned != nil {
		h.engine.owned.Wait()
	}
}

func tour(id string) entities.FavoriteEntry {
	return entities.FavoriteEntry{
		ID:          id,
		Title:       "Tour " + id,
		Price:       20,
		Currency:    "EUR",
		Rating:      4.5,
		ReviewCount: 10,
		Duration:    "2h",
		Location:    "Madrid",
	}
}

func ids(entries []entities.FavoriteEntry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.ID)
	}
	return out
}
