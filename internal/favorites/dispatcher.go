package favorites

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mrlokans/favsync/internal/remote"
)

// Op names a remote call made on behalf of the engine.
type Op string

const (
	OpFetch  Op = "fetch"
	OpAdd    Op = "add"
	OpRemove Op = "remove"
)

// ErrDispatcherClosed is reported for calls dispatched after Close.
var ErrDispatcherClosed = errors.New("dispatcher closed")

// RemoteCall is a remote mutation to mirror a committed local change.
type RemoteCall struct {
	Op       Op
	UserID   string
	ItemID   string
	IssuedAt time.Time
}

func (c RemoteCall) String() string {
	if c.ItemID == "" {
		return fmt.Sprintf("%s user=%s", c.Op, c.UserID)
	}
	return fmt.Sprintf("%s user=%s item=%s", c.Op, c.UserID, c.ItemID)
}

// Outcome is the tagged result of a remote call. Remote failures never
// reach engine callers; they end up here.
//
// Discarded is set when the result had no effect on local state: the call
// failed and its error was absorbed, or a fetched snapshot was stale by the
// time it arrived.
type Outcome struct {
	Call      RemoteCall
	Err       error
	Discarded bool
}

// Observer receives outcomes. It is called from background goroutines and,
// for calls rejected at dispatch, with the engine lock held: it must not
// call back into the engine.
type Observer func(Outcome)

func (o Observer) notify(outcome Outcome) {
	if o != nil {
		o(outcome)
	}
}

// Dispatcher delivers remote mutations after the local change is committed.
// The engine calls Dispatch with its lock held, in commit order. Dispatch
// must not block on the network or call back into the engine.
type Dispatcher interface {
	Dispatch(call RemoteCall)
}

// AsyncDispatcher sends calls to the gateway one at a time, in dispatch
// order, on a single background goroutine. Each call is attempted once;
// failures are logged and reported as discarded outcomes.
type AsyncDispatcher struct {
	gateway  remote.Gateway
	observer Observer
	log      zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	cond    *sync.Cond
	queue   []RemoteCall
	closed  bool
	pending sync.WaitGroup
	done    chan struct{}
}

// NewAsyncDispatcher starts the worker goroutine. Call Close to stop it.
func NewAsyncDispatcher(gateway remote.Gateway, observer Observer, log zerolog.Logger) *AsyncDispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	d := &AsyncDispatcher{
		gateway:  gateway,
		observer: observer,
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	d.cond = sync.NewCond(&d.mu)
	go d.run()
	return d
}

func (d *AsyncDispatcher) Dispatch(call RemoteCall) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.observer.notify(Outcome{Call: call, Err: ErrDispatcherClosed, Discarded: true})
		return
	}
	d.pending.Add(1)
	d.queue = append(d.queue, call)
	d.mu.Unlock()
	d.cond.Signal()
}

// Wait blocks until every call dispatched so far has been attempted.
func (d *AsyncDispatcher) Wait() {
	d.pending.Wait()
}

// Close stops accepting calls, attempts the queued ones and stops the worker.
func (d *AsyncDispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		<-d.done
		return
	}
	d.closed = true
	d.mu.Unlock()
	d.cond.Broadcast()

	<-d.done
	d.cancel()
}

func (d *AsyncDispatcher) run() {
	defer close(d.done)
	for {
		d.mu.Lock()
		for len(d.queue) == 0 && !d.closed {
			d.cond.Wait()
		}
		if len(d.queue) == 0 {
			d.mu.Unlock()
			return
		}
		call := d.queue[0]
		d.queue = d.queue[1:]
		d.mu.Unlock()

		d.execute(call)
		d.pending.Done()
	}
}

func (d *AsyncDispatcher) execute(call RemoteCall) {
	err := Apply(d.ctx, d.gateway, call)
	if err != nil {
		d.log.Warn().Err(err).
			Str("op", string(call.Op)).
			Str("user_id", call.UserID).
			Str("item_id", call.ItemID).
			Msg("Remote favorite mutation failed, keeping local state")
		d.observer.notify(Outcome{Call: call, Err: err, Discarded: true})
		return
	}

	d.log.Debug().
		Str("op", string(call.Op)).
		Str("user_id", call.UserID).
		Str("item_id", call.ItemID).
		Dur("latency", time.Since(call.IssuedAt)).
		Msg("Remote favorite mutation applied")
	d.observer.notify(Outcome{Call: call})
}

// Apply performs a single remote mutation for call.UserID.
func Apply(ctx context.Context, gateway remote.Gateway, call RemoteCall) error {
	ctx = remote.WithUser(ctx, call.UserID)
	switch call.Op {
	case OpAdd:
		return gateway.Add(ctx, call.ItemID)
	case OpRemove:
		return gateway.Remove(ctx, call.ItemID)
	default:
		return fmt.Errorf("unsupported remote operation %q", call.Op)
	}
}
