package tasks

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/favsync/internal/favorites"
	"github.com/mrlokans/favsync/internal/remote"
)

type recordingGateway struct {
	mu    sync.Mutex
	err   error
	calls []favorites.RemoteCall
}

func (g *recordingGateway) FetchAll(context.Context) ([]remote.Favorite, error) {
	return nil, errors.New("not used")
}

func (g *recordingGateway) Add(ctx context.Context, itemID string) error {
	return g.record(ctx, favorites.OpAdd, itemID)
}

func (g *recordingGateway) Remove(ctx context.Context, itemID string) error {
	return g.record(ctx, favorites.OpRemove, itemID)
}

func (g *recordingGateway) record(ctx context.Context, op favorites.Op, itemID string) error {
	userID, _ := remote.UserFrom(ctx)
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, favorites.RemoteCall{Op: op, UserID: userID, ItemID: itemID})
	return g.err
}

func newTestClient(t *testing.T) *Client {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	client, err := NewClient(dbPath, DefaultConfig(), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestOutboxPath(t *testing.T) {
	assert.Equal(t, filepath.Join("data", "favsync-outbox.db"), OutboxPath(filepath.Join("data", "favsync.db")))
	assert.Equal(t, "favsync-outbox", OutboxPath("favsync"))
}

func TestNewClient(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	client, err := NewClient(dbPath, Config{}, zerolog.Nop())
	require.NoError(t, err)
	require.NotNil(t, client)
	assert.Equal(t, 1, client.config.Workers)

	_, err = os.Stat(filepath.Join(tmpDir, "test-outbox.db"))
	assert.NoError(t, err, "outbox database should be created")

	assert.NoError(t, client.Close())
}

func TestClientStartStop(t *testing.T) {
	client := newTestClient(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go client.Start(ctx)
	time.Sleep(50 * time.Millisecond)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer stopCancel()

	assert.True(t, client.Stop(stopCtx), "stop should succeed gracefully")
}

func TestStopWithoutStart(t *testing.T) {
	client := newTestClient(t)
	assert.True(t, client.Stop(context.Background()))
}

func TestRemoteFavoriteTaskConfig(t *testing.T) {
	cfg := RemoteFavoriteTask{}.Config()

	assert.Equal(t, "remote_favorite", cfg.Name)
	assert.Equal(t, 6, cfg.MaxAttempts)
	assert.Equal(t, 30*time.Second, cfg.Backoff)
	assert.Equal(t, time.Minute, cfg.Timeout)
	assert.NotNil(t, cfg.Retention)
}

func TestRemoteFavoriteProcessor(t *testing.T) {
	task := RemoteFavoriteTask{Op: favorites.OpRemove, UserID: "u1", ItemID: "t1"}

	t.Run("delivers through the gateway", func(t *testing.T) {
		gateway := &recordingGateway{}
		var outcomes []favorites.Outcome
		process := RemoteFavoriteProcessor(gateway, nil, func(o favorites.Outcome) { outcomes = append(outcomes, o) }, zerolog.Nop())

		require.NoError(t, process(context.Background(), task))
		assert.Equal(t, []favorites.RemoteCall{{Op: favorites.OpRemove, UserID: "u1", ItemID: "t1"}}, gateway.calls)
		require.Len(t, outcomes, 1)
		assert.False(t, outcomes[0].Discarded)
	})

	t.Run("transient failures are retried", func(t *testing.T) {
		gateway := &recordingGateway{err: &remote.ServerError{StatusCode: 503}}
		process := RemoteFavoriteProcessor(gateway, nil, nil, zerolog.Nop())

		err := process(context.Background(), task)
		var serverErr *remote.ServerError
		assert.True(t, errors.As(err, &serverErr))
	})

	t.Run("rejected user is dropped", func(t *testing.T) {
		gateway := &recordingGateway{err: remote.ErrUnauthorized}
		var outcomes []favorites.Outcome
		process := RemoteFavoriteProcessor(gateway, nil, func(o favorites.Outcome) { outcomes = append(outcomes, o) }, zerolog.Nop())

		require.NoError(t, process(context.Background(), task))
		require.Len(t, outcomes, 1)
		assert.True(t, outcomes[0].Discarded)
		assert.ErrorIs(t, outcomes[0].Err, remote.ErrUnauthorized)
	})

	t.Run("missing gateway", func(t *testing.T) {
		process := RemoteFavoriteProcessor(nil, nil, nil, zerolog.Nop())
		assert.Error(t, process(context.Background(), task))
	})
}

func TestRemoteFavoriteProcessor_SkipsSupersededRetry(t *testing.T) {
	client := newTestClient(t)
	ledger := client.Ledger()
	ctx := context.Background()
	now := time.Now()

	gateway := &recordingGateway{err: &remote.ServerError{StatusCode: 502}}
	var outcomes []favorites.Outcome
	process := RemoteFavoriteProcessor(gateway, ledger, func(o favorites.Outcome) { outcomes = append(outcomes, o) }, zerolog.Nop())

	add := RemoteFavoriteTask{Op: favorites.OpAdd, UserID: "u1", ItemID: "x", IssuedAt: now, Token: "add-1"}
	require.NoError(t, ledger.Mark(ctx, "u1", "x", add.Token, add.IssuedAt))
	require.Error(t, process(ctx, add), "first add attempt fails and is parked for retry")

	remove := RemoteFavoriteTask{Op: favorites.OpRemove, UserID: "u1", ItemID: "x", IssuedAt: now.Add(time.Second), Token: "remove-1"}
	require.NoError(t, ledger.Mark(ctx, "u1", "x", remove.Token, remove.IssuedAt))
	gateway.err = nil
	require.NoError(t, process(ctx, remove))

	require.NoError(t, process(ctx, add), "superseded retry is dropped, not failed")

	require.Len(t, gateway.calls, 2)
	assert.Equal(t, favorites.OpAdd, gateway.calls[0].Op)
	assert.Equal(t, favorites.OpRemove, gateway.calls[1].Op, "backend last saw the remove")

	require.Len(t, outcomes, 2)
	assert.False(t, outcomes[0].Discarded)
	assert.True(t, outcomes[1].Discarded)
	assert.Equal(t, favorites.OpAdd, outcomes[1].Call.Op)
}

func TestLedger(t *testing.T) {
	ledger := newTestClient(t).Ledger()
	ctx := context.Background()

	_, ok, err := ledger.Latest(ctx, "u1", "x")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, ledger.Mark(ctx, "u1", "x", "a", time.Now()))
	require.NoError(t, ledger.Mark(ctx, "u1", "x", "b", time.Now()))
	require.NoError(t, ledger.Mark(ctx, "u2", "x", "c", time.Now()))

	token, ok, err := ledger.Latest(ctx, "u1", "x")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "b", token)

	token, _, err = ledger.Latest(ctx, "u2", "x")
	require.NoError(t, err)
	assert.Equal(t, "c", token)
}

func TestOutboxDispatcher_DeliversQueuedMutation(t *testing.T) {
	client := newTestClient(t)
	gateway := &recordingGateway{}

	delivered := make(chan favorites.Outcome, 1)
	observer := func(o favorites.Outcome) { delivered <- o }
	client.Register(NewRemoteFavoriteQueue(gateway, client.Ledger(), observer, zerolog.Nop()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go client.Start(ctx)
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer stopCancel()
		client.Stop(stopCtx)
	}()

	dispatcher := NewOutboxDispatcher(client, observer, zerolog.Nop())
	dispatcher.Dispatch(favorites.RemoteCall{Op: favorites.OpAdd, UserID: "u1", ItemID: "t1", IssuedAt: time.Now()})

	select {
	case outcome := <-delivered:
		assert.NoError(t, outcome.Err)
		assert.Equal(t, "t1", outcome.Call.ItemID)
		assert.Equal(t, "u1", outcome.Call.UserID)
	case <-time.After(5 * time.Second):
		t.Fatal("queued mutation was not delivered within timeout")
	}
}
