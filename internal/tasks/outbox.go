package tasks

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mrlokans/favsync/internal/favorites"
)

// OutboxDispatcher is a favorites.Dispatcher that persists every remote
// mutation in the task queue instead of calling the backend directly.
// Mutations survive restarts and are retried with backoff. Each call is
// marked as the newest for its item before it is queued, so an older
// mutation still waiting for a retry is skipped.
type OutboxDispatcher struct {
	client   *Client
	observer favorites.Observer
	log      zerolog.Logger
}

func NewOutboxDispatcher(client *Client, observer favorites.Observer, log zerolog.Logger) *OutboxDispatcher {
	return &OutboxDispatcher{client: client, observer: observer, log: log}
}

func (d *OutboxDispatcher) Dispatch(call favorites.RemoteCall) {
	task := RemoteFavoriteTask{
		Op:       call.Op,
		UserID:   call.UserID,
		ItemID:   call.ItemID,
		IssuedAt: call.IssuedAt,
		Token:    uuid.NewString(),
	}

	if err := d.client.Ledger().Mark(context.Background(), task.UserID, task.ItemID, task.Token, task.IssuedAt); err != nil {
		d.fail(call, err, "Failed to mark remote favorite mutation")
		return
	}

	ids, err := d.client.Add(task).Save()
	if err != nil {
		d.fail(call, err, "Failed to enqueue remote favorite mutation")
		return
	}

	d.log.Debug().Strs("task_ids", ids).Str("op", string(call.Op)).Str("item_id", call.ItemID).
		Msg("Remote favorite mutation queued")
}

func (d *OutboxDispatcher) fail(call favorites.RemoteCall, err error, msg string) {
	d.log.Error().Err(err).Str("op", string(call.Op)).Str("item_id", call.ItemID).Msg(msg)
	notify(d.observer, favorites.Outcome{Call: call, Err: err, Discarded: true})
}
