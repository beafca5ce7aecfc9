package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mikestefanello/backlite"
	"github.com/rs/zerolog"

	"github.com/mrlokans/favsync/internal/favorites"
	"github.com/mrlokans/favsync/internal/remote"
)

const remoteFavoriteQueue = "remote_favorite"

// RemoteFavoriteTask mirrors one committed local favorite change to the backend.
type RemoteFavoriteTask struct {
	Op       favorites.Op `json:"op"`
	UserID   string       `json:"user_id"`
	ItemID   string       `json:"item_id"`
	IssuedAt time.Time    `json:"issued_at"`
	// Token identifies this mutation in the Ledger. Empty for tasks queued
	// without a ledger; those are always applied.
	Token string `json:"token,omitempty"`
}

// MutationLedger reports the newest queued mutation per item.
type MutationLedger interface {
	Latest(ctx context.Context, userID, itemID string) (string, bool, error)
}

// Config returns the queue configuration for remote favorite tasks.
func (t RemoteFavoriteTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        remoteFavoriteQueue,
		MaxAttempts: 6,
		Backoff:     30 * time.Second,
		Timeout:     1 * time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: true,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

func (t RemoteFavoriteTask) call() favorites.RemoteCall {
	return favorites.RemoteCall{Op: t.Op, UserID: t.UserID, ItemID: t.ItemID, IssuedAt: t.IssuedAt}
}

// RemoteFavoriteProcessor applies a task through the gateway. A task that a
// later mutation of the same item superseded is dropped without calling the
// backend, so a retried add can never undo a newer remove. Errors that
// cannot succeed on retry are dropped after logging; the rest are returned
// so backlite retries with backoff. ledger may be nil.
func RemoteFavoriteProcessor(gateway remote.Gateway, ledger MutationLedger, observer favorites.Observer, log zerolog.Logger) backlite.QueueProcessor[RemoteFavoriteTask] {
	return func(ctx context.Context, task RemoteFavoriteTask) error {
		if gateway == nil {
			return fmt.Errorf("remote gateway not configured")
		}

		call := task.call()
		if ledger != nil && task.Token != "" {
			latest, ok, err := ledger.Latest(ctx, task.UserID, task.ItemID)
			if err != nil {
				return fmt.Errorf("failed to read mutation ledger: %w", err)
			}
			if ok && latest != task.Token {
				log.Debug().Str("op", string(task.Op)).Str("user_id", task.UserID).Str("item_id", task.ItemID).
					Msg("Skipping superseded outbox mutation")
				notify(observer, favorites.Outcome{Call: call, Discarded: true})
				return nil
			}
		}

		err := favorites.Apply(ctx, gateway, call)
		if err == nil {
			log.Debug().Str("op", string(task.Op)).Str("user_id", task.UserID).Str("item_id", task.ItemID).
				Msg("Outbox mutation delivered")
			notify(observer, favorites.Outcome{Call: call})
			return nil
		}

		if !retryable(err) {
			log.Warn().Err(err).Str("op", string(task.Op)).Str("user_id", task.UserID).Str("item_id", task.ItemID).
				Msg("Dropping outbox mutation")
			notify(observer, favorites.Outcome{Call: call, Err: err, Discarded: true})
			return nil
		}

		log.Warn().Err(err).Str("op", string(task.Op)).Str("item_id", task.ItemID).Msg("Outbox mutation failed, will retry")
		return fmt.Errorf("%s favorite %s for %s: %w", task.Op, task.ItemID, task.UserID, err)
	}
}

// NewRemoteFavoriteQueue creates a backlite queue for remote favorite tasks.
func NewRemoteFavoriteQueue(gateway remote.Gateway, ledger MutationLedger, observer favorites.Observer, log zerolog.Logger) backlite.Queue {
	return backlite.NewQueue(RemoteFavoriteProcessor(gateway, ledger, observer, log))
}

func retryable(err error) bool {
	return !errors.Is(err, remote.ErrUnauthorized) && !errors.Is(err, remote.ErrNoUser)
}

func notify(observer favorites.Observer, outcome favorites.Outcome) {
	if observer != nil {
		observer(outcome)
	}
}
