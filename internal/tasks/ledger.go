package tasks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const ledgerSchema = `
CREATE TABLE IF NOT EXISTS remote_favorite_latest (
	user_id   TEXT NOT NULL,
	item_id   TEXT NOT NULL,
	token     TEXT NOT NULL,
	issued_at TIMESTAMP NOT NULL,
	PRIMARY KEY (user_id, item_id)
)`

// Ledger records the newest queued mutation per user and item. A queued
// task whose token is no longer the newest has been superseded by a later
// local change and must not reach the backend, even on retry. Markers are
// kept after delivery: an older task may still be waiting for its retry.
type Ledger struct {
	db *sql.DB
}

func newLedger(db *sql.DB) (*Ledger, error) {
	if _, err := db.Exec(ledgerSchema); err != nil {
		return nil, fmt.Errorf("failed to create mutation ledger: %w", err)
	}
	return &Ledger{db: db}, nil
}

// Mark makes token the newest mutation for userID and itemID.
func (l *Ledger) Mark(ctx context.Context, userID, itemID, token string, issuedAt time.Time) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO remote_favorite_latest (user_id, item_id, token, issued_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id, item_id) DO UPDATE SET token = excluded.token, issued_at = excluded.issued_at`,
		userID, itemID, token, issuedAt.UTC())
	return err
}

// Latest returns the newest token for userID and itemID. ok is false when
// no mutation is pending.
func (l *Ledger) Latest(ctx context.Context, userID, itemID string) (token string, ok bool, err error) {
	err = l.db.QueryRowContext(ctx,
		`SELECT token FROM remote_favorite_latest WHERE user_id = ? AND item_id = ?`,
		userID, itemID).Scan(&token)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return token, true, nil
}
