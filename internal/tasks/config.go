package tasks

import "time"

// Config holds configuration for the outbox task queue.
type Config struct {
	// Workers is the number of concurrent task workers. Default: 1.
	// Ordering per item does not depend on it: superseded tasks are
	// dropped through the Ledger.
	Workers int

	// ReleaseAfter is when stuck tasks are released back to queue. Default: 5m
	ReleaseAfter time.Duration

	// CleanupInterval is how often to clean up completed tasks. Default: 1h
	CleanupInterval time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Workers:         1,
		ReleaseAfter:    5 * time.Minute,
		CleanupInterval: 1 * time.Hour,
	}
}
