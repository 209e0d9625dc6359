package usecase

import "time"

const (
	// DefaultTransactionTimeout is the maximum duration for a single transfer attempt.
	DefaultTransactionTimeout = 10 * time.Second

	// DefaultOutboxBatchSize is how many events the relay claims per batch.
	DefaultOutboxBatchSize = 100

	// DefaultOutboxMaxAttempts is the number of deliveries before an event is FAILED.
	DefaultOutboxMaxAttempts = 10

	// DefaultOutboxInterval is the relay polling interval.
	DefaultOutboxInterval = 1 * time.Second
)
