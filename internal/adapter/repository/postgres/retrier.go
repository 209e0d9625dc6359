package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
)

// PostgreSQL error codes.
const (
	pgErrDeadlock             = "40P01"
	pgErrSerializationFailure = "40001"
	pgErrUniqueViolation      = "23505"
)

// Retrier re-runs a whole transfer transaction when Postgres aborted it
// because of a deadlock or a serialization conflict. Any other error is final.
type Retrier struct {
	maxRetries      int
	initialInterval time.Duration
	maxInterval     time.Duration
	maxElapsedTime  time.Duration
	logger          zerolog.Logger
}

// NewRetrier allows at most maxRetries re-runs after the first attempt.
func NewRetrier(maxRetries int, logger zerolog.Logger) *Retrier {
	if maxRetries < 0 {
		maxRetries = 0
	}

	return &Retrier{
		maxRetries:      maxRetries,
		initialInterval: 50 * time.Millisecond,
		maxInterval:     time.Second,
		maxElapsedTime:  10 * time.Second,
		logger:          logger,
	}
}

func (r *Retrier) policy(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.initialInterval
	b.MaxInterval = r.maxInterval
	b.MaxElapsedTime = r.maxElapsedTime

	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(r.maxRetries)), ctx)
}

// Retry runs operation until it succeeds, fails permanently or the policy gives up.
// Each call to operation must run a complete transaction.
func (r *Retrier) Retry(ctx context.Context, operation func() error) error {
	attempt := 0

	return backoff.RetryNotify(func() error {
		attempt++

		err := operation()
		if err != nil && !isRetryableError(err) {
			return backoff.Permanent(err)
		}
		return err
	}, r.policy(ctx), func(err error, wait time.Duration) {
		r.logger.Warn().
			Err(err).
			Str("pg_code", pgCode(err)).
			Int("attempt", attempt).
			Dur("backoff", wait).
			Msg("transaction aborted by postgres, retrying")
	})
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func isRetryableError(err error) bool {
	switch pgCode(err) {
	case pgErrDeadlock, pgErrSerializationFailure:
		return true
	}
	return false
}

func isUniqueViolation(err error) bool {
	return pgCode(err) == pgErrUniqueViolation
}
