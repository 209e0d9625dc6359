package memory

import "context"

// Retrier runs an operation exactly once. The memory store serializes
// conflicting transactions with row locks and never aborts one, so there is
// nothing to retry.
type Retrier struct{}

// NewRetrier creates a new Retrier.
func NewRetrier() Retrier {
	return Retrier{}
}

// Retry runs operation unless ctx is already done.
func (Retrier) Retry(ctx context.Context, operation func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return operation()
}
