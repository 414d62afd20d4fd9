package store

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// MaxConflictRetries bounds how often a read-validate-write sequence is
// replayed after losing a version race.
const MaxConflictRetries = 5

// RetryOnConflict runs op until it succeeds, fails with anything other
// than ErrVersionConflict, or the retry budget is spent. op must re-read
// the aggregate on every call.
func RetryOnConflict(ctx context.Context, op func() error) error {
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := op()
		if err == nil {
			return struct{}{}, nil
		}
		if errors.Is(err, ErrVersionConflict) {
			return struct{}{}, err
		}
		return struct{}{}, backoff.Permanent(err)
	},
		backoff.WithBackOff(&backoff.ConstantBackOff{Interval: time.Millisecond}),
		backoff.WithMaxTries(MaxConflictRetries),
	)
	return err
}
