package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	goredislib "github.com/redis/go-redis/v9"

	"github.com/matthewbaird/rentalops/internal/apperr"
	"github.com/matthewbaird/rentalops/internal/logger"
)

// Options configures each redsync mutex.
type Options struct {
	Expiry     time.Duration
	Tries      int
	RetryDelay time.Duration
	Prefix     string
}

// DefaultOptions suits bookings that finish well within a second.
func DefaultOptions() Options {
	return Options{
		Expiry:     10 * time.Second,
		Tries:      32,
		RetryDelay: 50 * time.Millisecond,
		Prefix:     "rentalops:lock:",
	}
}

// Redis is a Manager backed by redsync, for deployments that run several
// processes against one store.
type Redis struct {
	rs   *redsync.Redsync
	opts Options
	log  *logger.Logger
}

func NewRedis(client goredislib.UniversalClient, opts Options, log *logger.Logger) *Redis {
	return &Redis{
		rs:   redsync.New(goredis.NewPool(client)),
		opts: opts,
		log:  logger.OrNop(log),
	}
}

func (r *Redis) WithLock(ctx context.Context, keys []string, fn func(context.Context) error) error {
	keys = normalizeKeys(keys)
	held := make([]*redsync.Mutex, 0, len(keys))
	defer func() {
		// Release even when the caller's context is already done.
		unlockCtx := context.WithoutCancel(ctx)
		for i := len(held) - 1; i >= 0; i-- {
			if ok, err := held[i].UnlockContext(unlockCtx); !ok || err != nil {
				r.log.Warn("failed to release lock", "key", held[i].Name(), "error", err)
			}
		}
	}()

	for _, k := range keys {
		m := r.rs.NewMutex(r.opts.Prefix+k,
			redsync.WithExpiry(r.opts.Expiry),
			redsync.WithTries(r.opts.Tries),
			redsync.WithRetryDelay(r.opts.RetryDelay),
		)
		if err := m.LockContext(ctx); err != nil {
			return apperr.Dependency("lock.acquire", fmt.Errorf("acquire %s: %w", k, err))
		}
		held = append(held, m)
	}
	return fn(ctx)
}
