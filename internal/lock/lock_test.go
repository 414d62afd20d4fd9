package lock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredislib "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewbaird/rentalops/internal/apperr"
)

func managers(t *testing.T) map[string]Manager {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredislib.NewClient(&goredislib.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	opts := DefaultOptions()
	opts.RetryDelay = 5 * time.Millisecond
	opts.Tries = 400
	return map[string]Manager{
		"local": NewLocal(),
		"redis": NewRedis(client, opts, nil),
	}
}

func TestNormalizeKeys(t *testing.T) {
	got := normalizeKeys([]string{"b", " a ", "", "b"})
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestManager_MutualExclusion(t *testing.T) {
	for name, m := range managers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			var inside, maxInside atomic.Int32
			var wg sync.WaitGroup
			for i := 0; i < 8; i++ {
				wg.Add(1)
				// Overlapping key sets given in different orders.
				keys := []string{"k1", "k2"}
				if i%2 == 0 {
					keys = []string{"k2", "k1"}
				}
				go func() {
					defer wg.Done()
					err := m.WithLock(ctx, keys, func(context.Context) error {
						n := inside.Add(1)
						if n > maxInside.Load() {
							maxInside.Store(n)
						}
						time.Sleep(2 * time.Millisecond)
						inside.Add(-1)
						return nil
					})
					assert.NoError(t, err)
				}()
			}
			wg.Wait()
			assert.Equal(t, int32(1), maxInside.Load())
		})
	}
}

func TestManager_ReturnsCallbackError(t *testing.T) {
	for name, m := range managers(t) {
		t.Run(name, func(t *testing.T) {
			boom := errors.New("boom")
			err := m.WithLock(context.Background(), []string{"k"}, func(context.Context) error { return boom })
			assert.ErrorIs(t, err, boom)

			// The key is free again.
			err = m.WithLock(context.Background(), []string{"k"}, func(context.Context) error { return nil })
			assert.NoError(t, err)
		})
	}
}

func TestLocal_WaitHonoursContext(t *testing.T) {
	l := NewLocal()
	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = l.WithLock(context.Background(), []string{"k"}, func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := l.WithLock(ctx, []string{"k"}, func(context.Context) error { return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	close(release)
}

func TestRedis_AcquireFailureIsDependencyError(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredislib.NewClient(&goredislib.Options{Addr: mr.Addr()})
	defer client.Close()

	opts := DefaultOptions()
	opts.Tries = 1
	r := NewRedis(client, opts, nil)

	require.NoError(t, mr.Set(opts.Prefix+"busy", "someone-else"))
	err := r.WithLock(context.Background(), []string{"busy"}, func(context.Context) error { return nil })
	assert.True(t, apperr.Is(err, apperr.KindDependencyFailure), "got %v", err)
}
