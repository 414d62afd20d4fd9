package store

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type widget struct {
	ID      string   `json:"id"`
	Version int64    `json:"version"`
	Name    string   `json:"name"`
	Tags    []string `json:"tags"`
}

func (w widget) StoreKey() string    { return w.ID }
func (w widget) StoreVersion() int64 { return w.Version }

func tables(t *testing.T) map[string]Table[widget] {
	t.Helper()
	db, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	sqlTable, err := NewSQLTable[widget](context.Background(), db, "widgets")
	require.NoError(t, err)

	return map[string]Table[widget]{
		"memory": NewMemory[widget](),
		"sqlite": sqlTable,
	}
}

func TestTable_InsertGet(t *testing.T) {
	for name, tbl := range tables(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, tbl.Insert(ctx, widget{ID: "a", Version: 1, Name: "alpha", Tags: []string{"x"}}))

			got, err := tbl.Get(ctx, "a")
			require.NoError(t, err)
			assert.Equal(t, "alpha", got.Name)

			// Mutating a returned copy must not leak into the table.
			got.Tags[0] = "changed"
			again, err := tbl.Get(ctx, "a")
			require.NoError(t, err)
			assert.Equal(t, []string{"x"}, again.Tags)

			err = tbl.Insert(ctx, widget{ID: "a", Version: 1})
			assert.ErrorIs(t, err, ErrDuplicate)

			_, err = tbl.Get(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestTable_UpdateVersionCheck(t *testing.T) {
	for name, tbl := range tables(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, tbl.Insert(ctx, widget{ID: "a", Version: 1, Name: "v1"}))

			require.NoError(t, tbl.Update(ctx, widget{ID: "a", Version: 2, Name: "v2"}))

			// A writer that read version 1 lost the race.
			err := tbl.Update(ctx, widget{ID: "a", Version: 2, Name: "stale"})
			assert.ErrorIs(t, err, ErrVersionConflict)

			err = tbl.Update(ctx, widget{ID: "nope", Version: 2})
			assert.ErrorIs(t, err, ErrNotFound)

			got, err := tbl.Get(ctx, "a")
			require.NoError(t, err)
			assert.Equal(t, "v2", got.Name)
			assert.Equal(t, int64(2), got.Version)
		})
	}
}

func TestTable_FindKeepsInsertionOrder(t *testing.T) {
	for name, tbl := range tables(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for _, id := range []string{"c", "a", "b"} {
				require.NoError(t, tbl.Insert(ctx, widget{ID: id, Version: 1, Name: "n-" + id}))
			}

			all, err := tbl.Find(ctx, nil)
			require.NoError(t, err)
			require.Len(t, all, 3)
			assert.Equal(t, "c", all[0].ID)
			assert.Equal(t, "b", all[2].ID)

			some, err := tbl.Find(ctx, func(w widget) bool { return w.ID != "a" })
			require.NoError(t, err)
			assert.Len(t, some, 2)
		})
	}
}

func TestMemory_ConcurrentUpdatesOnlyOneWins(t *testing.T) {
	ctx := context.Background()
	tbl := NewMemory[widget]()
	require.NoError(t, tbl.Insert(ctx, widget{ID: "a", Version: 1}))

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if tbl.Update(ctx, widget{ID: "a", Version: 2}) == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}

func TestRetryOnConflict(t *testing.T) {
	ctx := context.Background()

	t.Run("replays until the write lands", func(t *testing.T) {
		calls := 0
		err := RetryOnConflict(ctx, func() error {
			calls++
			if calls < 3 {
				return ErrVersionConflict
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("other errors are not retried", func(t *testing.T) {
		boom := errors.New("boom")
		calls := 0
		err := RetryOnConflict(ctx, func() error {
			calls++
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 1, calls)
	})

	t.Run("gives up after the budget", func(t *testing.T) {
		calls := 0
		err := RetryOnConflict(ctx, func() error {
			calls++
			return ErrVersionConflict
		})
		assert.ErrorIs(t, err, ErrVersionConflict)
		assert.Equal(t, MaxConflictRetries, calls)
	})
}
