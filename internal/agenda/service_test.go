package agenda

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredislib "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewbaird/rentalops/internal/apperr"
	"github.com/matthewbaird/rentalops/internal/clock"
	"github.com/matthewbaird/rentalops/internal/domain"
	"github.com/matthewbaird/rentalops/internal/lock"
	"github.com/matthewbaird/rentalops/internal/repository"
	"github.com/matthewbaird/rentalops/internal/store"
	"github.com/matthewbaird/rentalops/internal/types"
)

var t0 = time.Date(2026, 9, 14, 9, 0, 0, 0, time.UTC)

func newService(t *testing.T, locks lock.Manager) (*Service, *repository.Set) {
	t.Helper()
	repos := repository.NewMemorySet()
	for _, id := range []string{"p1", "p2"} {
		require.NoError(t, repos.Properties.Add(context.Background(), domain.Property{
			Meta: domain.NewMeta(id, t0), Code: "C-" + id, Owner: "Owner",
		}))
	}
	return NewService(repos, locks, clock.NewManual(t0), nil, nil), repos
}

func slot(t *testing.T, start time.Time, d time.Duration) types.TimeRange {
	t.Helper()
	r, err := types.RangeFor(start, d)
	require.NoError(t, err)
	return r
}

func TestBook_OverlapAndAdjacency(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, lock.NewLocal())

	first, err := svc.Book(ctx, BookInput{PropertyID: "p1", Range: slot(t, t0, time.Hour), Type: domain.AgendaVisit, Title: "Visit"}, nil)
	require.NoError(t, err)

	_, err = svc.Book(ctx, BookInput{PropertyID: "p1", Range: slot(t, t0, time.Hour), Title: "Same slot"}, nil)
	if got := apperr.KindOf(err); got != apperr.KindConflict {
		t.Errorf("kind = %q, want %q", got, apperr.KindConflict)
	}

	_, err = svc.Book(ctx, BookInput{PropertyID: "p1", Range: slot(t, t0.Add(30*time.Minute), time.Hour)}, nil)
	assert.True(t, apperr.Is(err, apperr.KindConflict), "partial overlap: %v", err)

	next, err := svc.Book(ctx, BookInput{PropertyID: "p1", Range: slot(t, t0.Add(time.Hour), time.Hour)}, nil)
	require.NoError(t, err, "touching ranges do not overlap")
	assert.Equal(t, domain.AgendaOther, next.Type)

	_, err = svc.Book(ctx, BookInput{PropertyID: "p2", Range: first.Range}, nil)
	require.NoError(t, err, "other property is free")

	got, err := svc.FindOverlapping(ctx, "p1", slot(t, t0, 2*time.Hour))
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestBook_ResponsibleDoubleBooking(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, lock.NewLocal())

	_, err := svc.Book(ctx, BookInput{PropertyID: "p1", Responsible: "João  Silva", Range: slot(t, t0, time.Hour)}, nil)
	require.NoError(t, err)

	_, err = svc.Book(ctx, BookInput{PropertyID: "p2", Responsible: "joão silva", Range: slot(t, t0.Add(15*time.Minute), time.Hour)}, nil)
	assert.True(t, apperr.Is(err, apperr.KindConflict), "got %v", err)

	found, err := svc.FindOverlappingForResponsible(ctx, "JOÃO SILVA", slot(t, t0, time.Minute))
	require.NoError(t, err)
	assert.Len(t, found, 1)
}

func TestBook_Validation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, lock.NewLocal())

	tests := []struct {
		name string
		in   BookInput
		kind apperr.Kind
	}{
		{"nobody", BookInput{Range: slot(t, t0, time.Hour)}, apperr.KindValidation},
		{"empty range", BookInput{PropertyID: "p1", Range: types.TimeRange{Start: t0, End: t0}}, apperr.KindValidation},
		{"bad type", BookInput{PropertyID: "p1", Range: slot(t, t0, time.Hour), Type: "party"}, apperr.KindValidation},
		{"unknown property", BookInput{PropertyID: "p9", Range: slot(t, t0, time.Hour)}, apperr.KindNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Book(ctx, tt.in, nil)
			if got := apperr.KindOf(err); got != tt.kind {
				t.Errorf("kind = %q, want %q (err %v)", got, tt.kind, err)
			}
		})
	}
}

func TestBook_CommitFailureLeavesSlotFree(t *testing.T) {
	ctx := context.Background()
	svc, repos := newService(t, lock.NewLocal())
	boom := errors.New("boom")

	_, err := svc.Book(ctx, BookInput{PropertyID: "p1", Range: slot(t, t0, time.Hour)},
		func(context.Context, domain.AgendaEvent) error { return boom })
	require.ErrorIs(t, err, boom)
	assert.True(t, apperr.Is(err, apperr.KindDependencyFailure))

	var committed string
	ev, err := svc.Book(ctx, BookInput{PropertyID: "p1", Range: slot(t, t0, time.Hour)},
		func(_ context.Context, ev domain.AgendaEvent) error { committed = ev.ID; return nil })
	require.NoError(t, err)
	assert.Equal(t, ev.ID, committed)

	stored, err := svc.Get(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, "p1", stored.PropertyID)

	all, err := repos.Agenda.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.NotNil(t, all[0].ReleasedAt, "failed booking is released")
	assert.Equal(t, int64(2), all[0].Version)
	assert.Nil(t, all[1].ReleasedAt)

	held, err := svc.FindOverlapping(ctx, "p1", slot(t, t0, time.Hour))
	require.NoError(t, err)
	require.Len(t, held, 1)
	assert.Equal(t, ev.ID, held[0].ID)
}

type failingInsert struct {
	store.Table[domain.AgendaEvent]
}

func (failingInsert) Insert(context.Context, domain.AgendaEvent) error {
	return errors.New("disk full")
}

func TestBook_InsertFailureSkipsCommit(t *testing.T) {
	ctx := context.Background()
	svc, repos := newService(t, lock.NewLocal())
	repos.Agenda = repository.NewAgendaEvents(failingInsert{store.NewMemory[domain.AgendaEvent]()})

	called := false
	_, err := svc.Book(ctx, BookInput{PropertyID: "p1", Range: slot(t, t0, time.Hour)},
		func(context.Context, domain.AgendaEvent) error { called = true; return nil })
	if got := apperr.KindOf(err); got != apperr.KindDependencyFailure {
		t.Errorf("kind = %q, want %q", got, apperr.KindDependencyFailure)
	}
	assert.False(t, called, "commit must not run when the slot was not stored")
}

func TestBook_ConcurrentOverlapsOnlyOneWins(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredislib.NewClient(&goredislib.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	managers := map[string]lock.Manager{
		"local": lock.NewLocal(),
		"redis": lock.NewRedis(client, lock.DefaultOptions(), nil),
	}
	for name, locks := range managers {
		t.Run(name, func(t *testing.T) {
			svc, repos := newService(t, locks)
			const n = 8
			var wg sync.WaitGroup
			errs := make([]error, n)
			ranges := make([]types.TimeRange, n)
			for i := range n {
				ranges[i] = slot(t, t0.Add(time.Duration(i)*time.Minute), time.Hour)
			}
			for i := range n {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, errs[i] = svc.Book(context.Background(), BookInput{
						PropertyID: "p1", Range: ranges[i], Type: domain.AgendaInspection,
					}, nil)
				}()
			}
			wg.Wait()

			won := 0
			for _, err := range errs {
				if err == nil {
					won++
				} else {
					assert.True(t, apperr.Is(err, apperr.KindConflict), "got %v", err)
				}
			}
			assert.Equal(t, 1, won)

			all, err := repos.Agenda.List(context.Background())
			require.NoError(t, err)
			assert.Len(t, all, 1)
		})
	}
}
