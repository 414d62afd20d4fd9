package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewbaird/rentalops/internal/apperr"
	"github.com/matthewbaird/rentalops/internal/clock"
	"github.com/matthewbaird/rentalops/internal/config"
	"github.com/matthewbaird/rentalops/internal/domain"
	"github.com/matthewbaird/rentalops/internal/inspection"
	"github.com/matthewbaird/rentalops/internal/logger"
	"github.com/matthewbaird/rentalops/internal/maintenance"
	"github.com/matthewbaird/rentalops/internal/negotiation"
	"github.com/matthewbaird/rentalops/internal/notify"
	"github.com/matthewbaird/rentalops/internal/property"
	"github.com/matthewbaird/rentalops/internal/repository"
	"github.com/matthewbaird/rentalops/internal/store"
	"github.com/matthewbaird/rentalops/internal/types"
)

var t0 = time.Date(2026, 4, 20, 10, 0, 0, 0, time.UTC)

type harness struct {
	app      *App
	clock    *clock.Manual
	notifier *notify.MemoryNotifier
}

func newHarness(t *testing.T, cfg config.Config) *harness {
	t.Helper()
	h := &harness{clock: clock.NewManual(t0), notifier: &notify.MemoryNotifier{}}
	a, err := New(context.Background(), cfg,
		WithClock(h.clock), WithLogger(logger.Nop()), WithNotifier(h.notifier))
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, a.Close()) })
	h.app = a
	return h
}

func (h *harness) property(t *testing.T, code string) domain.Property {
	t.Helper()
	p, err := h.app.Properties.Register(context.Background(), property.RegisterInput{Code: code, Owner: "Owner", Bedrooms: 2})
	require.NoError(t, err)
	return p
}

func (h *harness) negotiation(t *testing.T, propertyID string) domain.Negotiation {
	t.Helper()
	n, err := h.app.Negotiations.Create(context.Background(), negotiation.CreateInput{
		PropertyID: propertyID, InterestedName: "Paula Reis", BrokerName: "Carlos",
	})
	require.NoError(t, err)
	return n
}

func (h *harness) status(t *testing.T, id string) domain.PropertyStatus {
	t.Helper()
	p, err := h.app.Properties.Get(context.Background(), id)
	require.NoError(t, err)
	return p.Status
}

func inspectionAt(propertyID string, at time.Time) inspection.ScheduleInput {
	return inspection.ScheduleInput{PropertyID: propertyID, Type: domain.InspectionEntry, ScheduledFor: at, Responsible: "Rita"}
}

func TestNew_Backends(t *testing.T) {
	mr := miniredis.RunT(t)
	cases := map[string]func(*config.Config){
		"memory+local": func(*config.Config) {},
		"sqlite+redis": func(c *config.Config) {
			c.Store = config.StoreConfig{Driver: "sqlite", DSN: ":memory:"}
			c.Lock = config.LockConfig{Driver: "redis", RedisAddr: mr.Addr()}
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := config.Default()
			mutate(&cfg)
			h := newHarness(t, cfg)

			p := h.property(t, "AP-101")
			n := h.negotiation(t, p.ID)
			assert.Equal(t, domain.StatusReservado, h.status(t, p.ID))

			_, err := h.app.Negotiations.Advance(context.Background(), n.ID, domain.StageCancelled, "")
			require.NoError(t, err)
			assert.Equal(t, domain.StatusDisponivel, h.status(t, p.ID))
		})
	}
}

func TestNew_RejectsBadSchedule(t *testing.T) {
	cfg := config.Default()
	cfg.SweepSchedule = "whenever"
	_, err := New(context.Background(), cfg, WithLogger(logger.Nop()))
	if got := apperr.KindOf(err); got != apperr.KindValidation {
		t.Errorf("kind = %q, want %q", got, apperr.KindValidation)
	}
}

func TestRegisterSignal_BlocksUntilPaid(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, config.Default())
	p := h.property(t, "AP-7")
	n := h.negotiation(t, p.ID)

	n, entry, err := h.app.RegisterSignal(ctx, n.ID, decimal.RequireFromString("1500.00"), "", t0.AddDate(0, 0, 3))
	require.NoError(t, err)
	assert.Equal(t, int64(150000), n.SignalAmount.AmountCents)
	assert.Equal(t, "BRL", entry.Amount.Currency, "default currency")
	assert.Equal(t, domain.EntrySignal, entry.Type)
	assert.True(t, entry.BlocksAvailability)

	_, err = h.app.Negotiations.Advance(ctx, n.ID, domain.StageCancelled, "tenant withdrew")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusIndisponivel, h.status(t, p.ID), "unpaid signal on a cancelled negotiation still blocks")

	_, err = h.app.Financial.RegisterPayment(ctx, entry.ID, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDisponivel, h.status(t, p.ID))
}

func TestRegisterSignal_Validation(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, config.Default())
	n := h.negotiation(t, h.property(t, "AP-8").ID)
	due := t0.Add(24 * time.Hour)

	tests := []struct {
		name   string
		id     string
		amount string
		due    time.Time
		kind   apperr.Kind
	}{
		{"zero amount", n.ID, "0", due, apperr.KindValidation},
		{"sub-cent amount", n.ID, "10.005", due, apperr.KindValidation},
		{"no due date", n.ID, "100", time.Time{}, apperr.KindValidation},
		{"unknown negotiation", "missing", "100", due, apperr.KindNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := h.app.RegisterSignal(ctx, tt.id, decimal.RequireFromString(tt.amount), "BRL", tt.due)
			if got := apperr.KindOf(err); got != tt.kind {
				t.Errorf("kind = %q, want %q (err %v)", got, tt.kind, err)
			}
		})
	}

	entries, err := h.app.Financial.ListByReference(ctx, n.ID, domain.RefNegotiation)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

type failingEntryInsert struct {
	store.Table[domain.FinancialEntry]
}

func (failingEntryInsert) Insert(context.Context, domain.FinancialEntry) error {
	return errors.New("disk full")
}

func TestRegisterSignal_EntryFailureRestoresAmount(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, config.Default())
	n := h.negotiation(t, h.property(t, "AP-13").ID)
	h.app.Repos.Financial = repository.NewFinancialEntries(failingEntryInsert{store.NewMemory[domain.FinancialEntry]()})

	got, _, err := h.app.RegisterSignal(ctx, n.ID, decimal.RequireFromString("700"), "", t0.Add(24*time.Hour))
	if kind := apperr.KindOf(err); kind != apperr.KindDependencyFailure {
		t.Errorf("kind = %q, want %q (err %v)", kind, apperr.KindDependencyFailure, err)
	}
	assert.True(t, got.SignalAmount.IsZero())

	stored, err := h.app.Negotiations.Get(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, types.ZeroMoney("BRL"), stored.SignalAmount)
}

func TestScheduleVisit(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, config.Default())
	p := h.property(t, "AP-9")
	n := h.negotiation(t, p.ID)
	rng, err := types.RangeFor(t0.Add(48*time.Hour), 30*time.Minute)
	require.NoError(t, err)

	ev, n, err := h.app.ScheduleVisit(ctx, n.ID, rng)
	require.NoError(t, err)
	assert.Equal(t, domain.StageVisitScheduled, n.Stage)
	assert.Equal(t, domain.AgendaVisit, ev.Type)
	assert.Equal(t, n.ID, ev.ReferenceID)
	assert.Equal(t, "Carlos", ev.Responsible)

	_, _, err = h.app.ScheduleVisit(ctx, n.ID, rng)
	assert.True(t, apperr.Is(err, apperr.KindInvalidState), "second visit: %v", err)
}

func TestScheduleVisit_ConflictLeavesNegotiationUntouched(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, config.Default())
	p := h.property(t, "AP-10")
	n := h.negotiation(t, p.ID)
	rng, err := types.RangeFor(t0.Add(time.Hour), time.Hour)
	require.NoError(t, err)

	_, err = h.app.Inspections.Schedule(ctx, inspectionAt(p.ID, rng.Start))
	require.NoError(t, err)

	_, _, err = h.app.ScheduleVisit(ctx, n.ID, rng)
	assert.True(t, apperr.Is(err, apperr.KindConflict), "got %v", err)

	got, err := h.app.Negotiations.Get(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StageLeadCaptured, got.Stage)
}

func TestActivitySummary(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, config.Default())
	p := h.property(t, "AP-11")
	n := h.negotiation(t, p.ID)
	_, _, err := h.app.RegisterSignal(ctx, n.ID, decimal.RequireFromString("900"), "BRL", t0.Add(72*time.Hour))
	require.NoError(t, err)

	h.clock.Advance(time.Hour)
	sum, err := h.app.ActivitySummary(ctx, p.ID, t0.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, p.ID, sum.EntityID)
	assert.Contains(t, sum.Categories, "negotiation")
	assert.Contains(t, sum.Categories, "financial")
	assert.Equal(t, 1, sum.Categories["financial"].SignalCount)

	_, err = h.app.ActivitySummary(ctx, p.ID, t0.Add(48*time.Hour))
	assert.True(t, apperr.Is(err, apperr.KindValidation), "future since: %v", err)
	_, err = h.app.ActivitySummary(ctx, "missing", t0)
	assert.True(t, apperr.Is(err, apperr.KindNotFound), "unknown property: %v", err)
}

func TestRun_DeliversNotificationsAndStops(t *testing.T) {
	h := newHarness(t, config.Default())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.app.Run(ctx) }()

	p := h.property(t, "AP-12")
	_, err := h.app.Maintenance.Request(context.Background(), maintenance.RequestInput{PropertyID: p.ID, Title: "Roof leak"})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(h.notifier.Sent()) > 0 }, 5*time.Second, 20*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	sent := h.notifier.Sent()
	assert.Equal(t, "operations", sent[0].Recipient)
	assert.Equal(t, "availability", sent[0].Module)
}
