package financial

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewbaird/rentalops/internal/apperr"
	"github.com/matthewbaird/rentalops/internal/availability"
	"github.com/matthewbaird/rentalops/internal/clock"
	"github.com/matthewbaird/rentalops/internal/domain"
	"github.com/matthewbaird/rentalops/internal/repository"
	"github.com/matthewbaird/rentalops/internal/types"
)

var t0 = time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC)

type fixture struct {
	repos *repository.Set
	clock *clock.Manual
	svc   *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	repos := repository.NewMemorySet()
	clk := clock.NewManual(t0)
	agg := availability.New(repos, clk, nil, nil)
	require.NoError(t, repos.Properties.Add(ctx, domain.Property{
		Meta: domain.NewMeta("p1", t0), Code: "AP-1", Owner: "Owner", Status: domain.StatusDisponivel,
	}))
	require.NoError(t, repos.Negotiations.Add(ctx, domain.Negotiation{
		Meta: domain.NewMeta("n1", t0), PropertyID: "p1", Stage: domain.StageCancelled,
	}))
	return &fixture{repos: repos, clock: clk, svc: NewService(repos, agg, clk, nil, nil, "")}
}

func (f *fixture) status(t *testing.T) domain.PropertyStatus {
	t.Helper()
	p, err := f.repos.Properties.Get(context.Background(), "p1")
	require.NoError(t, err)
	return p.Status
}

func (f *fixture) register(t *testing.T, refID string, refType domain.ReferenceType, blocks bool) domain.FinancialEntry {
	t.Helper()
	e, err := f.svc.Register(context.Background(), RegisterInput{
		ReferenceID:        refID,
		ReferenceType:      refType,
		Type:               domain.EntryDeposit,
		Amount:             decimal.RequireFromString("2500.00"),
		Currency:           "brl",
		DueDate:            t0.Add(5 * 24 * time.Hour),
		BlocksAvailability: blocks,
	})
	require.NoError(t, err)
	return e
}

func TestBlockingEntryKeepsPropertyUnavailableUntilPaid(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	e := f.register(t, "p1", domain.RefProperty, true)
	assert.Equal(t, domain.EntryPending, e.Status)
	assert.Equal(t, "BRL", e.Amount.Currency)
	assert.Equal(t, domain.StatusIndisponivel, f.status(t))

	paid, err := f.svc.RegisterPayment(ctx, e.ID, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, domain.EntryPaid, paid.Status)
	require.NotNil(t, paid.PaidAt)
	assert.Equal(t, t0, *paid.PaidAt)
	assert.Len(t, paid.History, 2)
	assert.Equal(t, domain.StatusDisponivel, f.status(t))
}

func TestBlockingEntryThroughNegotiationReleasedOnCancel(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	e := f.register(t, "n1", domain.RefNegotiation, true)
	assert.Equal(t, domain.StatusIndisponivel, f.status(t))

	cancelled, err := f.svc.Cancel(ctx, e.ID, "deal fell through")
	require.NoError(t, err)
	assert.Equal(t, domain.EntryCancelled, cancelled.Status)
	assert.Equal(t, "deal fell through", cancelled.History[1].Note)
	assert.Equal(t, domain.StatusDisponivel, f.status(t))
}

func TestNonBlockingEntryLeavesStatus(t *testing.T) {
	f := newFixture(t)
	f.register(t, "p1", domain.RefProperty, false)
	assert.Equal(t, domain.StatusDisponivel, f.status(t))
}

func TestRegisterPayment_Twice(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	e := f.register(t, "p1", domain.RefProperty, true)

	_, err := f.svc.RegisterPayment(ctx, e.ID, t0)
	require.NoError(t, err)
	_, err = f.svc.RegisterPayment(ctx, e.ID, t0)
	if got := apperr.KindOf(err); got != apperr.KindInvalidState {
		t.Errorf("kind = %q, want %q", got, apperr.KindInvalidState)
	}
}

func TestOnlyPendingEntriesChange(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	e := f.register(t, "p1", domain.RefProperty, false)
	_, err := f.svc.Cancel(ctx, e.ID, "duplicate")
	require.NoError(t, err)

	_, err = f.svc.UpdateAmount(ctx, e.ID, decimal.NewFromInt(10), "BRL")
	assert.True(t, apperr.Is(err, apperr.KindInvalidState), "update: %v", err)
	_, err = f.svc.Cancel(ctx, e.ID, "again")
	assert.True(t, apperr.Is(err, apperr.KindInvalidState), "cancel: %v", err)
	_, err = f.svc.RegisterPayment(ctx, e.ID, t0)
	assert.True(t, apperr.Is(err, apperr.KindInvalidState), "pay: %v", err)
}

func TestUpdateAmount(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	e := f.register(t, "p1", domain.RefProperty, false)

	e, err := f.svc.UpdateAmount(ctx, e.ID, decimal.RequireFromString("2750.50"), "BRL")
	require.NoError(t, err)
	assert.Equal(t, int64(275050), e.Amount.AmountCents)
	assert.Equal(t, "amount BRL 2500.00 -> BRL 2750.50", e.History[1].Note)

	_, err = f.svc.UpdateAmount(ctx, e.ID, decimal.RequireFromString("1.001"), "BRL")
	assert.True(t, apperr.Is(err, apperr.KindValidation), "got %v", err)
}

func TestRegister_Validation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	base := RegisterInput{
		ReferenceID: "p1", ReferenceType: domain.RefProperty, Type: domain.EntryRent,
		Amount: decimal.NewFromInt(100), Currency: "BRL", DueDate: t0,
	}

	tests := []struct {
		name   string
		mutate func(*RegisterInput)
		kind   apperr.Kind
	}{
		{"bad type", func(in *RegisterInput) { in.Type = "bonus" }, apperr.KindValidation},
		{"no due date", func(in *RegisterInput) { in.DueDate = time.Time{} }, apperr.KindValidation},
		{"bad currency", func(in *RegisterInput) { in.Currency = "R$" }, apperr.KindValidation},
		{"negative", func(in *RegisterInput) { in.Amount = decimal.NewFromInt(-1) }, apperr.KindValidation},
		{"inspection ref", func(in *RegisterInput) { in.ReferenceType = domain.RefInspection }, apperr.KindValidation},
		{"missing property", func(in *RegisterInput) { in.ReferenceID = "nope" }, apperr.KindNotFound},
		{"missing negotiation", func(in *RegisterInput) {
			in.ReferenceID, in.ReferenceType = "nope", domain.RefNegotiation
		}, apperr.KindNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := base
			tt.mutate(&in)
			_, err := f.svc.Register(ctx, in)
			if got := apperr.KindOf(err); got != tt.kind {
				t.Errorf("kind = %q, want %q (err %v)", got, tt.kind, err)
			}
		})
	}
}

func TestBlankCurrencyUsesDefault(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.svc = NewService(f.repos, availability.New(f.repos, f.clock, nil, nil), f.clock, nil, nil, "usd")

	e, err := f.svc.Register(ctx, RegisterInput{
		ReferenceID: "p1", ReferenceType: domain.RefProperty, Type: domain.EntryFee,
		Amount: decimal.NewFromInt(40), DueDate: t0,
	})
	require.NoError(t, err)
	if got, want := e.Amount.Currency, "USD"; got != want {
		t.Errorf("currency = %q, want %q", got, want)
	}

	e, err = f.svc.UpdateAmount(ctx, e.ID, decimal.NewFromInt(45), " ")
	require.NoError(t, err)
	assert.Equal(t, "USD", e.Amount.Currency)
	assert.Equal(t, int64(4500), e.Amount.AmountCents)

	if got := NewService(f.repos, nil, f.clock, nil, nil, "").currency; got != types.DefaultCurrency {
		t.Errorf("unset default = %q, want %q", got, types.DefaultCurrency)
	}
}

func TestListOverdue(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	late := f.register(t, "p1", domain.RefProperty, false)
	paid := f.register(t, "p1", domain.RefProperty, false)
	_, err := f.svc.RegisterPayment(ctx, paid.ID, t0)
	require.NoError(t, err)

	got, err := f.svc.ListOverdue(ctx, t0.Add(6*24*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, late.ID, got[0].ID)

	byRef, err := f.svc.ListByReference(ctx, "p1", domain.RefProperty)
	require.NoError(t, err)
	assert.Len(t, byRef, 2)
}

func TestDaysPastDue(t *testing.T) {
	due := t0
	tests := []struct {
		paid time.Time
		want int
	}{
		{due.Add(-time.Hour), 0},
		{due, 0},
		{due.Add(23 * time.Hour), 0},
		{due.Add(49 * time.Hour), 2},
	}
	for _, tt := range tests {
		if got := DaysPastDue(due, tt.paid); got != tt.want {
			t.Errorf("DaysPastDue(%v) = %d, want %d", tt.paid, got, tt.want)
		}
	}
}
