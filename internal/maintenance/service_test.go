package maintenance

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewbaird/rentalops/internal/apperr"
	"github.com/matthewbaird/rentalops/internal/availability"
	"github.com/matthewbaird/rentalops/internal/clock"
	"github.com/matthewbaird/rentalops/internal/domain"
	"github.com/matthewbaird/rentalops/internal/event"
	"github.com/matthewbaird/rentalops/internal/repository"
	"github.com/matthewbaird/rentalops/internal/types"
)

var t0 = time.Date(2026, 2, 10, 11, 0, 0, 0, time.UTC)

func newFixture(t *testing.T) (*Service, *repository.Set) {
	t.Helper()
	repos := repository.NewMemorySet()
	clk := clock.NewManual(t0)
	require.NoError(t, repos.Properties.Add(context.Background(), domain.Property{
		Meta: domain.NewMeta("p1", t0), Code: "AP-1", Owner: "Owner", Status: domain.StatusDisponivel,
	}))
	return NewService(repos, availability.New(repos, clk, nil, nil), clk, nil, nil), repos
}

func status(t *testing.T, repos *repository.Set) domain.PropertyStatus {
	t.Helper()
	p, err := repos.Properties.Get(context.Background(), "p1")
	require.NoError(t, err)
	return p.Status
}

func TestOrderLifecycle(t *testing.T) {
	ctx := event.WithActor(context.Background(), "manager")
	svc, repos := newFixture(t)

	m, err := svc.Request(ctx, RequestInput{PropertyID: "p1", Title: "Leaking sink"})
	require.NoError(t, err)
	assert.Equal(t, "manager", m.RequestedBy)
	assert.Equal(t, domain.StatusEmManutencao, status(t, repos))

	p, err := repos.Properties.Get(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, p.HasOpenMaintenance)

	m, err = svc.Approve(ctx, m.ID)
	require.NoError(t, err)
	assert.NotNil(t, m.ApprovedAt)

	m, err = svc.StartExecution(ctx, m.ID)
	require.NoError(t, err)
	assert.NotNil(t, m.StartedAt)
	assert.Equal(t, domain.StatusEmManutencao, status(t, repos))

	cost, err := types.ParseMoney("320.00", "BRL")
	require.NoError(t, err)
	m, err = svc.Complete(ctx, m.ID, &cost)
	require.NoError(t, err)
	require.NotNil(t, m.Cost)
	assert.Equal(t, int64(32000), m.Cost.AmountCents)
	assert.Len(t, m.History, 4)
	assert.Equal(t, domain.StatusDisponivel, status(t, repos))

	p, err = repos.Properties.Get(ctx, "p1")
	require.NoError(t, err)
	assert.False(t, p.HasOpenMaintenance)
}

func TestTransitions(t *testing.T) {
	ctx := context.Background()
	svc, _ := newFixture(t)

	m, err := svc.Request(ctx, RequestInput{PropertyID: "p1", Title: "Paint"})
	require.NoError(t, err)

	_, err = svc.StartExecution(ctx, m.ID)
	if got := apperr.KindOf(err); got != apperr.KindInvalidTransition {
		t.Errorf("skip approval: kind = %q, want %q", got, apperr.KindInvalidTransition)
	}
	_, err = svc.Complete(ctx, m.ID, nil)
	assert.True(t, apperr.Is(err, apperr.KindInvalidTransition), "complete requested: %v", err)

	_, err = svc.Cancel(ctx, m.ID, "")
	assert.True(t, apperr.Is(err, apperr.KindValidation), "cancel without reason: %v", err)

	m, err = svc.Cancel(ctx, m.ID, "owner will handle it")
	require.NoError(t, err)
	assert.Equal(t, "owner will handle it", m.CancelReason)

	_, err = svc.Approve(ctx, m.ID)
	assert.True(t, apperr.Is(err, apperr.KindInvalidTransition), "approve cancelled: %v", err)
}

func TestRequest_Errors(t *testing.T) {
	svc, _ := newFixture(t)
	_, err := svc.Request(context.Background(), RequestInput{PropertyID: "p1"})
	assert.True(t, apperr.Is(err, apperr.KindValidation), "no title: %v", err)
	_, err = svc.Request(context.Background(), RequestInput{PropertyID: "zz", Title: "x"})
	assert.True(t, apperr.Is(err, apperr.KindNotFound), "no property: %v", err)
}

func TestMaintenanceOutranksNegotiation(t *testing.T) {
	ctx := context.Background()
	svc, repos := newFixture(t)
	require.NoError(t, repos.Negotiations.Add(ctx, domain.Negotiation{
		Meta: domain.NewMeta("n1", t0), PropertyID: "p1", Stage: domain.StageProposalSent,
	}))

	m, err := svc.Request(ctx, RequestInput{PropertyID: "p1", Title: "Gas leak"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusEmManutencao, status(t, repos))

	_, err = svc.Cancel(ctx, m.ID, "false alarm")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusEmNegociacao, status(t, repos))
}
