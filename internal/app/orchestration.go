package app

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/matthewbaird/rentalops/internal/activity"
	"github.com/matthewbaird/rentalops/internal/agenda"
	"github.com/matthewbaird/rentalops/internal/apperr"
	"github.com/matthewbaird/rentalops/internal/domain"
	"github.com/matthewbaird/rentalops/internal/financial"
	"github.com/matthewbaird/rentalops/internal/signals"
	"github.com/matthewbaird/rentalops/internal/types"
)

// RegisterSignal records the signal (deposit) agreed in a negotiation and
// registers the matching blocking financial entry. An empty currency
// falls back to the configured default. When the entry cannot be stored
// the previous signal amount is restored.
func (a *App) RegisterSignal(ctx context.Context, negotiationID string, amount decimal.Decimal, currency string, dueDate time.Time) (domain.Negotiation, domain.FinancialEntry, error) {
	const op = "app.register_signal"
	if dueDate.IsZero() {
		return domain.Negotiation{}, domain.FinancialEntry{}, apperr.Validation(op, "due date is required")
	}
	currency = types.CurrencyOr(currency, a.Config.DefaultCurrency)
	money, err := types.MoneyFromDecimal(amount, currency)
	if err != nil {
		return domain.Negotiation{}, domain.FinancialEntry{}, err
	}
	if !money.Decimal().IsPositive() {
		return domain.Negotiation{}, domain.FinancialEntry{}, apperr.Validation(op, "signal amount must be positive, got %s", money)
	}

	prev, err := a.Negotiations.Get(ctx, negotiationID)
	if err != nil {
		return domain.Negotiation{}, domain.FinancialEntry{}, err
	}
	n, err := a.Negotiations.SetSignalAmount(ctx, negotiationID, money)
	if err != nil {
		return domain.Negotiation{}, domain.FinancialEntry{}, err
	}
	entry, err := a.Financial.Register(ctx, financial.RegisterInput{
		ReferenceID:        n.ID,
		ReferenceType:      domain.RefNegotiation,
		Type:               domain.EntrySignal,
		Description:        "Signal for negotiation with " + n.InterestedName,
		Amount:             amount,
		Currency:           currency,
		DueDate:            dueDate,
		BlocksAvailability: true,
	})
	switch {
	case err == nil:
		return n, entry, nil
	case entry.ID != "":
		// Stored; only the property recompute failed.
		return n, entry, err
	}
	restored, rerr := a.Negotiations.SetSignalAmount(context.WithoutCancel(ctx), n.ID, prev.SignalAmount)
	if rerr != nil {
		a.Log.Error("signal amount restore failed", "negotiation_id", n.ID, "error", rerr)
		return n, domain.FinancialEntry{}, errors.Join(err, rerr)
	}
	return restored, domain.FinancialEntry{}, err
}

// ScheduleVisit books a visit on the agenda of the property and the
// negotiation's broker, advancing the negotiation to visit_scheduled as
// part of the booking. A conflicting slot or a failed advance leaves both
// untouched. When the advance commits but the property recompute fails,
// the visit stays booked and the recompute error is returned with it.
func (a *App) ScheduleVisit(ctx context.Context, negotiationID string, rng types.TimeRange) (domain.AgendaEvent, domain.Negotiation, error) {
	const op = "app.schedule_visit"
	n, err := a.Negotiations.Get(ctx, negotiationID)
	if err != nil {
		return domain.AgendaEvent{}, domain.Negotiation{}, err
	}
	if n.Stage != domain.StageLeadCaptured {
		return domain.AgendaEvent{}, domain.Negotiation{}, apperr.InvalidState(op,
			"negotiation %s is at %q, a visit can only be scheduled from %q", n.ID, n.Stage, domain.StageLeadCaptured)
	}

	var (
		advanced     domain.Negotiation
		recomputeErr error
	)
	ev, err := a.Agenda.Book(ctx, agenda.BookInput{
		PropertyID:    n.PropertyID,
		Responsible:   n.BrokerName,
		Range:         rng,
		Type:          domain.AgendaVisit,
		Title:         "Visit with " + n.InterestedName,
		ReferenceID:   n.ID,
		ReferenceType: domain.RefNegotiation,
	}, func(ctx context.Context, _ domain.AgendaEvent) error {
		var err error
		advanced, err = a.Negotiations.Advance(ctx, n.ID, domain.StageVisitScheduled, "visit booked")
		if err != nil && advanced.Stage == domain.StageVisitScheduled {
			recomputeErr = err
			return nil
		}
		return err
	})
	if err != nil {
		return domain.AgendaEvent{}, domain.Negotiation{}, err
	}
	return ev, advanced, recomputeErr
}

// summaryLimit is the largest page the activity store serves.
const summaryLimit = 500

// ActivitySummary classifies the recorded activity of a property from
// since until now.
func (a *App) ActivitySummary(ctx context.Context, propertyID string, since time.Time) (types.SignalSummary, error) {
	const op = "app.activity_summary"
	if _, err := a.Properties.Get(ctx, propertyID); err != nil {
		return types.SignalSummary{}, err
	}
	until := a.Clock.Now()
	if since.After(until) {
		return types.SignalSummary{}, apperr.Validation(op, "since %s is in the future", since.Format(time.RFC3339))
	}
	entries, _, _, err := a.Activity.QueryByEntity(ctx, "property", propertyID, activity.QueryOptions{
		Since:     &since,
		Until:     &until,
		MinWeight: "info",
		Limit:     summaryLimit,
	})
	if err != nil {
		return types.SignalSummary{}, apperr.Dependency(op, err)
	}
	return signals.Summarize(entries, "property", propertyID, since, until), nil
}
