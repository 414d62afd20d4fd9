package repository

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/matthewbaird/rentalops/internal/apperr"
	"github.com/matthewbaird/rentalops/internal/domain"
	"github.com/matthewbaird/rentalops/internal/store"
	"github.com/matthewbaird/rentalops/internal/types"
)

type Properties struct{ Repo[domain.Property] }

// ByCode looks a property up by its code, ignoring case.
func (r Properties) ByCode(ctx context.Context, code string) (domain.Property, error) {
	found, err := r.find(ctx, func(p domain.Property) bool {
		return strings.EqualFold(p.Code, code)
	})
	if err != nil {
		return domain.Property{}, err
	}
	if len(found) == 0 {
		return domain.Property{}, apperr.NotFound("property.by_code", "no property with code %q", code)
	}
	return found[0], nil
}

type Negotiations struct{ Repo[domain.Negotiation] }

func (r Negotiations) ByProperty(ctx context.Context, propertyID string) ([]domain.Negotiation, error) {
	return r.find(ctx, func(n domain.Negotiation) bool { return n.PropertyID == propertyID })
}

// ActiveByProperty returns the non-terminal negotiations of a property.
// Under normal operation there is at most one.
func (r Negotiations) ActiveByProperty(ctx context.Context, propertyID string) ([]domain.Negotiation, error) {
	return r.find(ctx, func(n domain.Negotiation) bool {
		return n.PropertyID == propertyID && n.IsActive()
	})
}

// ExpiringProposals returns negotiations still in proposal_sent whose
// validity ended at or before now.
func (r Negotiations) ExpiringProposals(ctx context.Context, now time.Time) ([]domain.Negotiation, error) {
	return r.find(ctx, func(n domain.Negotiation) bool { return n.ProposalExpired(now) })
}

type FinancialEntries struct{ Repo[domain.FinancialEntry] }

func NewFinancialEntries(table store.Table[domain.FinancialEntry]) FinancialEntries {
	return FinancialEntries{newRepo(table, "financial_entry")}
}

func (r FinancialEntries) ByReference(ctx context.Context, refID string, refType domain.ReferenceType) ([]domain.FinancialEntry, error) {
	return r.find(ctx, func(e domain.FinancialEntry) bool {
		return e.ReferenceID == refID && e.ReferenceType == refType
	})
}

// Blocking returns unsettled blocking entries that reference the property
// directly or any of the given negotiations.
func (r FinancialEntries) Blocking(ctx context.Context, propertyID string, negotiationIDs []string) ([]domain.FinancialEntry, error) {
	return r.find(ctx, func(e domain.FinancialEntry) bool {
		if !e.Blocking() {
			return false
		}
		switch e.ReferenceType {
		case domain.RefProperty:
			return e.ReferenceID == propertyID
		case domain.RefNegotiation:
			return slices.Contains(negotiationIDs, e.ReferenceID)
		}
		return false
	})
}

func (r FinancialEntries) Overdue(ctx context.Context, now time.Time) ([]domain.FinancialEntry, error) {
	return r.find(ctx, func(e domain.FinancialEntry) bool { return e.Overdue(now) })
}

type Documents struct{ Repo[domain.DocumentWorkflow] }

func (r Documents) ByReference(ctx context.Context, refID string, refType domain.ReferenceType) ([]domain.DocumentWorkflow, error) {
	return r.find(ctx, func(d domain.DocumentWorkflow) bool {
		return d.ReferenceID == refID && d.ReferenceType == refType
	})
}

type Inspections struct{ Repo[domain.Inspection] }

func NewInspections(table store.Table[domain.Inspection]) Inspections {
	return Inspections{newRepo(table, "inspection")}
}

func (r Inspections) ByProperty(ctx context.Context, propertyID string) ([]domain.Inspection, error) {
	return r.find(ctx, func(i domain.Inspection) bool { return i.PropertyID == propertyID })
}

type MaintenanceOrders struct{ Repo[domain.MaintenanceOrder] }

func (r MaintenanceOrders) ByProperty(ctx context.Context, propertyID string) ([]domain.MaintenanceOrder, error) {
	return r.find(ctx, func(m domain.MaintenanceOrder) bool { return m.PropertyID == propertyID })
}

func (r MaintenanceOrders) OpenByProperty(ctx context.Context, propertyID string) ([]domain.MaintenanceOrder, error) {
	return r.find(ctx, func(m domain.MaintenanceOrder) bool {
		return m.PropertyID == propertyID && m.IsOpen()
	})
}

type AgendaEvents struct{ Repo[domain.AgendaEvent] }

func NewAgendaEvents(table store.Table[domain.AgendaEvent]) AgendaEvents {
	return AgendaEvents{newRepo(table, "agenda_event")}
}

// ByPropertyAndRange returns held events of the property overlapping rng.
func (r AgendaEvents) ByPropertyAndRange(ctx context.Context, propertyID string, rng types.TimeRange) ([]domain.AgendaEvent, error) {
	return r.find(ctx, func(e domain.AgendaEvent) bool {
		return e.Holds() && e.PropertyID == propertyID && e.Range.Overlaps(rng)
	})
}

// ByResponsibleAndRange returns held events of the responsible party
// overlapping rng. Names are compared case- and space-insensitively.
func (r AgendaEvents) ByResponsibleAndRange(ctx context.Context, responsible string, rng types.TimeRange) ([]domain.AgendaEvent, error) {
	want := domain.NormalizeResponsible(responsible)
	return r.find(ctx, func(e domain.AgendaEvent) bool {
		return e.Holds() && domain.NormalizeResponsible(e.Responsible) == want && e.Range.Overlaps(rng)
	})
}
