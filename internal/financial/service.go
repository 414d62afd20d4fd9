// Package financial controls financial entries: pending until paid or
// cancelled. Entries flagged blocksAvailability keep their property out of
// availability while unsettled.
package financial

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/matthewbaird/rentalops/internal/apperr"
	"github.com/matthewbaird/rentalops/internal/clock"
	"github.com/matthewbaird/rentalops/internal/domain"
	"github.com/matthewbaird/rentalops/internal/event"
	"github.com/matthewbaird/rentalops/internal/logger"
	"github.com/matthewbaird/rentalops/internal/repository"
	"github.com/matthewbaird/rentalops/internal/store"
	"github.com/matthewbaird/rentalops/internal/types"
)

// Recomputer refreshes the derived status of a property.
type Recomputer interface {
	Recompute(ctx context.Context, propertyID string) (domain.Property, error)
}

type Service struct {
	repos    *repository.Set
	avail    Recomputer
	clock    clock.Clock
	events   *event.Emitter
	log      *logger.Logger
	currency string
}

// NewService builds the financial service. Amounts given without a
// currency are taken in defaultCurrency, or types.DefaultCurrency when
// that is empty.
func NewService(repos *repository.Set, avail Recomputer, clk clock.Clock, events *event.Emitter, log *logger.Logger, defaultCurrency string) *Service {
	return &Service{
		repos:    repos,
		avail:    avail,
		clock:    clk,
		events:   events,
		log:      logger.OrNop(log),
		currency: types.CurrencyOr(defaultCurrency, types.DefaultCurrency),
	}
}

type RegisterInput struct {
	ReferenceID        string
	ReferenceType      domain.ReferenceType
	Type               domain.EntryType
	Description        string
	Amount             decimal.Decimal
	Currency           string
	DueDate            time.Time
	BlocksAvailability bool
}

// Register creates a pending entry against an existing reference.
func (s *Service) Register(ctx context.Context, in RegisterInput) (domain.FinancialEntry, error) {
	const op = "financial.register"
	if !in.Type.Valid() {
		return domain.FinancialEntry{}, apperr.Validation(op, "unknown entry type %q", in.Type)
	}
	if in.DueDate.IsZero() {
		return domain.FinancialEntry{}, apperr.Validation(op, "due date is required")
	}
	amount, err := types.MoneyFromDecimal(in.Amount, types.CurrencyOr(in.Currency, s.currency))
	if err != nil {
		return domain.FinancialEntry{}, err
	}
	propertyID, err := s.resolveReference(ctx, op, in.ReferenceID, in.ReferenceType)
	if err != nil {
		return domain.FinancialEntry{}, err
	}

	now := s.clock.Now()
	e := domain.FinancialEntry{
		Meta:               domain.NewMeta(uuid.New().String(), now),
		ReferenceID:        in.ReferenceID,
		ReferenceType:      in.ReferenceType,
		Type:               in.Type,
		Description:        strings.TrimSpace(in.Description),
		Amount:             amount,
		DueDate:            in.DueDate.UTC(),
		Status:             domain.EntryPending,
		BlocksAvailability: in.BlocksAvailability,
		History: []domain.StatusChange{{
			To: string(domain.EntryPending), Note: "entry registered", Actor: event.ActorFrom(ctx), At: now,
		}},
	}
	if err := ctx.Err(); err != nil {
		return domain.FinancialEntry{}, apperr.Ensure(op, err)
	}
	if err := s.repos.Financial.Add(ctx, e); err != nil {
		return domain.FinancialEntry{}, err
	}

	s.log.Info("financial entry registered", "entry_id", e.ID, "type", e.Type, "amount", e.Amount.String(), "blocks", e.BlocksAvailability)
	s.events.Emit(ctx, event.NewFinancialEntryRegistered(s.payload(e, propertyID, "", 0), now))
	return e, s.refresh(ctx, e, propertyID)
}

// resolveReference checks that the referenced aggregate exists and
// returns the property it belongs to for availability purposes, if any.
func (s *Service) resolveReference(ctx context.Context, op, refID string, refType domain.ReferenceType) (string, error) {
	switch refType {
	case domain.RefProperty:
		if _, err := s.repos.Properties.Get(ctx, refID); err != nil {
			return "", err
		}
		return refID, nil
	case domain.RefNegotiation:
		n, err := s.repos.Negotiations.Get(ctx, refID)
		if err != nil {
			return "", err
		}
		return n.PropertyID, nil
	case domain.RefMaintenanceOrder:
		if _, err := s.repos.Maintenance.Get(ctx, refID); err != nil {
			return "", err
		}
		return "", nil
	}
	return "", apperr.Validation(op, "unsupported reference type %q", refType)
}

// refresh recomputes the owning property of a blocking entry.
func (s *Service) refresh(ctx context.Context, e domain.FinancialEntry, propertyID string) error {
	if !e.BlocksAvailability || propertyID == "" {
		return nil
	}
	_, err := s.avail.Recompute(ctx, propertyID)
	return err
}

func (s *Service) payload(e domain.FinancialEntry, propertyID string, from domain.EntryStatus, daysPastDue int) event.FinancialEntryPayload {
	return event.FinancialEntryPayload{
		EntryID:       e.ID,
		ReferenceID:   e.ReferenceID,
		ReferenceType: string(e.ReferenceType),
		PropertyID:    propertyID,
		EntryType:     string(e.Type),
		Amount:        e.Amount,
		From:          string(from),
		To:            string(e.Status),
		DaysPastDue:   daysPastDue,
	}
}

// mutate runs a read-validate-write sequence on one entry, replaying it
// when another writer got there first.
func (s *Service) mutate(ctx context.Context, op, id string, apply func(e *domain.FinancialEntry, now time.Time) error) (domain.FinancialEntry, domain.EntryStatus, error) {
	var (
		out  domain.FinancialEntry
		from domain.EntryStatus
	)
	err := store.RetryOnConflict(ctx, func() error {
		e, err := s.repos.Financial.Get(ctx, id)
		if err != nil {
			return err
		}
		if e.Status != domain.EntryPending {
			return apperr.InvalidState(op, "entry %s is %q, expected %q", id, e.Status, domain.EntryPending)
		}
		from = e.Status
		now := s.clock.Now()
		if err := apply(&e, now); err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		e.Touch(now)
		if err := s.repos.Financial.Update(ctx, e); err != nil {
			return err
		}
		out = e
		return nil
	})
	if err != nil {
		return domain.FinancialEntry{}, "", apperr.Ensure(op, err)
	}
	return out, from, nil
}

func (s *Service) propertyOf(ctx context.Context, e domain.FinancialEntry) string {
	switch e.ReferenceType {
	case domain.RefProperty:
		return e.ReferenceID
	case domain.RefNegotiation:
		n, err := s.repos.Negotiations.Get(ctx, e.ReferenceID)
		if err != nil {
			s.log.Warn("financial entry references missing negotiation", "entry_id", e.ID, "negotiation_id", e.ReferenceID, "error", err)
			return ""
		}
		return n.PropertyID
	}
	return ""
}

// UpdateAmount changes the amount of a pending entry.
func (s *Service) UpdateAmount(ctx context.Context, id string, amount decimal.Decimal, currency string) (domain.FinancialEntry, error) {
	const op = "financial.update_amount"
	m, err := types.MoneyFromDecimal(amount, types.CurrencyOr(currency, s.currency))
	if err != nil {
		return domain.FinancialEntry{}, err
	}
	e, _, err := s.mutate(ctx, op, id, func(e *domain.FinancialEntry, now time.Time) error {
		e.History = append(e.History, domain.StatusChange{
			From: string(e.Status), To: string(e.Status),
			Note:  "amount " + e.Amount.String() + " -> " + m.String(),
			Actor: event.ActorFrom(ctx), At: now,
		})
		e.Amount = m
		return nil
	})
	if err != nil {
		return domain.FinancialEntry{}, err
	}
	s.events.Emit(ctx, event.NewFinancialEntryAmountUpdated(s.payload(e, s.propertyOf(ctx, e), e.Status, 0), e.UpdatedAt))
	return e, nil
}

// RegisterPayment settles a pending entry. A zero paidAt means now.
func (s *Service) RegisterPayment(ctx context.Context, id string, paidAt time.Time) (domain.FinancialEntry, error) {
	const op = "financial.register_payment"
	var daysPastDue int
	e, from, err := s.mutate(ctx, op, id, func(e *domain.FinancialEntry, now time.Time) error {
		if paidAt.IsZero() {
			paidAt = now
		}
		paid := paidAt.UTC()
		e.Status = domain.EntryPaid
		e.PaidAt = &paid
		daysPastDue = DaysPastDue(e.DueDate, paid)
		e.History = append(e.History, domain.StatusChange{
			From: string(domain.EntryPending), To: string(domain.EntryPaid),
			Note: "payment registered", Actor: event.ActorFrom(ctx), At: now,
		})
		return nil
	})
	if err != nil {
		return domain.FinancialEntry{}, err
	}

	propertyID := s.propertyOf(ctx, e)
	s.log.Info("payment registered", "entry_id", id, "days_past_due", daysPastDue)
	s.events.Emit(ctx, event.NewPaymentRegistered(s.payload(e, propertyID, from, daysPastDue), e.UpdatedAt))
	return e, s.refresh(ctx, e, propertyID)
}

// DaysPastDue counts whole days between due and paid; early payment is 0.
func DaysPastDue(due, paid time.Time) int {
	if !paid.After(due) {
		return 0
	}
	return int(paid.Sub(due) / (24 * time.Hour))
}

// Cancel voids a pending entry.
func (s *Service) Cancel(ctx context.Context, id, reason string) (domain.FinancialEntry, error) {
	const op = "financial.cancel"
	if strings.TrimSpace(reason) == "" {
		return domain.FinancialEntry{}, apperr.Validation(op, "a cancellation reason is required")
	}
	e, from, err := s.mutate(ctx, op, id, func(e *domain.FinancialEntry, now time.Time) error {
		e.Status = domain.EntryCancelled
		e.CancelledAt = &now
		e.History = append(e.History, domain.StatusChange{
			From: string(domain.EntryPending), To: string(domain.EntryCancelled),
			Note: reason, Actor: event.ActorFrom(ctx), At: now,
		})
		return nil
	})
	if err != nil {
		return domain.FinancialEntry{}, err
	}

	propertyID := s.propertyOf(ctx, e)
	s.log.Info("financial entry cancelled", "entry_id", id, "reason", reason)
	p := s.payload(e, propertyID, from, 0)
	p.Note = reason
	s.events.Emit(ctx, event.NewFinancialEntryCancelled(p, e.UpdatedAt))
	return e, s.refresh(ctx, e, propertyID)
}

func (s *Service) Get(ctx context.Context, id string) (domain.FinancialEntry, error) {
	return s.repos.Financial.Get(ctx, id)
}

// ListOverdue returns pending entries whose due date is before now.
func (s *Service) ListOverdue(ctx context.Context, now time.Time) ([]domain.FinancialEntry, error) {
	return s.repos.Financial.Overdue(ctx, now)
}

func (s *Service) ListByReference(ctx context.Context, refID string, refType domain.ReferenceType) ([]domain.FinancialEntry, error) {
	return s.repos.Financial.ByReference(ctx, refID, refType)
}
