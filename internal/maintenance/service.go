// Package maintenance runs maintenance orders. An open order (neither
// completed nor cancelled) puts its property in maintenance.
package maintenance

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

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
	repos  *repository.Set
	avail  Recomputer
	clock  clock.Clock
	events *event.Emitter
	log    *logger.Logger
}

func NewService(repos *repository.Set, avail Recomputer, clk clock.Clock, events *event.Emitter, log *logger.Logger) *Service {
	return &Service{repos: repos, avail: avail, clock: clk, events: events, log: logger.OrNop(log)}
}

type RequestInput struct {
	PropertyID  string
	Title       string
	Description string
	RequestedBy string
}

// Request opens an order; the property goes into maintenance at once.
func (s *Service) Request(ctx context.Context, in RequestInput) (domain.MaintenanceOrder, error) {
	const op = "maintenance.request"
	if strings.TrimSpace(in.Title) == "" {
		return domain.MaintenanceOrder{}, apperr.Validation(op, "title is required")
	}
	if _, err := s.repos.Properties.Get(ctx, in.PropertyID); err != nil {
		return domain.MaintenanceOrder{}, err
	}

	now := s.clock.Now()
	actor := event.ActorFrom(ctx)
	requestedBy := strings.TrimSpace(in.RequestedBy)
	if requestedBy == "" {
		requestedBy = actor
	}
	m := domain.MaintenanceOrder{
		Meta:        domain.NewMeta(uuid.New().String(), now),
		PropertyID:  in.PropertyID,
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		RequestedBy: requestedBy,
		Status:      domain.MaintenanceRequested,
		History: []domain.StatusChange{{
			To: string(domain.MaintenanceRequested), Actor: actor, At: now,
		}},
	}
	if err := ctx.Err(); err != nil {
		return domain.MaintenanceOrder{}, apperr.Ensure(op, err)
	}
	if err := s.repos.Maintenance.Add(ctx, m); err != nil {
		return domain.MaintenanceOrder{}, err
	}

	s.log.Info("maintenance requested", "order_id", m.ID, "property_id", m.PropertyID, "title", m.Title)
	s.events.Emit(ctx, event.NewMaintenanceChanged(payload(m, ""), now))
	return s.refresh(ctx, m)
}

func payload(m domain.MaintenanceOrder, from domain.MaintenanceStatus) event.MaintenancePayload {
	return event.MaintenancePayload{
		OrderID:    m.ID,
		PropertyID: m.PropertyID,
		Title:      m.Title,
		From:       string(from),
		To:         string(m.Status),
		Reason:     m.CancelReason,
		Cost:       m.Cost,
	}
}

func (s *Service) refresh(ctx context.Context, m domain.MaintenanceOrder) (domain.MaintenanceOrder, error) {
	if _, err := s.avail.Recompute(ctx, m.PropertyID); err != nil {
		return m, err
	}
	return m, nil
}

// transition validates target against the adjacency table, lets stamp
// fill the status-specific fields, persists and recomputes the property.
func (s *Service) transition(ctx context.Context, op, id string, target domain.MaintenanceStatus, note string, stamp func(m *domain.MaintenanceOrder, now time.Time)) (domain.MaintenanceOrder, error) {
	var (
		out  domain.MaintenanceOrder
		from domain.MaintenanceStatus
	)
	err := store.RetryOnConflict(ctx, func() error {
		m, err := s.repos.Maintenance.Get(ctx, id)
		if err != nil {
			return err
		}
		if err := domain.ValidateTransition(op, domain.MaintenanceTransitions, m.Status, target); err != nil {
			return err
		}
		from = m.Status
		now := s.clock.Now()
		m.Status = target
		if stamp != nil {
			stamp(&m, now)
		}
		m.History = append(m.History, domain.StatusChange{
			From: string(from), To: string(target), Note: note, Actor: event.ActorFrom(ctx), At: now,
		})
		if err := ctx.Err(); err != nil {
			return err
		}
		m.Touch(now)
		if err := s.repos.Maintenance.Update(ctx, m); err != nil {
			return err
		}
		out = m
		return nil
	})
	if err != nil {
		return domain.MaintenanceOrder{}, apperr.Ensure(op, err)
	}

	s.log.Info("maintenance order moved", "order_id", id, "from", from, "to", target)
	s.events.Emit(ctx, event.NewMaintenanceChanged(payload(out, from), out.UpdatedAt))
	return s.refresh(ctx, out)
}

func (s *Service) Approve(ctx context.Context, id string) (domain.MaintenanceOrder, error) {
	return s.transition(ctx, "maintenance.approve", id, domain.MaintenanceApproved, "",
		func(m *domain.MaintenanceOrder, now time.Time) { m.ApprovedAt = &now })
}

func (s *Service) StartExecution(ctx context.Context, id string) (domain.MaintenanceOrder, error) {
	return s.transition(ctx, "maintenance.start", id, domain.MaintenanceInExecution, "",
		func(m *domain.MaintenanceOrder, now time.Time) { m.StartedAt = &now })
}

// Complete closes the order; cost is optional.
func (s *Service) Complete(ctx context.Context, id string, cost *types.Money) (domain.MaintenanceOrder, error) {
	const op = "maintenance.complete"
	if cost != nil {
		if _, err := types.NewMoney(cost.AmountCents, cost.Currency); err != nil {
			return domain.MaintenanceOrder{}, err
		}
	}
	note := ""
	if cost != nil {
		note = "cost " + cost.String()
	}
	return s.transition(ctx, op, id, domain.MaintenanceCompleted, note,
		func(m *domain.MaintenanceOrder, now time.Time) {
			m.CompletedAt = &now
			m.Cost = cost
		})
}

func (s *Service) Cancel(ctx context.Context, id, reason string) (domain.MaintenanceOrder, error) {
	const op = "maintenance.cancel"
	if strings.TrimSpace(reason) == "" {
		return domain.MaintenanceOrder{}, apperr.Validation(op, "a cancellation reason is required")
	}
	return s.transition(ctx, op, id, domain.MaintenanceCancelled, reason,
		func(m *domain.MaintenanceOrder, now time.Time) {
			m.CancelledAt = &now
			m.CancelReason = reason
		})
}

func (s *Service) Get(ctx context.Context, id string) (domain.MaintenanceOrder, error) {
	return s.repos.Maintenance.Get(ctx, id)
}

func (s *Service) ListByProperty(ctx context.Context, propertyID string) ([]domain.MaintenanceOrder, error) {
	return s.repos.Maintenance.ByProperty(ctx, propertyID)
}
