// Package agenda books time slots for properties and responsible parties
// and rejects double bookings. Ranges are half-open: an event ending when
// another starts does not conflict with it.
package agenda

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/matthewbaird/rentalops/internal/apperr"
	"github.com/matthewbaird/rentalops/internal/clock"
	"github.com/matthewbaird/rentalops/internal/domain"
	"github.com/matthewbaird/rentalops/internal/event"
	"github.com/matthewbaird/rentalops/internal/lock"
	"github.com/matthewbaird/rentalops/internal/logger"
	"github.com/matthewbaird/rentalops/internal/repository"
	"github.com/matthewbaird/rentalops/internal/types"
)

type Service struct {
	repos  *repository.Set
	locks  lock.Manager
	clock  clock.Clock
	events *event.Emitter
	log    *logger.Logger
}

func NewService(repos *repository.Set, locks lock.Manager, clk clock.Clock, events *event.Emitter, log *logger.Logger) *Service {
	return &Service{repos: repos, locks: locks, clock: clk, events: events, log: logger.OrNop(log)}
}

func PropertyKey(propertyID string) string {
	return "agenda:property:" + propertyID
}

func ResponsibleKey(name string) string {
	return "agenda:responsible:" + domain.NormalizeResponsible(name)
}

type BookInput struct {
	PropertyID    string
	Responsible   string
	Range         types.TimeRange
	Type          domain.AgendaEventType
	Title         string
	ReferenceID   string
	ReferenceType domain.ReferenceType
}

func (in BookInput) validate() error {
	const op = "agenda.book"
	switch {
	case in.PropertyID == "" && strings.TrimSpace(in.Responsible) == "":
		return apperr.Validation(op, "an event needs a property or a responsible party")
	case !in.Range.End.After(in.Range.Start):
		return apperr.Validation(op, "event must end after it starts (start %s, end %s)", in.Range.Start, in.Range.End)
	}
	switch in.Type {
	case "", domain.AgendaInspection, domain.AgendaVisit, domain.AgendaMaintenance, domain.AgendaOther:
		return nil
	}
	return apperr.Validation(op, "unknown event type %q", in.Type)
}

// CommitFunc persists the aggregate the booking belongs to. It runs while
// the slot is held, after the event insert. When it fails the event is
// released and Book returns its error.
type CommitFunc func(ctx context.Context, ev domain.AgendaEvent) error

// Book reserves the range for the property and the responsible party.
// The conflict check, insert and commit run under the ordered locks of
// both, so two overlapping bookings cannot both succeed.
func (s *Service) Book(ctx context.Context, in BookInput, commit CommitFunc) (domain.AgendaEvent, error) {
	const op = "agenda.book"
	if err := in.validate(); err != nil {
		return domain.AgendaEvent{}, err
	}
	if in.Type == "" {
		in.Type = domain.AgendaOther
	}

	var keys []string
	if in.PropertyID != "" {
		keys = append(keys, PropertyKey(in.PropertyID))
	}
	if strings.TrimSpace(in.Responsible) != "" {
		keys = append(keys, ResponsibleKey(in.Responsible))
	}

	var ev domain.AgendaEvent
	err := s.locks.WithLock(ctx, keys, func(ctx context.Context) error {
		if err := s.checkFree(ctx, op, in); err != nil {
			return err
		}
		ev = domain.AgendaEvent{
			Meta:          domain.NewMeta(uuid.New().String(), s.clock.Now()),
			PropertyID:    in.PropertyID,
			Responsible:   strings.TrimSpace(in.Responsible),
			Range:         in.Range,
			Type:          in.Type,
			Title:         strings.TrimSpace(in.Title),
			ReferenceID:   in.ReferenceID,
			ReferenceType: in.ReferenceType,
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.repos.Agenda.Add(ctx, ev); err != nil {
			return err
		}
		if commit == nil {
			return nil
		}
		if err := commit(ctx, ev); err != nil {
			if rerr := s.release(context.WithoutCancel(ctx), ev); rerr != nil {
				return errors.Join(err, rerr)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return domain.AgendaEvent{}, apperr.Ensure(op, err)
	}

	s.log.Info("agenda event booked", "event_id", ev.ID, "property_id", ev.PropertyID, "type", ev.Type)
	s.events.Emit(ctx, event.NewAgendaEventBooked(event.AgendaPayload{
		EventID:     ev.ID,
		PropertyID:  ev.PropertyID,
		Responsible: ev.Responsible,
		Type:        string(ev.Type),
		Title:       ev.Title,
		Range:       ev.Range,
	}, ev.CreatedAt))
	return ev, nil
}

// release frees the slot of an event whose owner failed to commit.
func (s *Service) release(ctx context.Context, ev domain.AgendaEvent) error {
	now := s.clock.Now()
	ev.ReleasedAt = &now
	ev.Touch(now)
	if err := s.repos.Agenda.Update(ctx, ev); err != nil {
		s.log.Error("agenda release failed", "event_id", ev.ID, "reference_id", ev.ReferenceID, "error", err)
		return err
	}
	s.log.Warn("agenda event released", "event_id", ev.ID, "reference_id", ev.ReferenceID)
	return nil
}

func (s *Service) checkFree(ctx context.Context, op string, in BookInput) error {
	if in.PropertyID != "" {
		if _, err := s.repos.Properties.Get(ctx, in.PropertyID); err != nil {
			return err
		}
		clash, err := s.FindOverlapping(ctx, in.PropertyID, in.Range)
		if err != nil {
			return err
		}
		if len(clash) > 0 {
			return apperr.Conflict(op, "property %s is already booked by %q (%s) in that range",
				in.PropertyID, clash[0].Title, clash[0].ID)
		}
	}
	if strings.TrimSpace(in.Responsible) != "" {
		clash, err := s.FindOverlappingForResponsible(ctx, in.Responsible, in.Range)
		if err != nil {
			return err
		}
		if len(clash) > 0 {
			return apperr.Conflict(op, "%s is already booked by %q (%s) in that range",
				in.Responsible, clash[0].Title, clash[0].ID)
		}
	}
	return nil
}

// FindOverlapping returns the events of a property overlapping rng.
func (s *Service) FindOverlapping(ctx context.Context, propertyID string, rng types.TimeRange) ([]domain.AgendaEvent, error) {
	return s.repos.Agenda.ByPropertyAndRange(ctx, propertyID, rng)
}

// FindOverlappingForResponsible returns the events of a responsible party
// overlapping rng.
func (s *Service) FindOverlappingForResponsible(ctx context.Context, responsible string, rng types.TimeRange) ([]domain.AgendaEvent, error) {
	return s.repos.Agenda.ByResponsibleAndRange(ctx, responsible, rng)
}

func (s *Service) Get(ctx context.Context, id string) (domain.AgendaEvent, error) {
	return s.repos.Agenda.Get(ctx, id)
}
