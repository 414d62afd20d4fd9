// Package inspection runs entry, exit and periodic inspections. Entry and
// exit inspections in progress take their property off the market; pending
// items left at completion are tracked until resolved.
package inspection

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/matthewbaird/rentalops/internal/agenda"
	"github.com/matthewbaird/rentalops/internal/apperr"
	"github.com/matthewbaird/rentalops/internal/clock"
	"github.com/matthewbaird/rentalops/internal/domain"
	"github.com/matthewbaird/rentalops/internal/event"
	"github.com/matthewbaird/rentalops/internal/logger"
	"github.com/matthewbaird/rentalops/internal/repository"
	"github.com/matthewbaird/rentalops/internal/store"
	"github.com/matthewbaird/rentalops/internal/types"
)

// DefaultDuration is the agenda slot booked for an inspection.
const DefaultDuration = time.Hour

// Recomputer refreshes the derived status of a property.
type Recomputer interface {
	Recompute(ctx context.Context, propertyID string) (domain.Property, error)
}

// Booker reserves agenda slots.
type Booker interface {
	Book(ctx context.Context, in agenda.BookInput, commit agenda.CommitFunc) (domain.AgendaEvent, error)
}

type Service struct {
	repos    *repository.Set
	agenda   Booker
	avail    Recomputer
	clock    clock.Clock
	events   *event.Emitter
	log      *logger.Logger
	duration time.Duration
}

func NewService(repos *repository.Set, booker Booker, avail Recomputer, clk clock.Clock, events *event.Emitter, log *logger.Logger, duration time.Duration) *Service {
	if duration <= 0 {
		duration = DefaultDuration
	}
	return &Service{
		repos:    repos,
		agenda:   booker,
		avail:    avail,
		clock:    clk,
		events:   events,
		log:      logger.OrNop(log),
		duration: duration,
	}
}

type ScheduleInput struct {
	PropertyID   string
	Type         domain.InspectionType
	ScheduledFor time.Time
	Responsible  string
}

// Schedule books the inspection slot on the agenda and stores the
// inspection inside the booking. An overlapping commitment for the
// property or the responsible party fails with conflict.
func (s *Service) Schedule(ctx context.Context, in ScheduleInput) (domain.Inspection, error) {
	const op = "inspection.schedule"
	switch {
	case strings.TrimSpace(in.PropertyID) == "":
		return domain.Inspection{}, apperr.Validation(op, "property is required")
	case !in.Type.Valid():
		return domain.Inspection{}, apperr.Validation(op, "unknown inspection type %q", in.Type)
	case strings.TrimSpace(in.Responsible) == "":
		return domain.Inspection{}, apperr.Validation(op, "responsible is required")
	case in.ScheduledFor.IsZero():
		return domain.Inspection{}, apperr.Validation(op, "scheduled time is required")
	}
	rng, err := types.RangeFor(in.ScheduledFor, s.duration)
	if err != nil {
		return domain.Inspection{}, err
	}

	id := uuid.New().String()
	var insp domain.Inspection
	_, err = s.agenda.Book(ctx, agenda.BookInput{
		PropertyID:    in.PropertyID,
		Responsible:   in.Responsible,
		Range:         rng,
		Type:          domain.AgendaInspection,
		Title:         string(in.Type) + " inspection",
		ReferenceID:   id,
		ReferenceType: domain.RefInspection,
	}, func(ctx context.Context, ev domain.AgendaEvent) error {
		now := s.clock.Now()
		insp = domain.Inspection{
			Meta:          domain.NewMeta(id, now),
			PropertyID:    in.PropertyID,
			Type:          in.Type,
			ScheduledFor:  rng.Start,
			Responsible:   strings.TrimSpace(in.Responsible),
			Status:        domain.InspectionScheduled,
			AgendaEventID: ev.ID,
		}
		return s.repos.Inspections.Add(ctx, insp)
	})
	if err != nil {
		return domain.Inspection{}, err
	}

	s.log.Info("inspection scheduled", "inspection_id", insp.ID, "property_id", insp.PropertyID, "type", insp.Type, "at", insp.ScheduledFor)
	s.events.Emit(ctx, event.NewInspectionChanged("scheduled", s.payload(insp, ""), insp.CreatedAt))
	return s.refresh(ctx, insp)
}

func (s *Service) payload(i domain.Inspection, from domain.InspectionStatus) event.InspectionPayload {
	return event.InspectionPayload{
		InspectionID: i.ID,
		PropertyID:   i.PropertyID,
		Type:         string(i.Type),
		Responsible:  i.Responsible,
		From:         string(from),
		To:           string(i.Status),
		HasPending:   i.HasPending,
		PendingCount: len(i.PendingDescriptions),
	}
}

func (s *Service) refresh(ctx context.Context, i domain.Inspection) (domain.Inspection, error) {
	if _, err := s.avail.Recompute(ctx, i.PropertyID); err != nil {
		return i, err
	}
	return i, nil
}

func (s *Service) mutate(ctx context.Context, op, id string, apply func(i *domain.Inspection, now time.Time) error) (domain.Inspection, domain.InspectionStatus, error) {
	var (
		out  domain.Inspection
		from domain.InspectionStatus
	)
	err := store.RetryOnConflict(ctx, func() error {
		i, err := s.repos.Inspections.Get(ctx, id)
		if err != nil {
			return err
		}
		from = i.Status
		now := s.clock.Now()
		if err := apply(&i, now); err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		i.Touch(now)
		if err := s.repos.Inspections.Update(ctx, i); err != nil {
			return err
		}
		out = i
		return nil
	})
	if err != nil {
		return domain.Inspection{}, "", apperr.Ensure(op, err)
	}
	return out, from, nil
}

// Start moves a scheduled inspection to in_progress.
func (s *Service) Start(ctx context.Context, id string) (domain.Inspection, error) {
	const op = "inspection.start"
	i, from, err := s.mutate(ctx, op, id, func(i *domain.Inspection, now time.Time) error {
		if i.Status != domain.InspectionScheduled {
			return apperr.InvalidState(op, "inspection %s is %q, expected %q", id, i.Status, domain.InspectionScheduled)
		}
		i.Status = domain.InspectionInProgress
		i.StartedAt = &now
		return nil
	})
	if err != nil {
		return domain.Inspection{}, err
	}
	s.log.Info("inspection started", "inspection_id", id, "property_id", i.PropertyID)
	s.events.Emit(ctx, event.NewInspectionChanged("started", s.payload(i, from), i.UpdatedAt))
	return s.refresh(ctx, i)
}

type CompleteInput struct {
	HasPending          bool
	PendingDescriptions []string
	Checklist           []domain.ChecklistItem
	Photos              []domain.Photo
}

// Complete finishes a scheduled or running inspection. Listing pending
// descriptions implies HasPending.
func (s *Service) Complete(ctx context.Context, id string, in CompleteInput) (domain.Inspection, error) {
	const op = "inspection.complete"
	var pending []string
	for _, d := range in.PendingDescriptions {
		if d = strings.TrimSpace(d); d != "" {
			pending = append(pending, d)
		}
	}
	for n, item := range in.Checklist {
		if strings.TrimSpace(item.Area) == "" || strings.TrimSpace(item.Item) == "" {
			return domain.Inspection{}, apperr.Validation(op, "checklist item %d needs an area and an item", n+1)
		}
	}

	i, from, err := s.mutate(ctx, op, id, func(i *domain.Inspection, now time.Time) error {
		if i.Status != domain.InspectionScheduled && i.Status != domain.InspectionInProgress {
			return apperr.InvalidState(op, "inspection %s is already %q", id, i.Status)
		}
		if i.StartedAt == nil {
			i.StartedAt = &now
		}
		i.Status = domain.InspectionCompleted
		i.FinishedAt = &now
		i.HasPending = in.HasPending || len(pending) > 0
		i.PendingDescriptions = pending
		i.Checklist = in.Checklist
		i.Photos = in.Photos
		return nil
	})
	if err != nil {
		return domain.Inspection{}, err
	}
	s.log.Info("inspection completed", "inspection_id", id, "property_id", i.PropertyID, "has_pending", i.HasPending)
	s.events.Emit(ctx, event.NewInspectionChanged("completed", s.payload(i, from), i.UpdatedAt))
	return s.refresh(ctx, i)
}

// ResolvePending marks the pending items of a completed inspection as
// dealt with.
func (s *Service) ResolvePending(ctx context.Context, id string) (domain.Inspection, error) {
	const op = "inspection.resolve_pending"
	i, from, err := s.mutate(ctx, op, id, func(i *domain.Inspection, now time.Time) error {
		if !i.HasOpenPending() {
			return apperr.InvalidState(op, "inspection %s has no open pending items", id)
		}
		i.PendingResolvedAt = &now
		return nil
	})
	if err != nil {
		return domain.Inspection{}, err
	}
	s.events.Emit(ctx, event.NewInspectionChanged("pending_resolved", s.payload(i, from), i.UpdatedAt))
	return s.refresh(ctx, i)
}

func (s *Service) Get(ctx context.Context, id string) (domain.Inspection, error) {
	return s.repos.Inspections.Get(ctx, id)
}

func (s *Service) ListByProperty(ctx context.Context, propertyID string) ([]domain.Inspection, error) {
	return s.repos.Inspections.ByProperty(ctx, propertyID)
}
