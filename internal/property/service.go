// Package property registers properties and serves the read side. The
// derived status fields are owned by the availability aggregator.
package property

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/matthewbaird/rentalops/internal/apperr"
	"github.com/matthewbaird/rentalops/internal/availability"
	"github.com/matthewbaird/rentalops/internal/clock"
	"github.com/matthewbaird/rentalops/internal/domain"
	"github.com/matthewbaird/rentalops/internal/event"
	"github.com/matthewbaird/rentalops/internal/lock"
	"github.com/matthewbaird/rentalops/internal/logger"
	"github.com/matthewbaird/rentalops/internal/repository"
	"github.com/matthewbaird/rentalops/internal/store"
	"github.com/matthewbaird/rentalops/internal/types"
)

// Availability is the part of the aggregator this service needs.
type Availability interface {
	Recompute(ctx context.Context, propertyID string) (domain.Property, error)
	SearchAvailable(ctx context.Context, refDate time.Time) ([]domain.Property, error)
}

type Service struct {
	repos  *repository.Set
	locks  lock.Manager
	avail  Availability
	clock  clock.Clock
	events *event.Emitter
	log    *logger.Logger
}

func NewService(repos *repository.Set, locks lock.Manager, avail Availability, clk clock.Clock, events *event.Emitter, log *logger.Logger) *Service {
	return &Service{repos: repos, locks: locks, avail: avail, clock: clk, events: events, log: logger.OrNop(log)}
}

type RegisterInput struct {
	Code          string
	Address       types.Address
	SizeM2        float64
	Bedrooms      int
	Owner         string
	AvailableFrom *time.Time
}

func (in RegisterInput) validate() error {
	const op = "property.register"
	switch {
	case strings.TrimSpace(in.Code) == "":
		return apperr.Validation(op, "code is required")
	case strings.TrimSpace(in.Owner) == "":
		return apperr.Validation(op, "owner is required")
	case in.SizeM2 < 0:
		return apperr.Validation(op, "size must be >= 0, got %v", in.SizeM2)
	case in.Bedrooms < 0:
		return apperr.Validation(op, "bedrooms must be >= 0, got %d", in.Bedrooms)
	}
	return nil
}

func codeLockKey(code string) string {
	return "property:code:" + strings.ToLower(strings.TrimSpace(code))
}

// Register creates a property. Codes are unique ignoring case.
func (s *Service) Register(ctx context.Context, in RegisterInput) (domain.Property, error) {
	if err := in.validate(); err != nil {
		return domain.Property{}, err
	}
	in.Code = strings.TrimSpace(in.Code)

	var p domain.Property
	err := s.locks.WithLock(ctx, []string{codeLockKey(in.Code)}, func(ctx context.Context) error {
		existing, err := s.repos.Properties.ByCode(ctx, in.Code)
		switch {
		case err == nil:
			return apperr.Conflict("property.register", "code %q is already used by property %s", in.Code, existing.ID)
		case !apperr.Is(err, apperr.KindNotFound):
			return err
		}

		now := s.clock.Now()
		var from *time.Time
		if in.AvailableFrom != nil {
			t := in.AvailableFrom.UTC()
			from = &t
		}
		p = domain.Property{
			Meta:            domain.NewMeta(uuid.New().String(), now),
			Code:            in.Code,
			Address:         in.Address,
			SizeM2:          in.SizeM2,
			Bedrooms:        in.Bedrooms,
			Owner:           strings.TrimSpace(in.Owner),
			AvailableFrom:   from,
			Status:          availability.Derive(availability.Facts{AvailableFrom: from}, now),
			StatusChangedAt: now,
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		return s.repos.Properties.Add(ctx, p)
	})
	if err != nil {
		return domain.Property{}, apperr.Ensure("property.register", err)
	}

	s.log.Info("property registered", "property_id", p.ID, "code", p.Code, "status", p.Status)
	s.events.Emit(ctx, event.NewPropertyRegistered(event.PropertyRegisteredPayload{
		PropertyID: p.ID, Code: p.Code, Owner: p.Owner,
	}, p.CreatedAt))
	return s.avail.Recompute(ctx, p.ID)
}

func (s *Service) Get(ctx context.Context, id string) (domain.Property, error) {
	return s.repos.Properties.Get(ctx, id)
}

func (s *Service) GetByCode(ctx context.Context, code string) (domain.Property, error) {
	return s.repos.Properties.ByCode(ctx, code)
}

func (s *Service) List(ctx context.Context) ([]domain.Property, error) {
	return s.repos.Properties.List(ctx)
}

// SetAvailableFrom sets or clears (nil) the date the property is released
// for rental, then recomputes its status.
func (s *Service) SetAvailableFrom(ctx context.Context, id string, from *time.Time) (domain.Property, error) {
	err := store.RetryOnConflict(ctx, func() error {
		p, err := s.repos.Properties.Get(ctx, id)
		if err != nil {
			return err
		}
		if from != nil {
			t := from.UTC()
			p.AvailableFrom = &t
		} else {
			p.AvailableFrom = nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		p.Touch(s.clock.Now())
		return s.repos.Properties.Update(ctx, p)
	})
	if err != nil {
		return domain.Property{}, apperr.Ensure("property.set_available_from", err)
	}
	s.log.Info("property available-from updated", "property_id", id, "available_from", from)
	return s.avail.Recompute(ctx, id)
}

// SearchAvailable returns properties free now, or scheduled to be free at
// or before refDate.
func (s *Service) SearchAvailable(ctx context.Context, refDate time.Time) ([]domain.Property, error) {
	return s.avail.SearchAvailable(ctx, refDate)
}
