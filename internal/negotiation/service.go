// Package negotiation runs the rental negotiation pipeline. A negotiation
// blocks its property while its stage is non-terminal; at most one may be
// active per property.
package negotiation

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/matthewbaird/rentalops/internal/apperr"
	"github.com/matthewbaird/rentalops/internal/clock"
	"github.com/matthewbaird/rentalops/internal/domain"
	"github.com/matthewbaird/rentalops/internal/event"
	"github.com/matthewbaird/rentalops/internal/lock"
	"github.com/matthewbaird/rentalops/internal/logger"
	"github.com/matthewbaird/rentalops/internal/repository"
	"github.com/matthewbaird/rentalops/internal/store"
	"github.com/matthewbaird/rentalops/internal/types"
)

// DefaultProposalValidity applies when the service is built with a zero
// validity window.
const DefaultProposalValidity = 7 * 24 * time.Hour

const expiryNote = "proposal validity expired"

// Recomputer refreshes the derived status of a property.
type Recomputer interface {
	Recompute(ctx context.Context, propertyID string) (domain.Property, error)
}

type Service struct {
	repos    *repository.Set
	locks    lock.Manager
	avail    Recomputer
	clock    clock.Clock
	events   *event.Emitter
	log      *logger.Logger
	validity time.Duration
	currency string
}

// NewService builds the pipeline. A zero proposalValidity means
// DefaultProposalValidity; an empty defaultCurrency means
// types.DefaultCurrency.
func NewService(repos *repository.Set, locks lock.Manager, avail Recomputer, clk clock.Clock, events *event.Emitter, log *logger.Logger, proposalValidity time.Duration, defaultCurrency string) *Service {
	if proposalValidity <= 0 {
		proposalValidity = DefaultProposalValidity
	}
	return &Service{
		repos:    repos,
		locks:    locks,
		avail:    avail,
		clock:    clk,
		events:   events,
		log:      logger.OrNop(log),
		validity: proposalValidity,
		currency: types.CurrencyOr(defaultCurrency, types.DefaultCurrency),
	}
}

// PropertyLockKey serialises negotiation creation for one property.
func PropertyLockKey(propertyID string) string {
	return "negotiation:property:" + propertyID
}

type CreateInput struct {
	PropertyID      string
	InterestedName  string
	InterestedEmail string
	BrokerName      string
}

// Create opens a negotiation at lead_captured. It fails with not_found
// for an unknown property and conflict when the property already has an
// active negotiation.
func (s *Service) Create(ctx context.Context, in CreateInput) (domain.Negotiation, error) {
	const op = "negotiation.create"
	if strings.TrimSpace(in.InterestedName) == "" {
		return domain.Negotiation{}, apperr.Validation(op, "interested party name is required")
	}

	var n domain.Negotiation
	err := s.locks.WithLock(ctx, []string{PropertyLockKey(in.PropertyID)}, func(ctx context.Context) error {
		if _, err := s.repos.Properties.Get(ctx, in.PropertyID); err != nil {
			return err
		}
		active, err := s.repos.Negotiations.ActiveByProperty(ctx, in.PropertyID)
		if err != nil {
			return err
		}
		if len(active) > 0 {
			return apperr.Conflict(op, "property %s already has active negotiation %s at stage %q",
				in.PropertyID, active[0].ID, active[0].Stage)
		}

		now := s.clock.Now()
		n = domain.Negotiation{
			Meta:            domain.NewMeta(uuid.New().String(), now),
			PropertyID:      in.PropertyID,
			InterestedName:  strings.TrimSpace(in.InterestedName),
			InterestedEmail: strings.TrimSpace(in.InterestedEmail),
			BrokerName:      strings.TrimSpace(in.BrokerName),
			Stage:           domain.StageLeadCaptured,
			SignalAmount:    types.ZeroMoney(s.currency),
			History: []domain.StatusChange{{
				To: string(domain.StageLeadCaptured), Actor: event.ActorFrom(ctx), At: now,
			}},
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		return s.repos.Negotiations.Add(ctx, n)
	})
	if err != nil {
		return domain.Negotiation{}, apperr.Ensure(op, err)
	}

	s.log.Info("negotiation created", "negotiation_id", n.ID, "property_id", n.PropertyID, "interested_email", n.InterestedEmail)
	s.events.Emit(ctx, event.NewNegotiationOpened(event.NegotiationPayload{
		NegotiationID: n.ID, PropertyID: n.PropertyID, To: string(n.Stage),
	}, n.CreatedAt))
	if _, err := s.avail.Recompute(ctx, n.PropertyID); err != nil {
		return n, err
	}
	return n, nil
}

// Advance moves the negotiation to target, which must be the immediate
// successor of the current stage or cancelled.
func (s *Service) Advance(ctx context.Context, id string, target domain.NegotiationStage, notes string) (domain.Negotiation, error) {
	return s.transition(ctx, id, target, notes, false)
}

func (s *Service) transition(ctx context.Context, id string, target domain.NegotiationStage, notes string, expiry bool) (domain.Negotiation, error) {
	const op = "negotiation.advance"
	var (
		n    domain.Negotiation
		from domain.NegotiationStage
	)
	err := store.RetryOnConflict(ctx, func() error {
		cur, err := s.repos.Negotiations.Get(ctx, id)
		if err != nil {
			return err
		}
		now := s.clock.Now()
		if expiry && !cur.ProposalExpired(now) {
			return apperr.InvalidState("negotiation.expire", "negotiation %s is no longer an expired proposal (stage %q)", id, cur.Stage)
		}
		if err := domain.ValidateTransition(op, domain.NegotiationTransitions, cur.Stage, target); err != nil {
			return apperr.InvalidTransition(op, "negotiation %s: %v", id, errMessage(err))
		}

		from = cur.Stage
		cur.Stage = target
		if target.IsTerminal() {
			cur.ClosedAt = &now
		}
		if target == domain.StageProposalSent && cur.ProposalExpiresAt == nil {
			expires := now.Add(s.validity)
			cur.ProposalExpiresAt = &expires
		}
		cur.History = append(cur.History, domain.StatusChange{
			From: string(from), To: string(target), Note: notes, Actor: event.ActorFrom(ctx), At: now,
		})
		if err := ctx.Err(); err != nil {
			return err
		}
		cur.Touch(now)
		if err := s.repos.Negotiations.Update(ctx, cur); err != nil {
			return err
		}
		n = cur
		return nil
	})
	if err != nil {
		return domain.Negotiation{}, apperr.Ensure(op, err)
	}

	s.log.Info("negotiation advanced", "negotiation_id", id, "from", from, "to", target)
	s.events.Emit(ctx, event.NewNegotiationStageChanged(event.NegotiationPayload{
		NegotiationID: n.ID, PropertyID: n.PropertyID,
		From: string(from), To: string(target), Notes: notes, Expired: expiry,
	}, n.UpdatedAt))
	if _, err := s.avail.Recompute(ctx, n.PropertyID); err != nil {
		return n, err
	}
	return n, nil
}

func errMessage(err error) string {
	var e *apperr.Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// SetSignalAmount records the deposit agreed with the interested party.
func (s *Service) SetSignalAmount(ctx context.Context, id string, amount types.Money) (domain.Negotiation, error) {
	const op = "negotiation.set_signal"
	amount, err := types.NewMoney(amount.AmountCents, types.CurrencyOr(amount.Currency, s.currency))
	if err != nil {
		return domain.Negotiation{}, err
	}
	var n domain.Negotiation
	err = store.RetryOnConflict(ctx, func() error {
		cur, err := s.repos.Negotiations.Get(ctx, id)
		if err != nil {
			return err
		}
		if !cur.IsActive() {
			return apperr.InvalidState(op, "negotiation %s is %q", id, cur.Stage)
		}
		cur.SignalAmount = amount
		if err := ctx.Err(); err != nil {
			return err
		}
		cur.Touch(s.clock.Now())
		if err := s.repos.Negotiations.Update(ctx, cur); err != nil {
			return err
		}
		n = cur
		return nil
	})
	if err != nil {
		return domain.Negotiation{}, apperr.Ensure(op, err)
	}
	s.events.Emit(ctx, event.NewSignalAmountSet(event.SignalAmountPayload{
		NegotiationID: n.ID, PropertyID: n.PropertyID, Amount: amount,
	}, n.UpdatedAt))
	return n, nil
}

func (s *Service) Get(ctx context.Context, id string) (domain.Negotiation, error) {
	return s.repos.Negotiations.Get(ctx, id)
}

func (s *Service) ListByProperty(ctx context.Context, propertyID string) ([]domain.Negotiation, error) {
	return s.repos.Negotiations.ByProperty(ctx, propertyID)
}

// SweepResult counts the outcome of one expiry sweep.
type SweepResult struct {
	Expired int
	Skipped int // advanced or cancelled by someone else in the meantime
	Failed  int
}

// ExpireProposals cancels every negotiation whose proposal validity has
// passed while still at proposal_sent. A failing negotiation is logged
// and does not stop the sweep.
func (s *Service) ExpireProposals(ctx context.Context) (SweepResult, error) {
	var res SweepResult
	due, err := s.repos.Negotiations.ExpiringProposals(ctx, s.clock.Now())
	if err != nil {
		return res, err
	}
	for _, n := range due {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		got, err := s.transition(ctx, n.ID, domain.StageCancelled, expiryNote, true)
		switch {
		case err == nil:
			res.Expired++
		case got.Stage == domain.StageCancelled:
			res.Expired++
			s.log.Error("recompute after proposal expiry failed", "negotiation_id", n.ID, "property_id", n.PropertyID, "error", err)
		case apperr.Is(err, apperr.KindInvalidState), apperr.Is(err, apperr.KindInvalidTransition):
			res.Skipped++
		default:
			res.Failed++
			s.log.Error("proposal expiry failed", "negotiation_id", n.ID, "property_id", n.PropertyID, "error", err)
		}
	}
	if len(due) > 0 {
		s.log.Info("proposal expiry sweep", "expired", res.Expired, "skipped", res.Skipped, "failed", res.Failed)
	}
	return res, nil
}
