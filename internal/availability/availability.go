// Package availability derives a property's operational status from the
// current state of its negotiations, financial entries, inspections and
// maintenance orders. The status is never set directly; every mutation in
// the other services ends with a call to Recompute.
package availability

import (
	"context"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/matthewbaird/rentalops/internal/apperr"
	"github.com/matthewbaird/rentalops/internal/clock"
	"github.com/matthewbaird/rentalops/internal/domain"
	"github.com/matthewbaird/rentalops/internal/event"
	"github.com/matthewbaird/rentalops/internal/logger"
	"github.com/matthewbaird/rentalops/internal/repository"
	"github.com/matthewbaird/rentalops/internal/store"
)

const tracerName = "rentalops/availability"

// Facts are the inputs of the status derivation for one property.
type Facts struct {
	OpenMaintenance     bool
	InspectionInProcess domain.InspectionType // "" when none; periodic inspections never count
	ActiveNegotiation   *domain.Negotiation
	BlockingEntries     int
	OpenPending         bool
	AvailableFrom       *time.Time
}

// Derive applies the precedence list; the first matching condition wins.
func Derive(f Facts, now time.Time) domain.PropertyStatus {
	switch {
	case f.OpenMaintenance:
		return domain.StatusEmManutencao
	case f.InspectionInProcess == domain.InspectionEntry:
		return domain.StatusEmVistoriaEntrada
	case f.InspectionInProcess == domain.InspectionExit:
		return domain.StatusEmVistoriaSaida
	case f.ActiveNegotiation != nil && f.ActiveNegotiation.Stage.ReachedProposal():
		return domain.StatusEmNegociacao
	case f.ActiveNegotiation != nil:
		return domain.StatusReservado
	case f.BlockingEntries > 0:
		return domain.StatusIndisponivel
	case f.AvailableFrom != nil && f.AvailableFrom.After(now):
		return domain.StatusAgendadoParaDisponibilizacao
	}
	return domain.StatusDisponivel
}

type Option func(*Aggregator)

// WithTracerProvider overrides the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(a *Aggregator) { a.tracer = tp.Tracer(tracerName) }
}

// SearchConcurrency bounds how many properties SearchAvailable recomputes
// at once.
const SearchConcurrency = 8

type Aggregator struct {
	repos  *repository.Set
	clock  clock.Clock
	events *event.Emitter
	log    *logger.Logger
	tracer trace.Tracer
}

func New(repos *repository.Set, clk clock.Clock, events *event.Emitter, log *logger.Logger, opts ...Option) *Aggregator {
	a := &Aggregator{
		repos:  repos,
		clock:  clk,
		events: events,
		log:    logger.OrNop(log),
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Gather reads the current facts of a property from every repository.
func (a *Aggregator) Gather(ctx context.Context, p domain.Property) (Facts, error) {
	f := Facts{AvailableFrom: p.AvailableFrom}

	open, err := a.repos.Maintenance.OpenByProperty(ctx, p.ID)
	if err != nil {
		return Facts{}, err
	}
	f.OpenMaintenance = len(open) > 0

	inspections, err := a.repos.Inspections.ByProperty(ctx, p.ID)
	if err != nil {
		return Facts{}, err
	}
	for _, insp := range inspections {
		if insp.Status == domain.InspectionInProgress && insp.Type != domain.InspectionPeriodic {
			// Entry wins over exit when both are somehow running.
			if f.InspectionInProcess != domain.InspectionEntry {
				f.InspectionInProcess = insp.Type
			}
		}
		if insp.HasOpenPending() {
			f.OpenPending = true
		}
	}

	negotiations, err := a.repos.Negotiations.ByProperty(ctx, p.ID)
	if err != nil {
		return Facts{}, err
	}
	ids := make([]string, 0, len(negotiations))
	for i := range negotiations {
		ids = append(ids, negotiations[i].ID)
		if negotiations[i].IsActive() && f.ActiveNegotiation == nil {
			f.ActiveNegotiation = &negotiations[i]
		}
	}

	blocking, err := a.repos.Financial.Blocking(ctx, p.ID, ids)
	if err != nil {
		return Facts{}, err
	}
	f.BlockingEntries = len(blocking)
	return f, nil
}

// Recompute derives and persists the status of a property. The property
// is only rewritten when a derived field changes, so calling it twice in a
// row is a no-op the second time.
func (a *Aggregator) Recompute(ctx context.Context, propertyID string) (domain.Property, error) {
	ctx, span := a.tracer.Start(ctx, "availability.recompute",
		trace.WithAttributes(attribute.String("property.id", propertyID)))
	defer span.End()

	var (
		result  domain.Property
		changed bool
		from    domain.PropertyStatus
	)
	err := store.RetryOnConflict(ctx, func() error {
		p, err := a.repos.Properties.Get(ctx, propertyID)
		if err != nil {
			return err
		}
		facts, err := a.Gather(ctx, p)
		if err != nil {
			return err
		}
		now := a.clock.Now()
		next := p
		next.Status = Derive(facts, now)
		next.HasOpenMaintenance = facts.OpenMaintenance
		next.HasOpenPending = facts.OpenPending
		next.ActiveNegotiationID = ""
		if facts.ActiveNegotiation != nil {
			next.ActiveNegotiationID = facts.ActiveNegotiation.ID
		}
		if sameProjection(p, next) {
			result, changed = p, false
			return nil
		}
		if next.Status != p.Status {
			next.StatusChangedAt = now
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		next.Touch(now)
		if err := a.repos.Properties.Update(ctx, next); err != nil {
			return err
		}
		result, changed, from = next, next.Status != p.Status, p.Status
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "recompute failed")
		return domain.Property{}, apperr.Ensure("availability.recompute", err)
	}

	span.SetAttributes(
		attribute.String("property.status", string(result.Status)),
		attribute.Bool("property.status_changed", changed),
	)
	if changed {
		a.log.Info("property status changed", "property_id", propertyID, "from", from, "to", result.Status)
		a.events.Emit(ctx, event.NewPropertyStatusChanged(event.PropertyStatusChangedPayload{
			PropertyID: propertyID,
			From:       string(from),
			To:         string(result.Status),
		}, result.StatusChangedAt))
	}
	return result, nil
}

func sameProjection(a, b domain.Property) bool {
	return a.Status == b.Status &&
		a.HasOpenMaintenance == b.HasOpenMaintenance &&
		a.HasOpenPending == b.HasOpenPending &&
		a.ActiveNegotiationID == b.ActiveNegotiationID
}

// SearchAvailable recomputes every property and returns those that are
// available, or scheduled to become available at or before refDate.
func (a *Aggregator) SearchAvailable(ctx context.Context, refDate time.Time) ([]domain.Property, error) {
	ctx, span := a.tracer.Start(ctx, "availability.search")
	defer span.End()

	props, err := a.repos.Properties.List(ctx)
	if err != nil {
		return nil, err
	}

	var mu sync.Mutex
	found := make(map[string]domain.Property)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(SearchConcurrency)
	for _, p := range props {
		g.Go(func() error {
			fresh, err := a.Recompute(gctx, p.ID)
			if err != nil {
				return err
			}
			if matchesSearch(fresh, refDate) {
				mu.Lock()
				found[fresh.ID] = fresh
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "search failed")
		return nil, err
	}

	// Keep registration order.
	out := make([]domain.Property, 0, len(found))
	for _, p := range props {
		if fp, ok := found[p.ID]; ok {
			out = append(out, fp)
		}
	}
	span.SetAttributes(attribute.Int("search.results", len(out)))
	return out, nil
}

func matchesSearch(p domain.Property, refDate time.Time) bool {
	switch p.Status {
	case domain.StatusDisponivel:
		return true
	case domain.StatusAgendadoParaDisponibilizacao:
		return p.AvailableFrom != nil && !p.AvailableFrom.After(refDate)
	}
	return false
}

// Explain lists the conditions currently holding for a property in
// precedence order, for diagnostics.
func Explain(f Facts, now time.Time) []domain.PropertyStatus {
	var out []domain.PropertyStatus
	probe := func(s domain.PropertyStatus, ok bool) {
		if ok && !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	probe(domain.StatusEmManutencao, f.OpenMaintenance)
	probe(domain.StatusEmVistoriaEntrada, f.InspectionInProcess == domain.InspectionEntry)
	probe(domain.StatusEmVistoriaSaida, f.InspectionInProcess == domain.InspectionExit)
	probe(domain.StatusEmNegociacao, f.ActiveNegotiation != nil && f.ActiveNegotiation.Stage.ReachedProposal())
	probe(domain.StatusReservado, f.ActiveNegotiation != nil && !f.ActiveNegotiation.Stage.ReachedProposal())
	probe(domain.StatusIndisponivel, f.BlockingEntries > 0)
	probe(domain.StatusAgendadoParaDisponibilizacao, f.AvailableFrom != nil && f.AvailableFrom.After(now))
	if len(out) == 0 {
		out = append(out, domain.StatusDisponivel)
	}
	return out
}
