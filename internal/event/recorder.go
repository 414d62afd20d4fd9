// Package event provides domain event recording for the state-machine
// services. Events are fanned out as ActivityEntry records via the
// activity.Store interface, then published to the in-process event bus for
// downstream consumers.
package event

import (
	"context"
	"strings"

	"github.com/matthewbaird/rentalops/internal/activity"
	"github.com/matthewbaird/rentalops/internal/logger"
	"github.com/matthewbaird/rentalops/internal/signals"
	"github.com/matthewbaird/rentalops/internal/types"
)

// SystemActor is used when the context carries no actor.
const SystemActor = "system"

type actorKey struct{}

// WithActor attaches the acting user to ctx.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, strings.TrimSpace(actor))
}

// ActorFrom returns the acting user, or SystemActor.
func ActorFrom(ctx context.Context) string {
	if a, ok := ctx.Value(actorKey{}).(string); ok && a != "" {
		return a
	}
	return SystemActor
}

// Recorder writes domain events to the audit sink.
type Recorder interface {
	Record(ctx context.Context, evt DomainEvent) error
}

// Publisher sends domain events to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, evt DomainEvent)
}

// ActivityRecorder implements Recorder by fanning out a DomainEvent into
// one ActivityEntry per affected entity, then writing via activity.Store.
// If a Publisher is set, the event is also published after the store
// write succeeds.
type ActivityRecorder struct {
	store activity.Store
	bus   Publisher
}

func NewActivityRecorder(store activity.Store) *ActivityRecorder {
	return &ActivityRecorder{store: store}
}

// SetPublisher attaches an event bus. Events are published after store writes.
func (r *ActivityRecorder) SetPublisher(p Publisher) {
	r.bus = p
}

func (r *ActivityRecorder) Record(ctx context.Context, evt DomainEvent) error {
	if evt.Actor == "" {
		evt.Actor = ActorFrom(ctx)
	}
	class, _ := signals.ClassifyEvent(signals.DomainEvent{
		EventID:   evt.ID,
		EventType: evt.EventType,
		Payload:   evt.Payload,
	})
	weight, polarity := class.Weight, class.Polarity
	if weight == "" {
		weight, polarity = "info", "neutral"
	}

	entries := make([]types.ActivityEntry, 0, len(evt.AffectedEntities))
	for _, ref := range evt.AffectedEntities {
		entries = append(entries, types.ActivityEntry{
			EventID:           evt.ID,
			EventType:         evt.EventType,
			OccurredAt:        evt.OccurredAt,
			Actor:             evt.Actor,
			IndexedEntityType: ref.EntityType,
			IndexedEntityID:   ref.EntityID,
			EntityRole:        ref.Role,
			SourceRefs:        evt.AffectedEntities,
			Summary:           evt.Summary,
			Category:          evt.Category,
			Weight:            weight,
			Polarity:          polarity,
			Payload:           evt.Payload,
		})
	}
	if err := r.store.WriteEntries(ctx, entries); err != nil {
		return err
	}

	if r.bus != nil {
		r.bus.Publish(ctx, evt)
	}
	return nil
}

// Emitter records events on behalf of a service. Recording never fails the
// calling operation: errors are logged and dropped.
type Emitter struct {
	rec Recorder
	log *logger.Logger
}

// NewEmitter accepts a nil recorder, in which case events are discarded.
func NewEmitter(rec Recorder, log *logger.Logger) *Emitter {
	return &Emitter{rec: rec, log: logger.OrNop(log)}
}

func (e *Emitter) Emit(ctx context.Context, evt DomainEvent) {
	if e == nil || e.rec == nil {
		return
	}
	if err := e.rec.Record(ctx, evt); err != nil {
		e.log.Warn("failed to record event", "event_type", evt.EventType, "event_id", evt.ID, "error", err)
	}
}
