package eventbus

import (
	"context"

	"github.com/matthewbaird/rentalops/internal/event"
	"github.com/matthewbaird/rentalops/internal/logger"
)

// LogConsumer logs all domain events for observability.
type LogConsumer struct {
	log *logger.Logger
}

func NewLogConsumer(log *logger.Logger) *LogConsumer {
	return &LogConsumer{log: logger.OrNop(log)}
}

func (c *LogConsumer) HandleEvent(_ context.Context, evt event.DomainEvent) error {
	entities := make([]string, len(evt.AffectedEntities))
	for i, ref := range evt.AffectedEntities {
		entities[i] = ref.EntityType + ":" + ref.EntityID
	}
	c.log.Info("event",
		"event_type", evt.EventType,
		"category", evt.Category,
		"actor", evt.Actor,
		"summary", evt.Summary,
		"entities", entities,
	)
	return nil
}
