package eventbus

import (
	"context"
	"fmt"

	"github.com/matthewbaird/rentalops/internal/activity"
	"github.com/matthewbaird/rentalops/internal/event"
	"github.com/matthewbaird/rentalops/internal/notify"
	"github.com/matthewbaird/rentalops/internal/signals"
)

// escalationLookbackDays covers the widest escalation window in the registry.
const escalationLookbackDays = 180

// NotifyConsumer classifies domain events against the signal registry and
// notifies when a signal is heavy enough, or when the event pushes the
// property's history over an escalation threshold.
type NotifyConsumer struct {
	notifier  notify.Notifier
	history   activity.Store
	recipient string
	minWeight string
}

// NewNotifyConsumer notifies recipient of signals at least as severe as
// minWeight. history may be nil, which disables escalations.
func NewNotifyConsumer(n notify.Notifier, history activity.Store, recipient, minWeight string) *NotifyConsumer {
	if minWeight == "" {
		minWeight = "moderate"
	}
	return &NotifyConsumer{notifier: n, history: history, recipient: recipient, minWeight: minWeight}
}

func (c *NotifyConsumer) HandleEvent(ctx context.Context, evt event.DomainEvent) error {
	result, ok := signals.ClassifyEvent(signals.DomainEvent{
		EventID:   evt.ID,
		EventType: evt.EventType,
		Payload:   evt.Payload,
	})
	if !ok {
		return nil
	}

	if signals.IsAtLeastWeight(result.Weight, c.minWeight) {
		err := c.notifier.Notify(ctx, notify.Notification{
			Recipient: c.recipient,
			Title:     result.Description,
			Message:   evt.Summary,
			Severity:  notify.SeverityForWeight(result.Weight),
			Module:    result.Category,
		})
		if err != nil {
			return fmt.Errorf("notify %s: %w", evt.EventType, err)
		}
	}
	return c.escalate(ctx, evt)
}

// escalate notifies the escalation rules this event made fire for the
// first time, i.e. whose triggering count equals the threshold and whose
// latest signal is this event.
func (c *NotifyConsumer) escalate(ctx context.Context, evt event.DomainEvent) error {
	propertyID := evt.PropertyID()
	if c.history == nil || propertyID == "" {
		return nil
	}
	until := evt.OccurredAt
	since := until.AddDate(0, 0, -escalationLookbackDays)
	opts := activity.QueryOptions{Since: &since, Until: &until, Limit: 500}
	entries, _, _, err := c.history.QueryByEntity(ctx, "property", propertyID, opts)
	if err != nil {
		return fmt.Errorf("load history of %s: %w", propertyID, err)
	}

	for _, es := range signals.EvaluateEscalations(entries, until) {
		if !es.LatestOccurred.Equal(until) || es.TriggeringCount != es.Rule.Threshold() {
			continue
		}
		err := c.notifier.Notify(ctx, notify.Notification{
			Recipient: c.recipient,
			Title:     es.Rule.Description,
			Message:   es.Rule.EscalatedDescription + " " + es.Rule.RecommendedAction,
			Severity:  notify.SeverityForWeight(es.Rule.EscalatedWeight),
			Module:    "escalation",
		})
		if err != nil {
			return fmt.Errorf("notify escalation %s: %w", es.Rule.ID, err)
		}
	}
	return nil
}
