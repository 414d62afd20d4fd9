package eventbus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewbaird/rentalops/internal/activity"
	"github.com/matthewbaird/rentalops/internal/event"
	"github.com/matthewbaird/rentalops/internal/notify"
)

var t0 = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

func TestBus_DispatchesInOrderAndDrainsOnStop(t *testing.T) {
	bus := New(16, nil)
	var mu sync.Mutex
	var got []string
	bus.Subscribe("collect", HandlerFunc(func(_ context.Context, evt event.DomainEvent) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, evt.EventType)
		return nil
	}))
	bus.Start(context.Background())

	for _, typ := range []string{"a", "b", "c"} {
		bus.Publish(context.Background(), event.DomainEvent{EventType: typ})
	}
	bus.Stop()

	assert.Equal(t, []string{"a", "b", "c"}, got)

	// Publishing after Stop is dropped, not a panic.
	bus.Publish(context.Background(), event.DomainEvent{EventType: "late"})
}

func TestBus_DropsWhenFull(t *testing.T) {
	bus := New(1, nil)
	bus.Publish(context.Background(), event.DomainEvent{EventType: "kept"})
	bus.Publish(context.Background(), event.DomainEvent{EventType: "dropped"})

	var got []string
	bus.Subscribe("collect", HandlerFunc(func(_ context.Context, evt event.DomainEvent) error {
		got = append(got, evt.EventType)
		return nil
	}))
	bus.Start(context.Background())
	bus.Stop()
	assert.Equal(t, []string{"kept"}, got)
}

func TestNotifyConsumer_NotifiesHeavySignals(t *testing.T) {
	ctx := context.Background()
	n := &notify.MemoryNotifier{}
	c := NewNotifyConsumer(n, nil, "ops@example.com", "moderate")

	cancelled := event.NewNegotiationStageChanged(event.NegotiationPayload{
		NegotiationID: "neg-1", PropertyID: "prop-1", From: "proposal_sent", To: "cancelled",
	}, t0)
	opened := event.NewNegotiationOpened(event.NegotiationPayload{
		NegotiationID: "neg-2", PropertyID: "prop-1", To: "lead_captured",
	}, t0)

	require.NoError(t, c.HandleEvent(ctx, cancelled))
	require.NoError(t, c.HandleEvent(ctx, opened))

	sent := n.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, notify.SeverityMedium, sent[0].Severity)
	assert.Equal(t, "negotiation", sent[0].Module)
	assert.Equal(t, "ops@example.com", sent[0].Recipient)
}

func TestNotifyConsumer_EscalatesOnceAtThreshold(t *testing.T) {
	ctx := context.Background()
	history := activity.NewMemoryStore()
	rec := event.NewActivityRecorder(history)
	n := &notify.MemoryNotifier{}
	c := NewNotifyConsumer(n, history, "ops", "moderate")

	for i := 0; i < 4; i++ {
		evt := event.NewMaintenanceChanged(event.MaintenancePayload{
			OrderID: "mo", PropertyID: "prop-1", Title: "Leak", To: "requested",
		}, t0.Add(time.Duration(i)*time.Hour))
		require.NoError(t, rec.Record(ctx, evt))
		require.NoError(t, c.HandleEvent(ctx, evt))
	}

	sent := n.Sent()
	require.Len(t, sent, 1, "only the third request crosses the threshold")
	assert.Equal(t, notify.SeverityHigh, sent[0].Severity)
	assert.Equal(t, "escalation", sent[0].Module)
}
