package notify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewbaird/rentalops/internal/logger"
)

func TestSeverityForWeight(t *testing.T) {
	tests := map[string]Severity{
		"critical": SeverityCritical,
		"strong":   SeverityHigh,
		"moderate": SeverityMedium,
		"weak":     SeverityLow,
		"info":     SeverityLow,
		"":         SeverityLow,
	}
	for weight, want := range tests {
		if got := SeverityForWeight(weight); got != want {
			t.Errorf("SeverityForWeight(%q) = %q, want %q", weight, got, want)
		}
	}
}

func TestMemoryNotifier_SentIsACopy(t *testing.T) {
	n := &MemoryNotifier{}
	require.NoError(t, n.Notify(context.Background(), Notification{Recipient: "operations", Title: "a"}))
	require.NoError(t, n.Notify(context.Background(), Notification{Recipient: "operations", Title: "b"}))

	sent := n.Sent()
	require.Len(t, sent, 2)
	sent[0].Title = "changed"
	assert.Equal(t, "a", n.Sent()[0].Title)
}

func TestLogNotifier(t *testing.T) {
	assert.NoError(t, NewLogNotifier(logger.Nop()).Notify(context.Background(), Notification{Title: "x"}))
	assert.NoError(t, NewLogNotifier(nil).Notify(context.Background(), Notification{Title: "x"}))
}
