// Package notify defines the notification collaborator used by the event
// consumers. Delivery channels (email, push) live outside the core.
package notify

import (
	"context"
	"sync"

	"github.com/matthewbaird/rentalops/internal/logger"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// SeverityForWeight maps a signal weight onto a notification severity.
func SeverityForWeight(weight string) Severity {
	switch weight {
	case "critical":
		return SeverityCritical
	case "strong":
		return SeverityHigh
	case "moderate":
		return SeverityMedium
	}
	return SeverityLow
}

type Notification struct {
	Recipient string   `json:"recipient"`
	Title     string   `json:"title"`
	Message   string   `json:"message"`
	Severity  Severity `json:"severity"`
	Module    string   `json:"module"`
}

type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// LogNotifier writes notifications to the structured log.
type LogNotifier struct {
	log *logger.Logger
}

func NewLogNotifier(log *logger.Logger) *LogNotifier {
	return &LogNotifier{log: logger.OrNop(log)}
}

func (n *LogNotifier) Notify(_ context.Context, note Notification) error {
	n.log.Info("notification",
		"recipient", note.Recipient,
		"title", note.Title,
		"message", note.Message,
		"severity", note.Severity,
		"module", note.Module,
	)
	return nil
}

// MemoryNotifier keeps every notification in memory.
type MemoryNotifier struct {
	mu   sync.Mutex
	sent []Notification
}

func (n *MemoryNotifier) Notify(_ context.Context, note Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, note)
	return nil
}

// Sent returns a copy of everything delivered so far.
func (n *MemoryNotifier) Sent() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Notification(nil), n.sent...)
}
