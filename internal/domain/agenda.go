package domain

import (
	"strings"
	"time"

	"github.com/matthewbaird/rentalops/internal/types"
)

type AgendaEventType string

const (
	AgendaInspection  AgendaEventType = "inspection"
	AgendaVisit       AgendaEventType = "visit"
	AgendaMaintenance AgendaEventType = "maintenance"
	AgendaOther       AgendaEventType = "other"
)

// AgendaEvent is a commitment on the calendar of a property, a responsible
// party, or both.
type AgendaEvent struct {
	Meta
	PropertyID    string          `json:"property_id,omitempty"`
	Responsible   string          `json:"responsible,omitempty"`
	Range         types.TimeRange `json:"range"`
	Type          AgendaEventType `json:"type"`
	Title         string          `json:"title"`
	ReferenceID   string          `json:"reference_id,omitempty"`
	ReferenceType ReferenceType   `json:"reference_type,omitempty"`
	ReleasedAt    *time.Time      `json:"released_at,omitempty"`
}

// Holds reports whether the event still occupies its range. A booking whose
// owner failed to commit is released: it stays stored with ReleasedAt set
// and no longer conflicts with anything.
func (e AgendaEvent) Holds() bool { return e.ReleasedAt == nil }

// NormalizeResponsible folds a responsible-party name for comparisons.
func NormalizeResponsible(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}
