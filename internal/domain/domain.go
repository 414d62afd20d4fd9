// Package domain holds the aggregates of the rental operations core and the
// explicit adjacency tables of their state machines. Nothing here touches
// storage; services mutate copies and hand them to repositories.
package domain

import (
	"slices"
	"time"

	"github.com/matthewbaird/rentalops/internal/apperr"
)

// Meta is embedded by every aggregate. Version is the optimistic
// concurrency token: a stored snapshot may only be replaced by one whose
// version is exactly one higher.
type Meta struct {
	ID        string    `json:"id"`
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (m Meta) StoreKey() string     { return m.ID }
func (m Meta) StoreVersion() int64  { return m.Version }
func (m *Meta) Touch(now time.Time) { m.Version++; m.UpdatedAt = now }

// NewMeta stamps a fresh aggregate at version 1.
func NewMeta(id string, now time.Time) Meta {
	return Meta{ID: id, Version: 1, CreatedAt: now, UpdatedAt: now}
}

// ReferenceType names the kind of aggregate an entry or workflow points at.
type ReferenceType string

const (
	RefProperty         ReferenceType = "property"
	RefNegotiation      ReferenceType = "negotiation"
	RefMaintenanceOrder ReferenceType = "maintenance_order"
	RefInspection       ReferenceType = "inspection"
)

func (r ReferenceType) Valid() bool {
	switch r {
	case RefProperty, RefNegotiation, RefMaintenanceOrder, RefInspection:
		return true
	}
	return false
}

// StatusChange is one row of an aggregate's status history.
type StatusChange struct {
	From  string    `json:"from,omitempty"`
	To    string    `json:"to"`
	Note  string    `json:"note,omitempty"`
	Actor string    `json:"actor"`
	At    time.Time `json:"at"`
}

// ValidateTransition checks whether moving from current to target is
// allowed by the given adjacency table.
func ValidateTransition[S ~string](op string, transitions map[S][]S, current, target S) error {
	allowed, ok := transitions[current]
	if !ok {
		return apperr.InvalidTransition(op, "unknown current state %q", current)
	}
	if len(allowed) == 0 {
		return apperr.InvalidTransition(op, "state %q is terminal, cannot move to %q", current, target)
	}
	if !slices.Contains(allowed, target) {
		return apperr.InvalidTransition(op, "transition from %q to %q is not allowed", current, target)
	}
	return nil
}

// IsTerminal reports whether s has no outgoing edges in the table.
func IsTerminal[S ~string](transitions map[S][]S, s S) bool {
	return len(transitions[s]) == 0
}
