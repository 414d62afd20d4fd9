package domain

import (
	"time"

	"github.com/matthewbaird/rentalops/internal/types"
)

type MaintenanceStatus string

const (
	MaintenanceRequested   MaintenanceStatus = "requested"
	MaintenanceApproved    MaintenanceStatus = "approved"
	MaintenanceInExecution MaintenanceStatus = "in_execution"
	MaintenanceCompleted   MaintenanceStatus = "completed"
	MaintenanceCancelled   MaintenanceStatus = "cancelled"
)

var MaintenanceTransitions = map[MaintenanceStatus][]MaintenanceStatus{
	MaintenanceRequested:   {MaintenanceApproved, MaintenanceCancelled},
	MaintenanceApproved:    {MaintenanceInExecution, MaintenanceCancelled},
	MaintenanceInExecution: {MaintenanceCompleted, MaintenanceCancelled},
	MaintenanceCompleted:   {},
	MaintenanceCancelled:   {},
}

type MaintenanceOrder struct {
	Meta
	PropertyID   string            `json:"property_id"`
	Title        string            `json:"title"`
	Description  string            `json:"description,omitempty"`
	RequestedBy  string            `json:"requested_by"`
	Status       MaintenanceStatus `json:"status"`
	ApprovedAt   *time.Time        `json:"approved_at,omitempty"`
	StartedAt    *time.Time        `json:"started_at,omitempty"`
	CompletedAt  *time.Time        `json:"completed_at,omitempty"`
	CancelledAt  *time.Time        `json:"cancelled_at,omitempty"`
	CancelReason string            `json:"cancel_reason,omitempty"`
	Cost         *types.Money      `json:"cost,omitempty"`
	History      []StatusChange    `json:"history"`
}

// IsOpen: neither completed nor cancelled.
func (m MaintenanceOrder) IsOpen() bool {
	return !IsTerminal(MaintenanceTransitions, m.Status)
}
