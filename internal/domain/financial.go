package domain

import (
	"time"

	"github.com/matthewbaird/rentalops/internal/types"
)

type EntryType string

const (
	EntrySignal          EntryType = "signal"
	EntryDeposit         EntryType = "deposit"
	EntryRent            EntryType = "rent"
	EntryFee             EntryType = "fee"
	EntryMaintenanceCost EntryType = "maintenance_cost"
	EntryRepass          EntryType = "repass"
	EntryRefund          EntryType = "refund"
)

var EntryTypes = []EntryType{
	EntrySignal, EntryDeposit, EntryRent, EntryFee, EntryMaintenanceCost, EntryRepass, EntryRefund,
}

func (t EntryType) Valid() bool {
	for _, et := range EntryTypes {
		if et == t {
			return true
		}
	}
	return false
}

type EntryStatus string

const (
	EntryPending   EntryStatus = "pending"
	EntryPaid      EntryStatus = "paid"
	EntryCancelled EntryStatus = "cancelled"
)

var EntryTransitions = map[EntryStatus][]EntryStatus{
	EntryPending:   {EntryPaid, EntryCancelled},
	EntryPaid:      {},
	EntryCancelled: {},
}

type FinancialEntry struct {
	Meta
	ReferenceID        string         `json:"reference_id"`
	ReferenceType      ReferenceType  `json:"reference_type"`
	Type               EntryType      `json:"type"`
	Description        string         `json:"description,omitempty"`
	Amount             types.Money    `json:"amount"`
	DueDate            time.Time      `json:"due_date"`
	Status             EntryStatus    `json:"status"`
	PaidAt             *time.Time     `json:"paid_at,omitempty"`
	CancelledAt        *time.Time     `json:"cancelled_at,omitempty"`
	BlocksAvailability bool           `json:"blocks_availability"`
	History            []StatusChange `json:"history"`
}

// Settled reports whether the entry reached a terminal status.
func (e FinancialEntry) Settled() bool {
	return IsTerminal(EntryTransitions, e.Status)
}

// Blocking reports whether the entry currently keeps its property out of
// availability.
func (e FinancialEntry) Blocking() bool {
	return e.BlocksAvailability && !e.Settled()
}

// Overdue reports whether a pending entry is past its due date.
func (e FinancialEntry) Overdue(now time.Time) bool {
	return e.Status == EntryPending && e.DueDate.Before(now)
}
