// Package signals classifies domain events into weighted signals and
// evaluates escalation rules over a property's activity history.
package signals

import "github.com/matthewbaird/rentalops/internal/types"

// WeightOrder maps signal weights to numeric severity (lower = more severe).
var WeightOrder = map[string]int{
	"critical": 1,
	"strong":   2,
	"moderate": 3,
	"weak":     4,
	"info":     5,
}

// SignalRegistry lists every classified event type.
var SignalRegistry = []types.SignalRegistration{
	// === Negotiation ===
	{
		ID:          "negotiation_opened",
		EventType:   "negotiation_opened",
		Category:    "negotiation",
		Weight:      "info",
		Polarity:    "positive",
		Description: "New negotiation opened on the property",
	},
	{
		ID:          "negotiation_advanced",
		EventType:   "negotiation_advanced",
		Category:    "negotiation",
		Weight:      "info",
		Polarity:    "positive",
		Description: "Negotiation moved to the next stage",
	},
	{
		ID:          "negotiation_completed",
		EventType:   "negotiation_completed",
		Category:    "negotiation",
		Weight:      "moderate",
		Polarity:    "positive",
		Description: "Negotiation completed, keys delivered",
	},
	{
		ID:          "negotiation_cancelled",
		EventType:   "negotiation_cancelled",
		Category:    "negotiation",
		Weight:      "moderate",
		Polarity:    "negative",
		Description: "Negotiation cancelled",
		EscalationRules: []types.EscalationRule{
			{
				ID:                   "neg_fallthrough_pattern",
				Description:          "Negotiations on the property keep falling through",
				TriggerType:          "count",
				SignalCategory:       "negotiation",
				SignalPolarity:       "negative",
				Count:                3,
				WithinDays:           90,
				EscalatedWeight:      "strong",
				EscalatedDescription: "3+ negotiations lost in 90 days.",
				RecommendedAction:    "Review asking price and listing quality.",
			},
		},
	},
	{
		ID:          "proposal_expired",
		EventType:   "proposal_expired",
		Category:    "negotiation",
		Weight:      "moderate",
		Polarity:    "negative",
		Description: "Proposal validity ended without an answer",
	},

	// === Financial ===
	{
		ID:          "payment_late",
		EventType:   "payment_registered",
		Condition:   "days_past_due > 0",
		Category:    "financial",
		Weight:      "moderate",
		Polarity:    "negative",
		Description: "Payment registered after its due date",
		EscalationRules: []types.EscalationRule{
			{
				ID:                   "fin_late_pattern",
				Description:          "Repeated late payments on the property",
				TriggerType:          "count",
				SignalCategory:       "financial",
				SignalPolarity:       "negative",
				Count:                3,
				WithinDays:           180,
				EscalatedWeight:      "strong",
				EscalatedDescription: "3+ late payments in 6 months. Pattern, not one-off.",
				RecommendedAction:    "Contact the payer and offer a payment plan.",
			},
		},
	},
	{
		ID:          "payment_on_time",
		EventType:   "payment_registered",
		Category:    "financial",
		Weight:      "info",
		Polarity:    "positive",
		Description: "Payment registered on time",
	},
	{
		ID:          "entry_registered",
		EventType:   "financial_entry_registered",
		Category:    "financial",
		Weight:      "info",
		Polarity:    "neutral",
		Description: "Financial entry registered",
	},
	{
		ID:          "entry_amount_updated",
		EventType:   "financial_entry_amount_updated",
		Category:    "financial",
		Weight:      "weak",
		Polarity:    "neutral",
		Description: "Pending entry amount changed",
	},
	{
		ID:          "entry_cancelled",
		EventType:   "financial_entry_cancelled",
		Category:    "financial",
		Weight:      "weak",
		Polarity:    "negative",
		Description: "Financial entry cancelled",
	},

	// === Documents ===
	{
		ID:          "document_signed",
		EventType:   "document_signed",
		Category:    "document",
		Weight:      "info",
		Polarity:    "positive",
		Description: "Every mandatory signer has signed",
	},
	{
		ID:          "document_cancelled",
		EventType:   "document_cancelled",
		Category:    "document",
		Weight:      "moderate",
		Polarity:    "negative",
		Description: "Document workflow cancelled before completion",
	},

	// === Inspection ===
	{
		ID:          "inspection_with_pending",
		EventType:   "inspection_completed",
		Condition:   "has_pending == true",
		Category:    "inspection",
		Weight:      "moderate",
		Polarity:    "negative",
		Description: "Inspection completed with pending items",
	},
	{
		ID:          "inspection_clean",
		EventType:   "inspection_completed",
		Category:    "inspection",
		Weight:      "info",
		Polarity:    "positive",
		Description: "Inspection completed without pending items",
	},

	// === Maintenance ===
	{
		ID:          "maintenance_requested",
		EventType:   "maintenance_requested",
		Category:    "maintenance",
		Weight:      "weak",
		Polarity:    "negative",
		Description: "Maintenance requested",
		EscalationRules: []types.EscalationRule{
			{
				ID:                   "maint_recurring",
				Description:          "Property keeps needing repairs",
				TriggerType:          "count",
				SignalCategory:       "maintenance",
				SignalPolarity:       "negative",
				Count:                3,
				WithinDays:           90,
				EscalatedWeight:      "strong",
				EscalatedDescription: "3+ maintenance requests in 90 days.",
				RecommendedAction:    "Schedule a periodic inspection to find the root cause.",
			},
		},
	},
	{
		ID:          "maintenance_completed",
		EventType:   "maintenance_completed",
		Category:    "maintenance",
		Weight:      "info",
		Polarity:    "positive",
		Description: "Maintenance order completed",
	},

	// === Availability ===
	{
		ID:          "status_blocked_maintenance",
		EventType:   "property_status_changed",
		Condition:   "to == em_manutencao",
		Category:    "availability",
		Weight:      "moderate",
		Polarity:    "negative",
		Description: "Property left the market for maintenance",
	},
	{
		ID:          "status_available",
		EventType:   "property_status_changed",
		Condition:   "to == disponivel",
		Category:    "availability",
		Weight:      "info",
		Polarity:    "positive",
		Description: "Property is available again",
	},
	{
		ID:          "status_changed",
		EventType:   "property_status_changed",
		Category:    "availability",
		Weight:      "info",
		Polarity:    "neutral",
		Description: "Property status changed",
	},
}

// CrossCategoryEscalationRules span more than one signal category.
var CrossCategoryEscalationRules = []types.EscalationRule{
	{
		ID:          "cross_financial_maintenance",
		Description: "Late payments together with recurring maintenance",
		TriggerType: "cross_category",
		RequiredCategories: []types.CategoryRequirement{
			{Category: "financial", Polarity: "negative", MinCount: 2},
			{Category: "maintenance", Polarity: "negative", MinCount: 2},
		},
		WithinDays:           90,
		EscalatedWeight:      "critical",
		EscalatedDescription: "Financial problems AND repeated maintenance within 90 days.",
		RecommendedAction:    "Owner review of the property before the next negotiation.",
	},
}

var byEventType = func() map[string][]types.SignalRegistration {
	m := make(map[string][]types.SignalRegistration, len(SignalRegistry))
	for _, reg := range SignalRegistry {
		m[reg.EventType] = append(m[reg.EventType], reg)
	}
	return m
}()

// LookupSignals returns the registrations of eventType in registry order.
func LookupSignals(eventType string) []types.SignalRegistration {
	return byEventType[eventType]
}

// WeightSeverity returns the numeric severity for a weight (lower = more severe).
// Returns 6 for unknown weights.
func WeightSeverity(weight string) int {
	if s, ok := WeightOrder[weight]; ok {
		return s
	}
	return 6
}

// IsAtLeastWeight returns true if actual is at least as severe as minimum.
func IsAtLeastWeight(actual, minimum string) bool {
	return WeightSeverity(actual) <= WeightSeverity(minimum)
}
