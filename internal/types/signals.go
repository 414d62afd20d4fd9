package types

import "time"

// SignalRegistration maps an event type to a signal classification.
type SignalRegistration struct {
	ID              string           `json:"id"`
	EventType       string           `json:"event_type"`
	Condition       string           `json:"condition,omitempty"`
	Category        string           `json:"category"`
	Weight          string           `json:"weight"`
	Polarity        string           `json:"polarity"`
	Description     string           `json:"description"`
	EscalationRules []EscalationRule `json:"escalation_rules,omitempty"`
}

// EscalationRule defines when repeated or combined signals escalate in severity.
type EscalationRule struct {
	ID                   string                `json:"id"`
	Description          string                `json:"description"`
	TriggerType          string                `json:"trigger_type"` // "count", "cross_category"
	SignalCategory       string                `json:"signal_category,omitempty"`
	SignalPolarity       string                `json:"signal_polarity,omitempty"`
	Count                int                   `json:"count,omitempty"`
	WithinDays           int                   `json:"within_days,omitempty"`
	RequiredCategories   []CategoryRequirement `json:"required_categories,omitempty"`
	EscalatedWeight      string                `json:"escalated_weight"`
	EscalatedDescription string                `json:"escalated_description"`
	RecommendedAction    string                `json:"recommended_action,omitempty"`
}

// Threshold is the number of matching signals at which the rule fires.
func (r EscalationRule) Threshold() int {
	if r.TriggerType != "cross_category" {
		return r.Count
	}
	n := 0
	for _, req := range r.RequiredCategories {
		n += req.MinCount
	}
	return n
}

type CategoryRequirement struct {
	Category string `json:"category"`
	Polarity string `json:"polarity,omitempty"`
	MinCount int    `json:"min_count"`
}

// EscalatedSignal is a triggered escalation rule with context.
type EscalatedSignal struct {
	Rule             EscalationRule `json:"rule"`
	TriggeringCount  int            `json:"triggering_count"`
	EarliestOccurred time.Time      `json:"earliest_occurred"`
	LatestOccurred   time.Time      `json:"latest_occurred"`
}

type CategorySummary struct {
	Category         string         `json:"category"`
	SignalCount      int            `json:"signal_count"`
	ByWeight         map[string]int `json:"by_weight"`
	ByPolarity       map[string]int `json:"by_polarity"`
	DominantPolarity string         `json:"dominant_polarity"`
	Trend            string         `json:"trend"` // "improving", "stable", "declining"
}

// SignalSummary is the classified activity overview of one entity.
type SignalSummary struct {
	EntityType       string                     `json:"entity_type"`
	EntityID         string                     `json:"entity_id"`
	Since            time.Time                  `json:"since"`
	Until            time.Time                  `json:"until"`
	Categories       map[string]CategorySummary `json:"categories"`
	OverallSentiment string                     `json:"overall_sentiment"` // "positive", "mixed", "concerning", "critical"
	SentimentReason  string                     `json:"sentiment_reason"`
	Escalations      []EscalatedSignal          `json:"escalations"`
}
