package signals

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/matthewbaird/rentalops/internal/types"
)

// DomainEvent is the minimal view of an event the classifier needs. It is
// separate from event.DomainEvent so this package stays import-cycle free.
type DomainEvent struct {
	EventID   string          `json:"event_id"`
	EventType string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
}

type ClassificationResult struct {
	Category     string
	Weight       string
	Polarity     string
	Description  string
	Registration *types.SignalRegistration
}

// ClassifyEvent picks the registration of evt's type that applies to its
// payload. Conditional registrations are tried in order; an unconditional
// one is the fallback. ok is false for unregistered event types.
func ClassifyEvent(evt DomainEvent) (ClassificationResult, bool) {
	regs := LookupSignals(evt.EventType)
	if len(regs) == 0 {
		return ClassificationResult{}, false
	}
	var fields map[string]any
	if len(evt.Payload) > 0 && json.Unmarshal(evt.Payload, &fields) != nil {
		fields = nil
	}

	fallback := -1
	for i, reg := range regs {
		if reg.Condition == "" {
			if fallback < 0 {
				fallback = i
			}
			continue
		}
		if c, ok := parseCondition(reg.Condition); ok && c.holds(fields) {
			return classification(&regs[i]), true
		}
	}
	if fallback < 0 {
		return ClassificationResult{}, false
	}
	return classification(&regs[fallback]), true
}

func classification(reg *types.SignalRegistration) ClassificationResult {
	return ClassificationResult{
		Category:     reg.Category,
		Weight:       reg.Weight,
		Polarity:     reg.Polarity,
		Description:  reg.Description,
		Registration: reg,
	}
}

// condition is a registration predicate of the form "field op value".
type condition struct {
	field string
	op    string
	value string
}

// Longer operators are listed before their prefixes.
var operators = []string{"==", "!=", ">=", "<=", ">", "<"}

func parseCondition(s string) (condition, bool) {
	for _, op := range operators {
		field, value, found := strings.Cut(s, op)
		if !found {
			continue
		}
		return condition{field: strings.TrimSpace(field), op: op, value: strings.TrimSpace(value)}, true
	}
	return condition{}, false
}

// holds evaluates the condition against a decoded payload. A missing
// field never satisfies it.
func (c condition) holds(fields map[string]any) bool {
	got, ok := fields[c.field]
	if !ok {
		return false
	}
	switch c.op {
	case "==":
		return equalTo(got, c.value)
	case "!=":
		return !equalTo(got, c.value)
	}
	n, ok := got.(float64)
	if !ok {
		return false
	}
	limit, err := strconv.ParseFloat(c.value, 64)
	if err != nil {
		return false
	}
	switch c.op {
	case ">":
		return n > limit
	case ">=":
		return n >= limit
	case "<":
		return n < limit
	default:
		return n <= limit
	}
}

func equalTo(got any, want string) bool {
	switch v := got.(type) {
	case string:
		return v == want
	case bool:
		b, err := strconv.ParseBool(want)
		return err == nil && v == b
	case float64:
		f, err := strconv.ParseFloat(want, 64)
		return err == nil && v == f
	}
	return false
}
