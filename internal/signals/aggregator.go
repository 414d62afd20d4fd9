package signals

import (
	"maps"
	"slices"
	"time"

	"github.com/matthewbaird/rentalops/internal/types"
)

// Summarize classifies the activity of one entity between since and until.
// Escalation windows end at until.
func Summarize(entries []types.ActivityEntry, entityType, entityID string, since, until time.Time) types.SignalSummary {
	byCategory := make(map[string][]types.ActivityEntry)
	for _, e := range entries {
		byCategory[e.Category] = append(byCategory[e.Category], e)
	}

	categories := make(map[string]types.CategorySummary, len(byCategory))
	for cat, es := range byCategory {
		categories[cat] = summarizeCategory(cat, es, since, until)
	}
	escalations := EvaluateEscalations(entries, until)
	sentiment, reason := overallSentiment(categories, escalations)

	return types.SignalSummary{
		EntityType:       entityType,
		EntityID:         entityID,
		Since:            since,
		Until:            until,
		Categories:       categories,
		OverallSentiment: sentiment,
		SentimentReason:  reason,
		Escalations:      escalations,
	}
}

func summarizeCategory(cat string, es []types.ActivityEntry, since, until time.Time) types.CategorySummary {
	cs := types.CategorySummary{
		Category:    cat,
		SignalCount: len(es),
		ByWeight:    make(map[string]int),
		ByPolarity:  make(map[string]int),
		Trend:       trendOf(es, since, until),
	}
	for _, e := range es {
		cs.ByWeight[e.Weight]++
		cs.ByPolarity[e.Polarity]++
	}
	// Ties go to the alphabetically first polarity.
	for _, p := range slices.Sorted(maps.Keys(cs.ByPolarity)) {
		if cs.ByPolarity[p] > cs.ByPolarity[cs.DominantPolarity] {
			cs.DominantPolarity = p
		}
	}
	return cs
}

// trendOf compares how many signals fell in each half of [since, until].
// More trouble late in the window reads as declining.
func trendOf(es []types.ActivityEntry, since, until time.Time) string {
	mid := since.Add(until.Sub(since) / 2)
	early := 0
	for _, e := range es {
		if e.OccurredAt.Before(mid) {
			early++
		}
	}
	late := len(es) - early
	switch {
	case late-early > 1:
		return "declining"
	case early-late > 1:
		return "improving"
	}
	return "stable"
}

// EvaluateEscalations returns every count and cross-category rule that
// entries satisfy within the rule window ending at now.
func EvaluateEscalations(entries []types.ActivityEntry, now time.Time) []types.EscalatedSignal {
	var rules []types.EscalationRule
	for _, reg := range SignalRegistry {
		rules = append(rules, reg.EscalationRules...)
	}
	rules = append(rules, CrossCategoryEscalationRules...)

	var fired []types.EscalatedSignal
	for _, rule := range rules {
		from := now.AddDate(0, 0, -rule.WithinDays)
		var recent []types.ActivityEntry
		for _, e := range entries {
			if !e.OccurredAt.Before(from) && !e.OccurredAt.After(now) {
				recent = append(recent, e)
			}
		}
		var (
			hits []types.ActivityEntry
			ok   bool
		)
		switch rule.TriggerType {
		case "count":
			hits, ok = countHits(rule, recent)
		case "cross_category":
			hits, ok = crossCategoryHits(rule, recent)
		}
		if ok {
			fired = append(fired, escalation(rule, hits))
		}
	}
	return fired
}

func countHits(rule types.EscalationRule, es []types.ActivityEntry) ([]types.ActivityEntry, bool) {
	hits := slices.DeleteFunc(slices.Clone(es), func(e types.ActivityEntry) bool {
		return (rule.SignalCategory != "" && e.Category != rule.SignalCategory) ||
			(rule.SignalPolarity != "" && e.Polarity != rule.SignalPolarity)
	})
	return hits, len(hits) > 0 && len(hits) >= rule.Count
}

func crossCategoryHits(rule types.EscalationRule, es []types.ActivityEntry) ([]types.ActivityEntry, bool) {
	var hits []types.ActivityEntry
	for _, req := range rule.RequiredCategories {
		n := 0
		for _, e := range es {
			if e.Category == req.Category && (req.Polarity == "" || e.Polarity == req.Polarity) {
				hits = append(hits, e)
				n++
			}
		}
		if n < req.MinCount {
			return nil, false
		}
	}
	return hits, true
}

func escalation(rule types.EscalationRule, hits []types.ActivityEntry) types.EscalatedSignal {
	es := types.EscalatedSignal{Rule: rule, TriggeringCount: len(hits)}
	for _, h := range hits {
		if es.EarliestOccurred.IsZero() || h.OccurredAt.Before(es.EarliestOccurred) {
			es.EarliestOccurred = h.OccurredAt
		}
		if h.OccurredAt.After(es.LatestOccurred) {
			es.LatestOccurred = h.OccurredAt
		}
	}
	return es
}

func overallSentiment(categories map[string]types.CategorySummary, escalations []types.EscalatedSignal) (string, string) {
	if i := slices.IndexFunc(escalations, func(e types.EscalatedSignal) bool {
		return e.Rule.EscalatedWeight == "critical"
	}); i >= 0 {
		return "critical", "Critical escalation: " + escalations[i].Rule.EscalatedDescription
	}

	var critical, strong, negative, positive int
	for _, cs := range categories {
		critical += cs.ByWeight["critical"]
		strong += cs.ByWeight["strong"]
		negative += cs.ByPolarity["negative"]
		positive += cs.ByPolarity["positive"]
	}
	switch {
	case critical > 0:
		return "critical", "The property has critical signals to act on."
	case strong >= 2 || negative > 2*positive:
		return "concerning", "Repeated strong signals or mostly negative activity on the property."
	case negative > positive:
		return "mixed", "Negative activity outweighs positive, nothing critical."
	}
	return "positive", "Activity on the property is mostly positive or neutral."
}
