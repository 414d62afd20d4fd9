package types

import (
	"time"

	"github.com/matthewbaird/rentalops/internal/apperr"
)

// TimeRange is a half-open interval [Start, End). Construct it with
// NewTimeRange; the zero value is an empty range at the zero instant.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewTimeRange validates end >= start and normalizes both to UTC.
func NewTimeRange(start, end time.Time) (TimeRange, error) {
	if end.Before(start) {
		return TimeRange{}, apperr.Validation("time_range", "end %s is before start %s",
			end.UTC().Format(time.RFC3339), start.UTC().Format(time.RFC3339))
	}
	return TimeRange{Start: start.UTC(), End: end.UTC()}, nil
}

// RangeFor is shorthand for NewTimeRange(start, start+d).
func RangeFor(start time.Time, d time.Duration) (TimeRange, error) {
	return NewTimeRange(start, start.Add(d))
}

// Overlaps reports whether the two ranges share any instant. Touching
// endpoints do not overlap.
func (r TimeRange) Overlaps(other TimeRange) bool {
	return r.Start.Before(other.End) && other.Start.Before(r.End)
}

// Contains reports whether t falls inside [Start, End).
func (r TimeRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}

func (r TimeRange) Duration() time.Duration { return r.End.Sub(r.Start) }
