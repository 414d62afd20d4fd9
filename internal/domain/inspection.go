package domain

import "time"

type InspectionType string

const (
	InspectionEntry    InspectionType = "entry"
	InspectionExit     InspectionType = "exit"
	InspectionPeriodic InspectionType = "periodic"
)

func (t InspectionType) Valid() bool {
	return t == InspectionEntry || t == InspectionExit || t == InspectionPeriodic
}

type InspectionStatus string

const (
	InspectionScheduled  InspectionStatus = "scheduled"
	InspectionInProgress InspectionStatus = "in_progress"
	InspectionCompleted  InspectionStatus = "completed"
)

var InspectionTransitions = map[InspectionStatus][]InspectionStatus{
	InspectionScheduled:  {InspectionInProgress, InspectionCompleted},
	InspectionInProgress: {InspectionCompleted},
	InspectionCompleted:  {},
}

type ChecklistItem struct {
	Area      string `json:"area"`
	Item      string `json:"item"`
	Condition string `json:"condition"` // "good", "fair", "damaged", "missing"
	Notes     string `json:"notes,omitempty"`
}

type Photo struct {
	Path    string    `json:"path"`
	Caption string    `json:"caption,omitempty"`
	TakenAt time.Time `json:"taken_at"`
}

type Inspection struct {
	Meta
	PropertyID          string           `json:"property_id"`
	Type                InspectionType   `json:"type"`
	ScheduledFor        time.Time        `json:"scheduled_for"`
	Responsible         string           `json:"responsible"`
	Status              InspectionStatus `json:"status"`
	StartedAt           *time.Time       `json:"started_at,omitempty"`
	FinishedAt          *time.Time       `json:"finished_at,omitempty"`
	Checklist           []ChecklistItem  `json:"checklist,omitempty"`
	Photos              []Photo          `json:"photos,omitempty"`
	HasPending          bool             `json:"has_pending"`
	PendingDescriptions []string         `json:"pending_descriptions,omitempty"`
	PendingResolvedAt   *time.Time       `json:"pending_resolved_at,omitempty"`
	AgendaEventID       string           `json:"agenda_event_id,omitempty"`
}

// HasOpenPending reports whether completion left pending items that have
// not been resolved yet.
func (i Inspection) HasOpenPending() bool {
	return i.Status == InspectionCompleted && i.HasPending && i.PendingResolvedAt == nil
}
