package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
	"github.com/google/uuid"
)

// Inspection holds the schema definition for the Inspection entity.
type Inspection struct {
	ent.Schema
}

type ChecklistItem struct {
	Area      string `json:"area"`
	Item      string `json:"item"`
	Condition string `json:"condition"`
	Notes     string `json:"notes,omitempty"`
}

type Photo struct {
	Path    string    `json:"path"`
	Caption string    `json:"caption,omitempty"`
	TakenAt time.Time `json:"taken_at"`
}

// Mixin of the Inspection.
func (Inspection) Mixin() []ent.Mixin {
	return []ent.Mixin{
		AuditMixin{},
	}
}

// Fields of the Inspection.
func (Inspection) Fields() []ent.Field {
	return []ent.Field{
		field.UUID("id", uuid.UUID{}).Default(uuid.New).Immutable().Comment("Primary key"),
		field.UUID("property_id", uuid.UUID{}).Immutable(),
		field.Enum("type").Values("entry", "exit", "periodic").Immutable(),
		field.Time("scheduled_for"),
		field.String("responsible").NotEmpty(),
		field.Enum("status").Values("scheduled", "in_progress", "completed").Default("scheduled"),
		field.Time("started_at").Optional().Nillable(),
		field.Time("finished_at").Optional().Nillable(),
		field.JSON("checklist", []ChecklistItem{}).Optional(),
		field.JSON("photos", []Photo{}).Optional(),
		field.Bool("has_pending").Default(false),
		field.Strings("pending_descriptions").Optional(),
		field.Time("pending_resolved_at").Optional().Nillable(),
		field.UUID("agenda_event_id", uuid.UUID{}).Optional().Nillable(),
	}
}

// Edges of the Inspection.
func (Inspection) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("property", Property.Type).Ref("inspections").Unique().Required().Immutable().Field("property_id").Comment("Inspected property"),
	}
}

// Indexes of the Inspection.
func (Inspection) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("property_id", "status"),
	}
}

// ValidInspectionTransitions defines the allowed state machine transitions.
var ValidInspectionTransitions = map[string][]string{
	"scheduled":   {"in_progress", "completed"},
	"in_progress": {"completed"},
	"completed":   {},
}
