package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
	"github.com/google/uuid"
)

// AgendaEvent holds the schema definition for the AgendaEvent entity.
// Ranges are half-open: [range_start, range_end).
type AgendaEvent struct {
	ent.Schema
}

// Mixin of the AgendaEvent.
func (AgendaEvent) Mixin() []ent.Mixin {
	return []ent.Mixin{
		AuditMixin{},
	}
}

// Fields of the AgendaEvent.
func (AgendaEvent) Fields() []ent.Field {
	return []ent.Field{
		field.UUID("id", uuid.UUID{}).Default(uuid.New).Immutable().Comment("Primary key"),
		field.UUID("property_id", uuid.UUID{}).Optional().Nillable(),
		field.String("responsible").Optional().Comment("Display name of the responsible party"),
		field.String("responsible_key").Optional().Comment("Folded name used for overlap checks"),
		field.Time("range_start"),
		field.Time("range_end"),
		field.Enum("type").Values("inspection", "visit", "maintenance", "other").Default("other"),
		field.String("title").Optional(),
		field.UUID("reference_id", uuid.UUID{}).Optional().Nillable(),
		field.Enum("reference_type").Values("property", "negotiation", "maintenance_order", "inspection").Optional().Nillable(),
		field.Time("released_at").Optional().Nillable().Comment("Set when the owning aggregate failed to commit; released rows hold no slot"),
	}
}

// Edges of the AgendaEvent.
func (AgendaEvent) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("property", Property.Type).Ref("agenda_events").Unique().Field("property_id").Comment("Property the commitment is on"),
	}
}

// Indexes of the AgendaEvent.
func (AgendaEvent) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("property_id", "range_start"),
		index.Fields("responsible_key", "range_start"),
	}
}
