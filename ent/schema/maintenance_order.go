package schema

import (
	"regexp"

	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
	"github.com/google/uuid"
)

// MaintenanceOrder holds the schema definition for the MaintenanceOrder entity.
type MaintenanceOrder struct {
	ent.Schema
}

// Mixin of the MaintenanceOrder.
func (MaintenanceOrder) Mixin() []ent.Mixin {
	return []ent.Mixin{
		AuditMixin{},
		HistoryMixin{},
	}
}

// Fields of the MaintenanceOrder.
func (MaintenanceOrder) Fields() []ent.Field {
	return []ent.Field{
		field.UUID("id", uuid.UUID{}).Default(uuid.New).Immutable().Comment("Primary key"),
		field.UUID("property_id", uuid.UUID{}).Immutable(),
		field.String("title").NotEmpty(),
		field.Text("description").Optional(),
		field.String("requested_by").NotEmpty(),
		field.Enum("status").Values("requested", "approved", "in_execution", "completed", "cancelled").Default("requested"),
		field.Time("approved_at").Optional().Nillable(),
		field.Time("started_at").Optional().Nillable(),
		field.Time("completed_at").Optional().Nillable(),
		field.Time("cancelled_at").Optional().Nillable(),
		field.String("cancel_reason").Optional(),
		field.Int64("cost_amount_cents").Optional().Nillable().Comment("cost: amount in cents"),
		field.String("cost_currency").Optional().Nillable().Match(regexp.MustCompile(`^[A-Z]{3}$`)).Comment("cost: ISO 4217 currency code"),
	}
}

// Edges of the MaintenanceOrder.
func (MaintenanceOrder) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("property", Property.Type).Ref("maintenance_orders").Unique().Required().Immutable().Field("property_id").Comment("Property under maintenance"),
	}
}

// Indexes of the MaintenanceOrder.
func (MaintenanceOrder) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("property_id", "status"),
	}
}

// ValidMaintenanceOrderTransitions defines the allowed state machine transitions.
var ValidMaintenanceOrderTransitions = map[string][]string{
	"requested":    {"approved", "cancelled"},
	"approved":     {"in_execution", "cancelled"},
	"in_execution": {"completed", "cancelled"},
	"completed":    {},
	"cancelled":    {},
}
