package schema

import (
	"regexp"

	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
	"github.com/google/uuid"
)

// Property holds the schema definition for the Property entity.
type Property struct {
	ent.Schema
}

// Mixin of the Property.
func (Property) Mixin() []ent.Mixin {
	return []ent.Mixin{
		AuditMixin{},
	}
}

// Fields of the Property.
func (Property) Fields() []ent.Field {
	return []ent.Field{
		field.UUID("id", uuid.UUID{}).Default(uuid.New).Immutable().Comment("Primary key"),
		field.String("code").NotEmpty().Comment("Business code, unique ignoring case"),
		field.String("address_street").Optional(),
		field.String("address_number").Optional(),
		field.String("address_complement").Optional(),
		field.String("address_district").Optional(),
		field.String("address_city").Optional(),
		field.String("address_state").Optional(),
		field.String("address_postal_code").Optional().Match(regexp.MustCompile(`^[0-9A-Za-z -]*$`)),
		field.Float("size_m2").Min(0),
		field.Int("bedrooms").NonNegative(),
		field.String("owner").NotEmpty(),
		field.Time("available_from").Optional().Nillable(),
		field.Enum("status").
			Values("disponivel", "reservado", "em_negociacao", "indisponivel", "em_manutencao",
				"em_vistoria_entrada", "em_vistoria_saida", "agendado_para_disponibilizacao").
			Default("disponivel").
			Comment("Derived by the availability aggregator; never written by clients"),
		field.UUID("active_negotiation_id", uuid.UUID{}).Optional().Nillable(),
		field.Bool("has_open_maintenance").Default(false),
		field.Bool("has_open_pending").Default(false),
		field.Time("status_changed_at"),
	}
}

// Edges of the Property.
func (Property) Edges() []ent.Edge {
	return []ent.Edge{
		edge.To("negotiations", Negotiation.Type).Comment("Negotiations opened for the property"),
		edge.To("inspections", Inspection.Type).Comment("Entry, exit and periodic inspections"),
		edge.To("maintenance_orders", MaintenanceOrder.Type).Comment("Maintenance orders"),
		edge.To("agenda_events", AgendaEvent.Type).Comment("Agenda commitments on the property"),
	}
}

// Indexes of the Property.
func (Property) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("code").Unique(),
		index.Fields("status"),
	}
}
