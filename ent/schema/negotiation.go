package schema

import (
	"regexp"

	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
	"github.com/google/uuid"
)

// Negotiation holds the schema definition for the Negotiation entity.
type Negotiation struct {
	ent.Schema
}

// Mixin of the Negotiation.
func (Negotiation) Mixin() []ent.Mixin {
	return []ent.Mixin{
		AuditMixin{},
		HistoryMixin{},
	}
}

// Fields of the Negotiation.
func (Negotiation) Fields() []ent.Field {
	return []ent.Field{
		field.UUID("id", uuid.UUID{}).Default(uuid.New).Immutable().Comment("Primary key"),
		field.UUID("property_id", uuid.UUID{}).Immutable(),
		field.String("interested_name").NotEmpty(),
		field.String("interested_email").Optional().Sensitive(),
		field.String("broker_name").Optional(),
		field.Enum("stage").
			Values("lead_captured", "visit_scheduled", "proposal_sent", "documentation_under_review",
				"credit_approval", "contract_issued", "signature", "key_delivery", "completed", "cancelled").
			Default("lead_captured"),
		field.Time("closed_at").Optional().Nillable(),
		field.Time("proposal_expires_at").Optional().Nillable(),
		field.Int64("signal_amount_cents").NonNegative().Default(0).Comment("signal_amount: amount in cents"),
		field.String("signal_amount_currency").Optional().Match(regexp.MustCompile(`^[A-Z]{3}$`)).Comment("signal_amount: ISO 4217 currency code"),
	}
}

// Edges of the Negotiation.
func (Negotiation) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("property", Property.Type).Ref("negotiations").Unique().Required().Immutable().Field("property_id").Comment("Property under negotiation"),
	}
}

// Indexes of the Negotiation.
func (Negotiation) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("property_id", "stage"),
		index.Fields("stage", "proposal_expires_at"),
	}
}

// ValidNegotiationTransitions defines the allowed state machine transitions.
var ValidNegotiationTransitions = map[string][]string{
	"lead_captured":              {"visit_scheduled", "cancelled"},
	"visit_scheduled":            {"proposal_sent", "cancelled"},
	"proposal_sent":              {"documentation_under_review", "cancelled"},
	"documentation_under_review": {"credit_approval", "cancelled"},
	"credit_approval":            {"contract_issued", "cancelled"},
	"contract_issued":            {"signature", "cancelled"},
	"signature":                  {"key_delivery", "cancelled"},
	"key_delivery":               {"completed", "cancelled"},
	"completed":                  {},
	"cancelled":                  {},
}
