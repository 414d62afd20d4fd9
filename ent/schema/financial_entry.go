package schema

import (
	"regexp"

	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
	"github.com/google/uuid"
)

// FinancialEntry holds the schema definition for the FinancialEntry entity.
type FinancialEntry struct {
	ent.Schema
}

// Mixin of the FinancialEntry.
func (FinancialEntry) Mixin() []ent.Mixin {
	return []ent.Mixin{
		AuditMixin{},
		HistoryMixin{},
	}
}

// Fields of the FinancialEntry.
func (FinancialEntry) Fields() []ent.Field {
	return []ent.Field{
		field.UUID("id", uuid.UUID{}).Default(uuid.New).Immutable().Comment("Primary key"),
		field.UUID("reference_id", uuid.UUID{}).Immutable(),
		field.Enum("reference_type").Values("property", "negotiation", "maintenance_order").Immutable(),
		field.Enum("type").Values("signal", "deposit", "rent", "fee", "maintenance_cost", "repass", "refund").Immutable(),
		field.String("description").Optional(),
		field.Int64("amount_cents").Positive().Comment("amount: amount in cents"),
		field.String("amount_currency").Default("BRL").Match(regexp.MustCompile(`^[A-Z]{3}$`)).Comment("amount: ISO 4217 currency code"),
		field.Time("due_date"),
		field.Enum("status").Values("pending", "paid", "cancelled").Default("pending"),
		field.Time("paid_at").Optional().Nillable(),
		field.Time("cancelled_at").Optional().Nillable(),
		field.Bool("blocks_availability").Default(false),
	}
}

// Edges of the FinancialEntry. The reference is polymorphic and kept as
// (reference_type, reference_id).
func (FinancialEntry) Edges() []ent.Edge {
	return nil
}

// Indexes of the FinancialEntry.
func (FinancialEntry) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("reference_type", "reference_id"),
		index.Fields("status", "due_date"),
	}
}

// ValidFinancialEntryTransitions defines the allowed state machine transitions.
var ValidFinancialEntryTransitions = map[string][]string{
	"pending":   {"paid", "cancelled"},
	"paid":      {},
	"cancelled": {},
}
