package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/mixin"
)

// AuditMixin provides the audit and concurrency fields shared by every
// aggregate. version backs the compare-and-set update used by the stores.
type AuditMixin struct {
	mixin.Schema
}

// Fields of the AuditMixin.
func (AuditMixin) Fields() []ent.Field {
	return []ent.Field{
		field.Int64("version").
			Default(1).
			Positive().
			Comment("Optimistic concurrency token, incremented on every update"),
		field.Time("created_at").
			Default(time.Now).
			Immutable().
			Comment("When the aggregate was created"),
		field.Time("updated_at").
			Default(time.Now).
			UpdateDefault(time.Now).
			Comment("When the aggregate was last updated"),
		field.String("created_by").
			Default("system").
			NotEmpty().
			Comment("Actor who created this aggregate"),
		field.String("updated_by").
			Default("system").
			NotEmpty().
			Comment("Actor who last updated this aggregate"),
		field.Enum("source").
			Values("user", "system", "sweeper", "import").
			Default("user").
			Comment("Origin of the change"),
	}
}

// HistoryMixin adds the status history kept by aggregates with a state
// machine.
type HistoryMixin struct {
	mixin.Schema
}

// Fields of the HistoryMixin.
func (HistoryMixin) Fields() []ent.Field {
	return []ent.Field{
		field.JSON("history", []StatusChange{}).
			Optional().
			Comment("Append-only status history"),
	}
}

// StatusChange mirrors one history row of an aggregate.
type StatusChange struct {
	From  string    `json:"from,omitempty"`
	To    string    `json:"to"`
	Note  string    `json:"note,omitempty"`
	Actor string    `json:"actor"`
	At    time.Time `json:"at"`
}
