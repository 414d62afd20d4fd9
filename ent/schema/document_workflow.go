package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
	"github.com/google/uuid"
)

// DocumentWorkflow holds the schema definition for the DocumentWorkflow entity.
type DocumentWorkflow struct {
	ent.Schema
}

// Signer is stored inline with its workflow.
type Signer struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Email          string     `json:"email"`
	Role           string     `json:"role,omitempty"`
	Mandatory      bool       `json:"mandatory"`
	Order          int        `json:"order"`
	SignedAt       *time.Time `json:"signed_at,omitempty"`
	SignedFilePath string     `json:"signed_file_path,omitempty"`
}

// Mixin of the DocumentWorkflow.
func (DocumentWorkflow) Mixin() []ent.Mixin {
	return []ent.Mixin{
		AuditMixin{},
		HistoryMixin{},
	}
}

// Fields of the DocumentWorkflow.
func (DocumentWorkflow) Fields() []ent.Field {
	return []ent.Field{
		field.UUID("id", uuid.UUID{}).Default(uuid.New).Immutable().Comment("Primary key"),
		field.UUID("reference_id", uuid.UUID{}).Immutable(),
		field.Enum("reference_type").Values("property", "negotiation", "maintenance_order", "inspection").Immutable(),
		field.String("document_type").NotEmpty(),
		field.String("title").NotEmpty(),
		field.Text("content_template").Optional(),
		field.JSON("signers", []Signer{}).Optional(),
		field.Enum("status").Values("draft", "pending_signatures", "signed", "archived", "cancelled").Default("draft"),
		field.String("file_name").Optional().Nillable(),
		field.String("storage_path").Optional().Nillable(),
		field.Time("expires_at").Optional().Nillable(),
		field.Time("generated_at").Optional().Nillable(),
		field.Time("completed_at").Optional().Nillable(),
	}
}

// Edges of the DocumentWorkflow.
func (DocumentWorkflow) Edges() []ent.Edge {
	return nil
}

// Indexes of the DocumentWorkflow.
func (DocumentWorkflow) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("reference_type", "reference_id"),
	}
}

// ValidDocumentWorkflowTransitions defines the allowed state machine transitions.
var ValidDocumentWorkflowTransitions = map[string][]string{
	"draft":              {"pending_signatures", "signed", "cancelled", "archived"},
	"pending_signatures": {"signed", "cancelled", "archived"},
	"signed":             {"archived"},
	"archived":           {},
	"cancelled":          {},
}
