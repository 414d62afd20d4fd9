package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/matthewbaird/rentalops/internal/types"
)

// DomainEvent carries the canonical shape of every domain event.
type DomainEvent struct {
	ID               string
	EventType        string
	OccurredAt       time.Time
	Actor            string
	AffectedEntities []types.SourceRef
	Summary          string
	Category         string // "negotiation", "financial", "document", "inspection", "maintenance", "agenda", "availability"
	Payload          json.RawMessage
}

// PropertyID returns the id of the property the event is about, if any.
func (e DomainEvent) PropertyID() string {
	for _, ref := range e.AffectedEntities {
		if ref.EntityType == "property" {
			return ref.EntityID
		}
	}
	return ""
}

func newID() string { return uuid.New().String() }

func mustJSON(v any) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}

func short(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func newEvent(eventType, category, summary string, at time.Time, refs []types.SourceRef, payload any) DomainEvent {
	return DomainEvent{
		ID:               newID(),
		EventType:        eventType,
		OccurredAt:       at.UTC(),
		AffectedEntities: refs,
		Summary:          summary,
		Category:         category,
		Payload:          mustJSON(payload),
	}
}

func propertyRef(id string) types.SourceRef {
	return types.SourceRef{EntityType: "property", EntityID: id, Role: "context"}
}

// ── Property ─────────────────────────────────────────────────────────────────

type PropertyRegisteredPayload struct {
	PropertyID string `json:"property_id"`
	Code       string `json:"code"`
	Owner      string `json:"owner"`
}

func NewPropertyRegistered(p PropertyRegisteredPayload, at time.Time) DomainEvent {
	return newEvent("property_registered", "availability",
		fmt.Sprintf("Property %s registered", p.Code), at,
		[]types.SourceRef{{EntityType: "property", EntityID: p.PropertyID, Role: "subject"}}, p)
}

type PropertyStatusChangedPayload struct {
	PropertyID string `json:"property_id"`
	From       string `json:"from"`
	To         string `json:"to"`
}

func NewPropertyStatusChanged(p PropertyStatusChangedPayload, at time.Time) DomainEvent {
	return newEvent("property_status_changed", "availability",
		fmt.Sprintf("Property %s status %s -> %s", short(p.PropertyID), p.From, p.To), at,
		[]types.SourceRef{{EntityType: "property", EntityID: p.PropertyID, Role: "subject"}}, p)
}

// ── Negotiation ──────────────────────────────────────────────────────────────

type NegotiationPayload struct {
	NegotiationID string `json:"negotiation_id"`
	PropertyID    string `json:"property_id"`
	From          string `json:"from,omitempty"`
	To            string `json:"to"`
	Notes         string `json:"notes,omitempty"`
	Expired       bool   `json:"expired,omitempty"`
}

func negotiationRefs(p NegotiationPayload) []types.SourceRef {
	return []types.SourceRef{
		{EntityType: "negotiation", EntityID: p.NegotiationID, Role: "subject"},
		propertyRef(p.PropertyID),
	}
}

func NewNegotiationOpened(p NegotiationPayload, at time.Time) DomainEvent {
	return newEvent("negotiation_opened", "negotiation",
		fmt.Sprintf("Negotiation %s opened", short(p.NegotiationID)), at, negotiationRefs(p), p)
}

// NewNegotiationStageChanged picks the event type from the target stage.
func NewNegotiationStageChanged(p NegotiationPayload, at time.Time) DomainEvent {
	eventType := "negotiation_advanced"
	switch {
	case p.Expired:
		eventType = "proposal_expired"
	case p.To == "completed":
		eventType = "negotiation_completed"
	case p.To == "cancelled":
		eventType = "negotiation_cancelled"
	}
	return newEvent(eventType, "negotiation",
		fmt.Sprintf("Negotiation %s %s -> %s", short(p.NegotiationID), p.From, p.To), at, negotiationRefs(p), p)
}

type SignalAmountPayload struct {
	NegotiationID string      `json:"negotiation_id"`
	PropertyID    string      `json:"property_id"`
	Amount        types.Money `json:"amount"`
}

func NewSignalAmountSet(p SignalAmountPayload, at time.Time) DomainEvent {
	return newEvent("negotiation_signal_set", "negotiation",
		fmt.Sprintf("Signal of %s set on negotiation %s", p.Amount, short(p.NegotiationID)), at,
		[]types.SourceRef{
			{EntityType: "negotiation", EntityID: p.NegotiationID, Role: "subject"},
			propertyRef(p.PropertyID),
		}, p)
}

// ── Financial ────────────────────────────────────────────────────────────────

type FinancialEntryPayload struct {
	EntryID       string      `json:"entry_id"`
	ReferenceID   string      `json:"reference_id"`
	ReferenceType string      `json:"reference_type"`
	PropertyID    string      `json:"property_id,omitempty"`
	EntryType     string      `json:"entry_type"`
	Amount        types.Money `json:"amount"`
	From          string      `json:"from,omitempty"`
	To            string      `json:"to"`
	Note          string      `json:"note,omitempty"`
	DaysPastDue   int         `json:"days_past_due"`
}

func financialRefs(p FinancialEntryPayload) []types.SourceRef {
	refs := []types.SourceRef{
		{EntityType: "financial_entry", EntityID: p.EntryID, Role: "subject"},
		{EntityType: p.ReferenceType, EntityID: p.ReferenceID, Role: "target"},
	}
	if p.PropertyID != "" && p.ReferenceType != "property" {
		refs = append(refs, propertyRef(p.PropertyID))
	}
	return refs
}

func NewFinancialEntryRegistered(p FinancialEntryPayload, at time.Time) DomainEvent {
	return newEvent("financial_entry_registered", "financial",
		fmt.Sprintf("%s entry of %s registered", p.EntryType, p.Amount), at, financialRefs(p), p)
}

func NewFinancialEntryAmountUpdated(p FinancialEntryPayload, at time.Time) DomainEvent {
	return newEvent("financial_entry_amount_updated", "financial",
		fmt.Sprintf("Entry %s amount set to %s", short(p.EntryID), p.Amount), at, financialRefs(p), p)
}

func NewPaymentRegistered(p FinancialEntryPayload, at time.Time) DomainEvent {
	return newEvent("payment_registered", "financial",
		fmt.Sprintf("Payment of %s registered on entry %s", p.Amount, short(p.EntryID)), at, financialRefs(p), p)
}

func NewFinancialEntryCancelled(p FinancialEntryPayload, at time.Time) DomainEvent {
	return newEvent("financial_entry_cancelled", "financial",
		fmt.Sprintf("Entry %s cancelled: %s", short(p.EntryID), p.Note), at, financialRefs(p), p)
}

// ── Documents ────────────────────────────────────────────────────────────────

type DocumentPayload struct {
	WorkflowID    string `json:"workflow_id"`
	ReferenceID   string `json:"reference_id"`
	ReferenceType string `json:"reference_type"`
	DocumentType  string `json:"document_type"`
	From          string `json:"from,omitempty"`
	To            string `json:"to"`
	SignerID      string `json:"signer_id,omitempty"`
	Reason        string `json:"reason,omitempty"`
}

func documentRefs(p DocumentPayload) []types.SourceRef {
	return []types.SourceRef{
		{EntityType: "document_workflow", EntityID: p.WorkflowID, Role: "subject"},
		{EntityType: p.ReferenceType, EntityID: p.ReferenceID, Role: "target"},
	}
}

func NewDocumentCreated(p DocumentPayload, at time.Time) DomainEvent {
	return newEvent("document_created", "document",
		fmt.Sprintf("%s workflow %s created", p.DocumentType, short(p.WorkflowID)), at, documentRefs(p), p)
}

// NewDocumentStatusChanged emits document_<status> for the target status.
func NewDocumentStatusChanged(p DocumentPayload, at time.Time) DomainEvent {
	return newEvent("document_"+p.To, "document",
		fmt.Sprintf("Document %s %s -> %s", short(p.WorkflowID), p.From, p.To), at, documentRefs(p), p)
}

func NewSignatureRegistered(p DocumentPayload, at time.Time) DomainEvent {
	return newEvent("signature_registered", "document",
		fmt.Sprintf("Signer %s signed document %s", short(p.SignerID), short(p.WorkflowID)), at, documentRefs(p), p)
}

func NewDocumentTemplateUpdated(p DocumentPayload, at time.Time) DomainEvent {
	return newEvent("document_template_updated", "document",
		fmt.Sprintf("Template of document %s updated", short(p.WorkflowID)), at, documentRefs(p), p)
}

// ── Inspection ───────────────────────────────────────────────────────────────

type InspectionPayload struct {
	InspectionID string `json:"inspection_id"`
	PropertyID   string `json:"property_id"`
	Type         string `json:"type"`
	Responsible  string `json:"responsible,omitempty"`
	From         string `json:"from,omitempty"`
	To           string `json:"to"`
	HasPending   bool   `json:"has_pending"`
	PendingCount int    `json:"pending_count,omitempty"`
}

// NewInspectionChanged emits inspection_<action>, e.g. inspection_started.
func NewInspectionChanged(action string, p InspectionPayload, at time.Time) DomainEvent {
	return newEvent("inspection_"+action, "inspection",
		fmt.Sprintf("%s inspection %s %s", p.Type, short(p.InspectionID), action), at,
		[]types.SourceRef{
			{EntityType: "inspection", EntityID: p.InspectionID, Role: "subject"},
			propertyRef(p.PropertyID),
		}, p)
}

// ── Maintenance ──────────────────────────────────────────────────────────────

type MaintenancePayload struct {
	OrderID    string       `json:"order_id"`
	PropertyID string       `json:"property_id"`
	Title      string       `json:"title"`
	From       string       `json:"from,omitempty"`
	To         string       `json:"to"`
	Reason     string       `json:"reason,omitempty"`
	Cost       *types.Money `json:"cost,omitempty"`
}

// NewMaintenanceChanged emits maintenance_<status> for the target status.
func NewMaintenanceChanged(p MaintenancePayload, at time.Time) DomainEvent {
	return newEvent("maintenance_"+p.To, "maintenance",
		fmt.Sprintf("Maintenance %q %s", p.Title, p.To), at,
		[]types.SourceRef{
			{EntityType: "maintenance_order", EntityID: p.OrderID, Role: "subject"},
			propertyRef(p.PropertyID),
		}, p)
}

// ── Agenda ───────────────────────────────────────────────────────────────────

type AgendaPayload struct {
	EventID     string          `json:"event_id"`
	PropertyID  string          `json:"property_id,omitempty"`
	Responsible string          `json:"responsible,omitempty"`
	Type        string          `json:"type"`
	Title       string          `json:"title"`
	Range       types.TimeRange `json:"range"`
}

func NewAgendaEventBooked(p AgendaPayload, at time.Time) DomainEvent {
	refs := []types.SourceRef{{EntityType: "agenda_event", EntityID: p.EventID, Role: "subject"}}
	if p.PropertyID != "" {
		refs = append(refs, propertyRef(p.PropertyID))
	}
	return newEvent("agenda_event_booked", "agenda",
		fmt.Sprintf("%s %q booked for %s", p.Type, p.Title, p.Range.Start.Format(time.RFC3339)), at, refs, p)
}
