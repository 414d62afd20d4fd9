package domain

import "time"

type DocumentStatus string

const (
	DocumentDraft             DocumentStatus = "draft"
	DocumentPendingSignatures DocumentStatus = "pending_signatures"
	DocumentSigned            DocumentStatus = "signed"
	DocumentArchived          DocumentStatus = "archived"
	DocumentCancelled         DocumentStatus = "cancelled"
)

// DocumentTransitions. Draft may jump straight to signed when the workflow
// has no signers. Cancellation is only possible before signing completes.
var DocumentTransitions = map[DocumentStatus][]DocumentStatus{
	DocumentDraft:             {DocumentPendingSignatures, DocumentSigned, DocumentCancelled, DocumentArchived},
	DocumentPendingSignatures: {DocumentSigned, DocumentCancelled, DocumentArchived},
	DocumentSigned:            {DocumentArchived},
	DocumentArchived:          {},
	DocumentCancelled:         {},
}

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

func (s Signer) Signed() bool { return s.SignedAt != nil }

// GeneratedDocument is the file attached when a workflow is activated.
type GeneratedDocument struct {
	FileName    string     `json:"file_name"`
	StoragePath string     `json:"storage_path"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	GeneratedAt time.Time  `json:"generated_at"`
}

type DocumentWorkflow struct {
	Meta
	ReferenceID     string             `json:"reference_id"`
	ReferenceType   ReferenceType      `json:"reference_type"`
	DocumentType    string             `json:"document_type"`
	Title           string             `json:"title"`
	ContentTemplate string             `json:"content_template"`
	Signers         []Signer           `json:"signers"`
	Status          DocumentStatus     `json:"status"`
	Document        *GeneratedDocument `json:"document,omitempty"`
	CompletedAt     *time.Time         `json:"completed_at,omitempty"`
	History         []StatusChange     `json:"history"`
}

// QuorumReached reports whether every mandatory signer has signed.
// Optional signers never hold the workflow back.
func (d DocumentWorkflow) QuorumReached() bool {
	for _, s := range d.Signers {
		if s.Mandatory && !s.Signed() {
			return false
		}
	}
	return true
}

// SignerIndex returns the position of the signer with id, or -1.
func (d DocumentWorkflow) SignerIndex(id string) int {
	for i, s := range d.Signers {
		if s.ID == id {
			return i
		}
	}
	return -1
}
