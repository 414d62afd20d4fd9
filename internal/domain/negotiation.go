package domain

import (
	"slices"
	"time"

	"github.com/matthewbaird/rentalops/internal/types"
)

type NegotiationStage string

const (
	StageLeadCaptured             NegotiationStage = "lead_captured"
	StageVisitScheduled           NegotiationStage = "visit_scheduled"
	StageProposalSent             NegotiationStage = "proposal_sent"
	StageDocumentationUnderReview NegotiationStage = "documentation_under_review"
	StageCreditApproval           NegotiationStage = "credit_approval"
	StageContractIssued           NegotiationStage = "contract_issued"
	StageSignature                NegotiationStage = "signature"
	StageKeyDelivery              NegotiationStage = "key_delivery"
	StageCompleted                NegotiationStage = "completed"
	StageCancelled                NegotiationStage = "cancelled"
)

// NegotiationPipeline is the forward order of stages. Cancelled sits
// outside the pipeline.
var NegotiationPipeline = []NegotiationStage{
	StageLeadCaptured,
	StageVisitScheduled,
	StageProposalSent,
	StageDocumentationUnderReview,
	StageCreditApproval,
	StageContractIssued,
	StageSignature,
	StageKeyDelivery,
	StageCompleted,
}

// NegotiationTransitions: each stage advances only to its immediate
// successor, and every non-terminal stage may be cancelled.
var NegotiationTransitions = map[NegotiationStage][]NegotiationStage{
	StageLeadCaptured:             {StageVisitScheduled, StageCancelled},
	StageVisitScheduled:           {StageProposalSent, StageCancelled},
	StageProposalSent:             {StageDocumentationUnderReview, StageCancelled},
	StageDocumentationUnderReview: {StageCreditApproval, StageCancelled},
	StageCreditApproval:           {StageContractIssued, StageCancelled},
	StageContractIssued:           {StageSignature, StageCancelled},
	StageSignature:                {StageKeyDelivery, StageCancelled},
	StageKeyDelivery:              {StageCompleted, StageCancelled},
	StageCompleted:                {},
	StageCancelled:                {},
}

func (s NegotiationStage) IsTerminal() bool {
	return IsTerminal(NegotiationTransitions, s)
}

// ReachedProposal reports whether the stage is proposal_sent or later in
// the pipeline.
func (s NegotiationStage) ReachedProposal() bool {
	idx := slices.Index(NegotiationPipeline, s)
	return idx >= slices.Index(NegotiationPipeline, StageProposalSent)
}

type Negotiation struct {
	Meta
	PropertyID        string           `json:"property_id"`
	InterestedName    string           `json:"interested_name"`
	InterestedEmail   string           `json:"interested_email"`
	BrokerName        string           `json:"broker_name"`
	Stage             NegotiationStage `json:"stage"`
	ClosedAt          *time.Time       `json:"closed_at,omitempty"`
	ProposalExpiresAt *time.Time       `json:"proposal_expires_at,omitempty"`
	SignalAmount      types.Money      `json:"signal_amount"`
	History           []StatusChange   `json:"history"`
}

// IsActive reports whether the negotiation blocks its property.
func (n Negotiation) IsActive() bool { return !n.Stage.IsTerminal() }

// ProposalExpired reports whether a sent proposal passed its validity.
func (n Negotiation) ProposalExpired(now time.Time) bool {
	return n.Stage == StageProposalSent &&
		n.ProposalExpiresAt != nil &&
		!now.Before(*n.ProposalExpiresAt)
}
