// Package document runs document/signature workflows. A workflow is
// signed once every mandatory signer has signed; optional signers never
// hold it back.
package document

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/matthewbaird/rentalops/internal/apperr"
	"github.com/matthewbaird/rentalops/internal/clock"
	"github.com/matthewbaird/rentalops/internal/domain"
	"github.com/matthewbaird/rentalops/internal/event"
	"github.com/matthewbaird/rentalops/internal/logger"
	"github.com/matthewbaird/rentalops/internal/repository"
	"github.com/matthewbaird/rentalops/internal/store"
)

type Service struct {
	repos  *repository.Set
	clock  clock.Clock
	events *event.Emitter
	log    *logger.Logger
}

func NewService(repos *repository.Set, clk clock.Clock, events *event.Emitter, log *logger.Logger) *Service {
	return &Service{repos: repos, clock: clk, events: events, log: logger.OrNop(log)}
}

type SignerInput struct {
	Name      string
	Email     string
	Role      string
	Mandatory bool
}

type CreateInput struct {
	ReferenceID     string
	ReferenceType   domain.ReferenceType
	DocumentType    string
	Title           string
	ContentTemplate string
	Signers         []SignerInput
}

func (s *Service) Create(ctx context.Context, in CreateInput) (domain.DocumentWorkflow, error) {
	const op = "document.create"
	switch {
	case strings.TrimSpace(in.DocumentType) == "":
		return domain.DocumentWorkflow{}, apperr.Validation(op, "document type is required")
	case strings.TrimSpace(in.Title) == "":
		return domain.DocumentWorkflow{}, apperr.Validation(op, "title is required")
	}
	if err := s.checkReference(ctx, op, in.ReferenceID, in.ReferenceType); err != nil {
		return domain.DocumentWorkflow{}, err
	}

	signers := make([]domain.Signer, 0, len(in.Signers))
	for i, si := range in.Signers {
		if strings.TrimSpace(si.Name) == "" {
			return domain.DocumentWorkflow{}, apperr.Validation(op, "signer %d has no name", i+1)
		}
		signers = append(signers, domain.Signer{
			ID:        uuid.New().String(),
			Name:      strings.TrimSpace(si.Name),
			Email:     strings.TrimSpace(si.Email),
			Role:      si.Role,
			Mandatory: si.Mandatory,
			Order:     i + 1,
		})
	}

	now := s.clock.Now()
	d := domain.DocumentWorkflow{
		Meta:            domain.NewMeta(uuid.New().String(), now),
		ReferenceID:     in.ReferenceID,
		ReferenceType:   in.ReferenceType,
		DocumentType:    strings.TrimSpace(in.DocumentType),
		Title:           strings.TrimSpace(in.Title),
		ContentTemplate: in.ContentTemplate,
		Signers:         signers,
		Status:          domain.DocumentDraft,
		History: []domain.StatusChange{{
			To: string(domain.DocumentDraft), Actor: event.ActorFrom(ctx), At: now,
		}},
	}
	if err := ctx.Err(); err != nil {
		return domain.DocumentWorkflow{}, apperr.Ensure(op, err)
	}
	if err := s.repos.Documents.Add(ctx, d); err != nil {
		return domain.DocumentWorkflow{}, err
	}
	s.log.Info("document workflow created", "workflow_id", d.ID, "type", d.DocumentType, "signers", len(d.Signers))
	s.events.Emit(ctx, event.NewDocumentCreated(payload(d, ""), now))
	return d, nil
}

func (s *Service) checkReference(ctx context.Context, op, refID string, refType domain.ReferenceType) error {
	var err error
	switch refType {
	case domain.RefProperty:
		_, err = s.repos.Properties.Get(ctx, refID)
	case domain.RefNegotiation:
		_, err = s.repos.Negotiations.Get(ctx, refID)
	case domain.RefMaintenanceOrder:
		_, err = s.repos.Maintenance.Get(ctx, refID)
	case domain.RefInspection:
		_, err = s.repos.Inspections.Get(ctx, refID)
	default:
		err = apperr.Validation(op, "unknown reference type %q", refType)
	}
	return err
}

func payload(d domain.DocumentWorkflow, from domain.DocumentStatus) event.DocumentPayload {
	return event.DocumentPayload{
		WorkflowID:    d.ID,
		ReferenceID:   d.ReferenceID,
		ReferenceType: string(d.ReferenceType),
		DocumentType:  d.DocumentType,
		From:          string(from),
		To:            string(d.Status),
	}
}

func (s *Service) mutate(ctx context.Context, op, id string, apply func(d *domain.DocumentWorkflow, now time.Time) error) (domain.DocumentWorkflow, domain.DocumentStatus, error) {
	var (
		out  domain.DocumentWorkflow
		from domain.DocumentStatus
	)
	err := store.RetryOnConflict(ctx, func() error {
		d, err := s.repos.Documents.Get(ctx, id)
		if err != nil {
			return err
		}
		from = d.Status
		now := s.clock.Now()
		if err := apply(&d, now); err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		d.Touch(now)
		if err := s.repos.Documents.Update(ctx, d); err != nil {
			return err
		}
		out = d
		return nil
	})
	if err != nil {
		return domain.DocumentWorkflow{}, "", apperr.Ensure(op, err)
	}
	return out, from, nil
}

func requireStatus(op string, d *domain.DocumentWorkflow, want domain.DocumentStatus) error {
	if d.Status != want {
		return apperr.InvalidState(op, "document %s is %q, expected %q", d.ID, d.Status, want)
	}
	return nil
}

// moveTo validates and applies a status change, appending history.
func moveTo(ctx context.Context, op string, d *domain.DocumentWorkflow, target domain.DocumentStatus, note string, now time.Time) error {
	if err := domain.ValidateTransition(op, domain.DocumentTransitions, d.Status, target); err != nil {
		return err
	}
	d.History = append(d.History, domain.StatusChange{
		From: string(d.Status), To: string(target), Note: note, Actor: event.ActorFrom(ctx), At: now,
	})
	d.Status = target
	if target == domain.DocumentSigned {
		d.CompletedAt = &now
	}
	return nil
}

// UpdateTemplate edits a draft.
func (s *Service) UpdateTemplate(ctx context.Context, id, title, template string) (domain.DocumentWorkflow, error) {
	const op = "document.update_template"
	if strings.TrimSpace(title) == "" {
		return domain.DocumentWorkflow{}, apperr.Validation(op, "title is required")
	}
	d, _, err := s.mutate(ctx, op, id, func(d *domain.DocumentWorkflow, _ time.Time) error {
		if err := requireStatus(op, d, domain.DocumentDraft); err != nil {
			return err
		}
		d.Title = strings.TrimSpace(title)
		d.ContentTemplate = template
		return nil
	})
	if err != nil {
		return domain.DocumentWorkflow{}, err
	}
	s.events.Emit(ctx, event.NewDocumentTemplateUpdated(payload(d, d.Status), d.UpdatedAt))
	return d, nil
}

type ActivateInput struct {
	FileName    string
	StoragePath string
	ExpiresAt   *time.Time
}

// Activate attaches the generated document and opens the workflow for
// signatures. Without signers it is signed immediately.
func (s *Service) Activate(ctx context.Context, id string, in ActivateInput) (domain.DocumentWorkflow, error) {
	const op = "document.activate"
	if strings.TrimSpace(in.FileName) == "" || strings.TrimSpace(in.StoragePath) == "" {
		return domain.DocumentWorkflow{}, apperr.Validation(op, "file name and storage path are required")
	}
	d, from, err := s.mutate(ctx, op, id, func(d *domain.DocumentWorkflow, now time.Time) error {
		if err := requireStatus(op, d, domain.DocumentDraft); err != nil {
			return err
		}
		d.Document = &domain.GeneratedDocument{
			FileName:    strings.TrimSpace(in.FileName),
			StoragePath: strings.TrimSpace(in.StoragePath),
			ExpiresAt:   in.ExpiresAt,
			GeneratedAt: now,
		}
		if len(d.Signers) == 0 {
			return moveTo(ctx, op, d, domain.DocumentSigned, "no signers required", now)
		}
		return moveTo(ctx, op, d, domain.DocumentPendingSignatures, "document attached", now)
	})
	if err != nil {
		return domain.DocumentWorkflow{}, err
	}
	s.log.Info("document activated", "workflow_id", id, "status", d.Status)
	s.events.Emit(ctx, event.NewDocumentStatusChanged(payload(d, from), d.UpdatedAt))
	return d, nil
}

// RegisterSignature records a signer's signature and completes the
// workflow once the mandatory quorum is reached.
func (s *Service) RegisterSignature(ctx context.Context, id, signerID, filePath string) (domain.DocumentWorkflow, error) {
	const op = "document.register_signature"
	d, from, err := s.mutate(ctx, op, id, func(d *domain.DocumentWorkflow, now time.Time) error {
		if err := requireStatus(op, d, domain.DocumentPendingSignatures); err != nil {
			return err
		}
		idx := d.SignerIndex(signerID)
		if idx < 0 {
			return apperr.NotFound(op, "signer %s is not part of document %s", signerID, id)
		}
		if d.Signers[idx].Signed() {
			return apperr.InvalidState(op, "signer %s already signed document %s", signerID, id)
		}
		d.Signers[idx].SignedAt = &now
		d.Signers[idx].SignedFilePath = strings.TrimSpace(filePath)
		if d.QuorumReached() {
			return moveTo(ctx, op, d, domain.DocumentSigned, "all mandatory signers signed", now)
		}
		return nil
	})
	if err != nil {
		return domain.DocumentWorkflow{}, err
	}

	p := payload(d, from)
	p.SignerID = signerID
	s.log.Info("signature registered", "workflow_id", id, "signer_id", signerID, "status", d.Status)
	s.events.Emit(ctx, event.NewSignatureRegistered(p, d.UpdatedAt))
	if d.Status != from {
		s.events.Emit(ctx, event.NewDocumentStatusChanged(payload(d, from), d.UpdatedAt))
	}
	return d, nil
}

// Archive closes a workflow for good.
func (s *Service) Archive(ctx context.Context, id, reason string) (domain.DocumentWorkflow, error) {
	return s.close(ctx, "document.archive", id, domain.DocumentArchived, reason)
}

// Cancel aborts a workflow that has not been signed.
func (s *Service) Cancel(ctx context.Context, id, reason string) (domain.DocumentWorkflow, error) {
	return s.close(ctx, "document.cancel", id, domain.DocumentCancelled, reason)
}

func (s *Service) close(ctx context.Context, op, id string, target domain.DocumentStatus, reason string) (domain.DocumentWorkflow, error) {
	d, from, err := s.mutate(ctx, op, id, func(d *domain.DocumentWorkflow, now time.Time) error {
		return moveTo(ctx, op, d, target, reason, now)
	})
	if err != nil {
		return domain.DocumentWorkflow{}, err
	}
	p := payload(d, from)
	p.Reason = reason
	s.log.Info("document closed", "workflow_id", id, "from", from, "to", target)
	s.events.Emit(ctx, event.NewDocumentStatusChanged(p, d.UpdatedAt))
	return d, nil
}

func (s *Service) Get(ctx context.Context, id string) (domain.DocumentWorkflow, error) {
	return s.repos.Documents.Get(ctx, id)
}

func (s *Service) ListByReference(ctx context.Context, refID string, refType domain.ReferenceType) ([]domain.DocumentWorkflow, error) {
	return s.repos.Documents.ByReference(ctx, refID, refType)
}
