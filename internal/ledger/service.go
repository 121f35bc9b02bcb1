package ledger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/solarlink-crm/solarlink/internal/access"
	"github.com/solarlink-crm/solarlink/internal/notify"
	"github.com/solarlink-crm/solarlink/internal/projects"
	"github.com/solarlink-crm/solarlink/internal/shared"
	"github.com/solarlink-crm/solarlink/internal/storage"
	"github.com/solarlink-crm/solarlink/internal/timeline"
)

// ProjectSource resolves the project a payment belongs to, applying the
// caller's visibility scope. The lifecycle engine satisfies this.
type ProjectSource interface {
	Get(ctx context.Context, id uuid.UUID, actor access.Actor) (*projects.Project, error)
}

// RecordRequest captures a new payment submission.
type RecordRequest struct {
	Amount     float64    `json:"amount" validate:"required,gt=0"`
	Mode       Mode       `json:"mode" validate:"required,oneof=UPI CASH TRANSFER BANK_TRANSFER CHEQUE"`
	Reference  *string    `json:"reference,omitempty" validate:"omitempty,max=100"`
	BankName   *string    `json:"bank_name,omitempty" validate:"omitempty,max=200"`
	ChequeDate *time.Time `json:"cheque_date,omitempty"`
}

// DecisionRequest carries a verification decision.
type DecisionRequest struct {
	Decision  Status    `json:"decision" validate:"required,oneof=VERIFIED REJECTED"`
	Clearance Clearance `json:"clearance_status,omitempty" validate:"omitempty,oneof=CLEARED BOUNCED"`
}

// Service owns the payment ledger attached to each project.
type Service struct {
	logger   *slog.Logger
	repo     Repository
	projects ProjectSource
	proofs   storage.ProofStorage
	bus      *notify.Bus
}

// NewService constructs the ledger service.
func NewService(logger *slog.Logger, repo Repository, src ProjectSource, proofs storage.ProofStorage, bus *notify.Bus) *Service {
	return &Service{logger: logger, repo: repo, projects: src, proofs: proofs, bus: bus}
}

// Record accepts a payment against a project. Proof is mandatory for every
// mode and must be durably stored before the record is written; cheques
// additionally need reference, bank and date. New payments always start
// PENDING verification.
func (s *Service) Record(ctx context.Context, actor access.Actor, projectID uuid.UUID, req RecordRequest, proofName string, proof io.Reader) (*Payment, error) {
	if !access.CanPerform(actor.Role, access.ActionRecordPayment) {
		return nil, fmt.Errorf("%w: role %s cannot record payments", shared.ErrUnauthorized, actor.Role)
	}
	project, err := s.projects.Get(ctx, projectID, actor)
	if err != nil {
		return nil, err
	}
	if req.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", shared.ErrValidation)
	}
	mode, err := ParseMode(string(req.Mode))
	if err != nil {
		return nil, err
	}
	if mode == ModeCheque {
		if req.Reference == nil || strings.TrimSpace(*req.Reference) == "" {
			return nil, fmt.Errorf("%w: cheque number required", shared.ErrValidation)
		}
		if req.BankName == nil || strings.TrimSpace(*req.BankName) == "" {
			return nil, fmt.Errorf("%w: cheque bank required", shared.ErrValidation)
		}
		if req.ChequeDate == nil {
			return nil, fmt.Errorf("%w: cheque date required", shared.ErrValidation)
		}
	}
	if proof == nil {
		return nil, fmt.Errorf("%w: proof of payment required", shared.ErrValidation)
	}
	proofRef, err := s.proofs.Store(ctx, proofName, proof)
	if err != nil {
		return nil, fmt.Errorf("store payment proof: %w", err)
	}

	payment := &Payment{
		ProjectID:      project.ID,
		Amount:         req.Amount,
		Mode:           mode,
		Reference:      req.Reference,
		BankName:       req.BankName,
		ChequeDate:     req.ChequeDate,
		ProofRef:       proofRef,
		Status:         StatusPending,
		RecordedBy:     actor.ID,
		RecordedByName: actor.DisplayName,
	}
	if mode == ModeCheque {
		payment.Clearance = ClearancePending
	}

	var remark string
	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if err := repo.Insert(ctx, payment); err != nil {
			return err
		}
		total, err := repo.ConfirmedTotal(ctx, project.ID)
		if err != nil {
			return err
		}
		remark = fmt.Sprintf("payment of %.2f via %s recorded, awaiting verification, confirmed total %.2f", payment.Amount, payment.Mode, total)
		return repo.AppendTimeline(ctx, timeline.Entry{
			ProjectID: project.ID,
			Action:    timeline.ActionPaymentRecorded,
			Remarks:   remark,
			ActorName: actor.DisplayName,
			At:        time.Now().UTC(),
		})
	})
	if err != nil {
		return nil, fmt.Errorf("record payment: %w", err)
	}
	s.publish(project.ID, timeline.ActionPaymentRecorded, actor.DisplayName, remark)
	return payment, nil
}

// Verify settles the review decision on a pending payment. Decisions are
// one-shot: a decided payment returns a conflict. Cheque verification must
// state the clearance outcome, and only CLEARED cheques count toward the
// settlement total. A bounced cheque is rejected but the record is retained.
func (s *Service) Verify(ctx context.Context, actor access.Actor, paymentID int64, req DecisionRequest) (*Payment, error) {
	if !access.CanPerform(actor.Role, access.ActionVerifyPayment) {
		return nil, fmt.Errorf("%w: role %s cannot verify payments", shared.ErrUnauthorized, actor.Role)
	}
	payment, err := s.repo.Get(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.Decided() {
		return nil, fmt.Errorf("%w: payment already decided", shared.ErrInvalidTransition)
	}
	if req.Decision != StatusVerified && req.Decision != StatusRejected {
		return nil, fmt.Errorf("%w: decision must be VERIFIED or REJECTED", shared.ErrValidation)
	}

	clearance := payment.Clearance
	if payment.Mode == ModeCheque {
		switch {
		case req.Decision == StatusVerified && req.Clearance == ClearanceCleared:
			clearance = ClearanceCleared
		case req.Decision == StatusRejected:
			clearance = ClearanceBounced
		case req.Decision == StatusVerified:
			return nil, fmt.Errorf("%w: cheque verification requires CLEARED clearance", shared.ErrValidation)
		}
	} else if req.Clearance != ClearanceNone {
		return nil, fmt.Errorf("%w: clearance applies to cheques only", shared.ErrValidation)
	}

	var remark string
	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if err := repo.Decide(ctx, payment.ID, req.Decision, clearance, actor.ID); err != nil {
			return err
		}
		total, err := repo.ConfirmedTotal(ctx, payment.ProjectID)
		if err != nil {
			return err
		}
		remark = fmt.Sprintf("payment of %.2f %s, confirmed total %.2f", payment.Amount, req.Decision, total)
		if clearance == ClearanceBounced {
			remark = fmt.Sprintf("cheque of %.2f bounced, confirmed total %.2f", payment.Amount, total)
		}
		return repo.AppendTimeline(ctx, timeline.Entry{
			ProjectID: payment.ProjectID,
			Action:    timeline.ActionPaymentVerified,
			Remarks:   remark,
			ActorName: actor.DisplayName,
			At:        time.Now().UTC(),
		})
	})
	if err != nil {
		return nil, fmt.Errorf("verify payment: %w", err)
	}
	s.publish(payment.ProjectID, timeline.ActionPaymentVerified, actor.DisplayName, remark)
	return s.repo.Get(ctx, payment.ID)
}

// List returns the payment history for a project the caller can see.
func (s *Service) List(ctx context.Context, actor access.Actor, projectID uuid.UUID) ([]Payment, error) {
	if _, err := s.projects.Get(ctx, projectID, actor); err != nil {
		return nil, err
	}
	return s.repo.ListByProject(ctx, projectID)
}

// Settle computes the settlement summary. Billing figures are commercial data,
// so plain ops staff are denied here even though they may record payments.
func (s *Service) Settle(ctx context.Context, actor access.Actor, projectID uuid.UUID) (Settlement, error) {
	if !access.CanPerform(actor.Role, access.ActionViewCommercials) {
		return Settlement{}, fmt.Errorf("%w: role %s cannot view settlement figures", shared.ErrUnauthorized, actor.Role)
	}
	var (
		project *projects.Project
		total   float64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		project, err = s.projects.Get(gctx, projectID, actor)
		return err
	})
	g.Go(func() error {
		var err error
		total, err = s.repo.ConfirmedTotal(gctx, projectID)
		return err
	})
	if err := g.Wait(); err != nil {
		return Settlement{}, err
	}
	return NewSettlement(projectID, project.FinalPrice, total), nil
}

// Proof streams the stored proof document for a payment the caller can see.
func (s *Service) Proof(ctx context.Context, actor access.Actor, paymentID int64) (io.ReadCloser, error) {
	payment, err := s.repo.Get(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if _, err := s.projects.Get(ctx, payment.ProjectID, actor); err != nil {
		return nil, err
	}
	return s.proofs.Open(ctx, payment.ProofRef)
}

func (s *Service) publish(projectID uuid.UUID, action, actorName, remarks string) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(notify.Event{
		ProjectID: projectID,
		Action:    action,
		ActorName: actorName,
		Remarks:   remarks,
		At:        time.Now().UTC(),
	})
}
