package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/sfg-nexus/be-approvals/internal/apperrors"
	"github.com/sfg-nexus/be-approvals/internal/repository"
)

// Decision is an approver's verdict on a request.
type Decision string

const (
	DecisionApprove Decision = "APPROVE"
	DecisionReject  Decision = "REJECT"
)

// ApprovalStore is the persistence surface the workflow engine needs.
type ApprovalStore interface {
	Create(ctx context.Context, a *repository.ApprovalRequest) error
	GetByID(ctx context.Context, id string) (*repository.ApprovalRequest, error)
	FindOpen(ctx context.Context, entityType, entityID, approvalType string) (*repository.ApprovalRequest, error)
	List(ctx context.Context, f repository.ApprovalFilter) ([]*repository.ApprovalRequest, error)
	Decide(ctx context.Context, id string, mutate func(*repository.ApprovalRequest) error) (*repository.ApprovalRequest, error)
}

// ApprovalService is the generic approval workflow engine. It tracks approval
// requests against arbitrary business entities and enforces who may approve.
type ApprovalService struct {
	store    ApprovalStore
	audit    AuditLog
	notifier Notifier
	log      zerolog.Logger
}

// NewApprovalService creates a new ApprovalService.
func NewApprovalService(store ApprovalStore, audit AuditLog, notifier Notifier, log zerolog.Logger) *ApprovalService {
	return &ApprovalService{
		store:    store,
		audit:    audit,
		notifier: notifier,
		log:      log,
	}
}

// RequestApprovalInput describes a new approval request. CanSelfApprove
// defaults to true when omitted; only an explicit false forbids the requester
// approving their own non-mandatory request.
type RequestApprovalInput struct {
	EntityType   string              `json:"entity_type"`
	EntityID     string              `json:"entity_id"`
	ApprovalType string              `json:"approval_type"`
	RequestedBy  string              `json:"requested_by"`
	Priority     repository.Priority `json:"priority"`
	Notes        *string             `json:"notes,omitempty"`

	RequiresSecondApproval bool  `json:"requires_second_approval"`
	CanSelfApprove         *bool `json:"can_self_approve,omitempty"`
	MandatoryApproval      bool  `json:"mandatory_approval"`
}

// DecideInput describes an approve/reject verdict on an open request.
type DecideInput struct {
	RequestID string   `json:"request_id"`
	ActorID   string   `json:"actor_id"`
	Decision  Decision `json:"decision"`
	Notes     *string  `json:"notes,omitempty"`
}

// initialStage maps an approval type to its starting review stage.
func initialStage(approvalType string) string {
	stages := map[string]string{
		"QUOTE_APPROVAL":       "QUOTE_REVIEW",
		"COSTS_AGREED":         "COST_REVIEW",
		"DRAWING_APPROVAL":     "DRAWING_REVIEW",
		"EXTRA_ITEMS_APPROVAL": "EXTRA_ITEMS_REVIEW",
		"VARIATIONS_APPROVAL":  "VARIATION_REVIEW",
	}
	if s, ok := stages[approvalType]; ok {
		return s
	}
	return "INITIAL_REVIEW"
}

// Request creates a PENDING approval request for an entity. An entity can hold
// at most one open request per approval type.
func (s *ApprovalService) Request(ctx context.Context, in RequestApprovalInput) (*repository.ApprovalRequest, error) {
	if in.EntityType == "" {
		return nil, apperrors.InvalidInput("entity_type", "is required")
	}
	if in.EntityID == "" {
		return nil, apperrors.InvalidInput("entity_id", "is required")
	}
	if in.ApprovalType == "" {
		return nil, apperrors.InvalidInput("approval_type", "is required")
	}
	if in.RequestedBy == "" {
		return nil, apperrors.InvalidInput("requested_by", "is required")
	}
	if in.Priority == "" {
		in.Priority = repository.PriorityMedium
	}
	if !in.Priority.Valid() {
		return nil, apperrors.InvalidInput("priority", "must be LOW, MEDIUM or HIGH")
	}

	open, err := s.store.FindOpen(ctx, in.EntityType, in.EntityID, in.ApprovalType)
	if err != nil {
		return nil, err
	}
	if open != nil {
		return nil, apperrors.Newf(apperrors.CodeInvalidState,
			"an open %s request already exists for %s %s", in.ApprovalType, in.EntityType, in.EntityID)
	}

	a := &repository.ApprovalRequest{
		ApprovalType:           in.ApprovalType,
		EntityType:             in.EntityType,
		EntityID:               in.EntityID,
		Stage:                  initialStage(in.ApprovalType),
		Status:                 repository.ApprovalPending,
		Priority:               in.Priority,
		RequiresSecondApproval: in.RequiresSecondApproval,
		CanSelfApprove:         in.CanSelfApprove == nil || *in.CanSelfApprove,
		MandatoryApproval:      in.MandatoryApproval,
		RequestedBy:            in.RequestedBy,
		RequestNotes:           in.Notes,
	}

	if err := s.store.Create(ctx, a); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("approval_id", a.ID).
		Str("approval_type", a.ApprovalType).
		Str("entity_type", a.EntityType).
		Str("entity_id", a.EntityID).
		Str("requested_by", a.RequestedBy).
		Msg("Approval requested")

	dispatchEvent(ctx, s.log, s.audit, s.notifier, Event{
		Type:        "approval_requested",
		EntityType:  a.EntityType,
		EntityID:    a.EntityID,
		Actor:       a.RequestedBy,
		StatusAfter: string(a.Status),
		Metadata: map[string]any{
			"approval_id":   a.ID,
			"approval_type": a.ApprovalType,
			"priority":      a.Priority,
		},
	})

	return a, nil
}

// Decide applies an approve/reject verdict atomically. Approval of a request
// flagged requires_second_approval parks it in REQUIRES_SECOND_APPROVAL until
// a further approval lands; rejection is terminal from any live state.
func (s *ApprovalService) Decide(ctx context.Context, in DecideInput) (*repository.ApprovalRequest, error) {
	if in.RequestID == "" {
		return nil, apperrors.InvalidInput("request_id", "is required")
	}
	if in.ActorID == "" {
		return nil, apperrors.InvalidInput("actor_id", "is required")
	}
	if in.Decision != DecisionApprove && in.Decision != DecisionReject {
		return nil, apperrors.InvalidInput("decision", "must be APPROVE or REJECT")
	}

	var statusBefore repository.ApprovalStatus

	a, err := s.store.Decide(ctx, in.RequestID, func(a *repository.ApprovalRequest) error {
		statusBefore = a.Status

		if a.Status.Terminal() {
			return apperrors.Newf(apperrors.CodeInvalidState,
				"approval request is already %s", a.Status)
		}
		if a.MandatoryApproval && in.ActorID == a.RequestedBy {
			return apperrors.New(apperrors.CodeSelfApprovalForbidden,
				"the requester may not decide their own mandatory approval")
		}

		now := time.Now().UTC()

		if in.Decision == DecisionReject {
			a.Status = repository.ApprovalRejected
			a.RejectedBy = &in.ActorID
			a.RejectedAt = &now
			a.RejectionReason = in.Notes
			return nil
		}

		if !a.CanSelfApprove && in.ActorID == a.RequestedBy {
			return apperrors.New(apperrors.CodeSelfApprovalForbidden,
				"the requester may not approve their own request")
		}

		if a.RequiresSecondApproval && a.FirstApprovedBy == nil {
			a.Status = repository.ApprovalNeedsSecond
			a.FirstApprovedBy = &in.ActorID
			a.FirstApprovedAt = &now
			a.FirstApprovalNotes = in.Notes
			return nil
		}

		a.Status = repository.ApprovalApproved
		a.ApprovedBy = &in.ActorID
		a.ApprovedAt = &now
		a.ApprovalNotes = in.Notes
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("approval_id", a.ID).
		Str("decision", string(in.Decision)).
		Str("actor", in.ActorID).
		Str("status", string(a.Status)).
		Msg("Approval decision applied")

	dispatchEvent(ctx, s.log, s.audit, s.notifier, Event{
		Type:         eventTypeFor(in.Decision, a.Status),
		EntityType:   a.EntityType,
		EntityID:     a.EntityID,
		Actor:        in.ActorID,
		StatusBefore: string(statusBefore),
		StatusAfter:  string(a.Status),
		Metadata: map[string]any{
			"approval_id":   a.ID,
			"approval_type": a.ApprovalType,
		},
	})

	return a, nil
}

// Get retrieves one approval request.
func (s *ApprovalService) Get(ctx context.Context, id string) (*repository.ApprovalRequest, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("id", "is required")
	}
	return s.store.GetByID(ctx, id)
}

// List returns approval requests matching the filter.
func (s *ApprovalService) List(ctx context.Context, f repository.ApprovalFilter) ([]*repository.ApprovalRequest, error) {
	return s.store.List(ctx, f)
}

// History returns the audit trail for an entity.
func (s *ApprovalService) History(ctx context.Context, entityType, entityID string) ([]*repository.AuditEntry, error) {
	if entityType == "" || entityID == "" {
		return nil, apperrors.InvalidInput("entity", "entity_type and entity_id are required")
	}
	return s.audit.ListByEntity(ctx, entityType, entityID)
}

func eventTypeFor(d Decision, status repository.ApprovalStatus) string {
	if d == DecisionReject {
		return "approval_rejected"
	}
	if status == repository.ApprovalNeedsSecond {
		return "approval_first_approved"
	}
	return "approval_approved"
}
