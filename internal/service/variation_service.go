package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/sfg-nexus/be-approvals/internal/apperrors"
	"github.com/sfg-nexus/be-approvals/internal/repository"
)

// customerApprovalThreshold is the absolute variation value (pence) above
// which the customer track becomes mandatory.
const customerApprovalThreshold = 100_00

// VariationStore is the persistence surface the lifecycle controller needs.
type VariationStore interface {
	Create(ctx context.Context, v *repository.Variation) error
	GetByID(ctx context.Context, id string) (*repository.Variation, error)
	List(ctx context.Context, f repository.VariationFilter) ([]*repository.Variation, error)
	Transition(ctx context.Context, id string, mutate func(*repository.Variation) (propagate bool, err error)) (*repository.Variation, error)
}

// QuoteStore supplies the parent quotes variations amend.
type QuoteStore interface {
	Create(ctx context.Context, q *repository.Quote) error
	GetByID(ctx context.Context, id string) (*repository.Quote, error)
}

// CommunicationLog records outbound variation communications with their
// observed delivery status.
type CommunicationLog interface {
	Record(ctx context.Context, c *repository.CommunicationRecord) error
	ListByVariation(ctx context.Context, variationID string) ([]*repository.CommunicationRecord, error)
}

// VariationService drives the variation lifecycle: creation against a parent
// quote, dual-track approval, rejection and implementation, with exactly-once
// propagation of the approved value back onto the quote.
type VariationService struct {
	variations VariationStore
	quotes     QuoteStore
	comms      CommunicationLog
	audit      AuditLog
	notifier   Notifier
	log        zerolog.Logger
}

// NewVariationService creates a new VariationService.
func NewVariationService(
	variations VariationStore,
	quotes QuoteStore,
	comms CommunicationLog,
	audit AuditLog,
	notifier Notifier,
	log zerolog.Logger,
) *VariationService {
	return &VariationService{
		variations: variations,
		quotes:     quotes,
		comms:      comms,
		audit:      audit,
		notifier:   notifier,
		log:        log,
	}
}

// CreateVariationInput describes a new variation against an existing quote.
type CreateVariationInput struct {
	QuoteID        string  `json:"quote_id"`
	JobID          *string `json:"job_id,omitempty"`
	CustomerID     string  `json:"customer_id"`
	VariationType  string  `json:"variation_type"`
	Description    string  `json:"description"`
	Reason         *string `json:"reason,omitempty"`
	VariationValue int64   `json:"variation_value"`
	Notes          *string `json:"notes,omitempty"`
	CreatedBy      string  `json:"created_by"`
}

// TrackDecisionInput approves or rejects one track of a variation.
type TrackDecisionInput struct {
	VariationID string           `json:"variation_id"`
	Track       repository.Track `json:"track"`
	ActorID     string           `json:"actor_id"`
	Notes       *string          `json:"notes,omitempty"`
	Reason      *string          `json:"reason,omitempty"`
}

// ImplementInput marks a fully approved variation as carried out.
type ImplementInput struct {
	VariationID string `json:"variation_id"`
	ActorID     string `json:"actor_id"`
}

// Create validates the request, snapshots the parent quote's current value and
// opens the variation in PENDING_APPROVAL. The customer track is required only
// when the absolute delta exceeds the threshold; the internal track always is.
func (s *VariationService) Create(ctx context.Context, in CreateVariationInput) (*repository.Variation, error) {
	if in.QuoteID == "" {
		return nil, apperrors.InvalidInput("quote_id", "is required")
	}
	if in.CustomerID == "" {
		return nil, apperrors.InvalidInput("customer_id", "is required")
	}
	if in.VariationType == "" {
		return nil, apperrors.InvalidInput("variation_type", "is required")
	}
	if in.Description == "" {
		return nil, apperrors.InvalidInput("description", "is required")
	}
	if in.CreatedBy == "" {
		return nil, apperrors.InvalidInput("created_by", "is required")
	}

	quote, err := s.quotes.GetByID(ctx, in.QuoteID)
	if err != nil {
		return nil, err
	}

	requiresCustomer := abs64(in.VariationValue) > customerApprovalThreshold

	v := &repository.Variation{
		QuoteID:        in.QuoteID,
		JobID:          in.JobID,
		CustomerID:     in.CustomerID,
		VariationType:  in.VariationType,
		Description:    in.Description,
		Reason:         in.Reason,
		OriginalValue:  quote.Value,
		VariationValue: in.VariationValue,
		TotalNewValue:  quote.Value + in.VariationValue,

		ApprovalStatus:           repository.VariationPending,
		RequiresCustomerApproval: requiresCustomer,
		RequiresInternalApproval: true,

		InitialNotes: in.Notes,
	}

	if err := s.variations.Create(ctx, v); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("variation_id", v.ID).
		Str("variation_number", v.VariationNumber).
		Str("quote_id", v.QuoteID).
		Int64("variation_value", v.VariationValue).
		Bool("requires_customer_approval", v.RequiresCustomerApproval).
		Msg("Variation created")

	if v.RequiresCustomerApproval {
		s.notifyVariation(ctx, v, "VARIATION_CREATED",
			fmt.Sprintf("Variation %s requires your approval", v.VariationNumber),
			fmt.Sprintf("A variation of %s has been raised against quote %s and requires customer approval.",
				formatPence(v.VariationValue), v.QuoteID))
	}

	dispatchEvent(ctx, s.log, s.audit, s.notifier, Event{
		Type:        "variation_created",
		EntityType:  "variation",
		EntityID:    v.ID,
		Actor:       in.CreatedBy,
		StatusAfter: string(v.ApprovalStatus),
		Metadata: map[string]any{
			"variation_number": v.VariationNumber,
			"quote_id":         v.QuoteID,
			"variation_value":  v.VariationValue,
		},
	})

	return v, nil
}

// Approve records an approval on one track. Once both tracks are approved,
// or any track is approved while the customer track is waived, the variation
// flips to FULLY_APPROVED and the revised value is pushed onto the quote
// exactly once, inside the same transaction.
func (s *VariationService) Approve(ctx context.Context, in TrackDecisionInput) (*repository.Variation, error) {
	if in.VariationID == "" {
		return nil, apperrors.InvalidInput("variation_id", "is required")
	}
	if !in.Track.Valid() {
		return nil, apperrors.InvalidInput("track", "must be CUSTOMER or INTERNAL")
	}
	if in.ActorID == "" {
		return nil, apperrors.InvalidInput("actor_id", "is required")
	}

	var statusBefore repository.VariationStatus

	v, err := s.variations.Transition(ctx, in.VariationID, func(v *repository.Variation) (bool, error) {
		statusBefore = v.ApprovalStatus

		if v.ApprovalStatus == repository.VariationRejected {
			return false, apperrors.New(apperrors.CodeInvalidState,
				"variation has been rejected and can no longer be approved")
		}

		now := time.Now().UTC()

		switch in.Track {
		case repository.TrackCustomer:
			if v.CustomerApproved {
				return false, apperrors.New(apperrors.CodeInvalidState,
					"customer approval has already been recorded")
			}
			v.CustomerApproved = true
			v.CustomerApprovedAt = &now
			v.CustomerApprovedBy = &in.ActorID
			v.CustomerNotes = in.Notes
		case repository.TrackInternal:
			if v.InternalApproved {
				return false, apperrors.New(apperrors.CodeInvalidState,
					"internal approval has already been recorded")
			}
			v.InternalApproved = true
			v.InternalApprovedAt = &now
			v.InternalApprovedBy = &in.ActorID
			v.InternalNotes = in.Notes
		}

		// When the customer track is waived, a single approval on either
		// track completes the variation.
		bothApproved := v.CustomerApproved && v.InternalApproved
		if !bothApproved && v.RequiresCustomerApproval {
			return false, nil
		}

		v.ApprovalStatus = repository.VariationFullyApproved
		if v.RevisedQuoteGenerated {
			return false, nil
		}
		v.RevisedQuoteGenerated = true
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("variation_id", v.ID).
		Str("track", string(in.Track)).
		Str("actor", in.ActorID).
		Str("status", string(v.ApprovalStatus)).
		Msg("Variation track approved")

	if v.ApprovalStatus == repository.VariationFullyApproved && statusBefore != repository.VariationFullyApproved {
		s.notifyVariation(ctx, v, "VARIATION_APPROVED",
			fmt.Sprintf("Variation %s fully approved", v.VariationNumber),
			fmt.Sprintf("Variation %s is fully approved. The quote value has been revised to %s.",
				v.VariationNumber, formatPence(v.TotalNewValue)))
	}

	dispatchEvent(ctx, s.log, s.audit, s.notifier, Event{
		Type:         "variation_track_approved",
		EntityType:   "variation",
		EntityID:     v.ID,
		Actor:        in.ActorID,
		StatusBefore: string(statusBefore),
		StatusAfter:  string(v.ApprovalStatus),
		Metadata: map[string]any{
			"variation_number": v.VariationNumber,
			"track":            in.Track,
		},
	})

	return v, nil
}

// Reject rejects the variation from either track. Rejection is terminal and
// requires a reason; it is only possible while the variation is still pending.
func (s *VariationService) Reject(ctx context.Context, in TrackDecisionInput) (*repository.Variation, error) {
	if in.VariationID == "" {
		return nil, apperrors.InvalidInput("variation_id", "is required")
	}
	if !in.Track.Valid() {
		return nil, apperrors.InvalidInput("track", "must be CUSTOMER or INTERNAL")
	}
	if in.ActorID == "" {
		return nil, apperrors.InvalidInput("actor_id", "is required")
	}
	if in.Reason == nil || *in.Reason == "" {
		return nil, apperrors.InvalidInput("reason", "is required when rejecting")
	}

	var statusBefore repository.VariationStatus

	v, err := s.variations.Transition(ctx, in.VariationID, func(v *repository.Variation) (bool, error) {
		statusBefore = v.ApprovalStatus

		if v.ApprovalStatus != repository.VariationPending {
			return false, apperrors.Newf(apperrors.CodeInvalidState,
				"variation is %s and can no longer be rejected", v.ApprovalStatus)
		}

		now := time.Now().UTC()
		track := in.Track
		v.ApprovalStatus = repository.VariationRejected
		v.RejectedTrack = &track
		v.RejectedBy = &in.ActorID
		v.RejectedAt = &now
		v.RejectionReason = in.Reason
		return false, nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("variation_id", v.ID).
		Str("track", string(in.Track)).
		Str("actor", in.ActorID).
		Msg("Variation rejected")

	s.notifyVariation(ctx, v, "VARIATION_REJECTED",
		fmt.Sprintf("Variation %s rejected", v.VariationNumber),
		fmt.Sprintf("Variation %s was rejected on the %s track: %s",
			v.VariationNumber, in.Track, *in.Reason))

	dispatchEvent(ctx, s.log, s.audit, s.notifier, Event{
		Type:         "variation_rejected",
		EntityType:   "variation",
		EntityID:     v.ID,
		Actor:        in.ActorID,
		StatusBefore: string(statusBefore),
		StatusAfter:  string(v.ApprovalStatus),
		Metadata: map[string]any{
			"variation_number": v.VariationNumber,
			"track":            in.Track,
			"reason":           *in.Reason,
		},
	})

	return v, nil
}

// Implement marks a fully approved variation as carried out. If quote
// propagation has somehow not happened yet it is claimed and applied here, so
// the revision lands exactly once regardless of which path reaches it first.
func (s *VariationService) Implement(ctx context.Context, in ImplementInput) (*repository.Variation, error) {
	if in.VariationID == "" {
		return nil, apperrors.InvalidInput("variation_id", "is required")
	}
	if in.ActorID == "" {
		return nil, apperrors.InvalidInput("actor_id", "is required")
	}

	v, err := s.variations.Transition(ctx, in.VariationID, func(v *repository.Variation) (bool, error) {
		if v.ApprovalStatus == repository.VariationRejected {
			return false, apperrors.New(apperrors.CodeInvalidState,
				"a rejected variation cannot be implemented")
		}
		if v.ApprovalStatus != repository.VariationFullyApproved {
			return false, apperrors.New(apperrors.CodePreconditionFailed,
				"variation must be fully approved before implementation")
		}
		if v.Implemented {
			return false, apperrors.New(apperrors.CodeInvalidState,
				"variation has already been implemented")
		}

		now := time.Now().UTC()
		v.Implemented = true
		v.ImplementedAt = &now
		v.ImplementedBy = &in.ActorID

		if v.RevisedQuoteGenerated {
			return false, nil
		}
		v.RevisedQuoteGenerated = true
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("variation_id", v.ID).
		Str("actor", in.ActorID).
		Msg("Variation implemented")

	dispatchEvent(ctx, s.log, s.audit, s.notifier, Event{
		Type:        "variation_implemented",
		EntityType:  "variation",
		EntityID:    v.ID,
		Actor:       in.ActorID,
		StatusAfter: string(v.ApprovalStatus),
		Metadata: map[string]any{
			"variation_number": v.VariationNumber,
		},
	})

	return v, nil
}

// Get retrieves one variation.
func (s *VariationService) Get(ctx context.Context, id string) (*repository.Variation, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("id", "is required")
	}
	return s.variations.GetByID(ctx, id)
}

// List returns variations matching the filter.
func (s *VariationService) List(ctx context.Context, f repository.VariationFilter) ([]*repository.Variation, error) {
	return s.variations.List(ctx, f)
}

// Communications returns the communication history for a variation.
func (s *VariationService) Communications(ctx context.Context, variationID string) ([]*repository.CommunicationRecord, error) {
	if variationID == "" {
		return nil, apperrors.InvalidInput("variation_id", "is required")
	}
	return s.comms.ListByVariation(ctx, variationID)
}

// notifyVariation publishes a customer-facing communication and records it
// with the delivery outcome. A failed publish records FAILED; it never
// propagates to the caller.
func (s *VariationService) notifyVariation(ctx context.Context, v *repository.Variation, commType, subject, message string) {
	rec := &repository.CommunicationRecord{
		VariationID:       v.ID,
		CommunicationType: commType,
		Channel:           "EMAIL",
		Subject:           subject,
		Message:           message,
		Status:            repository.CommSent,
	}

	if s.notifier != nil {
		err := s.notifier.Publish(ctx, "variation_communication", map[string]any{
			"variation_id":       v.ID,
			"variation_number":   v.VariationNumber,
			"customer_id":        v.CustomerID,
			"communication_type": commType,
			"subject":            subject,
			"message":            message,
		})
		if err != nil {
			reason := err.Error()
			rec.Status = repository.CommFailed
			rec.FailureReason = &reason
			s.log.Warn().Err(err).
				Str("variation_id", v.ID).
				Str("communication_type", commType).
				Msg("Failed to send variation communication")
		}
	}

	if s.comms == nil {
		return
	}
	if err := s.comms.Record(ctx, rec); err != nil {
		s.log.Warn().Err(err).
			Str("variation_id", v.ID).
			Msg("Failed to record variation communication")
	}
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

func formatPence(v int64) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s£%d.%02d", sign, v/100, v%100)
}
