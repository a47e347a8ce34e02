package repository

import (
	"time"

	"github.com/sfg-nexus/be-approvals/internal/credit"
)

// ── Approval workflow ─────────────────────────────────────────────────────────

// ApprovalStatus is the lifecycle state of an approval request.
type ApprovalStatus string

const (
	ApprovalPending     ApprovalStatus = "PENDING"
	ApprovalApproved    ApprovalStatus = "APPROVED"
	ApprovalRejected    ApprovalStatus = "REJECTED"
	ApprovalNeedsSecond ApprovalStatus = "REQUIRES_SECOND_APPROVAL"
)

// Terminal reports whether no further transition is possible.
func (s ApprovalStatus) Terminal() bool {
	return s == ApprovalApproved || s == ApprovalRejected
}

// Priority of an approval request.
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
)

// Valid reports whether the priority is a known value.
func (p Priority) Valid() bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}

// ApprovalRequest is one trackable authorization unit tied to a single entity
// and approval type. Requests are never deleted; terminal state plus the audit
// log form the trail.
type ApprovalRequest struct {
	ID           string         `json:"id"`
	ApprovalType string         `json:"approval_type"`
	EntityType   string         `json:"entity_type"`
	EntityID     string         `json:"entity_id"`
	Stage        string         `json:"stage"`
	Status       ApprovalStatus `json:"status"`
	Priority     Priority       `json:"priority"`

	RequiresSecondApproval bool `json:"requires_second_approval"`
	CanSelfApprove         bool `json:"can_self_approve"`
	MandatoryApproval      bool `json:"mandatory_approval"`

	RequestedBy  string    `json:"requested_by"`
	RequestedAt  time.Time `json:"requested_at"`
	RequestNotes *string   `json:"request_notes,omitempty"`

	// First approval of a two-phase request. Populated only while the request
	// sits in REQUIRES_SECOND_APPROVAL (and preserved after completion).
	FirstApprovedBy    *string    `json:"first_approved_by,omitempty"`
	FirstApprovedAt    *time.Time `json:"first_approved_at,omitempty"`
	FirstApprovalNotes *string    `json:"first_approval_notes,omitempty"`

	ApprovedBy    *string    `json:"approved_by,omitempty"`
	ApprovedAt    *time.Time `json:"approved_at,omitempty"`
	ApprovalNotes *string    `json:"approval_notes,omitempty"`

	RejectedBy      *string    `json:"rejected_by,omitempty"`
	RejectedAt      *time.Time `json:"rejected_at,omitempty"`
	RejectionReason *string    `json:"rejection_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ApprovalFilter narrows approval listings. Nil fields match everything.
type ApprovalFilter struct {
	EntityType   *string
	EntityID     *string
	ApprovalType *string
	Status       *ApprovalStatus
}

// ── Variations ────────────────────────────────────────────────────────────────

// VariationStatus is the dual-track approval state of a variation.
type VariationStatus string

const (
	VariationPending       VariationStatus = "PENDING_APPROVAL"
	VariationFullyApproved VariationStatus = "FULLY_APPROVED"
	VariationRejected      VariationStatus = "REJECTED"
)

// Track identifies one of the two independent approval tracks.
type Track string

const (
	TrackCustomer Track = "CUSTOMER"
	TrackInternal Track = "INTERNAL"
)

// Valid reports whether the track is one of the two known tracks.
func (t Track) Valid() bool {
	return t == TrackCustomer || t == TrackInternal
}

// Variation is a proposed change to the value/scope of an existing quote.
// Monetary amounts are pence; VariationValue is a signed delta.
type Variation struct {
	ID              string  `json:"id"`
	VariationNumber string  `json:"variation_number"`
	QuoteID         string  `json:"quote_id"`
	JobID           *string `json:"job_id,omitempty"`
	CustomerID      string  `json:"customer_id"`
	VariationType   string  `json:"variation_type"`
	Description     string  `json:"description"`
	Reason          *string `json:"reason,omitempty"`

	OriginalValue  int64 `json:"original_value"`
	VariationValue int64 `json:"variation_value"`
	TotalNewValue  int64 `json:"total_new_value"`

	ApprovalStatus           VariationStatus `json:"approval_status"`
	RequiresCustomerApproval bool            `json:"requires_customer_approval"`
	RequiresInternalApproval bool            `json:"requires_internal_approval"`

	CustomerApproved   bool       `json:"customer_approved"`
	CustomerApprovedAt *time.Time `json:"customer_approved_at,omitempty"`
	CustomerApprovedBy *string    `json:"customer_approved_by,omitempty"`
	CustomerNotes      *string    `json:"customer_notes,omitempty"`

	InternalApproved   bool       `json:"internal_approved"`
	InternalApprovedAt *time.Time `json:"internal_approved_at,omitempty"`
	InternalApprovedBy *string    `json:"internal_approved_by,omitempty"`
	InternalNotes      *string    `json:"internal_notes,omitempty"`

	RejectedTrack   *Track     `json:"rejected_track,omitempty"`
	RejectedBy      *string    `json:"rejected_by,omitempty"`
	RejectedAt      *time.Time `json:"rejected_at,omitempty"`
	RejectionReason *string    `json:"rejection_reason,omitempty"`

	Implemented   bool       `json:"implemented"`
	ImplementedAt *time.Time `json:"implemented_at,omitempty"`
	ImplementedBy *string    `json:"implemented_by,omitempty"`

	RevisedQuoteGenerated bool `json:"revised_quote_generated"`

	InitialNotes *string   `json:"initial_notes,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// VariationFilter narrows variation listings.
type VariationFilter struct {
	QuoteID    *string
	CustomerID *string
	Status     *VariationStatus
}

// ── Quotes ────────────────────────────────────────────────────────────────────

// Quote is the parent priced agreement a variation amends. VariationSeq is the
// per-quote counter from which variation numbers are allocated; it is only
// ever advanced by the database inside the variation-create transaction.
type Quote struct {
	ID                      string    `json:"id"`
	QuoteNumber             string    `json:"quote_number"`
	CustomerID              string    `json:"customer_id"`
	ProjectName             *string   `json:"project_name,omitempty"`
	Value                   int64     `json:"value"`
	RevisedPrice            *int64    `json:"revised_price,omitempty"`
	Revision                int       `json:"revision"`
	HasVariations           bool      `json:"has_variations"`
	VariationsValue         int64     `json:"variations_value"`
	VariationSeq            int       `json:"variation_seq"`
	VariationApprovalStatus *string   `json:"variation_approval_status,omitempty"`
	CreatedAt               time.Time `json:"created_at"`
	UpdatedAt               time.Time `json:"updated_at"`
}

// ── Credit checks ─────────────────────────────────────────────────────────────

// CreditCheck is one persisted classification run: the immutable snapshot it
// was computed from plus the derived tier assignment.
type CreditCheck struct {
	ID         string                `json:"id"`
	CustomerID string                `json:"customer_id"`
	Provider   string                `json:"provider"`
	Snapshot   credit.Snapshot       `json:"snapshot"`
	Assignment credit.TierAssignment `json:"assignment"`
	CheckedAt  time.Time             `json:"checked_at"`
}

// ── Audit log ─────────────────────────────────────────────────────────────────

// AuditEntry is one immutable record in the approval audit log.
type AuditEntry struct {
	ID           string         `json:"id"`
	EntityType   string         `json:"entity_type"`
	EntityID     string         `json:"entity_id"`
	Action       string         `json:"action"`
	PerformedBy  string         `json:"performed_by"`
	PerformedAt  time.Time      `json:"performed_at"`
	StatusBefore *string        `json:"status_before,omitempty"`
	StatusAfter  *string        `json:"status_after,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// ── Communications ────────────────────────────────────────────────────────────

// CommStatus is the delivery outcome recorded against a communication.
type CommStatus string

const (
	CommSent   CommStatus = "SENT"
	CommFailed CommStatus = "FAILED"
)

// CommunicationRecord tracks one outbound variation communication and whether
// its dispatch actually succeeded. Dispatch failures land here instead of
// failing the business operation that triggered them.
type CommunicationRecord struct {
	ID                string     `json:"id"`
	VariationID       string     `json:"variation_id"`
	CommunicationType string     `json:"communication_type"`
	Channel           string     `json:"channel"`
	Subject           string     `json:"subject"`
	Message           string     `json:"message"`
	Status            CommStatus `json:"status"`
	FailureReason     *string    `json:"failure_reason,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}
