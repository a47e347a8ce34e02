package service

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sfg-nexus/be-approvals/internal/apperrors"
	"github.com/sfg-nexus/be-approvals/internal/repository"
)

type variationFixture struct {
	svc        *VariationService
	quotes     *fakeQuoteStore
	variations *fakeVariationStore
	comms      *fakeCommLog
	audit      *fakeAuditLog
	notifier   *fakeNotifier
	quote      *repository.Quote
}

func newVariationFixture(t *testing.T) *variationFixture {
	t.Helper()

	quotes := newFakeQuoteStore()
	variations := newFakeVariationStore(quotes)
	comms := &fakeCommLog{}
	audit := &fakeAuditLog{}
	notifier := &fakeNotifier{}
	svc := NewVariationService(variations, quotes, comms, audit, notifier, zerolog.Nop())

	q := &repository.Quote{QuoteNumber: "Q-2026-0042", CustomerID: "cust-1", Value: 250_000_00}
	require.NoError(t, quotes.Create(context.Background(), q))

	return &variationFixture{
		svc: svc, quotes: quotes, variations: variations,
		comms: comms, audit: audit, notifier: notifier, quote: q,
	}
}

func (f *variationFixture) create(t *testing.T, value int64) *repository.Variation {
	t.Helper()
	v, err := f.svc.Create(context.Background(), CreateVariationInput{
		QuoteID:        f.quote.ID,
		CustomerID:     "cust-1",
		VariationType:  "EXTRA_WORK",
		Description:    "Additional balustrade run",
		VariationValue: value,
		CreatedBy:      "user-pm",
	})
	require.NoError(t, err)
	return v
}

func TestCreateVariation(t *testing.T) {
	f := newVariationFixture(t)

	v := f.create(t, 5_000_00)

	assert.Equal(t, "Q-2026-0042-VAR001", v.VariationNumber)
	assert.Equal(t, int64(250_000_00), v.OriginalValue)
	assert.Equal(t, int64(255_000_00), v.TotalNewValue)
	assert.Equal(t, repository.VariationPending, v.ApprovalStatus)
	assert.True(t, v.RequiresCustomerApproval)
	assert.True(t, v.RequiresInternalApproval)
	assert.False(t, v.RevisedQuoteGenerated)

	// a customer-facing communication is recorded as SENT
	recs, err := f.svc.Communications(context.Background(), v.ID)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, repository.CommSent, recs[0].Status)

	second := f.create(t, 1_000_00)
	assert.Equal(t, "Q-2026-0042-VAR002", second.VariationNumber, "numbers advance per quote")
}

func TestCreateVariationThreshold(t *testing.T) {
	f := newVariationFixture(t)

	cases := []struct {
		name     string
		value    int64
		customer bool
	}{
		{"above threshold", 100_01, true},
		{"exactly threshold", 100_00, false},
		{"below threshold", 99_99, false},
		{"large negative delta", -5_000_00, true},
		{"small negative delta", -50_00, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := f.create(t, tc.value)
			assert.Equal(t, tc.customer, v.RequiresCustomerApproval)
			assert.True(t, v.RequiresInternalApproval, "internal approval is always required")
		})
	}
}

func TestCreateVariationUnknownQuote(t *testing.T) {
	f := newVariationFixture(t)

	_, err := f.svc.Create(context.Background(), CreateVariationInput{
		QuoteID:        "quote-missing",
		CustomerID:     "cust-1",
		VariationType:  "EXTRA_WORK",
		Description:    "x",
		VariationValue: 1_000_00,
		CreatedBy:      "user-pm",
	})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
}

func TestApproveVariationDualTrack(t *testing.T) {
	f := newVariationFixture(t)
	v := f.create(t, 10_000_00)

	first, err := f.svc.Approve(context.Background(), TrackDecisionInput{
		VariationID: v.ID, Track: repository.TrackInternal, ActorID: "user-ops",
	})
	require.NoError(t, err)
	assert.Equal(t, repository.VariationPending, first.ApprovalStatus, "one track is not enough")
	assert.True(t, first.InternalApproved)
	assert.False(t, first.RevisedQuoteGenerated)
	assert.Equal(t, 0, f.variations.propagations)

	both, err := f.svc.Approve(context.Background(), TrackDecisionInput{
		VariationID: v.ID, Track: repository.TrackCustomer, ActorID: "cust-contact",
	})
	require.NoError(t, err)
	assert.Equal(t, repository.VariationFullyApproved, both.ApprovalStatus)
	assert.True(t, both.RevisedQuoteGenerated)
	assert.Equal(t, 1, f.variations.propagations)

	q, err := f.quotes.GetByID(context.Background(), f.quote.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(260_000_00), q.Value, "quote value revised to total new value")
	require.NotNil(t, q.RevisedPrice)
	assert.Equal(t, int64(260_000_00), *q.RevisedPrice)
	assert.Equal(t, 1, q.Revision)
}

func TestApproveVariationWaivedCustomerTrackCompletesOnCustomerApproval(t *testing.T) {
	f := newVariationFixture(t)
	v := f.create(t, 50_00) // below threshold, customer track waived

	got, err := f.svc.Approve(context.Background(), TrackDecisionInput{
		VariationID: v.ID, Track: repository.TrackCustomer, ActorID: "cust-contact",
	})
	require.NoError(t, err)
	assert.Equal(t, repository.VariationFullyApproved, got.ApprovalStatus,
		"a single approval on either track completes a waived-customer variation")
	assert.True(t, got.RevisedQuoteGenerated)
	assert.Equal(t, 1, f.variations.propagations)
}

func TestApproveVariationInternalOnlyCompletesAlone(t *testing.T) {
	f := newVariationFixture(t)
	v := f.create(t, 50_00) // below threshold, customer track not required

	got, err := f.svc.Approve(context.Background(), TrackDecisionInput{
		VariationID: v.ID, Track: repository.TrackInternal, ActorID: "user-ops",
	})
	require.NoError(t, err)
	assert.Equal(t, repository.VariationFullyApproved, got.ApprovalStatus)
	assert.Equal(t, 1, f.variations.propagations)
}

func TestApproveVariationDuplicateTrack(t *testing.T) {
	f := newVariationFixture(t)
	v := f.create(t, 10_000_00)

	_, err := f.svc.Approve(context.Background(), TrackDecisionInput{
		VariationID: v.ID, Track: repository.TrackInternal, ActorID: "user-ops",
	})
	require.NoError(t, err)

	_, err = f.svc.Approve(context.Background(), TrackDecisionInput{
		VariationID: v.ID, Track: repository.TrackInternal, ActorID: "user-other",
	})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidState))
}

func TestApproveVariationAfterReject(t *testing.T) {
	f := newVariationFixture(t)
	v := f.create(t, 10_000_00)

	reason := "customer withdrew the change"
	_, err := f.svc.Reject(context.Background(), TrackDecisionInput{
		VariationID: v.ID, Track: repository.TrackCustomer, ActorID: "cust-contact", Reason: &reason,
	})
	require.NoError(t, err)

	_, err = f.svc.Approve(context.Background(), TrackDecisionInput{
		VariationID: v.ID, Track: repository.TrackInternal, ActorID: "user-ops",
	})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidState))
}

func TestRejectVariation(t *testing.T) {
	f := newVariationFixture(t)
	v := f.create(t, 10_000_00)

	reason := "scope not agreed"
	got, err := f.svc.Reject(context.Background(), TrackDecisionInput{
		VariationID: v.ID, Track: repository.TrackInternal, ActorID: "user-ops", Reason: &reason,
	})
	require.NoError(t, err)

	assert.Equal(t, repository.VariationRejected, got.ApprovalStatus)
	require.NotNil(t, got.RejectedTrack)
	assert.Equal(t, repository.TrackInternal, *got.RejectedTrack)
	require.NotNil(t, got.RejectedBy)
	assert.Equal(t, "user-ops", *got.RejectedBy)
	assert.Equal(t, 0, f.variations.propagations, "rejection never touches the quote value")
}

func TestRejectVariationRequiresReason(t *testing.T) {
	f := newVariationFixture(t)
	v := f.create(t, 10_000_00)

	_, err := f.svc.Reject(context.Background(), TrackDecisionInput{
		VariationID: v.ID, Track: repository.TrackInternal, ActorID: "user-ops",
	})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidation))

	empty := ""
	_, err = f.svc.Reject(context.Background(), TrackDecisionInput{
		VariationID: v.ID, Track: repository.TrackInternal, ActorID: "user-ops", Reason: &empty,
	})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidation))
}

func TestRejectVariationOnlyWhilePending(t *testing.T) {
	f := newVariationFixture(t)
	v := f.create(t, 50_00)

	_, err := f.svc.Approve(context.Background(), TrackDecisionInput{
		VariationID: v.ID, Track: repository.TrackInternal, ActorID: "user-ops",
	})
	require.NoError(t, err)

	reason := "too late"
	_, err = f.svc.Reject(context.Background(), TrackDecisionInput{
		VariationID: v.ID, Track: repository.TrackInternal, ActorID: "user-ops", Reason: &reason,
	})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidState))
}

func TestImplementVariation(t *testing.T) {
	f := newVariationFixture(t)
	v := f.create(t, 50_00)

	t.Run("requires full approval", func(t *testing.T) {
		_, err := f.svc.Implement(context.Background(), ImplementInput{
			VariationID: v.ID, ActorID: "user-fitter",
		})
		assert.True(t, apperrors.IsCode(err, apperrors.CodePreconditionFailed))
	})

	_, err := f.svc.Approve(context.Background(), TrackDecisionInput{
		VariationID: v.ID, Track: repository.TrackInternal, ActorID: "user-ops",
	})
	require.NoError(t, err)

	t.Run("marks implemented without re-propagating", func(t *testing.T) {
		got, err := f.svc.Implement(context.Background(), ImplementInput{
			VariationID: v.ID, ActorID: "user-fitter",
		})
		require.NoError(t, err)
		assert.True(t, got.Implemented)
		require.NotNil(t, got.ImplementedBy)
		assert.Equal(t, "user-fitter", *got.ImplementedBy)
		assert.Equal(t, 1, f.variations.propagations, "approval already claimed the revision")
	})

	t.Run("second implement is refused", func(t *testing.T) {
		_, err := f.svc.Implement(context.Background(), ImplementInput{
			VariationID: v.ID, ActorID: "user-fitter",
		})
		assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidState))
	})
}

func TestImplementRejectedVariation(t *testing.T) {
	f := newVariationFixture(t)
	v := f.create(t, 10_000_00)

	reason := "not proceeding"
	_, err := f.svc.Reject(context.Background(), TrackDecisionInput{
		VariationID: v.ID, Track: repository.TrackCustomer, ActorID: "cust-contact", Reason: &reason,
	})
	require.NoError(t, err)

	_, err = f.svc.Implement(context.Background(), ImplementInput{
		VariationID: v.ID, ActorID: "user-fitter",
	})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidState))
}

func TestVariationCommunicationRecordsFailure(t *testing.T) {
	f := newVariationFixture(t)
	f.notifier.failErr = errPublishDown

	v, err := f.svc.Create(context.Background(), CreateVariationInput{
		QuoteID:        f.quote.ID,
		CustomerID:     "cust-1",
		VariationType:  "EXTRA_WORK",
		Description:    "Additional works",
		VariationValue: 10_000_00,
		CreatedBy:      "user-pm",
	})
	require.NoError(t, err, "publish failure must not fail creation")

	recs, err := f.svc.Communications(context.Background(), v.ID)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, repository.CommFailed, recs[0].Status)
	require.NotNil(t, recs[0].FailureReason)
	assert.Contains(t, *recs[0].FailureReason, "connection closed")
}

func TestFormatPence(t *testing.T) {
	assert.Equal(t, "£2500.00", formatPence(250_000))
	assert.Equal(t, "£0.05", formatPence(5))
	assert.Equal(t, "-£12.34", formatPence(-1234))
}
