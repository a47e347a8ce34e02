package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sfg-nexus/be-approvals/internal/apperrors"
	"github.com/sfg-nexus/be-approvals/internal/credit"
	"github.com/sfg-nexus/be-approvals/internal/repository"
)

type fakeCreditCheckStore struct {
	byCustomer map[string][]*repository.CreditCheck
	seq        int
}

func newFakeCreditCheckStore() *fakeCreditCheckStore {
	return &fakeCreditCheckStore{byCustomer: map[string][]*repository.CreditCheck{}}
}

func (s *fakeCreditCheckStore) Insert(_ context.Context, c *repository.CreditCheck) error {
	s.seq++
	c.ID = fmt.Sprintf("check-%d", s.seq)
	c.CheckedAt = time.Now().UTC()
	cp := *c
	s.byCustomer[c.CustomerID] = append(s.byCustomer[c.CustomerID], &cp)
	return nil
}

func (s *fakeCreditCheckStore) Latest(_ context.Context, customerID string) (*repository.CreditCheck, error) {
	checks := s.byCustomer[customerID]
	if len(checks) == 0 {
		return nil, nil
	}
	cp := *checks[len(checks)-1]
	return &cp, nil
}

func newCreditFixture() (*CreditService, *fakeCreditCheckStore, *fakeAuditLog) {
	store := newFakeCreditCheckStore()
	audit := &fakeAuditLog{}
	svc := NewCreditService(store, audit, &fakeNotifier{}, zerolog.Nop())
	return svc, store, audit
}

func healthySnapshot() credit.Snapshot {
	return credit.Snapshot{
		CreditLimit:        50_000_00,
		CurrentDebt:        10_000_00,
		RiskLevel:          credit.RiskLow,
		PaymentTerms:       credit.TermsNet,
		OnTimePaymentRatio: 0.92,
		AvgMonthlyBilled6M: 20_000_00,
		AnnualBilled:       240_000_00,
		OrdersPerYear:      18,
	}
}

func TestCreditCheck(t *testing.T) {
	svc, store, audit := newCreditFixture()

	check, err := svc.Check(context.Background(), CheckInput{
		CustomerID: "cust-1",
		Snapshot:   healthySnapshot(),
		CheckedBy:  "user-finance",
	})
	require.NoError(t, err)

	assert.Equal(t, "EXPERIAN", check.Provider, "provider defaults to EXPERIAN")
	assert.Equal(t, credit.TierSapphire, check.Assignment.Tier)
	assert.Len(t, store.byCustomer["cust-1"], 1)
	require.Len(t, audit.entries, 1)
	assert.Equal(t, "credit_check_completed", audit.entries[0].Action)
}

func TestCreditCheckValidation(t *testing.T) {
	svc, _, _ := newCreditFixture()

	cases := []struct {
		name   string
		mutate func(*CheckInput)
	}{
		{"missing customer", func(in *CheckInput) { in.CustomerID = "" }},
		{"bad risk level", func(in *CheckInput) { in.Snapshot.RiskLevel = "SEVERE" }},
		{"bad payment terms", func(in *CheckInput) { in.Snapshot.PaymentTerms = "NET90" }},
		{"ratio above one", func(in *CheckInput) { in.Snapshot.OnTimePaymentRatio = 1.2 }},
		{"ratio below zero", func(in *CheckInput) { in.Snapshot.OnTimePaymentRatio = -0.1 }},
		{"negative debt", func(in *CheckInput) { in.Snapshot.CurrentDebt = -1 }},
		{"negative limit", func(in *CheckInput) { in.Snapshot.CreditLimit = -1 }},
		{"negative aged receivables", func(in *CheckInput) { in.Snapshot.AgedReceivables60 = -1 }},
		{"negative orders", func(in *CheckInput) { in.Snapshot.OrdersPerYear = -1 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := CheckInput{CustomerID: "cust-1", Snapshot: healthySnapshot()}
			tc.mutate(&in)
			_, err := svc.Check(context.Background(), in)
			assert.True(t, apperrors.IsCode(err, apperrors.CodeValidation))
		})
	}
}

func TestCreditLatest(t *testing.T) {
	svc, store, _ := newCreditFixture()

	t.Run("no checks yet", func(t *testing.T) {
		_, err := svc.Latest(context.Background(), "cust-unknown")
		assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
	})

	_, err := svc.Check(context.Background(), CheckInput{
		CustomerID: "cust-1",
		Snapshot:   healthySnapshot(),
	})
	require.NoError(t, err)

	t.Run("fresh check", func(t *testing.T) {
		got, err := svc.Latest(context.Background(), "cust-1")
		require.NoError(t, err)
		assert.False(t, got.Stale)
		assert.Equal(t, credit.TierSapphire, got.Check.Assignment.Tier)
	})

	t.Run("aged-out check is flagged stale", func(t *testing.T) {
		checks := store.byCustomer["cust-1"]
		checks[len(checks)-1].CheckedAt = time.Now().UTC().Add(-91 * 24 * time.Hour)

		got, err := svc.Latest(context.Background(), "cust-1")
		require.NoError(t, err)
		assert.True(t, got.Stale)
	})
}

func TestCreditLatestReturnsMostRecent(t *testing.T) {
	svc, _, _ := newCreditFixture()

	_, err := svc.Check(context.Background(), CheckInput{CustomerID: "cust-1", Snapshot: healthySnapshot()})
	require.NoError(t, err)

	bad := healthySnapshot()
	bad.RiskLevel = credit.RiskInsolvency
	_, err = svc.Check(context.Background(), CheckInput{CustomerID: "cust-1", Snapshot: bad})
	require.NoError(t, err)

	got, err := svc.Latest(context.Background(), "cust-1")
	require.NoError(t, err)
	assert.Equal(t, credit.TierCrimson, got.Check.Assignment.Tier, "later check supersedes")
}
