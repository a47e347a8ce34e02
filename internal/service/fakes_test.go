package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sfg-nexus/be-approvals/internal/apperrors"
	"github.com/sfg-nexus/be-approvals/internal/repository"
)

// In-memory stores standing in for the pgx repositories. They reproduce the
// repositories' contracts (NotFound errors, mutate-under-lock semantics,
// quote propagation) without a database.

type fakeApprovalStore struct {
	byID map[string]*repository.ApprovalRequest
	seq  int
}

func newFakeApprovalStore() *fakeApprovalStore {
	return &fakeApprovalStore{byID: map[string]*repository.ApprovalRequest{}}
}

func (s *fakeApprovalStore) Create(_ context.Context, a *repository.ApprovalRequest) error {
	s.seq++
	a.ID = fmt.Sprintf("apr-%d", s.seq)
	a.RequestedAt = time.Now().UTC()
	a.CreatedAt = a.RequestedAt
	a.UpdatedAt = a.RequestedAt
	cp := *a
	s.byID[a.ID] = &cp
	return nil
}

func (s *fakeApprovalStore) GetByID(_ context.Context, id string) (*repository.ApprovalRequest, error) {
	a, ok := s.byID[id]
	if !ok {
		return nil, apperrors.NotFound("approval request", id)
	}
	cp := *a
	return &cp, nil
}

func (s *fakeApprovalStore) FindOpen(_ context.Context, entityType, entityID, approvalType string) (*repository.ApprovalRequest, error) {
	for _, a := range s.byID {
		if a.EntityType == entityType && a.EntityID == entityID &&
			a.ApprovalType == approvalType && !a.Status.Terminal() {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *fakeApprovalStore) List(_ context.Context, f repository.ApprovalFilter) ([]*repository.ApprovalRequest, error) {
	var out []*repository.ApprovalRequest
	for _, a := range s.byID {
		if f.EntityID != nil && a.EntityID != *f.EntityID {
			continue
		}
		if f.Status != nil && a.Status != *f.Status {
			continue
		}
		cp := *a
		out = append(out, &cp)
	}
	return out, nil
}

func (s *fakeApprovalStore) Decide(_ context.Context, id string, mutate func(*repository.ApprovalRequest) error) (*repository.ApprovalRequest, error) {
	a, ok := s.byID[id]
	if !ok {
		return nil, apperrors.NotFound("approval request", id)
	}
	work := *a
	if err := mutate(&work); err != nil {
		return nil, err
	}
	work.UpdatedAt = time.Now().UTC()
	s.byID[id] = &work
	cp := work
	return &cp, nil
}

type fakeQuoteStore struct {
	byID map[string]*repository.Quote
	seq  int
}

func newFakeQuoteStore() *fakeQuoteStore {
	return &fakeQuoteStore{byID: map[string]*repository.Quote{}}
}

func (s *fakeQuoteStore) Create(_ context.Context, q *repository.Quote) error {
	s.seq++
	q.ID = fmt.Sprintf("quote-%d", s.seq)
	q.CreatedAt = time.Now().UTC()
	q.UpdatedAt = q.CreatedAt
	cp := *q
	s.byID[q.ID] = &cp
	return nil
}

func (s *fakeQuoteStore) GetByID(_ context.Context, id string) (*repository.Quote, error) {
	q, ok := s.byID[id]
	if !ok {
		return nil, apperrors.NotFound("quote", id)
	}
	cp := *q
	return &cp, nil
}

type fakeVariationStore struct {
	byID   map[string]*repository.Variation
	quotes *fakeQuoteStore
	seq    int

	// quote value revisions applied via propagation
	propagations int
}

func newFakeVariationStore(quotes *fakeQuoteStore) *fakeVariationStore {
	return &fakeVariationStore{byID: map[string]*repository.Variation{}, quotes: quotes}
}

func (s *fakeVariationStore) Create(_ context.Context, v *repository.Variation) error {
	q, ok := s.quotes.byID[v.QuoteID]
	if !ok {
		return apperrors.NotFound("quote", v.QuoteID)
	}
	q.VariationSeq++
	q.HasVariations = true
	q.VariationsValue += v.VariationValue

	s.seq++
	v.ID = fmt.Sprintf("var-%d", s.seq)
	v.VariationNumber = fmt.Sprintf("%s-VAR%03d", q.QuoteNumber, q.VariationSeq)
	v.CreatedAt = time.Now().UTC()
	v.UpdatedAt = v.CreatedAt
	cp := *v
	s.byID[v.ID] = &cp
	return nil
}

func (s *fakeVariationStore) GetByID(_ context.Context, id string) (*repository.Variation, error) {
	v, ok := s.byID[id]
	if !ok {
		return nil, apperrors.NotFound("variation", id)
	}
	cp := *v
	return &cp, nil
}

func (s *fakeVariationStore) List(_ context.Context, f repository.VariationFilter) ([]*repository.Variation, error) {
	var out []*repository.Variation
	for _, v := range s.byID {
		if f.QuoteID != nil && v.QuoteID != *f.QuoteID {
			continue
		}
		if f.Status != nil && v.ApprovalStatus != *f.Status {
			continue
		}
		cp := *v
		out = append(out, &cp)
	}
	return out, nil
}

func (s *fakeVariationStore) Transition(_ context.Context, id string, mutate func(*repository.Variation) (bool, error)) (*repository.Variation, error) {
	v, ok := s.byID[id]
	if !ok {
		return nil, apperrors.NotFound("variation", id)
	}
	work := *v
	propagate, err := mutate(&work)
	if err != nil {
		return nil, err
	}
	work.UpdatedAt = time.Now().UTC()
	s.byID[id] = &work

	if q, ok := s.quotes.byID[work.QuoteID]; ok {
		status := string(work.ApprovalStatus)
		q.VariationApprovalStatus = &status
		if propagate {
			q.Value = work.TotalNewValue
			rp := work.TotalNewValue
			q.RevisedPrice = &rp
			q.Revision++
			s.propagations++
		}
	}

	cp := work
	return &cp, nil
}

type fakeCommLog struct {
	records []*repository.CommunicationRecord
}

func (l *fakeCommLog) Record(_ context.Context, c *repository.CommunicationRecord) error {
	c.ID = fmt.Sprintf("comm-%d", len(l.records)+1)
	c.CreatedAt = time.Now().UTC()
	cp := *c
	l.records = append(l.records, &cp)
	return nil
}

func (l *fakeCommLog) ListByVariation(_ context.Context, variationID string) ([]*repository.CommunicationRecord, error) {
	var out []*repository.CommunicationRecord
	for _, c := range l.records {
		if c.VariationID == variationID {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

type fakeAuditLog struct {
	entries []*repository.AuditEntry
	failErr error
}

func (l *fakeAuditLog) Append(_ context.Context, entry *repository.AuditEntry) error {
	if l.failErr != nil {
		return l.failErr
	}
	entry.ID = fmt.Sprintf("audit-%d", len(l.entries)+1)
	entry.PerformedAt = time.Now().UTC()
	cp := *entry
	l.entries = append(l.entries, &cp)
	return nil
}

func (l *fakeAuditLog) ListByEntity(_ context.Context, entityType, entityID string) ([]*repository.AuditEntry, error) {
	var out []*repository.AuditEntry
	for _, e := range l.entries {
		if e.EntityType == entityType && e.EntityID == entityID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

type publishedEvent struct {
	eventType string
	payload   any
}

type fakeNotifier struct {
	published []publishedEvent
	failErr   error
}

func (n *fakeNotifier) Publish(_ context.Context, eventType string, payload any) error {
	if n.failErr != nil {
		return n.failErr
	}
	n.published = append(n.published, publishedEvent{eventType: eventType, payload: payload})
	return nil
}

var errPublishDown = errors.New("nats: connection closed")
