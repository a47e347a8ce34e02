package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/sfg-nexus/be-approvals/internal/apperrors"
	"github.com/sfg-nexus/be-approvals/internal/repository"
)

// QuoteService manages the parent quotes variations are raised against.
type QuoteService struct {
	quotes QuoteStore
	log    zerolog.Logger
}

// NewQuoteService creates a new QuoteService.
func NewQuoteService(quotes QuoteStore, log zerolog.Logger) *QuoteService {
	return &QuoteService{quotes: quotes, log: log}
}

// CreateQuoteInput describes a new quote.
type CreateQuoteInput struct {
	QuoteNumber string  `json:"quote_number"`
	CustomerID  string  `json:"customer_id"`
	ProjectName *string `json:"project_name,omitempty"`
	Value       int64   `json:"value"`
}

// Create registers a new quote with a zeroed variation sequence.
func (s *QuoteService) Create(ctx context.Context, in CreateQuoteInput) (*repository.Quote, error) {
	if in.QuoteNumber == "" {
		return nil, apperrors.InvalidInput("quote_number", "is required")
	}
	if in.CustomerID == "" {
		return nil, apperrors.InvalidInput("customer_id", "is required")
	}
	if in.Value < 0 {
		return nil, apperrors.InvalidInput("value", "must not be negative")
	}

	q := &repository.Quote{
		QuoteNumber: in.QuoteNumber,
		CustomerID:  in.CustomerID,
		ProjectName: in.ProjectName,
		Value:       in.Value,
	}
	if err := s.quotes.Create(ctx, q); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("quote_id", q.ID).
		Str("quote_number", q.QuoteNumber).
		Int64("value", q.Value).
		Msg("Quote created")

	return q, nil
}

// Get retrieves one quote.
func (s *QuoteService) Get(ctx context.Context, id string) (*repository.Quote, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("id", "is required")
	}
	return s.quotes.GetByID(ctx, id)
}
