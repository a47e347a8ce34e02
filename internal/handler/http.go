package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/sfg-nexus/be-approvals/internal/repository"
	"github.com/sfg-nexus/be-approvals/internal/service"
)

// Handler wires the services to HTTP routes.
type Handler struct {
	approvals  *service.ApprovalService
	variations *service.VariationService
	quotes     *service.QuoteService
	credit     *service.CreditService
	log        zerolog.Logger
}

// New creates a Handler.
func New(
	approvals *service.ApprovalService,
	variations *service.VariationService,
	quotes *service.QuoteService,
	credit *service.CreditService,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		approvals:  approvals,
		variations: variations,
		quotes:     quotes,
		credit:     credit,
		log:        log,
	}
}

// Router builds the HTTP route tree.
func (h *Handler) Router(allowedOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))

	r.Get("/health", h.health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/quotes", func(r chi.Router) {
			r.Post("/", h.createQuote)
			r.Get("/{id}", h.getQuote)
			r.Get("/{id}/variations", h.listQuoteVariations)
		})

		r.Route("/variations", func(r chi.Router) {
			r.Post("/", h.createVariation)
			r.Get("/", h.listVariations)
			r.Get("/{id}", h.getVariation)
			r.Post("/{id}/approve", h.approveVariation)
			r.Post("/{id}/reject", h.rejectVariation)
			r.Post("/{id}/implement", h.implementVariation)
			r.Get("/{id}/communications", h.listCommunications)
		})

		r.Route("/approvals", func(r chi.Router) {
			r.Post("/", h.requestApproval)
			r.Get("/", h.listApprovals)
			r.Get("/{id}", h.getApproval)
			r.Post("/{id}/decide", h.decideApproval)
			r.Get("/history", h.approvalHistory)
		})

		r.Route("/credit-checks", func(r chi.Router) {
			r.Post("/", h.runCreditCheck)
			r.Get("/{customerID}/latest", h.latestCreditCheck)
		})
	})

	return r
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// ── Quotes ────────────────────────────────────────────────────────────────────

func (h *Handler) createQuote(w http.ResponseWriter, r *http.Request) {
	var in service.CreateQuoteInput
	if !decodeBody(w, r, &in) {
		return
	}
	q, err := h.quotes.Create(r.Context(), in)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, q)
}

func (h *Handler) getQuote(w http.ResponseWriter, r *http.Request) {
	q, err := h.quotes.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (h *Handler) listQuoteVariations(w http.ResponseWriter, r *http.Request) {
	quoteID := chi.URLParam(r, "id")
	out, err := h.variations.List(r.Context(), repository.VariationFilter{QuoteID: &quoteID})
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// ── Variations ────────────────────────────────────────────────────────────────

func (h *Handler) createVariation(w http.ResponseWriter, r *http.Request) {
	var in service.CreateVariationInput
	if !decodeBody(w, r, &in) {
		return
	}
	v, err := h.variations.Create(r.Context(), in)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

func (h *Handler) listVariations(w http.ResponseWriter, r *http.Request) {
	var f repository.VariationFilter
	if v := r.URL.Query().Get("quote_id"); v != "" {
		f.QuoteID = &v
	}
	if v := r.URL.Query().Get("customer_id"); v != "" {
		f.CustomerID = &v
	}
	if v := r.URL.Query().Get("status"); v != "" {
		status := repository.VariationStatus(v)
		f.Status = &status
	}
	out, err := h.variations.List(r.Context(), f)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) getVariation(w http.ResponseWriter, r *http.Request) {
	v, err := h.variations.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *Handler) approveVariation(w http.ResponseWriter, r *http.Request) {
	var in service.TrackDecisionInput
	if !decodeBody(w, r, &in) {
		return
	}
	in.VariationID = chi.URLParam(r, "id")
	v, err := h.variations.Approve(r.Context(), in)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *Handler) rejectVariation(w http.ResponseWriter, r *http.Request) {
	var in service.TrackDecisionInput
	if !decodeBody(w, r, &in) {
		return
	}
	in.VariationID = chi.URLParam(r, "id")
	v, err := h.variations.Reject(r.Context(), in)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *Handler) implementVariation(w http.ResponseWriter, r *http.Request) {
	var in service.ImplementInput
	if !decodeBody(w, r, &in) {
		return
	}
	in.VariationID = chi.URLParam(r, "id")
	v, err := h.variations.Implement(r.Context(), in)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *Handler) listCommunications(w http.ResponseWriter, r *http.Request) {
	out, err := h.variations.Communications(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// ── Approvals ─────────────────────────────────────────────────────────────────

func (h *Handler) requestApproval(w http.ResponseWriter, r *http.Request) {
	var in service.RequestApprovalInput
	if !decodeBody(w, r, &in) {
		return
	}
	a, err := h.approvals.Request(r.Context(), in)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (h *Handler) listApprovals(w http.ResponseWriter, r *http.Request) {
	var f repository.ApprovalFilter
	if v := r.URL.Query().Get("entity_type"); v != "" {
		f.EntityType = &v
	}
	if v := r.URL.Query().Get("entity_id"); v != "" {
		f.EntityID = &v
	}
	if v := r.URL.Query().Get("approval_type"); v != "" {
		f.ApprovalType = &v
	}
	if v := r.URL.Query().Get("status"); v != "" {
		status := repository.ApprovalStatus(v)
		f.Status = &status
	}
	out, err := h.approvals.List(r.Context(), f)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) getApproval(w http.ResponseWriter, r *http.Request) {
	a, err := h.approvals.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *Handler) decideApproval(w http.ResponseWriter, r *http.Request) {
	var in service.DecideInput
	if !decodeBody(w, r, &in) {
		return
	}
	in.RequestID = chi.URLParam(r, "id")
	a, err := h.approvals.Decide(r.Context(), in)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *Handler) approvalHistory(w http.ResponseWriter, r *http.Request) {
	entityType := r.URL.Query().Get("entity_type")
	entityID := r.URL.Query().Get("entity_id")
	out, err := h.approvals.History(r.Context(), entityType, entityID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// ── Credit checks ─────────────────────────────────────────────────────────────

func (h *Handler) runCreditCheck(w http.ResponseWriter, r *http.Request) {
	var in service.CheckInput
	if !decodeBody(w, r, &in) {
		return
	}
	check, err := h.credit.Check(r.Context(), in)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, check)
}

func (h *Handler) latestCreditCheck(w http.ResponseWriter, r *http.Request) {
	out, err := h.credit.Latest(r.Context(), chi.URLParam(r, "customerID"))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
