package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"cpq-engine-api/internal/apperr"
	"cpq-engine-api/internal/audit"
	"cpq-engine-api/internal/middleware"
	"cpq-engine-api/internal/model"
	"cpq-engine-api/internal/quoteservice"
)

// QuoteHandler exposes the quote lifecycle over HTTP.
type QuoteHandler struct {
	service *quoteservice.Service
}

// NewQuoteHandler creates a new QuoteHandler.
func NewQuoteHandler(service *quoteservice.Service) *QuoteHandler {
	return &QuoteHandler{service: service}
}

type quoteLineRequest struct {
	ProductId        model.ProductId   `json:"productId"`
	ConfigurationKey string            `json:"configurationKey"`
	Quantity         int               `json:"quantity"`
	Attributes       map[string]string `json:"attributes"`
}

type createQuoteRequest struct {
	CustomerId model.CustomerId   `json:"customerId"`
	Currency   string             `json:"currency"`
	Lines      []quoteLineRequest `json:"lines"`
}

// Create handles quote creation.
func (h *QuoteHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor := middleware.ActorIDFromContext(r.Context())
	if actor == "" {
		writeError(w, r, apperr.NewDomainError(apperr.CodeUnauthenticated, "no authenticated actor", nil))
		return
	}

	var req createQuoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, apperr.NewDomainError(apperr.CodeBadInput, "malformed request body", nil))
		return
	}

	lines := make([]model.QuoteLine, 0, len(req.Lines))
	for i, l := range req.Lines {
		lines = append(lines, model.QuoteLine{
			ID:               model.QuoteLineId(strconv.Itoa(i)),
			ProductId:        l.ProductId,
			ConfigurationKey: l.ConfigurationKey,
			Quantity:         l.Quantity,
			Attributes:       l.Attributes,
		})
	}

	quote, err := h.service.CreateQuote(r.Context(), req.CustomerId, req.Currency, lines, actor)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, quote)
}

type pricingContextRequest struct {
	Currency        string                                     `json:"currency"`
	CustomerSegment string                                     `json:"customerSegment"`
	Region          string                                     `json:"region"`
	PriceBooks      []model.PriceBook                          `json:"priceBooks"`
	VolumeTiers     map[model.ProductId][]model.VolumeDiscountTier `json:"volumeTiers"`
	Bundles         []model.BundleDefinition                  `json:"bundles"`
	DiscountRequest *model.DiscountRequest                     `json:"discountRequest,omitempty"`
}

type evaluateRequest struct {
	RuleSet  model.RuleSet         `json:"ruleSet"`
	Policy   model.PolicySet       `json:"policySet"`
	Pricing  pricingContextRequest `json:"pricing"`
}

// Evaluate runs a Draft quote through validate -> price -> policy and
// advances its flow state accordingly.
func (h *QuoteHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	actor := middleware.ActorIDFromContext(r.Context())
	if actor == "" {
		writeError(w, r, apperr.NewDomainError(apperr.CodeUnauthenticated, "no authenticated actor", nil))
		return
	}

	quoteId := model.QuoteId(mux.Vars(r)["id"])

	var req evaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, apperr.NewDomainError(apperr.CodeBadInput, "malformed request body", nil))
		return
	}

	pricing := quoteservice.PricingContext{
		Currency:        req.Pricing.Currency,
		CustomerSegment: req.Pricing.CustomerSegment,
		Region:          req.Pricing.Region,
		PriceBooks:      req.Pricing.PriceBooks,
		VolumeTiers:     req.Pricing.VolumeTiers,
		Bundles:         req.Pricing.Bundles,
		DiscountRequest: req.Pricing.DiscountRequest,
	}

	outcome, err := h.service.Evaluate(r.Context(), quoteId, actor, req.RuleSet, req.Policy, pricing)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, outcome)
}

type decideApprovalRequest struct {
	Approve bool   `json:"approve"`
	Note    string `json:"note,omitempty"`
}

// DecideApproval records a decision on a pending approval request.
func (h *QuoteHandler) DecideApproval(w http.ResponseWriter, r *http.Request) {
	actor := middleware.ActorFromContext(r.Context())
	if actor == nil {
		writeError(w, r, apperr.NewDomainError(apperr.CodeUnauthenticated, "no authenticated actor", nil))
		return
	}

	approvalId := model.ApprovalId(mux.Vars(r)["id"])

	var req decideApprovalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, apperr.NewDomainError(apperr.CodeBadInput, "malformed request body", nil))
		return
	}

	quote, err := h.service.DecideApproval(r.Context(), approvalId, *actor, req.Approve, req.Note)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, quote)
}

// FindSimilar returns the quotes whose configuration fingerprint is similar
// to the path quote's.
func (h *QuoteHandler) FindSimilar(w http.ResponseWriter, r *http.Request) {
	quoteId := model.QuoteId(mux.Vars(r)["id"])

	matches, err := h.service.FindSimilar(r.Context(), quoteId)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, matches)
}

// Explain answers why a specific figure on a quote version is what it is.
func (h *QuoteHandler) Explain(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	quoteId := model.QuoteId(vars["id"])

	version, err := strconv.Atoi(vars["version"])
	if err != nil {
		writeError(w, r, apperr.NewDomainError(apperr.CodeBadInput, "version must be an integer", nil))
		return
	}

	selector := model.NumberSelector{
		Kind:   model.NumberSelectorKind(r.URL.Query().Get("selector")),
		LineId: model.QuoteLineId(r.URL.Query().Get("lineId")),
	}

	response, err := h.service.Explain(r.Context(), quoteId, version, selector)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, response)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps any error raised by the quote service into the single
// InterfaceError shape every handler in this package renders, carrying the
// request's correlation id for support lookups.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	cc, _ := audit.FromContext(r.Context())
	ierr := apperr.MapToInterface(err, cc.CorrelationId)
	writeJSON(w, ierr.HTTPStatus, ierr)
}
