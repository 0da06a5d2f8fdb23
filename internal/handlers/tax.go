package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sweetwater-antiques/api/internal/platform/httpx"
	"github.com/sweetwater-antiques/api/internal/services"
)

const (
	taxRateLimit  = 30
	taxRateWindow = time.Minute
)

// TaxHandlers serves the public tax estimation endpoint used by checkout UIs
// before an order exists.
type TaxHandlers struct {
	calculator services.TaxCalculator
	limiter    rateLimiter
}

// NewTaxHandlers constructs a new TaxHandlers instance.
func NewTaxHandlers(calculator services.TaxCalculator) *TaxHandlers {
	return &TaxHandlers{
		calculator: calculator,
		limiter:    newSimpleRateLimiter(taxRateLimit, taxRateWindow, nil),
	}
}

// Routes registers the /tax endpoints.
func (h *TaxHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/estimate", h.estimate)
}

type taxEstimateRequest struct {
	State    string `json:"state"`
	County   string `json:"county"`
	Subtotal int64  `json:"subtotal"`
}

type taxEstimateResponse struct {
	Rate     float64 `json:"rate"`
	Tax      int64   `json:"tax"`
	Subtotal int64   `json:"subtotal"`
}

func (h *TaxHandlers) estimate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.calculator == nil {
		httpx.WriteError(ctx, w, httpx.NewError("tax_unavailable", "tax estimation unavailable", http.StatusServiceUnavailable))
		return
	}

	if h.limiter != nil && !h.limiter.Allow(r.RemoteAddr) {
		httpx.WriteError(ctx, w, httpx.NewError("rate_limited", "too many tax estimate requests", http.StatusTooManyRequests))
		return
	}

	var req taxEstimateRequest
	if !decodeOrderBody(ctx, w, r, &req) {
		return
	}

	if strings.TrimSpace(req.State) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "state is required", http.StatusBadRequest))
		return
	}
	if req.Subtotal < 0 {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "subtotal must not be negative", http.StatusBadRequest))
		return
	}

	estimate := h.calculator.Estimate(ctx, req.State, req.County, req.Subtotal)
	writeJSONResponse(w, http.StatusOK, taxEstimateResponse{
		Rate:     estimate.Rate,
		Tax:      estimate.Tax,
		Subtotal: req.Subtotal,
	})
}
