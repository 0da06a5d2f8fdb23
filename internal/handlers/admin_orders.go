package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sweetwater-antiques/api/internal/platform/auth"
	"github.com/sweetwater-antiques/api/internal/platform/httpx"
	"github.com/sweetwater-antiques/api/internal/services"
)

// AdminOrderHandlers exposes the staff-facing fulfilment endpoints: order
// listings, freight invoicing, and the two mark-shipped operations.
type AdminOrderHandlers struct {
	authn  *auth.Authenticator
	orders services.OrderService
}

// NewAdminOrderHandlers constructs a new AdminOrderHandlers instance.
func NewAdminOrderHandlers(authn *auth.Authenticator, orders services.OrderService) *AdminOrderHandlers {
	return &AdminOrderHandlers{
		authn:  authn,
		orders: orders,
	}
}

// Routes registers the /admin/orders endpoints.
func (h *AdminOrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth(auth.RoleAdmin))
	}
	r.Get("/orders", h.listOrders)
	r.Put("/orders/{orderID}/shipping-price", h.sendShippingInvoice)
	r.Put("/orders/{orderID}/ship-invoice-items", h.markInvoiceItemsShipped)
	r.Put("/orders/{orderID}/ship-flat-rate-items", h.markFlatRateItemsShipped)
}

func (h *AdminOrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	pagination, ok := parseOrderPagination(ctx, w, r)
	if !ok {
		return
	}

	query := services.OrderListQuery{Pagination: pagination}
	params := r.URL.Query()
	if raw := strings.TrimSpace(params.Get("paid_only")); raw == "true" || raw == "1" {
		query.PaidOnly = true
	}
	if raw := strings.TrimSpace(params.Get("created_after")); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "created_after must be a valid RFC3339 timestamp", http.StatusBadRequest))
			return
		}
		query.From = &ts
	}
	if raw := strings.TrimSpace(params.Get("created_before")); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "created_before must be a valid RFC3339 timestamp", http.StatusBadRequest))
			return
		}
		query.To = &ts
	}

	page, err := h.orders.List(ctx, query)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, buildOrderListResponse(page))
}

type shippingPriceRequest struct {
	ShippingPrice int64 `json:"shipping_price"`
}

func (h *AdminOrderHandlers) sendShippingInvoice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	var req shippingPriceRequest
	if !decodeOrderBody(ctx, w, r, &req) {
		return
	}

	order, err := h.orders.SendShippingInvoice(ctx, services.SendShippingInvoiceCommand{
		OrderID:       orderID,
		ShippingPrice: req.ShippingPrice,
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

type markShippedRequest struct {
	CarrierName    string `json:"carrier_name"`
	TrackingNumber string `json:"tracking_number"`
	DeliveryDays   *int   `json:"delivery_days"`
}

func (h *AdminOrderHandlers) markInvoiceItemsShipped(w http.ResponseWriter, r *http.Request) {
	h.markShipped(w, r, true)
}

func (h *AdminOrderHandlers) markFlatRateItemsShipped(w http.ResponseWriter, r *http.Request) {
	h.markShipped(w, r, false)
}

func (h *AdminOrderHandlers) markShipped(w http.ResponseWriter, r *http.Request, invoiceTrack bool) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	var req markShippedRequest
	if !decodeOrderBody(ctx, w, r, &req) {
		return
	}

	cmd := services.MarkShippedCommand{
		OrderID:        orderID,
		CarrierName:    strings.TrimSpace(req.CarrierName),
		TrackingNumber: strings.TrimSpace(req.TrackingNumber),
		DeliveryDays:   req.DeliveryDays,
	}

	var (
		order services.Order
		err   error
	)
	if invoiceTrack {
		order, err = h.orders.MarkInvoiceItemsShipped(ctx, cmd)
	} else {
		order, err = h.orders.MarkFlatRateItemsShipped(ctx, cmd)
	}
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}
