package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/sweetwater-antiques/api/internal/domain"
	"github.com/sweetwater-antiques/api/internal/platform/auth"
	"github.com/sweetwater-antiques/api/internal/platform/httpx"
	"github.com/sweetwater-antiques/api/internal/services"
)

const (
	defaultOrderPageSize = 20
	maxOrderPageSize     = 100
	maxOrderBodySize     = 64 * 1024
)

// OrderHandlers exposes the customer-facing order endpoints.
type OrderHandlers struct {
	authn  *auth.Authenticator
	orders services.OrderService
}

// NewOrderHandlers constructs a new OrderHandlers instance.
func NewOrderHandlers(authn *auth.Authenticator, orders services.OrderService) *OrderHandlers {
	return &OrderHandlers{
		authn:  authn,
		orders: orders,
	}
}

// Routes registers the /orders endpoints.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.Post("/", h.createOrder)
	r.Get("/mine", h.listMyOrders)
	r.Get("/{orderID}", h.getOrder)
	r.Put("/{orderID}/pay", h.captureOrder)
}

type createOrderItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type shippingAddressPayload struct {
	FullName   string `json:"full_name"`
	Address    string `json:"address"`
	City       string `json:"city"`
	County     string `json:"county,omitempty"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country,omitempty"`
}

type createOrderRequest struct {
	Items           []createOrderItemRequest `json:"items"`
	ShippingAddress shippingAddressPayload   `json:"shipping_address"`
	PaymentMethod   string                   `json:"payment_method"`
}

func (h *OrderHandlers) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w, h.orders)
	if !ok {
		return
	}

	var req createOrderRequest
	if !decodeOrderBody(ctx, w, r, &req) {
		return
	}

	method, ok := domain.ParsePaymentMethod(req.PaymentMethod)
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "payment_method must be one of stripe, square, paypal", http.StatusBadRequest))
		return
	}

	cmd := services.CreateOrderCommand{
		UserID:          strings.TrimSpace(identity.UID),
		ShippingAddress: toShippingAddress(req.ShippingAddress),
		PaymentMethod:   method,
	}
	for _, item := range req.Items {
		cmd.Items = append(cmd.Items, services.CreateOrderItemInput{
			ProductID: strings.TrimSpace(item.ProductID),
			Quantity:  item.Quantity,
		})
	}

	order, err := h.orders.Create(ctx, cmd)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) listMyOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w, h.orders)
	if !ok {
		return
	}

	pagination, ok := parseOrderPagination(ctx, w, r)
	if !ok {
		return
	}

	page, err := h.orders.ListMine(ctx, services.ListMineQuery{
		UserID:     strings.TrimSpace(identity.UID),
		Pagination: pagination,
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, buildOrderListResponse(page))
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w, h.orders)
	if !ok {
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	order, err := h.orders.Get(ctx, services.GetOrderQuery{
		OrderID: orderID,
		UserID:  strings.TrimSpace(identity.UID),
		Admin:   identity.HasRole(auth.RoleAdmin),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

type capturePaymentRequest struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	EmailAddress string `json:"email_address"`
}

func (h *OrderHandlers) captureOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w, h.orders)
	if !ok {
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	var req capturePaymentRequest
	if !decodeOrderBody(ctx, w, r, &req) {
		return
	}

	result, err := h.orders.Capture(ctx, services.CaptureOrderCommand{
		OrderID: orderID,
		UserID:  strings.TrimSpace(identity.UID),
		Admin:   identity.HasRole(auth.RoleAdmin),
		Result: services.PaymentResultInput{
			ExternalID:   strings.TrimSpace(req.ID),
			Status:       strings.TrimSpace(req.Status),
			EmailAddress: strings.TrimSpace(req.EmailAddress),
		},
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, captureResponse{
		Order:   buildOrderPayload(result.Order),
		Effects: buildEffectPayloads(result.Effects),
	})
}

func requireIdentity(ctx context.Context, w http.ResponseWriter, svc services.OrderService) (*auth.Identity, bool) {
	if svc == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return nil, false
	}
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return nil, false
	}
	return identity, true
}

func decodeOrderBody(ctx context.Context, w http.ResponseWriter, r *http.Request, dst any) bool {
	body, err := readLimitedBody(r, maxOrderBodySize)
	if err != nil {
		switch {
		case errors.Is(err, errBodyTooLarge):
			httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
		case errors.Is(err, errEmptyBody):
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body is required", http.StatusBadRequest))
		default:
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		}
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
		return false
	}
	return true
}

func parseOrderPagination(ctx context.Context, w http.ResponseWriter, r *http.Request) (services.Pagination, bool) {
	query := r.URL.Query()
	pageSize := defaultOrderPageSize
	if sizeRaw := strings.TrimSpace(query.Get("page_size")); sizeRaw != "" {
		size, err := strconv.Atoi(sizeRaw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "page_size must be an integer", http.StatusBadRequest))
			return services.Pagination{}, false
		}
		switch {
		case size <= 0:
			pageSize = defaultOrderPageSize
		case size > maxOrderPageSize:
			pageSize = maxOrderPageSize
		default:
			pageSize = size
		}
	}
	return services.Pagination{
		PageSize:  pageSize,
		PageToken: strings.TrimSpace(query.Get("page_token")),
	}, true
}

func toShippingAddress(payload shippingAddressPayload) services.ShippingAddress {
	return services.ShippingAddress{
		FullName:   strings.TrimSpace(payload.FullName),
		Address:    strings.TrimSpace(payload.Address),
		City:       strings.TrimSpace(payload.City),
		County:     strings.TrimSpace(payload.County),
		State:      strings.TrimSpace(payload.State),
		PostalCode: strings.TrimSpace(payload.PostalCode),
		Country:    strings.TrimSpace(payload.Country),
	}
}

type orderListResponse struct {
	Items         []orderSummaryPayload `json:"items"`
	NextPageToken string                `json:"next_page_token,omitempty"`
}

type orderSummaryPayload struct {
	ID           string `json:"id"`
	OrderName    string `json:"order_name"`
	Paid         bool   `json:"paid"`
	FullyShipped bool   `json:"fully_shipped"`
	Total        int64  `json:"total"`
	CreatedAt    string `json:"created_at"`
}

type orderResponse struct {
	Order orderPayload `json:"order"`
}

type captureResponse struct {
	Order   orderPayload    `json:"order"`
	Effects []effectPayload `json:"effects"`
}

type effectPayload struct {
	Name  string `json:"name"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

type orderPayload struct {
	ID               string                  `json:"id"`
	OrderName        string                  `json:"order_name"`
	UserID           string                  `json:"user_id"`
	Items            []orderItemPayload      `json:"items"`
	ShippingAddress  shippingAddressPayload  `json:"shipping_address"`
	PaymentMethod    string                  `json:"payment_method"`
	Amounts          orderAmountsPayload     `json:"amounts"`
	Paid             bool                    `json:"paid"`
	PaidAt           string                  `json:"paid_at,omitempty"`
	PaymentResult    *paymentResultPayload   `json:"payment_result,omitempty"`
	StandardShipment *shipmentTrackPayload   `json:"standard_shipment,omitempty"`
	InvoiceShipment  *shipmentTrackPayload   `json:"invoice_shipment,omitempty"`
	ShippingInvoice  *shippingInvoicePayload `json:"shipping_invoice,omitempty"`
	FullyShipped     bool                    `json:"fully_shipped"`
	CreatedAt        string                  `json:"created_at"`
	UpdatedAt        string                  `json:"updated_at,omitempty"`
}

type orderItemPayload struct {
	ProductRef     string `json:"product_ref"`
	Slug           string `json:"slug,omitempty"`
	Name           string `json:"name"`
	Image          string `json:"image,omitempty"`
	Quantity       int    `json:"quantity"`
	UnitPrice      int64  `json:"unit_price"`
	SalePrice      *int64 `json:"sale_price,omitempty"`
	ShippingCharge int64  `json:"shipping_charge,omitempty"`
	ShippingClass  string `json:"shipping_class"`
	LineTotal      int64  `json:"line_total"`
}

type orderAmountsPayload struct {
	Items            int64   `json:"items"`
	Shipping         int64   `json:"shipping"`
	SeparateShipping int64   `json:"separate_shipping,omitempty"`
	Tax              int64   `json:"tax"`
	Total            int64   `json:"total"`
	TaxRate          float64 `json:"tax_rate"`
}

type paymentResultPayload struct {
	ID           string `json:"id"`
	Status       string `json:"status,omitempty"`
	EmailAddress string `json:"email_address,omitempty"`
}

type shipmentTrackPayload struct {
	Shipped        bool   `json:"shipped"`
	ShippedAt      string `json:"shipped_at,omitempty"`
	DeliveryDays   *int   `json:"delivery_days,omitempty"`
	CarrierName    string `json:"carrier_name,omitempty"`
	TrackingNumber string `json:"tracking_number,omitempty"`
}

type shippingInvoicePayload struct {
	ID     string `json:"id,omitempty"`
	URL    string `json:"url,omitempty"`
	Sent   bool   `json:"sent"`
	Paid   bool   `json:"paid"`
	PaidAt string `json:"paid_at,omitempty"`
}

func buildOrderListResponse(page domain.CursorPage[services.Order]) orderListResponse {
	items := make([]orderSummaryPayload, 0, len(page.Items))
	for _, order := range page.Items {
		items = append(items, orderSummaryPayload{
			ID:           strings.TrimSpace(order.ID),
			OrderName:    strings.TrimSpace(order.OrderName),
			Paid:         order.Paid,
			FullyShipped: order.FullyShipped,
			Total:        order.Amounts.Total,
			CreatedAt:    formatTime(order.CreatedAt),
		})
	}
	return orderListResponse{
		Items:         items,
		NextPageToken: strings.TrimSpace(page.NextPageToken),
	}
}

func buildOrderPayload(order services.Order) orderPayload {
	payload := orderPayload{
		ID:        strings.TrimSpace(order.ID),
		OrderName: strings.TrimSpace(order.OrderName),
		UserID:    strings.TrimSpace(order.UserID),
		Items:     make([]orderItemPayload, 0, len(order.Items)),
		ShippingAddress: shippingAddressPayload{
			FullName:   order.ShippingAddress.FullName,
			Address:    order.ShippingAddress.Address,
			City:       order.ShippingAddress.City,
			County:     order.ShippingAddress.County,
			State:      order.ShippingAddress.State,
			PostalCode: order.ShippingAddress.PostalCode,
			Country:    order.ShippingAddress.Country,
		},
		PaymentMethod: string(order.PaymentMethod),
		Amounts: orderAmountsPayload{
			Items:            order.Amounts.Items,
			Shipping:         order.Amounts.Shipping,
			SeparateShipping: order.Amounts.SeparateShipping,
			Tax:              order.Amounts.Tax,
			Total:            order.Amounts.Total,
			TaxRate:          order.Amounts.TaxRate,
		},
		Paid:         order.Paid,
		PaidAt:       formatTime(pointerTime(order.PaidAt)),
		FullyShipped: order.FullyShipped,
		CreatedAt:    formatTime(order.CreatedAt),
		UpdatedAt:    formatTime(order.UpdatedAt),
	}

	for _, item := range order.Items {
		payload.Items = append(payload.Items, orderItemPayload{
			ProductRef:     strings.TrimSpace(item.ProductRef),
			Slug:           strings.TrimSpace(item.Slug),
			Name:           strings.TrimSpace(item.Name),
			Image:          strings.TrimSpace(item.Image),
			Quantity:       item.Quantity,
			UnitPrice:      item.UnitPrice,
			SalePrice:      item.SalePrice,
			ShippingCharge: item.ShippingCharge,
			ShippingClass:  string(item.ShippingClass),
			LineTotal:      item.LineTotal(),
		})
	}

	if order.PaymentResult != nil {
		payload.PaymentResult = &paymentResultPayload{
			ID:           order.PaymentResult.ExternalID,
			Status:       order.PaymentResult.Status,
			EmailAddress: order.PaymentResult.EmailAddress,
		}
	}

	if track := buildShipmentTrack(order.StandardShipment); track != nil {
		payload.StandardShipment = track
	}
	if track := buildShipmentTrack(order.InvoiceShipment); track != nil {
		payload.InvoiceShipment = track
	}

	if order.ShippingInvoice.Sent || order.ShippingInvoice.ID != "" {
		payload.ShippingInvoice = &shippingInvoicePayload{
			ID:     order.ShippingInvoice.ID,
			URL:    order.ShippingInvoice.URL,
			Sent:   order.ShippingInvoice.Sent,
			Paid:   order.ShippingInvoice.Paid,
			PaidAt: formatTime(pointerTime(order.ShippingInvoice.PaidAt)),
		}
	}

	return payload
}

func buildShipmentTrack(track services.ShipmentTrack) *shipmentTrackPayload {
	if !track.Shipped && track.CarrierName == "" && track.TrackingNumber == "" {
		return nil
	}
	return &shipmentTrackPayload{
		Shipped:        track.Shipped,
		ShippedAt:      formatTime(pointerTime(track.ShippedAt)),
		DeliveryDays:   track.DeliveryDays,
		CarrierName:    track.CarrierName,
		TrackingNumber: track.TrackingNumber,
	}
}

func buildEffectPayloads(effects []services.EffectResult) []effectPayload {
	result := make([]effectPayload, 0, len(effects))
	for _, effect := range effects {
		result = append(result, effectPayload{
			Name:  effect.Name,
			OK:    effect.OK,
			Error: effect.Error,
		})
	}
	return result
}

func writeOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrMissingShippingDetails):
		httpx.WriteError(ctx, w, httpx.NewError("missing_shipping_details", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrProductNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("product_not_found", err.Error(), http.StatusNotFound))
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrInvoiceAlreadySent):
		httpx.WriteError(ctx, w, httpx.NewError("invoice_already_sent", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrInvoiceUnpaid):
		httpx.WriteError(ctx, w, httpx.NewError("invoice_unpaid", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrOrderConflict):
		httpx.WriteError(ctx, w, httpx.NewError("order_conflict", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrPaymentProvider):
		httpx.WriteError(ctx, w, httpx.NewError("payment_provider_error", "payment processor request failed", http.StatusBadGateway))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("order_error", "failed to process order request", http.StatusInternalServerError))
	}
}
