package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/sweetwater-antiques/api/internal/domain"
	"github.com/sweetwater-antiques/api/internal/services"
)

func TestAdminOrderHandlersListOrders(t *testing.T) {
	fromExpected := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	toExpected := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	var captured services.OrderListQuery
	service := &stubOrderService{
		listFn: func(_ context.Context, query services.OrderListQuery) (domain.CursorPage[services.Order], error) {
			captured = query
			return domain.CursorPage[services.Order]{
				Items: []services.Order{sampleServiceOrder()},
			}, nil
		},
	}

	handler := NewAdminOrderHandlers(nil, service)
	router := chi.NewRouter()
	router.Route("/admin", handler.Routes)

	req := httptest.NewRequest(http.MethodGet, "/admin/orders?paid_only=true&created_after=2026-03-01T00:00:00Z&created_before=2026-04-01T00:00:00Z&page_size=25", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if !captured.PaidOnly {
		t.Fatalf("expected paid_only filter")
	}
	if captured.From == nil || !captured.From.Equal(fromExpected) {
		t.Fatalf("expected from %s, got %#v", fromExpected, captured.From)
	}
	if captured.To == nil || !captured.To.Equal(toExpected) {
		t.Fatalf("expected to %s, got %#v", toExpected, captured.To)
	}
	if captured.Pagination.PageSize != 25 {
		t.Fatalf("expected page size 25, got %d", captured.Pagination.PageSize)
	}
}

func TestAdminOrderHandlersListOrdersInvalidDate(t *testing.T) {
	handler := NewAdminOrderHandlers(nil, &stubOrderService{})
	router := chi.NewRouter()
	router.Route("/admin", handler.Routes)

	req := httptest.NewRequest(http.MethodGet, "/admin/orders?created_after=not-a-date", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestAdminOrderHandlersSendShippingInvoice(t *testing.T) {
	var captured services.SendShippingInvoiceCommand
	service := &stubOrderService{
		sendInvoiceFn: func(_ context.Context, cmd services.SendShippingInvoiceCommand) (services.Order, error) {
			captured = cmd
			order := sampleServiceOrder()
			order.ShippingInvoice = domain.ShippingInvoice{ID: "in_1", URL: "https://pay.example/in_1", Sent: true}
			order.Amounts.SeparateShipping = cmd.ShippingPrice
			return order, nil
		},
	}

	handler := NewAdminOrderHandlers(nil, service)
	router := chi.NewRouter()
	router.Route("/admin", handler.Routes)

	req := httptest.NewRequest(http.MethodPut, "/admin/orders/ord_123/shipping-price", bytes.NewBufferString(`{"shipping_price": 7500}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.OrderID != "ord_123" || captured.ShippingPrice != 7500 {
		t.Fatalf("unexpected command: %#v", captured)
	}

	var resp orderResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.Order.ShippingInvoice == nil || resp.Order.ShippingInvoice.URL != "https://pay.example/in_1" {
		t.Fatalf("expected hosted invoice url in response: %#v", resp.Order.ShippingInvoice)
	}
}

func TestAdminOrderHandlersSendShippingInvoiceAlreadySent(t *testing.T) {
	service := &stubOrderService{
		sendInvoiceFn: func(context.Context, services.SendShippingInvoiceCommand) (services.Order, error) {
			return services.Order{}, services.ErrInvoiceAlreadySent
		},
	}

	handler := NewAdminOrderHandlers(nil, service)
	router := chi.NewRouter()
	router.Route("/admin", handler.Routes)

	req := httptest.NewRequest(http.MethodPut, "/admin/orders/ord_123/shipping-price", bytes.NewBufferString(`{"shipping_price": 7500}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", rr.Code)
	}
}

func TestAdminOrderHandlersMarkInvoiceItemsShipped(t *testing.T) {
	var captured services.MarkShippedCommand
	service := &stubOrderService{
		invoiceShippedFn: func(_ context.Context, cmd services.MarkShippedCommand) (services.Order, error) {
			captured = cmd
			order := sampleServiceOrder()
			order.InvoiceShipment = domain.ShipmentTrack{Shipped: true, CarrierName: cmd.CarrierName}
			return order, nil
		},
	}

	handler := NewAdminOrderHandlers(nil, service)
	router := chi.NewRouter()
	router.Route("/admin", handler.Routes)

	body := `{"carrier_name": "Freight Co", "tracking_number": "FRT-42", "delivery_days": 5}`
	req := httptest.NewRequest(http.MethodPut, "/admin/orders/ord_123/ship-invoice-items", bytes.NewBufferString(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.CarrierName != "Freight Co" || captured.TrackingNumber != "FRT-42" {
		t.Fatalf("unexpected command: %#v", captured)
	}
	if captured.DeliveryDays == nil || *captured.DeliveryDays != 5 {
		t.Fatalf("expected delivery days 5, got %#v", captured.DeliveryDays)
	}
}

func TestAdminOrderHandlersMarkInvoiceItemsShippedUnpaidInvoice(t *testing.T) {
	service := &stubOrderService{
		invoiceShippedFn: func(context.Context, services.MarkShippedCommand) (services.Order, error) {
			return services.Order{}, services.ErrInvoiceUnpaid
		},
	}

	handler := NewAdminOrderHandlers(nil, service)
	router := chi.NewRouter()
	router.Route("/admin", handler.Routes)

	req := httptest.NewRequest(http.MethodPut, "/admin/orders/ord_123/ship-invoice-items", bytes.NewBufferString(`{"carrier_name": "Freight Co"}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", rr.Code)
	}
}

func TestAdminOrderHandlersMarkFlatRateItemsShipped(t *testing.T) {
	var captured services.MarkShippedCommand
	service := &stubOrderService{
		flatRateShippedFn: func(_ context.Context, cmd services.MarkShippedCommand) (services.Order, error) {
			captured = cmd
			order := sampleServiceOrder()
			order.StandardShipment = domain.ShipmentTrack{Shipped: true, CarrierName: cmd.CarrierName}
			order.FullyShipped = true
			return order, nil
		},
	}

	handler := NewAdminOrderHandlers(nil, service)
	router := chi.NewRouter()
	router.Route("/admin", handler.Routes)

	req := httptest.NewRequest(http.MethodPut, "/admin/orders/ord_123/ship-flat-rate-items", bytes.NewBufferString(`{"carrier_name": "UPS", "tracking_number": "1Z999"}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if captured.CarrierName != "UPS" {
		t.Fatalf("unexpected command: %#v", captured)
	}

	var resp orderResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if !resp.Order.FullyShipped {
		t.Fatalf("expected fully shipped order in response")
	}
}

func TestAdminOrderHandlersMarkShippedMissingCarrier(t *testing.T) {
	service := &stubOrderService{
		flatRateShippedFn: func(context.Context, services.MarkShippedCommand) (services.Order, error) {
			return services.Order{}, services.ErrMissingShippingDetails
		},
	}

	handler := NewAdminOrderHandlers(nil, service)
	router := chi.NewRouter()
	router.Route("/admin", handler.Routes)

	req := httptest.NewRequest(http.MethodPut, "/admin/orders/ord_123/ship-flat-rate-items", bytes.NewBufferString(`{"tracking_number": "1Z999"}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}
