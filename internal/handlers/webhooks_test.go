package handlers

import (
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

func TestWebhookHandlersShippingInvoicePaid(t *testing.T) {
	paidAt := time.Date(2026, 3, 20, 10, 0, 0, 0, time.UTC)
	var captured services.MarkInvoicePaidCommand
	service := &stubOrderService{
		invoicePaidFn: func(_ context.Context, cmd services.MarkInvoicePaidCommand) (services.Order, error) {
			captured = cmd
			order := sampleServiceOrder()
			order.ShippingInvoice = domain.ShippingInvoice{
				ID: "in_1", URL: "https://pay.example/in_1",
				Sent: true, Paid: true, PaidAt: &paidAt,
			}
			return order, nil
		},
	}

	handler := NewWebhookHandlers(service)
	router := chi.NewRouter()
	router.Route("/webhooks", handler.Routes)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/orders/ord_123/shipping-invoice-paid", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.OrderID != "ord_123" {
		t.Fatalf("expected order id ord_123, got %s", captured.OrderID)
	}

	var resp orderResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.Order.ShippingInvoice == nil || !resp.Order.ShippingInvoice.Paid {
		t.Fatalf("expected paid invoice in response: %#v", resp.Order.ShippingInvoice)
	}
}

func TestWebhookHandlersShippingInvoicePaidBadRequest(t *testing.T) {
	service := &stubOrderService{
		invoicePaidFn: func(context.Context, services.MarkInvoicePaidCommand) (services.Order, error) {
			return services.Order{}, services.ErrOrderInvalidInput
		},
	}

	handler := NewWebhookHandlers(service)
	router := chi.NewRouter()
	router.Route("/webhooks", handler.Routes)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/orders/ord_123/shipping-invoice-paid", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestWebhookHandlersShippingInvoicePaidUnknownOrder(t *testing.T) {
	service := &stubOrderService{
		invoicePaidFn: func(context.Context, services.MarkInvoicePaidCommand) (services.Order, error) {
			return services.Order{}, services.ErrOrderNotFound
		},
	}

	handler := NewWebhookHandlers(service)
	router := chi.NewRouter()
	router.Route("/webhooks", handler.Routes)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/orders/ord_unknown/shipping-invoice-paid", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}
