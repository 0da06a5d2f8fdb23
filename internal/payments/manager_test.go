package payments

import (
	"context"
	"errors"
	"testing"
)

type fakeProvider struct {
	lastOp       string
	registration Registration
	customer     Customer
	invoice      Invoice
	err          error
}

func (f *fakeProvider) RegisterOrder(ctx context.Context, req RegistrationRequest) (Registration, error) {
	f.lastOp = "register"
	return f.registration, f.err
}

func (f *fakeProvider) CreateCustomer(ctx context.Context, req CustomerRequest) (Customer, error) {
	f.lastOp = "customer"
	return f.customer, f.err
}

func (f *fakeProvider) CreateShippingInvoice(ctx context.Context, req InvoiceRequest) (Invoice, error) {
	f.lastOp = "invoice"
	return f.invoice, f.err
}

func TestManagerRoutesByPaymentMethod(t *testing.T) {
	ctx := context.Background()
	stripe := &fakeProvider{registration: Registration{ProcessorOrderID: "pi_stripe"}}
	square := &fakeProvider{registration: Registration{ProcessorOrderID: "sq_order"}}

	mgr, err := NewManager(map[string]Provider{
		"stripe": stripe,
		"square": square,
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	reg, err := mgr.RegisterOrder(ctx, "square", RegistrationRequest{OrderID: "ord_1", Amount: 4200})
	if err != nil {
		t.Fatalf("register order: %v", err)
	}
	if reg.ProcessorOrderID != "sq_order" {
		t.Fatalf("expected square registration, got %q", reg.ProcessorOrderID)
	}
	if square.lastOp != "register" {
		t.Fatalf("expected square provider to handle call")
	}
	if stripe.lastOp != "" {
		t.Fatalf("expected stripe provider to remain unused")
	}
}

func TestManagerFallsBackToDefault(t *testing.T) {
	ctx := context.Background()
	stripe := &fakeProvider{invoice: Invoice{ID: "in_1", HostedURL: "https://pay.example/in_1"}}

	mgr, err := NewManager(map[string]Provider{"stripe": stripe})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	invoice, err := mgr.CreateShippingInvoice(ctx, "paypal", InvoiceRequest{CustomerID: "cus_1", Amount: 1500})
	if err != nil {
		t.Fatalf("create invoice: %v", err)
	}
	if stripe.lastOp != "invoice" {
		t.Fatalf("expected default provider to handle call")
	}
	if invoice.HostedURL != "https://pay.example/in_1" {
		t.Fatalf("unexpected hosted url %q", invoice.HostedURL)
	}
}

func TestManagerUnsupportedProvider(t *testing.T) {
	ctx := context.Background()
	mgr, err := NewManager(map[string]Provider{"square": &fakeProvider{}, "paypal": &fakeProvider{}}, WithDefaultProvider(""))
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	_, err = mgr.CreateCustomer(ctx, "unknown", CustomerRequest{Email: "buyer@example.com"})
	if !errors.Is(err, ErrUnsupportedProvider) {
		t.Fatalf("expected ErrUnsupportedProvider, got %v", err)
	}
}

func TestNewManagerValidatesProviders(t *testing.T) {
	if _, err := NewManager(map[string]Provider{"bad": nil}); err == nil {
		t.Fatalf("expected error for nil provider")
	}
	if _, err := NewManager(nil); err == nil {
		t.Fatalf("expected error when providers empty")
	}
}

func TestProviderErrorUnwraps(t *testing.T) {
	base := errors.New("card declined")
	err := &ProviderError{Provider: "stripe", Stage: StageInvoiceFinalize, Err: base}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to match")
	}
	if err.Stage != StageInvoiceFinalize {
		t.Fatalf("unexpected stage %q", err.Stage)
	}
}
