package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Stage identifies which processor call failed, so callers can report how far
// a multi-step flow progressed.
type Stage string

const (
	StageRegistration    Stage = "registration"
	StageCustomer        Stage = "customer"
	StageInvoiceItem     Stage = "invoice_item"
	StageInvoiceCreate   Stage = "invoice_create"
	StageInvoiceFinalize Stage = "invoice_finalize"
)

// ErrUnsupportedProvider is returned when the manager cannot locate a provider.
var ErrUnsupportedProvider = errors.New("payments: unsupported provider")

// ProviderError wraps a processor failure with the stage it occurred at.
type ProviderError struct {
	Provider string
	Stage    Stage
	Err      error
}

func (e *ProviderError) Error() string {
	if e == nil {
		return "payments: provider error"
	}
	return fmt.Sprintf("payments: %s %s failed: %v", e.Provider, e.Stage, e.Err)
}

func (e *ProviderError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// RegistrationRequest captures the payload required to register an order with
// the processor before it is persisted.
type RegistrationRequest struct {
	OrderID        string
	Amount         int64
	Currency       string
	ReceiptEmail   string
	Description    string
	Metadata       map[string]string
	IdempotencyKey string
}

// Registration is the processor's record of a pending order.
type Registration struct {
	ProcessorOrderID string
	Status           string
}

// CustomerRequest creates a billing customer for separately invoiced shipping.
type CustomerRequest struct {
	Email    string
	Name     string
	Metadata map[string]string
}

// Customer is the processor-side customer reference.
type Customer struct {
	ID string
}

// InvoiceRequest raises a finalized, emailable invoice against a customer.
type InvoiceRequest struct {
	CustomerID     string
	Amount         int64
	Currency       string
	Description    string
	DaysUntilDue   int64
	Metadata       map[string]string
	IdempotencyKey string
}

// Invoice is the finalized processor invoice with its hosted payment page.
type Invoice struct {
	ID        string
	HostedURL string
	Status    string
}

// Provider defines the contract for payment processor adapters.
type Provider interface {
	RegisterOrder(ctx context.Context, req RegistrationRequest) (Registration, error)
	CreateCustomer(ctx context.Context, req CustomerRequest) (Customer, error)
	CreateShippingInvoice(ctx context.Context, req InvoiceRequest) (Invoice, error)
}

// Manager selects a provider by payment method and delegates to it.
type Manager struct {
	providers       map[string]Provider
	defaultProvider string
}

// ManagerOption configures optional behaviour when building a Manager.
type ManagerOption func(*Manager)

// WithDefaultProvider overrides the provider used when a payment method has no
// registered adapter of its own.
func WithDefaultProvider(provider string) ManagerOption {
	return func(m *Manager) {
		m.defaultProvider = provider
	}
}

// NewManager constructs a Manager over the supplied providers, keyed by
// payment method.
func NewManager(providers map[string]Provider, opts ...ManagerOption) (*Manager, error) {
	if len(providers) == 0 {
		return nil, errors.New("payments: at least one provider is required")
	}
	copyMap := make(map[string]Provider, len(providers))
	for k, v := range providers {
		key := strings.TrimSpace(strings.ToLower(k))
		if key == "" || v == nil {
			return nil, fmt.Errorf("payments: invalid provider registration for key %q", k)
		}
		copyMap[key] = v
	}
	m := &Manager{providers: copyMap}
	if _, ok := copyMap["stripe"]; ok {
		m.defaultProvider = "stripe"
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

func (m *Manager) resolve(paymentMethod string) (Provider, error) {
	if m == nil || len(m.providers) == 0 {
		return nil, errors.New("payments: no providers registered")
	}
	if key := strings.TrimSpace(strings.ToLower(paymentMethod)); key != "" {
		if p, ok := m.providers[key]; ok {
			return p, nil
		}
	}
	if def := strings.TrimSpace(strings.ToLower(m.defaultProvider)); def != "" {
		if p, ok := m.providers[def]; ok {
			return p, nil
		}
	}
	if len(m.providers) == 1 {
		for _, p := range m.providers {
			return p, nil
		}
	}
	return nil, ErrUnsupportedProvider
}

// RegisterOrder delegates to the provider resolved for the payment method.
func (m *Manager) RegisterOrder(ctx context.Context, paymentMethod string, req RegistrationRequest) (Registration, error) {
	provider, err := m.resolve(paymentMethod)
	if err != nil {
		return Registration{}, err
	}
	return provider.RegisterOrder(ctx, req)
}

// CreateCustomer delegates to the provider resolved for the payment method.
func (m *Manager) CreateCustomer(ctx context.Context, paymentMethod string, req CustomerRequest) (Customer, error) {
	provider, err := m.resolve(paymentMethod)
	if err != nil {
		return Customer{}, err
	}
	return provider.CreateCustomer(ctx, req)
}

// CreateShippingInvoice delegates to the provider resolved for the payment method.
func (m *Manager) CreateShippingInvoice(ctx context.Context, paymentMethod string, req InvoiceRequest) (Invoice, error) {
	provider, err := m.resolve(paymentMethod)
	if err != nil {
		return Invoice{}, err
	}
	return provider.CreateShippingInvoice(ctx, req)
}
