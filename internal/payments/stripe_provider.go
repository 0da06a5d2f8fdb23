package payments

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
)

// StripeLogger defines the logging contract for Stripe provider operations.
type StripeLogger func(ctx context.Context, event string, fields map[string]any)

type stripePaymentIntentAPI interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

type stripeCustomerAPI interface {
	New(params *stripe.CustomerParams) (*stripe.Customer, error)
}

type stripeInvoiceItemAPI interface {
	New(params *stripe.InvoiceItemParams) (*stripe.InvoiceItem, error)
}

type stripeInvoiceAPI interface {
	New(params *stripe.InvoiceParams) (*stripe.Invoice, error)
	FinalizeInvoice(id string, params *stripe.InvoiceFinalizeInvoiceParams) (*stripe.Invoice, error)
}

type stripeClients struct {
	intents      stripePaymentIntentAPI
	customers    stripeCustomerAPI
	invoiceItems stripeInvoiceItemAPI
	invoices     stripeInvoiceAPI
}

// StripeProviderConfig configures the StripeProvider.
type StripeProviderConfig struct {
	APIKey       string
	AccountID    string
	Backends     *stripe.Backends
	DaysUntilDue int64
	Logger       StripeLogger
	Clock        func() time.Time
	Clients      *stripeClients
}

// StripeProvider implements the Provider interface using Stripe APIs.
type StripeProvider struct {
	api          stripeClients
	account      string
	daysUntilDue int64
	clock        func() time.Time
	logger       StripeLogger
}

// NewStripeProvider constructs a Stripe Provider using the given configuration.
func NewStripeProvider(cfg StripeProviderConfig) (*StripeProvider, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" && cfg.Clients == nil {
		return nil, errors.New("stripe: api key is required")
	}

	var clients stripeClients
	if cfg.Clients != nil {
		clients = *cfg.Clients
	} else {
		sc := client.New(apiKey, cfg.Backends)
		clients = stripeClients{
			intents:      sc.PaymentIntents,
			customers:    sc.Customers,
			invoiceItems: sc.InvoiceItems,
			invoices:     sc.Invoices,
		}
	}

	if clients.intents == nil || clients.customers == nil || clients.invoiceItems == nil || clients.invoices == nil {
		return nil, errors.New("stripe: incomplete client configuration")
	}

	daysUntilDue := cfg.DaysUntilDue
	if daysUntilDue <= 0 {
		daysUntilDue = 14
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := cfg.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &StripeProvider{
		api:          clients,
		account:      strings.TrimSpace(cfg.AccountID),
		daysUntilDue: daysUntilDue,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

// RegisterOrder creates a payment intent so the processor has a record of the
// order before it is stored.
func (p *StripeProvider) RegisterOrder(ctx context.Context, req RegistrationRequest) (Registration, error) {
	if p == nil {
		return Registration{}, errors.New("stripe: provider is nil")
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(req.Amount),
		Currency: stripe.String(strings.ToLower(defaultString(req.Currency, "usd"))),
	}
	params.Context = ctx
	if key := strings.TrimSpace(req.IdempotencyKey); key != "" {
		params.SetIdempotencyKey(key)
	}
	if p.account != "" {
		params.SetStripeAccount(p.account)
	}
	if email := strings.TrimSpace(req.ReceiptEmail); email != "" {
		params.ReceiptEmail = stripe.String(email)
	}
	if desc := strings.TrimSpace(req.Description); desc != "" {
		params.Description = stripe.String(desc)
	}
	params.Metadata = cloneMetadata(req.Metadata)
	if params.Metadata == nil {
		params.Metadata = map[string]string{}
	}
	if req.OrderID != "" {
		params.Metadata["orderId"] = req.OrderID
	}

	intent, err := p.api.intents.New(params)
	if err != nil {
		return Registration{}, &ProviderError{Provider: "stripe", Stage: StageRegistration, Err: err}
	}

	p.logger(ctx, "payments.stripe.order.registered", map[string]any{
		"orderId":       req.OrderID,
		"paymentIntent": intent.ID,
		"amount":        intent.Amount,
	})

	return Registration{
		ProcessorOrderID: intent.ID,
		Status:           string(intent.Status),
	}, nil
}

// CreateCustomer creates the processor customer an invoice is raised against.
func (p *StripeProvider) CreateCustomer(ctx context.Context, req CustomerRequest) (Customer, error) {
	if p == nil {
		return Customer{}, errors.New("stripe: provider is nil")
	}

	params := &stripe.CustomerParams{}
	params.Context = ctx
	if p.account != "" {
		params.SetStripeAccount(p.account)
	}
	if email := strings.TrimSpace(req.Email); email != "" {
		params.Email = stripe.String(email)
	}
	if name := strings.TrimSpace(req.Name); name != "" {
		params.Name = stripe.String(name)
	}
	if md := cloneMetadata(req.Metadata); md != nil {
		params.Metadata = md
	}

	customer, err := p.api.customers.New(params)
	if err != nil {
		return Customer{}, &ProviderError{Provider: "stripe", Stage: StageCustomer, Err: err}
	}

	p.logger(ctx, "payments.stripe.customer.created", map[string]any{
		"customerId": customer.ID,
	})

	return Customer{ID: customer.ID}, nil
}

// CreateShippingInvoice raises a single-line invoice, finalizes it, and returns
// the hosted payment page.
func (p *StripeProvider) CreateShippingInvoice(ctx context.Context, req InvoiceRequest) (Invoice, error) {
	if p == nil {
		return Invoice{}, errors.New("stripe: provider is nil")
	}
	if strings.TrimSpace(req.CustomerID) == "" {
		return Invoice{}, &ProviderError{Provider: "stripe", Stage: StageInvoiceItem, Err: errors.New("customer id is required")}
	}

	itemParams := &stripe.InvoiceItemParams{
		Customer: stripe.String(req.CustomerID),
		Amount:   stripe.Int64(req.Amount),
		Currency: stripe.String(strings.ToLower(defaultString(req.Currency, "usd"))),
	}
	itemParams.Context = ctx
	if p.account != "" {
		itemParams.SetStripeAccount(p.account)
	}
	if desc := strings.TrimSpace(req.Description); desc != "" {
		itemParams.Description = stripe.String(desc)
	}
	if _, err := p.api.invoiceItems.New(itemParams); err != nil {
		return Invoice{}, &ProviderError{Provider: "stripe", Stage: StageInvoiceItem, Err: err}
	}

	daysUntilDue := req.DaysUntilDue
	if daysUntilDue <= 0 {
		daysUntilDue = p.daysUntilDue
	}

	invoiceParams := &stripe.InvoiceParams{
		Customer:         stripe.String(req.CustomerID),
		CollectionMethod: stripe.String(string(stripe.InvoiceCollectionMethodSendInvoice)),
		DaysUntilDue:     stripe.Int64(daysUntilDue),
	}
	invoiceParams.Context = ctx
	if key := strings.TrimSpace(req.IdempotencyKey); key != "" {
		invoiceParams.SetIdempotencyKey(key)
	}
	if p.account != "" {
		invoiceParams.SetStripeAccount(p.account)
	}
	if md := cloneMetadata(req.Metadata); md != nil {
		invoiceParams.Metadata = md
	}

	invoice, err := p.api.invoices.New(invoiceParams)
	if err != nil {
		return Invoice{}, &ProviderError{Provider: "stripe", Stage: StageInvoiceCreate, Err: err}
	}

	finalizeParams := &stripe.InvoiceFinalizeInvoiceParams{}
	finalizeParams.Context = ctx
	if p.account != "" {
		finalizeParams.SetStripeAccount(p.account)
	}
	finalized, err := p.api.invoices.FinalizeInvoice(invoice.ID, finalizeParams)
	if err != nil {
		return Invoice{}, &ProviderError{Provider: "stripe", Stage: StageInvoiceFinalize, Err: err}
	}

	p.logger(ctx, "payments.stripe.invoice.finalized", map[string]any{
		"invoiceId": finalized.ID,
		"hostedUrl": finalized.HostedInvoiceURL,
	})

	return Invoice{
		ID:        finalized.ID,
		HostedURL: finalized.HostedInvoiceURL,
		Status:    string(finalized.Status),
	}, nil
}

func cloneMetadata(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

func defaultString(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}
