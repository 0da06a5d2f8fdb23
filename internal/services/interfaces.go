package services

import (
	"context"
	"time"

	domain "github.com/sweetwater-antiques/api/internal/domain"
	"github.com/sweetwater-antiques/api/internal/payments"
	"github.com/sweetwater-antiques/api/internal/tax"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Pagination         = domain.Pagination
	Order              = domain.Order
	OrderItem          = domain.OrderItem
	OrderAmounts       = domain.OrderAmounts
	ShippingAddress    = domain.ShippingAddress
	ShipmentTrack      = domain.ShipmentTrack
	PaymentResult      = domain.PaymentResult
	PaymentMethod      = domain.PaymentMethod
	ShippingClass      = domain.ShippingClass
	Product            = domain.Product
	UserProfile        = domain.UserProfile
	SystemHealthReport = domain.SystemHealthReport
)

// OrderService encapsulates the order lifecycle: creation with authoritative
// pricing, payment capture, and the two shipping tracks.
type OrderService interface {
	Create(ctx context.Context, cmd CreateOrderCommand) (Order, error)
	Get(ctx context.Context, query GetOrderQuery) (Order, error)
	ListMine(ctx context.Context, query ListMineQuery) (domain.CursorPage[Order], error)
	List(ctx context.Context, query OrderListQuery) (domain.CursorPage[Order], error)
	Capture(ctx context.Context, cmd CaptureOrderCommand) (CaptureResult, error)
	SendShippingInvoice(ctx context.Context, cmd SendShippingInvoiceCommand) (Order, error)
	MarkShippingInvoicePaid(ctx context.Context, cmd MarkInvoicePaidCommand) (Order, error)
	MarkInvoiceItemsShipped(ctx context.Context, cmd MarkShippedCommand) (Order, error)
	MarkFlatRateItemsShipped(ctx context.Context, cmd MarkShippedCommand) (Order, error)
}

// SystemService exposes operational health utilities used by readiness probes.
type SystemService interface {
	HealthReport(ctx context.Context) (SystemHealthReport, error)
}

// CreateOrderItemInput identifies a catalog product and the desired quantity.
// Pricing always comes from the catalog, never from the client.
type CreateOrderItemInput struct {
	ProductID string
	Quantity  int
}

// CreateOrderCommand captures a new order request.
type CreateOrderCommand struct {
	UserID          string
	Items           []CreateOrderItemInput
	ShippingAddress ShippingAddress
	PaymentMethod   PaymentMethod
}

// GetOrderQuery scopes a single-order read. Non-admin callers only see their
// own orders.
type GetOrderQuery struct {
	OrderID string
	UserID  string
	Admin   bool
}

// ListMineQuery pages through the requesting user's orders.
type ListMineQuery struct {
	UserID     string
	Pagination Pagination
}

// OrderListQuery pages through all orders for admin views.
type OrderListQuery struct {
	PaidOnly   bool
	From       *time.Time
	To         *time.Time
	Pagination Pagination
}

// PaymentResultInput carries the processor confirmation submitted at capture.
type PaymentResultInput struct {
	ExternalID   string
	Status       string
	EmailAddress string
}

// CaptureOrderCommand marks an order paid.
type CaptureOrderCommand struct {
	OrderID string
	UserID  string
	Admin   bool
	Result  PaymentResultInput
}

// EffectResult reports the outcome of one post-commit side effect.
type EffectResult struct {
	Name  string
	OK    bool
	Error string
}

// CaptureResult pairs the updated order with the outcomes of its side effects.
type CaptureResult struct {
	Order   Order
	Effects []EffectResult
}

// SendShippingInvoiceCommand sets the freight price and raises the invoice.
type SendShippingInvoiceCommand struct {
	OrderID       string
	ShippingPrice int64
}

// MarkInvoicePaidCommand records that the hosted shipping invoice was paid.
type MarkInvoicePaidCommand struct {
	OrderID string
}

// MarkShippedCommand records a shipment on one of the two tracks.
type MarkShippedCommand struct {
	OrderID        string
	DeliveryDays   *int
	CarrierName    string
	TrackingNumber string
}

// OrderNotifier is the outbound notification port injected into the order
// service. Implementations must tolerate per-message failures.
type OrderNotifier interface {
	SendReceipt(ctx context.Context, order Order, recipient UserProfile) error
	SendShippingInvoice(ctx context.Context, order Order, recipient UserProfile) error
	SendInvoiceItemsShipped(ctx context.Context, order Order, recipient UserProfile) error
	SendFlatRateItemsShipped(ctx context.Context, order Order, recipient UserProfile) error
	AlertAdmins(ctx context.Context, order Order, admins []UserProfile) error
}

// PaymentGateway selects and drives the payment processor for an order.
type PaymentGateway interface {
	RegisterOrder(ctx context.Context, paymentMethod string, req payments.RegistrationRequest) (payments.Registration, error)
	CreateCustomer(ctx context.Context, paymentMethod string, req payments.CustomerRequest) (payments.Customer, error)
	CreateShippingInvoice(ctx context.Context, paymentMethod string, req payments.InvoiceRequest) (payments.Invoice, error)
}

// TaxCalculator resolves the sales tax owed for a shipping destination.
type TaxCalculator interface {
	Estimate(ctx context.Context, state, county string, subtotal int64) tax.Estimate
}

// OrderEventMessage is the payload published for order lifecycle events.
type OrderEventMessage struct {
	EventType  string    `json:"eventType"`
	OrderID    string    `json:"orderId"`
	UserID     string    `json:"userId"`
	Total      int64     `json:"total"`
	OccurredAt time.Time `json:"occurredAt"`
}

// OrderEventPublisher accepts order lifecycle events for downstream processing.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, message OrderEventMessage) (string, error)
}
