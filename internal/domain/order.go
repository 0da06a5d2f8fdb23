package domain

import (
	"strings"
	"time"
)

// PaymentMethod identifies the processor a customer selected at checkout.
type PaymentMethod string

const (
	PaymentMethodStripe PaymentMethod = "stripe"
	PaymentMethodSquare PaymentMethod = "square"
	PaymentMethodPayPal PaymentMethod = "paypal"
)

// ParsePaymentMethod normalises a raw payment method value.
func ParsePaymentMethod(raw string) (PaymentMethod, bool) {
	method := PaymentMethod(strings.ToLower(strings.TrimSpace(raw)))
	if method.Valid() {
		return method, true
	}
	return "", false
}

// Valid reports whether the payment method maps to a known processor.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodStripe, PaymentMethodSquare, PaymentMethodPayPal:
		return true
	}
	return false
}

// ShippingClass classifies how a line item ships. Exactly one class applies
// per item: the price already covers shipping, a flat per-item rate is
// charged up front, or shipping is quoted and invoiced separately after
// purchase (typical for large furniture pieces).
type ShippingClass string

const (
	ShippingFreeIncluded    ShippingClass = "free_included"
	ShippingFlatRate        ShippingClass = "flat_rate"
	ShippingInvoiceRequired ShippingClass = "invoice_required"
)

// ParseShippingClass normalises a raw classification value.
func ParseShippingClass(raw string) (ShippingClass, bool) {
	switch ShippingClass(strings.ToLower(strings.TrimSpace(raw))) {
	case ShippingFreeIncluded:
		return ShippingFreeIncluded, true
	case ShippingFlatRate:
		return ShippingFlatRate, true
	case ShippingInvoiceRequired:
		return ShippingInvoiceRequired, true
	default:
		return "", false
	}
}

// OrderItem is the priced snapshot of a catalog product captured at order time.
// Prices are integer cents.
type OrderItem struct {
	ProductRef     string
	Slug           string
	Name           string
	Image          string
	Quantity       int
	UnitPrice      int64
	SalePrice      *int64
	ShippingCharge int64
	ShippingClass  ShippingClass
}

// EffectiveUnitPrice returns the sale price when one is set, otherwise the list price.
func (i OrderItem) EffectiveUnitPrice() int64 {
	if i.SalePrice != nil && *i.SalePrice > 0 {
		return *i.SalePrice
	}
	return i.UnitPrice
}

// LineTotal returns quantity times the effective unit price.
func (i OrderItem) LineTotal() int64 {
	return i.EffectiveUnitPrice() * int64(i.Quantity)
}

// ShippingAddress is the destination captured on the order. State and county
// drive tax jurisdiction lookup.
type ShippingAddress struct {
	FullName   string
	Address    string
	City       string
	County     string
	State      string
	PostalCode string
	Country    string
}

// ShipmentTrack records fulfilment progress for one of the two independent
// shipping tracks on an order.
type ShipmentTrack struct {
	Shipped        bool
	ShippedAt      *time.Time
	DeliveryDays   *int
	CarrierName    string
	TrackingNumber string
}

// OrderAmounts groups the monetary components of an order, all in cents.
// Total is always Items + Shipping + SeparateShipping + Tax.
type OrderAmounts struct {
	Items            int64
	Shipping         int64
	SeparateShipping int64
	Tax              int64
	Total            int64
	TaxRate          float64
}

// PaymentResult stores the processor confirmation recorded at capture time.
type PaymentResult struct {
	ExternalID   string
	Status       string
	EmailAddress string
}

// ShippingInvoice tracks the separately-invoiced shipping flow for orders
// containing invoice-required items.
type ShippingInvoice struct {
	ID     string
	URL    string
	Sent   bool
	Paid   bool
	PaidAt *time.Time
}

// Order is the persisted aggregate for a marketplace purchase.
type Order struct {
	ID               string
	UserID           string
	OrderName        string
	Items            []OrderItem
	ShippingAddress  ShippingAddress
	PaymentMethod    PaymentMethod
	ProcessorOrderID string
	Amounts          OrderAmounts
	Paid             bool
	PaidAt           *time.Time
	PaymentResult    *PaymentResult
	StandardShipment ShipmentTrack
	InvoiceShipment  ShipmentTrack
	ShippingInvoice  ShippingInvoice
	FullyShipped     bool
	CreatedAt        time.Time
	UpdatedAt        time.Time

	// LastSyncTime mirrors the storage update timestamp and backs optimistic
	// concurrency on writes. Zero means "no precondition".
	LastSyncTime time.Time
}

// InvoiceItems returns the items that ship on the separately-invoiced track.
func (o *Order) InvoiceItems() []OrderItem {
	return o.itemsByTrack(true)
}

// StandardItems returns the items that ship on the flat-rate/included track.
func (o *Order) StandardItems() []OrderItem {
	return o.itemsByTrack(false)
}

// FlatRateItems returns the subset of standard items that carried an up-front
// shipping charge. Notification templates list these separately from
// free-shipping items.
func (o *Order) FlatRateItems() []OrderItem {
	var items []OrderItem
	for _, item := range o.Items {
		if item.ShippingClass == ShippingFlatRate || (item.ShippingCharge > 0 && item.ShippingClass != ShippingInvoiceRequired) {
			items = append(items, item)
		}
	}
	return items
}

func (o *Order) itemsByTrack(invoice bool) []OrderItem {
	var items []OrderItem
	for _, item := range o.Items {
		if (item.ShippingClass == ShippingInvoiceRequired) == invoice {
			items = append(items, item)
		}
	}
	return items
}

// HasInvoiceItems reports whether the order requires the invoiced track.
func (o *Order) HasInvoiceItems() bool {
	return len(o.InvoiceItems()) > 0
}

// HasStandardItems reports whether the order requires the flat-rate track.
func (o *Order) HasStandardItems() bool {
	return len(o.StandardItems()) > 0
}

// InvoiceUnpaid reports whether a shipping invoice is outstanding. Orders with
// an outstanding invoice cannot have their invoiced items marked shipped.
func (o *Order) InvoiceUnpaid() bool {
	return strings.TrimSpace(o.ShippingInvoice.URL) != "" && !o.ShippingInvoice.Paid
}

// RecomputeFullyShipped re-derives the combined shipped flag. Each track only
// participates when the order has items on it.
func (o *Order) RecomputeFullyShipped() {
	invoiceDone := !o.HasInvoiceItems() || o.InvoiceShipment.Shipped
	standardDone := !o.HasStandardItems() || o.StandardShipment.Shipped
	o.FullyShipped = invoiceDone && standardDone
}

// RecalculateTotal re-derives the total from the component amounts. Callers
// mutate a component (e.g. the separate shipping quote) then call this to
// keep the invariant intact.
func (o *Order) RecalculateTotal() {
	o.Amounts.Total = o.Amounts.Items + o.Amounts.Shipping + o.Amounts.SeparateShipping + o.Amounts.Tax
}

// ItemsSubtotal sums the effective line totals in cents.
func ItemsSubtotal(items []OrderItem) int64 {
	var subtotal int64
	for _, item := range items {
		subtotal += item.LineTotal()
	}
	return subtotal
}

// FlatRateShippingTotal sums per-item flat shipping charges in cents. Items on
// the invoiced track never contribute: their shipping is quoted later.
func FlatRateShippingTotal(items []OrderItem) int64 {
	var total int64
	for _, item := range items {
		if item.ShippingClass == ShippingInvoiceRequired {
			continue
		}
		total += item.ShippingCharge * int64(item.Quantity)
	}
	return total
}
