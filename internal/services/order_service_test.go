package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	domain "github.com/sweetwater-antiques/api/internal/domain"
	"github.com/sweetwater-antiques/api/internal/payments"
	"github.com/sweetwater-antiques/api/internal/repositories"
	"github.com/sweetwater-antiques/api/internal/tax"
)

type stubOrderRepo struct {
	insertFn   func(ctx context.Context, order domain.Order) (domain.Order, error)
	updateFn   func(ctx context.Context, order domain.Order) (domain.Order, error)
	findByIDFn func(ctx context.Context, orderID string) (domain.Order, error)
	listFn     func(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error)

	inserted []domain.Order
	updated  []domain.Order
}

func (s *stubOrderRepo) Insert(ctx context.Context, order domain.Order) (domain.Order, error) {
	s.inserted = append(s.inserted, order)
	if s.insertFn != nil {
		return s.insertFn(ctx, order)
	}
	return order, nil
}

func (s *stubOrderRepo) Update(ctx context.Context, order domain.Order) (domain.Order, error) {
	if s.updateFn != nil {
		updated, err := s.updateFn(ctx, order)
		if err != nil {
			return domain.Order{}, err
		}
		s.updated = append(s.updated, updated)
		return updated, nil
	}
	s.updated = append(s.updated, order)
	return order, nil
}

func (s *stubOrderRepo) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if s.findByIDFn != nil {
		return s.findByIDFn(ctx, orderID)
	}
	return domain.Order{}, notFoundErr{}
}

func (s *stubOrderRepo) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	if s.listFn != nil {
		return s.listFn(ctx, filter)
	}
	return domain.CursorPage[domain.Order]{}, nil
}

type stubProductRepo struct {
	products   map[string]domain.Product
	decrements []string
	stock      map[string]int
}

func (s *stubProductRepo) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	product, ok := s.products[productID]
	if !ok {
		return domain.Product{}, notFoundErr{}
	}
	return product, nil
}

func (s *stubProductRepo) DecrementStock(ctx context.Context, productID string, quantity int) (int, error) {
	s.decrements = append(s.decrements, fmt.Sprintf("%s:%d", productID, quantity))
	available, ok := s.stock[productID]
	if !ok {
		return 0, notFoundErr{}
	}
	moved := quantity
	if available < moved {
		moved = available
	}
	s.stock[productID] = available - moved
	return moved, nil
}

type stubUserRepo struct {
	users  map[string]domain.UserProfile
	admins []domain.UserProfile
	err    error
}

func (s *stubUserRepo) FindByID(ctx context.Context, userID string) (domain.UserProfile, error) {
	if s.err != nil {
		return domain.UserProfile{}, s.err
	}
	user, ok := s.users[userID]
	if !ok {
		return domain.UserProfile{}, notFoundErr{}
	}
	return user, nil
}

func (s *stubUserRepo) ListAdminRecipients(ctx context.Context) ([]domain.UserProfile, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.admins, nil
}

type stubGateway struct {
	registerFn func(ctx context.Context, method string, req payments.RegistrationRequest) (payments.Registration, error)
	customerFn func(ctx context.Context, method string, req payments.CustomerRequest) (payments.Customer, error)
	invoiceFn  func(ctx context.Context, method string, req payments.InvoiceRequest) (payments.Invoice, error)

	registered []payments.RegistrationRequest
	customers  []payments.CustomerRequest
	invoices   []payments.InvoiceRequest
}

func (s *stubGateway) RegisterOrder(ctx context.Context, method string, req payments.RegistrationRequest) (payments.Registration, error) {
	if s.registerFn != nil {
		reg, err := s.registerFn(ctx, method, req)
		if err != nil {
			return payments.Registration{}, err
		}
		s.registered = append(s.registered, req)
		return reg, nil
	}
	s.registered = append(s.registered, req)
	return payments.Registration{ProcessorOrderID: "pi_" + req.OrderID}, nil
}

func (s *stubGateway) CreateCustomer(ctx context.Context, method string, req payments.CustomerRequest) (payments.Customer, error) {
	if s.customerFn != nil {
		customer, err := s.customerFn(ctx, method, req)
		if err != nil {
			return payments.Customer{}, err
		}
		s.customers = append(s.customers, req)
		return customer, nil
	}
	s.customers = append(s.customers, req)
	return payments.Customer{ID: "cus_1"}, nil
}

func (s *stubGateway) CreateShippingInvoice(ctx context.Context, method string, req payments.InvoiceRequest) (payments.Invoice, error) {
	if s.invoiceFn != nil {
		invoice, err := s.invoiceFn(ctx, method, req)
		if err != nil {
			return payments.Invoice{}, err
		}
		s.invoices = append(s.invoices, req)
		return invoice, nil
	}
	s.invoices = append(s.invoices, req)
	return payments.Invoice{ID: "in_1", HostedURL: "https://pay.example/in_1", Status: "open"}, nil
}

type stubNotifier struct {
	calls []string
	fail  map[string]error
}

func (s *stubNotifier) record(name string) error {
	s.calls = append(s.calls, name)
	if s.fail != nil {
		return s.fail[name]
	}
	return nil
}

func (s *stubNotifier) SendReceipt(context.Context, Order, UserProfile) error {
	return s.record("receipt")
}

func (s *stubNotifier) SendShippingInvoice(context.Context, Order, UserProfile) error {
	return s.record("shipping_invoice")
}

func (s *stubNotifier) SendInvoiceItemsShipped(context.Context, Order, UserProfile) error {
	return s.record("invoice_shipped")
}

func (s *stubNotifier) SendFlatRateItemsShipped(context.Context, Order, UserProfile) error {
	return s.record("flat_rate_shipped")
}

func (s *stubNotifier) AlertAdmins(context.Context, Order, []UserProfile) error {
	return s.record("admin_alert")
}

type stubEvents struct {
	published []OrderEventMessage
	err       error
}

func (s *stubEvents) PublishOrderEvent(_ context.Context, msg OrderEventMessage) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.published = append(s.published, msg)
	return "msg-1", nil
}

type notFoundErr struct{}

func (notFoundErr) Error() string       { return "not found" }
func (notFoundErr) IsNotFound() bool    { return true }
func (notFoundErr) IsConflict() bool    { return false }
func (notFoundErr) IsUnavailable() bool { return false }

type conflictErr struct{}

func (conflictErr) Error() string       { return "stale update" }
func (conflictErr) IsNotFound() bool    { return false }
func (conflictErr) IsConflict() bool    { return true }
func (conflictErr) IsUnavailable() bool { return false }

type fixture struct {
	orders   *stubOrderRepo
	products *stubProductRepo
	users    *stubUserRepo
	gateway  *stubGateway
	notifier *stubNotifier
	events   *stubEvents
	service  OrderService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	sale := int64(12000)
	f := &fixture{
		orders: &stubOrderRepo{},
		products: &stubProductRepo{
			products: map[string]domain.Product{
				"prod_armoire": {
					ID: "prod_armoire", Slug: "victorian-armoire", Name: "Victorian armoire",
					Price: 80000, ShippingClass: domain.ShippingInvoiceRequired, CountInStock: 1,
				},
				"prod_candles": {
					ID: "prod_candles", Slug: "brass-candlesticks", Name: "Brass candlesticks",
					Price: 15000, SalePrice: &sale, ShippingCharge: 1200,
					ShippingClass: domain.ShippingFlatRate, CountInStock: 4,
				},
				"prod_watch": {
					ID: "prod_watch", Slug: "pocket-watch", Name: "Pocket watch",
					Price: 9000, ShippingClass: domain.ShippingFreeIncluded, CountInStock: 2,
				},
			},
			stock: map[string]int{"prod_armoire": 1, "prod_candles": 4, "prod_watch": 2},
		},
		users: &stubUserRepo{
			users: map[string]domain.UserProfile{
				"user-1": {ID: "user-1", Name: "Ada", Email: "ada@example.com"},
			},
			admins: []domain.UserProfile{{ID: "admin-1", Email: "ops@example.com"}},
		},
		gateway:  &stubGateway{},
		notifier: &stubNotifier{},
		events:   &stubEvents{},
	}

	counter := 0
	service, err := NewOrderService(OrderServiceDeps{
		Orders:   f.orders,
		Products: f.products,
		Users:    f.users,
		Gateway:  f.gateway,
		Notifier: f.notifier,
		Tax:      tax.NewEstimator(nil),
		Events:   f.events,
		Clock:    func() time.Time { return time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC) },
		IDGenerator: func() string {
			counter++
			return fmt.Sprintf("01JTESTORDER%04d", counter)
		},
	})
	if err != nil {
		t.Fatalf("new order service: %v", err)
	}
	f.service = service
	return f
}

func validAddress() ShippingAddress {
	return ShippingAddress{
		FullName:   "Ada Lovelace",
		Address:    "12 Main St",
		City:       "Pasadena",
		County:     "Los Angeles",
		State:      "CA",
		PostalCode: "91101",
		Country:    "US",
	}
}

func TestCreateRepricesFromCatalog(t *testing.T) {
	f := newFixture(t)

	order, err := f.service.Create(context.Background(), CreateOrderCommand{
		UserID: "user-1",
		Items: []CreateOrderItemInput{
			{ProductID: "prod_armoire", Quantity: 1},
			{ProductID: "prod_candles", Quantity: 2},
		},
		ShippingAddress: validAddress(),
		PaymentMethod:   domain.PaymentMethodStripe,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// 80000 + 2*12000 (sale price wins over 15000 list).
	if order.Amounts.Items != 104000 {
		t.Fatalf("items total = %d, want 104000", order.Amounts.Items)
	}
	// Only the flat-rate candlesticks carry an up-front charge.
	if order.Amounts.Shipping != 2400 {
		t.Fatalf("shipping = %d, want 2400", order.Amounts.Shipping)
	}
	// CA default 7.25% plus LA county 2.25% on the items subtotal.
	if order.Amounts.TaxRate != 0.095 {
		t.Fatalf("tax rate = %v, want 0.095", order.Amounts.TaxRate)
	}
	if order.Amounts.Tax != 9880 {
		t.Fatalf("tax = %d, want 9880", order.Amounts.Tax)
	}
	if order.Amounts.Total != 104000+2400+9880 {
		t.Fatalf("total = %d", order.Amounts.Total)
	}
	if order.ProcessorOrderID == "" {
		t.Fatalf("expected processor order id")
	}
	if order.OrderName != "Victorian armoire" {
		t.Fatalf("order name = %q, want first item name", order.OrderName)
	}
	if len(f.orders.inserted) != 1 {
		t.Fatalf("expected one insert, got %d", len(f.orders.inserted))
	}
	if len(f.events.published) != 1 || f.events.published[0].EventType != "order.created" {
		t.Fatalf("expected order.created event, got %#v", f.events.published)
	}
}

func TestCreateIgnoresClientPricing(t *testing.T) {
	f := newFixture(t)

	order, err := f.service.Create(context.Background(), CreateOrderCommand{
		UserID:          "user-1",
		Items:           []CreateOrderItemInput{{ProductID: "prod_watch", Quantity: 1}},
		ShippingAddress: validAddress(),
		PaymentMethod:   domain.PaymentMethodStripe,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if order.Items[0].UnitPrice != 9000 {
		t.Fatalf("unit price = %d, want catalog price 9000", order.Items[0].UnitPrice)
	}
	if order.Items[0].ShippingClass != domain.ShippingFreeIncluded {
		t.Fatalf("shipping class must come from the catalog")
	}
}

func TestCreateAbortsWhenProcessorFails(t *testing.T) {
	f := newFixture(t)
	f.gateway.registerFn = func(context.Context, string, payments.RegistrationRequest) (payments.Registration, error) {
		return payments.Registration{}, &payments.ProviderError{Provider: "stripe", Stage: payments.StageRegistration, Err: errors.New("api down")}
	}

	_, err := f.service.Create(context.Background(), CreateOrderCommand{
		UserID:          "user-1",
		Items:           []CreateOrderItemInput{{ProductID: "prod_watch", Quantity: 1}},
		ShippingAddress: validAddress(),
		PaymentMethod:   domain.PaymentMethodStripe,
	})
	if !errors.Is(err, ErrPaymentProvider) {
		t.Fatalf("expected ErrPaymentProvider, got %v", err)
	}
	if len(f.orders.inserted) != 0 {
		t.Fatalf("order must not be stored when registration fails")
	}
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		cmd  CreateOrderCommand
		want error
	}{
		{
			name: "missing user",
			cmd:  CreateOrderCommand{Items: []CreateOrderItemInput{{ProductID: "prod_watch", Quantity: 1}}, ShippingAddress: validAddress(), PaymentMethod: domain.PaymentMethodStripe},
			want: ErrOrderInvalidInput,
		},
		{
			name: "no items",
			cmd:  CreateOrderCommand{UserID: "user-1", ShippingAddress: validAddress(), PaymentMethod: domain.PaymentMethodStripe},
			want: ErrOrderInvalidInput,
		},
		{
			name: "unknown payment method",
			cmd:  CreateOrderCommand{UserID: "user-1", Items: []CreateOrderItemInput{{ProductID: "prod_watch", Quantity: 1}}, ShippingAddress: validAddress(), PaymentMethod: "bitcoin"},
			want: ErrOrderInvalidInput,
		},
		{
			name: "incomplete address",
			cmd: CreateOrderCommand{UserID: "user-1", Items: []CreateOrderItemInput{{ProductID: "prod_watch", Quantity: 1}},
				ShippingAddress: ShippingAddress{FullName: "Ada"}, PaymentMethod: domain.PaymentMethodStripe},
			want: ErrMissingShippingDetails,
		},
		{
			name: "unknown product",
			cmd: CreateOrderCommand{UserID: "user-1", Items: []CreateOrderItemInput{{ProductID: "prod_ghost", Quantity: 1}},
				ShippingAddress: validAddress(), PaymentMethod: domain.PaymentMethodStripe},
			want: ErrProductNotFound,
		},
		{
			name: "zero quantity",
			cmd: CreateOrderCommand{UserID: "user-1", Items: []CreateOrderItemInput{{ProductID: "prod_watch", Quantity: 0}},
				ShippingAddress: validAddress(), PaymentMethod: domain.PaymentMethodStripe},
			want: ErrOrderInvalidInput,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.service.Create(ctx, tc.cmd)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func paidableOrder() domain.Order {
	return domain.Order{
		ID:            "ord_1",
		UserID:        "user-1",
		OrderName:     "Victorian armoire",
		PaymentMethod: domain.PaymentMethodStripe,
		Items: []domain.OrderItem{
			{ProductRef: "prod_armoire", Name: "Victorian armoire", Quantity: 1, UnitPrice: 80000, ShippingClass: domain.ShippingInvoiceRequired},
			{ProductRef: "prod_candles", Name: "Brass candlesticks", Quantity: 2, UnitPrice: 15000, ShippingCharge: 1200, ShippingClass: domain.ShippingFlatRate},
		},
		Amounts: domain.OrderAmounts{Items: 110000, Shipping: 2400, Tax: 10450, Total: 122850},
	}
}

func TestCaptureDecrementsStockAndRunsEffects(t *testing.T) {
	f := newFixture(t)
	stored := paidableOrder()
	f.orders.findByIDFn = func(context.Context, string) (domain.Order, error) { return stored, nil }

	result, err := f.service.Capture(context.Background(), CaptureOrderCommand{
		OrderID: "ord_1",
		UserID:  "user-1",
		Result:  PaymentResultInput{ExternalID: "pi_abc", Status: "succeeded", EmailAddress: "ada@example.com"},
	})
	if err != nil {
		t.Fatalf("capture: %v", err)
	}

	if !result.Order.Paid || result.Order.PaidAt == nil {
		t.Fatalf("expected order marked paid")
	}
	if result.Order.PaymentResult == nil || result.Order.PaymentResult.ExternalID != "pi_abc" {
		t.Fatalf("expected payment result recorded")
	}
	if len(f.products.decrements) != 2 {
		t.Fatalf("expected two stock decrements, got %v", f.products.decrements)
	}
	if f.products.stock["prod_armoire"] != 0 || f.products.stock["prod_candles"] != 2 {
		t.Fatalf("unexpected stock after capture: %v", f.products.stock)
	}

	if len(result.Effects) != 3 {
		t.Fatalf("expected three effects, got %d", len(result.Effects))
	}
	for _, effect := range result.Effects {
		if !effect.OK {
			t.Fatalf("effect %s failed: %s", effect.Name, effect.Error)
		}
	}
	if strings.Join(f.notifier.calls, ",") != "receipt,admin_alert" {
		t.Fatalf("unexpected notifier calls: %v", f.notifier.calls)
	}
	if len(f.events.published) != 1 || f.events.published[0].EventType != "order.paid" {
		t.Fatalf("expected order.paid event")
	}
}

func TestCaptureStockFloorsAtZero(t *testing.T) {
	f := newFixture(t)
	stored := paidableOrder()
	stored.Items[1].Quantity = 10
	f.orders.findByIDFn = func(context.Context, string) (domain.Order, error) { return stored, nil }

	if _, err := f.service.Capture(context.Background(), CaptureOrderCommand{
		OrderID: "ord_1", UserID: "user-1",
		Result: PaymentResultInput{ExternalID: "pi_abc"},
	}); err != nil {
		t.Fatalf("capture: %v", err)
	}
	if f.products.stock["prod_candles"] != 0 {
		t.Fatalf("stock must floor at zero, got %d", f.products.stock["prod_candles"])
	}
}

func TestCaptureEffectFailureDoesNotFailCall(t *testing.T) {
	f := newFixture(t)
	f.notifier.fail = map[string]error{"receipt": errors.New("smtp down")}
	stored := paidableOrder()
	f.orders.findByIDFn = func(context.Context, string) (domain.Order, error) { return stored, nil }

	result, err := f.service.Capture(context.Background(), CaptureOrderCommand{
		OrderID: "ord_1", UserID: "user-1",
		Result: PaymentResultInput{ExternalID: "pi_abc"},
	})
	if err != nil {
		t.Fatalf("capture should succeed despite effect failure: %v", err)
	}
	if result.Effects[0].OK || result.Effects[0].Error == "" {
		t.Fatalf("expected receipt effect failure recorded, got %#v", result.Effects[0])
	}
	if !result.Effects[1].OK {
		t.Fatalf("later effects must still run")
	}
}

func TestCaptureAlreadyPaidConflicts(t *testing.T) {
	f := newFixture(t)
	stored := paidableOrder()
	stored.Paid = true
	f.orders.findByIDFn = func(context.Context, string) (domain.Order, error) { return stored, nil }

	_, err := f.service.Capture(context.Background(), CaptureOrderCommand{
		OrderID: "ord_1", UserID: "user-1",
		Result: PaymentResultInput{ExternalID: "pi_abc"},
	})
	if !errors.Is(err, ErrOrderConflict) {
		t.Fatalf("expected ErrOrderConflict, got %v", err)
	}
	if len(f.products.decrements) != 0 {
		t.Fatalf("stock must not move for an already paid order")
	}
}

func TestCaptureHidesForeignOrders(t *testing.T) {
	f := newFixture(t)
	stored := paidableOrder()
	f.orders.findByIDFn = func(context.Context, string) (domain.Order, error) { return stored, nil }

	_, err := f.service.Capture(context.Background(), CaptureOrderCommand{
		OrderID: "ord_1", UserID: "someone-else",
		Result: PaymentResultInput{ExternalID: "pi_abc"},
	})
	if !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound for foreign order, got %v", err)
	}
}

func TestCaptureStaleUpdateConflicts(t *testing.T) {
	f := newFixture(t)
	stored := paidableOrder()
	f.orders.findByIDFn = func(context.Context, string) (domain.Order, error) { return stored, nil }
	f.orders.updateFn = func(context.Context, domain.Order) (domain.Order, error) {
		return domain.Order{}, conflictErr{}
	}

	_, err := f.service.Capture(context.Background(), CaptureOrderCommand{
		OrderID: "ord_1", UserID: "user-1",
		Result: PaymentResultInput{ExternalID: "pi_abc"},
	})
	if !errors.Is(err, ErrOrderConflict) {
		t.Fatalf("expected ErrOrderConflict on stale update, got %v", err)
	}
}

func TestSendShippingInvoiceFlow(t *testing.T) {
	f := newFixture(t)
	stored := paidableOrder()
	stored.Paid = true
	f.orders.findByIDFn = func(context.Context, string) (domain.Order, error) { return stored, nil }

	order, err := f.service.SendShippingInvoice(context.Background(), SendShippingInvoiceCommand{
		OrderID:       "ord_1",
		ShippingPrice: 7500,
	})
	if err != nil {
		t.Fatalf("send shipping invoice: %v", err)
	}

	if len(f.gateway.customers) != 1 || f.gateway.customers[0].Email != "ada@example.com" {
		t.Fatalf("expected customer created with buyer email, got %#v", f.gateway.customers)
	}
	if len(f.gateway.invoices) != 1 || f.gateway.invoices[0].Amount != 7500 {
		t.Fatalf("expected invoice for 7500, got %#v", f.gateway.invoices)
	}
	if !order.ShippingInvoice.Sent || order.ShippingInvoice.URL != "https://pay.example/in_1" {
		t.Fatalf("expected invoice recorded, got %#v", order.ShippingInvoice)
	}
	if order.Amounts.SeparateShipping != 7500 {
		t.Fatalf("separate shipping = %d, want 7500", order.Amounts.SeparateShipping)
	}
	if order.Amounts.Total != 110000+2400+10450+7500 {
		t.Fatalf("total = %d, want %d", order.Amounts.Total, 110000+2400+10450+7500)
	}
	if strings.Join(f.notifier.calls, ",") != "shipping_invoice" {
		t.Fatalf("expected invoice email, got %v", f.notifier.calls)
	}
}

func TestSendShippingInvoiceGuardsResend(t *testing.T) {
	f := newFixture(t)
	stored := paidableOrder()
	stored.Paid = true
	stored.ShippingInvoice = domain.ShippingInvoice{ID: "in_1", URL: "https://pay.example/in_1", Sent: true}
	f.orders.findByIDFn = func(context.Context, string) (domain.Order, error) { return stored, nil }

	_, err := f.service.SendShippingInvoice(context.Background(), SendShippingInvoiceCommand{
		OrderID:       "ord_1",
		ShippingPrice: 7500,
	})
	if !errors.Is(err, ErrInvoiceAlreadySent) {
		t.Fatalf("expected ErrInvoiceAlreadySent, got %v", err)
	}
	if len(f.gateway.customers) != 0 {
		t.Fatalf("no processor calls expected when invoice already sent")
	}
}

func TestSendShippingInvoiceProcessorFailureAborts(t *testing.T) {
	f := newFixture(t)
	stored := paidableOrder()
	stored.Paid = true
	f.orders.findByIDFn = func(context.Context, string) (domain.Order, error) { return stored, nil }
	f.gateway.invoiceFn = func(context.Context, string, payments.InvoiceRequest) (payments.Invoice, error) {
		return payments.Invoice{}, &payments.ProviderError{Provider: "stripe", Stage: payments.StageInvoiceFinalize, Err: errors.New("boom")}
	}

	_, err := f.service.SendShippingInvoice(context.Background(), SendShippingInvoiceCommand{
		OrderID:       "ord_1",
		ShippingPrice: 7500,
	})
	if !errors.Is(err, ErrPaymentProvider) {
		t.Fatalf("expected ErrPaymentProvider, got %v", err)
	}
	if len(f.orders.updated) != 0 {
		t.Fatalf("order must not be updated when the processor fails")
	}
}

func TestSendShippingInvoiceRequiresPositivePrice(t *testing.T) {
	f := newFixture(t)
	_, err := f.service.SendShippingInvoice(context.Background(), SendShippingInvoiceCommand{OrderID: "ord_1"})
	if !errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("expected ErrOrderInvalidInput, got %v", err)
	}
}

func TestSendShippingInvoiceRequiresPaidOrder(t *testing.T) {
	f := newFixture(t)
	stored := paidableOrder()
	f.orders.findByIDFn = func(context.Context, string) (domain.Order, error) { return stored, nil }

	_, err := f.service.SendShippingInvoice(context.Background(), SendShippingInvoiceCommand{
		OrderID:       "ord_1",
		ShippingPrice: 7500,
	})
	if !errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("expected rejection for unpaid order, got %v", err)
	}
	if len(f.gateway.customers) != 0 || len(f.gateway.invoices) != 0 {
		t.Fatalf("no processor calls expected before checkout payment completes")
	}
	if len(f.orders.updated) != 0 {
		t.Fatalf("order must not be updated")
	}
}

func TestMarkShippingInvoicePaidIsIdempotent(t *testing.T) {
	f := newFixture(t)
	paidAt := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	stored := paidableOrder()
	stored.ShippingInvoice = domain.ShippingInvoice{ID: "in_1", URL: "https://pay.example/in_1", Sent: true, Paid: true, PaidAt: &paidAt}
	f.orders.findByIDFn = func(context.Context, string) (domain.Order, error) { return stored, nil }

	order, err := f.service.MarkShippingInvoicePaid(context.Background(), MarkInvoicePaidCommand{OrderID: "ord_1"})
	if err != nil {
		t.Fatalf("mark invoice paid: %v", err)
	}
	if len(f.orders.updated) != 0 {
		t.Fatalf("repeat webhook delivery must not write")
	}
	if order.ShippingInvoice.PaidAt == nil || !order.ShippingInvoice.PaidAt.Equal(paidAt) {
		t.Fatalf("original paid timestamp must survive")
	}
}

func TestMarkShippingInvoicePaidRecordsPayment(t *testing.T) {
	f := newFixture(t)
	stored := paidableOrder()
	stored.ShippingInvoice = domain.ShippingInvoice{ID: "in_1", URL: "https://pay.example/in_1", Sent: true}
	f.orders.findByIDFn = func(context.Context, string) (domain.Order, error) { return stored, nil }

	order, err := f.service.MarkShippingInvoicePaid(context.Background(), MarkInvoicePaidCommand{OrderID: "ord_1"})
	if err != nil {
		t.Fatalf("mark invoice paid: %v", err)
	}
	if !order.ShippingInvoice.Paid || order.ShippingInvoice.PaidAt == nil {
		t.Fatalf("expected invoice marked paid")
	}
	if len(f.events.published) != 1 || f.events.published[0].EventType != "order.shipping_invoice.paid" {
		t.Fatalf("expected invoice paid event")
	}
}

func TestMarkShippingInvoicePaidNeedsOnlyTheOrder(t *testing.T) {
	f := newFixture(t)
	stored := paidableOrder()
	f.orders.findByIDFn = func(context.Context, string) (domain.Order, error) { return stored, nil }

	order, err := f.service.MarkShippingInvoicePaid(context.Background(), MarkInvoicePaidCommand{OrderID: "ord_1"})
	if err != nil {
		t.Fatalf("mark invoice paid: %v", err)
	}
	if !order.ShippingInvoice.Paid || order.ShippingInvoice.PaidAt == nil {
		t.Fatalf("processor callback must record payment even before an invoice is raised")
	}
}

func TestMarkInvoiceItemsShippedGatedOnInvoice(t *testing.T) {
	f := newFixture(t)
	stored := paidableOrder()
	stored.Paid = true
	stored.ShippingInvoice = domain.ShippingInvoice{ID: "in_1", URL: "https://pay.example/in_1", Sent: true}
	f.orders.findByIDFn = func(context.Context, string) (domain.Order, error) { return stored, nil }

	days := 10
	_, err := f.service.MarkInvoiceItemsShipped(context.Background(), MarkShippedCommand{
		OrderID:        "ord_1",
		CarrierName:    "Freight Co",
		TrackingNumber: "FR-778899",
		DeliveryDays:   &days,
	})
	if !errors.Is(err, ErrInvoiceUnpaid) {
		t.Fatalf("expected ErrInvoiceUnpaid while hosted invoice outstanding, got %v", err)
	}

	stored.ShippingInvoice.Paid = true
	order, err := f.service.MarkInvoiceItemsShipped(context.Background(), MarkShippedCommand{
		OrderID:        "ord_1",
		CarrierName:    "Freight Co",
		TrackingNumber: "FR-778899",
		DeliveryDays:   &days,
	})
	if err != nil {
		t.Fatalf("mark invoice shipped: %v", err)
	}
	if !order.InvoiceShipment.Shipped {
		t.Fatalf("expected invoice track shipped")
	}
	if order.FullyShipped {
		t.Fatalf("standard track still pending, order must not be fully shipped")
	}
	if strings.Join(f.notifier.calls, ",") != "invoice_shipped" {
		t.Fatalf("expected invoice shipment email, got %v", f.notifier.calls)
	}
}

func TestMarkShippedRequiresAllShipmentFields(t *testing.T) {
	f := newFixture(t)
	stored := paidableOrder()
	stored.Paid = true
	stored.ShippingInvoice = domain.ShippingInvoice{ID: "in_1", Sent: true, Paid: true}
	f.orders.findByIDFn = func(context.Context, string) (domain.Order, error) { return stored, nil }

	days := 5
	tests := []struct {
		name string
		cmd  MarkShippedCommand
	}{
		{
			name: "no carrier",
			cmd:  MarkShippedCommand{OrderID: "ord_1", TrackingNumber: "1Z999", DeliveryDays: &days},
		},
		{
			name: "no tracking number",
			cmd:  MarkShippedCommand{OrderID: "ord_1", CarrierName: "UPS", DeliveryDays: &days},
		},
		{
			name: "no delivery days",
			cmd:  MarkShippedCommand{OrderID: "ord_1", CarrierName: "UPS", TrackingNumber: "1Z999"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := f.service.MarkFlatRateItemsShipped(context.Background(), tc.cmd); !errors.Is(err, ErrMissingShippingDetails) {
				t.Fatalf("flat rate: expected ErrMissingShippingDetails, got %v", err)
			}
			if _, err := f.service.MarkInvoiceItemsShipped(context.Background(), tc.cmd); !errors.Is(err, ErrMissingShippingDetails) {
				t.Fatalf("invoice: expected ErrMissingShippingDetails, got %v", err)
			}
			if len(f.orders.updated) != 0 {
				t.Fatalf("incomplete shipment details must not ship the track")
			}
		})
	}
}

func TestFullyShippedNeedsBothTracks(t *testing.T) {
	f := newFixture(t)
	days := 3
	stored := paidableOrder()
	stored.Paid = true
	stored.ShippingInvoice = domain.ShippingInvoice{ID: "in_1", URL: "https://pay.example/in_1", Sent: true, Paid: true}
	shippedAt := time.Date(2026, 3, 13, 0, 0, 0, 0, time.UTC)
	stored.InvoiceShipment = domain.ShipmentTrack{Shipped: true, ShippedAt: &shippedAt, CarrierName: "Freight Co"}
	f.orders.findByIDFn = func(context.Context, string) (domain.Order, error) { return stored, nil }

	order, err := f.service.MarkFlatRateItemsShipped(context.Background(), MarkShippedCommand{
		OrderID:        "ord_1",
		CarrierName:    "UPS",
		TrackingNumber: "1Z4567",
		DeliveryDays:   &days,
	})
	if err != nil {
		t.Fatalf("mark flat rate shipped: %v", err)
	}
	if !order.FullyShipped {
		t.Fatalf("both tracks shipped, order must be fully shipped")
	}
	if strings.Join(f.notifier.calls, ",") != "flat_rate_shipped" {
		t.Fatalf("expected flat rate shipment email, got %v", f.notifier.calls)
	}
}

func TestMarkFlatRateShippedRequiresPayment(t *testing.T) {
	f := newFixture(t)
	stored := paidableOrder()
	f.orders.findByIDFn = func(context.Context, string) (domain.Order, error) { return stored, nil }

	days := 4
	_, err := f.service.MarkFlatRateItemsShipped(context.Background(), MarkShippedCommand{
		OrderID:        "ord_1",
		CarrierName:    "UPS",
		TrackingNumber: "1Z4567",
		DeliveryDays:   &days,
	})
	if !errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("expected rejection for unpaid order, got %v", err)
	}
}

func TestGetScopesToOwner(t *testing.T) {
	f := newFixture(t)
	stored := paidableOrder()
	f.orders.findByIDFn = func(context.Context, string) (domain.Order, error) { return stored, nil }

	if _, err := f.service.Get(context.Background(), GetOrderQuery{OrderID: "ord_1", UserID: "user-1"}); err != nil {
		t.Fatalf("owner read: %v", err)
	}
	if _, err := f.service.Get(context.Background(), GetOrderQuery{OrderID: "ord_1", UserID: "intruder"}); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("foreign read must look like not-found, got %v", err)
	}
	if _, err := f.service.Get(context.Background(), GetOrderQuery{OrderID: "ord_1", UserID: "intruder", Admin: true}); err != nil {
		t.Fatalf("admin read: %v", err)
	}
}

func TestListMineFiltersByUser(t *testing.T) {
	f := newFixture(t)
	var captured repositories.OrderListFilter
	f.orders.listFn = func(_ context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
		captured = filter
		return domain.CursorPage[domain.Order]{Items: []domain.Order{paidableOrder()}}, nil
	}

	page, err := f.service.ListMine(context.Background(), ListMineQuery{UserID: "user-1", Pagination: Pagination{PageSize: 10}})
	if err != nil {
		t.Fatalf("list mine: %v", err)
	}
	if captured.UserID != "user-1" {
		t.Fatalf("expected user filter, got %#v", captured)
	}
	if len(page.Items) != 1 {
		t.Fatalf("expected one order")
	}
}
