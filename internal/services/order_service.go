package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/sweetwater-antiques/api/internal/domain"
	"github.com/sweetwater-antiques/api/internal/payments"
	"github.com/sweetwater-antiques/api/internal/repositories"
)

const (
	orderEventCreated     = "order.created"
	orderEventPaid        = "order.paid"
	orderEventInvoiceSent = "order.shipping_invoice.sent"
	orderEventInvoicePaid = "order.shipping_invoice.paid"
	orderEventShipped     = "order.shipped"

	orderIDPrefix = "ord_"
	orderCurrency = "usd"
)

var (
	// ErrOrderInvalidInput signals the caller provided invalid data.
	ErrOrderInvalidInput = errors.New("order: invalid input")
	// ErrOrderNotFound indicates the order could not be located.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrProductNotFound indicates a referenced catalog product does not exist.
	ErrProductNotFound = errors.New("order: product not found")
	// ErrOrderConflict indicates optimistic concurrency conflicts or duplicates.
	ErrOrderConflict = errors.New("order: conflict")
	// ErrInvoiceAlreadySent guards against raising a second shipping invoice.
	ErrInvoiceAlreadySent = errors.New("order: shipping invoice already sent")
	// ErrInvoiceUnpaid blocks freight shipment while the invoice is outstanding.
	ErrInvoiceUnpaid = errors.New("order: shipping invoice unpaid")
	// ErrMissingShippingDetails indicates required shipping fields are absent.
	ErrMissingShippingDetails = errors.New("order: missing shipping details")
	// ErrPaymentProvider wraps processor failures surfaced to callers.
	ErrPaymentProvider = errors.New("order: payment provider failure")
)

// OrderServiceDeps bundles collaborators required to construct the order service.
type OrderServiceDeps struct {
	Orders      repositories.OrderRepository
	Products    repositories.ProductRepository
	Users       repositories.UserRepository
	Gateway     PaymentGateway
	Notifier    OrderNotifier
	Tax         TaxCalculator
	Events      OrderEventPublisher
	UnitOfWork  repositories.UnitOfWork
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	orders     repositories.OrderRepository
	products   repositories.ProductRepository
	users      repositories.UserRepository
	gateway    PaymentGateway
	notifier   OrderNotifier
	tax        TaxCalculator
	events     OrderEventPublisher
	unitOfWork repositories.UnitOfWork
	clock      func() time.Time
	newID      func() string
	logger     func(context.Context, string, map[string]any)
}

// NewOrderService wires dependencies into a concrete OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.Products == nil {
		return nil, errors.New("order service: product repository is required")
	}
	if deps.Users == nil {
		return nil, errors.New("order service: user repository is required")
	}
	if deps.Gateway == nil {
		return nil, errors.New("order service: payment gateway is required")
	}
	if deps.Notifier == nil {
		return nil, errors.New("order service: notifier is required")
	}
	if deps.Tax == nil {
		return nil, errors.New("order service: tax calculator is required")
	}

	unit := deps.UnitOfWork
	if unit == nil {
		unit = noopUnitOfWork{}
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &orderService{
		orders:     deps.Orders,
		products:   deps.Products,
		users:      deps.Users,
		gateway:    deps.Gateway,
		notifier:   deps.Notifier,
		tax:        deps.Tax,
		events:     deps.Events,
		unitOfWork: unit,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		logger: logger,
	}, nil
}

func (s *orderService) Create(ctx context.Context, cmd CreateOrderCommand) (Order, error) {
	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		return Order{}, fmt.Errorf("%w: user id is required", ErrOrderInvalidInput)
	}
	if len(cmd.Items) == 0 {
		return Order{}, fmt.Errorf("%w: order must contain at least one item", ErrOrderInvalidInput)
	}
	if !cmd.PaymentMethod.Valid() {
		return Order{}, fmt.Errorf("%w: unsupported payment method %q", ErrOrderInvalidInput, cmd.PaymentMethod)
	}
	if err := validateShippingAddress(cmd.ShippingAddress); err != nil {
		return Order{}, err
	}

	now := s.now()
	orderID := s.nextOrderID()

	items, err := s.priceItems(ctx, cmd.Items)
	if err != nil {
		return Order{}, err
	}

	itemsTotal := domain.ItemsSubtotal(items)
	flatShipping := domain.FlatRateShippingTotal(items)
	estimate := s.tax.Estimate(ctx, cmd.ShippingAddress.State, cmd.ShippingAddress.County, itemsTotal)

	order := Order{
		ID:              orderID,
		UserID:          userID,
		OrderName:       items[0].Name,
		Items:           items,
		ShippingAddress: cmd.ShippingAddress,
		PaymentMethod:   cmd.PaymentMethod,
		Amounts: OrderAmounts{
			Items:    itemsTotal,
			Shipping: flatShipping,
			Tax:      estimate.Tax,
			TaxRate:  estimate.Rate,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	order.RecalculateTotal()

	// The processor must acknowledge the order before it exists on our side.
	registration, err := s.gateway.RegisterOrder(ctx, string(cmd.PaymentMethod), payments.RegistrationRequest{
		OrderID:        order.ID,
		Amount:         order.Amounts.Total,
		Currency:       orderCurrency,
		Description:    fmt.Sprintf("Order %s", order.OrderName),
		IdempotencyKey: order.ID,
	})
	if err != nil {
		return Order{}, fmt.Errorf("%w: %v", ErrPaymentProvider, err)
	}
	order.ProcessorOrderID = registration.ProcessorOrderID

	saved, err := s.orders.Insert(ctx, domain.Order(order))
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	s.publishEvent(ctx, OrderEventMessage{
		EventType:  orderEventCreated,
		OrderID:    saved.ID,
		UserID:     saved.UserID,
		Total:      saved.Amounts.Total,
		OccurredAt: now,
	})

	return Order(saved), nil
}

func (s *orderService) Get(ctx context.Context, query GetOrderQuery) (Order, error) {
	order, err := s.loadOrder(ctx, query.OrderID)
	if err != nil {
		return Order{}, err
	}
	if !query.Admin && order.UserID != strings.TrimSpace(query.UserID) {
		return Order{}, fmt.Errorf("%w: %s", ErrOrderNotFound, query.OrderID)
	}
	return order, nil
}

func (s *orderService) ListMine(ctx context.Context, query ListMineQuery) (domain.CursorPage[Order], error) {
	userID := strings.TrimSpace(query.UserID)
	if userID == "" {
		return domain.CursorPage[Order]{}, fmt.Errorf("%w: user id is required", ErrOrderInvalidInput)
	}
	page, err := s.orders.List(ctx, repositories.OrderListFilter{
		UserID:     userID,
		Pagination: query.Pagination,
	})
	if err != nil {
		return domain.CursorPage[Order]{}, s.mapRepositoryError(err)
	}
	return page, nil
}

func (s *orderService) List(ctx context.Context, query OrderListQuery) (domain.CursorPage[Order], error) {
	page, err := s.orders.List(ctx, repositories.OrderListFilter{
		PaidOnly: query.PaidOnly,
		DateRange: domain.RangeQuery[time.Time]{
			From: query.From,
			To:   query.To,
		},
		Pagination: query.Pagination,
	})
	if err != nil {
		return domain.CursorPage[Order]{}, s.mapRepositoryError(err)
	}
	return page, nil
}

func (s *orderService) Capture(ctx context.Context, cmd CaptureOrderCommand) (CaptureResult, error) {
	order, err := s.loadOrder(ctx, cmd.OrderID)
	if err != nil {
		return CaptureResult{}, err
	}
	if !cmd.Admin && order.UserID != strings.TrimSpace(cmd.UserID) {
		return CaptureResult{}, fmt.Errorf("%w: %s", ErrOrderNotFound, cmd.OrderID)
	}
	if order.Paid {
		return CaptureResult{}, fmt.Errorf("%w: order already paid", ErrOrderConflict)
	}
	if strings.TrimSpace(cmd.Result.ExternalID) == "" {
		return CaptureResult{}, fmt.Errorf("%w: payment result id is required", ErrOrderInvalidInput)
	}

	now := s.now()

	err = s.runInTx(ctx, func(txCtx context.Context) error {
		for _, item := range order.Items {
			moved, err := s.products.DecrementStock(txCtx, item.ProductRef, item.Quantity)
			if err != nil {
				return s.mapRepositoryError(err)
			}
			if moved < item.Quantity {
				s.logger(txCtx, "order.stock.floored", map[string]any{
					"order":     order.ID,
					"product":   item.ProductRef,
					"requested": item.Quantity,
					"moved":     moved,
				})
			}
		}

		order.Paid = true
		order.PaidAt = &now
		order.PaymentResult = &PaymentResult{
			ExternalID:   strings.TrimSpace(cmd.Result.ExternalID),
			Status:       strings.TrimSpace(cmd.Result.Status),
			EmailAddress: strings.TrimSpace(cmd.Result.EmailAddress),
		}
		order.UpdatedAt = now

		saved, err := s.orders.Update(txCtx, domain.Order(order))
		if err != nil {
			return s.mapRepositoryError(err)
		}
		order = Order(saved)
		return nil
	})
	if err != nil {
		return CaptureResult{}, err
	}

	// Post-commit side effects: each runs, none can roll the payment back.
	result := CaptureResult{Order: order}
	recipient := s.orderRecipient(ctx, order)
	result.Effects = append(result.Effects,
		s.runEffect(ctx, "receipt_email", func() error {
			return s.notifier.SendReceipt(ctx, order, recipient)
		}),
		s.runEffect(ctx, "admin_alert", func() error {
			admins, err := s.users.ListAdminRecipients(ctx)
			if err != nil {
				return err
			}
			return s.notifier.AlertAdmins(ctx, order, admins)
		}),
		s.runEffect(ctx, "event_publish", func() error {
			if s.events == nil {
				return nil
			}
			_, err := s.events.PublishOrderEvent(ctx, OrderEventMessage{
				EventType:  orderEventPaid,
				OrderID:    order.ID,
				UserID:     order.UserID,
				Total:      order.Amounts.Total,
				OccurredAt: now,
			})
			return err
		}),
	)

	return result, nil
}

func (s *orderService) SendShippingInvoice(ctx context.Context, cmd SendShippingInvoiceCommand) (Order, error) {
	if cmd.ShippingPrice <= 0 {
		return Order{}, fmt.Errorf("%w: shipping price must be greater than zero", ErrOrderInvalidInput)
	}

	order, err := s.loadOrder(ctx, cmd.OrderID)
	if err != nil {
		return Order{}, err
	}
	if !order.HasInvoiceItems() {
		return Order{}, fmt.Errorf("%w: order has no separately invoiced items", ErrOrderInvalidInput)
	}
	if !order.Paid {
		return Order{}, fmt.Errorf("%w: order is not paid", ErrOrderInvalidInput)
	}
	if order.ShippingInvoice.Sent {
		return Order{}, fmt.Errorf("%w: order %s", ErrInvoiceAlreadySent, order.ID)
	}

	recipient, err := s.users.FindByID(ctx, order.UserID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	customer, err := s.gateway.CreateCustomer(ctx, string(order.PaymentMethod), payments.CustomerRequest{
		Email: recipient.Email,
		Name:  recipient.Name,
		Metadata: map[string]string{
			"orderId": order.ID,
		},
	})
	if err != nil {
		return Order{}, fmt.Errorf("%w: %v", ErrPaymentProvider, err)
	}

	invoice, err := s.gateway.CreateShippingInvoice(ctx, string(order.PaymentMethod), payments.InvoiceRequest{
		CustomerID:     customer.ID,
		Amount:         cmd.ShippingPrice,
		Currency:       orderCurrency,
		Description:    fmt.Sprintf("Freight shipping for order %s", order.OrderName),
		IdempotencyKey: order.ID + ":shipping",
	})
	if err != nil {
		return Order{}, fmt.Errorf("%w: %v", ErrPaymentProvider, err)
	}

	now := s.now()
	order.Amounts.SeparateShipping = cmd.ShippingPrice
	order.RecalculateTotal()
	order.ShippingInvoice = domain.ShippingInvoice{
		ID:   invoice.ID,
		URL:  invoice.HostedURL,
		Sent: true,
	}
	order.UpdatedAt = now

	saved, err := s.orders.Update(ctx, domain.Order(order))
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	order = Order(saved)

	if err := s.notifier.SendShippingInvoice(ctx, order, recipient); err != nil {
		s.logger(ctx, "order.shipping_invoice.email.failed", map[string]any{
			"order": order.ID,
			"error": err.Error(),
		})
	}

	s.publishEvent(ctx, OrderEventMessage{
		EventType:  orderEventInvoiceSent,
		OrderID:    order.ID,
		UserID:     order.UserID,
		Total:      order.Amounts.Total,
		OccurredAt: now,
	})

	return order, nil
}

func (s *orderService) MarkShippingInvoicePaid(ctx context.Context, cmd MarkInvoicePaidCommand) (Order, error) {
	order, err := s.loadOrder(ctx, cmd.OrderID)
	if err != nil {
		return Order{}, err
	}
	if order.ShippingInvoice.Paid {
		// Webhook retries land here; the first delivery already won.
		return order, nil
	}

	now := s.now()
	order.ShippingInvoice.Paid = true
	order.ShippingInvoice.PaidAt = &now
	order.UpdatedAt = now

	saved, err := s.orders.Update(ctx, domain.Order(order))
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	order = Order(saved)

	s.publishEvent(ctx, OrderEventMessage{
		EventType:  orderEventInvoicePaid,
		OrderID:    order.ID,
		UserID:     order.UserID,
		Total:      order.Amounts.Total,
		OccurredAt: now,
	})

	return order, nil
}

func (s *orderService) MarkInvoiceItemsShipped(ctx context.Context, cmd MarkShippedCommand) (Order, error) {
	if err := validateShipment(cmd); err != nil {
		return Order{}, err
	}

	order, err := s.loadOrder(ctx, cmd.OrderID)
	if err != nil {
		return Order{}, err
	}
	if !order.HasInvoiceItems() {
		return Order{}, fmt.Errorf("%w: order has no separately invoiced items", ErrOrderInvalidInput)
	}
	if !order.Paid {
		return Order{}, fmt.Errorf("%w: order is not paid", ErrOrderInvalidInput)
	}
	if order.InvoiceUnpaid() {
		return Order{}, fmt.Errorf("%w: order %s", ErrInvoiceUnpaid, order.ID)
	}
	if order.InvoiceShipment.Shipped {
		return Order{}, fmt.Errorf("%w: freight items already shipped", ErrOrderConflict)
	}

	now := s.now()
	order.InvoiceShipment = ShipmentTrack{
		Shipped:        true,
		ShippedAt:      &now,
		DeliveryDays:   cmd.DeliveryDays,
		CarrierName:    strings.TrimSpace(cmd.CarrierName),
		TrackingNumber: strings.TrimSpace(cmd.TrackingNumber),
	}
	order.RecomputeFullyShipped()
	order.UpdatedAt = now

	saved, err := s.orders.Update(ctx, domain.Order(order))
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	order = Order(saved)

	s.notifyShipment(ctx, order, "invoice")
	return order, nil
}

func (s *orderService) MarkFlatRateItemsShipped(ctx context.Context, cmd MarkShippedCommand) (Order, error) {
	if err := validateShipment(cmd); err != nil {
		return Order{}, err
	}

	order, err := s.loadOrder(ctx, cmd.OrderID)
	if err != nil {
		return Order{}, err
	}
	if !order.HasStandardItems() {
		return Order{}, fmt.Errorf("%w: order has no standard-track items", ErrOrderInvalidInput)
	}
	if !order.Paid {
		return Order{}, fmt.Errorf("%w: order is not paid", ErrOrderInvalidInput)
	}
	if order.StandardShipment.Shipped {
		return Order{}, fmt.Errorf("%w: standard items already shipped", ErrOrderConflict)
	}

	now := s.now()
	order.StandardShipment = ShipmentTrack{
		Shipped:        true,
		ShippedAt:      &now,
		DeliveryDays:   cmd.DeliveryDays,
		CarrierName:    strings.TrimSpace(cmd.CarrierName),
		TrackingNumber: strings.TrimSpace(cmd.TrackingNumber),
	}
	order.RecomputeFullyShipped()
	order.UpdatedAt = now

	saved, err := s.orders.Update(ctx, domain.Order(order))
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	order = Order(saved)

	s.notifyShipment(ctx, order, "flat_rate")
	return order, nil
}

func (s *orderService) priceItems(ctx context.Context, inputs []CreateOrderItemInput) ([]OrderItem, error) {
	items := make([]OrderItem, 0, len(inputs))
	for _, input := range inputs {
		productID := strings.TrimSpace(input.ProductID)
		if productID == "" {
			return nil, fmt.Errorf("%w: product id is required", ErrOrderInvalidInput)
		}
		if input.Quantity <= 0 {
			return nil, fmt.Errorf("%w: quantity for %s must be greater than zero", ErrOrderInvalidInput, productID)
		}

		product, err := s.products.FindByID(ctx, productID)
		if err != nil {
			var repoErr repositories.RepositoryError
			if errors.As(err, &repoErr) && repoErr.IsNotFound() {
				return nil, fmt.Errorf("%w: %s", ErrProductNotFound, productID)
			}
			return nil, s.mapRepositoryError(err)
		}

		items = append(items, OrderItem{
			ProductRef:     product.ID,
			Slug:           product.Slug,
			Name:           product.Name,
			Image:          product.Image,
			Quantity:       input.Quantity,
			UnitPrice:      product.Price,
			SalePrice:      product.SalePrice,
			ShippingCharge: product.ShippingCharge,
			ShippingClass:  product.ShippingClass,
		})
	}
	return items, nil
}

func (s *orderService) notifyShipment(ctx context.Context, order Order, track string) {
	recipient := s.orderRecipient(ctx, order)
	var err error
	if track == "invoice" {
		err = s.notifier.SendInvoiceItemsShipped(ctx, order, recipient)
	} else {
		err = s.notifier.SendFlatRateItemsShipped(ctx, order, recipient)
	}
	if err != nil {
		s.logger(ctx, "order.shipment.email.failed", map[string]any{
			"order": order.ID,
			"track": track,
			"error": err.Error(),
		})
	}

	s.publishEvent(ctx, OrderEventMessage{
		EventType:  orderEventShipped,
		OrderID:    order.ID,
		UserID:     order.UserID,
		Total:      order.Amounts.Total,
		OccurredAt: s.now(),
	})
}

// orderRecipient resolves the notification target, falling back to the email
// captured at payment when the profile is unavailable.
func (s *orderService) orderRecipient(ctx context.Context, order Order) UserProfile {
	recipient, err := s.users.FindByID(ctx, order.UserID)
	if err != nil {
		s.logger(ctx, "order.recipient.lookup.failed", map[string]any{
			"order": order.ID,
			"user":  order.UserID,
			"error": err.Error(),
		})
		recipient = UserProfile{ID: order.UserID}
	}
	if recipient.Email == "" && order.PaymentResult != nil {
		recipient.Email = order.PaymentResult.EmailAddress
	}
	return recipient
}

func (s *orderService) runEffect(ctx context.Context, name string, fn func() error) EffectResult {
	if err := fn(); err != nil {
		s.logger(ctx, "order.effect.failed", map[string]any{
			"effect": name,
			"error":  err.Error(),
		})
		return EffectResult{Name: name, Error: err.Error()}
	}
	return EffectResult{Name: name, OK: true}
}

func (s *orderService) loadOrder(ctx context.Context, orderID string) (Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	return Order(order), nil
}

func (s *orderService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrOrderNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrOrderConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("order: repository unavailable: %w", err)
		}
	}

	return err
}

func (s *orderService) runInTx(ctx context.Context, fn func(context.Context) error) error {
	if s.unitOfWork == nil {
		return fn(ctx)
	}
	return s.unitOfWork.RunInTx(ctx, fn)
}

func (s *orderService) now() time.Time {
	return s.clock()
}

func (s *orderService) nextOrderID() string {
	return orderIDPrefix + s.newID()
}

func (s *orderService) publishEvent(ctx context.Context, event OrderEventMessage) {
	if s.events == nil {
		return
	}
	if _, err := s.events.PublishOrderEvent(ctx, event); err != nil {
		s.logger(ctx, "order.event.publish.failed", map[string]any{
			"type":  event.EventType,
			"order": event.OrderID,
			"error": err.Error(),
		})
	}
}

type noopUnitOfWork struct{}

func (noopUnitOfWork) RunInTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

func validateShippingAddress(addr ShippingAddress) error {
	switch {
	case strings.TrimSpace(addr.FullName) == "":
		return fmt.Errorf("%w: full name is required", ErrMissingShippingDetails)
	case strings.TrimSpace(addr.Address) == "":
		return fmt.Errorf("%w: street address is required", ErrMissingShippingDetails)
	case strings.TrimSpace(addr.City) == "":
		return fmt.Errorf("%w: city is required", ErrMissingShippingDetails)
	case strings.TrimSpace(addr.State) == "":
		return fmt.Errorf("%w: state is required", ErrMissingShippingDetails)
	case strings.TrimSpace(addr.PostalCode) == "":
		return fmt.Errorf("%w: postal code is required", ErrMissingShippingDetails)
	}
	return nil
}

func validateShipment(cmd MarkShippedCommand) error {
	if strings.TrimSpace(cmd.CarrierName) == "" {
		return fmt.Errorf("%w: carrier name is required", ErrMissingShippingDetails)
	}
	if strings.TrimSpace(cmd.TrackingNumber) == "" {
		return fmt.Errorf("%w: tracking number is required", ErrMissingShippingDetails)
	}
	if cmd.DeliveryDays == nil {
		return fmt.Errorf("%w: delivery days are required", ErrMissingShippingDetails)
	}
	if *cmd.DeliveryDays <= 0 {
		return fmt.Errorf("%w: delivery days must be greater than zero", ErrOrderInvalidInput)
	}
	return nil
}
