package notifications

import (
	"context"
	"errors"
	"fmt"
	"strings"

	domain "github.com/sweetwater-antiques/api/internal/domain"
)

// Logger receives structured events from the notifier.
type Logger func(ctx context.Context, event string, fields map[string]any)

// EmailNotifierDeps wires the transport used by the notifier.
type EmailNotifierDeps struct {
	Mailer Mailer
	Logger Logger
}

// EmailNotifier renders order notifications and delivers them over email,
// including SMS alerts sent through carrier email gateways.
type EmailNotifier struct {
	mailer Mailer
	logger Logger
}

// NewEmailNotifier validates dependencies and constructs the notifier.
func NewEmailNotifier(deps EmailNotifierDeps) (*EmailNotifier, error) {
	if deps.Mailer == nil {
		return nil, errors.New("notifications: mailer is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &EmailNotifier{mailer: deps.Mailer, logger: logger}, nil
}

// SendReceipt emails the payment receipt listing every item on the order.
func (n *EmailNotifier) SendReceipt(ctx context.Context, order domain.Order, recipient domain.UserProfile) error {
	if strings.TrimSpace(recipient.Email) == "" {
		return errors.New("notifications: receipt recipient email is required")
	}
	body, err := renderOrderEmail("receipt", buildEmailData(order, recipient.Name, order.Items))
	if err != nil {
		return err
	}
	return n.deliver(ctx, "order.receipt", Email{
		To:      []string{recipient.Email},
		Subject: fmt.Sprintf("Receipt for order %s", order.OrderName),
		Body:    body,
	})
}

// SendShippingInvoice emails the hosted invoice link for the freight items.
func (n *EmailNotifier) SendShippingInvoice(ctx context.Context, order domain.Order, recipient domain.UserProfile) error {
	if strings.TrimSpace(recipient.Email) == "" {
		return errors.New("notifications: invoice recipient email is required")
	}
	if strings.TrimSpace(order.ShippingInvoice.URL) == "" {
		return errors.New("notifications: shipping invoice url is required")
	}
	body, err := renderOrderEmail("shipping_invoice", buildEmailData(order, recipient.Name, order.InvoiceItems()))
	if err != nil {
		return err
	}
	return n.deliver(ctx, "order.shipping_invoice", Email{
		To:      []string{recipient.Email},
		Subject: fmt.Sprintf("Shipping invoice for order %s", order.OrderName),
		Body:    body,
	})
}

// SendInvoiceItemsShipped emails the shipment notice for the freight track.
func (n *EmailNotifier) SendInvoiceItemsShipped(ctx context.Context, order domain.Order, recipient domain.UserProfile) error {
	if strings.TrimSpace(recipient.Email) == "" {
		return errors.New("notifications: shipment recipient email is required")
	}
	data := applyTrack(buildEmailData(order, recipient.Name, order.InvoiceItems()), order.InvoiceShipment)
	body, err := renderOrderEmail("invoice_items_shipped", data)
	if err != nil {
		return err
	}
	return n.deliver(ctx, "order.invoice_items_shipped", Email{
		To:      []string{recipient.Email},
		Subject: fmt.Sprintf("Your freight items from order %s have shipped", order.OrderName),
		Body:    body,
	})
}

// SendFlatRateItemsShipped emails the shipment notice for the standard track.
// Only items that actually travel with the flat-rate shipment are listed.
func (n *EmailNotifier) SendFlatRateItemsShipped(ctx context.Context, order domain.Order, recipient domain.UserProfile) error {
	if strings.TrimSpace(recipient.Email) == "" {
		return errors.New("notifications: shipment recipient email is required")
	}
	data := applyTrack(buildEmailData(order, recipient.Name, order.FlatRateItems()), order.StandardShipment)
	body, err := renderOrderEmail("flat_rate_items_shipped", data)
	if err != nil {
		return err
	}
	return n.deliver(ctx, "order.flat_rate_items_shipped", Email{
		To:      []string{recipient.Email},
		Subject: fmt.Sprintf("Your items from order %s have shipped", order.OrderName),
		Body:    body,
	})
}

// AlertAdmins notifies staff of a paid order via carrier SMS gateways, falling
// back to plain email for admins without a gateway address. Failures for one
// admin do not block the rest.
func (n *EmailNotifier) AlertAdmins(ctx context.Context, order domain.Order, admins []domain.UserProfile) error {
	if len(admins) == 0 {
		return nil
	}

	text := fmt.Sprintf("Order %s paid: %s. Check the dashboard for fulfilment.", order.OrderName, formatMoney(order.Amounts.Total))

	var firstErr error
	for _, admin := range admins {
		to := admin.SMSGatewayAddress()
		if to == "" {
			to = strings.TrimSpace(admin.Email)
		}
		if to == "" {
			continue
		}
		err := n.deliver(ctx, "order.admin_alert", Email{
			To:      []string{to},
			Subject: "New paid order",
			Body:    text,
			Text:    true,
		})
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (n *EmailNotifier) deliver(ctx context.Context, event string, msg Email) error {
	if err := n.mailer.Send(ctx, msg); err != nil {
		n.logger(ctx, event+".failed", map[string]any{
			"recipients": len(msg.To),
			"error":      err.Error(),
		})
		return err
	}
	n.logger(ctx, event+".sent", map[string]any{
		"recipients": len(msg.To),
	})
	return nil
}
