package notifications

import (
	"context"
	"errors"
	"strings"
	"testing"

	domain "github.com/sweetwater-antiques/api/internal/domain"
)

type captureMailer struct {
	sent []Email
	err  error
}

func (m *captureMailer) Send(_ context.Context, msg Email) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func sampleOrder() domain.Order {
	sale := int64(12000)
	return domain.Order{
		ID:        "ord_01",
		OrderName: "Victorian armoire",
		Items: []domain.OrderItem{
			{Name: "Victorian armoire", Quantity: 1, UnitPrice: 80000, ShippingClass: domain.ShippingInvoiceRequired},
			{Name: "Brass candlesticks", Quantity: 2, UnitPrice: 15000, SalePrice: &sale, ShippingCharge: 1200, ShippingClass: domain.ShippingFlatRate},
			{Name: "Pocket watch", Quantity: 1, UnitPrice: 9000, ShippingClass: domain.ShippingFreeIncluded},
		},
		Amounts: domain.OrderAmounts{Items: 113000, Shipping: 2400, Tax: 8193, Total: 123593},
		ShippingInvoice: domain.ShippingInvoice{
			URL: "https://pay.example/in_123",
		},
	}
}

func newTestNotifier(t *testing.T) (*EmailNotifier, *captureMailer) {
	t.Helper()
	mailer := &captureMailer{}
	notifier, err := NewEmailNotifier(EmailNotifierDeps{Mailer: mailer})
	if err != nil {
		t.Fatalf("new notifier: %v", err)
	}
	return notifier, mailer
}

func TestSendReceiptListsAllItems(t *testing.T) {
	notifier, mailer := newTestNotifier(t)

	err := notifier.SendReceipt(context.Background(), sampleOrder(), domain.UserProfile{Name: "Ada", Email: "ada@example.com"})
	if err != nil {
		t.Fatalf("send receipt: %v", err)
	}
	if len(mailer.sent) != 1 {
		t.Fatalf("expected one email, got %d", len(mailer.sent))
	}

	body := mailer.sent[0].Body
	for _, name := range []string{"Victorian armoire", "Brass candlesticks", "Pocket watch"} {
		if !strings.Contains(body, name) {
			t.Fatalf("receipt missing item %q", name)
		}
	}
	if !strings.Contains(body, "$1235.93") {
		t.Fatalf("receipt missing total, body: %s", body)
	}
}

func TestSendShippingInvoiceFiltersToFreightItems(t *testing.T) {
	notifier, mailer := newTestNotifier(t)

	err := notifier.SendShippingInvoice(context.Background(), sampleOrder(), domain.UserProfile{Name: "Ada", Email: "ada@example.com"})
	if err != nil {
		t.Fatalf("send shipping invoice: %v", err)
	}

	body := mailer.sent[0].Body
	if !strings.Contains(body, "Victorian armoire") {
		t.Fatalf("invoice email missing freight item")
	}
	if strings.Contains(body, "Brass candlesticks") || strings.Contains(body, "Pocket watch") {
		t.Fatalf("invoice email should only list freight items, body: %s", body)
	}
	if !strings.Contains(body, "https://pay.example/in_123") {
		t.Fatalf("invoice email missing hosted url")
	}
}

func TestSendShippingInvoiceRequiresURL(t *testing.T) {
	notifier, _ := newTestNotifier(t)

	order := sampleOrder()
	order.ShippingInvoice.URL = ""
	err := notifier.SendShippingInvoice(context.Background(), order, domain.UserProfile{Email: "ada@example.com"})
	if err == nil {
		t.Fatalf("expected error when invoice url missing")
	}
}

func TestSendFlatRateItemsShippedFiltersItems(t *testing.T) {
	notifier, mailer := newTestNotifier(t)

	days := 5
	order := sampleOrder()
	order.StandardShipment = domain.ShipmentTrack{
		Shipped:        true,
		CarrierName:    "UPS",
		TrackingNumber: "1Z999",
		DeliveryDays:   &days,
	}

	err := notifier.SendFlatRateItemsShipped(context.Background(), order, domain.UserProfile{Name: "Ada", Email: "ada@example.com"})
	if err != nil {
		t.Fatalf("send flat rate shipped: %v", err)
	}

	body := mailer.sent[0].Body
	if !strings.Contains(body, "Brass candlesticks") {
		t.Fatalf("flat-rate email missing flat-rate item")
	}
	if strings.Contains(body, "Victorian armoire") {
		t.Fatalf("flat-rate email must not list freight items")
	}
	// Free-included items without a shipping charge ride along silently.
	if strings.Contains(body, "Pocket watch") {
		t.Fatalf("flat-rate email must not list free-included items without charge")
	}
	if !strings.Contains(body, "UPS") || !strings.Contains(body, "1Z999") {
		t.Fatalf("flat-rate email missing carrier details, body: %s", body)
	}
}

func TestAlertAdminsPrefersSMSGateway(t *testing.T) {
	notifier, mailer := newTestNotifier(t)

	admins := []domain.UserProfile{
		{Name: "Ops", Email: "ops@example.com", Phone: "5551234567", Carrier: "vtext.com"},
		{Name: "Backup", Email: "backup@example.com"},
		{Name: "NoContact"},
	}

	if err := notifier.AlertAdmins(context.Background(), sampleOrder(), admins); err != nil {
		t.Fatalf("alert admins: %v", err)
	}
	if len(mailer.sent) != 2 {
		t.Fatalf("expected two alerts, got %d", len(mailer.sent))
	}
	if mailer.sent[0].To[0] != "5551234567@vtext.com" {
		t.Fatalf("expected sms gateway address, got %q", mailer.sent[0].To[0])
	}
	if mailer.sent[1].To[0] != "backup@example.com" {
		t.Fatalf("expected email fallback, got %q", mailer.sent[1].To[0])
	}
	if !mailer.sent[0].Text {
		t.Fatalf("sms alerts should be plain text")
	}
}

func TestAlertAdminsReportsFirstError(t *testing.T) {
	mailer := &captureMailer{err: errors.New("smtp down")}
	notifier, err := NewEmailNotifier(EmailNotifierDeps{Mailer: mailer})
	if err != nil {
		t.Fatalf("new notifier: %v", err)
	}

	err = notifier.AlertAdmins(context.Background(), sampleOrder(), []domain.UserProfile{{Email: "ops@example.com"}})
	if err == nil {
		t.Fatalf("expected delivery error")
	}
}

func TestFormatMoney(t *testing.T) {
	cases := map[int64]string{
		0:      "$0.00",
		5:      "$0.05",
		123593: "$1235.93",
		-250:   "-$2.50",
	}
	for cents, want := range cases {
		if got := formatMoney(cents); got != want {
			t.Fatalf("formatMoney(%d) = %q, want %q", cents, got, want)
		}
	}
}
