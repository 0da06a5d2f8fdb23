package notifications

import (
	"bytes"
	"fmt"
	"html/template"

	domain "github.com/sweetwater-antiques/api/internal/domain"
)

// emailData is the shared payload handed to the order email templates. Items
// is pre-filtered per message kind before rendering.
type emailData struct {
	OrderName    string
	CustomerName string
	Items        []itemLine
	ItemsTotal   string
	Shipping     string
	Tax          string
	Total        string
	InvoiceURL   string
	Carrier      string
	Tracking     string
	DeliveryDays int
}

type itemLine struct {
	Name     string
	Quantity int
	Price    string
}

var orderTemplates = template.Must(template.New("orders").Parse(`
{{define "items"}}<table>
<tr><th align="left">Item</th><th align="right">Qty</th><th align="right">Price</th></tr>
{{range .Items}}<tr><td>{{.Name}}</td><td align="right">{{.Quantity}}</td><td align="right">{{.Price}}</td></tr>
{{end}}</table>{{end}}

{{define "receipt"}}<html><body>
<p>Hi {{.CustomerName}},</p>
<p>Thank you for your purchase. We received your payment for order <b>{{.OrderName}}</b>.</p>
{{template "items" .}}
<p>Items: {{.ItemsTotal}}<br>
Shipping: {{.Shipping}}<br>
Tax: {{.Tax}}<br>
<b>Total: {{.Total}}</b></p>
<p>We will let you know as soon as your items ship.</p>
</body></html>{{end}}

{{define "shipping_invoice"}}<html><body>
<p>Hi {{.CustomerName}},</p>
<p>The following items from order <b>{{.OrderName}}</b> require freight shipping, billed separately:</p>
{{template "items" .}}
<p>Please pay the shipping invoice here: <a href="{{.InvoiceURL}}">{{.InvoiceURL}}</a></p>
<p>These items ship once the invoice is paid.</p>
</body></html>{{end}}

{{define "invoice_items_shipped"}}<html><body>
<p>Hi {{.CustomerName}},</p>
<p>The freight items from order <b>{{.OrderName}}</b> are on their way:</p>
{{template "items" .}}
<p>Carrier: {{.Carrier}}{{if .Tracking}}<br>Tracking: {{.Tracking}}{{end}}{{if .DeliveryDays}}<br>Estimated delivery: {{.DeliveryDays}} days{{end}}</p>
</body></html>{{end}}

{{define "flat_rate_items_shipped"}}<html><body>
<p>Hi {{.CustomerName}},</p>
<p>Items from order <b>{{.OrderName}}</b> have shipped:</p>
{{template "items" .}}
<p>Carrier: {{.Carrier}}{{if .Tracking}}<br>Tracking: {{.Tracking}}{{end}}{{if .DeliveryDays}}<br>Estimated delivery: {{.DeliveryDays}} days{{end}}</p>
</body></html>{{end}}
`))

func renderOrderEmail(kind string, data emailData) (string, error) {
	var buf bytes.Buffer
	if err := orderTemplates.ExecuteTemplate(&buf, kind, data); err != nil {
		return "", fmt.Errorf("notifications: render %s: %w", kind, err)
	}
	return buf.String(), nil
}

func buildEmailData(order domain.Order, customerName string, items []domain.OrderItem) emailData {
	data := emailData{
		OrderName:    order.OrderName,
		CustomerName: customerName,
		ItemsTotal:   formatMoney(order.Amounts.Items),
		Shipping:     formatMoney(order.Amounts.Shipping),
		Tax:          formatMoney(order.Amounts.Tax),
		Total:        formatMoney(order.Amounts.Total),
		InvoiceURL:   order.ShippingInvoice.URL,
	}
	for _, item := range items {
		data.Items = append(data.Items, itemLine{
			Name:     item.Name,
			Quantity: item.Quantity,
			Price:    formatMoney(item.LineTotal()),
		})
	}
	return data
}

func applyTrack(data emailData, track domain.ShipmentTrack) emailData {
	data.Carrier = track.CarrierName
	data.Tracking = track.TrackingNumber
	if track.DeliveryDays != nil {
		data.DeliveryDays = *track.DeliveryDays
	}
	return data
}

// formatMoney renders an amount in cents as dollars.
func formatMoney(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s$%d.%02d", sign, cents/100, cents%100)
}
