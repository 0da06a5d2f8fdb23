package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/sweetwater-antiques/api/internal/domain"
	"github.com/sweetwater-antiques/api/internal/repositories"
	pfirestore "github.com/sweetwater-antiques/api/internal/platform/firestore"
	"github.com/sweetwater-antiques/api/internal/platform/pagination"
)

const orderCollection = "orders"

// OrderRepository persists orders in Firestore. Updates enforce optimistic
// locking via the document update-time precondition when the aggregate
// carries a LastSyncTime.
type OrderRepository struct {
	base     *pfirestore.BaseRepository[orderDocument]
	provider *pfirestore.Provider
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[orderDocument](provider, orderCollection, nil, nil)
	return &OrderRepository{base: base, provider: provider}, nil
}

// Insert creates the order document, failing on duplicates.
func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	if strings.TrimSpace(order.ID) == "" {
		return domain.Order{}, errors.New("order id is required")
	}

	docRef, err := r.base.DocumentRef(ctx, order.ID)
	if err != nil {
		return domain.Order{}, err
	}

	result, err := docRef.Create(ctx, fromDomainOrder(order))
	if err != nil {
		return domain.Order{}, pfirestore.WrapError("orders.insert", err)
	}

	order.LastSyncTime = result.UpdateTime
	return order, nil
}

// Update persists the full aggregate. When LastSyncTime is set the write runs
// in a transaction that rejects stale snapshots.
func (r *OrderRepository) Update(ctx context.Context, order domain.Order) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	if strings.TrimSpace(order.ID) == "" {
		return domain.Order{}, errors.New("order id is required")
	}

	doc := fromDomainOrder(order)

	if order.LastSyncTime.IsZero() {
		result, err := r.base.Set(ctx, order.ID, doc)
		if err != nil {
			return domain.Order{}, err
		}
		order.LastSyncTime = result.UpdateTime
		return order, nil
	}

	if err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		docRef, err := r.base.DocumentRef(ctx, order.ID)
		if err != nil {
			return err
		}
		snap, err := tx.Get(docRef)
		if err != nil {
			return err
		}
		if !snap.UpdateTime.Equal(order.LastSyncTime) {
			return status.Error(codes.Aborted, "order stale update")
		}
		return tx.Set(docRef, doc)
	}); err != nil {
		return domain.Order{}, pfirestore.WrapError("orders.update", err)
	}

	latest, err := r.base.Get(ctx, order.ID)
	if err != nil {
		return domain.Order{}, err
	}
	saved := toDomainOrder(latest.Data)
	saved.ID = latest.ID
	saved.LastSyncTime = latest.UpdateTime
	return saved, nil
}

// FindByID loads the order by its identifier.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	if strings.TrimSpace(orderID) == "" {
		return domain.Order{}, errors.New("order id is required")
	}

	doc, err := r.base.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}

	order := toDomainOrder(doc.Data)
	order.ID = doc.ID
	order.LastSyncTime = doc.UpdateTime
	return order, nil
}

// List returns orders newest-first, filtered and paginated by cursor token.
func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	if r == nil || r.base == nil {
		return domain.CursorPage[domain.Order]{}, errors.New("order repository not initialised")
	}

	pageSize := filter.Pagination.PageSize
	if pageSize <= 0 {
		pageSize = pagination.DefaultPageSize
	}

	cursor, err := pagination.DecodeToken(filter.Pagination.PageToken)
	if err != nil {
		return domain.CursorPage[domain.Order]{}, pfirestore.WrapError("orders.list", err)
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		if userID := strings.TrimSpace(filter.UserID); userID != "" {
			q = q.Where("userId", "==", userID)
		}
		if filter.PaidOnly {
			q = q.Where("isPaid", "==", true)
		}
		if filter.DateRange.From != nil {
			q = q.Where("createdAt", ">=", filter.DateRange.From.UTC())
		}
		if filter.DateRange.To != nil {
			q = q.Where("createdAt", "<", filter.DateRange.To.UTC())
		}
		q = q.OrderBy("createdAt", firestore.Desc).OrderBy(firestore.DocumentID, firestore.Desc)
		if len(cursor.StartAfter) > 0 {
			q = q.StartAfter(cursor.StartAfter...)
		}
		return q.Limit(pageSize + 1)
	})
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}

	page := domain.CursorPage[domain.Order]{}
	for i, doc := range docs {
		if i == pageSize {
			break
		}
		order := toDomainOrder(doc.Data)
		order.ID = doc.ID
		order.LastSyncTime = doc.UpdateTime
		page.Items = append(page.Items, order)
	}

	if len(docs) > pageSize {
		last := docs[pageSize-1]
		token, err := pagination.EncodeToken(pagination.Cursor{
			StartAfter: []any{last.Data.CreatedAt, last.ID},
		})
		if err != nil {
			return domain.CursorPage[domain.Order]{}, pfirestore.WrapError("orders.list", err)
		}
		page.NextPageToken = token
	}

	return page, nil
}

type orderDocument struct {
	UserID           string                   `firestore:"userId"`
	OrderName        string                   `firestore:"orderName"`
	Items            []orderItemDocument      `firestore:"orderItems"`
	ShippingAddress  shippingAddressDocument  `firestore:"shippingAddress"`
	PaymentMethod    string                   `firestore:"paymentMethod"`
	ProcessorOrderID string                   `firestore:"processorOrderId,omitempty"`
	ItemsPrice       int64                    `firestore:"itemsPrice"`
	ShippingPrice    int64                    `firestore:"shippingPrice"`
	SeparateShipping int64                    `firestore:"separateShippingPrice"`
	TaxPrice         int64                    `firestore:"taxPrice"`
	TotalPrice       int64                    `firestore:"totalPrice"`
	TaxRate          float64                  `firestore:"appliedTaxRate"`
	IsPaid           bool                     `firestore:"isPaid"`
	PaidAt           *time.Time               `firestore:"paidAt,omitempty"`
	PaymentResult    *paymentResultDocument   `firestore:"paymentResult,omitempty"`
	StandardShipment shipmentTrackDocument    `firestore:"standardShipment"`
	InvoiceShipment  shipmentTrackDocument    `firestore:"invoiceShipment"`
	ShippingInvoice  shippingInvoiceDocument  `firestore:"shippingInvoice"`
	IsFullyShipped   bool                     `firestore:"isFullyShipped"`
	CreatedAt        time.Time                `firestore:"createdAt"`
	UpdatedAt        time.Time                `firestore:"updatedAt"`
}

type orderItemDocument struct {
	ProductRef     string `firestore:"productRef"`
	Slug           string `firestore:"slug"`
	Name           string `firestore:"name"`
	Image          string `firestore:"image,omitempty"`
	Quantity       int    `firestore:"qty"`
	UnitPrice      int64  `firestore:"price"`
	SalePrice      *int64 `firestore:"salePrice,omitempty"`
	ShippingCharge int64  `firestore:"shippingCharge"`
	ShippingClass  string `firestore:"shippingClass"`
}

type shippingAddressDocument struct {
	FullName   string `firestore:"fullName"`
	Address    string `firestore:"address"`
	City       string `firestore:"city"`
	County     string `firestore:"county,omitempty"`
	State      string `firestore:"state"`
	PostalCode string `firestore:"postalCode"`
	Country    string `firestore:"country"`
}

type paymentResultDocument struct {
	ExternalID   string `firestore:"externalId"`
	Status       string `firestore:"status"`
	EmailAddress string `firestore:"emailAddress"`
}

type shipmentTrackDocument struct {
	IsShipped      bool       `firestore:"isShipped"`
	ShippedAt      *time.Time `firestore:"shippedAt,omitempty"`
	DeliveryDays   *int       `firestore:"deliveryDays,omitempty"`
	CarrierName    string     `firestore:"carrierName,omitempty"`
	TrackingNumber string     `firestore:"trackingNumber,omitempty"`
}

type shippingInvoiceDocument struct {
	InvoiceID string     `firestore:"invoiceId,omitempty"`
	URL       string     `firestore:"url,omitempty"`
	Sent      bool       `firestore:"sent"`
	Paid      bool       `firestore:"paid"`
	PaidAt    *time.Time `firestore:"paidAt,omitempty"`
}

func fromDomainOrder(order domain.Order) orderDocument {
	doc := orderDocument{
		UserID:           strings.TrimSpace(order.UserID),
		OrderName:        strings.TrimSpace(order.OrderName),
		Items:            make([]orderItemDocument, 0, len(order.Items)),
		PaymentMethod:    string(order.PaymentMethod),
		ProcessorOrderID: strings.TrimSpace(order.ProcessorOrderID),
		ItemsPrice:       order.Amounts.Items,
		ShippingPrice:    order.Amounts.Shipping,
		SeparateShipping: order.Amounts.SeparateShipping,
		TaxPrice:         order.Amounts.Tax,
		TotalPrice:       order.Amounts.Total,
		TaxRate:          order.Amounts.TaxRate,
		IsPaid:           order.Paid,
		PaidAt:           order.PaidAt,
		StandardShipment: fromDomainTrack(order.StandardShipment),
		InvoiceShipment:  fromDomainTrack(order.InvoiceShipment),
		ShippingInvoice: shippingInvoiceDocument{
			InvoiceID: strings.TrimSpace(order.ShippingInvoice.ID),
			URL:       strings.TrimSpace(order.ShippingInvoice.URL),
			Sent:      order.ShippingInvoice.Sent,
			Paid:      order.ShippingInvoice.Paid,
			PaidAt:    order.ShippingInvoice.PaidAt,
		},
		IsFullyShipped: order.FullyShipped,
		CreatedAt:      order.CreatedAt.UTC(),
		UpdatedAt:      order.UpdatedAt.UTC(),
		ShippingAddress: shippingAddressDocument{
			FullName:   order.ShippingAddress.FullName,
			Address:    order.ShippingAddress.Address,
			City:       order.ShippingAddress.City,
			County:     order.ShippingAddress.County,
			State:      order.ShippingAddress.State,
			PostalCode: order.ShippingAddress.PostalCode,
			Country:    order.ShippingAddress.Country,
		},
	}

	for _, item := range order.Items {
		doc.Items = append(doc.Items, orderItemDocument{
			ProductRef:     item.ProductRef,
			Slug:           item.Slug,
			Name:           item.Name,
			Image:          item.Image,
			Quantity:       item.Quantity,
			UnitPrice:      item.UnitPrice,
			SalePrice:      item.SalePrice,
			ShippingCharge: item.ShippingCharge,
			ShippingClass:  string(item.ShippingClass),
		})
	}

	if order.PaymentResult != nil {
		doc.PaymentResult = &paymentResultDocument{
			ExternalID:   order.PaymentResult.ExternalID,
			Status:       order.PaymentResult.Status,
			EmailAddress: order.PaymentResult.EmailAddress,
		}
	}

	return doc
}

func toDomainOrder(doc orderDocument) domain.Order {
	order := domain.Order{
		UserID:           doc.UserID,
		OrderName:        doc.OrderName,
		Items:            make([]domain.OrderItem, 0, len(doc.Items)),
		PaymentMethod:    domain.PaymentMethod(doc.PaymentMethod),
		ProcessorOrderID: doc.ProcessorOrderID,
		Amounts: domain.OrderAmounts{
			Items:            doc.ItemsPrice,
			Shipping:         doc.ShippingPrice,
			SeparateShipping: doc.SeparateShipping,
			Tax:              doc.TaxPrice,
			Total:            doc.TotalPrice,
			TaxRate:          doc.TaxRate,
		},
		Paid:             doc.IsPaid,
		PaidAt:           doc.PaidAt,
		StandardShipment: toDomainTrack(doc.StandardShipment),
		InvoiceShipment:  toDomainTrack(doc.InvoiceShipment),
		ShippingInvoice: domain.ShippingInvoice{
			ID:     doc.ShippingInvoice.InvoiceID,
			URL:    doc.ShippingInvoice.URL,
			Sent:   doc.ShippingInvoice.Sent,
			Paid:   doc.ShippingInvoice.Paid,
			PaidAt: doc.ShippingInvoice.PaidAt,
		},
		FullyShipped: doc.IsFullyShipped,
		CreatedAt:    doc.CreatedAt,
		UpdatedAt:    doc.UpdatedAt,
		ShippingAddress: domain.ShippingAddress{
			FullName:   doc.ShippingAddress.FullName,
			Address:    doc.ShippingAddress.Address,
			City:       doc.ShippingAddress.City,
			County:     doc.ShippingAddress.County,
			State:      doc.ShippingAddress.State,
			PostalCode: doc.ShippingAddress.PostalCode,
			Country:    doc.ShippingAddress.Country,
		},
	}

	for _, item := range doc.Items {
		order.Items = append(order.Items, domain.OrderItem{
			ProductRef:     item.ProductRef,
			Slug:           item.Slug,
			Name:           item.Name,
			Image:          item.Image,
			Quantity:       item.Quantity,
			UnitPrice:      item.UnitPrice,
			SalePrice:      item.SalePrice,
			ShippingCharge: item.ShippingCharge,
			ShippingClass:  domain.ShippingClass(item.ShippingClass),
		})
	}

	if doc.PaymentResult != nil {
		order.PaymentResult = &domain.PaymentResult{
			ExternalID:   doc.PaymentResult.ExternalID,
			Status:       doc.PaymentResult.Status,
			EmailAddress: doc.PaymentResult.EmailAddress,
		}
	}

	return order
}

func fromDomainTrack(track domain.ShipmentTrack) shipmentTrackDocument {
	return shipmentTrackDocument{
		IsShipped:      track.Shipped,
		ShippedAt:      track.ShippedAt,
		DeliveryDays:   track.DeliveryDays,
		CarrierName:    strings.TrimSpace(track.CarrierName),
		TrackingNumber: strings.TrimSpace(track.TrackingNumber),
	}
}

func toDomainTrack(doc shipmentTrackDocument) domain.ShipmentTrack {
	return domain.ShipmentTrack{
		Shipped:        doc.IsShipped,
		ShippedAt:      doc.ShippedAt,
		DeliveryDays:   doc.DeliveryDays,
		CarrierName:    doc.CarrierName,
		TrackingNumber: doc.TrackingNumber,
	}
}
