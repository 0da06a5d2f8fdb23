package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/sweetwater-antiques/api/internal/domain"
	pfirestore "github.com/sweetwater-antiques/api/internal/platform/firestore"
)

const productCollection = "products"

// ProductRepository reads catalog entries and applies the stock mutation that
// runs when an order is paid.
type ProductRepository struct {
	base     *pfirestore.BaseRepository[productDocument]
	provider *pfirestore.Provider
}

// NewProductRepository constructs a Firestore-backed product repository.
func NewProductRepository(provider *pfirestore.Provider) (*ProductRepository, error) {
	if provider == nil {
		return nil, errors.New("product repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[productDocument](provider, productCollection, nil, nil)
	return &ProductRepository{base: base, provider: provider}, nil
}

// FindByID loads a product by its document identifier.
func (r *ProductRepository) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	if r == nil || r.base == nil {
		return domain.Product{}, errors.New("product repository not initialised")
	}
	if strings.TrimSpace(productID) == "" {
		return domain.Product{}, errors.New("product id is required")
	}

	doc, err := r.base.Get(ctx, productID)
	if err != nil {
		return domain.Product{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

// DecrementStock atomically moves quantity from countInStock to sold, flooring
// stock at zero, and reports the quantity actually moved.
func (r *ProductRepository) DecrementStock(ctx context.Context, productID string, quantity int) (int, error) {
	if r == nil || r.provider == nil {
		return 0, errors.New("product repository not initialised")
	}
	if strings.TrimSpace(productID) == "" {
		return 0, errors.New("product id is required")
	}
	if quantity <= 0 {
		return 0, fmt.Errorf("decrement for %s must be > 0", productID)
	}

	var moved int
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		docRef, err := r.base.DocumentRef(ctx, productID)
		if err != nil {
			return err
		}
		snap, err := tx.Get(docRef)
		if err != nil {
			return err
		}
		var doc productDocument
		if err := snap.DataTo(&doc); err != nil {
			return fmt.Errorf("decode product %s: %w", productID, err)
		}

		moved = quantity
		if doc.CountInStock < moved {
			moved = doc.CountInStock
		}
		doc.CountInStock -= moved
		doc.Sold += moved
		doc.UpdatedAt = time.Now().UTC()
		return tx.Set(docRef, doc)
	})
	if err != nil {
		return 0, pfirestore.WrapError("products.decrementStock", err)
	}
	return moved, nil
}

type productDocument struct {
	Slug           string    `firestore:"slug"`
	Name           string    `firestore:"name"`
	Image          string    `firestore:"image,omitempty"`
	Price          int64     `firestore:"price"`
	SalePrice      *int64    `firestore:"salePrice,omitempty"`
	ShippingCharge int64     `firestore:"shippingCharge"`
	ShippingClass  string    `firestore:"shippingClass"`
	CountInStock   int       `firestore:"countInStock"`
	Sold           int       `firestore:"sold"`
	CreatedAt      time.Time `firestore:"createdAt"`
	UpdatedAt      time.Time `firestore:"updatedAt"`
}

func (d productDocument) toDomain(id string) domain.Product {
	return domain.Product{
		ID:             id,
		Slug:           strings.TrimSpace(d.Slug),
		Name:           strings.TrimSpace(d.Name),
		Image:          strings.TrimSpace(d.Image),
		Price:          d.Price,
		SalePrice:      d.SalePrice,
		ShippingCharge: d.ShippingCharge,
		ShippingClass:  domain.ShippingClass(d.ShippingClass),
		CountInStock:   d.CountInStock,
		Sold:           d.Sold,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
}
