package repositories

import (
	"context"
	"time"

	domain "github.com/sweetwater-antiques/api/internal/domain"
)

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// UnitOfWork allows grouping repository operations in a transactional boundary when supported.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// OrderRepository persists order aggregates. Update enforces optimistic
// concurrency when the order carries a LastSyncTime.
type OrderRepository interface {
	Insert(ctx context.Context, order domain.Order) (domain.Order, error)
	Update(ctx context.Context, order domain.Order) (domain.Order, error)
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	List(ctx context.Context, filter OrderListFilter) (domain.CursorPage[domain.Order], error)
}

// OrderListFilter narrows order listings for user and admin views.
type OrderListFilter struct {
	UserID     string
	PaidOnly   bool
	DateRange  domain.RangeQuery[time.Time]
	Pagination domain.Pagination
}

// ProductRepository exposes catalog reads plus the stock mutation used at
// payment capture.
type ProductRepository interface {
	FindByID(ctx context.Context, productID string) (domain.Product, error)
	// DecrementStock atomically moves quantity from stock to sold, flooring
	// stock at zero. It reports the quantity actually decremented.
	DecrementStock(ctx context.Context, productID string, quantity int) (int, error)
}

// UserRepository stores customer and staff profiles.
type UserRepository interface {
	FindByID(ctx context.Context, userID string) (domain.UserProfile, error)
	// ListAdminRecipients returns admin profiles eligible for order alerts.
	ListAdminRecipients(ctx context.Context) ([]domain.UserProfile, error)
}

// HealthRepository exposes status of downstream dependencies for health checks.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}
