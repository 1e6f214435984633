package repository

import (
	"context"

	"github.com/Krucheverba/m2-middleware-sub001/internal/domain"
)

// OrderMappingRepository defines order mapping data access methods. Rows
// are append-only: mappings are created once and updated on shipment,
// never deleted.
type OrderMappingRepository interface {
	// Create records a new order mapping. Returns ErrDuplicateOrder when a
	// mapping for the marketplace order id already exists.
	Create(ctx context.Context, mapping *domain.OrderMapping) error
	// Has is the idempotency guard consulted before creating any internal
	// order.
	Has(ctx context.Context, marketplaceOrderID string) (bool, error)
	GetByMarketplaceOrderID(ctx context.Context, marketplaceOrderID string) (*domain.OrderMapping, error)
	// MarkShipped moves a mapping to SHIPPED. Returns ErrOrderNotFound when
	// no mapping exists for the marketplace order id.
	MarkShipped(ctx context.Context, marketplaceOrderID string) error
	ListByStatus(ctx context.Context, status domain.OrderSyncStatus) ([]*domain.OrderMapping, error)
}

// Repositories aggregates all repositories
type Repositories struct {
	OrderMapping OrderMappingRepository
}
