package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/Krucheverba/m2-middleware-sub001/internal/domain"
	"github.com/Krucheverba/m2-middleware-sub001/pkg/errors"
)

type orderMappingRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewOrderMappingRepository creates a new order mapping repository
func NewOrderMappingRepository(db *sql.DB, logger *zap.Logger) *orderMappingRepository {
	return &orderMappingRepository{
		db:     db,
		logger: logger,
	}
}

func (r *orderMappingRepository) Create(ctx context.Context, mapping *domain.OrderMapping) error {
	query := `
		INSERT INTO order_mappings (id, marketplace_order_id, internal_order_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	now := time.Now()
	if mapping.ID == uuid.Nil {
		mapping.ID = uuid.New()
	}
	if mapping.Status == "" {
		mapping.Status = domain.OrderSyncStatusCreated
	}
	if mapping.CreatedAt.IsZero() {
		mapping.CreatedAt = now
	}
	if mapping.UpdatedAt.IsZero() {
		mapping.UpdatedAt = now
	}

	_, err := r.db.ExecContext(ctx, query,
		mapping.ID,
		mapping.MarketplaceOrderID,
		mapping.InternalOrderID,
		mapping.Status,
		mapping.CreatedAt,
		mapping.UpdatedAt,
	)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return &errors.ErrDuplicateOrder{MarketplaceOrderID: mapping.MarketplaceOrderID}
		}
		r.logger.Error("Failed to create order mapping",
			zap.String("marketplace_order_id", mapping.MarketplaceOrderID),
			zap.Error(err),
		)
		return err
	}

	return nil
}

func (r *orderMappingRepository) Has(ctx context.Context, marketplaceOrderID string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM order_mappings WHERE marketplace_order_id = $1)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, marketplaceOrderID).Scan(&exists); err != nil {
		r.logger.Error("Failed to check order mapping existence",
			zap.String("marketplace_order_id", marketplaceOrderID),
			zap.Error(err),
		)
		return false, err
	}
	return exists, nil
}

func (r *orderMappingRepository) GetByMarketplaceOrderID(ctx context.Context, marketplaceOrderID string) (*domain.OrderMapping, error) {
	query := `
		SELECT id, marketplace_order_id, internal_order_id, status, created_at, updated_at
		FROM order_mappings
		WHERE marketplace_order_id = $1
	`

	var mapping domain.OrderMapping
	err := r.db.QueryRowContext(ctx, query, marketplaceOrderID).Scan(
		&mapping.ID,
		&mapping.MarketplaceOrderID,
		&mapping.InternalOrderID,
		&mapping.Status,
		&mapping.CreatedAt,
		&mapping.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, &errors.ErrOrderNotFound{MarketplaceOrderID: marketplaceOrderID}
	}
	if err != nil {
		r.logger.Error("Failed to get order mapping", zap.Error(err))
		return nil, err
	}

	return &mapping, nil
}

func (r *orderMappingRepository) MarkShipped(ctx context.Context, marketplaceOrderID string) error {
	query := `
		UPDATE order_mappings
		SET status = $2, updated_at = $3
		WHERE marketplace_order_id = $1
	`

	result, err := r.db.ExecContext(ctx, query, marketplaceOrderID, domain.OrderSyncStatusShipped, time.Now())
	if err != nil {
		r.logger.Error("Failed to mark order mapping shipped",
			zap.String("marketplace_order_id", marketplaceOrderID),
			zap.Error(err),
		)
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return &errors.ErrOrderNotFound{MarketplaceOrderID: marketplaceOrderID}
	}
	return nil
}

func (r *orderMappingRepository) ListByStatus(ctx context.Context, status domain.OrderSyncStatus) ([]*domain.OrderMapping, error) {
	query := `
		SELECT id, marketplace_order_id, internal_order_id, status, created_at, updated_at
		FROM order_mappings
		WHERE status = $1
		ORDER BY created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, status)
	if err != nil {
		r.logger.Error("Failed to list order mappings by status", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var mappings []*domain.OrderMapping
	for rows.Next() {
		var mapping domain.OrderMapping
		err := rows.Scan(
			&mapping.ID,
			&mapping.MarketplaceOrderID,
			&mapping.InternalOrderID,
			&mapping.Status,
			&mapping.CreatedAt,
			&mapping.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		mappings = append(mappings, &mapping)
	}

	return mappings, rows.Err()
}
