package sync

import (
	"context"
	stderrors "errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Krucheverba/m2-middleware-sub001/internal/domain"
	"github.com/Krucheverba/m2-middleware-sub001/internal/erp"
	"github.com/Krucheverba/m2-middleware-sub001/internal/metrics"
	"github.com/Krucheverba/m2-middleware-sub001/internal/repository"
	"github.com/Krucheverba/m2-middleware-sub001/pkg/errors"
)

// OrderSource lists new/unprocessed marketplace orders and accepts
// shipment notifications.
type OrderSource interface {
	ListNewOrders(ctx context.Context) ([]domain.MarketplaceOrder, error)
	NotifyShipment(ctx context.Context, marketplaceOrderID string) error
}

// SalesDocuments creates ERP sales documents and reports their state.
type SalesDocuments interface {
	CreateCustomerOrder(ctx context.Context, draft domain.SalesDocumentDraft) (string, error)
	OrderState(ctx context.Context, internalOrderID string) (string, error)
}

// OrderSyncer translates marketplace orders into ERP sales documents and
// propagates shipment state back. The order mapping store's duplicate
// check is the backstop against concurrent double-creation.
type OrderSyncer struct {
	mapper   ProductLookup
	market   OrderSource
	erp      SalesDocuments
	repo     repository.OrderMappingRepository
	recorder *metrics.Recorder
	logger   *zap.Logger
}

// NewOrderSyncer creates an order synchronizer
func NewOrderSyncer(
	mapper ProductLookup,
	market OrderSource,
	salesDocs SalesDocuments,
	repo repository.OrderMappingRepository,
	recorder *metrics.Recorder,
	logger *zap.Logger,
) *OrderSyncer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderSyncer{
		mapper:   mapper,
		market:   market,
		erp:      salesDocs,
		repo:     repo,
		recorder: recorder,
		logger:   logger,
	}
}

// PollAndProcessOrders fetches new marketplace orders and creates the
// corresponding ERP sales documents. Already-mapped orders are skipped, so
// re-polling is idempotent. An order is only recorded as handled after its
// document was created; a failed creation is retried on the next poll.
func (s *OrderSyncer) PollAndProcessOrders(ctx context.Context) error {
	orders, err := s.market.ListNewOrders(ctx)
	if err != nil {
		s.recorder.RecordError(metrics.ErrorEntry{
			Class:   "SYNC_ERROR",
			Message: fmt.Sprintf("order poll failed: %v", err),
		})
		s.logger.Error("Order poll failed", zap.Error(err))
		return err
	}

	for _, order := range orders {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.processOrder(ctx, order)
	}
	return nil
}

func (s *OrderSyncer) processOrder(ctx context.Context, order domain.MarketplaceOrder) {
	exists, err := s.repo.Has(ctx, order.ID)
	if err != nil {
		s.logger.Error("Order mapping lookup failed",
			zap.String("order_id", order.ID),
			zap.Error(err),
		)
		return
	}
	if exists {
		s.logger.Debug("Order already processed, skipping", zap.String("order_id", order.ID))
		return
	}

	draft, skipped := s.translateOrder(order)
	if len(draft.Positions) == 0 {
		s.logger.Warn("Order has no resolvable line items, skipping",
			zap.String("order_id", order.ID),
			zap.Int("unmapped_items", skipped),
		)
		return
	}
	if skipped > 0 {
		s.logger.Warn("Order translated with unmapped line items excluded",
			zap.String("order_id", order.ID),
			zap.Int("resolved_items", len(draft.Positions)),
			zap.Int("unmapped_items", skipped),
		)
	}

	internalID, err := s.erp.CreateCustomerOrder(ctx, draft)
	if err != nil {
		syncErr := &errors.ErrSync{Op: "order_create", OrderID: order.ID, Err: err}
		s.recorder.RecordError(metrics.ErrorEntry{
			Class:   "SYNC_ERROR",
			Message: syncErr.Error(),
			OrderID: order.ID,
		})
		// not recorded as handled: the next poll retries this order
		s.logger.Error("Failed to create sales document",
			zap.String("order_id", order.ID),
			zap.Error(err),
		)
		return
	}

	mapping := &domain.OrderMapping{
		MarketplaceOrderID: order.ID,
		InternalOrderID:    internalID,
		Status:             domain.OrderSyncStatusCreated,
	}
	if err := s.repo.Create(ctx, mapping); err != nil {
		var dup *errors.ErrDuplicateOrder
		if stderrors.As(err, &dup) {
			// concurrent poll created it first; the document may be duplicated
			// in the ERP and needs operator attention
			s.logger.Warn("Order mapping already recorded by a concurrent poll",
				zap.String("order_id", order.ID),
				zap.String("internal_order_id", internalID),
			)
			return
		}
		s.logger.Error("Failed to record order mapping",
			zap.String("order_id", order.ID),
			zap.String("internal_order_id", internalID),
			zap.Error(err),
		)
		return
	}

	s.logger.Info("Order synchronized to ERP",
		zap.String("order_id", order.ID),
		zap.String("order_number", order.Number),
		zap.String("internal_order_id", internalID),
		zap.Int("items", len(draft.Positions)),
	)
}

// translateOrder resolves each line item's offer code to an internal
// product id. Unmapped items are counted as skipped and excluded; they
// never block the rest of the order.
func (s *OrderSyncer) translateOrder(order domain.MarketplaceOrder) (domain.SalesDocumentDraft, int) {
	draft := domain.SalesDocumentDraft{
		ExternalRef: order.ID,
		Comment:     fmt.Sprintf("Marketplace order %s", order.Number),
	}

	var skipped int
	for _, item := range order.Items {
		productID, ok := s.mapper.OfferIDToProductID(item.OfferID, metrics.ContextOrder)
		if !ok {
			s.recorder.RecordSkip(metrics.ContextOrder)
			s.logger.Warn("Order line item has no product mapping, excluded",
				zap.String("order_id", order.ID),
				zap.String("offer_id", item.OfferID),
			)
			skipped++
			continue
		}
		draft.Positions = append(draft.Positions, domain.SalesDocumentPosition{
			ProductID: productID,
			Quantity:  item.Quantity,
			Price:     item.Price,
		})
	}
	return draft, skipped
}

// ProcessShippedOrders checks every CREATED mapping against the ERP and
// notifies the marketplace once the sales document is shipped. Failures
// are left for the next poll cycle; the poll interval is the retry.
func (s *OrderSyncer) ProcessShippedOrders(ctx context.Context) error {
	mappings, err := s.repo.ListByStatus(ctx, domain.OrderSyncStatusCreated)
	if err != nil {
		s.logger.Error("Failed to list open order mappings", zap.Error(err))
		return err
	}

	for _, mapping := range mappings {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		state, err := s.erp.OrderState(ctx, mapping.InternalOrderID)
		if err != nil {
			s.recorder.RecordError(metrics.ErrorEntry{
				Class:   "SYNC_ERROR",
				Message: fmt.Sprintf("order state query failed: %v", err),
				OrderID: mapping.MarketplaceOrderID,
			})
			s.logger.Error("Failed to query sales document state",
				zap.String("order_id", mapping.MarketplaceOrderID),
				zap.String("internal_order_id", mapping.InternalOrderID),
				zap.Error(err),
			)
			continue
		}
		if state != erp.StateShipped {
			continue
		}

		if err := s.market.NotifyShipment(ctx, mapping.MarketplaceOrderID); err != nil {
			s.recorder.RecordError(metrics.ErrorEntry{
				Class:   "SYNC_ERROR",
				Message: fmt.Sprintf("shipment notification failed: %v", err),
				OrderID: mapping.MarketplaceOrderID,
			})
			s.logger.Error("Failed to notify marketplace of shipment",
				zap.String("order_id", mapping.MarketplaceOrderID),
				zap.Error(err),
			)
			continue
		}

		if err := s.repo.MarkShipped(ctx, mapping.MarketplaceOrderID); err != nil {
			s.logger.Error("Failed to mark order mapping shipped",
				zap.String("order_id", mapping.MarketplaceOrderID),
				zap.Error(err),
			)
			continue
		}

		s.logger.Info("Shipment propagated to marketplace",
			zap.String("order_id", mapping.MarketplaceOrderID),
			zap.String("internal_order_id", mapping.InternalOrderID),
		)
	}
	return nil
}
