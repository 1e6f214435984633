package sync

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/Krucheverba/m2-middleware-sub001/internal/domain"
	"github.com/Krucheverba/m2-middleware-sub001/internal/metrics"
	"github.com/Krucheverba/m2-middleware-sub001/pkg/errors"
)

// ProductLookup is the mapper surface the synchronizers need.
type ProductLookup interface {
	ProductIDToOfferID(productID string, caller metrics.CallerContext) (string, bool)
	OfferIDToProductID(offerID string, caller metrics.CallerContext) (string, bool)
	ProductIDs() []string
}

// StockReporter provides the ERP stock-by-store report for one product.
type StockReporter interface {
	StockByProduct(ctx context.Context, productID string) ([]domain.StockRow, error)
}

// StockPusher overwrites the available quantity for one marketplace offer.
type StockPusher interface {
	UpdateStock(ctx context.Context, offerID string, available int) error
}

// transientError is implemented by client API errors that are worth
// retrying (network-level failures retry unconditionally).
type transientError interface {
	Transient() bool
}

// StockSyncer pushes ERP availability to the marketplace, either for every
// mapped product (scheduled) or for a single changed product (webhook).
// It keeps no mutable state, so concurrent passes for any product ids are
// safe; the push is an unconditional overwrite.
type StockSyncer struct {
	mapper      ProductLookup
	erp         StockReporter
	market      StockPusher
	recorder    *metrics.Recorder
	logger      *zap.Logger
	maxAttempts int
}

// NewStockSyncer creates a stock synchronizer
func NewStockSyncer(
	mapper ProductLookup,
	erp StockReporter,
	market StockPusher,
	recorder *metrics.Recorder,
	logger *zap.Logger,
	maxAttempts int,
) *StockSyncer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxAttempts < 1 {
		maxAttempts = 3
	}
	return &StockSyncer{
		mapper:      mapper,
		erp:         erp,
		market:      market,
		recorder:    recorder,
		logger:      logger,
		maxAttempts: maxAttempts,
	}
}

// SyncOne synchronizes a single product's availability. A product with no
// marketplace counterpart is a normal state: it is counted as skipped and
// returns nil.
func (s *StockSyncer) SyncOne(ctx context.Context, productID string) error {
	return s.syncOne(ctx, productID, metrics.ContextStock)
}

// SyncFromWebhookEvent is the low-latency event path: the same routine as
// SyncOne for exactly one changed product.
func (s *StockSyncer) SyncFromWebhookEvent(ctx context.Context, productID string) error {
	return s.syncOne(ctx, productID, metrics.ContextWebhook)
}

func (s *StockSyncer) syncOne(ctx context.Context, productID string, caller metrics.CallerContext) error {
	offerID, ok := s.mapper.ProductIDToOfferID(productID, caller)
	if !ok {
		s.recorder.RecordSkip(caller)
		s.logger.Debug("Stock sync skipped: product has no marketplace mapping",
			zap.String("product_id", productID),
			zap.String("context", string(caller)),
		)
		return nil
	}

	var rows []domain.StockRow
	err := s.withRetry(ctx, func() error {
		var err error
		rows, err = s.erp.StockByProduct(ctx, productID)
		return err
	})
	if err != nil {
		syncErr := &errors.ErrSync{Op: "stock_report", ProductID: productID, OfferID: offerID, Err: err}
		s.reportSyncError(syncErr)
		return syncErr
	}

	figure := domain.ComputeStockFigure(productID, rows)

	err = s.withRetry(ctx, func() error {
		return s.market.UpdateStock(ctx, offerID, figure.AvailableStock)
	})
	if err != nil {
		syncErr := &errors.ErrSync{Op: "stock_push", ProductID: productID, OfferID: offerID, Err: err}
		s.reportSyncError(syncErr)
		return syncErr
	}

	s.logger.Debug("Stock pushed to marketplace",
		zap.String("product_id", productID),
		zap.String("offer_id", offerID),
		zap.Int("available", figure.AvailableStock),
	)
	return nil
}

// SyncAll runs SyncOne for every mapped product. Per-item failures are
// collected and logged; the batch always runs to completion.
func (s *StockSyncer) SyncAll(ctx context.Context) {
	start := time.Now()
	productIDs := s.mapper.ProductIDs()

	var failed int
	for _, productID := range productIDs {
		if ctx.Err() != nil {
			s.logger.Warn("Stock sync batch cancelled", zap.Int("remaining", len(productIDs)))
			return
		}
		if err := s.SyncOne(ctx, productID); err != nil {
			failed++
		}
	}

	s.logger.Info("Stock sync batch finished",
		zap.Int("products", len(productIDs)),
		zap.Int("failed", failed),
		zap.Duration("elapsed", time.Since(start)),
	)
}

// withRetry retries transient failures with bounded exponential backoff.
// Non-transient API errors fail immediately.
func (s *StockSyncer) withRetry(ctx context.Context, op func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxElapsedTime = 0

	return backoff.Retry(func() error {
		err := op()
		if err == nil {
			return nil
		}
		var te transientError
		if stderrors.As(err, &te) && !te.Transient() {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(bo, uint64(s.maxAttempts-1)), ctx))
}

func (s *StockSyncer) reportSyncError(syncErr *errors.ErrSync) {
	s.recorder.RecordError(metrics.ErrorEntry{
		Class:     "SYNC_ERROR",
		Message:   syncErr.Error(),
		ProductID: syncErr.ProductID,
		OfferID:   syncErr.OfferID,
	})
	s.logger.Error("Stock sync failed after retries",
		zap.String("op", syncErr.Op),
		zap.String("product_id", syncErr.ProductID),
		zap.String("offer_id", syncErr.OfferID),
		zap.Error(syncErr.Err),
	)
}
