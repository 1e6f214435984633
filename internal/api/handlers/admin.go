package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Krucheverba/m2-middleware-sub001/internal/domain"
	"github.com/Krucheverba/m2-middleware-sub001/internal/metrics"
)

// ProductCatalog lists product records from the ERP.
type ProductCatalog interface {
	Products(ctx context.Context) ([]domain.Product, error)
}

// HandleReloadMappings handles POST /v1/admin/mappings/reload. On a failed
// reload the store keeps serving the previous index, so a bad file edit
// never takes lookups down.
func HandleReloadMappings(mapperSvc MappingService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := mapperSvc.LoadMappings(); err != nil {
			logger.Error("Mapping reload failed", zap.Error(err))
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error":   "mapping reload failed, previous index retained",
				"details": err.Error(),
			})
			return
		}

		summary := mapperSvc.Summary()
		logger.Info("Mappings reloaded", zap.Int("mapping_count", summary.MappingCount))
		c.JSON(http.StatusOK, gin.H{
			"ok":                true,
			"mapping_count":     summary.MappingCount,
			"mapping_loaded_at": summary.MappingLoadedAt,
		})
	}
}

// HandleResetStats handles POST /v1/admin/stats/reset. Counters reset only
// here, never implicitly.
func HandleResetStats(recorder *metrics.Recorder, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		recorder.Reset()
		logger.Info("Metrics reset by administrative request")
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

// HandleListUnmappedProducts handles GET /v1/admin/products/unmapped:
// active ERP products with no entry in the mapping document. Archived
// products are excluded, they need no marketplace counterpart.
func HandleListUnmappedProducts(catalog ProductCatalog, mapperSvc MappingService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		products, err := catalog.Products(c.Request.Context())
		if err != nil {
			logger.Error("Product listing failed", zap.Error(err))
			c.JSON(http.StatusBadGateway, gin.H{"error": "product listing failed"})
			return
		}

		mapped := make(map[string]struct{})
		for _, id := range mapperSvc.ProductIDs() {
			mapped[id] = struct{}{}
		}

		unmapped := make([]gin.H, 0)
		for _, p := range products {
			if p.Archived {
				continue
			}
			if _, ok := mapped[p.ID]; ok {
				continue
			}
			unmapped = append(unmapped, gin.H{
				"product_id": p.ID,
				"name":       p.Name,
				"code":       p.Code,
			})
		}

		c.JSON(http.StatusOK, gin.H{
			"total_products": len(products),
			"mapped":         len(mapped),
			"unmapped":       unmapped,
		})
	}
}

// HandleTriggerStockSync handles POST /v1/admin/sync/stock: a manual full
// stock pass, started asynchronously.
func HandleTriggerStockSync(stock StockSync, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		logger.Info("Manual stock sync triggered")
		go stock.SyncAll(context.Background())
		c.JSON(http.StatusAccepted, gin.H{"ok": true, "status": "started"})
	}
}
