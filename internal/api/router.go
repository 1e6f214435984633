package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Krucheverba/m2-middleware-sub001/internal/api/handlers"
	"github.com/Krucheverba/m2-middleware-sub001/internal/config"
	"github.com/Krucheverba/m2-middleware-sub001/internal/metrics"
)

// NewRouter creates and configures the Gin router
func NewRouter(
	cfg *config.Config,
	mapperSvc handlers.MappingService,
	stock handlers.StockSync,
	catalog handlers.ProductCatalog,
	recorder *metrics.Recorder,
	logger *zap.Logger,
) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Middleware
	router.Use(customRecovery(logger))
	router.Use(loggingMiddleware(logger))

	// Root: friendly response so GET / returns 200 instead of 404
	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service": "Marketplace Sync Engine",
			"endpoints": []string{
				"GET /health",
				"POST /webhooks/erp/stock",
				"GET /v1/stats",
				"GET /v1/stats/summary",
				"POST /v1/admin/mappings/reload",
				"POST /v1/admin/stats/reset",
				"POST /v1/admin/sync/stock",
				"GET /v1/admin/products/unmapped",
			},
		})
	})

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// ERP webhook: product change events trigger a targeted stock resync
	router.POST("/webhooks/erp/stock", handlers.HandleERPStockWebhook(cfg.WebhookSecret, stock, recorder, logger))

	// API v1 routes
	v1 := router.Group("/v1")
	{
		v1.GET("/stats", handlers.HandleGetStats(mapperSvc, logger))
		v1.GET("/stats/summary", handlers.HandleGetStatsSummary(mapperSvc, logger))

		admin := v1.Group("/admin")
		{
			admin.POST("/mappings/reload", handlers.HandleReloadMappings(mapperSvc, logger))
			admin.POST("/stats/reset", handlers.HandleResetStats(recorder, logger))
			admin.POST("/sync/stock", handlers.HandleTriggerStockSync(stock, logger))
			admin.GET("/products/unmapped", handlers.HandleListUnmappedProducts(catalog, mapperSvc, logger))
		}
	}

	return router
}

// customRecovery is a custom recovery middleware that logs panics
func customRecovery(logger *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logger.Error("Panic recovered",
			zap.Any("error", recovered),
			zap.String("path", c.Request.URL.Path),
			zap.String("method", c.Request.Method),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal server error",
			"details": fmt.Sprintf("%v", recovered),
		})
	})
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		status := c.Writer.Status()
		logger.Info("HTTP request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", status),
		)
	}
}
