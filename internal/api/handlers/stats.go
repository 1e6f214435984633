package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Krucheverba/m2-middleware-sub001/internal/metrics"
)

// MappingService is the mapper surface the HTTP layer needs.
type MappingService interface {
	LoadMappings() error
	ProductIDs() []string
	Stats() metrics.Snapshot
	Summary() metrics.Summary
}

// HandleGetStats handles GET /v1/stats: the full metrics snapshot,
// read-only.
func HandleGetStats(mapperSvc MappingService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, mapperSvc.Stats())
	}
}

// HandleGetStatsSummary handles GET /v1/stats/summary: the compact
// dashboard aggregate.
func HandleGetStatsSummary(mapperSvc MappingService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, mapperSvc.Summary())
	}
}
