package handlers

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Krucheverba/m2-middleware-sub001/internal/metrics"
	"github.com/Krucheverba/m2-middleware-sub001/pkg/errors"
)

// StockSync is the synchronizer surface the HTTP layer needs.
type StockSync interface {
	SyncFromWebhookEvent(ctx context.Context, productID string) error
	SyncAll(ctx context.Context)
}

type webhookEventMeta struct {
	Type string `json:"type"`
	Href string `json:"href"`
}

type webhookEvent struct {
	Meta   webhookEventMeta `json:"meta"`
	Action string           `json:"action"`
}

type erpWebhookBody struct {
	Events []webhookEvent `json:"events"`
}

// productIDFromHref extracts the entity id from an ERP resource reference
// like https://erp.example.com/api/entity/product/8e9512f1-...?expand=x
func productIDFromHref(href string) string {
	if i := strings.IndexAny(href, "?#"); i >= 0 {
		href = href[:i]
	}
	href = strings.TrimRight(href, "/")
	if i := strings.LastIndex(href, "/"); i >= 0 {
		return href[i+1:]
	}
	return ""
}

// HandleERPStockWebhook handles POST /webhooks/erp/stock.
// The ERP delivers change notifications at least once; the stock push is an
// unconditional overwrite, so replays are harmless. The response is returned
// as soon as the body parses — the stock resync runs asynchronously so slow
// marketplace calls never trip the ERP's delivery timeout.
func HandleERPStockWebhook(secret string, stock StockSync, recorder *metrics.Recorder, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret != "" {
			header := strings.TrimSpace(c.GetHeader("X-Webhook-Secret"))
			if subtle.ConstantTimeCompare([]byte(secret), []byte(header)) != 1 {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
				return
			}
		}

		if ct := c.ContentType(); !strings.Contains(ct, "json") {
			rejection := &errors.ErrWebhook{Reason: "unsupported content type: " + ct}
			recorder.RecordError(metrics.ErrorEntry{
				Class:   "WEBHOOK_ERROR",
				Message: rejection.Error(),
			})
			c.JSON(http.StatusBadRequest, gin.H{"error": "expected application/json"})
			return
		}

		bodyBytes, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
			return
		}

		var body erpWebhookBody
		if err := json.Unmarshal(bodyBytes, &body); err != nil {
			rejection := &errors.ErrWebhook{Reason: "unparseable body: " + err.Error()}
			recorder.RecordError(metrics.ErrorEntry{
				Class:   "WEBHOOK_ERROR",
				Message: rejection.Error(),
			})
			logger.Warn("Webhook body rejected", zap.Error(rejection))
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON"})
			return
		}

		var dispatched, ignored int
		for _, event := range body.Events {
			if event.Meta.Type != "product" {
				// unrelated entity type: acknowledged, not an error
				ignored++
				continue
			}

			productID := productIDFromHref(event.Meta.Href)
			if productID == "" {
				recorder.RecordError(metrics.ErrorEntry{
					Class:   "WEBHOOK_ERROR",
					Message: "product event without a resolvable id: " + event.Meta.Href,
				})
				logger.Warn("Webhook product event without id", zap.String("href", event.Meta.Href))
				continue
			}

			dispatched++
			logger.Info("Webhook stock resync dispatched",
				zap.String("product_id", productID),
				zap.String("action", event.Action),
			)
			// the request context ends with this response; the resync
			// deliberately outlives it
			go func(id string) {
				_ = stock.SyncFromWebhookEvent(context.Background(), id)
			}(productID)
		}

		c.JSON(http.StatusOK, gin.H{
			"ok":         true,
			"dispatched": dispatched,
			"ignored":    ignored,
		})
	}
}
