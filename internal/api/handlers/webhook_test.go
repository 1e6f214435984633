package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Krucheverba/m2-middleware-sub001/internal/metrics"
)

type fakeStockSync struct {
	mu       sync.Mutex
	events   []string
	syncAlls int
}

func (f *fakeStockSync) SyncFromWebhookEvent(_ context.Context, productID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, productID)
	return nil
}

func (f *fakeStockSync) SyncAll(_ context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.syncAlls++
}

func (f *fakeStockSync) eventCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

func newWebhookRouter(secret string, stock StockSync, recorder *metrics.Recorder) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/webhooks/erp/stock", HandleERPStockWebhook(secret, stock, recorder, zap.NewNop()))
	return router
}

func postWebhook(router *gin.Engine, body, contentType string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/erp/stock", strings.NewReader(body))
	req.Header.Set("Content-Type", contentType)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestWebhook_UnparseableBodyRejected(t *testing.T) {
	recorder := metrics.NewRecorder()
	stock := &fakeStockSync{}
	router := newWebhookRouter("", stock, recorder)

	w := postWebhook(router, "{not json", "application/json", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	// terse rejection: no parser internals on the wire
	assert.JSONEq(t, `{"error":"invalid JSON"}`, w.Body.String())
	snap := recorder.Snapshot()
	require.Len(t, snap.RecentErrors, 1)
	assert.Equal(t, "WEBHOOK_ERROR", snap.RecentErrors[0].Class)
	assert.Zero(t, stock.eventCount())
}

func TestWebhook_NonJSONContentTypeRejected(t *testing.T) {
	recorder := metrics.NewRecorder()
	router := newWebhookRouter("", &fakeStockSync{}, recorder)

	w := postWebhook(router, "events=1", "application/x-www-form-urlencoded", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	snap := recorder.Snapshot()
	require.Len(t, snap.RecentErrors, 1)
	assert.Equal(t, "WEBHOOK_ERROR", snap.RecentErrors[0].Class)
}

func TestWebhook_UnrelatedEntityTypeAcknowledgedAndIgnored(t *testing.T) {
	recorder := metrics.NewRecorder()
	stock := &fakeStockSync{}
	router := newWebhookRouter("", stock, recorder)

	body := `{"events":[{"meta":{"type":"counterparty","href":"https://erp.local/api/entity/counterparty/c-1"},"action":"UPDATE"}]}`
	w := postWebhook(router, body, "application/json", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ignored":1`)

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, stock.eventCount(), "unrelated entity types never trigger a sync")
	assert.Empty(t, recorder.Snapshot().RecentErrors)
}

func TestWebhook_ProductEventDispatchesResync(t *testing.T) {
	recorder := metrics.NewRecorder()
	stock := &fakeStockSync{}
	router := newWebhookRouter("", stock, recorder)

	body := `{"events":[
		{"meta":{"type":"product","href":"https://erp.local/api/entity/product/prod-77?expand=stock"},"action":"UPDATE"},
		{"meta":{"type":"counterparty","href":"https://erp.local/api/entity/counterparty/c-1"},"action":"UPDATE"}
	]}`
	w := postWebhook(router, body, "application/json", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"dispatched":1`)

	require.Eventually(t, func() bool { return stock.eventCount() == 1 }, time.Second, 5*time.Millisecond)
	stock.mu.Lock()
	defer stock.mu.Unlock()
	assert.Equal(t, []string{"prod-77"}, stock.events)
}

func TestWebhook_SharedSecret(t *testing.T) {
	recorder := metrics.NewRecorder()
	stock := &fakeStockSync{}
	router := newWebhookRouter("s3cret", stock, recorder)

	body := `{"events":[]}`

	w := postWebhook(router, body, "application/json", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = postWebhook(router, body, "application/json", map[string]string{"X-Webhook-Secret": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = postWebhook(router, body, "application/json", map[string]string{"X-Webhook-Secret": "s3cret"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestProductIDFromHref(t *testing.T) {
	assert.Equal(t, "prod-1", productIDFromHref("https://erp.local/api/entity/product/prod-1"))
	assert.Equal(t, "prod-1", productIDFromHref("https://erp.local/api/entity/product/prod-1/"))
	assert.Equal(t, "prod-1", productIDFromHref("https://erp.local/api/entity/product/prod-1?expand=stock"))
	assert.Equal(t, "", productIDFromHref(""))
}
