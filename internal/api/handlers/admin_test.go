package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Krucheverba/m2-middleware-sub001/internal/domain"
	"github.com/Krucheverba/m2-middleware-sub001/internal/erp"
	"github.com/Krucheverba/m2-middleware-sub001/internal/metrics"
	"github.com/Krucheverba/m2-middleware-sub001/pkg/errors"
)

type fakeMappingService struct {
	recorder   *metrics.Recorder
	loadErr    error
	loads      int
	productIDs []string
}

func (f *fakeMappingService) LoadMappings() error {
	f.loads++
	return f.loadErr
}

func (f *fakeMappingService) ProductIDs() []string     { return f.productIDs }
func (f *fakeMappingService) Stats() metrics.Snapshot  { return f.recorder.Snapshot() }
func (f *fakeMappingService) Summary() metrics.Summary { return f.recorder.Summary() }

type fakeCatalog struct {
	products []domain.Product
	err      error
}

func (f *fakeCatalog) Products(_ context.Context) ([]domain.Product, error) {
	return f.products, f.err
}

func do(router *gin.Engine, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestAdmin_ReloadMappings(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := metrics.NewRecorder()
	svc := &fakeMappingService{recorder: recorder}
	router := gin.New()
	router.POST("/v1/admin/mappings/reload", HandleReloadMappings(svc, zap.NewNop()))

	w := do(router, http.MethodPost, "/v1/admin/mappings/reload")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, svc.loads)
}

func TestAdmin_ReloadMappingsFailureKeepsServing(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &fakeMappingService{
		recorder: metrics.NewRecorder(),
		loadErr:  &errors.ErrMappingLoad{Path: "data/mappings.json", Reason: "duplicate offer_id"},
	}
	router := gin.New()
	router.POST("/v1/admin/mappings/reload", HandleReloadMappings(svc, zap.NewNop()))

	w := do(router, http.MethodPost, "/v1/admin/mappings/reload")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "previous index retained")
}

func TestAdmin_ResetStats(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := metrics.NewRecorder()
	recorder.RecordSkip(metrics.ContextStock)
	recorder.RecordError(metrics.ErrorEntry{Class: "SYNC_ERROR", Message: "x"})

	router := gin.New()
	router.POST("/v1/admin/stats/reset", HandleResetStats(recorder, zap.NewNop()))

	w := do(router, http.MethodPost, "/v1/admin/stats/reset")
	assert.Equal(t, http.StatusOK, w.Code)

	snap := recorder.Snapshot()
	assert.Empty(t, snap.RecentErrors)
	assert.Zero(t, snap.Skipped[metrics.ContextStock])
}

func TestAdmin_TriggerStockSync(t *testing.T) {
	gin.SetMode(gin.TestMode)
	stock := &fakeStockSync{}
	router := gin.New()
	router.POST("/v1/admin/sync/stock", HandleTriggerStockSync(stock, zap.NewNop()))

	w := do(router, http.MethodPost, "/v1/admin/sync/stock")
	assert.Equal(t, http.StatusAccepted, w.Code)

	require.Eventually(t, func() bool {
		stock.mu.Lock()
		defer stock.mu.Unlock()
		return stock.syncAlls == 1
	}, time.Second, 5*time.Millisecond)
}

func TestAdmin_ListUnmappedProducts(t *testing.T) {
	gin.SetMode(gin.TestMode)
	catalog := &fakeCatalog{products: []domain.Product{
		{ID: "prod-1", Name: "Mapped", Code: "M-1"},
		{ID: "prod-2", Name: "Unmapped", Code: "U-2"},
		{ID: "prod-3", Name: "Archived", Code: "A-3", Archived: true},
	}}
	svc := &fakeMappingService{recorder: metrics.NewRecorder(), productIDs: []string{"prod-1"}}

	router := gin.New()
	router.GET("/v1/admin/products/unmapped", HandleListUnmappedProducts(catalog, svc, zap.NewNop()))

	w := do(router, http.MethodGet, "/v1/admin/products/unmapped")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "prod-2")
	assert.NotContains(t, w.Body.String(), "prod-1")
	assert.NotContains(t, w.Body.String(), "prod-3", "archived products need no mapping")
}

func TestAdmin_ListUnmappedProductsCatalogFailure(t *testing.T) {
	gin.SetMode(gin.TestMode)
	catalog := &fakeCatalog{err: &erp.APIError{StatusCode: 503, Body: "unavailable"}}
	svc := &fakeMappingService{recorder: metrics.NewRecorder()}

	router := gin.New()
	router.GET("/v1/admin/products/unmapped", HandleListUnmappedProducts(catalog, svc, zap.NewNop()))

	w := do(router, http.MethodGet, "/v1/admin/products/unmapped")
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestStats_Endpoints(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := metrics.NewRecorder()
	recorder.RecordLookupSuccess(metrics.DirectionProductToOffer)
	recorder.RecordLookupMiss(metrics.DirectionOfferToProduct, metrics.ContextOrder)
	svc := &fakeMappingService{recorder: recorder}

	router := gin.New()
	router.GET("/v1/stats", HandleGetStats(svc, zap.NewNop()))
	router.GET("/v1/stats/summary", HandleGetStatsSummary(svc, zap.NewNop()))

	w := do(router, http.MethodGet, "/v1/stats")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "product_to_offer")

	w = do(router, http.MethodGet, "/v1/stats/summary")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total_lookups":2`)
}
