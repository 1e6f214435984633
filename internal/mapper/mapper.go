package mapper

import (
	"go.uber.org/zap"

	"github.com/Krucheverba/m2-middleware-sub001/internal/mapping"
	"github.com/Krucheverba/m2-middleware-sub001/internal/metrics"
)

// Mapper is the lookup façade over the identity mapping store. Every
// lookup is accounted as a success, miss, or error; a miss is an expected
// outcome returned as ok=false, never an error.
type Mapper struct {
	store    mapping.Store
	recorder *metrics.Recorder
	logger   *zap.Logger
}

// New creates a mapper over the given store and metrics recorder
func New(store mapping.Store, recorder *metrics.Recorder, logger *zap.Logger) *Mapper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mapper{
		store:    store,
		recorder: recorder,
		logger:   logger,
	}
}

// ProductIDToOfferID resolves an internal product id to its marketplace
// offer code. The caller context tags miss accounting.
func (m *Mapper) ProductIDToOfferID(productID string, caller metrics.CallerContext) (string, bool) {
	if m.store.LoadedAt().IsZero() {
		m.recorder.RecordLookupError(metrics.DirectionProductToOffer)
		m.logger.Warn("Lookup against empty mapping index", zap.String("product_id", productID))
		return "", false
	}
	offerID, ok := m.store.LookupByProductID(productID)
	if !ok {
		m.recorder.RecordLookupMiss(metrics.DirectionProductToOffer, caller)
		return "", false
	}
	m.recorder.RecordLookupSuccess(metrics.DirectionProductToOffer)
	return offerID, true
}

// OfferIDToProductID resolves a marketplace offer code to the internal
// product id.
func (m *Mapper) OfferIDToProductID(offerID string, caller metrics.CallerContext) (string, bool) {
	if m.store.LoadedAt().IsZero() {
		m.recorder.RecordLookupError(metrics.DirectionOfferToProduct)
		m.logger.Warn("Lookup against empty mapping index", zap.String("offer_id", offerID))
		return "", false
	}
	productID, ok := m.store.LookupByOfferID(offerID)
	if !ok {
		m.recorder.RecordLookupMiss(metrics.DirectionOfferToProduct, caller)
		return "", false
	}
	m.recorder.RecordLookupSuccess(metrics.DirectionOfferToProduct)
	return productID, true
}

// LoadMappings (re)loads the mapping document and publishes the new count
// and timestamp. On failure the store keeps its previous index and the
// error is surfaced to the caller.
func (m *Mapper) LoadMappings() error {
	if err := m.store.Load(); err != nil {
		m.recorder.RecordError(metrics.ErrorEntry{
			Class:   "MAPPING_LOAD_ERROR",
			Message: err.Error(),
		})
		return err
	}
	m.recorder.SetMappingInfo(m.store.Count(), m.store.LoadedAt())
	return nil
}

// ProductIDs returns every mapped internal product id, for full sync passes.
func (m *Mapper) ProductIDs() []string {
	return m.store.ProductIDs()
}

// Stats returns the full metrics snapshot for the reporting surface.
func (m *Mapper) Stats() metrics.Snapshot {
	return m.recorder.Snapshot()
}

// Summary returns the compact metrics aggregate for the reporting surface.
func (m *Mapper) Summary() metrics.Summary {
	return m.recorder.Summary()
}
