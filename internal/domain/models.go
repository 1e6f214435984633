package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductMapping links one internal ERP product to one marketplace offer.
// Within a loaded document both sides are unique.
type ProductMapping struct {
	ProductID string `json:"product_id"`
	OfferID   string `json:"offer_id"`
}

// MappingDocument is the persisted envelope for the full product mapping
// set. It is owned by the mapping store; everything else reads it through
// the mapper.
type MappingDocument struct {
	Version     int              `json:"version"`
	LastUpdated time.Time        `json:"last_updated"`
	Mappings    []ProductMapping `json:"mappings"`
}

// OrderMapping correlates a marketplace order with the sales document
// created for it in the ERP. Rows are never deleted; the history is the
// reprocessing guard.
type OrderMapping struct {
	ID                 uuid.UUID
	MarketplaceOrderID string
	InternalOrderID    string
	Status             OrderSyncStatus
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// StockFigure is the per-product availability computed on every sync pass.
// It is transient and never persisted.
type StockFigure struct {
	ProductID      string
	TotalStock     int
	TotalReserve   int
	AvailableStock int
}

// ComputeStockFigure sums stock and reserve rows and clamps availability at
// zero when the upstream report is inconsistent.
func ComputeStockFigure(productID string, rows []StockRow) StockFigure {
	fig := StockFigure{ProductID: productID}
	for _, row := range rows {
		fig.TotalStock += row.Stock
		fig.TotalReserve += row.Reserve
	}
	fig.AvailableStock = fig.TotalStock - fig.TotalReserve
	if fig.AvailableStock < 0 {
		fig.AvailableStock = 0
	}
	return fig
}

// StockRow is one store's stock/reserve line from the ERP stock report.
type StockRow struct {
	ProductID string
	StoreID   string
	StoreName string
	Stock     int
	Reserve   int
}

// Product is an ERP product record (subset used by the engine).
type Product struct {
	ID       string
	Name     string
	Code     string
	Archived bool
}

// MarketplaceOrder is an order fetched from the marketplace.
type MarketplaceOrder struct {
	ID        string
	Number    string
	Status    string
	CreatedAt time.Time
	Items     []MarketplaceOrderItem
}

// MarketplaceOrderItem is one order line keyed by the marketplace offer code.
type MarketplaceOrderItem struct {
	OfferID  string
	Name     string
	Quantity int
	Price    decimal.Decimal
}

// SalesDocumentDraft is the ERP sales document built from a marketplace
// order; only resolved line items are included.
type SalesDocumentDraft struct {
	ExternalRef string
	Comment     string
	Positions   []SalesDocumentPosition
}

// SalesDocumentPosition is one resolved line of a sales document.
type SalesDocumentPosition struct {
	ProductID string
	Quantity  int
	Price     decimal.Decimal
}
