package errors

import (
	"fmt"
)

// ErrMappingLoad is returned when the mapping document cannot be read,
// parsed, or fails uniqueness validation. The previously loaded index is
// kept when this is returned from a reload.
type ErrMappingLoad struct {
	Path   string
	Reason string
	Err    error
}

func (e *ErrMappingLoad) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("load mapping document %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("load mapping document %s: %s", e.Path, e.Reason)
}

func (e *ErrMappingLoad) Unwrap() error {
	return e.Err
}

// ErrMappingWrite is returned when the mapping document cannot be persisted.
// The on-disk document is never left partially written.
type ErrMappingWrite struct {
	Path string
	Err  error
}

func (e *ErrMappingWrite) Error() string {
	return fmt.Sprintf("write mapping document %s: %v", e.Path, e.Err)
}

func (e *ErrMappingWrite) Unwrap() error {
	return e.Err
}

// ErrDuplicateOrder is returned when an order mapping already exists for a
// marketplace order id.
type ErrDuplicateOrder struct {
	MarketplaceOrderID string
}

func (e *ErrDuplicateOrder) Error() string {
	return fmt.Sprintf("order mapping already exists for marketplace order %s", e.MarketplaceOrderID)
}

// ErrOrderNotFound is returned when no order mapping exists for a
// marketplace order id.
type ErrOrderNotFound struct {
	MarketplaceOrderID string
}

func (e *ErrOrderNotFound) Error() string {
	return fmt.Sprintf("order mapping not found for marketplace order %s", e.MarketplaceOrderID)
}

// ErrSync is returned when an external call fails during a sync pass after
// retries are exhausted. It is contained and logged per item; it never
// aborts a batch.
type ErrSync struct {
	Op        string // e.g. "stock_report", "stock_push", "order_create"
	ProductID string
	OfferID   string
	OrderID   string
	Err       error
}

func (e *ErrSync) Error() string {
	return fmt.Sprintf("sync %s (product=%s offer=%s order=%s): %v", e.Op, e.ProductID, e.OfferID, e.OrderID, e.Err)
}

func (e *ErrSync) Unwrap() error {
	return e.Err
}

// ErrWebhook is returned when a webhook payload is malformed. The request
// is rejected with a client error and the process is unaffected.
type ErrWebhook struct {
	Reason string
}

func (e *ErrWebhook) Error() string {
	return fmt.Sprintf("webhook rejected: %s", e.Reason)
}
