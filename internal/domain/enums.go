package domain

// OrderSyncStatus is the lifecycle state of an order mapping.
type OrderSyncStatus string

const (
	// CREATED - sales document created in the ERP, shipment not yet detected
	OrderSyncStatusCreated OrderSyncStatus = "CREATED"
	// SHIPPED - shipment detected in the ERP and propagated to the marketplace
	OrderSyncStatusShipped OrderSyncStatus = "SHIPPED"
)

// IsValid checks if the order sync status is valid
func (s OrderSyncStatus) IsValid() bool {
	switch s {
	case OrderSyncStatusCreated, OrderSyncStatusShipped:
		return true
	default:
		return false
	}
}

// CanTransitionTo checks if a status transition is valid
func (s OrderSyncStatus) CanTransitionTo(newStatus OrderSyncStatus) bool {
	switch s {
	case OrderSyncStatusCreated:
		return newStatus == OrderSyncStatusShipped
	case OrderSyncStatusShipped:
		return false // terminal
	default:
		return false
	}
}
