package models

import "time"

// Event types published to the stock events topic
const (
	EventTypeStockReserved       = "STOCK_RESERVED"
	EventTypeStockCommitted      = "STOCK_COMMITTED"
	EventTypeStockReleased       = "STOCK_RELEASED"
	EventTypeStockRestocked      = "STOCK_RESTOCKED"
	EventTypeLowStock            = "LOW_STOCK"
	EventTypeStockChangeObserved = "STOCK_CHANGE_OBSERVED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// StockItemData represents one (product, size, qty) tuple in events
type StockItemData struct {
	ProductID int64  `json:"product_id"`
	Size      string `json:"size"`
	Quantity  int    `json:"quantity"`
}

// StockReservedEvent published when a reservation batch is fully held
type StockReservedEvent struct {
	BaseEvent
	ReservationIDs []string        `json:"reservation_ids"`
	Requester      string          `json:"requester"`
	Items          []StockItemData `json:"items"`
	ExpiresAt      time.Time       `json:"expires_at"`
}

// StockCommittedEvent published when reservations convert to a sale
type StockCommittedEvent struct {
	BaseEvent
	OrderID        int64           `json:"order_id"`
	ReservationIDs []string        `json:"reservation_ids"`
	Items          []StockItemData `json:"items"`
}

// StockReleasedEvent published when holds are returned to availability
type StockReleasedEvent struct {
	BaseEvent
	ReservationIDs []string        `json:"reservation_ids"`
	Items          []StockItemData `json:"items"`
	Reason         string          `json:"reason"`
}

// StockRestockedEvent published when the restock path adds quantity
type StockRestockedEvent struct {
	BaseEvent
	ProductID int64  `json:"product_id"`
	Size      string `json:"size"`
	Quantity  int    `json:"quantity"`
	Reference string `json:"reference"`
}

// LowStockEvent published when a restock or commit leaves availability
// at or below the configured threshold
type LowStockEvent struct {
	BaseEvent
	ProductID         int64  `json:"product_id"`
	Size              string `json:"size"`
	AvailableQuantity int    `json:"available_quantity"`
	Threshold         int    `json:"threshold"`
}

// StockChangeObservedEvent is an externally-produced notification of a
// stock level seen by a scraper or webhook. These are monitored and
// logged only; they never mutate reservation state.
type StockChangeObservedEvent struct {
	BaseEvent
	ProductID        int64  `json:"product_id"`
	Size             string `json:"size"`
	ObservedQuantity int    `json:"observed_quantity"`
	Source           string `json:"source"`
}
