package models

import (
	"strconv"
	"time"
)

// MoveType classifies an inventory ledger entry
type MoveType string

const (
	MoveTypeReserve    MoveType = "reserve"
	MoveTypeCommit     MoveType = "commit"
	MoveTypeRelease    MoveType = "release"
	MoveTypeAdjustment MoveType = "adjustment"
	MoveTypeRestock    MoveType = "restock"
)

// ReservationState is the lifecycle state of a hold. COMMITTED and
// RELEASED are terminal; rows in a terminal state are deleted, so only
// ACTIVE rows exist in storage.
type ReservationState string

const (
	ReservationStateActive    ReservationState = "ACTIVE"
	ReservationStateCommitted ReservationState = "COMMITTED"
	ReservationStateReleased  ReservationState = "RELEASED"
)

// StockRecord tracks sellable quantity per (product, size).
// Invariant: 0 <= reserved_quantity <= quantity under all concurrent access.
type StockRecord struct {
	ProductID        int64     `db:"product_id" json:"product_id"`
	Size             string    `db:"size" json:"size"`
	Quantity         int       `db:"quantity" json:"quantity"`
	ReservedQuantity int       `db:"reserved_quantity" json:"reserved_quantity"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}

// Available is the sellable remainder; derived, never stored.
func (r StockRecord) Available() int {
	return r.Quantity - r.ReservedQuantity
}

// Reservation is a time-bounded hold on inventory. Exactly one of
// SessionID/UserID identifies the requester.
type Reservation struct {
	ID        string    `db:"id" json:"id"`
	ProductID int64     `db:"product_id" json:"product_id"`
	Size      string    `db:"size" json:"size"`
	Quantity  int       `db:"quantity" json:"quantity"`
	SessionID *string   `db:"session_id" json:"session_id,omitempty"`
	UserID    *int64    `db:"user_id" json:"user_id,omitempty"`
	OrderID   *int64    `db:"order_id" json:"order_id,omitempty"`
	ExpiresAt time.Time `db:"expires_at" json:"expires_at"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Expired reports whether the hold's deadline has passed. An expired
// reservation still occupies reserved_quantity until released, but must
// never be committed.
func (r *Reservation) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// InventoryMove is one append-only ledger entry. Never mutated or deleted.
type InventoryMove struct {
	ID            string    `db:"id" json:"id"`
	ProductID     int64     `db:"product_id" json:"product_id"`
	Size          string    `db:"size" json:"size"`
	MoveType      MoveType  `db:"move_type" json:"move_type"`
	QuantityDelta int       `db:"quantity_delta" json:"quantity_delta"`
	ReferenceID   string    `db:"reference_id" json:"reference_id,omitempty"`
	ReferenceType string    `db:"reference_type" json:"reference_type,omitempty"`
	Reason        string    `db:"reason" json:"reason,omitempty"`
	Requester     string    `db:"requester" json:"requester,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// Reference types used on ledger entries
const (
	ReferenceTypeReservation = "reservation"
	ReferenceTypeOrder       = "order"
	ReferenceTypeRestock     = "restock"
	ReferenceTypeAdjustment  = "adjustment"
)

// Requester identifies who asked for a hold: an anonymous checkout
// session or a logged-in user, never both.
type Requester struct {
	SessionID string `json:"session_id,omitempty"`
	UserID    int64  `json:"user_id,omitempty"`
}

// String renders the requester for ledger entries and log fields.
func (r Requester) String() string {
	if r.SessionID != "" {
		return "session:" + r.SessionID
	}
	return "user:" + strconv.FormatInt(r.UserID, 10)
}

// IsZero reports whether no requester identity was supplied.
func (r Requester) IsZero() bool {
	return r.SessionID == "" && r.UserID == 0
}

// ItemRequest is one (product, size, qty) tuple in an availability check
// or a reservation batch.
type ItemRequest struct {
	ProductID int64  `json:"product_id" binding:"required"`
	Size      string `json:"size" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,min=1"`
}

// AvailabilityResult answers one ItemRequest. A (product, size) with no
// stock record reports zero availability; absence is a business state,
// not a fault.
type AvailabilityResult struct {
	ProductID         int64  `json:"product_id"`
	Size              string `json:"size"`
	RequestedQuantity int    `json:"requested_quantity"`
	AvailableQuantity int    `json:"available_quantity"`
	IsAvailable       bool   `json:"is_available"`
}

// ItemShortfall reports how many units short a reservation item fell.
type ItemShortfall struct {
	ProductID         int64  `json:"product_id"`
	Size              string `json:"size"`
	RequestedQuantity int    `json:"requested_quantity"`
	AvailableQuantity int    `json:"available_quantity"`
	Shortfall         int    `json:"shortfall"`
}

// ReservationBatchResult is the all-or-nothing outcome of ReserveStock.
// On failure no reservation from the batch remains active.
type ReservationBatchResult struct {
	Success      bool            `json:"success"`
	Reservations []Reservation   `json:"reservations,omitempty"`
	Failures     []ItemShortfall `json:"failures,omitempty"`
	ExpiresAt    time.Time       `json:"expires_at,omitempty"`
}

// SweepResult summarizes one expiration sweep run.
type SweepResult struct {
	ExpiredFound  int `json:"expired_found"`
	ReleasedCount int `json:"released_count"`
}

// LowStockItem is a stock row at or below the low-stock threshold,
// joined with catalog display data.
type LowStockItem struct {
	ProductID         int64  `db:"product_id" json:"product_id"`
	Size              string `db:"size" json:"size"`
	ProductName       string `db:"product_name" json:"product_name"`
	SKU               string `db:"sku" json:"sku"`
	Quantity          int    `db:"quantity" json:"quantity"`
	ReservedQuantity  int    `db:"reserved_quantity" json:"reserved_quantity"`
	AvailableQuantity int    `db:"available_quantity" json:"available_quantity"`
}
