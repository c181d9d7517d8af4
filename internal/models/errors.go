package models

import (
	"errors"
	"fmt"
	"strings"
)

// InsufficientStockError reports a reservation batch that could not be
// fully held. Expected business outcome; callers branch on it.
type InsufficientStockError struct {
	Shortfalls []ItemShortfall
}

func (e *InsufficientStockError) Error() string {
	parts := make([]string, 0, len(e.Shortfalls))
	for _, s := range e.Shortfalls {
		parts = append(parts, fmt.Sprintf("product %d size %s short %d", s.ProductID, s.Size, s.Shortfall))
	}
	return "insufficient stock: " + strings.Join(parts, "; ")
}

// ReservationExpiredError reports a commit against holds that are gone
// or past their deadline. Expected race; the caller must re-reserve.
type ReservationExpiredError struct {
	ReservationIDs []string
}

func (e *ReservationExpiredError) Error() string {
	return fmt.Sprintf("reservations no longer active: %s", strings.Join(e.ReservationIDs, ", "))
}

// InvariantViolationError reports state that should be unreachable under
// the atomic-write guarantee (reserved below zero or above quantity, or a
// half-committed batch). Fatal; requires operator reconciliation.
type InvariantViolationError struct {
	ProductID int64
	Size      string
	Detail    string
}

func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("inventory invariant violated for product %d size %s: %s", e.ProductID, e.Size, e.Detail)
}

// IsInsufficientStock reports whether err is an InsufficientStockError.
func IsInsufficientStock(err error) bool {
	var target *InsufficientStockError
	return errors.As(err, &target)
}

// IsReservationExpired reports whether err is a ReservationExpiredError.
func IsReservationExpired(err error) bool {
	var target *ReservationExpiredError
	return errors.As(err, &target)
}

// IsInvariantViolation reports whether err is an InvariantViolationError.
func IsInvariantViolation(err error) bool {
	var target *InvariantViolationError
	return errors.As(err, &target)
}
