package models

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorTaxonomyMatchesThroughWrapping(t *testing.T) {
	insufficient := &InsufficientStockError{Shortfalls: []ItemShortfall{
		{ProductID: 1, Size: "10", RequestedQuantity: 3, AvailableQuantity: 1, Shortfall: 2},
	}}
	wrapped := fmt.Errorf("reserve failed: %w", insufficient)
	assert.True(t, IsInsufficientStock(wrapped))
	assert.False(t, IsReservationExpired(wrapped))
	assert.Contains(t, insufficient.Error(), "short 2")

	expired := fmt.Errorf("commit failed: %w", &ReservationExpiredError{ReservationIDs: []string{"r1"}})
	assert.True(t, IsReservationExpired(expired))
	assert.False(t, IsInvariantViolation(expired))

	violation := fmt.Errorf("commit failed: %w", &InvariantViolationError{ProductID: 1, Size: "10", Detail: "drift"})
	assert.True(t, IsInvariantViolation(violation))
	assert.False(t, IsInsufficientStock(violation))
}
