package service

import (
	"context"
	"testing"

	"stock-ledger-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRestock_CreatesRowLazily(t *testing.T) {
	fs := newFakeStore()
	ss := NewStockService(fs, nil, nil, 5)

	rec, err := ss.Restock(context.Background(), 1, "10", 7, "sync-batch-1")
	require.NoError(t, err)
	assert.Equal(t, 7, rec.Quantity)
	assert.Equal(t, 0, rec.ReservedQuantity)

	moves := fs.movesOfType(models.MoveTypeRestock)
	require.Len(t, moves, 1)
	assert.Equal(t, 7, moves[0].QuantityDelta)
	assert.Equal(t, "sync-batch-1", moves[0].ReferenceID)
}

func TestRestock_AddsToExistingRow(t *testing.T) {
	fs := newFakeStore()
	fs.setStock(1, "10", 3, 2)
	ss := NewStockService(fs, nil, nil, 5)

	rec, err := ss.Restock(context.Background(), 1, "10", 4, "")
	require.NoError(t, err)
	assert.Equal(t, 7, rec.Quantity)
	assert.Equal(t, 2, rec.ReservedQuantity)
}

func TestRestock_RejectsNonPositiveQuantity(t *testing.T) {
	ss := NewStockService(newFakeStore(), nil, nil, 5)

	_, err := ss.Restock(context.Background(), 1, "10", 0, "")
	assert.Error(t, err)

	_, err = ss.Restock(context.Background(), 1, "10", -3, "")
	assert.Error(t, err)
}

func TestAdjustStock_GuardsInvariant(t *testing.T) {
	fs := newFakeStore()
	fs.setStock(1, "10", 5, 3)
	ss := NewStockService(fs, nil, nil, 5)
	ctx := context.Background()

	// Shrinking to 4 still covers the 3 reserved units
	rec, err := ss.AdjustStock(ctx, 1, "10", -1, "cycle count", "ops:amara")
	require.NoError(t, err)
	assert.Equal(t, 4, rec.Quantity)

	// Shrinking below reserved is refused
	_, err = ss.AdjustStock(ctx, 1, "10", -2, "cycle count", "ops:amara")
	require.Error(t, err)
	assert.True(t, models.IsInvariantViolation(err))
	assert.Equal(t, 4, fs.stockAt(1, "10").Quantity)

	moves := fs.movesOfType(models.MoveTypeAdjustment)
	require.Len(t, moves, 1)
	assert.Equal(t, -1, moves[0].QuantityDelta)
	assert.Equal(t, "cycle count", moves[0].Reason)
}

func TestHandleStockChangeObserved_NeverMutatesState(t *testing.T) {
	fs := newFakeStore()
	fs.setStock(1, "10", 5, 2)
	ss := NewStockService(fs, nil, nil, 5)

	err := ss.HandleStockChangeObserved(context.Background(), &models.StockChangeObservedEvent{
		ProductID:        1,
		Size:             "10",
		ObservedQuantity: 999,
		Source:           "vendor-webhook",
	})
	require.NoError(t, err)

	// Observation is monitoring only
	rec := fs.stockAt(1, "10")
	assert.Equal(t, 5, rec.Quantity)
	assert.Equal(t, 2, rec.ReservedQuantity)
}
