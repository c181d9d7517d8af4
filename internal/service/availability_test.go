package service

import (
	"context"
	"testing"

	"stock-ledger-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckAvailability_Batch(t *testing.T) {
	fs := newFakeStore()
	fs.setStock(1, "10", 5, 2)
	fs.setStock(1, "11", 4, 4)
	ac := NewAvailabilityChecker(fs, nil)

	results, err := ac.CheckAvailability(context.Background(), []models.ItemRequest{
		{ProductID: 1, Size: "10", Quantity: 3},
		{ProductID: 1, Size: "11", Quantity: 1},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, 3, results[0].AvailableQuantity)
	assert.True(t, results[0].IsAvailable)

	assert.Equal(t, 0, results[1].AvailableQuantity)
	assert.False(t, results[1].IsAvailable)
}

func TestCheckAvailability_MissingRecordIsNotAnError(t *testing.T) {
	fs := newFakeStore()
	ac := NewAvailabilityChecker(fs, nil)

	results, err := ac.CheckAvailability(context.Background(), []models.ItemRequest{
		{ProductID: 404, Size: "12", Quantity: 1},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 0, results[0].AvailableQuantity)
	assert.False(t, results[0].IsAvailable)
}

func TestCheckAvailability_EmptyBatch(t *testing.T) {
	ac := NewAvailabilityChecker(newFakeStore(), nil)

	results, err := ac.CheckAvailability(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestGetStockSnapshot_MissingRecordReportsZeros(t *testing.T) {
	ac := NewAvailabilityChecker(newFakeStore(), nil)

	rec, err := ac.GetStockSnapshot(context.Background(), 7, "9")
	require.NoError(t, err)
	assert.Equal(t, 0, rec.Quantity)
	assert.Equal(t, 0, rec.Available())
}
