package service

import (
	"context"
	"testing"
	"time"

	"stock-ledger-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconcile_LedgerMatchesRow(t *testing.T) {
	fs := newFakeStore()
	fs.setStock(1, "10", 10, 0)
	rm := NewReservationManager(fs, nil, nil, 15)
	at := NewAuditTrail(fs)
	ctx := context.Background()

	first, err := rm.ReserveStock(ctx, []models.ItemRequest{{ProductID: 1, Size: "10", Quantity: 3}},
		ReserveOptions{Requester: sessionRequester("s1")})
	require.NoError(t, err)

	_, err = rm.ReserveStock(ctx, []models.ItemRequest{{ProductID: 1, Size: "10", Quantity: 2}},
		ReserveOptions{Requester: sessionRequester("s2")})
	require.NoError(t, err)

	released, err := rm.ReleaseReservations(ctx, []string{first.Reservations[0].ID}, "caller")
	require.NoError(t, err)
	require.Equal(t, 1, released)

	// Ledger since last commit: -3 +3 -2 = -2, row holds 2 reserved
	report, err := at.Reconcile(ctx, 1, "10")
	require.NoError(t, err)
	assert.Equal(t, 2, report.LedgerReserved)
	assert.Equal(t, 2, report.RecordedReserved)
	assert.True(t, report.Consistent)
}

func TestReconcile_AfterCommitResets(t *testing.T) {
	fs := newFakeStore()
	fs.setStock(1, "10", 10, 0)
	rm := NewReservationManager(fs, nil, nil, 15)
	at := NewAuditTrail(fs)
	ctx := context.Background()

	result, err := rm.ReserveStock(ctx, []models.ItemRequest{{ProductID: 1, Size: "10", Quantity: 4}},
		ReserveOptions{Requester: sessionRequester("s1")})
	require.NoError(t, err)
	require.NoError(t, rm.CommitReservedStock(ctx, []string{result.Reservations[0].ID}, 1))

	report, err := at.Reconcile(ctx, 1, "10")
	require.NoError(t, err)
	assert.Equal(t, 0, report.LedgerReserved)
	assert.Equal(t, 0, report.RecordedReserved)
	assert.True(t, report.Consistent)
}

func TestReconcile_DetectsDrift(t *testing.T) {
	fs := newFakeStore()
	// A row with reserved units the ledger never saw
	fs.setStock(1, "10", 10, 4)
	at := NewAuditTrail(fs)

	report, err := at.Reconcile(context.Background(), 1, "10")
	require.NoError(t, err)
	assert.False(t, report.Consistent)
	assert.Equal(t, 0, report.LedgerReserved)
	assert.Equal(t, 4, report.RecordedReserved)
}

func TestGetUserReservations_FiltersByRequesterAndExpiry(t *testing.T) {
	fs := newFakeStore()
	sessionA := "sess-a"
	sessionB := "sess-b"
	userID := int64(42)
	fs.addReservation(models.Reservation{
		ID: "a1", ProductID: 1, Size: "10", Quantity: 1,
		SessionID: &sessionA, ExpiresAt: time.Now().Add(10 * time.Minute),
	})
	fs.addReservation(models.Reservation{
		ID: "a2-expired", ProductID: 1, Size: "10", Quantity: 1,
		SessionID: &sessionA, ExpiresAt: time.Now().Add(-time.Minute),
	})
	fs.addReservation(models.Reservation{
		ID: "b1", ProductID: 2, Size: "9", Quantity: 1,
		SessionID: &sessionB, ExpiresAt: time.Now().Add(10 * time.Minute),
	})
	fs.addReservation(models.Reservation{
		ID: "u1", ProductID: 3, Size: "8", Quantity: 1,
		UserID: &userID, ExpiresAt: time.Now().Add(10 * time.Minute),
	})

	at := NewAuditTrail(fs)
	ctx := context.Background()

	bySession, err := at.GetUserReservations(ctx, models.Requester{SessionID: sessionA})
	require.NoError(t, err)
	require.Len(t, bySession, 1)
	assert.Equal(t, "a1", bySession[0].ID)

	byUser, err := at.GetUserReservations(ctx, models.Requester{UserID: userID})
	require.NoError(t, err)
	require.Len(t, byUser, 1)
	assert.Equal(t, "u1", byUser[0].ID)

	_, err = at.GetUserReservations(ctx, models.Requester{})
	assert.Error(t, err)
}

func TestGetLowStockItems(t *testing.T) {
	fs := newFakeStore()
	fs.setStock(1, "10", 10, 8) // available 2
	fs.setStock(2, "9", 50, 0)  // available 50
	at := NewAuditTrail(fs)

	items, err := at.GetLowStockItems(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, int64(1), items[0].ProductID)
	assert.Equal(t, 2, items[0].AvailableQuantity)
}
