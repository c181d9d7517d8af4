package service

import (
	"context"
	"time"

	"stock-ledger-service/internal/models"
)

// Store is the persistence contract consumed by the services. The
// conditional mutations are atomic per (product, size) row; batch
// semantics across rows are built on top with compensating releases.
// Implemented by *store.Store.
type Store interface {
	GetStockRecord(ctx context.Context, productID int64, size string) (*models.StockRecord, error)
	GetStockRecordsByProducts(ctx context.Context, productIDs []int64) ([]models.StockRecord, error)
	ReserveStockAtomic(ctx context.Context, productID int64, size string, qty int) (bool, error)
	ReleaseStockAtomic(ctx context.Context, productID int64, size string, qty int) error
	CommitStockAtomic(ctx context.Context, productID int64, size string, qty int) (bool, error)
	RestockAtomic(ctx context.Context, productID int64, size string, qty int) (*models.StockRecord, error)
	AdjustStockAtomic(ctx context.Context, productID int64, size string, delta int) (bool, error)
	GetLowStockItems(ctx context.Context, threshold int) ([]models.LowStockItem, error)

	CreateReservation(ctx context.Context, r *models.Reservation) error
	GetReservationsByIDs(ctx context.Context, ids []string) ([]models.Reservation, error)
	ClaimReservation(ctx context.Context, id string) (*models.Reservation, error)
	GetExpiredReservationIDs(ctx context.Context, now time.Time) ([]string, error)
	GetActiveReservationsBySession(ctx context.Context, sessionID string, now time.Time) ([]models.Reservation, error)
	GetActiveReservationsByUser(ctx context.Context, userID int64, now time.Time) ([]models.Reservation, error)

	AppendMove(ctx context.Context, m *models.InventoryMove) error
	GetMoves(ctx context.Context, productID int64, size string, limit int) ([]models.InventoryMove, error)
	SumOutstandingReserveDeltas(ctx context.Context, productID int64, size string) (int, error)
}

// StockCache is the best-effort availability mirror and coordination
// surface. Implemented by *redisclient.Client; services tolerate a nil
// cache and cache errors alike.
type StockCache interface {
	SetStock(ctx context.Context, productID int64, size string, quantity, reserved int) error
	GetStock(ctx context.Context, productID int64, size string) (quantity, reserved int, found bool, err error)
	MirrorReserve(ctx context.Context, productID int64, size string, qty int) error
	MirrorRelease(ctx context.Context, productID int64, size string, qty int) error
	MirrorCommit(ctx context.Context, productID int64, size string, qty int) error
	SetIdempotencyResult(ctx context.Context, key string, payload []byte, ttl time.Duration) (bool, error)
	GetIdempotencyResult(ctx context.Context, key string) ([]byte, error)
	AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, lockKey string) error
}

// Publisher fans stock lifecycle events out to the broker. Implemented
// by *broker.EventPublisher; a nil publisher disables events.
type Publisher interface {
	PublishStockReserved(ctx context.Context, event *models.StockReservedEvent) error
	PublishStockCommitted(ctx context.Context, event *models.StockCommittedEvent) error
	PublishStockReleased(ctx context.Context, event *models.StockReleasedEvent) error
	PublishStockRestocked(ctx context.Context, event *models.StockRestockedEvent) error
	PublishLowStock(ctx context.Context, event *models.LowStockEvent) error
}
