package service

import (
	"context"
	"fmt"

	"stock-ledger-service/internal/models"
	"stock-ledger-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// StockService is the restock/adjustment write path used by the catalog
// sync process and operators. It only ever grows quantity (restock) or
// applies guarded signed corrections (adjustment); reservations are the
// ReservationManager's business.
type StockService struct {
	store             Store
	cache             StockCache
	publisher         Publisher
	logger            *zap.Logger
	lowStockThreshold int
}

// NewStockService creates a new stock service
func NewStockService(store Store, cache StockCache, publisher Publisher, lowStockThreshold int) *StockService {
	return &StockService{
		store:             store,
		cache:             cache,
		publisher:         publisher,
		logger:            util.GetLogger(),
		lowStockThreshold: lowStockThreshold,
	}
}

// Restock adds qty units to a (product, size), creating the stock row
// lazily on first restock, and writes the matching ledger entry.
func (ss *StockService) Restock(ctx context.Context, productID int64, size string, qty int, reference string) (*models.StockRecord, error) {
	ctx, span := util.StartSpan(ctx, "StockService.Restock")
	defer span.End()

	if qty <= 0 {
		return nil, fmt.Errorf("restock quantity must be positive, got %d", qty)
	}

	rec, err := ss.store.RestockAtomic(ctx, productID, size, qty)
	if err != nil {
		return nil, fmt.Errorf("failed to restock product %d size %s: %w", productID, size, err)
	}

	move := &models.InventoryMove{
		ID:            uuid.New().String(),
		ProductID:     productID,
		Size:          size,
		MoveType:      models.MoveTypeRestock,
		QuantityDelta: qty,
		ReferenceID:   reference,
		ReferenceType: models.ReferenceTypeRestock,
	}
	if err := ss.store.AppendMove(ctx, move); err != nil {
		ss.logger.Error("Failed to append restock move",
			zap.Int64("product_id", productID),
			zap.Error(err))
	} else {
		util.LedgerMovesTotal.WithLabelValues(string(models.MoveTypeRestock)).Inc()
	}

	ss.refreshCache(ctx, rec)

	ss.logger.Info("Stock replenished",
		zap.Int64("product_id", productID),
		zap.String("size", size),
		zap.Int("quantity", qty),
		zap.Int("new_total", rec.Quantity))

	if ss.publisher != nil {
		event := &models.StockRestockedEvent{
			BaseEvent: newBaseEvent(models.EventTypeStockRestocked),
			ProductID: productID,
			Size:      size,
			Quantity:  qty,
			Reference: reference,
		}
		if err := ss.publisher.PublishStockRestocked(ctx, event); err != nil {
			ss.logger.Error("Failed to publish StockRestocked event", zap.Error(err))
		}
	}

	ss.checkLowStock(ctx, rec)

	return rec, nil
}

// AdjustStock applies a signed operator correction to quantity. The
// conditional update refuses any delta that would leave quantity below
// reserved_quantity, which surfaces as an InvariantViolationError.
func (ss *StockService) AdjustStock(ctx context.Context, productID int64, size string, delta int, reason string, requester string) (*models.StockRecord, error) {
	ctx, span := util.StartSpan(ctx, "StockService.AdjustStock")
	defer span.End()

	if delta == 0 {
		return nil, fmt.Errorf("adjustment delta must be non-zero")
	}

	ok, err := ss.store.AdjustStockAtomic(ctx, productID, size, delta)
	if err != nil {
		return nil, fmt.Errorf("failed to adjust product %d size %s: %w", productID, size, err)
	}
	if !ok {
		util.InvariantViolationsTotal.Inc()
		return nil, &models.InvariantViolationError{
			ProductID: productID,
			Size:      size,
			Detail:    fmt.Sprintf("adjustment by %d would push quantity below reserved", delta),
		}
	}

	move := &models.InventoryMove{
		ID:            uuid.New().String(),
		ProductID:     productID,
		Size:          size,
		MoveType:      models.MoveTypeAdjustment,
		QuantityDelta: delta,
		ReferenceType: models.ReferenceTypeAdjustment,
		Reason:        reason,
		Requester:     requester,
	}
	if err := ss.store.AppendMove(ctx, move); err != nil {
		ss.logger.Error("Failed to append adjustment move",
			zap.Int64("product_id", productID),
			zap.Error(err))
	} else {
		util.LedgerMovesTotal.WithLabelValues(string(models.MoveTypeAdjustment)).Inc()
	}

	rec, err := ss.store.GetStockRecord(ctx, productID, size)
	if err != nil {
		return nil, err
	}
	ss.refreshCache(ctx, rec)
	ss.checkLowStock(ctx, rec)

	return rec, nil
}

// HandleStockChangeObserved records an externally observed stock level.
// Observed changes are never applied to reservation state; they exist
// for monitoring and later reconciliation only.
func (ss *StockService) HandleStockChangeObserved(ctx context.Context, event *models.StockChangeObservedEvent) error {
	util.ExternalStockObservationsTotal.Inc()

	rec, err := ss.store.GetStockRecord(ctx, event.ProductID, event.Size)
	if err != nil {
		ss.logger.Warn("Could not load stock row for observed change",
			zap.Int64("product_id", event.ProductID),
			zap.Error(err))
		return nil
	}

	recorded := 0
	if rec != nil {
		recorded = rec.Quantity
	}

	ss.logger.Info("External stock change observed",
		zap.Int64("product_id", event.ProductID),
		zap.String("size", event.Size),
		zap.Int("observed_quantity", event.ObservedQuantity),
		zap.Int("recorded_quantity", recorded),
		zap.String("source", event.Source))

	return nil
}

func (ss *StockService) refreshCache(ctx context.Context, rec *models.StockRecord) {
	if ss.cache == nil || rec == nil {
		return
	}
	if err := ss.cache.SetStock(ctx, rec.ProductID, rec.Size, rec.Quantity, rec.ReservedQuantity); err != nil {
		ss.logger.Warn("Failed to refresh stock cache", zap.Error(err))
	}
}

func (ss *StockService) checkLowStock(ctx context.Context, rec *models.StockRecord) {
	if ss.publisher == nil || rec == nil {
		return
	}
	if rec.Available() > ss.lowStockThreshold {
		return
	}

	event := &models.LowStockEvent{
		BaseEvent:         newBaseEvent(models.EventTypeLowStock),
		ProductID:         rec.ProductID,
		Size:              rec.Size,
		AvailableQuantity: rec.Available(),
		Threshold:         ss.lowStockThreshold,
	}
	if err := ss.publisher.PublishLowStock(ctx, event); err != nil {
		ss.logger.Error("Failed to publish LowStock event", zap.Error(err))
	}
}
