package service

import (
	"context"
	"fmt"

	"stock-ledger-service/internal/models"
	"stock-ledger-service/internal/util"

	"go.uber.org/zap"
)

// AvailabilityChecker answers "can these (product, size, qty) tuples be
// satisfied right now?". Pure read; safe to call concurrently with any
// other operation.
type AvailabilityChecker struct {
	store  Store
	cache  StockCache
	logger *zap.Logger
}

// NewAvailabilityChecker creates a new availability checker
func NewAvailabilityChecker(store Store, cache StockCache) *AvailabilityChecker {
	return &AvailabilityChecker{
		store:  store,
		cache:  cache,
		logger: util.GetLogger(),
	}
}

// CheckAvailability answers every requested tuple with one batch read
// over the distinct product ids. A (product, size) with no stock row
// reports zero availability; absence means "not stocked", a valid
// business state, not a fault.
func (ac *AvailabilityChecker) CheckAvailability(ctx context.Context, items []models.ItemRequest) ([]models.AvailabilityResult, error) {
	ctx, span := util.StartSpan(ctx, "AvailabilityChecker.CheckAvailability")
	defer span.End()

	if len(items) == 0 {
		return []models.AvailabilityResult{}, nil
	}

	seen := make(map[int64]bool, len(items))
	productIDs := make([]int64, 0, len(items))
	for _, item := range items {
		if !seen[item.ProductID] {
			seen[item.ProductID] = true
			productIDs = append(productIDs, item.ProductID)
		}
	}

	records, err := ac.store.GetStockRecordsByProducts(ctx, productIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load stock records: %w", err)
	}

	byKey := make(map[string]*models.StockRecord, len(records))
	for i := range records {
		rec := &records[i]
		byKey[stockRecordKey(rec.ProductID, rec.Size)] = rec
	}

	results := make([]models.AvailabilityResult, 0, len(items))
	for _, item := range items {
		result := models.AvailabilityResult{
			ProductID:         item.ProductID,
			Size:              item.Size,
			RequestedQuantity: item.Quantity,
		}
		if rec, ok := byKey[stockRecordKey(item.ProductID, item.Size)]; ok {
			result.AvailableQuantity = rec.Available()
			result.IsAvailable = rec.Available() >= item.Quantity
		}
		results = append(results, result)
	}

	ac.refreshMirror(ctx, records)

	return results, nil
}

// GetStockSnapshot reads one row, serving from the cache mirror when it
// is warm and falling back to the store on a miss.
func (ac *AvailabilityChecker) GetStockSnapshot(ctx context.Context, productID int64, size string) (*models.StockRecord, error) {
	if ac.cache != nil {
		quantity, reserved, found, err := ac.cache.GetStock(ctx, productID, size)
		if err != nil {
			ac.logger.Warn("Stock cache read failed, falling back to store",
				zap.Int64("product_id", productID),
				zap.String("size", size),
				zap.Error(err))
		} else if found {
			return &models.StockRecord{
				ProductID:        productID,
				Size:             size,
				Quantity:         quantity,
				ReservedQuantity: reserved,
			}, nil
		}
	}

	rec, err := ac.store.GetStockRecord(ctx, productID, size)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		// Not stocked: report zeros instead of erroring.
		return &models.StockRecord{ProductID: productID, Size: size}, nil
	}

	if ac.cache != nil {
		if err := ac.cache.SetStock(ctx, productID, size, rec.Quantity, rec.ReservedQuantity); err != nil {
			ac.logger.Warn("Failed to warm stock cache", zap.Error(err))
		}
	}

	return rec, nil
}

// refreshMirror pushes authoritative rows into the cache, best effort
func (ac *AvailabilityChecker) refreshMirror(ctx context.Context, records []models.StockRecord) {
	if ac.cache == nil {
		return
	}
	for _, rec := range records {
		if err := ac.cache.SetStock(ctx, rec.ProductID, rec.Size, rec.Quantity, rec.ReservedQuantity); err != nil {
			ac.logger.Warn("Failed to refresh stock cache",
				zap.Int64("product_id", rec.ProductID),
				zap.String("size", rec.Size),
				zap.Error(err))
			return
		}
	}
}

func stockRecordKey(productID int64, size string) string {
	return fmt.Sprintf("%d:%s", productID, size)
}
