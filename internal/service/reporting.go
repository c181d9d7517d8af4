package service

import (
	"context"
	"fmt"
	"time"

	"stock-ledger-service/internal/models"
	"stock-ledger-service/internal/util"

	"go.uber.org/zap"
)

// AuditTrail serves read-only projections over the move ledger and the
// stock table for operational visibility. Results are eventually
// consistent snapshots with no ordering guarantee relative to in-flight
// reservation operations.
type AuditTrail struct {
	store  Store
	logger *zap.Logger
}

// NewAuditTrail creates a new audit trail reader
func NewAuditTrail(store Store) *AuditTrail {
	return &AuditTrail{
		store:  store,
		logger: util.GetLogger(),
	}
}

// GetUserReservations lists active, non-expired holds for a requester
func (at *AuditTrail) GetUserReservations(ctx context.Context, requester models.Requester) ([]models.Reservation, error) {
	ctx, span := util.StartSpan(ctx, "AuditTrail.GetUserReservations")
	defer span.End()

	if requester.IsZero() {
		return nil, fmt.Errorf("requester is required")
	}

	now := time.Now()
	if requester.SessionID != "" {
		return at.store.GetActiveReservationsBySession(ctx, requester.SessionID, now)
	}
	return at.store.GetActiveReservationsByUser(ctx, requester.UserID, now)
}

// GetLowStockItems returns stock rows with availability at or below
// threshold, joined with product display data.
func (at *AuditTrail) GetLowStockItems(ctx context.Context, threshold int) ([]models.LowStockItem, error) {
	ctx, span := util.StartSpan(ctx, "AuditTrail.GetLowStockItems")
	defer span.End()

	return at.store.GetLowStockItems(ctx, threshold)
}

// GetMoves lists ledger entries for one (product, size)
func (at *AuditTrail) GetMoves(ctx context.Context, productID int64, size string, limit int) ([]models.InventoryMove, error) {
	return at.store.GetMoves(ctx, productID, size, limit)
}

// ReconciliationReport compares the ledger against the stock row for
// one (product, size).
type ReconciliationReport struct {
	ProductID        int64  `json:"product_id"`
	Size             string `json:"size"`
	LedgerReserved   int    `json:"ledger_reserved"`
	RecordedReserved int    `json:"recorded_reserved"`
	Consistent       bool   `json:"consistent"`
}

// Reconcile checks the invariant that the negated sum of reserve and
// release deltas since the last commit equals the row's current
// reserved_quantity. A mismatch is logged and counted but reported, not
// repaired; repairs are an operator decision.
func (at *AuditTrail) Reconcile(ctx context.Context, productID int64, size string) (*ReconciliationReport, error) {
	ctx, span := util.StartSpan(ctx, "AuditTrail.Reconcile")
	defer span.End()

	sum, err := at.store.SumOutstandingReserveDeltas(ctx, productID, size)
	if err != nil {
		return nil, fmt.Errorf("failed to sum ledger deltas: %w", err)
	}

	rec, err := at.store.GetStockRecord(ctx, productID, size)
	if err != nil {
		return nil, fmt.Errorf("failed to load stock record: %w", err)
	}
	recorded := 0
	if rec != nil {
		recorded = rec.ReservedQuantity
	}

	report := &ReconciliationReport{
		ProductID:        productID,
		Size:             size,
		LedgerReserved:   -sum,
		RecordedReserved: recorded,
		Consistent:       -sum == recorded,
	}

	if !report.Consistent {
		util.InvariantViolationsTotal.Inc()
		at.logger.Error("Ledger does not reconcile with stock row",
			zap.Int64("product_id", productID),
			zap.String("size", size),
			zap.Int("ledger_reserved", report.LedgerReserved),
			zap.Int("recorded_reserved", report.RecordedReserved))
	}

	return report, nil
}
