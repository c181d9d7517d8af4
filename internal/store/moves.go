package store

import (
	"context"

	"stock-ledger-service/internal/models"
)

// AppendMove appends one entry to the inventory ledger. Entries are
// written only after the state change they document has committed, so
// the ledger never describes a mutation that did not happen.
func (s *Store) AppendMove(ctx context.Context, m *models.InventoryMove) error {
	query := `
		INSERT INTO inventory_moves
			(id, product_id, size, move_type, quantity_delta, reference_id, reference_type, reason, requester)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at`

	return s.db.GetContext(ctx, &m.CreatedAt, query,
		m.ID, m.ProductID, m.Size, m.MoveType, m.QuantityDelta,
		m.ReferenceID, m.ReferenceType, m.Reason, m.Requester)
}

// GetMoves lists ledger entries for one (product, size), newest first
func (s *Store) GetMoves(ctx context.Context, productID int64, size string, limit int) ([]models.InventoryMove, error) {
	if limit <= 0 {
		limit = 100
	}

	var moves []models.InventoryMove
	err := s.db.SelectContext(ctx, &moves, `
		SELECT * FROM inventory_moves
		WHERE product_id = $1 AND size = $2
		ORDER BY created_at DESC
		LIMIT $3`,
		productID, size, limit)
	return moves, err
}

// SumOutstandingReserveDeltas sums reserve and release deltas for one
// (product, size) since its most recent commit. By the reconciliation
// invariant the negated sum equals the row's current reserved_quantity.
func (s *Store) SumOutstandingReserveDeltas(ctx context.Context, productID int64, size string) (int, error) {
	var sum int
	err := s.db.GetContext(ctx, &sum, `
		SELECT COALESCE(SUM(quantity_delta), 0)
		FROM inventory_moves
		WHERE product_id = $1 AND size = $2
		  AND move_type IN ('reserve', 'release')
		  AND created_at > COALESCE(
			(SELECT MAX(created_at) FROM inventory_moves
			 WHERE product_id = $1 AND size = $2 AND move_type = 'commit'),
			'epoch'::timestamptz)`,
		productID, size)
	return sum, err
}
