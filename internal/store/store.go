package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"stock-ledger-service/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Store is the persistence layer for stock rows, reservations, and the
// append-only move ledger.
type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// GetStockRecord retrieves the stock row for one (product, size).
// Returns nil, nil when the row does not exist: absence means "not
// stocked", which callers treat as zero availability.
func (s *Store) GetStockRecord(ctx context.Context, productID int64, size string) (*models.StockRecord, error) {
	var rec models.StockRecord
	err := s.db.GetContext(ctx, &rec,
		"SELECT * FROM stock_records WHERE product_id = $1 AND size = $2", productID, size)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// GetStockRecordsByProducts retrieves all stock rows for the given
// product ids in one round trip.
func (s *Store) GetStockRecordsByProducts(ctx context.Context, productIDs []int64) ([]models.StockRecord, error) {
	if len(productIDs) == 0 {
		return []models.StockRecord{}, nil
	}

	query, args, err := sqlx.In("SELECT * FROM stock_records WHERE product_id IN (?)", productIDs)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var records []models.StockRecord
	err = s.db.SelectContext(ctx, &records, query, args...)
	return records, err
}

// ReserveStockAtomic increments reserved_quantity by qty only if
// quantity - reserved_quantity >= qty still holds at write time. The
// predicate and the increment execute as one statement under the row's
// isolation, so concurrent reservations for the same row cannot
// oversell. Returns false when the predicate failed (insufficient
// stock or missing row).
func (s *Store) ReserveStockAtomic(ctx context.Context, productID int64, size string, qty int) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE stock_records
		SET reserved_quantity = reserved_quantity + $1, updated_at = NOW()
		WHERE product_id = $2 AND size = $3
		  AND quantity - reserved_quantity >= $1`,
		qty, productID, size)
	if err != nil {
		return false, fmt.Errorf("failed to reserve stock: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// ReleaseStockAtomic decrements reserved_quantity by qty, clamped at a
// floor of 0 as a defense against drift. Quantity is untouched, so
// availability increases by the released amount.
func (s *Store) ReleaseStockAtomic(ctx context.Context, productID int64, size string, qty int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE stock_records
		SET reserved_quantity = GREATEST(reserved_quantity - $1, 0), updated_at = NOW()
		WHERE product_id = $2 AND size = $3`,
		qty, productID, size)
	if err != nil {
		return fmt.Errorf("failed to release stock: %w", err)
	}
	return nil
}

// CommitStockAtomic decrements both quantity and reserved_quantity by
// qty; a sale removes the unit from total and held counts alike, so
// availability is unchanged. The predicate guards the invariant: if the
// row no longer holds qty reserved units the statement matches nothing
// and the caller must treat it as an invariant violation.
func (s *Store) CommitStockAtomic(ctx context.Context, productID int64, size string, qty int) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE stock_records
		SET quantity = quantity - $1, reserved_quantity = reserved_quantity - $1, updated_at = NOW()
		WHERE product_id = $2 AND size = $3
		  AND reserved_quantity >= $1 AND quantity >= $1`,
		qty, productID, size)
	if err != nil {
		return false, fmt.Errorf("failed to commit stock: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// RestockAtomic adds qty to quantity, creating the row lazily on first
// restock. Returns the row as it stands after the update.
func (s *Store) RestockAtomic(ctx context.Context, productID int64, size string, qty int) (*models.StockRecord, error) {
	var rec models.StockRecord
	err := s.db.GetContext(ctx, &rec, `
		INSERT INTO stock_records (product_id, size, quantity, reserved_quantity, updated_at)
		VALUES ($1, $2, $3, 0, NOW())
		ON CONFLICT (product_id, size)
		DO UPDATE SET quantity = stock_records.quantity + EXCLUDED.quantity, updated_at = NOW()
		RETURNING *`,
		productID, size, qty)
	if err != nil {
		return nil, fmt.Errorf("failed to restock: %w", err)
	}
	return &rec, nil
}

// AdjustStockAtomic applies a signed operator correction to quantity,
// only where the result keeps 0 <= reserved_quantity <= quantity.
// Returns false when the adjustment would break the invariant.
func (s *Store) AdjustStockAtomic(ctx context.Context, productID int64, size string, delta int) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE stock_records
		SET quantity = quantity + $1, updated_at = NOW()
		WHERE product_id = $2 AND size = $3
		  AND quantity + $1 >= reserved_quantity`,
		delta, productID, size)
	if err != nil {
		return false, fmt.Errorf("failed to adjust stock: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// GetLowStockItems returns stock rows whose availability is at or below
// threshold, joined with catalog display data.
func (s *Store) GetLowStockItems(ctx context.Context, threshold int) ([]models.LowStockItem, error) {
	var items []models.LowStockItem
	err := s.db.SelectContext(ctx, &items, `
		SELECT sr.product_id, sr.size, p.name AS product_name, p.sku,
		       sr.quantity, sr.reserved_quantity,
		       sr.quantity - sr.reserved_quantity AS available_quantity
		FROM stock_records sr
		JOIN products p ON p.id = sr.product_id
		WHERE sr.quantity - sr.reserved_quantity <= $1
		ORDER BY available_quantity ASC, sr.product_id`,
		threshold)
	return items, err
}
