package store

import (
	"context"
	"database/sql"
	"time"

	"stock-ledger-service/internal/models"

	"github.com/jmoiron/sqlx"
)

// CreateReservation inserts a new hold row
func (s *Store) CreateReservation(ctx context.Context, r *models.Reservation) error {
	query := `
		INSERT INTO reservations (id, product_id, size, quantity, session_id, user_id, order_id, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at`

	return s.db.GetContext(ctx, &r.CreatedAt, query,
		r.ID, r.ProductID, r.Size, r.Quantity, r.SessionID, r.UserID, r.OrderID, r.ExpiresAt)
}

// GetReservationsByIDs retrieves the named reservations. Missing ids are
// simply absent from the result; callers decide whether absence is an
// error (commit) or a no-op (release).
func (s *Store) GetReservationsByIDs(ctx context.Context, ids []string) ([]models.Reservation, error) {
	if len(ids) == 0 {
		return []models.Reservation{}, nil
	}

	query, args, err := sqlx.In("SELECT * FROM reservations WHERE id IN (?)", ids)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var reservations []models.Reservation
	err = s.db.SelectContext(ctx, &reservations, query, args...)
	return reservations, err
}

// ClaimReservation deletes a reservation and returns it in the same
// statement. Exactly one of any number of racing callers (user cancel,
// sweeper, retry) gets the row back; the rest get nil, nil. This is
// what makes release idempotent without a lock.
func (s *Store) ClaimReservation(ctx context.Context, id string) (*models.Reservation, error) {
	var r models.Reservation
	err := s.db.GetContext(ctx, &r,
		"DELETE FROM reservations WHERE id = $1 RETURNING *", id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// DeleteReservation removes a reservation row (terminal state)
func (s *Store) DeleteReservation(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM reservations WHERE id = $1", id)
	return err
}

// GetExpiredReservationIDs returns ids of every hold past its deadline
func (s *Store) GetExpiredReservationIDs(ctx context.Context, now time.Time) ([]string, error) {
	var ids []string
	err := s.db.SelectContext(ctx, &ids,
		"SELECT id FROM reservations WHERE expires_at < $1 ORDER BY expires_at", now)
	return ids, err
}

// GetActiveReservationsBySession lists non-expired holds for a checkout session
func (s *Store) GetActiveReservationsBySession(ctx context.Context, sessionID string, now time.Time) ([]models.Reservation, error) {
	var reservations []models.Reservation
	err := s.db.SelectContext(ctx, &reservations,
		"SELECT * FROM reservations WHERE session_id = $1 AND expires_at >= $2 ORDER BY created_at DESC",
		sessionID, now)
	return reservations, err
}

// GetActiveReservationsByUser lists non-expired holds for a user
func (s *Store) GetActiveReservationsByUser(ctx context.Context, userID int64, now time.Time) ([]models.Reservation, error) {
	var reservations []models.Reservation
	err := s.db.SelectContext(ctx, &reservations,
		"SELECT * FROM reservations WHERE user_id = $1 AND expires_at >= $2 ORDER BY created_at DESC",
		userID, now)
	return reservations, err
}
