package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"distribution-engine/internal/models"
)

const reservationColumns = `id, marketer_id, dealer_id, product_id, quantity, status, deadline, created_at, updated_at`

// CreateReservation inserts a pending reservation
func (s *Store) CreateReservation(ctx context.Context, r *models.Reservation) error {
	query := `
		INSERT INTO reservations (marketer_id, dealer_id, product_id, quantity, status, deadline)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`

	err := s.conn(ctx).GetContext(ctx, r, query,
		r.MarketerID, r.DealerID, r.ProductID, r.Quantity, r.Status, r.Deadline)
	if err != nil {
		return mapIntegrity(err, "failed to create reservation")
	}
	return nil
}

// GetReservationByID retrieves a reservation by ID
func (s *Store) GetReservationByID(ctx context.Context, id int64) (*models.Reservation, error) {
	var r models.Reservation
	err := s.conn(ctx).GetContext(ctx, &r, "SELECT "+reservationColumns+" FROM reservations WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", models.ErrReservationNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reservation: %w", err)
	}
	return &r, nil
}

// LockReservation retrieves a reservation with a row lock
func (s *Store) LockReservation(ctx context.Context, id int64) (*models.Reservation, error) {
	var r models.Reservation
	err := s.conn(ctx).GetContext(ctx, &r,
		"SELECT "+reservationColumns+" FROM reservations WHERE id = $1 FOR UPDATE", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", models.ErrReservationNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock reservation: %w", err)
	}
	return &r, nil
}

// UpdateReservationStatus moves a reservation from one status to another
func (s *Store) UpdateReservationStatus(ctx context.Context, id int64, from, to models.ReservationStatus) error {
	res, err := s.conn(ctx).ExecContext(ctx,
		"UPDATE reservations SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3",
		to, id, from)
	if err != nil {
		return fmt.Errorf("failed to update reservation status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return fmt.Errorf("%w: reservation %d is not %s", models.ErrInvalidState, id, from)
	}
	return nil
}

// CountActiveReservations counts a marketer's pending reservations still holding units
func (s *Store) CountActiveReservations(ctx context.Context, marketerID int64) (int, error) {
	var n int
	err := s.conn(ctx).GetContext(ctx, &n, `
		SELECT COUNT(*) FROM reservations r
		WHERE r.marketer_id = $1 AND r.status = $2
		AND EXISTS (SELECT 1 FROM inventory_units u WHERE u.reservation_id = r.id)`,
		marketerID, models.ReservationStatusPending)
	if err != nil {
		return 0, fmt.Errorf("failed to count active reservations: %w", err)
	}
	return n, nil
}
