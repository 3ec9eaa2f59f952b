package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"distribution-engine/internal/models"
)

const productColumns = `id, dealer_id, name, device_type, cost_price, selling_price, created_at`

// GetProductByID retrieves a product by ID
func (s *Store) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	err := s.conn(ctx).GetContext(ctx, &product, "SELECT "+productColumns+" FROM products WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", models.ErrProductNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return &product, nil
}

// InsertUnits lists new available units for a product
func (s *Store) InsertUnits(ctx context.Context, productID int64, serials []string) ([]models.InventoryUnit, error) {
	units := make([]models.InventoryUnit, 0, len(serials))
	for _, serial := range serials {
		var unit models.InventoryUnit
		err := s.conn(ctx).GetContext(ctx, &unit, `
			INSERT INTO inventory_units (product_id, serial_code, status)
			VALUES ($1, $2, $3)
			RETURNING id, product_id, serial_code, status, reservation_id, created_at, updated_at`,
			productID, serial, models.UnitStatusAvailable)
		if err != nil {
			if pqCode(err) == foreignKeyViolation {
				return nil, fmt.Errorf("failed to insert unit %s: %w", serial, models.ErrProductNotFound)
			}
			return nil, mapIntegrity(err, "failed to insert unit "+serial)
		}
		units = append(units, unit)
	}
	return units, nil
}

// ClaimUnits marks up to quantity available units as reserved for reservationID.
// Rows locked by a concurrent transaction are skipped instead of waited on.
// Fewer than quantity claimable units yields ErrInsufficientInventory; the caller
// must roll back so the partial claim is undone.
func (s *Store) ClaimUnits(ctx context.Context, productID, reservationID int64, quantity int) ([]int64, error) {
	if err := models.ValidateUnitTransition(models.UnitStatusAvailable, models.UnitStatusReserved); err != nil {
		return nil, err
	}

	var ids []int64
	err := s.conn(ctx).SelectContext(ctx, &ids, `
		WITH picked AS (
			SELECT id FROM inventory_units
			WHERE product_id = $1 AND status = $2
			ORDER BY id
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		UPDATE inventory_units u
		SET status = $4, reservation_id = $5, updated_at = NOW()
		FROM picked
		WHERE u.id = picked.id
		RETURNING u.id`,
		productID, models.UnitStatusAvailable, quantity, models.UnitStatusReserved, reservationID)
	if err != nil {
		return nil, fmt.Errorf("failed to claim units: %w", err)
	}

	if len(ids) < quantity {
		return ids, fmt.Errorf("%w: available=%d, requested=%d", models.ErrInsufficientInventory, len(ids), quantity)
	}
	return ids, nil
}

// ReleaseUnits returns a reservation's reserved units to the available pool
func (s *Store) ReleaseUnits(ctx context.Context, reservationID int64) (int64, error) {
	n, err := s.transitionUnits(ctx, reservationID, models.UnitStatusReserved, models.UnitStatusAvailable)
	if err != nil {
		return 0, fmt.Errorf("failed to release units: %w", err)
	}
	return n, nil
}

// MarkUnitsSold flips a reservation's reserved units to sold
func (s *Store) MarkUnitsSold(ctx context.Context, reservationID int64) (int64, error) {
	n, err := s.transitionUnits(ctx, reservationID, models.UnitStatusReserved, models.UnitStatusSold)
	if err != nil {
		return 0, fmt.Errorf("failed to mark units sold: %w", err)
	}
	return n, nil
}

// transitionUnits moves every unit of a reservation in status from to status to.
// Units leaving the reservation drop their reference.
func (s *Store) transitionUnits(ctx context.Context, reservationID int64, from, to models.UnitStatus) (int64, error) {
	if err := models.ValidateUnitTransition(from, to); err != nil {
		return 0, err
	}
	var ref interface{}
	if to.RequiresReservation() {
		ref = reservationID
	}

	res, err := s.conn(ctx).ExecContext(ctx, `
		UPDATE inventory_units
		SET status = $1, reservation_id = $2, updated_at = NOW()
		WHERE reservation_id = $3 AND status = $4`,
		to, ref, reservationID, from)
	if err != nil {
		return 0, mapIntegrity(err, fmt.Sprintf("unit %s -> %s", from, to))
	}
	return res.RowsAffected()
}

// GetUnitsByReservation lists units claimed by a reservation
func (s *Store) GetUnitsByReservation(ctx context.Context, reservationID int64) ([]models.InventoryUnit, error) {
	var units []models.InventoryUnit
	err := s.conn(ctx).SelectContext(ctx, &units, `
		SELECT id, product_id, serial_code, status, reservation_id, created_at, updated_at
		FROM inventory_units WHERE reservation_id = $1 ORDER BY id`, reservationID)
	return units, err
}

// Availability counts a product's units by status
func (s *Store) Availability(ctx context.Context, productID int64) (*models.UnitAvailability, error) {
	avail := models.UnitAvailability{ProductID: productID}
	err := s.conn(ctx).GetContext(ctx, &avail, `
		SELECT
			$1::BIGINT AS product_id,
			COUNT(*) FILTER (WHERE status = 'available') AS available,
			COUNT(*) FILTER (WHERE status = 'reserved') AS reserved,
			COUNT(*) FILTER (WHERE status = 'sold') AS sold
		FROM inventory_units WHERE product_id = $1`, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to count units: %w", err)
	}
	return &avail, nil
}
