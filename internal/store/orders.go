package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"distribution-engine/internal/models"
)

const orderColumns = `id, marketer_id, reservation_id, product_id, device_count, total_sold_amount,
	profit_per_device, customer_name, customer_phone, customer_address, payment_platform,
	status, commission_paid, confirmed_at, created_at, updated_at`

// CreateOrder inserts a pending order with its per-device serial codes.
// There must be exactly one valid serial per device.
func (s *Store) CreateOrder(ctx context.Context, order *models.Order, serials []string) error {
	if err := models.ValidateDeviceSerials(order.DeviceCount, serials); err != nil {
		return err
	}
	return s.WithTx(ctx, func(ctx context.Context) error {
		query := `
			INSERT INTO orders (marketer_id, reservation_id, product_id, device_count, total_sold_amount,
				profit_per_device, customer_name, customer_phone, customer_address, payment_platform, status)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			RETURNING id, commission_paid, created_at, updated_at`

		err := s.conn(ctx).GetContext(ctx, order, query,
			order.MarketerID, order.ReservationID, order.ProductID, order.DeviceCount, order.TotalSoldAmount,
			order.ProfitPerDevice, order.CustomerName, order.CustomerPhone, order.CustomerAddress,
			order.PaymentPlatform, order.Status)
		if err != nil {
			return mapIntegrity(err, "failed to create order")
		}

		for _, serial := range serials {
			if _, err := s.conn(ctx).ExecContext(ctx,
				"INSERT INTO order_devices (order_id, serial_code) VALUES ($1, $2)", order.ID, serial); err != nil {
				return mapIntegrity(err, "failed to record order device "+serial)
			}
		}
		return nil
	})
}

// GetOrderByID retrieves an order by ID
func (s *Store) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := s.conn(ctx).GetContext(ctx, &order, "SELECT "+orderColumns+" FROM orders WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", models.ErrOrderNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return &order, nil
}

// LockOrder retrieves an order in any status with a row lock
func (s *Store) LockOrder(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := s.conn(ctx).GetContext(ctx, &order,
		"SELECT "+orderColumns+" FROM orders WHERE id = $1 FOR UPDATE", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", models.ErrOrderNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock order: %w", err)
	}
	return &order, nil
}

// LockPendingOrder retrieves a pending order with a row lock.
// A concurrent confirmer that wins the lock leaves the loser with no pending row.
func (s *Store) LockPendingOrder(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := s.conn(ctx).GetContext(ctx, &order,
		"SELECT "+orderColumns+" FROM orders WHERE id = $1 AND status = $2 FOR UPDATE",
		id, models.OrderStatusPending)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", models.ErrOrderNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock order: %w", err)
	}
	return &order, nil
}

// SetOrderProduct backfills the product of a reservation-backed order
func (s *Store) SetOrderProduct(ctx context.Context, orderID, productID int64) error {
	_, err := s.conn(ctx).ExecContext(ctx,
		"UPDATE orders SET product_id = $1, updated_at = NOW() WHERE id = $2 AND product_id IS NULL",
		productID, orderID)
	if err != nil {
		return fmt.Errorf("failed to set order product: %w", err)
	}
	return nil
}

// UpdateOrderStatus moves an order from one status to another, optionally stamping confirmed_at
func (s *Store) UpdateOrderStatus(ctx context.Context, orderID int64, from, to models.OrderStatus, confirmedAt *time.Time) error {
	res, err := s.conn(ctx).ExecContext(ctx, `
		UPDATE orders
		SET status = $1, confirmed_at = COALESCE($2, confirmed_at), updated_at = NOW()
		WHERE id = $3 AND status = $4`,
		to, confirmedAt, orderID, from)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return fmt.Errorf("%w: order %d is not %s", models.ErrInvalidState, orderID, from)
	}
	return nil
}

// MarkCommissionPaid sets the one-way settlement flag
func (s *Store) MarkCommissionPaid(ctx context.Context, orderID int64) error {
	_, err := s.conn(ctx).ExecContext(ctx,
		"UPDATE orders SET commission_paid = TRUE, updated_at = NOW() WHERE id = $1 AND commission_paid = FALSE",
		orderID)
	if err != nil {
		return fmt.Errorf("failed to mark commission paid: %w", err)
	}
	return nil
}

// GetOrderSerials lists the device serial codes recorded for an order
func (s *Store) GetOrderSerials(ctx context.Context, orderID int64) ([]string, error) {
	var serials []string
	err := s.conn(ctx).SelectContext(ctx, &serials,
		"SELECT serial_code FROM order_devices WHERE order_id = $1 ORDER BY serial_code", orderID)
	return serials, err
}
