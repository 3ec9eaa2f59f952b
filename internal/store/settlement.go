package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"distribution-engine/internal/models"

	"github.com/shopspring/decimal"
)

// InsertSalesRecord appends the ledger row for an order.
// Returns false when the order already has one.
func (s *Store) InsertSalesRecord(ctx context.Context, rec *models.SalesRecord) (bool, error) {
	query := `
		INSERT INTO sales_records (order_id, product_id, quantity, gross_profit)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (order_id) DO NOTHING
		RETURNING id, created_at`

	err := s.conn(ctx).GetContext(ctx, rec, query, rec.OrderID, rec.ProductID, rec.Quantity, rec.GrossProfit)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, mapIntegrity(err, "failed to insert sales record")
	}
	return true, nil
}

// GetSalesRecordByOrderID retrieves the ledger row for an order
func (s *Store) GetSalesRecordByOrderID(ctx context.Context, orderID int64) (*models.SalesRecord, error) {
	var rec models.SalesRecord
	err := s.conn(ctx).GetContext(ctx, &rec,
		"SELECT id, order_id, product_id, quantity, gross_profit, created_at FROM sales_records WHERE order_id = $1",
		orderID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Credit adds amount to a payee's wallet balance
func (s *Store) Credit(ctx context.Context, payeeID int64, amount decimal.Decimal) error {
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO wallets (user_id, balance) VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE
		SET balance = wallets.balance + EXCLUDED.balance, updated_at = NOW()`,
		payeeID, amount)
	if err != nil {
		return mapIntegrity(err, fmt.Sprintf("failed to credit wallet %d", payeeID))
	}
	return nil
}

// Balance returns a user's wallet balance, zero when no wallet exists yet
func (s *Store) Balance(ctx context.Context, userID int64) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := s.conn(ctx).GetContext(ctx, &balance, "SELECT balance FROM wallets WHERE user_id = $1", userID)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, nil
	}
	return balance, err
}
