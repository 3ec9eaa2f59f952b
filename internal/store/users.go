package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"distribution-engine/internal/models"
)

const userColumns = `id, name, role, location, locked, admin_id, super_admin_id`

// GetUser retrieves a user by ID
func (s *Store) GetUser(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	err := s.conn(ctx).GetContext(ctx, &user, "SELECT "+userColumns+" FROM users WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", models.ErrUserNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// LockUser retrieves a user and holds its row lock until the transaction ends
func (s *Store) LockUser(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	err := s.conn(ctx).GetContext(ctx, &user,
		"SELECT "+userColumns+" FROM users WHERE id = $1 FOR UPDATE", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", models.ErrUserNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock user: %w", err)
	}
	return &user, nil
}

// Hierarchy resolves a seller's role and the admin/superadmin above them
func (s *Store) Hierarchy(ctx context.Context, userID int64) (models.Hierarchy, error) {
	var row struct {
		Role         models.Role   `db:"role"`
		AdminID      sql.NullInt64 `db:"admin_id"`
		SuperAdminID sql.NullInt64 `db:"super_admin_id"`
	}
	err := s.conn(ctx).GetContext(ctx, &row, `
		SELECT u.role, u.admin_id, a.super_admin_id
		FROM users u
		LEFT JOIN users a ON a.id = u.admin_id
		WHERE u.id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Hierarchy{}, fmt.Errorf("%w: %d", models.ErrUserNotFound, userID)
	}
	if err != nil {
		return models.Hierarchy{}, fmt.Errorf("failed to resolve hierarchy: %w", err)
	}

	h := models.Hierarchy{UserID: userID, Role: row.Role}
	if row.AdminID.Valid {
		id := row.AdminID.Int64
		h.AdminID = &id
	}
	if row.SuperAdminID.Valid {
		id := row.SuperAdminID.Int64
		h.SuperAdminID = &id
	}
	return h, nil
}
