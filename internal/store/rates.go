package store

import (
	"context"
	"fmt"

	"distribution-engine/internal/models"
)

// GetCommissionRates returns the newest rate version for every device type
func (s *Store) GetCommissionRates(ctx context.Context) ([]models.CommissionRate, error) {
	var rates []models.CommissionRate
	err := s.conn(ctx).SelectContext(ctx, &rates, `
		SELECT DISTINCT ON (device_type) device_type, version, marketer_rate, admin_rate, superadmin_rate
		FROM commission_rates
		ORDER BY device_type, version DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to load commission rates: %w", err)
	}
	return rates, nil
}

// InsertRateVersion stores rates under the next table version and returns it
func (s *Store) InsertRateVersion(ctx context.Context, rates []models.CommissionRate) (int64, error) {
	var version int64
	err := s.WithTx(ctx, func(ctx context.Context) error {
		if _, err := s.conn(ctx).ExecContext(ctx,
			"LOCK TABLE commission_rates IN SHARE ROW EXCLUSIVE MODE"); err != nil {
			return fmt.Errorf("failed to lock rate table: %w", err)
		}
		if err := s.conn(ctx).GetContext(ctx, &version,
			"SELECT COALESCE(MAX(version), 0) + 1 FROM commission_rates"); err != nil {
			return fmt.Errorf("failed to read rate version: %w", err)
		}

		for _, r := range rates {
			_, err := s.conn(ctx).ExecContext(ctx, `
				INSERT INTO commission_rates (device_type, version, marketer_rate, admin_rate, superadmin_rate)
				VALUES ($1, $2, $3, $4, $5)`,
				r.DeviceType, version, r.MarketerRate, r.AdminRate, r.SuperAdminRate)
			if err != nil {
				return fmt.Errorf("failed to insert rate for %s: %w", r.DeviceType, err)
			}
		}
		return nil
	})
	return version, err
}

// IsEventProcessed checks if an event has been processed
func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.conn(ctx).GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1)", eventID)
	return exists, err
}

// MarkEventProcessed marks an event as processed
func (s *Store) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	_, err := s.conn(ctx).ExecContext(ctx,
		"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
		eventID, eventType)
	return err
}
