package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"distribution-engine/internal/models"
	"distribution-engine/internal/util"

	"go.uber.org/zap"
)

// RateTable serves commission rates from the shared cache and falls back to
// the database, repopulating the cache on a miss
type RateTable struct {
	source RateRepository
	cache  RateCache
	ttl    time.Duration
	logger *zap.Logger
}

// NewRateTable creates a rate table; cache may be nil
func NewRateTable(source RateRepository, cache RateCache, ttl time.Duration) *RateTable {
	return &RateTable{
		source: source,
		cache:  cache,
		ttl:    ttl,
		logger: util.GetLogger(),
	}
}

// Rate returns the effective rate for deviceType
func (t *RateTable) Rate(ctx context.Context, deviceType string) (models.CommissionRate, error) {
	if t.cache != nil {
		_, rates, ok, err := t.cache.GetRateTable(ctx)
		if err != nil {
			t.logger.Warn("Rate cache unavailable, reading database", zap.Error(err))
		} else if ok {
			if r, found := rates[deviceType]; found {
				return r, nil
			}
		}
	}

	rates, err := t.source.GetCommissionRates(ctx)
	if err != nil {
		return models.CommissionRate{}, err
	}
	t.publish(ctx, rates)

	for _, r := range rates {
		if r.DeviceType == deviceType {
			return r, nil
		}
	}
	return models.CommissionRate{}, fmt.Errorf("%w: %q", models.ErrUnknownDeviceType, deviceType)
}

func (t *RateTable) publish(ctx context.Context, rates []models.CommissionRate) {
	if t.cache == nil || len(rates) == 0 {
		return
	}
	version := tableVersion(rates)
	if _, err := t.cache.PublishRateTable(ctx, version, rates, t.ttl); err != nil {
		t.logger.Warn("Failed to publish rate table to cache", zap.Int64("version", version), zap.Error(err))
		return
	}
	util.RateTableVersion.Set(float64(version))
}

func tableVersion(rates []models.CommissionRate) int64 {
	var v int64
	for _, r := range rates {
		if r.Version > v {
			v = r.Version
		}
	}
	return v
}

type RateSyncStore interface {
	Transactor
	RateRepository
}

// RateSync applies rate-table updates received from the broker
type RateSync struct {
	store  RateSyncStore
	table  *RateTable
	logger *zap.Logger
}

// NewRateSync creates a rate synchronizer
func NewRateSync(store RateSyncStore, table *RateTable) *RateSync {
	return &RateSync{
		store:  store,
		table:  table,
		logger: util.GetLogger(),
	}
}

// HandleRateTableUpdated records a new rate version once per event id
func (rs *RateSync) HandleRateTableUpdated(ctx context.Context, event *models.RateTableUpdatedEvent) (err error) {
	ctx, span := util.StartSpan(ctx, "RateSync.HandleRateTableUpdated")
	defer func() { util.EndSpan(span, err) }()

	if err := validateRates(event.Rates); err != nil {
		rs.logger.Warn("Rejecting rate table update", zap.String("event_id", event.EventID), zap.Error(err))
		return err
	}

	var version int64
	skipped := false
	err = rs.store.WithTx(ctx, func(ctx context.Context) error {
		if event.EventID != "" {
			processed, err := rs.store.IsEventProcessed(ctx, event.EventID)
			if err != nil {
				return fmt.Errorf("failed to check event processed: %w", err)
			}
			if processed {
				skipped = true
				return nil
			}
		}

		v, err := rs.store.InsertRateVersion(ctx, event.Rates)
		if err != nil {
			return err
		}
		version = v

		if event.EventID != "" {
			return rs.store.MarkEventProcessed(ctx, event.EventID, event.EventType)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if skipped {
		rs.logger.Info("Event already processed", zap.String("event_id", event.EventID))
		return nil
	}

	rates, err := rs.store.GetCommissionRates(ctx)
	if err != nil {
		rs.logger.Warn("Stored rate version but could not refresh cache", zap.Int64("version", version), zap.Error(err))
		return nil
	}
	rs.table.publish(ctx, rates)

	rs.logger.Info("Commission rate table updated",
		zap.Int64("version", version),
		zap.Int("device_types", len(event.Rates)))
	return nil
}

func validateRates(rates []models.CommissionRate) error {
	if len(rates) == 0 {
		return fmt.Errorf("%w: empty table", models.ErrInvalidRate)
	}
	seen := make(map[string]struct{}, len(rates))
	for _, r := range rates {
		dt := strings.TrimSpace(r.DeviceType)
		if dt == "" {
			return fmt.Errorf("%w: missing device type", models.ErrInvalidRate)
		}
		if _, dup := seen[dt]; dup {
			return fmt.Errorf("%w: %s listed twice", models.ErrInvalidRate, dt)
		}
		seen[dt] = struct{}{}
		if r.MarketerRate.IsNegative() || r.AdminRate.IsNegative() || r.SuperAdminRate.IsNegative() {
			return fmt.Errorf("%w: negative rate for %s", models.ErrInvalidRate, dt)
		}
	}
	return nil
}
