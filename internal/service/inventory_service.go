package service

import (
	"context"

	"distribution-engine/internal/models"
	"distribution-engine/internal/util"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type InventoryStore interface {
	Transactor
	GetProductByID(ctx context.Context, id int64) (*models.Product, error)
	InsertUnits(ctx context.Context, productID int64, serials []string) ([]models.InventoryUnit, error)
	Availability(ctx context.Context, productID int64) (*models.UnitAvailability, error)
}

// InventoryService lists serialized units and reports stock
type InventoryService struct {
	store  InventoryStore
	logger *zap.Logger
}

// NewInventoryService creates a new inventory service
func NewInventoryService(store InventoryStore) *InventoryService {
	return &InventoryService{
		store:  store,
		logger: util.GetLogger(),
	}
}

// RegisterUnits lists new available units; the whole list is inserted or none is
func (s *InventoryService) RegisterUnits(ctx context.Context, productID int64, serials []string) (units []models.InventoryUnit, err error) {
	ctx, span := util.StartSpan(ctx, "InventoryService.RegisterUnits",
		attribute.Int64("product_id", productID),
		attribute.Int("count", len(serials)))
	defer func() { util.EndSpan(span, err) }()

	if productID <= 0 {
		return nil, models.ErrInvalidID
	}
	if err := models.ValidateSerials(serials); err != nil {
		return nil, err
	}

	err = s.store.WithTx(ctx, func(ctx context.Context) error {
		if _, err := s.store.GetProductByID(ctx, productID); err != nil {
			return err
		}
		var txErr error
		units, txErr = s.store.InsertUnits(ctx, productID, serials)
		return txErr
	})
	if err != nil {
		s.logger.Warn("Unit registration failed", zap.Int64("product_id", productID), zap.Error(err))
		return nil, err
	}

	util.UnitsRegisteredTotal.Add(float64(len(units)))
	s.logger.Info("Units registered", zap.Int64("product_id", productID), zap.Int("count", len(units)))
	return units, nil
}

// Availability counts a product's units by status
func (s *InventoryService) Availability(ctx context.Context, productID int64) (*models.UnitAvailability, error) {
	ctx, span := util.StartSpan(ctx, "InventoryService.Availability", attribute.Int64("product_id", productID))
	defer span.End()

	if productID <= 0 {
		return nil, models.ErrInvalidID
	}
	if _, err := s.store.GetProductByID(ctx, productID); err != nil {
		return nil, err
	}
	return s.store.Availability(ctx, productID)
}
