package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"distribution-engine/internal/models"
	"distribution-engine/internal/util"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type ReservationStore interface {
	Transactor
	UserRepository
	ReservationRepository
	GetProductByID(ctx context.Context, id int64) (*models.Product, error)
	ClaimUnits(ctx context.Context, productID, reservationID int64, quantity int) ([]int64, error)
	ReleaseUnits(ctx context.Context, reservationID int64) (int64, error)
}

// ReservationService claims and releases inventory for marketer pickups
type ReservationService struct {
	store       ReservationStore
	events      EventPublisher
	deadline    time.Duration
	maxQuantity int
	now         func() time.Time
	logger      *zap.Logger
}

// NewReservationService creates a reservation service
func NewReservationService(store ReservationStore, events EventPublisher, deadline time.Duration, maxQuantity int) *ReservationService {
	return &ReservationService{
		store:       store,
		events:      events,
		deadline:    deadline,
		maxQuantity: maxQuantity,
		now:         time.Now,
		logger:      util.GetLogger(),
	}
}

// CreatePickupRequest asks for quantity units of a dealer's product
type CreatePickupRequest struct {
	MarketerID int64 `json:"marketer_id" binding:"required"`
	DealerID   int64 `json:"dealer_id" binding:"required"`
	ProductID  int64 `json:"product_id" binding:"required"`
	Quantity   int   `json:"quantity"`
}

// PickupResult is the created reservation and the units it holds
type PickupResult struct {
	Reservation *models.Reservation `json:"reservation"`
	UnitIDs     []int64             `json:"unit_ids"`
}

func (s *ReservationService) validate(req *CreatePickupRequest) error {
	if req.MarketerID <= 0 || req.DealerID <= 0 || req.ProductID <= 0 {
		return models.ErrInvalidID
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	if req.Quantity < 0 || (s.maxQuantity > 0 && req.Quantity > s.maxQuantity) {
		return fmt.Errorf("%w: %d", models.ErrInvalidQuantity, req.Quantity)
	}
	return nil
}

// CreatePickup reserves units for a marketer
func (s *ReservationService) CreatePickup(ctx context.Context, req CreatePickupRequest) (result *PickupResult, err error) {
	ctx, span := util.StartSpan(ctx, "ReservationService.CreatePickup",
		attribute.Int64("marketer_id", req.MarketerID),
		attribute.Int64("product_id", req.ProductID))
	defer func() { util.EndSpan(span, err) }()

	if err := s.validate(&req); err != nil {
		util.PickupsFailedTotal.WithLabelValues(models.CodeOf(err)).Inc()
		return nil, err
	}

	err = s.store.WithTx(ctx, func(ctx context.Context) error {
		var txErr error
		result, txErr = s.createPickupTx(ctx, req)
		return txErr
	})
	if err != nil {
		util.PickupsFailedTotal.WithLabelValues(models.CodeOf(err)).Inc()
		s.logger.Warn("Pickup failed",
			zap.Int64("marketer_id", req.MarketerID),
			zap.Int64("product_id", req.ProductID),
			zap.Int("quantity", req.Quantity),
			zap.Error(err))
		return nil, err
	}

	util.PickupsCreatedTotal.Inc()
	s.logger.Info("Pickup created",
		zap.Int64("reservation_id", result.Reservation.ID),
		zap.Int64("marketer_id", req.MarketerID),
		zap.Int("quantity", req.Quantity))

	s.publishPickupCreated(ctx, result)
	return result, nil
}

func (s *ReservationService) createPickupTx(ctx context.Context, req CreatePickupRequest) (*PickupResult, error) {
	// the marketer row lock serializes pickups by the same marketer
	marketer, err := s.store.LockUser(ctx, req.MarketerID)
	if err != nil {
		return nil, err
	}
	if marketer.Locked {
		return nil, fmt.Errorf("%w: user %d", models.ErrAccountLocked, marketer.ID)
	}
	if marketer.Role == models.RoleDealer {
		return nil, fmt.Errorf("%w: user %d is a dealer", models.ErrInvalidState, marketer.ID)
	}

	active, err := s.store.CountActiveReservations(ctx, marketer.ID)
	if err != nil {
		return nil, err
	}
	if active > 0 {
		return nil, fmt.Errorf("%w: user %d", models.ErrActiveReservation, marketer.ID)
	}

	dealer, err := s.store.GetUser(ctx, req.DealerID)
	if err != nil {
		return nil, err
	}
	if dealer.Role != models.RoleDealer {
		return nil, fmt.Errorf("%w: user %d is not a dealer", models.ErrUserNotFound, dealer.ID)
	}

	product, err := s.store.GetProductByID(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}
	if product.DealerID != dealer.ID {
		return nil, fmt.Errorf("%w: product %d is not listed by dealer %d", models.ErrProductNotFound, product.ID, dealer.ID)
	}

	if !sameLocation(dealer.Location, marketer.Location) {
		return nil, fmt.Errorf("%w: dealer in %q, marketer in %q", models.ErrLocationMismatch, dealer.Location, marketer.Location)
	}

	reservation := &models.Reservation{
		MarketerID: marketer.ID,
		DealerID:   dealer.ID,
		ProductID:  product.ID,
		Quantity:   req.Quantity,
		Status:     models.ReservationStatusPending,
		Deadline:   s.now().Add(s.deadline),
	}
	if err := s.store.CreateReservation(ctx, reservation); err != nil {
		return nil, err
	}

	start := time.Now()
	unitIDs, err := s.store.ClaimUnits(ctx, product.ID, reservation.ID, req.Quantity)
	util.UnitsClaimLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}

	return &PickupResult{Reservation: reservation, UnitIDs: unitIDs}, nil
}

// ReleaseReservation returns a reservation's units to the pool and resets it to pending.
// It joins the caller's transaction.
func (s *ReservationService) ReleaseReservation(ctx context.Context, reservationID int64) error {
	return s.store.WithTx(ctx, func(ctx context.Context) error {
		r, err := s.store.LockReservation(ctx, reservationID)
		if err != nil {
			return err
		}
		if err := models.ValidateReservationTransition(r.Status, models.ReservationStatusPending); err != nil {
			return err
		}

		released, err := s.store.ReleaseUnits(ctx, r.ID)
		if err != nil {
			return err
		}
		if err := s.store.UpdateReservationStatus(ctx, r.ID, r.Status, models.ReservationStatusPending); err != nil {
			return err
		}

		s.logger.Info("Reservation released",
			zap.Int64("reservation_id", r.ID),
			zap.Int64("units", released))
		return nil
	})
}

func (s *ReservationService) publishPickupCreated(ctx context.Context, result *PickupResult) {
	if s.events == nil {
		return
	}
	r := result.Reservation
	event := &models.PickupCreatedEvent{
		BaseEvent:     newBaseEvent(models.EventTypePickupCreated, s.now()),
		ReservationID: r.ID,
		MarketerID:    r.MarketerID,
		DealerID:      r.DealerID,
		ProductID:     r.ProductID,
		Quantity:      r.Quantity,
		UnitIDs:       result.UnitIDs,
		Deadline:      r.Deadline,
	}
	if err := s.events.PublishPickupCreated(ctx, event); err != nil {
		s.logger.Error("Failed to publish PickupCreated event", zap.Error(err))
	}
}

func sameLocation(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
