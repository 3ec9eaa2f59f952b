package service

import (
	"context"
	"fmt"
	"time"

	"distribution-engine/internal/models"
	"distribution-engine/internal/util"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type OrderStore interface {
	Transactor
	OrderRepository
	GetReservationByID(ctx context.Context, id int64) (*models.Reservation, error)
	LockReservation(ctx context.Context, id int64) (*models.Reservation, error)
	UpdateReservationStatus(ctx context.Context, id int64, from, to models.ReservationStatus) error
	MarkUnitsSold(ctx context.Context, reservationID int64) (int64, error)
}

// OrderService drives an order from pending to one of its terminal states
type OrderService struct {
	store        OrderStore
	settler      *Settler
	reservations *ReservationService
	events       EventPublisher
	now          func() time.Time
	logger       *zap.Logger
}

// NewOrderService creates a new order service
func NewOrderService(
	store OrderStore,
	settler *Settler,
	reservations *ReservationService,
	events EventPublisher,
) *OrderService {
	return &OrderService{
		store:        store,
		settler:      settler,
		reservations: reservations,
		events:       events,
		now:          time.Now,
		logger:       util.GetLogger(),
	}
}

// ConfirmResult is a confirmed order and what its settlement paid
type ConfirmResult struct {
	Order      *models.Order `json:"order"`
	Settlement *Settlement   `json:"settlement"`
}

// outcome is one committed transition waiting for its event
type outcome struct {
	order      *models.Order
	settlement *Settlement
}

// GetOrder retrieves an order by ID
func (s *OrderService) GetOrder(ctx context.Context, orderID int64) (*models.Order, error) {
	if orderID <= 0 {
		return nil, models.ErrInvalidID
	}
	return s.store.GetOrderByID(ctx, orderID)
}

// Confirm settles a pending order and marks it released_confirmed.
// A second call for the same order fails with ErrOrderNotFound.
func (s *OrderService) Confirm(ctx context.Context, orderID int64) (result *ConfirmResult, err error) {
	ctx, span := util.StartSpan(ctx, "OrderService.Confirm", attribute.Int64("order_id", orderID))
	defer func() { util.EndSpan(span, err) }()

	if orderID <= 0 {
		return nil, models.ErrInvalidID
	}

	var out *outcome
	err = s.store.WithTx(ctx, func(ctx context.Context) error {
		var txErr error
		out, txErr = s.confirmTx(ctx, orderID)
		return txErr
	})
	if err != nil {
		s.recordFailure("confirm", orderID, err)
		return nil, err
	}

	s.committed(ctx, out)
	return &ConfirmResult{Order: out.order, Settlement: out.settlement}, nil
}

func (s *OrderService) confirmTx(ctx context.Context, orderID int64) (*outcome, error) {
	order, err := s.store.LockPendingOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := models.ValidateOrderTransition(order.Status, models.OrderStatusReleasedConfirmed); err != nil {
		return nil, err
	}

	if order.ProductID == nil {
		if !order.IsReservationBacked() {
			return nil, fmt.Errorf("%w: order %d", models.ErrUnresolvableProduct, order.ID)
		}
		r, err := s.store.GetReservationByID(ctx, *order.ReservationID)
		if err != nil {
			return nil, err
		}
		if err := s.store.SetOrderProduct(ctx, order.ID, r.ProductID); err != nil {
			return nil, err
		}
		productID := r.ProductID
		order.ProductID = &productID
	}

	settlement, err := s.settler.Settle(ctx, order)
	if err != nil {
		return nil, err
	}

	confirmedAt := s.now()
	if err := s.store.UpdateOrderStatus(ctx, order.ID, order.Status, models.OrderStatusReleasedConfirmed, &confirmedAt); err != nil {
		return nil, err
	}
	order.Status = models.OrderStatusReleasedConfirmed
	order.ConfirmedAt = &confirmedAt

	if order.IsReservationBacked() {
		if err := s.sellReservation(ctx, *order.ReservationID); err != nil {
			return nil, err
		}
	}

	return &outcome{order: order, settlement: settlement}, nil
}

// sellReservation flips a reservation and every unit it holds to sold
func (s *OrderService) sellReservation(ctx context.Context, reservationID int64) error {
	r, err := s.store.LockReservation(ctx, reservationID)
	if err != nil {
		return err
	}
	if err := models.ValidateReservationTransition(r.Status, models.ReservationStatusSold); err != nil {
		return err
	}
	if err := s.store.UpdateReservationStatus(ctx, r.ID, r.Status, models.ReservationStatusSold); err != nil {
		return err
	}

	sold, err := s.store.MarkUnitsSold(ctx, r.ID)
	if err != nil {
		return err
	}
	if sold != int64(r.Quantity) {
		return fmt.Errorf("%w: reservation %d holds %d reserved units, expected %d",
			models.ErrInvalidState, r.ID, sold, r.Quantity)
	}
	return nil
}

// Cancel releases a reservation-backed pending order's units and marks it canceled
func (s *OrderService) Cancel(ctx context.Context, orderID int64) (order *models.Order, err error) {
	ctx, span := util.StartSpan(ctx, "OrderService.Cancel", attribute.Int64("order_id", orderID))
	defer func() { util.EndSpan(span, err) }()

	if orderID <= 0 {
		return nil, models.ErrInvalidID
	}

	var out *outcome
	err = s.store.WithTx(ctx, func(ctx context.Context) error {
		var txErr error
		out, txErr = s.cancelTx(ctx, orderID)
		return txErr
	})
	if err != nil {
		s.recordFailure("cancel", orderID, err)
		return nil, err
	}

	s.committed(ctx, out)
	return out.order, nil
}

func (s *OrderService) cancelTx(ctx context.Context, orderID int64) (*outcome, error) {
	order, err := s.store.LockOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := models.ValidateOrderTransition(order.Status, models.OrderStatusCanceled); err != nil {
		return nil, err
	}
	if !order.IsReservationBacked() {
		return nil, fmt.Errorf("%w: order %d", models.ErrNotCancelable, order.ID)
	}
	return s.closeTx(ctx, order, models.OrderStatusCanceled)
}

// reject is the bulk-only terminal rejection; reserved units go back to the pool
func (s *OrderService) rejectTx(ctx context.Context, orderID int64) (*outcome, error) {
	order, err := s.store.LockOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := models.ValidateOrderTransition(order.Status, models.OrderStatusRejected); err != nil {
		return nil, err
	}
	return s.closeTx(ctx, order, models.OrderStatusRejected)
}

func (s *OrderService) closeTx(ctx context.Context, order *models.Order, to models.OrderStatus) (*outcome, error) {
	if order.IsReservationBacked() {
		if err := s.reservations.ReleaseReservation(ctx, *order.ReservationID); err != nil {
			return nil, err
		}
	}
	if err := s.store.UpdateOrderStatus(ctx, order.ID, order.Status, to, nil); err != nil {
		return nil, err
	}
	order.Status = to
	return &outcome{order: order}, nil
}

// ConfirmToDealer marks a pending order confirmed_to_dealer without touching inventory or wallets
func (s *OrderService) ConfirmToDealer(ctx context.Context, orderID int64) (order *models.Order, err error) {
	ctx, span := util.StartSpan(ctx, "OrderService.ConfirmToDealer", attribute.Int64("order_id", orderID))
	defer func() { util.EndSpan(span, err) }()

	if orderID <= 0 {
		return nil, models.ErrInvalidID
	}

	err = s.store.WithTx(ctx, func(ctx context.Context) error {
		o, err := s.store.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if err := models.ValidateOrderTransition(o.Status, models.OrderStatusConfirmedToDealer); err != nil {
			return err
		}
		confirmedAt := s.now()
		if err := s.store.UpdateOrderStatus(ctx, o.ID, o.Status, models.OrderStatusConfirmedToDealer, &confirmedAt); err != nil {
			return err
		}
		o.Status = models.OrderStatusConfirmedToDealer
		o.ConfirmedAt = &confirmedAt
		order = o
		return nil
	})
	if err != nil {
		s.recordFailure("confirm_to_dealer", orderID, err)
		return nil, err
	}

	s.committed(ctx, &outcome{order: order})
	return order, nil
}

func (s *OrderService) recordFailure(operation string, orderID int64, err error) {
	code := models.CodeOf(err)
	util.OrderOperationFailures.WithLabelValues(operation, code).Inc()
	if models.IsBusinessError(err) {
		s.logger.Info("Order operation refused",
			zap.String("operation", operation),
			zap.Int64("order_id", orderID),
			zap.String("code", code),
			zap.Error(err))
		return
	}
	s.logger.Error("Order operation failed",
		zap.String("operation", operation),
		zap.Int64("order_id", orderID),
		zap.Error(err))
}

// committed records metrics and publishes the event for a transition that is already durable
func (s *OrderService) committed(ctx context.Context, out *outcome) {
	order := out.order
	util.OrderTransitionsTotal.WithLabelValues(string(order.Status)).Inc()
	s.logger.Info("Order transitioned",
		zap.Int64("order_id", order.ID),
		zap.String("status", string(order.Status)))

	if s.events == nil {
		return
	}

	var err error
	if order.Status == models.OrderStatusReleasedConfirmed {
		event := &models.OrderConfirmedEvent{
			BaseEvent:     newBaseEvent(models.EventTypeOrderConfirmed, s.now()),
			OrderID:       order.ID,
			MarketerID:    order.MarketerID,
			ReservationID: order.ReservationID,
			Quantity:      order.DeviceCount,
		}
		if order.ProductID != nil {
			event.ProductID = *order.ProductID
		}
		if out.settlement != nil {
			event.GrossProfit = out.settlement.GrossProfit
			event.Credits = out.settlement.Credits
		}
		err = s.events.PublishOrderConfirmed(ctx, event)
	} else {
		event := &models.OrderStatusChangedEvent{
			BaseEvent:     newBaseEvent(statusEventType(order.Status), s.now()),
			OrderID:       order.ID,
			MarketerID:    order.MarketerID,
			ReservationID: order.ReservationID,
			Status:        order.Status,
		}
		err = s.events.PublishOrderStatusChanged(ctx, event)
	}
	if err != nil {
		s.logger.Error("Failed to publish order event",
			zap.Int64("order_id", order.ID),
			zap.Error(err))
	}
}

func statusEventType(status models.OrderStatus) string {
	switch status {
	case models.OrderStatusConfirmedToDealer:
		return models.EventTypeOrderConfirmedToDealer
	case models.OrderStatusRejected:
		return models.EventTypeOrderRejected
	default:
		return models.EventTypeOrderCanceled
	}
}
