package service

import (
	"context"
	"time"

	"distribution-engine/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transactor runs work inside the context-carried database transaction
type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	WithSavepoint(ctx context.Context, fn func(ctx context.Context) error) error
}

type UserRepository interface {
	GetUser(ctx context.Context, id int64) (*models.User, error)
	LockUser(ctx context.Context, id int64) (*models.User, error)
}

// Directory resolves the payout chain of a seller
type Directory interface {
	Hierarchy(ctx context.Context, userID int64) (models.Hierarchy, error)
}

type InventoryRepository interface {
	GetProductByID(ctx context.Context, id int64) (*models.Product, error)
	InsertUnits(ctx context.Context, productID int64, serials []string) ([]models.InventoryUnit, error)
	ClaimUnits(ctx context.Context, productID, reservationID int64, quantity int) ([]int64, error)
	ReleaseUnits(ctx context.Context, reservationID int64) (int64, error)
	MarkUnitsSold(ctx context.Context, reservationID int64) (int64, error)
	Availability(ctx context.Context, productID int64) (*models.UnitAvailability, error)
}

type ReservationRepository interface {
	CreateReservation(ctx context.Context, r *models.Reservation) error
	GetReservationByID(ctx context.Context, id int64) (*models.Reservation, error)
	LockReservation(ctx context.Context, id int64) (*models.Reservation, error)
	UpdateReservationStatus(ctx context.Context, id int64, from, to models.ReservationStatus) error
	CountActiveReservations(ctx context.Context, marketerID int64) (int, error)
}

type OrderRepository interface {
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	LockOrder(ctx context.Context, id int64) (*models.Order, error)
	LockPendingOrder(ctx context.Context, id int64) (*models.Order, error)
	SetOrderProduct(ctx context.Context, orderID, productID int64) error
	UpdateOrderStatus(ctx context.Context, orderID int64, from, to models.OrderStatus, confirmedAt *time.Time) error
	MarkCommissionPaid(ctx context.Context, orderID int64) error
}

// SalesLedger is the append-only sales record store
type SalesLedger interface {
	InsertSalesRecord(ctx context.Context, rec *models.SalesRecord) (bool, error)
}

// Wallet credits a payee's balance
type Wallet interface {
	Credit(ctx context.Context, payeeID int64, amount decimal.Decimal) error
}

// RateProvider looks up the effective commission rate of a device type
type RateProvider interface {
	Rate(ctx context.Context, deviceType string) (models.CommissionRate, error)
}

type RateRepository interface {
	GetCommissionRates(ctx context.Context) ([]models.CommissionRate, error)
	InsertRateVersion(ctx context.Context, rates []models.CommissionRate) (int64, error)
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error
}

// RateCache is the shared versioned copy of the rate table
type RateCache interface {
	GetRateTable(ctx context.Context) (int64, map[string]models.CommissionRate, bool, error)
	PublishRateTable(ctx context.Context, version int64, rates []models.CommissionRate, ttl time.Duration) (bool, error)
}

// IdempotencyCache stores bulk responses by client key
type IdempotencyCache interface {
	GetIdempotent(ctx context.Context, key string) ([]byte, bool, error)
	SetIdempotent(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// EventPublisher emits engine events after commit
type EventPublisher interface {
	PublishPickupCreated(ctx context.Context, event *models.PickupCreatedEvent) error
	PublishOrderConfirmed(ctx context.Context, event *models.OrderConfirmedEvent) error
	PublishOrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error
}

// Repository is everything the engine needs from persistence; *store.Store implements it
type Repository interface {
	Transactor
	UserRepository
	Directory
	InventoryRepository
	ReservationRepository
	OrderRepository
	SalesLedger
	Wallet
	RateRepository
}

func newBaseEvent(eventType string, now time.Time) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: now,
	}
}
