package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypePickupCreated          = "PICKUP_CREATED"
	EventTypeOrderConfirmed         = "ORDER_CONFIRMED"
	EventTypeOrderConfirmedToDealer = "ORDER_CONFIRMED_TO_DEALER"
	EventTypeOrderCanceled          = "ORDER_CANCELED"
	EventTypeOrderRejected          = "ORDER_REJECTED"
	EventTypeRateTableUpdated       = "RATE_TABLE_UPDATED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// PickupCreatedEvent published when units are claimed for a marketer
type PickupCreatedEvent struct {
	BaseEvent
	ReservationID int64     `json:"reservation_id"`
	MarketerID    int64     `json:"marketer_id"`
	DealerID      int64     `json:"dealer_id"`
	ProductID     int64     `json:"product_id"`
	Quantity      int       `json:"quantity"`
	UnitIDs       []int64   `json:"unit_ids"`
	Deadline      time.Time `json:"deadline"`
}

// OrderConfirmedEvent published after settlement commits
type OrderConfirmedEvent struct {
	BaseEvent
	OrderID       int64              `json:"order_id"`
	MarketerID    int64              `json:"marketer_id"`
	ReservationID *int64             `json:"reservation_id,omitempty"`
	ProductID     int64              `json:"product_id"`
	Quantity      int                `json:"quantity"`
	GrossProfit   decimal.Decimal    `json:"gross_profit"`
	Credits       []CommissionCredit `json:"credits"`
}

// OrderStatusChangedEvent covers transitions that move no money
type OrderStatusChangedEvent struct {
	BaseEvent
	OrderID       int64       `json:"order_id"`
	MarketerID    int64       `json:"marketer_id"`
	ReservationID *int64      `json:"reservation_id,omitempty"`
	Status        OrderStatus `json:"status"`
}

// RateTableUpdatedEvent carries a new commission-rate version
type RateTableUpdatedEvent struct {
	BaseEvent
	Rates []CommissionRate `json:"rates"`
}
