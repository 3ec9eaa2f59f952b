package models

import "fmt"

// OrderStatus is the lifecycle state of an order
type OrderStatus string

const (
	OrderStatusPending           OrderStatus = "pending"
	OrderStatusReleasedConfirmed OrderStatus = "released_confirmed"
	OrderStatusConfirmedToDealer OrderStatus = "confirmed_to_dealer"
	OrderStatusCanceled          OrderStatus = "canceled"
	OrderStatusRejected          OrderStatus = "rejected"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending: {
		OrderStatusReleasedConfirmed,
		OrderStatusConfirmedToDealer,
		OrderStatusCanceled,
		OrderStatusRejected,
	},
}

// CanTransitionTo reports whether next is reachable from s in one step
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	return allowed(orderTransitions[s], next)
}

// ValidateOrderTransition is the single gate for order status changes
func ValidateOrderTransition(from, to OrderStatus) error {
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("%w: order %s -> %s", ErrInvalidState, from, to)
	}
	return nil
}

// ReservationStatus is the lifecycle state of a pickup
type ReservationStatus string

const (
	ReservationStatusPending  ReservationStatus = "pending"
	ReservationStatusSold     ReservationStatus = "sold"
	ReservationStatusReturned ReservationStatus = "returned"
	ReservationStatusExpired  ReservationStatus = "expired"
)

// pending -> pending is the release path: units go back, the claim row stays.
var reservationTransitions = map[ReservationStatus][]ReservationStatus{
	ReservationStatusPending: {
		ReservationStatusPending,
		ReservationStatusSold,
		ReservationStatusReturned,
		ReservationStatusExpired,
	},
}

// CanTransitionTo reports whether next is reachable from s in one step
func (s ReservationStatus) CanTransitionTo(next ReservationStatus) bool {
	return allowed(reservationTransitions[s], next)
}

// ValidateReservationTransition is the single gate for reservation status changes
func ValidateReservationTransition(from, to ReservationStatus) error {
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("%w: reservation %s -> %s", ErrInvalidState, from, to)
	}
	return nil
}

// UnitStatus is the state of one serialized device
type UnitStatus string

const (
	UnitStatusAvailable UnitStatus = "available"
	UnitStatusReserved  UnitStatus = "reserved"
	UnitStatusSold      UnitStatus = "sold"
)

var unitTransitions = map[UnitStatus][]UnitStatus{
	UnitStatusAvailable: {UnitStatusReserved},
	UnitStatusReserved:  {UnitStatusAvailable, UnitStatusSold},
}

// CanTransitionTo reports whether next is reachable from s in one step
func (s UnitStatus) CanTransitionTo(next UnitStatus) bool {
	return allowed(unitTransitions[s], next)
}

// RequiresReservation reports whether a unit in status s must reference a reservation
func (s UnitStatus) RequiresReservation() bool {
	return s == UnitStatusReserved || s == UnitStatusSold
}

// ValidateUnitTransition is the single gate for unit status changes
func ValidateUnitTransition(from, to UnitStatus) error {
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("%w: unit %s -> %s", ErrInvalidState, from, to)
	}
	return nil
}

func allowed[S ~string](targets []S, next S) bool {
	for _, t := range targets {
		if t == next {
			return true
		}
	}
	return false
}
