package models

import "errors"

var (
	ErrInvalidQuantity    = errors.New("invalid quantity")
	ErrInvalidSerial      = errors.New("serial code must be exactly 15 digits")
	ErrDuplicateSerialArg = errors.New("serial code repeated in request")
	ErrInvalidAction      = errors.New("invalid bulk action")
	ErrEmptyBatch         = errors.New("no order ids supplied")
	ErrBatchTooLarge      = errors.New("too many order ids in one batch")
	ErrInvalidID          = errors.New("invalid id")
	ErrInvalidRate        = errors.New("invalid commission rate")

	ErrOrderNotFound       = errors.New("order not found or not pending")
	ErrInvalidState        = errors.New("invalid state transition")
	ErrNotCancelable       = errors.New("order has no reservation and cannot be canceled")
	ErrActiveReservation   = errors.New("marketer already holds an active pickup")
	ErrIdempotencyReused   = errors.New("idempotency key was used for a different request")
	ErrUserNotFound        = errors.New("user not found")
	ErrProductNotFound     = errors.New("product not found")
	ErrReservationNotFound = errors.New("reservation not found")

	ErrInsufficientInventory = errors.New("insufficient inventory")
	ErrLocationMismatch      = errors.New("dealer and marketer locations differ")
	ErrAccountLocked         = errors.New("account is locked")

	ErrDuplicateSerial     = errors.New("serial code already registered")
	ErrReferenceViolation  = errors.New("referenced record does not exist")
	ErrUnknownDeviceType   = errors.New("no commission rate for device type")
	ErrUnresolvableProduct = errors.New("order has neither product nor reservation")
	ErrConstraintViolation = errors.New("record violates a storage constraint")
)

// ErrorKind groups domain errors by how a caller should react
type ErrorKind string

const (
	KindValidation ErrorKind = "validation"
	KindNotFound   ErrorKind = "not_found"
	KindConflict   ErrorKind = "conflict"
	KindExhausted  ErrorKind = "exhausted"
	KindIntegrity  ErrorKind = "integrity"
	KindInternal   ErrorKind = "internal"
)

type classified struct {
	err  error
	kind ErrorKind
	code string
}

var taxonomy = []classified{
	{ErrInvalidQuantity, KindValidation, "invalid_quantity"},
	{ErrInvalidSerial, KindValidation, "invalid_serial"},
	{ErrDuplicateSerialArg, KindValidation, "duplicate_serial_in_request"},
	{ErrInvalidAction, KindValidation, "invalid_action"},
	{ErrEmptyBatch, KindValidation, "empty_batch"},
	{ErrBatchTooLarge, KindValidation, "batch_too_large"},
	{ErrInvalidID, KindValidation, "invalid_id"},
	{ErrInvalidRate, KindValidation, "invalid_rate"},

	{ErrOrderNotFound, KindNotFound, "order_not_found"},
	{ErrUserNotFound, KindNotFound, "user_not_found"},
	{ErrProductNotFound, KindNotFound, "product_not_found"},
	{ErrReservationNotFound, KindNotFound, "reservation_not_found"},
	{ErrInvalidState, KindConflict, "invalid_state"},
	{ErrNotCancelable, KindConflict, "not_cancelable"},
	{ErrActiveReservation, KindConflict, "active_reservation"},
	{ErrIdempotencyReused, KindConflict, "idempotency_key_reused"},

	{ErrInsufficientInventory, KindExhausted, "insufficient_inventory"},
	{ErrLocationMismatch, KindExhausted, "location_mismatch"},
	{ErrAccountLocked, KindExhausted, "account_locked"},

	{ErrDuplicateSerial, KindIntegrity, "duplicate_serial"},
	{ErrReferenceViolation, KindIntegrity, "reference_violation"},
	{ErrUnknownDeviceType, KindIntegrity, "unknown_device_type"},
	{ErrUnresolvableProduct, KindIntegrity, "unresolvable_product"},
	{ErrConstraintViolation, KindIntegrity, "constraint_violation"},
}

func lookup(err error) (classified, bool) {
	for _, c := range taxonomy {
		if errors.Is(err, c.err) {
			return c, true
		}
	}
	return classified{}, false
}

// KindOf classifies err; anything not in the taxonomy is internal
func KindOf(err error) ErrorKind {
	if c, ok := lookup(err); ok {
		return c.kind
	}
	return KindInternal
}

// CodeOf returns a stable machine-readable code for err
func CodeOf(err error) string {
	if c, ok := lookup(err); ok {
		return c.code
	}
	return "internal_error"
}

// IsBusinessError reports whether err is an expected, per-operation failure
func IsBusinessError(err error) bool {
	return err != nil && KindOf(err) != KindInternal
}
