package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for domain-level error handling.
// The handler layer maps these to HTTP status codes.
var (
	ErrProductNotFound     = errors.New("product_not_found")
	ErrReservationNotFound = errors.New("reservation_not_found")
	ErrNotReservable       = errors.New("product_not_reservable")
	ErrInsufficientStock   = errors.New("insufficient_stock")
	ErrInvalidState        = errors.New("invalid_state")
	ErrReservationExpired  = errors.New("reservation_expired")
	ErrWebhookNotFound     = errors.New("webhook_not_found")
)

// ValidationError represents a request validation failure.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// InsufficientStockError reports how much was asked for and how much was
// free when a hold was refused. It matches ErrInsufficientStock.
type InsufficientStockError struct {
	Requested int64
	Available int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("only %d units available, %d requested", e.Available, e.Requested)
}

func (e *InsufficientStockError) Unwrap() error {
	return ErrInsufficientStock
}

// InvalidStateError reports the status that made an operation illegal.
// It matches ErrInvalidState.
type InvalidStateError struct {
	Status ReservationStatus
	Op     string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s a %s reservation", e.Op, e.Status)
}

func (e *InvalidStateError) Unwrap() error {
	return ErrInvalidState
}
