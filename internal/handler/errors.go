package handler

import (
	"errors"
	"net/http"

	"github.com/efreitasn/stockhold/internal/domain"
)

// writeDomainError maps domain errors to HTTP responses. Anything it does
// not recognise becomes a 500 without leaking the error text.
func writeDomainError(w http.ResponseWriter, err error) {
	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		WriteError(w, http.StatusBadRequest, "validation_error", validationErr.Message)
		return
	}

	var stockErr *domain.InsufficientStockError
	if errors.As(err, &stockErr) {
		WriteJSON(w, http.StatusConflict, errorResponse{
			Error:     "insufficient_stock",
			Message:   stockErr.Error(),
			Requested: &stockErr.Requested,
			Available: &stockErr.Available,
		})
		return
	}

	var stateErr *domain.InvalidStateError
	if errors.As(err, &stateErr) {
		status := string(stateErr.Status)
		WriteJSON(w, http.StatusConflict, errorResponse{
			Error:   "invalid_state",
			Message: stateErr.Error(),
			Status:  &status,
		})
		return
	}

	switch {
	case errors.Is(err, domain.ErrProductNotFound):
		WriteError(w, http.StatusNotFound, "product_not_found", "Product not found")
	case errors.Is(err, domain.ErrReservationNotFound):
		WriteError(w, http.StatusNotFound, "reservation_not_found", "Reservation not found")
	case errors.Is(err, domain.ErrWebhookNotFound):
		WriteError(w, http.StatusNotFound, "webhook_not_found", "Webhook not found")
	case errors.Is(err, domain.ErrNotReservable):
		WriteError(w, http.StatusUnprocessableEntity, "product_not_reservable",
			"Only products with STOCK availability can be reserved")
	case errors.Is(err, domain.ErrInsufficientStock):
		WriteError(w, http.StatusConflict, "insufficient_stock", "Not enough stock available")
	case errors.Is(err, domain.ErrInvalidState):
		WriteError(w, http.StatusConflict, "invalid_state", "Reservation is not in a valid state for this operation")
	case errors.Is(err, domain.ErrReservationExpired):
		WriteError(w, http.StatusConflict, "reservation_expired",
			"The reservation has expired and can no longer be confirmed")
	default:
		WriteError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}
