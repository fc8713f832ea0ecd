package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/efreitasn/stockhold/internal/domain"
	"github.com/efreitasn/stockhold/internal/engine"
	"github.com/efreitasn/stockhold/internal/store"
)

const maxReferenceLength = 128

// ValidReservationStatuses lists all valid reservation status values for validation.
var ValidReservationStatuses = map[domain.ReservationStatus]bool{
	domain.ReservationStatusActive:    true,
	domain.ReservationStatusConfirmed: true,
	domain.ReservationStatusExpired:   true,
	domain.ReservationStatusReleased:  true,
}

// Stats is the snapshot reported by the health endpoint.
type Stats struct {
	Products     int
	Reservations int
	ByStatus     map[domain.ReservationStatus]int
}

// ReservationService places and resolves reservations and notifies
// webhook subscribers of every transition.
type ReservationService struct {
	reserver     *engine.Reserver
	reservations *store.ReservationStore
	products     *store.ProductStore
	webhookSvc   *WebhookService
}

// NewReservationService creates a new ReservationService with the given
// dependencies. webhookSvc may be nil.
func NewReservationService(
	reserver *engine.Reserver,
	reservations *store.ReservationStore,
	products *store.ProductStore,
	webhookSvc *WebhookService,
) *ReservationService {
	return &ReservationService{
		reserver:     reserver,
		reservations: reservations,
		products:     products,
		webhookSvc:   webhookSvc,
	}
}

// Create places a new hold.
func (s *ReservationService) Create(ctx context.Context, req engine.CreateRequest) (*domain.Reservation, error) {
	res, err := s.reserver.Create(ctx, req)
	if err != nil {
		return nil, err
	}
	if s.webhookSvc != nil {
		s.webhookSvc.DispatchReservationCreated(res)
	}
	return res, nil
}

// Confirm turns a hold into a sale. A hold found past its deadline is
// expired, reported to reservation.expired subscribers, and the call fails
// with domain.ErrReservationExpired.
func (s *ReservationService) Confirm(ctx context.Context, reservationID, saleID, confirmedBy string) (*domain.Reservation, error) {
	if len(saleID) > maxReferenceLength {
		return nil, &domain.ValidationError{Message: "sale_id must be at most 128 characters"}
	}
	if len(confirmedBy) > maxReferenceLength {
		return nil, &domain.ValidationError{Message: "confirmed_by must be at most 128 characters"}
	}

	res, err := s.reserver.Confirm(ctx, reservationID, saleID, confirmedBy)
	if err != nil {
		if errors.Is(err, domain.ErrReservationExpired) && s.webhookSvc != nil {
			if expired, snapErr := s.reserver.Get(reservationID); snapErr == nil {
				s.webhookSvc.DispatchReservationExpired(expired)
			}
		}
		return nil, err
	}
	if s.webhookSvc != nil {
		s.webhookSvc.DispatchReservationConfirmed(res)
	}
	return res, nil
}

// Release gives a hold back. Only a call that actually transitioned the
// reservation notifies subscribers.
func (s *ReservationService) Release(ctx context.Context, reservationID string) (*engine.ReleaseResult, error) {
	result, err := s.reserver.Release(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if result.Released() && s.webhookSvc != nil {
		s.webhookSvc.DispatchReservationReleased(result.Reservation)
	}
	return result, nil
}

// Get returns a reservation by ID.
func (s *ReservationService) Get(reservationID string) (*domain.Reservation, error) {
	return s.reserver.Get(reservationID)
}

// List returns a page of reservations, newest first, optionally filtered
// by status and product.
func (s *ReservationService) List(status *domain.ReservationStatus, productID string, page, limit int) ([]*domain.Reservation, int, error) {
	if status != nil && !ValidReservationStatuses[*status] {
		return nil, 0, &domain.ValidationError{
			Message: fmt.Sprintf("invalid status filter: '%s'. Must be one of: ACTIVE, CONFIRMED, EXPIRED, RELEASED", *status),
		}
	}
	if page < 1 {
		return nil, 0, &domain.ValidationError{Message: "page must be >= 1"}
	}
	if limit < 1 || limit > 100 {
		return nil, 0, &domain.ValidationError{Message: "limit must be between 1 and 100"}
	}

	reservations, total := s.reservations.List(status, productID, page, limit)
	return reservations, total, nil
}

// Stats returns catalog and reservation counts.
func (s *ReservationService) Stats() Stats {
	return Stats{
		Products:     s.products.Count(),
		Reservations: s.reservations.Len(),
		ByStatus:     s.reservations.CountByStatus(),
	}
}
