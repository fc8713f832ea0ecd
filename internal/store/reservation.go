package store

import (
	"sync"

	"github.com/efreitasn/stockhold/internal/domain"
)

// ReservationStore is a thread-safe in-memory store for reservations,
// with a primary index by id, an insertion-ordered log for listing and
// running per-status counts. Records are never deleted.
//
// After Create, a stored record is only written through Transition.
// Callers of Transition must hold the product's ledger lock, so the
// engine may read status fields under that lock alone.
type ReservationStore struct {
	mu           sync.RWMutex
	reservations map[string]*domain.Reservation
	ordered      []*domain.Reservation // creation order
	counts       map[domain.ReservationStatus]int
}

// NewReservationStore creates an empty ReservationStore.
func NewReservationStore() *ReservationStore {
	return &ReservationStore{
		reservations: make(map[string]*domain.Reservation),
		counts:       make(map[domain.ReservationStatus]int),
	}
}

// Create adds a reservation to the store.
func (s *ReservationStore) Create(r *domain.Reservation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reservations[r.ID] = r
	s.ordered = append(s.ordered, r)
	s.counts[r.Status]++
}

// Get returns the stored record by ID. It returns
// domain.ErrReservationNotFound if the reservation does not exist.
// The pointer is the live record; read its mutable fields only under
// the product's ledger lock.
func (s *ReservationStore) Get(id string) (*domain.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.reservations[id]
	if !ok {
		return nil, domain.ErrReservationNotFound
	}
	return r, nil
}

// Snapshot returns a detached copy of a reservation.
func (s *ReservationStore) Snapshot(id string) (*domain.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.reservations[id]
	if !ok {
		return nil, domain.ErrReservationNotFound
	}
	return r.Clone(), nil
}

// Transition moves r to next, applies fn to the record and updates the
// status counts, all under the store lock.
func (s *ReservationStore) Transition(r *domain.Reservation, next domain.ReservationStatus, fn func(*domain.Reservation)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counts[r.Status]--
	r.Status = next
	s.counts[next]++
	if fn != nil {
		fn(r)
	}
}

// List returns copies of reservations newest first. Nil status or empty
// productID disable that filter. Pagination is 1-based. It returns the
// page and the total count of matches before pagination.
func (s *ReservationStore) List(status *domain.ReservationStatus, productID string, page, limit int) ([]*domain.Reservation, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	filtered := make([]*domain.Reservation, 0)
	for i := len(s.ordered) - 1; i >= 0; i-- {
		r := s.ordered[i]
		if status != nil && r.Status != *status {
			continue
		}
		if productID != "" && r.ProductID != productID {
			continue
		}
		filtered = append(filtered, r)
	}

	total := len(filtered)
	if limit <= 0 || page < 1 || page-1 >= (total+limit-1)/limit {
		return []*domain.Reservation{}, total
	}
	start := (page - 1) * limit
	end := start + limit
	if end > total {
		end = total
	}

	result := make([]*domain.Reservation, 0, end-start)
	for _, r := range filtered[start:end] {
		result = append(result, r.Clone())
	}
	return result, total
}

// CountByStatus returns the number of reservations in each status.
// Every known status is present, zero or not.
func (s *ReservationStore) CountByStatus() map[domain.ReservationStatus]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return map[domain.ReservationStatus]int{
		domain.ReservationStatusActive:    s.counts[domain.ReservationStatusActive],
		domain.ReservationStatusConfirmed: s.counts[domain.ReservationStatusConfirmed],
		domain.ReservationStatusExpired:   s.counts[domain.ReservationStatusExpired],
		domain.ReservationStatusReleased:  s.counts[domain.ReservationStatusReleased],
	}
}

// Len returns the total number of reservations ever created.
func (s *ReservationStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.reservations)
}
