package domain

import (
	"maps"
	"time"
)

// SalesChannel tags where a reservation originated.
type SalesChannel string

const (
	SalesChannelInStore SalesChannel = "IN_STORE"
	SalesChannelOnline  SalesChannel = "ONLINE"
	SalesChannelPhone   SalesChannel = "PHONE"
)

// Valid reports whether c is a recognized sales channel.
func (c SalesChannel) Valid() bool {
	switch c {
	case SalesChannelInStore, SalesChannelOnline, SalesChannelPhone:
		return true
	}
	return false
}

// ReservationStatus represents the lifecycle state of a reservation.
type ReservationStatus string

const (
	ReservationStatusActive    ReservationStatus = "ACTIVE"
	ReservationStatusConfirmed ReservationStatus = "CONFIRMED"
	ReservationStatusExpired   ReservationStatus = "EXPIRED"
	ReservationStatusReleased  ReservationStatus = "RELEASED"
)

// Terminal reports whether no further transition is allowed from s.
func (s ReservationStatus) Terminal() bool {
	return s == ReservationStatusConfirmed || s == ReservationStatusExpired || s == ReservationStatusReleased
}

// Valid reports whether s is a known status.
func (s ReservationStatus) Valid() bool {
	return s == ReservationStatusActive || s.Terminal()
}

// Reservation is a time-limited hold on a quantity of a STOCK product.
// Quantity, CreatedAt and ExpiresAt never change after creation.
type Reservation struct {
	ID           string
	ProductID    string
	Quantity     int64
	Status       ReservationStatus
	SalesChannel SalesChannel
	Metadata     map[string]any
	CreatedAt    time.Time
	ExpiresAt    time.Time
	ConfirmedAt  *time.Time
	ConfirmedBy  string
	SaleID       string
	ReleasedAt   *time.Time
	ExpiredAt    *time.Time
}

// LiveAt reports whether the reservation still counts against
// availability at now. A hold whose deadline equals now is not live.
func (r *Reservation) LiveAt(now time.Time) bool {
	return r.Status == ReservationStatusActive && r.ExpiresAt.After(now)
}

// Clone returns a detached copy safe to hand to callers.
func (r *Reservation) Clone() *Reservation {
	c := *r
	c.Metadata = maps.Clone(r.Metadata)
	c.ConfirmedAt = cloneTime(r.ConfirmedAt)
	c.ReleasedAt = cloneTime(r.ReleasedAt)
	c.ExpiredAt = cloneTime(r.ExpiredAt)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
