package domain

import "time"

// AvailabilityType describes how a product is fulfilled.
type AvailabilityType string

const (
	AvailabilityStock         AvailabilityType = "STOCK"
	AvailabilityManufacturing AvailabilityType = "MANUFACTURING"
	AvailabilityMadeToOrder   AvailabilityType = "MADE_TO_ORDER"
)

// Valid reports whether t is one of the known availability types.
func (t AvailabilityType) Valid() bool {
	switch t {
	case AvailabilityStock, AvailabilityManufacturing, AvailabilityMadeToOrder:
		return true
	}
	return false
}

// Product is the engine's view of a catalog entry. The catalog owns it;
// StockQuantity only means something for STOCK products.
type Product struct {
	ID               string
	SKU              string
	Name             string
	Description      string
	Price            int64 // minor units, informational
	Category         string
	Brand            string
	AvailabilityType AvailabilityType
	StockQuantity    int64
	EstimatedDays    *int // nil for STOCK products
	Active           bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Reservable reports whether holds may be placed against the product.
func (p *Product) Reservable() bool {
	return p.AvailabilityType == AvailabilityStock
}

// Clone returns a copy that shares no mutable state with p.
func (p *Product) Clone() *Product {
	c := *p
	if p.EstimatedDays != nil {
		d := *p.EstimatedDays
		c.EstimatedDays = &d
	}
	return &c
}
