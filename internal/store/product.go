package store

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/efreitasn/stockhold/internal/domain"
)

//go:embed seed/products.json
var seedProducts []byte

// ProductStore is a thread-safe in-memory product catalog keyed by
// product id. Every read returns a copy.
type ProductStore struct {
	mu       sync.RWMutex
	products map[string]*domain.Product
	clock    domain.Clock
}

// NewProductStore creates an empty ProductStore. A nil clock means the
// system clock.
func NewProductStore(clock domain.Clock) *ProductStore {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	return &ProductStore{
		products: make(map[string]*domain.Product),
		clock:    clock,
	}
}

// NewSeededProductStore creates a ProductStore holding the built-in
// demo catalog.
func NewSeededProductStore(clock domain.Clock) (*ProductStore, error) {
	s := NewProductStore(clock)
	if err := s.Load(bytes.NewReader(seedProducts)); err != nil {
		return nil, fmt.Errorf("load seed catalog: %w", err)
	}
	return s, nil
}

// productRecord is the on-disk catalog format.
type productRecord struct {
	ID               string    `json:"id"`
	SKU              string    `json:"sku"`
	Name             string    `json:"name"`
	Description      string    `json:"description"`
	Price            int64     `json:"price"`
	Category         string    `json:"category"`
	Brand            string    `json:"brand"`
	AvailabilityType string    `json:"availability_type"`
	StockQuantity    int64     `json:"stock_quantity"`
	EstimatedDays    *int      `json:"estimated_days"`
	Active           bool      `json:"active"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Load decodes a JSON array of products from r and adds them to the
// store, replacing entries with the same id.
func (s *ProductStore) Load(r io.Reader) error {
	var records []productRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return fmt.Errorf("decode catalog: %w", err)
	}

	products := make([]*domain.Product, 0, len(records))
	for i, rec := range records {
		if rec.ID == "" {
			return fmt.Errorf("catalog entry %d: id is required", i)
		}
		typ := domain.AvailabilityType(rec.AvailabilityType)
		if !typ.Valid() {
			return fmt.Errorf("catalog entry %s: unknown availability_type %q", rec.ID, rec.AvailabilityType)
		}
		if rec.StockQuantity < 0 {
			return fmt.Errorf("catalog entry %s: stock_quantity must be >= 0", rec.ID)
		}
		products = append(products, &domain.Product{
			ID:               rec.ID,
			SKU:              rec.SKU,
			Name:             rec.Name,
			Description:      rec.Description,
			Price:            rec.Price,
			Category:         rec.Category,
			Brand:            rec.Brand,
			AvailabilityType: typ,
			StockQuantity:    rec.StockQuantity,
			EstimatedDays:    rec.EstimatedDays,
			Active:           rec.Active,
			CreatedAt:        rec.CreatedAt,
			UpdatedAt:        rec.UpdatedAt,
		})
	}

	for _, p := range products {
		s.Put(p)
	}
	return nil
}

// Put adds or replaces a product.
func (s *ProductStore) Put(p *domain.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = p.Clone()
}

// Get retrieves a product by ID. It returns
// domain.ErrProductNotFound if the product does not exist.
func (s *ProductStore) Get(id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	return p.Clone(), nil
}

// GetProduct is Get for callers that carry a deadline.
func (s *ProductStore) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.Get(id)
}

// List returns every product ordered by id.
func (s *ProductStore) List() []*domain.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Product, 0, len(s.products))
	for _, p := range s.products {
		result = append(result, p.Clone())
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// Search matches query case-insensitively against name, SKU and
// description of active products. Results are ordered by id. It returns
// the requested page and the number of matches before paging.
func (s *ProductStore) Search(query string, limit, offset int) ([]*domain.Product, int) {
	term := strings.ToLower(query)

	var matches []*domain.Product
	for _, p := range s.List() {
		if !p.Active {
			continue
		}
		if strings.Contains(strings.ToLower(p.Name), term) ||
			strings.Contains(strings.ToLower(p.SKU), term) ||
			strings.Contains(strings.ToLower(p.Description), term) {
			matches = append(matches, p)
		}
	}

	total := len(matches)
	if offset >= total {
		return []*domain.Product{}, total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matches[offset:end], total
}

// DecrementStock lowers a product's stock by qty, clamping at zero, and
// returns the new quantity.
func (s *ProductStore) DecrementStock(ctx context.Context, id string, qty int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok {
		return 0, domain.ErrProductNotFound
	}
	p.StockQuantity = max(0, p.StockQuantity-qty)
	p.UpdatedAt = s.clock.Now()
	return p.StockQuantity, nil
}

// Count returns the number of products in the catalog.
func (s *ProductStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.products)
}
