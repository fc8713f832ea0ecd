package service

import (
	"context"

	"github.com/efreitasn/stockhold/internal/domain"
	"github.com/efreitasn/stockhold/internal/engine"
	"github.com/efreitasn/stockhold/internal/store"
)

// Search paging bounds.
const (
	DefaultSearchLimit = 50
	MaxSearchLimit     = 100
	minQueryLength     = 2
)

// SearchResult is one page of a catalog search.
type SearchResult struct {
	Products []*domain.Product
	Total    int
	Limit    int
	Offset   int
}

// ProductService exposes the catalog and live availability.
type ProductService struct {
	products *store.ProductStore
	reserver *engine.Reserver
}

// NewProductService creates a new ProductService with the given dependencies.
func NewProductService(products *store.ProductStore, reserver *engine.Reserver) *ProductService {
	return &ProductService{
		products: products,
		reserver: reserver,
	}
}

// List returns every product in the catalog.
func (s *ProductService) List() []*domain.Product {
	return s.products.List()
}

// Search matches query against active products. A nil limit means
// DefaultSearchLimit; limits above MaxSearchLimit are capped.
func (s *ProductService) Search(query string, limit *int, offset int) (*SearchResult, error) {
	if len(query) < minQueryLength {
		return nil, &domain.ValidationError{Message: "query must be at least 2 characters"}
	}

	l := DefaultSearchLimit
	if limit != nil {
		if *limit < 1 {
			return nil, &domain.ValidationError{Message: "limit must be a positive integer"}
		}
		l = min(*limit, MaxSearchLimit)
	}
	if offset < 0 {
		return nil, &domain.ValidationError{Message: "offset must be >= 0"}
	}

	products, total := s.products.Search(query, l, offset)
	return &SearchResult{
		Products: products,
		Total:    total,
		Limit:    l,
		Offset:   offset,
	}, nil
}

// Get returns a single product.
func (s *ProductService) Get(productID string) (*domain.Product, error) {
	return s.products.Get(productID)
}

// Availability reports how much of a product can still be reserved.
func (s *ProductService) Availability(ctx context.Context, productID string) (*engine.Availability, error) {
	return s.reserver.Availability(ctx, productID)
}
