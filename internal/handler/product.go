package handler

import (
	"net/http"
	"strconv"

	"github.com/efreitasn/stockhold/internal/domain"
	"github.com/efreitasn/stockhold/internal/engine"
	"github.com/efreitasn/stockhold/internal/service"
	"github.com/go-chi/chi/v5"
)

// ProductHandler handles HTTP requests for catalog endpoints.
type ProductHandler struct {
	productSvc *service.ProductService
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(productSvc *service.ProductService) *ProductHandler {
	return &ProductHandler{productSvc: productSvc}
}

// productResponse is the JSON representation of a product.
// estimated_days is null for STOCK products.
type productResponse struct {
	ID               string `json:"id"`
	SKU              string `json:"sku"`
	Name             string `json:"name"`
	Description      string `json:"description"`
	Price            int64  `json:"price"`
	Category         string `json:"category"`
	Brand            string `json:"brand"`
	AvailabilityType string `json:"availability_type"`
	StockQuantity    int64  `json:"stock_quantity"`
	EstimatedDays    *int   `json:"estimated_days"`
	Active           bool   `json:"active"`
	CreatedAt        string `json:"created_at"`
	UpdatedAt        string `json:"updated_at"`
}

type productListResponse struct {
	Data  []productResponse `json:"data"`
	Total int               `json:"total"`
}

type productSearchResponse struct {
	Data   []productResponse `json:"data"`
	Total  int               `json:"total"`
	Limit  int               `json:"limit"`
	Offset int               `json:"offset"`
}

// availabilityResponse is the JSON response for the availability endpoint.
// available_quantity is null for products that are not held from stock.
type availabilityResponse struct {
	ProductID         string `json:"product_id"`
	AvailabilityType  string `json:"availability_type"`
	Available         bool   `json:"available"`
	AvailableQuantity *int64 `json:"available_quantity"`
	EstimatedDays     *int   `json:"estimated_days"`
	CheckedAt         string `json:"checked_at"`
}

// List handles GET /api/v1/products.
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	products := h.productSvc.List()
	WriteJSON(w, http.StatusOK, productListResponse{
		Data:  buildProductResponses(products),
		Total: len(products),
	})
}

// Search handles GET /api/v1/products/search.
func (h *ProductHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var limit *int
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "validation_error", "limit must be a positive integer")
			return
		}
		limit = &n
	}

	offset := 0
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "validation_error", "offset must be >= 0")
			return
		}
		offset = n
	}

	result, err := h.productSvc.Search(q.Get("query"), limit, offset)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, productSearchResponse{
		Data:   buildProductResponses(result.Products),
		Total:  result.Total,
		Limit:  result.Limit,
		Offset: result.Offset,
	})
}

// Get handles GET /api/v1/products/{product_id}.
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	product, err := h.productSvc.Get(chi.URLParam(r, "product_id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, buildProductResponse(product))
}

// Availability handles GET /api/v1/products/{product_id}/availability.
func (h *ProductHandler) Availability(w http.ResponseWriter, r *http.Request) {
	a, err := h.productSvc.Availability(r.Context(), chi.URLParam(r, "product_id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, buildAvailabilityResponse(a))
}

func buildProductResponse(p *domain.Product) productResponse {
	return productResponse{
		ID:               p.ID,
		SKU:              p.SKU,
		Name:             p.Name,
		Description:      p.Description,
		Price:            p.Price,
		Category:         p.Category,
		Brand:            p.Brand,
		AvailabilityType: string(p.AvailabilityType),
		StockQuantity:    p.StockQuantity,
		EstimatedDays:    p.EstimatedDays,
		Active:           p.Active,
		CreatedAt:        formatTimestamp(p.CreatedAt),
		UpdatedAt:        formatTimestamp(p.UpdatedAt),
	}
}

func buildProductResponses(products []*domain.Product) []productResponse {
	result := make([]productResponse, len(products))
	for i, p := range products {
		result[i] = buildProductResponse(p)
	}
	return result
}

func buildAvailabilityResponse(a *engine.Availability) availabilityResponse {
	return availabilityResponse{
		ProductID:         a.ProductID,
		AvailabilityType:  string(a.AvailabilityType),
		Available:         a.Available,
		AvailableQuantity: a.Quantity,
		EstimatedDays:     a.EstimatedDays,
		CheckedAt:         formatTimestamp(a.CheckedAt),
	}
}
