package handler

import (
	"net/http"
	"strconv"

	"github.com/efreitasn/stockhold/internal/domain"
	"github.com/efreitasn/stockhold/internal/engine"
	"github.com/efreitasn/stockhold/internal/service"
	"github.com/go-chi/chi/v5"
)

const defaultReservationPageSize = 20

// ReservationHandler handles HTTP requests for reservation endpoints.
type ReservationHandler struct {
	reservationSvc *service.ReservationService
}

// NewReservationHandler creates a new ReservationHandler.
func NewReservationHandler(reservationSvc *service.ReservationService) *ReservationHandler {
	return &ReservationHandler{reservationSvc: reservationSvc}
}

// createReservationRequest is the JSON request body for POST /api/v1/reservations.
type createReservationRequest struct {
	ProductID    string         `json:"product_id"`
	Quantity     int64          `json:"quantity"`
	SalesChannel string         `json:"sales_channel"`
	Metadata     map[string]any `json:"metadata"`
}

// confirmReservationRequest is the JSON request body for the confirm endpoint.
type confirmReservationRequest struct {
	SaleID      string `json:"sale_id"`
	ConfirmedBy string `json:"confirmed_by"`
}

// reservationResponse is the JSON representation of a reservation.
// All fields are always present; nullable fields use pointers.
type reservationResponse struct {
	ID           string         `json:"id"`
	ProductID    string         `json:"product_id"`
	Quantity     int64          `json:"quantity"`
	Status       string         `json:"status"`
	SalesChannel string         `json:"sales_channel"`
	Metadata     map[string]any `json:"metadata"`
	CreatedAt    string         `json:"created_at"`
	ExpiresAt    string         `json:"expires_at"`
	ConfirmedAt  *string        `json:"confirmed_at"`
	ConfirmedBy  *string        `json:"confirmed_by"`
	SaleID       *string        `json:"sale_id"`
	ReleasedAt   *string        `json:"released_at"`
	ExpiredAt    *string        `json:"expired_at"`
}

// releaseResponse adds whether the hold was still counting against
// availability when it was released.
type releaseResponse struct {
	reservationResponse
	WasActive bool `json:"was_active"`
}

type reservationListResponse struct {
	Data  []reservationResponse `json:"data"`
	Total int                   `json:"total"`
	Page  int                   `json:"page"`
	Limit int                   `json:"limit"`
}

// Create handles POST /api/v1/reservations.
func (h *ReservationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createReservationRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	res, err := h.reservationSvc.Create(r.Context(), engine.CreateRequest{
		ProductID:    req.ProductID,
		Quantity:     req.Quantity,
		SalesChannel: domain.SalesChannel(req.SalesChannel),
		Metadata:     req.Metadata,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, buildReservationResponse(res))
}

// Get handles GET /api/v1/reservations/{reservation_id}.
func (h *ReservationHandler) Get(w http.ResponseWriter, r *http.Request) {
	res, err := h.reservationSvc.Get(chi.URLParam(r, "reservation_id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, buildReservationResponse(res))
}

// Confirm handles POST /api/v1/reservations/{reservation_id}/confirm.
func (h *ReservationHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	var req confirmReservationRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	res, err := h.reservationSvc.Confirm(r.Context(), chi.URLParam(r, "reservation_id"), req.SaleID, req.ConfirmedBy)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, buildReservationResponse(res))
}

// Release handles DELETE /api/v1/reservations/{reservation_id}.
func (h *ReservationHandler) Release(w http.ResponseWriter, r *http.Request) {
	result, err := h.reservationSvc.Release(r.Context(), chi.URLParam(r, "reservation_id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, releaseResponse{
		reservationResponse: buildReservationResponse(result.Reservation),
		WasActive:           result.WasLive,
	})
}

// List handles GET /api/v1/reservations.
func (h *ReservationHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var status *domain.ReservationStatus
	if v := q.Get("status"); v != "" {
		s := domain.ReservationStatus(v)
		status = &s
	}

	page := 1
	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "validation_error", "page must be >= 1")
			return
		}
		page = n
	}

	limit := defaultReservationPageSize
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "validation_error", "limit must be between 1 and 100")
			return
		}
		limit = n
	}

	reservations, total, err := h.reservationSvc.List(status, q.Get("product_id"), page, limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	data := make([]reservationResponse, len(reservations))
	for i, res := range reservations {
		data[i] = buildReservationResponse(res)
	}
	WriteJSON(w, http.StatusOK, reservationListResponse{
		Data:  data,
		Total: total,
		Page:  page,
		Limit: limit,
	})
}

func buildReservationResponse(res *domain.Reservation) reservationResponse {
	resp := reservationResponse{
		ID:           res.ID,
		ProductID:    res.ProductID,
		Quantity:     res.Quantity,
		Status:       string(res.Status),
		SalesChannel: string(res.SalesChannel),
		Metadata:     res.Metadata,
		CreatedAt:    formatTimestamp(res.CreatedAt),
		ExpiresAt:    formatTimestamp(res.ExpiresAt),
		ConfirmedAt:  formatTimestampPtr(res.ConfirmedAt),
		ReleasedAt:   formatTimestampPtr(res.ReleasedAt),
		ExpiredAt:    formatTimestampPtr(res.ExpiredAt),
	}
	if resp.Metadata == nil {
		resp.Metadata = map[string]any{}
	}
	if res.Status == domain.ReservationStatusConfirmed {
		resp.ConfirmedBy = &res.ConfirmedBy
		resp.SaleID = &res.SaleID
	}
	return resp
}
