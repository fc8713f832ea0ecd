package handler

import (
	"net/http"

	"github.com/efreitasn/stockhold/internal/domain"
	"github.com/efreitasn/stockhold/internal/service"
	"github.com/go-chi/chi/v5"
)

// WebhookHandler handles HTTP requests for webhook endpoints.
type WebhookHandler struct {
	webhookSvc *service.WebhookService
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(webhookSvc *service.WebhookService) *WebhookHandler {
	return &WebhookHandler{webhookSvc: webhookSvc}
}

// upsertWebhookRequest is the JSON request body for POST /webhooks.
type upsertWebhookRequest struct {
	SubscriberID string   `json:"subscriber_id"`
	URL          string   `json:"url"`
	Events       []string `json:"events"`
}

// webhookResponse is a single webhook in the response.
type webhookResponse struct {
	WebhookID    string `json:"webhook_id"`
	SubscriberID string `json:"subscriber_id"`
	Event        string `json:"event"`
	URL          string `json:"url"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

// webhookListResponse is the JSON response for POST and GET /webhooks.
type webhookListResponse struct {
	Webhooks []webhookResponse `json:"webhooks"`
}

// Upsert handles POST /webhooks.
func (h *WebhookHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	var req upsertWebhookRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	webhooks, anyCreated, err := h.webhookSvc.Upsert(service.UpsertWebhookRequest{
		SubscriberID: req.SubscriberID,
		URL:          req.URL,
		Events:       req.Events,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	status := http.StatusOK
	if anyCreated {
		status = http.StatusCreated
	}

	WriteJSON(w, status, webhookListResponse{
		Webhooks: buildWebhookResponses(webhooks),
	})
}

// List handles GET /webhooks.
func (h *WebhookHandler) List(w http.ResponseWriter, r *http.Request) {
	subscriberID := r.URL.Query().Get("subscriber_id")
	if subscriberID == "" {
		WriteError(w, http.StatusBadRequest, "validation_error", "subscriber_id query parameter is required")
		return
	}

	webhooks, err := h.webhookSvc.List(subscriberID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, webhookListResponse{
		Webhooks: buildWebhookResponses(webhooks),
	})
}

// Delete handles DELETE /webhooks/{webhook_id}.
func (h *WebhookHandler) Delete(w http.ResponseWriter, r *http.Request) {
	webhookID := chi.URLParam(r, "webhook_id")

	if err := h.webhookSvc.Delete(webhookID); err != nil {
		writeDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// buildWebhookResponses converts domain webhooks to response webhooks.
func buildWebhookResponses(webhooks []*domain.Webhook) []webhookResponse {
	result := make([]webhookResponse, len(webhooks))
	for i, wh := range webhooks {
		result[i] = webhookResponse{
			WebhookID:    wh.WebhookID,
			SubscriberID: wh.SubscriberID,
			Event:        wh.Event,
			URL:          wh.URL,
			CreatedAt:    formatTimestamp(wh.CreatedAt),
			UpdatedAt:    formatTimestamp(wh.UpdatedAt),
		}
	}
	return result
}
