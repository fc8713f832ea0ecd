package service

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/efreitasn/stockhold/internal/domain"
	"github.com/efreitasn/stockhold/internal/store"
	"github.com/google/uuid"
)

// Webhook event types.
const (
	EventReservationCreated   = "reservation.created"
	EventReservationConfirmed = "reservation.confirmed"
	EventReservationReleased  = "reservation.released"
	EventReservationExpired   = "reservation.expired"
)

var validWebhookEvents = map[string]bool{
	EventReservationCreated:   true,
	EventReservationConfirmed: true,
	EventReservationReleased:  true,
	EventReservationExpired:   true,
}

const maxSubscriberIDLength = 128

// UpsertWebhookRequest represents the input for webhook registration.
type UpsertWebhookRequest struct {
	SubscriberID string
	URL          string
	Events       []string
}

// WebhookService handles webhook CRUD and event dispatch.
type WebhookService struct {
	store  *store.WebhookStore
	client *http.Client
	clock  domain.Clock
	logger *slog.Logger
	wg     sync.WaitGroup
}

// NewWebhookService creates a new WebhookService with the given dependencies.
func NewWebhookService(
	webhookStore *store.WebhookStore,
	webhookTimeout time.Duration,
	clock domain.Clock,
	logger *slog.Logger,
) *WebhookService {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookService{
		store: webhookStore,
		client: &http.Client{
			Timeout: webhookTimeout,
		},
		clock:  clock,
		logger: logger,
	}
}

// Upsert validates the request and creates or updates webhook subscriptions.
// Returns the resulting webhooks, whether any new subscriptions were created, and any error.
func (s *WebhookService) Upsert(req UpsertWebhookRequest) ([]*domain.Webhook, bool, error) {
	if err := validateSubscriberID(req.SubscriberID); err != nil {
		return nil, false, err
	}

	if req.URL == "" {
		return nil, false, &domain.ValidationError{Message: "url is required"}
	}
	if len(req.URL) > 2048 {
		return nil, false, &domain.ValidationError{Message: "url must be at most 2048 characters"}
	}
	parsed, err := url.ParseRequestURI(req.URL)
	if err != nil || !parsed.IsAbs() {
		return nil, false, &domain.ValidationError{Message: "url must be a valid absolute URL"}
	}
	if parsed.Scheme != "https" {
		return nil, false, &domain.ValidationError{Message: "url must use https scheme"}
	}

	if len(req.Events) == 0 {
		return nil, false, &domain.ValidationError{Message: "events must be a non-empty array"}
	}

	// Deduplicate events while preserving order and validating.
	seen := make(map[string]bool, len(req.Events))
	events := make([]string, 0, len(req.Events))
	for _, event := range req.Events {
		if !validWebhookEvents[event] {
			return nil, false, &domain.ValidationError{
				Message: "unknown event type: " + event + ". Must be one of: " +
					strings.Join([]string{
						EventReservationCreated, EventReservationConfirmed,
						EventReservationReleased, EventReservationExpired,
					}, ", "),
			}
		}
		if !seen[event] {
			seen[event] = true
			events = append(events, event)
		}
	}

	now := s.clock.Now().UTC().Truncate(time.Second)
	anyCreated := false
	webhooks := make([]*domain.Webhook, 0, len(events))

	for _, event := range events {
		w := &domain.Webhook{
			WebhookID:    uuid.New().String(),
			SubscriberID: req.SubscriberID,
			Event:        event,
			URL:          req.URL,
			CreatedAt:    now,
			UpdatedAt:    now,
		}

		created := *w
		if s.store.Upsert(w) {
			anyCreated = true
			webhooks = append(webhooks, &created)
			continue
		}
		if existing := s.store.GetBySubscriberEvent(req.SubscriberID, event); existing != nil {
			webhooks = append(webhooks, existing)
		}
	}

	return webhooks, anyCreated, nil
}

// List returns all webhook subscriptions of a subscriber.
func (s *WebhookService) List(subscriberID string) ([]*domain.Webhook, error) {
	if err := validateSubscriberID(subscriberID); err != nil {
		return nil, err
	}
	return s.store.ListBySubscriber(subscriberID), nil
}

// Delete removes a webhook subscription by ID.
func (s *WebhookService) Delete(webhookID string) error {
	return s.store.Delete(webhookID)
}

func validateSubscriberID(id string) error {
	if id == "" {
		return &domain.ValidationError{Message: "subscriber_id is required"}
	}
	if len(id) > maxSubscriberIDLength {
		return &domain.ValidationError{Message: "subscriber_id must be at most 128 characters"}
	}
	return nil
}

// reservationEventPayload is the JSON body of every reservation webhook.
type reservationEventPayload struct {
	Event     string               `json:"event"`
	Timestamp string               `json:"timestamp"`
	Data      reservationEventData `json:"data"`
}

type reservationEventData struct {
	ReservationID string  `json:"reservation_id"`
	ProductID     string  `json:"product_id"`
	Quantity      int64   `json:"quantity"`
	Status        string  `json:"status"`
	SalesChannel  string  `json:"sales_channel"`
	ExpiresAt     string  `json:"expires_at"`
	SaleID        string  `json:"sale_id,omitempty"`
	ConfirmedBy   string  `json:"confirmed_by,omitempty"`
	ConfirmedAt   *string `json:"confirmed_at,omitempty"`
	ReleasedAt    *string `json:"released_at,omitempty"`
	ExpiredAt     *string `json:"expired_at,omitempty"`
}

// DispatchReservationCreated notifies reservation.created subscribers.
func (s *WebhookService) DispatchReservationCreated(r *domain.Reservation) {
	s.dispatch(EventReservationCreated, r)
}

// DispatchReservationConfirmed notifies reservation.confirmed subscribers.
func (s *WebhookService) DispatchReservationConfirmed(r *domain.Reservation) {
	s.dispatch(EventReservationConfirmed, r)
}

// DispatchReservationReleased notifies reservation.released subscribers.
func (s *WebhookService) DispatchReservationReleased(r *domain.Reservation) {
	s.dispatch(EventReservationReleased, r)
}

// DispatchReservationExpired notifies reservation.expired subscribers.
// It satisfies engine.EventDispatcher.
func (s *WebhookService) DispatchReservationExpired(r *domain.Reservation) {
	s.dispatch(EventReservationExpired, r)
}

// Wait blocks until every in-flight delivery has finished.
func (s *WebhookService) Wait() {
	s.wg.Wait()
}

// dispatch fans an event out to every subscriber of it. Deliveries are
// fire-and-forget; failures are logged and dropped.
func (s *WebhookService) dispatch(event string, r *domain.Reservation) {
	hooks := s.store.ListByEvent(event)
	if len(hooks) == 0 {
		return
	}

	payload := reservationEventPayload{
		Event:     event,
		Timestamp: formatTime(s.clock.Now()),
		Data: reservationEventData{
			ReservationID: r.ID,
			ProductID:     r.ProductID,
			Quantity:      r.Quantity,
			Status:        string(r.Status),
			SalesChannel:  string(r.SalesChannel),
			ExpiresAt:     formatTime(r.ExpiresAt),
			SaleID:        r.SaleID,
			ConfirmedBy:   r.ConfirmedBy,
			ConfirmedAt:   formatTimePtr(r.ConfirmedAt),
			ReleasedAt:    formatTimePtr(r.ReleasedAt),
			ExpiredAt:     formatTimePtr(r.ExpiredAt),
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("webhook payload encode failed", slog.String("event", event), slog.Any("error", err))
		return
	}

	for _, wh := range hooks {
		s.wg.Add(1)
		go func(wh *domain.Webhook) {
			defer s.wg.Done()
			s.deliver(wh, event, body)
		}(wh)
	}
}

// deliver sends the webhook payload via HTTP POST with the required headers.
func (s *WebhookService) deliver(wh *domain.Webhook, eventType string, body []byte) {
	req, err := http.NewRequest(http.MethodPost, wh.URL, bytes.NewReader(body))
	if err != nil {
		return
	}

	deliveryID := uuid.New().String()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Delivery-Id", deliveryID)
	req.Header.Set("X-Webhook-Id", wh.WebhookID)
	req.Header.Set("X-Event-Type", eventType)

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Warn("webhook delivery failed",
			slog.String("webhook_id", wh.WebhookID),
			slog.String("delivery_id", deliveryID),
			slog.Any("error", err),
		)
		return
	}
	resp.Body.Close()

	if resp.StatusCode >= 300 {
		s.logger.Warn("webhook delivery rejected",
			slog.String("webhook_id", wh.WebhookID),
			slog.String("delivery_id", deliveryID),
			slog.Int("status", resp.StatusCode),
		)
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}
