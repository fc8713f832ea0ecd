package store

import (
	"sort"
	"sync"

	"github.com/efreitasn/stockhold/internal/domain"
)

// WebhookStore is a thread-safe in-memory store for webhook subscriptions.
// Primary index: webhook_id → webhook.
// Secondary index: subscriber_id → event → webhook.
type WebhookStore struct {
	mu           sync.RWMutex
	webhooks     map[string]*domain.Webhook
	bySubscriber map[string]map[string]*domain.Webhook
}

// NewWebhookStore creates an empty WebhookStore.
func NewWebhookStore() *WebhookStore {
	return &WebhookStore{
		webhooks:     make(map[string]*domain.Webhook),
		bySubscriber: make(map[string]map[string]*domain.Webhook),
	}
}

// Upsert inserts or updates a subscription keyed by (subscriber_id, event).
// An existing subscription keeps its webhook_id; only URL and UpdatedAt
// change, and only when the URL differs. Returns true if a new
// subscription was created.
func (s *WebhookStore) Upsert(w *domain.Webhook) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if events, ok := s.bySubscriber[w.SubscriberID]; ok {
		if existing, ok := events[w.Event]; ok {
			if existing.URL != w.URL {
				existing.URL = w.URL
				existing.UpdatedAt = w.UpdatedAt
			}
			return false
		}
	}

	s.webhooks[w.WebhookID] = w
	if s.bySubscriber[w.SubscriberID] == nil {
		s.bySubscriber[w.SubscriberID] = make(map[string]*domain.Webhook)
	}
	s.bySubscriber[w.SubscriberID][w.Event] = w
	return true
}

// Get retrieves a webhook by ID. It returns
// domain.ErrWebhookNotFound if the webhook does not exist.
func (s *WebhookStore) Get(id string) (*domain.Webhook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.webhooks[id]
	if !ok {
		return nil, domain.ErrWebhookNotFound
	}
	c := *w
	return &c, nil
}

// GetBySubscriberEvent returns a copy of the subscription for a
// subscriber+event pair, or nil.
func (s *WebhookStore) GetBySubscriberEvent(subscriberID, event string) *domain.Webhook {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w := s.bySubscriber[subscriberID][event]
	if w == nil {
		return nil
	}
	c := *w
	return &c
}

// ListBySubscriber returns a subscriber's webhooks ordered by event.
func (s *WebhookStore) ListBySubscriber(subscriberID string) []*domain.Webhook {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := s.bySubscriber[subscriberID]
	result := make([]*domain.Webhook, 0, len(events))
	for _, w := range events {
		c := *w
		result = append(result, &c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Event < result[j].Event })
	return result
}

// ListByEvent returns every subscription for event across subscribers,
// ordered by subscriber_id.
func (s *WebhookStore) ListByEvent(event string) []*domain.Webhook {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Webhook, 0)
	for _, events := range s.bySubscriber {
		if w, ok := events[event]; ok {
			c := *w
			result = append(result, &c)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].SubscriberID < result[j].SubscriberID })
	return result
}

// Delete removes a webhook by ID from both indexes. It returns
// domain.ErrWebhookNotFound if the webhook does not exist.
func (s *WebhookStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.webhooks[id]
	if !ok {
		return domain.ErrWebhookNotFound
	}
	delete(s.webhooks, id)

	if events, ok := s.bySubscriber[w.SubscriberID]; ok {
		delete(events, w.Event)
		if len(events) == 0 {
			delete(s.bySubscriber, w.SubscriberID)
		}
	}
	return nil
}
