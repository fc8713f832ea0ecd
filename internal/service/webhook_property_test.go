package service

import (
	"fmt"
	"testing"

	"pgregory.net/rapid"
)

// Re-registering the same (subscriber_id, event) keeps the webhook_id no
// matter how often it is repeated or which URL it points at.
func TestProperty_WebhookUpsertIdempotency(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		svc := newTestWebhookService()

		subscriberID := fmt.Sprintf("pos-%d", rapid.IntRange(1, 9999).Draw(t, "subscriber"))
		event := rapid.SampledFrom([]string{
			EventReservationCreated, EventReservationConfirmed,
			EventReservationReleased, EventReservationExpired,
		}).Draw(t, "event")
		urls := rapid.SliceOfN(
			rapid.Map(rapid.IntRange(1, 50), func(n int) string {
				return fmt.Sprintf("https://hooks.example.com/%d", n)
			}),
			1, 8,
		).Draw(t, "urls")

		var webhookID string
		for i, u := range urls {
			hooks, created, err := svc.Upsert(UpsertWebhookRequest{
				SubscriberID: subscriberID,
				URL:          u,
				Events:       []string{event},
			})
			if err != nil {
				t.Fatalf("upsert %d: %v", i, err)
			}
			if len(hooks) != 1 {
				t.Fatalf("upsert %d: got %d webhooks, want 1", i, len(hooks))
			}
			if created != (i == 0) {
				t.Fatalf("upsert %d: created=%v", i, created)
			}
			if i == 0 {
				webhookID = hooks[0].WebhookID
			}
			if hooks[0].WebhookID != webhookID {
				t.Fatalf("upsert %d: webhook_id changed %q -> %q", i, webhookID, hooks[0].WebhookID)
			}
			if hooks[0].URL != u {
				t.Fatalf("upsert %d: url = %q, want %q", i, hooks[0].URL, u)
			}
		}

		list, err := svc.List(subscriberID)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(list) != 1 {
			t.Fatalf("got %d subscriptions, want 1", len(list))
		}
	})
}
