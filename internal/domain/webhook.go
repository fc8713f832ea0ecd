package domain

import "time"

// Webhook is a subscriber's registration for one reservation event.
type Webhook struct {
	WebhookID    string
	SubscriberID string
	Event        string
	URL          string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
