package webhooks

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// Event types dispatched by the system.
const (
	EventBlockAppended     = "block.appended"
	EventIntegrityLost     = "ledger.integrity_lost"
	EventIntegrityRestored = "ledger.integrity_restored"
)

// Events lists every event type a subscription may ask for.
var Events = []string{EventBlockAppended, EventIntegrityLost, EventIntegrityRestored}

// Subscription is an endpoint that receives signed event deliveries.
type Subscription struct {
	ID        uuid.UUID `json:"id"`
	URL       string    `json:"url"`
	Events    []string  `json:"events"`
	Secret    string    `json:"-"` // never returned in API responses
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// Wants reports whether s is subscribed to eventType.
func (s *Subscription) Wants(eventType string) bool {
	return s.Active && slices.Contains(s.Events, eventType)
}

// Event is the JSON body POSTed to subscribers.
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// Delivery records the outcome of a single delivery attempt.
type Delivery struct {
	SubscriptionID uuid.UUID `json:"subscription_id"`
	EventID        string    `json:"event_id"`
	EventType      string    `json:"event_type"`
	StatusCode     int       `json:"status_code"`
	Attempt        int       `json:"attempt"`
	Success        bool      `json:"success"`
	ErrorMessage   string    `json:"error_message,omitempty"`
	DeliveredAt    time.Time `json:"delivered_at"`
}

// CreateSubscriptionRequest is the payload for creating a subscription.
type CreateSubscriptionRequest struct {
	URL    string   `json:"url"    binding:"required,url"`
	Events []string `json:"events" binding:"required,min=1"`
}
