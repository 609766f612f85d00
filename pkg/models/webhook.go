package models

import (
	"strings"
	"time"
)

// WebhookStatus controls whether a registration receives deliveries.
type WebhookStatus string

const (
	WebhookStatusActive   WebhookStatus = "active"
	WebhookStatusInactive WebhookStatus = "inactive"
)

// WebhookRegistration is an external endpoint subscribed to event type patterns.
type WebhookRegistration struct {
	ID        string        `json:"id"`
	URL       string        `json:"url"`
	Events    []string      `json:"events"`
	Secret    string        `json:"secret,omitempty"`
	Status    WebhookStatus `json:"status"`
	CreatedAt time.Time     `json:"createdAt"`
}

// Matches reports whether the registration is active and subscribed to eventType.
func (w *WebhookRegistration) Matches(eventType string) bool {
	if w.Status != WebhookStatusActive {
		return false
	}

	for _, pattern := range w.Events {
		if MatchEventType(pattern, eventType) {
			return true
		}
	}

	return false
}

// Redacted returns a copy safe to serialize to API callers.
func (w *WebhookRegistration) Redacted() *WebhookRegistration {
	clone := *w
	clone.Secret = ""
	clone.Events = append([]string(nil), w.Events...)

	return &clone
}

// MatchEventType matches dot-namespaced event types against a pattern. A pattern is an
// exact type, "*" for everything, or a prefix ending in ".*" which matches any type below
// that prefix ("business.formation.*" matches "business.formation.completed").
func MatchEventType(pattern, eventType string) bool {
	switch {
	case pattern == "*":
		return true
	case strings.HasSuffix(pattern, ".*"):
		prefix := strings.TrimSuffix(pattern, "*")

		return strings.HasPrefix(eventType, prefix) && len(eventType) > len(prefix)
	default:
		return pattern == eventType
	}
}

// DeliveryStatus is the outcome of delivering one event to one registration.
type DeliveryStatus string

const (
	DeliveryStatusDelivered DeliveryStatus = "delivered"
	DeliveryStatusFailed    DeliveryStatus = "failed"
)

// Delivery records the attempts made to deliver an event to a webhook.
type Delivery struct {
	WebhookID  string         `json:"webhookId"`
	EventID    string         `json:"eventId"`
	Attempts   int            `json:"attempts"`
	Status     DeliveryStatus `json:"status"`
	StatusCode int            `json:"statusCode,omitempty"`
	Error      string         `json:"error,omitempty"`
}
