package domain

import (
	"time"

	"github.com/google/uuid"
)

// Webhook event types a subscriber can opt into.
const (
	WebhookEventResponseNew     = "response.new"
	WebhookEventSurveyPublished = "survey.published"
	WebhookEventSurveyClosed    = "survey.closed"
	WebhookEventContactCreated  = "contact.created"
)

// MaxConsecutiveFailures is the failure streak at which a webhook is
// automatically disabled. A single success resets the streak to zero.
const MaxConsecutiveFailures = 10

// ValidWebhookEvent reports whether s is a recognized event type.
func ValidWebhookEvent(s string) bool {
	switch s {
	case WebhookEventResponseNew, WebhookEventSurveyPublished,
		WebhookEventSurveyClosed, WebhookEventContactCreated:
		return true
	}
	return false
}

// Webhook is an outbound HTTP subscription owned by an organization.
// Secret signs every delivery payload; it is generated at creation and
// never rotated implicitly.
type Webhook struct {
	ID                uuid.UUID  `json:"id" db:"id"`
	OrganizationID    uuid.UUID  `json:"organization_id" db:"organization_id"`
	Name              string     `json:"name" db:"name"`
	URL               string     `json:"url" db:"url"`
	Events            []string   `json:"events" db:"-"`
	Secret            string     `json:"-" db:"secret"`
	IsActive          bool       `json:"is_active" db:"is_active"`
	FailureCount      int        `json:"failure_count" db:"failure_count"`
	LastTriggeredAt   *time.Time `json:"last_triggered_at" db:"last_triggered_at"`
	LastFailureAt     *time.Time `json:"last_failure_at" db:"last_failure_at"`
	LastFailureReason string     `json:"last_failure_reason" db:"last_failure_reason"`
	CreatedAt         time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at" db:"updated_at"`
}

// SubscribedTo reports whether the webhook wants deliveries for eventType.
func (w *Webhook) SubscribedTo(eventType string) bool {
	for _, e := range w.Events {
		if e == eventType {
			return true
		}
	}
	return false
}

// Delivery status values. A delivery row is written as pending before any
// network I/O so a crash mid-send leaves an audit trail.
type DeliveryStatus string

const (
	DeliveryPending DeliveryStatus = "pending"
	DeliverySuccess DeliveryStatus = "success"
	DeliveryFailed  DeliveryStatus = "failed"
)

// WebhookDelivery is one attempt to POST an event envelope to a subscriber.
type WebhookDelivery struct {
	ID           uuid.UUID      `json:"id" db:"id"`
	WebhookID    uuid.UUID      `json:"webhook_id" db:"webhook_id"`
	EventType    string         `json:"event_type" db:"event_type"`
	Payload      []byte         `json:"payload" db:"payload"`
	Status       DeliveryStatus `json:"status" db:"status"`
	StatusCode   *int           `json:"status_code" db:"status_code"`
	ResponseBody string         `json:"response_body" db:"response_body"`
	ErrorMessage string         `json:"error_message" db:"error_message"`
	CreatedAt    time.Time      `json:"created_at" db:"created_at"`
	DeliveredAt  *time.Time     `json:"delivered_at" db:"delivered_at"`
}
