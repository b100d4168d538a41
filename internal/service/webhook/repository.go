package webhook

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/projectinsight/insight/internal/domain"
)

// Repository defines the data access contract for webhooks and their
// delivery log. The failure counter methods must be single-statement
// atomic so concurrent deliveries to one webhook never lose updates.
type Repository interface {
	// GetWebhook returns an organization-scoped webhook.
	GetWebhook(ctx context.Context, orgID, id uuid.UUID) (*domain.Webhook, error)

	// ListWebhooks returns the organization's webhooks, newest first.
	ListWebhooks(ctx context.Context, orgID uuid.UUID) ([]domain.Webhook, error)

	// ListActiveSubscribed returns the organization's active webhooks whose
	// event set contains eventType.
	ListActiveSubscribed(ctx context.Context, orgID uuid.UUID, eventType string) ([]domain.Webhook, error)

	// CountWebhooks returns the organization's webhook count.
	CountWebhooks(ctx context.Context, orgID uuid.UUID) (int, error)

	// CreateWebhook inserts a webhook.
	CreateWebhook(ctx context.Context, w *domain.Webhook) error

	// DeleteWebhook removes a webhook and its delivery log.
	DeleteWebhook(ctx context.Context, orgID, id uuid.UUID) error

	// Reactivate re-enables a disabled webhook and zeroes its failure
	// streak.
	Reactivate(ctx context.Context, orgID, id uuid.UUID) error

	// CreateDelivery inserts a delivery row. Called before network I/O
	// with status pending.
	CreateDelivery(ctx context.Context, d *domain.WebhookDelivery) error

	// FinishDelivery persists a delivery's terminal status, status code,
	// response body and error message.
	FinishDelivery(ctx context.Context, d *domain.WebhookDelivery) error

	// RecordSuccess resets the webhook's failure streak, clears the
	// failure reason and stamps last_triggered_at.
	RecordSuccess(ctx context.Context, webhookID uuid.UUID, at time.Time) error

	// RecordFailure atomically increments the failure streak, records the
	// reason and stamps last_failure_at, returning the new streak value.
	RecordFailure(ctx context.Context, webhookID uuid.UUID, reason string, at time.Time) (int, error)

	// StampTriggered records that a delivery attempt got an HTTP response.
	StampTriggered(ctx context.Context, webhookID uuid.UUID, at time.Time) error

	// Disable marks the webhook inactive.
	Disable(ctx context.Context, webhookID uuid.UUID) error

	// GetOrganization returns the organization, for plan gate checks.
	GetOrganization(ctx context.Context, orgID uuid.UUID) (*domain.Organization, error)
}
