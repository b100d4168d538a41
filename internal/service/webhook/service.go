package webhook

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/projectinsight/insight/internal/domain"
	"github.com/projectinsight/insight/internal/pkg/logger"
	"github.com/projectinsight/insight/internal/service/plan"
)

const (
	// maxStoredBody caps the response body persisted on a delivery row.
	maxStoredBody = 1000
	// maxReasonLen caps the failure reason stored on the webhook.
	maxReasonLen = 200

	userAgent = "ProjectInsight-Webhook/1.0"
)

// Envelope is the wire format POSTed to subscribers.
type Envelope struct {
	Event     string `json:"event"`
	Timestamp string `json:"timestamp"`
	Data      any    `json:"data"`
}

// Service implements webhook management and delivery.
type Service struct {
	repo   Repository
	client *http.Client
}

// NewService creates a webhook service. timeout bounds each delivery
// attempt end to end.
func NewService(repo Repository, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Service{
		repo:   repo,
		client: &http.Client{Timeout: timeout},
	}
}

// Dispatch fans eventType out to every active subscribed webhook of the
// organization. Deliveries run concurrently; one subscriber's failure
// never blocks another's. Returns the number of attempted deliveries.
func (s *Service) Dispatch(ctx context.Context, orgID uuid.UUID, eventType string, data any) (int, error) {
	hooks, err := s.repo.ListActiveSubscribed(ctx, orgID, eventType)
	if err != nil {
		return 0, err
	}

	var wg sync.WaitGroup
	for i := range hooks {
		wg.Add(1)
		go func(w domain.Webhook) {
			defer wg.Done()
			s.deliverOne(ctx, &w, eventType, data)
		}(hooks[i])
	}
	wg.Wait()
	return len(hooks), nil
}

// deliverOne performs a single signed delivery attempt and records the
// outcome on both the delivery row and the webhook's failure accounting.
func (s *Service) deliverOne(ctx context.Context, w *domain.Webhook, eventType string, data any) {
	payload, err := json.Marshal(Envelope{
		Event:     eventType,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Data:      data,
	})
	if err != nil {
		logger.Error("marshaling webhook envelope", "webhook_id", w.ID, "error", err)
		return
	}

	delivery := &domain.WebhookDelivery{
		ID:        uuid.New(),
		WebhookID: w.ID,
		EventType: eventType,
		Payload:   payload,
		Status:    domain.DeliveryPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.CreateDelivery(ctx, delivery); err != nil {
		logger.Error("creating delivery row", "webhook_id", w.ID, "error", err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(payload))
	if err != nil {
		s.failDelivery(ctx, w, delivery, fmt.Sprintf("invalid request: %v", err))
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Insight-Signature", Sign(w.Secret, payload))
	req.Header.Set("X-Insight-Event", eventType)
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		// Timeouts and transport errors carry distinct reasons so the
		// failure log tells slow endpoints from unreachable ones.
		if isTimeout(err) {
			s.failDelivery(ctx, w, delivery, "request timeout")
		} else {
			s.failDelivery(ctx, w, delivery, truncate(err.Error(), maxReasonLen))
		}
		return
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxStoredBody))
	now := time.Now().UTC()
	delivery.StatusCode = &resp.StatusCode
	delivery.ResponseBody = string(body)
	delivery.DeliveredAt = &now

	if err := s.repo.StampTriggered(ctx, w.ID, now); err != nil {
		logger.Warn("stamping last_triggered_at", "webhook_id", w.ID, "error", err)
	}

	if resp.StatusCode < 400 {
		delivery.Status = domain.DeliverySuccess
		if err := s.repo.FinishDelivery(ctx, delivery); err != nil {
			logger.Error("finishing delivery", "delivery_id", delivery.ID, "error", err)
		}
		if err := s.repo.RecordSuccess(ctx, w.ID, now); err != nil {
			logger.Error("recording webhook success", "webhook_id", w.ID, "error", err)
		}
		return
	}

	reason := fmt.Sprintf("HTTP %d: %s", resp.StatusCode, truncate(string(body), maxReasonLen))
	delivery.Status = domain.DeliveryFailed
	delivery.ErrorMessage = reason
	if err := s.repo.FinishDelivery(ctx, delivery); err != nil {
		logger.Error("finishing delivery", "delivery_id", delivery.ID, "error", err)
	}
	s.recordFailure(ctx, w, reason)
}

// failDelivery handles the no-HTTP-response paths: the delivery row is
// finalized as failed and the webhook's streak advances.
func (s *Service) failDelivery(ctx context.Context, w *domain.Webhook, delivery *domain.WebhookDelivery, reason string) {
	delivery.Status = domain.DeliveryFailed
	delivery.ErrorMessage = reason
	if err := s.repo.FinishDelivery(ctx, delivery); err != nil {
		logger.Error("finishing delivery", "delivery_id", delivery.ID, "error", err)
	}
	s.recordFailure(ctx, w, reason)
}

func (s *Service) recordFailure(ctx context.Context, w *domain.Webhook, reason string) {
	count, err := s.repo.RecordFailure(ctx, w.ID, reason, time.Now().UTC())
	if err != nil {
		logger.Error("recording webhook failure", "webhook_id", w.ID, "error", err)
		return
	}
	logger.Warn("webhook delivery failed",
		"webhook_id", w.ID, "reason", reason, "consecutive_failures", count)

	if count >= domain.MaxConsecutiveFailures {
		if err := s.repo.Disable(ctx, w.ID); err != nil {
			logger.Error("disabling webhook", "webhook_id", w.ID, "error", err)
			return
		}
		logger.Warn("webhook auto-disabled", "webhook_id", w.ID, "failures", count)
	}
}

func isTimeout(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// CreateInput holds the fields for registering a webhook.
type CreateInput struct {
	Name   string   `json:"name"`
	URL    string   `json:"url"`
	Events []string `json:"events"`
}

// Create registers a webhook with a freshly generated signing secret,
// subject to the organization's plan endpoint limit.
func (s *Service) Create(ctx context.Context, orgID uuid.UUID, input CreateInput) (*domain.Webhook, error) {
	if input.URL == "" {
		return nil, ErrInvalidURL
	}
	var events []string
	for _, e := range input.Events {
		if domain.ValidWebhookEvent(e) {
			events = append(events, e)
		}
	}
	if len(events) == 0 {
		return nil, ErrInvalidEvents
	}

	org, err := s.repo.GetOrganization(ctx, orgID)
	if err != nil {
		return nil, err
	}
	existing, err := s.repo.CountWebhooks(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if err := plan.CheckWebhooks(org.SubscriptionPlan, existing); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	w := &domain.Webhook{
		ID:             uuid.New(),
		OrganizationID: orgID,
		Name:           input.Name,
		URL:            input.URL,
		Events:         events,
		Secret:         newSecret(),
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.CreateWebhook(ctx, w); err != nil {
		return nil, err
	}
	return w, nil
}

// List returns the organization's webhooks.
func (s *Service) List(ctx context.Context, orgID uuid.UUID) ([]domain.Webhook, error) {
	return s.repo.ListWebhooks(ctx, orgID)
}

// Delete removes a webhook.
func (s *Service) Delete(ctx context.Context, orgID, id uuid.UUID) error {
	return s.repo.DeleteWebhook(ctx, orgID, id)
}

// Reactivate re-enables an auto-disabled webhook and resets its streak.
func (s *Service) Reactivate(ctx context.Context, orgID, id uuid.UUID) error {
	return s.repo.Reactivate(ctx, orgID, id)
}

// newSecret returns a 64-char hex signing secret.
func newSecret() string {
	b := make([]byte, 32)
	rand.Read(b)
	return hex.EncodeToString(b)
}
