package webhook_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/projectinsight/insight/internal/domain"
	"github.com/projectinsight/insight/internal/service/webhook"
)

// memRepo is an in-memory webhook repository for unit testing.
type memRepo struct {
	mu         sync.Mutex
	org        *domain.Organization
	webhooks   map[uuid.UUID]*domain.Webhook
	deliveries []*domain.WebhookDelivery
}

func newMemRepo(org *domain.Organization) *memRepo {
	return &memRepo{org: org, webhooks: make(map[uuid.UUID]*domain.Webhook)}
}

func (m *memRepo) GetWebhook(_ context.Context, orgID, id uuid.UUID) (*domain.Webhook, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.webhooks[id]
	if !ok || w.OrganizationID != orgID {
		return nil, webhook.ErrNotFound
	}
	cp := *w
	return &cp, nil
}

func (m *memRepo) ListWebhooks(_ context.Context, orgID uuid.UUID) ([]domain.Webhook, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Webhook
	for _, w := range m.webhooks {
		if w.OrganizationID == orgID {
			out = append(out, *w)
		}
	}
	return out, nil
}

func (m *memRepo) ListActiveSubscribed(_ context.Context, orgID uuid.UUID, eventType string) ([]domain.Webhook, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Webhook
	for _, w := range m.webhooks {
		if w.OrganizationID == orgID && w.IsActive && w.SubscribedTo(eventType) {
			out = append(out, *w)
		}
	}
	return out, nil
}

func (m *memRepo) CountWebhooks(_ context.Context, orgID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, w := range m.webhooks {
		if w.OrganizationID == orgID {
			n++
		}
	}
	return n, nil
}

func (m *memRepo) CreateWebhook(_ context.Context, w *domain.Webhook) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *w
	m.webhooks[cp.ID] = &cp
	return nil
}

func (m *memRepo) DeleteWebhook(_ context.Context, orgID, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.webhooks[id]
	if !ok || w.OrganizationID != orgID {
		return webhook.ErrNotFound
	}
	delete(m.webhooks, id)
	return nil
}

func (m *memRepo) Reactivate(_ context.Context, orgID, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.webhooks[id]
	if !ok || w.OrganizationID != orgID {
		return webhook.ErrNotFound
	}
	w.IsActive = true
	w.FailureCount = 0
	w.LastFailureReason = ""
	return nil
}

func (m *memRepo) CreateDelivery(_ context.Context, d *domain.WebhookDelivery) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *d
	m.deliveries = append(m.deliveries, &cp)
	return nil
}

func (m *memRepo) FinishDelivery(_ context.Context, d *domain.WebhookDelivery) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, stored := range m.deliveries {
		if stored.ID == d.ID {
			stored.Status = d.Status
			stored.StatusCode = d.StatusCode
			stored.ResponseBody = d.ResponseBody
			stored.ErrorMessage = d.ErrorMessage
			stored.DeliveredAt = d.DeliveredAt
			return nil
		}
	}
	return fmt.Errorf("delivery not found")
}

func (m *memRepo) RecordSuccess(_ context.Context, webhookID uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w := m.webhooks[webhookID]
	w.FailureCount = 0
	w.LastFailureReason = ""
	return nil
}

func (m *memRepo) RecordFailure(_ context.Context, webhookID uuid.UUID, reason string, at time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w := m.webhooks[webhookID]
	w.FailureCount++
	w.LastFailureReason = reason
	w.LastFailureAt = &at
	return w.FailureCount, nil
}

func (m *memRepo) StampTriggered(_ context.Context, webhookID uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.webhooks[webhookID].LastTriggeredAt = &at
	return nil
}

func (m *memRepo) Disable(_ context.Context, webhookID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.webhooks[webhookID].IsActive = false
	return nil
}

func (m *memRepo) GetOrganization(_ context.Context, orgID uuid.UUID) (*domain.Organization, error) {
	cp := *m.org
	return &cp, nil
}

func (m *memRepo) addWebhook(org *domain.Organization, url string, events ...string) *domain.Webhook {
	w := &domain.Webhook{
		ID:             uuid.New(),
		OrganizationID: org.ID,
		Name:           "hook",
		URL:            url,
		Events:         events,
		Secret:         "topsecret",
		IsActive:       true,
	}
	m.webhooks[w.ID] = w
	return w
}

func newOrg() *domain.Organization {
	return &domain.Organization{ID: uuid.New(), Name: "Acme", SubscriptionPlan: domain.PlanPremium}
}

func TestDispatchSuccess(t *testing.T) {
	var (
		mu       sync.Mutex
		gotBody  []byte
		gotSig   string
		gotEvent string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		gotBody, _ = io.ReadAll(r.Body)
		gotSig = r.Header.Get("X-Insight-Signature")
		gotEvent = r.Header.Get("X-Insight-Event")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `{"ok":true}`)
	}))
	defer srv.Close()

	org := newOrg()
	repo := newMemRepo(org)
	hook := repo.addWebhook(org, srv.URL, domain.WebhookEventResponseNew)
	hook.FailureCount = 4 // a success must reset the streak

	svc := webhook.NewService(repo, 5*time.Second)
	n, err := svc.Dispatch(context.Background(), org.ID, domain.WebhookEventResponseNew,
		map[string]string{"response_id": "r-1"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// Envelope shape and headers.
	mu.Lock()
	defer mu.Unlock()
	var env webhook.Envelope
	require.NoError(t, json.Unmarshal(gotBody, &env))
	assert.Equal(t, domain.WebhookEventResponseNew, env.Event)
	assert.NotEmpty(t, env.Timestamp)
	assert.Equal(t, domain.WebhookEventResponseNew, gotEvent)
	assert.True(t, webhook.Verify("topsecret", gotBody, gotSig))

	// Delivery row finalized as success.
	require.Len(t, repo.deliveries, 1)
	d := repo.deliveries[0]
	assert.Equal(t, domain.DeliverySuccess, d.Status)
	require.NotNil(t, d.StatusCode)
	assert.Equal(t, http.StatusOK, *d.StatusCode)
	assert.Equal(t, `{"ok":true}`, d.ResponseBody)
	assert.NotNil(t, d.DeliveredAt)

	// Webhook accounting.
	stored := repo.webhooks[hook.ID]
	assert.Equal(t, 0, stored.FailureCount)
	assert.Empty(t, stored.LastFailureReason)
	assert.NotNil(t, stored.LastTriggeredAt)
}

func TestDispatchHTTPFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, "boom")
	}))
	defer srv.Close()

	org := newOrg()
	repo := newMemRepo(org)
	hook := repo.addWebhook(org, srv.URL, domain.WebhookEventSurveyClosed)

	svc := webhook.NewService(repo, 5*time.Second)
	_, err := svc.Dispatch(context.Background(), org.ID, domain.WebhookEventSurveyClosed, nil)
	require.NoError(t, err)

	require.Len(t, repo.deliveries, 1)
	d := repo.deliveries[0]
	assert.Equal(t, domain.DeliveryFailed, d.Status)
	require.NotNil(t, d.StatusCode)
	assert.Equal(t, http.StatusInternalServerError, *d.StatusCode)
	assert.Equal(t, "boom", d.ResponseBody)
	assert.Contains(t, d.ErrorMessage, "HTTP 500")

	stored := repo.webhooks[hook.ID]
	assert.Equal(t, 1, stored.FailureCount)
	assert.Contains(t, stored.LastFailureReason, "HTTP 500")
	assert.NotNil(t, stored.LastFailureAt)
	// The endpoint did respond, so the trigger stamp advances.
	assert.NotNil(t, stored.LastTriggeredAt)
	assert.True(t, stored.IsActive)
}

func TestDispatchTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer srv.Close()

	org := newOrg()
	repo := newMemRepo(org)
	hook := repo.addWebhook(org, srv.URL, domain.WebhookEventResponseNew)

	svc := webhook.NewService(repo, 50*time.Millisecond)
	_, err := svc.Dispatch(context.Background(), org.ID, domain.WebhookEventResponseNew, nil)
	require.NoError(t, err)

	require.Len(t, repo.deliveries, 1)
	d := repo.deliveries[0]
	assert.Equal(t, domain.DeliveryFailed, d.Status)
	assert.Equal(t, "request timeout", d.ErrorMessage)
	assert.Nil(t, d.StatusCode)

	stored := repo.webhooks[hook.ID]
	assert.Equal(t, 1, stored.FailureCount)
	assert.Equal(t, "request timeout", stored.LastFailureReason)
	// No HTTP response, no trigger stamp.
	assert.Nil(t, stored.LastTriggeredAt)
}

func TestDispatchTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close() // connection refused

	org := newOrg()
	repo := newMemRepo(org)
	hook := repo.addWebhook(org, url, domain.WebhookEventResponseNew)

	svc := webhook.NewService(repo, time.Second)
	_, err := svc.Dispatch(context.Background(), org.ID, domain.WebhookEventResponseNew, nil)
	require.NoError(t, err)

	require.Len(t, repo.deliveries, 1)
	d := repo.deliveries[0]
	assert.Equal(t, domain.DeliveryFailed, d.Status)
	assert.NotEqual(t, "request timeout", d.ErrorMessage)
	assert.NotEmpty(t, d.ErrorMessage)
	assert.Equal(t, 1, repo.webhooks[hook.ID].FailureCount)
}

func TestDispatchAutoDisable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	org := newOrg()
	repo := newMemRepo(org)
	hook := repo.addWebhook(org, srv.URL, domain.WebhookEventResponseNew)
	hook.FailureCount = 9

	svc := webhook.NewService(repo, time.Second)
	_, err := svc.Dispatch(context.Background(), org.ID, domain.WebhookEventResponseNew, nil)
	require.NoError(t, err)

	stored := repo.webhooks[hook.ID]
	assert.Equal(t, 10, stored.FailureCount)
	assert.False(t, stored.IsActive)

	// The next event is no longer dispatched to it.
	n, err := svc.Dispatch(context.Background(), org.ID, domain.WebhookEventResponseNew, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Len(t, repo.deliveries, 1)
}

func TestDispatchSubscriberIsolation(t *testing.T) {
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer good.Close()
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bad.Close()

	org := newOrg()
	repo := newMemRepo(org)
	goodHook := repo.addWebhook(org, good.URL, domain.WebhookEventResponseNew)
	badHook := repo.addWebhook(org, bad.URL, domain.WebhookEventResponseNew)

	svc := webhook.NewService(repo, time.Second)
	n, err := svc.Dispatch(context.Background(), org.ID, domain.WebhookEventResponseNew, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	assert.Equal(t, 0, repo.webhooks[goodHook.ID].FailureCount)
	assert.Equal(t, 1, repo.webhooks[badHook.ID].FailureCount)
	assert.Len(t, repo.deliveries, 2)
}

func TestDispatchEventFilter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	org := newOrg()
	repo := newMemRepo(org)
	repo.addWebhook(org, srv.URL, domain.WebhookEventSurveyPublished)

	svc := webhook.NewService(repo, time.Second)
	n, err := svc.Dispatch(context.Background(), org.ID, domain.WebhookEventResponseNew, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Empty(t, repo.deliveries)
}

func TestCreate(t *testing.T) {
	org := newOrg()
	repo := newMemRepo(org)
	svc := webhook.NewService(repo, time.Second)

	w, err := svc.Create(context.Background(), org.ID, webhook.CreateInput{
		Name:   "CRM sync",
		URL:    "https://crm.example.com/hooks",
		Events: []string{domain.WebhookEventResponseNew, "bogus.event"},
	})
	require.NoError(t, err)

	assert.Len(t, w.Secret, 64)
	assert.True(t, w.IsActive)
	// Unknown event types are dropped.
	assert.Equal(t, []string{domain.WebhookEventResponseNew}, w.Events)
}

func TestCreateValidation(t *testing.T) {
	org := newOrg()
	repo := newMemRepo(org)
	svc := webhook.NewService(repo, time.Second)

	_, err := svc.Create(context.Background(), org.ID, webhook.CreateInput{
		Events: []string{domain.WebhookEventResponseNew},
	})
	assert.ErrorIs(t, err, webhook.ErrInvalidURL)

	_, err = svc.Create(context.Background(), org.ID, webhook.CreateInput{
		URL:    "https://example.com",
		Events: []string{"bogus.event"},
	})
	assert.ErrorIs(t, err, webhook.ErrInvalidEvents)
}

func TestCreatePlanLimit(t *testing.T) {
	org := newOrg()
	org.SubscriptionPlan = domain.PlanFree
	repo := newMemRepo(org)
	repo.addWebhook(org, "https://example.com/1", domain.WebhookEventResponseNew)
	svc := webhook.NewService(repo, time.Second)

	_, err := svc.Create(context.Background(), org.ID, webhook.CreateInput{
		URL:    "https://example.com/2",
		Events: []string{domain.WebhookEventResponseNew},
	})
	assert.Error(t, err)
}

func TestReactivate(t *testing.T) {
	org := newOrg()
	repo := newMemRepo(org)
	hook := repo.addWebhook(org, "https://example.com", domain.WebhookEventResponseNew)
	hook.IsActive = false
	hook.FailureCount = 10
	hook.LastFailureReason = "HTTP 502: bad gateway"

	svc := webhook.NewService(repo, time.Second)
	require.NoError(t, svc.Reactivate(context.Background(), org.ID, hook.ID))

	stored := repo.webhooks[hook.ID]
	assert.True(t, stored.IsActive)
	assert.Equal(t, 0, stored.FailureCount)
	assert.Empty(t, stored.LastFailureReason)
}
