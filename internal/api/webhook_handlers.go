package api

import (
	"net/http"

	"github.com/projectinsight/insight/internal/pkg/httputil"
	"github.com/projectinsight/insight/internal/service/webhook"
)

// ListWebhooks returns the organization's webhooks. Secrets are never
// serialized.
// GET /api/orgs/{orgID}/webhooks
func (h *Handlers) ListWebhooks(w http.ResponseWriter, r *http.Request) {
	org, ok := orgID(w, r)
	if !ok {
		return
	}
	hooks, err := h.webhooks.List(r.Context(), org)
	if err != nil {
		serviceError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"webhooks": hooks})
}

// CreateWebhook registers a webhook endpoint. The response is the only
// place the signing secret is ever exposed.
// POST /api/orgs/{orgID}/webhooks
func (h *Handlers) CreateWebhook(w http.ResponseWriter, r *http.Request) {
	org, ok := orgID(w, r)
	if !ok {
		return
	}
	var input webhook.CreateInput
	if !httputil.Decode(w, r, &input) {
		return
	}
	hook, err := h.webhooks.Create(r.Context(), org, input)
	if err != nil {
		serviceError(w, err)
		return
	}
	httputil.Created(w, map[string]any{
		"webhook": hook,
		"secret":  hook.Secret,
	})
}

// DeleteWebhook removes a webhook and its delivery log.
// DELETE /api/orgs/{orgID}/webhooks/{webhookID}
func (h *Handlers) DeleteWebhook(w http.ResponseWriter, r *http.Request) {
	org, ok := orgID(w, r)
	if !ok {
		return
	}
	id, ok := urlUUID(w, r, "webhookID")
	if !ok {
		return
	}
	if err := h.webhooks.Delete(r.Context(), org, id); err != nil {
		serviceError(w, err)
		return
	}
	httputil.NoContent(w)
}

// ReactivateWebhook re-enables a webhook that was auto-disabled after
// repeated delivery failures, resetting its failure streak.
// POST /api/orgs/{orgID}/webhooks/{webhookID}/reactivate
func (h *Handlers) ReactivateWebhook(w http.ResponseWriter, r *http.Request) {
	org, ok := orgID(w, r)
	if !ok {
		return
	}
	id, ok := urlUUID(w, r, "webhookID")
	if !ok {
		return
	}
	if err := h.webhooks.Reactivate(r.Context(), org, id); err != nil {
		serviceError(w, err)
		return
	}
	httputil.OK(w, map[string]string{"status": "active"})
}
