package api

import (
	"errors"
	"net/http"

	"github.com/projectinsight/insight/internal/pkg/httputil"
	"github.com/projectinsight/insight/internal/service/campaign"
	"github.com/projectinsight/insight/internal/service/invitation"
	"github.com/projectinsight/insight/internal/service/plan"
	"github.com/projectinsight/insight/internal/service/tracking"
	"github.com/projectinsight/insight/internal/service/webhook"
)

// Handlers bundles the HTTP handlers for all delivery subsystems.
type Handlers struct {
	invitations *invitation.Service
	campaigns   *campaign.Service
	tracking    *tracking.Service
	webhooks    *webhook.Service
}

// NewHandlers wires the services into a handler set.
func NewHandlers(
	invitations *invitation.Service,
	campaigns *campaign.Service,
	trackingSvc *tracking.Service,
	webhooks *webhook.Service,
) *Handlers {
	return &Handlers{
		invitations: invitations,
		campaigns:   campaigns,
		tracking:    trackingSvc,
		webhooks:    webhooks,
	}
}

// HealthCheck reports liveness.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]string{"status": "ok"})
}

// serviceError maps service sentinel errors onto HTTP responses.
func serviceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, invitation.ErrSurveyNotFound),
		errors.Is(err, invitation.ErrTemplateNotFound),
		errors.Is(err, campaign.ErrNotFound),
		errors.Is(err, tracking.ErrTokenNotFound),
		errors.Is(err, webhook.ErrNotFound):
		httputil.NotFound(w, err.Error())
	case errors.Is(err, campaign.ErrAlreadySending),
		errors.Is(err, campaign.ErrLocked):
		httputil.Conflict(w, err.Error())
	case errors.Is(err, plan.ErrLimitExceeded):
		httputil.Forbidden(w, err.Error())
	case errors.Is(err, invitation.ErrNoTargets),
		errors.Is(err, invitation.ErrNoContent),
		errors.Is(err, campaign.ErrNotPaused),
		errors.Is(err, campaign.ErrNotSending),
		errors.Is(err, campaign.ErrMissingLists),
		errors.Is(err, campaign.ErrMissingSchedule),
		errors.Is(err, webhook.ErrInvalidEvents),
		errors.Is(err, webhook.ErrInvalidURL):
		httputil.BadRequest(w, err.Error())
	default:
		httputil.InternalError(w, err)
	}
}
