package api

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/projectinsight/insight/internal/pkg/httputil"
	"github.com/projectinsight/insight/internal/service/campaign"
)

// ListCampaigns returns the organization's campaigns, newest first.
// GET /api/orgs/{orgID}/campaigns
func (h *Handlers) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	org, ok := orgID(w, r)
	if !ok {
		return
	}
	campaigns, err := h.campaigns.List(r.Context(), org)
	if err != nil {
		serviceError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"campaigns": campaigns})
}

// CreateCampaign creates a draft campaign.
// POST /api/orgs/{orgID}/campaigns
func (h *Handlers) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	org, ok := orgID(w, r)
	if !ok {
		return
	}
	var input campaign.CreateInput
	if !httputil.Decode(w, r, &input) {
		return
	}
	c, err := h.campaigns.Create(r.Context(), org, input)
	if err != nil {
		serviceError(w, err)
		return
	}
	httputil.Created(w, c)
}

// GetCampaign returns one campaign.
// GET /api/orgs/{orgID}/campaigns/{campaignID}
func (h *Handlers) GetCampaign(w http.ResponseWriter, r *http.Request) {
	org, ok := orgID(w, r)
	if !ok {
		return
	}
	id, ok := urlUUID(w, r, "campaignID")
	if !ok {
		return
	}
	c, err := h.campaigns.Get(r.Context(), org, id)
	if err != nil {
		serviceError(w, err)
		return
	}
	httputil.OK(w, c)
}

// GetCampaignAnalytics returns the campaign's counters and derived
// engagement rates.
// GET /api/orgs/{orgID}/campaigns/{campaignID}/analytics
func (h *Handlers) GetCampaignAnalytics(w http.ResponseWriter, r *http.Request) {
	org, ok := orgID(w, r)
	if !ok {
		return
	}
	id, ok := urlUUID(w, r, "campaignID")
	if !ok {
		return
	}
	c, err := h.campaigns.Get(r.Context(), org, id)
	if err != nil {
		serviceError(w, err)
		return
	}
	topEngaged, err := h.campaigns.TopEngaged(r.Context(), org, id, 10)
	if err != nil {
		serviceError(w, err)
		return
	}
	httputil.OK(w, map[string]any{
		"campaign_id":      c.ID,
		"status":           c.Status,
		"total_recipients": c.TotalRecipients,
		"emails_sent":      c.EmailsSent,
		"emails_delivered": c.EmailsDelivered,
		"emails_opened":    c.EmailsOpened,
		"emails_clicked":   c.EmailsClicked,
		"emails_failed":    c.EmailsFailed,
		"stats":            c.CalculateStats(),
		"top_engaged":      topEngaged,
	})
}

// SendCampaign starts a campaign run.
// POST /api/orgs/{orgID}/campaigns/{campaignID}/send
func (h *Handlers) SendCampaign(w http.ResponseWriter, r *http.Request) {
	h.runCampaign(w, r, h.campaigns.Send)
}

// ResumeCampaign continues a paused campaign.
// POST /api/orgs/{orgID}/campaigns/{campaignID}/resume
func (h *Handlers) ResumeCampaign(w http.ResponseWriter, r *http.Request) {
	h.runCampaign(w, r, h.campaigns.Resume)
}

func (h *Handlers) runCampaign(w http.ResponseWriter, r *http.Request, run func(ctx context.Context, orgID, campaignID uuid.UUID) (*campaign.SendResult, error)) {
	org, ok := orgID(w, r)
	if !ok {
		return
	}
	id, ok := urlUUID(w, r, "campaignID")
	if !ok {
		return
	}
	result, err := run(r.Context(), org, id)
	if err != nil {
		serviceError(w, err)
		return
	}
	httputil.OK(w, result)
}

// PauseCampaign requests a cooperative stop of an active send.
// POST /api/orgs/{orgID}/campaigns/{campaignID}/pause
func (h *Handlers) PauseCampaign(w http.ResponseWriter, r *http.Request) {
	org, ok := orgID(w, r)
	if !ok {
		return
	}
	id, ok := urlUUID(w, r, "campaignID")
	if !ok {
		return
	}
	if err := h.campaigns.Pause(r.Context(), org, id); err != nil {
		serviceError(w, err)
		return
	}
	httputil.OK(w, map[string]string{"status": "paused"})
}

type scheduleRequest struct {
	ScheduledAt *time.Time `json:"scheduled_at"`
}

// ScheduleCampaign sets a future send time on a draft campaign.
// POST /api/orgs/{orgID}/campaigns/{campaignID}/schedule
func (h *Handlers) ScheduleCampaign(w http.ResponseWriter, r *http.Request) {
	org, ok := orgID(w, r)
	if !ok {
		return
	}
	id, ok := urlUUID(w, r, "campaignID")
	if !ok {
		return
	}
	var req scheduleRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if err := h.campaigns.Schedule(r.Context(), org, id, req.ScheduledAt); err != nil {
		serviceError(w, err)
		return
	}
	httputil.OK(w, map[string]string{"status": "scheduled"})
}
