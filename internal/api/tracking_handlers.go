package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/projectinsight/insight/internal/domain"
	"github.com/projectinsight/insight/internal/pkg/logger"
	"github.com/projectinsight/insight/internal/service/tracking"
)

// trackingPixel is a 1x1 transparent GIF served by the open endpoint.
var trackingPixel = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00, 0x80, 0x00,
	0x00, 0xff, 0xff, 0xff, 0x00, 0x00, 0x00, 0x21, 0xf9, 0x04, 0x01, 0x00,
	0x00, 0x00, 0x00, 0x2c, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00,
	0x00, 0x02, 0x02, 0x44, 0x01, 0x00, 0x3b,
}

// TrackOpen records an email open and serves the tracking pixel. Unknown
// tokens get a 404; any other recording hiccup still serves the pixel so
// mail clients never see a broken image.
// GET /track/open/{token}
func (h *Handlers) TrackOpen(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	err := h.tracking.RecordOpen(r.Context(), token, r.UserAgent(), clientIP(r))
	if errors.Is(err, tracking.ErrTokenNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		logger.Error("open tracking failed", "error", err)
	}

	w.Header().Set("Content-Type", "image/gif")
	w.Header().Set("Content-Length", strconv.Itoa(len(trackingPixel)))
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.WriteHeader(http.StatusOK)
	w.Write(trackingPixel)
}

// TrackClick records a link click and redirects to the survey-taking page.
// GET /track/click/{token}
func (h *Handlers) TrackClick(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	target, err := h.tracking.RecordClick(r.Context(), token)
	if errors.Is(err, tracking.ErrTokenNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		logger.Error("click tracking failed", "error", err)
		http.Error(w, "tracking unavailable", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, target, http.StatusFound)
}

// RecordResponse marks the invitation behind the token as responded and
// notifies the organization's webhook subscribers. Called by the survey
// frontend when a response submitted through an invitation link lands.
// POST /track/respond/{token}
func (h *Handlers) RecordResponse(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	inv, err := h.tracking.MarkResponded(r.Context(), token)
	if errors.Is(err, tracking.ErrTokenNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		logger.Error("marking invitation responded failed", "error", err)
		http.Error(w, "tracking unavailable", http.StatusInternalServerError)
		return
	}

	survey, err := h.tracking.Survey(r.Context(), inv.SurveyID)
	if err != nil {
		logger.Error("resolving survey for response event failed", "survey_id", inv.SurveyID, "error", err)
		w.WriteHeader(http.StatusNoContent)
		return
	}

	// The dispatch outlives the request, detach it from the request context.
	go func() {
		ctx := context.WithoutCancel(r.Context())
		_, err := h.webhooks.Dispatch(ctx, survey.OrganizationID, domain.WebhookEventResponseNew, map[string]any{
			"survey_id":     inv.SurveyID,
			"invitation_id": inv.ID,
			"contact_id":    inv.ContactID,
			"responded_at":  inv.RespondedAt,
		})
		if err != nil {
			logger.Error("dispatching response webhook failed", "survey_id", inv.SurveyID, "error", err)
		}
	}()

	w.WriteHeader(http.StatusNoContent)
}

// clientIP prefers the X-Forwarded-For chain head, falling back to the
// connection's remote address.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		head, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(head)
	}
	if i := strings.LastIndexByte(r.RemoteAddr, ':'); i > 0 {
		return r.RemoteAddr[:i]
	}
	return r.RemoteAddr
}
