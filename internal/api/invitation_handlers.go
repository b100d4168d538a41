package api

import (
	"net/http"

	"github.com/projectinsight/insight/internal/pkg/httputil"
	"github.com/projectinsight/insight/internal/service/invitation"
)

// SendBulkInvitations fans a survey invitation out to the requested
// contact lists and contacts.
// POST /api/orgs/{orgID}/invitations/send
func (h *Handlers) SendBulkInvitations(w http.ResponseWriter, r *http.Request) {
	org, ok := orgID(w, r)
	if !ok {
		return
	}
	var input invitation.SendBulkInput
	if !httputil.Decode(w, r, &input) {
		return
	}
	result, err := h.invitations.SendBulk(r.Context(), org, input)
	if err != nil {
		serviceError(w, err)
		return
	}
	httputil.OK(w, result)
}

// RetryFailedInvitations re-attempts delivery of the survey's pending and
// failed invitations.
// POST /api/orgs/{orgID}/surveys/{surveyID}/invitations/retry
func (h *Handlers) RetryFailedInvitations(w http.ResponseWriter, r *http.Request) {
	org, ok := orgID(w, r)
	if !ok {
		return
	}
	surveyID, ok := urlUUID(w, r, "surveyID")
	if !ok {
		return
	}
	result, err := h.invitations.RetryFailed(r.Context(), org, surveyID)
	if err != nil {
		serviceError(w, err)
		return
	}
	httputil.OK(w, result)
}

// ProvisionDefaultTemplates creates the organization's stock invitation
// and reminder templates if it has none.
// POST /api/orgs/{orgID}/templates/defaults
func (h *Handlers) ProvisionDefaultTemplates(w http.ResponseWriter, r *http.Request) {
	org, ok := orgID(w, r)
	if !ok {
		return
	}
	if err := h.invitations.ProvisionDefaults(r.Context(), org); err != nil {
		serviceError(w, err)
		return
	}
	httputil.NoContent(w)
}
