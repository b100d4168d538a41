package domain

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// InvitationStatus enumerates the delivery/engagement lifecycle of a
// survey invitation. Statuses only ever move forward.
type InvitationStatus string

const (
	InvitationPending   InvitationStatus = "pending"
	InvitationSent      InvitationStatus = "sent"
	InvitationDelivered InvitationStatus = "delivered"
	InvitationOpened    InvitationStatus = "opened"
	InvitationClicked   InvitationStatus = "clicked"
	InvitationResponded InvitationStatus = "responded"
	InvitationBounced   InvitationStatus = "bounced"
	InvitationFailed    InvitationStatus = "failed"
)

// engagementRank orders statuses along the engagement axis so that
// tracking updates never regress a further-along invitation.
var engagementRank = map[InvitationStatus]int{
	InvitationPending:   0,
	InvitationFailed:    0,
	InvitationBounced:   0,
	InvitationSent:      1,
	InvitationDelivered: 2,
	InvitationOpened:    3,
	InvitationClicked:   4,
	InvitationResponded: 5,
}

// AdvancesTo reports whether moving from s to next is a forward step on the
// engagement axis.
func (s InvitationStatus) AdvancesTo(next InvitationStatus) bool {
	return engagementRank[next] > engagementRank[s]
}

// SurveyInvitation is the unit of delivery: one outbound solicitation of one
// contact for one survey. At most one invitation exists per (survey, contact)
// pair, enforced by a storage-level unique constraint.
type SurveyInvitation struct {
	ID            uuid.UUID        `json:"id" db:"id"`
	SurveyID      uuid.UUID        `json:"survey_id" db:"survey_id"`
	ContactID     uuid.UUID        `json:"contact_id" db:"contact_id"`
	SubjectLine   string           `json:"subject_line" db:"subject_line"`
	MessageBody   string           `json:"message_body" db:"message_body"`
	SenderName    string           `json:"sender_name" db:"sender_name"`
	SenderEmail   string           `json:"sender_email" db:"sender_email"`
	Status        InvitationStatus `json:"status" db:"status"`
	TrackingToken string           `json:"tracking_token" db:"tracking_token"`
	SentAt        *time.Time       `json:"sent_at" db:"sent_at"`
	DeliveredAt   *time.Time       `json:"delivered_at" db:"delivered_at"`
	OpenedAt      *time.Time       `json:"opened_at" db:"opened_at"`
	ClickedAt     *time.Time       `json:"clicked_at" db:"clicked_at"`
	RespondedAt   *time.Time       `json:"responded_at" db:"responded_at"`
	ErrorMessage  string           `json:"error_message" db:"error_message"`
	RetryCount    int              `json:"retry_count" db:"retry_count"`
	CreatedAt     time.Time        `json:"created_at" db:"created_at"`
}

// NewTrackingToken generates a URL-safe random token identifying one
// invitation in tracking and survey-taking links. 32 bytes of entropy,
// unguessable in practice.
func NewTrackingToken() string {
	b := make([]byte, 32)
	rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}

// SurveyURL builds the survey-taking URL for this invitation, correlating the
// response back to the invitation via its tracking token.
func (inv *SurveyInvitation) SurveyURL(baseURL, shareToken string) string {
	return fmt.Sprintf("%s/surveys/take/%s?invitation=%s", baseURL, shareToken, inv.TrackingToken)
}

// Retryable reports whether the invitation is eligible for a manual resend:
// it was never successfully handed to the mailer.
func (inv *SurveyInvitation) Retryable() bool {
	return inv.Status == InvitationPending || inv.Status == InvitationFailed
}
