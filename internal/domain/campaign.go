package domain

import (
	"time"

	"github.com/google/uuid"
)

// CampaignStatus enumerates the lifecycle states of an email campaign.
type CampaignStatus string

const (
	CampaignDraft     CampaignStatus = "draft"
	CampaignScheduled CampaignStatus = "scheduled"
	CampaignSending   CampaignStatus = "sending"
	CampaignSent      CampaignStatus = "sent"
	CampaignPaused    CampaignStatus = "paused"
	CampaignFailed    CampaignStatus = "failed"
)

// EmailCampaign is a bulk-send job: one survey fanned out to the contacts of
// one or more contact lists under shared content.
//
// The emails_* counters are write-once-per-run aggregates stamped by the
// orchestrator when a run finishes; they are never recomputed from invitation
// rows after the fact, and only advance while a send is active.
type EmailCampaign struct {
	ID              uuid.UUID      `json:"id" db:"id"`
	OrganizationID  uuid.UUID      `json:"organization_id" db:"organization_id"`
	SurveyID        uuid.UUID      `json:"survey_id" db:"survey_id"`
	TemplateID      *uuid.UUID     `json:"template_id" db:"template_id"`
	ContactListIDs  []uuid.UUID    `json:"contact_list_ids" db:"-"`
	Name            string         `json:"name" db:"name"`
	SubjectLine     string         `json:"subject_line" db:"subject_line"`
	MessageBody     string         `json:"message_body" db:"message_body"`
	SenderName      string         `json:"sender_name" db:"sender_name"`
	SenderEmail     string         `json:"sender_email" db:"sender_email"`
	Status          CampaignStatus `json:"status" db:"status"`
	ScheduledAt     *time.Time     `json:"scheduled_at" db:"scheduled_at"`
	TotalRecipients int            `json:"total_recipients" db:"total_recipients"`
	EmailsSent      int            `json:"emails_sent" db:"emails_sent"`
	EmailsDelivered int            `json:"emails_delivered" db:"emails_delivered"`
	EmailsOpened    int            `json:"emails_opened" db:"emails_opened"`
	EmailsClicked   int            `json:"emails_clicked" db:"emails_clicked"`
	EmailsFailed    int            `json:"emails_failed" db:"emails_failed"`
	StartedAt       *time.Time     `json:"started_at" db:"started_at"`
	CompletedAt     *time.Time     `json:"completed_at" db:"completed_at"`
	CreatedAt       time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at" db:"updated_at"`
}

// IsTerminal returns true if the campaign is in a final state.
func (c *EmailCampaign) IsTerminal() bool {
	return c.Status == CampaignSent || c.Status == CampaignFailed
}

// Startable reports whether a send may begin from the current status.
func (c *EmailCampaign) Startable() bool {
	return c.Status == CampaignDraft || c.Status == CampaignScheduled
}

// CampaignStats provides computed engagement rates for a campaign.
type CampaignStats struct {
	OpenRate  float64 `json:"open_rate"`
	ClickRate float64 `json:"click_rate"`
}

// CalculateStats derives engagement rates from the campaign counters.
func (c *EmailCampaign) CalculateStats() CampaignStats {
	stats := CampaignStats{}
	if c.EmailsDelivered > 0 {
		stats.OpenRate = float64(c.EmailsOpened) / float64(c.EmailsDelivered) * 100
		stats.ClickRate = float64(c.EmailsClicked) / float64(c.EmailsDelivered) * 100
	}
	return stats
}
