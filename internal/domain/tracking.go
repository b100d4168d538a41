package domain

import (
	"time"

	"github.com/google/uuid"
)

// InvitationTracking accumulates open/click engagement for one invitation.
// The row is created lazily on the first tracked event (or eagerly by a
// campaign send, pre-linked to the campaign) and grows monotonically:
// counts only increase, "first" timestamps are set at most once.
type InvitationTracking struct {
	ID             uuid.UUID  `json:"id" db:"id"`
	InvitationID   uuid.UUID  `json:"invitation_id" db:"invitation_id"`
	CampaignID     *uuid.UUID `json:"campaign_id" db:"campaign_id"`
	OpenedCount    int        `json:"opened_count" db:"opened_count"`
	ClickedCount   int        `json:"clicked_count" db:"clicked_count"`
	FirstOpenedAt  *time.Time `json:"first_opened_at" db:"first_opened_at"`
	LastOpenedAt   *time.Time `json:"last_opened_at" db:"last_opened_at"`
	FirstClickedAt *time.Time `json:"first_clicked_at" db:"first_clicked_at"`
	LastClickedAt  *time.Time `json:"last_clicked_at" db:"last_clicked_at"`
	UserAgent      string     `json:"user_agent" db:"user_agent"`
	IPAddress      string     `json:"ip_address" db:"ip_address"`
}

// RecordOpen applies one open event to the in-memory row: bumps the counter,
// sets first_opened_at at most once, always refreshes last_opened_at, and
// stores the latest client metadata.
func (t *InvitationTracking) RecordOpen(now time.Time, userAgent, ipAddress string) {
	if t.FirstOpenedAt == nil {
		first := now
		t.FirstOpenedAt = &first
	}
	last := now
	t.LastOpenedAt = &last
	t.OpenedCount++
	if userAgent != "" {
		t.UserAgent = userAgent
	}
	if ipAddress != "" {
		t.IPAddress = ipAddress
	}
}

// RecordClick applies one click event to the in-memory row.
func (t *InvitationTracking) RecordClick(now time.Time) {
	if t.FirstClickedAt == nil {
		first := now
		t.FirstClickedAt = &first
	}
	last := now
	t.LastClickedAt = &last
	t.ClickedCount++
}
