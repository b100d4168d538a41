package campaign

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/projectinsight/insight/internal/domain"
)

// Repository defines the data access contract for campaigns.
// Implementations must be safe for concurrent use.
type Repository interface {
	// GetCampaign returns an organization-scoped campaign with its contact
	// list IDs populated. Returns ErrNotFound if it doesn't exist.
	GetCampaign(ctx context.Context, orgID, id uuid.UUID) (*domain.EmailCampaign, error)

	// ListCampaigns returns the organization's campaigns, newest first.
	ListCampaigns(ctx context.Context, orgID uuid.UUID) ([]domain.EmailCampaign, error)

	// CreateCampaign inserts a draft campaign and its contact list links.
	CreateCampaign(ctx context.Context, c *domain.EmailCampaign) error

	// GetStatus returns just the campaign's current status. Used by the
	// send loop to observe cooperative pause requests.
	GetStatus(ctx context.Context, id uuid.UUID) (domain.CampaignStatus, error)

	// SetStatus transitions the campaign's status.
	SetStatus(ctx context.Context, id uuid.UUID, status domain.CampaignStatus) error

	// MarkScheduled transitions to scheduled and persists the send time.
	MarkScheduled(ctx context.Context, id uuid.UUID, at time.Time) error

	// MarkSending transitions to sending, stamping started_at and the
	// resolved recipient count.
	MarkSending(ctx context.Context, id uuid.UUID, startedAt time.Time, totalRecipients int) error

	// AddRunCounters adds one run's sent/failed totals to the campaign
	// counters in a single statement, with delivered mirroring sent.
	// When complete is true the campaign also transitions to sent and
	// completed_at is stamped.
	AddRunCounters(ctx context.Context, id uuid.UUID, sent, failed int, complete bool, at time.Time) error

	// MarkFailed transitions to failed.
	MarkFailed(ctx context.Context, id uuid.UUID) error

	// GetSurvey returns the organization-scoped survey the campaign targets.
	GetSurvey(ctx context.Context, orgID, surveyID uuid.UUID) (*domain.Survey, error)

	// GetOrganization returns the organization.
	GetOrganization(ctx context.Context, orgID uuid.UUID) (*domain.Organization, error)

	// ResolveRecipients returns the active subscribed contacts in the given
	// lists, deduplicated by contact ID.
	ResolveRecipients(ctx context.Context, orgID uuid.UUID, listIDs []uuid.UUID) ([]domain.Contact, error)

	// CreateInvitation inserts a new invitation. Returns
	// ErrDuplicateInvitation on the (survey, contact) unique constraint.
	CreateInvitation(ctx context.Context, inv *domain.SurveyInvitation) error

	// UpdateInvitationStatus persists the post-send outcome.
	UpdateInvitationStatus(ctx context.Context, inv *domain.SurveyInvitation) error

	// CreateTracking inserts a campaign-linked tracking row for an
	// invitation that was successfully handed to the mailer.
	CreateTracking(ctx context.Context, tr *domain.InvitationTracking) error

	// StampLastContacted records a successful send on the contact.
	StampLastContacted(ctx context.Context, contactID uuid.UUID, at time.Time) error

	// TopEngaged returns the campaign's most engaged recipients, clicks
	// before opens, up to limit rows.
	TopEngaged(ctx context.Context, campaignID uuid.UUID, limit int) ([]EngagedRecipient, error)
}

// EngagedRecipient is one row of a campaign's engagement leaderboard.
type EngagedRecipient struct {
	Email        string                  `json:"email"`
	Status       domain.InvitationStatus `json:"status"`
	OpenedCount  int                     `json:"opened_count"`
	ClickedCount int                     `json:"clicked_count"`
}
