package tracking

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/projectinsight/insight/internal/domain"
)

// Repository defines the data access contract for engagement recording.
// Counter methods must be single-statement atomic so concurrent events
// for the same invitation never lose updates.
type Repository interface {
	// GetInvitationByToken resolves an invitation by its tracking token.
	// Returns ErrTokenNotFound if no invitation matches.
	GetInvitationByToken(ctx context.Context, token string) (*domain.SurveyInvitation, error)

	// GetSurvey returns the survey an invitation belongs to.
	GetSurvey(ctx context.Context, surveyID uuid.UUID) (*domain.Survey, error)

	// GetOrCreateTracking returns the invitation's tracking row, creating
	// an empty one if none exists yet.
	GetOrCreateTracking(ctx context.Context, invitationID uuid.UUID) (*domain.InvitationTracking, error)

	// RecordOpen atomically applies one open event to the tracking row:
	// increments opened_count, sets first_opened_at if unset, refreshes
	// last_opened_at and the client metadata.
	RecordOpen(ctx context.Context, trackingID uuid.UUID, at time.Time, userAgent, ipAddress string) error

	// RecordClick atomically applies one click event to the tracking row.
	RecordClick(ctx context.Context, trackingID uuid.UUID, at time.Time) error

	// MarkOpened advances the invitation sent → opened and stamps
	// opened_at. Returns false without error if the invitation was not in
	// sent (already further along, or never sent).
	MarkOpened(ctx context.Context, invitationID uuid.UUID, at time.Time) (bool, error)

	// MarkClicked advances sent/opened → clicked and stamps clicked_at.
	MarkClicked(ctx context.Context, invitationID uuid.UUID, at time.Time) (bool, error)

	// MarkResponded advances any pre-responded engaged status to
	// responded and stamps responded_at.
	MarkResponded(ctx context.Context, invitationID uuid.UUID, at time.Time) (bool, error)

	// IncrementCampaignOpened adds one to the campaign's emails_opened.
	IncrementCampaignOpened(ctx context.Context, campaignID uuid.UUID) error

	// IncrementCampaignClicked adds one to the campaign's emails_clicked.
	IncrementCampaignClicked(ctx context.Context, campaignID uuid.UUID) error
}
