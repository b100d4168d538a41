package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/projectinsight/insight/internal/domain"
	"github.com/projectinsight/insight/internal/service/tracking"
)

// TrackingRepo implements tracking.Repository against PostgreSQL.
// Counter updates are single UPDATE statements so concurrent pixel
// hits for the same invitation never lose events.
type TrackingRepo struct{ db *sql.DB }

// NewTrackingRepo creates a Postgres-backed tracking repository.
func NewTrackingRepo(db *sql.DB) *TrackingRepo { return &TrackingRepo{db: db} }

func (r *TrackingRepo) GetInvitationByToken(ctx context.Context, token string) (*domain.SurveyInvitation, error) {
	inv := &domain.SurveyInvitation{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, survey_id, contact_id, subject_line, message_body,
		       COALESCE(sender_name,''), COALESCE(sender_email,''),
		       status, tracking_token, sent_at, delivered_at, opened_at,
		       clicked_at, responded_at, COALESCE(error_message,''),
		       retry_count, created_at
		FROM survey_invitations
		WHERE tracking_token = $1
	`, token).Scan(
		&inv.ID, &inv.SurveyID, &inv.ContactID, &inv.SubjectLine, &inv.MessageBody,
		&inv.SenderName, &inv.SenderEmail, &inv.Status, &inv.TrackingToken,
		&inv.SentAt, &inv.DeliveredAt, &inv.OpenedAt, &inv.ClickedAt,
		&inv.RespondedAt, &inv.ErrorMessage, &inv.RetryCount, &inv.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, tracking.ErrTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get invitation by token: %w", err)
	}
	return inv, nil
}

func (r *TrackingRepo) GetSurvey(ctx context.Context, surveyID uuid.UUID) (*domain.Survey, error) {
	s := &domain.Survey{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, organization_id, title, COALESCE(description,''), status,
		       share_token, published_at, closed_at, created_at
		FROM surveys
		WHERE id = $1
	`, surveyID).Scan(
		&s.ID, &s.OrganizationID, &s.Title, &s.Description, &s.Status,
		&s.ShareToken, &s.PublishedAt, &s.ClosedAt, &s.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("get survey: %w", err)
	}
	return s, nil
}

func (r *TrackingRepo) GetOrCreateTracking(ctx context.Context, invitationID uuid.UUID) (*domain.InvitationTracking, error) {
	t := &domain.InvitationTracking{}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO invitation_tracking (id, invitation_id)
		VALUES ($1, $2)
		ON CONFLICT (invitation_id) DO UPDATE SET invitation_id = EXCLUDED.invitation_id
		RETURNING id, invitation_id, campaign_id, opened_count, clicked_count,
		          first_opened_at, last_opened_at, first_clicked_at,
		          last_clicked_at, COALESCE(user_agent,''), COALESCE(ip_address,'')
	`, uuid.New(), invitationID).Scan(
		&t.ID, &t.InvitationID, &t.CampaignID, &t.OpenedCount, &t.ClickedCount,
		&t.FirstOpenedAt, &t.LastOpenedAt, &t.FirstClickedAt, &t.LastClickedAt,
		&t.UserAgent, &t.IPAddress,
	)
	if err != nil {
		return nil, fmt.Errorf("get or create tracking: %w", err)
	}
	return t, nil
}

func (r *TrackingRepo) RecordOpen(ctx context.Context, trackingID uuid.UUID, at time.Time, userAgent, ipAddress string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE invitation_tracking
		SET opened_count = opened_count + 1,
		    first_opened_at = COALESCE(first_opened_at, $2),
		    last_opened_at = $2,
		    user_agent = CASE WHEN $3 <> '' THEN $3 ELSE user_agent END,
		    ip_address = CASE WHEN $4 <> '' THEN $4 ELSE ip_address END
		WHERE id = $1
	`, trackingID, at, userAgent, ipAddress)
	if err != nil {
		return fmt.Errorf("record open: %w", err)
	}
	return nil
}

func (r *TrackingRepo) RecordClick(ctx context.Context, trackingID uuid.UUID, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE invitation_tracking
		SET clicked_count = clicked_count + 1,
		    first_clicked_at = COALESCE(first_clicked_at, $2),
		    last_clicked_at = $2
		WHERE id = $1
	`, trackingID, at)
	if err != nil {
		return fmt.Errorf("record click: %w", err)
	}
	return nil
}

func (r *TrackingRepo) MarkOpened(ctx context.Context, invitationID uuid.UUID, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE survey_invitations
		SET status = 'opened', opened_at = $2
		WHERE id = $1 AND status = 'sent'
	`, invitationID, at)
	if err != nil {
		return false, fmt.Errorf("mark opened: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark opened rows: %w", err)
	}
	return n > 0, nil
}

func (r *TrackingRepo) MarkClicked(ctx context.Context, invitationID uuid.UUID, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE survey_invitations
		SET status = 'clicked', clicked_at = $2
		WHERE id = $1 AND status IN ('sent', 'opened')
	`, invitationID, at)
	if err != nil {
		return false, fmt.Errorf("mark clicked: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark clicked rows: %w", err)
	}
	return n > 0, nil
}

func (r *TrackingRepo) MarkResponded(ctx context.Context, invitationID uuid.UUID, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE survey_invitations
		SET status = 'responded', responded_at = $2
		WHERE id = $1 AND status IN ('sent', 'delivered', 'opened', 'clicked')
	`, invitationID, at)
	if err != nil {
		return false, fmt.Errorf("mark responded: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark responded rows: %w", err)
	}
	return n > 0, nil
}

func (r *TrackingRepo) IncrementCampaignOpened(ctx context.Context, campaignID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE email_campaigns SET emails_opened = emails_opened + 1 WHERE id = $1
	`, campaignID)
	if err != nil {
		return fmt.Errorf("increment campaign opened: %w", err)
	}
	return nil
}

func (r *TrackingRepo) IncrementCampaignClicked(ctx context.Context, campaignID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE email_campaigns SET emails_clicked = emails_clicked + 1 WHERE id = $1
	`, campaignID)
	if err != nil {
		return fmt.Errorf("increment campaign clicked: %w", err)
	}
	return nil
}
