package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/projectinsight/insight/internal/domain"
	"github.com/projectinsight/insight/internal/service/campaign"
)

// CampaignRepo implements campaign.Repository against PostgreSQL.
type CampaignRepo struct{ db *sql.DB }

// NewCampaignRepo creates a Postgres-backed campaign repository.
func NewCampaignRepo(db *sql.DB) *CampaignRepo { return &CampaignRepo{db: db} }

const campaignColumns = `
	id, organization_id, survey_id, template_id, name, subject_line,
	message_body, COALESCE(sender_name,''), COALESCE(sender_email,''),
	status, scheduled_at, total_recipients, emails_sent, emails_delivered,
	emails_opened, emails_clicked, emails_failed, started_at, completed_at,
	created_at, updated_at`

func scanCampaign(row interface{ Scan(...any) error }) (*domain.EmailCampaign, error) {
	c := &domain.EmailCampaign{}
	err := row.Scan(
		&c.ID, &c.OrganizationID, &c.SurveyID, &c.TemplateID, &c.Name,
		&c.SubjectLine, &c.MessageBody, &c.SenderName, &c.SenderEmail,
		&c.Status, &c.ScheduledAt, &c.TotalRecipients, &c.EmailsSent,
		&c.EmailsDelivered, &c.EmailsOpened, &c.EmailsClicked, &c.EmailsFailed,
		&c.StartedAt, &c.CompletedAt, &c.CreatedAt, &c.UpdatedAt,
	)
	return c, err
}

func (r *CampaignRepo) GetCampaign(ctx context.Context, orgID, id uuid.UUID) (*domain.EmailCampaign, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+campaignColumns+`
		FROM email_campaigns
		WHERE id = $1 AND organization_id = $2
	`, id, orgID)
	c, err := scanCampaign(row)
	if err == sql.ErrNoRows {
		return nil, campaign.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get campaign: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT list_id FROM campaign_contact_lists WHERE campaign_id = $1 ORDER BY list_id
	`, id)
	if err != nil {
		return nil, fmt.Errorf("get campaign lists: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var listID uuid.UUID
		if err := rows.Scan(&listID); err != nil {
			return nil, fmt.Errorf("scan campaign list: %w", err)
		}
		c.ContactListIDs = append(c.ContactListIDs, listID)
	}
	return c, rows.Err()
}

func (r *CampaignRepo) ListCampaigns(ctx context.Context, orgID uuid.UUID) ([]domain.EmailCampaign, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+campaignColumns+`
		FROM email_campaigns
		WHERE organization_id = $1
		ORDER BY created_at DESC
	`, orgID)
	if err != nil {
		return nil, fmt.Errorf("list campaigns: %w", err)
	}
	defer rows.Close()

	var out []domain.EmailCampaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, fmt.Errorf("scan campaign: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (r *CampaignRepo) CreateCampaign(ctx context.Context, c *domain.EmailCampaign) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create campaign: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO email_campaigns
			(id, organization_id, survey_id, template_id, name, subject_line,
			 message_body, sender_name, sender_email, status, scheduled_at,
			 total_recipients, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, c.ID, c.OrganizationID, c.SurveyID, c.TemplateID, c.Name, c.SubjectLine,
		c.MessageBody, c.SenderName, c.SenderEmail, c.Status, c.ScheduledAt,
		c.TotalRecipients, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create campaign: %w", err)
	}

	for _, listID := range c.ContactListIDs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO campaign_contact_lists (campaign_id, list_id) VALUES ($1, $2)
		`, c.ID, listID); err != nil {
			return fmt.Errorf("link campaign list: %w", err)
		}
	}
	return tx.Commit()
}

func (r *CampaignRepo) GetStatus(ctx context.Context, id uuid.UUID) (domain.CampaignStatus, error) {
	var status domain.CampaignStatus
	err := r.db.QueryRowContext(ctx, `
		SELECT status FROM email_campaigns WHERE id = $1
	`, id).Scan(&status)
	if err == sql.ErrNoRows {
		return "", campaign.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get campaign status: %w", err)
	}
	return status, nil
}

func (r *CampaignRepo) SetStatus(ctx context.Context, id uuid.UUID, status domain.CampaignStatus) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE email_campaigns SET status = $2, updated_at = NOW() WHERE id = $1
	`, id, status)
	if err != nil {
		return fmt.Errorf("set campaign status: %w", err)
	}
	return nil
}

func (r *CampaignRepo) MarkScheduled(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE email_campaigns
		SET status = 'scheduled', scheduled_at = $2, updated_at = NOW()
		WHERE id = $1
	`, id, at)
	if err != nil {
		return fmt.Errorf("mark campaign scheduled: %w", err)
	}
	return nil
}

func (r *CampaignRepo) MarkSending(ctx context.Context, id uuid.UUID, startedAt time.Time, totalRecipients int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE email_campaigns
		SET status = 'sending', started_at = COALESCE(started_at, $2),
		    total_recipients = $3, updated_at = $2
		WHERE id = $1
	`, id, startedAt, totalRecipients)
	if err != nil {
		return fmt.Errorf("mark campaign sending: %w", err)
	}
	return nil
}

func (r *CampaignRepo) AddRunCounters(ctx context.Context, id uuid.UUID, sent, failed int, complete bool, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE email_campaigns
		SET emails_sent = emails_sent + $2,
		    emails_delivered = emails_delivered + $2,
		    emails_failed = emails_failed + $3,
		    status = CASE WHEN $4 THEN 'sent' ELSE status END,
		    completed_at = CASE WHEN $4 THEN $5 ELSE completed_at END,
		    updated_at = $5
		WHERE id = $1
	`, id, sent, failed, complete, at)
	if err != nil {
		return fmt.Errorf("add campaign run counters: %w", err)
	}
	return nil
}

func (r *CampaignRepo) MarkFailed(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE email_campaigns SET status = 'failed', updated_at = NOW() WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("mark campaign failed: %w", err)
	}
	return nil
}

func (r *CampaignRepo) GetSurvey(ctx context.Context, orgID, surveyID uuid.UUID) (*domain.Survey, error) {
	s := &domain.Survey{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, organization_id, title, COALESCE(description,''), status,
		       share_token, published_at, closed_at, created_at
		FROM surveys
		WHERE id = $1 AND organization_id = $2
	`, surveyID, orgID).Scan(
		&s.ID, &s.OrganizationID, &s.Title, &s.Description, &s.Status,
		&s.ShareToken, &s.PublishedAt, &s.ClosedAt, &s.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, campaign.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get survey: %w", err)
	}
	return s, nil
}

func (r *CampaignRepo) GetOrganization(ctx context.Context, orgID uuid.UUID) (*domain.Organization, error) {
	return getOrganization(ctx, r.db, orgID)
}

func (r *CampaignRepo) ResolveRecipients(ctx context.Context, orgID uuid.UUID, listIDs []uuid.UUID) ([]domain.Contact, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT c.id, c.organization_id, c.email,
		       COALESCE(c.first_name,''), COALESCE(c.last_name,''),
		       c.status, c.is_active, c.last_contacted, c.created_at
		FROM contacts c
		JOIN contact_list_members m ON m.contact_id = c.id
		WHERE c.organization_id = $1
		  AND c.is_active
		  AND c.status = 'subscribed'
		  AND m.list_id = ANY($2)
		ORDER BY c.created_at
	`, orgID, pq.Array(listIDs))
	if err != nil {
		return nil, fmt.Errorf("resolve recipients: %w", err)
	}
	defer rows.Close()

	return scanContacts(rows)
}

func (r *CampaignRepo) CreateInvitation(ctx context.Context, inv *domain.SurveyInvitation) error {
	err := createInvitation(ctx, r.db, inv)
	if isUniqueViolation(err) {
		return campaign.ErrDuplicateInvitation
	}
	return err
}

func (r *CampaignRepo) UpdateInvitationStatus(ctx context.Context, inv *domain.SurveyInvitation) error {
	return updateInvitationStatus(ctx, r.db, inv)
}

func (r *CampaignRepo) CreateTracking(ctx context.Context, tr *domain.InvitationTracking) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO invitation_tracking (id, invitation_id, campaign_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (invitation_id) DO UPDATE SET campaign_id = EXCLUDED.campaign_id
	`, tr.ID, tr.InvitationID, tr.CampaignID)
	if err != nil {
		return fmt.Errorf("create tracking: %w", err)
	}
	return nil
}

func (r *CampaignRepo) StampLastContacted(ctx context.Context, contactID uuid.UUID, at time.Time) error {
	return stampLastContacted(ctx, r.db, contactID, at)
}

func (r *CampaignRepo) TopEngaged(ctx context.Context, campaignID uuid.UUID, limit int) ([]campaign.EngagedRecipient, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT c.email, i.status, t.opened_count, t.clicked_count
		FROM invitation_tracking t
		JOIN survey_invitations i ON i.id = t.invitation_id
		JOIN contacts c ON c.id = i.contact_id
		WHERE t.campaign_id = $1
		ORDER BY t.clicked_count DESC, t.opened_count DESC
		LIMIT $2
	`, campaignID, limit)
	if err != nil {
		return nil, fmt.Errorf("top engaged: %w", err)
	}
	defer rows.Close()

	var out []campaign.EngagedRecipient
	for rows.Next() {
		var e campaign.EngagedRecipient
		if err := rows.Scan(&e.Email, &e.Status, &e.OpenedCount, &e.ClickedCount); err != nil {
			return nil, fmt.Errorf("scan engaged recipient: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
