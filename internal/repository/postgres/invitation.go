package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/projectinsight/insight/internal/domain"
	"github.com/projectinsight/insight/internal/service/invitation"
)

// InvitationRepo implements invitation.Repository against PostgreSQL.
type InvitationRepo struct{ db *sql.DB }

// NewInvitationRepo creates a Postgres-backed invitation repository.
func NewInvitationRepo(db *sql.DB) *InvitationRepo { return &InvitationRepo{db: db} }

func (r *InvitationRepo) GetSurvey(ctx context.Context, orgID, surveyID uuid.UUID) (*domain.Survey, error) {
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
		return nil, invitation.ErrSurveyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get survey: %w", err)
	}
	return s, nil
}

func (r *InvitationRepo) GetOrganization(ctx context.Context, orgID uuid.UUID) (*domain.Organization, error) {
	return getOrganization(ctx, r.db, orgID)
}

func (r *InvitationRepo) GetTemplate(ctx context.Context, orgID, templateID uuid.UUID) (*domain.EmailTemplate, error) {
	t := &domain.EmailTemplate{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, organization_id, name, template_type, subject_line,
		       message_body, is_default, is_active, created_at, updated_at
		FROM email_templates
		WHERE id = $1 AND organization_id = $2
	`, templateID, orgID).Scan(
		&t.ID, &t.OrganizationID, &t.Name, &t.TemplateType, &t.SubjectLine,
		&t.MessageBody, &t.IsDefault, &t.IsActive, &t.CreatedAt, &t.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, invitation.ErrTemplateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get template: %w", err)
	}
	return t, nil
}

func (r *InvitationRepo) GetDefaultTemplate(ctx context.Context, orgID uuid.UUID, typ domain.TemplateType) (*domain.EmailTemplate, error) {
	t := &domain.EmailTemplate{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, organization_id, name, template_type, subject_line,
		       message_body, is_default, is_active, created_at, updated_at
		FROM email_templates
		WHERE organization_id = $1 AND template_type = $2 AND is_default AND is_active
		ORDER BY created_at
		LIMIT 1
	`, orgID, typ).Scan(
		&t.ID, &t.OrganizationID, &t.Name, &t.TemplateType, &t.SubjectLine,
		&t.MessageBody, &t.IsDefault, &t.IsActive, &t.CreatedAt, &t.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, invitation.ErrTemplateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get default template: %w", err)
	}
	return t, nil
}

// ResolveTargets returns the deduplicated union of list members and
// explicit contacts, restricted to active subscribed contacts of the
// organization.
func (r *InvitationRepo) ResolveTargets(ctx context.Context, orgID uuid.UUID, listIDs, contactIDs []uuid.UUID) ([]domain.Contact, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT c.id, c.organization_id, c.email,
		       COALESCE(c.first_name,''), COALESCE(c.last_name,''),
		       c.status, c.is_active, c.last_contacted, c.created_at
		FROM contacts c
		LEFT JOIN contact_list_members m ON m.contact_id = c.id
		WHERE c.organization_id = $1
		  AND c.is_active
		  AND c.status = 'subscribed'
		  AND (m.list_id = ANY($2) OR c.id = ANY($3))
		ORDER BY c.created_at
	`, orgID, pq.Array(listIDs), pq.Array(contactIDs))
	if err != nil {
		return nil, fmt.Errorf("resolve targets: %w", err)
	}
	defer rows.Close()

	return scanContacts(rows)
}

func (r *InvitationRepo) CreateInvitation(ctx context.Context, inv *domain.SurveyInvitation) error {
	err := createInvitation(ctx, r.db, inv)
	if isUniqueViolation(err) {
		return invitation.ErrDuplicate
	}
	return err
}

func (r *InvitationRepo) UpdateInvitationStatus(ctx context.Context, inv *domain.SurveyInvitation) error {
	return updateInvitationStatus(ctx, r.db, inv)
}

func (r *InvitationRepo) StampLastContacted(ctx context.Context, contactID uuid.UUID, at time.Time) error {
	return stampLastContacted(ctx, r.db, contactID, at)
}

func (r *InvitationRepo) ListRetryable(ctx context.Context, orgID, surveyID uuid.UUID) ([]invitation.RetryTarget, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT i.id, i.survey_id, i.contact_id, i.subject_line, i.message_body,
		       COALESCE(i.sender_name,''), COALESCE(i.sender_email,''),
		       i.status, i.tracking_token, i.sent_at, COALESCE(i.error_message,''),
		       i.retry_count, i.created_at,
		       c.id, c.organization_id, c.email,
		       COALESCE(c.first_name,''), COALESCE(c.last_name,''),
		       c.status, c.is_active, c.last_contacted, c.created_at
		FROM survey_invitations i
		JOIN contacts c ON c.id = i.contact_id
		WHERE i.survey_id = $1
		  AND c.organization_id = $2
		  AND i.status IN ('pending', 'failed')
		ORDER BY i.created_at
	`, surveyID, orgID)
	if err != nil {
		return nil, fmt.Errorf("list retryable: %w", err)
	}
	defer rows.Close()

	var out []invitation.RetryTarget
	for rows.Next() {
		var t invitation.RetryTarget
		if err := rows.Scan(
			&t.Invitation.ID, &t.Invitation.SurveyID, &t.Invitation.ContactID,
			&t.Invitation.SubjectLine, &t.Invitation.MessageBody,
			&t.Invitation.SenderName, &t.Invitation.SenderEmail,
			&t.Invitation.Status, &t.Invitation.TrackingToken, &t.Invitation.SentAt,
			&t.Invitation.ErrorMessage, &t.Invitation.RetryCount, &t.Invitation.CreatedAt,
			&t.Contact.ID, &t.Contact.OrganizationID, &t.Contact.Email,
			&t.Contact.FirstName, &t.Contact.LastName,
			&t.Contact.Status, &t.Contact.IsActive, &t.Contact.LastContacted,
			&t.Contact.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan retryable: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *InvitationRepo) CreateTemplate(ctx context.Context, tpl *domain.EmailTemplate) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO email_templates
			(id, organization_id, name, template_type, subject_line,
			 message_body, is_default, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, tpl.ID, tpl.OrganizationID, tpl.Name, tpl.TemplateType, tpl.SubjectLine,
		tpl.MessageBody, tpl.IsDefault, tpl.IsActive, tpl.CreatedAt, tpl.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create template: %w", err)
	}
	return nil
}

func (r *InvitationRepo) HasDefaultTemplates(ctx context.Context, orgID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM email_templates
			WHERE organization_id = $1 AND is_default
		)
	`, orgID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check default templates: %w", err)
	}
	return exists, nil
}

// Shared helpers used by both the invitation and campaign repositories.

func getOrganization(ctx context.Context, db *sql.DB, orgID uuid.UUID) (*domain.Organization, error) {
	o := &domain.Organization{}
	err := db.QueryRowContext(ctx, `
		SELECT id, name, subscription_plan, created_at, updated_at
		FROM organizations
		WHERE id = $1
	`, orgID).Scan(&o.ID, &o.Name, &o.SubscriptionPlan, &o.CreatedAt, &o.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("organization %s not found", orgID)
	}
	if err != nil {
		return nil, fmt.Errorf("get organization: %w", err)
	}
	return o, nil
}

func createInvitation(ctx context.Context, db *sql.DB, inv *domain.SurveyInvitation) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO survey_invitations
			(id, survey_id, contact_id, subject_line, message_body,
			 sender_name, sender_email, status, tracking_token,
			 retry_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, inv.ID, inv.SurveyID, inv.ContactID, inv.SubjectLine, inv.MessageBody,
		inv.SenderName, inv.SenderEmail, inv.Status, inv.TrackingToken,
		inv.RetryCount, inv.CreatedAt)
	if err != nil && !isUniqueViolation(err) {
		return fmt.Errorf("create invitation: %w", err)
	}
	return err
}

func updateInvitationStatus(ctx context.Context, db *sql.DB, inv *domain.SurveyInvitation) error {
	_, err := db.ExecContext(ctx, `
		UPDATE survey_invitations
		SET status = $2, sent_at = $3, error_message = NULLIF($4,''),
		    retry_count = $5
		WHERE id = $1
	`, inv.ID, inv.Status, inv.SentAt, inv.ErrorMessage, inv.RetryCount)
	if err != nil {
		return fmt.Errorf("update invitation status: %w", err)
	}
	return nil
}

func stampLastContacted(ctx context.Context, db *sql.DB, contactID uuid.UUID, at time.Time) error {
	_, err := db.ExecContext(ctx, `
		UPDATE contacts SET last_contacted = $2, updated_at = $2 WHERE id = $1
	`, contactID, at)
	if err != nil {
		return fmt.Errorf("stamp last_contacted: %w", err)
	}
	return nil
}

func scanContacts(rows *sql.Rows) ([]domain.Contact, error) {
	var out []domain.Contact
	for rows.Next() {
		var c domain.Contact
		if err := rows.Scan(
			&c.ID, &c.OrganizationID, &c.Email, &c.FirstName, &c.LastName,
			&c.Status, &c.IsActive, &c.LastContacted, &c.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
