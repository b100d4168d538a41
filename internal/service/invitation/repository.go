package invitation

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/projectinsight/insight/internal/domain"
)

// Repository defines the data access contract for invitation delivery.
// Implementations must be safe for concurrent use.
type Repository interface {
	// GetSurvey returns an organization-scoped survey.
	// Returns ErrSurveyNotFound if it doesn't exist.
	GetSurvey(ctx context.Context, orgID, surveyID uuid.UUID) (*domain.Survey, error)

	// GetOrganization returns the organization.
	GetOrganization(ctx context.Context, orgID uuid.UUID) (*domain.Organization, error)

	// GetTemplate returns an organization-scoped email template.
	// Returns ErrTemplateNotFound if it doesn't exist.
	GetTemplate(ctx context.Context, orgID, templateID uuid.UUID) (*domain.EmailTemplate, error)

	// GetDefaultTemplate returns the organization's default template of the
	// given type, or ErrTemplateNotFound if none is provisioned.
	GetDefaultTemplate(ctx context.Context, orgID uuid.UUID, typ domain.TemplateType) (*domain.EmailTemplate, error)

	// ResolveTargets returns the union of contacts in the given lists plus
	// the explicitly listed contacts, restricted to the organization's
	// active subscribed contacts, deduplicated by contact ID.
	ResolveTargets(ctx context.Context, orgID uuid.UUID, listIDs, contactIDs []uuid.UUID) ([]domain.Contact, error)

	// CreateInvitation inserts a new invitation. Returns ErrDuplicate if an
	// invitation already exists for the (survey, contact) pair.
	CreateInvitation(ctx context.Context, inv *domain.SurveyInvitation) error

	// UpdateInvitationStatus persists the post-send outcome: status plus
	// sent_at or error_message depending on how the send went.
	UpdateInvitationStatus(ctx context.Context, inv *domain.SurveyInvitation) error

	// StampLastContacted records a successful send on the contact.
	StampLastContacted(ctx context.Context, contactID uuid.UUID, at time.Time) error

	// ListRetryable returns the survey's pending and failed invitations
	// joined with their contacts.
	ListRetryable(ctx context.Context, orgID, surveyID uuid.UUID) ([]RetryTarget, error)

	// CreateTemplate inserts an email template.
	CreateTemplate(ctx context.Context, tpl *domain.EmailTemplate) error

	// HasDefaultTemplates reports whether the org already has default
	// templates provisioned.
	HasDefaultTemplates(ctx context.Context, orgID uuid.UUID) (bool, error)
}

// RetryTarget pairs a retryable invitation with its contact.
type RetryTarget struct {
	Invitation domain.SurveyInvitation
	Contact    domain.Contact
}
