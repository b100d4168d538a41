package invitation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/projectinsight/insight/internal/domain"
	"github.com/projectinsight/insight/internal/mailer"
	"github.com/projectinsight/insight/internal/pkg/logger"
	"github.com/projectinsight/insight/internal/service/plan"
	"github.com/projectinsight/insight/internal/template"
)

// maxReportedErrors caps the error list in a bulk result so response
// payloads stay bounded on large batches.
const maxReportedErrors = 10

// Service implements invitation business logic.
type Service struct {
	repo    Repository
	mailer  mailer.Mailer
	baseURL string
}

// NewService creates an invitation service.
func NewService(repo Repository, m mailer.Mailer, baseURL string) *Service {
	return &Service{repo: repo, mailer: m, baseURL: baseURL}
}

// SendBulkInput describes one bulk send request. Content comes from either
// a template (preferred when both are present) or an explicit subject and
// message pair.
type SendBulkInput struct {
	SurveyID        uuid.UUID   `json:"survey_id"`
	ContactListIDs  []uuid.UUID `json:"contact_list_ids"`
	ContactIDs      []uuid.UUID `json:"contact_ids"`
	TemplateID      *uuid.UUID  `json:"template_id"`
	Subject         string      `json:"subject"`
	Message         string      `json:"message"`
	SenderName      string      `json:"sender_name"`
	SenderEmail     string      `json:"sender_email"`
	SendImmediately bool        `json:"send_immediately"`
}

// BulkResult reports the outcome of one bulk send.
type BulkResult struct {
	TotalContacts int      `json:"total_contacts"`
	Sent          int      `json:"sent"`
	Skipped       int      `json:"skipped"`
	Failed        int      `json:"failed"`
	Errors        []string `json:"errors"`
}

// SendBulk creates and (optionally) delivers invitations for every target
// contact. Recipient failures are isolated: one bad address never aborts
// the batch.
func (s *Service) SendBulk(ctx context.Context, orgID uuid.UUID, input SendBulkInput) (*BulkResult, error) {
	survey, err := s.repo.GetSurvey(ctx, orgID, input.SurveyID)
	if err != nil {
		return nil, err
	}
	org, err := s.repo.GetOrganization(ctx, orgID)
	if err != nil {
		return nil, err
	}

	subject, message := input.Subject, input.Message
	if input.TemplateID != nil {
		tpl, err := s.repo.GetTemplate(ctx, orgID, *input.TemplateID)
		if err != nil {
			return nil, err
		}
		subject, message = tpl.SubjectLine, tpl.MessageBody
	}
	if subject == "" || message == "" {
		// No explicit content and no template reference: fall back to
		// the organization's default invitation template.
		tpl, err := s.repo.GetDefaultTemplate(ctx, orgID, domain.TemplateInvitation)
		if errors.Is(err, ErrTemplateNotFound) {
			return nil, ErrNoContent
		}
		if err != nil {
			return nil, err
		}
		subject, message = tpl.SubjectLine, tpl.MessageBody
	}

	contacts, err := s.repo.ResolveTargets(ctx, orgID, input.ContactListIDs, input.ContactIDs)
	if err != nil {
		return nil, err
	}
	if len(contacts) == 0 {
		return nil, ErrNoTargets
	}
	if err := plan.CheckRecipients(org.SubscriptionPlan, len(contacts)); err != nil {
		return nil, err
	}

	result := &BulkResult{TotalContacts: len(contacts), Errors: []string{}}
	for i := range contacts {
		s.sendOne(ctx, org, survey, &contacts[i], subject, message, input, result)
	}

	logger.Info("bulk send complete",
		"survey_id", survey.ID,
		"targeted", result.TotalContacts,
		"sent", result.Sent,
		"skipped", result.Skipped,
		"failed", result.Failed)
	return result, nil
}

// sendOne creates and delivers one invitation, folding the outcome into
// the batch result.
func (s *Service) sendOne(ctx context.Context, org *domain.Organization, survey *domain.Survey, contact *domain.Contact, subject, message string, input SendBulkInput, result *BulkResult) {
	inv := &domain.SurveyInvitation{
		ID:            uuid.New(),
		SurveyID:      survey.ID,
		ContactID:     contact.ID,
		SenderName:    input.SenderName,
		SenderEmail:   input.SenderEmail,
		Status:        domain.InvitationPending,
		TrackingToken: domain.NewTrackingToken(),
		CreatedAt:     time.Now().UTC(),
	}

	tctx := template.ContactContext(contact, survey, org, inv.SurveyURL(s.baseURL, survey.ShareToken))
	inv.SubjectLine = template.Render(subject, tctx)
	inv.MessageBody = template.Render(message, tctx)

	if err := s.repo.CreateInvitation(ctx, inv); err != nil {
		if errors.Is(err, ErrDuplicate) {
			result.Skipped++
			return
		}
		result.Failed++
		s.reportError(result, contact.Email, err)
		return
	}

	if !input.SendImmediately {
		result.Sent++
		return
	}

	if err := s.deliver(ctx, inv, contact); err != nil {
		result.Failed++
		s.reportError(result, contact.Email, err)
		return
	}
	result.Sent++
}

// deliver attempts the mail send and always persists a terminal status on
// the invitation, so no invitation is left pending by a send attempt.
func (s *Service) deliver(ctx context.Context, inv *domain.SurveyInvitation, contact *domain.Contact) error {
	msg := mailer.Message{
		FromEmail: inv.SenderEmail,
		FromName:  inv.SenderName,
		To:        contact.Email,
		Subject:   inv.SubjectLine,
		TextBody:  inv.MessageBody,
	}

	sendErr := s.mailer.Send(ctx, msg)
	now := time.Now().UTC()
	if sendErr != nil {
		inv.Status = domain.InvitationFailed
		inv.ErrorMessage = sendErr.Error()
	} else {
		inv.Status = domain.InvitationSent
		inv.SentAt = &now
		inv.ErrorMessage = ""
	}

	if err := s.repo.UpdateInvitationStatus(ctx, inv); err != nil {
		logger.Error("persisting invitation outcome failed",
			"invitation_id", inv.ID, "error", err)
		if sendErr == nil {
			return err
		}
	}
	if sendErr != nil {
		return sendErr
	}

	if err := s.repo.StampLastContacted(ctx, contact.ID, now); err != nil {
		logger.Warn("stamping last_contacted failed",
			"contact_id", contact.ID, "error", err)
	}
	return nil
}

// RetryFailed re-attempts delivery for the survey's pending and failed
// invitations using their stored rendered content.
func (s *Service) RetryFailed(ctx context.Context, orgID, surveyID uuid.UUID) (*BulkResult, error) {
	if _, err := s.repo.GetSurvey(ctx, orgID, surveyID); err != nil {
		return nil, err
	}

	targets, err := s.repo.ListRetryable(ctx, orgID, surveyID)
	if err != nil {
		return nil, err
	}

	result := &BulkResult{TotalContacts: len(targets), Errors: []string{}}
	for i := range targets {
		inv := targets[i].Invitation
		contact := targets[i].Contact
		if !contact.CanReceiveSurveys() {
			result.Skipped++
			continue
		}
		inv.RetryCount++
		if err := s.deliver(ctx, &inv, &contact); err != nil {
			result.Failed++
			s.reportError(result, contact.Email, err)
			continue
		}
		result.Sent++
	}
	return result, nil
}

// ProvisionDefaults creates the organization's default invitation and
// reminder templates if they don't exist yet. Idempotent.
func (s *Service) ProvisionDefaults(ctx context.Context, orgID uuid.UUID) error {
	exists, err := s.repo.HasDefaultTemplates(ctx, orgID)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	now := time.Now().UTC()
	defaults := []domain.EmailTemplate{
		{
			ID:             uuid.New(),
			OrganizationID: orgID,
			Name:           "Default Invitation",
			TemplateType:   domain.TemplateInvitation,
			SubjectLine:    "You're invited: {survey_title}",
			MessageBody: "Hi {first_name},\n\n{organization_name} would like your feedback." +
				"\n\n{survey_description}\n\nTake the survey here: {survey_url}\n\nThank you!",
			IsDefault: true,
			IsActive:  true,
			CreatedAt: now,
			UpdatedAt: now,
		},
		{
			ID:             uuid.New(),
			OrganizationID: orgID,
			Name:           "Default Reminder",
			TemplateType:   domain.TemplateReminder,
			SubjectLine:    "Reminder: {survey_title}",
			MessageBody: "Hi {first_name},\n\nJust a reminder that {organization_name} is still" +
				" collecting responses.\n\nTake the survey here: {survey_url}\n\nThank you!",
			IsDefault: true,
			IsActive:  true,
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
	for i := range defaults {
		if err := s.repo.CreateTemplate(ctx, &defaults[i]); err != nil {
			return fmt.Errorf("provisioning %s: %w", defaults[i].Name, err)
		}
	}
	return nil
}

func (s *Service) reportError(result *BulkResult, email string, err error) {
	if len(result.Errors) < maxReportedErrors {
		result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", email, err))
	}
}
