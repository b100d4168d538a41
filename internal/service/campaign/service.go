package campaign

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/projectinsight/insight/internal/domain"
	"github.com/projectinsight/insight/internal/mailer"
	"github.com/projectinsight/insight/internal/pkg/distlock"
	"github.com/projectinsight/insight/internal/pkg/logger"
	"github.com/projectinsight/insight/internal/template"
)

// pauseCheckEvery controls how often the send loop re-reads campaign
// status to observe a cooperative pause request.
const pauseCheckEvery = 25

// lockTTL bounds how long a crashed worker can hold a campaign's send lock.
const lockTTL = 30 * time.Minute

// LockFactory builds a distributed lock for the given key.
type LockFactory func(key string, ttl time.Duration) distlock.DistLock

// Service implements campaign business logic.
type Service struct {
	repo    Repository
	mailer  mailer.Mailer
	baseURL string
	locks   LockFactory
}

// NewService creates a campaign service. locks may be nil, in which case
// sends are serialized only by the status precondition.
func NewService(repo Repository, m mailer.Mailer, baseURL string, locks LockFactory) *Service {
	return &Service{repo: repo, mailer: m, baseURL: baseURL, locks: locks}
}

// Get returns a single campaign.
func (s *Service) Get(ctx context.Context, orgID, id uuid.UUID) (*domain.EmailCampaign, error) {
	return s.repo.GetCampaign(ctx, orgID, id)
}

// List returns the organization's campaigns.
func (s *Service) List(ctx context.Context, orgID uuid.UUID) ([]domain.EmailCampaign, error) {
	return s.repo.ListCampaigns(ctx, orgID)
}

// TopEngaged returns the campaign's most engaged recipients.
func (s *Service) TopEngaged(ctx context.Context, orgID, id uuid.UUID, limit int) ([]EngagedRecipient, error) {
	if _, err := s.repo.GetCampaign(ctx, orgID, id); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}
	return s.repo.TopEngaged(ctx, id, limit)
}

// CreateInput holds the fields for creating a new campaign.
type CreateInput struct {
	SurveyID       uuid.UUID   `json:"survey_id"`
	TemplateID     *uuid.UUID  `json:"template_id"`
	ContactListIDs []uuid.UUID `json:"contact_list_ids"`
	Name           string      `json:"name"`
	SubjectLine    string      `json:"subject_line"`
	MessageBody    string      `json:"message_body"`
	SenderName     string      `json:"sender_name"`
	SenderEmail    string      `json:"sender_email"`
}

// Create validates and persists a new campaign in draft status.
func (s *Service) Create(ctx context.Context, orgID uuid.UUID, input CreateInput) (*domain.EmailCampaign, error) {
	if input.Name == "" {
		return nil, fmt.Errorf("name is required")
	}
	if input.SubjectLine == "" || input.MessageBody == "" {
		return nil, fmt.Errorf("subject_line and message_body are required")
	}
	if len(input.ContactListIDs) == 0 {
		return nil, ErrMissingLists
	}
	if _, err := s.repo.GetSurvey(ctx, orgID, input.SurveyID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	c := &domain.EmailCampaign{
		ID:             uuid.New(),
		OrganizationID: orgID,
		SurveyID:       input.SurveyID,
		TemplateID:     input.TemplateID,
		ContactListIDs: input.ContactListIDs,
		Name:           input.Name,
		SubjectLine:    input.SubjectLine,
		MessageBody:    input.MessageBody,
		SenderName:     input.SenderName,
		SenderEmail:    input.SenderEmail,
		Status:         domain.CampaignDraft,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.CreateCampaign(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Schedule moves a draft campaign to scheduled at the given time.
// Re-scheduling an already scheduled campaign replaces its send time.
func (s *Service) Schedule(ctx context.Context, orgID, id uuid.UUID, at *time.Time) error {
	if at == nil {
		return ErrMissingSchedule
	}
	c, err := s.repo.GetCampaign(ctx, orgID, id)
	if err != nil {
		return err
	}
	if !c.Startable() {
		return ErrAlreadySending
	}
	return s.repo.MarkScheduled(ctx, id, *at)
}

// SendResult reports one campaign run.
type SendResult struct {
	Sent    int  `json:"sent"`
	Skipped int  `json:"skipped"`
	Failed  int  `json:"failed"`
	Paused  bool `json:"paused"`
}

// Send runs a campaign: transitions it to sending, fans invitations out to
// the resolved recipients, and stamps counters when the run finishes.
// Starting a campaign that is already sending or sent is a conflict.
func (s *Service) Send(ctx context.Context, orgID, campaignID uuid.UUID) (*SendResult, error) {
	c, err := s.repo.GetCampaign(ctx, orgID, campaignID)
	if err != nil {
		return nil, err
	}
	if !c.Startable() {
		return nil, ErrAlreadySending
	}
	return s.run(ctx, c)
}

// Resume continues a paused campaign. Already-invited recipients are
// skipped by the (survey, contact) dedup, so the run picks up where the
// pause stopped it.
func (s *Service) Resume(ctx context.Context, orgID, campaignID uuid.UUID) (*SendResult, error) {
	c, err := s.repo.GetCampaign(ctx, orgID, campaignID)
	if err != nil {
		return nil, err
	}
	if c.Status != domain.CampaignPaused {
		return nil, ErrNotPaused
	}
	return s.run(ctx, c)
}

// Pause requests a cooperative stop of an active send. The running loop
// observes the status change between recipients.
func (s *Service) Pause(ctx context.Context, orgID, campaignID uuid.UUID) error {
	c, err := s.repo.GetCampaign(ctx, orgID, campaignID)
	if err != nil {
		return err
	}
	if c.Status != domain.CampaignSending {
		return ErrNotSending
	}
	return s.repo.SetStatus(ctx, campaignID, domain.CampaignPaused)
}

func (s *Service) run(ctx context.Context, c *domain.EmailCampaign) (*SendResult, error) {
	if s.locks != nil {
		lock := s.locks(distlock.CampaignSendKey(c.ID.String()), lockTTL)
		ok, err := lock.Acquire(ctx)
		if err != nil {
			return nil, fmt.Errorf("acquiring send lock: %w", err)
		}
		if !ok {
			return nil, ErrLocked
		}
		defer lock.Release(context.WithoutCancel(ctx))
	}

	survey, err := s.repo.GetSurvey(ctx, c.OrganizationID, c.SurveyID)
	if err != nil {
		return nil, err
	}
	if len(c.ContactListIDs) == 0 {
		return nil, ErrMissingLists
	}

	recipients, err := s.repo.ResolveRecipients(ctx, c.OrganizationID, c.ContactListIDs)
	if err != nil {
		return nil, fmt.Errorf("resolving recipients: %w", err)
	}

	startedAt := time.Now().UTC()
	if err := s.repo.MarkSending(ctx, c.ID, startedAt, len(recipients)); err != nil {
		return nil, fmt.Errorf("transition to sending: %w", err)
	}

	result, runErr := s.sendAll(ctx, c, survey, recipients)
	now := time.Now().UTC()
	if runErr != nil {
		// Unrecoverable batch failure. Invitations already sent stay sent;
		// email cannot be recalled.
		if err := s.repo.MarkFailed(ctx, c.ID); err != nil {
			logger.Error("marking campaign failed", "campaign_id", c.ID, "error", err)
		}
		return nil, runErr
	}

	if err := s.repo.AddRunCounters(ctx, c.ID, result.Sent, result.Failed, !result.Paused, now); err != nil {
		return nil, fmt.Errorf("stamping campaign counters: %w", err)
	}

	logger.Info("campaign run finished",
		"campaign_id", c.ID,
		"sent", result.Sent,
		"skipped", result.Skipped,
		"failed", result.Failed,
		"paused", result.Paused)
	return result, nil
}

func (s *Service) sendAll(ctx context.Context, c *domain.EmailCampaign, survey *domain.Survey, recipients []domain.Contact) (*SendResult, error) {
	result := &SendResult{}
	for i := range recipients {
		if i > 0 && i%pauseCheckEvery == 0 {
			status, err := s.repo.GetStatus(ctx, c.ID)
			if err != nil {
				return nil, fmt.Errorf("checking campaign status: %w", err)
			}
			if status == domain.CampaignPaused {
				result.Paused = true
				return result, nil
			}
		}
		s.sendOne(ctx, c, survey, &recipients[i], result)
	}
	return result, nil
}

// sendOne creates and delivers one campaign invitation. Recipient-level
// failures are recorded on the invitation and never abort the run.
func (s *Service) sendOne(ctx context.Context, c *domain.EmailCampaign, survey *domain.Survey, contact *domain.Contact, result *SendResult) {
	inv := &domain.SurveyInvitation{
		ID:            uuid.New(),
		SurveyID:      survey.ID,
		ContactID:     contact.ID,
		SenderName:    c.SenderName,
		SenderEmail:   c.SenderEmail,
		Status:        domain.InvitationPending,
		TrackingToken: domain.NewTrackingToken(),
		CreatedAt:     time.Now().UTC(),
	}

	// Campaigns render from literal subject/body with the fixed token
	// subset, not the full template context.
	tctx := template.Context{
		"first_name":   contact.FirstName,
		"last_name":    contact.LastName,
		"email":        contact.Email,
		"survey_title": survey.Title,
		"survey_url":   inv.SurveyURL(s.baseURL, survey.ShareToken),
	}
	inv.SubjectLine = template.Render(c.SubjectLine, tctx)
	inv.MessageBody = template.Render(c.MessageBody, tctx)

	if err := s.repo.CreateInvitation(ctx, inv); err != nil {
		if errors.Is(err, ErrDuplicateInvitation) {
			result.Skipped++
			return
		}
		result.Failed++
		logger.Warn("creating campaign invitation failed",
			"campaign_id", c.ID, "contact_email", contact.Email, "error", err)
		return
	}

	sendErr := s.mailer.Send(ctx, mailer.Message{
		FromEmail: c.SenderEmail,
		FromName:  c.SenderName,
		To:        contact.Email,
		Subject:   inv.SubjectLine,
		TextBody:  inv.MessageBody,
	})
	now := time.Now().UTC()
	if sendErr != nil {
		inv.Status = domain.InvitationFailed
		inv.ErrorMessage = sendErr.Error()
		result.Failed++
	} else {
		inv.Status = domain.InvitationSent
		inv.SentAt = &now
		result.Sent++
	}

	if err := s.repo.UpdateInvitationStatus(ctx, inv); err != nil {
		logger.Error("persisting invitation outcome failed",
			"invitation_id", inv.ID, "error", err)
	}
	if sendErr != nil {
		return
	}

	tr := &domain.InvitationTracking{
		ID:           uuid.New(),
		InvitationID: inv.ID,
		CampaignID:   &c.ID,
	}
	if err := s.repo.CreateTracking(ctx, tr); err != nil {
		logger.Warn("creating tracking row failed",
			"invitation_id", inv.ID, "error", err)
	}
	if err := s.repo.StampLastContacted(ctx, contact.ID, now); err != nil {
		logger.Warn("stamping last_contacted failed",
			"contact_id", contact.ID, "error", err)
	}
}
