package tracking

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/projectinsight/insight/internal/domain"
	"github.com/projectinsight/insight/internal/pkg/logger"
)

// Service implements engagement recording.
type Service struct {
	repo    Repository
	baseURL string
}

// NewService creates a tracking service. baseURL is the public origin
// used to build click redirect targets.
func NewService(repo Repository, baseURL string) *Service {
	return &Service{repo: repo, baseURL: baseURL}
}

// RecordOpen applies one pixel-load event to the invitation behind the
// token. Returns ErrTokenNotFound for unknown tokens; partial recording
// failures after resolution are logged, not surfaced, so the caller can
// still serve the pixel.
func (s *Service) RecordOpen(ctx context.Context, token, userAgent, ipAddress string) error {
	inv, err := s.repo.GetInvitationByToken(ctx, token)
	if err != nil {
		return err
	}
	now := time.Now().UTC()

	tr, err := s.repo.GetOrCreateTracking(ctx, inv.ID)
	if err != nil {
		logger.Error("tracking row lookup failed", "invitation_id", inv.ID, "error", err)
		return nil
	}
	if err := s.repo.RecordOpen(ctx, tr.ID, now, userAgent, ipAddress); err != nil {
		logger.Error("recording open failed", "invitation_id", inv.ID, "error", err)
		return nil
	}

	if _, err := s.repo.MarkOpened(ctx, inv.ID, now); err != nil {
		logger.Error("advancing invitation to opened failed", "invitation_id", inv.ID, "error", err)
	}
	if tr.CampaignID != nil {
		if err := s.repo.IncrementCampaignOpened(ctx, *tr.CampaignID); err != nil {
			logger.Error("incrementing campaign opens failed", "campaign_id", *tr.CampaignID, "error", err)
		}
	}
	return nil
}

// RecordClick applies one link-click event and returns the survey-taking
// URL to redirect to. Unknown tokens return ErrTokenNotFound.
func (s *Service) RecordClick(ctx context.Context, token string) (string, error) {
	inv, err := s.repo.GetInvitationByToken(ctx, token)
	if err != nil {
		return "", err
	}
	survey, err := s.repo.GetSurvey(ctx, inv.SurveyID)
	if err != nil {
		return "", err
	}
	now := time.Now().UTC()

	tr, err := s.repo.GetOrCreateTracking(ctx, inv.ID)
	if err != nil {
		logger.Error("tracking row lookup failed", "invitation_id", inv.ID, "error", err)
		return inv.SurveyURL(s.baseURL, survey.ShareToken), nil
	}
	if err := s.repo.RecordClick(ctx, tr.ID, now); err != nil {
		logger.Error("recording click failed", "invitation_id", inv.ID, "error", err)
		return inv.SurveyURL(s.baseURL, survey.ShareToken), nil
	}

	if _, err := s.repo.MarkClicked(ctx, inv.ID, now); err != nil {
		logger.Error("advancing invitation to clicked failed", "invitation_id", inv.ID, "error", err)
	}
	if tr.CampaignID != nil {
		if err := s.repo.IncrementCampaignClicked(ctx, *tr.CampaignID); err != nil {
			logger.Error("incrementing campaign clicks failed", "campaign_id", *tr.CampaignID, "error", err)
		}
	}
	return inv.SurveyURL(s.baseURL, survey.ShareToken), nil
}

// Survey returns the survey an invitation belongs to. Callers use it to
// resolve the owning organization for follow-up side effects.
func (s *Service) Survey(ctx context.Context, surveyID uuid.UUID) (*domain.Survey, error) {
	return s.repo.GetSurvey(ctx, surveyID)
}

// MarkResponded advances the invitation behind the token to responded.
// Called when a survey response arrives through an invitation link.
// Returns the invitation so the caller can fire follow-up side effects.
func (s *Service) MarkResponded(ctx context.Context, token string) (*domain.SurveyInvitation, error) {
	inv, err := s.repo.GetInvitationByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	advanced, err := s.repo.MarkResponded(ctx, inv.ID, now)
	if err != nil {
		return nil, err
	}
	if advanced {
		inv.Status = domain.InvitationResponded
		inv.RespondedAt = &now
	}
	return inv, nil
}
