package invitation_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/projectinsight/insight/internal/domain"
	"github.com/projectinsight/insight/internal/mailer"
	"github.com/projectinsight/insight/internal/service/invitation"
)

// memRepo is an in-memory invitation repository for unit testing.
type memRepo struct {
	mu          sync.Mutex
	org         *domain.Organization
	surveys     map[uuid.UUID]*domain.Survey
	templates   map[uuid.UUID]*domain.EmailTemplate
	contacts    map[uuid.UUID]*domain.Contact
	invitations map[string]*domain.SurveyInvitation // keyed by survey|contact
}

func newMemRepo(org *domain.Organization) *memRepo {
	return &memRepo{
		org:         org,
		surveys:     make(map[uuid.UUID]*domain.Survey),
		templates:   make(map[uuid.UUID]*domain.EmailTemplate),
		contacts:    make(map[uuid.UUID]*domain.Contact),
		invitations: make(map[string]*domain.SurveyInvitation),
	}
}

func pairKey(surveyID, contactID uuid.UUID) string {
	return surveyID.String() + "|" + contactID.String()
}

func (m *memRepo) GetSurvey(_ context.Context, orgID, surveyID uuid.UUID) (*domain.Survey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.surveys[surveyID]
	if !ok || s.OrganizationID != orgID {
		return nil, invitation.ErrSurveyNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memRepo) GetOrganization(_ context.Context, orgID uuid.UUID) (*domain.Organization, error) {
	if m.org == nil || m.org.ID != orgID {
		return nil, fmt.Errorf("organization not found")
	}
	cp := *m.org
	return &cp, nil
}

func (m *memRepo) GetTemplate(_ context.Context, orgID, templateID uuid.UUID) (*domain.EmailTemplate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.templates[templateID]
	if !ok || t.OrganizationID != orgID {
		return nil, invitation.ErrTemplateNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *memRepo) GetDefaultTemplate(_ context.Context, orgID uuid.UUID, typ domain.TemplateType) (*domain.EmailTemplate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.templates {
		if t.OrganizationID == orgID && t.TemplateType == typ && t.IsDefault {
			cp := *t
			return &cp, nil
		}
	}
	return nil, invitation.ErrTemplateNotFound
}

func (m *memRepo) ResolveTargets(_ context.Context, orgID uuid.UUID, _, contactIDs []uuid.UUID) ([]domain.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[uuid.UUID]bool)
	var out []domain.Contact
	for _, id := range contactIDs {
		c, ok := m.contacts[id]
		if !ok || c.OrganizationID != orgID || seen[id] {
			continue
		}
		if !c.CanReceiveSurveys() {
			continue
		}
		seen[id] = true
		out = append(out, *c)
	}
	return out, nil
}

func (m *memRepo) CreateInvitation(_ context.Context, inv *domain.SurveyInvitation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := pairKey(inv.SurveyID, inv.ContactID)
	if _, exists := m.invitations[key]; exists {
		return invitation.ErrDuplicate
	}
	cp := *inv
	m.invitations[key] = &cp
	return nil
}

func (m *memRepo) UpdateInvitationStatus(_ context.Context, inv *domain.SurveyInvitation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.invitations[pairKey(inv.SurveyID, inv.ContactID)]
	if !ok {
		return fmt.Errorf("invitation not found")
	}
	stored.Status = inv.Status
	stored.SentAt = inv.SentAt
	stored.ErrorMessage = inv.ErrorMessage
	stored.RetryCount = inv.RetryCount
	return nil
}

func (m *memRepo) StampLastContacted(_ context.Context, contactID uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.contacts[contactID]
	if !ok {
		return fmt.Errorf("contact not found")
	}
	c.LastContacted = &at
	return nil
}

func (m *memRepo) ListRetryable(_ context.Context, orgID, surveyID uuid.UUID) ([]invitation.RetryTarget, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []invitation.RetryTarget
	for _, inv := range m.invitations {
		if inv.SurveyID != surveyID || !inv.Retryable() {
			continue
		}
		c, ok := m.contacts[inv.ContactID]
		if !ok || c.OrganizationID != orgID {
			continue
		}
		out = append(out, invitation.RetryTarget{Invitation: *inv, Contact: *c})
	}
	return out, nil
}

func (m *memRepo) CreateTemplate(_ context.Context, tpl *domain.EmailTemplate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *tpl
	m.templates[cp.ID] = &cp
	return nil
}

func (m *memRepo) HasDefaultTemplates(_ context.Context, orgID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.templates {
		if t.OrganizationID == orgID && t.IsDefault {
			return true, nil
		}
	}
	return false, nil
}

type fixture struct {
	repo   *memRepo
	mock   *mailer.Mock
	svc    *invitation.Service
	org    *domain.Organization
	survey *domain.Survey
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	org := &domain.Organization{
		ID:               uuid.New(),
		Name:             "Acme",
		SubscriptionPlan: domain.PlanPremium,
	}
	repo := newMemRepo(org)
	survey := &domain.Survey{
		ID:             uuid.New(),
		OrganizationID: org.ID,
		Title:          "Q3 Pulse",
		Description:    "Quarterly check-in",
		ShareToken:     "share-tok",
		Status:         domain.SurveyActive,
	}
	repo.surveys[survey.ID] = survey
	mock := mailer.NewMock()
	return &fixture{
		repo:   repo,
		mock:   mock,
		svc:    invitation.NewService(repo, mock, "https://insight.example.com"),
		org:    org,
		survey: survey,
	}
}

func (f *fixture) addContact(email, firstName string) *domain.Contact {
	c := &domain.Contact{
		ID:             uuid.New(),
		OrganizationID: f.org.ID,
		Email:          email,
		FirstName:      firstName,
		Status:         domain.ContactSubscribed,
		IsActive:       true,
	}
	f.repo.contacts[c.ID] = c
	return c
}

func contactIDs(cs ...*domain.Contact) []uuid.UUID {
	ids := make([]uuid.UUID, len(cs))
	for i, c := range cs {
		ids[i] = c.ID
	}
	return ids
}

func TestSendBulk(t *testing.T) {
	f := newFixture(t)
	a := f.addContact("ada@example.com", "Ada")
	b := f.addContact("bob@example.com", "Bob")

	res, err := f.svc.SendBulk(context.Background(), f.org.ID, invitation.SendBulkInput{
		SurveyID:        f.survey.ID,
		ContactIDs:      contactIDs(a, b),
		Subject:         "Hi {first_name}",
		Message:         "Take it: {survey_url}",
		SenderEmail:     "surveys@acme.com",
		SenderName:      "Acme Surveys",
		SendImmediately: true,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, res.TotalContacts)
	assert.Equal(t, 2, res.Sent)
	assert.Equal(t, 0, res.Skipped)
	assert.Equal(t, 0, res.Failed)
	assert.Empty(t, res.Errors)
	assert.Equal(t, 2, f.mock.Count())

	// Rendered content and tracking link.
	var sent mailer.Message
	for _, m := range f.mock.Sent {
		if m.To == "ada@example.com" {
			sent = m
		}
	}
	assert.Equal(t, "Hi Ada", sent.Subject)
	assert.Contains(t, sent.TextBody, "https://insight.example.com/surveys/take/share-tok?invitation=")

	// Invitation persisted as sent, contact stamped.
	inv := f.repo.invitations[pairKey(f.survey.ID, a.ID)]
	require.NotNil(t, inv)
	assert.Equal(t, domain.InvitationSent, inv.Status)
	assert.NotNil(t, inv.SentAt)
	assert.NotEmpty(t, inv.TrackingToken)
	assert.NotNil(t, f.repo.contacts[a.ID].LastContacted)
}

func TestSendBulkDedup(t *testing.T) {
	f := newFixture(t)
	a := f.addContact("ada@example.com", "Ada")

	input := invitation.SendBulkInput{
		SurveyID:        f.survey.ID,
		ContactIDs:      contactIDs(a),
		Subject:         "Subject",
		Message:         "Body",
		SendImmediately: true,
	}

	first, err := f.svc.SendBulk(context.Background(), f.org.ID, input)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Sent)

	second, err := f.svc.SendBulk(context.Background(), f.org.ID, input)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Sent)
	assert.Equal(t, 1, second.Skipped)
	assert.Equal(t, 0, second.Failed)
	assert.Equal(t, 1, f.mock.Count())
	assert.Len(t, f.repo.invitations, 1)
}

func TestSendBulkFailureIsolation(t *testing.T) {
	f := newFixture(t)
	a := f.addContact("ada@example.com", "Ada")
	bad := f.addContact("bad@example.com", "Bad")
	c := f.addContact("carol@example.com", "Carol")
	f.mock.FailFor["bad@example.com"] = errors.New("mailbox unavailable")

	res, err := f.svc.SendBulk(context.Background(), f.org.ID, invitation.SendBulkInput{
		SurveyID:        f.survey.ID,
		ContactIDs:      contactIDs(a, bad, c),
		Subject:         "Subject",
		Message:         "Body",
		SendImmediately: true,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Sent)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "bad@example.com")
	assert.Contains(t, res.Errors[0], "mailbox unavailable")

	inv := f.repo.invitations[pairKey(f.survey.ID, bad.ID)]
	require.NotNil(t, inv)
	assert.Equal(t, domain.InvitationFailed, inv.Status)
	assert.Equal(t, "mailbox unavailable", inv.ErrorMessage)
	assert.True(t, f.mock.SentTo("carol@example.com"))
}

func TestSendBulkErrorCap(t *testing.T) {
	f := newFixture(t)
	f.mock.FailAll = errors.New("provider down")

	var ids []uuid.UUID
	for i := 0; i < 25; i++ {
		c := f.addContact(fmt.Sprintf("c%d@example.com", i), "C")
		ids = append(ids, c.ID)
	}

	res, err := f.svc.SendBulk(context.Background(), f.org.ID, invitation.SendBulkInput{
		SurveyID:        f.survey.ID,
		ContactIDs:      ids,
		Subject:         "Subject",
		Message:         "Body",
		SendImmediately: true,
	})
	require.NoError(t, err)

	assert.Equal(t, 25, res.Failed)
	assert.Len(t, res.Errors, 10)
}

func TestSendBulkTemplatePrecedence(t *testing.T) {
	f := newFixture(t)
	a := f.addContact("ada@example.com", "Ada")
	tpl := &domain.EmailTemplate{
		ID:             uuid.New(),
		OrganizationID: f.org.ID,
		TemplateType:   domain.TemplateInvitation,
		SubjectLine:    "Template: {survey_title}",
		MessageBody:    "From template",
	}
	require.NoError(t, f.repo.CreateTemplate(context.Background(), tpl))

	res, err := f.svc.SendBulk(context.Background(), f.org.ID, invitation.SendBulkInput{
		SurveyID:        f.survey.ID,
		ContactIDs:      contactIDs(a),
		TemplateID:      &tpl.ID,
		Subject:         "Ignored",
		Message:         "Ignored",
		SendImmediately: true,
	})
	require.NoError(t, err)
	require.Equal(t, 1, res.Sent)
	assert.Equal(t, "Template: Q3 Pulse", f.mock.Sent[0].Subject)
	assert.Equal(t, "From template", f.mock.Sent[0].TextBody)
}

func TestSendBulkDefaultTemplateFallback(t *testing.T) {
	f := newFixture(t)
	a := f.addContact("ada@example.com", "Ada")
	require.NoError(t, f.svc.ProvisionDefaults(context.Background(), f.org.ID))

	res, err := f.svc.SendBulk(context.Background(), f.org.ID, invitation.SendBulkInput{
		SurveyID:        f.survey.ID,
		ContactIDs:      contactIDs(a),
		SendImmediately: true,
	})
	require.NoError(t, err)
	require.Equal(t, 1, res.Sent)
	assert.Equal(t, "You're invited: Q3 Pulse", f.mock.Sent[0].Subject)
	assert.Contains(t, f.mock.Sent[0].TextBody, "Hi Ada,")
}

func TestSendBulkNoTargets(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.SendBulk(context.Background(), f.org.ID, invitation.SendBulkInput{
		SurveyID: f.survey.ID,
		Subject:  "Subject",
		Message:  "Body",
	})
	assert.ErrorIs(t, err, invitation.ErrNoTargets)
	assert.Empty(t, f.repo.invitations)
}

func TestSendBulkNoContent(t *testing.T) {
	f := newFixture(t)
	a := f.addContact("ada@example.com", "Ada")
	_, err := f.svc.SendBulk(context.Background(), f.org.ID, invitation.SendBulkInput{
		SurveyID:   f.survey.ID,
		ContactIDs: contactIDs(a),
	})
	assert.ErrorIs(t, err, invitation.ErrNoContent)
}

func TestSendBulkUnsubscribedExcluded(t *testing.T) {
	f := newFixture(t)
	a := f.addContact("ada@example.com", "Ada")
	u := f.addContact("gone@example.com", "Gone")
	u.Status = domain.ContactUnsubscribed

	res, err := f.svc.SendBulk(context.Background(), f.org.ID, invitation.SendBulkInput{
		SurveyID:        f.survey.ID,
		ContactIDs:      contactIDs(a, u),
		Subject:         "Subject",
		Message:         "Body",
		SendImmediately: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.TotalContacts)
	assert.False(t, f.mock.SentTo("gone@example.com"))
}

func TestSendBulkDeferred(t *testing.T) {
	f := newFixture(t)
	a := f.addContact("ada@example.com", "Ada")

	res, err := f.svc.SendBulk(context.Background(), f.org.ID, invitation.SendBulkInput{
		SurveyID:   f.survey.ID,
		ContactIDs: contactIDs(a),
		Subject:    "Subject",
		Message:    "Body",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Sent)
	assert.Equal(t, 0, f.mock.Count())

	inv := f.repo.invitations[pairKey(f.survey.ID, a.ID)]
	require.NotNil(t, inv)
	assert.Equal(t, domain.InvitationPending, inv.Status)
}

func TestSendBulkPlanLimit(t *testing.T) {
	f := newFixture(t)
	f.org.SubscriptionPlan = domain.PlanFree

	var ids []uuid.UUID
	for i := 0; i < 101; i++ {
		c := f.addContact(fmt.Sprintf("c%d@example.com", i), "C")
		ids = append(ids, c.ID)
	}

	_, err := f.svc.SendBulk(context.Background(), f.org.ID, invitation.SendBulkInput{
		SurveyID:        f.survey.ID,
		ContactIDs:      ids,
		Subject:         "Subject",
		Message:         "Body",
		SendImmediately: true,
	})
	assert.Error(t, err)
	assert.Empty(t, f.repo.invitations)
}

func TestRetryFailed(t *testing.T) {
	f := newFixture(t)
	a := f.addContact("ada@example.com", "Ada")
	f.mock.FailFor["ada@example.com"] = errors.New("greylisted")

	_, err := f.svc.SendBulk(context.Background(), f.org.ID, invitation.SendBulkInput{
		SurveyID:        f.survey.ID,
		ContactIDs:      contactIDs(a),
		Subject:         "Subject",
		Message:         "Body",
		SendImmediately: true,
	})
	require.NoError(t, err)
	inv := f.repo.invitations[pairKey(f.survey.ID, a.ID)]
	require.Equal(t, domain.InvitationFailed, inv.Status)

	delete(f.mock.FailFor, "ada@example.com")
	res, err := f.svc.RetryFailed(context.Background(), f.org.ID, f.survey.ID)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Sent)
	assert.Equal(t, 0, res.Failed)
	inv = f.repo.invitations[pairKey(f.survey.ID, a.ID)]
	assert.Equal(t, domain.InvitationSent, inv.Status)
	assert.Equal(t, 1, inv.RetryCount)
	assert.Empty(t, inv.ErrorMessage)
}

func TestRetryFailedSkipsSent(t *testing.T) {
	f := newFixture(t)
	a := f.addContact("ada@example.com", "Ada")

	_, err := f.svc.SendBulk(context.Background(), f.org.ID, invitation.SendBulkInput{
		SurveyID:        f.survey.ID,
		ContactIDs:      contactIDs(a),
		Subject:         "Subject",
		Message:         "Body",
		SendImmediately: true,
	})
	require.NoError(t, err)

	res, err := f.svc.RetryFailed(context.Background(), f.org.ID, f.survey.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, res.TotalContacts)
	assert.Equal(t, 1, f.mock.Count())
}

func TestProvisionDefaults(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.svc.ProvisionDefaults(context.Background(), f.org.ID))
	tpl, err := f.repo.GetDefaultTemplate(context.Background(), f.org.ID, domain.TemplateInvitation)
	require.NoError(t, err)
	assert.Contains(t, tpl.SubjectLine, "{survey_title}")

	// Second call is a no-op.
	require.NoError(t, f.svc.ProvisionDefaults(context.Background(), f.org.ID))
	count := 0
	for _, t2 := range f.repo.templates {
		if t2.IsDefault {
			count++
		}
	}
	assert.Equal(t, 2, count)
}

func TestSendBulkWrongOrg(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.SendBulk(context.Background(), uuid.New(), invitation.SendBulkInput{
		SurveyID: f.survey.ID,
		Subject:  "Subject",
		Message:  "Body",
	})
	assert.ErrorIs(t, err, invitation.ErrSurveyNotFound)
}
