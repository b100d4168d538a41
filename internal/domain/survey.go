package domain

import (
	"time"

	"github.com/google/uuid"
)

// SurveyStatus enumerates the publication states of a survey.
type SurveyStatus string

const (
	SurveyDraft  SurveyStatus = "draft"
	SurveyActive SurveyStatus = "active"
	SurveyClosed SurveyStatus = "closed"
)

// Survey holds the subset of survey state the delivery core reads. Survey
// authoring (questions, options, themes) lives in a separate subsystem.
type Survey struct {
	ID             uuid.UUID    `json:"id" db:"id"`
	OrganizationID uuid.UUID    `json:"organization_id" db:"organization_id"`
	Title          string       `json:"title" db:"title"`
	Description    string       `json:"description" db:"description"`
	Status         SurveyStatus `json:"status" db:"status"`
	ShareToken     string       `json:"share_token" db:"share_token"`
	PublishedAt    *time.Time   `json:"published_at" db:"published_at"`
	ClosedAt       *time.Time   `json:"closed_at" db:"closed_at"`
	CreatedAt      time.Time    `json:"created_at" db:"created_at"`
}

// AcceptsResponses reports whether the survey is open for responses.
func (s *Survey) AcceptsResponses() bool {
	return s.Status == SurveyActive
}
