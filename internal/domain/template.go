package domain

import (
	"time"

	"github.com/google/uuid"
)

// TemplateType enumerates the purposes an email template can serve.
type TemplateType string

const (
	TemplateInvitation TemplateType = "invitation"
	TemplateReminder   TemplateType = "reminder"
	TemplateThankYou   TemplateType = "thank_you"
	TemplateCustom     TemplateType = "custom"
)

// EmailTemplate is an organization-owned reusable subject/body pair with
// named {placeholder} tokens. Templates are immutable at render time:
// rendering produces copies, never mutates the template.
type EmailTemplate struct {
	ID             uuid.UUID    `json:"id" db:"id"`
	OrganizationID uuid.UUID    `json:"organization_id" db:"organization_id"`
	Name           string       `json:"name" db:"name"`
	TemplateType   TemplateType `json:"template_type" db:"template_type"`
	SubjectLine    string       `json:"subject_line" db:"subject_line"`
	MessageBody    string       `json:"message_body" db:"message_body"`
	IsDefault      bool         `json:"is_default" db:"is_default"`
	IsActive       bool         `json:"is_active" db:"is_active"`
	CreatedAt      time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at" db:"updated_at"`
}
