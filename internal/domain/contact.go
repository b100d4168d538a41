package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ContactStatus enumerates subscription states of a contact.
type ContactStatus string

const (
	ContactSubscribed   ContactStatus = "subscribed"
	ContactUnsubscribed ContactStatus = "unsubscribed"
	ContactBounced      ContactStatus = "bounced"
	ContactComplained   ContactStatus = "complained"
)

// Contact is an organization-scoped recipient identity. Email is unique per
// organization.
type Contact struct {
	ID             uuid.UUID     `json:"id" db:"id"`
	OrganizationID uuid.UUID     `json:"organization_id" db:"organization_id"`
	Email          string        `json:"email" db:"email"`
	FirstName      string        `json:"first_name" db:"first_name"`
	LastName       string        `json:"last_name" db:"last_name"`
	Phone          string        `json:"phone" db:"phone"`
	Company        string        `json:"company" db:"company"`
	JobTitle       string        `json:"job_title" db:"job_title"`
	Status         ContactStatus `json:"status" db:"status"`
	IsActive       bool          `json:"is_active" db:"is_active"`
	Source         string        `json:"source" db:"source"`
	LastContacted  *time.Time    `json:"last_contacted" db:"last_contacted"`
	CreatedAt      time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at" db:"updated_at"`
}

// FullName returns "First Last", "First", or "" depending on which name
// fields are present.
func (c *Contact) FullName() string {
	switch {
	case c.FirstName != "" && c.LastName != "":
		return c.FirstName + " " + c.LastName
	case c.FirstName != "":
		return c.FirstName
	default:
		return ""
	}
}

// DisplayName returns the full name, falling back to the email address.
func (c *Contact) DisplayName() string {
	if name := c.FullName(); name != "" {
		return name
	}
	return c.Email
}

// CanReceiveSurveys reports whether the contact is an eligible invitation
// target: active and currently subscribed.
func (c *Contact) CanReceiveSurveys() bool {
	return c.IsActive && c.Status == ContactSubscribed
}

// NormalizeEmail lowercases and trims an email address for storage and
// comparison.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ContactList is a named grouping of contacts within an organization.
// Membership is many-to-many.
type ContactList struct {
	ID             uuid.UUID `json:"id" db:"id"`
	OrganizationID uuid.UUID `json:"organization_id" db:"organization_id"`
	Name           string    `json:"name" db:"name"`
	Description    string    `json:"description" db:"description"`
	IsActive       bool      `json:"is_active" db:"is_active"`
	ContactCount   int       `json:"contact_count" db:"contact_count"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}
