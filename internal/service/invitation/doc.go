// Package invitation implements bulk survey invitation delivery.
//
// The service resolves target contacts, renders per-contact content,
// creates SurveyInvitation records and hands them to the Mailer. One
// invitation exists per (survey, contact) pair; duplicates are skipped
// at creation time via the storage layer's unique constraint, never by
// a read-then-write check.
//
// Repository implementations live in repository/postgres/.
package invitation
