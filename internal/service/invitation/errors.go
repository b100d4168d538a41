package invitation

import "errors"

// Sentinel errors for the invitation service layer.
var (
	ErrSurveyNotFound   = errors.New("survey not found")
	ErrTemplateNotFound = errors.New("email template not found")
	ErrNoTargets        = errors.New("no target contacts selected")
	ErrNoContent        = errors.New("invitation has no subject or message content")
	ErrDuplicate        = errors.New("invitation already exists for this survey and contact")
)
