package webhook

import "errors"

// Sentinel errors for the webhook service layer.
var (
	ErrNotFound      = errors.New("webhook not found")
	ErrInvalidEvents = errors.New("webhook subscribes to no valid event types")
	ErrInvalidURL    = errors.New("webhook URL is required")
)
