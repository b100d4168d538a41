package campaign

import "errors"

// Sentinel errors for the campaign service layer.
var (
	ErrNotFound            = errors.New("campaign not found")
	ErrAlreadySending      = errors.New("campaign is already sending or sent")
	ErrNotPaused           = errors.New("campaign is not paused")
	ErrNotSending          = errors.New("campaign is not sending")
	ErrMissingLists        = errors.New("campaign has no contact lists")
	ErrMissingSchedule     = errors.New("scheduling a campaign requires a time")
	ErrDuplicateInvitation = errors.New("invitation already exists for this survey and contact")
	ErrLocked              = errors.New("campaign send is in progress on another worker")
)
