package notification

import "errors"

var (
	ErrInvalidConfig     = errors.New("invalid notification config")
	ErrFailedToSendEmail = errors.New("failed to send email")
	ErrNoRecipient       = errors.New("no email address for user")
)
