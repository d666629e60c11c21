package payment

import "errors"

var (
	ErrPaymentNotFound  = errors.New("payment not found")
	ErrAlreadySettled   = errors.New("payment already settled")
	ErrNotPending       = errors.New("payment is not pending")
	ErrDuplicateRef     = errors.New("payment reference already exists")
	ErrGatewayFailed    = errors.New("payment gateway request failed")
	ErrInvalidWebhook   = errors.New("invalid webhook payload")
	ErrWebhookSignature = errors.New("webhook signature mismatch")
)
