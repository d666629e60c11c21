package commission

import "errors"

var (
	ErrNoActiveConfiguration = errors.New("no active commission configuration")
	ErrConfigurationNotFound = errors.New("commission configuration not found")
	ErrWithdrawalNotFound    = errors.New("withdrawal request not found")
	ErrBelowMinimum          = errors.New("withdrawal amount below minimum")
	ErrNotMultiple           = errors.New("withdrawal amount is not a multiple of the allowed step")
	ErrExceedsAvailable      = errors.New("withdrawal amount exceeds available balance")
	ErrMethodNotAllowed      = errors.New("payout method not allowed")
	ErrInvalidTransition     = errors.New("invalid withdrawal status transition")
)
