package subscription

import (
	"errors"
	"fmt"
)

var (
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrAccessDenied         = errors.New("subscription does not belong to this user")
	ErrNotActive            = errors.New("subscription is not active")
	ErrTrialAlreadyUsed     = errors.New("free trial already used")
	ErrTrialNotOffered      = errors.New("pack does not offer a free trial")
	ErrUnlimitedEnd         = errors.New("subscription has no end date to extend")
	ErrAlreadySubscribed    = errors.New("user already has an active subscription")
)

// RenewalNotAvailableError is returned when a renewal is attempted before the
// 30-day window opens. DaysUntilWindow is how many more days must pass.
type RenewalNotAvailableError struct {
	DaysUntilWindow int
}

func (e *RenewalNotAvailableError) Error() string {
	return fmt.Sprintf("renewal available in %d days", e.DaysUntilWindow)
}
