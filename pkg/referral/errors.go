package referral

import "errors"

var (
	ErrInvalidCode       = errors.New("referral code not found")
	ErrSelfReferral      = errors.New("users cannot refer themselves")
	ErrAlreadyLinked     = errors.New("user already has a referrer")
	ErrLinkNotFound      = errors.New("referral link not found")
	ErrInsufficientBonus = errors.New("not enough bonus weeks available")
)
