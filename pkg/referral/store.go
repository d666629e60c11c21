package referral

import (
	"context"

	"github.com/google/uuid"
)

// Store persists referral links and bonus ledgers.
type Store interface {
	// SaveLink inserts a link. ErrAlreadyLinked when the referred user
	// already has one.
	SaveLink(ctx context.Context, link *Link) error

	// LinkByReferred returns the link for a referred user.
	// ErrLinkNotFound when the user was never referred.
	LinkByReferred(ctx context.Context, referredID uuid.UUID) (*Link, error)

	// UpdateLink persists grant flag changes.
	UpdateLink(ctx context.Context, link *Link) error

	// CountByReferrer returns how many users the referrer brought in.
	CountByReferrer(ctx context.Context, referrerID uuid.UUID) (int, error)

	// Ledger returns the user's bonus ledger, zero-valued when the user
	// never earned a bonus.
	Ledger(ctx context.Context, userID uuid.UUID) (*BonusLedger, error)

	// AddAccumulated credits earned bonus weeks.
	AddAccumulated(ctx context.Context, userID uuid.UUID, weeks int) error

	// AddConsumed debits spent bonus weeks.
	AddConsumed(ctx context.Context, userID uuid.UUID, weeks int) error
}

// CodeDirectory resolves a referral code to the user who owns it. Codes
// live on user profiles, outside this package.
type CodeDirectory interface {
	// UserIDByCode returns ErrInvalidCode for unknown codes.
	UserIDByCode(ctx context.Context, code string) (uuid.UUID, error)
}
