package referral

import (
	"time"

	"github.com/google/uuid"
)

// BonusWeek is the unit of a referral reward.
const BonusWeek = 7 * 24 * time.Hour

// Link ties a referred user to their referrer. The grant flags make each
// side's reward idempotent.
type Link struct {
	ID                   uuid.UUID
	ReferrerID           uuid.UUID
	ReferredID           uuid.UUID
	Code                 string
	ReferrerBonusGranted bool
	ReferredBonusGranted bool
	CreatedAt            time.Time
}

// BonusLedger counts a user's earned and spent free-week units.
type BonusLedger struct {
	UserID      uuid.UUID
	Accumulated int
	Consumed    int
}

// Available returns the spendable balance.
func (l BonusLedger) Available() int {
	return l.Accumulated - l.Consumed
}

// Stats summarizes a referrer's program standing.
type Stats struct {
	ReferredCount  int
	WeeksEarned    int
	WeeksConsumed  int
	WeeksAvailable int
}
