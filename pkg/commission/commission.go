package commission

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Commission is one partner's cut of one settled payment.
type Commission struct {
	ID        uuid.UUID
	PartnerID uuid.UUID
	PayerID   uuid.UUID
	// Reference is the payment reference the commission derives from.
	Reference string
	Base      decimal.Decimal
	Pct       decimal.Decimal
	Amount    decimal.Decimal
	CreatedAt time.Time
}

// Configuration is a commission program revision. Exactly one is active
// at a time; accruals and withdrawal rules read the active one.
type Configuration struct {
	ID                 uuid.UUID
	CommissionPct      decimal.Decimal
	WithdrawalMinimum  decimal.Decimal
	WithdrawalMultiple decimal.Decimal
	// AllowedMethods lists accepted payout channels; empty means any.
	AllowedMethods []string
	// AutoApprove approves withdrawal requests on creation instead of
	// waiting for an operator.
	AutoApprove bool
	Active      bool
	CreatedAt   time.Time
}

// MethodAllowed reports whether a payout method passes the
// configuration's allow-list.
func (c *Configuration) MethodAllowed(method string) bool {
	if len(c.AllowedMethods) == 0 {
		return true
	}
	for _, m := range c.AllowedMethods {
		if m == method {
			return true
		}
	}
	return false
}

// WithdrawalStatus of a withdrawal request.
type WithdrawalStatus string

const (
	WithdrawalPending   WithdrawalStatus = "pending"
	WithdrawalApproved  WithdrawalStatus = "approved"
	WithdrawalRejected  WithdrawalStatus = "rejected"
	WithdrawalProcessed WithdrawalStatus = "processed"
)

// WithdrawalRequest is a partner's ask to be paid out. Creating one does
// not deduct anything; only approved requests count against the balance.
type WithdrawalRequest struct {
	ID        uuid.UUID
	PartnerID uuid.UUID
	Amount    decimal.Decimal
	// Method is the payout channel, e.g. "wave" or "orange_money".
	Method string
	// Reference is the payout account, e.g. a mobile money number.
	Reference   string
	Status      WithdrawalStatus
	CreatedAt   time.Time
	ProcessedAt *time.Time
}

// Stats summarizes a partner's commission standing.
type Stats struct {
	Total        decimal.Decimal
	CurrentMonth decimal.Decimal
	Trailing30d  decimal.Decimal
	Available    decimal.Decimal
	Eligible     bool
}
