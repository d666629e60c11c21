package commission

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Store persists commissions, withdrawal requests and program
// configurations.
type Store interface {
	// SaveCommission inserts an accrued commission.
	SaveCommission(ctx context.Context, c *Commission) error

	// SumCommissions totals a partner's commissions accrued at or after
	// since. A zero since means all time.
	SumCommissions(ctx context.Context, partnerID uuid.UUID, since time.Time) (decimal.Decimal, error)

	// CommissionsByPartner lists a partner's commissions, most recent
	// first.
	CommissionsByPartner(ctx context.Context, partnerID uuid.UUID) ([]Commission, error)

	// SaveWithdrawal inserts a withdrawal request.
	SaveWithdrawal(ctx context.Context, w *WithdrawalRequest) error

	// WithdrawalByID returns a withdrawal request.
	WithdrawalByID(ctx context.Context, id uuid.UUID) (*WithdrawalRequest, error)

	// UpdateWithdrawal persists a status change.
	UpdateWithdrawal(ctx context.Context, w *WithdrawalRequest) error

	// SumWithdrawals totals a partner's requests in the given statuses.
	SumWithdrawals(ctx context.Context, partnerID uuid.UUID, statuses ...WithdrawalStatus) (decimal.Decimal, error)

	// ActiveConfiguration returns the configuration accruals use.
	// ErrNoActiveConfiguration when none is active.
	ActiveConfiguration(ctx context.Context) (*Configuration, error)

	// SaveConfiguration inserts a configuration revision.
	SaveConfiguration(ctx context.Context, cfg *Configuration) error

	// ActivateConfiguration makes the given revision the active one and
	// deactivates the rest.
	ActivateConfiguration(ctx context.Context, id uuid.UUID) error
}
