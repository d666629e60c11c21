package payment

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status of a pending payment.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSettled   Status = "settled"
	StatusCancelled Status = "cancelled"
	StatusFailed    Status = "failed"
)

// childReferenceSuffix joins a parent payment reference with a child user
// ID to form the zero-amount audit reference created during family fan-out.
const childReferenceSuffix = "_ENFANT_"

// PendingPayment is a purchase awaiting (or past) gateway confirmation.
// Reference is the gateway transaction ID and the idempotency key for
// settlement. Child audit records carry the parent reference plus a
// suffix and a zero amount.
type PendingPayment struct {
	ID               uuid.UUID
	Reference        string
	UserID           uuid.UUID
	PayerID          *uuid.UUID
	PackID           uuid.UUID
	Amount           decimal.Decimal
	Currency         string
	Status           Status
	CheckoutURL      string
	AutoRenew        bool
	GatewayReference string
	SubscriptionID   *uuid.UUID
	CreatedAt        time.Time
	SettledAt        *time.Time
}

// Payer returns who is charged: PayerID when a guardian pays for a
// child, otherwise the recipient.
func (p *PendingPayment) Payer() uuid.UUID {
	if p.PayerID != nil {
		return *p.PayerID
	}
	return p.UserID
}

// ChildReference derives the audit reference for a family member.
func ChildReference(parentReference string, childID uuid.UUID) string {
	return parentReference + childReferenceSuffix + childID.String()
}
