package payment

import (
	"context"

	"github.com/shopspring/decimal"
)

// CheckoutParams describes a hosted checkout to open on the gateway.
type CheckoutParams struct {
	Amount   decimal.Decimal
	Currency string
	// ClientReference travels through the gateway and comes back on the
	// webhook, tying the confirmation to the pending payment.
	ClientReference string
}

// Checkout is the gateway's answer: where to send the user and the
// transaction ID the confirmation will carry.
type Checkout struct {
	Reference   string
	CheckoutURL string
}

// Gateway opens hosted checkout sessions with the payment provider.
type Gateway interface {
	CreateCheckout(ctx context.Context, params CheckoutParams) (*Checkout, error)
}
