// Package payment tracks pack purchases from checkout to settlement.
//
// A purchase creates a PendingPayment bound to a gateway checkout. The
// gateway later confirms it through a webhook, and settlement turns the
// pending record into one or more subscriptions. Settlement is idempotent:
// the pending to settled transition happens exactly once per payment
// reference, no matter how many times the confirmation is delivered.
//
// Payments missed by the webhook are picked up by SweepPending after a
// grace window and settled from their own recorded amount.
package payment
