// Package subscription manages the lifecycle of pack subscriptions: creation
// after payment settlement or through zero-cost grants, validity and
// remaining-time queries, renewal inside the 30-day window, suspension, and
// the deactivation rules that keep at most one paid subscription live per user.
//
// Subscriptions are materialized only after a pending payment settles or
// through explicit trial/referral/discovery grants; the package never creates
// one as a side effect of a purchase request. Persistence goes through the
// Store interface, with an in-memory implementation for tests and a
// PostgreSQL implementation for production.
package subscription
