// Package sweeper demotes lapsed subscriptions to the free tier and drives
// the pending payment fallback on a schedule.
//
// An expiration sweep is two explicit steps per subscription: mark the old
// row expired and inactive, then create a fresh unlimited free-tier
// subscription for the same user. The old row is never resurrected, and
// the active filter on candidates makes repeated sweeps naturally
// idempotent.
package sweeper
