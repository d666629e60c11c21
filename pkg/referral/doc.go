// Package referral links users to the referrer whose code they signed up
// with and tracks the free-week bonuses the program hands out.
//
// A referral link is permanent: one referrer per user, forever. Each side
// of the link earns its reward exactly once, guarded by per-link grant
// flags. The referred user gets a one-week trial subscription at signup;
// the referrer earns one free-week unit when the referred user's first
// real payment settles. Earned weeks sit in a ledger until the referrer
// spends them to extend their own subscription.
package referral
