// Package entitlement resolves which pack entitlement governs a user and
// enforces its monthly quotas and feature flags.
//
// Quotas apply to new content only. Consuming a resource marks it for the
// current calendar month; checking the same resource again in that month is
// always granted, even with the quota exhausted. Consumption keys embed
// year and month, so quotas roll over implicitly with no reset job.
//
// The guard never leaves a user unconfigured: with no subscription at all,
// feature resolution falls back to the platform's free pack, while access
// checks are denied outright.
package entitlement
