// Package notification emails users about subscription events: settled
// purchases and expirations.
//
// Sending is always best-effort; callers log failures and move on. The
// Disabled notifier keeps development environments quiet without any
// conditional wiring at the call sites.
package notification
