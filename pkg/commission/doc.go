// Package commission pays partners a percentage of the settled purchases
// made by users they referred.
//
// Accrual is driven by payment settlement and silently skips payers with
// no referrer, referrers who are not partners, and zero amounts. All money
// math is decimal; the percentage comes from the single active commission
// configuration at accrual time. Withdrawals are requests an external
// operator approves and pays out; the balance only shrinks when a request
// reaches the approved state.
package commission
