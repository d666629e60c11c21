// Package redis connects to the Redis instance backing the entitlement
// consumption counters, with startup retries and a readiness probe.
package redis
