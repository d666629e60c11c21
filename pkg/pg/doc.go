// Package pg bootstraps the PostgreSQL layer: a pgx/v5 connection pool
// with startup retries, goose schema migrations, a health check, and error
// classification helpers shared by the store implementations.
//
// Configuration comes from environment variables via the Config struct;
// see the field tags for variable names and defaults.
package pg
