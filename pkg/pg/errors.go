package pg

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrFailedToParseConfig   = errors.New("failed to parse postgres config")
	ErrConnectionFailed      = errors.New("failed to open postgres connection")
	ErrHealthcheckFailed     = errors.New("postgres healthcheck failed")
	ErrMigrationsFailed      = errors.New("failed to apply migrations")
	ErrMigrationsPathMissing = errors.New("migrations path not provided")
)

// IsNotFound reports whether err is pgx's no-rows result.
func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// IsUniqueViolation reports a unique constraint violation (SQLSTATE 23505),
// how duplicate payment references and referral links surface.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// IsForeignKeyViolation reports a referential integrity violation
// (SQLSTATE 23503).
func IsForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
