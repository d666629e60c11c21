package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/apprendschap/packkit/pkg/pg"
)

// PostgresStore persists pending payments in PostgreSQL. The settlement
// transition is a single conditional UPDATE, so concurrent settlements of
// the same reference race on the row and exactly one wins.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore creates a Postgres-backed payment Store.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	if db == nil {
		panic("payment: pgxpool.Pool is required")
	}
	return &PostgresStore{db: db}
}

const paymentColumns = `id, reference, user_id, payer_id, pack_id, amount, currency, status,
	checkout_url, auto_renew, gateway_reference, subscription_id, created_at, settled_at`

func (s *PostgresStore) Create(ctx context.Context, p *PendingPayment) error {
	query := `
		INSERT INTO pending_payments (` + paymentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
	_, err := s.db.Exec(ctx, query,
		p.ID, p.Reference, p.UserID, p.PayerID, p.PackID, p.Amount, p.Currency,
		string(p.Status), p.CheckoutURL, p.AutoRenew, p.GatewayReference,
		p.SubscriptionID, p.CreatedAt, p.SettledAt,
	)
	if err != nil {
		if pg.IsUniqueViolation(err) {
			return ErrDuplicateRef
		}
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

func (s *PostgresStore) ByReference(ctx context.Context, reference string) (*PendingPayment, error) {
	query := `SELECT ` + paymentColumns + ` FROM pending_payments WHERE reference = $1`
	p, err := scanPayment(s.db.QueryRow(ctx, query, reference))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("query payment: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) Settle(ctx context.Context, reference, gatewayRef string, at time.Time) (*PendingPayment, error) {
	query := `
		UPDATE pending_payments
		SET status = $2, gateway_reference = $3, settled_at = $4
		WHERE reference = $1 AND status = $5
		RETURNING ` + paymentColumns
	p, err := scanPayment(s.db.QueryRow(ctx, query,
		reference, string(StatusSettled), gatewayRef, at, string(StatusPending)))
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("settle payment: %w", err)
	}

	// The conditional update missed: distinguish unknown reference from a
	// payment that left the pending state.
	existing, lookupErr := s.ByReference(ctx, reference)
	if lookupErr != nil {
		return nil, lookupErr
	}
	if existing.Status == StatusSettled {
		return nil, ErrAlreadySettled
	}
	return nil, ErrNotPending
}

func (s *PostgresStore) LinkSubscription(ctx context.Context, reference string, subscriptionID uuid.UUID) error {
	query := `UPDATE pending_payments SET subscription_id = $2 WHERE reference = $1`
	tag, err := s.db.Exec(ctx, query, reference, subscriptionID)
	if err != nil {
		return fmt.Errorf("link payment subscription: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPaymentNotFound
	}
	return nil
}

func (s *PostgresStore) MarkFailed(ctx context.Context, reference string) error {
	query := `
		UPDATE pending_payments
		SET status = $2
		WHERE reference = $1 AND status = $3`
	tag, err := s.db.Exec(ctx, query, reference, string(StatusFailed), string(StatusPending))
	if err != nil {
		return fmt.Errorf("mark payment failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, lookupErr := s.ByReference(ctx, reference); lookupErr != nil {
			return lookupErr
		}
		return ErrNotPending
	}
	return nil
}

func (s *PostgresStore) PendingOlderThan(ctx context.Context, cutoff time.Time) ([]PendingPayment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM pending_payments
		WHERE status = $1 AND created_at < $2
		ORDER BY created_at`
	rows, err := s.db.Query(ctx, query, string(StatusPending), cutoff)
	if err != nil {
		return nil, fmt.Errorf("query pending payments: %w", err)
	}
	defer rows.Close()

	var out []PendingPayment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func scanPayment(row pgx.Row) (*PendingPayment, error) {
	var (
		p      PendingPayment
		status string
	)
	err := row.Scan(
		&p.ID, &p.Reference, &p.UserID, &p.PayerID, &p.PackID, &p.Amount,
		&p.Currency, &status, &p.CheckoutURL, &p.AutoRenew,
		&p.GatewayReference, &p.SubscriptionID, &p.CreatedAt, &p.SettledAt,
	)
	if err != nil {
		return nil, err
	}
	p.Status = Status(status)
	return &p, nil
}
