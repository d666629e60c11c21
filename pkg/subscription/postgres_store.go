package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/apprendschap/packkit/pkg/pack"
)

// PostgresStore persists subscriptions in PostgreSQL via pgxpool.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore creates a Postgres-backed Store.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	if db == nil {
		panic("subscription: pgxpool.Pool is required")
	}
	return &PostgresStore{db: db}
}

const subscriptionColumns = `id, user_id, pack_id, pack_kind, start_at, end_at, amount_paid,
	status, active, is_trial, auto_renew, referral_sourced, renewed_at, created_at`

func (s *PostgresStore) Save(ctx context.Context, sub *Subscription) error {
	query := `
		INSERT INTO subscriptions (` + subscriptionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
	_, err := s.db.Exec(ctx, query,
		sub.ID, sub.UserID, sub.PackID, string(sub.PackKind), sub.Start, sub.End,
		sub.AmountPaid, string(sub.Status), sub.Active, sub.IsTrial, sub.AutoRenew,
		sub.ReferralSourced, sub.RenewedAt, sub.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert subscription: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, sub *Subscription) error {
	query := `
		UPDATE subscriptions
		SET end_at = $2, amount_paid = $3, status = $4, active = $5,
		    auto_renew = $6, renewed_at = $7
		WHERE id = $1`
	tag, err := s.db.Exec(ctx, query,
		sub.ID, sub.End, sub.AmountPaid, string(sub.Status), sub.Active,
		sub.AutoRenew, sub.RenewedAt,
	)
	if err != nil {
		return fmt.Errorf("update subscription: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSubscriptionNotFound
	}
	return nil
}

func (s *PostgresStore) ByID(ctx context.Context, id uuid.UUID) (*Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE id = $1`
	sub, err := scanSubscription(s.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("query subscription: %w", err)
	}
	return sub, nil
}

func (s *PostgresStore) ActiveByUser(ctx context.Context, userID uuid.UUID) ([]Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE user_id = $1 AND active = TRUE
		ORDER BY created_at DESC`
	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query active subscriptions: %w", err)
	}
	defer rows.Close()
	return collectSubscriptions(rows)
}

func (s *PostgresStore) ExpiredCandidates(ctx context.Context, now time.Time) ([]Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE active = TRUE
		  AND status IN ($1, $2)
		  AND pack_kind <> $3
		  AND end_at IS NOT NULL
		  AND end_at < $4
		ORDER BY end_at`
	rows, err := s.db.Query(ctx, query,
		string(StatusActive), string(StatusTrial), string(pack.KindFree), now)
	if err != nil {
		return nil, fmt.Errorf("query expired subscriptions: %w", err)
	}
	defer rows.Close()
	return collectSubscriptions(rows)
}

func (s *PostgresStore) HadTrial(ctx context.Context, userID uuid.UUID) (bool, error) {
	var had bool
	query := `SELECT EXISTS (SELECT 1 FROM subscriptions WHERE user_id = $1 AND is_trial = TRUE)`
	if err := s.db.QueryRow(ctx, query, userID).Scan(&had); err != nil {
		return false, fmt.Errorf("query trial history: %w", err)
	}
	return had, nil
}

func (s *PostgresStore) AppendRenewal(ctx context.Context, rec *RenewalRecord) error {
	query := `
		INSERT INTO subscription_renewals (id, subscription_id, renewed_at, days_added, amount)
		VALUES ($1, $2, $3, $4, $5)`
	_, err := s.db.Exec(ctx, query,
		rec.ID, rec.SubscriptionID, rec.RenewedAt, rec.DaysAdded, rec.Amount)
	if err != nil {
		return fmt.Errorf("insert renewal: %w", err)
	}
	return nil
}

func (s *PostgresStore) RenewalsBySubscription(ctx context.Context, subID uuid.UUID) ([]RenewalRecord, error) {
	query := `
		SELECT id, subscription_id, renewed_at, days_added, amount
		FROM subscription_renewals
		WHERE subscription_id = $1
		ORDER BY renewed_at DESC`
	rows, err := s.db.Query(ctx, query, subID)
	if err != nil {
		return nil, fmt.Errorf("query renewals: %w", err)
	}
	defer rows.Close()

	var recs []RenewalRecord
	for rows.Next() {
		var rec RenewalRecord
		if err := rows.Scan(&rec.ID, &rec.SubscriptionID, &rec.RenewedAt, &rec.DaysAdded, &rec.Amount); err != nil {
			return nil, fmt.Errorf("scan renewal: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

func scanSubscription(row pgx.Row) (*Subscription, error) {
	var (
		sub    Subscription
		kind   string
		status string
	)
	err := row.Scan(
		&sub.ID, &sub.UserID, &sub.PackID, &kind, &sub.Start, &sub.End,
		&sub.AmountPaid, &status, &sub.Active, &sub.IsTrial, &sub.AutoRenew,
		&sub.ReferralSourced, &sub.RenewedAt, &sub.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	sub.PackKind = pack.Kind(kind)
	sub.Status = Status(status)
	return &sub, nil
}

func collectSubscriptions(rows pgx.Rows) ([]Subscription, error) {
	var subs []Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		subs = append(subs, *sub)
	}
	return subs, rows.Err()
}
