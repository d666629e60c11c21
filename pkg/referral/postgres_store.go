package referral

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/apprendschap/packkit/pkg/pg"
)

// PostgresStore persists referral links and ledgers in PostgreSQL. Ledger
// mutations are single-statement upserts, so concurrent grants never lose
// an increment, and the consumed update is guarded by an available-balance
// condition.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore creates a Postgres-backed referral Store.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	if db == nil {
		panic("referral: pgxpool.Pool is required")
	}
	return &PostgresStore{db: db}
}

func (s *PostgresStore) SaveLink(ctx context.Context, link *Link) error {
	query := `
		INSERT INTO referral_links (id, referrer_id, referred_id, code,
			referrer_bonus_granted, referred_bonus_granted, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := s.db.Exec(ctx, query,
		link.ID, link.ReferrerID, link.ReferredID, link.Code,
		link.ReferrerBonusGranted, link.ReferredBonusGranted, link.CreatedAt,
	)
	if err != nil {
		if pg.IsUniqueViolation(err) {
			return ErrAlreadyLinked
		}
		return fmt.Errorf("insert referral link: %w", err)
	}
	return nil
}

func (s *PostgresStore) LinkByReferred(ctx context.Context, referredID uuid.UUID) (*Link, error) {
	var link Link
	query := `
		SELECT id, referrer_id, referred_id, code,
			referrer_bonus_granted, referred_bonus_granted, created_at
		FROM referral_links
		WHERE referred_id = $1`
	err := s.db.QueryRow(ctx, query, referredID).Scan(
		&link.ID, &link.ReferrerID, &link.ReferredID, &link.Code,
		&link.ReferrerBonusGranted, &link.ReferredBonusGranted, &link.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLinkNotFound
		}
		return nil, fmt.Errorf("query referral link: %w", err)
	}
	return &link, nil
}

func (s *PostgresStore) UpdateLink(ctx context.Context, link *Link) error {
	query := `
		UPDATE referral_links
		SET referrer_bonus_granted = $2, referred_bonus_granted = $3
		WHERE id = $1`
	tag, err := s.db.Exec(ctx, query,
		link.ID, link.ReferrerBonusGranted, link.ReferredBonusGranted)
	if err != nil {
		return fmt.Errorf("update referral link: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrLinkNotFound
	}
	return nil
}

func (s *PostgresStore) CountByReferrer(ctx context.Context, referrerID uuid.UUID) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM referral_links WHERE referrer_id = $1`
	if err := s.db.QueryRow(ctx, query, referrerID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count referred users: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) Ledger(ctx context.Context, userID uuid.UUID) (*BonusLedger, error) {
	ledger := BonusLedger{UserID: userID}
	query := `SELECT accumulated, consumed FROM bonus_ledgers WHERE user_id = $1`
	err := s.db.QueryRow(ctx, query, userID).Scan(&ledger.Accumulated, &ledger.Consumed)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("query bonus ledger: %w", err)
	}
	return &ledger, nil
}

func (s *PostgresStore) AddAccumulated(ctx context.Context, userID uuid.UUID, weeks int) error {
	query := `
		INSERT INTO bonus_ledgers (user_id, accumulated, consumed)
		VALUES ($1, $2, 0)
		ON CONFLICT (user_id) DO UPDATE
		SET accumulated = bonus_ledgers.accumulated + EXCLUDED.accumulated`
	if _, err := s.db.Exec(ctx, query, userID, weeks); err != nil {
		return fmt.Errorf("credit bonus ledger: %w", err)
	}
	return nil
}

func (s *PostgresStore) AddConsumed(ctx context.Context, userID uuid.UUID, weeks int) error {
	query := `
		UPDATE bonus_ledgers
		SET consumed = consumed + $2
		WHERE user_id = $1 AND accumulated - consumed >= $2`
	tag, err := s.db.Exec(ctx, query, userID, weeks)
	if err != nil {
		return fmt.Errorf("debit bonus ledger: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInsufficientBonus
	}
	return nil
}
