package commission

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PostgresStore persists commissions, withdrawals and configurations in
// PostgreSQL.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore creates a Postgres-backed commission Store.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	if db == nil {
		panic("commission: pgxpool.Pool is required")
	}
	return &PostgresStore{db: db}
}

func (s *PostgresStore) SaveCommission(ctx context.Context, c *Commission) error {
	query := `
		INSERT INTO commissions (id, partner_id, payer_id, reference, base, pct, amount, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := s.db.Exec(ctx, query,
		c.ID, c.PartnerID, c.PayerID, c.Reference, c.Base, c.Pct, c.Amount, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert commission: %w", err)
	}
	return nil
}

func (s *PostgresStore) SumCommissions(ctx context.Context, partnerID uuid.UUID, since time.Time) (decimal.Decimal, error) {
	var sum decimal.Decimal
	query := `
		SELECT COALESCE(SUM(amount), 0)
		FROM commissions
		WHERE partner_id = $1 AND ($2::timestamptz IS NULL OR created_at >= $2)`
	var sinceArg *time.Time
	if !since.IsZero() {
		sinceArg = &since
	}
	if err := s.db.QueryRow(ctx, query, partnerID, sinceArg).Scan(&sum); err != nil {
		return decimal.Zero, fmt.Errorf("sum commissions: %w", err)
	}
	return sum, nil
}

func (s *PostgresStore) CommissionsByPartner(ctx context.Context, partnerID uuid.UUID) ([]Commission, error) {
	query := `
		SELECT id, partner_id, payer_id, reference, base, pct, amount, created_at
		FROM commissions
		WHERE partner_id = $1
		ORDER BY created_at DESC`
	rows, err := s.db.Query(ctx, query, partnerID)
	if err != nil {
		return nil, fmt.Errorf("query commissions: %w", err)
	}
	defer rows.Close()

	var out []Commission
	for rows.Next() {
		var c Commission
		if err := rows.Scan(&c.ID, &c.PartnerID, &c.PayerID, &c.Reference,
			&c.Base, &c.Pct, &c.Amount, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan commission: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PostgresStore) SaveWithdrawal(ctx context.Context, w *WithdrawalRequest) error {
	query := `
		INSERT INTO withdrawal_requests (id, partner_id, amount, method, reference, status, created_at, processed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := s.db.Exec(ctx, query,
		w.ID, w.PartnerID, w.Amount, w.Method, w.Reference,
		string(w.Status), w.CreatedAt, w.ProcessedAt)
	if err != nil {
		return fmt.Errorf("insert withdrawal: %w", err)
	}
	return nil
}

func (s *PostgresStore) WithdrawalByID(ctx context.Context, id uuid.UUID) (*WithdrawalRequest, error) {
	var (
		w      WithdrawalRequest
		status string
	)
	query := `
		SELECT id, partner_id, amount, method, reference, status, created_at, processed_at
		FROM withdrawal_requests
		WHERE id = $1`
	err := s.db.QueryRow(ctx, query, id).Scan(
		&w.ID, &w.PartnerID, &w.Amount, &w.Method, &w.Reference,
		&status, &w.CreatedAt, &w.ProcessedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWithdrawalNotFound
		}
		return nil, fmt.Errorf("query withdrawal: %w", err)
	}
	w.Status = WithdrawalStatus(status)
	return &w, nil
}

func (s *PostgresStore) UpdateWithdrawal(ctx context.Context, w *WithdrawalRequest) error {
	query := `
		UPDATE withdrawal_requests
		SET status = $2, processed_at = $3
		WHERE id = $1`
	tag, err := s.db.Exec(ctx, query, w.ID, string(w.Status), w.ProcessedAt)
	if err != nil {
		return fmt.Errorf("update withdrawal: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrWithdrawalNotFound
	}
	return nil
}

func (s *PostgresStore) SumWithdrawals(ctx context.Context, partnerID uuid.UUID, statuses ...WithdrawalStatus) (decimal.Decimal, error) {
	names := make([]string, len(statuses))
	for i, st := range statuses {
		names[i] = string(st)
	}

	var sum decimal.Decimal
	query := `
		SELECT COALESCE(SUM(amount), 0)
		FROM withdrawal_requests
		WHERE partner_id = $1 AND status = ANY($2)`
	if err := s.db.QueryRow(ctx, query, partnerID, names).Scan(&sum); err != nil {
		return decimal.Zero, fmt.Errorf("sum withdrawals: %w", err)
	}
	return sum, nil
}

func (s *PostgresStore) ActiveConfiguration(ctx context.Context) (*Configuration, error) {
	var cfg Configuration
	query := `
		SELECT id, commission_pct, withdrawal_minimum, withdrawal_multiple,
			allowed_methods, auto_approve, active, created_at
		FROM commission_configurations
		WHERE active = TRUE
		ORDER BY created_at DESC
		LIMIT 1`
	err := s.db.QueryRow(ctx, query).Scan(
		&cfg.ID, &cfg.CommissionPct, &cfg.WithdrawalMinimum,
		&cfg.WithdrawalMultiple, &cfg.AllowedMethods, &cfg.AutoApprove,
		&cfg.Active, &cfg.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoActiveConfiguration
		}
		return nil, fmt.Errorf("query active configuration: %w", err)
	}
	return &cfg, nil
}

func (s *PostgresStore) SaveConfiguration(ctx context.Context, cfg *Configuration) error {
	query := `
		INSERT INTO commission_configurations (id, commission_pct, withdrawal_minimum, withdrawal_multiple,
			allowed_methods, auto_approve, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := s.db.Exec(ctx, query,
		cfg.ID, cfg.CommissionPct, cfg.WithdrawalMinimum,
		cfg.WithdrawalMultiple, cfg.AllowedMethods, cfg.AutoApprove,
		cfg.Active, cfg.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert configuration: %w", err)
	}
	return nil
}

func (s *PostgresStore) ActivateConfiguration(ctx context.Context, id uuid.UUID) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin activate configuration: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `UPDATE commission_configurations SET active = FALSE WHERE active = TRUE`); err != nil {
		return fmt.Errorf("deactivate configurations: %w", err)
	}
	tag, err := tx.Exec(ctx, `UPDATE commission_configurations SET active = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("activate configuration: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConfigurationNotFound
	}
	return tx.Commit(ctx)
}
