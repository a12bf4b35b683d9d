package repository

import (
	"context"
	"database/sql"
	"errors"

	"chain-audit/backend/internal/validator/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a validator repository that uses the given db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID returns the validator for id, or nil if not found.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Validator, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, wallet, active, validated_count
		FROM validators WHERE id = $1`, id)
	return scanValidator(row)
}

// GetActiveByWallet returns the active validator bound to wallet
// (case-insensitive), or nil if none exists.
func (r *PostgresRepository) GetActiveByWallet(ctx context.Context, wallet string) (*domain.Validator, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, wallet, active, validated_count
		FROM validators WHERE LOWER(wallet) = LOWER($1) AND active`, wallet)
	return scanValidator(row)
}

// List returns all validators ordered by name.
func (r *PostgresRepository) List(ctx context.Context) ([]*domain.Validator, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, wallet, active, validated_count
		FROM validators ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Validator
	for rows.Next() {
		var v domain.Validator
		if err := rows.Scan(&v.ID, &v.Name, &v.Wallet, &v.Active, &v.ValidatedCount); err != nil {
			return nil, err
		}
		out = append(out, &v)
	}
	return out, rows.Err()
}

// Create persists the validator. The validator must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, v *domain.Validator) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO validators (id, name, wallet, active, validated_count)
		VALUES ($1, $2, $3, $4, $5)`,
		v.ID, v.Name, v.Wallet, v.Active, v.ValidatedCount,
	)
	return err
}

func scanValidator(row *sql.Row) (*domain.Validator, error) {
	var v domain.Validator
	if err := row.Scan(&v.ID, &v.Name, &v.Wallet, &v.Active, &v.ValidatedCount); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &v, nil
}
