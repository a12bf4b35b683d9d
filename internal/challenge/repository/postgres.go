package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"chain-audit/backend/internal/challenge/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a challenge repository that uses the given db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create persists the challenge. The challenge must have Nonce set.
func (r *PostgresRepository) Create(ctx context.Context, c *domain.Challenge) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO auth_challenges (nonce, wallet, purpose, message, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		c.Nonce, c.Wallet, string(c.Purpose), c.Message, c.CreatedAt, c.ExpiresAt,
	)
	return err
}

// Consume flips consumed_at from NULL to now in one conditional update; the
// RETURNING clause makes the row count the success signal, so two concurrent
// consumers of the same nonce cannot both win.
func (r *PostgresRepository) Consume(ctx context.Context, wallet string, purpose domain.Purpose, nonce string, now time.Time) (*domain.Challenge, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE auth_challenges
		SET consumed_at = $1
		WHERE nonce = $2
		  AND LOWER(wallet) = LOWER($3)
		  AND purpose = $4
		  AND consumed_at IS NULL
		  AND expires_at > $1
		RETURNING nonce, wallet, purpose, message, created_at, expires_at, consumed_at`,
		now, nonce, wallet, string(purpose),
	)
	c, err := scanChallenge(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return c, nil
}

// DeleteExpiredBefore removes challenges that expired before cutoff.
func (r *PostgresRepository) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM auth_challenges WHERE expires_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanChallenge(row *sql.Row) (*domain.Challenge, error) {
	var c domain.Challenge
	var purpose string
	var consumedAt sql.NullTime
	if err := row.Scan(&c.Nonce, &c.Wallet, &purpose, &c.Message, &c.CreatedAt, &c.ExpiresAt, &consumedAt); err != nil {
		return nil, err
	}
	c.Purpose = domain.Purpose(purpose)
	if consumedAt.Valid {
		c.ConsumedAt = &consumedAt.Time
	}
	return &c, nil
}
