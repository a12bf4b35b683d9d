package repository

import (
	"context"
	"database/sql"
	"errors"

	"chain-audit/backend/internal/municipality/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a municipality repository that uses the given db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID returns the municipality for id, or nil if not found.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Municipality, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, wallet, api_key_hash, active, created_at
		FROM municipalities WHERE id = $1`, id)
	return scanMunicipality(row)
}

// FindActiveByAPIKeyHash returns the active municipality whose stored API key
// hash equals apiKeyHash, or nil if none matches.
func (r *PostgresRepository) FindActiveByAPIKeyHash(ctx context.Context, apiKeyHash string) (*domain.Municipality, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, wallet, api_key_hash, active, created_at
		FROM municipalities WHERE api_key_hash = $1 AND active`, apiKeyHash)
	return scanMunicipality(row)
}

// List returns all municipalities ordered by name.
func (r *PostgresRepository) List(ctx context.Context) ([]*domain.Municipality, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, wallet, api_key_hash, active, created_at
		FROM municipalities ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Municipality
	for rows.Next() {
		var m domain.Municipality
		if err := rows.Scan(&m.ID, &m.Name, &m.Wallet, &m.APIKeyHash, &m.Active, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

// Create persists the municipality. The municipality must have ID and
// APIKeyHash set.
func (r *PostgresRepository) Create(ctx context.Context, m *domain.Municipality) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO municipalities (id, name, wallet, api_key_hash, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		m.ID, m.Name, m.Wallet, m.APIKeyHash, m.Active, m.CreatedAt,
	)
	return err
}

func scanMunicipality(row *sql.Row) (*domain.Municipality, error) {
	var m domain.Municipality
	if err := row.Scan(&m.ID, &m.Name, &m.Wallet, &m.APIKeyHash, &m.Active, &m.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}
