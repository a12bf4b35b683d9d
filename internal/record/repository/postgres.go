package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"chain-audit/backend/internal/record/domain"
)

const recordColumns = `id, on_chain_id, record_hash, municipality_id, spend_type, amount::text,
	currency, description, to_char(expense_date, 'YYYY-MM-DD'), recorded_at,
	management_period, status, validator_id, observation_reason, document_cid, tx_hash, metadata`

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a record repository that uses the given db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts the record; on_chain_id and recorded_at come back from the
// store (identity column and insert default) and are written into rec.
func (r *PostgresRepository) Create(ctx context.Context, rec *domain.Record) error {
	metadata, err := json.Marshal(rec.Metadata)
	if err != nil {
		return err
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO audit_records (
			id, record_hash, municipality_id, spend_type, amount, currency,
			description, expense_date, management_period, status, tx_hash, metadata
		) VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8::date, $9, $10, $11, $12)
		RETURNING on_chain_id, recorded_at`,
		rec.ID, rec.RecordHash, rec.MunicipalityID, string(rec.SpendType), rec.Amount,
		rec.Currency, rec.Description, rec.ExpenseDate, rec.ManagementPeriod,
		string(rec.Status), rec.TxHash, metadata,
	)
	return row.Scan(&rec.OnChainID, &rec.RecordedAt)
}

// GetByID returns the record for id, or nil if not found.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Record, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM audit_records WHERE id = $1`, id)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return rec, nil
}

// List returns one page of records, newest first, plus the total count for
// the same filters.
func (r *PostgresRepository) List(ctx context.Context, f ListFilters) ([]*domain.Record, int64, error) {
	var conds []string
	var args []any
	add := func(cond string, val any) {
		args = append(args, val)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.MunicipalityID != "" {
		add("municipality_id = $%d", f.MunicipalityID)
	}
	if f.Status != "" {
		add("status = $%d", string(f.Status))
	}
	if f.SpendType != "" {
		add("spend_type = $%d", string(f.SpendType))
	}
	if f.DateFrom != "" {
		add("expense_date >= $%d::date", f.DateFrom)
	}
	if f.DateTo != "" {
		add("expense_date <= $%d::date", f.DateTo)
	}
	if f.AmountMin != "" {
		add("amount >= $%d::numeric", f.AmountMin)
	}
	if f.AmountMax != "" {
		add("amount <= $%d::numeric", f.AmountMax)
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_records`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}
	page := f.Page
	if page <= 0 {
		page = 1
	}
	pageArgs := append(args, limit, (page-1)*limit)
	query := `SELECT ` + recordColumns + ` FROM audit_records` + where +
		fmt.Sprintf(` ORDER BY recorded_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	rows, err := r.db.QueryContext(ctx, query, pageArgs...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out, err := collectRecords(rows)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// ListByMunicipality returns every record owned by the municipality, newest
// first.
func (r *PostgresRepository) ListByMunicipality(ctx context.Context, municipalityID string) ([]*domain.Record, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM audit_records WHERE municipality_id = $1 ORDER BY recorded_at DESC`,
		municipalityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRecords(rows)
}

// AttachDocument sets document_cid for the record, in any status, and
// returns the updated row, or (nil, nil) when id is unknown.
func (r *PostgresRepository) AttachDocument(ctx context.Context, id, cid string) (*domain.Record, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE audit_records SET document_cid = $1 WHERE id = $2
		RETURNING `+recordColumns, cid, id)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return rec, nil
}

// Transition performs the PENDIENTE-only status move and the validator
// counter increment as one transaction. The WHERE status = 'PENDIENTE'
// predicate re-checks the precondition inside the atomic unit, so of two
// concurrent transitions exactly one sees a row and the loser gets
// (nil, nil).
func (r *PostgresRepository) Transition(ctx context.Context, id, validatorID string, status domain.Status, reason *string) (*domain.Record, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `
		UPDATE audit_records
		SET status = $1, validator_id = $2, observation_reason = $3
		WHERE id = $4 AND status = 'PENDIENTE'
		RETURNING `+recordColumns,
		string(status), validatorID, reason, id,
	)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	if status == domain.StatusValidado {
		if _, err := tx.ExecContext(ctx,
			`UPDATE validators SET validated_count = validated_count + 1 WHERE id = $1`,
			validatorID); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return rec, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*domain.Record, error) {
	var rec domain.Record
	var spendType, status string
	var validatorID, observationReason, documentCID sql.NullString
	var metadata []byte
	if err := row.Scan(
		&rec.ID, &rec.OnChainID, &rec.RecordHash, &rec.MunicipalityID, &spendType,
		&rec.Amount, &rec.Currency, &rec.Description, &rec.ExpenseDate, &rec.RecordedAt,
		&rec.ManagementPeriod, &status, &validatorID, &observationReason, &documentCID,
		&rec.TxHash, &metadata,
	); err != nil {
		return nil, err
	}
	rec.SpendType = domain.SpendType(spendType)
	rec.Status = domain.Status(status)
	rec.ValidatorID = nullStringPtr(validatorID)
	rec.ObservationReason = nullStringPtr(observationReason)
	rec.DocumentCID = nullStringPtr(documentCID)
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &rec.Metadata); err != nil {
			return nil, err
		}
	}
	if rec.Metadata == nil {
		rec.Metadata = map[string]any{}
	}
	return &rec, nil
}

func nullStringPtr(n sql.NullString) *string {
	if !n.Valid {
		return nil
	}
	return &n.String
}

func collectRecords(rows *sql.Rows) ([]*domain.Record, error) {
	var out []*domain.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
