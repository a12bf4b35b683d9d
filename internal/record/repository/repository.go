package repository

import (
	"context"

	"chain-audit/backend/internal/record/domain"
)

// ListFilters narrows public record listings. Zero values mean "no filter";
// Page is 1-based.
type ListFilters struct {
	MunicipalityID string
	Status         domain.Status
	SpendType      domain.SpendType
	DateFrom       string // YYYY-MM-DD, inclusive
	DateTo         string // YYYY-MM-DD, inclusive
	AmountMin      string // normalized decimal string
	AmountMax      string
	Page           int
	Limit          int
}

// Repository defines persistence for audit records. Transition is the only
// write that touches two tables; it must re-check the PENDIENTE precondition
// and increment the validator counter in one transaction.
type Repository interface {
	// Create persists the record and fills OnChainID and RecordedAt from the
	// store-assigned identity column and insert timestamp.
	Create(ctx context.Context, rec *domain.Record) error
	GetByID(ctx context.Context, id string) (*domain.Record, error)
	// List returns one page of records plus the total count across pages.
	List(ctx context.Context, f ListFilters) ([]*domain.Record, int64, error)
	ListByMunicipality(ctx context.Context, municipalityID string) ([]*domain.Record, error)
	// AttachDocument sets document_cid regardless of status. Returns
	// (nil, nil) when id is unknown.
	AttachDocument(ctx context.Context, id, cid string) (*domain.Record, error)
	// Transition atomically moves the record from PENDIENTE to status,
	// setting validator_id and observation_reason, and — for VALIDADO —
	// incrementing the validator's validated_count in the same transaction.
	// Returns (nil, nil) when no PENDIENTE row with that id exists, which
	// callers surface as a status conflict.
	Transition(ctx context.Context, id, validatorID string, status domain.Status, reason *string) (*domain.Record, error)
}
