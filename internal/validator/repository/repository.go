package repository

import (
	"context"

	"chain-audit/backend/internal/validator/domain"
)

// Repository defines persistence for validators. The validated counter is
// incremented only inside the record transition transaction, never here.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Validator, error)
	// GetActiveByWallet matches the wallet case-insensitively and returns
	// nil for unknown or inactive validators.
	GetActiveByWallet(ctx context.Context, wallet string) (*domain.Validator, error)
	List(ctx context.Context) ([]*domain.Validator, error)
	Create(ctx context.Context, v *domain.Validator) error
}
