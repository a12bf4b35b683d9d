package repository

import (
	"context"

	"chain-audit/backend/internal/municipality/domain"
)

// Repository defines persistence for municipalities. API keys are stored as
// SHA-256 hashes; FindActiveByAPIKeyHash is the only lookup path for them.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Municipality, error)
	FindActiveByAPIKeyHash(ctx context.Context, apiKeyHash string) (*domain.Municipality, error)
	List(ctx context.Context) ([]*domain.Municipality, error)
	Create(ctx context.Context, m *domain.Municipality) error
}
