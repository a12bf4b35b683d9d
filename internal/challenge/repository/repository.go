package repository

import (
	"context"
	"time"

	"chain-audit/backend/internal/challenge/domain"
)

// Repository defines persistence for auth challenges. Consume must be a
// single atomic conditional update: of any number of concurrent consumers of
// the same nonce, at most one may observe success.
type Repository interface {
	Create(ctx context.Context, c *domain.Challenge) error
	// Consume marks the challenge matching (wallet case-insensitively,
	// purpose, nonce) as consumed at now, provided it is unconsumed and
	// unexpired, and returns it. Returns (nil, nil) when no row qualifies;
	// callers cannot distinguish unknown, expired, already-consumed, or
	// mismatched challenges.
	Consume(ctx context.Context, wallet string, purpose domain.Purpose, nonce string, now time.Time) (*domain.Challenge, error)
	// DeleteExpiredBefore garbage-collects challenges whose expiry is older
	// than cutoff. Returns the number of rows removed.
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
