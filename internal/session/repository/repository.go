package repository

import (
	"context"
	"errors"
	"time"

	"govcms/backend/internal/session/domain"
)

var (
	// ErrDuplicateToken is returned by Create when the token hash already
	// exists. Practically unreachable with 256-bit tokens, but surfaced
	// rather than swallowed.
	ErrDuplicateToken = errors.New("refresh token already exists")

	// ErrTokenNotFound is returned by Rotate when no live row matches the
	// old token hash. This is what the loser of a concurrent rotation sees:
	// the winner has already replaced the hash.
	ErrTokenNotFound = errors.New("refresh token not found")

	// ErrTokenExpired is returned by Rotate when the row exists but its
	// expiry has passed by the store clock.
	ErrTokenExpired = errors.New("refresh token expired")
)

// Repository defines persistence for refresh tokens.
//
// Rotate must be atomic: a single conditional update keyed on the old token
// hash, so two concurrent refresh calls holding the same stale token cannot
// both succeed.
type Repository interface {
	Create(ctx context.Context, t *domain.RefreshToken) error
	GetByHash(ctx context.Context, tokenHash string) (*domain.RefreshToken, error)
	Rotate(ctx context.Context, oldHash, newHash string, expiresAt time.Time) (*domain.RefreshToken, error)
	// DeleteByHash removes the row for tokenHash. accountID, when non-empty,
	// scopes the delete to that account. Deleting an absent row is not an error.
	DeleteByHash(ctx context.Context, tokenHash, accountID string) error
	DeleteAllExpired(ctx context.Context, before time.Time) (int64, error)
}
