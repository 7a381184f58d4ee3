package repository

import (
	"context"
	"errors"
	"time"

	"govcms/backend/internal/account/domain"
)

// ErrDuplicateEmail is returned by Create when the normalized email already
// has an account. The service pre-checks with GetByEmail, but two concurrent
// registrations can still race into the unique index.
var ErrDuplicateEmail = errors.New("email already registered")

// Repository defines persistence for accounts.
//
// Get methods return (nil, nil) when no row matches; errors are reserved for
// database failures.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	Create(ctx context.Context, a *domain.Account) error
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
}
