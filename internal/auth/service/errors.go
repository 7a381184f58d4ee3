package service

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors returned by the session service. These are the complete
// external vocabulary: the service is the only layer that collapses the
// lower components' fine-grained errors into these categories, so the
// collapsing is a deliberate decision rather than an accident of propagation.
var (
	// ErrEmailTaken is returned by Register for an already-registered email.
	ErrEmailTaken = errors.New("email already registered")

	// ErrInvalidEmail is returned by Register for a malformed email.
	ErrInvalidEmail = errors.New("invalid email format")

	// ErrInvalidRole is returned by Register for an unknown role.
	ErrInvalidRole = errors.New("unknown role")

	// ErrInvalidCredentials is returned by Login for a wrong password and,
	// identically, for a nonexistent account, so responses do not reveal
	// which emails have accounts.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrAccountDisabled is returned by Login for a deactivated account.
	// Deliberately distinct from ErrInvalidCredentials: it is only reachable
	// with the correct password, so it confirms nothing to an outsider.
	ErrAccountDisabled = errors.New("account is disabled")

	// ErrRateLimited is returned by Login when too many failed attempts have
	// accumulated. The response does not say whether the identity or the
	// origin counter tripped.
	ErrRateLimited = errors.New("too many failed attempts, try again later")

	// ErrInvalidRefreshToken is the single error for every refresh failure:
	// expired, tampered, revoked, already rotated, or owned by a disabled
	// account. Deliberately coarse so a caller cannot use the response as a
	// replay-detection oracle; internal logs keep the distinction.
	ErrInvalidRefreshToken = errors.New("invalid refresh token")

	// ErrServiceUnavailable is returned when a correctness-critical store
	// (accounts, refresh tokens) is unreachable. Retryable.
	ErrServiceUnavailable = errors.New("service temporarily unavailable")
)

// WeakPasswordError reports every policy violation of a rejected password.
type WeakPasswordError struct {
	Reasons []string
}

func (e *WeakPasswordError) Error() string {
	return "weak password: " + strings.Join(e.Reasons, "; ")
}

// Kind tags an error with its external category so callers can branch
// without matching message strings.
type Kind string

const (
	KindValidation     Kind = "validation"
	KindConflict       Kind = "conflict"
	KindAuthentication Kind = "authentication"
	KindRateLimited    Kind = "rate_limited"
	KindToken          Kind = "token"
	KindInfrastructure Kind = "infrastructure"
)

// Classify maps a session service error to its Kind. Unknown errors classify
// as infrastructure: anything the closed vocabulary does not name is a fault,
// not a user outcome.
func Classify(err error) Kind {
	var weak *WeakPasswordError
	switch {
	case errors.As(err, &weak), errors.Is(err, ErrInvalidEmail), errors.Is(err, ErrInvalidRole):
		return KindValidation
	case errors.Is(err, ErrEmailTaken):
		return KindConflict
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrAccountDisabled):
		return KindAuthentication
	case errors.Is(err, ErrRateLimited):
		return KindRateLimited
	case errors.Is(err, ErrInvalidRefreshToken):
		return KindToken
	default:
		return KindInfrastructure
	}
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrServiceUnavailable, op, err)
}
