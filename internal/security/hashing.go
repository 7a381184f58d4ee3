package security

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidPassword is returned by Hash for input bcrypt cannot accept
	// (empty, or longer than 72 bytes).
	ErrInvalidPassword = errors.New("password must be 1-72 bytes")

	// ErrPasswordMismatch is returned by Compare when the password does not
	// match the stored hash.
	ErrPasswordMismatch = errors.New("password mismatch")

	// ErrCorruptHash is returned by Compare when the stored hash is not a
	// well-formed bcrypt hash. This indicates data corruption, not a bad
	// password, and callers should treat it as an internal failure.
	ErrCorruptHash = errors.New("stored password hash is malformed")
)

// bcrypt silently truncates beyond 72 bytes; reject instead.
const maxPasswordBytes = 72

// dummyHash is a bcrypt hash of a random throwaway string. Compare runs
// against it when no account exists so that absent and present accounts take
// the same time to reject.
const dummyHash = "$2a$12$R9h/cIPz0gi.URNNX3kh2OPST9/PgBkqquzi.Ss7KIUgO2t0jWMUW"

// Hasher hashes and verifies passwords using bcrypt. Callers must not log or
// persist plaintext passwords.
type Hasher struct {
	Cost int
}

// NewHasher returns a Hasher with the given bcrypt cost, clamped to the
// range bcrypt accepts. Cost 12 is a reasonable default for interactive login.
func NewHasher(cost int) *Hasher {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	return &Hasher{Cost: cost}
}

// Hash produces a bcrypt hash of password suitable for storage.
// Returns ErrInvalidPassword for empty or over-long input.
func (h *Hasher) Hash(password string) (string, error) {
	if len(password) == 0 || len(password) > maxPasswordBytes {
		return "", ErrInvalidPassword
	}
	b, err := bcrypt.GenerateFromPassword([]byte(password), h.Cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Compare verifies password against the stored hash. Returns nil on match,
// ErrPasswordMismatch on a well-formed hash that does not match, and
// ErrCorruptHash (wrapped) when the stored hash cannot be parsed.
func (h *Hasher) Compare(hash, password string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return ErrPasswordMismatch
	default:
		return errors.Join(ErrCorruptHash, err)
	}
}

// CompareDummy burns one bcrypt comparison against a fixed hash and always
// reports a mismatch. Used on lookups for nonexistent accounts to keep
// response timing in the same ballpark as the real comparison path.
func (h *Hasher) CompareDummy(password string) error {
	_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password))
	return ErrPasswordMismatch
}
