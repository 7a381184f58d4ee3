package domain

import "time"

// RefreshToken is one active refresh lineage for an account. Exactly one row
// exists per issued token pair; rotation replaces TokenHash and ExpiresAt in
// place rather than inserting a new row, so a replayed pre-rotation token no
// longer matches any row.
//
// Only the SHA-256 hex hash of the refresh token is stored, never the raw value.
type RefreshToken struct {
	TokenHash string
	AccountID string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired reports whether the record is expired at the given instant.
func (t *RefreshToken) Expired(now time.Time) bool {
	return !t.ExpiresAt.After(now)
}
