package service

import (
	"context"
	"errors"
	"fmt"

	accountdomain "govcms/backend/internal/account/domain"
	"govcms/backend/internal/security"
)

// CredentialVerifier checks an email/password pair against the account store.
//
// The bcrypt comparison runs even when no account exists (against a fixed
// dummy hash), so the rejection path takes roughly the same time whether or
// not the email is registered.
type CredentialVerifier struct {
	accounts AccountRepo
	hasher   *security.Hasher
}

// NewCredentialVerifier returns a verifier over the given account repository.
func NewCredentialVerifier(accounts AccountRepo, hasher *security.Hasher) *CredentialVerifier {
	return &CredentialVerifier{accounts: accounts, hasher: hasher}
}

// Verify returns the account when email and password match an active account.
// Absent accounts and wrong passwords both yield ErrInvalidCredentials.
// A disabled account yields ErrAccountDisabled, but only after the password
// matched; with a wrong password the caller cannot tell a disabled account
// from a nonexistent one.
func (v *CredentialVerifier) Verify(ctx context.Context, email, password string) (*accountdomain.Account, error) {
	account, err := v.accounts.GetByEmail(ctx, accountdomain.NormalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("get account by email: %w", err)
	}
	if account == nil {
		_ = v.hasher.CompareDummy(password)
		return nil, ErrInvalidCredentials
	}

	if err := v.hasher.Compare(account.PasswordHash, password); err != nil {
		if errors.Is(err, security.ErrPasswordMismatch) {
			return nil, ErrInvalidCredentials
		}
		// Corrupt stored hash: an internal fault, not an authentication outcome.
		return nil, fmt.Errorf("compare password for account %s: %w", account.ID, err)
	}

	if !account.Active {
		return nil, ErrAccountDisabled
	}
	return account, nil
}
