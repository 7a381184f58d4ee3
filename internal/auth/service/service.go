// Package service implements the session lifecycle: register, login, refresh,
// and logout. It owns the collapsing of component errors into the external
// error vocabulary and emits activity events for each lifecycle transition.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	accountdomain "govcms/backend/internal/account/domain"
	accountrepo "govcms/backend/internal/account/repository"
	activitydomain "govcms/backend/internal/activity/domain"
	"govcms/backend/internal/ratelimit"
	"govcms/backend/internal/security"
	sessiondomain "govcms/backend/internal/session/domain"
	sessionrepo "govcms/backend/internal/session/repository"
	"govcms/backend/internal/telemetry"
)

// AccountRepo is the minimal account repository needed by the session service.
// Get methods return (nil, nil) when no row matches.
type AccountRepo interface {
	GetByID(ctx context.Context, id string) (*accountdomain.Account, error)
	GetByEmail(ctx context.Context, email string) (*accountdomain.Account, error)
	Create(ctx context.Context, a *accountdomain.Account) error
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
}

// RefreshTokenRepo is the minimal refresh token repository needed by the
// session service.
type RefreshTokenRepo interface {
	Create(ctx context.Context, t *sessiondomain.RefreshToken) error
	GetByHash(ctx context.Context, tokenHash string) (*sessiondomain.RefreshToken, error)
	Rotate(ctx context.Context, oldHash, newHash string, expiresAt time.Time) (*sessiondomain.RefreshToken, error)
	DeleteByHash(ctx context.Context, tokenHash, accountID string) error
	DeleteAllExpired(ctx context.Context, before time.Time) (int64, error)
}

// RateLimiter is the limiter surface the session service needs. CheckAllowed
// never returns an error: store outages resolve inside the limiter according
// to its failure policy.
type RateLimiter interface {
	CheckAllowed(ctx context.Context, identity, origin string) ratelimit.Decision
	RecordFailure(ctx context.Context, identity, origin string)
	Clear(ctx context.Context, identity, origin string)
}

// ActivityRecorder records a lifecycle event, best-effort.
type ActivityRecorder interface {
	Record(ctx context.Context, accountID, action, resource, ip, metadata string)
}

// RegisterParams are the inputs to Register. Role defaults to viewer.
type RegisterParams struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Role      string
}

// AuthResult is the outcome of Register and Login. Account carries no
// password hash.
type AuthResult struct {
	Account *accountdomain.Account
	Tokens  security.TokenPair
}

// SessionService orchestrates the session lifecycle. It holds no in-process
// session state: everything shared across concurrent requests lives in the
// relational store and the counter store, so multiple instances behind a
// load balancer stay correct.
type SessionService struct {
	accounts      AccountRepo
	refreshTokens RefreshTokenRepo
	limiter       RateLimiter
	activity      ActivityRecorder
	verifier      *CredentialVerifier
	hasher        *security.Hasher
	tokens        *security.TokenProvider
	metrics       *telemetry.AuthMetrics
	logger        *slog.Logger
}

// NewSessionService returns a SessionService with the given dependencies.
// metrics may be nil.
func NewSessionService(
	accounts AccountRepo,
	refreshTokens RefreshTokenRepo,
	limiter RateLimiter,
	activityRec ActivityRecorder,
	hasher *security.Hasher,
	tokens *security.TokenProvider,
	metrics *telemetry.AuthMetrics,
	logger *slog.Logger,
) *SessionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionService{
		accounts:      accounts,
		refreshTokens: refreshTokens,
		limiter:       limiter,
		activity:      activityRec,
		verifier:      NewCredentialVerifier(accounts, hasher),
		hasher:        hasher,
		tokens:        tokens,
		metrics:       metrics,
		logger:        logger,
	}
}

// Register creates an account and bootstraps its first session.
//
// Registration has two phases and is not atomic across them: the account row
// is committed first, then tokens are issued and the refresh record stored.
// If the second phase fails the account exists without a session and the
// caller gets ErrServiceUnavailable; a subsequent login completes normally.
func (s *SessionService) Register(ctx context.Context, p RegisterParams, origin string) (*AuthResult, error) {
	email := accountdomain.NormalizeEmail(p.Email)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validatePassword(p.Password); err != nil {
		return nil, err
	}
	role := accountdomain.Role(p.Role)
	if role == "" {
		role = accountdomain.RoleViewer
	}
	if !role.Valid() {
		return nil, ErrInvalidRole
	}

	existing, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		return nil, unavailable("get account", err)
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}

	hash, err := s.hasher.Hash(p.Password)
	if err != nil {
		return nil, unavailable("hash password", err)
	}

	now := time.Now().UTC()
	account := &accountdomain.Account{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: hash,
		FirstName:    p.FirstName,
		LastName:     p.LastName,
		Role:         role,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := account.Validate(); err != nil {
		return nil, err
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		// The pre-check above races against concurrent registrations; the
		// unique index is the authority.
		if errors.Is(err, accountrepo.ErrDuplicateEmail) {
			return nil, ErrEmailTaken
		}
		return nil, unavailable("create account", err)
	}

	pair, err := s.openSession(ctx, account)
	if err != nil {
		return nil, err
	}

	s.activity.Record(ctx, account.ID, activitydomain.ActionUserRegistered, "account", origin, "")
	s.metrics.RecordRegistration(ctx)
	return &AuthResult{Account: sanitize(account), Tokens: pair}, nil
}

// Login authenticates the email/password pair from the given origin and
// opens a new session.
func (s *SessionService) Login(ctx context.Context, email, password, origin string) (*AuthResult, error) {
	email = accountdomain.NormalizeEmail(email)

	// Cheap rejection first: a limited caller never reaches the credential
	// store, let alone bcrypt.
	if d := s.limiter.CheckAllowed(ctx, email, origin); !d.Allowed {
		s.logger.Info("login rate limited", "email", email, "origin", origin, "reason", d.Reason)
		s.metrics.RecordRateLimited(ctx)
		return nil, ErrRateLimited
	}

	account, err := s.verifier.Verify(ctx, email, password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) || errors.Is(err, ErrAccountDisabled) {
			s.limiter.RecordFailure(ctx, email, origin)
			s.logger.Info("login failed", "email", email, "origin", origin, "error", err)
			s.metrics.RecordLogin(ctx, "failure")
			return nil, err
		}
		return nil, unavailable("verify credentials", err)
	}

	s.limiter.Clear(ctx, email, origin)

	now := time.Now().UTC()
	if err := s.accounts.UpdateLastLogin(ctx, account.ID, now); err != nil {
		// Not worth failing an otherwise-correct login over.
		s.logger.Warn("update last login", "account_id", account.ID, "error", err)
	} else {
		account.LastLogin = &now
	}

	pair, err := s.openSession(ctx, account)
	if err != nil {
		return nil, err
	}

	s.activity.Record(ctx, account.ID, activitydomain.ActionUserLogin, "session", origin, "")
	s.metrics.RecordLogin(ctx, "success")
	return &AuthResult{Account: sanitize(account), Tokens: pair}, nil
}

// Refresh exchanges a live refresh token for a new pair, rotating the stored
// record so the old token is dead the moment the new one exists. Every
// failure is ErrInvalidRefreshToken; internal logs keep the real reason.
func (s *SessionService) Refresh(ctx context.Context, refreshToken string) (security.TokenPair, error) {
	// Signature and expiry first: tampering and stale tokens cost no store
	// round-trip.
	claims, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		s.logger.Info("refresh rejected by codec", "error", err)
		s.metrics.RecordRotation(ctx, "rejected")
		return security.TokenPair{}, ErrInvalidRefreshToken
	}

	oldHash := security.HashToken(refreshToken)
	record, err := s.refreshTokens.GetByHash(ctx, oldHash)
	if err != nil {
		return security.TokenPair{}, unavailable("lookup refresh token", err)
	}
	now := time.Now().UTC()
	if record == nil || record.Expired(now) {
		s.logger.Info("refresh token not live", "account_id", claims.Subject, "found", record != nil)
		s.metrics.RecordRotation(ctx, "rejected")
		return security.TokenPair{}, ErrInvalidRefreshToken
	}

	// An account disabled mid-session must not refresh its way back in.
	account, err := s.accounts.GetByID(ctx, record.AccountID)
	if err != nil {
		return security.TokenPair{}, unavailable("get account", err)
	}
	if account == nil || !account.Active {
		s.logger.Info("refresh for inactive account", "account_id", record.AccountID)
		s.metrics.RecordRotation(ctx, "rejected")
		return security.TokenPair{}, ErrInvalidRefreshToken
	}

	pair, err := s.tokens.IssuePair(account.ID, account.Email, string(account.Role))
	if err != nil {
		return security.TokenPair{}, unavailable("issue token pair", err)
	}

	if _, err := s.refreshTokens.Rotate(ctx, oldHash, security.HashToken(pair.RefreshToken), pair.RefreshExpiresAt); err != nil {
		switch {
		case errors.Is(err, sessionrepo.ErrTokenNotFound):
			// A concurrent refresh with the same token won the rotation.
			s.logger.Warn("refresh token replay lost rotation race", "account_id", account.ID)
		case errors.Is(err, sessionrepo.ErrTokenExpired):
			s.logger.Info("refresh token expired at rotation", "account_id", account.ID)
		default:
			return security.TokenPair{}, unavailable("rotate refresh token", err)
		}
		s.metrics.RecordRotation(ctx, "rejected")
		return security.TokenPair{}, ErrInvalidRefreshToken
	}

	s.metrics.RecordRotation(ctx, "success")
	return pair, nil
}

// Logout revokes the refresh token's session. Idempotent and never fails
// visibly: an unknown token or an unreachable store both end with the caller
// logged out as far as they can tell, and the failure in the logs.
//
// accountID, when non-empty, scopes the delete so one caller's logout cannot
// remove another account's row. Defense in depth; tokens are unguessable.
func (s *SessionService) Logout(ctx context.Context, refreshToken, accountID string) {
	if refreshToken == "" {
		return
	}
	if accountID == "" {
		if claims, err := s.tokens.VerifyRefresh(refreshToken); err == nil {
			accountID = claims.Subject
		}
	}
	if err := s.refreshTokens.DeleteByHash(ctx, security.HashToken(refreshToken), accountID); err != nil {
		s.logger.Warn("logout: delete refresh token", "error", err)
		return
	}
	s.activity.Record(ctx, accountID, activitydomain.ActionUserLogout, "session", "", "")
}

// openSession issues a token pair and persists the refresh record. On the
// (cryptographically negligible) chance of a token hash collision it reissues
// once rather than failing the caller.
func (s *SessionService) openSession(ctx context.Context, account *accountdomain.Account) (security.TokenPair, error) {
	for attempt := 0; attempt < 2; attempt++ {
		pair, err := s.tokens.IssuePair(account.ID, account.Email, string(account.Role))
		if err != nil {
			return security.TokenPair{}, unavailable("issue token pair", err)
		}
		err = s.refreshTokens.Create(ctx, &sessiondomain.RefreshToken{
			TokenHash: security.HashToken(pair.RefreshToken),
			AccountID: account.ID,
			ExpiresAt: pair.RefreshExpiresAt,
			CreatedAt: time.Now().UTC(),
		})
		if err == nil {
			return pair, nil
		}
		if !errors.Is(err, sessionrepo.ErrDuplicateToken) {
			return security.TokenPair{}, unavailable("store refresh token", err)
		}
		s.logger.Warn("refresh token hash collision, reissuing", "account_id", account.ID)
	}
	return security.TokenPair{}, unavailable("store refresh token", sessionrepo.ErrDuplicateToken)
}

// sanitize returns a copy of the account without the password hash.
func sanitize(a *accountdomain.Account) *accountdomain.Account {
	c := *a
	c.PasswordHash = ""
	return &c
}
