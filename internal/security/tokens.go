package security

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrInvalidToken is returned when a token is malformed, carries a bad
	// signature, was signed with an unexpected method, or has the wrong
	// issuer, audience, or use.
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired is returned when a token's signature is valid but its
	// expiry has passed.
	ErrTokenExpired = errors.New("token expired")
)

// Token-use claim values. Access and refresh tokens share a signing key, so
// each carries its use and verification rejects the wrong kind.
const (
	useAccess  = "access"
	useRefresh = "refresh"
)

// Claims are the JWT claims carried by both tokens of a pair.
type Claims struct {
	jwt.RegisteredClaims
	Email    string `json:"email"`
	Role     string `json:"role"`
	TokenUse string `json:"token_use"`
}

// TokenPair is the ephemeral result of issuing tokens. It is returned to the
// caller and never persisted; only the refresh token's hash reaches storage.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// TokenProvider issues and verifies signed JWT pairs using RS256 or ES256.
// Verification is stateless and safe for unlimited concurrent use.
type TokenProvider struct {
	privateKey crypto.Signer
	publicKey  crypto.PublicKey
	issuer     string
	audience   string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewTokenProvider returns a TokenProvider signing with the given private key
// (RSA or ECDSA). issuer and audience are set on claims and checked on verify.
func NewTokenProvider(privateKey crypto.Signer, publicKey crypto.PublicKey, issuer, audience string, accessTTL, refreshTTL time.Duration) *TokenProvider {
	return &TokenProvider{
		privateKey: privateKey,
		publicKey:  publicKey,
		issuer:     issuer,
		audience:   audience,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

// RefreshTTL returns the refresh token lifetime, the policy window a rotation
// re-measures from the rotation instant.
func (p *TokenProvider) RefreshTTL() time.Duration {
	return p.refreshTTL
}

// IssuePair issues a fresh access/refresh token pair for the account.
func (p *TokenProvider) IssuePair(accountID, email, role string) (TokenPair, error) {
	now := time.Now().UTC()

	accessExp := now.Add(p.accessTTL)
	access, err := p.sign(p.claims(accountID, email, role, useAccess, now, accessExp))
	if err != nil {
		return TokenPair{}, err
	}

	refreshExp := now.Add(p.refreshTTL)
	refresh, err := p.sign(p.claims(accountID, email, role, useRefresh, now, refreshExp))
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// VerifyAccess verifies an access token and returns its claims.
// Returns ErrTokenExpired or ErrInvalidToken.
func (p *TokenProvider) VerifyAccess(token string) (*Claims, error) {
	return p.verify(token, useAccess)
}

// VerifyRefresh verifies a refresh token's signature, expiry, issuer, and
// audience. It says nothing about whether the token is still the live one;
// that is the refresh token store's call.
func (p *TokenProvider) VerifyRefresh(token string) (*Claims, error) {
	return p.verify(token, useRefresh)
}

func (p *TokenProvider) claims(accountID, email, role, use string, now, exp time.Time) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   accountID,
			Issuer:    p.issuer,
			Audience:  jwt.ClaimStrings{p.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Email:    email,
		Role:     role,
		TokenUse: use,
	}
}

func (p *TokenProvider) sign(claims Claims) (string, error) {
	var method jwt.SigningMethod
	switch p.privateKey.Public().(type) {
	case *rsa.PublicKey:
		method = jwt.SigningMethodRS256
	case *ecdsa.PublicKey:
		method = jwt.SigningMethodES256
	default:
		return "", ErrInvalidToken
	}
	return jwt.NewWithClaims(method, claims).SignedString(p.privateKey)
}

func (p *TokenProvider) verify(tokenString, wantUse string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		switch token.Method.(type) {
		case *jwt.SigningMethodRSA, *jwt.SigningMethodECDSA:
			return p.publicKey, nil
		}
		return nil, ErrInvalidToken
	},
		jwt.WithIssuer(p.issuer),
		jwt.WithAudience(p.audience),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.TokenUse != wantUse {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
