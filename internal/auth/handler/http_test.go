package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	accountdomain "govcms/backend/internal/account/domain"
	accountrepo "govcms/backend/internal/account/repository"
	"govcms/backend/internal/auth/service"
	"govcms/backend/internal/ratelimit"
	"govcms/backend/internal/security"
	sessiondomain "govcms/backend/internal/session/domain"
	sessionrepo "govcms/backend/internal/session/repository"
)

type stubAccounts struct {
	mu      sync.Mutex
	byID    map[string]*accountdomain.Account
	byEmail map[string]*accountdomain.Account
}

func newStubAccounts() *stubAccounts {
	return &stubAccounts{
		byID:    make(map[string]*accountdomain.Account),
		byEmail: make(map[string]*accountdomain.Account),
	}
}

func (s *stubAccounts) GetByID(ctx context.Context, id string) (*accountdomain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.byID[id]; ok {
		c := *a
		return &c, nil
	}
	return nil, nil
}

func (s *stubAccounts) GetByEmail(ctx context.Context, email string) (*accountdomain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.byEmail[email]; ok {
		c := *a
		return &c, nil
	}
	return nil, nil
}

func (s *stubAccounts) Create(ctx context.Context, a *accountdomain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byEmail[a.Email]; ok {
		return accountrepo.ErrDuplicateEmail
	}
	c := *a
	s.byID[a.ID] = &c
	s.byEmail[a.Email] = &c
	return nil
}

func (s *stubAccounts) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	return nil
}

type stubRefresh struct {
	mu     sync.Mutex
	byHash map[string]*sessiondomain.RefreshToken
}

func newStubRefresh() *stubRefresh {
	return &stubRefresh{byHash: make(map[string]*sessiondomain.RefreshToken)}
}

func (s *stubRefresh) Create(ctx context.Context, t *sessiondomain.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byHash[t.TokenHash]; ok {
		return sessionrepo.ErrDuplicateToken
	}
	c := *t
	s.byHash[t.TokenHash] = &c
	return nil
}

func (s *stubRefresh) GetByHash(ctx context.Context, hash string) (*sessiondomain.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.byHash[hash]; ok {
		c := *t
		return &c, nil
	}
	return nil, nil
}

func (s *stubRefresh) Rotate(ctx context.Context, oldHash, newHash string, expiresAt time.Time) (*sessiondomain.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.byHash[oldHash]
	if !ok {
		return nil, sessionrepo.ErrTokenNotFound
	}
	delete(s.byHash, oldHash)
	t.TokenHash = newHash
	t.ExpiresAt = expiresAt
	s.byHash[newHash] = t
	c := *t
	return &c, nil
}

func (s *stubRefresh) DeleteByHash(ctx context.Context, hash, accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byHash, hash)
	return nil
}

func (s *stubRefresh) DeleteAllExpired(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

// denyLimiter refuses everything; used to exercise the 429 path.
type denyLimiter struct{}

func (denyLimiter) CheckAllowed(ctx context.Context, identity, origin string) ratelimit.Decision {
	return ratelimit.Decision{Allowed: false, Reason: ratelimit.ReasonIdentity}
}
func (denyLimiter) RecordFailure(ctx context.Context, identity, origin string) {}
func (denyLimiter) Clear(ctx context.Context, identity, origin string)        {}

type noopRecorder struct{}

func (noopRecorder) Record(ctx context.Context, accountID, action, resource, ip, metadata string) {}

func newTestRouter(t *testing.T, limiter service.RateLimiter) (chi.Router, *security.TokenProvider) {
	t.Helper()
	tokens, err := security.NewTestTokenProvider(15*time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	if limiter == nil {
		limiter = ratelimit.NewLimiter(nopCounterStore{}, ratelimit.Config{FailOpen: true}, nil)
	}
	svc := service.NewSessionService(
		newStubAccounts(), newStubRefresh(), limiter, noopRecorder{},
		security.NewHasher(4), tokens, nil, nil,
	)
	r := chi.NewRouter()
	NewHandler(svc, nil).Mount(r)
	return r, tokens
}

type nopCounterStore struct{}

func (nopCounterStore) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	return 0, nil
}
func (nopCounterStore) Get(ctx context.Context, key string) (int64, error) { return 0, nil }
func (nopCounterStore) Delete(ctx context.Context, keys ...string) error   { return nil }

func doJSON(t *testing.T, r chi.Router, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func registerAlice(t *testing.T, r chi.Router) authResponse {
	t.Helper()
	rec := doJSON(t, r, http.MethodPost, "/v1/auth/register", registerRequest{
		Email: "alice@example.com", Password: "Str0ng!Pass", FirstName: "Alice",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d, body %s", rec.Code, rec.Body.String())
	}
	var res authResponse
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatalf("decode register response: %v", err)
	}
	return res
}

func TestRegister_Created(t *testing.T) {
	r, tokens := newTestRouter(t, nil)
	res := registerAlice(t, r)

	if res.Account.Email != "alice@example.com" {
		t.Errorf("email = %q", res.Account.Email)
	}
	if res.Account.Role != "viewer" {
		t.Errorf("role = %q, want viewer", res.Account.Role)
	}
	if _, err := tokens.VerifyAccess(res.Tokens.AccessToken); err != nil {
		t.Errorf("access token does not verify: %v", err)
	}
}

func TestRegister_Conflict(t *testing.T) {
	r, _ := newTestRouter(t, nil)
	registerAlice(t, r)

	rec := doJSON(t, r, http.MethodPost, "/v1/auth/register", registerRequest{
		Email: "alice@example.com", Password: "Str0ng!Pass",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	var e errorResponse
	if err := json.NewDecoder(rec.Body).Decode(&e); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if e.Kind != "conflict" {
		t.Errorf("kind = %q, want conflict", e.Kind)
	}
}

func TestRegister_WeakPasswordDetails(t *testing.T) {
	r, _ := newTestRouter(t, nil)
	rec := doJSON(t, r, http.MethodPost, "/v1/auth/register", registerRequest{
		Email: "bob@example.com", Password: "short",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var e errorResponse
	if err := json.NewDecoder(rec.Body).Decode(&e); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if e.Kind != "validation" {
		t.Errorf("kind = %q, want validation", e.Kind)
	}
	if len(e.Details) == 0 {
		t.Error("details should itemize the password policy violations")
	}
}

func TestRegister_MalformedBody(t *testing.T) {
	r, _ := newTestRouter(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/register", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestLogin_OK(t *testing.T) {
	r, _ := newTestRouter(t, nil)
	registerAlice(t, r)

	rec := doJSON(t, r, http.MethodPost, "/v1/auth/login", loginRequest{
		Email: "alice@example.com", Password: "Str0ng!Pass",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
}

func TestLogin_Unauthorized(t *testing.T) {
	r, _ := newTestRouter(t, nil)
	registerAlice(t, r)

	rec := doJSON(t, r, http.MethodPost, "/v1/auth/login", loginRequest{
		Email: "alice@example.com", Password: "wrong-password",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	var e errorResponse
	if err := json.NewDecoder(rec.Body).Decode(&e); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if e.Kind != "authentication" {
		t.Errorf("kind = %q, want authentication", e.Kind)
	}
}

func TestLogin_RateLimited(t *testing.T) {
	r, _ := newTestRouter(t, denyLimiter{})
	rec := doJSON(t, r, http.MethodPost, "/v1/auth/login", loginRequest{
		Email: "alice@example.com", Password: "Str0ng!Pass",
	})
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
}

func TestRefresh_RotatesPair(t *testing.T) {
	r, tokens := newTestRouter(t, nil)
	res := registerAlice(t, r)

	rec := doJSON(t, r, http.MethodPost, "/v1/auth/refresh", refreshRequest{
		RefreshToken: res.Tokens.RefreshToken,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var pair tokenResponse
	if err := json.NewDecoder(rec.Body).Decode(&pair); err != nil {
		t.Fatalf("decode refresh response: %v", err)
	}
	if pair.RefreshToken == res.Tokens.RefreshToken {
		t.Error("refresh must rotate to a new token")
	}
	if _, err := tokens.VerifyRefresh(pair.RefreshToken); err != nil {
		t.Errorf("rotated refresh token does not verify: %v", err)
	}

	// The old token is dead.
	rec = doJSON(t, r, http.MethodPost, "/v1/auth/refresh", refreshRequest{
		RefreshToken: res.Tokens.RefreshToken,
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("replayed token status = %d, want 401", rec.Code)
	}
}

func TestRefresh_GarbageToken(t *testing.T) {
	r, _ := newTestRouter(t, nil)
	rec := doJSON(t, r, http.MethodPost, "/v1/auth/refresh", refreshRequest{RefreshToken: "garbage"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	var e errorResponse
	if err := json.NewDecoder(rec.Body).Decode(&e); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if e.Kind != "token" {
		t.Errorf("kind = %q, want token", e.Kind)
	}
}

func TestLogout_AlwaysNoContent(t *testing.T) {
	r, _ := newTestRouter(t, nil)
	res := registerAlice(t, r)

	rec := doJSON(t, r, http.MethodPost, "/v1/auth/logout", logoutRequest{RefreshToken: res.Tokens.RefreshToken})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}

	// Unknown token, repeated logout, even a malformed body: still 204.
	rec = doJSON(t, r, http.MethodPost, "/v1/auth/logout", logoutRequest{RefreshToken: "never-issued"})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("unknown token status = %d, want 204", rec.Code)
	}
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/logout", strings.NewReader("{not json"))
	rec2 := httptest.NewRecorder()
	r.ServeHTTP(rec2, req)
	if rec2.Code != http.StatusNoContent {
		t.Fatalf("malformed body status = %d, want 204", rec2.Code)
	}
}

func TestClientIP(t *testing.T) {
	testCases := []struct {
		name       string
		remoteAddr string
		forwarded  string
		want       string
	}{
		{"remote addr", "203.0.113.9:4812", "", "203.0.113.9"},
		{"forwarded single", "10.0.0.1:80", "198.51.100.7", "198.51.100.7"},
		{"forwarded chain", "10.0.0.1:80", "198.51.100.7, 10.0.0.2", "198.51.100.7"},
		{"forwarded padded", "10.0.0.1:80", "  198.51.100.7 ", "198.51.100.7"},
		{"no port", "203.0.113.9", "", "203.0.113.9"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tc.remoteAddr
			if tc.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tc.forwarded)
			}
			if got := clientIP(req); got != tc.want {
				t.Errorf("clientIP = %q, want %q", got, tc.want)
			}
		})
	}
}
