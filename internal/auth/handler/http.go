// Package handler exposes the session lifecycle over HTTP as JSON endpoints
// under /v1/auth.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	accountdomain "govcms/backend/internal/account/domain"
	"govcms/backend/internal/auth/service"
)

type registerRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role,omitempty"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type accountResponse struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	FirstName string     `json:"first_name"`
	LastName  string     `json:"last_name"`
	Role      string     `json:"role"`
	LastLogin *time.Time `json:"last_login,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

type tokenResponse struct {
	AccessToken      string    `json:"access_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshToken     string    `json:"refresh_token"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

type authResponse struct {
	Account accountResponse `json:"account"`
	Tokens  tokenResponse   `json:"tokens"`
}

type errorResponse struct {
	Error   string   `json:"error"`
	Kind    string   `json:"kind"`
	Details []string `json:"details,omitempty"`
}

// Handler serves the auth endpoints.
type Handler struct {
	sessions *service.SessionService
	logger   *slog.Logger
}

// NewHandler returns a Handler backed by the given session service.
func NewHandler(sessions *service.SessionService, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{sessions: sessions, logger: logger}
}

// Mount registers the auth routes on the given router.
func (h *Handler) Mount(r chi.Router) {
	r.Route("/v1/auth", func(rr chi.Router) {
		rr.Post("/register", h.Register)
		rr.Post("/login", h.Login)
		rr.Post("/refresh", h.Refresh)
		rr.Post("/logout", h.Logout)
	})
}

// Register handles POST /v1/auth/register.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", service.KindValidation, nil)
		return
	}

	res, err := h.sessions.Register(r.Context(), service.RegisterParams{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Role:      req.Role,
	}, clientIP(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toAuthResponse(res))
}

// Login handles POST /v1/auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", service.KindValidation, nil)
		return
	}

	res, err := h.sessions.Login(r.Context(), req.Email, req.Password, clientIP(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toAuthResponse(res))
}

// Refresh handles POST /v1/auth/refresh.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", service.KindValidation, nil)
		return
	}

	pair, err := h.sessions.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken:      pair.AccessToken,
		AccessExpiresAt:  pair.AccessExpiresAt,
		RefreshToken:     pair.RefreshToken,
		RefreshExpiresAt: pair.RefreshExpiresAt,
	})
}

// Logout handles POST /v1/auth/logout. Always 204: revocation failures are
// logged server-side, never surfaced.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	var req logoutRequest
	_ = decode(r, &req)

	h.sessions.Logout(r.Context(), req.RefreshToken, "")
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	kind := service.Classify(err)

	var status int
	switch kind {
	case service.KindValidation:
		status = http.StatusBadRequest
	case service.KindConflict:
		status = http.StatusConflict
	case service.KindAuthentication, service.KindToken:
		status = http.StatusUnauthorized
	case service.KindRateLimited:
		status = http.StatusTooManyRequests
	default:
		status = http.StatusServiceUnavailable
		h.logger.Error("auth request failed", "path", r.URL.Path, "error", err)
	}

	var details []string
	var weak *service.WeakPasswordError
	if errors.As(err, &weak) {
		details = weak.Reasons
	}

	msg := err.Error()
	if status == http.StatusServiceUnavailable {
		// Infrastructure detail stays in the logs.
		msg = "service unavailable"
	}
	writeError(w, status, msg, kind, details)
}

func decode(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string, kind service.Kind, details []string) {
	writeJSON(w, status, errorResponse{Error: msg, Kind: string(kind), Details: details})
}

func toAuthResponse(res *service.AuthResult) authResponse {
	return authResponse{
		Account: toAccountResponse(res.Account),
		Tokens: tokenResponse{
			AccessToken:      res.Tokens.AccessToken,
			AccessExpiresAt:  res.Tokens.AccessExpiresAt,
			RefreshToken:     res.Tokens.RefreshToken,
			RefreshExpiresAt: res.Tokens.RefreshExpiresAt,
		},
	}
}

func toAccountResponse(a *accountdomain.Account) accountResponse {
	return accountResponse{
		ID:        a.ID,
		Email:     a.Email,
		FirstName: a.FirstName,
		LastName:  a.LastName,
		Role:      string(a.Role),
		LastLogin: a.LastLogin,
		CreatedAt: a.CreatedAt,
	}
}

// clientIP returns the originating client address, preferring the first entry
// of X-Forwarded-For when a proxy sets it.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			fwd = fwd[:i]
		}
		if ip := strings.TrimSpace(fwd); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
