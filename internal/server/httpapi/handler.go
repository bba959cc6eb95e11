// Package httpapi exposes the session lifecycle over a small JSON HTTP
// surface: register, login, refresh_token and logout under /auth/.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/avolkov/authgate/internal/common"
	"github.com/avolkov/authgate/internal/logging"
	"github.com/avolkov/authgate/internal/server/models"
)

// Service is the orchestrator surface the transport needs; tests inject a
// fake.
type Service interface {
	Register(ctx context.Context, login, password, fullName string) (*models.UserOut, error)
	Login(ctx context.Context, clientIP, login, password string) (*models.TokenPair, error)
	RefreshToken(ctx context.Context, oldRefreshToken string) (*models.TokenPair, error)
	Authenticate(ctx context.Context, accessToken string) (*models.User, error)
	Logout(ctx context.Context, userID int64) error
}

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	FullName string `json:"full_name,omitempty"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

type statusResponse struct {
	Status string `json:"status"`
}

// Handler wires the auth endpoints to the orchestrator.
type Handler struct {
	service Service
	logger  logging.Logger
}

func NewHandler(service Service, logger logging.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register wires auth routes onto the provided mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.Handle("POST /auth/register", h.withRequestID(h.handleRegister))
	mux.Handle("POST /auth/login", h.withRequestID(h.handleLogin))
	mux.Handle("POST /auth/refresh_token", h.withRequestID(h.handleRefresh))
	mux.Handle("POST /auth/logout", h.withRequestID(h.handleLogout))
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request, log logging.Logger) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	user, err := h.service.Register(r.Context(), req.Username, req.Password, req.FullName)
	if err != nil {
		if errors.Is(err, common.ErrorLoginIsBusy) {
			writeError(w, http.StatusConflict, "login is already taken")
			return
		}
		h.internal(w, r, log, "register", err)
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request, log logging.Logger) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	pair, err := h.service.Login(r.Context(), clientIP(r), req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrorUserBlocked):
			writeError(w, http.StatusTooManyRequests, "too many login attempts")
		case errors.Is(err, common.ErrorInvalidPassword):
			writeError(w, http.StatusUnauthorized, "invalid username or password")
		default:
			h.internal(w, r, log, "login", err)
		}
		return
	}

	writeJSON(w, http.StatusOK, toTokenResponse(pair))
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request, log logging.Logger) {
	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "refresh_token is required")
		return
	}

	pair, err := h.service.RefreshToken(r.Context(), req.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrorRefreshTokenNotFound):
			writeError(w, http.StatusUnauthorized, "invalid refresh token")
		case errors.Is(err, common.ErrorUserNotFound):
			writeError(w, http.StatusNotFound, "user not found")
		default:
			h.internal(w, r, log, "refresh", err)
		}
		return
	}

	writeJSON(w, http.StatusOK, toTokenResponse(pair))
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request, log logging.Logger) {
	token, ok := bearerToken(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing bearer token")
		return
	}

	user, err := h.service.Authenticate(r.Context(), token)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrorTokenExpired):
			writeError(w, http.StatusUnauthorized, "token expired")
		case errors.Is(err, common.ErrorInvalidToken):
			writeError(w, http.StatusUnauthorized, "invalid token")
		case errors.Is(err, common.ErrorUserNotFound):
			writeError(w, http.StatusUnauthorized, "unknown user")
		default:
			h.internal(w, r, log, "logout", err)
		}
		return
	}

	if err := h.service.Logout(r.Context(), user.ID); err != nil {
		h.internal(w, r, log, "logout", err)
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{Status: "success"})
}

func (h *Handler) internal(w http.ResponseWriter, r *http.Request, log logging.Logger, op string, err error) {
	log.Error(r.Context(), "request failed", "op", op, "error", err.Error())
	writeError(w, http.StatusInternalServerError, "internal error")
}

func toTokenResponse(pair *models.TokenPair) tokenResponse {
	return tokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    "bearer",
	}
}

func bearerToken(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(auth) <= len(prefix) || !strings.EqualFold(auth[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(auth[len(prefix):]), true
}

// clientIP prefers the first parseable X-Forwarded-For entry and falls
// back to the socket peer.
func clientIP(r *http.Request) string {
	if raw := r.Header.Get("X-Forwarded-For"); raw != "" {
		for _, p := range strings.Split(raw, ",") {
			if ip := net.ParseIP(strings.TrimSpace(p)); ip != nil {
				return ip.String()
			}
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	return strings.TrimSpace(r.RemoteAddr)
}
