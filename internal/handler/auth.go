package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ecoride/carpool/internal/model"
	"github.com/ecoride/carpool/internal/repository"
	"github.com/ecoride/carpool/internal/service"
	"github.com/ecoride/carpool/internal/session"
)

// AuthServicer is the account behaviour the handlers need.
type AuthServicer interface {
	Register(ctx context.Context, req model.RegisterRequest) (*model.User, error)
	Login(ctx context.Context, req model.LoginRequest) (*model.User, error)
	Profile(ctx context.Context, userID int64) (*model.User, error)
}

// AuthHandler holds the HTTP handlers under /api/auth.
type AuthHandler struct {
	responder
	svc      AuthServicer
	sessions *session.Manager
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(svc AuthServicer, sessions *session.Manager, log *zap.Logger, debug bool) *AuthHandler {
	return &AuthHandler{responder: responder{log: log, debug: debug}, svc: svc, sessions: sessions}
}

type authResponse struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	User    model.UserSummary `json:"user"`
}

type sessionUser struct {
	ID     int64  `json:"id"`
	Pseudo string `json:"pseudo"`
	Email  string `json:"email"`
}

type sessionResponse struct {
	IsLoggedIn bool         `json:"isLoggedIn"`
	User       *sessionUser `json:"user"`
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req model.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	user, err := h.svc.Login(r.Context(), req)
	if err != nil {
		if validationError(w, err) {
			return
		}
		if errors.Is(err, service.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid email or password")
			return
		}
		h.serverError(w, r, "login failed", err)
		return
	}

	if !h.startSession(w, r, user) {
		return
	}
	writeJSON(w, http.StatusOK, authResponse{Success: true, Message: "login successful", User: user.Summary()})
}

// Register handles POST /api/auth/register
// The new account is logged in straight away.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req model.RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	user, err := h.svc.Register(r.Context(), req)
	if err != nil {
		if validationError(w, err) {
			return
		}
		if errors.Is(err, repository.ErrUserExists) {
			writeError(w, http.StatusConflict, "email or pseudo already in use")
			return
		}
		h.serverError(w, r, "registration failed", err)
		return
	}

	if !h.startSession(w, r, user) {
		return
	}
	writeJSON(w, http.StatusOK, authResponse{Success: true, Message: "account created", User: user.Summary()})
}

// Logout handles POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Destroy(r.Context(), w, r); err != nil {
		h.serverError(w, r, "logout failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "logged out"})
}

// Session handles GET /api/auth/session
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	ident, ok := session.FromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusOK, sessionResponse{})
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{
		IsLoggedIn: true,
		User:       &sessionUser{ID: ident.UserID, Pseudo: ident.Pseudo, Email: ident.Email},
	})
}

// Profile handles GET /api/auth/profile
func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	ident, ok := session.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "not logged in")
		return
	}

	user, err := h.svc.Profile(r.Context(), ident.UserID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUnauthenticated):
			writeError(w, http.StatusUnauthorized, "not logged in")
		case errors.Is(err, repository.ErrNotFound):
			writeError(w, http.StatusNotFound, "user not found")
		default:
			h.serverError(w, r, "failed to load profile", err)
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "user": user})
}

func (h *AuthHandler) startSession(w http.ResponseWriter, r *http.Request, user *model.User) bool {
	err := h.sessions.Start(r.Context(), w, session.Identity{
		UserID:    user.ID,
		Pseudo:    user.Pseudo,
		Email:     user.Email,
		RoleID:    user.RoleID,
		LoginTime: time.Now().UTC(),
	})
	if err != nil {
		h.serverError(w, r, "failed to start session", err)
		return false
	}
	return true
}
