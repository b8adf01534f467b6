package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/geocoder89/teamflow/internal/session"
	"github.com/gin-gonic/gin"
)

type SessionService interface {
	Login(ctx context.Context, username, secret string) (session.State, string, error)
	Logout(ctx context.Context)
	Current() session.State
}

// Loader refreshes the in-memory collections. Implemented by app.State.
type Loader interface {
	Load(ctx context.Context) error
}

type AuthHandler struct {
	sessions SessionService
	state    Loader
	log      *slog.Logger
}

func NewAuthHandler(sessions SessionService, state Loader, log *slog.Logger) *AuthHandler {
	if log == nil {
		log = slog.Default()
	}
	return &AuthHandler{sessions: sessions, state: state, log: log}
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type sessionResponse struct {
	AccessToken string        `json:"accessToken"`
	Session     session.State `json:"session"`
}

func (h *AuthHandler) Login(ctx *gin.Context) {
	var req LoginRequest

	if !BindJSON(ctx, &req) {
		return
	}

	st, token, err := h.sessions.Login(ctx.Request.Context(), req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrInvalidCredentials):
			RespondUnauthorized(ctx, "invalid_credentials", "Username or password is incorrect.")
		case errors.Is(err, session.ErrUnverifiedAccount):
			RespondForbidden(ctx, "unverified_account", "Email verification is not complete for this account.")
		default:
			h.log.ErrorContext(ctx.Request.Context(), "login failed", "err", err)
			RespondInternal(ctx, "Could not sign in")
		}
		return
	}

	loadAfterSignIn(ctx, h.state, h.log)

	ctx.JSON(http.StatusOK, sessionResponse{AccessToken: token, Session: st})
}

func (h *AuthHandler) Logout(ctx *gin.Context) {
	h.sessions.Logout(ctx.Request.Context())
	ctx.Status(http.StatusNoContent)
}

// Session reports the persisted session so a client can pick its first screen.
func (h *AuthHandler) Session(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, h.sessions.Current())
}

// loadAfterSignIn pulls all collections for the freshly signed-in account.
// Load degrades to cached data on its own, so a failure here is only logged.
func loadAfterSignIn(ctx *gin.Context, state Loader, log *slog.Logger) {
	if err := state.Load(ctx.Request.Context()); err != nil {
		log.WarnContext(ctx.Request.Context(), "collection load after sign-in failed", "err", err)
	}
}
