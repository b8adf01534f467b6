package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/geocoder89/teamflow/internal/session"
	"github.com/geocoder89/teamflow/internal/signup"
	"github.com/gin-gonic/gin"
)

type SignupFlow interface {
	IsFirstUser(ctx context.Context) bool
	Submit(ctx context.Context, form signup.Form) (signup.Ticket, error)
	Verify(ctx context.Context, ticket, code string) (session.State, string, error)
	Resend(ctx context.Context, ticket string) error
	Cancel(ticket string) error
}

type SignupHandler struct {
	flow  SignupFlow
	state Loader
	log   *slog.Logger
}

func NewSignupHandler(flow SignupFlow, state Loader, log *slog.Logger) *SignupHandler {
	if log == nil {
		log = slog.Default()
	}
	return &SignupHandler{flow: flow, state: state, log: log}
}

// Status tells the form whether this signup will create the first admin.
func (h *SignupHandler) Status(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"isFirstUser": h.flow.IsFirstUser(ctx.Request.Context())})
}

func (h *SignupHandler) Submit(ctx *gin.Context) {
	var form signup.Form

	if !BindJSON(ctx, &form) {
		return
	}

	ticket, err := h.flow.Submit(ctx.Request.Context(), form)
	if err != nil {
		h.respondFlowError(ctx, err)
		return
	}

	ctx.JSON(http.StatusAccepted, ticket)
}

func (h *SignupHandler) Verify(ctx *gin.Context) {
	var req signup.VerifyRequest

	if !BindJSON(ctx, &req) {
		return
	}

	st, token, err := h.flow.Verify(ctx.Request.Context(), ctx.Param("ticket"), req.Code)
	if err != nil {
		h.respondFlowError(ctx, err)
		return
	}

	loadAfterSignIn(ctx, h.state, h.log)

	ctx.JSON(http.StatusCreated, sessionResponse{AccessToken: token, Session: st})
}

func (h *SignupHandler) Resend(ctx *gin.Context) {
	if err := h.flow.Resend(ctx.Request.Context(), ctx.Param("ticket")); err != nil {
		h.respondFlowError(ctx, err)
		return
	}

	ctx.Status(http.StatusAccepted)
}

func (h *SignupHandler) Cancel(ctx *gin.Context) {
	if err := h.flow.Cancel(ctx.Param("ticket")); err != nil {
		h.respondFlowError(ctx, err)
		return
	}

	ctx.Status(http.StatusNoContent)
}

func (h *SignupHandler) respondFlowError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, signup.ErrDuplicateUsername):
		RespondConflict(ctx, "username_taken", "Username is already in use.")
	case errors.Is(err, signup.ErrDuplicateEmail):
		RespondConflict(ctx, "email_taken", "Email is already in use.")
	case errors.Is(err, signup.ErrCodeMismatch):
		RespondError(ctx, http.StatusUnprocessableEntity, "code_mismatch", "Verification code does not match.", nil)
	case errors.Is(err, signup.ErrTicketNotFound):
		RespondNotFound(ctx, "Signup not found or expired, please start again.")
	case errors.Is(err, signup.ErrDeliveryFailed):
		RespondError(ctx, http.StatusBadGateway, "delivery_failed", "Verification email could not be sent.", nil)
	default:
		h.log.ErrorContext(ctx.Request.Context(), "signup failed", "err", err)
		RespondInternal(ctx, "Could not complete signup")
	}
}
