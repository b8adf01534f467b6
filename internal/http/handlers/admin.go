package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/geocoder89/teamflow/internal/app"
	"github.com/geocoder89/teamflow/internal/domain/account"
	"github.com/gin-gonic/gin"
)

type AccountAdmin interface {
	Snapshot() app.Snapshot
	ToggleRole(ctx context.Context, id string) (account.Account, error)
	VerifyAccount(ctx context.Context, id string) (account.Account, error)
	DeleteAccount(ctx context.Context, id string, confirmed bool) error
}

type AdminHandler struct {
	state AccountAdmin
	log   *slog.Logger
}

func NewAdminHandler(state AccountAdmin, log *slog.Logger) *AdminHandler {
	if log == nil {
		log = slog.Default()
	}
	return &AdminHandler{state: state, log: log}
}

func (h *AdminHandler) ListAccounts(ctx *gin.Context) {
	accounts := h.state.Snapshot().Accounts

	out := make([]account.Account, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, a.Sanitized())
	}

	RespondJSONWithETag(ctx, http.StatusOK, gin.H{"users": out, "total": len(out)})
}

func (h *AdminHandler) ToggleRole(ctx *gin.Context) {
	acc, err := h.state.ToggleRole(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		h.respondAdminError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, acc.Sanitized())
}

func (h *AdminHandler) VerifyAccount(ctx *gin.Context) {
	acc, err := h.state.VerifyAccount(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		h.respondAdminError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, acc.Sanitized())
}

// DeleteAccount needs ?confirm=true; projects and tasks the account owned stay.
func (h *AdminHandler) DeleteAccount(ctx *gin.Context) {
	confirmed, _ := strconv.ParseBool(ctx.Query("confirm"))

	if err := h.state.DeleteAccount(ctx.Request.Context(), ctx.Param("id"), confirmed); err != nil {
		h.respondAdminError(ctx, err)
		return
	}
	ctx.Status(http.StatusNoContent)
}

func (h *AdminHandler) respondAdminError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, app.ErrNotFound):
		RespondNotFound(ctx, "Account not found")
	case errors.Is(err, app.ErrConfirmationRequired):
		RespondError(ctx, http.StatusBadRequest, "confirmation_required", "Repeat the request with confirm=true to delete this account.", nil)
	case errors.Is(err, account.ErrInvalidRole):
		RespondError(ctx, http.StatusUnprocessableEntity, "invalid_role", "Account has an unknown role.", nil)
	default:
		h.log.ErrorContext(ctx.Request.Context(), "account update failed", "err", err)
		RespondInternal(ctx, "Could not update account")
	}
}
