package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/geocoder89/teamflow/internal/app"
	"github.com/geocoder89/teamflow/internal/domain/account"
	"github.com/geocoder89/teamflow/internal/domain/project"
	"github.com/geocoder89/teamflow/internal/domain/task"
	"github.com/geocoder89/teamflow/internal/http/middlewares"
	"github.com/geocoder89/teamflow/internal/views"
	"github.com/gin-gonic/gin"
)

type ProjectService interface {
	Snapshot() app.Snapshot
	Reload(ctx context.Context) error
	CreateProject(ctx context.Context, owner account.Account, req project.CreateProjectRequest) project.Project
	CreateTask(ctx context.Context, owner account.Account, projectID string, req task.CreateTaskRequest) (task.Task, error)
	UpdateTaskStatus(ctx context.Context, id, status string) (task.Task, error)
}

type ProjectsHandler struct {
	state ProjectService
	log   *slog.Logger
}

func NewProjectsHandler(state ProjectService, log *slog.Logger) *ProjectsHandler {
	if log == nil {
		log = slog.Default()
	}
	return &ProjectsHandler{state: state, log: log}
}

func (h *ProjectsHandler) ListProjects(ctx *gin.Context) {
	snap := h.state.Snapshot()
	RespondJSONWithETag(ctx, http.StatusOK, gin.H{
		"projects": views.GroupByProject(snap.Projects, snap.Tasks),
	})
}

func (h *ProjectsHandler) CreateProject(ctx *gin.Context) {
	owner, ok := middlewares.AccountFromContext(ctx)
	if !ok {
		RespondUnauthorized(ctx, "unauthorized", "Missing identity context")
		return
	}

	var req project.CreateProjectRequest
	if !BindJSON(ctx, &req) {
		return
	}

	p := h.state.CreateProject(ctx.Request.Context(), owner, req)
	ctx.JSON(http.StatusCreated, p)
}

func (h *ProjectsHandler) CreateTask(ctx *gin.Context) {
	owner, ok := middlewares.AccountFromContext(ctx)
	if !ok {
		RespondUnauthorized(ctx, "unauthorized", "Missing identity context")
		return
	}

	var req task.CreateTaskRequest
	if !BindJSON(ctx, &req) {
		return
	}

	t, err := h.state.CreateTask(ctx.Request.Context(), owner, ctx.Param("id"), req)
	if err != nil {
		if errors.Is(err, app.ErrNotFound) {
			RespondNotFound(ctx, "Project not found")
			return
		}
		h.log.ErrorContext(ctx.Request.Context(), "create task failed", "err", err)
		RespondInternal(ctx, "Could not create task")
		return
	}

	ctx.JSON(http.StatusCreated, t)
}

func (h *ProjectsHandler) UpdateTaskStatus(ctx *gin.Context) {
	var req task.UpdateStatusRequest
	if !BindJSON(ctx, &req) {
		return
	}

	t, err := h.state.UpdateTaskStatus(ctx.Request.Context(), ctx.Param("id"), req.Status)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrNotFound):
			RespondNotFound(ctx, "Task not found")
		case errors.Is(err, app.ErrInvalidStatus):
			RespondBadRequest(ctx, "Invalid status", gin.H{"status": req.Status})
		default:
			h.log.ErrorContext(ctx.Request.Context(), "update task status failed", "err", err)
			RespondInternal(ctx, "Could not update task")
		}
		return
	}

	ctx.JSON(http.StatusOK, t)
}

// Sync re-reads every collection, the manual refresh.
func (h *ProjectsHandler) Sync(ctx *gin.Context) {
	if err := h.state.Reload(ctx.Request.Context()); err != nil {
		h.log.ErrorContext(ctx.Request.Context(), "reload failed", "err", err)
		RespondInternal(ctx, "Could not reload data")
		return
	}

	snap := h.state.Snapshot()
	ctx.JSON(http.StatusOK, gin.H{
		"accounts": len(snap.Accounts),
		"projects": len(snap.Projects),
		"tasks":    len(snap.Tasks),
	})
}
