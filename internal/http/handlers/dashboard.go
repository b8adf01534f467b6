package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/geocoder89/teamflow/internal/app"
	"github.com/geocoder89/teamflow/internal/domain/task"
	"github.com/geocoder89/teamflow/internal/http/middlewares"
	"github.com/geocoder89/teamflow/internal/views"
	"github.com/gin-gonic/gin"
)

type Snapshotter interface {
	Snapshot() app.Snapshot
}

type DashboardHandler struct {
	state Snapshotter
	now   func() time.Time
	log   *slog.Logger
}

func NewDashboardHandler(state Snapshotter, log *slog.Logger) *DashboardHandler {
	if log == nil {
		log = slog.Default()
	}
	return &DashboardHandler{state: state, now: time.Now, log: log}
}

type dashboardResponse struct {
	Filter  views.Filter  `json:"filter"`
	Summary views.Summary `json:"summary"`
	Owners  []string      `json:"owners"`
	Tasks   []task.Task   `json:"tasks"`
}

type myTasksResponse struct {
	Tasks    []task.Task        `json:"tasks"`
	Timeline views.TimelineView `json:"timeline"`
}

// Dashboard serves the team view. The summary always counts the unfiltered
// collections; only the task list follows ?owner= and ?status=.
func (h *DashboardHandler) Dashboard(ctx *gin.Context) {
	filter := views.Filter{
		Owner:  ctx.DefaultQuery("owner", views.All),
		Status: ctx.DefaultQuery("status", views.All),
	}

	if filter.Status != views.All && !task.Status(filter.Status).IsValid() {
		RespondBadRequest(ctx, "Invalid status filter", gin.H{"status": filter.Status})
		return
	}

	snap := h.state.Snapshot()

	RespondJSONWithETag(ctx, http.StatusOK, dashboardResponse{
		Filter:  filter,
		Summary: views.Summarize(snap.Projects, snap.Tasks),
		Owners:  views.Owners(snap.Projects, snap.Tasks),
		Tasks:   views.FilterTasks(snap.Tasks, filter),
	})
}

func (h *DashboardHandler) MyTasks(ctx *gin.Context) {
	accountID, ok := middlewares.AccountIDFromContext(ctx)
	if !ok {
		RespondUnauthorized(ctx, "unauthorized", "Missing identity context")
		return
	}

	mine := views.MyTasks(h.state.Snapshot().Tasks, accountID)

	timeline, err := views.Timeline(mine, h.now())
	if err != nil {
		if errors.Is(err, views.ErrInvalidDate) {
			h.log.WarnContext(ctx.Request.Context(), "stored task has an unreadable date", "err", err)
			RespondError(ctx, http.StatusUnprocessableEntity, "invalid_task_dates", "A task has an unreadable date.", gin.H{"reason": err.Error()})
			return
		}
		RespondInternal(ctx, "Could not build timeline")
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, myTasksResponse{Tasks: mine, Timeline: timeline})
}
