package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type HealthHandler struct {
	ping  func() error
	stats func() any
}

// NewHealthHandler takes a ping for the local cache backend and a source of
// sync counters; either may be nil.
func NewHealthHandler(ping func() error, stats func() any) *HealthHandler {
	return &HealthHandler{ping: ping, stats: stats}
}

func (h *HealthHandler) Healthz(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *HealthHandler) Readyz(ctx *gin.Context) {
	body := gin.H{"status": "ready"}
	if h.stats != nil {
		body["sync"] = h.stats()
	}

	if h.ping != nil {
		if err := h.ping(); err != nil {
			body["status"] = "not_ready"
			body["error"] = "local cache unreachable"
			ctx.JSON(http.StatusServiceUnavailable, body)
			return
		}
	}

	ctx.JSON(http.StatusOK, body)
}
