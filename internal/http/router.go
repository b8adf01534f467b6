package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/geocoder89/teamflow/internal/app"
	"github.com/geocoder89/teamflow/internal/config"
	"github.com/geocoder89/teamflow/internal/http/handlers"
	"github.com/geocoder89/teamflow/internal/http/middlewares"
	"github.com/geocoder89/teamflow/internal/observability"
	"github.com/geocoder89/teamflow/internal/session"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const maxBodyBytes = 1 << 20

type Deps struct {
	Config   config.Config
	Log      *slog.Logger
	Tokens   middlewares.TokenVerifier
	Sessions *session.Manager
	State    *app.State
	Signup   handlers.SignupFlow

	// optional
	Prom     *observability.Prom
	Gatherer prometheus.Gatherer
	Ping     func() error
	Stats    func() any
}

func NewRouter(d Deps) *gin.Engine {
	if d.Config.Env != "dev" && d.Config.Env != "test" {
		gin.SetMode(gin.ReleaseMode)
	}
	if d.Log == nil {
		d.Log = slog.Default()
	}

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware("teamflow-api"))
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger(d.Log))
	if d.Prom != nil {
		r.Use(d.Prom.GinHandleMiddleware())
	}
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(d.Config.CORSAllowedOrigins))
	r.Use(middlewares.MaxBodyBytes(maxBodyBytes))
	r.Use(middlewares.RequireJSON())

	r.NoRoute(func(ctx *gin.Context) {
		handlers.RespondNotFound(ctx, "Route not found")
	})

	// health + metrics
	h := handlers.NewHealthHandler(d.Ping, d.Stats)
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)
	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	authMW := middlewares.NewAuthMiddleware(d.Tokens, d.Sessions)

	limit := d.Config.AuthRateLimitPerMinute
	if limit <= 0 {
		limit = 20
	}
	authLimiter := middlewares.NewRateLimiter(limit, time.Minute)
	limited := authLimiter.RateLimiterMiddleware(middlewares.KeyByIP)

	authHandler := handlers.NewAuthHandler(d.Sessions, d.State, d.Log)
	signupHandler := handlers.NewSignupHandler(d.Signup, d.State, d.Log)
	dashboardHandler := handlers.NewDashboardHandler(d.State, d.Log)
	projectsHandler := handlers.NewProjectsHandler(d.State, d.Log)
	adminHandler := handlers.NewAdminHandler(d.State, d.Log)

	// public
	r.POST("/auth/login", limited, authHandler.Login)
	r.GET("/auth/session", authHandler.Session)

	r.GET("/signup", signupHandler.Status)
	r.POST("/signup", limited, signupHandler.Submit)
	r.POST("/signup/:ticket/verify", limited, signupHandler.Verify)
	r.POST("/signup/:ticket/resend", limited, signupHandler.Resend)
	r.DELETE("/signup/:ticket", signupHandler.Cancel)

	// signed in
	protected := r.Group("/")
	protected.Use(authMW.RequireSession())
	{
		protected.POST("/auth/logout", authHandler.Logout)

		protected.GET("/dashboard", dashboardHandler.Dashboard)
		protected.GET("/my-tasks", dashboardHandler.MyTasks)

		protected.GET("/projects", projectsHandler.ListProjects)
		protected.POST("/projects", projectsHandler.CreateProject)
		protected.POST("/projects/:id/tasks", projectsHandler.CreateTask)
		protected.PATCH("/tasks/:id/status", projectsHandler.UpdateTaskStatus)
		protected.POST("/sync", projectsHandler.Sync)
	}

	admin := protected.Group("/admin")
	admin.Use(authMW.RequireAdmin())
	{
		admin.GET("/users", adminHandler.ListAccounts)
		admin.POST("/users/:id/toggle-role", adminHandler.ToggleRole)
		admin.POST("/users/:id/verify", adminHandler.VerifyAccount)
		admin.DELETE("/users/:id", adminHandler.DeleteAccount)
	}

	return r
}

// NewServer wraps the router with the timeouts used in every environment.
func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
