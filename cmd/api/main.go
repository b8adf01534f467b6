package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/geocoder89/teamflow/internal/app"
	"github.com/geocoder89/teamflow/internal/auth"
	"github.com/geocoder89/teamflow/internal/config"
	httpx "github.com/geocoder89/teamflow/internal/http"
	"github.com/geocoder89/teamflow/internal/localcache"
	"github.com/geocoder89/teamflow/internal/notifications"
	"github.com/geocoder89/teamflow/internal/observability"
	"github.com/geocoder89/teamflow/internal/session"
	"github.com/geocoder89/teamflow/internal/signup"
	"github.com/geocoder89/teamflow/internal/syncer"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	// Load the config set up
	cfg := config.Load()

	log := observability.NewLogger(cfg.Env)
	// slog.Default() is used by code paths that are not handed a logger
	slog.SetDefault(log)

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	startCtx, cancelStart := config.WithTimeout(15 * time.Second)
	defer cancelStart()

	shutdownTracer, err := observability.InitTracer(startCtx, observability.TracerConfig{
		Enabled:     cfg.OTelEnabled,
		ServiceName: "teamflow-api",
		Endpoint:    cfg.OTelEndpoint,
		Env:         cfg.Env,
	})
	if err != nil {
		log.Error("tracer init failed", "err", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	prom := observability.NewProm(reg)

	cache, err := openLocalCache(startCtx, cfg, log)
	if err != nil {
		log.Error("local cache init failed", "backend", cfg.CacheBackend, "err", err)
		os.Exit(1)
	}
	defer cache.close()

	rs, err := openRemote(startCtx, cfg)
	if err != nil {
		// a broken remote degrades to local-only, it never blocks startup
		log.Warn("remote store unavailable, running on the local cache only", "backend", cfg.RemoteBackend, "err", err)
		rs = nil
	}

	store := localcache.Instrument(cache.store, prom)

	stats := observability.NewSyncStats(prom)
	// the push deadline covers every attempt
	syncClient := syncer.New(store, rs, syncer.Options{
		Prefix:       cfg.StoragePrefix,
		PushTimeout:  time.Duration(max(cfg.PushAttempts, 1))*cfg.RemoteTimeout + 5*time.Second,
		PushAttempts: cfg.PushAttempts,
		Logger:       log,
		Metrics:      stats,
	})

	tokens := auth.NewManager(cfg.JWTSecret, time.Duration(cfg.JWTAccessTTLMinutes)*time.Minute)
	sessions := session.NewManager(store, cfg.SessionKey(), syncClient, tokens, log)
	state := app.New(syncClient, log)

	if restored := sessions.Restore(startCtx); restored.IsAuthenticated {
		log.Info("session restored", "account_id", restored.User.ID)
		if err := state.Load(startCtx); err != nil {
			log.Warn("initial collection load failed", "err", err)
		}
	}

	notifier := notifications.NewProtectedNotifier(newNotifier(cfg, log), notifications.ProtectedNotifierConfig{
		Timeout: 10 * time.Second,
		Logger:  log,
	})

	flow := signup.NewFlow(syncClient, sessions, notifier, signup.MailConfig{
		ServiceID:   cfg.EmailJSServiceID,
		TemplateID:  cfg.EmailJSTemplateID,
		CompanyName: cfg.CompanyName,
	}, time.Duration(cfg.SignupTTLMinutes)*time.Minute, log)

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go flow.Run(sweepCtx, time.Minute)

	router := httpx.NewRouter(httpx.Deps{
		Config:   cfg,
		Log:      log,
		Tokens:   tokens,
		Sessions: sessions,
		State:    state,
		Signup:   flow,
		Prom:     prom,
		Gatherer: reg,
		Ping:     cache.ping,
		Stats: func() any {
			return map[string]any{
				"remoteConfigured": syncClient.RemoteConfigured(),
				"emailCircuit":     notifier.State(),
				"counters":         stats.Snapshot(),
			}
		},
	})

	srv := httpx.NewServer(fmt.Sprintf(":%d", cfg.Port), router)

	go func() {
		log.Info("Server starting", "port", cfg.Port, "env", cfg.Env, "cache", cfg.CacheBackend, "remote", cfg.RemoteBackend)
		err := srv.ListenAndServe()

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info("server shutting down")
	stopSweep()

	shutdownCh := make(chan struct{})

	go func() {
		defer close(shutdownCh)

		ctx, cancel := config.WithTimeout(10 * time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Error("graceful shutdown failed", "err", err)
		}

		// let dispatched pushes reach the remote before the process exits
		if err := syncClient.Wait(ctx); err != nil {
			log.Warn("pending pushes abandoned", "err", err)
		}

		if err := shutdownTracer(context.Background()); err != nil {
			log.Warn("tracer shutdown failed", "err", err)
		}
	}()

	select {
	case <-shutdownCh:
		log.Info("shutdown complete")

	case <-time.After(12 * time.Second):
		log.Error("shutdown timed out")
	}
}
