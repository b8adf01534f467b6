package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/geocoder89/teamflow/internal/config"
	"github.com/geocoder89/teamflow/internal/db"
	"github.com/geocoder89/teamflow/internal/localcache"
	"github.com/geocoder89/teamflow/internal/notifications"
	"github.com/geocoder89/teamflow/internal/redisclient"
	"github.com/geocoder89/teamflow/internal/remote"
)

type localCache struct {
	store localcache.Store
	ping  func() error
	close func()
}

func openLocalCache(ctx context.Context, cfg config.Config, log *slog.Logger) (*localCache, error) {
	switch cfg.CacheBackend {
	case "redis":
		rc, err := redisclient.Connect(ctx, redisclient.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, err
		}
		log.Info("local cache: redis", "addr", cfg.RedisAddr)

		return &localCache{
			store: localcache.NewRedisStore(rc.Raw()),
			ping: func() error {
				pctx, cancel := context.WithTimeout(context.Background(), time.Second)
				defer cancel()
				return rc.Ping(pctx)
			},
			close: func() { _ = rc.Close() },
		}, nil

	case "postgres":
		pool, err := db.NewPool(ctx, cfg.DBURL)
		if err != nil {
			return nil, err
		}
		if err := db.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		log.Info("local cache: postgres")

		return &localCache{
			store: localcache.NewPostgresStore(pool),
			ping: func() error {
				pctx, cancel := context.WithTimeout(context.Background(), time.Second)
				defer cancel()
				return pool.Ping(pctx)
			},
			close: pool.Close,
		}, nil

	case "memory":
		log.Info("local cache: memory (lost on restart)")
		return &localCache{store: localcache.NewMemoryStore(), close: func() {}}, nil

	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.CacheBackend)
	}
}

// openRemote returns a nil Store when no remote is configured.
func openRemote(ctx context.Context, cfg config.Config) (remote.Store, error) {
	if !cfg.RemoteConfigured() {
		return nil, nil
	}

	switch cfg.RemoteBackend {
	case "appsscript":
		return remote.NewAppsScriptClient(cfg.RemoteURL, cfg.RemoteTimeout), nil
	case "sheets":
		sc, err := remote.NewSheetsClient(ctx, cfg.SheetsSpreadsheetID, cfg.SheetsCredentialsFile)
		if err != nil {
			return nil, err
		}
		return sc, nil
	default:
		return nil, fmt.Errorf("unknown remote backend %q", cfg.RemoteBackend)
	}
}

func newNotifier(cfg config.Config, log *slog.Logger) notifications.Notifier {
	if cfg.Notifier == "emailjs" {
		return notifications.NewEmailJSNotifier(notifications.EmailJSConfig{
			PublicKey:  cfg.EmailJSPublicKey,
			PrivateKey: cfg.EmailJSPrivateKey,
		})
	}

	log.Warn("email delivery disabled, verification codes are written to the log")
	return notifications.NewLogNotifier(log)
}
