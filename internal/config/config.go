package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env  string
	Port int

	// local cache
	StoragePrefix string
	CacheBackend  string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	DBURL         string

	// remote store
	RemoteBackend         string
	RemoteURL             string
	RemoteTimeout         time.Duration
	SheetsSpreadsheetID   string
	SheetsCredentialsFile string
	PushAttempts          int

	// email delivery
	Notifier          string
	EmailJSServiceID  string
	EmailJSTemplateID string
	EmailJSPublicKey  string
	EmailJSPrivateKey string
	CompanyName       string

	JWTSecret           string
	JWTAccessTTLMinutes int
	SignupTTLMinutes    int

	OTelEnabled  bool
	OTelEndpoint string

	CORSAllowedOrigins     []string
	AuthRateLimitPerMinute int
}

func Load() Config {
	// a missing .env file is the normal case outside local development
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("could not read .env file", "err", err)
	}

	return Config{
		Env:  getEnv("APP_ENV", "dev"),
		Port: getEnvInt("PORT", 8080),

		StoragePrefix: getEnv("STORAGE_PREFIX", "teamflow"),
		CacheBackend:  getEnv("CACHE_BACKEND", "memory"),
		RedisAddr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		DBURL:         buildDBURL(),

		RemoteBackend:         getEnv("REMOTE_BACKEND", "none"),
		RemoteURL:             getEnv("REMOTE_URL", ""),
		RemoteTimeout:         getEnvDuration("REMOTE_TIMEOUT", 10*time.Second),
		SheetsSpreadsheetID:   getEnv("SHEETS_SPREADSHEET_ID", ""),
		SheetsCredentialsFile: getEnv("SHEETS_CREDENTIALS_FILE", ""),
		PushAttempts:          getEnvInt("SYNC_PUSH_ATTEMPTS", 3),

		Notifier:          getEnv("NOTIFIER", "log"),
		EmailJSServiceID:  getEnv("EMAILJS_SERVICE_ID", "team_flow"),
		EmailJSTemplateID: getEnv("EMAILJS_TEMPLATE_ID", ""),
		EmailJSPublicKey:  getEnv("EMAILJS_PUBLIC_KEY", ""),
		EmailJSPrivateKey: getEnv("EMAILJS_PRIVATE_KEY", ""),
		CompanyName:       getEnv("COMPANY_NAME", "TeamFlow"),

		JWTSecret:           getEnv("JWT_SECRET", "dev-secret-change-me"),
		JWTAccessTTLMinutes: getEnvInt("JWT_ACCESS_TTL_MINUTES", 60*24*7),
		SignupTTLMinutes:    getEnvInt("SIGNUP_TTL_MINUTES", 30),

		OTelEnabled:  getEnv("OTEL_ENABLED", "false") == "true",
		OTelEndpoint: getEnv("OTEL_ENDPOINT", "localhost:4317"),

		CORSAllowedOrigins:     getEnvList("CORS_ALLOWED_ORIGINS"),
		AuthRateLimitPerMinute: getEnvInt("RATE_LIMIT_AUTH_PER_MINUTE", 20),
	}
}

// RemoteConfigured reports whether a remote store should be used at all.
// An unset Apps Script URL or the placeholder from the deployment template counts as "not configured".
func (c Config) RemoteConfigured() bool {
	switch c.RemoteBackend {
	case "appsscript":
		return c.RemoteURL != "" && !strings.Contains(c.RemoteURL, "YOUR_GOOGLE_SCRIPT_URL")
	case "sheets":
		return c.SheetsSpreadsheetID != ""
	default:
		return false
	}
}

func (c Config) Validate() error {
	switch c.CacheBackend {
	case "memory", "redis", "postgres":
	default:
		return fmt.Errorf("unknown CACHE_BACKEND %q", c.CacheBackend)
	}

	switch c.RemoteBackend {
	case "none", "appsscript", "sheets":
	default:
		return fmt.Errorf("unknown REMOTE_BACKEND %q", c.RemoteBackend)
	}

	switch c.Notifier {
	case "log":
	case "emailjs":
		if c.EmailJSTemplateID == "" || c.EmailJSPublicKey == "" {
			return fmt.Errorf("emailjs notifier needs EMAILJS_TEMPLATE_ID and EMAILJS_PUBLIC_KEY")
		}
	default:
		return fmt.Errorf("unknown NOTIFIER %q", c.Notifier)
	}

	if c.Env == "prod" && c.JWTSecret == "dev-secret-change-me" {
		return fmt.Errorf("JWT_SECRET must be set in prod")
	}

	return nil
}

func (c Config) CollectionKey(name string) string {
	return c.StoragePrefix + "_" + name
}

func (c Config) SessionKey() string {
	return c.StoragePrefix + "_auth"
}

func buildDBURL() string {
	if url := getEnv("DATABASE_URL", ""); url != "" {
		return url
	}

	host := getEnv("DB_HOST", "127.0.0.1")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "teamflow")
	pass := getEnv("DB_PASSWORD", "teamflow")
	name := getEnv("DB_NAME", "teamflow")
	ssl := getEnv("DB_SSLMODE", "disable")

	return "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=" + ssl
}

func WithTimeout(duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), duration)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		num, err := strconv.Atoi(v)

		if err != nil {
			slog.Warn("invalid integer env value, using fallback", "key", key, "value", v)
			return fallback
		}

		return num
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)

		if err != nil {
			slog.Warn("invalid duration env value, using fallback", "key", key, "value", v)
			return fallback
		}

		return d
	}
	return fallback
}

func getEnvList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}

	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
