package config

import (
	"errors"
	"strings"
	"time"
)

// DashboardConfig holds runtime configuration for the dashboard service.
type DashboardConfig struct {
	Environment        string
	Addr               string
	LogLevel           string
	SessionSecret      string
	CookieName         string
	CookieSecure       bool
	SessionIdleTTL     time.Duration
	MaxSessions        int
	StatRoles          []string
	RateLimitWrite     int
	RateLimitWindow    time.Duration
	RateLimitRedisAddr string
	RateLimitRedisPass string
	RateLimitRedisDB   int
	OutboxSize         int
	SSEHeartbeat       time.Duration
}

const defaultSessionSecret = "dev-session-secret"

// LoadDashboardConfig constructs a DashboardConfig from environment variables.
func LoadDashboardConfig() DashboardConfig {
	return DashboardConfig{
		Environment:        GetString("APP_ENV", "development"),
		Addr:               GetString("DASHBOARD_ADDR", ":3000"),
		LogLevel:           GetString("LOG_LEVEL", "info"),
		SessionSecret:      GetString("SESSION_SECRET", defaultSessionSecret),
		CookieName:         GetString("SESSION_COOKIE_NAME", "umd_session"),
		CookieSecure:       GetBool("SESSION_COOKIE_SECURE", false),
		SessionIdleTTL:     GetDuration("SESSION_IDLE_TTL_MINUTES", 60, time.Minute),
		MaxSessions:        GetInt("SESSION_MAX", 1000),
		StatRoles:          GetList("DASHBOARD_STAT_ROLES", []string{"Admin", "Editor"}),
		RateLimitWrite:     GetInt("RATE_LIMIT_WRITE", 60),
		RateLimitWindow:    GetDuration("RATE_LIMIT_WINDOW_SECONDS", 60, time.Second),
		RateLimitRedisAddr: GetString("RATE_LIMIT_REDIS_ADDR", ""),
		RateLimitRedisPass: GetString("RATE_LIMIT_REDIS_PASSWORD", ""),
		RateLimitRedisDB:   GetInt("RATE_LIMIT_REDIS_DB", 0),
		OutboxSize:         GetInt("NOTIFY_OUTBOX_SIZE", 20),
		SSEHeartbeat:       GetDuration("SSE_HEARTBEAT_SECONDS", 15, time.Second),
	}
}

// IsDevelopment reports whether the service runs with development defaults.
func (c DashboardConfig) IsDevelopment() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "" || env == "development" || env == "dev"
}

// Validate rejects configurations that cannot serve traffic safely.
func (c DashboardConfig) Validate() error {
	secret := strings.TrimSpace(c.SessionSecret)
	if secret == "" {
		return errors.New("SESSION_SECRET must be configured for the dashboard")
	}
	if secret == defaultSessionSecret && !c.IsDevelopment() {
		return errors.New("SESSION_SECRET must be changed outside development")
	}
	if strings.TrimSpace(c.CookieName) == "" {
		return errors.New("SESSION_COOKIE_NAME must not be empty")
	}
	if c.SessionIdleTTL <= 0 {
		return errors.New("SESSION_IDLE_TTL_MINUTES must be positive")
	}
	return nil
}
