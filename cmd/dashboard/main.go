package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	httpx "github.com/splax/umd/internal/http"
	"github.com/splax/umd/internal/service/users"
	"github.com/splax/umd/internal/session"
	"github.com/splax/umd/internal/ws"
	"github.com/splax/umd/pkg/config"
	"github.com/splax/umd/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	bootLog := logger.New("dashboard", logger.ParseLevel(os.Getenv("LOG_LEVEL")))
	if err := config.LoadEnvFile(config.GetString("DASHBOARD_ENV_FILE", ".env")); err != nil {
		bootLog.Error("failed to load env file", "error", err)
		os.Exit(1)
	}
	cfg := config.LoadDashboardConfig()
	log := logger.New("dashboard", logger.ParseLevel(cfg.LogLevel))
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	statRoles, err := users.ParseStatRoles(cfg.StatRoles)
	if err != nil {
		log.Error("invalid DASHBOARD_STAT_ROLES", "error", err)
		os.Exit(1)
	}

	sessions, err := session.NewManager(cfg.SessionSecret, cfg.CookieName, cfg.CookieSecure, 0)
	if err != nil {
		log.Error("failed to configure sessions", "error", err)
		os.Exit(1)
	}

	hub := ws.NewHub()
	defer hub.Close()
	registry := session.NewRegistry(session.Options{
		IdleTTL:     cfg.SessionIdleTTL,
		MaxSessions: cfg.MaxSessions,
		OutboxSize:  cfg.OutboxSize,
		OnEvict: func(id string) {
			hub.Drop(id)
			log.Debug("session ended", "session_id", id)
		},
	})
	defer registry.Close()

	var limiter httpx.RateLimiter
	if addr := strings.TrimSpace(cfg.RateLimitRedisAddr); addr != "" {
		redisLimiter, err := httpx.NewRedisRateLimiter(addr, cfg.RateLimitRedisPass, cfg.RateLimitRedisDB, log)
		if err != nil {
			log.Warn("redis rate limiter unavailable", "error", err)
		} else {
			limiter = redisLimiter
		}
	}
	if limiter == nil {
		limiter = httpx.NewMemoryRateLimiter()
	}

	router, err := httpx.NewRouter(httpx.Options{
		Logger:      log,
		Sessions:    sessions,
		Registry:    registry,
		Hub:         hub,
		Limiter:     limiter,
		StatRoles:   statRoles,
		WriteLimit:  cfg.RateLimitWrite,
		WriteWindow: cfg.RateLimitWindow,
		Heartbeat:   cfg.SSEHeartbeat,
	})
	if err != nil {
		log.Error("failed to build router", "error", err)
		os.Exit(1)
	}
	defer router.Close()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("dashboard server starting", "addr", cfg.Addr, "env", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		hub.Close()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
			return err
		}
		log.Info("dashboard server stopped")
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
