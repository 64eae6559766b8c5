package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/agency-portal/agency-portal/internal/agencies"
	"github.com/agency-portal/agency-portal/internal/agents"
	"github.com/agency-portal/agency-portal/internal/app"
	"github.com/agency-portal/agency-portal/internal/auth"
	"github.com/agency-portal/agency-portal/internal/leads"
	"github.com/agency-portal/agency-portal/internal/observability"
	"github.com/agency-portal/agency-portal/internal/platform/cache"
	"github.com/agency-portal/agency-portal/internal/rbac"
	"github.com/agency-portal/agency-portal/internal/session"
	"github.com/agency-portal/agency-portal/internal/upstream"
	"github.com/agency-portal/agency-portal/internal/users"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("redis connect", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := session.NewManager(redisClient, cfg.SessionCookie, cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := session.NewCSRFManager(cfg.CSRFSecret)

	upstreamClient := upstream.NewClient(cfg.UpstreamBaseURL)

	authService := auth.NewService(upstreamClient, logger)
	sessionStore := session.NewStore(sessionManager, authService, logger)

	metrics := observability.NewMetrics()
	rbacMiddleware := rbac.Middleware{Logger: logger}

	authHandler := auth.NewHandler(logger, authService, sessionStore, csrfManager, metrics)
	agencyHandler := agencies.NewHandler(logger, upstreamClient, rbacMiddleware)
	agentHandler := agents.NewHandler(logger, upstreamClient, rbacMiddleware)
	leadHandler := leads.NewHandler(logger, upstreamClient, rbacMiddleware)
	userHandler := users.NewHandler(logger, upstreamClient, rbacMiddleware)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		SessionManager: sessionManager,
		SessionStore:   sessionStore,
		CSRFManager:    csrfManager,
		AuthHandler:    authHandler,
		AgencyHandler:  agencyHandler,
		AgentHandler:   agentHandler,
		LeadHandler:    leadHandler,
		UserHandler:    userHandler,
		Metrics:        metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
