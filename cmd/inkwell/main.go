package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/inkwell-press/inkwell/internal/app"
	"github.com/inkwell-press/inkwell/internal/articles"
	"github.com/inkwell-press/inkwell/internal/auth"
	"github.com/inkwell-press/inkwell/internal/identity"
	"github.com/inkwell-press/inkwell/internal/platform/cache"
	"github.com/inkwell-press/inkwell/internal/platform/db"
	"github.com/inkwell-press/inkwell/internal/rbac"
	"github.com/inkwell-press/inkwell/internal/shared"
	"github.com/inkwell-press/inkwell/internal/users"
	"github.com/inkwell-press/inkwell/internal/view"
	"github.com/inkwell-press/inkwell/jobs"
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

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, cfg.SessionCookie, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	templates, err := view.NewEngine()
	if err != nil {
		logger.Error("parse templates", slog.Any("error", err))
		os.Exit(1)
	}

	identityRepo := identity.NewRepository(dbpool)
	identityService := identity.NewService(identityRepo, logger)

	if cfg.SeedAccounts {
		seeds := []identity.SeedAccount{
			{Email: cfg.SeedAdminEmail, Name: cfg.SeedAdminName, Password: cfg.SeedAdminPassword, Approved: true, Role: rbac.RoleAdmin},
			{Email: cfg.SeedContributorEmail, Name: cfg.SeedContributorName, Password: cfg.SeedContributorPass, Approved: false, Role: rbac.RoleContributor},
		}
		if err := identityService.Provision(ctx, seeds); err != nil {
			logger.Error("provision seed accounts", slog.Any("error", err))
			os.Exit(1)
		}
	}

	rbacMiddleware := rbac.Middleware{Resolver: identityService, Logger: logger}

	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(identityService, authRepo)
	authHandler := auth.NewHandler(logger, authService, templates, sessionManager, csrfManager)

	auditLogger := shared.NewAuditLogger(dbpool)

	articleRepo := articles.NewRepository(dbpool)
	articleService := articles.NewService(articleRepo, identityService, auditLogger, logger)
	articlesHandler := articles.NewHandler(logger, articleService, templates, csrfManager, sessionManager, rbacMiddleware)

	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	usersService := users.NewService(identityService, auditLogger, jobClient, logger)
	usersHandler := users.NewHandler(logger, usersService, templates, csrfManager, sessionManager, rbacMiddleware)

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		SessionManager:  sessionManager,
		CSRFManager:     csrfManager,
		AuthHandler:     authHandler,
		ArticlesHandler: articlesHandler,
		UsersHandler:    usersHandler,
		RBACMiddleware:  rbacMiddleware,
	})

	server := app.NewServer(cfg, router)

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
