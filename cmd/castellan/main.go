package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/castellan/castellan/internal/admins"
	"github.com/castellan/castellan/internal/app"
	"github.com/castellan/castellan/internal/auth"
	"github.com/castellan/castellan/internal/platform/cache"
	"github.com/castellan/castellan/internal/platform/db"
	"github.com/castellan/castellan/internal/rbac"
	"github.com/castellan/castellan/internal/roles"
	"github.com/castellan/castellan/internal/shared"
	"github.com/castellan/castellan/internal/users"
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

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

	sessionManager := shared.NewSessionManager(redisClient, "castellan_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	rbacRepo := rbac.NewRepository(pool)
	factCache := rbac.NewFactCache(redisClient, cfg.RBACCacheTTL, logger)
	resolver := rbac.NewResolver(rbacRepo, factCache, logger)
	matrixBuilder := rbac.NewMatrixBuilder(rbacRepo, factCache, logger)
	guard := rbac.Middleware{Logger: logger}

	authHandler := auth.NewHandler(logger, auth.NewService(auth.NewRepository(pool)), resolver, matrixBuilder, sessionManager, csrfManager)
	usersHandler := users.NewHandler(logger, users.NewService(users.NewRepository(pool)), resolver, guard)
	adminsHandler := admins.NewHandler(logger, admins.NewService(admins.NewRepository(pool)), resolver, guard)
	rolesHandler := roles.NewHandler(logger, roles.NewService(roles.NewRepository(pool)), resolver, matrixBuilder, guard)
	permissionsHandler := rbac.NewPermissionsHandler(logger, rbacRepo, matrixBuilder, guard)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		SessionManager:     sessionManager,
		CSRFManager:        csrfManager,
		AuthHandler:        authHandler,
		UsersHandler:       usersHandler,
		AdminsHandler:      adminsHandler,
		RolesHandler:       rolesHandler,
		PermissionsHandler: permissionsHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", slog.String("addr", cfg.AppAddr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown", slog.Any("error", err))
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}
}
