package main // Entry point package

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/iliyamo/sales-tenancy/internal/cache"
	"github.com/iliyamo/sales-tenancy/internal/config"
	"github.com/iliyamo/sales-tenancy/internal/database"
	"github.com/iliyamo/sales-tenancy/internal/handler"
	"github.com/iliyamo/sales-tenancy/internal/hierarchy"
	"github.com/iliyamo/sales-tenancy/internal/logger"
	"github.com/iliyamo/sales-tenancy/internal/metrics"
	"github.com/iliyamo/sales-tenancy/internal/middleware"
	"github.com/iliyamo/sales-tenancy/internal/queue"
	"github.com/iliyamo/sales-tenancy/internal/repository"
	"github.com/iliyamo/sales-tenancy/internal/router"
	"github.com/iliyamo/sales-tenancy/internal/service"
	"github.com/iliyamo/sales-tenancy/internal/visibility"
)

func main() {
	cfg := config.Load() // Load environment config

	zl, err := logger.New(logger.Config{Level: cfg.LogLevel, Environment: cfg.Env, ServiceName: "sales-tenancy"})
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()
	zap.ReplaceGlobals(zl)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithContext(ctx, zl)

	db, err := database.Open(ctx, cfg.DB)
	if err != nil {
		zl.Fatal("open database", zap.Error(err))
	}
	defer db.Close()

	// Redis is optional: without it the engine reads through to MySQL and
	// the login limiter lets requests pass.
	rdb := config.NewRedisClient(cfg.Redis)
	if rdb == nil {
		zl.Warn("redis unavailable, subordinate cache and login rate limit disabled", zap.String("addr", cfg.Redis.Addr))
	} else {
		defer rdb.Close()
	}

	users := repository.NewUserRepo(db)
	engine := hierarchy.New(users, cache.FromClient(rdb, cfg.Redis.Prefix),
		hierarchy.WithTTL(cfg.Hierarchy.CacheTTL),
		hierarchy.WithMaxDepth(cfg.Hierarchy.MaxDepth),
	)
	filter := visibility.NewFilter(engine, cfg.Hierarchy.UseCache)
	org := service.NewOrgService(users, engine, service.NewPublisher(cfg.AMQPURL))

	if cfg.AMQPURL != "" {
		go func() {
			if err := queue.StartManagerChangedConsumer(ctx, cfg.AMQPURL, engine); err != nil && !errors.Is(err, context.Canceled) {
				zl.Error("hierarchy consumer stopped", zap.Error(err))
			}
		}()
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.RequestID())
	e.Use(echomw.Recover())
	e.Use(logger.Middleware(zl))
	e.Use(metrics.Middleware())

	auth := handler.NewAuthHandler(cfg, users, repository.NewTenantRepo(db))
	router.RegisterRoutes(e, db)
	router.RegisterAuth(e, auth, middleware.RateLimit(cfg.RateLimit, rdb))
	router.RegisterAPI(e, router.API{
		Auth: auth,
		Records: handler.NewRecordHandler(filter,
			repository.NewCustomerRepo(db),
			repository.NewRecordingRepo(db),
			repository.NewReportRepo(db),
			repository.NewSalesRoomRepo(db),
		),
		Hierarchy: handler.NewHierarchyHandler(engine, org, cfg.Hierarchy.UseCache),
		Teams:     handler.NewTeamHandler(repository.NewTeamRepo(db), users),
		Roles:     handler.NewRoleHandler(repository.NewRoleRepo(db)),
	}, cfg.JWTSecret, users)

	addr := ":" + cfg.Port
	go func() {
		zl.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		zl.Error("shutdown", zap.Error(err))
	}
}
