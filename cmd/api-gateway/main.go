package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/sma-access-api/api/swagger"
	"github.com/noah-isme/sma-access-api/internal/handler"
	"github.com/noah-isme/sma-access-api/internal/middleware"
	"github.com/noah-isme/sma-access-api/internal/models"
	"github.com/noah-isme/sma-access-api/internal/repository"
	"github.com/noah-isme/sma-access-api/internal/service"
	"github.com/noah-isme/sma-access-api/pkg/cache"
	"github.com/noah-isme/sma-access-api/pkg/clock"
	"github.com/noah-isme/sma-access-api/pkg/config"
	"github.com/noah-isme/sma-access-api/pkg/database"
	"github.com/noah-isme/sma-access-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-access-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-access-api/pkg/middleware/requestid"
)

// @title SMA Access API
// @version 0.1.0
// @description Temporary access grant service
// @BasePath /
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	var cacheRepo service.CacheRepository
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
	} else {
		defer redisClient.Close()
		cacheRepo = repository.NewCacheRepository(redisClient, logr)
	}

	validate := validator.New()
	metricsService := service.NewMetricsService()
	cacheService := service.NewCacheService(cacheRepo, metricsService, cfg.Access.StatsCacheTTL, logr, cfg.Access.CacheEnabled && cacheRepo != nil)

	userRepo := repository.NewUserRepository(db)
	accessRepo := repository.NewAccessRepository(db)
	resourceRepo := repository.NewResourceRepository(db)
	eventRepo := repository.NewAccessEventRepository(db)

	authService := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            "sma-access-api",
	})
	accessService := service.NewAccessService(
		accessRepo,
		userRepo,
		resourceRepo,
		eventRepo,
		cacheService,
		metricsService,
		clock.System(),
		validate,
		logr,
		cfg.Access.StatsCacheTTL,
		cfg.Access.MaxPageSize,
	)

	authHandler := handler.NewAuthHandler(authService)
	accessHandler := handler.NewAccessHandler(accessService)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metricsService.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.GET("/me", middleware.JWT(authService), authHandler.Me)

	grants := api.Group("/temporary-access")
	grants.Use(middleware.JWT(authService))
	grants.Use(middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin, models.RoleTeacher))
	{
		grants.GET("", accessHandler.List)
		grants.GET("/statistics", accessHandler.Statistics)
		grants.GET("/export", accessHandler.Export)
		grants.GET("/:id", accessHandler.Get)
		grants.GET("/:id/events", accessHandler.Events)
		grants.POST("", middleware.Audit(userRepo, models.AuditActionAccessGrant, "temporary_access"), accessHandler.Create)
		grants.PATCH("/:id/extend", middleware.Audit(userRepo, models.AuditActionAccessExtend, "temporary_access"), accessHandler.Extend)
		grants.DELETE("/:id", middleware.Audit(userRepo, models.AuditActionAccessRevoke, "temporary_access"), accessHandler.Revoke)
		grants.DELETE("/user/:userId", middleware.Audit(userRepo, models.AuditActionAccessRevoke, "temporary_access"), accessHandler.RevokeAllForUser)
		grants.POST("/cleanup", middleware.Audit(userRepo, models.AuditActionAccessCleanup, "temporary_access"), accessHandler.Cleanup)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var sweeper *service.Sweeper
	if cfg.Access.SweepEnabled {
		sweeper = service.NewSweeper(accessService, cfg.Access.SweepInterval, logr)
		sweeper.Start(ctx)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	if sweeper != nil {
		sweeper.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
