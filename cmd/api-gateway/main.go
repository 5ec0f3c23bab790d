package main

import (
	"context"
	"errors"
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

	_ "github.com/noah-isme/sma-billing-api/api/swagger"
	"github.com/noah-isme/sma-billing-api/internal/handler"
	"github.com/noah-isme/sma-billing-api/internal/middleware"
	"github.com/noah-isme/sma-billing-api/internal/models"
	"github.com/noah-isme/sma-billing-api/internal/repository"
	"github.com/noah-isme/sma-billing-api/internal/service"
	"github.com/noah-isme/sma-billing-api/pkg/cache"
	"github.com/noah-isme/sma-billing-api/pkg/config"
	"github.com/noah-isme/sma-billing-api/pkg/database"
	"github.com/noah-isme/sma-billing-api/pkg/export"
	"github.com/noah-isme/sma-billing-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-billing-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-billing-api/pkg/middleware/requestid"
)

// @title SMA Billing API
// @version 1.0.0
// @description Billing obligation ledger for school administration
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	groupRepo := repository.NewGroupRepository(db)
	configRepo := repository.NewBillingConfigRepository(db)
	recordRepo := repository.NewBillingRecordRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)
	ledgerStore := repository.NewLedgerStore(db, recordRepo, paymentRepo, studentRepo, ledgerRepo)

	metricsSvc := service.NewMetricsService()

	var cacheSvc *service.CacheService
	if redisClient != nil {
		cacheRepo := repository.NewCacheRepository(redisClient, logr)
		cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Reports.CacheTTL, logr, true)
	}

	authSvc := service.NewAuthService(userRepo, validate, logr, cfg.JWT)
	configSvc := service.NewBillingConfigService(configRepo, validate, logr)
	resolver := service.NewScopeResolver(studentRepo, groupRepo, logr)
	obligationSvc := service.NewObligationService(configRepo, resolver, ledgerStore, cacheSvc, metricsSvc, logr)
	settlementSvc := service.NewSettlementService(ledgerStore, paymentRepo, recordRepo, cacheSvc, metricsSvc, validate, logr)
	sweeperSvc := service.NewSweeperService(configRepo, recordRepo, cacheSvc, metricsSvc, logr)
	reportSvc := service.NewReportService(studentRepo, recordRepo, configRepo, cacheSvc, cfg.Reports.CacheTTL,
		export.NewPDFExporter(), export.NewCSVExporter(), logr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var scheduler *service.SweepScheduler
	if cfg.Sweeper.Enabled {
		scheduler = service.NewSweepScheduler(sweeperSvc, cfg.Sweeper, logr)
		scheduler.Start(ctx)
		defer scheduler.Stop()
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	authHandler := handler.NewAuthHandler(authSvc)
	configHandler := handler.NewBillingConfigHandler(configSvc, obligationSvc, sweeperSvc, reportSvc)
	paymentHandler := handler.NewPaymentHandler(settlementSvc)
	reportHandler := handler.NewReportHandler(reportSvc)

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)

	staff := middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin, models.RoleBursar)

	configs := api.Group("/billing-configs", middleware.JWT(authSvc))
	configs.GET("", staff, configHandler.List)
	configs.GET("/:id", staff, configHandler.Get)
	configs.POST("", staff, middleware.Audit(userRepo, models.AuditActionPolicy, "billing_config"), configHandler.Create)
	configs.PUT("/:id", staff, middleware.Audit(userRepo, models.AuditActionPolicy, "billing_config"), configHandler.Update)
	configs.DELETE("/:id", staff, middleware.Audit(userRepo, models.AuditActionPolicy, "billing_config"), configHandler.Deactivate)
	configs.POST("/:id/generate", staff, middleware.Audit(userRepo, models.AuditActionGenerate, "billing_config"), configHandler.Generate)
	configs.POST("/:id/sweep", staff, middleware.Audit(userRepo, models.AuditActionSweep, "billing_config"), configHandler.Sweep)

	payments := api.Group("/payments", middleware.JWT(authSvc))
	payments.POST("/settle", staff, middleware.Audit(userRepo, models.AuditActionSettle, "payment"), paymentHandler.Settle)
	payments.GET("/:id", staff, paymentHandler.Get)
	payments.POST("/:id/invoice", staff, paymentHandler.AttachInvoice)

	if cfg.Reports.Enabled {
		configs.GET("/:id/stats", staff, configHandler.Stats)

		selfOrStaff := middleware.RBAC(
			string(models.RoleSuperAdmin), string(models.RoleAdmin), string(models.RoleBursar), "SELF")
		students := api.Group("/students", middleware.JWT(authSvc))
		students.GET("/:id/statement", selfOrStaff, reportHandler.Statement)
		students.GET("/:id/statement/export", selfOrStaff, reportHandler.ExportStatement)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("server shutdown failed", "error", err)
	}
}
