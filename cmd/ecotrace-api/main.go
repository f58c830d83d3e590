package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/SalahKhadir/ecotrace-pfa-sub000/api/swagger"
	"github.com/SalahKhadir/ecotrace-pfa-sub000/internal/handler"
	"github.com/SalahKhadir/ecotrace-pfa-sub000/internal/middleware"
	"github.com/SalahKhadir/ecotrace-pfa-sub000/internal/models"
	"github.com/SalahKhadir/ecotrace-pfa-sub000/internal/repository"
	"github.com/SalahKhadir/ecotrace-pfa-sub000/internal/service"
	"github.com/SalahKhadir/ecotrace-pfa-sub000/pkg/cache"
	"github.com/SalahKhadir/ecotrace-pfa-sub000/pkg/config"
	"github.com/SalahKhadir/ecotrace-pfa-sub000/pkg/database"
	"github.com/SalahKhadir/ecotrace-pfa-sub000/pkg/logger"
	corsmiddleware "github.com/SalahKhadir/ecotrace-pfa-sub000/pkg/middleware/cors"
	reqidmiddleware "github.com/SalahKhadir/ecotrace-pfa-sub000/pkg/middleware/requestid"
	"github.com/SalahKhadir/ecotrace-pfa-sub000/pkg/storage"
)

// @title EcoTrace API
// @version 1.0.0
// @description Waste collection workflow backend: request intake, scheduling, transport and valorization
// @BasePath /api/v1
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close() //nolint:errcheck

	attachments, err := storage.NewLocalStorage(cfg.Attachments.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare attachment storage", "error", err)
	}

	validate := validator.New()
	metrics := service.NewMetricsService()

	userRepo := repository.NewUserRepository(db)
	requestRepo := repository.NewRequestRepository(db)
	collectionRepo := repository.NewCollectionRepository(db)
	wasteRepo := repository.NewWasteRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Notifications.CacheTTL, logr)
	notificationSvc := service.NewNotificationService(notificationRepo, cacheSvc, logr, service.NotificationConfig{
		SyntheticFallback: cfg.Notifications.SyntheticFallback,
		CacheTTL:          cfg.Notifications.CacheTTL,
		QueueWorkers:      cfg.Notifications.QueueWorkers,
		QueueRetries:      cfg.Notifications.QueueRetries,
	})

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})
	requestSvc := service.NewRequestService(requestRepo, notificationSvc, userRepo, metrics, validate, logr)
	collectionSvc := service.NewCollectionService(collectionRepo, requestRepo, userRepo, wasteRepo, notificationSvc, userRepo, metrics, validate, logr)
	wasteSvc := service.NewWasteService(wasteRepo, notificationSvc, userRepo, metrics, validate, logr)
	reportSvc := service.NewReportService(collectionRepo, wasteRepo, logr)

	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	notificationSvc.Start(rootCtx)
	defer notificationSvc.Stop()

	authHandler := handler.NewAuthHandler(authSvc)
	requestHandler := handler.NewRequestHandler(requestSvc, attachments, cfg.Attachments.MaxFileSizeBytes)
	collectionHandler := handler.NewCollectionHandler(collectionSvc)
	wasteHandler := handler.NewWasteHandler(wasteSvc)
	notificationHandler := handler.NewNotificationHandler(notificationSvc, cfg.Notifications.PollInterval)
	reportHandler := handler.NewReportHandler(reportSvc)
	metricsHandler := handler.NewMetricsHandler(metrics)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)

		authed := auth.Group("")
		authed.Use(middleware.JWT(authSvc))
		authed.POST("/logout", authHandler.Logout)
		authed.POST("/change-password", authHandler.ChangePassword)
		authed.GET("/me", authHandler.Me)
	}

	secured := api.Group("")
	secured.Use(middleware.JWT(authSvc))

	requests := secured.Group("/requests")
	{
		requests.POST("", middleware.RequireRequester(), requestHandler.Create)
		requests.GET("", requestHandler.List)
		requests.GET("/:id", requestHandler.Get)
		requests.GET("/:id/photo", requestHandler.Photo)
		requests.POST("/:id/approve", middleware.RequireRoles(models.RoleAdmin), requestHandler.Approve)
		requests.POST("/:id/reject", middleware.RequireRoles(models.RoleAdmin), requestHandler.Reject)
	}

	collections := secured.Group("/collections")
	{
		collections.POST("", middleware.RequireRoles(models.RoleAdmin, models.RoleLogistique), collectionHandler.Schedule)
		collections.GET("", collectionHandler.List)
		collections.GET("/:id", collectionHandler.Get)
		collections.POST("/:id/assign", middleware.RequireRoles(models.RoleAdmin, models.RoleLogistique), collectionHandler.AssignTransporter)
		collections.POST("/:id/reception", middleware.RequireRoles(models.RoleTransporteur, models.RoleLogistique), collectionHandler.ConfirmReception)
		collections.POST("/:id/delivery", middleware.RequireRoles(models.RoleTransporteur, models.RoleLogistique), collectionHandler.ConfirmDelivery)
		collections.POST("/:id/cancel", middleware.RequireRoles(models.RoleAdmin, models.RoleLogistique), collectionHandler.Cancel)
	}

	wasteItems := secured.Group("/waste-items")
	wasteItems.Use(middleware.RequireRoles(models.RoleTechnicien, models.RoleLogistique, models.RoleAdmin))
	{
		wasteItems.GET("", wasteHandler.List)
		wasteItems.GET("/:id", wasteHandler.Get)
		wasteItems.POST("/:id/start", middleware.RequireRoles(models.RoleTechnicien), wasteHandler.Start)
		wasteItems.POST("/:id/finalize", middleware.RequireRoles(models.RoleTechnicien), wasteHandler.Finalize)
	}

	notifications := secured.Group("/notifications")
	{
		notifications.GET("", notificationHandler.List)
		notifications.GET("/stream", notificationHandler.Stream)
		notifications.GET("/unread-count", notificationHandler.UnreadCount)
		notifications.POST("/:id/read", notificationHandler.MarkRead)
		notifications.POST("/read-all", notificationHandler.MarkAllRead)
		notifications.DELETE("/:id", notificationHandler.Delete)
		notifications.DELETE("", notificationHandler.ClearAll)
	}

	if cfg.Reports.Enabled {
		reports := secured.Group("/reports")
		reports.Use(middleware.RequireRoles(models.RoleAdmin, models.RoleLogistique))
		reports.Use(middleware.Audit(userRepo, "REPORT_DOWNLOAD", "report"))
		reports.GET("/collections", reportHandler.Collections)
		reports.GET("/valorization", reportHandler.Valorization)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logr.Sugar().Infow("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Warnw("graceful shutdown failed", "error", err)
	}
}
