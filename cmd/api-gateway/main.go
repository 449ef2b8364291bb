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

	_ "github.com/noah-isme/carpool-api/api/swagger"
	"github.com/noah-isme/carpool-api/internal/handler"
	"github.com/noah-isme/carpool-api/internal/middleware"
	"github.com/noah-isme/carpool-api/internal/models"
	"github.com/noah-isme/carpool-api/internal/repository"
	"github.com/noah-isme/carpool-api/internal/service"
	"github.com/noah-isme/carpool-api/pkg/cache"
	"github.com/noah-isme/carpool-api/pkg/config"
	"github.com/noah-isme/carpool-api/pkg/database"
	"github.com/noah-isme/carpool-api/pkg/export"
	"github.com/noah-isme/carpool-api/pkg/jobs"
	"github.com/noah-isme/carpool-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/carpool-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/carpool-api/pkg/middleware/requestid"
	"github.com/noah-isme/carpool-api/pkg/storage"
)

// @title Carpool Coordinator API
// @version 0.1.0
// @description School carpool coordination: weekly preferences, fair driver assignment, makeups and exports
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	var cacheRepo service.CacheRepository
	if cfg.Cache.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, response cache disabled", "error", err)
		} else {
			defer redisClient.Close() //nolint:errcheck
			cacheRepo = repository.NewCacheRepository(redisClient, logr)
		}
	}
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.TTL, logr, cfg.Cache.Enabled)

	userRepo := repository.NewUserRepository(db)
	familyRepo := repository.NewFamilyRepository(db)
	groupRepo := repository.NewGroupRepository(db)
	scheduleRepo := repository.NewScheduleRepository(db)
	preferenceRepo := repository.NewPreferenceRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	fairnessRepo := repository.NewFairnessRepository(db)
	makeupRepo := repository.NewMakeupRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	exportRepo := repository.NewExportJobRepository(db)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "carpool-api",
	})

	notificationSvc := service.NewNotificationService(notificationRepo, nil, logr, service.NotificationConfig{
		Enabled:           cfg.Notifications.Enabled,
		WorkerConcurrency: cfg.Notifications.WorkerConcurrency,
	})

	familySvc := service.NewFamilyService(familyRepo, userRepo, validate, logr)
	fairnessSvc := service.NewFairnessService(fairnessRepo, logr)
	groupSvc := service.NewGroupService(groupRepo, familyRepo, fairnessSvc, cacheSvc, validate, logr)
	scheduleSvc := service.NewScheduleService(scheduleRepo, groupRepo, groupRepo, cacheSvc, notificationSvc, validate, logr)
	preferenceSvc := service.NewPreferenceService(preferenceRepo, scheduleRepo, groupRepo, validate, logr)
	resolverSvc := service.NewResolverService(scheduleRepo, preferenceRepo, groupRepo, assignmentRepo, fairnessSvc, notificationSvc, db, validate, logr, service.ResolverConfig{
		IncludeLateSubmissions: cfg.Scheduler.IncludeLateSubmissions,
		DefaultMaxPassengers:   cfg.Scheduler.DefaultMaxPassengers,
	})
	makeupSvc := service.NewMakeupService(makeupRepo, fairnessSvc, groupRepo, notificationSvc, db, validate, logr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	notificationSvc.Start(ctx)
	defer notificationSvc.Stop()

	var exportSvc *service.ExportService
	if cfg.Exports.Enabled {
		store, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("failed to init export storage", "error", err)
		}
		signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)

		var exportWorker *service.ExportWorker
		exportQueue := jobs.NewQueue("exports", func(ctx context.Context, job jobs.Job) error {
			return exportWorker.Handle(ctx, job)
		}, jobs.QueueConfig{
			Workers:    cfg.Exports.WorkerConcurrency,
			MaxRetries: cfg.Exports.WorkerRetries,
			RetryDelay: 5 * time.Second,
			Logger:     logr,
		})

		exportSvc = service.NewExportService(exportRepo, scheduleRepo, assignmentRepo, fairnessSvc, groupRepo, exportQueue, store, signer, service.ExportConfig{
			APIPrefix:       cfg.APIPrefix,
			ResultTTL:       cfg.Exports.SignedURLTTL,
			CleanupInterval: cfg.Exports.CleanupInterval,
			MaxRetries:      cfg.Exports.WorkerRetries,
		}, logr, export.NewCSVExporter(), export.NewPDFExporter())
		exportWorker = service.NewExportWorker(exportRepo, exportSvc, cfg.Exports.WorkerRetries, logr)

		exportQueue.Start(ctx)
		defer exportQueue.Stop()
		exportSvc.StartCleanup(ctx)
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

	metricsHandler := handler.NewMetricsHandler(metricsSvc)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	authHandler := handler.NewAuthHandler(authSvc)
	familyHandler := handler.NewFamilyHandler(familySvc)
	groupHandler := handler.NewGroupHandler(groupSvc)
	scheduleHandler := handler.NewScheduleHandler(scheduleSvc)
	preferenceHandler := handler.NewPreferenceHandler(preferenceSvc)
	resolverHandler := handler.NewResolverHandler(resolverSvc)
	makeupHandler := handler.NewMakeupHandler(makeupSvc)
	fairnessHandler := handler.NewFairnessHandler(fairnessSvc)
	notificationHandler := handler.NewNotificationHandler(notificationSvc)

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", middleware.Audit(userRepo, models.AuditActionLogin, "auth"), authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)
	auth.POST("/logout", middleware.JWT(authSvc), middleware.Audit(userRepo, models.AuditActionLogout, "auth"), authHandler.Logout)
	auth.POST("/change-password", middleware.JWT(authSvc), middleware.Audit(userRepo, models.AuditActionPasswordChange, "auth"), authHandler.ChangePassword)

	authed := api.Group("")
	authed.Use(middleware.JWT(authSvc))

	families := authed.Group("/families")
	families.POST("", middleware.RequireRoles(models.RoleAdmin), familyHandler.Create)
	families.GET("/:familyId", middleware.RBAC(string(models.RoleAdmin), "OWN_FAMILY"), familyHandler.Get)
	families.PUT("/:familyId", middleware.RBAC(string(models.RoleAdmin), "OWN_FAMILY"), familyHandler.Update)
	families.POST("/:familyId/children", middleware.RBAC(string(models.RoleAdmin), "OWN_FAMILY"), familyHandler.AddChild)
	families.DELETE("/:familyId/children/:childId", middleware.RBAC(string(models.RoleAdmin), "OWN_FAMILY"), familyHandler.RemoveChild)

	groups := authed.Group("/groups")
	groups.GET("", groupHandler.List)
	groups.POST("", middleware.RequireRoles(models.RoleAdmin), groupHandler.Create)
	groups.GET("/:id", groupHandler.Get)
	groups.POST("/:id/join", groupHandler.Join)
	groups.DELETE("/:id/members/:familyId", groupHandler.Leave)
	groups.GET("/:id/fairness", fairnessHandler.Snapshot)
	groups.GET("/:id/fairness/summary", fairnessHandler.Summary)
	groups.GET("/:id/fairness/:familyId", fairnessHandler.ByFamily)

	schedules := authed.Group("/schedules")
	schedules.GET("", scheduleHandler.List)
	schedules.POST("", middleware.RequireRoles(models.RoleAdmin), middleware.Audit(userRepo, models.AuditActionScheduleCreate, "schedule"), scheduleHandler.Create)
	schedules.GET("/:id", scheduleHandler.Get)
	schedules.PUT("/:id/status", middleware.RequireRoles(models.RoleAdmin), scheduleHandler.Transition)
	schedules.POST("/:id/preferences", preferenceHandler.Submit)
	schedules.GET("/:id/preferences", preferenceHandler.Get)
	schedules.GET("/:id/preferences/all", middleware.RequireRoles(models.RoleAdmin), preferenceHandler.ListBySchedule)
	schedules.POST("/:id/assignments/generate", middleware.RequireRoles(models.RoleAdmin), middleware.Audit(userRepo, models.AuditActionScheduleResolve, "schedule"), resolverHandler.Generate)
	schedules.GET("/:id/assignments", resolverHandler.ListAssignments)

	makeups := authed.Group("/makeups")
	makeups.GET("", makeupHandler.List)
	makeups.POST("", makeupHandler.Propose)
	makeups.PUT("/:id/review", middleware.RequireRoles(models.RoleAdmin), middleware.Audit(userRepo, models.AuditActionMakeupReview, "makeup"), makeupHandler.Review)
	makeups.PUT("/:id/complete", middleware.RequireRoles(models.RoleAdmin), makeupHandler.Complete)

	authed.GET("/notifications", notificationHandler.List)

	if exportSvc != nil {
		exportHandler := handler.NewExportHandler(exportSvc)
		exports := authed.Group("/exports")
		exports.POST("", exportHandler.Create)
		exports.GET("", exportHandler.List)
		exports.GET("/:id", exportHandler.Status)
		// Download authenticates via the signed token itself.
		api.GET("/exports/download/:token", exportHandler.Download)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
