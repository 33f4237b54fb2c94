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

	_ "github.com/registrocorsi/register-api/api/swagger"
	"github.com/registrocorsi/register-api/internal/handler"
	"github.com/registrocorsi/register-api/internal/middleware"
	"github.com/registrocorsi/register-api/internal/models"
	"github.com/registrocorsi/register-api/internal/repository"
	"github.com/registrocorsi/register-api/internal/service"
	"github.com/registrocorsi/register-api/pkg/cache"
	"github.com/registrocorsi/register-api/pkg/config"
	"github.com/registrocorsi/register-api/pkg/database"
	"github.com/registrocorsi/register-api/pkg/jobs"
	"github.com/registrocorsi/register-api/pkg/logger"
	corsmiddleware "github.com/registrocorsi/register-api/pkg/middleware/cors"
	reqidmiddleware "github.com/registrocorsi/register-api/pkg/middleware/requestid"
	"github.com/registrocorsi/register-api/pkg/storage"
)

// @title Registro Corsi API
// @version 1.0.0
// @description Attendance register computation from videoconference exports
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	courseRepo := repository.NewCourseRepository(db)
	lessonDayRepo := repository.NewLessonDayRepository(db)
	userRepo := repository.NewUserRepository(db)

	var cacheSvc *service.CacheService
	if cfg.Cache.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, register cache disabled", "error", err)
		} else {
			cacheRepo := repository.NewCacheRepository(redisClient, logr)
			defer cacheRepo.Close() //nolint:errcheck
			cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.TTL, logr, true)
		}
	}

	authSvc := service.NewAuthService(userRepo, cfg.JWT.Secret, cfg.JWT.Expiration, cfg.JWT.Issuer, validate, logr)
	courseSvc := service.NewCourseService(courseRepo, cacheSvc, validate, logr)
	registerSvc := service.NewRegisterService(service.RegisterServiceParams{
		Courses:    courseRepo,
		LessonDays: lessonDayRepo,
		Cache:      cacheSvc,
		Metrics:    metricsSvc,
		Validator:  validate,
		Logger:     logr,
		Config: service.RegisterConfig{
			Windows: models.LessonWindows{
				Morning:   models.LessonWindow{StartHour: cfg.Engine.MorningStartHour, EndHour: cfg.Engine.MorningEndHour},
				Afternoon: models.LessonWindow{StartHour: cfg.Engine.AfternoonStartHour, EndHour: cfg.Engine.AfternoonEndHour},
			},
			ReconnectTolerance:       cfg.Engine.ReconnectTolerance,
			PresenceToleranceMinutes: cfg.Engine.PresenceToleranceMinutes,
			MaxParticipantSlots:      cfg.Engine.MaxParticipantSlots,
			ParticipantTableMarker:   cfg.Engine.ParticipantTableMarker,
			DocumentPrefix:           cfg.Engine.DocumentPrefix,
			CacheTTL:                 cfg.Cache.TTL,
		},
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var exportSvc *service.ExportService
	if cfg.Exports.Enabled {
		store, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("failed to init export storage", "error", err)
		}
		exportSvc = service.NewExportService(lessonDayRepo, store, jobs.QueueConfig{
			Workers:    cfg.Exports.WorkerConcurrency,
			MaxRetries: cfg.Exports.WorkerRetries,
			RetryDelay: 5 * time.Second,
		}, validate, logr)
		exportSvc.Start(ctx)
		defer exportSvc.Stop()
	}

	authHandler := handler.NewAuthHandler(authSvc)
	courseHandler := handler.NewCourseHandler(courseSvc)
	registerHandler := handler.NewRegisterHandler(registerSvc, exportSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db unreachable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", authHandler.Login)

	protected := api.Group("")
	protected.Use(middleware.JWT(authSvc))
	{
		protected.GET("/auth/me", authHandler.Me)

		protected.GET("/courses", courseHandler.List)
		protected.GET("/courses/:id", courseHandler.Get)

		adminOnly := middleware.RequireRoles(models.RoleAdmin)
		protected.POST("/courses", adminOnly, courseHandler.Create)
		protected.PUT("/courses/:id", adminOnly, courseHandler.Update)
		protected.DELETE("/courses/:id", adminOnly, courseHandler.Delete)

		protected.POST("/registers/analyze", registerHandler.Analyze)
		protected.POST("/registers/compute", registerHandler.Compute)
		protected.POST("/registers/batch", registerHandler.ComputeBatch)
		protected.POST("/registers/:courseId/:date/export", registerHandler.Export)
		protected.GET("/registers/:courseId", registerHandler.ListDays)
		protected.GET("/registers/:courseId/:date", registerHandler.GetDay)

		protected.GET("/metrics/engine", metricsHandler.Snapshot)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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
