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
	"go.uber.org/zap"

	_ "github.com/koyo-learn/koyo-api/api/swagger"
	"github.com/koyo-learn/koyo-api/internal/handler"
	"github.com/koyo-learn/koyo-api/internal/middleware"
	"github.com/koyo-learn/koyo-api/internal/repository"
	"github.com/koyo-learn/koyo-api/internal/service"
	"github.com/koyo-learn/koyo-api/pkg/cache"
	"github.com/koyo-learn/koyo-api/pkg/config"
	"github.com/koyo-learn/koyo-api/pkg/database"
	"github.com/koyo-learn/koyo-api/pkg/logger"
	corsmiddleware "github.com/koyo-learn/koyo-api/pkg/middleware/cors"
	reqidmiddleware "github.com/koyo-learn/koyo-api/pkg/middleware/requestid"
	"github.com/koyo-learn/koyo-api/pkg/storage"
)

// @title Koyo API
// @version 1.0.0
// @description Online learning platform: courses, lessons, enrollments, reviews and instructor analytics
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	metricsSvc := service.NewMetricsService()

	var cacheSvc *service.CacheService
	if cfg.Analytics.CacheEnabled {
		client, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, caching disabled", zap.Error(err))
		} else {
			cacheRepo := repository.NewCacheRepository(client, logr)
			defer cacheRepo.Close() //nolint:errcheck
			cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Analytics.CacheTTL, logr, true)
		}
	}

	mediaStore, err := storage.NewLocalStorage(cfg.Media.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init media storage", "error", err)
	}
	reportStore, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init report storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	lessonRepo := repository.NewLessonRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	reviewRepo := repository.NewReviewRepository(db)
	analyticsRepo := repository.NewAnalyticsRepository(db)
	reportRepo := repository.NewReportRepository(db)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		TokenSecret: cfg.JWT.Secret,
		TokenExpiry: cfg.JWT.Expiration,
		Issuer:      cfg.JWT.Issuer,
	})
	courseSvc := service.NewCourseService(courseRepo, lessonRepo, enrollmentRepo, reviewRepo, userRepo, cacheSvc, cfg.Analytics.CacheTTL, validate, logr)
	lessonSvc := service.NewLessonService(lessonRepo, courseRepo, validate, logr)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, courseRepo, lessonRepo, reviewRepo, cacheSvc, metricsSvc, logr)
	reviewSvc := service.NewReviewService(reviewRepo, courseRepo, enrollmentRepo, userRepo, cacheSvc, validate, logr)
	analyticsSvc := service.NewAnalyticsService(analyticsRepo, courseRepo, cacheSvc, cfg.Analytics.CacheTTL, logr)
	mediaSvc := service.NewMediaService(mediaStore, service.MediaConfig{
		PublicBaseURL:    cfg.Media.PublicBaseURL,
		MaxFileSizeBytes: cfg.Media.MaxFileSizeBytes,
	}, validate, logr)
	reportSvc := service.NewReportService(reportRepo, analyticsSvc, reportStore, signer, metricsSvc, service.ReportConfig{
		WorkerConcurrency: cfg.Reports.WorkerConcurrency,
		WorkerRetries:     cfg.Reports.WorkerRetries,
		DownloadBasePath:  cfg.APIPrefix + "/reports/download",
	}, validate, logr)
	presenceSvc := service.NewPresenceService(logr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reportSvc.Start(ctx)
	defer reportSvc.Stop()

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
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}
	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	handler.RegisterRoutes(r, cfg.APIPrefix, authSvc, handler.Handlers{
		Auth:        handler.NewAuthHandler(authSvc),
		Courses:     handler.NewCourseHandler(courseSvc),
		Lessons:     handler.NewLessonHandler(lessonSvc),
		Enrollments: handler.NewEnrollmentHandler(enrollmentSvc),
		Reviews:     handler.NewReviewHandler(reviewSvc),
		Media:       handler.NewMediaHandler(mediaSvc),
		Analytics:   handler.NewAnalyticsHandler(analyticsSvc),
		Reports:     handler.NewReportHandler(reportSvc),
		Presence:    handler.NewPresenceHandler(presenceSvc, lessonSvc),
	})

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
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
