package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/vidyalaya/sams-api/api/swagger"
	"github.com/vidyalaya/sams-api/internal/grading"
	"github.com/vidyalaya/sams-api/internal/handler"
	"github.com/vidyalaya/sams-api/internal/middleware"
	"github.com/vidyalaya/sams-api/internal/repository"
	"github.com/vidyalaya/sams-api/internal/service"
	"github.com/vidyalaya/sams-api/pkg/cache"
	"github.com/vidyalaya/sams-api/pkg/config"
	"github.com/vidyalaya/sams-api/pkg/database"
	"github.com/vidyalaya/sams-api/pkg/jobs"
	"github.com/vidyalaya/sams-api/pkg/logger"
	corsmiddleware "github.com/vidyalaya/sams-api/pkg/middleware/cors"
	reqidmiddleware "github.com/vidyalaya/sams-api/pkg/middleware/requestid"
	"github.com/vidyalaya/sams-api/pkg/storage"
)

// @title SAMS API
// @version 0.1.0
// @description Session-based attendance and assessment aggregation service
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
	defer db.Close()

	// Redis is optional: the rollup cache degrades to recompute-on-read.
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, statistics caching disabled", zap.Error(err))
		redisClient = nil
	}

	metricsSvc := service.NewMetricsService()
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Statistics.CacheTTL, logr,
		cfg.Statistics.CacheEnabled && redisClient != nil)

	sessionRepo := repository.NewSessionRepository(db)
	assessmentRepo := repository.NewAssessmentRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	examRepo := repository.NewExamRepository(db)

	scale := grading.NewScale(nil, cfg.Grading.PassingRatio)

	sessionSvc := service.NewSessionService(sessionRepo, enrollmentRepo, cacheSvc, metricsSvc,
		cfg.Attendance.DefaultRevisionReason, nil, logr)
	assessmentSvc := service.NewAssessmentService(assessmentRepo, examRepo, scale, cacheSvc, metricsSvc, nil, logr)
	statisticsSvc := service.NewStatisticsService(sessionRepo, assessmentRepo, cacheSvc, metricsSvc, logr)

	exportStore, err := storage.NewLocalStorage(cfg.Export.Dir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare export storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Export.Secret, cfg.Export.URLTTL)
	exportSvc := service.NewExportService(assessmentRepo, examRepo, sessionRepo, exportStore, signer, cfg.Export.FileTTL, logr)
	exportSvc.Cleanup()

	statsQueue := jobs.NewQueue("class-statistics", func(ctx context.Context, job jobs.Job) error {
		classID, ok := job.Payload.(string)
		if !ok {
			return fmt.Errorf("unexpected payload %T", job.Payload)
		}
		return sessionSvc.RefreshClassStatistics(ctx, classID)
	}, jobs.QueueConfig{Workers: 2, Logger: logr})
	statsQueue.Start(context.Background())
	defer statsQueue.Stop()
	sessionSvc.UseAsyncStatistics(func(classID string) error {
		return statsQueue.Enqueue(jobs.Job{ID: uuid.NewString(), Type: "class_statistics", Payload: classID})
	})

	sessionHandler := handler.NewSessionHandler(sessionSvc)
	assessmentHandler := handler.NewAssessmentHandler(assessmentSvc)
	statisticsHandler := handler.NewStatisticsHandler(statisticsSvc)
	exportHandler := handler.NewExportHandler(exportSvc)

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
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// The signed token is the credential; no JWT on downloads.
	r.GET("/exports/download", exportHandler.Download)

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(cfg.JWT.Secret))
	{
		attendance := api.Group("/attendance")
		{
			attendance.POST("/sessions", sessionHandler.Upsert)
			attendance.GET("/sessions", sessionHandler.List)
			attendance.GET("/sessions/:id", sessionHandler.Get)
			attendance.PATCH("/sessions/:id/entries", sessionHandler.MarkBulk)
			attendance.PATCH("/sessions/:id/entries/:studentId", sessionHandler.MarkEntry)
			attendance.POST("/sessions/:id/finalize", sessionHandler.Finalize)
		}

		assessments := api.Group("/assessments")
		{
			assessments.PUT("/marks", assessmentHandler.SetMarks)
			assessments.POST("/exams/:examId/students/:studentId/absent", assessmentHandler.MarkAbsent)
			assessments.GET("/:id", assessmentHandler.Get)
			assessments.POST("/:id/submit", assessmentHandler.Submit)
			assessments.POST("/:id/verify", middleware.RequireRoles("ADMIN", "HEAD_TEACHER"), assessmentHandler.Verify)
			assessments.POST("/:id/publish", middleware.RequireRoles("ADMIN"), assessmentHandler.Publish)
		}

		statistics := api.Group("/statistics")
		{
			statistics.GET("/exams/:examId", statisticsHandler.ExamStatistics)
			statistics.POST("/exams/:examId/ranks", middleware.RequireRoles("ADMIN", "HEAD_TEACHER"), statisticsHandler.AssignRanks)
			statistics.GET("/classes/:classId/attendance", statisticsHandler.ClassAttendance)
			statistics.GET("/classes/:classId/students/:studentId/attendance", statisticsHandler.StudentAttendance)
		}

		exports := api.Group("/exports")
		{
			exports.POST("/exams/:examId", middleware.RequireRoles("ADMIN", "HEAD_TEACHER"), exportHandler.ExamResults)
			exports.POST("/classes/:classId", middleware.RequireRoles("ADMIN", "HEAD_TEACHER"), exportHandler.ClassAttendance)
		}
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
