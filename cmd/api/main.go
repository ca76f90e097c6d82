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
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/Isurika-2001/university-management-system-sub001/api/swagger"
	"github.com/Isurika-2001/university-management-system-sub001/internal/handler"
	"github.com/Isurika-2001/university-management-system-sub001/internal/middleware"
	"github.com/Isurika-2001/university-management-system-sub001/internal/repository"
	"github.com/Isurika-2001/university-management-system-sub001/internal/service"
	"github.com/Isurika-2001/university-management-system-sub001/pkg/cache"
	"github.com/Isurika-2001/university-management-system-sub001/pkg/config"
	"github.com/Isurika-2001/university-management-system-sub001/pkg/database"
	"github.com/Isurika-2001/university-management-system-sub001/pkg/jobs"
	"github.com/Isurika-2001/university-management-system-sub001/pkg/logger"
	corsmiddleware "github.com/Isurika-2001/university-management-system-sub001/pkg/middleware/cors"
	reqidmiddleware "github.com/Isurika-2001/university-management-system-sub001/pkg/middleware/requestid"
)

// @title University Management API
// @version 1.0.0
// @description Courses, classrooms, enrollments and exam marks with sequential module progression.
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
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	metrics := service.NewMetricsService()
	checks := map[string]handler.ReadinessCheck{"postgres": db.PingContext}

	var cacheSvc *service.CacheService
	if cfg.Cache.Enabled {
		client, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, module catalog cache disabled", zap.Error(err))
		} else {
			cacheRepo := repository.NewCacheRepository(client, logr)
			defer cacheRepo.Close() //nolint:errcheck
			cacheSvc = service.NewCacheService(cacheRepo, metrics, cfg.Cache.CatalogTTL, logr, true)
			checks["redis"] = cacheRepo.Ping
		}
	}

	courseRepo := repository.NewCourseRepository(db)
	batchRepo := repository.NewBatchRepository(db)
	classroomRepo := repository.NewClassroomRepository(db)
	examRepo := repository.NewExamRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	membershipRepo := repository.NewMembershipRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	documentRepo := repository.NewRequiredDocumentRepository(db)
	activityRepo := repository.NewActivityRepository(db)

	validate := service.NewValidator()
	authSvc := service.NewAuthService(logr, service.AuthConfig{AccessTokenSecret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer})
	courseSvc := service.NewCourseService(courseRepo, cacheSvc, cfg.Cache.CatalogTTL, validate, logr)
	batchSvc := service.NewBatchService(batchRepo, courseRepo, validate, logr)
	gate := service.NewProgressionService(courseSvc, classroomRepo, membershipRepo, metrics, logr)
	classroomSvc := service.NewClassroomService(classroomRepo, courseRepo, batchRepo, examRepo, membershipRepo, enrollmentRepo, gate, metrics, validate, logr)
	studentSvc := service.NewStudentService(studentRepo, enrollmentRepo, documentRepo, validate, logr)
	enrollmentSvc := service.NewEnrollmentService(service.EnrollmentServiceDeps{
		Repo:        enrollmentRepo,
		Memberships: membershipRepo,
		Students:    studentRepo,
		Courses:     courseRepo,
		Batches:     batchRepo,
		Classrooms:  classroomRepo,
		Gate:        gate,
		Status:      studentSvc,
		Metrics:     metrics,
		Validator:   validate,
		Logger:      logr,
	})
	examSvc := service.NewExamService(examRepo, membershipRepo, classroomRepo, studentRepo, metrics, validate, logr)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	activitySvc := service.NewActivityService(activityRepo, metrics, jobs.QueueConfig{
		Workers:    cfg.Activity.Workers,
		BufferSize: cfg.Activity.BufferSize,
		MaxRetries: cfg.Activity.MaxRetries,
		RetryDelay: cfg.Activity.RetryDelay,
	}, logr)
	activitySvc.Start(rootCtx)
	defer activitySvc.Stop()

	if cfg.Reconcile.Enabled {
		reconciler := service.NewExamReconciler(classroomSvc, cfg.Reconcile.ExamSpec, logr)
		if err := reconciler.Start(); err != nil {
			logr.Fatal("failed to start exam reconciler", zap.Error(err))
		}
		defer reconciler.Stop()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))
	r.Use(middleware.WithResponseMeta())

	ops := handler.NewMetricsHandler(metrics, checks)
	r.GET("/health", ops.Health)
	r.GET("/ready", ops.Ready)
	r.GET("/metrics", ops.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handler.RegisterRoutes(r.Group(cfg.APIPrefix), handler.Handlers{
		Courses:     handler.NewCourseHandler(courseSvc, gate),
		Batches:     handler.NewBatchHandler(batchSvc),
		Classrooms:  handler.NewClassroomHandler(classroomSvc, examSvc),
		Enrollments: handler.NewEnrollmentHandler(enrollmentSvc, classroomSvc),
		Exams:       handler.NewExamHandler(examSvc),
		Students:    handler.NewStudentHandler(studentSvc),
	}, authSvc, activitySvc)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Errorw("server failed", "error", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}
