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
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/course-workflow-api/api/swagger"
	"github.com/noah-isme/course-workflow-api/internal/handler"
	internalmiddleware "github.com/noah-isme/course-workflow-api/internal/middleware"
	"github.com/noah-isme/course-workflow-api/internal/models"
	"github.com/noah-isme/course-workflow-api/internal/repository"
	"github.com/noah-isme/course-workflow-api/internal/service"
	"github.com/noah-isme/course-workflow-api/pkg/cache"
	"github.com/noah-isme/course-workflow-api/pkg/config"
	"github.com/noah-isme/course-workflow-api/pkg/database"
	"github.com/noah-isme/course-workflow-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/course-workflow-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/course-workflow-api/pkg/middleware/requestid"
)

// @title Course Workflow API
// @version 1.0.0
// @description Course proposals, enrollment approvals and grade rosters
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
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	var redisClient *redis.Client
	if cfg.Catalog.CacheEnabled || cfg.Events.RedisEnabled {
		redisClient, err = cache.NewRedis(context.Background(), cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, catalogue cache and redis events disabled", zap.Error(err))
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	var natsConn *nats.Conn
	if cfg.Events.NATSURL != "" {
		natsConn, err = nats.Connect(cfg.Events.NATSURL, nats.Name("course-workflow-api"))
		if err != nil {
			logr.Warn("nats unavailable, nats events disabled", zap.Error(err))
			natsConn = nil
		} else {
			defer natsConn.Drain() //nolint:errcheck
		}
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient)

	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Catalog.CacheTTL, logr, cfg.Catalog.CacheEnabled && redisClient != nil)
	identitySvc := service.NewIdentityService(userRepo, logr)
	authSvc := service.NewAuthService(logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		Issuer:            cfg.JWT.Issuer,
	})
	var eventRedis *redis.Client
	if cfg.Events.RedisEnabled {
		eventRedis = redisClient
	}
	events := service.NewEventPublisher(eventRedis, natsConn, cfg.Events.Channel, logr)
	auditSvc := service.NewAuditService(userRepo, logr, service.AuditConfig{
		Workers:    cfg.Audit.Workers,
		BufferSize: cfg.Audit.BufferSize,
	})
	auditSvc.Start(context.Background())
	defer auditSvc.Stop()
	courseSvc := service.NewCourseService(courseRepo, identitySvc, db, cacheSvc, cfg.Catalog.CacheTTL, metricsSvc, events, validate, logr)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, courseRepo, identitySvc, db, metricsSvc, events, validate, logr, service.EnrollmentConfig{
		AllowReenroll: cfg.Workflow.AllowReenroll,
	})
	rosterSvc := service.NewRosterService(enrollmentRepo, courseRepo, db, metricsSvc, events, logr, service.RosterConfig{
		MaxFileSize:  cfg.Rosters.MaxFileSizeBytes,
		AllowedMIMEs: cfg.Rosters.AllowedMIMEs,
	})

	courseHandler := handler.NewCourseHandler(courseSvc)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentSvc)
	rosterHandler := handler.NewRosterHandler(rosterSvc, cfg.Rosters.MaxFileSizeBytes)
	metricsHandler := handler.NewMetricsHandler(metricsSvc, db)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc))
	r.Use(internalmiddleware.WithResponseMeta())

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	instructors := internalmiddleware.RequireRoles(models.RoleCourseInstructor, models.RoleFacultyAdvisor)
	advisors := internalmiddleware.RequireRoles(models.RoleFacultyAdvisor)
	students := internalmiddleware.RequireRoles(models.RoleStudent)
	audit := func(action, resource string) gin.HandlerFunc {
		return internalmiddleware.Audit(auditSvc, logr, action, resource)
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(internalmiddleware.JWT(authSvc))

	courses := api.Group("/courses")
	courses.POST("", instructors, audit(models.AuditActionCourseCreate, "course"), courseHandler.Propose)
	courses.GET("", courseHandler.ListAll)
	courses.GET("/mine", instructors, courseHandler.ListMine)
	courses.GET("/proposals", advisors, courseHandler.ListProposals)
	courses.POST("/decisions", advisors, audit(models.AuditActionCourseDecision, "course"), courseHandler.Decide)
	courses.GET("/:id", courseHandler.Get)
	courses.DELETE("/:id", instructors, audit(models.AuditActionCourseDelete, "course"), courseHandler.Delete)
	courses.GET("/:id/enrollments", instructors, enrollmentHandler.CourseEnrollments)
	courses.GET("/:id/roster", instructors, rosterHandler.Export)
	courses.POST("/:id/roster", instructors, audit(models.AuditActionRosterImport, "roster"), rosterHandler.Import)

	student := api.Group("/student", students)
	student.GET("/courses", enrollmentHandler.StudentCourses)
	student.POST("/actions", audit(models.AuditActionStudentAction, "enrollment"), enrollmentHandler.StudentAction)

	enrollments := api.Group("/enrollments")
	enrollments.POST("/instructor-decisions", instructors, audit(models.AuditActionInstructorDecision, "enrollment"), enrollmentHandler.InstructorDecision)
	enrollments.GET("/pending-fa", advisors, enrollmentHandler.PendingFA)
	enrollments.POST("/fa-decisions", advisors, audit(models.AuditActionFADecision, "enrollment"), enrollmentHandler.FADecision)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "api_prefix", cfg.APIPrefix)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	waitForShutdown(srv, logr)
}

func waitForShutdown(srv *http.Server, logr *zap.Logger) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logr.Warn("graceful shutdown failed", zap.Error(err))
	}
}
