package main

import (
	"context"
	"errors"
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
	"go.uber.org/zap"

	_ "github.com/noah-isme/classroom-engagement-api/api/swagger"
	"github.com/noah-isme/classroom-engagement-api/internal/handler"
	"github.com/noah-isme/classroom-engagement-api/internal/middleware"
	"github.com/noah-isme/classroom-engagement-api/internal/models"
	"github.com/noah-isme/classroom-engagement-api/internal/repository"
	"github.com/noah-isme/classroom-engagement-api/internal/service"
	"github.com/noah-isme/classroom-engagement-api/pkg/cache"
	"github.com/noah-isme/classroom-engagement-api/pkg/classroom"
	"github.com/noah-isme/classroom-engagement-api/pkg/config"
	"github.com/noah-isme/classroom-engagement-api/pkg/database"
	"github.com/noah-isme/classroom-engagement-api/pkg/export"
	"github.com/noah-isme/classroom-engagement-api/pkg/jobs"
	"github.com/noah-isme/classroom-engagement-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/classroom-engagement-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/classroom-engagement-api/pkg/middleware/requestid"
)

// @title Classroom Engagement API
// @version 1.0.0
// @description Roster sync from Google Classroom, attendance sessions, leaderboards and student diagnostics
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			logr.Fatal("failed to migrate database", zap.Error(err))
		}
	}

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		// the API stays usable without a cache
		logr.Warn("redis unavailable, caching disabled", zap.String("addr", cache.Addr(cfg.Redis)), zap.Error(err))
	}
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Leaderboard.CacheTTL, logr, cfg.Redis.Enabled && redisClient != nil)

	identityRepo := repository.NewIdentityRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	tokenRepo := repository.NewTokenRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	engagementRepo := repository.NewEngagementRepository(db)
	txManager := database.NewTxManager(db)

	validate := validator.New()

	leaderboardSvc := service.NewLeaderboardService(engagementRepo, courseRepo, enrollmentRepo, cacheSvc, metricsSvc, cfg.Leaderboard.CacheTTL, logr)
	if err := leaderboardSvc.Flush(ctx); err != nil {
		logr.Warn("failed to flush cached leaderboards", zap.Error(err))
	}

	router := jobs.NewRouter()
	router.Handle(service.JobLeaderboardInvalidate, leaderboardSvc.HandleInvalidateJob)
	queue := jobs.NewQueue("background", router.Dispatch, jobs.QueueConfig{
		Workers:    cfg.Jobs.Workers,
		MaxRetries: cfg.Jobs.MaxRetries,
		RetryDelay: cfg.Jobs.RetryDelay,
		Logger:     logr,
	})
	// Workers outlive the signal so writes finishing during the HTTP drain still invalidate;
	// the deferred Stop runs once serve has returned.
	queue.Start(context.Background())
	defer queue.Stop()

	provider := classroom.NewClient(classroom.Config{
		ClientID:       cfg.Google.ClientID,
		ClientSecret:   cfg.Google.ClientSecret,
		RedirectURL:    cfg.Google.RedirectURL,
		AuthURL:        cfg.Google.AuthURL,
		TokenURL:       cfg.Google.TokenURL,
		Endpoint:       cfg.Classroom.Endpoint,
		PageSize:       cfg.Classroom.PageSize,
		RequestTimeout: cfg.Classroom.RequestTimeout,
		MaxRetries:     cfg.Classroom.MaxRetries,
		RetryBaseDelay: cfg.Classroom.RetryBaseDelay,
		Logger:         logr,
	})

	syncSvc := service.NewRosterSyncService(provider, txManager, identityRepo, courseRepo, enrollmentRepo, tokenRepo, queue, metricsSvc, logr, service.RosterSyncConfig{
		FetchConcurrency: cfg.Sync.FetchConcurrency,
		Timeout:          cfg.Sync.Timeout,
	})
	authSvc := service.NewAuthService(syncSvc, provider, identityRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	courseSvc := service.NewCourseService(courseRepo, enrollmentRepo, logr)
	sessionSvc := service.NewSessionService(sessionRepo, courseRepo, enrollmentRepo, txManager, queue, validate, logr)
	statsSvc := service.NewStudentStatsService(enrollmentRepo, engagementRepo, courseRepo, metricsSvc, service.StudentStatsConfig{
		LowAttendanceThreshold: cfg.Stats.LowAttendanceThreshold,
		RecentWindow:           cfg.Stats.RecentWindow,
	}, logr)
	exportSvc := service.NewExportService(leaderboardSvc, export.NewCSVExporter(), export.NewPDFExporter(), logr)

	handlers := routeHandlers{
		auth:        handler.NewAuthHandler(authSvc),
		courses:     handler.NewCourseHandler(courseSvc),
		sessions:    handler.NewSessionHandler(sessionSvc),
		leaderboard: handler.NewLeaderboardHandler(leaderboardSvc, exportSvc),
		stats:       handler.NewStudentStatsHandler(statsSvc),
		metrics: handler.NewMetricsHandler(metricsSvc,
			handler.HealthCheck{Name: "database", Ping: db.PingContext},
			handler.HealthCheck{Name: "cache", Ping: cacheRepo.Ping},
		),
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
	registerRoutes(r, cfg, authSvc, handlers, logr)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	if err := serve(ctx, r, cfg.Port, logr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}

type routeHandlers struct {
	auth        *handler.AuthHandler
	courses     *handler.CourseHandler
	sessions    *handler.SessionHandler
	leaderboard *handler.LeaderboardHandler
	stats       *handler.StudentStatsHandler
	metrics     *handler.MetricsHandler
}

func registerRoutes(r *gin.Engine, cfg *config.Config, tokens middleware.TokenValidator, h routeHandlers, logr *zap.Logger) {
	r.GET("/health", h.metrics.Health)
	r.GET("/ready", h.metrics.Ready)
	r.GET("/metrics", h.metrics.Prometheus)

	api := r.Group(cfg.APIPrefix)
	api.GET("/auth/google/url", h.auth.AuthURL)
	api.POST("/auth/google/callback", middleware.Audit(logr, "sign_in", "roster"), h.auth.Callback)

	secured := api.Group("")
	secured.Use(middleware.JWT(tokens))
	secured.GET("/auth/me", h.auth.Me)
	secured.GET("/metrics/summary", middleware.RequireRoles(models.RoleTeacher), h.metrics.Summary)

	secured.GET("/courses", h.courses.List)
	secured.GET("/courses/:id/students", middleware.RequireRoles(models.RoleTeacher), h.courses.Roster)
	secured.GET("/courses/:id/sessions", h.sessions.List)
	secured.POST("/courses/:id/sessions", middleware.RequireRoles(models.RoleTeacher), middleware.Audit(logr, "create", "session"), h.sessions.Create)
	secured.GET("/courses/:id/leaderboard", h.leaderboard.Get)
	secured.GET("/courses/:id/leaderboard/export", middleware.RequireRoles(models.RoleTeacher), h.leaderboard.Export)

	secured.GET("/sessions/:id", h.sessions.Get)
	secured.DELETE("/sessions/:id", middleware.RequireRoles(models.RoleTeacher), middleware.Audit(logr, "delete", "session"), h.sessions.Delete)

	secured.GET("/students/:id/stats", h.stats.Get)
}

func serve(ctx context.Context, r *gin.Engine, port int, logr *zap.Logger) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown server: %w", err)
	}
	logr.Info("server stopped")
	return nil
}
