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
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/ukm-attendance-api/api/swagger"
	"github.com/noah-isme/ukm-attendance-api/internal/handler"
	internalmiddleware "github.com/noah-isme/ukm-attendance-api/internal/middleware"
	"github.com/noah-isme/ukm-attendance-api/internal/models"
	"github.com/noah-isme/ukm-attendance-api/internal/repository"
	"github.com/noah-isme/ukm-attendance-api/internal/service"
	"github.com/noah-isme/ukm-attendance-api/pkg/cache"
	"github.com/noah-isme/ukm-attendance-api/pkg/config"
	"github.com/noah-isme/ukm-attendance-api/pkg/database"
	"github.com/noah-isme/ukm-attendance-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/ukm-attendance-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/ukm-attendance-api/pkg/middleware/requestid"
	"github.com/noah-isme/ukm-attendance-api/pkg/realtime"
	"github.com/noah-isme/ukm-attendance-api/pkg/storage"
)

// @title UKM Attendance API
// @version 1.0.0
// @description Practice attendance for student activity units: eligibility, submissions and secretary approval.
// @BasePath /
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

const (
	proofDownloadPath  = "/proofs/download"
	exportDownloadPath = "/exports/download"
)

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	var redisClient *redis.Client
	if cfg.Schedules.CacheEnabled {
		redisClient, err = cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, schedule cache disabled", zap.Error(err))
		} else {
			defer redisClient.Close() //nolint:errcheck
		}
	}

	location, err := time.LoadLocation(cfg.Attendance.Timezone)
	if err != nil {
		logr.Fatal("invalid attendance timezone", zap.String("timezone", cfg.Attendance.Timezone), zap.Error(err))
	}
	calendar, err := service.NewPracticeCalendar(cfg.Attendance.PracticeDays, cfg.Attendance.OpenTime, cfg.Attendance.CloseTime)
	if err != nil {
		logr.Fatal("invalid practice calendar", zap.Error(err))
	}

	var metricsSvc *service.MetricsService
	if cfg.Metrics.Enabled {
		metricsSvc = service.NewMetricsService()
	}
	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	scheduleRepo := repository.NewPracticeScheduleRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)

	var cacheRepo service.CacheRepository
	if redisClient != nil {
		cacheRepo = repository.NewCacheRepository(redisClient, logr)
	}
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Schedules.CacheTTL, logr, cfg.Schedules.CacheEnabled && cacheRepo != nil)
	scheduleLookup := service.NewCachedScheduleLookup(scheduleRepo, cacheSvc, cfg.Schedules.CacheTTL)

	hub := realtime.NewHub(cfg.CORS.AllowedOrigins, logr)
	go hub.Run(ctx)
	metricsSvc.TrackGauge("realtime_clients", "Connected realtime subscribers", func() float64 {
		return float64(hub.ClientCount())
	})

	proofBucket, localProofs, err := newProofBucket(ctx, cfg)
	if err != nil {
		logr.Fatal("failed to init proof storage", zap.String("driver", cfg.Proofs.Driver), zap.Error(err))
	}
	cleanupQueue := service.NewProofCleanupQueue(proofBucket, service.ProofCleanupConfig{
		Workers:    cfg.Proofs.CleanupWorkers,
		MaxRetries: cfg.Proofs.CleanupRetries,
	}, metricsSvc, logr)
	cleanupQueue.Start(ctx)
	defer cleanupQueue.Stop()

	exportFiles, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Fatal("failed to init export storage", zap.Error(err))
	}
	exportSigner := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
	})
	eligibilitySvc := service.NewEligibilityService(scheduleLookup, calendar, service.EligibilityConfig{
		Location:                location,
		LookaheadDays:           cfg.Attendance.LookaheadDays,
		StoreTimeout:            cfg.Attendance.StoreTimeout,
		FallbackOnEmptySchedule: cfg.Attendance.FallbackOnEmptySchedule,
	}, metricsSvc, logr)
	submissionSvc := service.NewSubmissionService(attendanceRepo, proofBucket, eligibilitySvc, cleanupQueue, hub, userRepo, metricsSvc, validate, logr, service.SubmissionConfig{
		MaxFileSize:     cfg.Proofs.MaxFileSizeBytes,
		AllowedMIMEs:    cfg.Proofs.AllowedMIMEs,
		AllowDuplicates: cfg.Attendance.AllowDuplicates,
		UpcomingDays:    cfg.Attendance.UpcomingDays,
		StoreTimeout:    cfg.Attendance.StoreTimeout,
	})
	approvalSvc := service.NewApprovalService(attendanceRepo, hub, userRepo, metricsSvc, logr, cfg.Attendance.StoreTimeout)
	scheduleSvc := service.NewScheduleService(scheduleRepo, cacheSvc, hub, userRepo, validate, logr, service.ScheduleConfig{
		Location:     location,
		UpcomingDays: cfg.Attendance.UpcomingDays,
		StoreTimeout: cfg.Attendance.StoreTimeout,
	})
	recapSvc := service.NewRecapService(attendanceRepo, validate, logr, cfg.Attendance.StoreTimeout)
	exportSvc := service.NewExportService(recapSvc, exportFiles, exportSigner, service.ExportConfig{
		DownloadURL: cfg.APIPrefix + exportDownloadPath,
		ResultTTL:   cfg.Exports.TTL,
	}, logr)

	scheduler := cron.New(cron.WithLocation(location))
	if _, err := scheduler.AddFunc(cfg.Exports.CleanupSchedule, func() {
		_, _ = exportSvc.Cleanup()
	}); err != nil {
		logr.Fatal("invalid export cleanup schedule", zap.String("schedule", cfg.Exports.CleanupSchedule), zap.Error(err))
	}
	scheduler.Start()
	defer scheduler.Stop()

	r := gin.New()
	r.MaxMultipartMemory = cfg.Proofs.MaxFileSizeBytes + 1<<20
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc))

	opsHandler := handler.NewMetricsHandler(metricsSvc, readinessChecks(db, redisClient))
	r.GET("/health", opsHandler.Health)
	r.GET("/ready", opsHandler.Ready)
	if cfg.Metrics.Enabled {
		r.GET("/metrics", opsHandler.Prometheus)
	}
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	authHandler := handler.NewAuthHandler(authSvc)
	attendanceHandler := handler.NewAttendanceHandler(eligibilitySvc, submissionSvc, approvalSvc, cfg.Proofs.MaxFileSizeBytes)
	scheduleHandler := handler.NewScheduleHandler(scheduleSvc)
	recapHandler := handler.NewRecapHandler(recapSvc, exportSvc)

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", authHandler.Login)
	api.GET(exportDownloadPath, recapHandler.Download)
	if localProofs != nil {
		api.GET(proofDownloadPath, handler.NewProofHandler(localProofs).Download)
	}

	secured := api.Group("")
	secured.Use(internalmiddleware.JWT(authSvc))
	member := internalmiddleware.RequireRoles(models.RoleMember)
	secretary := internalmiddleware.RequireRoles(models.RoleSecretary)

	secured.GET("/auth/me", authHandler.Me)
	secured.GET("/attendance/eligibility", attendanceHandler.Eligibility)
	secured.GET("/attendance/form", member, attendanceHandler.Form)
	secured.POST("/attendance", member, attendanceHandler.Submit)
	secured.PUT("/attendance/:id/proof", member, attendanceHandler.ReplaceProof)
	secured.GET("/attendance", secretary, attendanceHandler.List)
	secured.POST("/attendance/:id/approve", secretary, attendanceHandler.Approve)
	secured.POST("/attendance/:id/reject", secretary, attendanceHandler.Reject)
	secured.GET("/attendance/recap", secretary, recapHandler.Recap)
	secured.POST("/attendance/recap/export", secretary,
		internalmiddleware.Audit(userRepo, logr, models.AuditActionExport, models.AuditResourceAttendance),
		recapHandler.Export)

	secured.GET("/schedules/upcoming", scheduleHandler.Upcoming)
	secured.GET("/schedules", secretary, scheduleHandler.List)
	secured.POST("/schedules", secretary, scheduleHandler.Create)
	secured.PATCH("/schedules/:id/active", secretary, scheduleHandler.SetActive)
	secured.DELETE("/schedules/:id", secretary, scheduleHandler.Delete)

	if cfg.Realtime.Enabled {
		secured.GET("/realtime", secretary, handler.NewRealtimeHandler(hub, logr).Stream)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("graceful shutdown failed", zap.Error(err))
	}
}

// newProofBucket picks the proof store from configuration. The local bucket is
// also returned so its signed links can be served.
func newProofBucket(ctx context.Context, cfg *config.Config) (storage.Bucket, *storage.LocalBucket, error) {
	switch cfg.Proofs.Driver {
	case "s3":
		bucket, err := storage.NewS3Bucket(ctx, cfg.S3)
		if err != nil {
			return nil, nil, err
		}
		return bucket, nil, nil
	case "", "local":
		files, err := storage.NewLocalStorage(cfg.Proofs.StorageDir)
		if err != nil {
			return nil, nil, err
		}
		signer := storage.NewSignedURLSigner(cfg.Proofs.SignedURLSecret, cfg.Proofs.SignedURLTTL)
		local := storage.NewLocalBucket(files, signer, cfg.APIPrefix+proofDownloadPath)
		return local, local, nil
	default:
		return nil, nil, fmt.Errorf("unknown proof storage driver %q", cfg.Proofs.Driver)
	}
}

func readinessChecks(db *sqlx.DB, redisClient *redis.Client) map[string]handler.ReadinessCheck {
	checks := map[string]handler.ReadinessCheck{
		"postgres": func(ctx context.Context) error {
			return database.Ready(ctx, db, 2*time.Second)
		},
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
			defer cancel()
			return redisClient.Ping(ctx).Err()
		}
	}
	return checks
}
