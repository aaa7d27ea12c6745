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

	"github.com/noah-isme/coop-registration-api/api/swagger"
	"github.com/noah-isme/coop-registration-api/internal/handler"
	"github.com/noah-isme/coop-registration-api/internal/repository"
	"github.com/noah-isme/coop-registration-api/internal/service"
	"github.com/noah-isme/coop-registration-api/pkg/cache"
	"github.com/noah-isme/coop-registration-api/pkg/config"
	"github.com/noah-isme/coop-registration-api/pkg/database"
	"github.com/noah-isme/coop-registration-api/pkg/export"
	"github.com/noah-isme/coop-registration-api/pkg/logger"
)

// @title Co-op Registration API
// @version 1.0.0
// @description Draft scheduling, conflict detection and batch family registration for homeschool co-op sessions.
// @BasePath /api/v1
// @schemes http https
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
		logr.Sugar().Fatalw("database unavailable", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, conflict cache disabled", "error", err)
		redisClient = nil
	}

	var metricsSvc *service.MetricsService
	if cfg.Metrics.Enabled {
		metricsSvc = service.NewMetricsService()
	}

	validate := validator.New()
	tx := database.NewTxRunner(db, cfg.Registration.ItemTxTimeout)

	sessionRepo := repository.NewSessionRepository(db)
	familyRepo := repository.NewFamilyRepository(db)
	classRepo := repository.NewClassRequestRepository(db)
	draftRepo := repository.NewDraftRepository(db)
	scheduleRepo := repository.NewScheduleRepository(db)
	registrationRepo := repository.NewRegistrationRepository(db)
	volunteerRepo := repository.NewVolunteerRepository(db)
	statusRepo := repository.NewRegistrationStatusRepository(db)
	feeRepo := repository.NewFeeRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient)
	defer cacheRepo.Close() //nolint:errcheck

	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Drafts.ConflictCacheTTL, logr, cfg.Drafts.ConflictCacheEnabled && redisClient != nil)
	authSvc := service.NewAuthService(service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		Issuer:            cfg.JWT.Issuer,
		Audience:          cfg.JWT.Audience,
	})
	draftSvc := service.NewDraftService(draftRepo, sessionRepo, classRepo, tx, cacheSvc, validate, logr)
	conflictSvc := service.NewDraftConflictService(draftRepo, sessionRepo, cacheSvc, cfg.Drafts.ConflictCacheTTL, export.NewPDFExporter(), metricsSvc, logr)
	scheduleSvc := service.NewScheduleService(sessionRepo, scheduleRepo, draftRepo, tx, validate, logr)
	feeSvc := service.NewFeeService(feeRepo, logr)
	registrationSvc := service.NewRegistrationService(service.RegistrationDeps{
		Sessions:      sessionRepo,
		Families:      familyRepo,
		Schedules:     scheduleRepo,
		Registrations: registrationRepo,
		Volunteers:    volunteerRepo,
		Teachers:      classRepo,
		Statuses:      statusRepo,
		Fees:          feeSvc,
		Tx:            tx,
		Metrics:       metricsSvc,
	}, validate, logr)
	overrideSvc := service.NewOverrideService(service.OverrideDeps{
		Statuses:      statusRepo,
		Registrations: registrationRepo,
		Assignments:   volunteerRepo,
		Sessions:      sessionRepo,
		Fees:          feeSvc,
		Tx:            tx,
	}, logr)

	swagger.SwaggerInfo.BasePath = cfg.APIPrefix

	router := newRouter(routerDeps{
		cfg:          cfg,
		logger:       logr,
		metrics:      metricsSvc,
		auth:         authSvc,
		ops:          handler.NewMetricsHandler(metricsSvc, db),
		drafts:       handler.NewDraftHandler(draftSvc, conflictSvc),
		schedules:    handler.NewScheduleHandler(scheduleSvc),
		registration: handler.NewRegistrationHandler(registrationSvc),
		overrides:    handler.NewOverrideHandler(overrideSvc),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
	logr.Sugar().Infow("server stopped")
}
