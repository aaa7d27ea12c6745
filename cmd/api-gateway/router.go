package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/coop-registration-api/internal/handler"
	internalmiddleware "github.com/noah-isme/coop-registration-api/internal/middleware"
	"github.com/noah-isme/coop-registration-api/internal/models"
	"github.com/noah-isme/coop-registration-api/internal/service"
	"github.com/noah-isme/coop-registration-api/pkg/config"
	"github.com/noah-isme/coop-registration-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/coop-registration-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/coop-registration-api/pkg/middleware/requestid"
)

type routerDeps struct {
	cfg          *config.Config
	logger       *zap.Logger
	metrics      *service.MetricsService
	auth         *service.AuthService
	ops          *handler.MetricsHandler
	drafts       *handler.DraftHandler
	schedules    *handler.ScheduleHandler
	registration *handler.RegistrationHandler
	overrides    *handler.OverrideHandler
}

func newRouter(d routerDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(d.logger))
	r.Use(corsmiddleware.New(d.cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(d.metrics))

	r.GET("/health", d.ops.Health)
	r.GET("/ready", d.ops.Ready)
	r.GET("/metrics", d.ops.Prometheus)
	if d.cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(d.cfg.APIPrefix)
	api.Use(internalmiddleware.JWT(d.auth))

	family := api.Group("/registration")
	family.Use(internalmiddleware.RequireRoles(models.RoleGuardian))
	family.POST("/batch", internalmiddleware.Audit(d.logger, "registration.batch"), d.registration.Batch)
	family.POST("/preflight", d.registration.Preflight)
	family.GET("/status", d.registration.Status)

	admin := api.Group("/admin/sessions/:sessionId")
	admin.Use(internalmiddleware.RequireRoles(models.RoleAdmin))

	drafts := admin.Group("/drafts")
	drafts.POST("", internalmiddleware.Audit(d.logger, "draft.create"), d.drafts.Create)
	drafts.GET("", d.drafts.List)
	drafts.GET("/current", d.drafts.Current)
	drafts.GET("/conflicts", d.drafts.Conflicts)
	drafts.GET("/conflicts/export", d.drafts.ExportConflicts)
	drafts.GET("/:draftId", d.drafts.Get)
	drafts.PUT("/:draftId/entries", internalmiddleware.Audit(d.logger, "draft.save_entries"), d.drafts.SaveEntries)
	drafts.DELETE("/:draftId", internalmiddleware.Audit(d.logger, "draft.delete"), d.drafts.Delete)
	drafts.POST("/:draftId/apply", internalmiddleware.Audit(d.logger, "schedule.apply_draft"), d.schedules.Apply)

	admin.POST("/schedule/status", internalmiddleware.Audit(d.logger, "schedule.transition"), d.schedules.UpdateStatus)

	admin.GET("/overrides", d.overrides.List)
	admin.POST("/overrides/:familyId/approve", internalmiddleware.Audit(d.logger, "override.approve"), d.overrides.Approve)
	admin.POST("/overrides/:familyId/deny", internalmiddleware.Audit(d.logger, "override.deny"), d.overrides.Deny)

	return r
}
