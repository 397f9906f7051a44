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
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/campushub/dissertation-api/api/swagger"
	"github.com/campushub/dissertation-api/internal/handler"
	"github.com/campushub/dissertation-api/internal/middleware"
	"github.com/campushub/dissertation-api/internal/models"
	"github.com/campushub/dissertation-api/internal/repository"
	"github.com/campushub/dissertation-api/internal/service"
	"github.com/campushub/dissertation-api/pkg/cache"
	"github.com/campushub/dissertation-api/pkg/config"
	"github.com/campushub/dissertation-api/pkg/database"
	"github.com/campushub/dissertation-api/pkg/jobs"
	"github.com/campushub/dissertation-api/pkg/logger"
	corsmiddleware "github.com/campushub/dissertation-api/pkg/middleware/cors"
	reqidmiddleware "github.com/campushub/dissertation-api/pkg/middleware/requestid"
	"github.com/campushub/dissertation-api/pkg/storage"
)

// @title Dissertation Portal API
// @version 1.0.0
// @description Dissertation project lifecycle with double marking reconciliation
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	cacheEnabled := err == nil
	if err != nil {
		logr.Warn("redis unavailable, project detail caching disabled")
	}

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	proposalRepo := repository.NewProposalRepository(db)
	projectRepo := repository.NewProjectRepository(db)
	markRepo := repository.NewMarkRepository(db)
	meetingRepo := repository.NewMeetingRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	// Background audit writer.
	auditQueue := middleware.NewAuditQueue(userRepo, jobs.QueueConfig{
		Workers:    cfg.Audit.Workers,
		BufferSize: cfg.Audit.BufferSize,
		MaxRetries: cfg.Audit.MaxRetries,
		Logger:     logr,
	})
	auditQueue.Start(ctx)
	defer auditQueue.Stop()

	// Services.
	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Projects.CacheTTL, logr, cacheEnabled)

	authSvc := service.NewAuthService(userRepo, nil, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "dissertation-portal",
	})
	userSvc := service.NewUserService(userRepo, nil, logr)
	proposalSvc := service.NewProposalService(proposalRepo, userRepo, metricsSvc, nil, logr)
	projectSvc := service.NewProjectService(projectRepo, markRepo, meetingRepo, userRepo, cacheSvc, metricsSvc, nil, logr, cfg.Projects.CacheTTL)
	markSvc := service.NewMarkService(markRepo, projectRepo, cacheSvc, metricsSvc, nil, logr)
	meetingSvc := service.NewMeetingService(meetingRepo, projectRepo, cacheSvc, nil, logr)

	reportStore, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init report storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)
	exportSvc := service.NewExportService(projectRepo, markRepo, userRepo, reportStore, signer, service.ExportConfig{
		APIPrefix: cfg.APIPrefix,
		ResultTTL: cfg.Reports.SignedURLTTL,
	}, logr, nil, nil)
	exportSvc.StartCleanup(ctx, cfg.Reports.CleanupInterval)

	// Handlers.
	authHandler := handler.NewAuthHandler(authSvc)
	userHandler := handler.NewUserHandler(userSvc)
	proposalHandler := handler.NewProposalHandler(proposalSvc)
	projectHandler := handler.NewProjectHandler(projectSvc)
	markHandler := handler.NewMarkHandler(markSvc)
	meetingHandler := handler.NewMeetingHandler(meetingSvc)
	reportHandler := handler.NewReportHandler(exportSvc, logr)
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
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	authn := middleware.JWT(authSvc)
	audit := func(action, resource string) gin.HandlerFunc {
		return middleware.Audit(auditQueue, logr, action, resource)
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", authn, authHandler.Logout)
		auth.POST("/change-password", authn, authHandler.ChangePassword)
		auth.GET("/me", authn, authHandler.Me)
	}

	users := api.Group("/users", authn, middleware.RequireAdmin())
	{
		users.POST("", audit(models.AuditActionUserAdmin, "users"), userHandler.Create)
		users.GET("", userHandler.List)
		users.GET("/:id", userHandler.Get)
		users.PUT("/:id/admin", audit(models.AuditActionUserAdmin, "users"), userHandler.SetAdmin)
		users.DELETE("/:id", audit(models.AuditActionUserAdmin, "users"), userHandler.Deactivate)
	}

	proposals := api.Group("/proposals", authn)
	{
		proposals.POST("", audit(models.AuditActionProposal, "proposals"), proposalHandler.Submit)
		proposals.GET("", proposalHandler.List)
		proposals.GET("/:id", proposalHandler.Get)
		proposals.POST("/:id/action", audit(models.AuditActionProposal, "proposals"), proposalHandler.Act)
		proposals.DELETE("/:id", audit(models.AuditActionProposal, "proposals"), proposalHandler.Withdraw)
	}

	catalog := api.Group("/catalog", authn)
	{
		catalog.GET("", proposalHandler.ListCatalog)
		catalog.POST("", middleware.RequireSupervisor(), audit(models.AuditActionProposal, "catalog"), proposalHandler.CreateCatalog)
		catalog.DELETE("/:id", middleware.RequireSupervisor(), audit(models.AuditActionProposal, "catalog"), proposalHandler.RetireCatalog)
	}

	projects := api.Group("/projects", authn)
	{
		projects.GET("", projectHandler.List)
		projects.GET("/:id", projectHandler.Get)
		projects.POST("/:id/submit", audit(models.AuditActionProject, "projects"), projectHandler.Submit)
		projects.PUT("/:id/second-marker", middleware.RequireAdmin(), audit(models.AuditActionProject, "projects"), projectHandler.AssignSecondMarker)
		projects.DELETE("/:id/second-marker", middleware.RequireAdmin(), audit(models.AuditActionProject, "projects"), projectHandler.RemoveSecondMarker)
		projects.POST("/:id/archive", middleware.RequireAdmin(), audit(models.AuditActionProject, "projects"), projectHandler.Archive)

		projects.GET("/:id/marks", markHandler.ListByProject)

		projects.GET("/:id/meetings", meetingHandler.ListByProject)
		projects.POST("/:id/meetings", middleware.RequireSupervisor(), audit(models.AuditActionProject, "meetings"), meetingHandler.Create)

		projects.POST("/:id/reports", middleware.RequireSupervisor(), reportHandler.GenerateProjectReport)
	}

	marks := api.Group("/marks", authn, middleware.RequireSupervisor())
	{
		marks.GET("", markHandler.ListForMarker)
		marks.PUT("/:id", audit(models.AuditActionMark, "marks"), markHandler.Submit)
	}

	meetings := api.Group("/meetings", authn, middleware.RequireSupervisor())
	{
		meetings.PUT("/:id", audit(models.AuditActionProject, "meetings"), meetingHandler.Update)
	}

	reports := api.Group("/reports")
	{
		reports.POST("/cohort", authn, middleware.RequireAdmin(), reportHandler.GenerateCohortReport)
		// Download is authenticated by the signed token itself.
		reports.GET("/download/:token", reportHandler.Download)
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
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Warnw("graceful shutdown failed", "error", err)
	}
}
