package main

import (
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/elim-assembly/attendance-api/api/swagger"
	"github.com/elim-assembly/attendance-api/internal/handler"
	"github.com/elim-assembly/attendance-api/internal/memberid"
	"github.com/elim-assembly/attendance-api/internal/middleware"
	"github.com/elim-assembly/attendance-api/internal/repository"
	"github.com/elim-assembly/attendance-api/internal/service"
	"github.com/elim-assembly/attendance-api/pkg/cache"
	"github.com/elim-assembly/attendance-api/pkg/config"
	"github.com/elim-assembly/attendance-api/pkg/database"
	"github.com/elim-assembly/attendance-api/pkg/logger"
	corsmiddleware "github.com/elim-assembly/attendance-api/pkg/middleware/cors"
	reqidmiddleware "github.com/elim-assembly/attendance-api/pkg/middleware/requestid"
	"github.com/elim-assembly/attendance-api/pkg/notify"
)

// @title Elim Assembly Attendance API
// @version 0.1.0
// @description Attendance recording, deduplication and absentee follow-up engine
// @BasePath /
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

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		// The engine runs without a cache; aggregation just recomputes.
		logr.Sugar().Warnw("redis unavailable, stats caching disabled", "error", err)
		redisClient = nil
	}

	personRepo := repository.NewPersonRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	absenteeRepo := repository.NewAbsenteeRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	var sender notify.Sender
	if cfg.Notifications.GatewayURL != "" {
		sender = notify.NewSMSGateway(cfg.Notifications.GatewayURL, cfg.Notifications.SenderID, cfg.Notifications.Timeout)
	} else {
		logr.Info("no sms gateway configured, using log sender")
		sender = notify.NewLogSender(logr)
	}

	metricsSvc := service.NewMetricsService()
	guard := service.NewDedupGuard(attendanceRepo, nil)
	generator := memberid.NewGenerator(rand.New(rand.NewSource(time.Now().UnixNano())), nil)

	checkinSvc := service.NewCheckInService(guard, personRepo, attendanceRepo, cacheRepo, metricsSvc,
		service.CheckInServiceConfig{
			BulkConcurrency: cfg.CheckIn.BulkConcurrency,
			MaxBatchSize:    cfg.CheckIn.MaxBatchSize,
		}, nil, logr)
	absenteeSvc := service.NewAbsenteeService(absenteeRepo, sender, metricsSvc, nil, logr)
	statsSvc := service.NewStatsService(attendanceRepo, personRepo, cacheRepo,
		service.StatsServiceConfig{
			CacheEnabled: cfg.Stats.CacheEnabled,
			CacheTTL:     cfg.Stats.CacheTTL,
		}, logr)
	memberSvc := service.NewMemberService(personRepo, generator, nil, logr)

	checkinHandler := handler.NewCheckInHandler(checkinSvc)
	absenteeHandler := handler.NewAbsenteeHandler(absenteeSvc)
	statsHandler := handler.NewStatsHandler(statsSvc)
	memberHandler := handler.NewMemberHandler(memberSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))
	r.Use(middleware.Actor(cfg.JWT.Secret))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "store unreachable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", metricsHandler.Scrape)

	api := r.Group(cfg.APIPrefix)
	{
		api.POST("/members", memberHandler.Register)
		api.GET("/members", memberHandler.List)
		api.POST("/members/dependants", memberHandler.RegisterDependant)
		api.GET("/members/by-identifier/:id", memberHandler.Lookup)
		api.GET("/members/:id/dependants", memberHandler.Dependants)

		api.POST("/attendance/check-in", checkinHandler.CheckIn)
		api.POST("/attendance/bulk-check-in", checkinHandler.BulkCheckIn)
		api.GET("/attendance", checkinHandler.List)

		api.POST("/absentees", absenteeHandler.MarkAbsent)
		api.GET("/absentees", absenteeHandler.List)
		api.POST("/absentees/notifications", absenteeHandler.Dispatch)
		api.POST("/absentees/:id/follow-up", absenteeHandler.CompleteFollowUp)

		api.GET("/stats/attendance", statsHandler.Aggregate)
		api.GET("/stats/attendance/export", statsHandler.ExportPDF)
	}

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
