package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"trainhub/internal/alert"
	"trainhub/internal/handler"
	"trainhub/internal/middleware"
	"trainhub/internal/otp"
	"trainhub/pkg/config"
	"trainhub/pkg/database"
	"trainhub/pkg/jwtutil"
	"trainhub/pkg/logger"
	"trainhub/prometheus"

	"github.com/go-redis/redis/v8"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

func main() {
	// Load configuration from .env file and environment variables
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger with config
	logger.InitLogger(cfg)
	log := logger.GetLogger()
	log.Info("Starting trainhub service...", cfg.LogConfig()...)

	// Initialize database
	if err := database.InitDB(cfg); err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	log.Info("Database connection established")

	// Initialize JWT utility
	jwtutil.Initialize(&cfg.JWT)
	log.Info("JWT utility initialized")

	// Initialize Prometheus metrics
	prometheus.InitMetrics(cfg)
	log.Info("Prometheus metrics initialized")

	// Optional Redis cache for unread counters
	var unreadCache *alert.UnreadCache
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(context.Background()).Err(); err != nil {
			log.Warn("Redis unavailable, unread counts will hit the database", zap.Error(err))
		} else {
			unreadCache = alert.NewUnreadCache(client, cfg.Alert.UnreadCacheTTL, log)
			log.Info("Redis unread-count cache enabled", zap.String("addr", cfg.Redis.Addr))
		}
	}

	// Alert subsystem: store + push hub
	hub := alert.NewHub(log)
	store := alert.NewStore(database.GetDB(), unreadCache, hub, log)
	handler.InitAlerts(store, hub, cfg.Alert.PollInterval)
	handler.SetOTPCodeTTL(cfg.OTP.CodeTTL)

	// Background OTP expiry sweeper, decoupled from request handling
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go otp.RunSweeper(ctx, database.GetDB(), cfg.OTP.SweepInterval, log)

	// Initialize Echo framework
	e := echo.New()

	// Apply global middleware - order matters
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	e.Use(middleware.RequestIDMiddleware)
	e.Use(logger.Middleware(log))
	e.Use(prometheus.MetricsMiddleware())

	// Public routes - no authentication required
	e.GET("/health", handler.HealthCheck)
	e.GET("/metrics", handler.MetricsHandler)

	// Authentication routes
	auth := e.Group("/auth")
	auth.POST("/register", handler.Register)
	auth.POST("/login", handler.Login)
	auth.POST("/otp/request", handler.RequestOTP)
	auth.POST("/otp/verify", handler.VerifyOTP)

	// API routes - all require authentication
	api := e.Group("/api")
	api.Use(middleware.AuthMiddleware)

	// Account self-service
	accounts := api.Group("/accounts")
	accounts.GET("/profile", handler.GetProfile)
	accounts.PATCH("/profile", handler.UpdateProfile)
	accounts.POST("/change-password", handler.ChangePassword)

	// Account administration
	accounts.GET("", handler.ListAccounts, middleware.RequireAdmin)
	accounts.GET("/:id", handler.GetAccount, middleware.RequireAdmin)
	accounts.PATCH("/:id/active", handler.SetAccountActive, middleware.RequireAdmin)
	accounts.DELETE("/:id", handler.DeleteAccount, middleware.RequireAdmin)

	// Course catalog - reads for everyone, writes for admins
	courses := api.Group("/courses")
	courses.GET("", handler.ListCourses)
	courses.GET("/:id", handler.GetCourse)
	courses.GET("/:id/modules", handler.ListCourseModules)
	courses.POST("", handler.CreateCourse, middleware.RequireAdmin)
	courses.PUT("/:id", handler.UpdateCourse, middleware.RequireAdmin)
	courses.DELETE("/:id", handler.DeleteCourse, middleware.RequireAdmin)
	courses.POST("/:id/modules", handler.CreateCourseModule, middleware.RequireAdmin)

	modules := api.Group("/modules")
	modules.PUT("/:id", handler.UpdateCourseModule, middleware.RequireAdmin)
	modules.DELETE("/:id", handler.DeleteCourseModule, middleware.RequireAdmin)

	// Owner-scoped resources
	virtualUsers := api.Group("/virtual-users")
	virtualUsers.POST("", handler.CreateVirtualUser)
	virtualUsers.GET("", handler.ListVirtualUsers)
	virtualUsers.GET("/:id", handler.GetVirtualUser)
	virtualUsers.PUT("/:id", handler.UpdateVirtualUser)
	virtualUsers.DELETE("/:id", handler.DeleteVirtualUser)

	enrollments := api.Group("/enrollments")
	enrollments.POST("", handler.CreateEnrollment)
	enrollments.GET("", handler.ListEnrollments)
	enrollments.GET("/:id", handler.GetEnrollment)
	enrollments.PATCH("/:id/progress", handler.UpdateEnrollmentProgress)
	enrollments.DELETE("/:id", handler.DeleteEnrollment)

	devices := api.Group("/devices")
	devices.POST("", handler.CreateDevice)
	devices.GET("", handler.ListDevices)
	devices.GET("/:id", handler.GetDevice)
	devices.PUT("/:id", handler.UpdateDevice)
	devices.POST("/:id/heartbeat", handler.DeviceHeartbeat)
	devices.DELETE("/:id", handler.DeleteDevice)

	trainingRecords := api.Group("/training-records")
	trainingRecords.POST("", handler.CreateTrainingRecord)
	trainingRecords.GET("", handler.ListTrainingRecords)
	trainingRecords.GET("/:id", handler.GetTrainingRecord)
	trainingRecords.DELETE("/:id", handler.DeleteTrainingRecord)

	// Alerts - poll endpoints plus the optional push subscription
	alerts := api.Group("/alerts")
	alerts.GET("", handler.ListAlerts)
	alerts.POST("", handler.CreateAlert)
	alerts.PUT("/:id/mark-read", handler.MarkAlertRead)
	alerts.DELETE("/all", handler.DeleteAllAlerts)
	alerts.DELETE("/:id", handler.DeleteAlert)
	alerts.GET("/unread-count", handler.UnreadAlertCount)
	alerts.GET("/poll-interval", handler.AlertPollInterval)
	alerts.GET("/stream", handler.StreamAlerts)

	// Start server
	go func() {
		log.Info("Starting server", zap.String("port", cfg.Server.Port))
		if err := e.Start(":" + cfg.Server.Port); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for shutdown signal, then drain in-flight requests
	<-ctx.Done()
	log.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown failed", zap.Error(err))
	}
}
