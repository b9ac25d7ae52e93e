package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Nikhita-Thul8855/freelance-marketplace-sub000/internal/config"
	"github.com/Nikhita-Thul8855/freelance-marketplace-sub000/internal/database"
	"github.com/Nikhita-Thul8855/freelance-marketplace-sub000/internal/handlers"
	"github.com/Nikhita-Thul8855/freelance-marketplace-sub000/internal/middleware"
	"github.com/Nikhita-Thul8855/freelance-marketplace-sub000/internal/models"
	"github.com/Nikhita-Thul8855/freelance-marketplace-sub000/internal/routes"
	"github.com/Nikhita-Thul8855/freelance-marketplace-sub000/pkg/logger"
)

func main() {
	// 0. Load Config & Initialize Logger
	config.LoadConfig()

	env := os.Getenv("GO_ENV")
	if env == "" {
		env = "development"
	}
	logger.Init(env)

	logger.Info().Str("environment", env).Msg("Starting marketplace messaging backend...")

	if env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 1. Connect Database & Redis
	database.Connect()
	database.InitRedis()

	// 2. Migrations
	logger.Info().Msg("Running database migrations...")
	if err := database.DB.AutoMigrate(&models.User{}, &models.Message{}); err != nil {
		logger.Fatal().Err(err).Msg("Failed to run database migrations")
	}
	logger.Info().Msg("Database migrations complete")

	// 3. Setup Router
	r := gin.New()

	r.Use(middleware.LoggingMiddleware())
	r.Use(middleware.ErrorHandlerMiddleware())
	r.Use(gin.Recovery())
	r.Use(middleware.CORSMiddleware())

	// Exempt /socket.io from the general rate limit; the socket layer has its
	// own per-user send throttle
	r.Use(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/socket.io/") {
			c.Next()
			return
		}
		middleware.GeneralRateLimit()(c)
	})

	// 4. Register Routes
	api := r.Group("/api")
	{
		routes.RegisterMessageRoutes(api)
	}

	// Health check with DB and Redis status
	r.GET("/health", func(c *gin.Context) {
		dbStatus := "ok"
		redisStatus := "ok"

		sqlDB, err := database.DB.DB()
		if err != nil || sqlDB.Ping() != nil {
			dbStatus = "error"
		}

		if database.Redis != nil {
			if _, err := database.Redis.Ping(context.Background()).Result(); err != nil {
				redisStatus = "error"
			}
		} else {
			redisStatus = "not configured"
		}

		status := "ok"
		if dbStatus != "ok" || (redisStatus != "ok" && redisStatus != "not configured") {
			status = "degraded"
		}

		c.JSON(200, gin.H{
			"status": status,
			"checks": gin.H{
				"database": dbStatus,
				"redis":    redisStatus,
			},
		})
	})

	// 5. Init Socket.io
	socketServer := handlers.InitSocketServer()
	defer socketServer.Close()

	r.GET("/socket.io/*any", handlers.SocketHandler(socketServer))
	r.POST("/socket.io/*any", handlers.SocketHandler(socketServer))

	// 6. Start server with graceful shutdown
	port := config.AppConfig.Port
	if port == "" {
		port = "8080"
	}

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("port", port).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Wait for interrupt
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Forced shutdown")
	}

	logger.Info().Msg("Server exited")
}
