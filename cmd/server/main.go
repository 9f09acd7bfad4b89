// Package main runs the classroom polling HTTP server with WebSocket and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/classpoll/backend/config"
	"github.com/classpoll/backend/internal/middleware"
	"github.com/classpoll/backend/internal/realtime"
	"github.com/classpoll/backend/internal/rooms"
	"github.com/classpoll/backend/internal/session"
	"github.com/classpoll/backend/pkg/response"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	store := rooms.NewStore()
	hub := realtime.NewHub(logger)
	coordinator := session.NewCoordinator(store, hub, session.Config{
		DefaultTimeLimit: cfg.Room.DefaultTimeLimit,
		JanitorInterval:  cfg.Room.JanitorInterval,
		RoomMaxAge:       cfg.Room.MaxAge,
	}, logger)
	coordinator.Start()
	defer coordinator.Close()

	roomHandler := session.NewHandler(coordinator)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// REST boundary
	roomHandler.RegisterRoutes(router.Group("/api/rooms"))

	// WebSocket
	router.GET("/ws", realtime.ServeWs(hub, coordinator, logger))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
