// Package main runs the meeting copilot relay HTTP server: session proxying,
// recording lifecycle, webhook reconciliation and the realtime transcript
// relay, with graceful shutdown.
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

	"github.com/meeting-copilot/server/config"
	"github.com/meeting-copilot/server/internal/auth"
	"github.com/meeting-copilot/server/internal/insights"
	"github.com/meeting-copilot/server/internal/middleware"
	"github.com/meeting-copilot/server/internal/models"
	"github.com/meeting-copilot/server/internal/realtime"
	"github.com/meeting-copilot/server/internal/recordings"
	"github.com/meeting-copilot/server/internal/sessions"
	"github.com/meeting-copilot/server/internal/transcription"
	"github.com/meeting-copilot/server/internal/videodb"
	"github.com/meeting-copilot/server/internal/worker"
	"github.com/meeting-copilot/server/pkg/database"
	"github.com/meeting-copilot/server/pkg/queue"
	"github.com/meeting-copilot/server/pkg/redis"
	"github.com/meeting-copilot/server/pkg/response"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	baseURL := cfg.VideoDB.BaseURL
	if baseURL == "" {
		baseURL = config.DefaultVideoDBBaseURL
	}
	gateway := videodb.NewClient(baseURL, logger)

	// Realtime transcript relay
	redisPubSub := realtime.NewRedisPubSub(rdb.Client, logger)
	hub := realtime.NewHub(logger, redisPubSub, redisPubSub)

	// Auth
	userRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(userRepo, logger)

	// Sessions (capture session + token proxy)
	sessionHandler := sessions.NewHandler(gateway, cfg, logger)

	// Recordings
	recordingRepo := recordings.NewRepository(pool)
	recordingHandler := recordings.NewHandler(recordingRepo, logger)
	jobQueue := queue.NewQueue(rdb.Client, logger)
	webhookHandler := recordings.NewWebhookHandler(recordingRepo, userRepo, jobQueue, hub, logger)

	// Transcription activation
	poller := transcription.NewPoller(gateway, cfg.Transcription.MaxAttempts,
		time.Duration(cfg.Transcription.RetryDelaySec)*time.Second, logger)
	transcriptionHandler := transcription.NewHandler(poller, logger)

	// Insight pipeline worker (in-process)
	pipeline := insights.NewPipeline(recordingRepo, gateway, cfg.VideoDB.InsightModel, logger)
	insightWorker := worker.NewInsightProcessor(pipeline, jobQueue, logger)

	wsAuthenticate := func(token string) (*models.User, error) {
		return userRepo.GetByAccessToken(context.Background(), token)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Registration (public): exchange a platform API key for an access token
	router.POST("/auth/register", authHandler.Register)

	// Webhooks (no auth; the platform calls back here)
	router.POST("/webhook", webhookHandler.Handle)

	// WebSocket transcript relay (token in query)
	router.GET("/ws", realtime.ServeWs(hub, logger, wsAuthenticate))

	// Protected API (access token required)
	api := router.Group("")
	api.Use(middleware.AccessToken(userRepo))
	{
		api.GET("/config", sessionHandler.Config)
		api.POST("/token", sessionHandler.CreateToken)
		api.POST("/capture-session", sessionHandler.CreateCaptureSession)
		api.POST("/start-transcription", transcriptionHandler.Start)

		// The :id segment is the session correlation key for stop and the
		// numeric recording id for reads (gin needs one param name per slot).
		api.POST("/recordings/start", recordingHandler.Start)
		api.POST("/recordings/:id/stop", recordingHandler.Stop)
		api.GET("/recordings", recordingHandler.List)
		api.GET("/recordings/:id", recordingHandler.GetByID)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	go insightWorker.Run(workerCtx)
	logger.Info("insight worker started")

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	workerCancel()
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
