// Package main runs the background insight worker standalone (indexing and
// report generation for finished recordings).
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/meeting-copilot/server/config"
	"github.com/meeting-copilot/server/internal/insights"
	"github.com/meeting-copilot/server/internal/recordings"
	"github.com/meeting-copilot/server/internal/videodb"
	"github.com/meeting-copilot/server/internal/worker"
	"github.com/meeting-copilot/server/pkg/database"
	"github.com/meeting-copilot/server/pkg/queue"
	"github.com/meeting-copilot/server/pkg/redis"
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

	recordingRepo := recordings.NewRepository(pool)
	jobQueue := queue.NewQueue(rdb.Client, logger)
	pipeline := insights.NewPipeline(recordingRepo, gateway, cfg.VideoDB.InsightModel, logger)
	processor := worker.NewInsightProcessor(pipeline, jobQueue, logger)

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go processor.Run(workerCtx)
	logger.Info("worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	time.Sleep(2 * time.Second)
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
