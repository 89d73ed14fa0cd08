// Command worker runs the extraction and webhook worker pools that drain
// the Redis-backed job queues. It shares no process with cmd/server so job
// throughput scales independently of the HTTP listener.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm/logger"

	"chatinvoice/config"
	"chatinvoice/llm"
	"chatinvoice/observability/logging"
	telemetry "chatinvoice/observability/otel"
	"chatinvoice/queue"
	"chatinvoice/services/extractionworker"
	"chatinvoice/services/webhookworker"
	"chatinvoice/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	appLogger := logging.Setup(logging.Options{
		Service:     "chatinvoice-worker",
		Environment: cfg.Environment,
		LogFilePath: cfg.LogFilePath,
	})

	shutdownTelemetry, err := telemetry.Init(context.Background(), telemetry.Config{
		ServiceName: "chatinvoice-worker",
		Environment: cfg.Environment,
		Metrics:     true,
		Traces:      true,
	})
	if err != nil {
		log.Fatalf("init telemetry: %v", err)
	}
	defer func() { _ = shutdownTelemetry(context.Background()) }()

	gormLevel := logger.Warn
	if cfg.Environment == "production" {
		gormLevel = logger.Error
	}
	db, err := storage.Open(storage.OpenOptions{DSN: cfg.DatabaseURL, LogLevel: gormLevel})
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	store := storage.NewPostgres(db)

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Fatalf("parse redis url: %v", err)
	}
	rdb := redis.NewClient(opts)
	defer rdb.Close()

	extractionQ := queue.New(rdb, queue.KindExtraction)
	webhookQ := queue.New(rdb, queue.KindWebhook)
	jobStatus := queue.NewStatusStore(rdb)

	llmClient := llm.NewClient(llm.Config{
		BaseURL:   cfg.LLMBaseURL,
		APIKey:    cfg.LLMAPIKey,
		Model:     cfg.LLMModel,
		FastModel: cfg.LLMFastModel,
		Timeout:   cfg.LLMTimeout,
	})

	extraction := extractionworker.New(extractionQ, webhookQ, jobStatus, llmClient, store, appLogger)
	webhook := webhookworker.New(webhookQ, appLogger)

	ctx, cancel := context.WithCancel(context.Background())

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		extraction.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		webhook.Run(ctx)
	}()

	appLogger.Info("workers started",
		"extractionConcurrency", extractionworker.Concurrency,
		"webhookConcurrency", webhookworker.Concurrency)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	appLogger.Info("shutting down workers")
	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(30 * time.Second):
		appLogger.Warn("workers did not drain within shutdown window")
	}
}
