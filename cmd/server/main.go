// Command server runs the HTTP surface: authentication, rate limiting,
// synchronous extraction, invoice generation, and the async job/DLQ API.
// The extraction and webhook workers run as a separate process (cmd/worker)
// so the HTTP listener can be scaled independently of job throughput.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm/logger"

	"chatinvoice/config"
	"chatinvoice/gatewayauth"
	"chatinvoice/invoice"
	"chatinvoice/llm"
	"chatinvoice/httpapi"
	"chatinvoice/objectstore"
	"chatinvoice/observability"
	"chatinvoice/observability/logging"
	telemetry "chatinvoice/observability/otel"
	"chatinvoice/queue"
	"chatinvoice/ratelimit"
	"chatinvoice/storage"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	appLogger := logging.Setup(logging.Options{
		Service:     "chatinvoice-server",
		Environment: cfg.Environment,
		LogFilePath: cfg.LogFilePath,
	})

	shutdownTelemetry, err := telemetry.Init(context.Background(), telemetry.Config{
		ServiceName: "chatinvoice-server",
		Environment: cfg.Environment,
		Metrics:     true,
		Traces:      true,
	})
	if err != nil {
		log.Fatalf("init telemetry: %v", err)
	}
	defer func() { _ = shutdownTelemetry(context.Background()) }()

	db, err := storage.Open(storage.OpenOptions{DSN: cfg.DatabaseURL, LogLevel: gormLogLevel(cfg.Environment)})
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	if err := storage.AutoMigrate(db); err != nil {
		log.Fatalf("migrate database: %v", err)
	}
	store := storage.NewPostgres(db)

	rdbOpts := redisOptions(cfg.RedisURL)
	rdb := redis.NewClient(&rdbOpts)
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

	invoiceEngine := &invoice.Engine{}

	objectStore, err := objectstore.New(objectstore.Config{
		AccountName: cfg.ObjectStoreAccountName,
		AccountKey:  cfg.ObjectStoreAccountKey,
		Container:   cfg.ObjectStoreContainer,
	})
	if err != nil {
		log.Fatalf("init object store: %v", err)
	}

	jwks := gatewayauth.NewJWKSClient(cfg.IdentityJWKSURL)
	authenticator := gatewayauth.NewAuthenticator(store, jwks, cfg.IdentityAudience)

	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)

	permissions := gatewayauth.NewPermissionResolver(store, appLogger, metrics.AuthRoleFallbackTotal.Inc)

	limiter := ratelimit.New(cfg.RateLimitWindow, convertTierLimits(cfg.RateLimitTiers))

	server := httpapi.NewServer(httpapi.Deps{
		Store:         store,
		LLMClient:     llmClient,
		InvoiceEngine: invoiceEngine,
		ExtractionQ:   extractionQ,
		WebhookQ:      webhookQ,
		JobStatus:     jobStatus,
		ObjectStore:   objectStore,
		Authenticator: authenticator,
		Permissions:   permissions,
		Limiter:       limiter,
		Metrics:       metrics,
		Logger:        appLogger,
		Environment:   cfg.Environment,
	})

	httpServer := &http.Server{
		Addr:    ":" + strconv.Itoa(cfg.Port),
		Handler: server.Router(),
	}

	go func() {
		appLogger.Info("server listening", "port", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	appLogger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		appLogger.Error("graceful shutdown failed", "error", err)
	}
}

func gormLogLevel(environment string) logger.LogLevel {
	if environment == "production" {
		return logger.Error
	}
	return logger.Warn
}

func redisOptions(url string) redis.Options {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return redis.Options{Addr: "localhost:6379"}
	}
	return *opts
}

func convertTierLimits(tiers map[string]config.TierLimit) ratelimit.TierLimits {
	out := ratelimit.TierLimits{}
	for tier, limit := range tiers {
		out[storage.Tier(tier)] = limit.MaxRequests
	}
	return out
}
