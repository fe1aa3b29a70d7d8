package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AndreMinHo/JPLens/internal/api"
	"github.com/AndreMinHo/JPLens/internal/config"
	"github.com/AndreMinHo/JPLens/internal/downstream"
	"github.com/AndreMinHo/JPLens/internal/pipeline"
	"github.com/AndreMinHo/JPLens/internal/ratelimit"
	"github.com/AndreMinHo/JPLens/internal/telemetry"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger := log.New(os.Stdout, "[gateway] ", log.LstdFlags|log.Lmsgprefix)

	if err := cfg.Validate(); err != nil {
		logger.Fatalf("invalid configuration: %v", err)
	}

	shutdownTracing, err := telemetry.SetupTracing(context.Background(), "jplens-gateway", cfg.Trace, logger)
	if err != nil {
		logger.Fatalf("tracing setup failed: %v", err)
	}

	if err := pipeline.Startup(); err != nil {
		logger.Fatalf("image runtime startup failed: %v", err)
	}
	defer pipeline.Shutdown()

	normalizer, err := pipeline.NewNormalizer()
	if err != nil {
		logger.Fatalf("normalizer setup failed: %v", err)
	}

	client := downstream.NewClient(downstream.Config{
		ExtractionURL: cfg.Services.ExtractionURL,
		EnrichmentURL: cfg.Services.EnrichmentURL,
		Timeout:       cfg.Services.Timeout,
	})

	var rateLimiter api.RateLimiter
	if cfg.RateLimit.Enabled() {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RateLimit.RedisAddr,
			Password: cfg.RateLimit.RedisPassword,
			DB:       cfg.RateLimit.RedisDB,
		})
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Printf("redis client close error: %v", err)
			}
		}()

		rateLimiter, err = ratelimit.NewRedisTokenBucket(redisClient, cfg.RateLimit.RequestsPerMinute, "")
		if err != nil {
			logger.Fatalf("rate limiter setup failed: %v", err)
		}
		logger.Printf("rate limiting enabled redis=%s rpm=%d", cfg.RateLimit.RedisAddr, cfg.RateLimit.RequestsPerMinute)
	}

	app, err := api.NewServer(logger, normalizer, client, client, cfg.Gateway, cfg.Auth, rateLimiter)
	if err != nil {
		logger.Fatalf("server setup failed: %v", err)
	}

	httpServer := &http.Server{
		Addr:         cfg.Gateway.Addr,
		Handler:      app.Handler(),
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Printf("listening on %s extraction=%s enrichment=%s auth=%t",
			cfg.Gateway.Addr, cfg.Services.ExtractionURL, cfg.Services.EnrichmentURL, cfg.Auth.Enabled)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Println("shutting down")
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Printf("graceful shutdown failed: %v", err)
	}
	if err := shutdownTracing(ctx); err != nil {
		logger.Printf("tracing shutdown failed: %v", err)
	}
}
