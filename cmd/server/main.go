package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/shopassist/backend/config"
	httpDelivery "github.com/shopassist/backend/internal/delivery/http"
	"github.com/shopassist/backend/internal/domain"
	"github.com/shopassist/backend/internal/infrastructure/cache"
	"github.com/shopassist/backend/internal/infrastructure/catalog"
	"github.com/shopassist/backend/internal/usecase"
)

func main() {
	logger := log.NewWithOptions(os.Stdout, log.Options{
		ReportTimestamp: true,
		Prefix:          "shopassist",
	})

	// Load configuration (.env, environment, optional config.yaml)
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", "error", err)
	}

	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		logger.Fatal("Invalid log level", "error", err)
	}
	logger.SetLevel(level)

	logger.Info("Starting ShopAssist Backend v1.0.0",
		"environment", cfg.Server.Environment,
		"port", cfg.Server.Port,
		"catalog", cfg.Catalog.Driver,
		"cache", cfg.Cache.Type,
		"cache_ttl", cfg.Cache.TTL)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize infrastructure dependencies
	products, err := catalog.Open(ctx, catalog.Config{
		Driver:        cfg.Catalog.Driver,
		DSN:           cfg.Catalog.DSN,
		RetryAttempts: cfg.Catalog.RetryAttempts,
	}, logger.WithPrefix("catalog"))
	if err != nil {
		logger.Fatal("Failed to open product catalog", "error", err)
	}
	defer products.Close()

	candidateCache, closeCache, err := newCache(ctx, cfg.Cache)
	if err != nil {
		logger.Fatal("Failed to initialize cache", "error", err)
	}
	defer closeCache()

	// Initialize usecase layer
	searchService := usecase.NewSearchService(
		products,
		candidateCache,
		logger.WithPrefix("search"),
		usecase.SearchServiceConfig{
			CacheTTL:           cfg.Cache.TTL,
			DefaultTopN:        cfg.Search.DefaultTopN,
			MaxTopN:            cfg.Search.MaxTopN,
			CandidateLimit:     cfg.Catalog.CandidateLimit,
			EnableDebugLogging: cfg.Search.EnableDebugLogging,
		},
	)

	logger.Info("Search configured",
		"default_top_n", cfg.Search.DefaultTopN,
		"max_top_n", cfg.Search.MaxTopN,
		"candidate_limit", cfg.Catalog.CandidateLimit,
		"debug", cfg.Search.EnableDebugLogging)

	// Create HTTP handler with dependencies
	handler := httpDelivery.NewHandler(searchService, logger)

	// Setup router
	router := httpDelivery.SetupRouter(cfg, handler, logger.WithPrefix("http"))

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", "error", err)
	}
}

// newCache builds the configured candidate cache and its close function
func newCache(ctx context.Context, cfg config.CacheConfig) (domain.CacheRepository, func(), error) {
	switch cfg.Type {
	case "redis":
		redisCache, err := cache.NewRedisCache(ctx, cache.RedisConfig{URL: cfg.RedisURL})
		if err != nil {
			return nil, nil, err
		}
		return redisCache, func() { _ = redisCache.Close() }, nil
	default:
		memoryCache := cache.NewMemoryCache()
		return memoryCache, func() { _ = memoryCache.Close() }, nil
	}
}
