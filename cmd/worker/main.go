package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"wedgietracker/ingestion/internal/api"
	"wedgietracker/ingestion/internal/cache"
	"wedgietracker/ingestion/internal/client"
	"wedgietracker/ingestion/internal/config"
	"wedgietracker/ingestion/internal/ingest"
	"wedgietracker/ingestion/internal/metrics"
	"wedgietracker/ingestion/internal/playbyplay"
	"wedgietracker/ingestion/internal/repository"
	"wedgietracker/ingestion/internal/schedule"
	"wedgietracker/ingestion/internal/scheduler"
	"wedgietracker/ingestion/internal/state"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Setup logger
	setupLogger()

	log.Info().Msg("Starting wedgie tracker ingestion worker")

	// Load configuration
	cfg := config.MustLoad()
	log.Info().
		Str("env", cfg.AppEnv).
		Str("log_level", cfg.LogLevel).
		Msg("Configuration loaded")

	cutoff, err := cfg.CutoffDate()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid schedule cutoff date")
	}

	// Create context that listens for cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info().Msg("Received shutdown signal, gracefully shutting down...")
		cancel()
	}()

	// Initialize database connection
	db, err := repository.NewDatabase(ctx, repository.Config{
		Host:     cfg.DatabaseHost,
		Port:     strconv.Itoa(cfg.DatabasePort),
		User:     cfg.DatabaseUser,
		Password: cfg.DatabasePassword,
		Database: cfg.DatabaseName,
		SSLMode:  cfg.DatabaseSSLMode,
		MaxConns: cfg.DatabaseMaxConns,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply database schema")
	}
	log.Info().Msg("Database connection established")

	// Initialize Redis cache. The summary endpoint works without it.
	var summaryCache state.SummaryCache
	checks := healthChecks{"database": db}
	redisCache, err := cache.NewRedisCache(ctx, cache.Config{
		Addr:       cfg.RedisAddr(),
		Password:   cfg.RedisPassword,
		DB:         cfg.RedisDB,
		SummaryTTL: cfg.CacheTTLSummary,
	})
	if err != nil {
		log.Warn().Err(err).Msg("Failed to connect to Redis - continuing without cache")
	} else {
		defer redisCache.Close()
		summaryCache = redisCache
		checks["redis"] = redisCache
		log.Info().Msg("Redis cache connected")
	}

	feed := client.NewClient(client.Options{
		ScheduleURL:    cfg.ScheduleURL,
		PlayByPlayURL:  cfg.PlayByPlayURL,
		Timeout:        cfg.FeedTimeout,
		MaxConcurrency: cfg.FeedMaxConcurrency,
		MaxRetries:     cfg.FeedMaxRetries,
	})
	log.Info().Msg("Feed client initialized")

	store := state.NewStore(db, summaryCache, state.Options{
		EstimatedGames: cfg.TotalEstimatedGames,
		ExcludedSeason: cfg.PaceExcludedSeason,
	})

	orchestrator := ingest.NewOrchestrator(
		schedule.NewSynchronizer(feed, db.Games, cutoff),
		playbyplay.NewAggregator(feed, playbyplay.Options{
			BatchSize:  cfg.PBPBatchSize,
			BatchPause: cfg.PBPBatchPause,
			TimeBudget: cfg.PBPTimeBudget,
		}),
		store,
		cfg.DefaultSeasonName,
	)

	// Update uptime and pool metrics
	startTime := time.Now()
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				metrics.UpdateUptime(startTime)
				db.PoolStats()
			case <-ctx.Done():
				return
			}
		}
	}()

	// Create and start scheduler
	sched := scheduler.NewScheduler(cfg.IngestCron, orchestrator)
	if cfg.EnableScheduler {
		log.Info().Msg("Starting scheduler...")
		if err := sched.Start(ctx); err != nil {
			log.Fatal().Err(err).Msg("Failed to start scheduler")
		}
	}

	// Catch up once at startup instead of waiting for the first tick
	if cfg.InitialSyncEnabled {
		log.Info().Msg("Running initial sync...")
		go sched.RunNow(ctx)
	}

	// Start HTTP API
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	readers := api.Readers{Seasons: db.Seasons, Games: db.Games, Wedgies: db.Wedgies}
	handler := api.NewHandler(store, orchestrator, checks, readers, api.Config{
		PushSecret:       cfg.PushSecret,
		PushSecretHeader: cfg.PushSecretHeader,
		AdminJWTSecret:   []byte(cfg.AdminJWTSecret),
	})
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Int("port", cfg.HTTPPort).Msg("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP server failed")
			cancel()
		}
	}()

	// Keep running until context is cancelled
	<-ctx.Done()

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	log.Info().Msg("Shutting down HTTP server...")
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	if cfg.EnableScheduler {
		sched.Stop()
	}

	log.Info().Msg("Worker shutdown complete")
}

// healthChecks reports unhealthy when any dependency fails
type healthChecks map[string]interface {
	Health(ctx context.Context) error
}

func (h healthChecks) Health(ctx context.Context) error {
	for name, check := range h {
		if err := check.Health(ctx); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// setupLogger configures the zerolog logger
func setupLogger() {
	// Pretty console logging in development
	if env := os.Getenv("APP_ENV"); env == "" || env == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		})
	}

	// Set log level
	level := zerolog.InfoLevel
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		parsedLevel, err := zerolog.ParseLevel(lvl)
		if err == nil {
			level = parsedLevel
		}
	}
	zerolog.SetGlobalLevel(level)

	log.Info().
		Str("level", level.String()).
		Msg("Logger initialized")
}
