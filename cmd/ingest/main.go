// Command ingest runs a single ingestion pass against the configured feed and
// exits. With -admin-token it instead prints a signed admin token.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
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
	"wedgietracker/ingestion/internal/playbyplay"
	"wedgietracker/ingestion/internal/repository"
	"wedgietracker/ingestion/internal/schedule"
	"wedgietracker/ingestion/internal/state"

	"github.com/rs/zerolog/log"
)

func main() {
	var (
		adminToken = flag.Bool("admin-token", false, "Print a signed admin token and exit")
		subject    = flag.String("subject", "operator", "Subject for the admin token")
		ttl        = flag.Duration("ttl", 12*time.Hour, "Lifetime of the admin token")
	)
	flag.Parse()

	cfg := config.MustLoad()

	if *adminToken {
		if cfg.AdminJWTSecret == "" {
			fmt.Fprintln(os.Stderr, "ADMIN_JWT_SECRET is not set")
			os.Exit(1)
		}
		token, expiresAt, err := api.SignAdminToken([]byte(cfg.AdminJWTSecret), *subject, api.RoleAdmin, *ttl)
		if err != nil {
			fmt.Fprintln(os.Stderr, "failed to sign token:", err)
			os.Exit(1)
		}
		fmt.Println(token)
		fmt.Fprintln(os.Stderr, "expires", expiresAt.Format(time.RFC3339))
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cutoff, err := cfg.CutoffDate()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid schedule cutoff date")
	}

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

	// 1. Validate database connectivity and schema
	if err := db.Health(ctx); err != nil {
		log.Fatal().Err(err).Msg("Database health check failed")
	}
	if err := db.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply database schema")
	}

	// 2. Cached summaries must be dropped after the write
	var summaryCache state.SummaryCache
	if redisCache, err := cache.NewRedisCache(ctx, cache.Config{
		Addr:       cfg.RedisAddr(),
		Password:   cfg.RedisPassword,
		DB:         cfg.RedisDB,
		SummaryTTL: cfg.CacheTTLSummary,
	}); err != nil {
		log.Warn().Err(err).Msg("Redis unavailable, cached summary may be stale until it expires")
	} else {
		defer redisCache.Close()
		summaryCache = redisCache
	}

	feed := client.NewClient(client.Options{
		ScheduleURL:    cfg.ScheduleURL,
		PlayByPlayURL:  cfg.PlayByPlayURL,
		Timeout:        cfg.FeedTimeout,
		MaxConcurrency: cfg.FeedMaxConcurrency,
		MaxRetries:     cfg.FeedMaxRetries,
	})
	store := state.NewStore(db, summaryCache, state.Options{
		EstimatedGames: cfg.TotalEstimatedGames,
		ExcludedSeason: cfg.PaceExcludedSeason,
	})

	// 3. Run once
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

	summary, err := orchestrator.Run(ctx, "manual")
	if err != nil {
		log.Fatal().Err(err).Msg("Ingestion failed")
	}

	out, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to encode summary")
	}
	fmt.Println(string(out))
}
