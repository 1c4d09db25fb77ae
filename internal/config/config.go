package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration
type Config struct {
	// League feeds
	ScheduleURL        string        `envconfig:"SCHEDULE_URL" default:"https://cdn.nba.com/static/json/staticData/scheduleLeagueV2_1.json"`
	PlayByPlayURL      string        `envconfig:"PLAYBYPLAY_URL" default:"https://cdn.nba.com/static/json/liveData/playbyplay/playbyplay_%s.json"`
	FeedTimeout        time.Duration `envconfig:"FEED_TIMEOUT" default:"10s"`
	FeedMaxConcurrency int           `envconfig:"FEED_MAX_CONCURRENCY" default:"10"`
	FeedMaxRetries     int           `envconfig:"FEED_MAX_RETRIES" default:"3"`

	// Database
	DatabaseHost     string `envconfig:"DATABASE_HOST" default:"localhost"`
	DatabasePort     int    `envconfig:"DATABASE_PORT" default:"5432"`
	DatabaseName     string `envconfig:"DATABASE_NAME" default:"wedgietracker"`
	DatabaseUser     string `envconfig:"DATABASE_USER" default:"wedgie"`
	DatabasePassword string `envconfig:"DATABASE_PASSWORD" required:"true"`
	DatabaseSSLMode  string `envconfig:"DATABASE_SSL_MODE" default:"disable"`
	DatabaseMaxConns int32  `envconfig:"DATABASE_MAX_CONNS" default:"10"`

	// Redis
	RedisHost     string `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort     int    `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	// Application
	AppEnv   string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	HTTPPort int    `envconfig:"HTTP_PORT" default:"8080"`

	// Authentication
	PushSecret       string `envconfig:"PUSH_SECRET" required:"true"`
	PushSecretHeader string `envconfig:"PUSH_SECRET_HEADER" default:"X-Api-Key"`
	AdminJWTSecret   string `envconfig:"ADMIN_JWT_SECRET" default:""`

	// Scheduler
	EnableScheduler    bool   `envconfig:"ENABLE_SCHEDULER" default:"true"`
	InitialSyncEnabled bool   `envconfig:"INITIAL_SYNC_ENABLED" default:"true"`
	IngestCron         string `envconfig:"INGEST_CRON" default:"*/15 * * * *"`

	// Ingestion
	ScheduleCutoffDate string        `envconfig:"SCHEDULE_CUTOFF_DATE" default:"2024-10-21"`
	DefaultSeasonName  string        `envconfig:"DEFAULT_SEASON_NAME" default:"2024/25"`
	PBPBatchSize       int           `envconfig:"PBP_BATCH_SIZE" default:"5"`
	PBPBatchPause      time.Duration `envconfig:"PBP_BATCH_PAUSE" default:"1s"`
	PBPTimeBudget      time.Duration `envconfig:"PBP_TIME_BUDGET" default:"25s"`

	// Forecasting
	TotalEstimatedGames int    `envconfig:"TOTAL_ESTIMATED_GAMES" default:"1230"`
	PaceExcludedSeason  string `envconfig:"PACE_EXCLUDED_SEASON" default:"Other"`

	// Caching TTL
	CacheTTLSummary time.Duration `envconfig:"CACHE_TTL_SUMMARY" default:"60s"`
}

// Load loads configuration from environment variables
// It first attempts to load from .env file if in development mode
func Load() (*Config, error) {
	// Try to load .env file (ignore error if doesn't exist)
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment config: %w", err)
	}

	// Validate
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.DatabasePassword == "" {
		return fmt.Errorf("DATABASE_PASSWORD is required")
	}

	if c.PushSecret == "" {
		return fmt.Errorf("PUSH_SECRET is required")
	}

	if c.IsProduction() && c.AdminJWTSecret == "" {
		return fmt.Errorf("ADMIN_JWT_SECRET is required in production")
	}

	if _, err := c.CutoffDate(); err != nil {
		return fmt.Errorf("SCHEDULE_CUTOFF_DATE must be YYYY-MM-DD: %w", err)
	}

	if c.TotalEstimatedGames <= 0 {
		return fmt.Errorf("TOTAL_ESTIMATED_GAMES must be positive")
	}

	if c.PBPBatchSize <= 0 {
		return fmt.Errorf("PBP_BATCH_SIZE must be positive")
	}

	if c.PBPTimeBudget <= 0 {
		return fmt.Errorf("PBP_TIME_BUDGET must be positive")
	}

	return nil
}

// CutoffDate parses SCHEDULE_CUTOFF_DATE. Only games strictly after it are ingested.
func (c *Config) CutoffDate() (time.Time, error) {
	return time.Parse(time.DateOnly, c.ScheduleCutoffDate)
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DatabaseHost,
		c.DatabasePort,
		c.DatabaseUser,
		c.DatabasePassword,
		c.DatabaseName,
		c.DatabaseSSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// MustLoad loads configuration or panics on error
// Use this in main() where we want to fail fast
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	return cfg
}
