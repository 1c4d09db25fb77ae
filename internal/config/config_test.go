package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("DATABASE_PASSWORD", "secret")
	t.Setenv("PUSH_SECRET", "push-secret")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 1230, cfg.TotalEstimatedGames)
	assert.Equal(t, "X-Api-Key", cfg.PushSecretHeader)
	assert.Equal(t, 5, cfg.PBPBatchSize)
	assert.Equal(t, time.Second, cfg.PBPBatchPause)
	assert.Equal(t, 25*time.Second, cfg.PBPTimeBudget)
	assert.Equal(t, "Other", cfg.PaceExcludedSeason)
	assert.Contains(t, cfg.PlayByPlayURL, "%s")
	assert.True(t, cfg.InitialSyncEnabled)

	cutoff, err := cfg.CutoffDate()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 10, 21, 0, 0, 0, 0, time.UTC), cutoff)
}

func TestLoad_InitialSyncDisabled(t *testing.T) {
	setRequired(t)
	t.Setenv("INITIAL_SYNC_ENABLED", "false")

	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.InitialSyncEnabled)
}

func TestLoad_MissingPushSecret(t *testing.T) {
	t.Setenv("DATABASE_PASSWORD", "secret")
	t.Setenv("PUSH_SECRET", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := Config{
		DatabasePassword:    "pw",
		PushSecret:          "s",
		ScheduleCutoffDate:  "2024-10-21",
		TotalEstimatedGames: 1230,
		PBPBatchSize:        5,
		PBPTimeBudget:       25 * time.Second,
		AppEnv:              "development",
	}
	require.NoError(t, base.Validate())

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"bad cutoff", func(c *Config) { c.ScheduleCutoffDate = "21/10/2024" }},
		{"zero estimated games", func(c *Config) { c.TotalEstimatedGames = 0 }},
		{"zero batch size", func(c *Config) { c.PBPBatchSize = 0 }},
		{"zero budget", func(c *Config) { c.PBPTimeBudget = 0 }},
		{"production without admin secret", func(c *Config) { c.AppEnv = "production" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestDatabaseDSN(t *testing.T) {
	cfg := Config{
		DatabaseHost:     "db",
		DatabasePort:     5432,
		DatabaseUser:     "wedgie",
		DatabasePassword: "pw",
		DatabaseName:     "wedgietracker",
		DatabaseSSLMode:  "disable",
	}

	assert.Equal(t, "host=db port=5432 user=wedgie password=pw dbname=wedgietracker sslmode=disable", cfg.DatabaseDSN())
}
