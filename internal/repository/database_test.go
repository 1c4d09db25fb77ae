//go:build integration

package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Integration tests for database operations
// Run with: go test -v -tags=integration ./internal/repository/...

func setupTestDB(t *testing.T) (*Database, context.Context) {
	ctx := context.Background()

	cfg := Config{
		Host:     "localhost",
		Port:     "5432",
		Database: "wedgietracker_test",
		User:     "wedgie",
		Password: "wedgie_password",
		SSLMode:  "disable",
	}

	db, err := NewDatabase(ctx, cfg)
	require.NoError(t, err, "Failed to connect to test database")
	require.NoError(t, db.Migrate(ctx), "Failed to apply schema")

	_, err = db.Pool.Exec(ctx, `TRUNCATE wedgies, games, seasons RESTART IDENTITY CASCADE`)
	require.NoError(t, err)
	_, err = db.Pool.Exec(ctx, `
		UPDATE global_state SET
			active_season = '', total_wedgies = 0, total_games = 0, total_minutes = 0,
			total_fga = 0, total_poss = 0, live_games = FALSE,
			simple_pace = 0, regression_mean_pace = 0, median_pace = 0
		WHERE id = 1
	`)
	require.NoError(t, err)

	return db, ctx
}

func teardownTestDB(t *testing.T, db *Database) {
	db.Close()
}

func TestDatabaseConnection(t *testing.T) {
	db, ctx := setupTestDB(t)
	defer teardownTestDB(t, db)

	// Test health check
	err := db.Health(ctx)
	assert.NoError(t, err, "Database health check should pass")

	// Test stats
	stats := db.PoolStats()
	assert.NotNil(t, stats, "Should return connection pool stats")
	assert.GreaterOrEqual(t, stats["max_conns"].(int32), int32(1), "Should have at least 1 max connection")
}

func TestDatabasePing(t *testing.T) {
	db, ctx := setupTestDB(t)
	defer teardownTestDB(t, db)

	// Ping with timeout
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := db.Pool.Ping(ctx)
	assert.NoError(t, err, "Should successfully ping database")
}

func TestMigrate_Idempotent(t *testing.T) {
	db, ctx := setupTestDB(t)
	defer teardownTestDB(t, db)

	require.NoError(t, db.Migrate(ctx))

	gs, err := db.GetGlobalState(ctx)
	require.NoError(t, err, "Singleton row should exist after migrate")
	assert.Equal(t, 1, gs.ID)
}

func TestInTx_CommitsState(t *testing.T) {
	db, ctx := setupTestDB(t)
	defer teardownTestDB(t, db)

	err := db.InTx(ctx, func(tx StateTx) error {
		gs, err := tx.LockGlobalState(ctx)
		if err != nil {
			return err
		}
		gs.ActiveSeason = "2024/25"
		gs.TotalWedgies = 12
		gs.SimplePace = 40
		return tx.SaveGlobalState(ctx, gs)
	})
	require.NoError(t, err)

	gs, err := db.GetGlobalState(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2024/25", gs.ActiveSeason)
	assert.Equal(t, 12, gs.TotalWedgies)
	assert.Equal(t, 40, gs.SimplePace)
}

func TestInTx_RollsBackOnError(t *testing.T) {
	db, ctx := setupTestDB(t)
	defer teardownTestDB(t, db)

	boom := errors.New("boom")
	err := db.InTx(ctx, func(tx StateTx) error {
		gs, err := tx.LockGlobalState(ctx)
		if err != nil {
			return err
		}
		if err := tx.UpsertSeason(ctx, "2024/25"); err != nil {
			return err
		}
		gs.TotalWedgies = 99
		if err := tx.SaveGlobalState(ctx, gs); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	gs, err := db.GetGlobalState(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, gs.TotalWedgies, "Failed transaction must not persist")

	_, err = db.Seasons.GetByName(ctx, "2024/25")
	assert.ErrorIs(t, err, ErrNotFound)
}
