//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"wedgietracker/ingestion/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withTx(t *testing.T, db *Database, ctx context.Context, fn func(tx StateTx) error) {
	t.Helper()
	require.NoError(t, db.InTx(ctx, func(tx StateTx) error {
		if _, err := tx.LockGlobalState(ctx); err != nil {
			return err
		}
		return fn(tx)
	}))
}

func testGame(name, season string, date time.Time) *models.Game {
	return &models.Game{
		GameID:        "00" + name,
		Name:          name,
		GameDate:      date,
		SeasonName:    season,
		MinutesPlayed: 48,
	}
}

func TestGameRepository_InsertSkipsExisting(t *testing.T) {
	db, ctx := setupTestDB(t)
	defer teardownTestDB(t, db)

	day := time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC)

	var first, second []*models.Game
	withTx(t, db, ctx, func(tx StateTx) error {
		if err := tx.UpsertSeason(ctx, "2024/25"); err != nil {
			return err
		}
		var err error
		first, err = tx.InsertGames(ctx, []*models.Game{
			testGame("BOS @ NYK - 2024-11-01T23:30:00Z", "2024/25", day),
			testGame("LAL @ DEN - 2024-11-01T02:00:00Z", "2024/25", day),
		})
		return err
	})
	assert.Len(t, first, 2)

	withTx(t, db, ctx, func(tx StateTx) error {
		var err error
		second, err = tx.InsertGames(ctx, []*models.Game{
			testGame("BOS @ NYK - 2024-11-01T23:30:00Z", "2024/25", day),
			testGame("MIA @ CHI - 2024-11-02T00:00:00Z", "2024/25", day),
		})
		return err
	})
	require.Len(t, second, 1, "Existing name must be skipped")
	assert.Equal(t, "MIA @ CHI - 2024-11-02T00:00:00Z", second[0].Name)
	assert.NotZero(t, second[0].ID)

	existing, err := db.Games.ExistingGameNames(ctx, []string{
		"BOS @ NYK - 2024-11-01T23:30:00Z",
		"PHX @ GSW - 2024-11-03T03:00:00Z",
	})
	require.NoError(t, err)
	assert.True(t, existing["BOS @ NYK - 2024-11-01T23:30:00Z"])
	assert.False(t, existing["PHX @ GSW - 2024-11-03T03:00:00Z"])

	count, err := db.Games.CountBySeason(ctx, "2024/25")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestGameRepository_GetByNameNotFound(t *testing.T) {
	db, ctx := setupTestDB(t)
	defer teardownTestDB(t, db)

	_, err := db.Games.GetByName(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGameRepository_PurgeAndReassign(t *testing.T) {
	db, ctx := setupTestDB(t)
	defer teardownTestDB(t, db)

	oct := time.Date(2024, 10, 10, 0, 0, 0, 0, time.UTC)
	nov := time.Date(2024, 11, 10, 0, 0, 0, 0, time.UTC)
	dec := time.Date(2024, 12, 10, 0, 0, 0, 0, time.UTC)

	withTx(t, db, ctx, func(tx StateTx) error {
		for _, s := range []string{"Other", "2024/25"} {
			if err := tx.UpsertSeason(ctx, s); err != nil {
				return err
			}
		}
		games, err := tx.InsertGames(ctx, []*models.Game{
			testGame("preseason", "Other", oct),
			testGame("november", "Other", nov),
			testGame("december", "Other", dec),
		})
		if err != nil {
			return err
		}
		if err := tx.IncrementSeasonGames(ctx, "Other", len(games)); err != nil {
			return err
		}
		return nil
	})

	var purged, moved int64
	var purgedSeasons, movedFrom []string
	withTx(t, db, ctx, func(tx StateTx) error {
		var err error
		purged, purgedSeasons, err = tx.PurgeGamesBefore(ctx, time.Date(2024, 10, 22, 0, 0, 0, 0, time.UTC))
		if err != nil {
			return err
		}
		moved, movedFrom, err = tx.ReassignGamesAfter(ctx, time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC), "2024/25")
		if err != nil {
			return err
		}
		return tx.RecountSeasonGames(ctx, append(movedFrom, "2024/25"))
	})

	assert.Equal(t, int64(1), purged)
	assert.Equal(t, []string{"Other"}, purgedSeasons)
	assert.Equal(t, int64(2), moved)
	assert.Equal(t, []string{"Other"}, movedFrom)

	other, err := db.Seasons.GetByName(ctx, "Other")
	require.NoError(t, err)
	assert.Equal(t, 0, other.TotalGames)

	current, err := db.Seasons.GetByName(ctx, "2024/25")
	require.NoError(t, err)
	assert.Equal(t, 2, current.TotalGames)
}

func TestSeasonRepository_IncrementMissingSeason(t *testing.T) {
	db, ctx := setupTestDB(t)
	defer teardownTestDB(t, db)

	err := db.InTx(ctx, func(tx StateTx) error {
		return tx.IncrementSeasonGames(ctx, "1999/00", 3)
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSeasonRepository_Tallies(t *testing.T) {
	db, ctx := setupTestDB(t)
	defer teardownTestDB(t, db)

	withTx(t, db, ctx, func(tx StateTx) error {
		for _, s := range []string{"2022/23", "2023/24"} {
			if err := tx.UpsertSeason(ctx, s); err != nil {
				return err
			}
		}
		if err := tx.IncrementSeasonGames(ctx, "2022/23", 1230); err != nil {
			return err
		}
		for i := 1; i <= 3; i++ {
			w := &models.Wedgie{
				ID:         uuid.New(),
				SeasonName: "2022/23",
				Number:     i,
				Player:     "Player",
				GameDate:   time.Now().UTC(),
			}
			if err := tx.CreateWedgie(ctx, w); err != nil {
				return err
			}
		}
		return nil
	})

	tallies, err := db.Seasons.Tallies(ctx)
	require.NoError(t, err)
	require.Len(t, tallies, 2)
	assert.Equal(t, models.SeasonTally{Name: "2022/23", Wedgies: 3, TotalGames: 1230}, tallies[0])
	assert.Equal(t, models.SeasonTally{Name: "2023/24", Wedgies: 0, TotalGames: 0}, tallies[1])
}

func TestWedgieRepository_CreateAndUpdate(t *testing.T) {
	db, ctx := setupTestDB(t)
	defer teardownTestDB(t, db)

	w := &models.Wedgie{
		ID:         uuid.New(),
		SeasonName: "2024/25",
		Number:     1,
		Player:     "Rudy Gobert",
		Team:       "MIN",
		Opponent:   "DAL",
		GameDate:   time.Date(2024, 11, 5, 0, 0, 0, 0, time.UTC),
	}

	withTx(t, db, ctx, func(tx StateTx) error {
		if err := tx.UpsertSeason(ctx, w.SeasonName); err != nil {
			return err
		}
		return tx.CreateWedgie(ctx, w)
	})

	w.Player = "Anthony Edwards"
	withTx(t, db, ctx, func(tx StateTx) error {
		return tx.UpdateWedgie(ctx, w)
	})

	stored, err := db.Wedgies.GetByID(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, "Anthony Edwards", stored.Player)

	err = db.InTx(ctx, func(tx StateTx) error {
		return tx.UpdateWedgie(ctx, &models.Wedgie{ID: uuid.New(), SeasonName: "2024/25", Player: "x"})
	})
	assert.ErrorIs(t, err, ErrNotFound)

	var count int
	withTx(t, db, ctx, func(tx StateTx) error {
		var err error
		count, err = tx.CountSeasonWedgies(ctx, "2024/25")
		return err
	})
	assert.Equal(t, 1, count)
}

func TestWedgieRepository_GetByIDNotFound(t *testing.T) {
	db, ctx := setupTestDB(t)
	defer teardownTestDB(t, db)

	_, err := db.Wedgies.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGameRepository_InsertKeepsGivenCreatedAt(t *testing.T) {
	db, ctx := setupTestDB(t)
	defer teardownTestDB(t, db)

	createdAt := time.Date(2024, 10, 23, 4, 15, 0, 0, time.UTC)
	pushed := testGame("BOS @ NYK - 2024-10-22T23:30:00Z", "2024/25", createdAt)
	pushed.CreatedAt = createdAt
	stamped := testGame("LAL @ MIN - 2024-10-23T02:00:00Z", "2024/25", createdAt)

	withTx(t, db, ctx, func(tx StateTx) error {
		if err := tx.UpsertSeason(ctx, "2024/25"); err != nil {
			return err
		}
		_, err := tx.InsertGames(ctx, []*models.Game{pushed, stamped})
		return err
	})

	stored, err := db.Games.GetByName(ctx, pushed.Name)
	require.NoError(t, err)
	assert.True(t, createdAt.Equal(stored.CreatedAt), "Given createdAt should be stored")

	stored, err = db.Games.GetByName(ctx, stamped.Name)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), stored.CreatedAt, time.Minute, "Zero createdAt falls back to NOW()")
}
