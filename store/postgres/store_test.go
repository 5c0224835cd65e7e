package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/wricardo/mafia-game/game/config"
	"github.com/wricardo/mafia-game/game/engine"
	"github.com/wricardo/mafia-game/game/service"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	if testing.Short() {
		t.Skip("postgres container tests skipped in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	ctr, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("mafia"),
		tcpostgres.WithUsername("mafia"),
		tcpostgres.WithPassword("mafia"),
		tcpostgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	store, err := Open(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(store.Close)

	require.NoError(t, store.Migrate(ctx))
	// Migrations are idempotent
	require.NoError(t, store.Migrate(ctx))
	return store
}

func TestStore(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	t.Run("results", func(t *testing.T) {
		started := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
		record := &service.GameRecord{
			GameID:    "g1",
			RoomID:    "AB12",
			RulesName: "classic",
			Winner:    engine.FactionCitizens,
			Rounds:    3,
			Players: []engine.Player{
				{ID: "p1", Name: "Ana", Role: engine.RoleMafia},
				{ID: "p2", Name: "Bo", Role: engine.RoleDoctor, Alive: true},
			},
			StartedAt: started,
			EndedAt:   started.Add(10 * time.Minute),
		}
		require.NoError(t, store.SaveResult(ctx, record))

		got, err := store.GetResult(ctx, "g1")
		require.NoError(t, err)
		require.Equal(t, record.Winner, got.Winner)
		require.Equal(t, record.Players, got.Players)
		require.True(t, record.EndedAt.Equal(got.EndedAt))

		// Saving again replaces the outcome
		record.Winner = ""
		record.Aborted = true
		require.NoError(t, store.SaveResult(ctx, record))
		got, err = store.GetResult(ctx, "g1")
		require.NoError(t, err)
		require.True(t, got.Aborted)

		second := *record
		second.GameID = "g2"
		second.EndedAt = record.EndedAt.Add(time.Minute)
		require.NoError(t, store.SaveResult(ctx, &second))

		recent, err := store.ListResults(ctx, 1)
		require.NoError(t, err)
		require.Len(t, recent, 1)
		require.Equal(t, "g2", recent[0].GameID)

		all, err := store.ListResults(ctx, 0)
		require.NoError(t, err)
		require.Len(t, all, 2)

		_, err = store.GetResult(ctx, "missing")
		require.Equal(t, engine.ReasonNotFound, engine.ReasonOf(err))
	})

	t.Run("suggestions", func(t *testing.T) {
		entries := config.DefaultSuggestions()
		require.NoError(t, store.SeedSuggestions(ctx, entries))
		require.NoError(t, store.SeedSuggestions(ctx, entries))

		want, err := config.NewSuggestionBook(entries).Suggestions(ctx, engine.RoleMafia, engine.PhaseNightAction)
		require.NoError(t, err)
		got, err := store.Suggestions(ctx, engine.RoleMafia, engine.PhaseNightAction)
		require.NoError(t, err)
		require.Equal(t, want, got)

		none, err := store.Suggestions(ctx, engine.RoleCitizen, engine.PhaseNightAction)
		require.NoError(t, err)
		require.Empty(t, none)
	})
}
