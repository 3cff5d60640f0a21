package team_test

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/repohandler/repohandler/internal/docstore"
	"github.com/repohandler/repohandler/internal/team"
)

func setupRepos(t *testing.T) map[string]team.Repository {
	t.Helper()

	sqlite, err := docstore.NewSQLiteStore(filepath.Join(t.TempDir(), "teams.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlite.Close() })

	return map[string]team.Repository{
		"memory": team.NewRepository(docstore.NewMemoryStore()),
		"sqlite": team.NewRepository(sqlite),
	}
}

func TestStoreRepository(t *testing.T) {
	created := time.Date(2025, 5, 1, 12, 30, 0, 0, time.UTC)

	for name, repo := range setupRepos(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			tm := &team.Team{TeamID: "TEAM-0000000A", LeaderEmail: "a@x.com", CreatedAt: created}
			require.NoError(t, repo.Create(ctx, tm))

			got, err := repo.GetByID(ctx, "TEAM-0000000A")
			require.NoError(t, err)
			assert.Equal(t, "a@x.com", got.LeaderEmail)
			assert.True(t, created.Equal(got.CreatedAt))

			got, err = repo.GetByLeaderEmail(ctx, "a@x.com")
			require.NoError(t, err)
			assert.Equal(t, "TEAM-0000000A", got.TeamID)

			_, err = repo.GetByID(ctx, "TEAM-MISSING")
			assert.ErrorIs(t, err, team.ErrTeamNotFound)

			_, err = repo.GetByLeaderEmail(ctx, "b@x.com")
			assert.ErrorIs(t, err, team.ErrTeamNotFound)

			err = repo.Create(ctx, &team.Team{TeamID: "TEAM-0000000B", LeaderEmail: "a@x.com", CreatedAt: created})
			assert.ErrorIs(t, err, team.ErrDuplicateLeaderEmail)

			err = repo.Create(ctx, &team.Team{TeamID: "TEAM-0000000A", LeaderEmail: "c@x.com", CreatedAt: created})
			assert.ErrorIs(t, err, team.ErrDuplicateTeamID)
		})
	}
}

func TestStoreRepository_ReadsLegacyTimestamps(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore()
	require.NoError(t, store.Set(ctx, "teams", "TEAM-OLD00001", json.RawMessage(
		`{"teamId":"TEAM-OLD00001","leaderEmail":"old@x.com","createdAt":"2024-11-02T08:15:00.123456"}`)))

	got, err := team.NewRepository(store).GetByID(ctx, "TEAM-OLD00001")

	require.NoError(t, err)
	assert.Equal(t, 2024, got.CreatedAt.Year())
}
