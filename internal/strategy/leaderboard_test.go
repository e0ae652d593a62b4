package strategy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/horizon/backend/internal/contracts"
)

func TestLeaderboard_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), LeaderboardFile)

	entries := []contracts.LeaderboardEntry{
		{Model: "seasonal_naive", ScoreVal: 1.25},
		{Model: "drift", ScoreVal: 2.5},
	}
	require.NoError(t, WriteLeaderboard(path, entries, false))

	got, err := ReadLeaderboard(path, NameAutoGluon)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "seasonal_naive", got[0].Model)
	assert.Equal(t, 1.25, got[0].ScoreVal)
	assert.Equal(t, NameAutoGluon, got[0].Engine, "engine-less files take the caller's tag")
}

func TestLeaderboard_FileEngineColumnWins(t *testing.T) {
	path := filepath.Join(t.TempDir(), LeaderboardFile)

	entries := []contracts.LeaderboardEntry{
		{Model: "drift", ScoreVal: 3, Engine: NamePyCaret},
	}
	require.NoError(t, WriteLeaderboard(path, entries, true))

	got, err := ReadLeaderboard(path, "something-else")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, NamePyCaret, got[0].Engine)
}

func TestReadLeaderboard_MissingFile(t *testing.T) {
	_, err := ReadLeaderboard(filepath.Join(t.TempDir(), "absent.csv"), NameAutoGluon)
	require.Error(t, err)
	assert.True(t, os.IsNotExist(err), "missing file must stay distinguishable")
}

func TestMergeLeaderboards(t *testing.T) {
	sessionDir := t.TempDir()

	agDir := filepath.Join(sessionDir, NameAutoGluon)
	require.NoError(t, os.MkdirAll(agDir, 0o755))
	require.NoError(t, WriteLeaderboard(
		filepath.Join(agDir, LeaderboardFile),
		[]contracts.LeaderboardEntry{{Model: "last_value", ScoreVal: 1}},
		false,
	))

	pcDir := filepath.Join(sessionDir, NamePyCaret)
	require.NoError(t, os.MkdirAll(pcDir, 0o755))
	require.NoError(t, WriteLeaderboard(
		filepath.Join(pcDir, LeaderboardFile),
		[]contracts.LeaderboardEntry{{Model: "drift", ScoreVal: 2}},
		false,
	))

	combined, err := MergeLeaderboards(sessionDir, []string{NameAutoGluon, NamePyCaret})
	require.NoError(t, err)
	require.Len(t, combined, 2)
	assert.Equal(t, NameAutoGluon, combined[0].Engine)
	assert.Equal(t, NamePyCaret, combined[1].Engine)

	// The combined file lands at the session root with the engine column.
	got, err := ReadLeaderboard(filepath.Join(sessionDir, LeaderboardFile), "")
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, NamePyCaret, got[1].Engine)
}

func TestMergeLeaderboards_SkipsMissing(t *testing.T) {
	sessionDir := t.TempDir()

	pcDir := filepath.Join(sessionDir, NamePyCaret)
	require.NoError(t, os.MkdirAll(pcDir, 0o755))
	require.NoError(t, WriteLeaderboard(
		filepath.Join(pcDir, LeaderboardFile),
		[]contracts.LeaderboardEntry{{Model: "drift", ScoreVal: 2}},
		false,
	))

	// AutoGluon never produced a leaderboard: skipped, not fatal.
	combined, err := MergeLeaderboards(sessionDir, []string{NameAutoGluon, NamePyCaret})
	require.NoError(t, err)
	require.Len(t, combined, 1)
	assert.Equal(t, NamePyCaret, combined[0].Engine)
}
