package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/horizon/backend/internal/contracts"
	"github.com/wonny/horizon/backend/pkg/config"
	"github.com/wonny/horizon/backend/pkg/logger"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	cfg := &config.Config{
		Sessions: config.SessionConfig{
			Root:      t.TempDir(),
			Retention: 48 * time.Hour,
			CacheTTL:  time.Minute,
		},
	}
	return NewStore(cfg, logger.Nop())
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	store := testStore(t)

	sess := New("sess-1")
	sess.Status = StatusRunning
	sess.Progress = 40
	sess.Messages = []string{"validation passed"}
	require.NoError(t, store.Save("sess-1", sess))

	// Cached read.
	got, err := store.Load("sess-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, StatusRunning, got.Status)
	assert.Equal(t, 40, got.Progress)

	// Disk read after cache eviction.
	store.EvictFromCache("sess-1")
	got, err = store.Load("sess-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "sess-1", got.SessionID)
	assert.Equal(t, StatusRunning, got.Status)
	assert.Equal(t, []string{"validation passed"}, got.Messages)
}

func TestStore_LoadMissingSession(t *testing.T) {
	store := testStore(t)

	got, err := store.Load("nope")
	require.NoError(t, err)
	assert.Nil(t, got, "absent session is (nil, nil), not an error")
}

func TestStore_MetadataFileShape(t *testing.T) {
	store := testStore(t)

	sess := New("sess-2")
	sess.Status = StatusCompleted
	sess.Progress = 100
	require.NoError(t, store.Save("sess-2", sess))

	data, err := os.ReadFile(filepath.Join(store.Root(), "sess-2", MetadataFile))
	require.NoError(t, err)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "sess-2", doc["session_id"])
	assert.Equal(t, "completed", doc["status"])
	assert.Contains(t, doc, "pycaret_locked", "lock flag must always serialize, even when false")
	assert.Equal(t, false, doc["pycaret_locked"])

	// No leftover temp file from the atomic write.
	_, err = os.Stat(filepath.Join(store.Root(), "sess-2", MetadataFile+".tmp"))
	assert.True(t, os.IsNotExist(err))
}

func TestStore_UpdateCreatesMissingSession(t *testing.T) {
	store := testStore(t)

	err := store.Update("fresh", func(s *Session) {
		s.Status = StatusRunning
		s.Progress = 10
	})
	require.NoError(t, err)

	got, err := store.Load("fresh")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, StatusRunning, got.Status)
	assert.NotEmpty(t, got.CreateTime)
}

func TestStore_ConcurrentUpdates(t *testing.T) {
	store := testStore(t)
	require.NoError(t, store.Save("busy", New("busy")))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.Update("busy", func(s *Session) {
				s.Progress++
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := store.Load("busy")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 20, got.Progress, "per-session mutex makes increments atomic")
}

func TestStore_LoadReturnsDetachedDocument(t *testing.T) {
	store := testStore(t)

	sess := New("detached")
	sess.Messages = []string{"validation passed"}
	require.NoError(t, store.Save("detached", sess))

	before, err := store.Load("detached")
	require.NoError(t, err)

	require.NoError(t, store.Update("detached", func(s *Session) {
		s.Progress = 50
		s.Messages = append(s.Messages, "filled")
	}))

	// The earlier Load snapshot is immune to the Update.
	assert.Equal(t, 0, before.Progress)
	assert.Equal(t, []string{"validation passed"}, before.Messages)

	// And mutating a loaded document never leaks back into the store.
	before.Status = StatusFailed
	after, err := store.Load("detached")
	require.NoError(t, err)
	assert.Equal(t, StatusInitializing, after.Status)
	assert.Equal(t, 50, after.Progress)
}

func TestStore_ConcurrentReadersDuringUpdates(t *testing.T) {
	store := testStore(t)
	require.NoError(t, store.Save("polled", New("polled")))

	var wg sync.WaitGroup
	wg.Add(2)

	// Writer: the pipeline advancing checkpoints and appending messages.
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			err := store.Update("polled", func(s *Session) {
				s.Progress++
				s.Messages = append(s.Messages, "checkpoint")
			})
			assert.NoError(t, err)
		}
	}()

	// Reader: a status poller marshaling the document, as the API and
	// websocket watcher do.
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			got, err := store.Load("polled")
			assert.NoError(t, err)
			if got != nil {
				_, err = json.Marshal(got)
				assert.NoError(t, err)
			}
		}
	}()

	wg.Wait()

	got, err := store.Load("polled")
	require.NoError(t, err)
	assert.Equal(t, 50, got.Progress)
	assert.Len(t, got.Messages, 50)
}

func TestStore_SetLockContention(t *testing.T) {
	store := testStore(t)
	require.NoError(t, store.Save("locked", New("locked")))

	store.SetLockContention("locked", true)
	got, err := store.Load("locked")
	require.NoError(t, err)
	assert.True(t, got.PyCaretLocked)

	store.SetLockContention("locked", false)
	got, err = store.Load("locked")
	require.NoError(t, err)
	assert.False(t, got.PyCaretLocked)
}

func TestStore_CleanupOldSessions(t *testing.T) {
	store := testStore(t)

	require.NoError(t, store.Save("old", New("old")))
	require.NoError(t, store.Save("recent", New("recent")))

	// Age one directory past the retention window.
	oldDir := filepath.Join(store.Root(), "old")
	stale := time.Now().Add(-72 * time.Hour)
	require.NoError(t, os.Chtimes(oldDir, stale, stale))

	removed, err := store.CleanupOldSessions()
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = os.Stat(oldDir)
	assert.True(t, os.IsNotExist(err))

	// Evicted from cache too: a reload must miss.
	got, err := store.Load("old")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = store.Load("recent")
	require.NoError(t, err)
	assert.NotNil(t, got, "sessions inside the window survive the sweep")

	// A second sweep right away has nothing left to do.
	removed, err = store.CleanupOldSessions()
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestStore_CleanupMissingRoot(t *testing.T) {
	cfg := &config.Config{
		Sessions: config.SessionConfig{
			Root:      filepath.Join(t.TempDir(), "does-not-exist"),
			Retention: time.Hour,
		},
	}
	store := NewStore(cfg, logger.Nop())

	removed, err := store.CleanupOldSessions()
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestSession_CloneIsDeep(t *testing.T) {
	orig := New("clone")
	orig.Messages = []string{"a"}
	orig.Leaderboard = []contracts.LeaderboardEntry{{Model: "drift", ScoreVal: 1, Engine: "autogluon"}}
	orig.PyCaret = []contracts.LeaderboardEntry{{Model: "drift", ScoreVal: 2, Engine: "pycaret"}}
	orig.TrainingParameters = &contracts.TrainingParams{
		DateColumn:   "Date",
		TargetColumn: "Sales",
		Engines:      []string{"autogluon"},
	}

	cp := orig.Clone()
	cp.Messages[0] = "b"
	cp.Leaderboard[0].ScoreVal = 9
	cp.PyCaret[0].ScoreVal = 9
	cp.TrainingParameters.Engines[0] = "pycaret"

	assert.Equal(t, "a", orig.Messages[0])
	assert.Equal(t, 1.0, orig.Leaderboard[0].ScoreVal)
	assert.Equal(t, 2.0, orig.PyCaret[0].ScoreVal)
	assert.Equal(t, "autogluon", orig.TrainingParameters.Engines[0])
}

func TestSession_Terminal(t *testing.T) {
	tests := []struct {
		status Status
		want   bool
	}{
		{StatusInitializing, false},
		{StatusRunning, false},
		{StatusCompleted, true},
		{StatusFailed, true},
	}

	for _, tt := range tests {
		s := &Session{Status: tt.status}
		assert.Equal(t, tt.want, s.Terminal(), "status=%s", tt.status)
	}
}
