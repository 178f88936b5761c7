package state

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDB(t *testing.T) *State {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := LoadAt(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

var testProfile = ProfileKey("https://cloud.example.com/remote.php/webdav", "alice", "/home/alice/docs", "/docs/")

func run(started int64, policy string, applied int) RunRecord {
	return RunRecord{
		Started:  time.Unix(started, 0).UTC(),
		Duration: 1500 * time.Millisecond,
		Policy:   policy,
		Planned:  applied,
		Applied:  applied,
		Ops:      map[string]int{"upload": applied},
	}
}

// --- LoadAt / Close ---

func TestLoadAt_CreatesDB(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "sub", "state.db")
	s, err := LoadAt(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Close())
}

func TestLoadAt_ReopensExistingDB(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "state.db")

	s1, err := LoadAt(dbPath)
	require.NoError(t, err)
	require.NoError(t, s1.RecordRun(testProfile, run(1700000000, "both", 3)))
	require.NoError(t, s1.Close())

	s2, err := LoadAt(dbPath)
	require.NoError(t, err)
	defer s2.Close()

	last, err := s2.LastRun(testProfile)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, 3, last.Applied)
}

func TestProfileKey(t *testing.T) {
	assert.Equal(t, "u|me|/l|/r/", ProfileKey("u", "me", "/l", "/r/"))
}

// --- Runs ---

func TestLastRun_NoneRecorded(t *testing.T) {
	s := testDB(t)
	last, err := s.LastRun("nobody")
	require.NoError(t, err)
	assert.Nil(t, last)
}

func TestRuns_NewestFirst(t *testing.T) {
	s := testDB(t)

	require.NoError(t, s.RecordRun(testProfile, run(1700000000, "to", 1)))
	require.NoError(t, s.RecordRun(testProfile, run(1700000100, "from", 2)))
	require.NoError(t, s.RecordRun(testProfile, run(1700000200, "both", 3)))

	runs, err := s.Runs(testProfile, 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "both", runs[0].Policy)
	assert.Equal(t, "to", runs[2].Policy)
	assert.Equal(t, 1500*time.Millisecond, runs[0].Duration)
	assert.Equal(t, map[string]int{"upload": 3}, runs[0].Ops)

	runs, err = s.Runs(testProfile, 2)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestRecordRun_PrunesOldest(t *testing.T) {
	s := testDB(t)

	for i := 0; i < MaxRuns+5; i++ {
		require.NoError(t, s.RecordRun(testProfile, run(int64(1700000000+i), "both", i)))
	}

	runs, err := s.Runs(testProfile, 0)
	require.NoError(t, err)
	require.Len(t, runs, MaxRuns)
	assert.Equal(t, MaxRuns+4, runs[0].Applied)
	assert.Equal(t, 5, runs[MaxRuns-1].Applied)
}

func TestRecordRun_ProfilesAreSeparate(t *testing.T) {
	s := testDB(t)
	other := ProfileKey("https://other.example.com", "bob", "/tmp/x", "/")

	require.NoError(t, s.RecordRun(testProfile, run(1700000000, "to", 1)))
	require.NoError(t, s.RecordRun(other, RunRecord{Started: time.Unix(1700000500, 0), Aborted: true, Error: "remote listing failed"}))

	profiles, err := s.Profiles()
	require.NoError(t, err)
	assert.Len(t, profiles, 2)
	assert.Equal(t, int64(1700000500), profiles[other].Unix())

	last, err := s.LastRun(other)
	require.NoError(t, err)
	assert.True(t, last.Aborted)
	assert.Equal(t, "remote listing failed", last.Error)

	runs, err := s.Runs(testProfile, 0)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestDeleteProfile(t *testing.T) {
	s := testDB(t)

	require.NoError(t, s.RecordRun(testProfile, run(1700000000, "to", 1)))
	require.NoError(t, s.DeleteProfile(testProfile))
	require.NoError(t, s.DeleteProfile("never-existed"))

	runs, err := s.Runs(testProfile, 0)
	require.NoError(t, err)
	assert.Empty(t, runs)

	profiles, err := s.Profiles()
	require.NoError(t, err)
	assert.Empty(t, profiles)
}
