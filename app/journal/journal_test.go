package journal

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atsdesk/atsdesk/app/store"
)

type recorderFunc func(ctx context.Context, r store.Run) (int64, error)

func (f recorderFunc) Record(ctx context.Context, r store.Run) (int64, error) { return f(ctx, r) }

func TestJournal_OnStartOnFinish(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "jobs")
	j := New(dir, 0)

	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, j.OnStart("k1", "Go dev", "jd.txt + 2 CVs", 4, started))
	_, err := os.Stat(filepath.Join(dir, "k1.job"))
	require.NoError(t, err)

	res := j.List()
	require.Len(t, res, 1)
	assert.Equal(t, Entry{Key: "k1", Label: "Go dev", Detail: "jd.txt + 2 CVs", Total: 4, StartedAt: started,
		PID: int32(os.Getpid())}, res[0])

	require.NoError(t, j.OnFinish("k1"))
	assert.Empty(t, j.List())
	require.NoError(t, j.OnFinish("k1"), "missing marker is fine")
}

func TestJournal_List(t *testing.T) {
	dir := t.TempDir()
	j := New(dir, time.Hour)

	require.NoError(t, j.OnStart("k1", "one", "", 3, time.Now()))
	require.NoError(t, j.OnStart("k2", "two", "", 3, time.Now()))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.job"), []byte("not json"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.txt"), []byte("ignored"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "old.job"), []byte(`{"key":"old"}`), 0o600))
	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "old.job"), old, old))

	res := j.List()
	require.Len(t, res, 2)
	assert.ElementsMatch(t, []string{"k1", "k2"}, []string{res[0].Key, res[1].Key})

	_, err := os.Stat(filepath.Join(dir, "broken.job"))
	assert.True(t, os.IsNotExist(err), "broken marker removed")
	_, err = os.Stat(filepath.Join(dir, "old.job"))
	assert.True(t, os.IsNotExist(err), "old marker removed")
	_, err = os.Stat(filepath.Join(dir, "other.txt"))
	require.NoError(t, err)

	assert.Empty(t, New(filepath.Join(dir, "other.txt"), 0).List(), "not a directory")
}

func TestJournal_Recover(t *testing.T) {
	dir := t.TempDir()
	j := New(dir, 0)
	j.alive = func(_ context.Context, pid int32) (bool, error) { return pid == 2000000002, nil }

	write := func(key string, pid int32) {
		e := fmt.Sprintf(`{"key":%q,"label":"L-%s","detail":"d","total":5,"started_at":"2026-03-01T10:00:00Z","pid":%d}`,
			key, key, pid)
		require.NoError(t, os.WriteFile(filepath.Join(dir, key+".job"), []byte(e), 0o600))
	}
	write("dead", 2000000001)
	write("alive", 2000000002)
	require.NoError(t, j.OnStart("mine", "own", "", 3, time.Now()))

	var recorded []store.Run
	rec := recorderFunc(func(_ context.Context, r store.Run) (int64, error) {
		recorded = append(recorded, r)
		return int64(len(recorded)), nil
	})

	n, err := j.Recover(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, recorded, 1)
	assert.Equal(t, "dead", recorded[0].JobKey)
	assert.Equal(t, "L-dead", recorded[0].Label)
	assert.Equal(t, store.StatusFailed, recorded[0].Status)
	assert.Equal(t, "interrupted", recorded[0].Error)
	assert.Equal(t, 5, recorded[0].Total)
	assert.Equal(t, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), recorded[0].StartedAt.UTC())

	keys := []string{}
	for _, e := range j.List() {
		keys = append(keys, e.Key)
	}
	assert.ElementsMatch(t, []string{"alive", "mine"}, keys)
}

func TestJournal_RecoverRecordError(t *testing.T) {
	dir := t.TempDir()
	j := New(dir, 0)
	j.alive = func(context.Context, int32) (bool, error) { return false, nil }
	require.NoError(t, os.WriteFile(filepath.Join(dir, "x.job"), []byte(`{"key":"x","pid":1}`), 0o600))

	rec := recorderFunc(func(context.Context, store.Run) (int64, error) { return 0, errors.New("db is locked") })
	n, err := j.Recover(context.Background(), rec)
	require.EqualError(t, err, "can't record interrupted job x: db is locked")
	assert.Zero(t, n)
	assert.Len(t, j.List(), 1, "marker kept for the next attempt")
}
