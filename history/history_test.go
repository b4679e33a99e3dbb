package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "data", "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRecordAndRecent(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.Record(ctx, Run{JobID: "a", Niche: "bees", Stage: "done", StartedAt: base, Duration: 1500 * time.Millisecond, Scenes: 6}))
	require.NoError(t, s.Record(ctx, Run{JobID: "b", Niche: "ants", Stage: "render", Error: "render timed out", StartedAt: base.Add(time.Minute)}))
	require.NoError(t, s.Record(ctx, Run{JobID: "c", Niche: "owls", Stage: "done", Uploaded: true, VideoID: "yt1", StartedAt: base.Add(2 * time.Minute)}))

	runs, err := s.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "c", runs[0].JobID)
	assert.True(t, runs[0].Uploaded)
	assert.Equal(t, "yt1", runs[0].VideoID)
	assert.Equal(t, "b", runs[1].JobID)
	assert.Equal(t, "render timed out", runs[1].Error)

	all, err := s.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, base, all[2].StartedAt)
	assert.Equal(t, 1500*time.Millisecond, all[2].Duration)
	assert.Equal(t, 6, all[2].Scenes)
}

func TestRecent_OrdersWithinOneSecond(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// RFC3339Nano would render these as ".1Z" and ".12Z", which sort the wrong way as text
	require.NoError(t, s.Record(ctx, Run{JobID: "older", StartedAt: base.Add(100 * time.Millisecond)}))
	require.NoError(t, s.Record(ctx, Run{JobID: "newer", StartedAt: base.Add(120 * time.Millisecond)}))
	require.NoError(t, s.Record(ctx, Run{JobID: "whole", StartedAt: base}))

	runs, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, []string{"newer", "older", "whole"}, []string{runs[0].JobID, runs[1].JobID, runs[2].JobID})
	assert.Equal(t, base.Add(120*time.Millisecond), runs[0].StartedAt)
}

func TestRecord_ReplacesSameJob(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, s.Record(ctx, Run{JobID: "a", Niche: "bees", Stage: "render", StartedAt: now}))
	require.NoError(t, s.Record(ctx, Run{JobID: "a", Niche: "bees", Stage: "done", StartedAt: now}))

	runs, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "done", runs[0].Stage)
}

func TestRecent_Empty(t *testing.T) {
	runs, err := openStore(t).Recent(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, runs)
	assert.NotNil(t, runs)
}
