package security

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTracker(t *testing.T, maxAttempts int) (*LockoutTracker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewLockoutTracker(client, LockoutConfig{
		MaxAttempts:     maxAttempts,
		LockoutDuration: 10 * time.Minute,
		WindowDuration:  5 * time.Minute,
	}), mr
}

func TestLockoutTracker_LocksAfterMaxAttempts(t *testing.T) {
	ctx := context.Background()
	tracker, _ := newTestTracker(t, 3)

	for i := 1; i <= 2; i++ {
		count, locked, err := tracker.TrackFailedAttempt(ctx, "r.durand")
		require.NoError(t, err)
		assert.Equal(t, i, count)
		assert.False(t, locked)
	}

	locked, err := tracker.IsLocked(ctx, "R.Durand")
	require.NoError(t, err)
	assert.False(t, locked)

	count, locked, err := tracker.TrackFailedAttempt(ctx, "R.DURAND")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.True(t, locked)

	locked, err = tracker.IsLocked(ctx, "r.durand")
	require.NoError(t, err)
	assert.True(t, locked)
}

func TestLockoutTracker_LockExpires(t *testing.T) {
	ctx := context.Background()
	tracker, mr := newTestTracker(t, 1)

	_, locked, err := tracker.TrackFailedAttempt(ctx, "login")
	require.NoError(t, err)
	require.True(t, locked)

	mr.FastForward(11 * time.Minute)

	locked, err = tracker.IsLocked(ctx, "login")
	require.NoError(t, err)
	assert.False(t, locked)

	count, err := tracker.GetFailedAttemptCount(ctx, "login")
	require.NoError(t, err)
	assert.Zero(t, count, "attempt window should have expired too")
}

func TestLockoutTracker_ClearAttempts(t *testing.T) {
	ctx := context.Background()
	tracker, _ := newTestTracker(t, 2)

	_, _, err := tracker.TrackFailedAttempt(ctx, "login")
	require.NoError(t, err)
	_, locked, err := tracker.TrackFailedAttempt(ctx, "login")
	require.NoError(t, err)
	require.True(t, locked)

	require.NoError(t, tracker.ClearAttempts(ctx, "login"))

	locked, err = tracker.IsLocked(ctx, "login")
	require.NoError(t, err)
	assert.False(t, locked)
	count, err := tracker.GetFailedAttemptCount(ctx, "login")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestLockoutTracker_NilIsDisabled(t *testing.T) {
	ctx := context.Background()
	var tracker *LockoutTracker

	_, locked, err := tracker.TrackFailedAttempt(ctx, "login")
	require.NoError(t, err)
	assert.False(t, locked)

	locked, err = tracker.IsLocked(ctx, "login")
	require.NoError(t, err)
	assert.False(t, locked)
	require.NoError(t, tracker.ClearAttempts(ctx, "login"))
}
