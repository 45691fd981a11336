package guard

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func TestMemoryGuard_AllowsUpToLimit(t *testing.T) {
	g := NewMemoryGuard(3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, g.Allow(ctx, "user-1", "inventory"))
	}
	assert.ErrorIs(t, g.Allow(ctx, "user-1", "inventory"), ErrRateLimited)
}

func TestMemoryGuard_WindowResets(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)}
	g := NewMemoryGuard(1, time.Minute).WithClock(clock.Now)
	ctx := context.Background()

	require.NoError(t, g.Allow(ctx, "user-1", "order"))
	assert.ErrorIs(t, g.Allow(ctx, "user-1", "order"), ErrRateLimited)

	clock.Advance(time.Minute)
	assert.NoError(t, g.Allow(ctx, "user-1", "order"))
}

func TestMemoryGuard_EvictsExpiredWindows(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)}
	g := NewMemoryGuard(10, time.Minute).WithClock(clock.Now)
	ctx := context.Background()

	for _, actor := range []string{"user-1", "user-2", "user-3", "user-4", "user-5"} {
		require.NoError(t, g.Allow(ctx, actor, "inventory"))
	}
	require.Len(t, g.windows, 5)

	clock.Advance(2 * time.Minute)
	require.NoError(t, g.Allow(ctx, "user-6", "inventory"))

	// Only the live window survives.
	assert.Len(t, g.windows, 1)
	assert.Contains(t, g.windows, "inventory:user-6")
}

func TestMemoryGuard_SweepKeepsLiveWindows(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)}
	g := NewMemoryGuard(1, time.Minute).WithClock(clock.Now)
	ctx := context.Background()

	require.NoError(t, g.Allow(ctx, "user-1", "order"))
	clock.Advance(90 * time.Second)
	require.NoError(t, g.Allow(ctx, "user-2", "order"))
	clock.Advance(30 * time.Second)
	require.NoError(t, g.Allow(ctx, "user-3", "order"))

	// user-2's window still has 30s to run and must not be swept:
	// a second hit inside it is over the limit.
	assert.ErrorIs(t, g.Allow(ctx, "user-2", "order"), ErrRateLimited)
}

func TestMemoryGuard_BucketsAreIndependent(t *testing.T) {
	g := NewMemoryGuard(1, time.Minute)
	ctx := context.Background()

	require.NoError(t, g.Allow(ctx, "user-1", "inventory"))
	assert.ErrorIs(t, g.Allow(ctx, "user-1", "inventory"), ErrRateLimited)

	// Same actor, different operation bucket.
	assert.NoError(t, g.Allow(ctx, "user-1", "order"))
	// Different actor, same operation.
	assert.NoError(t, g.Allow(ctx, "user-2", "inventory"))
}
