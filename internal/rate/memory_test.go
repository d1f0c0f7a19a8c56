package rate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryLimiter_WindowAndReset(t *testing.T) {
	t.Parallel()

	lim := NewMemory(2, time.Second)
	ctx := context.Background()
	now := time.Now()

	allowed, retry, err := lim.Allow(ctx, "ip", now)
	require.NoError(t, err)
	require.True(t, allowed)
	require.Zero(t, retry)

	allowed, _, err = lim.Allow(ctx, "ip", now)
	require.NoError(t, err)
	require.True(t, allowed)

	// Третья попытка в пределах окна — отказ с retryAfter.
	allowed, retry, err = lim.Allow(ctx, "ip", now)
	require.NoError(t, err)
	require.False(t, allowed)
	require.Greater(t, retry, time.Duration(0))

	// После окна счётчик начинается заново.
	allowed, _, err = lim.Allow(ctx, "ip", now.Add(2*time.Second))
	require.NoError(t, err)
	require.True(t, allowed)
}

func TestMemoryLimiter_KeysAreIndependent(t *testing.T) {
	t.Parallel()

	lim := NewMemory(1, time.Second)
	ctx := context.Background()
	now := time.Now()

	allowed, _, err := lim.Allow(ctx, "a", now)
	require.NoError(t, err)
	require.True(t, allowed)

	allowed, _, err = lim.Allow(ctx, "a", now)
	require.NoError(t, err)
	require.False(t, allowed)

	// Другой ключ не затронут.
	allowed, _, err = lim.Allow(ctx, "b", now)
	require.NoError(t, err)
	require.True(t, allowed)
}
