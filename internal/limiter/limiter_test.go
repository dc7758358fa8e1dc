package limiter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter() (*Memory, *clock) {
	c := &clock{t: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	l := NewMemory(time.Minute, 3, 5*time.Minute)
	l.now = c.now
	return l, c
}

func TestMemory_BlocksAfterMaxFails(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	l, c := newTestLimiter()
	ip := HashClient("10.0.0.1")

	ok, _ := l.Allow(ctx, "a@b.io", ip)
	require.True(t, ok)

	for i := 0; i < 2; i++ {
		blocked, _ := l.Failure(ctx, "a@b.io", ip)
		require.False(t, blocked)
	}
	blocked, d := l.Failure(ctx, "A@B.io ", ip)
	require.True(t, blocked)
	require.Equal(t, 5*time.Minute, d)

	ok, retry := l.Allow(ctx, "a@b.io", ip)
	require.False(t, ok)
	require.Equal(t, 5*time.Minute, retry)

	ok, _ = l.Allow(ctx, "a@b.io", HashClient("10.0.0.2"))
	require.True(t, ok, "other client unaffected")

	c.advance(5*time.Minute + time.Second)
	ok, _ = l.Allow(ctx, "a@b.io", ip)
	require.True(t, ok)
}

func TestMemory_WindowResetsCount(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	l, c := newTestLimiter()
	ip := HashClient("h")

	l.Failure(ctx, "u", ip)
	l.Failure(ctx, "u", ip)
	c.advance(2 * time.Minute)
	blocked, _ := l.Failure(ctx, "u", ip)
	require.False(t, blocked)
}

func TestMemory_SuccessResets(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	l, _ := newTestLimiter()
	ip := HashClient("h")

	l.Failure(ctx, "u", ip)
	l.Failure(ctx, "u", ip)
	l.Success(ctx, "u", ip)
	blocked, _ := l.Failure(ctx, "u", ip)
	require.False(t, blocked)
}

func TestHashClient(t *testing.T) {
	t.Parallel()
	require.Equal(t, HashClient("x"), HashClient("x"))
	require.NotEqual(t, HashClient("x"), HashClient("y"))
	require.Len(t, HashClient("x"), 32)
}
